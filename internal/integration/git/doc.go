// Package git drives the git command line from gitbuf.
//
// Every git command runs asynchronously through an async.Caller; nothing in
// this package blocks on a subprocess without a bound.
//
// # Architecture
//
//   - Manager: discovers and opens repositories, shares one Caller
//   - Repository: a repository root plus the git binary and environment
//   - Committer: runs interactive commits whose message is edited in a
//     host buffer
//
// # Commit Rendezvous
//
// git commit blocks until its editor exits. Committer points GIT_EDITOR at
// a launcher that prints the message file path and then waits for a sentinel
// file, so git stays alive while the user edits the message in the host:
//
//	committer := git.NewCommitter(repo, h, git.DefaultCommitConfig())
//	session, err := committer.Commit(git.CommitOptions{})
//	if err != nil {
//	    return err
//	}
//	<-session.Done()
//
// A session moves through idle, awaiting_editmsg_path, editing and
// releasing. Saving the buffer, leaving its window or discarding it
// releases the session: the sentinel is created, the launcher exits and
// git finishes the commit. Only the first of these events acts.
//
// A second Commit while one is pending fails with ErrCommitInProgress.
// Without staged changes Commit fails with ErrNothingToCommit and never
// starts git commit; amending skips that check.
//
// # Thread Safety
//
// Manager and Committer are safe for concurrent use. Buffer hooks may fire
// from any goroutine.
package git
