package git

import "errors"

// Error types for git operations.
var (
	// ErrNotRepository indicates the path is not a git repository.
	ErrNotRepository = errors.New("not a git repository")

	// ErrRepositoryNotFound indicates no repository was found.
	ErrRepositoryNotFound = errors.New("repository not found")

	// ErrNothingToCommit indicates there are no staged changes to commit.
	ErrNothingToCommit = errors.New("nothing to commit")

	// ErrCommitInProgress indicates a commit is already waiting for its
	// message to be edited.
	ErrCommitInProgress = errors.New("commit already in progress")

	// ErrNoEditmsgPath indicates git commit did not report the path of the
	// commit message file in time.
	ErrNoEditmsgPath = errors.New("no commit message path received")

	// ErrTimeout indicates a git command did not finish in time.
	ErrTimeout = errors.New("git command timed out")

	// ErrManagerClosed indicates the manager has been closed.
	ErrManagerClosed = errors.New("manager closed")
)
