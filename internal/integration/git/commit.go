package git

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/gitbuf/internal/host"
	"github.com/dshills/gitbuf/internal/integration/async"
	"github.com/dshills/gitbuf/internal/integration/sentinel"
)

// CommitConfig holds the timing and launcher settings of a Committer.
type CommitConfig struct {
	// StagedCheckTimeout bounds the staged-changes check.
	StagedCheckTimeout time.Duration

	// EditmsgTimeout bounds the wait for the launcher to report the
	// commit message path.
	EditmsgTimeout time.Duration

	// ReleaseTimeout bounds the wait for git commit to exit after release.
	ReleaseTimeout time.Duration

	// LauncherPoll is the sentinel poll period of the shell launcher.
	LauncherPoll time.Duration

	// Launcher selects the editor launcher.
	Launcher Launcher

	// Executable is the gitbuf binary used by LauncherBuiltin.
	Executable string

	// Home is exported as HOME to git commit. Empty keeps the inherited one.
	Home string

	// TempDir holds the sentinel files. Empty means os.TempDir().
	TempDir string
}

// DefaultCommitConfig returns the default commit settings.
func DefaultCommitConfig() CommitConfig {
	return CommitConfig{
		StagedCheckTimeout: time.Second,
		EditmsgTimeout:     3 * time.Second,
		ReleaseTimeout:     time.Second,
		LauncherPoll:       100 * time.Millisecond,
		Launcher:           LauncherShell,
	}
}

// CommitOptions configures a commit.
type CommitOptions struct {
	// Amend amends the previous commit. The staged-changes check is skipped.
	Amend bool
}

// SessionState is a step of the commit rendezvous.
type SessionState int

const (
	// StateIdle means no commit is pending.
	StateIdle SessionState = iota
	// StateAwaitingEditmsgPath means git commit runs and the launcher has
	// not reported the message file yet.
	StateAwaitingEditmsgPath
	// StateEditing means the message buffer is open and hooks are armed.
	StateEditing
	// StateReleasing means the sentinel is touched and git is finishing.
	StateReleasing
)

// String returns the state name.
func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingEditmsgPath:
		return "awaiting_editmsg_path"
	case StateEditing:
		return "editing"
	case StateReleasing:
		return "releasing"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Committer runs interactive commits whose message is edited in a host
// buffer. At most one commit is pending at a time.
type Committer struct {
	repo *Repository
	host host.Host
	cfg  CommitConfig

	mu      sync.Mutex
	pending *Session
}

// NewCommitter creates a Committer for repo that edits messages in h.
func NewCommitter(repo *Repository, h host.Host, cfg CommitConfig) *Committer {
	def := DefaultCommitConfig()
	if cfg.StagedCheckTimeout <= 0 {
		cfg.StagedCheckTimeout = def.StagedCheckTimeout
	}
	if cfg.EditmsgTimeout <= 0 {
		cfg.EditmsgTimeout = def.EditmsgTimeout
	}
	if cfg.ReleaseTimeout <= 0 {
		cfg.ReleaseTimeout = def.ReleaseTimeout
	}
	if cfg.LauncherPoll <= 0 {
		cfg.LauncherPoll = def.LauncherPoll
	}
	if cfg.Launcher == "" {
		cfg.Launcher = def.Launcher
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}

	return &Committer{repo: repo, host: h, cfg: cfg}
}

// Repository returns the repository commits are made in.
func (c *Committer) Repository() *Repository {
	return c.repo
}

// Pending returns the pending session, or nil.
func (c *Committer) Pending() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// State returns the state of the pending session, or StateIdle.
func (c *Committer) State() SessionState {
	if s := c.Pending(); s != nil {
		return s.State()
	}
	return StateIdle
}

// Commit starts git commit and opens its message file in a buffer. It
// returns once the buffer is open; saving, leaving or discarding the buffer
// releases git. It fails with ErrCommitInProgress while another commit is
// pending and with ErrNothingToCommit when nothing is staged.
func (c *Committer) Commit(opts CommitOptions) (*Session, error) {
	s, err := c.admit(opts)
	if err != nil {
		return nil, err
	}

	if !opts.Amend {
		staged, err := c.repo.HasStagedChanges(c.cfg.StagedCheckTimeout)
		if err != nil {
			c.host.Notify(host.LevelError, fmt.Sprintf("check staged changes: %v", err))
			c.abandon(s)
			return nil, err
		}
		if !staged {
			c.host.Notify(host.LevelInfo, "no changes added to commit")
			c.abandon(s)
			return nil, ErrNothingToCommit
		}
	}

	if err := c.start(s); err != nil {
		c.abandon(s)
		return nil, err
	}
	return s, nil
}

// admit reserves the pending slot for a new session.
func (c *Committer) admit(opts CommitOptions) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending != nil {
		return nil, ErrCommitInProgress
	}

	temp := filepath.Join(c.cfg.TempDir, "gitbuf-"+uuid.New().String())
	s := &Session{
		c:            c,
		amend:        opts.Amend,
		tempPath:     temp,
		sentinelPath: temp + ".exit",
		state:        StateAwaitingEditmsgPath,
		done:         make(chan struct{}),
	}
	c.pending = s

	log.Debugf("commit session %s admitted (amend=%v)", filepath.Base(temp), opts.Amend)
	return s, nil
}

func (c *Committer) launcher(sentinelPath string) (string, error) {
	switch c.cfg.Launcher {
	case LauncherBuiltin:
		exe := c.cfg.Executable
		if exe == "" {
			var err error
			if exe, err = os.Executable(); err != nil {
				return "", fmt.Errorf("locate gitbuf executable: %w", err)
			}
		}
		return BuiltinLauncher(exe, sentinelPath), nil
	default:
		return ShellLauncher(sentinelPath, c.cfg.LauncherPoll), nil
	}
}

// start runs git commit and moves s to StateEditing.
func (c *Committer) start(s *Session) error {
	if err := sentinel.Remove(s.sentinelPath); err != nil {
		return err
	}

	editor, err := c.launcher(s.sentinelPath)
	if err != nil {
		c.host.Notify(host.LevelError, err.Error())
		return err
	}

	env := map[string]string{"GIT_EDITOR": editor}
	if c.cfg.Home != "" {
		env["HOME"] = c.cfg.Home
	}

	args := []string{"commit"}
	if s.amend {
		args = append(args, "--amend")
	}

	job, err := c.repo.Git(args, async.Options{SplitLines: true, Env: env, Name: "git commit"})
	if err != nil {
		c.host.Notify(host.LevelError, err.Error())
		return err
	}
	s.job = job

	got := async.WaitFor(job, c.cfg.EditmsgTimeout, func(r *async.Result) bool {
		return r.OutputLen() > 0 || r.Done()
	})
	out := job.Output()
	if !got || len(out) == 0 || out[0] == "" {
		detail := strings.Join(job.ErrOutput(), "\n")
		msg := "git commit did not report a commit message file"
		if detail != "" {
			msg += ": " + detail
		}
		c.host.Notify(host.LevelError, msg)
		c.drain(s)
		return fmt.Errorf("%w: %s", ErrNoEditmsgPath, detail)
	}

	path := out[0]
	if !filepath.IsAbs(path) {
		path = filepath.Join(c.repo.Path(), path)
	}
	s.editmsgPath = path

	buf, err := c.host.OpenBuffer(path)
	if err != nil {
		c.host.Notify(host.LevelError, fmt.Sprintf("open %s: %v", path, err))
		c.drain(s)
		return fmt.Errorf("open commit message: %w", err)
	}
	buf.SetOptions(host.BufferOptions{NoSwap: true, WipeOnHide: true})

	s.mu.Lock()
	s.buffer = buf
	for _, ev := range []host.Event{host.EventBufferSaved, host.EventWindowLeave, host.EventBufferDiscarded} {
		s.unregister = append(s.unregister, buf.On(ev, func() { s.Release() }))
	}
	s.state = StateEditing
	s.mu.Unlock()

	log.Infof("editing %s", path)
	return nil
}

// drain releases the launcher of a session that failed before editing and
// stops its git process.
func (c *Committer) drain(s *Session) {
	if err := sentinel.Touch(s.sentinelPath); err != nil {
		log.Warningf("release launcher: %v", err)
	}
	if !async.Wait(s.job, c.cfg.ReleaseTimeout) {
		_ = s.job.Cancel()
	}
	c.cleanup(s)
}

// abandon returns c to idle after a failed start.
func (c *Committer) abandon(s *Session) {
	c.mu.Lock()
	if c.pending == s {
		c.pending = nil
	}
	c.mu.Unlock()

	s.finish(nil)
	log.Debugf("commit session %s abandoned", filepath.Base(s.tempPath))
}

// cleanup removes the session's temp files once git commit is gone.
func (c *Committer) cleanup(s *Session) {
	if s.job == nil || s.job.Status() != async.StatusRunning {
		if err := sentinel.Remove(s.sentinelPath); err != nil {
			log.Warningf("%v", err)
		}
		return
	}

	// The launcher may still need to see the sentinel.
	go func() {
		<-s.job.Job().Done()
		if err := sentinel.Remove(s.sentinelPath); err != nil {
			log.Warningf("%v", err)
		}
	}()
}

// Session is one commit rendezvous.
type Session struct {
	c            *Committer
	amend        bool
	tempPath     string
	sentinelPath string
	job          *async.Result

	mu          sync.Mutex
	state       SessionState
	editmsgPath string
	buffer      host.Buffer
	unregister  []func()
	err         error
	done        chan struct{}
	doneOnce    sync.Once
}

// TempPath returns the session's unique coordination path.
func (s *Session) TempPath() string { return s.tempPath }

// SentinelPath returns the file whose creation releases the launcher.
func (s *Session) SentinelPath() string { return s.sentinelPath }

// Job returns the git commit call, or nil if it was never started.
func (s *Session) Job() *async.Result { return s.job }

// Amend reports whether the session amends HEAD.
func (s *Session) Amend() bool { return s.amend }

// EditmsgPath returns the absolute path of the commit message file.
func (s *Session) EditmsgPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editmsgPath
}

// Buffer returns the buffer the message is edited in.
func (s *Session) Buffer() host.Buffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffer
}

// State returns the session state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done returns a channel closed when the session is back to idle.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err returns ErrTimeout when git commit had not exited within the release
// timeout. It is only meaningful after Done.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Release lets git commit finish: it touches the sentinel, waits for the
// commit to exit and relays its stderr. Only the first call on the pending
// session acts; it returns true. Any other call returns false.
func (s *Session) Release() bool {
	c := s.c

	c.mu.Lock()
	if c.pending != s {
		c.mu.Unlock()
		return false
	}
	c.pending = nil
	c.mu.Unlock()

	s.mu.Lock()
	s.state = StateReleasing
	unregister := s.unregister
	s.unregister = nil
	s.mu.Unlock()

	for _, off := range unregister {
		off()
	}

	log.Debugf("releasing commit session %s", filepath.Base(s.tempPath))

	if err := sentinel.Touch(s.sentinelPath); err != nil {
		c.host.Notify(host.LevelError, err.Error())
	}

	var err error
	if !async.Wait(s.job, c.cfg.ReleaseTimeout) {
		log.Warningf("git commit still running %s after release", c.cfg.ReleaseTimeout)
		err = fmt.Errorf("git commit: %w", ErrTimeout)
	} else {
		log.Infof("git commit exited with %d", s.job.ExitCode())
	}

	if stderr := strings.TrimSpace(strings.Join(s.job.ErrOutput(), "\n")); stderr != "" {
		c.host.Notify(host.LevelWarn, stderr)
	}

	c.cleanup(s)
	s.finish(err)
	return true
}

func (s *Session) finish(err error) {
	s.doneOnce.Do(func() {
		s.mu.Lock()
		s.state = StateIdle
		s.err = err
		s.mu.Unlock()
		close(s.done)
	})
}
