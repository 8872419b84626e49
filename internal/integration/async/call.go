package async

import (
	"fmt"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/shlex"
	logging "github.com/op/go-logging"

	"github.com/dshills/gitbuf/internal/integration/process"
)

var log = logging.MustGetLogger("async")

// Options configures a SystemAsync call.
type Options struct {
	// SplitLines accumulates output as individual lines instead of raw chunks.
	SplitLines bool

	// MergeOutput concatenates all stdout fragments into one at completion.
	// Raw chunks are joined as they are; with SplitLines the lines are
	// joined with "\n" since their terminators were stripped.
	MergeOutput bool

	// Env overrides are merged into the inherited environment, on top of the
	// caller's defaults.
	Env map[string]string

	// Dir is the working directory. Empty means the caller's default.
	Dir string

	// Stdin, when non-nil, is written to the process and stdin is closed.
	Stdin []byte

	// Name labels the job in the supervisor. Defaults to the program name.
	Name string
}

// Status is the lifecycle status of a Result.
type Status int

const (
	// StatusRunning means the job has not finished yet.
	StatusRunning Status = iota
	// StatusCompleted means the job's exit callback fired.
	StatusCompleted
	// StatusCancelled means Cancel was requested before the job finished.
	StatusCancelled
)

// String returns a human-readable status name.
func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// Result accumulates the output of one job started by SystemAsync.
//
// Output and ErrOutput only grow until the result is done; afterwards they
// are frozen, except for the merge step which runs once at completion.
type Result struct {
	argv         []string
	opts         Options
	job          *process.Job
	pollInterval time.Duration

	mu        sync.Mutex
	output    []string
	errOutput []string
	outLines  LineSplitter
	errLines  LineSplitter
	status    Status
	exitCode  int
	startTime time.Time
	stopTime  time.Time

	// changed is closed and replaced every time the result changes.
	changed  chan struct{}
	finished chan struct{}
}

func newResult(argv []string, opts Options) *Result {
	return &Result{
		argv:         argv,
		opts:         opts,
		pollInterval: DefaultPollInterval,
		exitCode:     process.ExitUnknown,
		changed:      make(chan struct{}),
		finished:     make(chan struct{}),
	}
}

// Argv returns the command the result was started with.
func (r *Result) Argv() []string {
	return append([]string(nil), r.argv...)
}

// Job returns the underlying job.
func (r *Result) Job() *process.Job {
	return r.job
}

// ID returns the supervisor ID of the underlying job.
func (r *Result) ID() string {
	if r.job == nil {
		return ""
	}
	return r.job.ID
}

// Done reports whether the job's exit callback has fired.
func (r *Result) Done() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status == StatusCompleted
}

// Cancelled reports whether the result was cancelled before completion.
func (r *Result) Cancelled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status == StatusCancelled
}

// Status returns the lifecycle status.
func (r *Result) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Finished returns a channel closed when the result is completed or cancelled.
func (r *Result) Finished() <-chan struct{} {
	return r.finished
}

// ExitCode returns the exit code. It is only meaningful once Done is true.
func (r *Result) ExitCode() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exitCode
}

// Output returns a copy of the captured stdout fragments.
func (r *Result) Output() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.output...)
}

// ErrOutput returns a copy of the captured stderr fragments.
func (r *Result) ErrOutput() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.errOutput...)
}

// OutputLen returns the number of captured stdout fragments.
func (r *Result) OutputLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.output)
}

// StartTime returns when the spawn was requested.
func (r *Result) StartTime() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.startTime
}

// StopTime returns when the exit callback fired (zero until then).
func (r *Result) StopTime() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopTime
}

// Elapsed returns StopTime - StartTime, or 0 before completion.
func (r *Result) Elapsed() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopTime.IsZero() {
		return 0
	}
	return r.stopTime.Sub(r.startTime)
}

// Send writes data to the job's stdin and closes it.
func (r *Result) Send(data []byte) error {
	return r.job.Send(data)
}

// Stop closes the job's streams without changing the result's status.
func (r *Result) Stop() error {
	return r.job.Stop()
}

// Cancel stops the job's streams and marks the result cancelled. It wakes
// every waiter. Cancelling a finished result does nothing.
func (r *Result) Cancel() error {
	r.mu.Lock()
	if r.status != StatusRunning {
		r.mu.Unlock()
		return nil
	}
	r.status = StatusCancelled
	r.stopTime = time.Now()
	r.notifyLocked()
	close(r.finished)
	r.mu.Unlock()

	log.Debugf("cancelled %v", r.argv)
	return r.job.Stop()
}

// changes returns a channel closed on the next change of the result.
func (r *Result) changes() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.changed
}

func (r *Result) notifyLocked() {
	close(r.changed)
	r.changed = make(chan struct{})
}

func (r *Result) onStdout(data []byte, err error) {
	if err != nil {
		log.Warningf("read stdout of %v: %v", r.argv, err)
	}
	r.collect(data, &r.output, &r.outLines)
}

func (r *Result) onStderr(data []byte, err error) {
	if err != nil {
		log.Warningf("read stderr of %v: %v", r.argv, err)
	}
	r.collect(data, &r.errOutput, &r.errLines)
}

func (r *Result) collect(data []byte, dst *[]string, lines *LineSplitter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != StatusRunning {
		return
	}

	if data == nil {
		// End of stream: an unterminated trailing line is dropped.
		if r.opts.SplitLines && lines.Pending() != "" {
			log.Debugf("dropping partial line %q of %v", lines.Pending(), r.argv)
		}
		lines.Reset()
		return
	}

	if r.opts.SplitLines {
		complete := lines.Feed(data)
		if len(complete) == 0 {
			return
		}
		*dst = append(*dst, complete...)
	} else {
		*dst = append(*dst, string(data))
	}
	r.notifyLocked()
}

func (r *Result) onExit(code int, _ syscall.Signal) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != StatusRunning {
		return
	}

	if spawnErr := r.job.SpawnError(); spawnErr != nil {
		r.errOutput = append(r.errOutput, spawnErr.Error())
	}

	if r.opts.MergeOutput && len(r.output) > 1 {
		sep := ""
		if r.opts.SplitLines {
			sep = "\n"
		}
		r.output = []string{strings.Join(r.output, sep)}
	}

	r.exitCode = code
	r.stopTime = time.Now()
	r.status = StatusCompleted
	r.notifyLocked()
	close(r.finished)

	log.Debugf("%v finished: code=%d elapsed=%s", r.argv, code, r.stopTime.Sub(r.startTime))
}

// Caller starts jobs through a Supervisor and wraps them in Results.
type Caller struct {
	supervisor   *process.Supervisor
	env          map[string]string
	dir          string
	drainTimeout time.Duration
	pollInterval time.Duration
}

// CallerOption configures a Caller.
type CallerOption func(*Caller)

// WithEnv sets environment overrides applied to every call.
func WithEnv(env map[string]string) CallerOption {
	return func(c *Caller) {
		for k, v := range env {
			c.env[k] = v
		}
	}
}

// WithDir sets the default working directory.
func WithDir(dir string) CallerOption {
	return func(c *Caller) {
		c.dir = dir
	}
}

// WithDrainTimeout bounds how long output is read after a job exits.
func WithDrainTimeout(d time.Duration) CallerOption {
	return func(c *Caller) {
		c.drainTimeout = d
	}
}

// WithPollInterval sets the predicate recheck period used when waiting on
// results of this Caller. Non-positive values use DefaultPollInterval.
func WithPollInterval(d time.Duration) CallerOption {
	return func(c *Caller) {
		c.pollInterval = d
	}
}

// NewCaller creates a Caller backed by supervisor.
func NewCaller(supervisor *process.Supervisor, opts ...CallerOption) *Caller {
	c := &Caller{
		supervisor:   supervisor,
		env:          make(map[string]string),
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Supervisor returns the supervisor jobs are started with.
func (c *Caller) Supervisor() *process.Supervisor {
	return c.supervisor
}

// PollInterval returns the predicate recheck period of the Caller's results.
func (c *Caller) PollInterval() time.Duration {
	return c.pollInterval
}

// SystemAsyncString is SystemAsync for a command line in shell word syntax.
func (c *Caller) SystemAsyncString(cmdline string, opts Options) (*Result, error) {
	argv, err := shlex.Split(cmdline)
	if err != nil {
		return nil, fmt.Errorf("parse command %q: %w", cmdline, err)
	}
	return c.SystemAsync(argv, opts)
}

// SystemAsync starts argv immediately and returns its Result without
// waiting. A program that cannot be spawned still yields a Result, which
// completes with process.ExitSpawnFailed; the error return is reserved for
// invalid input and a supervisor that is shutting down.
func (c *Caller) SystemAsync(argv []string, opts Options) (*Result, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, ErrEmptyCommand
	}

	env := make(map[string]string, len(c.env)+len(opts.Env))
	for k, v := range c.env {
		env[k] = v
	}
	for k, v := range opts.Env {
		env[k] = v
	}

	dir := opts.Dir
	if dir == "" {
		dir = c.dir
	}

	name := opts.Name
	if name == "" {
		name = argv[0]
	}

	r := newResult(append([]string(nil), argv...), opts)
	r.pollInterval = c.pollInterval
	spec := process.Spec{
		Command:  argv[0],
		Args:     argv[1:],
		Env:      env,
		Dir:      dir,
		OnStdout: r.onStdout,
		OnStderr: r.onStderr,
		OnExit:   r.onExit,

		DrainTimeout: c.drainTimeout,
	}

	// Callbacks cannot fire before startTime is set: they lock r.mu.
	r.mu.Lock()
	r.startTime = time.Now()
	job, err := c.supervisor.Start(name, spec)
	if err != nil {
		r.mu.Unlock()
		return nil, fmt.Errorf("start %s: %w", argv[0], err)
	}
	r.job = job
	r.mu.Unlock()

	if opts.Stdin != nil {
		if err := job.Send(opts.Stdin); err != nil {
			log.Warningf("send stdin to %v: %v", argv, err)
		}
	}

	return r, nil
}
