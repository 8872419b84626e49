package process

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	logging "github.com/op/go-logging"
)

var log = logging.MustGetLogger("process")

const (
	// ExitUnknown is reported by ExitCode before the job has terminated.
	ExitUnknown = -1

	// ExitSpawnFailed is the exit code delivered when the OS could not
	// start the process (mirrors the shell's "command not found").
	ExitSpawnFailed = 127

	// DefaultDrainTimeout bounds how long output readers may keep running
	// after the process itself has exited.
	DefaultDrainTimeout = 2 * time.Second

	readBufferSize = 32 * 1024
)

// State represents the state of a job.
type State int

const (
	// StateCreated indicates the job has been created but not started.
	StateCreated State = iota
	// StateRunning indicates the process was spawned and streams are being read.
	StateRunning
	// StateTerminated indicates the exit callback fired and teardown completed.
	StateTerminated
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// StreamFunc receives output chunks. It is called once per chunk delivered by
// the OS and once more with nil data when the stream ends. err is non-nil only
// when the read failed for a reason other than end of stream.
type StreamFunc func(data []byte, err error)

// ExitFunc receives the exit code and, if the process was killed by a signal,
// that signal (0 otherwise).
type ExitFunc func(code int, sig syscall.Signal)

// Spec describes the process a Job runs.
type Spec struct {
	// Command is the program path or name.
	Command string

	// Args are the arguments, not including the program itself.
	Args []string

	// Env is merged into the inherited environment.
	Env map[string]string

	// Dir is the working directory. Empty means the current directory.
	Dir string

	OnStdout StreamFunc
	OnStderr StreamFunc
	OnExit   ExitFunc

	// DrainTimeout overrides DefaultDrainTimeout when positive.
	DrainTimeout time.Duration
}

// Job wraps one external process and its three standard streams.
//
// All callbacks of a Job are invoked from a single dispatch goroutine, in the
// order the events occurred, so they never run concurrently with each other.
// The exit callback is always the last one.
type Job struct {
	// ID is the identifier assigned by the Supervisor (empty if unmanaged).
	ID string

	// Name is a human-readable name for the job.
	Name string

	spec Spec
	cmd  *exec.Cmd

	stdin  *stream
	stdout *stream
	stderr *stream

	// Started is the time the process was spawned.
	Started time.Time

	state     atomic.Int32
	exitCode  atomic.Int32
	exitSig   atomic.Int32
	cancelled atomic.Bool

	mu       sync.RWMutex
	spawnErr error

	events chan event
	done   chan struct{}
}

// stream is one end of a pipe that can be closed any number of times.
type stream struct {
	once sync.Once
	f    *os.File
}

func newStream(f *os.File) *stream {
	return &stream{f: f}
}

// close closes the file the first time it is called. Only that call can
// return an error.
func (s *stream) close() error {
	if s == nil {
		return nil
	}
	var err error
	s.once.Do(func() {
		if cerr := s.f.Close(); cerr != nil && !errors.Is(cerr, os.ErrClosed) {
			err = cerr
		}
	})
	return err
}

type eventKind int

const (
	eventStdout eventKind = iota
	eventStderr
	eventExit
)

type event struct {
	kind eventKind
	data []byte
	err  error
	code int
	sig  syscall.Signal
}

// NewJob creates a job for spec. The process is not spawned until Start.
func NewJob(id, name string, spec Spec) *Job {
	j := &Job{
		ID:     id,
		Name:   name,
		spec:   spec,
		events: make(chan event, 64),
		done:   make(chan struct{}),
	}
	j.state.Store(int32(StateCreated))
	j.exitCode.Store(ExitUnknown)
	return j
}

// State returns the current job state.
func (j *Job) State() State {
	return State(j.state.Load())
}

// ExitCode returns the process exit code, or ExitUnknown before termination.
func (j *Job) ExitCode() int {
	return int(j.exitCode.Load())
}

// ExitSignal returns the signal that killed the process, or 0.
func (j *Job) ExitSignal() syscall.Signal {
	return syscall.Signal(j.exitSig.Load())
}

// SpawnError returns the error that prevented the process from starting.
func (j *Job) SpawnError() error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.spawnErr
}

// Done returns a channel that is closed once the job is terminated.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// IsRunning returns true while the process is running.
func (j *Job) IsRunning() bool {
	return j.State() == StateRunning
}

// Stopped returns true if Stop was requested while the process was running.
func (j *Job) Stopped() bool {
	return j.cancelled.Load()
}

// PID returns the process ID, or -1 if not started.
func (j *Job) PID() int {
	if j.cmd == nil || j.cmd.Process == nil {
		return -1
	}
	return j.cmd.Process.Pid
}

// Command returns the argv the job runs.
func (j *Job) Command() []string {
	return append([]string{j.spec.Command}, j.spec.Args...)
}

// Start spawns the process and begins reading its output.
//
// A failure to spawn is not returned: the job terminates with
// ExitSpawnFailed and the exit callback fires as for any other exit.
// Start only returns an error if the job was already started.
func (j *Job) Start() error {
	if !j.state.CompareAndSwap(int32(StateCreated), int32(StateRunning)) {
		return ErrJobAlreadyStarted
	}

	go j.dispatch()

	if err := j.spawn(); err != nil {
		log.Warningf("spawn %s: %v", j.spec.Command, err)
		j.mu.Lock()
		j.spawnErr = err
		j.mu.Unlock()
		j.events <- event{kind: eventExit, code: ExitSpawnFailed}
		close(j.events)
		return nil
	}

	log.Debugf("job %s started: pid=%d argv=%v", j.label(), j.PID(), j.Command())
	return nil
}

// spawn creates the pipes and starts the process.
func (j *Job) spawn() error {
	path, err := exec.LookPath(j.spec.Command)
	if err != nil {
		return err
	}

	var opened []*os.File
	cleanup := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}

	inR, inW, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}
	opened = append(opened, inR, inW)

	outR, outW, err := os.Pipe()
	if err != nil {
		cleanup()
		return fmt.Errorf("create stdout pipe: %w", err)
	}
	opened = append(opened, outR, outW)

	errR, errW, err := os.Pipe()
	if err != nil {
		cleanup()
		return fmt.Errorf("create stderr pipe: %w", err)
	}
	opened = append(opened, errR, errW)

	cmd := exec.Command(path, j.spec.Args...)
	cmd.Dir = j.spec.Dir
	cmd.Env = mergeEnv(os.Environ(), j.spec.Env)
	cmd.Stdin = inR
	cmd.Stdout = outW
	cmd.Stderr = errW

	if err := cmd.Start(); err != nil {
		cleanup()
		return err
	}

	// The child holds its own copies now.
	_ = inR.Close()
	_ = outW.Close()
	_ = errW.Close()

	j.cmd = cmd
	j.Started = time.Now()
	j.stdin = newStream(inW)
	j.stdout = newStream(outR)
	j.stderr = newStream(errR)

	var readers sync.WaitGroup
	readers.Add(2)
	go j.read(&readers, j.stdout, eventStdout)
	go j.read(&readers, j.stderr, eventStderr)
	go j.reap(&readers)

	return nil
}

// read forwards chunks from s to the dispatch goroutine until end of stream.
func (j *Job) read(wg *sync.WaitGroup, s *stream, kind eventKind) {
	defer wg.Done()

	buf := make([]byte, readBufferSize)
	for {
		n, err := s.f.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			j.events <- event{kind: kind, data: chunk}
		}
		if err != nil {
			// A stream closed by Stop ends like EOF.
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				err = nil
			}
			j.events <- event{kind: kind, err: err}
			return
		}
	}
}

// reap waits for the process, drains the readers and emits the exit event.
func (j *Job) reap(readers *sync.WaitGroup) {
	err := j.cmd.Wait()

	code, sig := 0, syscall.Signal(0)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
			if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
				sig = status.Signal()
				code = 128 + int(sig)
			}
		} else {
			code = ExitUnknown
		}
	}

	drained := make(chan struct{})
	go func() {
		readers.Wait()
		close(drained)
	}()

	timeout := j.spec.DrainTimeout
	if timeout <= 0 {
		timeout = DefaultDrainTimeout
	}
	select {
	case <-drained:
	case <-time.After(timeout):
		// Something else still holds the write ends (e.g. a background
		// grandchild); stop reading so the exit can be delivered.
		log.Debugf("job %s: output still open %s after exit, closing", j.label(), timeout)
		_ = j.stdout.close()
		_ = j.stderr.close()
		<-drained
	}

	j.events <- event{kind: eventExit, code: code, sig: sig}
	close(j.events)
}

// dispatch runs every callback of the job on one goroutine.
func (j *Job) dispatch() {
	for ev := range j.events {
		switch ev.kind {
		case eventStdout:
			j.deliver(j.spec.OnStdout, ev)
		case eventStderr:
			j.deliver(j.spec.OnStderr, ev)
		case eventExit:
			j.exit(ev.code, ev.sig)
		}
	}
}

func (j *Job) deliver(fn StreamFunc, ev event) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("job %s: stream callback panic: %v", j.label(), r)
		}
	}()
	fn(ev.data, ev.err)
}

// exit records the exit status, runs OnExit and then tears the streams down.
func (j *Job) exit(code int, sig syscall.Signal) {
	j.exitCode.Store(int32(code))
	j.exitSig.Store(int32(sig))

	log.Debugf("job %s exited: code=%d signal=%d", j.label(), code, sig)

	if j.spec.OnExit != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Errorf("job %s: exit callback panic: %v", j.label(), r)
				}
			}()
			j.spec.OnExit(code, sig)
		}()
	}

	if err := j.closeStreams(); err != nil {
		log.Warningf("job %s: %v", j.label(), err)
	}
	j.state.Store(int32(StateTerminated))
	close(j.done)
}

// Send writes data to the process's stdin and then closes stdin.
func (j *Job) Send(data []byte) error {
	if !j.IsRunning() || j.stdin == nil {
		return ErrJobNotRunning
	}

	var writeErr error
	sent := false
	j.stdin.once.Do(func() {
		sent = true
		if len(data) > 0 {
			if _, err := j.stdin.f.Write(data); err != nil {
				writeErr = fmt.Errorf("write stdin: %w", err)
			}
		}
		if err := j.stdin.f.Close(); err != nil && writeErr == nil {
			writeErr = fmt.Errorf("close stdin: %w", err)
		}
	})
	if !sent {
		return ErrStdinClosed
	}
	return writeErr
}

// Stop closes stdin, stdout and stderr. It is safe to call any number of
// times and on resources that are already closed. Stop does not signal the
// process; the process handle is released once the process is reaped.
func (j *Job) Stop() error {
	if j.IsRunning() {
		j.cancelled.Store(true)
	}
	return j.closeStreams()
}

func (j *Job) closeStreams() error {
	var errs []error
	for _, s := range []*stream{j.stdin, j.stdout, j.stderr} {
		if err := s.close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close job streams: %w", errors.Join(errs...))
	}
	return nil
}

// Signal sends a signal to the process.
func (j *Job) Signal(sig os.Signal) error {
	if !j.IsRunning() || j.cmd == nil || j.cmd.Process == nil {
		return ErrJobNotRunning
	}
	return j.cmd.Process.Signal(sig)
}

// Kill sends SIGKILL to the process.
func (j *Job) Kill() error {
	return j.Signal(syscall.SIGKILL)
}

// Terminate sends SIGTERM to the process.
func (j *Job) Terminate() error {
	return j.Signal(syscall.SIGTERM)
}

// Runtime returns how long the process has been running.
func (j *Job) Runtime() time.Duration {
	if j.Started.IsZero() {
		return 0
	}
	return time.Since(j.Started)
}

func (j *Job) label() string {
	if j.Name != "" {
		return j.Name
	}
	if j.ID != "" {
		return j.ID
	}
	return j.spec.Command
}

// mergeEnv overlays overrides on base, replacing existing entries.
func mergeEnv(base []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return base
	}

	env := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		name := kv
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				name = kv[:i]
				break
			}
		}
		if _, ok := overrides[name]; ok {
			continue
		}
		env = append(env, kv)
	}
	for k, v := range overrides {
		env = append(env, k+"="+v)
	}
	return env
}
