package process

import (
	"fmt"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	cache "github.com/patrickmn/go-cache"
)

// DefaultRetention is how long exited jobs stay retrievable by ID.
const DefaultRetention = 5 * time.Minute

// Supervisor manages jobs with lifecycle tracking and cleanup.
//
// The Supervisor provides:
//   - Job start and tracking by ID
//   - Retention of exited jobs for later inspection
//   - Signal forwarding
//   - Graceful shutdown with timeout
//
// Supervisor is safe for concurrent use.
type Supervisor struct {
	mu   sync.RWMutex
	jobs map[string]*Job

	// exited holds terminated jobs until their retention expires
	exited *cache.Cache

	// shutdown signals that the supervisor is shutting down
	shutdown chan struct{}

	// closed indicates the supervisor has been shut down
	closed atomic.Bool

	// maxJobs limits the number of concurrent jobs (0 = unlimited)
	maxJobs int

	retention time.Duration

	// onJobExit is called when a job terminates
	onJobExit func(j *Job)
}

// SupervisorOption configures a Supervisor instance.
type SupervisorOption func(*Supervisor)

// WithMaxJobs sets the maximum number of concurrent jobs.
// A value of 0 (default) means unlimited.
func WithMaxJobs(max int) SupervisorOption {
	return func(s *Supervisor) {
		s.maxJobs = max
	}
}

// WithRetention sets how long exited jobs remain retrievable with Get.
func WithRetention(d time.Duration) SupervisorOption {
	return func(s *Supervisor) {
		s.retention = d
	}
}

// WithJobExitCallback sets a callback for when jobs terminate.
func WithJobExitCallback(fn func(j *Job)) SupervisorOption {
	return func(s *Supervisor) {
		s.onJobExit = fn
	}
}

// NewSupervisor creates a new job supervisor.
func NewSupervisor(opts ...SupervisorOption) *Supervisor {
	s := &Supervisor{
		jobs:      make(map[string]*Job),
		shutdown:  make(chan struct{}),
		retention: DefaultRetention,
	}

	for _, opt := range opts {
		opt(s)
	}

	cleanup := s.retention / 2
	if cleanup <= 0 {
		cleanup = time.Minute
	}
	s.exited = cache.New(s.retention, cleanup)

	return s
}

// Start starts a new managed job with a generated ID.
//
// Returns ErrSupervisorShutdown if the supervisor is shutting down.
func (s *Supervisor) Start(name string, spec Spec) (*Job, error) {
	return s.StartWithID(uuid.New().String(), name, spec)
}

// StartWithID starts a new managed job with a specific ID.
//
// A job whose process cannot be spawned is still returned (and tracked until
// its exit callback has fired); the failure is visible via SpawnError and
// ExitSpawnFailed.
func (s *Supervisor) StartWithID(id, name string, spec Spec) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Check shutdown state under lock to prevent race
	if s.closed.Load() {
		return nil, ErrSupervisorShutdown
	}

	if s.maxJobs > 0 && len(s.jobs) >= s.maxJobs {
		return nil, fmt.Errorf("job limit reached: %d", s.maxJobs)
	}

	if _, exists := s.jobs[id]; exists {
		return nil, fmt.Errorf("job ID already exists: %s", id)
	}

	job := NewJob(id, name, spec)
	if err := job.Start(); err != nil {
		return nil, err
	}

	s.jobs[id] = job
	go s.monitor(job)

	return job, nil
}

// monitor waits for a job to terminate and moves it to the retention cache.
func (s *Supervisor) monitor(job *Job) {
	<-job.Done()

	if s.onJobExit != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Errorf("job exit callback panic: %v", r)
				}
			}()
			s.onJobExit(job)
		}()
	}

	if s.retention > 0 {
		s.exited.SetDefault(job.ID, job)
	}

	s.mu.Lock()
	delete(s.jobs, job.ID)
	s.mu.Unlock()
}

// Get returns a job by ID, including recently exited jobs.
// Returns nil if the job is not found.
func (s *Supervisor) Get(id string) *Job {
	s.mu.RLock()
	job := s.jobs[id]
	s.mu.RUnlock()
	if job != nil {
		return job
	}

	if v, ok := s.exited.Get(id); ok {
		return v.(*Job)
	}
	return nil
}

// GetByName returns running jobs matching the given name.
func (s *Supervisor) GetByName(name string) []*Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Job
	for _, j := range s.jobs {
		if j.Name == name {
			result = append(result, j)
		}
	}
	return result
}

// List returns all running jobs.
func (s *Supervisor) List() []*Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		result = append(result, j)
	}
	return result
}

// Count returns the number of running jobs.
func (s *Supervisor) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// Stop closes the streams of a job by ID.
func (s *Supervisor) Stop(id string) error {
	job := s.Get(id)
	if job == nil {
		return ErrJobNotFound
	}
	return job.Stop()
}

// Kill kills a job's process by ID.
func (s *Supervisor) Kill(id string) error {
	return s.Signal(id, syscall.SIGKILL)
}

// Terminate sends SIGTERM to a job's process by ID.
func (s *Supervisor) Terminate(id string) error {
	return s.Signal(id, syscall.SIGTERM)
}

// Signal sends a signal to a job's process by ID.
func (s *Supervisor) Signal(id string, sig syscall.Signal) error {
	job := s.Get(id)
	if job == nil {
		return ErrJobNotFound
	}

	if !job.IsRunning() {
		return nil // Already exited
	}

	return job.Signal(sig)
}

// Shutdown gracefully shuts down all jobs.
//
// It first sends SIGTERM to every running process and waits up to timeout
// for them to exit. Processes still running after the timeout are killed.
// Shutdown blocks until every job has terminated.
func (s *Supervisor) Shutdown(timeout time.Duration) {
	if s.closed.Swap(true) {
		return // Already shutting down
	}

	close(s.shutdown)

	jobs := s.List()
	if len(jobs) == 0 {
		return
	}

	log.Infof("shutting down %d job(s)", len(jobs))

	for _, j := range jobs {
		_ = j.Terminate()
	}

	done := make(chan struct{})
	go func() {
		for _, j := range jobs {
			<-j.Done()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		for _, j := range jobs {
			if j.IsRunning() {
				log.Warningf("job %s did not exit in %s, killing", j.label(), timeout)
				_ = j.Kill()
			}
		}
		<-done
	}

	s.waitForCleanup()
}

// waitForCleanup waits for all jobs to be removed from the map.
func (s *Supervisor) waitForCleanup() {
	for s.Count() > 0 {
		time.Sleep(1 * time.Millisecond)
	}
}

// IsShuttingDown returns true if the supervisor is shutting down.
func (s *Supervisor) IsShuttingDown() bool {
	return s.closed.Load()
}

// ShutdownChan returns a channel that is closed when shutdown begins.
func (s *Supervisor) ShutdownChan() <-chan struct{} {
	return s.shutdown
}
