package process

import (
	"sync/atomic"
	"testing"
	"time"
)

func sleepSpec() Spec {
	return Spec{Command: "sleep", Args: []string{"10"}}
}

func TestNewSupervisor(t *testing.T) {
	s := NewSupervisor()
	defer s.Shutdown(time.Second)

	if s.Count() != 0 {
		t.Errorf("expected 0 jobs, got %d", s.Count())
	}

	if s.IsShuttingDown() {
		t.Error("expected IsShuttingDown() to be false")
	}
}

func TestSupervisor_WithMaxJobs(t *testing.T) {
	s := NewSupervisor(WithMaxJobs(2))
	defer s.Shutdown(time.Second)

	if _, err := s.Start("job1", sleepSpec()); err != nil {
		t.Fatalf("failed to start job1: %v", err)
	}
	if _, err := s.Start("job2", sleepSpec()); err != nil {
		t.Fatalf("failed to start job2: %v", err)
	}

	if _, err := s.Start("job3", sleepSpec()); err == nil {
		t.Error("expected error when exceeding max jobs")
	}
}

func TestSupervisor_WithJobExitCallback(t *testing.T) {
	var exited atomic.Pointer[Job]

	s := NewSupervisor(WithJobExitCallback(func(j *Job) {
		exited.Store(j)
	}))
	defer s.Shutdown(time.Second)

	job, err := s.Start("test", Spec{Command: "echo", Args: []string{"hello"}})
	if err != nil {
		t.Fatalf("failed to start job: %v", err)
	}

	waitDone(t, job)

	deadline := time.Now().Add(time.Second)
	for exited.Load() == nil && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if got := exited.Load(); got == nil || got.ID != job.ID {
		t.Error("exit callback was not called with the job")
	}
}

func TestSupervisor_Start(t *testing.T) {
	s := NewSupervisor()
	defer s.Shutdown(time.Second)

	job, err := s.Start("test", Spec{Command: "sleep", Args: []string{"0.1"}})
	if err != nil {
		t.Fatalf("failed to start job: %v", err)
	}

	if job.ID == "" {
		t.Error("expected non-empty job ID")
	}

	if job.Name != "test" {
		t.Errorf("expected name 'test', got %q", job.Name)
	}

	if s.Count() != 1 {
		t.Errorf("expected 1 job, got %d", s.Count())
	}

	waitDone(t, job)
	time.Sleep(50 * time.Millisecond)

	if s.Count() != 0 {
		t.Errorf("expected 0 running jobs after exit, got %d", s.Count())
	}

	// Exited jobs stay retrievable during retention.
	if got := s.Get(job.ID); got != job {
		t.Error("expected exited job to be retained")
	}
}

func TestSupervisor_NoRetention(t *testing.T) {
	s := NewSupervisor(WithRetention(0))
	defer s.Shutdown(time.Second)

	job, err := s.Start("test", Spec{Command: "true"})
	if err != nil {
		t.Fatalf("failed to start job: %v", err)
	}
	waitDone(t, job)

	deadline := time.Now().Add(time.Second)
	for s.Count() > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if s.Get(job.ID) != nil {
		t.Error("expected exited job to be forgotten without retention")
	}
}

func TestSupervisor_StartWithID_Duplicate(t *testing.T) {
	s := NewSupervisor()
	defer s.Shutdown(time.Second)

	if _, err := s.StartWithID("same-id", "test1", sleepSpec()); err != nil {
		t.Fatalf("failed to start job1: %v", err)
	}

	if _, err := s.StartWithID("same-id", "test2", sleepSpec()); err == nil {
		t.Error("expected error for duplicate ID")
	}
}

func TestSupervisor_GetByName(t *testing.T) {
	s := NewSupervisor()
	defer s.Shutdown(time.Second)

	for i := 0; i < 2; i++ {
		if _, err := s.Start("diff", sleepSpec()); err != nil {
			t.Fatalf("failed to start job: %v", err)
		}
	}
	if _, err := s.Start("status", sleepSpec()); err != nil {
		t.Fatalf("failed to start job: %v", err)
	}

	if got := len(s.GetByName("diff")); got != 2 {
		t.Errorf("expected 2 'diff' jobs, got %d", got)
	}
	if got := len(s.List()); got != 3 {
		t.Errorf("expected 3 jobs, got %d", got)
	}
}

func TestSupervisor_KillNotFound(t *testing.T) {
	s := NewSupervisor()
	defer s.Shutdown(time.Second)

	if err := s.Kill("missing"); err != ErrJobNotFound {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
	if err := s.Stop("missing"); err != ErrJobNotFound {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestSupervisor_Terminate(t *testing.T) {
	s := NewSupervisor()
	defer s.Shutdown(time.Second)

	job, err := s.Start("sleep", sleepSpec())
	if err != nil {
		t.Fatalf("failed to start job: %v", err)
	}

	if err := s.Terminate(job.ID); err != nil {
		t.Fatalf("terminate failed: %v", err)
	}
	waitDone(t, job)

	// Signalling an exited job is a no-op.
	if err := s.Terminate(job.ID); err != nil {
		t.Errorf("expected nil terminating exited job, got %v", err)
	}
}

func TestSupervisor_Shutdown(t *testing.T) {
	s := NewSupervisor()

	var jobs []*Job
	for i := 0; i < 3; i++ {
		job, err := s.Start("sleep", sleepSpec())
		if err != nil {
			t.Fatalf("failed to start job: %v", err)
		}
		jobs = append(jobs, job)
	}

	s.Shutdown(2 * time.Second)

	for _, j := range jobs {
		if j.IsRunning() {
			t.Errorf("job %s still running after shutdown", j.ID)
		}
	}

	if s.Count() != 0 {
		t.Errorf("expected 0 jobs after shutdown, got %d", s.Count())
	}

	if _, err := s.Start("late", sleepSpec()); err != ErrSupervisorShutdown {
		t.Errorf("expected ErrSupervisorShutdown, got %v", err)
	}

	select {
	case <-s.ShutdownChan():
	default:
		t.Error("expected shutdown channel to be closed")
	}
}
