package process

import "errors"

// Sentinel errors for the process package.
var (
	// ErrJobAlreadyStarted is returned when Start is called more than once.
	ErrJobAlreadyStarted = errors.New("job already started")

	// ErrJobNotRunning is returned when an operation needs a running process.
	ErrJobNotRunning = errors.New("job not running")

	// ErrStdinClosed is returned by Send when stdin was already closed.
	ErrStdinClosed = errors.New("job stdin already closed")

	// ErrJobNotFound is returned when a job ID is not known to the supervisor.
	ErrJobNotFound = errors.New("job not found")

	// ErrSupervisorShutdown is returned when the supervisor is shutting down.
	ErrSupervisorShutdown = errors.New("supervisor is shutting down")
)
