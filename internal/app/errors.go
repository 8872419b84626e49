package app

import "errors"

// Application errors.
var (
	// ErrClosed indicates the application has been closed.
	ErrClosed = errors.New("application closed")
)

// InitError reports a component that failed to initialize.
type InitError struct {
	Component string
	Err       error
}

func (e *InitError) Error() string {
	return "init " + e.Component + ": " + e.Err.Error()
}

func (e *InitError) Unwrap() error {
	return e.Err
}
