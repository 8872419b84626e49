package async

import "errors"

var (
	// ErrEmptyCommand indicates SystemAsync was called without a program.
	ErrEmptyCommand = errors.New("empty command")
)
