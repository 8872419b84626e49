// Package host models the editor that gitbuf runs inside: buffers bound to
// files, buffer lifecycle events, and user notifications.
package host

import (
	"fmt"
)

// Event is a buffer lifecycle event.
type Event int

const (
	// EventBufferSaved fires after the buffer was written to its file.
	EventBufferSaved Event = iota
	// EventWindowLeave fires when the window showing the buffer loses focus.
	EventWindowLeave
	// EventBufferDiscarded fires when the buffer is unloaded without saving.
	EventBufferDiscarded
)

// String returns the event name.
func (e Event) String() string {
	switch e {
	case EventBufferSaved:
		return "buffer-saved"
	case EventWindowLeave:
		return "window-leave"
	case EventBufferDiscarded:
		return "buffer-discarded"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// Level is the severity of a user notification.
type Level int

const (
	// LevelInfo is a plain status message.
	LevelInfo Level = iota
	// LevelWarn is an advisory problem, such as git stderr at release.
	LevelWarn
	// LevelError is a failed operation.
	LevelError
)

// String returns the level name.
func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// BufferOptions are per-buffer settings.
type BufferOptions struct {
	// NoSwap disables swap/backup files for the buffer.
	NoSwap bool
	// WipeOnHide unloads the buffer completely when it is hidden.
	WipeOnHide bool
}

// Buffer is an editor buffer bound to a file.
type Buffer interface {
	// Path returns the absolute path of the file shown in the buffer.
	Path() string

	// SetOptions applies buffer options.
	SetOptions(opts BufferOptions)

	// On registers fn for ev on this buffer and returns a function that
	// removes the registration.
	On(ev Event, fn func()) (unregister func())
}

// Host is the editor.
type Host interface {
	// OpenBuffer opens path in a buffer and shows it to the user.
	OpenBuffer(path string) (Buffer, error)

	// Notify shows a message to the user.
	Notify(level Level, msg string)
}
