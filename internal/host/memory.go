package host

import (
	"fmt"
	"path/filepath"
	"sync"
)

// Notification is a message recorded by the Memory host.
type Notification struct {
	Level   Level
	Message string
}

// Memory is an in-process Host that records what it is asked to do.
// Events are delivered with Fire.
type Memory struct {
	mu            sync.Mutex
	buffers       map[string]*MemoryBuffer
	opened        []string
	notifications []Notification

	// OpenErr, when set, is returned by OpenBuffer.
	OpenErr error
}

// NewMemory creates an empty Memory host.
func NewMemory() *Memory {
	return &Memory{buffers: make(map[string]*MemoryBuffer)}
}

// OpenBuffer implements Host.
func (m *Memory) OpenBuffer(path string) (Buffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.OpenErr != nil {
		return nil, m.OpenErr
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	m.opened = append(m.opened, abs)
	if b, ok := m.buffers[abs]; ok {
		return b, nil
	}
	b := &MemoryBuffer{path: abs}
	m.buffers[abs] = b
	return b, nil
}

// Notify implements Host.
func (m *Memory) Notify(level Level, msg string) {
	m.mu.Lock()
	m.notifications = append(m.notifications, Notification{Level: level, Message: msg})
	m.mu.Unlock()
	log.Debugf("notify %s: %s", level, msg)
}

// Buffer returns the buffer open on path, or nil.
func (m *Memory) Buffer(path string) *MemoryBuffer {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buffers[abs]
}

// Opened returns every path passed to OpenBuffer, in order.
func (m *Memory) Opened() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.opened...)
}

// Notifications returns the recorded notifications.
func (m *Memory) Notifications() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Notification(nil), m.notifications...)
}

// Fire delivers ev to the buffer open on path.
func (m *Memory) Fire(path string, ev Event) error {
	b := m.Buffer(path)
	if b == nil {
		return fmt.Errorf("no buffer for %s", path)
	}
	b.hooks.Fire(ev)
	return nil
}

// MemoryBuffer is the Buffer handed out by Memory.
type MemoryBuffer struct {
	path  string
	hooks Hooks

	mu   sync.Mutex
	opts BufferOptions
}

// Path implements Buffer.
func (b *MemoryBuffer) Path() string { return b.path }

// SetOptions implements Buffer.
func (b *MemoryBuffer) SetOptions(opts BufferOptions) {
	b.mu.Lock()
	b.opts = opts
	b.mu.Unlock()
}

// Options returns the options last set.
func (b *MemoryBuffer) Options() BufferOptions {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opts
}

// On implements Buffer.
func (b *MemoryBuffer) On(ev Event, fn func()) func() {
	return b.hooks.On(ev, fn)
}

// Hooks returns the buffer's hook registry.
func (b *MemoryBuffer) Hooks() *Hooks { return &b.hooks }
