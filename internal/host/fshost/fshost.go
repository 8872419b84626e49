// Package fshost is a headless host.Host for running gitbuf outside an
// editor. A buffer is a file on disk that the user edits with any program:
// writing the file counts as saving it, and Discard stands in for closing
// the buffer without saving.
package fshost

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	logging "github.com/op/go-logging"

	"github.com/dshills/gitbuf/internal/host"
)

var log = logging.MustGetLogger("fshost")

// DefaultSettle is how long a file must stay quiet after a write before the
// save event fires.
const DefaultSettle = 200 * time.Millisecond

// ErrClosed is returned by OpenBuffer after Close.
var ErrClosed = errors.New("host closed")

// Option configures a Host.
type Option func(*Host)

// WithSettle overrides DefaultSettle.
func WithSettle(d time.Duration) Option {
	return func(h *Host) {
		h.settle = d
	}
}

// Host implements host.Host on top of the file system.
type Host struct {
	out    io.Writer
	settle time.Duration

	mu      sync.Mutex
	buffers map[string]*Buffer
	closed  bool
}

// New creates a Host that writes notifications and prompts to out.
func New(out io.Writer, opts ...Option) *Host {
	h := &Host{
		out:     out,
		settle:  DefaultSettle,
		buffers: make(map[string]*Buffer),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// OpenBuffer implements host.Host. It starts watching path and tells the
// user which file to edit.
func (h *Host) OpenBuffer(path string) (host.Buffer, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrClosed
	}
	if b, ok := h.buffers[abs]; ok {
		return b, nil
	}

	b, err := newBuffer(abs, h.settle)
	if err != nil {
		return nil, err
	}
	h.buffers[abs] = b

	h.printf("Edit %s and save it to continue, interrupt to abort.\n", abs)
	return b, nil
}

// Notify implements host.Host.
func (h *Host) Notify(level host.Level, msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.printf("%s: %s\n", level, msg)
}

func (h *Host) printf(format string, args ...any) {
	if _, err := fmt.Fprintf(h.out, format, args...); err != nil {
		log.Warningf("write to host output: %v", err)
	}
}

// Discard fires host.EventBufferDiscarded on every open buffer and closes
// them.
func (h *Host) Discard() {
	for _, b := range h.takeBuffers() {
		b.hooks.Fire(host.EventBufferDiscarded)
		b.close()
	}
}

// Close stops watching every buffer without firing events.
func (h *Host) Close() error {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()

	var errs []error
	for _, b := range h.takeBuffers() {
		if err := b.close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *Host) takeBuffers() []*Buffer {
	h.mu.Lock()
	defer h.mu.Unlock()

	bufs := make([]*Buffer, 0, len(h.buffers))
	for path, b := range h.buffers {
		bufs = append(bufs, b)
		delete(h.buffers, path)
	}
	return bufs
}

// Buffer is a watched file.
type Buffer struct {
	path    string
	hooks   host.Hooks
	watcher *fsnotify.Watcher
	saved   *debouncer

	mu   sync.Mutex
	opts host.BufferOptions

	closeOnce sync.Once
	closeErr  error
	done      chan struct{}
	wg        sync.WaitGroup
}

func newBuffer(path string, settle time.Duration) (*Buffer, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	// Watch the directory: editors that save by rename replace the inode.
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	b := &Buffer{
		path:    path,
		watcher: w,
		done:    make(chan struct{}),
	}
	b.saved = newDebouncer(settle, func() {
		log.Debugf("%s saved", b.path)
		b.hooks.Fire(host.EventBufferSaved)
	})

	b.wg.Add(1)
	go b.watch()
	return b, nil
}

func (b *Buffer) watch() {
	defer b.wg.Done()

	for {
		select {
		case <-b.done:
			return
		case ev, ok := <-b.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != b.path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				b.saved.call()
			}
		case err, ok := <-b.watcher.Errors:
			if !ok {
				return
			}
			log.Warningf("watch %s: %v", b.path, err)
		}
	}
}

// Path implements host.Buffer.
func (b *Buffer) Path() string { return b.path }

// SetOptions implements host.Buffer. The options have no effect on a file
// edited outside gitbuf; they are only recorded.
func (b *Buffer) SetOptions(opts host.BufferOptions) {
	b.mu.Lock()
	b.opts = opts
	b.mu.Unlock()
}

// Options returns the options last set.
func (b *Buffer) Options() host.BufferOptions {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opts
}

// On implements host.Buffer.
func (b *Buffer) On(ev host.Event, fn func()) func() {
	return b.hooks.On(ev, fn)
}

func (b *Buffer) close() error {
	b.closeOnce.Do(func() {
		b.saved.cancel()
		close(b.done)
		b.closeErr = b.watcher.Close()
		b.wg.Wait()
	})
	return b.closeErr
}
