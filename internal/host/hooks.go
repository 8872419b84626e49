package host

import (
	"sync"

	logging "github.com/op/go-logging"
)

var log = logging.MustGetLogger("host")

type hookEntry struct {
	id uint64
	fn func()
}

// Hooks is a per-buffer registry of event handlers.
//
// Fire runs handlers one at a time, in registration order; concurrent Fire
// calls are serialised. A panicking handler is logged and does not stop the
// remaining handlers.
type Hooks struct {
	mu      sync.Mutex
	fireMu  sync.Mutex
	nextID  uint64
	entries map[Event][]hookEntry
}

// On registers fn for ev.
func (h *Hooks) On(ev Event, fn func()) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.entries == nil {
		h.entries = make(map[Event][]hookEntry)
	}
	h.nextID++
	id := h.nextID
	h.entries[ev] = append(h.entries[ev], hookEntry{id: id, fn: fn})

	return func() { h.remove(ev, id) }
}

func (h *Hooks) remove(ev Event, id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	entries := h.entries[ev]
	for i, e := range entries {
		if e.id == id {
			h.entries[ev] = append(entries[:i:i], entries[i+1:]...)
			return
		}
	}
}

// Count returns the number of handlers registered for ev.
func (h *Hooks) Count(ev Event) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries[ev])
}

// Fire runs the handlers registered for ev and returns how many ran.
func (h *Hooks) Fire(ev Event) int {
	h.fireMu.Lock()
	defer h.fireMu.Unlock()

	h.mu.Lock()
	entries := append([]hookEntry(nil), h.entries[ev]...)
	h.mu.Unlock()

	for _, e := range entries {
		h.run(ev, e.fn)
	}
	return len(entries)
}

func (h *Hooks) run(ev Event, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("%s hook panic: %v", ev, r)
		}
	}()
	fn()
}

// Clear removes every handler.
func (h *Hooks) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = nil
}
