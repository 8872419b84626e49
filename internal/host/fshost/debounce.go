package fshost

import (
	"sync"
	"time"
)

// debouncer groups bursts of file events into one callback after a quiet
// period. The callback never runs concurrently with itself.
type debouncer struct {
	mu       sync.Mutex
	delay    time.Duration
	timer    *time.Timer
	seq      uint64 // detects stale timer callbacks
	callback func()
}

func newDebouncer(delay time.Duration, callback func()) *debouncer {
	return &debouncer{delay: delay, callback: callback}
}

// call schedules the callback, restarting the quiet period.
func (d *debouncer) call() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.seq++
	seq := d.seq
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		if d.seq != seq {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.mu.Unlock()
		d.callback()
	})
}

// cancel drops any scheduled callback.
func (d *debouncer) cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.seq++
}
