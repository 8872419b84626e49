package host

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHooks_FireOrder(t *testing.T) {
	var h Hooks
	var got []int

	h.On(EventBufferSaved, func() { got = append(got, 1) })
	h.On(EventBufferSaved, func() { got = append(got, 2) })
	h.On(EventWindowLeave, func() { got = append(got, 3) })

	assert.Equal(t, 2, h.Fire(EventBufferSaved))
	assert.Equal(t, []int{1, 2}, got)
	assert.Equal(t, 0, h.Fire(EventBufferDiscarded))
}

func TestHooks_Unregister(t *testing.T) {
	var h Hooks
	var calls int

	off := h.On(EventBufferSaved, func() { calls++ })
	h.On(EventBufferSaved, func() { calls += 10 })
	off()
	off()

	h.Fire(EventBufferSaved)
	assert.Equal(t, 10, calls)
	assert.Equal(t, 1, h.Count(EventBufferSaved))
}

func TestHooks_Panic(t *testing.T) {
	var h Hooks
	var ran bool

	h.On(EventWindowLeave, func() { panic("boom") })
	h.On(EventWindowLeave, func() { ran = true })

	assert.NotPanics(t, func() { h.Fire(EventWindowLeave) })
	assert.True(t, ran)
}

func TestHooks_Serialised(t *testing.T) {
	var h Hooks
	var active, overlap atomic.Int32

	h.On(EventBufferSaved, func() {
		if active.Add(1) > 1 {
			overlap.Store(1)
		}
		active.Add(-1)
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.Fire(EventBufferSaved)
		}()
	}
	wg.Wait()

	assert.Zero(t, overlap.Load())
}

func TestHooks_UnregisterDuringFire(t *testing.T) {
	var h Hooks
	var off func()
	var calls int

	off = h.On(EventBufferSaved, func() {
		calls++
		off()
	})

	h.Fire(EventBufferSaved)
	h.Fire(EventBufferSaved)
	assert.Equal(t, 1, calls)
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	dir := t.TempDir()

	b, err := m.OpenBuffer(dir + "/COMMIT_EDITMSG")
	require.NoError(t, err)
	assert.Equal(t, dir+"/COMMIT_EDITMSG", b.Path())

	b.SetOptions(BufferOptions{NoSwap: true, WipeOnHide: true})
	assert.Equal(t, BufferOptions{NoSwap: true, WipeOnHide: true}, m.Buffer(b.Path()).Options())

	var fired bool
	b.On(EventBufferDiscarded, func() { fired = true })
	require.NoError(t, m.Fire(b.Path(), EventBufferDiscarded))
	assert.True(t, fired)

	assert.Error(t, m.Fire(dir+"/other", EventBufferSaved))

	m.Notify(LevelWarn, "careful")
	assert.Equal(t, []Notification{{Level: LevelWarn, Message: "careful"}}, m.Notifications())
	assert.Equal(t, []string{b.Path()}, m.Opened())
}

func TestEvent_String(t *testing.T) {
	assert.Equal(t, "buffer-saved", EventBufferSaved.String())
	assert.Equal(t, "window-leave", EventWindowLeave.String())
	assert.Equal(t, "buffer-discarded", EventBufferDiscarded.String())
	assert.Equal(t, "event(7)", Event(7).String())
	assert.Equal(t, "warn", LevelWarn.String())
}

func TestLevel_String(t *testing.T) {
	assert.Equal(t, "info", LevelInfo.String())
	assert.Equal(t, "warn", LevelWarn.String())
	assert.Equal(t, "error", LevelError.String())
	assert.Equal(t, "level(5)", Level(5).String())
}
