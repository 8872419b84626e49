package async

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/gitbuf/internal/integration/process"
)

func newTestCaller(t *testing.T, opts ...CallerOption) *Caller {
	t.Helper()
	s := process.NewSupervisor()
	t.Cleanup(func() { s.Shutdown(time.Second) })
	return NewCaller(s, opts...)
}

func TestSystemAsync_EmptyCommand(t *testing.T) {
	c := newTestCaller(t)

	_, err := c.SystemAsync(nil, Options{})
	assert.ErrorIs(t, err, ErrEmptyCommand)

	_, err = c.SystemAsync([]string{""}, Options{})
	assert.ErrorIs(t, err, ErrEmptyCommand)
}

func TestSystemAsync_ReturnsImmediately(t *testing.T) {
	c := newTestCaller(t)

	r, err := c.SystemAsync([]string{"sleep", "1"}, Options{})
	require.NoError(t, err)
	defer r.Cancel()

	assert.False(t, r.Done())
	assert.False(t, Wait(r, 0))
	assert.Equal(t, StatusRunning, r.Status())
	assert.NotEmpty(t, r.ID())
	assert.False(t, r.StartTime().IsZero())
	assert.Zero(t, r.Elapsed())
}

func TestSystemAsync_ByteExact(t *testing.T) {
	c := newTestCaller(t)

	r, err := c.SystemAsync([]string{"printf", "a\r\nb"}, Options{MergeOutput: true})
	require.NoError(t, err)

	require.True(t, Wait(r, 5*time.Second))
	assert.Equal(t, 0, r.ExitCode())
	assert.Equal(t, []string{"a\r\nb"}, r.Output())
	assert.Empty(t, r.ErrOutput())
}

func TestSystemAsync_ExitCode(t *testing.T) {
	c := newTestCaller(t)

	r, err := c.SystemAsync([]string{"sh", "-c", "echo oops >&2; exit 3"}, Options{SplitLines: true})
	require.NoError(t, err)

	require.True(t, Wait(r, 5*time.Second))
	assert.Equal(t, 3, r.ExitCode())
	assert.Equal(t, []string{"oops"}, r.ErrOutput())
	assert.Empty(t, r.Output())
	assert.True(t, r.StopTime().After(r.StartTime()) || r.StopTime().Equal(r.StartTime()))
}

func TestSystemAsync_SplitLines(t *testing.T) {
	c := newTestCaller(t)

	r, err := c.SystemAsync([]string{"printf", "one\r\ntwo\nthree\rpartial"}, Options{SplitLines: true})
	require.NoError(t, err)

	require.True(t, Wait(r, 5*time.Second))
	assert.Equal(t, []string{"one", "two", "three"}, r.Output())
}

func TestSystemAsync_Merge(t *testing.T) {
	c := newTestCaller(t)
	script := "printf a; sleep 0.05; printf b; sleep 0.05; printf c"

	merged, err := c.SystemAsync([]string{"sh", "-c", script}, Options{MergeOutput: true})
	require.NoError(t, err)
	chunks, err := c.SystemAsync([]string{"sh", "-c", script}, Options{})
	require.NoError(t, err)

	require.True(t, WaitAll([]*Result{merged, chunks}, 5*time.Second))
	assert.Equal(t, []string{"abc"}, merged.Output())
	assert.Equal(t, "abc", strings.Join(chunks.Output(), ""))
	assert.GreaterOrEqual(t, len(chunks.Output()), 2)
}

func TestSystemAsync_MergeSplitLines(t *testing.T) {
	c := newTestCaller(t)

	r, err := c.SystemAsync([]string{"printf", "x\ny\nz\n"}, Options{SplitLines: true, MergeOutput: true})
	require.NoError(t, err)

	require.True(t, Wait(r, 5*time.Second))
	assert.Equal(t, []string{"x\ny\nz"}, r.Output())
}

func TestSystemAsync_SpawnFailure(t *testing.T) {
	c := newTestCaller(t)

	r, err := c.SystemAsync([]string{"gitbuf-no-such-program"}, Options{})
	require.NoError(t, err)

	require.True(t, Wait(r, 5*time.Second))
	assert.Equal(t, process.ExitSpawnFailed, r.ExitCode())
	require.Len(t, r.ErrOutput(), 1)
	assert.Contains(t, r.ErrOutput()[0], "gitbuf-no-such-program")
}

func TestSystemAsync_EnvAndDir(t *testing.T) {
	dir := t.TempDir()
	c := newTestCaller(t, WithEnv(map[string]string{"GITBUF_A": "caller"}), WithDir(dir))

	r, err := c.SystemAsync([]string{"sh", "-c", "echo $GITBUF_A $GITBUF_B; pwd"}, Options{
		SplitLines: true,
		Env:        map[string]string{"GITBUF_B": "call"},
	})
	require.NoError(t, err)

	require.True(t, Wait(r, 5*time.Second))
	out := r.Output()
	require.Len(t, out, 2)
	assert.Equal(t, "caller call", out[0])
	assert.True(t, strings.HasSuffix(out[1], strings.TrimPrefix(dir, "/private")))
}

func TestSystemAsync_Stdin(t *testing.T) {
	c := newTestCaller(t)

	r, err := c.SystemAsync([]string{"cat"}, Options{Stdin: []byte("fed\n"), SplitLines: true})
	require.NoError(t, err)

	require.True(t, Wait(r, 5*time.Second))
	assert.Equal(t, []string{"fed"}, r.Output())
}

func TestSystemAsyncString(t *testing.T) {
	c := newTestCaller(t)

	r, err := c.SystemAsyncString(`sh -c 'printf "%s" "two words"'`, Options{})
	require.NoError(t, err)

	require.True(t, Wait(r, 5*time.Second))
	assert.Equal(t, "two words", strings.Join(r.Output(), ""))

	_, err = c.SystemAsyncString(`echo "unterminated`, Options{})
	assert.Error(t, err)

	_, err = c.SystemAsyncString("   ", Options{})
	assert.ErrorIs(t, err, ErrEmptyCommand)
}

func TestResult_Cancel(t *testing.T) {
	c := newTestCaller(t)

	r, err := c.SystemAsync([]string{"sleep", "10"}, Options{})
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = r.Cancel()
	}()

	start := time.Now()
	assert.False(t, Wait(r, 5*time.Second))
	assert.Less(t, time.Since(start), 2*time.Second)

	assert.True(t, r.Cancelled())
	assert.False(t, r.Done())
	assert.Equal(t, StatusCancelled, r.Status())

	select {
	case <-r.Finished():
	default:
		t.Fatal("expected finished channel to be closed")
	}

	// Cancelling twice is harmless.
	assert.NoError(t, r.Cancel())
	_ = r.Job().Kill()
}

func TestResult_CancelAfterDone(t *testing.T) {
	c := newTestCaller(t)

	r, err := c.SystemAsync([]string{"true"}, Options{})
	require.NoError(t, err)
	require.True(t, Wait(r, 5*time.Second))

	assert.NoError(t, r.Cancel())
	assert.True(t, r.Done())
	assert.False(t, r.Cancelled())
}

func TestResult_OutputIsCopy(t *testing.T) {
	c := newTestCaller(t)

	r, err := c.SystemAsync([]string{"echo", "hi"}, Options{SplitLines: true})
	require.NoError(t, err)
	require.True(t, Wait(r, 5*time.Second))

	out := r.Output()
	out[0] = "changed"
	assert.Equal(t, []string{"hi"}, r.Output())
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "running", StatusRunning.String())
	assert.Equal(t, "completed", StatusCompleted.String())
	assert.Equal(t, "cancelled", StatusCancelled.String())
	assert.Equal(t, "unknown(9)", Status(9).String())
}
