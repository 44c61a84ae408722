package debounce

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claude/spotter/internal/timer"
)

type write struct {
	key   string
	value float64
}

type recorder struct {
	mu     sync.Mutex
	writes []write
	err    error
}

func (r *recorder) write(_ context.Context, key string, v float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = append(r.writes, write{key, v})
	return r.err
}

func (r *recorder) all() []write {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]write(nil), r.writes...)
}

func newTestDebouncer(clk timer.Clock, rec *recorder) *Debouncer[string, float64] {
	return New(clk, rec.write, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestBurstCoalescesToLastValue(t *testing.T) {
	clk := timer.NewFakeClock(time.Unix(0, 0))
	rec := &recorder{}
	d := newTestDebouncer(clk, rec)

	for i := 1; i <= 5; i++ {
		d.Schedule("set-1/weight", 40+float64(i)/2, 0)
		clk.Advance(150 * time.Millisecond)
	}
	assert.Empty(t, rec.all())
	assert.Equal(t, 1, d.Pending())

	clk.Advance(800 * time.Millisecond)
	assert.Equal(t, []write{{"set-1/weight", 42.5}}, rec.all())
	assert.Zero(t, d.Pending())
}

func TestKeysDebounceIndependently(t *testing.T) {
	clk := timer.NewFakeClock(time.Unix(0, 0))
	rec := &recorder{}
	d := newTestDebouncer(clk, rec)

	d.Schedule("weight", 50, 0)
	clk.Advance(500 * time.Millisecond)
	d.Schedule("reps", 12, 0)
	clk.Advance(300 * time.Millisecond)
	assert.Equal(t, []write{{"weight", 50}}, rec.all())

	clk.Advance(500 * time.Millisecond)
	assert.Equal(t, []write{{"weight", 50}, {"reps", 12}}, rec.all())
}

func TestFlushAllWritesOnce(t *testing.T) {
	clk := timer.NewFakeClock(time.Unix(0, 0))
	rec := &recorder{}
	d := newTestDebouncer(clk, rec)

	d.Schedule("weight", 45, 0)
	d.Schedule("weight", 47.5, 0)
	d.Schedule("reps", 6, time.Minute)

	require.NoError(t, d.FlushAll(context.Background()))
	assert.ElementsMatch(t, []write{{"weight", 47.5}, {"reps", 6}}, rec.all())
	assert.Zero(t, clk.Pending())

	// Nothing left for the timers or a second flush.
	clk.Advance(2 * time.Minute)
	require.NoError(t, d.FlushAll(context.Background()))
	assert.Len(t, rec.all(), 2)
}

func TestFlushAllReportsWriteErrors(t *testing.T) {
	clk := timer.NewFakeClock(time.Unix(0, 0))
	rec := &recorder{err: errors.New("connection refused")}
	d := newTestDebouncer(clk, rec)

	d.Schedule("weight", 45, 0)
	err := d.FlushAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestClearDropsPending(t *testing.T) {
	clk := timer.NewFakeClock(time.Unix(0, 0))
	rec := &recorder{}
	d := newTestDebouncer(clk, rec)

	d.Schedule("weight", 45, 0)
	d.Schedule("reps", 8, 0)
	assert.Equal(t, 2, d.Clear())

	clk.Advance(time.Second)
	assert.Empty(t, rec.all())
}

func TestRealClockWrite(t *testing.T) {
	rec := &recorder{}
	d := newTestDebouncer(timer.System(), rec)

	d.Schedule("weight", 60, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return len(rec.all()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestDrainDetachesBeforeWriting(t *testing.T) {
	clk := timer.NewFakeClock(time.Unix(0, 0))
	rec := &recorder{}
	d := newTestDebouncer(clk, rec)

	d.Schedule("weight", 45, 0)
	flush := d.Drain()
	d.Schedule("weight", 50, 0)

	require.NoError(t, flush(context.Background()))
	assert.Equal(t, []write{{"weight", 45}}, rec.all())
	assert.Equal(t, 1, d.Pending())

	clk.Advance(time.Second)
	assert.Equal(t, []write{{"weight", 45}, {"weight", 50}}, rec.all())
}
