// Package debounce coalesces bursts of writes per key so that only the last
// payload scheduled within the quiet period is written.
package debounce

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/claude/spotter/internal/timer"
)

// DefaultDelay is the quiet period used when Schedule is given none.
const DefaultDelay = 800 * time.Millisecond

// Writer persists one payload.
type Writer[K comparable, P any] func(ctx context.Context, key K, payload P) error

// Debouncer holds at most one pending write per key. Scheduling a key that
// is already pending replaces its payload and restarts its delay.
type Debouncer[K comparable, P any] struct {
	clock   timer.Clock
	write   Writer[K, P]
	log     *slog.Logger
	timeout time.Duration

	mu       sync.Mutex
	pending  map[K]*entry[P]
	inflight sync.WaitGroup
}

type entry[P any] struct {
	payload P
	stop    timer.Stopper
}

// New creates a Debouncer. Timed writes run with their own context bounded
// by timeout.
func New[K comparable, P any](clk timer.Clock, write Writer[K, P], timeout time.Duration, log *slog.Logger) *Debouncer[K, P] {
	return &Debouncer[K, P]{
		clock:   clk,
		write:   write,
		log:     log,
		timeout: timeout,
		pending: make(map[K]*entry[P]),
	}
}

// Schedule arms a write of payload for key after delay, or DefaultDelay when
// delay is not positive.
func (d *Debouncer[K, P]) Schedule(key K, payload P, delay time.Duration) {
	if delay <= 0 {
		delay = DefaultDelay
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if prev, ok := d.pending[key]; ok {
		prev.stop.Stop()
	}
	e := &entry[P]{payload: payload}
	e.stop = d.clock.AfterFunc(delay, func() { d.fire(key, e) })
	d.pending[key] = e
}

func (d *Debouncer[K, P]) fire(key K, e *entry[P]) {
	d.mu.Lock()
	if d.pending[key] != e {
		// Replaced, flushed or cleared since it was armed.
		d.mu.Unlock()
		return
	}
	delete(d.pending, key)
	d.inflight.Add(1)
	d.mu.Unlock()
	defer d.inflight.Done()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	if err := d.write(ctx, key, e.payload); err != nil {
		d.log.Error("debounced write failed", "key", fmt.Sprint(key), "error", err)
	}
}

// FlushAll writes every pending payload now and waits for them, and for any
// timed write already running, to finish. Each pending payload is written
// exactly once.
func (d *Debouncer[K, P]) FlushAll(ctx context.Context) error {
	return d.Drain()(ctx)
}

// Drain detaches every pending payload and returns the function that writes
// them. Payloads scheduled after Drain returns belong to the next flush.
func (d *Debouncer[K, P]) Drain() func(ctx context.Context) error {
	d.mu.Lock()
	batch := d.pending
	d.pending = make(map[K]*entry[P])
	for _, e := range batch {
		e.stop.Stop()
	}
	d.mu.Unlock()

	return func(ctx context.Context) error {
		var g errgroup.Group
		for key, e := range batch {
			g.Go(func() error {
				if err := d.write(ctx, key, e.payload); err != nil {
					return fmt.Errorf("flushing %v: %w", key, err)
				}
				return nil
			})
		}
		err := g.Wait()
		d.inflight.Wait()
		return err
	}
}

// Clear drops every pending payload without writing it.
func (d *Debouncer[K, P]) Clear() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := len(d.pending)
	for _, e := range d.pending {
		e.stop.Stop()
	}
	d.pending = make(map[K]*entry[P])
	return n
}

// Pending returns the number of keys awaiting a write.
func (d *Debouncer[K, P]) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}
