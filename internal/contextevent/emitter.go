package contextevent

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Emitter keeps the context log and delivers its entries to the agent bridge
// in order on a single worker, so a slow bridge never blocks the caller.
type Emitter struct {
	bridge Bridge
	pub    Publisher
	now    func() time.Time
	log    *slog.Logger

	mu   sync.Mutex
	msgs []Message
	gen  uint64

	// sendMu guards ch against sends after Close.
	sendMu  sync.RWMutex
	closed  bool
	ch      chan delivery
	wg      sync.WaitGroup
	dropped atomic.Int64
}

type delivery struct {
	gen   uint64
	index int // -1 for deliveries that are not logged
	msg   Message
	mode  Mode
	ack   chan struct{}
}

// NewEmitter starts an Emitter. bridge and pub may be nil.
func NewEmitter(bridge Bridge, pub Publisher, now func() time.Time, queue int, log *slog.Logger) *Emitter {
	if now == nil {
		now = time.Now
	}
	e := &Emitter{
		bridge: bridge,
		pub:    pub,
		now:    now,
		log:    log,
		ch:     make(chan delivery, queue),
	}
	e.wg.Add(1)
	go e.drain()
	return e
}

// Emit logs ev and queues it for delivery. The returned entry has Sent=false;
// Messages reflects the delivery outcome once it happens.
func (e *Emitter) Emit(ev Event) Message {
	msg := Message{
		Event:   ev.Name,
		Message: ev.Message,
		Data:    ev.Data,
		Mode:    ev.Mode.String(),
		At:      e.now(),
	}
	e.mu.Lock()
	e.msgs = append(e.msgs, msg)
	d := delivery{gen: e.gen, index: len(e.msgs) - 1, msg: msg, mode: ev.Mode}
	e.mu.Unlock()

	e.enqueue(d)
	return msg
}

// Notify delivers text without logging it.
func (e *Emitter) Notify(mode Mode, text string) {
	e.enqueue(delivery{index: -1, msg: Message{Message: text, Mode: mode.String()}, mode: mode})
}

func (e *Emitter) enqueue(d delivery) {
	e.sendMu.RLock()
	defer e.sendMu.RUnlock()
	if e.closed {
		return
	}
	select {
	case e.ch <- d:
	default:
		e.dropped.Add(1)
		e.log.Warn("context delivery queue full, dropping", "event", d.msg.Event)
	}
}

func (e *Emitter) drain() {
	defer e.wg.Done()
	for d := range e.ch {
		if d.ack != nil {
			close(d.ack)
			continue
		}
		e.deliver(d)
	}
}

func (e *Emitter) deliver(d delivery) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sent := false
	if e.bridge != nil {
		switch d.mode {
		case ModeMessage:
			sent = e.bridge.SendMessage(ctx, d.msg.Message)
		case ModeContextual:
			sent = e.bridge.SendContextualUpdate(ctx, d.msg.Message)
		case ModeSmart:
			sent = e.bridge.SendSmart(ctx, d.msg.Message)
		}
	}
	if d.index < 0 {
		return
	}

	d.msg.Sent = sent
	e.mu.Lock()
	if d.gen == e.gen && d.index < len(e.msgs) {
		e.msgs[d.index].Sent = sent
	}
	e.mu.Unlock()

	if !sent {
		e.log.Debug("context message not delivered", "event", d.msg.Event, "mode", d.msg.Mode)
	}
	if e.pub != nil {
		if err := e.pub.Publish(ctx, d.msg); err != nil {
			e.log.Warn("publishing context message", "event", d.msg.Event, "error", err)
		}
	}
}

// Ping forwards a user liveness ping if the bridge supports it.
func (e *Emitter) Ping(ctx context.Context) bool {
	n, ok := e.bridge.(ActivityNotifier)
	if !ok {
		return false
	}
	return n.NotifyUserActivity(ctx)
}

// Sync blocks until every delivery queued before the call has completed.
func (e *Emitter) Sync(ctx context.Context) error {
	ack := make(chan struct{})
	e.sendMu.RLock()
	if e.closed {
		e.sendMu.RUnlock()
		return nil
	}
	select {
	case e.ch <- delivery{ack: ack}:
	case <-ctx.Done():
		e.sendMu.RUnlock()
		return ctx.Err()
	}
	e.sendMu.RUnlock()

	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Messages returns a copy of the context log.
func (e *Emitter) Messages() []Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Message(nil), e.msgs...)
}

// Clear empties the context log. Deliveries still queued are sent but no
// longer recorded.
func (e *Emitter) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.msgs = nil
	e.gen++
}

// Dropped returns the number of deliveries lost to a full queue.
func (e *Emitter) Dropped() int64 {
	return e.dropped.Load()
}

// Close stops accepting deliveries and waits for the queue to drain.
func (e *Emitter) Close() {
	e.sendMu.Lock()
	if e.closed {
		e.sendMu.Unlock()
		return
	}
	e.closed = true
	close(e.ch)
	e.sendMu.Unlock()
	e.wg.Wait()
}
