package contextevent

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
)

type call struct {
	kind string
	text string
}

type fakeBridge struct {
	mu        sync.Mutex
	calls     []call
	connected bool
	pings     int
}

func (b *fakeBridge) record(kind, text string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, call{kind, text})
	return b.connected
}

func (b *fakeBridge) SendMessage(_ context.Context, text string) bool {
	return b.record("message", text)
}

func (b *fakeBridge) SendContextualUpdate(_ context.Context, text string) bool {
	return b.record("contextual", text)
}

func (b *fakeBridge) SendSmart(_ context.Context, text string) bool {
	return b.record("smart", text)
}

func (b *fakeBridge) NotifyUserActivity(context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pings++
	return b.connected
}

func (b *fakeBridge) recorded() []call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]call(nil), b.calls...)
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []Message
	err  error
}

func (p *fakePublisher) Publish(_ context.Context, msg Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return p.err
}

var fixed = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestEmitter(t *testing.T, b Bridge, p Publisher) *Emitter {
	t.Helper()
	e := NewEmitter(b, p, func() time.Time { return fixed }, 64, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(e.Close)
	return e
}

func waitDelivered(t *testing.T, e *Emitter) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, e.Sync(ctx))
}

func TestEmitRoutesByMode(t *testing.T) {
	b := &fakeBridge{connected: true}
	e := newTestEmitter(t, b, nil)

	e.Emit(Event{Name: "set-completed", Message: "Set 1 done.", Mode: ModeMessage})
	e.Emit(Event{Name: "rest-started", Message: "Rest 90 seconds.", Mode: ModeContextual})
	e.Emit(Event{Name: "rest-ending", Message: "10 seconds left.", Mode: ModeSmart})
	waitDelivered(t, e)

	assert.Equal(t, []call{
		{"message", "Set 1 done."},
		{"contextual", "Rest 90 seconds."},
		{"smart", "10 seconds left."},
	}, b.recorded())

	msgs := e.Messages()
	require.Len(t, msgs, 3)
	for _, m := range msgs {
		assert.True(t, m.Sent, m.Event)
		assert.Equal(t, fixed, m.At)
	}
	assert.Equal(t, "smart", msgs[2].Mode)
}

func TestEmitLogsBeforeDelivery(t *testing.T) {
	e := newTestEmitter(t, &fakeBridge{connected: true}, nil)

	msg := e.Emit(Event{Name: "workout-selected", Message: "Push Day selected.", Data: map[string]any{"total_sets": 4}})
	assert.False(t, msg.Sent)
	assert.Equal(t, "workout-selected", e.Messages()[0].Event)
	assert.Equal(t, 4, e.Messages()[0].Data["total_sets"])
}

func TestUndeliveredMessagesStayUnsent(t *testing.T) {
	e := newTestEmitter(t, &fakeBridge{connected: false}, nil)
	e.Emit(Event{Name: "set-started", Message: "Go.", Mode: ModeContextual})
	waitDelivered(t, e)
	assert.False(t, e.Messages()[0].Sent)

	noBridge := newTestEmitter(t, nil, nil)
	noBridge.Emit(Event{Name: "set-started", Message: "Go."})
	waitDelivered(t, noBridge)
	assert.False(t, noBridge.Messages()[0].Sent)
	assert.False(t, noBridge.Ping(context.Background()))
}

func TestNotifyIsNotLogged(t *testing.T) {
	b := &fakeBridge{connected: true}
	e := newTestEmitter(t, b, nil)

	e.Notify(ModeContextual, "status line")
	waitDelivered(t, e)
	assert.Equal(t, []call{{"contextual", "status line"}}, b.recorded())
	assert.Empty(t, e.Messages())
}

func TestClearDropsLog(t *testing.T) {
	e := newTestEmitter(t, &fakeBridge{connected: true}, nil)
	e.Emit(Event{Name: "a", Message: "a"})
	waitDelivered(t, e)
	e.Clear()
	assert.Empty(t, e.Messages())

	e.Emit(Event{Name: "b", Message: "b"})
	waitDelivered(t, e)
	msgs := e.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "b", msgs[0].Event)
	assert.True(t, msgs[0].Sent)
}

func TestPublisherMirrorsDeliveries(t *testing.T) {
	pub := &fakePublisher{err: errors.New("stream unavailable")}
	e := newTestEmitter(t, &fakeBridge{connected: true}, pub)

	e.Emit(Event{Name: "set-completed", Message: "done", Mode: ModeMessage})
	waitDelivered(t, e)

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.msgs, 1)
	assert.Equal(t, "set-completed", pub.msgs[0].Event)
	assert.True(t, pub.msgs[0].Sent)
}

func TestPingUsesActivityNotifier(t *testing.T) {
	b := &fakeBridge{connected: true}
	e := newTestEmitter(t, b, nil)
	assert.True(t, e.Ping(context.Background()))
	assert.Equal(t, 1, b.pings)
}

func TestCloseDrainsAndIsIdempotent(t *testing.T) {
	b := &fakeBridge{connected: true}
	e := NewEmitter(b, nil, nil, 64, slog.New(slog.NewTextHandler(io.Discard, nil)))
	for range 10 {
		e.Emit(Event{Name: "tick", Message: "x"})
	}
	e.Close()
	e.Close()
	assert.Len(t, b.recorded(), 10)

	// Emitting after Close only logs.
	e.Emit(Event{Name: "late", Message: "y"})
	assert.Len(t, b.recorded(), 10)
	assert.NoError(t, e.Sync(context.Background()))
}
