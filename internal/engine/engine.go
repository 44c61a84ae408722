// Package engine runs a workout session: it serializes commands through the
// session state machine and executes the effects each transition requests.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/claude/spotter/internal/contextevent"
	"github.com/claude/spotter/internal/debounce"
	"github.com/claude/spotter/internal/session"
	"github.com/claude/spotter/internal/telemetry"
	"github.com/claude/spotter/internal/timer"
)

// ErrIgnored wraps the reason a command left the state unchanged.
var ErrIgnored = errors.New("command ignored")

// keyAgentSync is the registry slot of the delayed agent context sync.
const keyAgentSync timer.Key = "agent-sync"

// Store persists session progress.
type Store interface {
	CompleteSession(ctx context.Context, id string, c session.Completion) error
	UpdateEntryField(ctx context.Context, u session.FieldUpdate) error
}

// Options configures an Engine. Zero durations take their defaults.
type Options struct {
	Clock     timer.Clock
	Policy    session.Policy
	Store     Store
	Bridge    contextevent.Bridge
	Publisher contextevent.Publisher
	Metrics   *telemetry.Metrics

	DebounceDelay  time.Duration
	WriteTimeout   time.Duration
	AgentSyncDelay time.Duration
	QueueSize      int

	// MusicStatus describes the music player for the agent sync. Optional.
	MusicStatus func() string
}

// Engine owns the state of one workout at a time. Commands are applied one
// at a time; timers, writes and bridge calls never hold the lock while they
// wait.
type Engine struct {
	clock          timer.Clock
	policy         session.Policy
	store          Store
	metrics        *telemetry.Metrics
	log            *slog.Logger
	debounceDelay  time.Duration
	writeTimeout   time.Duration
	agentSyncDelay time.Duration
	musicStatus    func() string

	mu             sync.Mutex
	state          session.State
	summary        *session.Summary
	agentConnected bool

	timers    *timer.Registry
	debouncer *debounce.Debouncer[session.AdjustmentKey, session.FieldUpdate]
	emitter   *contextevent.Emitter
	bg        sync.WaitGroup
}

// New creates an idle Engine.
func New(opts Options, log *slog.Logger) *Engine {
	if opts.Clock == nil {
		opts.Clock = timer.System()
	}
	if opts.Policy == (session.Policy{}) {
		opts.Policy = session.DefaultPolicy()
	}
	if opts.DebounceDelay <= 0 {
		opts.DebounceDelay = debounce.DefaultDelay
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.AgentSyncDelay <= 0 {
		opts.AgentSyncDelay = 2 * time.Second
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}

	e := &Engine{
		clock:          opts.Clock,
		policy:         opts.Policy,
		store:          opts.Store,
		metrics:        opts.Metrics,
		log:            log,
		debounceDelay:  opts.DebounceDelay,
		writeTimeout:   opts.WriteTimeout,
		agentSyncDelay: opts.AgentSyncDelay,
		musicStatus:    opts.MusicStatus,
		state:          session.Initial(),
		timers:         timer.NewRegistry(),
	}
	e.debouncer = debounce.New(opts.Clock, e.writeField, opts.WriteTimeout, log)
	e.emitter = contextevent.NewEmitter(opts.Bridge, opts.Publisher, opts.Clock.Now, opts.QueueSize, log)
	return e
}

// Dispatch applies cmd to the current state. A command that does not apply
// returns an error wrapping ErrIgnored and the reason.
func (e *Engine) Dispatch(cmd session.Command) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ctx := context.Background()
	prev := e.state.Status
	next, effects, err := session.Transition(e.state, cmd, e.clock.Now(), e.policy)
	if err != nil {
		e.metrics.Command(ctx, cmd.Name(), true)
		return fmt.Errorf("%w: %w", ErrIgnored, err)
	}
	e.metrics.Command(ctx, cmd.Name(), false)
	e.state = next
	if prev != next.Status {
		e.log.Debug("session status changed", "command", cmd.Name(), "from", prev, "to", next.Status)
	}
	e.apply(ctx, cmd, effects)
	return nil
}

// dispatchTimer applies a timer-originated command. Stale and inapplicable
// timer commands are expected after cancellation and only logged.
func (e *Engine) dispatchTimer(cmd session.Command) {
	if err := e.Dispatch(cmd); err != nil {
		e.log.Debug("timer command dropped", "command", cmd.Name(), "reason", err)
	}
}

func (e *Engine) apply(ctx context.Context, cmd session.Command, effects []session.Effect) {
	var jobs []func(context.Context)

	for _, eff := range effects {
		switch eff := eff.(type) {
		case session.CancelTimers:
			e.timers.Cancel(eff.Keys...)
		case session.CancelAllTimers:
			e.timers.CancelAll()
		case session.StartCountdown:
			e.startCountdown(eff)
		case session.Schedule:
			next := eff.Command
			e.timers.Schedule(e.clock, eff.Key, eff.Delay, func() { e.dispatchTimer(next) })
		case session.StartActivityPing:
			e.timers.Set(session.KeyActivityPing, timer.Every(e.clock, eff.Interval, e.ping))
		case session.Emit:
			e.emitter.Emit(eff.Event)
		case session.ClearMessages:
			e.emitter.Clear()
		case session.PersistAdjustment:
			e.metrics.Adjusted(ctx, string(eff.Key.Field))
			e.debouncer.Schedule(eff.Key, eff.Update, e.debounceDelay)
		case session.FlushAdjustments, session.ResetSession:
			flush := e.debouncer.Drain()
			jobs = append(jobs, func(ctx context.Context) {
				if err := flush(ctx); err != nil {
					e.log.Error("flushing adjustments", "error", err)
				}
			})
		case session.PersistCompletion:
			jobs = append(jobs, e.completionJob(eff))
		case session.RecordSummary:
			e.recordSummary(ctx, eff.Summary)
		default:
			e.log.Warn("unhandled effect", "effect", fmt.Sprintf("%T", eff))
		}
	}

	switch c := cmd.(type) {
	case session.CompleteSet:
		e.metrics.SetCompleted(ctx, false)
	case session.SetTimerExpired:
		e.metrics.SetCompleted(ctx, true)
	case session.SelectWorkout:
		e.summary = nil
		e.log.Info("workout selected", "session_id", c.Session.ID, "name", c.Session.Name)
	case session.Cleanup:
		e.summary = nil
	}

	if len(jobs) > 0 {
		e.bg.Add(1)
		go func() {
			defer e.bg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), e.writeTimeout)
			defer cancel()
			for _, job := range jobs {
				job(ctx)
			}
		}()
	}
}

func (e *Engine) startCountdown(sc session.StartCountdown) {
	kind, epoch := sc.Kind, sc.Epoch
	onTick := func(time.Duration) {
		e.dispatchTimer(session.Tick{Kind: kind, Epoch: epoch})
	}
	onExpire := func() {
		if kind == session.TimerRest {
			e.dispatchTimer(session.RestTimerExpired{Epoch: epoch})
			return
		}
		e.dispatchTimer(session.SetTimerExpired{Epoch: epoch})
	}
	e.timers.Set(session.TickKey(kind), timer.StartCountdown(e.clock, sc.Duration, onTick, onExpire))
}

func (e *Engine) ping() {
	ctx, cancel := context.WithTimeout(context.Background(), e.writeTimeout)
	defer cancel()
	if !e.emitter.Ping(ctx) {
		e.log.Debug("activity ping not delivered")
	}
}

func (e *Engine) writeField(ctx context.Context, _ session.AdjustmentKey, u session.FieldUpdate) error {
	if e.store == nil {
		return nil
	}
	if err := e.store.UpdateEntryField(ctx, u); err != nil {
		e.metrics.PersistFailed(ctx, "adjustment")
		return fmt.Errorf("updating %s of set %d: %w", u.Field, u.SetNumber, err)
	}
	return nil
}

func (e *Engine) completionJob(pc session.PersistCompletion) func(context.Context) {
	return func(ctx context.Context) {
		if e.store == nil {
			return
		}
		if err := e.store.CompleteSession(ctx, pc.SessionID, pc.Completion); err != nil {
			e.metrics.PersistFailed(ctx, "completion")
			e.log.Error("completing session", "session_id", pc.SessionID, "error", err)
			return
		}
		e.log.Info("session completed", "session_id", pc.SessionID,
			"fully_completed", pc.Completion.IsFullyCompleted)
	}
}

func (e *Engine) recordSummary(ctx context.Context, sum session.Summary) {
	e.summary = &sum
	e.metrics.WorkoutFinished(ctx, sum.TotalTime.Seconds(), sum.FinishedEarly)
	e.log.Info("workout finished",
		"session_id", sum.SessionID,
		"finished_early", sum.FinishedEarly,
		"completed_sets", sum.CompletedSets,
		"total_sets", sum.TotalSets,
		"completed_exercises", sum.CompletedExercises,
		"total_exercises", sum.TotalExercises,
		"total_time", sum.TotalTime,
		"pause_time", sum.TotalPauseTime)
}

// SetVoiceAgentStatus records the agent connection. After a connect the
// agent receives one status sync once the connection has settled.
func (e *Engine) SetVoiceAgentStatus(connected bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.agentConnected = connected
	if !connected {
		e.timers.Cancel(keyAgentSync)
		return
	}
	e.timers.Schedule(e.clock, keyAgentSync, e.agentSyncDelay, e.syncAgent)
}

func (e *Engine) syncAgent() {
	e.mu.Lock()
	if !e.agentConnected {
		e.mu.Unlock()
		return
	}
	text := e.state.StatusLine(e.clock.Now())
	e.mu.Unlock()

	if e.musicStatus != nil {
		if music := e.musicStatus(); music != "" {
			text += " Music: " + music
		}
	}
	e.emitter.Notify(contextevent.ModeContextual, text)
}

// Snapshot is a point-in-time copy of the engine state.
type Snapshot struct {
	At             time.Time        `json:"at"`
	State          session.State    `json:"state"`
	Summary        *session.Summary `json:"summary,omitempty"`
	AgentConnected bool             `json:"agent_connected"`
	ActiveTimers   []timer.Key      `json:"active_timers"`
}

// Snapshot returns the current state with countdowns refreshed to now.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.state.Clone()
	now := e.clock.Now()
	for _, t := range []*session.TimerState{s.Timers.Set, s.Timers.Rest} {
		if t != nil {
			t.Refresh(now)
		}
	}
	snap := Snapshot{At: now, State: s, AgentConnected: e.agentConnected, ActiveTimers: e.timers.Keys()}
	if e.summary != nil {
		sum := *e.summary
		snap.Summary = &sum
	}
	return snap
}

// Messages returns the context log.
func (e *Engine) Messages() []contextevent.Message {
	return e.emitter.Messages()
}

// Wait blocks until background writes and queued agent deliveries finish.
func (e *Engine) Wait(ctx context.Context) error {
	e.bg.Wait()
	return e.emitter.Sync(ctx)
}

// Close cancels every timer, flushes pending adjustments and stops the
// emitter.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	e.timers.CancelAll()
	flush := e.debouncer.Drain()
	e.mu.Unlock()

	err := flush(ctx)
	e.bg.Wait()
	e.emitter.Close()
	if err != nil {
		return fmt.Errorf("flushing adjustments: %w", err)
	}
	return nil
}
