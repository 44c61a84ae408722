package session

import (
	"time"

	"github.com/claude/spotter/internal/contextevent"
	"github.com/claude/spotter/internal/timer"
)

// Timer registry slots used by a session.
const (
	KeySetTick      timer.Key = "set-tick"
	KeyRestTick     timer.Key = "rest-tick"
	KeyRestWarning  timer.Key = "rest-warning"
	KeyRestComplete timer.Key = "rest-complete"
	KeyAutoRest     timer.Key = "auto-rest"
	KeyPrepare      timer.Key = "prepare"
	KeyActivityPing timer.Key = "activity-ping"
	KeyAutoStart    timer.Key = "auto-start"
)

// PhaseKeys are all the slots tied to the workout's progress.
var PhaseKeys = []timer.Key{
	KeySetTick, KeyRestTick, KeyRestWarning, KeyRestComplete,
	KeyAutoRest, KeyPrepare, KeyActivityPing, KeyAutoStart,
}

var restKeys = []timer.Key{KeyRestTick, KeyRestWarning, KeyRestComplete}

// TickKey returns the registry slot of a countdown.
func TickKey(kind TimerKind) timer.Key {
	if kind == TimerRest {
		return KeyRestTick
	}
	return KeySetTick
}

// Effect is a side effect requested by a transition, executed in order.
type Effect interface {
	effect()
}

// CancelTimers stops the given registry slots.
type CancelTimers struct{ Keys []timer.Key }

// CancelAllTimers empties the registry.
type CancelAllTimers struct{}

// StartCountdown arms the 1s tick of a countdown. The countdown dispatches
// Tick and, at zero, SetTimerExpired or RestTimerExpired with Epoch.
type StartCountdown struct {
	Kind     TimerKind
	Duration time.Duration
	Epoch    uint64
}

// Schedule dispatches Command once after Delay unless Key is cancelled.
type Schedule struct {
	Key     timer.Key
	Delay   time.Duration
	Command Command
}

// StartActivityPing starts the liveness ping to the agent bridge.
type StartActivityPing struct{ Interval time.Duration }

// Emit appends a context message and delivers it to the agent.
type Emit struct{ Event contextevent.Event }

// AdjustmentKey identifies a debounced adjustment write.
type AdjustmentKey struct {
	SessionID string
	EntryID   string
	SetNumber int
	Field     Field
}

// FieldUpdate is the payload of one adjustment write.
type FieldUpdate struct {
	SessionID string
	EntryID   string
	SetNumber int
	Field     Field
	Value     float64
}

// PersistAdjustment schedules a debounced write of an adjusted field.
type PersistAdjustment struct {
	Key    AdjustmentKey
	Update FieldUpdate
}

// FlushAdjustments runs every pending adjustment write before continuing.
type FlushAdjustments struct{}

// Completion is the payload of the one completion write of a session.
type Completion struct {
	Status             string        `json:"status"`
	CompletedAt        time.Time     `json:"completed_at"`
	IsFullyCompleted   bool          `json:"is_fully_completed"`
	FinishedEarly      bool          `json:"finished_early"`
	CompletedExercises int           `json:"completed_exercises"`
	CompletedSets      int           `json:"completed_sets"`
	TotalExercises     int           `json:"total_exercises"`
	TotalSets          int           `json:"total_sets"`
	TotalTime          time.Duration `json:"total_time"`
	TotalPauseTime     time.Duration `json:"total_pause_time"`
}

// PersistCompletion writes the completion of SessionID.
type PersistCompletion struct {
	SessionID  string
	Completion Completion
}

// RecordSummary hands the final summary to the engine for logging/metrics.
type RecordSummary struct{ Summary Summary }

// ResetSession drains and empties the adjustment debouncer before a new
// session starts.
type ResetSession struct{}

// ClearMessages empties the context message log.
type ClearMessages struct{}

func (CancelTimers) effect()      {}
func (CancelAllTimers) effect()   {}
func (StartCountdown) effect()    {}
func (Schedule) effect()          {}
func (StartActivityPing) effect() {}
func (Emit) effect()              {}
func (PersistAdjustment) effect() {}
func (FlushAdjustments) effect()  {}
func (PersistCompletion) effect() {}
func (RecordSummary) effect()     {}
func (ResetSession) effect()      {}
func (ClearMessages) effect()     {}
