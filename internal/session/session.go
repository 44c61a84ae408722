// Package session holds the state of the active workout and the pure
// transition function that applies commands to it.
//
// Transition never touches clocks, timers or the network. It returns the
// next state plus an ordered list of effects that the engine executes.
package session

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/claude/spotter/internal/timer"
)

// Status is the discriminator of the session state machine.
type Status string

const (
	StatusIdle               Status = "idle"
	StatusPreparing          Status = "preparing"
	StatusExercising         Status = "exercising"
	StatusSetComplete        Status = "set-complete"
	StatusResting            Status = "resting"
	StatusRestEnding         Status = "rest-ending"
	StatusExerciseTransition Status = "exercise-transition"
	StatusPaused             Status = "paused"
	StatusWorkoutCompleted   Status = "workout-completed"
)

// PlaceholderPrefix marks a session id that was generated on the client and
// never assigned by the server.
const PlaceholderPrefix = "temp-"

// NewPlaceholderID returns a fresh client-local session id.
func NewPlaceholderID() string {
	return PlaceholderPrefix + uuid.NewString()
}

// Set is one planned set of an exercise. Times are in seconds.
type Set struct {
	Number        int     `json:"number"`
	TargetReps    int     `json:"target_reps"`
	TargetWeight  float64 `json:"target_weight"`
	TargetTime    int     `json:"target_time"`
	RestTimeAfter int     `json:"rest_time_after"`
	IsCompleted   bool    `json:"is_completed"`
	ActualReps    *int    `json:"actual_reps,omitempty"`
}

// Exercise is an ordered list of sets. EntryID identifies the workout entry
// row the sets are persisted under.
type Exercise struct {
	EntryID     string `json:"entry_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Sets        []Set  `json:"sets"`
}

// Session is one workout being executed end to end.
type Session struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Exercises []Exercise `json:"exercises"`
}

// IsPlaceholder reports whether the session has no server-assigned id yet.
func (s *Session) IsPlaceholder() bool {
	return s.ID == "" || strings.HasPrefix(s.ID, PlaceholderPrefix)
}

// TotalSets counts the sets across all exercises.
func (s *Session) TotalSets() int {
	n := 0
	for _, ex := range s.Exercises {
		n += len(ex.Sets)
	}
	return n
}

func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	c := &Session{ID: s.ID, Name: s.Name, Exercises: make([]Exercise, len(s.Exercises))}
	for i, ex := range s.Exercises {
		ex.Sets = append([]Set(nil), ex.Sets...)
		for j := range ex.Sets {
			if r := ex.Sets[j].ActualReps; r != nil {
				v := *r
				ex.Sets[j].ActualReps = &v
			}
		}
		c.Exercises[i] = ex
	}
	return c
}

// Field is an adjustable set parameter.
type Field string

const (
	FieldWeight   Field = "weight"
	FieldReps     Field = "reps"
	FieldRestTime Field = "rest_time"
)

// SetRecord is one entry of the completed-sets log.
type SetRecord struct {
	ExerciseName string    `json:"exercise_name"`
	SetNumber    int       `json:"set_number"`
	ActualReps   int       `json:"actual_reps"`
	Weight       float64   `json:"weight"`
	TimedOut     bool      `json:"timed_out,omitempty"`
	CompletedAt  time.Time `json:"completed_at"`
}

// Adjustment is one entry of the adjustments log.
type Adjustment struct {
	Field        Field     `json:"field"`
	ExerciseName string    `json:"exercise_name"`
	SetNumber    int       `json:"set_number"`
	From         float64   `json:"from"`
	To           float64   `json:"to"`
	Reason       string    `json:"reason,omitempty"`
	At           time.Time `json:"at"`
}

// ActiveWorkout is the progress view of the running session.
type ActiveWorkout struct {
	CurrentExerciseIndex int           `json:"current_exercise_index"`
	CurrentSetIndex      int           `json:"current_set_index"`
	StartTime            time.Time     `json:"start_time"`
	TotalPauseTime       time.Duration `json:"total_pause_time"`
	PauseStartedAt       time.Time     `json:"pause_started_at,omitzero"`
	CompletedExercises   int           `json:"completed_exercises"`
	CompletedSets        int           `json:"completed_sets"`
	TotalExercises       int           `json:"total_exercises"`
	TotalSets            int           `json:"total_sets"`
	SetsCompleted        []SetRecord   `json:"sets_completed"`
	AdjustmentsMade      []Adjustment  `json:"adjustments_made"`
	FinishedEarly        bool          `json:"finished_early,omitempty"`
	CompletedAt          time.Time     `json:"completed_at,omitzero"`
}

func (w *ActiveWorkout) clone() *ActiveWorkout {
	if w == nil {
		return nil
	}
	c := *w
	c.SetsCompleted = append([]SetRecord(nil), w.SetsCompleted...)
	c.AdjustmentsMade = append([]Adjustment(nil), w.AdjustmentsMade...)
	return &c
}

// TimerKind distinguishes the two countdowns.
type TimerKind string

const (
	TimerSet  TimerKind = "set"
	TimerRest TimerKind = "rest"
)

// TimerState is a countdown snapshot. Remaining stays within [0, Duration].
// A countdown runs in segments: pausing freezes Remaining and resuming
// starts a new segment of SegmentTotal = Remaining at SegmentStart.
type TimerState struct {
	StartTime    time.Time     `json:"start_time"`
	Duration     time.Duration `json:"duration"`
	Remaining    time.Duration `json:"remaining"`
	Elapsed      time.Duration `json:"elapsed"`
	IsLastSet    bool          `json:"is_last_set,omitempty"`
	Paused       bool          `json:"paused,omitempty"`
	SegmentStart time.Time     `json:"-"`
	SegmentTotal time.Duration `json:"-"`
}

func newTimer(now time.Time, d time.Duration) *TimerState {
	return &TimerState{
		StartTime:    now,
		Duration:     d,
		Remaining:    d,
		SegmentStart: now,
		SegmentTotal: d,
	}
}

// Refresh recomputes Remaining and Elapsed from the wall clock. A snapshot
// decoded from JSON has no segment and keeps its Remaining.
func (t *TimerState) Refresh(now time.Time) {
	if !t.Paused && !t.SegmentStart.IsZero() {
		t.Remaining = timer.Remaining(t.SegmentTotal, t.SegmentStart, now)
	}
	if t.Remaining > t.Duration {
		t.Remaining = t.Duration
	}
	t.Elapsed = t.Duration - t.Remaining
}

// restartSegment begins a new running segment from the current Remaining.
func (t *TimerState) restartSegment(now time.Time) {
	t.Paused = false
	t.SegmentStart = now
	t.SegmentTotal = t.Remaining
}

// Timers holds the two countdowns. At most one is non-nil.
type Timers struct {
	Set  *TimerState `json:"set_timer,omitempty"`
	Rest *TimerState `json:"rest_timer,omitempty"`
}

// State is the single source of truth for the running workout.
type State struct {
	Status     Status         `json:"status"`
	PausedFrom Status         `json:"paused_from,omitempty"`
	Session    *Session       `json:"session,omitempty"`
	Workout    *ActiveWorkout `json:"active_workout,omitempty"`
	Timers     Timers         `json:"timers"`

	// Epoch changes whenever the timers of a phase are cancelled or
	// re-armed. Timer-originated commands carry the epoch they were armed
	// under and are rejected once it has moved on.
	Epoch uint64 `json:"-"`
}

// Initial returns the idle state with no session.
func Initial() State {
	return State{Status: StatusIdle}
}

// Clone returns a deep copy that shares nothing with s.
func (s State) Clone() State {
	c := s
	c.Session = s.Session.clone()
	c.Workout = s.Workout.clone()
	if s.Timers.Set != nil {
		t := *s.Timers.Set
		c.Timers.Set = &t
	}
	if s.Timers.Rest != nil {
		t := *s.Timers.Rest
		c.Timers.Rest = &t
	}
	return c
}

// CurrentExercise returns the exercise under the pointer, or nil.
func (s State) CurrentExercise() *Exercise {
	if s.Session == nil || s.Workout == nil {
		return nil
	}
	i := s.Workout.CurrentExerciseIndex
	if i < 0 || i >= len(s.Session.Exercises) {
		return nil
	}
	return &s.Session.Exercises[i]
}

// CurrentSet returns the set under the pointer, or nil.
func (s State) CurrentSet() *Set {
	ex := s.CurrentExercise()
	if ex == nil {
		return nil
	}
	i := s.Workout.CurrentSetIndex
	if i < 0 || i >= len(ex.Sets) {
		return nil
	}
	return &ex.Sets[i]
}

// Active reports whether a session is loaded and not yet completed.
func (s State) Active() bool {
	return s.Session != nil && s.Workout != nil && s.Status != StatusWorkoutCompleted
}

// Policy holds the pacing constants and the open behavioral choices of the
// state machine.
type Policy struct {
	// AutoStartNextSet starts the next set as soon as a non-final rest runs
	// out instead of waiting for a confirmation.
	AutoStartNextSet bool

	PrepareDelay         time.Duration
	AutoRestDelay        time.Duration
	ExerciseAdvanceDelay time.Duration
	RestWarningLead      time.Duration
	RestWarningFloor     time.Duration
	ActivityPingInterval time.Duration
}

// DefaultPolicy returns the standard pacing.
func DefaultPolicy() Policy {
	return Policy{
		PrepareDelay:         time.Second,
		AutoRestDelay:        500 * time.Millisecond,
		ExerciseAdvanceDelay: time.Second,
		RestWarningLead:      10 * time.Second,
		RestWarningFloor:     time.Second,
		ActivityPingInterval: 30 * time.Second,
	}
}

// restWarningDelay is when the rest-ending warning fires for a rest of d.
func (p Policy) restWarningDelay(d time.Duration) time.Duration {
	w := d - p.RestWarningLead
	if w < p.RestWarningFloor {
		w = p.RestWarningFloor
	}
	return w
}
