package session

// Command is an instruction applied by Transition.
//
// Commands carrying an Epoch originate from timers. A zero Epoch on
// CompleteExercise means the caller issued it directly. User commands
// decode from the JSON bodies of the HTTP API.
type Command interface {
	Name() string
}

type (
	SelectWorkout struct{ Session Session }
	// BeginPreparation is the paced follow-up of SelectWorkout and of
	// advancing to the next exercise.
	BeginPreparation        struct{ Epoch uint64 }
	ConfirmReadyAndStartSet struct{}
	CompleteSet             struct {
		ActualReps *int `json:"actual_reps,omitempty"`
	}
	SetTimerExpired   struct{ Epoch uint64 }
	StartRest         struct{ Epoch uint64 }
	TriggerRestEnding struct{ Epoch uint64 }
	RestTimerExpired  struct{ Epoch uint64 }
	Tick              struct {
		Kind  TimerKind
		Epoch uint64
	}
	PauseSet struct {
		Reason string `json:"reason,omitempty"`
	}
	ResumeSet    struct{}
	AdjustWeight struct {
		NewWeight float64 `json:"new_weight"`
		Reason    string  `json:"reason,omitempty"`
	}
	AdjustReps struct {
		NewReps int    `json:"new_reps"`
		Reason  string `json:"reason,omitempty"`
	}
	AdjustRestTime struct {
		NewRestTime int    `json:"new_rest_time"`
		Reason      string `json:"reason,omitempty"`
	}
	ExtendRest struct {
		AdditionalSeconds int `json:"additional_seconds"`
	}
	JumpToSet struct {
		SetNumber int `json:"set_number"`
	}
	PreviousSet      struct{}
	NextSet          struct{}
	CompleteExercise struct {
		Epoch uint64 `json:"-"`
	}
	CompleteWorkout    struct{}
	FinishWorkoutEarly struct{}
	Cleanup            struct{}
)

func (SelectWorkout) Name() string           { return "selectWorkout" }
func (BeginPreparation) Name() string        { return "beginPreparation" }
func (ConfirmReadyAndStartSet) Name() string { return "confirmReadyAndStartSet" }
func (CompleteSet) Name() string             { return "completeSet" }
func (SetTimerExpired) Name() string         { return "setTimerExpired" }
func (StartRest) Name() string               { return "startRest" }
func (TriggerRestEnding) Name() string       { return "triggerRestEnding" }
func (RestTimerExpired) Name() string        { return "restTimerExpired" }
func (Tick) Name() string                    { return "tick" }
func (PauseSet) Name() string                { return "pauseSet" }
func (ResumeSet) Name() string               { return "resumeSet" }
func (AdjustWeight) Name() string            { return "adjustWeight" }
func (AdjustReps) Name() string              { return "adjustReps" }
func (AdjustRestTime) Name() string          { return "adjustRestTime" }
func (ExtendRest) Name() string              { return "extendRest" }
func (JumpToSet) Name() string               { return "jumpToSet" }
func (PreviousSet) Name() string             { return "previousSet" }
func (NextSet) Name() string                 { return "nextSet" }
func (CompleteExercise) Name() string        { return "completeExercise" }
func (CompleteWorkout) Name() string         { return "completeWorkout" }
func (FinishWorkoutEarly) Name() string      { return "finishWorkoutEarly" }
func (Cleanup) Name() string                 { return "cleanup" }
