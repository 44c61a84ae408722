package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/claude/spotter/internal/contextevent"
	"github.com/claude/spotter/internal/timer"
)

var (
	// ErrNoSession is returned for commands that need a loaded workout.
	ErrNoSession = errors.New("no active workout")
	// ErrNotApplicable is returned for commands that do not apply to the current status.
	ErrNotApplicable = errors.New("command not applicable")
	// ErrStale is returned for timer commands armed under an earlier epoch.
	ErrStale = errors.New("stale timer command")
	// ErrInvalidValue is returned for out-of-range command arguments.
	ErrInvalidValue = errors.New("invalid value")
)

// Transition applies cmd to s at time now. On error s is returned unchanged
// with no effects. Effects are ordered: cancel timers, start timers, emit,
// flush adjustments, persist.
func Transition(s State, cmd Command, now time.Time, p Policy) (State, []Effect, error) {
	t := &transition{next: s.Clone(), now: now, policy: p, cmd: cmd}

	var err error
	switch c := cmd.(type) {
	case SelectWorkout:
		err = t.selectWorkout(c)
	case BeginPreparation:
		err = t.beginPreparation(c)
	case ConfirmReadyAndStartSet:
		err = t.confirmReadyAndStartSet()
	case CompleteSet:
		err = t.completeSet(c.ActualReps, false)
	case SetTimerExpired:
		err = t.setTimerExpired(c)
	case StartRest:
		err = t.startRest(c)
	case TriggerRestEnding:
		err = t.triggerRestEnding(c)
	case RestTimerExpired:
		err = t.restTimerExpired(c)
	case Tick:
		err = t.tick(c)
	case PauseSet:
		err = t.pauseSet(c)
	case ResumeSet:
		err = t.resumeSet()
	case AdjustWeight:
		err = t.adjust(FieldWeight, c.NewWeight, c.Reason)
	case AdjustReps:
		err = t.adjust(FieldReps, float64(c.NewReps), c.Reason)
	case AdjustRestTime:
		err = t.adjust(FieldRestTime, float64(c.NewRestTime), c.Reason)
	case ExtendRest:
		err = t.extendRest(c)
	case JumpToSet:
		err = t.navigate(func(int) int { return c.SetNumber - 1 })
	case PreviousSet:
		err = t.navigate(func(cur int) int { return cur - 1 })
	case NextSet:
		err = t.navigate(func(cur int) int { return cur + 1 })
	case CompleteExercise:
		err = t.completeExercise(c)
	case CompleteWorkout:
		err = t.finish(false)
	case FinishWorkoutEarly:
		err = t.finish(true)
	case Cleanup:
		t.cleanup()
	default:
		err = fmt.Errorf("%w: unknown command %T", ErrNotApplicable, cmd)
	}
	if err != nil {
		return s, nil, err
	}
	return t.next, t.effects, nil
}

type transition struct {
	next    State
	now     time.Time
	policy  Policy
	cmd     Command
	effects []Effect
}

func (t *transition) add(effs ...Effect) {
	t.effects = append(t.effects, effs...)
}

func (t *transition) emit(name string, mode contextevent.Mode, msg string, data map[string]any) {
	t.add(Emit{Event: contextevent.Event{Name: name, Message: msg, Data: data, Mode: mode}})
}

// rearm moves to a new epoch, invalidating every timer command in flight.
func (t *transition) rearm() uint64 {
	t.next.Epoch++
	return t.next.Epoch
}

func (t *transition) notApplicable() error {
	return fmt.Errorf("%w: %s while %s", ErrNotApplicable, t.cmd.Name(), t.next.Status)
}

func (t *transition) checkEpoch(epoch uint64) error {
	if epoch != t.next.Epoch {
		return fmt.Errorf("%w: %s armed at epoch %d, now %d", ErrStale, t.cmd.Name(), epoch, t.next.Epoch)
	}
	return nil
}

func (t *transition) requireActive() error {
	if t.next.Session == nil || t.next.Workout == nil {
		return ErrNoSession
	}
	if t.next.Status == StatusWorkoutCompleted {
		return t.notApplicable()
	}
	return nil
}

// endPause folds a running pause into the pause total.
func (t *transition) endPause() {
	w := t.next.Workout
	if !w.PauseStartedAt.IsZero() {
		w.TotalPauseTime += t.now.Sub(w.PauseStartedAt)
		w.PauseStartedAt = time.Time{}
	}
	t.next.PausedFrom = ""
}

func (t *transition) selectWorkout(c SelectWorkout) error {
	if len(c.Session.Exercises) == 0 {
		return fmt.Errorf("%w: workout %q has no exercises", ErrInvalidValue, c.Session.Name)
	}
	sess := c.Session.clone()
	for i := range sess.Exercises {
		ex := &sess.Exercises[i]
		if len(ex.Sets) == 0 {
			return fmt.Errorf("%w: exercise %q has no sets", ErrInvalidValue, ex.Name)
		}
		for j := range ex.Sets {
			if ex.Sets[j].Number == 0 {
				ex.Sets[j].Number = j + 1
			}
		}
	}

	epoch := t.next.Epoch + 1
	t.next = State{
		Status:  StatusIdle,
		Session: sess,
		Workout: &ActiveWorkout{
			StartTime:      t.now,
			TotalExercises: len(sess.Exercises),
			TotalSets:      sess.TotalSets(),
		},
		Epoch: epoch,
	}

	t.add(CancelAllTimers{}, ResetSession{})
	t.add(Schedule{Key: KeyPrepare, Delay: t.policy.PrepareDelay, Command: BeginPreparation{Epoch: epoch}})

	first := sess.Exercises[0]
	t.emit("workout-selected", contextevent.ModeMessage,
		fmt.Sprintf("Workout %q selected: %d exercises, %d sets. First up: %s.",
			sess.Name, len(sess.Exercises), sess.TotalSets(), first.Name),
		map[string]any{
			"session_id":      sess.ID,
			"workout_name":    sess.Name,
			"total_exercises": len(sess.Exercises),
			"total_sets":      sess.TotalSets(),
			"first_exercise":  first.Name,
		})
	return nil
}

func (t *transition) beginPreparation(c BeginPreparation) error {
	if err := t.checkEpoch(c.Epoch); err != nil {
		return err
	}
	if err := t.requireActive(); err != nil {
		return err
	}
	if t.next.Status != StatusIdle && t.next.Status != StatusExerciseTransition {
		return t.notApplicable()
	}
	t.next.Status = StatusPreparing

	ex := t.next.CurrentExercise()
	idx := t.next.Workout.CurrentSetIndex
	set := ex.Sets[idx]
	t.emit("preparation-started", contextevent.ModeContextual,
		fmt.Sprintf("Preparing %s. Up next: %s.", ex.Name, describeSet(ex, idx)),
		map[string]any{
			"exercise":       ex.Name,
			"description":    ex.Description,
			"exercise_index": t.next.Workout.CurrentExerciseIndex,
			"set_number":     set.Number,
			"total_sets":     len(ex.Sets),
			"target_reps":    set.TargetReps,
			"target_weight":  set.TargetWeight,
			"target_time":    set.TargetTime,
		})
	return nil
}

func (t *transition) confirmReadyAndStartSet() error {
	if err := t.requireActive(); err != nil {
		return err
	}
	switch t.next.Status {
	case StatusPreparing, StatusResting, StatusRestEnding:
	default:
		return t.notApplicable()
	}
	if t.next.CurrentSet() == nil || (t.next.Timers.Rest != nil && t.next.Timers.Rest.IsLastSet) {
		return fmt.Errorf("%w: no remaining set in %s", ErrNotApplicable, t.next.CurrentExercise().Name)
	}
	t.startSet()
	return nil
}

func (t *transition) startSet() {
	t.add(CancelTimers{Keys: PhaseKeys})
	epoch := t.rearm()

	ex := t.next.CurrentExercise()
	idx := t.next.Workout.CurrentSetIndex
	set := ex.Sets[idx]

	t.next.Timers = Timers{}
	msg := "Started " + describeSet(ex, idx)
	if set.TargetTime > 0 {
		d := time.Duration(set.TargetTime) * time.Second
		t.next.Timers.Set = newTimer(t.now, d)
		t.add(StartCountdown{Kind: TimerSet, Duration: d, Epoch: epoch})
		msg += ", " + formatSeconds(d) + " on the clock"
	}
	t.add(StartActivityPing{Interval: t.policy.ActivityPingInterval})
	t.next.Status = StatusExercising

	t.emit("set-started", contextevent.ModeContextual, msg+".",
		map[string]any{
			"exercise":      ex.Name,
			"set_number":    set.Number,
			"total_sets":    len(ex.Sets),
			"target_reps":   set.TargetReps,
			"target_weight": set.TargetWeight,
			"target_time":   set.TargetTime,
		})
}

func (t *transition) completeSet(actualReps *int, timedOut bool) error {
	if err := t.requireActive(); err != nil {
		return err
	}
	st := t.next.Status
	if st != StatusExercising && (st != StatusPaused || t.next.PausedFrom != StatusExercising) {
		return t.notApplicable()
	}
	set := t.next.CurrentSet()
	if set == nil {
		return t.notApplicable()
	}
	reps := set.TargetReps
	if actualReps != nil {
		if *actualReps < 0 {
			return fmt.Errorf("%w: actual reps %d", ErrInvalidValue, *actualReps)
		}
		reps = *actualReps
	}
	if st == StatusPaused {
		t.endPause()
	}

	t.add(CancelTimers{Keys: []timer.Key{KeySetTick, KeyActivityPing}})
	epoch := t.rearm()

	w := t.next.Workout
	ex := t.next.CurrentExercise()
	idx := w.CurrentSetIndex
	if !set.IsCompleted {
		w.CompletedSets++
	}
	set.IsCompleted = true
	set.ActualReps = &reps
	w.SetsCompleted = append(w.SetsCompleted, SetRecord{
		ExerciseName: ex.Name,
		SetNumber:    set.Number,
		ActualReps:   reps,
		Weight:       set.TargetWeight,
		TimedOut:     timedOut,
		CompletedAt:  t.now,
	})
	t.next.Timers.Set = nil
	t.next.Status = StatusSetComplete

	t.add(Schedule{Key: KeyAutoRest, Delay: t.policy.AutoRestDelay, Command: StartRest{Epoch: epoch}})

	msg := fmt.Sprintf("Set %d of %d of %s complete: %d reps", idx+1, len(ex.Sets), ex.Name, reps)
	if set.TargetWeight > 0 {
		msg += " at " + formatWeight(set.TargetWeight)
	}
	if timedOut {
		msg = fmt.Sprintf("Time is up for set %d of %d of %s", idx+1, len(ex.Sets), ex.Name)
	}
	t.emit("set-completed", contextevent.ModeMessage, msg+".",
		map[string]any{
			"exercise":    ex.Name,
			"set_number":  set.Number,
			"total_sets":  len(ex.Sets),
			"actual_reps": reps,
			"target_reps": set.TargetReps,
			"weight":      set.TargetWeight,
			"timed_out":   timedOut,
			"is_last_set": idx == len(ex.Sets)-1,
		})
	return nil
}

func (t *transition) setTimerExpired(c SetTimerExpired) error {
	if err := t.checkEpoch(c.Epoch); err != nil {
		return err
	}
	if t.next.Status != StatusExercising || t.next.Timers.Set == nil {
		return t.notApplicable()
	}
	return t.completeSet(nil, true)
}

func (t *transition) startRest(c StartRest) error {
	if err := t.checkEpoch(c.Epoch); err != nil {
		return err
	}
	if err := t.requireActive(); err != nil {
		return err
	}
	if t.next.Status != StatusSetComplete {
		return t.notApplicable()
	}

	w := t.next.Workout
	ex := t.next.CurrentExercise()
	idx := w.CurrentSetIndex
	isLast := idx == len(ex.Sets)-1
	d := time.Duration(ex.Sets[idx].RestTimeAfter) * time.Second

	t.add(CancelTimers{Keys: restKeys})
	epoch := t.rearm()
	if !isLast {
		w.CurrentSetIndex++
	}
	rt := newTimer(t.now, d)
	rt.IsLastSet = isLast
	t.next.Timers = Timers{Rest: rt}
	t.next.Status = StatusResting

	t.add(StartCountdown{Kind: TimerRest, Duration: d, Epoch: epoch})
	data := map[string]any{
		"exercise":         ex.Name,
		"duration_seconds": int(d / time.Second),
		"is_last_set":      isLast,
	}
	var msg string
	if isLast {
		t.add(Schedule{Key: KeyRestComplete, Delay: d, Command: CompleteExercise{Epoch: epoch}})
		msg = fmt.Sprintf("Rest for %s. That was the last set of %s.", formatSeconds(d), ex.Name)
	} else {
		t.add(Schedule{Key: KeyRestWarning, Delay: t.policy.restWarningDelay(d), Command: TriggerRestEnding{Epoch: epoch}})
		msg = fmt.Sprintf("Rest for %s. Next up: %s.", formatSeconds(d), describeSet(ex, idx+1))
		data["next_set_number"] = ex.Sets[idx+1].Number
	}
	t.emit("rest-started", contextevent.ModeContextual, msg, data)
	return nil
}

func (t *transition) triggerRestEnding(c TriggerRestEnding) error {
	if err := t.checkEpoch(c.Epoch); err != nil {
		return err
	}
	rt := t.next.Timers.Rest
	if t.next.Status != StatusResting || rt == nil || rt.IsLastSet {
		return t.notApplicable()
	}
	rt.Refresh(t.now)
	t.next.Status = StatusRestEnding

	ex := t.next.CurrentExercise()
	idx := t.next.Workout.CurrentSetIndex
	t.emit("rest-ending", contextevent.ModeSmart,
		fmt.Sprintf("%s of rest left. Get ready for %s.", formatSeconds(rt.Remaining), describeSet(ex, idx)),
		map[string]any{
			"exercise":          ex.Name,
			"remaining_seconds": int(rt.Remaining / time.Second),
			"next_set_number":   ex.Sets[idx].Number,
		})
	return nil
}

func (t *transition) restTimerExpired(c RestTimerExpired) error {
	if err := t.checkEpoch(c.Epoch); err != nil {
		return err
	}
	rt := t.next.Timers.Rest
	if rt == nil {
		return t.notApplicable()
	}
	if t.next.Status == StatusExerciseTransition {
		return t.advanceExercise()
	}
	if rt.IsLastSet {
		// The rest-complete timeout advances the exercise.
		rt.Remaining = 0
		rt.Elapsed = rt.Duration
		return nil
	}
	if t.next.Status != StatusResting && t.next.Status != StatusRestEnding {
		return t.notApplicable()
	}

	t.add(CancelTimers{Keys: restKeys})
	t.next.Timers.Rest = nil
	t.next.Status = StatusRestEnding
	if t.policy.AutoStartNextSet {
		t.add(Schedule{Key: KeyAutoStart, Command: ConfirmReadyAndStartSet{}})
	}

	ex := t.next.CurrentExercise()
	idx := t.next.Workout.CurrentSetIndex
	t.emit("rest-complete", contextevent.ModeSmart,
		fmt.Sprintf("Rest is over. Ready for %s?", describeSet(ex, idx)),
		map[string]any{
			"exercise":        ex.Name,
			"next_set_number": ex.Sets[idx].Number,
			"auto_start":      t.policy.AutoStartNextSet,
		})
	return nil
}

func (t *transition) tick(c Tick) error {
	if err := t.checkEpoch(c.Epoch); err != nil {
		return err
	}
	tm := t.next.Timers.Set
	if c.Kind == TimerRest {
		tm = t.next.Timers.Rest
	}
	if tm == nil || tm.Paused {
		return t.notApplicable()
	}
	tm.Refresh(t.now)
	return nil
}

func (t *transition) pauseSet(c PauseSet) error {
	if err := t.requireActive(); err != nil {
		return err
	}
	from := t.next.Status
	switch from {
	case StatusExercising, StatusResting, StatusRestEnding:
	default:
		return t.notApplicable()
	}

	t.add(CancelTimers{Keys: PhaseKeys})
	t.rearm()

	phase := "rest"
	tm := t.next.Timers.Rest
	if from == StatusExercising {
		phase = "set"
		tm = t.next.Timers.Set
	}
	msg := withReason("Paused the "+phase, c.Reason)
	data := map[string]any{"phase": phase, "reason": c.Reason}
	if tm != nil {
		tm.Refresh(t.now)
		tm.Paused = true
		msg += fmt.Sprintf(" %s left on the %s timer.", formatSeconds(tm.Remaining), phase)
		data["remaining_seconds"] = int(tm.Remaining / time.Second)
	}
	t.next.PausedFrom = from
	t.next.Status = StatusPaused
	t.next.Workout.PauseStartedAt = t.now

	t.emit("workout-paused", contextevent.ModeContextual, msg, data)
	return nil
}

func (t *transition) resumeSet() error {
	if err := t.requireActive(); err != nil {
		return err
	}
	if t.next.Status != StatusPaused {
		return t.notApplicable()
	}
	from := t.next.PausedFrom
	kind := TimerRest
	tm := t.next.Timers.Rest
	if from == StatusExercising {
		kind = TimerSet
		tm = t.next.Timers.Set
	}
	t.endPause()

	if tm != nil && tm.Remaining <= 0 {
		// A countdown that ran out while paused restarts from the top and
		// stays paused rather than expiring on resume.
		tm.Remaining = tm.Duration
		tm.SegmentTotal = tm.Duration
		tm.Elapsed = 0
		t.next.PausedFrom = from
		t.next.Workout.PauseStartedAt = t.now
		t.emit("timer-reset", contextevent.ModeContextual,
			fmt.Sprintf("The %s timer had run out while paused. It was reset to %s and stays paused until resumed.",
				kind, formatSeconds(tm.Duration)),
			map[string]any{"phase": string(kind), "duration_seconds": int(tm.Duration / time.Second)})
		return nil
	}

	t.next.Status = from
	epoch := t.rearm()
	msg := "Resumed"
	data := map[string]any{"phase": string(kind)}
	if tm != nil {
		tm.restartSegment(t.now)
		tm.Refresh(t.now)
		t.add(StartCountdown{Kind: kind, Duration: tm.Remaining, Epoch: epoch})
		if kind == TimerRest {
			switch {
			case tm.IsLastSet:
				t.add(Schedule{Key: KeyRestComplete, Delay: tm.Remaining, Command: CompleteExercise{Epoch: epoch}})
			case from == StatusResting:
				t.add(Schedule{Key: KeyRestWarning, Delay: t.policy.restWarningDelay(tm.Remaining), Command: TriggerRestEnding{Epoch: epoch}})
			}
		}
		msg += fmt.Sprintf(" with %s on the %s timer", formatSeconds(tm.Remaining), kind)
		data["remaining_seconds"] = int(tm.Remaining / time.Second)
	}
	if from == StatusExercising {
		t.add(StartActivityPing{Interval: t.policy.ActivityPingInterval})
	}
	t.emit("workout-resumed", contextevent.ModeContextual, msg+".", data)
	return nil
}

var adjustEvents = map[Field]string{
	FieldWeight:   "weight-adjusted",
	FieldReps:     "reps-adjusted",
	FieldRestTime: "rest-time-adjusted",
}

func (t *transition) adjust(field Field, value float64, reason string) error {
	if err := t.requireActive(); err != nil {
		return err
	}
	if value < 0 {
		return fmt.Errorf("%w: %s %v", ErrInvalidValue, field, value)
	}
	ex := t.next.CurrentExercise()
	set := t.next.CurrentSet()
	if set == nil {
		return t.notApplicable()
	}

	var from float64
	var msg string
	switch field {
	case FieldWeight:
		from = set.TargetWeight
		set.TargetWeight = value
		msg = fmt.Sprintf("Weight for set %d of %s changed from %s to %s",
			set.Number, ex.Name, formatWeight(from), formatWeight(value))
	case FieldReps:
		from = float64(set.TargetReps)
		set.TargetReps = int(value)
		msg = fmt.Sprintf("Reps for set %d of %s changed from %d to %d",
			set.Number, ex.Name, int(from), set.TargetReps)
	case FieldRestTime:
		from = float64(set.RestTimeAfter)
		set.RestTimeAfter = int(value)
		msg = fmt.Sprintf("Rest after set %d of %s changed from %s to %s",
			set.Number, ex.Name,
			formatSeconds(time.Duration(from)*time.Second), formatSeconds(time.Duration(value)*time.Second))
	}

	w := t.next.Workout
	w.AdjustmentsMade = append(w.AdjustmentsMade, Adjustment{
		Field:        field,
		ExerciseName: ex.Name,
		SetNumber:    set.Number,
		From:         from,
		To:           value,
		Reason:       reason,
		At:           t.now,
	})

	sess := t.next.Session
	if !sess.IsPlaceholder() {
		t.add(PersistAdjustment{
			Key: AdjustmentKey{SessionID: sess.ID, EntryID: ex.EntryID, SetNumber: set.Number, Field: field},
			Update: FieldUpdate{
				SessionID: sess.ID,
				EntryID:   ex.EntryID,
				SetNumber: set.Number,
				Field:     field,
				Value:     value,
			},
		})
	}
	t.emit(adjustEvents[field], contextevent.ModeContextual, withReason(msg, reason),
		map[string]any{
			"exercise":   ex.Name,
			"set_number": set.Number,
			"field":      string(field),
			"from":       from,
			"to":         value,
			"reason":     reason,
		})
	return nil
}

func (t *transition) extendRest(c ExtendRest) error {
	if err := t.requireActive(); err != nil {
		return err
	}
	if c.AdditionalSeconds <= 0 {
		return fmt.Errorf("%w: additional seconds %d", ErrInvalidValue, c.AdditionalSeconds)
	}
	add := time.Duration(c.AdditionalSeconds) * time.Second
	st := t.next.Status
	rt := t.next.Timers.Rest
	paused := st == StatusPaused && (t.next.PausedFrom == StatusResting || t.next.PausedFrom == StatusRestEnding)

	switch {
	case rt != nil && (st == StatusResting || st == StatusRestEnding || paused):
		rt.Refresh(t.now)
		rt.Duration += add
		rt.Remaining += add
		rt.Elapsed = rt.Duration - rt.Remaining
	case rt == nil && st == StatusRestEnding:
		// The rest already ran out; extending starts a fresh rest.
		rt = newTimer(t.now, add)
		t.next.Timers.Rest = rt
	default:
		return t.notApplicable()
	}

	data := map[string]any{
		"additional_seconds": c.AdditionalSeconds,
		"remaining_seconds":  int(rt.Remaining / time.Second),
	}
	msg := fmt.Sprintf("Rest extended by %s, %s left.", formatSeconds(add), formatSeconds(rt.Remaining))

	if paused {
		rt.SegmentTotal = rt.Remaining
		if !rt.IsLastSet && rt.Remaining > t.policy.RestWarningLead {
			t.next.PausedFrom = StatusResting
		}
		t.emit("rest-extended", contextevent.ModeContextual, msg, data)
		return nil
	}

	t.add(CancelTimers{Keys: append([]timer.Key{KeyAutoStart}, restKeys...)})
	epoch := t.rearm()
	rt.restartSegment(t.now)
	t.add(StartCountdown{Kind: TimerRest, Duration: rt.Remaining, Epoch: epoch})
	if rt.IsLastSet {
		t.add(Schedule{Key: KeyRestComplete, Delay: rt.Remaining, Command: CompleteExercise{Epoch: epoch}})
	} else {
		if rt.Remaining > t.policy.RestWarningLead {
			t.next.Status = StatusResting
		}
		if t.next.Status == StatusResting {
			t.add(Schedule{Key: KeyRestWarning, Delay: t.policy.restWarningDelay(rt.Remaining), Command: TriggerRestEnding{Epoch: epoch}})
		}
	}
	t.emit("rest-extended", contextevent.ModeContextual, msg, data)
	return nil
}

// navigate moves the set pointer within the current exercise. Every phase
// timer is cancelled first, whatever the status, and the target is clamped
// to the exercise's sets.
func (t *transition) navigate(target func(cur int) int) error {
	if err := t.requireActive(); err != nil {
		return err
	}
	ex := t.next.CurrentExercise()
	if ex == nil {
		return t.notApplicable()
	}
	w := t.next.Workout
	idx := max(0, min(target(w.CurrentSetIndex), len(ex.Sets)-1))

	if t.next.Status == StatusPaused {
		t.endPause()
	}
	t.add(CancelTimers{Keys: PhaseKeys})
	t.rearm()
	t.next.Timers = Timers{}
	w.CurrentSetIndex = idx
	t.next.Status = StatusPreparing

	t.emit("set-navigated", contextevent.ModeContextual,
		fmt.Sprintf("Moved to %s.", describeSet(ex, idx)),
		map[string]any{
			"exercise":     ex.Name,
			"set_number":   ex.Sets[idx].Number,
			"total_sets":   len(ex.Sets),
			"is_completed": ex.Sets[idx].IsCompleted,
		})
	return nil
}

func (t *transition) completeExercise(c CompleteExercise) error {
	if c.Epoch != 0 {
		if err := t.checkEpoch(c.Epoch); err != nil {
			return err
		}
	}
	if err := t.requireActive(); err != nil {
		return err
	}
	if t.next.Status == StatusIdle {
		return t.notApplicable()
	}
	return t.advanceExercise()
}

// advanceExercise closes the current exercise and moves to the next one, or
// completes the workout after the last.
func (t *transition) advanceExercise() error {
	if t.next.Status == StatusPaused {
		t.endPause()
	}
	t.add(CancelTimers{Keys: PhaseKeys})
	epoch := t.rearm()
	t.next.Timers = Timers{}

	w := t.next.Workout
	done := t.next.CurrentExercise()
	if w.CompletedExercises < w.TotalExercises {
		w.CompletedExercises++
	}
	if w.CurrentExerciseIndex+1 >= len(t.next.Session.Exercises) {
		t.complete(false)
		return nil
	}

	w.CurrentExerciseIndex++
	w.CurrentSetIndex = 0
	t.next.Status = StatusExerciseTransition
	t.add(Schedule{Key: KeyPrepare, Delay: t.policy.ExerciseAdvanceDelay, Command: BeginPreparation{Epoch: epoch}})

	upcoming := t.next.CurrentExercise()
	t.emit("exercise-completed", contextevent.ModeMessage,
		fmt.Sprintf("%s complete. Next exercise: %s.", done.Name, upcoming.Name),
		map[string]any{
			"exercise":            done.Name,
			"next_exercise":       upcoming.Name,
			"completed_exercises": w.CompletedExercises,
			"total_exercises":     w.TotalExercises,
		})
	return nil
}

func (t *transition) finish(early bool) error {
	if err := t.requireActive(); err != nil {
		return err
	}
	if t.next.Status == StatusPaused {
		t.endPause()
	}
	t.add(CancelTimers{Keys: PhaseKeys})
	t.rearm()
	t.complete(early)
	return nil
}

// complete enters the terminal state: summary, announcement, flush of
// pending adjustments, then the single completion write.
func (t *transition) complete(early bool) {
	w := t.next.Workout
	w.FinishedEarly = early
	w.CompletedAt = t.now
	t.next.Status = StatusWorkoutCompleted
	t.next.Timers = Timers{}

	sum := summarize(t.next, t.now)
	t.add(RecordSummary{Summary: sum})

	event := "workout-completed"
	msg := fmt.Sprintf("Workout %q complete: %d of %d sets and %d of %d exercises in %s.",
		sum.Name, sum.CompletedSets, sum.TotalSets, sum.CompletedExercises, sum.TotalExercises, formatMinutes(sum.TotalTime))
	if early {
		event = "workout-finished-early"
		msg = fmt.Sprintf("Workout %q finished early after %d of %d sets.", sum.Name, sum.CompletedSets, sum.TotalSets)
	}
	t.emit(event, contextevent.ModeMessage, msg,
		map[string]any{
			"session_id":          sum.SessionID,
			"finished_early":      sum.FinishedEarly,
			"is_fully_completed":  sum.IsFullyCompleted,
			"completed_sets":      sum.CompletedSets,
			"total_sets":          sum.TotalSets,
			"completed_exercises": sum.CompletedExercises,
			"total_exercises":     sum.TotalExercises,
			"total_time_ms":       sum.TotalTime.Milliseconds(),
			"total_pause_time_ms": sum.TotalPauseTime.Milliseconds(),
		})

	t.add(FlushAdjustments{})
	if !t.next.Session.IsPlaceholder() {
		t.add(PersistCompletion{SessionID: t.next.Session.ID, Completion: sum.Completion(t.now)})
	}
}

func (t *transition) cleanup() {
	t.add(CancelAllTimers{}, FlushAdjustments{}, ClearMessages{})
	t.next = State{Status: StatusIdle, Epoch: t.next.Epoch + 1}
}
