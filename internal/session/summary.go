package session

import (
	"fmt"
	"strconv"
	"time"
)

// Summary is the end-of-workout report.
type Summary struct {
	SessionID          string        `json:"session_id"`
	Name               string        `json:"name"`
	FinishedEarly      bool          `json:"finished_early"`
	IsFullyCompleted   bool          `json:"is_fully_completed"`
	CompletedExercises int           `json:"completed_exercises"`
	TotalExercises     int           `json:"total_exercises"`
	CompletedSets      int           `json:"completed_sets"`
	TotalSets          int           `json:"total_sets"`
	TotalTime          time.Duration `json:"total_time"`
	TotalPauseTime     time.Duration `json:"total_pause_time"`
	SetsCompleted      []SetRecord   `json:"sets_completed"`
	Adjustments        []Adjustment  `json:"adjustments"`
}

func summarize(s State, now time.Time) Summary {
	w := s.Workout
	total := now.Sub(w.StartTime) - w.TotalPauseTime
	if total < 0 {
		total = 0
	}
	return Summary{
		SessionID:          s.Session.ID,
		Name:               s.Session.Name,
		FinishedEarly:      w.FinishedEarly,
		IsFullyCompleted:   !w.FinishedEarly && w.CompletedExercises == w.TotalExercises,
		CompletedExercises: w.CompletedExercises,
		TotalExercises:     w.TotalExercises,
		CompletedSets:      w.CompletedSets,
		TotalSets:          w.TotalSets,
		TotalTime:          total,
		TotalPauseTime:     w.TotalPauseTime,
		SetsCompleted:      append([]SetRecord(nil), w.SetsCompleted...),
		Adjustments:        append([]Adjustment(nil), w.AdjustmentsMade...),
	}
}

// Completion converts the summary into the completion write payload.
func (sum Summary) Completion(at time.Time) Completion {
	return Completion{
		Status:             "completed",
		CompletedAt:        at,
		IsFullyCompleted:   sum.IsFullyCompleted,
		FinishedEarly:      sum.FinishedEarly,
		CompletedExercises: sum.CompletedExercises,
		CompletedSets:      sum.CompletedSets,
		TotalExercises:     sum.TotalExercises,
		TotalSets:          sum.TotalSets,
		TotalTime:          sum.TotalTime,
		TotalPauseTime:     sum.TotalPauseTime,
	}
}

func formatWeight(w float64) string {
	return strconv.FormatFloat(w, 'f', -1, 64) + "kg"
}

func formatSeconds(d time.Duration) string {
	secs := int(d.Round(time.Second) / time.Second)
	if secs == 1 {
		return "1 second"
	}
	return fmt.Sprintf("%d seconds", secs)
}

func formatMinutes(d time.Duration) string {
	m := int(d.Round(time.Minute) / time.Minute)
	if m == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", m)
}

func withReason(msg, reason string) string {
	if reason == "" {
		return msg + "."
	}
	return msg + " (" + reason + ")."
}

// describeSet renders "set 2 of 3 of Bench Press: 8 reps at 60kg".
func describeSet(ex *Exercise, idx int) string {
	set := ex.Sets[idx]
	desc := fmt.Sprintf("set %d of %d of %s: %d reps", idx+1, len(ex.Sets), ex.Name, set.TargetReps)
	if set.TargetWeight > 0 {
		desc += " at " + formatWeight(set.TargetWeight)
	}
	return desc
}

// StatusLine is a one-line description of the state, used by the agent
// context sync.
func (s State) StatusLine(now time.Time) string {
	if s.Session == nil || s.Workout == nil {
		return "No workout selected."
	}
	if s.Status == StatusWorkoutCompleted {
		return fmt.Sprintf("Workout %q is completed.", s.Session.Name)
	}
	line := fmt.Sprintf("Workout %q, status %s.", s.Session.Name, s.Status)
	if ex := s.CurrentExercise(); ex != nil && s.Workout.CurrentSetIndex < len(ex.Sets) {
		line += " Current: " + describeSet(ex, s.Workout.CurrentSetIndex) + "."
	}
	if t := s.Timers.Set; t != nil {
		c := *t
		c.Refresh(now)
		line += " Set timer: " + formatSeconds(c.Remaining) + " left."
	}
	if t := s.Timers.Rest; t != nil {
		c := *t
		c.Refresh(now)
		line += " Rest timer: " + formatSeconds(c.Remaining) + " left."
	}
	line += fmt.Sprintf(" Progress: %d/%d sets, %d/%d exercises.",
		s.Workout.CompletedSets, s.Workout.TotalSets,
		s.Workout.CompletedExercises, s.Workout.TotalExercises)
	return line
}
