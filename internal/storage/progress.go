package storage

import (
	"context"
	"fmt"

	"github.com/claude/spotter/internal/session"
)

// fieldColumns maps adjustable fields to their entry_sets column.
var fieldColumns = map[session.Field]string{
	session.FieldWeight:   "target_weight",
	session.FieldReps:     "target_reps",
	session.FieldRestTime: "rest_time_after",
}

func fieldColumn(f session.Field) (string, error) {
	col, ok := fieldColumns[f]
	if !ok {
		return "", fmt.Errorf("unknown field %q", f)
	}
	return col, nil
}

// UpdateEntryField writes one adjusted set parameter.
func (db *DB) UpdateEntryField(ctx context.Context, u session.FieldUpdate) error {
	col, err := fieldColumn(u.Field)
	if err != nil {
		return err
	}
	value := any(u.Value)
	if u.Field != session.FieldWeight {
		value = int(u.Value)
	}

	tag, err := db.Pool.Exec(ctx,
		`UPDATE entry_sets SET `+col+` = $1
		 WHERE entry_id = $2 AND set_number = $3
		 AND entry_id IN (SELECT id FROM session_entries WHERE session_id = $4)`,
		value, u.EntryID, u.SetNumber, u.SessionID)
	if err != nil {
		return fmt.Errorf("updating %s: %w", col, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set %d of entry %s: %w", u.SetNumber, u.EntryID, ErrNotFound)
	}
	return nil
}

// CompleteSession records the outcome of a session.
func (db *DB) CompleteSession(ctx context.Context, id string, c session.Completion) error {
	tag, err := db.Pool.Exec(ctx,
		`UPDATE workout_sessions SET
		 status = $2, completed_at = $3, is_fully_completed = $4, finished_early = $5,
		 completed_exercises = $6, completed_sets = $7, total_exercises = $8, total_sets = $9,
		 total_time_ms = $10, total_pause_time_ms = $11
		 WHERE id = $1`,
		id, c.Status, c.CompletedAt, c.IsFullyCompleted, c.FinishedEarly,
		c.CompletedExercises, c.CompletedSets, c.TotalExercises, c.TotalSets,
		c.TotalTime.Milliseconds(), c.TotalPauseTime.Milliseconds())
	if err != nil {
		return fmt.Errorf("completing session %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return nil
}
