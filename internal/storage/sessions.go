package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/claude/spotter/internal/session"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("not found")

// SessionInfo is a row of the session listing.
type SessionInfo struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	TotalSets   int        `json:"total_sets"`
}

// CreateSession stores a planned session with its entries and sets. The
// session and every entry get fresh ids; the stored copy is returned.
func (db *DB) CreateSession(ctx context.Context, s session.Session) (session.Session, error) {
	s.ID = uuid.NewString()
	exercises := make([]session.Exercise, len(s.Exercises))
	copy(exercises, s.Exercises)
	s.Exercises = exercises

	err := pgx.BeginFunc(ctx, db.Pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO workout_sessions (id, name, total_exercises, total_sets)
			 VALUES ($1, $2, $3, $4)`,
			s.ID, s.Name, len(s.Exercises), s.TotalSets()); err != nil {
			return fmt.Errorf("inserting session: %w", err)
		}

		for i := range s.Exercises {
			ex := &s.Exercises[i]
			ex.EntryID = uuid.NewString()
			if _, err := tx.Exec(ctx,
				`INSERT INTO session_entries (id, session_id, position, exercise_name, description)
				 VALUES ($1, $2, $3, $4, $5)`,
				ex.EntryID, s.ID, i, ex.Name, ex.Description); err != nil {
				return fmt.Errorf("inserting entry %q: %w", ex.Name, err)
			}
			if len(ex.Sets) == 0 {
				continue
			}
			ex.Sets = append([]session.Set(nil), ex.Sets...)

			query := `INSERT INTO entry_sets (entry_id, set_number, target_reps, target_weight,
				target_time, rest_time_after) VALUES `
			args := make([]any, 0, len(ex.Sets)*6)
			valueStrings := make([]string, 0, len(ex.Sets))
			for j := range ex.Sets {
				set := &ex.Sets[j]
				if set.Number == 0 {
					set.Number = j + 1
				}
				base := j * 6
				valueStrings = append(valueStrings, fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d)",
					base+1, base+2, base+3, base+4, base+5, base+6))
				args = append(args, ex.EntryID, set.Number, set.TargetReps, set.TargetWeight,
					set.TargetTime, set.RestTimeAfter)
			}
			if _, err := tx.Exec(ctx, query+strings.Join(valueStrings, ","), args...); err != nil {
				return fmt.Errorf("inserting sets of %q: %w", ex.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return session.Session{}, err
	}
	return s, nil
}

// LoadSession reads a session with its entries and sets in plan order.
func (db *DB) LoadSession(ctx context.Context, id string) (session.Session, error) {
	s := session.Session{ID: id}
	err := db.Pool.QueryRow(ctx,
		`SELECT name FROM workout_sessions WHERE id = $1`, id).Scan(&s.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return session.Session{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
		}
		return session.Session{}, fmt.Errorf("querying session: %w", err)
	}

	rows, err := db.Pool.Query(ctx,
		`SELECT e.id, e.exercise_name, e.description,
		 s.set_number, s.target_reps, s.target_weight, s.target_time, s.rest_time_after,
		 s.actual_reps, s.is_completed
		 FROM session_entries e
		 JOIN entry_sets s ON s.entry_id = e.id
		 WHERE e.session_id = $1
		 ORDER BY e.position ASC, s.set_number ASC`, id)
	if err != nil {
		return session.Session{}, fmt.Errorf("querying session entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			entryID, name, desc string
			set                 session.Set
		)
		if err := rows.Scan(&entryID, &name, &desc,
			&set.Number, &set.TargetReps, &set.TargetWeight, &set.TargetTime, &set.RestTimeAfter,
			&set.ActualReps, &set.IsCompleted); err != nil {
			return session.Session{}, fmt.Errorf("scanning session entry: %w", err)
		}
		n := len(s.Exercises)
		if n == 0 || s.Exercises[n-1].EntryID != entryID {
			s.Exercises = append(s.Exercises, session.Exercise{EntryID: entryID, Name: name, Description: desc})
			n++
		}
		s.Exercises[n-1].Sets = append(s.Exercises[n-1].Sets, set)
	}
	if err := rows.Err(); err != nil {
		return session.Session{}, err
	}
	return s, nil
}

// ListSessions returns the most recent sessions first.
func (db *DB) ListSessions(ctx context.Context, limit int) ([]SessionInfo, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, name, status, created_at, completed_at, total_sets
		 FROM workout_sessions
		 ORDER BY created_at DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var result []SessionInfo
	for rows.Next() {
		var si SessionInfo
		if err := rows.Scan(&si.ID, &si.Name, &si.Status, &si.CreatedAt, &si.CompletedAt, &si.TotalSets); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		result = append(result, si)
	}
	return result, rows.Err()
}
