// Package localstore is a single-file SQLite session store for development
// and offline use. It mirrors the PostgreSQL storage package.
package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/claude/spotter/internal/session"
	"github.com/claude/spotter/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS workout_sessions (
	id                  TEXT PRIMARY KEY,
	name                TEXT NOT NULL,
	status              TEXT NOT NULL DEFAULT 'planned',
	created_at          INTEGER NOT NULL,
	completed_at        INTEGER,
	is_fully_completed  INTEGER,
	finished_early      INTEGER,
	completed_exercises INTEGER NOT NULL DEFAULT 0,
	completed_sets      INTEGER NOT NULL DEFAULT 0,
	total_exercises     INTEGER NOT NULL DEFAULT 0,
	total_sets          INTEGER NOT NULL DEFAULT 0,
	total_time_ms       INTEGER,
	total_pause_time_ms INTEGER
);
CREATE TABLE IF NOT EXISTS session_entries (
	id            TEXT PRIMARY KEY,
	session_id    TEXT NOT NULL REFERENCES workout_sessions (id) ON DELETE CASCADE,
	position      INTEGER NOT NULL,
	exercise_name TEXT NOT NULL,
	description   TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS entry_sets (
	entry_id        TEXT NOT NULL REFERENCES session_entries (id) ON DELETE CASCADE,
	set_number      INTEGER NOT NULL,
	target_reps     INTEGER NOT NULL DEFAULT 0,
	target_weight   REAL NOT NULL DEFAULT 0,
	target_time     INTEGER NOT NULL DEFAULT 0,
	rest_time_after INTEGER NOT NULL DEFAULT 0,
	actual_reps     INTEGER,
	is_completed    INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (entry_id, set_number)
);`

// Store keeps sessions in dir/spotter.db.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the store at dir/spotter.db.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating store dir %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "spotter.db"))
	if err != nil {
		return nil, fmt.Errorf("opening store db: %w", err)
	}
	// One connection keeps SQLite writes serialized.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating store tables: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the store database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateSession stores a planned session and returns it with its new ids.
func (s *Store) CreateSession(ctx context.Context, sess session.Session) (session.Session, error) {
	sess.ID = uuid.NewString()
	exercises := make([]session.Exercise, len(sess.Exercises))
	copy(exercises, sess.Exercises)
	sess.Exercises = exercises

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return session.Session{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO workout_sessions (id, name, created_at, total_exercises, total_sets)
		 VALUES (?, ?, ?, ?, ?)`,
		sess.ID, sess.Name, time.Now().UnixMilli(), len(sess.Exercises), sess.TotalSets()); err != nil {
		return session.Session{}, fmt.Errorf("inserting session: %w", err)
	}
	for i := range sess.Exercises {
		ex := &sess.Exercises[i]
		ex.EntryID = uuid.NewString()
		ex.Sets = append([]session.Set(nil), ex.Sets...)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO session_entries (id, session_id, position, exercise_name, description)
			 VALUES (?, ?, ?, ?, ?)`,
			ex.EntryID, sess.ID, i, ex.Name, ex.Description); err != nil {
			return session.Session{}, fmt.Errorf("inserting entry %q: %w", ex.Name, err)
		}
		for j := range ex.Sets {
			set := &ex.Sets[j]
			if set.Number == 0 {
				set.Number = j + 1
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO entry_sets (entry_id, set_number, target_reps, target_weight, target_time, rest_time_after)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				ex.EntryID, set.Number, set.TargetReps, set.TargetWeight, set.TargetTime, set.RestTimeAfter); err != nil {
				return session.Session{}, fmt.Errorf("inserting set %d of %q: %w", set.Number, ex.Name, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return session.Session{}, fmt.Errorf("committing session: %w", err)
	}
	return sess, nil
}

// LoadSession reads a session with its entries and sets in plan order.
func (s *Store) LoadSession(ctx context.Context, id string) (session.Session, error) {
	sess := session.Session{ID: id}
	err := s.db.QueryRowContext(ctx, `SELECT name FROM workout_sessions WHERE id = ?`, id).Scan(&sess.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return session.Session{}, fmt.Errorf("session %s: %w", id, storage.ErrNotFound)
		}
		return session.Session{}, fmt.Errorf("querying session: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT e.id, e.exercise_name, e.description,
		 s.set_number, s.target_reps, s.target_weight, s.target_time, s.rest_time_after,
		 s.actual_reps, s.is_completed
		 FROM session_entries e
		 JOIN entry_sets s ON s.entry_id = e.id
		 WHERE e.session_id = ?
		 ORDER BY e.position ASC, s.set_number ASC`, id)
	if err != nil {
		return session.Session{}, fmt.Errorf("querying session entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			entryID, name, desc string
			set                 session.Set
			actual              sql.NullInt64
		)
		if err := rows.Scan(&entryID, &name, &desc,
			&set.Number, &set.TargetReps, &set.TargetWeight, &set.TargetTime, &set.RestTimeAfter,
			&actual, &set.IsCompleted); err != nil {
			return session.Session{}, fmt.Errorf("scanning session entry: %w", err)
		}
		if actual.Valid {
			reps := int(actual.Int64)
			set.ActualReps = &reps
		}
		n := len(sess.Exercises)
		if n == 0 || sess.Exercises[n-1].EntryID != entryID {
			sess.Exercises = append(sess.Exercises, session.Exercise{EntryID: entryID, Name: name, Description: desc})
			n++
		}
		sess.Exercises[n-1].Sets = append(sess.Exercises[n-1].Sets, set)
	}
	if err := rows.Err(); err != nil {
		return session.Session{}, err
	}
	return sess, nil
}

// ListSessions returns the most recent sessions first.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]storage.SessionInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, status, created_at, completed_at, total_sets
		 FROM workout_sessions
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var result []storage.SessionInfo
	for rows.Next() {
		var (
			si        storage.SessionInfo
			created   int64
			completed sql.NullInt64
		)
		if err := rows.Scan(&si.ID, &si.Name, &si.Status, &created, &completed, &si.TotalSets); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		si.CreatedAt = time.UnixMilli(created).UTC()
		if completed.Valid {
			t := time.UnixMilli(completed.Int64).UTC()
			si.CompletedAt = &t
		}
		result = append(result, si)
	}
	return result, rows.Err()
}

var fieldColumns = map[session.Field]string{
	session.FieldWeight:   "target_weight",
	session.FieldReps:     "target_reps",
	session.FieldRestTime: "rest_time_after",
}

// UpdateEntryField writes one adjusted set parameter.
func (s *Store) UpdateEntryField(ctx context.Context, u session.FieldUpdate) error {
	col, ok := fieldColumns[u.Field]
	if !ok {
		return fmt.Errorf("unknown field %q", u.Field)
	}
	value := any(u.Value)
	if u.Field != session.FieldWeight {
		value = int(u.Value)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE entry_sets SET `+col+` = ?
		 WHERE entry_id = ? AND set_number = ?
		 AND entry_id IN (SELECT id FROM session_entries WHERE session_id = ?)`,
		value, u.EntryID, u.SetNumber, u.SessionID)
	if err != nil {
		return fmt.Errorf("updating %s: %w", col, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("set %d of entry %s: %w", u.SetNumber, u.EntryID, storage.ErrNotFound)
	}
	return nil
}

// CompleteSession records the outcome of a session.
func (s *Store) CompleteSession(ctx context.Context, id string, c session.Completion) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE workout_sessions SET
		 status = ?, completed_at = ?, is_fully_completed = ?, finished_early = ?,
		 completed_exercises = ?, completed_sets = ?, total_exercises = ?, total_sets = ?,
		 total_time_ms = ?, total_pause_time_ms = ?
		 WHERE id = ?`,
		c.Status, c.CompletedAt.UnixMilli(), c.IsFullyCompleted, c.FinishedEarly,
		c.CompletedExercises, c.CompletedSets, c.TotalExercises, c.TotalSets,
		c.TotalTime.Milliseconds(), c.TotalPauseTime.Milliseconds(), id)
	if err != nil {
		return fmt.Errorf("completing session %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

// CompletionOf reads back the stored outcome of a session.
func (s *Store) CompletionOf(ctx context.Context, id string) (session.Completion, error) {
	var (
		c                      session.Completion
		completedAt            sql.NullInt64
		fully, early           sql.NullBool
		totalTime, totalPaused sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT status, completed_at, is_fully_completed, finished_early,
		 completed_exercises, completed_sets, total_exercises, total_sets,
		 total_time_ms, total_pause_time_ms
		 FROM workout_sessions WHERE id = ?`, id).Scan(
		&c.Status, &completedAt, &fully, &early,
		&c.CompletedExercises, &c.CompletedSets, &c.TotalExercises, &c.TotalSets,
		&totalTime, &totalPaused)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return session.Completion{}, fmt.Errorf("session %s: %w", id, storage.ErrNotFound)
		}
		return session.Completion{}, fmt.Errorf("querying completion: %w", err)
	}
	if completedAt.Valid {
		c.CompletedAt = time.UnixMilli(completedAt.Int64).UTC()
	}
	c.IsFullyCompleted = fully.Bool
	c.FinishedEarly = early.Bool
	c.TotalTime = time.Duration(totalTime.Int64) * time.Millisecond
	c.TotalPauseTime = time.Duration(totalPaused.Int64) * time.Millisecond
	return c, nil
}
