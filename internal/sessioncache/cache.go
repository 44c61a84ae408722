// Package sessioncache keeps recently loaded session plans in memory in
// front of the database.
package sessioncache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/claude/spotter/internal/session"
	"github.com/claude/spotter/internal/storage"
)

// Backend is the session store behind the cache.
type Backend interface {
	CreateSession(ctx context.Context, s session.Session) (session.Session, error)
	LoadSession(ctx context.Context, id string) (session.Session, error)
	ListSessions(ctx context.Context, limit int) ([]storage.SessionInfo, error)
	CompleteSession(ctx context.Context, id string, c session.Completion) error
	UpdateEntryField(ctx context.Context, u session.FieldUpdate) error
}

// Store is a Backend that serves LoadSession from a ristretto cache.
// Writes go to the backend and evict the session they touch.
type Store struct {
	Backend
	c   *ristretto.Cache[string, []byte]
	ttl time.Duration
}

// New wraps b with a cache of at most maxCostBytes of encoded sessions.
func New(b Backend, maxCostBytes int64, ttl time.Duration) (*Store, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: maxCostBytes / 100 * 10,
		MaxCost:     maxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("creating session cache: %w", err)
	}
	return &Store{Backend: b, c: c, ttl: ttl}, nil
}

// LoadSession returns the cached plan or loads and caches it.
func (s *Store) LoadSession(ctx context.Context, id string) (session.Session, error) {
	if data, ok := s.c.Get(id); ok {
		var sess session.Session
		if err := json.Unmarshal(data, &sess); err == nil {
			return sess, nil
		}
		s.c.Del(id)
	}

	sess, err := s.Backend.LoadSession(ctx, id)
	if err != nil {
		return session.Session{}, err
	}
	if data, err := json.Marshal(sess); err == nil {
		s.c.SetWithTTL(id, data, int64(len(data)), s.ttl)
	}
	return sess, nil
}

// UpdateEntryField writes through and evicts the session.
func (s *Store) UpdateEntryField(ctx context.Context, u session.FieldUpdate) error {
	defer s.c.Del(u.SessionID)
	return s.Backend.UpdateEntryField(ctx, u)
}

// CompleteSession writes through and evicts the session.
func (s *Store) CompleteSession(ctx context.Context, id string, c session.Completion) error {
	defer s.c.Del(id)
	return s.Backend.CompleteSession(ctx, id, c)
}

// Wait blocks until buffered cache writes are applied.
func (s *Store) Wait() {
	s.c.Wait()
}

// Close releases the cache.
func (s *Store) Close() {
	s.c.Close()
}
