package sessioncache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claude/spotter/internal/session"
	"github.com/claude/spotter/internal/storage"
)

type countingBackend struct {
	sessions map[string]session.Session
	loads    int
}

func (b *countingBackend) CreateSession(_ context.Context, s session.Session) (session.Session, error) {
	b.sessions[s.ID] = s
	return s, nil
}

func (b *countingBackend) LoadSession(_ context.Context, id string) (session.Session, error) {
	b.loads++
	s, ok := b.sessions[id]
	if !ok {
		return session.Session{}, storage.ErrNotFound
	}
	return s, nil
}

func (b *countingBackend) ListSessions(context.Context, int) ([]storage.SessionInfo, error) {
	return nil, nil
}

func (b *countingBackend) CompleteSession(context.Context, string, session.Completion) error {
	return nil
}

func (b *countingBackend) UpdateEntryField(_ context.Context, u session.FieldUpdate) error {
	s := b.sessions[u.SessionID]
	s.Exercises[0].Sets[u.SetNumber-1].TargetWeight = u.Value
	return nil
}

func newStore(t *testing.T) (*Store, *countingBackend) {
	t.Helper()
	b := &countingBackend{sessions: map[string]session.Session{
		"s1": {ID: "s1", Name: "Pull", Exercises: []session.Exercise{
			{EntryID: "e1", Name: "Row", Sets: []session.Set{{Number: 1, TargetReps: 10, TargetWeight: 40}}},
		}},
	}}
	s, err := New(b, 1<<20, time.Minute)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s, b
}

func TestLoadCaches(t *testing.T) {
	s, b := newStore(t)
	ctx := context.Background()

	first, err := s.LoadSession(ctx, "s1")
	require.NoError(t, err)
	s.Wait()
	second, err := s.LoadSession(ctx, "s1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, b.loads)
}

func TestLoadMissingNotCached(t *testing.T) {
	s, b := newStore(t)
	ctx := context.Background()

	_, err := s.LoadSession(ctx, "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	s.Wait()
	_, err = s.LoadSession(ctx, "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Equal(t, 2, b.loads)
}

func TestWriteEvicts(t *testing.T) {
	s, b := newStore(t)
	ctx := context.Background()

	_, err := s.LoadSession(ctx, "s1")
	require.NoError(t, err)
	s.Wait()

	require.NoError(t, s.UpdateEntryField(ctx, session.FieldUpdate{
		SessionID: "s1", EntryID: "e1", SetNumber: 1, Field: session.FieldWeight, Value: 45,
	}))
	got, err := s.LoadSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 45.0, got.Exercises[0].Sets[0].TargetWeight)
	assert.Equal(t, 2, b.loads)
}
