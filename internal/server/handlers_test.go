package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/claude/spotter/internal/engine"
	"github.com/claude/spotter/internal/session"
	"github.com/claude/spotter/internal/storage"
	"github.com/claude/spotter/internal/timer"
)

const testKey = "test-key"

type fakeSessions struct {
	stored  map[string]session.Session
	created []session.Session
}

func (f *fakeSessions) CreateSession(_ context.Context, s session.Session) (session.Session, error) {
	s.ID = "created-1"
	f.created = append(f.created, s)
	return s, nil
}

func (f *fakeSessions) LoadSession(_ context.Context, id string) (session.Session, error) {
	s, ok := f.stored[id]
	if !ok {
		return session.Session{}, storage.ErrNotFound
	}
	return s, nil
}

func (f *fakeSessions) ListSessions(context.Context, int) ([]storage.SessionInfo, error) {
	return []storage.SessionInfo{{ID: "db-1", Name: "Leg Day", Status: "planned", TotalSets: 2}}, nil
}

type testEnv struct {
	srv      *Server
	clock    *timer.FakeClock
	sessions *fakeSessions
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := timer.NewFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	eng := engine.New(engine.Options{Clock: clock}, log)
	t.Cleanup(func() { eng.Close(context.Background()) })

	sessions := &fakeSessions{stored: map[string]session.Session{
		"db-1": {ID: "db-1", Name: "Leg Day", Exercises: []session.Exercise{
			{EntryID: "e1", Name: "Squat", Sets: []session.Set{
				{Number: 1, TargetReps: 5, TargetWeight: 100, RestTimeAfter: 120},
				{Number: 2, TargetReps: 5, TargetWeight: 100},
			}},
		}},
	}}
	return &testEnv{srv: New(eng, sessions, nil, testKey, log), clock: clock, sessions: sessions}
}

func (e *testEnv) do(t *testing.T, method, path, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("X-API-Key", testKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func decodeSnapshot(t *testing.T, rec *httptest.ResponseRecorder) engine.Snapshot {
	t.Helper()
	var snap engine.Snapshot
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	return snap
}

// TestHandleMeDefault verifies the /api/v1/me endpoint returns the dev user
// identity when no Tailscale middleware is active.
func TestHandleMeDefault(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/v1/me", "", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var info UserInfo
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if info.Login != "local" {
		t.Errorf("login = %q, want %q", info.Login, "local")
	}
}

// TestSelectStoredSession verifies a stored session is loaded and the
// workout moves to preparing after the prepare delay.
func TestSelectStoredSession(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/session/select", "application/json", `{"session_id":"db-1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
	snap := decodeSnapshot(t, rec)
	if snap.State.Session == nil || snap.State.Session.ID != "db-1" {
		t.Fatalf("session = %+v, want db-1", snap.State.Session)
	}

	env.clock.Advance(time.Second)
	rec = env.do(t, http.MethodPost, "/api/v1/session/start", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("start status = %d, want 200: %s", rec.Code, rec.Body)
	}
	if got := decodeSnapshot(t, rec).State.Status; got != session.StatusExercising {
		t.Errorf("status = %q, want exercising", got)
	}
}

// TestSelectUnknownSession verifies a missing session id returns 404.
func TestSelectUnknownSession(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/v1/session/select", "application/json", `{"session_id":"nope"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

// TestSelectYAMLPlan verifies an inline YAML plan is accepted and given a
// placeholder id.
func TestSelectYAMLPlan(t *testing.T) {
	env := newTestEnv(t)
	body := "name: Quick\nexercises:\n  - name: Plank\n    sets:\n      - {time: 30}\n"

	rec := env.do(t, http.MethodPost, "/api/v1/session/select", "application/yaml", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
	snap := decodeSnapshot(t, rec)
	if !snap.State.Session.IsPlaceholder() {
		t.Errorf("session id = %q, want placeholder", snap.State.Session.ID)
	}
	if snap.State.Session.Name != "Quick" {
		t.Errorf("name = %q, want Quick", snap.State.Session.Name)
	}
}

// TestSelectRequiresInput verifies the select body must name a session.
func TestSelectRequiresInput(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/v1/session/select", "application/json", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

// TestCommandStatusCodes verifies rejected commands map to 409 and invalid
// arguments to 422.
func TestCommandStatusCodes(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/session/complete-set", "", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("complete-set without session: status = %d, want 409", rec.Code)
	}

	env.do(t, http.MethodPost, "/api/v1/session/select", "application/json", `{"session_id":"db-1"}`)
	env.clock.Advance(time.Second)
	env.do(t, http.MethodPost, "/api/v1/session/start", "", "")

	rec = env.do(t, http.MethodPost, "/api/v1/session/adjust-weight", "application/json", `{"new_weight":-5}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("negative weight: status = %d, want 422", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/session/adjust-weight", "application/json", `{"new_weight":105,"reason":"felt easy"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("adjust-weight: status = %d, want 200: %s", rec.Code, rec.Body)
	}
	snap := decodeSnapshot(t, rec)
	if got := snap.State.Session.Exercises[0].Sets[0].TargetWeight; got != 105 {
		t.Errorf("weight = %v, want 105", got)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/session/pause", "application/json", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body: status = %d, want 400", rec.Code)
	}
}

// TestCommandRequiresAPIKey verifies command routes reject missing keys
// while the snapshot stays readable.
func TestCommandRequiresAPIKey(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/session/pause", nil)
	rec := httptest.NewRecorder()
	env.srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/session", nil)
	rec = httptest.NewRecorder()
	env.srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("snapshot status = %d, want 200", rec.Code)
	}
	if got := decodeSnapshot(t, rec).State.Status; got != session.StatusIdle {
		t.Errorf("status = %q, want idle", got)
	}
}

// TestMessages verifies the context log is exposed after a transition.
func TestMessages(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/v1/session/select", "application/json", `{"session_id":"db-1"}`)

	rec := env.do(t, http.MethodGet, "/api/v1/session/messages", "", "")
	var msgs []struct {
		Event string `json:"event"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&msgs); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(msgs) == 0 || msgs[0].Event != "workout-selected" {
		t.Errorf("messages = %+v, want workout-selected first", msgs)
	}
}

// TestSessionsEndpoints verifies listing, loading and creating sessions.
func TestSessionsEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/sessions", "", "")
	var list []storage.SessionInfo
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(list) != 1 || list[0].ID != "db-1" {
		t.Errorf("list = %+v", list)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/sessions/db-1", "", "")
	if rec.Code != http.StatusOK {
		t.Errorf("get status = %d, want 200", rec.Code)
	}
	rec = env.do(t, http.MethodGet, "/api/v1/sessions/missing", "", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("get missing status = %d, want 404", rec.Code)
	}

	body := "name: Arms\nexercises:\n  - name: Curl\n    sets:\n      - {reps: 10, weight: 12, repeat: 2}\n"
	rec = env.do(t, http.MethodPost, "/api/v1/sessions", "application/yaml", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201: %s", rec.Code, rec.Body)
	}
	if len(env.sessions.created) != 1 || env.sessions.created[0].TotalSets() != 2 {
		t.Errorf("created = %+v", env.sessions.created)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/sessions", "application/json", `{"name":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("create empty status = %d, want 400", rec.Code)
	}
}
