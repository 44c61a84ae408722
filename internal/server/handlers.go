package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/claude/spotter/internal/engine"
	"github.com/claude/spotter/internal/plan"
	"github.com/claude/spotter/internal/session"
	"github.com/claude/spotter/internal/storage"
)

const maxBodyBytes = 1 << 20

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userInfoFromContext(r))
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Messages())
}

// command decodes the optional JSON body into C and dispatches it.
func command[C session.Command](s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var cmd C
		if err := decodeBody(w, r, &cmd); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
			return
		}
		s.dispatch(w, r, cmd)
	}
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, cmd session.Command) {
	user := userInfoFromContext(r)
	if err := s.engine.Dispatch(cmd); err != nil {
		s.log.Info("command ignored", "command", cmd.Name(), "user", user.Login, "reason", err)
		writeJSON(w, commandStatus(err), map[string]string{"error": err.Error()})
		return
	}
	s.log.Debug("command applied", "command", cmd.Name(), "user", user.Login)
	writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

// commandStatus maps a rejected command to its HTTP status.
func commandStatus(err error) int {
	switch {
	case errors.Is(err, session.ErrInvalidValue):
		return http.StatusUnprocessableEntity
	case errors.Is(err, engine.ErrIgnored):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

type selectRequest struct {
	SessionID string           `json:"session_id"`
	Plan      *session.Session `json:"plan"`
}

// handleSelect loads a stored session by id or takes an inline plan, as
// JSON or as a YAML plan document. Inline plans get a placeholder id.
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var sess session.Session
	switch {
	case isYAML(r):
		p, err := readPlan(w, r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		sess = p.Session()
	default:
		var req selectRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
			return
		}
		switch {
		case req.SessionID != "":
			loaded, err := s.sessions.LoadSession(r.Context(), req.SessionID)
			if errors.Is(err, storage.ErrNotFound) {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
				return
			}
			if err != nil {
				s.log.Error("loading session", "session_id", req.SessionID, "error", err)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
				return
			}
			sess = loaded
		case req.Plan != nil:
			sess = *req.Plan
		default:
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "session_id or plan required"})
			return
		}
	}
	if sess.ID == "" {
		sess.ID = session.NewPlaceholderID()
	}
	s.dispatch(w, r, session.SelectWorkout{Session: sess})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}
	list, err := s.sessions.ListSessions(r.Context(), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if list == nil {
		list = []storage.SessionInfo{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.LoadSession(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// handleCreateSession stores a YAML plan or a JSON session.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var sess session.Session
	if isYAML(r) {
		p, err := readPlan(w, r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		sess = p.Session()
	} else {
		if err := decodeBody(w, r, &sess); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
			return
		}
		if sess.Name == "" || len(sess.Exercises) == 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name and exercises required"})
			return
		}
	}

	created, err := s.sessions.CreateSession(r.Context(), sess)
	if err != nil {
		s.log.Error("creating session", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	s.log.Info("session created", "session_id", created.ID, "name", created.Name,
		"user", userInfoFromContext(r).Login)
	writeJSON(w, http.StatusCreated, created)
}

// decodeBody decodes a JSON body into v. An empty body leaves v unchanged.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func isYAML(r *http.Request) bool {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mt {
	case "application/yaml", "application/x-yaml", "text/yaml":
		return true
	}
	return false
}

func readPlan(w http.ResponseWriter, r *http.Request) (*plan.Plan, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading plan: %w", err)
	}
	return plan.Parse(data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
