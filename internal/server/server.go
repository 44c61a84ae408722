package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/claude/spotter/internal/bridge"
	"github.com/claude/spotter/internal/engine"
	"github.com/claude/spotter/internal/session"
	"github.com/claude/spotter/internal/storage"
)

// SessionStore loads and stores planned sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, s session.Session) (session.Session, error)
	LoadSession(ctx context.Context, id string) (session.Session, error)
	ListSessions(ctx context.Context, limit int) ([]storage.SessionInfo, error)
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	engine   *engine.Engine
	sessions SessionStore
	hub      *bridge.Hub
	log      *slog.Logger
	apiKey   string
	identity func(http.Handler) http.Handler
	router   chi.Router
}

// New creates a new Server with all routes configured. Requests are
// attributed to the local user until SetTailscale is called.
func New(eng *engine.Engine, sessions SessionStore, hub *bridge.Hub, apiKey string, log *slog.Logger) *Server {
	s := &Server{
		engine:   eng,
		sessions: sessions,
		hub:      hub,
		log:      log,
		apiKey:   apiKey,
		identity: DevIdentity,
		router:   chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// SetTailscale resolves request identities through the tailnet.
func (s *Server) SetTailscale(lc WhoIser) {
	s.identity = TailscaleIdentity(lc, s.log)
}

// MountMCP serves an MCP handler under /mcp behind the API key.
func (s *Server) MountMCP(h http.Handler) {
	s.router.With(APIKeyAuth(s.apiKey)).Mount("/mcp", h)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.identity(next).ServeHTTP(w, r)
		})
	})

	s.router.Get("/api/v1/me", s.handleMe)

	// Read-only views (no key; tsnet handles access)
	s.router.Get("/api/v1/session", s.handleSnapshot)
	s.router.Get("/api/v1/session/messages", s.handleMessages)
	s.router.Get("/api/v1/sessions", s.handleListSessions)
	s.router.Get("/api/v1/sessions/{id}", s.handleGetSession)

	s.router.Group(func(r chi.Router) {
		r.Use(APIKeyAuth(s.apiKey))

		r.Post("/api/v1/sessions", s.handleCreateSession)
		r.Get("/api/v1/agent/ws", s.hub.HandleWS)

		r.Post("/api/v1/session/select", s.handleSelect)
		r.Post("/api/v1/session/start", command[session.ConfirmReadyAndStartSet](s))
		r.Post("/api/v1/session/complete-set", command[session.CompleteSet](s))
		r.Post("/api/v1/session/pause", command[session.PauseSet](s))
		r.Post("/api/v1/session/resume", command[session.ResumeSet](s))
		r.Post("/api/v1/session/adjust-weight", command[session.AdjustWeight](s))
		r.Post("/api/v1/session/adjust-reps", command[session.AdjustReps](s))
		r.Post("/api/v1/session/adjust-rest", command[session.AdjustRestTime](s))
		r.Post("/api/v1/session/extend-rest", command[session.ExtendRest](s))
		r.Post("/api/v1/session/jump", command[session.JumpToSet](s))
		r.Post("/api/v1/session/previous-set", command[session.PreviousSet](s))
		r.Post("/api/v1/session/next-set", command[session.NextSet](s))
		r.Post("/api/v1/session/complete-exercise", command[session.CompleteExercise](s))
		r.Post("/api/v1/session/complete-workout", command[session.CompleteWorkout](s))
		r.Post("/api/v1/session/finish-early", command[session.FinishWorkoutEarly](s))
		r.Post("/api/v1/session/cleanup", command[session.Cleanup](s))
	})
}
