package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"pulsechat-backend/internal/animation"
	"pulsechat-backend/internal/config"
	"pulsechat-backend/internal/db"
	"pulsechat-backend/internal/dispatch"
	"pulsechat-backend/internal/session"
	"pulsechat-backend/internal/types"
)

type Server struct {
	router   *chi.Mux
	cfg      config.Config
	relay    http.Handler
	sessions *session.Manager
	database *db.DB
}

// Deps are the components built by the caller from the config.
type Deps struct {
	Relay    http.Handler
	Sessions *session.Manager
	// Database is optional; when set it is included in health checks.
	Database *db.DB
}

func NewServer(cfg config.Config, deps Deps) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		cfg:      cfg,
		relay:    deps.Relay,
		sessions: deps.Sessions,
		database: deps.Database,
	}
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Get("/api/health", s.handleHealth)

	// The relay answers its own preflight and CORS headers.
	if s.relay != nil {
		s.router.Handle("/api/relay", s.relay)
		s.router.Handle("/functions/v1/grok-chat", s.relay)
	}

	s.router.Group(func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{s.cfg.AllowedOrigin},
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With", "X-Session-Id"},
			ExposedHeaders:   []string{"X-Session-Id"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
		r.Post("/api/session", s.handleCreateSession)
		r.Get("/api/session", s.handleGetSession)
		r.Delete("/api/session", s.handleDeleteSession)
		r.Post("/api/session/input", s.handleInput)
		r.Post("/api/session/messages", s.handleSubmit)
		r.Get("/api/session/transcript", s.handleTranscript)
		r.Get("/api/session/frame", s.handleFrame)
		r.Get("/api/session/scene", s.handleScene)
		r.Get("/api/session/notifications", s.handleNotifications)
		r.Get("/api/session/events", s.handleEvents)
	})
}

func (s *Server) Router() http.Handler { return s.router }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok"}
	if s.database != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.database.HealthCheck(ctx); err != nil {
			log.Warn().Err(err).Msg("health: database unreachable")
			status["database"] = "unavailable"
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		status["database"] = "ok"
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Create(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("session: create failed")
		s.writeError(w, http.StatusInternalServerError, "could not create session")
		return
	}
	SetSessionCookie(w, r, sess.ID)
	w.Header().Set("X-Session-Id", sess.ID)
	writeJSON(w, http.StatusCreated, sessionResponse(sess))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(sess))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if sid := getSessionID(r); sid != "" {
		if err := s.sessions.Delete(r.Context(), sid); err != nil {
			log.Error().Err(err).Str("session", sid).Msg("session: delete failed")
			s.writeError(w, http.StatusInternalServerError, "could not delete session")
			return
		}
	}
	ClearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleInput(w http.ResponseWriter, r *http.Request) {
	var req types.InputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	sess, ok := s.getOrCreateSession(w, r)
	if !ok {
		return
	}
	sess.InputChanged(req.Text)
	writeJSON(w, http.StatusOK, sessionResponse(sess))
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req types.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	sess, ok := s.getOrCreateSession(w, r)
	if !ok {
		return
	}

	// A send in flight runs to completion or RELAY_TIMEOUT even if the
	// client goes away.
	ex, err := sess.SubmitMessage(context.WithoutCancel(r.Context()), req.Message)
	switch {
	case errors.Is(err, dispatch.ErrEmptyMessage):
		s.writeError(w, http.StatusBadRequest, "message is required")
		return
	case errors.Is(err, dispatch.ErrSendInFlight):
		s.writeError(w, http.StatusConflict, "a message is already being sent")
		return
	case err != nil && ex.AI == "":
		log.Error().Err(err).Str("session", sess.ID).Msg("submit failed")
		s.writeError(w, http.StatusInternalServerError, "could not record message")
		return
	}

	resp := types.SubmitResponse{
		SessionID: sess.ID,
		Exchange:  types.Exchange{User: ex.User, AI: ex.AI, Timestamp: ex.Timestamp},
		Fallback:  err != nil,
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, types.TranscriptResponse{
		SessionID: sess.ID,
		Exchanges: session.WireTranscript(sess.GetTranscript()),
	})
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Frame())
}

type sceneObject struct {
	Shape    animation.Shape `json:"shape"`
	Position animation.Vec3  `json:"position"`
	Color    string          `json:"color"`
}

func (s *Server) handleScene(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	objects := sess.Scene()
	out := make([]sceneObject, len(objects))
	for i, o := range objects {
		out[i] = sceneObject{Shape: o.Shape, Position: o.Position, Color: o.Color.Hex()}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"objects":   out,
		"particles": animation.ParticlePositions(animation.ParticleCount, 1),
	})
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Notifications())
}

func (s *Server) lookupSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.sessions.Get(r.Context(), getSessionID(r))
	if errors.Is(err, session.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	if err != nil {
		log.Error().Err(err).Msg("session: lookup failed")
		s.writeError(w, http.StatusInternalServerError, "could not load session")
		return nil, false
	}
	return sess, true
}

// getOrCreateSession reuses the caller's session or starts one and sets the cookie.
func (s *Server) getOrCreateSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sid := getSessionID(r)
	if sid != "" {
		sess, err := s.sessions.Get(r.Context(), sid)
		if err == nil {
			w.Header().Set("X-Session-Id", sess.ID)
			return sess, true
		}
		if !errors.Is(err, session.ErrNotFound) {
			log.Error().Err(err).Str("session", sid).Msg("session: lookup failed")
			s.writeError(w, http.StatusInternalServerError, "could not load session")
			return nil, false
		}
	}
	sess, err := s.sessions.Create(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("session: create failed")
		s.writeError(w, http.StatusInternalServerError, "could not create session")
		return nil, false
	}
	log.Debug().Str("session", sess.ID).Str("path", r.URL.Path).Msg("session: created on demand")
	SetSessionCookie(w, r, sess.ID)
	w.Header().Set("X-Session-Id", sess.ID)
	return sess, true
}

// getSessionID reads the session id from the cookie, then the header, then the query.
func getSessionID(r *http.Request) string {
	if cookie, err := GetSessionCookie(r); err == nil && cookie != "" {
		return cookie
	}
	if sid := r.Header.Get("X-Session-Id"); sid != "" {
		return sid
	}
	if sid := r.URL.Query().Get("sessionId"); sid != "" {
		return sid
	}
	return ""
}

func sessionResponse(sess *session.Session) types.SessionResponse {
	return types.SessionResponse{
		SessionID: sess.ID,
		Typing:    sess.Typing(),
		Sending:   sess.Sending(),
		Draft:     sess.Draft(),
		Exchanges: len(sess.GetTranscript()),
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, types.ErrorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
