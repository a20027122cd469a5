// Package chi exposes the chat API over HTTP.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/coursechat/internal/db"
	"github.com/kailas-cloud/coursechat/internal/domain"
	"github.com/kailas-cloud/coursechat/internal/rag"
	"github.com/kailas-cloud/coursechat/internal/tools"
)

// QueryService is the coordinator surface the server exposes.
type QueryService interface {
	Query(ctx context.Context, text, sessionID string) (string, []tools.Source, error)
	CourseAnalytics(ctx context.Context) rag.Analytics
}

// SessionManager creates and clears conversation sessions.
type SessionManager interface {
	Create() string
	Clear(id string) error
}

// HealthChecker reports availability of the upstream LLM provider.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server handles the chat API routes.
type Server struct {
	service  QueryService
	sessions SessionManager
	pinger   db.Pinger
	llm      HealthChecker
	logger   *zap.Logger
}

// NewServer creates an HTTP API server. llm may be nil; the health
// endpoint then reports database status only.
func NewServer(service QueryService, sessions SessionManager, pinger db.Pinger, llm HealthChecker, logger *zap.Logger) *Server {
	return &Server{service: service, sessions: sessions, pinger: pinger, llm: llm, logger: logger}
}

// Router assembles the route tree with the given middlewares applied to
// every route.
func (s *Server) Router(middlewares ...func(http.Handler) http.Handler) *chi.Mux {
	r := chi.NewRouter()
	for _, mw := range middlewares {
		r.Use(mw)
	}

	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Route("/api", func(r chi.Router) {
		r.Post("/query", s.HandleQuery)
		r.Get("/courses", s.ListCourses)
		r.Delete("/sessions/{sessionID}", s.ClearSession)
	})
	return r
}

type queryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

type queryResponse struct {
	Answer    string         `json:"answer"`
	Sources   []tools.Source `json:"sources"`
	SessionID string         `json:"session_id"`
}

// HandleQuery handles POST /api/query. A missing session id starts a new
// session whose id comes back in the response.
func (s *Server) HandleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "query is required")
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = s.sessions.Create()
	}

	answer, sources, err := s.service.Query(r.Context(), req.Query, sessionID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	if sources == nil {
		sources = []tools.Source{}
	}
	writeJSON(w, http.StatusOK, queryResponse{
		Answer:    answer,
		Sources:   sources,
		SessionID: sessionID,
	})
}

// ListCourses handles GET /api/courses.
func (s *Server) ListCourses(w http.ResponseWriter, r *http.Request) {
	analytics := s.service.CourseAnalytics(r.Context())
	if analytics.CourseTitles == nil {
		analytics.CourseTitles = []string{}
	}
	writeJSON(w, http.StatusOK, analytics)
}

// ClearSession handles DELETE /api/sessions/{sessionID}.
func (s *Server) ClearSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "session id is required")
		return
	}

	if err := s.sessions.Clear(sessionID); err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "Session not found")
			return
		}
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok"}
	code := http.StatusOK

	if err := s.pinger.Ping(r.Context()); err != nil {
		status["status"] = "degraded"
		status["database"] = err.Error()
		code = http.StatusServiceUnavailable
	}
	if s.llm != nil {
		if err := s.llm.HealthCheck(r.Context()); err != nil {
			status["status"] = "degraded"
			status["llm"] = err.Error()
			code = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, code, status)
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// handleDomainError maps failures to statuses: the LLM being down is the
// upstream's fault (502), everything else is ours (500).
func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrLLMProvider):
		s.logger.Warn("llm provider error", zap.Error(err))
		writeError(w, http.StatusBadGateway, "llm_provider_error", domain.ErrLLMProvider.Error())
	case errors.Is(err, domain.ErrEmptyReply):
		s.logger.Error("empty model reply", zap.Error(err))
		writeError(w, http.StatusBadGateway, "llm_provider_error", domain.ErrEmptyReply.Error())
	default:
		s.logger.Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}
