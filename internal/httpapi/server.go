package httpapi

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/agentworkforce/relaysync/internal/relaysync"
)

// Server is the read-mostly status surface for a running sync daemon: job
// progress, recent failures, queue depth, and a manual retry hook. It is
// the boundary the UI plugs into; rendering stays out of scope.
type ServerConfig struct {
	AuthToken string
	Logger    zerolog.Logger
}

type Server struct {
	progress     *relaysync.JobProgressStore
	failures     *relaysync.FailureLog
	limiter      *relaysync.RateLimiter
	orchestrator *relaysync.Orchestrator
	cfg          ServerConfig
	logger       zerolog.Logger
}

func NewServer(progress *relaysync.JobProgressStore, failures *relaysync.FailureLog, limiter *relaysync.RateLimiter, orchestrator *relaysync.Orchestrator, cfg ServerConfig) *Server {
	return &Server{
		progress:     progress,
		failures:     failures,
		limiter:      limiter,
		orchestrator: orchestrator,
		cfg:          cfg,
		logger:       cfg.Logger,
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/health" && r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	if !s.authorize(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case len(parts) == 2 && parts[0] == "v1" && parts[1] == "jobs" && r.Method == http.MethodGet:
		s.handleResumableJob(w)
	case len(parts) == 3 && parts[0] == "v1" && parts[1] == "jobs" && r.Method == http.MethodGet:
		s.handleJob(w, parts[2])
	case len(parts) == 2 && parts[0] == "v1" && parts[1] == "failures" && r.Method == http.MethodGet:
		s.handleFailures(w)
	case len(parts) == 2 && parts[0] == "v1" && parts[1] == "queue" && r.Method == http.MethodGet:
		s.handleQueue(w)
	case len(parts) == 3 && parts[0] == "v1" && parts[1] == "retry" && r.Method == http.MethodPost:
		s.handleRetry(w, r, parts[2])
	default:
		writeError(w, http.StatusNotFound, "not_found", "route not found")
	}
}

func (s *Server) authorize(r *http.Request) bool {
	if s.cfg.AuthToken == "" {
		return true
	}
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return false
	}
	presented := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	return subtle.ConstantTimeCompare([]byte(presented), []byte(s.cfg.AuthToken)) == 1
}

func (s *Server) handleResumableJob(w http.ResponseWriter) {
	job, ok, err := s.progress.FindResumable()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"resumable": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"resumable": true, "job": job})
}

func (s *Server) handleJob(w http.ResponseWriter, jobID string) {
	job, ok, err := s.progress.Load(jobID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleFailures(w http.ResponseWriter) {
	records, err := s.failures.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	if records == nil {
		records = []relaysync.FailureRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"failures": records})
}

func (s *Server) handleQueue(w http.ResponseWriter) {
	depth := 0
	if s.limiter != nil {
		depth = s.limiter.Depth()
	}
	writeJSON(w, http.StatusOK, map[string]any{"queueDepth": depth})
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request, id string) {
	if s.orchestrator == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "retry is not wired on this daemon")
		return
	}
	result, err := s.orchestrator.RetryOne(r.Context(), id)
	if err != nil {
		if errors.Is(err, relaysync.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, "bad_request", "thread id is required")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	s.logger.Info().Str("thread", id).Str("status", string(result.Status)).Msg("manual retry")
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"code":    code,
		"message": message,
	})
}
