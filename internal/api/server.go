// Package api exposes the idea-generation and session endpoints over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/ideaforge-io/ideaforge/internal/common"
	"github.com/ideaforge-io/ideaforge/internal/ideas"
	"github.com/ideaforge-io/ideaforge/internal/llm"
	"github.com/ideaforge-io/ideaforge/internal/session"
)

type Server struct {
	router     chi.Router
	service    *ideas.Service
	sessions   *session.Manager
	uploadRoot string
}

func NewServer(service *ideas.Service, sessions *session.Manager) (*Server, error) {
	if service == nil {
		return nil, fmt.Errorf("idea service required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session manager required")
	}
	uploadRoot := filepath.Join(os.TempDir(), "ideaforge_uploads")
	if err := os.MkdirAll(uploadRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create upload root: %w", err)
	}
	srv := &Server{
		router:     chi.NewRouter(),
		service:    service,
		sessions:   sessions,
		uploadRoot: uploadRoot,
	}
	srv.routes()
	common.Logger().Info("api: server ready")
	return srv, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	logger := common.Logger()
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("request", "method", r.Method, "path", r.URL.Path, "dur", time.Since(start), "remote", r.RemoteAddr)
		})
	})

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.router.Post("/api/generate-ideas", s.handleGenerateIdeas)
	s.router.Post("/api/refine-idea", s.handleRefinePreset)
	s.router.Post("/api/refine-idea-custom", s.handleRefineCustom)
	s.router.Post("/api/implementation-steps", s.handleImplementationSteps)

	s.router.Post("/api/start-session", s.handleStartSession)
	s.router.Post("/api/track-form-submission", s.handleTrackFormSubmission)
	s.router.Post("/api/end-session", s.handleEndSession)

	s.router.Get("/api/download-usage-data", s.handleDownloadUsageData)
	s.router.Get("/api/usage-stats", s.handleUsageStats)
	s.router.Get("/api/debug-data", s.handleDebugData)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	logger := common.Logger()
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err)
	} else {
		logger.Warn("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeServiceError maps idea-service failures onto wire responses: caller
// mistakes get 400, gateway exhaustion surfaces as 503 or 429 with a retry
// hint, and everything else is a 500.
func writeServiceError(w http.ResponseWriter, err error) {
	var vErr *ideas.ValidationError
	if errors.As(err, &vErr) {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var gErr *llm.GatewayError
	if errors.As(err, &gErr) {
		logger := common.Logger()
		switch gErr.Kind {
		case llm.KindOverloaded:
			logger.Warn("request failed: provider overloaded", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
				"error":      "The AI service is temporarily overloaded. Please try again shortly.",
				"retryAfter": gErr.RetryAfter(),
			})
			return
		case llm.KindRateLimited:
			logger.Warn("request failed: rate limited", "error", err)
			writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
				"error":      "Too many requests right now. Please wait a minute and try again.",
				"retryAfter": gErr.RetryAfter(),
			})
			return
		}
	}
	writeError(w, http.StatusInternalServerError, err)
}

func trimmedForm(r *http.Request, field string) string {
	return strings.TrimSpace(r.FormValue(field))
}
