// Package server exposes the analysis API over HTTP.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fluxadm/analyzer/internal/analysis/orchestrator"
	"github.com/fluxadm/analyzer/internal/core/domain"
	"github.com/fluxadm/analyzer/internal/infra/cache"
	"github.com/fluxadm/analyzer/internal/infra/storage"
)

const maxBodyBytes = 1 << 20 // 1 MiB of document text is plenty

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Server provides HTTP endpoints for analysis and monitoring.
type Server struct {
	orch     *orchestrator.Orchestrator
	cache    *cache.ResultCache
	analyses storage.AnalysisRepository
	db       HealthChecker
	log      *slog.Logger
	server   *http.Server
}

// Options carries the optional collaborators; any of them may be nil.
type Options struct {
	Cache    *cache.ResultCache
	Analyses storage.AnalysisRepository
	DB       HealthChecker
	Logger   *slog.Logger
}

// NewServer creates the API server.
func NewServer(orch *orchestrator.Orchestrator, port int, opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	mux := http.NewServeMux()
	s := &Server{
		orch:     orch,
		cache:    opts.Cache,
		analyses: opts.Analyses,
		db:       opts.DB,
		log:      log,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}

	mux.HandleFunc("POST /api/v1/analyze", s.handleAnalyze)
	mux.HandleFunc("GET /api/v1/providers", s.handleProviders)
	mux.HandleFunc("GET /api/v1/analyses", s.handleRecent)
	mux.HandleFunc("GET /api/v1/analyses/{id}", s.handleGetAnalysis)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type analyzeRequest struct {
	DocumentID   string `json:"document_id"`
	Text         string `json:"text"`
	CategoryHint string `json:"category_hint,omitempty"`
	// SkipCache forces a fresh provider run even when a cached result
	// exists.
	SkipCache bool `json:"skip_cache,omitempty"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	ctx := r.Context()

	if s.cache != nil && !req.SkipCache {
		if res, ok := s.cache.Get(ctx, req.Text); ok {
			s.log.Debug("Serving analysis from cache", "document_id", req.DocumentID)
			writeJSON(w, http.StatusOK, res)
			return
		}
	}

	requestID := uuid.NewString()
	res := s.orch.Analyze(ctx, domain.AnalysisRequest{
		ID:           requestID,
		DocumentID:   req.DocumentID,
		Text:         req.Text,
		CategoryHint: domain.NormalizeCategory(req.CategoryHint),
	})

	if s.cache != nil {
		s.cache.Set(ctx, req.Text, res)
	}
	s.persist(requestID, req.DocumentID, res)

	w.Header().Set("X-Request-Id", requestID)
	writeJSON(w, http.StatusOK, res)
}

// persist writes the result to the audit store off the request path; a
// slow database never delays the response.
func (s *Server) persist(requestID, documentID string, res domain.AnalysisResult) {
	if s.analyses == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.analyses.Save(ctx, &storage.StoredAnalysis{
			RequestID:  requestID,
			DocumentID: documentID,
			Result:     res,
		}); err != nil {
			s.log.Warn("Failed to persist analysis", "error", err)
		}
	}()
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.Status())
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	if s.analyses == nil {
		writeError(w, http.StatusNotFound, "audit store not configured")
		return
	}

	recs, err := s.analyses.ListRecent(r.Context(), 20)
	if err != nil {
		s.log.Error("Failed to list analyses", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list analyses")
		return
	}
	if recs == nil {
		recs = []*storage.StoredAnalysis{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	if s.analyses == nil {
		writeError(w, http.StatusNotFound, "audit store not configured")
		return
	}

	rec, err := s.analyses.GetByRequestID(r.Context(), r.PathValue("id"))
	if err != nil {
		s.log.Error("Failed to get analysis", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get analysis")
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "analysis not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK

	if s.db != nil {
		if err := s.db.Health(r.Context()); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, code, map[string]any{
		"status":    status,
		"providers": s.orch.Status(),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
