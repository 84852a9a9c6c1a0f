// Package server is the HTTP upload boundary.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/common"
	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/entity"
	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/pipeline"
)

const requestIDHeader = "X-Request-ID"

// Processor runs one batch. *pipeline.Processor satisfies it.
type Processor interface {
	Process(ctx context.Context, files []entity.SourceFile) (*pipeline.Result, error)
}

type Config struct {
	MaxUploadBytes int64 // whole request body, 0 = no limit
	MaxMemory      int64 // multipart parts above this spill to disk
}

type Server struct {
	proc   Processor
	cfg    Config
	logger *slog.Logger
}

func New(proc Processor, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxMemory <= 0 {
		cfg.MaxMemory = 32 << 20
	}
	return &Server{proc: proc, cfg: cfg, logger: logger}
}

// Handler returns the router with every route mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestContext)
	s.RegisterHTTP(r)
	return r
}

// RegisterHTTP mounts the routes on r.
func (s *Server) RegisterHTTP(r chi.Router) {
	r.Get("/healthz", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/extract", s.handleExtract)
		r.Post("/export/xlsx", s.handleExportXLSX)
		r.Post("/export/json", s.handleExportJSON)
	})
}

// requestContext attaches a request id and a request-scoped logger, and logs
// one line per request.
func (s *Server) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		logger := s.logger.With("req_id", id)
		ctx := common.WithLogger(common.WithRequestID(r.Context(), id), logger)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))
		logger.Info("http.request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
