// Package api exposes the HTTP interface for the screener crawler.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/equitylab/screener-crawler/internal/jobs"
	"github.com/equitylab/screener-crawler/internal/metrics"
	"github.com/equitylab/screener-crawler/internal/screener"
)

// Runner executes crawls; satisfied by service.Service.
type Runner interface {
	Run(ctx context.Context, req screener.CrawlRequest) (screener.CrawlResult, error)
}

// Config controls server-side crawl execution limits.
type Config struct {
	// SyncTimeout bounds a synchronous /v1/crawl request.
	SyncTimeout time.Duration
	// AsyncTimeout bounds one background crawl job.
	AsyncTimeout time.Duration
	// MaxAsyncCrawls bounds concurrently running background jobs.
	MaxAsyncCrawls int
}

// Server wires HTTP handlers to the crawl service and job registry.
type Server struct {
	router   chi.Router
	runner   Runner
	registry *jobs.Registry
	idGen    screener.IDGenerator
	logger   *zap.Logger
	cfg      Config
	sem      chan struct{}
}

// NewServer constructs a Server with middleware and routes.
func NewServer(runner Runner, registry *jobs.Registry, idGen screener.IDGenerator, logger *zap.Logger, cfg Config) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SyncTimeout <= 0 {
		cfg.SyncTimeout = 5 * time.Minute
	}
	if cfg.AsyncTimeout <= 0 {
		cfg.AsyncTimeout = 15 * time.Minute
	}
	if cfg.MaxAsyncCrawls <= 0 {
		cfg.MaxAsyncCrawls = 2
	}

	s := &Server{
		runner:   runner,
		registry: registry,
		idGen:    idGen,
		logger:   logger,
		cfg:      cfg,
		sem:      make(chan struct{}, cfg.MaxAsyncCrawls),
	}

	r := chi.NewRouter()
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/crawl", s.crawlSync)
		r.Route("/crawl/jobs", func(r chi.Router) {
			r.Post("/", s.submitJob)
			r.Get("/{job_id}", s.getJob)
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type crawlRequestBody struct {
	Region          string `json:"region"`
	MaxPages        int    `json:"max_pages"`
	TimeoutSeconds  int    `json:"timeout_seconds"`
	UseCache        bool   `json:"use_cache"`
	CacheTTLMinutes int    `json:"cache_ttl_minutes"`
}

type crawlResponse struct {
	Records        []screener.EquityQuote `json:"records"`
	Source         string                 `json:"source"`
	Pages          int                    `json:"pages"`
	TotalRecords   int                    `json:"total_records"`
	ElapsedSeconds float64                `json:"elapsed_seconds"`
}

func (b crawlRequestBody) toCrawlRequest() screener.CrawlRequest {
	req := screener.CrawlRequest{
		Region:   b.Region,
		MaxPages: b.MaxPages,
		UseCache: b.UseCache,
	}
	if b.TimeoutSeconds > 0 {
		req.Timeout = time.Duration(b.TimeoutSeconds) * time.Second
	}
	if b.CacheTTLMinutes > 0 {
		req.CacheTTL = time.Duration(b.CacheTTLMinutes) * time.Minute
	} else if b.UseCache {
		req.CacheTTL = 30 * time.Minute
	}
	return req
}

func (s *Server) crawlSync(w http.ResponseWriter, r *http.Request) {
	var body crawlRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req := body.toCrawlRequest()
	if err := req.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.SyncTimeout)
	defer cancel()

	start := time.Now()
	result, err := s.runner.Run(ctx, req)
	if err != nil {
		s.writeCrawlError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, crawlResponse{
		Records:        result.Records,
		Source:         result.Source,
		Pages:          result.Pages,
		TotalRecords:   len(result.Records),
		ElapsedSeconds: time.Since(start).Seconds(),
	})
}

func (s *Server) submitJob(w http.ResponseWriter, r *http.Request) {
	var body crawlRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req := body.toCrawlRequest()
	if err := req.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	jobID, err := s.idGen.NewID()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "generate job id")
		return
	}
	job := s.registry.Create(jobID, req.Region)

	go s.runJob(jobID, req)

	s.writeJSON(w, http.StatusAccepted, map[string]any{
		"accepted": true,
		"job_id":   job.ID,
		"status":   job.Status,
	})
}

// runJob executes a background crawl under the async budget. The job
// does not inherit the submit request's context: the crawl outlives the
// HTTP exchange by design.
func (s *Server) runJob(jobID string, req screener.CrawlRequest) {
	s.sem <- struct{}{}
	defer func() { <-s.sem }()

	s.registry.MarkRunning(jobID)

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.AsyncTimeout)
	defer cancel()

	result, err := s.runner.Run(ctx, req)
	if err != nil {
		s.logger.Warn("async crawl failed",
			zap.String("job_id", jobID),
			zap.String("region", req.Region),
			zap.Error(err))
		s.registry.MarkFailed(jobID, err)
		return
	}
	s.registry.MarkCompleted(jobID, result)
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, ok := s.registry.Get(jobID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

// writeCrawlError maps the crawl error taxonomy onto HTTP statuses so
// callers can distinguish bad region input, upstream site trouble, and
// internal faults.
func (s *Server) writeCrawlError(w http.ResponseWriter, err error) {
	var regionErr *screener.RegionNotFoundError
	var navErr *screener.NavigationError
	var pageErr *screener.PaginationError

	switch {
	case errors.As(err, &regionErr):
		s.writeError(w, http.StatusUnprocessableEntity, regionErr.Error())
	case errors.As(err, &navErr), errors.As(err, &pageErr):
		s.writeError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		s.writeError(w, http.StatusGatewayTimeout, "crawl timed out")
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON response failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
