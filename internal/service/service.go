// Package service provides the crawl façade shared by the CLI and the
// HTTP API. It assembles a per-request orchestrator and delegates; no
// crawl logic lives here.
package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/equitylab/screener-crawler/internal/cache"
	"github.com/equitylab/screener-crawler/internal/parser"
	"github.com/equitylab/screener-crawler/internal/screener"
)

// Dependencies holds the long-lived collaborators. NewDriver is a
// factory because each crawl owns one browser session configured with
// the request's page timeout.
type Dependencies struct {
	NewDriver      func(pageTimeout time.Duration) screener.PaginationDriver
	Store          screener.CacheStore
	Clock          screener.Clock
	Hasher         screener.Hasher
	CacheNamespace string
	Logger         *zap.Logger
}

// Service runs crawls.
type Service struct {
	deps Dependencies
}

// New validates the wiring and creates a Service.
func New(deps Dependencies) (*Service, error) {
	if deps.NewDriver == nil {
		return nil, fmt.Errorf("driver factory is required")
	}
	if deps.Clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if deps.Hasher == nil {
		return nil, fmt.Errorf("hasher is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Service{deps: deps}, nil
}

// Run executes one crawl synchronously and returns the ordered,
// deduplicated records together with their source.
func (s *Service) Run(ctx context.Context, req screener.CrawlRequest) (screener.CrawlResult, error) {
	if err := req.Validate(); err != nil {
		return screener.CrawlResult{}, fmt.Errorf("invalid crawl request: %w", err)
	}

	driver := s.deps.NewDriver(req.PageTimeout())

	// Memoization scope is one crawl, so the decorated parser is built
	// per run.
	recordParser := parser.NewMemoized(parser.New(s.deps.Logger), s.deps.Hasher)

	var resultCache screener.ResultCache
	if req.UseCache && s.deps.Store != nil {
		resultCache = cache.New(s.deps.Store, s.deps.Clock, cache.Config{
			TTL:       req.CacheTTL,
			Namespace: s.deps.CacheNamespace,
		}, s.deps.Logger)
	}

	orch := screener.NewOrchestrator(driver, recordParser, resultCache, s.deps.Logger)
	return orch.Crawl(ctx, req)
}
