package screener

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/equitylab/screener-crawler/internal/metrics"
)

// Crawl statuses reported to metrics.
const (
	statusSucceeded = "succeeded"
	statusFailed    = "failed"
)

// Orchestrator drives one browser session page-by-page, feeds each page
// to the parser, deduplicates across pages, and consults the result
// cache before and after the traversal. One Orchestrator may serve many
// concurrent crawls; per-crawl state lives on the stack of Crawl.
type Orchestrator struct {
	driver PaginationDriver
	parser RecordParser
	cache  ResultCache
	logger *zap.Logger
}

// NewOrchestrator wires the crawl engine. cache may be nil when caching
// is disabled for the process.
func NewOrchestrator(driver PaginationDriver, parser RecordParser, cache ResultCache, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		driver: driver,
		parser: parser,
		cache:  cache,
		logger: logger,
	}
}

// Crawl runs the full cache-check / traversal / finalize cycle for one
// request and returns the ordered, deduplicated quotes. The result is
// all-or-nothing: no partial records are returned on failure.
func (o *Orchestrator) Crawl(ctx context.Context, req CrawlRequest) (CrawlResult, error) {
	if err := req.Validate(); err != nil {
		return CrawlResult{}, fmt.Errorf("invalid crawl request: %w", err)
	}
	start := time.Now()

	if cached, ok := o.checkCache(ctx, req); ok {
		metrics.ObserveCrawl(SourceCache, statusSucceeded, time.Since(start))
		return CrawlResult{Records: cached.Records, Source: SourceCache}, nil
	}

	records, pages, err := o.crawlLive(ctx, req)
	if err != nil {
		metrics.ObserveCrawl(SourceLive, statusFailed, time.Since(start))
		return CrawlResult{}, err
	}

	o.writeCache(ctx, req, records)

	metrics.ObserveCrawl(SourceLive, statusSucceeded, time.Since(start))
	return CrawlResult{Records: records, Source: SourceLive, Pages: pages}, nil
}

// checkCache returns a fresh cached result when caching is enabled and
// the backend has one. A backend fault degrades to a miss so an
// unavailable cache can never fail a crawl.
func (o *Orchestrator) checkCache(ctx context.Context, req CrawlRequest) (CachedResult, bool) {
	if !req.UseCache || o.cache == nil {
		return CachedResult{}, false
	}
	cached, ok, err := o.cache.Get(ctx, req.Region)
	if err != nil {
		metrics.ObserveCacheEvent("get", "error")
		o.logger.Warn("cache read failed, crawling live",
			zap.String("region", req.Region), zap.Error(err))
		return CachedResult{}, false
	}
	if !ok {
		metrics.ObserveCacheEvent("get", "miss")
		return CachedResult{}, false
	}
	metrics.ObserveCacheEvent("get", "hit")
	o.logger.Info("cache hit",
		zap.String("region", req.Region), zap.Int("records", len(cached.Records)))
	return cached, true
}

// writeCache persists a successful crawl. A write fault is logged and
// swallowed: the crawl result is still returned to the caller.
func (o *Orchestrator) writeCache(ctx context.Context, req CrawlRequest, records []EquityQuote) {
	if !req.UseCache || o.cache == nil {
		return
	}
	if err := o.cache.Set(ctx, req.Region, records); err != nil {
		metrics.ObserveCacheEvent("set", "error")
		o.logger.Warn("cache write failed after successful crawl",
			zap.String("region", req.Region), zap.Error(err))
		return
	}
	metrics.ObserveCacheEvent("set", "ok")
}

func (o *Orchestrator) crawlLive(ctx context.Context, req CrawlRequest) ([]EquityQuote, int, error) {
	handle, err := o.openFirstPage(ctx, req.Region)
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		if cerr := o.driver.Close(handle); cerr != nil {
			o.logger.Warn("session close failed",
				zap.String("region", req.Region), zap.Error(cerr))
		}
	}()

	ordered := make([]EquityQuote, 0, 64)
	seen := make(map[string]struct{}, 64)
	ceiling := req.PageCeiling()
	pages := 0
	lastSignature := ""

	for {
		if err := ctx.Err(); err != nil {
			return nil, 0, fmt.Errorf("crawl aborted: %w", err)
		}

		markup, err := o.driver.CurrentMarkup(ctx, handle)
		if err != nil {
			return nil, 0, fmt.Errorf("read markup for page %d: %w", pages+1, err)
		}

		quotes, err := o.parser.Parse(markup)
		if err != nil {
			return nil, 0, fmt.Errorf("parse page %d: %w", pages+1, err)
		}

		added := 0
		for _, q := range quotes {
			if _, dup := seen[q.Symbol]; dup {
				continue
			}
			seen[q.Symbol] = struct{}{}
			ordered = append(ordered, q)
			added++
		}
		pages++
		metrics.ObservePage(len(quotes))
		o.logger.Info("page parsed",
			zap.String("region", req.Region),
			zap.Int("page", pages),
			zap.Int("extracted", len(quotes)),
			zap.Int("new", added),
			zap.Int("total", len(ordered)))

		// A page identical to its predecessor after a reported advance
		// means the pager is stuck; stop rather than spin.
		sig := pageSignature(quotes)
		if sig != "" && sig == lastSignature {
			o.logger.Warn("repeated page signature, stopping traversal",
				zap.String("region", req.Region), zap.Int("page", pages))
			break
		}
		lastSignature = sig

		if pages >= ceiling {
			o.logger.Info("page ceiling reached",
				zap.String("region", req.Region), zap.Int("pages", pages))
			break
		}

		more, err := o.driver.Advance(ctx, handle)
		if err != nil {
			return nil, 0, err
		}
		if !more {
			break
		}
	}

	return ordered, pages, nil
}

// openFirstPage applies the transient-failure policy for the opening
// navigation: a NavigationError is retried exactly once, everything
// else (notably RegionNotFoundError) fails immediately.
func (o *Orchestrator) openFirstPage(ctx context.Context, region string) (PageHandle, error) {
	handle, err := o.driver.OpenFirstPage(ctx, region)
	if err == nil {
		return handle, nil
	}

	var navErr *NavigationError
	if !errors.As(err, &navErr) {
		return nil, err
	}

	o.logger.Warn("opening navigation failed, retrying once",
		zap.String("region", region), zap.Error(err))

	handle, err = o.driver.OpenFirstPage(ctx, region)
	if err != nil {
		return nil, fmt.Errorf("open first page retry exhausted: %w", err)
	}
	return handle, nil
}

// pageSignature identifies a page by its leading symbols, mirroring how
// the table visually distinguishes pages.
func pageSignature(quotes []EquityQuote) string {
	n := len(quotes)
	if n > 3 {
		n = 3
	}
	symbols := make([]string, 0, n)
	for _, q := range quotes[:n] {
		symbols = append(symbols, q.Symbol)
	}
	return strings.Join(symbols, "|")
}
