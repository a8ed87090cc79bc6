package screener

import (
	"fmt"
	"strings"
	"time"
)

// DefaultMaxPages bounds a crawl when the caller does not set a page
// ceiling. The screener never lists anywhere near this many pages; the
// constant exists so a broken next-page control cannot loop forever.
const DefaultMaxPages = 500

// DefaultPageTimeout is the per-page wait budget applied when a request
// does not specify one.
const DefaultPageTimeout = 45 * time.Second

// EquityQuote is one row extracted from the screener table. Symbol is the
// dedup key. Price is kept verbatim as rendered because the source emits
// sentinel strings ("--", "N/A") alongside decimal text.
type EquityQuote struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Price  string `json:"price"`
}

// CrawlRequest carries every per-crawl parameter. It is immutable once a
// crawl starts; the orchestrator never writes to it.
type CrawlRequest struct {
	Region   string
	MaxPages int
	Timeout  time.Duration
	UseCache bool
	CacheTTL time.Duration
}

// Validate enforces required values and reasonable limits.
func (r CrawlRequest) Validate() error {
	if strings.TrimSpace(r.Region) == "" {
		return fmt.Errorf("region must not be empty")
	}
	if r.MaxPages < 0 {
		return fmt.Errorf("max pages must be >= 0")
	}
	if r.Timeout < 0 {
		return fmt.Errorf("timeout must be >= 0")
	}
	if r.UseCache && r.CacheTTL <= 0 {
		return fmt.Errorf("cache ttl must be > 0 when cache is enabled")
	}
	return nil
}

// PageCeiling resolves the effective page limit for the crawl.
func (r CrawlRequest) PageCeiling() int {
	if r.MaxPages > 0 && r.MaxPages < DefaultMaxPages {
		return r.MaxPages
	}
	return DefaultMaxPages
}

// PageTimeout resolves the effective per-page wait budget.
func (r CrawlRequest) PageTimeout() time.Duration {
	if r.Timeout > 0 {
		return r.Timeout
	}
	return DefaultPageTimeout
}

// Result sources reported by a crawl.
const (
	SourceCache = "cache"
	SourceLive  = "live"
)

// CrawlResult is the outcome of a successful crawl.
type CrawlResult struct {
	Records []EquityQuote `json:"records"`
	Source  string        `json:"source"`
	Pages   int           `json:"pages"`
}

// CachedResult is the payload a ResultCache stores per region.
type CachedResult struct {
	Region    string        `json:"region"`
	Records   []EquityQuote `json:"records"`
	CreatedAt time.Time     `json:"created_at"`
}
