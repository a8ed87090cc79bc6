package screener

import (
	"context"
	"time"
)

// PageHandle is an opaque token representing the current page of one
// browser session. It is created and interpreted only by the
// PaginationDriver that issued it.
type PageHandle any

// PaginationDriver drives one browser session through the paginated
// screener table. All timing-sensitive waiting lives behind this
// interface so the orchestrator stays deterministic and testable.
type PaginationDriver interface {
	// OpenFirstPage navigates to the screener, applies the region
	// filter, and waits for the first page of results. Fails with
	// *NavigationError when the page never reaches a ready state and
	// with *RegionNotFoundError when the filter cannot be applied.
	OpenFirstPage(ctx context.Context, region string) (PageHandle, error)

	// CurrentMarkup returns the rendered markup of the data table only,
	// not the whole page, to bound parse cost.
	CurrentMarkup(ctx context.Context, handle PageHandle) (string, error)

	// Advance moves the session to the next page. It returns false when
	// no further page exists, which is a terminal condition rather than
	// an error, and fails with *PaginationError when a next-page control
	// exists but navigation does not settle in time.
	Advance(ctx context.Context, handle PageHandle) (bool, error)

	// Close releases all session resources. It must be called exactly
	// once per handle regardless of the crawl outcome.
	Close(handle PageHandle) error
}

// RecordParser turns one page's rendered table markup into an ordered
// sequence of candidate records. Implementations must be pure and
// deterministic for identical input.
type RecordParser interface {
	Parse(markup string) ([]EquityQuote, error)
}

// ResultCache maps a region to a previously computed, still-fresh result
// set. Get reports absence (not an error) for expired entries; backend
// faults surface as *CacheUnavailableError.
type ResultCache interface {
	Get(ctx context.Context, region string) (CachedResult, bool, error)
	Set(ctx context.Context, region string, records []EquityQuote) error
}

// CacheStore is the pluggable persistence capability behind ResultCache.
// It moves opaque payload bytes; freshness policy lives above it.
type CacheStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, payload []byte) error
}

// Clock returns the current time (useful for testing TTL behavior).
type Clock interface {
	Now() time.Time
}

// Hasher computes digests used to memoize per-page parses.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// IDGenerator produces job IDs for the async API surface.
type IDGenerator interface {
	NewID() (string, error)
}
