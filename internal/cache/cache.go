// Package cache implements the region-keyed result cache. Freshness
// policy (TTL against the payload's creation time) lives here; the
// pluggable CacheStore backends only move opaque payload bytes.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/equitylab/screener-crawler/internal/screener"
)

// payloadVersion guards against schema drift between releases. A
// payload with any other version is treated as absent.
const payloadVersion = 1

// DefaultNamespace prefixes cache keys when no namespace is configured.
const DefaultNamespace = "screener:quotes"

// Config carries the cache policy knobs, resolved once at startup and
// never read from the environment mid-crawl.
type Config struct {
	TTL       time.Duration
	Namespace string
}

// Cache implements screener.ResultCache over a CacheStore backend.
type Cache struct {
	store  screener.CacheStore
	clock  screener.Clock
	cfg    Config
	logger *zap.Logger
}

// New builds a Cache. logger may be nil.
func New(store screener.CacheStore, clock screener.Clock, cfg Config, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultNamespace
	}
	return &Cache{store: store, clock: clock, cfg: cfg, logger: logger}
}

type payload struct {
	Version   int                    `json:"version"`
	Region    string                 `json:"region"`
	CreatedAt time.Time              `json:"created_at"`
	Records   []screener.EquityQuote `json:"records"`
}

// Get returns the cached result for region when one exists and is still
// within TTL. Expired, corrupt, or version-mismatched entries report
// absent without error; they are overwritten by the next Set. Backend
// faults surface as *screener.CacheUnavailableError.
func (c *Cache) Get(ctx context.Context, region string) (screener.CachedResult, bool, error) {
	key := c.key(region)
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return screener.CachedResult{}, false, &screener.CacheUnavailableError{
			Op: "get", Region: region, Err: err,
		}
	}
	if !ok {
		return screener.CachedResult{}, false, nil
	}

	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		c.logger.Warn("discarding corrupt cache payload",
			zap.String("key", key), zap.Error(err))
		return screener.CachedResult{}, false, nil
	}
	if p.Version != payloadVersion || p.CreatedAt.IsZero() {
		return screener.CachedResult{}, false, nil
	}
	if c.clock.Now().Sub(p.CreatedAt) > c.cfg.TTL {
		return screener.CachedResult{}, false, nil
	}

	records := p.Records
	if records == nil {
		records = []screener.EquityQuote{}
	}
	return screener.CachedResult{
		Region:    region,
		Records:   records,
		CreatedAt: p.CreatedAt,
	}, true, nil
}

// Set overwrites the entry for region with the given records stamped at
// the current time. Last write wins; there is no merge.
func (c *Cache) Set(ctx context.Context, region string, records []screener.EquityQuote) error {
	p := payload{
		Version:   payloadVersion,
		Region:    region,
		CreatedAt: c.clock.Now(),
		Records:   records,
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal cache payload: %w", err)
	}
	if err := c.store.Set(ctx, c.key(region), raw); err != nil {
		return &screener.CacheUnavailableError{Op: "set", Region: region, Err: err}
	}
	return nil
}

func (c *Cache) key(region string) string {
	return c.cfg.Namespace + ":" + NormalizeRegion(region)
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeRegion maps a user-facing region name to a stable cache key
// component: lowercase, runs of non-alphanumerics collapsed to "_".
func NormalizeRegion(region string) string {
	n := strings.ToLower(strings.TrimSpace(region))
	n = nonAlnum.ReplaceAllString(n, "_")
	n = strings.Trim(n, "_")
	if n == "" {
		return "unknown_region"
	}
	return n
}
