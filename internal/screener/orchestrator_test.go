package screener_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/equitylab/screener-crawler/internal/cache"
	"github.com/equitylab/screener-crawler/internal/cache/memory"
	"github.com/equitylab/screener-crawler/internal/driver/replay"
	"github.com/equitylab/screener-crawler/internal/parser"
	"github.com/equitylab/screener-crawler/internal/screener"
)

// pageMarkup renders rows in the screener's table shape.
func pageMarkup(rows ...[3]string) string {
	var b strings.Builder
	b.WriteString("<table><tbody>")
	for _, row := range rows {
		fmt.Fprintf(&b,
			`<tr data-testid="data-table-v2-row">`+
				`<td data-testid-cell="ticker"><span class="symbol">%s</span></td>`+
				`<td data-testid-cell="companyshortname.raw"><div title="%s">%s</div></td>`+
				`<td data-testid-cell="intradayprice"><span data-testid="change">%s</span></td>`+
				`</tr>`,
			row[0], row[1], row[1], row[2])
	}
	b.WriteString("</tbody></table>")
	return b.String()
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

type failingStore struct {
	getErr error
	setErr error
	inner  screener.CacheStore
}

func (s *failingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s.getErr != nil {
		return nil, false, s.getErr
	}
	return s.inner.Get(ctx, key)
}

func (s *failingStore) Set(ctx context.Context, key string, payload []byte) error {
	if s.setErr != nil {
		return s.setErr
	}
	return s.inner.Set(ctx, key, payload)
}

func newResultCache(store screener.CacheStore, ttl time.Duration) screener.ResultCache {
	return cache.New(store, &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}, cache.Config{TTL: ttl}, nil)
}

func newOrchestrator(driver screener.PaginationDriver, resultCache screener.ResultCache) *screener.Orchestrator {
	return screener.NewOrchestrator(driver, parser.New(nil), resultCache, nil)
}

func TestCrawlTwoPages(t *testing.T) {
	driver := &replay.Driver{
		Pages: []string{
			pageMarkup([3]string{"AAA", "Alpha Co", "10.00"}),
			pageMarkup([3]string{"BBB", "Beta Co", "20.00"}),
		},
	}
	orch := newOrchestrator(driver, nil)

	result, err := orch.Crawl(context.Background(), screener.CrawlRequest{Region: "Argentina"})
	require.NoError(t, err)

	assert.Equal(t, []screener.EquityQuote{
		{Symbol: "AAA", Name: "Alpha Co", Price: "10.00"},
		{Symbol: "BBB", Name: "Beta Co", Price: "20.00"},
	}, result.Records)
	assert.Equal(t, screener.SourceLive, result.Source)
	assert.Equal(t, 2, result.Pages)
	assert.Equal(t, 2, driver.MarkupReads())
	assert.Equal(t, 1, driver.Closes())
}

func TestCrawlDedupFirstOccurrenceWins(t *testing.T) {
	driver := &replay.Driver{
		Pages: []string{
			pageMarkup(
				[3]string{"AAA", "Alpha Co", "10.00"},
				[3]string{"BBB", "Beta Co", "20.00"},
			),
			pageMarkup(
				[3]string{"BBB", "Beta Co Renamed", "21.00"},
				[3]string{"CCC", "Gamma Co", "30.00"},
			),
		},
	}
	orch := newOrchestrator(driver, nil)

	result, err := orch.Crawl(context.Background(), screener.CrawlRequest{Region: "Argentina"})
	require.NoError(t, err)

	require.Len(t, result.Records, 3)
	assert.Equal(t, "AAA", result.Records[0].Symbol)
	assert.Equal(t, "BBB", result.Records[1].Symbol)
	// First occurrence wins: the page-two rendering of BBB is dropped,
	// not merged.
	assert.Equal(t, "Beta Co", result.Records[1].Name)
	assert.Equal(t, "20.00", result.Records[1].Price)
	assert.Equal(t, "CCC", result.Records[2].Symbol)
}

func TestCrawlPageCeiling(t *testing.T) {
	driver := &replay.Driver{
		Pages: []string{
			pageMarkup([3]string{"AAA", "Alpha Co", "10.00"}),
			pageMarkup([3]string{"BBB", "Beta Co", "20.00"}),
			pageMarkup([3]string{"CCC", "Gamma Co", "30.00"}),
		},
	}
	orch := newOrchestrator(driver, nil)

	result, err := orch.Crawl(context.Background(), screener.CrawlRequest{
		Region:   "Argentina",
		MaxPages: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Pages)
	assert.Equal(t, 2, driver.MarkupReads(), "exactly k pages fetched, never k+1")
	assert.Len(t, result.Records, 2)
	// The ceiling is a controlled stop: no advance is attempted past it.
	assert.Equal(t, 1, driver.Advances())
}

func TestCrawlEmptyFirstPageIsSuccess(t *testing.T) {
	store := memory.New()
	resultCache := newResultCache(store, 30*time.Minute)
	driver := &replay.Driver{Pages: []string{pageMarkup()}}
	orch := newOrchestrator(driver, resultCache)

	result, err := orch.Crawl(context.Background(), screener.CrawlRequest{
		Region:   "Atlantis",
		UseCache: true,
		CacheTTL: 30 * time.Minute,
	})
	require.NoError(t, err)
	assert.Empty(t, result.Records)
	assert.NotNil(t, result.Records)
	assert.Equal(t, screener.SourceLive, result.Source)

	// The empty result was cached like any other.
	cached, ok, err := resultCache.Get(context.Background(), "Atlantis")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, cached.Records)
}

func TestCrawlCacheHitSkipsDriver(t *testing.T) {
	store := memory.New()
	resultCache := newResultCache(store, 30*time.Minute)
	pages := []string{pageMarkup([3]string{"AAA", "Alpha Co", "10.00"})}
	req := screener.CrawlRequest{
		Region:   "Argentina",
		UseCache: true,
		CacheTTL: 30 * time.Minute,
	}

	first := &replay.Driver{Pages: pages}
	firstResult, err := newOrchestrator(first, resultCache).Crawl(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, screener.SourceLive, firstResult.Source)

	second := &replay.Driver{Pages: pages}
	secondResult, err := newOrchestrator(second, resultCache).Crawl(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, screener.SourceCache, secondResult.Source)
	assert.Equal(t, firstResult.Records, secondResult.Records)
	assert.Zero(t, second.Opens(), "cache hit must not touch the driver")
	assert.Zero(t, second.MarkupReads())
}

func TestCrawlNavigationRetriedOnce(t *testing.T) {
	driver := &replay.Driver{
		Pages: []string{pageMarkup([3]string{"AAA", "Alpha Co", "10.00"})},
		OpenErrors: []error{
			&screener.NavigationError{Stage: "open", Err: errors.New("timeout")},
		},
	}
	orch := newOrchestrator(driver, nil)

	result, err := orch.Crawl(context.Background(), screener.CrawlRequest{Region: "Argentina"})
	require.NoError(t, err)
	assert.Len(t, result.Records, 1)
	assert.Equal(t, 2, driver.Opens())
}

func TestCrawlNavigationRetryExhausted(t *testing.T) {
	driver := &replay.Driver{
		Pages: []string{pageMarkup([3]string{"AAA", "Alpha Co", "10.00"})},
		OpenErrors: []error{
			&screener.NavigationError{Stage: "open", Err: errors.New("timeout")},
			&screener.NavigationError{Stage: "open", Err: errors.New("timeout again")},
		},
	}
	orch := newOrchestrator(driver, nil)

	_, err := orch.Crawl(context.Background(), screener.CrawlRequest{Region: "Argentina"})
	require.Error(t, err)
	var navErr *screener.NavigationError
	assert.ErrorAs(t, err, &navErr)
	assert.Equal(t, 2, driver.Opens(), "exactly one retry")
}

func TestCrawlRegionNotFoundNotRetried(t *testing.T) {
	driver := &replay.Driver{
		Pages:        []string{pageMarkup([3]string{"AAA", "Alpha Co", "10.00"})},
		KnownRegions: []string{"Argentina", "Brazil"},
	}
	orch := newOrchestrator(driver, nil)

	_, err := orch.Crawl(context.Background(), screener.CrawlRequest{Region: "Wakanda"})
	require.Error(t, err)
	var regionErr *screener.RegionNotFoundError
	require.ErrorAs(t, err, &regionErr)
	assert.Equal(t, "Wakanda", regionErr.Region)
	assert.Equal(t, 1, driver.Opens(), "bad input is not retried")
}

func TestCrawlPaginationFailureIsAllOrNothing(t *testing.T) {
	driver := &replay.Driver{
		Pages: []string{
			pageMarkup([3]string{"AAA", "Alpha Co", "10.00"}),
			pageMarkup([3]string{"BBB", "Beta Co", "20.00"}),
		},
		FailAdvanceAfter: 1,
	}
	orch := newOrchestrator(driver, nil)

	result, err := orch.Crawl(context.Background(), screener.CrawlRequest{Region: "Argentina"})
	require.Error(t, err)
	var pageErr *screener.PaginationError
	assert.ErrorAs(t, err, &pageErr)
	assert.Empty(t, result.Records, "no partial records on failure")
	assert.Equal(t, 1, driver.Closes(), "session released on the failure path")
}

func TestCrawlRepeatedPageSignatureStops(t *testing.T) {
	same := pageMarkup([3]string{"AAA", "Alpha Co", "10.00"})
	driver := &replay.Driver{Pages: []string{same, same, same}}
	orch := newOrchestrator(driver, nil)

	result, err := orch.Crawl(context.Background(), screener.CrawlRequest{Region: "Argentina"})
	require.NoError(t, err)
	assert.Len(t, result.Records, 1)
	assert.Equal(t, 2, driver.MarkupReads(), "stuck pager detected after one repeat")
}

func TestCrawlCacheReadFailureFallsBackToLive(t *testing.T) {
	store := &failingStore{getErr: errors.New("backend down"), inner: memory.New()}
	resultCache := newResultCache(store, 30*time.Minute)
	driver := &replay.Driver{Pages: []string{pageMarkup([3]string{"AAA", "Alpha Co", "10.00"})}}
	orch := newOrchestrator(driver, resultCache)

	result, err := orch.Crawl(context.Background(), screener.CrawlRequest{
		Region:   "Argentina",
		UseCache: true,
		CacheTTL: 30 * time.Minute,
	})
	require.NoError(t, err, "an unavailable cache never fails the crawl")
	assert.Equal(t, screener.SourceLive, result.Source)
	assert.Len(t, result.Records, 1)
}

func TestCrawlCacheWriteFailureNotFatal(t *testing.T) {
	store := &failingStore{setErr: errors.New("backend down"), inner: memory.New()}
	resultCache := newResultCache(store, 30*time.Minute)
	driver := &replay.Driver{Pages: []string{pageMarkup([3]string{"AAA", "Alpha Co", "10.00"})}}
	orch := newOrchestrator(driver, resultCache)

	result, err := orch.Crawl(context.Background(), screener.CrawlRequest{
		Region:   "Argentina",
		UseCache: true,
		CacheTTL: 30 * time.Minute,
	})
	require.NoError(t, err)
	assert.Len(t, result.Records, 1)
}

func TestCrawlNoCacheWriteWhenDisabled(t *testing.T) {
	store := memory.New()
	resultCache := newResultCache(store, 30*time.Minute)
	driver := &replay.Driver{Pages: []string{pageMarkup([3]string{"AAA", "Alpha Co", "10.00"})}}
	orch := newOrchestrator(driver, resultCache)

	_, err := orch.Crawl(context.Background(), screener.CrawlRequest{Region: "Argentina"})
	require.NoError(t, err)

	_, ok, err := resultCache.Get(context.Background(), "Argentina")
	require.NoError(t, err)
	assert.False(t, ok, "useCache=false must not populate the cache")
}

func TestCrawlCanceledContext(t *testing.T) {
	driver := &replay.Driver{Pages: []string{pageMarkup([3]string{"AAA", "Alpha Co", "10.00"})}}
	orch := newOrchestrator(driver, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := orch.Crawl(ctx, screener.CrawlRequest{Region: "Argentina"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, driver.Closes(), "session released on cancellation")
}

func TestCrawlInvalidRequest(t *testing.T) {
	driver := &replay.Driver{}
	orch := newOrchestrator(driver, nil)

	_, err := orch.Crawl(context.Background(), screener.CrawlRequest{Region: "  "})
	require.Error(t, err)
	assert.Zero(t, driver.Opens())
}
