// Package chrome implements the PaginationDriver over headless Chrome
// via chromedp. All timing-sensitive waiting for the screener's
// JavaScript-rendered table lives here.
package chrome

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/equitylab/screener-crawler/internal/screener"
)

// DefaultBaseURL is the screener listing the driver navigates to.
const DefaultBaseURL = "https://finance.yahoo.com/research-hub/screener/equity/"

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Config controls the behavior of the Chrome-backed driver.
type Config struct {
	BaseURL     string
	UserAgent   string
	Headless    bool
	PageTimeout time.Duration
	// NavigationQPS paces page advances so the crawl does not hammer
	// the site. Zero disables pacing.
	NavigationQPS float64
}

// Driver creates one browser session per crawl and walks it through the
// paginated table.
type Driver struct {
	cfg     Config
	logger  *zap.Logger
	limiter *rate.Limiter
}

// New creates a Driver. logger may be nil.
func New(cfg Config, logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = screener.DefaultPageTimeout
	}
	var limiter *rate.Limiter
	if cfg.NavigationQPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.NavigationQPS), 1)
	}
	return &Driver{cfg: cfg, logger: logger, limiter: limiter}
}

// session is the PageHandle issued by this driver: one exec allocator
// and one tab, torn down together exactly once.
type session struct {
	region      string
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
	page        int
	closeOnce   sync.Once
}

// OpenFirstPage launches a browser, navigates to the screener, applies
// the region filter, and waits for the first page of filtered results.
func (d *Driver) OpenFirstPage(ctx context.Context, region string) (screener.PageHandle, error) {
	region = strings.TrimSpace(region)
	if region == "" {
		return nil, &screener.RegionNotFoundError{Region: region}
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", d.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(d.cfg.UserAgent),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	sess := &session{
		region:      region,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
		page:        1,
	}

	if err := d.navigate(ctx, sess); err != nil {
		d.teardown(sess)
		return nil, err
	}
	if err := d.applyRegionFilter(ctx, sess); err != nil {
		d.teardown(sess)
		return nil, err
	}

	d.logger.Info("screener session opened", zap.String("region", region))
	return sess, nil
}

func (d *Driver) navigate(ctx context.Context, sess *session) error {
	navCtx, cancel := d.pageContext(ctx, sess)
	defer cancel()

	err := chromedp.Run(navCtx,
		network.Enable(),
		emulation.SetUserAgentOverride(d.cfg.UserAgent),
		chromedp.Navigate(d.cfg.BaseURL),
		chromedp.WaitReady(rowSelector, chromedp.ByQuery),
	)
	if err != nil {
		return &screener.NavigationError{Stage: "open", Err: err}
	}
	return nil
}

// applyRegionFilter opens the region filter menu, deselects any default
// regions, checks the requested one, and waits for the table to swap to
// the filtered result set.
func (d *Driver) applyRegionFilter(ctx context.Context, sess *session) error {
	filterCtx, cancel := d.pageContext(ctx, sess)
	defer cancel()

	prevFirst, _ := d.firstSymbol(filterCtx)
	prevTotal, _ := d.totalLabel(filterCtx)

	if err := chromedp.Run(filterCtx,
		chromedp.Click(regionButtonSelector, chromedp.ByQuery, chromedp.NodeVisible),
		chromedp.WaitVisible(regionOptionSelector, chromedp.ByQuery),
	); err != nil {
		return &screener.NavigationError{Stage: "region menu", Err: err}
	}

	var found bool
	if err := chromedp.Run(filterCtx,
		chromedp.Evaluate(selectRegionJS(sess.region), &found),
	); err != nil {
		return &screener.NavigationError{Stage: "region select", Err: err}
	}
	if !found {
		var available []string
		// Best effort: sample the filter vocabulary for the error text.
		_ = chromedp.Run(filterCtx, chromedp.Evaluate(availableRegionsJS, &available))
		return &screener.RegionNotFoundError{Region: sess.region, Available: available}
	}

	if err := chromedp.Run(filterCtx,
		chromedp.Evaluate(clickApplyJS, nil),
		chromedp.Poll(tableUpdatedJS(sess.region, prevFirst, prevTotal), nil,
			chromedp.WithPollingTimeout(d.cfg.PageTimeout)),
	); err != nil {
		// The table sometimes settles without tripping the update
		// heuristics, mirroring real screener behavior after a filter
		// whose result set overlaps the default one.
		d.logger.Warn("table update not confirmed after region filter",
			zap.String("region", sess.region), zap.Error(err))
	}
	return nil
}

// CurrentMarkup returns the rendered table's outer HTML only, falling
// back to the whole document when the table cannot be isolated.
func (d *Driver) CurrentMarkup(ctx context.Context, handle screener.PageHandle) (string, error) {
	sess, err := d.session(handle)
	if err != nil {
		return "", err
	}
	markupCtx, cancel := d.pageContext(ctx, sess)
	defer cancel()

	var markup string
	if err := chromedp.Run(markupCtx, chromedp.Evaluate(tableMarkupJS, &markup)); err != nil {
		return "", fmt.Errorf("read table markup: %w", err)
	}
	return markup, nil
}

// Advance clicks the next-page control and waits for the table to show
// a different page. Returns false when no enabled next-page control
// exists.
func (d *Driver) Advance(ctx context.Context, handle screener.PageHandle) (bool, error) {
	sess, err := d.session(handle)
	if err != nil {
		return false, err
	}

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return false, fmt.Errorf("navigation pacing: %w", err)
		}
	}

	advCtx, cancel := d.pageContext(ctx, sess)
	defer cancel()

	var hasNext bool
	if err := chromedp.Run(advCtx, chromedp.Evaluate(hasNextPageJS, &hasNext)); err != nil {
		return false, &screener.PaginationError{Page: sess.page, Err: err}
	}
	if !hasNext {
		return false, nil
	}

	prevFirst, _ := d.firstSymbol(advCtx)
	prevTotal, _ := d.totalLabel(advCtx)

	if err := chromedp.Run(advCtx,
		chromedp.Click(nextPageSelector, chromedp.ByQuery, chromedp.NodeVisible),
		chromedp.Poll(pageChangedJS(prevFirst, prevTotal), nil,
			chromedp.WithPollingTimeout(d.cfg.PageTimeout)),
		chromedp.WaitReady(rowSelector, chromedp.ByQuery),
	); err != nil {
		return false, &screener.PaginationError{Page: sess.page, Err: err}
	}

	sess.page++
	d.logger.Debug("advanced to next page",
		zap.String("region", sess.region), zap.Int("page", sess.page))
	return true, nil
}

// Close tears down the tab and browser process. Safe against double
// close; the underlying contexts are canceled exactly once.
func (d *Driver) Close(handle screener.PageHandle) error {
	sess, err := d.session(handle)
	if err != nil {
		return err
	}
	d.teardown(sess)
	d.logger.Info("screener session closed", zap.String("region", sess.region))
	return nil
}

func (d *Driver) teardown(sess *session) {
	sess.closeOnce.Do(func() {
		sess.tabCancel()
		sess.allocCancel()
	})
}

func (d *Driver) session(handle screener.PageHandle) (*session, error) {
	sess, ok := handle.(*session)
	if !ok || sess == nil {
		return nil, fmt.Errorf("foreign page handle %T", handle)
	}
	return sess, nil
}

// pageContext bounds one driver operation by the configured per-page
// budget and the caller's context.
func (d *Driver) pageContext(ctx context.Context, sess *session) (context.Context, context.CancelFunc) {
	opCtx, cancel := context.WithTimeout(sess.tabCtx, d.cfg.PageTimeout)
	stop := forwardCancel(ctx, cancel)
	return opCtx, func() {
		stop()
		cancel()
	}
}

func (d *Driver) firstSymbol(ctx context.Context) (string, error) {
	var symbol string
	if err := chromedp.Run(ctx, chromedp.Evaluate(firstSymbolJS, &symbol)); err != nil {
		return "", err
	}
	return symbol, nil
}

func (d *Driver) totalLabel(ctx context.Context) (string, error) {
	var label string
	if err := chromedp.Run(ctx, chromedp.Evaluate(totalLabelJS, &label)); err != nil {
		return "", err
	}
	return label, nil
}

// forwardCancel propagates cancellation of the caller's context into a
// chromedp task context that does not descend from it.
func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
