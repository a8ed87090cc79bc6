// Package replay implements a deterministic PaginationDriver that
// serves canned per-page markup. It exists so the orchestrator's state
// machine can be exercised without a network or a browser.
package replay

import (
	"context"
	"fmt"
	"sync"

	"github.com/equitylab/screener-crawler/internal/screener"
)

// Driver replays a fixed sequence of pages for any region it knows.
// Zero value serves zero pages; configure the fields before the first
// crawl.
type Driver struct {
	// Pages holds the markup served for page 1..N in order.
	Pages []string
	// KnownRegions, when non-empty, restricts which regions open
	// successfully; others fail with RegionNotFoundError.
	KnownRegions []string
	// OpenErrors is consumed one error per OpenFirstPage call before
	// opens start succeeding. Use it to script transient failures.
	OpenErrors []error
	// FailAdvanceAfter, when > 0, makes the advance from that page fail
	// with a PaginationError.
	FailAdvanceAfter int

	mu          sync.Mutex
	opens       int
	markupReads int
	advances    int
	closes      int
}

type session struct {
	region string
	index  int
	closed bool
}

// OpenFirstPage hands out a session positioned at the first canned page.
func (d *Driver) OpenFirstPage(_ context.Context, region string) (screener.PageHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opens++

	if len(d.OpenErrors) > 0 {
		err := d.OpenErrors[0]
		d.OpenErrors = d.OpenErrors[1:]
		if err != nil {
			return nil, err
		}
	}

	if len(d.KnownRegions) > 0 && !contains(d.KnownRegions, region) {
		return nil, &screener.RegionNotFoundError{Region: region, Available: d.KnownRegions}
	}
	return &session{region: region}, nil
}

// CurrentMarkup serves the canned markup for the session's position. An
// empty table is represented by an empty Pages slice.
func (d *Driver) CurrentMarkup(_ context.Context, handle screener.PageHandle) (string, error) {
	sess, err := d.session(handle)
	if err != nil {
		return "", err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.markupReads++

	if sess.index >= len(d.Pages) {
		return "<table></table>", nil
	}
	return d.Pages[sess.index], nil
}

// Advance moves to the next canned page, reporting false past the end.
func (d *Driver) Advance(_ context.Context, handle screener.PageHandle) (bool, error) {
	sess, err := d.session(handle)
	if err != nil {
		return false, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.advances++

	if d.FailAdvanceAfter > 0 && sess.index+1 == d.FailAdvanceAfter {
		return false, &screener.PaginationError{
			Page: sess.index + 1,
			Err:  fmt.Errorf("scripted pagination failure"),
		}
	}
	if sess.index+1 >= len(d.Pages) {
		return false, nil
	}
	sess.index++
	return true, nil
}

// Close marks the session released. Double close is an error so tests
// catch release-discipline bugs.
func (d *Driver) Close(handle screener.PageHandle) error {
	sess, err := d.session(handle)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if sess.closed {
		return fmt.Errorf("session for region %q closed twice", sess.region)
	}
	sess.closed = true
	d.closes++
	return nil
}

// Opens reports how many OpenFirstPage calls were made.
func (d *Driver) Opens() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens
}

// MarkupReads reports how many pages were read.
func (d *Driver) MarkupReads() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.markupReads
}

// Advances reports how many advance attempts were made.
func (d *Driver) Advances() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.advances
}

// Closes reports how many sessions were released.
func (d *Driver) Closes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closes
}

func (d *Driver) session(handle screener.PageHandle) (*session, error) {
	sess, ok := handle.(*session)
	if !ok || sess == nil {
		return nil, fmt.Errorf("foreign page handle %T", handle)
	}
	return sess, nil
}

func contains(list []string, want string) bool {
	for _, item := range list {
		if item == want {
			return true
		}
	}
	return false
}
