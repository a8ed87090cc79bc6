package screener

import (
	"fmt"
	"strings"
)

// RegionNotFoundError reports that the region filter control could not be
// located or applied. It indicates bad caller input and is never retried.
type RegionNotFoundError struct {
	Region    string
	Available []string
}

func (e *RegionNotFoundError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("region %q not found in screener filter", e.Region)
	}
	return fmt.Sprintf(
		"region %q not found in screener filter (sample: %s)",
		e.Region, strings.Join(e.Available, ", "),
	)
}

// NavigationError reports that a page never reached a ready state within
// the wait budget. Treated as transient: the orchestrator retries the
// opening navigation exactly once.
type NavigationError struct {
	Stage string
	Err   error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation failed during %s: %v", e.Stage, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// PaginationError reports that a next-page control exists but navigation
// to it did not complete within the wait budget. Not retried.
type PaginationError struct {
	Page int
	Err  error
}

func (e *PaginationError) Error() string {
	return fmt.Sprintf("pagination failed advancing from page %d: %v", e.Page, e.Err)
}

func (e *PaginationError) Unwrap() error { return e.Err }

// CacheUnavailableError reports a cache backend fault. Read faults are
// treated as a miss and the crawl proceeds live; write faults are logged
// and the crawl result is still returned.
type CacheUnavailableError struct {
	Op     string
	Region string
	Err    error
}

func (e *CacheUnavailableError) Error() string {
	return fmt.Sprintf("cache %s for region %q unavailable: %v", e.Op, e.Region, e.Err)
}

func (e *CacheUnavailableError) Unwrap() error { return e.Err }
