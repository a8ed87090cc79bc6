package parser

import (
	"sync"

	"github.com/equitylab/screener-crawler/internal/screener"
)

// Memoized decorates a RecordParser with per-content memoization keyed
// by a digest of the markup. The final page of the screener often
// re-renders identically after a no-op advance; memoization makes that
// re-parse free. No TTL: the cache is scoped to one crawl.
type Memoized struct {
	inner  screener.RecordParser
	hasher screener.Hasher

	mu    sync.Mutex
	pages map[string][]screener.EquityQuote
}

// NewMemoized wraps inner with content-hash memoization.
func NewMemoized(inner screener.RecordParser, hasher screener.Hasher) *Memoized {
	return &Memoized{
		inner:  inner,
		hasher: hasher,
		pages:  make(map[string][]screener.EquityQuote),
	}
}

// Parse returns the memoized result for previously seen markup and
// delegates to the wrapped parser otherwise. Callers receive a copy so
// the memo stays immutable.
func (m *Memoized) Parse(markup string) ([]screener.EquityQuote, error) {
	key, err := m.hasher.Hash([]byte(markup))
	if err != nil {
		// Hashing never fails for sha256, but a broken hasher only
		// costs the memoization, not the parse.
		return m.inner.Parse(markup)
	}

	m.mu.Lock()
	cached, ok := m.pages[key]
	m.mu.Unlock()
	if ok {
		return append([]screener.EquityQuote(nil), cached...), nil
	}

	quotes, err := m.inner.Parse(markup)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.pages[key] = append([]screener.EquityQuote(nil), quotes...)
	m.mu.Unlock()

	return quotes, nil
}
