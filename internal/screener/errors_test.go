package screener

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorTaxonomyUnwrapsThroughWrapping(t *testing.T) {
	base := errors.New("tab crashed")

	wrapped := fmt.Errorf("open first page retry exhausted: %w",
		&NavigationError{Stage: "open", Err: base})

	var navErr *NavigationError
	assert.True(t, errors.As(wrapped, &navErr))
	assert.Equal(t, "open", navErr.Stage)
	assert.True(t, errors.Is(wrapped, base))

	pageErr := &PaginationError{Page: 3, Err: base}
	assert.True(t, errors.Is(pageErr, base))
	assert.Contains(t, pageErr.Error(), "page 3")

	cacheErr := &CacheUnavailableError{Op: "get", Region: "Argentina", Err: base}
	assert.True(t, errors.Is(cacheErr, base))
	assert.Contains(t, cacheErr.Error(), "get")
	assert.Contains(t, cacheErr.Error(), "Argentina")
}

func TestRegionNotFoundErrorMessage(t *testing.T) {
	err := &RegionNotFoundError{Region: "Atlantis"}
	assert.Contains(t, err.Error(), `"Atlantis"`)

	withSample := &RegionNotFoundError{
		Region:    "Atlantis",
		Available: []string{"Argentina", "Brazil"},
	}
	assert.Contains(t, withSample.Error(), "Argentina, Brazil")
}
