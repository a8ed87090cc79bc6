package chrome

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectRegionJSQuotesInput(t *testing.T) {
	js := selectRegionJS(`Côte d'Ivoire "quoted"`)

	assert.Contains(t, js, `"Côte d'Ivoire \"quoted\""`)
	assert.NotContains(t, js, "\n\"Côte", "region must be embedded as a JSON literal")
}

func TestSelectRegionJSShortCodeFallback(t *testing.T) {
	js := selectRegionJS("ar")
	assert.Contains(t, js, "filter-option-")
}

func TestTableUpdatedJSEmbedsPreviousState(t *testing.T) {
	js := tableUpdatedJS("Argentina", "AAPL", "of 1,234")

	assert.Contains(t, js, `"Argentina"`)
	assert.Contains(t, js, `"AAPL"`)
	assert.Contains(t, js, `"of 1,234"`)
}

func TestPageChangedJSEmbedsPreviousState(t *testing.T) {
	js := pageChangedJS(`A"B`, "")

	assert.Contains(t, js, `"A\"B"`)
	assert.True(t, strings.HasPrefix(js, "(() => {"))
}
