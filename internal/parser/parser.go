// Package parser extracts equity quotes from rendered screener table
// markup. Selection is by stable data attributes so the extraction
// survives layout and styling churn; positional extraction is the
// fallback when the attributes are absent.
package parser

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/equitylab/screener-crawler/internal/metrics"
	"github.com/equitylab/screener-crawler/internal/screener"
)

// Selectors anchored on the table's data attributes.
const (
	rowSelector          = `tr[data-testid="data-table-v2-row"]`
	symbolSelector       = `td[data-testid-cell="ticker"] span.symbol`
	symbolLinkSelector   = `td[data-testid-cell="ticker"] a[data-testid="table-cell-ticker"]`
	nameSelector         = `td[data-testid-cell="companyshortname.raw"] div`
	priceSpanSelector    = `td[data-testid-cell="intradayprice"] span[data-testid="change"]`
	priceCellSelector    = `td[data-testid-cell="intradayprice"]`
	fallbackRowSelector  = "table tbody tr"
)

// Parser implements screener.RecordParser over goquery.
type Parser struct {
	logger *zap.Logger
}

// New creates a Parser. logger may be nil.
func New(logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{logger: logger}
}

// Parse turns one page's table markup into an ordered sequence of
// quotes. Rows missing any of the three fields are dropped and logged;
// a bad row never fails the page.
func (p *Parser) Parse(markup string) ([]screener.EquityQuote, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse table markup: %w", err)
	}

	rows := doc.Find(rowSelector)
	if rows.Length() == 0 {
		rows = doc.Find(fallbackRowSelector)
	}

	quotes := make([]screener.EquityQuote, 0, rows.Length())
	rows.Each(func(i int, row *goquery.Selection) {
		quote := screener.EquityQuote{
			Symbol: extractSymbol(row),
			Name:   extractName(row),
			Price:  extractPrice(row),
		}
		if quote.Symbol == "" || quote.Name == "" || quote.Price == "" {
			metrics.ObserveDroppedRow()
			p.logger.Debug("dropping malformed table row",
				zap.Int("row", i),
				zap.String("symbol", quote.Symbol),
				zap.String("name", quote.Name))
			return
		}
		quotes = append(quotes, quote)
	})

	return quotes, nil
}

func extractSymbol(row *goquery.Selection) string {
	sel := row.Find(symbolSelector).First()
	if sel.Length() == 0 {
		sel = row.Find(symbolLinkSelector).First()
	}
	if sel.Length() == 0 {
		sel = row.Find("td").Eq(0)
	}
	return cleanText(sel.Text())
}

func extractName(row *goquery.Selection) string {
	cell := row.Find(nameSelector).First()
	if cell.Length() > 0 {
		// The rendered cell truncates long names; the title attribute
		// carries the full text.
		if title, ok := cell.Attr("title"); ok && strings.TrimSpace(title) != "" {
			return cleanText(title)
		}
		return cleanText(cell.Text())
	}
	return cleanText(row.Find("td").Eq(1).Text())
}

func extractPrice(row *goquery.Selection) string {
	sel := row.Find(priceSpanSelector).First()
	if sel.Length() == 0 {
		sel = row.Find(priceCellSelector).First()
	}
	if sel.Length() == 0 {
		sel = row.Find("td").Eq(2)
	}
	// Sentinel strings like "N/A" or "--" are kept verbatim; the price
	// column is text, not a number.
	return cleanText(sel.Text())
}

// cleanText collapses runs of whitespace. strings.Fields splits on all
// unicode whitespace, which covers the non-breaking spaces the screener
// pads numeric cells with.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
