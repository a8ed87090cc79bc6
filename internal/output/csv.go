// Package output serializes crawl results to CSV.
package output

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/equitylab/screener-crawler/internal/screener"
)

// header is emitted as the first row of every file.
var header = []string{"symbol", "name", "price"}

// Write emits the records as CSV to w. Every field is quoted, so names
// containing commas round-trip, and a header row is always included.
func Write(w io.Writer, records []screener.EquityQuote) error {
	bw := bufio.NewWriter(w)
	if err := writeRow(bw, header...); err != nil {
		return err
	}
	for _, record := range records {
		if err := writeRow(bw, record.Symbol, record.Name, record.Price); err != nil {
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// WriteFile writes the records to path, creating parent directories as
// needed.
func WriteFile(path string, records []screener.EquityQuote) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	if err := Write(f, records); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output file: %w", err)
	}
	return nil
}

func writeRow(w *bufio.Writer, fields ...string) error {
	for i, field := range fields {
		if i > 0 {
			if err := w.WriteByte(','); err != nil {
				return fmt.Errorf("write csv row: %w", err)
			}
		}
		if _, err := w.WriteString(quote(field)); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	if _, err := w.WriteString("\r\n"); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	return nil
}

func quote(field string) string {
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}
