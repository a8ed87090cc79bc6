package output

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/equitylab/screener-crawler/internal/screener"
)

func TestWriteQuotesEveryField(t *testing.T) {
	var buf bytes.Buffer
	err := Write(&buf, []screener.EquityQuote{
		{Symbol: "YPF", Name: "YPF Sociedad Anonima", Price: "32.47"},
	})
	require.NoError(t, err)

	assert.Equal(t,
		"\"symbol\",\"name\",\"price\"\r\n"+
			"\"YPF\",\"YPF Sociedad Anonima\",\"32.47\"\r\n",
		buf.String())
}

func TestWriteHeaderOnlyForEmptyResult(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, nil))
	assert.Equal(t, "\"symbol\",\"name\",\"price\"\r\n", buf.String())
}

func TestWriteNamesWithCommasAndQuotes(t *testing.T) {
	var buf bytes.Buffer
	err := Write(&buf, []screener.EquityQuote{
		{Symbol: "TS", Name: `Tenaris, "The Pipe" S.A.`, Price: "--"},
	})
	require.NoError(t, err)

	// Standard CSV readers must recover the original fields.
	rows, err := csv.NewReader(bytes.NewReader(buf.Bytes())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"TS", `Tenaris, "The Pipe" S.A.`, "--"}, rows[1])
}

func TestWriteFileCreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "nested", "equities.csv")
	err := WriteFile(path, []screener.EquityQuote{
		{Symbol: "PAM", Name: "Pampa Energia", Price: "N/A"},
	})
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "\"PAM\",\"Pampa Energia\",\"N/A\"\r\n")
}
