package report_test

import (
	"bytes"
	"testing"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/rbmap/internal/report"
)

type sample struct {
	Name  string `json:"name"  yaml:"name"`
	Count int    `json:"count" yaml:"count"`
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"table", "json", "yaml"} {
		format, err := report.ParseFormat(name)
		require.NoError(t, err)
		assert.Equal(t, report.Format(name), format)
	}

	_, err := report.ParseFormat("xml")
	require.ErrorIs(t, err, report.ErrUnknownFormat)
}

func TestEncode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		format report.Format
		want   string
	}{
		{format: report.FormatJSON, want: "{\n  \"name\": \"insert\",\n  \"count\": 3\n}\n"},
		{format: report.FormatYAML, want: "name: insert\ncount: 3\n"},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer

			require.NoError(t, report.Encode(&buf, tt.format, sample{Name: "insert", Count: 3}))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestEncodeRejectsTable(t *testing.T) {
	t.Parallel()

	err := report.Encode(&bytes.Buffer{}, report.FormatTable, sample{})
	require.ErrorIs(t, err, report.ErrUnknownFormat)
}

func TestNewTable(t *testing.T) {
	t.Parallel()

	tbl := report.NewTable(table.Row{"Seed", "Result"})
	tbl.AppendRow(table.Row{1, "pass"})

	out := tbl.Render()

	assert.Contains(t, out, "SEED")
	assert.Contains(t, out, "pass")
	assert.Contains(t, out, "┌")
}
