package bench_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/rbmap/internal/bench"
	"github.com/Sumatoshi-tech/rbmap/internal/report"
)

func testRunner() *bench.Runner {
	return &bench.Runner{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func TestRun(t *testing.T) {
	t.Parallel()

	samples, err := testRunner().Run(context.Background(), bench.Config{Sizes: []int{1, 16, 2000}, Seed: 5})
	require.NoError(t, err)
	require.Len(t, samples, 3)

	for idx, size := range []int{1, 16, 2000} {
		sample := samples[idx]

		assert.Equal(t, size, sample.Size)
		assert.Positive(t, sample.Height)
		assert.LessOrEqual(t, float64(sample.Height), sample.Bound, "size %d", size)
		assert.GreaterOrEqual(t, sample.InsertNs, 0.0)
	}

	assert.Equal(t, 1, samples[0].Height)
}

func TestRunRejectsBadSize(t *testing.T) {
	t.Parallel()

	_, err := testRunner().Run(context.Background(), bench.Config{Sizes: []int{10, 0}})
	require.ErrorIs(t, err, bench.ErrInvalidSize)
}

func TestRunCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	samples, err := testRunner().Run(ctx, bench.Config{Sizes: []int{10}})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, samples)
}

func TestHeightBound(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 0.0, bench.HeightBound(0), 1e-9)
	assert.InDelta(t, 2.0, bench.HeightBound(1), 1e-9)
	assert.InDelta(t, 6.0, bench.HeightBound(7), 1e-9)
}

func testSamples() []bench.Sample {
	return []bench.Sample{
		{Size: 1000, InsertNs: 80.4, GetNs: 40, RemoveNs: 95.5, Height: 12, Bound: bench.HeightBound(1000)},
		{Size: 100000, InsertNs: 210, GetNs: 120, RemoveNs: 230, Height: 21, Bound: bench.HeightBound(100000)},
	}
}

func TestWrite(t *testing.T) {
	t.Parallel()

	var table bytes.Buffer

	require.NoError(t, bench.Write(&table, report.FormatTable, testSamples()))
	assert.Contains(t, table.String(), "100,000")
	assert.Contains(t, table.String(), "80.4")

	var doc bytes.Buffer

	require.NoError(t, bench.Write(&doc, report.FormatJSON, testSamples()))

	var decoded []bench.Sample

	require.NoError(t, json.Unmarshal(doc.Bytes(), &decoded))
	assert.Equal(t, testSamples(), decoded)
}

func TestChart(t *testing.T) {
	t.Parallel()

	var page bytes.Buffer

	require.NoError(t, bench.Chart(testSamples(), &page))

	html := page.String()

	assert.Contains(t, html, "<html")
	assert.Contains(t, html, "echarts")
	assert.Contains(t, html, "Operation latency")
	assert.Contains(t, html, "Tree height")
	assert.Contains(t, html, "100000")
}
