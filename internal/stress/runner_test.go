package stress_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Sumatoshi-tech/rbmap/internal/observability"
	"github.com/Sumatoshi-tech/rbmap/internal/report"
	"github.com/Sumatoshi-tech/rbmap/internal/stress"
)

func TestSeeds(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []uint64{10, 11, 12}, stress.Seeds(10, 3))
	assert.Empty(t, stress.Seeds(1, 0))
}

func TestRunnerKeepsSeedOrder(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	metrics, err := observability.NewStressMetrics(mp.Meter("test"))
	require.NoError(t, err)

	runner := &stress.Runner{
		Parallelism: 4,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics:     metrics,
	}

	cfg := testConfig(0)
	cfg.Ops = 500
	cfg.CheckEvery = 8
	seeds := stress.Seeds(100, 9)

	results, err := runner.Run(context.Background(), cfg, seeds)
	require.NoError(t, err)
	require.Len(t, results, len(seeds))

	for idx, result := range results {
		assert.Equal(t, seeds[idx], result.Seed)
		assert.False(t, result.Failed())
	}

	var rm metricdata.ResourceMetrics

	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	var cases int64

	for _, m := range rm.ScopeMetrics[0].Metrics {
		if m.Name != "rbmap.stress.cases.total" {
			continue
		}

		for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
			cases += dp.Value
		}
	}

	assert.Equal(t, int64(len(seeds)), cases)
}

func TestRunnerDefaults(t *testing.T) {
	t.Parallel()

	results, err := (&stress.Runner{}).Run(context.Background(), testConfig(0), stress.Seeds(1, 2))
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestRunnerCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := (&stress.Runner{Parallelism: 2}).Run(ctx, testConfig(0), stress.Seeds(1, 4))
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunnerRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := (&stress.Runner{}).Run(context.Background(), stress.Config{}, stress.Seeds(1, 1))
	require.ErrorIs(t, err, stress.ErrInvalidConfig)
}

func TestWriteReport(t *testing.T) {
	t.Parallel()

	results := []stress.CaseResult{
		{Seed: 1, Ops: 1200, Checks: 10, Height: 9},
		{Seed: 2, Ops: 800, Checks: 5, Height: 11, Failure: "seed 2: op #4 get(3): diverged"},
	}

	summary := stress.Summarize(results)
	assert.Equal(t, stress.Summary{Cases: 2, Failed: 1, Ops: 2000, Checks: 15, MaxHeight: 11}, summary)

	var table bytes.Buffer

	require.NoError(t, stress.Write(&table, report.FormatTable, results))
	assert.Contains(t, table.String(), "FAIL")
	assert.Contains(t, table.String(), "1,200")
	assert.Contains(t, table.String(), "1 FAILED")

	var doc bytes.Buffer

	require.NoError(t, stress.Write(&doc, report.FormatJSON, results))

	var decoded stress.Report

	require.NoError(t, json.Unmarshal(doc.Bytes(), &decoded))
	assert.Equal(t, summary, decoded.Summary)
	assert.Equal(t, results[1].Failure, decoded.Cases[1].Failure)

	var yamlDoc bytes.Buffer

	require.NoError(t, stress.Write(&yamlDoc, report.FormatYAML, results))
	assert.Contains(t, yamlDoc.String(), "failed: 1")
}
