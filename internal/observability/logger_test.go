package observability_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/Sumatoshi-tech/rbmap/internal/observability"
)

func decodeRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()

	var record map[string]any

	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	return record
}

func TestTracingHandler_InjectsSpanIDs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	cfg := observability.DefaultConfig()
	cfg.LogJSON = true
	cfg.Environment = "ci"
	logger := observability.NewLogger(&buf, cfg)

	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { require.NoError(t, tp.Shutdown(context.Background())) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "case")
	defer span.End()

	logger.InfoContext(ctx, "case finished", "seed", 7)

	record := decodeRecord(t, &buf)

	assert.Equal(t, span.SpanContext().TraceID().String(), record["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), record["span_id"])
	assert.Equal(t, "rbmap", record["service"])
	assert.Equal(t, "stress", record["mode"])
	assert.Equal(t, "ci", record["env"])
	assert.InDelta(t, 7, record["seed"], 0)
}

func TestTracingHandler_NoSpan(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, nil)
	logger := slog.New(observability.NewTracingHandler(inner, "rbmap", "", observability.ModeBench))

	logger.Info("no span")

	record := decodeRecord(t, &buf)

	assert.NotContains(t, record, "trace_id")
	assert.NotContains(t, record, "env")
	assert.Equal(t, "bench", record["mode"])
}

func TestTracingHandler_GroupKeepsServiceAtTop(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, nil)
	logger := slog.New(observability.NewTracingHandler(inner, "rbmap", "", observability.ModeReplay)).
		WithGroup("oplog").With("ops", 3)

	logger.Info("replayed")

	record := decodeRecord(t, &buf)

	assert.Equal(t, "rbmap", record["service"])
	assert.Equal(t, map[string]any{"ops": float64(3)}, record["oplog"])
}

func TestTracingHandler_RespectsLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	cfg := observability.DefaultConfig()
	cfg.LogLevel = slog.LevelWarn
	logger := observability.NewLogger(&buf, cfg)

	logger.Info("dropped")

	assert.Empty(t, buf.String())
}
