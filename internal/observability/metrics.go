package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricStressCases    = "rbmap.stress.cases.total"
	metricStressOps      = "rbmap.stress.ops.total"
	metricStressChecks   = "rbmap.stress.invariant_checks.total"
	metricStressDuration = "rbmap.stress.case.duration.seconds"

	metricBenchOpLatency = "rbmap.bench.op.latency.nanoseconds"
	metricBenchHeight    = "rbmap.bench.tree.height"

	attrOp     = "op"
	attrStatus = "status"
	attrSize   = "size"

	statusPass = "pass"
	statusFail = "fail"
)

// Op kinds used as the op attribute.
const (
	OpInsert = "insert"
	OpRemove = "remove"
	OpGet    = "get"
)

// caseDurationBoundaries covers 1ms to 5min; small cases finish in
// milliseconds while million-op cases with per-step checks take minutes.
var caseDurationBoundaries = []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300}

// opLatencyBoundaries covers 10ns to 100µs per map operation.
var opLatencyBoundaries = []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 10000, 100000}

// metricBuilder accumulates instrument creation errors so a batch of
// instruments needs a single error check.
type metricBuilder struct {
	meter metric.Meter
	err   error
}

func newMetricBuilder(mt metric.Meter) *metricBuilder {
	return &metricBuilder{meter: mt}
}

func (b *metricBuilder) counter(name, desc, unit string) metric.Int64Counter {
	c, err := b.meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	b.setErr(name, err)

	return c
}

func (b *metricBuilder) histogram(name, desc, unit string, bounds ...float64) metric.Float64Histogram {
	opts := []metric.Float64HistogramOption{
		metric.WithDescription(desc),
		metric.WithUnit(unit),
	}

	if len(bounds) > 0 {
		opts = append(opts, metric.WithExplicitBucketBoundaries(bounds...))
	}

	h, err := b.meter.Float64Histogram(name, opts...)
	b.setErr(name, err)

	return h
}

func (b *metricBuilder) setErr(name string, err error) {
	if err != nil && b.err == nil {
		b.err = fmt.Errorf("create %s: %w", name, err)
	}
}

// CaseStats summarizes one finished stress case.
type CaseStats struct {
	Inserts  int
	Removes  int
	Gets     int
	Checks   int
	Failed   bool
	Duration time.Duration
}

// StressMetrics holds the instruments of the stress harness.
// A nil *StressMetrics records nothing.
type StressMetrics struct {
	cases    metric.Int64Counter
	ops      metric.Int64Counter
	checks   metric.Int64Counter
	duration metric.Float64Histogram
}

// NewStressMetrics creates the stress instruments from mt.
func NewStressMetrics(mt metric.Meter) (*StressMetrics, error) {
	b := newMetricBuilder(mt)

	sm := &StressMetrics{
		cases:    b.counter(metricStressCases, "Stress cases run", "{case}"),
		ops:      b.counter(metricStressOps, "Map operations applied by stress cases", "{op}"),
		checks:   b.counter(metricStressChecks, "Full invariant walks performed", "{check}"),
		duration: b.histogram(metricStressDuration, "Stress case wall time", "s", caseDurationBoundaries...),
	}

	if b.err != nil {
		return nil, b.err
	}

	return sm, nil
}

// RecordCase records the counters and duration of a finished case.
func (sm *StressMetrics) RecordCase(ctx context.Context, stats CaseStats) {
	if sm == nil {
		return
	}

	status := statusPass
	if stats.Failed {
		status = statusFail
	}

	statusAttr := metric.WithAttributes(attribute.String(attrStatus, status))

	sm.cases.Add(ctx, 1, statusAttr)
	sm.duration.Record(ctx, stats.Duration.Seconds(), statusAttr)
	sm.checks.Add(ctx, int64(stats.Checks))

	sm.ops.Add(ctx, int64(stats.Inserts), metric.WithAttributes(attribute.String(attrOp, OpInsert)))
	sm.ops.Add(ctx, int64(stats.Removes), metric.WithAttributes(attribute.String(attrOp, OpRemove)))
	sm.ops.Add(ctx, int64(stats.Gets), metric.WithAttributes(attribute.String(attrOp, OpGet)))
}

// BenchMetrics holds the instruments of the benchmark.
// A nil *BenchMetrics records nothing.
type BenchMetrics struct {
	latency metric.Float64Histogram
	height  metric.Float64Histogram
}

// NewBenchMetrics creates the benchmark instruments from mt.
func NewBenchMetrics(mt metric.Meter) (*BenchMetrics, error) {
	b := newMetricBuilder(mt)

	bm := &BenchMetrics{
		latency: b.histogram(metricBenchOpLatency, "Mean latency of a map operation", "ns", opLatencyBoundaries...),
		height:  b.histogram(metricBenchHeight, "Tree height after filling", "{node}"),
	}

	if b.err != nil {
		return nil, b.err
	}

	return bm, nil
}

// RecordOp records the mean latency of op at the given map size.
func (bm *BenchMetrics) RecordOp(ctx context.Context, op string, size int, nsPerOp float64) {
	if bm == nil {
		return
	}

	bm.latency.Record(ctx, nsPerOp, metric.WithAttributes(
		attribute.String(attrOp, op),
		attribute.Int(attrSize, size),
	))
}

// RecordHeight records the height of a filled map of the given size.
func (bm *BenchMetrics) RecordHeight(ctx context.Context, size, height int) {
	if bm == nil {
		return
	}

	bm.height.Record(ctx, float64(height), metric.WithAttributes(attribute.Int(attrSize, size)))
}
