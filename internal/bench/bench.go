// Package bench measures OrderedMap operation cost and tree height across
// map sizes.
package bench

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/dustin/go-humanize"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Sumatoshi-tech/rbmap/internal/observability"
	"github.com/Sumatoshi-tech/rbmap/pkg/rbtree"
)

const tracerName = "rbmap/bench"

// ErrInvalidSize is returned for non-positive sizes.
var ErrInvalidSize = errors.New("bench size must be positive")

// Config selects what Run measures.
type Config struct {
	Sizes []int
	Seed  uint64
}

// Sample is the measurement for one map size.
type Sample struct {
	Size     int     `json:"size"      yaml:"size"`
	InsertNs float64 `json:"insert_ns" yaml:"insert_ns"`
	GetNs    float64 `json:"get_ns"    yaml:"get_ns"`
	RemoveNs float64 `json:"remove_ns" yaml:"remove_ns"`
	Height   int     `json:"height"    yaml:"height"`
	// Bound is 2*log2(n+1), the worst-case red-black height.
	Bound float64 `json:"bound" yaml:"bound"`
}

// HeightBound returns the largest height a valid tree with n entries can have.
func HeightBound(n int) float64 {
	return 2 * math.Log2(float64(n)+1)
}

// Runner runs the benchmark.
type Runner struct {
	// Logger receives one line per size. Nil uses slog.Default().
	Logger *slog.Logger
	// Metrics records latencies and heights. Nil records nothing.
	Metrics *observability.BenchMetrics
}

// Run fills a map with each size's worth of distinct random keys, then
// looks every key up and removes every key, each pass in a fresh random
// order. Per-op times are wall time divided by n.
func (r *Runner) Run(ctx context.Context, cfg Config) ([]Sample, error) {
	for _, size := range cfg.Sizes {
		if size <= 0 {
			return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
		}
	}

	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed+1))
	samples := make([]Sample, 0, len(cfg.Sizes))

	for _, size := range cfg.Sizes {
		if err := ctx.Err(); err != nil {
			return samples, fmt.Errorf("bench: %w", err)
		}

		sample := r.measure(ctx, rng, size)
		samples = append(samples, sample)

		logger.InfoContext(ctx, "measured",
			"size", humanize.Comma(int64(size)),
			"insert_ns", fmt.Sprintf("%.1f", sample.InsertNs),
			"get_ns", fmt.Sprintf("%.1f", sample.GetNs),
			"remove_ns", fmt.Sprintf("%.1f", sample.RemoveNs),
			"height", sample.Height)
	}

	return samples, nil
}

func (r *Runner) measure(ctx context.Context, rng *rand.Rand, size int) Sample {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "bench.size")
	defer span.End()

	span.SetAttributes(attribute.Int("bench.size", size))

	keys := make([]uint32, size)
	for idx := range keys {
		keys[idx] = rng.Uint32()
	}

	m := rbtree.New[uint32, uint32](rbtree.WithCapacity(size))
	sample := Sample{Size: size, Bound: HeightBound(size)}

	sample.InsertNs = perOp(size, func() {
		for _, key := range keys {
			m.Insert(key, key)
		}
	})

	// Random keys may collide; the map holds the distinct ones.
	sample.Height = m.Height()

	shuffle(rng, keys)

	sample.GetNs = perOp(size, func() {
		for _, key := range keys {
			m.Lookup(key)
		}
	})

	shuffle(rng, keys)

	sample.RemoveNs = perOp(size, func() {
		for _, key := range keys {
			m.Remove(key)
		}
	})

	r.Metrics.RecordOp(ctx, observability.OpInsert, size, sample.InsertNs)
	r.Metrics.RecordOp(ctx, observability.OpGet, size, sample.GetNs)
	r.Metrics.RecordOp(ctx, observability.OpRemove, size, sample.RemoveNs)
	r.Metrics.RecordHeight(ctx, size, sample.Height)

	return sample
}

func perOp(n int, fn func()) float64 {
	start := time.Now()
	fn()

	return float64(time.Since(start).Nanoseconds()) / float64(n)
}

func shuffle(rng *rand.Rand, keys []uint32) {
	rng.Shuffle(len(keys), func(i, j int) {
		keys[i], keys[j] = keys[j], keys[i]
	})
}
