package stress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/rbmap/internal/observability"
)

// Runner dispatches stress cases over a bounded number of goroutines.
type Runner struct {
	// Parallelism caps concurrently running cases. Values below 1 mean 1.
	Parallelism int
	// Logger receives one line per case. Nil uses slog.Default().
	Logger *slog.Logger
	// Metrics records per-case counters. Nil records nothing.
	Metrics *observability.StressMetrics
}

// Seeds returns n consecutive seeds starting at base.
func Seeds(base uint64, n int) []uint64 {
	seeds := make([]uint64, n)
	for idx := range seeds {
		seeds[idx] = base + uint64(idx) //nolint:gosec // idx is non-negative.
	}

	return seeds
}

// Run executes one case per seed, with cfg.Seed replaced by each seed.
// Results come back in seed order whatever the completion order. Failing
// cases do not stop the run: their result carries the failure and their op
// log. Run returns an error only when ctx ends or cfg is invalid.
func (r *Runner) Run(ctx context.Context, cfg Config, seeds []uint64) ([]CaseResult, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	results := make([]CaseResult, len(seeds))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(max(r.Parallelism, 1))

	for idx, seed := range seeds {
		if groupCtx.Err() != nil {
			break
		}

		group.Go(func() error {
			caseCfg := cfg
			caseCfg.Seed = seed

			result, err := RunCase(groupCtx, caseCfg)
			results[idx] = result

			var mismatch *MismatchError

			switch {
			case err == nil:
				logger.DebugContext(groupCtx, "case passed",
					"case", idx+1, "seed", seed,
					"ops", humanize.Comma(int64(result.Ops)), "height", result.Height, "duration", result.Duration)
			case errors.As(err, &mismatch):
				logger.ErrorContext(groupCtx, "case failed",
					"case", idx+1, "seed", seed, "op", mismatch.Index, "error", mismatch.Err)
			default:
				return fmt.Errorf("case %d (seed %d): %w", idx+1, seed, err)
			}

			r.Metrics.RecordCase(groupCtx, observability.CaseStats{
				Inserts:  result.Inserts,
				Removes:  result.Removes,
				Gets:     result.Gets,
				Checks:   result.Checks,
				Failed:   err != nil,
				Duration: result.Duration,
			})

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return results, err
	}

	if err := ctx.Err(); err != nil {
		return results, fmt.Errorf("stress run: %w", err)
	}

	return results, nil
}
