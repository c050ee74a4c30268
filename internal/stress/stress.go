// Package stress runs randomized differential tests of rbtree.OrderedMap
// against a built-in map.
package stress

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Sumatoshi-tech/rbmap/internal/oplog"
	"github.com/Sumatoshi-tech/rbmap/pkg/rbtree"
)

const (
	tracerName = "rbmap/stress"

	// ctxCheckInterval is how many ops run between context polls.
	ctxCheckInterval = 1024
)

// ErrInvalidConfig is returned for configurations RunCase cannot execute.
var ErrInvalidConfig = errors.New("invalid stress config")

// ErrPanic wraps a panic raised by the map during a case.
var ErrPanic = errors.New("map panicked")

// Config describes one stress case.
type Config struct {
	// Ops is the number of random operations before the drain phase.
	Ops int
	// KeySpace bounds keys to [0, KeySpace).
	KeySpace int
	// RemoveRatio is the probability of a remove.
	RemoveRatio float64
	// LookupRatio is the probability of a lookup. Everything else inserts.
	LookupRatio float64
	// CheckEvery runs the invariant checker after every CheckEvery-th
	// mutation. Zero checks only at the end.
	CheckEvery int
	// Seed drives the generator.
	Seed uint64
}

func (c Config) validate() error {
	switch {
	case c.Ops < 0:
		return fmt.Errorf("%w: ops %d", ErrInvalidConfig, c.Ops)
	case c.KeySpace <= 0:
		return fmt.Errorf("%w: key space %d", ErrInvalidConfig, c.KeySpace)
	case c.RemoveRatio < 0 || c.LookupRatio < 0 || c.RemoveRatio+c.LookupRatio > 1:
		return fmt.Errorf("%w: ratios %g/%g", ErrInvalidConfig, c.RemoveRatio, c.LookupRatio)
	case c.CheckEvery < 0:
		return fmt.Errorf("%w: check every %d", ErrInvalidConfig, c.CheckEvery)
	}

	return nil
}

// CaseResult describes a finished case.
type CaseResult struct {
	Seed     uint64        `json:"seed"              yaml:"seed"`
	Ops      int           `json:"ops"               yaml:"ops"`
	Inserts  int           `json:"inserts"           yaml:"inserts"`
	Removes  int           `json:"removes"           yaml:"removes"`
	Gets     int           `json:"gets"              yaml:"gets"`
	Checks   int           `json:"checks"            yaml:"checks"`
	PeakLen  int           `json:"peak_len"          yaml:"peak_len"`
	Height   int           `json:"height"            yaml:"height"`
	Duration time.Duration `json:"duration"          yaml:"duration"`
	Failure  string        `json:"failure,omitempty" yaml:"failure,omitempty"`

	// Log holds every op the case applied, drain phase included.
	Log *oplog.Log `json:"-" yaml:"-"`
}

// Failed reports whether the case diverged.
func (r CaseResult) Failed() bool {
	return r.Failure != ""
}

// RunCase generates cfg.Ops random operations, applies them to an
// OrderedMap and a reference map, then removes every remaining key in
// random order. A divergence is returned as a *MismatchError alongside the
// partial result; the result's Log always holds the applied ops.
func RunCase(ctx context.Context, cfg Config) (CaseResult, error) {
	result := CaseResult{Seed: cfg.Seed}

	if err := cfg.validate(); err != nil {
		return result, err
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "stress.case")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("stress.seed", int64(cfg.Seed)), //nolint:gosec // seeds are shown, not computed with.
		attribute.Int("stress.ops", cfg.Ops),
		attribute.Int("stress.key_space", cfg.KeySpace),
	)

	start := time.Now()
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	m := rbtree.New[uint32, uint32]()
	verifier := oplog.NewVerifier(m, cfg.CheckEvery)
	result.Log = oplog.New(cfg.Ops + min(cfg.Ops, cfg.KeySpace))

	apply := func(op oplog.Op) error {
		result.Log.Append(op)

		if err := verifier.Apply(op); err != nil {
			return newMismatchError(cfg.Seed, result.Log.Len()-1, op, err, verifier.Reference(), m)
		}

		result.PeakLen = max(result.PeakLen, m.Len())

		return nil
	}

	err := func() (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				var last oplog.Op
				if n := result.Log.Len(); n > 0 {
					last = result.Log.Ops()[n-1]
				}

				err = newMismatchError(cfg.Seed, result.Log.Len()-1, last, fmt.Errorf("%w: %v", ErrPanic, rec), nil, nil)
			}
		}()

		for idx := range cfg.Ops {
			if idx%ctxCheckInterval == 0 {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
			}

			if applyErr := apply(randomOp(rng, cfg)); applyErr != nil {
				return applyErr
			}
		}

		result.Height = m.Height()

		remaining := verifier.Reference()
		rng.Shuffle(len(remaining), func(i, j int) {
			remaining[i], remaining[j] = remaining[j], remaining[i]
		})

		for _, key := range remaining {
			if applyErr := apply(oplog.Op{Kind: oplog.KindRemove, Key: key}); applyErr != nil {
				return applyErr
			}
		}

		if finalErr := verifier.Final(); finalErr != nil {
			return newMismatchError(cfg.Seed, result.Log.Len(), oplog.Op{}, finalErr, verifier.Reference(), m)
		}

		return nil
	}()

	stats := verifier.Stats()
	result.Ops = stats.Ops()
	result.Inserts = stats.Inserts
	result.Removes = stats.Removes
	result.Gets = stats.Gets
	result.Checks = stats.Checks
	result.Duration = time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "case failed")

		var mismatch *MismatchError
		if errors.As(err, &mismatch) {
			result.Failure = mismatch.Error()
		}

		return result, err
	}

	return result, nil
}

func randomOp(rng *rand.Rand, cfg Config) oplog.Op {
	key := rng.Uint32N(uint32(cfg.KeySpace)) //nolint:gosec // validated by config.

	switch roll := rng.Float64(); {
	case roll < cfg.RemoveRatio:
		return oplog.Op{Kind: oplog.KindRemove, Key: key}
	case roll < cfg.RemoveRatio+cfg.LookupRatio:
		return oplog.Op{Kind: oplog.KindGet, Key: key}
	default:
		return oplog.Op{Kind: oplog.KindInsert, Key: key, Value: rng.Uint32()}
	}
}
