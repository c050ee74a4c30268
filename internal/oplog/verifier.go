package oplog

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/Sumatoshi-tech/rbmap/pkg/rbtree"
)

// ErrDiverged is returned when the map under test disagrees with the
// reference map.
var ErrDiverged = errors.New("map diverged from reference")

// Stats counts the work a Verifier performed.
type Stats struct {
	Inserts int
	Removes int
	Gets    int
	Checks  int
}

// Ops returns the total number of applied ops.
func (s Stats) Ops() int {
	return s.Inserts + s.Removes + s.Gets
}

// Verifier applies ops to an OrderedMap and to a built-in reference map and
// reports the first disagreement between the two.
type Verifier struct {
	m          *rbtree.OrderedMap[uint32, uint32]
	ref        map[uint32]uint32
	checkEvery int
	mutations  int
	stats      Stats
}

// NewVerifier wraps m. The reference starts as a copy of m's entries.
// With checkEvery > 0 a full invariant walk runs after every checkEvery-th
// mutation.
func NewVerifier(m *rbtree.OrderedMap[uint32, uint32], checkEvery int) *Verifier {
	ref := make(map[uint32]uint32, m.Len())
	for key, value := range m.All() {
		ref[key] = value
	}

	return &Verifier{m: m, ref: ref, checkEvery: checkEvery}
}

// Apply runs op against both maps and compares the outcomes.
func (v *Verifier) Apply(op Op) error {
	switch op.Kind {
	case KindInsert:
		v.stats.Inserts++

		_, had := v.ref[op.Key]
		v.ref[op.Key] = op.Value

		if replaced := v.m.Insert(op.Key, op.Value); replaced != had {
			return fmt.Errorf("%w: %s reported replaced=%t, reference had key %t", ErrDiverged, op, replaced, had)
		}

		if err := v.mutated(); err != nil {
			return err
		}
	case KindRemove:
		v.stats.Removes++

		_, had := v.ref[op.Key]
		delete(v.ref, op.Key)

		if removed := v.m.Remove(op.Key); removed != had {
			return fmt.Errorf("%w: %s reported removed=%t, reference had key %t", ErrDiverged, op, removed, had)
		}

		if err := v.mutated(); err != nil {
			return err
		}
	case KindGet:
		v.stats.Gets++

		if err := v.compareKey(op.Key); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: %s", ErrCorruptLog, op.Kind)
	}

	if v.m.Len() != len(v.ref) {
		return fmt.Errorf("%w: after %s Len is %d, reference holds %d", ErrDiverged, op, v.m.Len(), len(v.ref))
	}

	return nil
}

func (v *Verifier) compareKey(key uint32) error {
	want, had := v.ref[key]

	if has := v.m.Has(key); has != had {
		return fmt.Errorf("%w: Has(%d) is %t, reference has key %t", ErrDiverged, key, has, had)
	}

	got, err := v.m.Get(key)

	switch {
	case had && err != nil:
		return fmt.Errorf("%w: Get(%d): %w", ErrDiverged, key, err)
	case !had && !errors.Is(err, rbtree.ErrKeyNotFound):
		return fmt.Errorf("%w: Get(%d) of absent key returned %d, %v", ErrDiverged, key, got, err)
	case had && got != want:
		return fmt.Errorf("%w: Get(%d) is %d, reference holds %d", ErrDiverged, key, got, want)
	}

	return nil
}

func (v *Verifier) mutated() error {
	v.mutations++

	if v.checkEvery <= 0 || v.mutations%v.checkEvery != 0 {
		return nil
	}

	return v.check()
}

func (v *Verifier) check() error {
	v.stats.Checks++

	if err := v.m.CheckInvariants(); err != nil {
		return fmt.Errorf("after %d mutations: %w", v.mutations, err)
	}

	return nil
}

// Final checks the invariants once more and compares every entry of the
// two maps in key order.
func (v *Verifier) Final() error {
	if err := v.check(); err != nil {
		return err
	}

	want := slices.Sorted(maps.Keys(v.ref))
	idx := 0

	for key, value := range v.m.All() {
		if idx >= len(want) {
			return fmt.Errorf("%w: extra key %d", ErrDiverged, key)
		}

		if key != want[idx] {
			return fmt.Errorf("%w: entry %d is key %d, reference has %d", ErrDiverged, idx, key, want[idx])
		}

		if value != v.ref[key] {
			return fmt.Errorf("%w: key %d holds %d, reference holds %d", ErrDiverged, key, value, v.ref[key])
		}

		idx++
	}

	if idx != len(want) {
		return fmt.Errorf("%w: iteration yielded %d of %d keys", ErrDiverged, idx, len(want))
	}

	return nil
}

// Reference returns the sorted keys of the reference map.
func (v *Verifier) Reference() []uint32 {
	return slices.Sorted(maps.Keys(v.ref))
}

// Stats returns the counters accumulated so far.
func (v *Verifier) Stats() Stats {
	return v.stats
}

// ReplayOptions tunes Replay.
type ReplayOptions struct {
	// CheckEvery runs CheckInvariants after every CheckEvery-th mutation.
	// Zero checks only once at the end.
	CheckEvery int
}

// ReplayError reports the op at which a replay failed.
type ReplayError struct {
	Index int
	Op    Op
	Err   error
}

func (e *ReplayError) Error() string {
	return fmt.Sprintf("op #%d %s: %v", e.Index, e.Op, e.Err)
}

func (e *ReplayError) Unwrap() error {
	return e.Err
}

// Replay applies every op of log to m, verifying each against a reference
// map. A failing op is reported as a *ReplayError; a failure of the final
// comparison is returned as is.
func Replay(log *Log, m *rbtree.OrderedMap[uint32, uint32], opts ReplayOptions) (Stats, error) {
	v := NewVerifier(m, opts.CheckEvery)

	for idx, op := range log.Ops() {
		if err := v.Apply(op); err != nil {
			return v.Stats(), &ReplayError{Index: idx, Op: op, Err: err}
		}
	}

	if err := v.Final(); err != nil {
		return v.Stats(), fmt.Errorf("after %d ops: %w", log.Len(), err)
	}

	return v.Stats(), nil
}
