package stress

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/Sumatoshi-tech/rbmap/internal/oplog"
	"github.com/Sumatoshi-tech/rbmap/pkg/rbtree"
)

// ErrMismatch is matched by every *MismatchError.
var ErrMismatch = errors.New("stress mismatch")

// MismatchError reports where a case diverged from the reference map.
type MismatchError struct {
	Seed uint64
	// Index is the position of Op in the case's log.
	Index int
	// Op is the zero Op when the final comparison failed.
	Op  oplog.Op
	Err error
	// Diff is a line diff of the reference keys (-) against the map's keys
	// (+) at the moment of failure. Empty when the keys agree or the map
	// panicked.
	Diff string
}

func newMismatchError(
	seed uint64, index int, op oplog.Op, err error,
	reference []uint32, m *rbtree.OrderedMap[uint32, uint32],
) *MismatchError {
	mismatch := &MismatchError{Seed: seed, Index: index, Op: op, Err: err}

	if m != nil {
		mismatch.Diff = keyDiff(reference, dumpKeys(m, len(reference)))
	}

	return mismatch
}

func (e *MismatchError) Error() string {
	if e.Op.Kind == 0 {
		return fmt.Sprintf("seed %d: final check after %d ops: %v", e.Seed, e.Index, e.Err)
	}

	return fmt.Sprintf("seed %d: op #%d %s: %v", e.Seed, e.Index, e.Op, e.Err)
}

func (e *MismatchError) Unwrap() []error {
	return []error{ErrMismatch, e.Err}
}

// dumpKeys lists the map's keys in order. A corrupted tree can loop, so the
// walk stops after limit entries beyond what either side should hold.
func dumpKeys(m *rbtree.OrderedMap[uint32, uint32], refLen int) []uint32 {
	limit := max(refLen, m.Len()) + 1
	keys := make([]uint32, 0, limit)

	for key := range m.Keys() {
		keys = append(keys, key)
		if len(keys) == limit {
			break
		}
	}

	return keys
}

func keyLines(keys []uint32) string {
	var sb strings.Builder

	for _, key := range keys {
		sb.WriteString(strconv.FormatUint(uint64(key), 10))
		sb.WriteByte('\n')
	}

	return sb.String()
}

// keyDiff renders a line diff of want against got, one key per line.
// Equal runs are elided.
func keyDiff(want, got []uint32) string {
	dmp := diffmatchpatch.New()
	src, dst, lines := dmp.DiffLinesToRunes(keyLines(want), keyLines(got))
	diffs := dmp.DiffCharsToLines(dmp.DiffMainRunes(src, dst, false), lines)

	var sb strings.Builder

	for _, diff := range diffs {
		var prefix string

		switch diff.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		case diffmatchpatch.DiffEqual:
			continue
		}

		for line := range strings.Lines(diff.Text) {
			sb.WriteString(prefix)
			sb.WriteString(line)
		}
	}

	return sb.String()
}
