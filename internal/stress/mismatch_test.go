package stress

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/rbmap/internal/oplog"
	"github.com/Sumatoshi-tech/rbmap/pkg/rbtree"
)

func TestMismatchErrorDiff(t *testing.T) {
	t.Parallel()

	m := rbtree.New[uint32, uint32]()
	for _, key := range []uint32{1, 3, 4} {
		m.Insert(key, key)
	}

	cause := fmt.Errorf("%w: Get(4) is 5", oplog.ErrDiverged)
	op := oplog.Op{Kind: oplog.KindGet, Key: 4}

	err := newMismatchError(9, 17, op, cause, []uint32{1, 2, 3}, m)

	assert.Equal(t, "-2\n+4\n", err.Diff)
	assert.Equal(t, "seed 9: op #17 get(4): map diverged from reference: Get(4) is 5", err.Error())
	require.ErrorIs(t, err, ErrMismatch)
	require.ErrorIs(t, err, oplog.ErrDiverged)
}

func TestMismatchErrorFinalCheck(t *testing.T) {
	t.Parallel()

	err := newMismatchError(3, 40, oplog.Op{}, ErrPanic, nil, nil)

	assert.Empty(t, err.Diff)
	assert.Equal(t, "seed 3: final check after 40 ops: map panicked", err.Error())
}

func TestKeyDiffEqual(t *testing.T) {
	t.Parallel()

	assert.Empty(t, keyDiff([]uint32{1, 2}, []uint32{1, 2}))
	assert.Equal(t, "+5\n", keyDiff(nil, []uint32{5}))
}

func TestDumpKeysIsBounded(t *testing.T) {
	t.Parallel()

	m := rbtree.New[uint32, uint32]()
	for key := range uint32(10) {
		m.Insert(key, key)
	}

	assert.Len(t, dumpKeys(m, 0), 10)
	assert.Len(t, dumpKeys(m, 20), 10)
}
