package oplog_test

import (
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/rbmap/internal/oplog"
)

func testRandomLog(seed uint64, n int) *oplog.Log {
	rng := rand.New(rand.NewPCG(seed, seed))
	log := oplog.New(n)

	for range n {
		kind := oplog.Kind(rng.IntN(3) + 1)
		log.Append(oplog.Op{Kind: kind, Key: rng.Uint32N(512), Value: rng.Uint32()})
	}

	return log
}

func TestEncodeDecode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		log  *oplog.Log
	}{
		{name: "empty", log: oplog.New(0)},
		{name: "single", log: func() *oplog.Log {
			l := oplog.New(1)
			l.Append(oplog.Op{Kind: oplog.KindRemove, Key: 42})

			return l
		}()},
		{name: "random", log: testRandomLog(1, 5000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			data, err := tt.log.Encode()
			require.NoError(t, err)

			decoded, err := oplog.Decode(data)
			require.NoError(t, err)

			assert.Equal(t, tt.log.Len(), decoded.Len())
			assert.Equal(t, tt.log.Ops(), decoded.Ops())
		})
	}
}

func TestEncodeCompressesRuns(t *testing.T) {
	t.Parallel()

	log := oplog.New(4096)
	for idx := range uint32(4096) {
		log.Append(oplog.Op{Kind: oplog.KindInsert, Key: idx % 16, Value: 7})
	}

	data, err := log.Encode()
	require.NoError(t, err)

	// Three raw columns would be 48 KiB.
	assert.Less(t, len(data), 4096)

	decoded, err := oplog.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, log.Ops(), decoded.Ops())
}

func TestDecodeRejectsCorruptInput(t *testing.T) {
	t.Parallel()

	valid, err := testRandomLog(2, 64).Encode()
	require.NoError(t, err)

	badKind := oplog.New(1)
	badKind.Append(oplog.Op{Kind: oplog.Kind(9), Key: 1})

	badKindData, err := badKind.Encode()
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
	}{
		{name: "nil", data: nil},
		{name: "bad_magic", data: append([]byte("XXXX"), valid[4:]...)},
		{name: "bad_version", data: append([]byte("RBOP\x09"), valid[5:]...)},
		{name: "truncated", data: valid[:len(valid)-3]},
		{name: "trailing", data: append(append([]byte{}, valid...), 0)},
		{name: "header_only", data: []byte("RBOP\x01\x05")},
		{name: "bad_kind", data: badKindData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := oplog.Decode(tt.data)
			require.ErrorIs(t, err, oplog.ErrCorruptLog)
		})
	}
}

func TestWriteReadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "case-7.oplog")
	log := testRandomLog(7, 300)

	require.NoError(t, log.WriteFile(path))

	read, err := oplog.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, log.Ops(), read.Ops())
}

func TestReadFileErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	_, err := oplog.ReadFile(filepath.Join(dir, "missing.oplog"))
	require.ErrorIs(t, err, os.ErrNotExist)

	garbage := filepath.Join(dir, "garbage.oplog")
	require.NoError(t, os.WriteFile(garbage, []byte("not a log"), 0o600))

	_, err = oplog.ReadFile(garbage)
	require.ErrorIs(t, err, oplog.ErrCorruptLog)
	assert.Contains(t, err.Error(), garbage)
}

func TestOpString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "insert(3, 30)", oplog.Op{Kind: oplog.KindInsert, Key: 3, Value: 30}.String())
	assert.Equal(t, "remove(3)", oplog.Op{Kind: oplog.KindRemove, Key: 3, Value: 30}.String())
	assert.Equal(t, "get(4)", oplog.Op{Kind: oplog.KindGet, Key: 4}.String())
	assert.Equal(t, "kind(0)", oplog.Kind(0).String())
}
