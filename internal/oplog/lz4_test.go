package oplog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressColumn(t *testing.T) {
	t.Parallel()

	t.Run("repetitive_uses_lz4", func(t *testing.T) {
		t.Parallel()

		data := make([]uint32, 1000)
		for idx := range data {
			data[idx] = uint32(idx % 4)
		}

		encoding, payload, err := compressColumn(data)
		require.NoError(t, err)
		assert.Equal(t, columnLZ4, encoding)
		assert.Less(t, len(payload), len(data)*uint32ByteSize)

		result := make([]uint32, len(data))
		require.NoError(t, decompressColumn(encoding, payload, result))
		assert.Equal(t, data, result)
	})

	t.Run("tiny_stays_raw", func(t *testing.T) {
		t.Parallel()

		data := []uint32{0xdeadbeef}

		encoding, payload, err := compressColumn(data)
		require.NoError(t, err)
		assert.Equal(t, columnRaw, encoding)
		assert.Len(t, payload, uint32ByteSize)

		result := make([]uint32, 1)
		require.NoError(t, decompressColumn(encoding, payload, result))
		assert.Equal(t, data, result)
	})

	t.Run("length_mismatch", func(t *testing.T) {
		t.Parallel()

		err := decompressColumn(columnRaw, []byte{1, 2, 3}, make([]uint32, 1))
		require.ErrorIs(t, err, ErrCorruptLog)
	})

	t.Run("unknown_encoding", func(t *testing.T) {
		t.Parallel()

		err := decompressColumn(7, nil, nil)
		require.ErrorIs(t, err, ErrCorruptLog)
	})
}

func TestDeltaRoundTrip(t *testing.T) {
	t.Parallel()

	data := []uint32{1, 1, 1, 3, 2, 2, 1}
	deltaEncode(data)

	assert.Equal(t, []uint32{1, 0, 0, 2, 0xffffffff, 0, 0xffffffff}, data)

	deltaDecode(data)
	assert.Equal(t, []uint32{1, 1, 1, 3, 2, 2, 1}, data)
}
