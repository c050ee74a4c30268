package oplog

import (
	"encoding/binary"
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// uint32ByteSize is the number of bytes in a uint32.
const uint32ByteSize = 4

// Column encodings.
const (
	columnRaw byte = 0
	columnLZ4 byte = 1
)

// compressColumn packs a column of uint32-s little-endian and compresses it
// with LZ4. Incompressible columns are stored raw.
func compressColumn(data []uint32) (encoding byte, payload []byte, err error) {
	raw := make([]byte, 0, len(data)*uint32ByteSize)
	for _, value := range data {
		raw = binary.LittleEndian.AppendUint32(raw, value)
	}

	compressed := make([]byte, lz4.CompressBlockBound(len(raw)))

	written, err := lz4.CompressBlock(raw, compressed, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("lz4 compress: %w", err)
	}

	// Zero means LZ4 could not shrink the block.
	if written == 0 || written >= len(raw) {
		return columnRaw, raw, nil
	}

	return columnLZ4, compressed[:written], nil
}

// decompressColumn reverses compressColumn into result, which must be
// preallocated with the column length.
func decompressColumn(encoding byte, payload []byte, result []uint32) error {
	raw := payload

	switch encoding {
	case columnRaw:
	case columnLZ4:
		raw = make([]byte, len(result)*uint32ByteSize)

		read, err := lz4.UncompressBlock(payload, raw)
		if err != nil {
			return fmt.Errorf("%w: lz4 decompress: %w", ErrCorruptLog, err)
		}

		raw = raw[:read]
	default:
		return fmt.Errorf("%w: unknown column encoding %d", ErrCorruptLog, encoding)
	}

	if len(raw) != len(result)*uint32ByteSize {
		return fmt.Errorf("%w: column holds %d bytes, want %d", ErrCorruptLog, len(raw), len(result)*uint32ByteSize)
	}

	for idx := range result {
		result[idx] = binary.LittleEndian.Uint32(raw[idx*uint32ByteSize:])
	}

	return nil
}

// deltaEncode replaces each element with the difference from its
// predecessor, in place. Runs of equal values become zeros, which LZ4
// compresses well.
func deltaEncode(data []uint32) {
	for i := len(data) - 1; i > 0; i-- {
		data[i] -= data[i-1]
	}
}

// deltaDecode is the prefix sum undoing deltaEncode, in place.
func deltaDecode(data []uint32) {
	for i := 1; i < len(data); i++ {
		data[i] += data[i-1]
	}
}
