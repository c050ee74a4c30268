// Package oplog records sequences of map operations in a compact columnar
// file format and replays them against an rbtree.OrderedMap.
package oplog

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
)

// Kind is the operation type of an Op.
type Kind uint32

// Operation kinds. Zero is reserved so a zeroed Op is invalid.
const (
	KindInsert Kind = iota + 1
	KindRemove
	KindGet
)

func (k Kind) String() string {
	switch k {
	case KindInsert:
		return "insert"
	case KindRemove:
		return "remove"
	case KindGet:
		return "get"
	default:
		return fmt.Sprintf("kind(%d)", uint32(k))
	}
}

// Op is one recorded map operation. Value is ignored for removes and gets.
type Op struct {
	Kind  Kind
	Key   uint32
	Value uint32
}

func (op Op) String() string {
	if op.Kind == KindInsert {
		return fmt.Sprintf("%s(%d, %d)", op.Kind, op.Key, op.Value)
	}

	return fmt.Sprintf("%s(%d)", op.Kind, op.Key)
}

// ErrCorruptLog is returned when encoded bytes are not a valid log.
var ErrCorruptLog = errors.New("corrupt operation log")

const (
	formatVersion byte = 1

	// maxOps bounds the op count accepted from a header.
	maxOps = 1 << 24

	fileMode = 0o644
)

var magic = []byte("RBOP")

// Log is an append-only sequence of operations.
type Log struct {
	ops []Op
}

// New returns an empty log with room for capacity ops.
func New(capacity int) *Log {
	return &Log{ops: make([]Op, 0, capacity)}
}

// Append records op.
func (l *Log) Append(op Op) {
	l.ops = append(l.ops, op)
}

// Len returns the number of recorded ops.
func (l *Log) Len() int {
	return len(l.ops)
}

// Ops returns the recorded ops. The slice is shared with the log.
func (l *Log) Ops() []Op {
	return l.ops
}

// Encode serializes the log.
//
// Layout: "RBOP", version byte, uvarint op count, then the kind, key and
// value columns. Each column is an encoding byte, a uvarint payload length
// and the payload. The kind column is delta-encoded first.
func (l *Log) Encode() ([]byte, error) {
	kinds := make([]uint32, len(l.ops))
	keys := make([]uint32, len(l.ops))
	values := make([]uint32, len(l.ops))

	for idx, op := range l.ops {
		kinds[idx] = uint32(op.Kind)
		keys[idx] = op.Key
		values[idx] = op.Value
	}

	deltaEncode(kinds)

	var buf bytes.Buffer

	buf.Write(magic)
	buf.WriteByte(formatVersion)
	buf.Write(binary.AppendUvarint(nil, uint64(len(l.ops))))

	for _, column := range [][]uint32{kinds, keys, values} {
		encoding, payload, err := compressColumn(column)
		if err != nil {
			return nil, err
		}

		buf.WriteByte(encoding)
		buf.Write(binary.AppendUvarint(nil, uint64(len(payload))))
		buf.Write(payload)
	}

	return buf.Bytes(), nil
}

// Decode parses bytes produced by Encode.
func Decode(data []byte) (*Log, error) {
	rest, found := bytes.CutPrefix(data, magic)
	if !found {
		return nil, fmt.Errorf("%w: bad magic", ErrCorruptLog)
	}

	if len(rest) == 0 || rest[0] != formatVersion {
		return nil, fmt.Errorf("%w: unsupported version", ErrCorruptLog)
	}

	rest = rest[1:]

	count, read := binary.Uvarint(rest)
	if read <= 0 || count > maxOps {
		return nil, fmt.Errorf("%w: bad op count", ErrCorruptLog)
	}

	rest = rest[read:]

	columns := [3][]uint32{}

	for idx := range columns {
		columns[idx] = make([]uint32, count)

		var err error

		rest, err = readColumn(rest, columns[idx])
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", idx, err)
		}
	}

	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorruptLog, len(rest))
	}

	kinds, keys, values := columns[0], columns[1], columns[2]
	deltaDecode(kinds)

	result := New(int(count))

	for idx := range kinds {
		kind := Kind(kinds[idx])
		if kind < KindInsert || kind > KindGet {
			return nil, fmt.Errorf("%w: op %d has %s", ErrCorruptLog, idx, kind)
		}

		result.Append(Op{Kind: kind, Key: keys[idx], Value: values[idx]})
	}

	return result, nil
}

func readColumn(data []byte, column []uint32) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: truncated column", ErrCorruptLog)
	}

	encoding := data[0]
	data = data[1:]

	size, read := binary.Uvarint(data)
	if read <= 0 || size > uint64(len(data)-read) {
		return nil, fmt.Errorf("%w: bad column length", ErrCorruptLog)
	}

	data = data[read:]

	if err := decompressColumn(encoding, data[:size], column); err != nil {
		return nil, err
	}

	return data[size:], nil
}

// WriteFile encodes the log to path.
func (l *Log) WriteFile(path string) error {
	data, err := l.Encode()
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	if err := os.WriteFile(path, data, fileMode); err != nil {
		return fmt.Errorf("write oplog: %w", err)
	}

	return nil
}

// ReadFile decodes the log stored at path.
func ReadFile(path string) (*Log, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read oplog: %w", err)
	}

	log, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	return log, nil
}
