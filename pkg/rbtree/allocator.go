package rbtree

import "math"

// growCapacityNumerator and growCapacityDenominator define the 3/2 growth factor for storage.
const (
	growCapacityNumerator   = 3
	growCapacityDenominator = 2
)

const (
	// nilNode is the reserved slot standing for an absent child or parent.
	nilNode uint32 = 0

	// maxNodes keeps every live index representable as uint32.
	maxNodes = math.MaxUint32 - 1
)

type color bool

const (
	red   color = false
	black color = true
)

type node[K, V any] struct {
	key                 K
	value               V
	parent, left, right uint32
	color               color
}

func (nd *node[K, V]) child(left bool) uint32 {
	if left {
		return nd.left
	}

	return nd.right
}

func (nd *node[K, V]) setChild(left bool, idx uint32) {
	if left {
		nd.left = idx
	} else {
		nd.right = idx
	}
}

// allocator owns every node of a single map. Children and parents refer to
// each other by slot index, so a detached slot can never be reached through
// a stale pointer.
type allocator[K, V any] struct {
	storage []node[K, V]
	free    []uint32
}

func newAllocator[K, V any](capacity int) *allocator[K, V] {
	// Slot #0 is the nil sentinel and is never handed out.
	return &allocator[K, V]{storage: make([]node[K, V], 1, max(capacity, 0)+1)}
}

// size returns the number of slots ever handed out, free or not.
func (alloc *allocator[K, V]) size() int {
	return len(alloc.storage) - 1
}

// used returns the number of live nodes.
func (alloc *allocator[K, V]) used() int {
	return alloc.size() - len(alloc.free)
}

func (alloc *allocator[K, V]) malloc(key K, value V, parent uint32) uint32 {
	fresh := node[K, V]{key: key, value: value, parent: parent, color: red}

	if last := len(alloc.free) - 1; last >= 0 {
		idx := alloc.free[last]
		alloc.free = alloc.free[:last]
		alloc.storage[idx] = fresh

		return idx
	}

	nodeLen := len(alloc.storage)
	if nodeLen > maxNodes {
		panic("rbtree: node storage has reached the maximum value for uint32")
	}

	if nodeLen == cap(alloc.storage) {
		grown := make([]node[K, V], nodeLen, nodeLen*growCapacityNumerator/growCapacityDenominator+1)
		copy(grown, alloc.storage)
		alloc.storage = grown
	}

	alloc.storage = append(alloc.storage, fresh)

	return uint32(nodeLen)
}

func (alloc *allocator[K, V]) release(idx uint32) {
	doAssert(idx != nilNode)

	// Zero the slot so the key and value become collectable.
	alloc.storage[idx] = node[K, V]{}
	alloc.free = append(alloc.free, idx)
}

func (alloc *allocator[K, V]) reset() {
	clear(alloc.storage)
	alloc.storage = alloc.storage[:1]
	alloc.free = alloc.free[:0]
}
