// Package rbtree provides OrderedMap, a red-black tree keyed by a totally
// ordered key type.
//
// Nodes are kept in an arena owned by the map and linked by slot index,
// both downwards (left/right) and upwards (parent). Insert, lookup and
// remove are O(log n) in the worst case.
package rbtree

import (
	"cmp"
	"fmt"
)

// OrderedMap is a red-black tree mapping keys of type K to values of type V.
//
// An OrderedMap must be created with New or NewFunc. It is not safe for
// concurrent use: callers sharing a map between goroutines must guard every
// call with a single lock.
type OrderedMap[K, V any] struct {
	alloc   *allocator[K, V]
	compare func(K, K) int

	// Root of the tree, nilNode when empty.
	root uint32

	// Number of nodes reachable from root.
	count int

	checkInvariants bool
}

// Option configures an OrderedMap.
type Option func(*options)

type options struct {
	capacity        int
	checkInvariants bool
}

// WithCapacity preallocates storage for n nodes.
func WithCapacity(n int) Option {
	return func(o *options) {
		o.capacity = n
	}
}

// WithInvariantChecks makes every mutation run CheckInvariants and panic on
// the first violation. Each mutation becomes O(n); use it in tests and debug
// builds only.
func WithInvariantChecks() Option {
	return func(o *options) {
		o.checkInvariants = true
	}
}

// New creates an empty map ordered by the natural ordering of K.
func New[K cmp.Ordered, V any](opts ...Option) *OrderedMap[K, V] {
	return NewFunc[K, V](cmp.Compare[K], opts...)
}

// NewFunc creates an empty map ordered by compare, which must return a
// negative number, zero or a positive number when a < b, a == b or a > b.
func NewFunc[K, V any](compare func(K, K) int, opts ...Option) *OrderedMap[K, V] {
	var cfg options

	for _, opt := range opts {
		opt(&cfg)
	}

	return &OrderedMap[K, V]{
		alloc:           newAllocator[K, V](cfg.capacity),
		compare:         compare,
		checkInvariants: cfg.checkInvariants,
	}
}

// Len returns the number of entries in the map.
func (m *OrderedMap[K, V]) Len() int {
	return m.count
}

// Has reports whether key is present.
func (m *OrderedMap[K, V]) Has(key K) bool {
	_, match := m.locate(key)

	return match != nilNode
}

// Lookup returns the value stored under key and whether it was found.
func (m *OrderedMap[K, V]) Lookup(key K) (V, bool) {
	_, match := m.locate(key)
	if match == nilNode {
		var zero V

		return zero, false
	}

	return m.nodes()[match].value, true
}

// Get returns the value stored under key, or an error wrapping
// ErrKeyNotFound when the key is absent.
func (m *OrderedMap[K, V]) Get(key K) (V, error) {
	value, found := m.Lookup(key)
	if !found {
		return value, fmt.Errorf("%w: %v", ErrKeyNotFound, key)
	}

	return value, nil
}

// GetOr returns the value stored under key, or fallback when the key is absent.
func (m *OrderedMap[K, V]) GetOr(key K, fallback V) V {
	if value, found := m.Lookup(key); found {
		return value
	}

	return fallback
}

// Insert stores value under key. If the key is already present its value is
// replaced in place and replaced is true; the shape of the tree is untouched.
func (m *OrderedMap[K, V]) Insert(key K, value V) (replaced bool) {
	parent, match := m.locate(key)
	if match != nilNode {
		m.nodes()[match].value = value
		m.verify()

		return true
	}

	// malloc may move storage, so nodes are fetched afterwards.
	idx := m.alloc.malloc(key, value, parent)
	m.count++

	nodes := m.nodes()

	switch {
	case parent == nilNode:
		m.root = idx
	case m.compare(key, nodes[parent].key) < 0:
		nodes[parent].left = idx
	default:
		nodes[parent].right = idx
	}

	m.insertFixup(idx)
	m.verify()

	return false
}

// Remove deletes key from the map and reports whether it was present.
// Removing an absent key is a no-op that returns false.
func (m *OrderedMap[K, V]) Remove(key K) (removed bool) {
	_, loc := m.locate(key)
	if loc == nilNode {
		return false
	}

	nodes := m.nodes()

	// With two children, the in-order successor has no left child: move its
	// entry here and unlink the successor's slot instead.
	if nodes[loc].left != nilNode && nodes[loc].right != nilNode {
		succ := m.minimum(nodes[loc].right)
		doAssert(nodes[succ].left == nilNode)

		nodes[loc].key, nodes[succ].key = nodes[succ].key, nodes[loc].key
		nodes[loc].value, nodes[succ].value = nodes[succ].value, nodes[loc].value
		loc = succ
	}

	child := nodes[loc].left
	if child == nilNode {
		child = nodes[loc].right
	}

	parent := nodes[loc].parent
	m.replaceChild(parent, loc, child)

	if child != nilNode {
		nodes[child].parent = parent
	}

	if nodes[loc].color == black {
		m.removeFixup(child, parent)
	}

	m.alloc.release(loc)
	m.count--
	m.verify()

	return true
}

// Clear removes every entry. Storage is kept for reuse.
func (m *OrderedMap[K, V]) Clear() {
	m.alloc.reset()
	m.root = nilNode
	m.count = 0
}

func (m *OrderedMap[K, V]) nodes() []node[K, V] {
	return m.alloc.storage
}

// locate descends from the root looking for key. It returns the last node
// visited before the match (or before the empty slot where key belongs) and
// the matching node. Both are nilNode on an empty tree; parent is nilNode
// when the match is the root.
func (m *OrderedMap[K, V]) locate(key K) (parent, match uint32) {
	nodes := m.nodes()
	cur := m.root

	for cur != nilNode {
		comp := m.compare(key, nodes[cur].key)
		if comp == 0 {
			return parent, cur
		}

		parent = cur
		cur = nodes[cur].child(comp < 0)
	}

	return parent, nilNode
}

func (m *OrderedMap[K, V]) minimum(idx uint32) uint32 {
	nodes := m.nodes()

	for nodes[idx].left != nilNode {
		idx = nodes[idx].left
	}

	return idx
}

func (m *OrderedMap[K, V]) maximum(idx uint32) uint32 {
	nodes := m.nodes()

	for nodes[idx].right != nilNode {
		idx = nodes[idx].right
	}

	return idx
}

func (m *OrderedMap[K, V]) colorOf(idx uint32) color {
	if idx == nilNode {
		return black
	}

	return m.nodes()[idx].color
}

// replaceChild points the slot of parent that held oldChild (or the root
// when parent is nilNode) at newChild. The caller fixes newChild's parent.
func (m *OrderedMap[K, V]) replaceChild(parent, oldChild, newChild uint32) {
	if parent == nilNode {
		m.root = newChild

		return
	}

	nodes := m.nodes()

	if nodes[parent].left == oldChild {
		nodes[parent].left = newChild
	} else {
		nodes[parent].right = newChild
	}
}

// rotate performs a tree rotation around pivot.
// left=true performs a left rotation, left=false a right rotation.
//
// Left rotation:
//
//	  X              Y
//	A   Y    =>    X   C
//	  B C        A B
//
// Right rotation:
//
//	    Y            X
//	  X   C  =>    A   Y
//	A B              B C
func (m *OrderedMap[K, V]) rotate(pivot uint32, left bool) {
	nodes := m.nodes()

	child := nodes[pivot].child(!left)
	doAssert(child != nilNode)

	inner := nodes[child].child(left)
	nodes[pivot].setChild(!left, inner)

	if inner != nilNode {
		nodes[inner].parent = pivot
	}

	parent := nodes[pivot].parent
	nodes[child].parent = parent
	m.replaceChild(parent, pivot, child)

	nodes[child].setChild(left, pivot)
	nodes[pivot].parent = child
}

func (m *OrderedMap[K, V]) rotateLeft(pivot uint32) {
	m.rotate(pivot, true)
}

func (m *OrderedMap[K, V]) rotateRight(pivot uint32) {
	m.rotate(pivot, false)
}

func (m *OrderedMap[K, V]) verify() {
	if !m.checkInvariants {
		return
	}

	if err := m.CheckInvariants(); err != nil {
		panic(err)
	}
}

func doAssert(condition bool) {
	if !condition {
		panic("rbtree internal assertion failed")
	}
}
