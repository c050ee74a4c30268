package rbtree

import "iter"

// All returns an iterator over the entries in ascending key order.
// The map must not be mutated while the iteration is in progress.
func (m *OrderedMap[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		if m.root == nilNode {
			return
		}

		for idx := m.minimum(m.root); idx != nilNode; idx = m.next(idx) {
			nd := &m.nodes()[idx]
			if !yield(nd.key, nd.value) {
				return
			}
		}
	}
}

// Keys returns an iterator over the keys in ascending order.
func (m *OrderedMap[K, V]) Keys() iter.Seq[K] {
	return func(yield func(K) bool) {
		for key := range m.All() {
			if !yield(key) {
				return
			}
		}
	}
}

// Min returns the entry with the smallest key.
func (m *OrderedMap[K, V]) Min() (key K, value V, found bool) {
	if m.root == nilNode {
		return key, value, false
	}

	nd := m.nodes()[m.minimum(m.root)]

	return nd.key, nd.value, true
}

// Max returns the entry with the largest key.
func (m *OrderedMap[K, V]) Max() (key K, value V, found bool) {
	if m.root == nilNode {
		return key, value, false
	}

	nd := m.nodes()[m.maximum(m.root)]

	return nd.key, nd.value, true
}

// next returns the in-order successor of idx, or nilNode after the maximum.
func (m *OrderedMap[K, V]) next(idx uint32) uint32 {
	nodes := m.nodes()

	if nodes[idx].right != nilNode {
		return m.minimum(nodes[idx].right)
	}

	for {
		parent := nodes[idx].parent
		if parent == nilNode || nodes[parent].left == idx {
			return parent
		}

		idx = parent
	}
}
