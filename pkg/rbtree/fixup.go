package rbtree

// insertFixup restores the red-black properties after idx was attached as a
// red leaf. Each iteration either terminates or moves the violation two
// levels up.
func (m *OrderedMap[K, V]) insertFixup(idx uint32) {
	nodes := m.nodes()

	for {
		parent := nodes[idx].parent
		if m.colorOf(parent) == black {
			break
		}

		// A red parent is never the root, so the grandparent exists.
		grandparent := nodes[parent].parent
		doAssert(grandparent != nilNode)

		parentIsLeft := parent == nodes[grandparent].left
		uncle := nodes[grandparent].child(!parentIsLeft)

		if m.colorOf(uncle) == red {
			nodes[parent].color = black
			nodes[uncle].color = black
			nodes[grandparent].color = red
			idx = grandparent

			continue
		}

		// Inner grandchild: rotate it into the outer position first.
		if idx == nodes[parent].child(!parentIsLeft) {
			m.rotate(parent, parentIsLeft)
			idx, parent = parent, idx
		}

		nodes[parent].color = black
		nodes[grandparent].color = red
		m.rotate(grandparent, !parentIsLeft)

		break
	}

	nodes[m.root].color = black
}

// removeFixup restores the red-black properties after a black node was
// unlinked. cur is the subtree that took its place (possibly nilNode, which
// counts as black) and parent is cur's parent, tracked explicitly because a
// nil cur has no slot of its own.
func (m *OrderedMap[K, V]) removeFixup(cur, parent uint32) {
	nodes := m.nodes()

	for cur != m.root && m.colorOf(cur) == black {
		curIsLeft := cur == nodes[parent].left
		sibling := nodes[parent].child(!curIsLeft)

		if m.colorOf(sibling) == red {
			nodes[sibling].color = black
			nodes[parent].color = red
			m.rotate(parent, curIsLeft)
			sibling = nodes[parent].child(!curIsLeft)
		}

		// cur's side is one black short, so the other side holds at least one node.
		doAssert(sibling != nilNode)

		near := nodes[sibling].child(curIsLeft)
		far := nodes[sibling].child(!curIsLeft)

		if m.colorOf(near) == black && m.colorOf(far) == black {
			nodes[sibling].color = red
			cur = parent
			parent = nodes[cur].parent

			continue
		}

		if m.colorOf(far) == black {
			nodes[near].color = black
			nodes[sibling].color = red
			m.rotate(sibling, !curIsLeft)
			sibling = nodes[parent].child(!curIsLeft)
			far = nodes[sibling].child(!curIsLeft)
		}

		nodes[sibling].color = nodes[parent].color
		nodes[parent].color = black
		nodes[far].color = black
		m.rotate(parent, curIsLeft)

		cur = m.root
	}

	if cur != nilNode {
		nodes[cur].color = black
	}
}
