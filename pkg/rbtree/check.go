package rbtree

import "fmt"

type checkFrame struct {
	idx    uint32
	parent uint32

	// Exclusive key bounds inherited from ancestors, nilNode when unbounded.
	low, high uint32

	blacks int
	depth  int
}

// CheckInvariants walks the whole tree and returns an *InvariantError for
// the first broken red-black property, or nil. It verifies that the root is
// black, that no red node has a red child, that every root-to-nil path has
// the same black count, that parent back-references match their owners,
// that keys ascend strictly in order, that Len matches the reachable nodes
// and that no path is more than twice as long as another.
//
// The walk uses an explicit stack, so degenerate trees cannot exhaust the
// goroutine stack. It costs O(n).
func (m *OrderedMap[K, V]) CheckInvariants() error {
	if m.root == nilNode {
		if m.count != 0 {
			return violation(RuleSize, "empty tree reports %d entries", m.count)
		}

		return nil
	}

	nodes := m.nodes()

	if nodes[m.root].color != black {
		return violation(RuleRootColor, "root key %v", nodes[m.root].key)
	}

	pathBlacks := -1
	minPath, maxPath := 0, 0
	counted := 0
	stack := []checkFrame{{idx: m.root}}

	for len(stack) > 0 {
		frame := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if frame.idx == nilNode {
			switch {
			case pathBlacks < 0:
				pathBlacks = frame.blacks
				minPath, maxPath = frame.depth, frame.depth
			case pathBlacks != frame.blacks:
				return violation(RuleBlackHeight, "%d black nodes on one path, %d on another", pathBlacks, frame.blacks)
			default:
				minPath = min(minPath, frame.depth)
				maxPath = max(maxPath, frame.depth)
			}

			continue
		}

		counted++
		if counted > m.count {
			return violation(RuleSize, "more than %d nodes reachable from the root", m.count)
		}

		nd := &nodes[frame.idx]

		if nd.parent != frame.parent {
			return violation(RuleParentLink, "key %v points at slot %d but is owned by slot %d",
				nd.key, nd.parent, frame.parent)
		}

		if frame.low != nilNode && m.compare(nodes[frame.low].key, nd.key) >= 0 {
			return violation(RuleOrder, "key %v is not greater than %v", nd.key, nodes[frame.low].key)
		}

		if frame.high != nilNode && m.compare(nd.key, nodes[frame.high].key) >= 0 {
			return violation(RuleOrder, "key %v is not less than %v", nd.key, nodes[frame.high].key)
		}

		blacks := frame.blacks

		if nd.color == black {
			blacks++
		} else if m.colorOf(nd.left) == red || m.colorOf(nd.right) == red {
			return violation(RuleRedRed, "key %v", nd.key)
		}

		stack = append(stack,
			checkFrame{idx: nd.left, parent: frame.idx, low: frame.low, high: frame.idx, blacks: blacks, depth: frame.depth + 1},
			checkFrame{idx: nd.right, parent: frame.idx, low: frame.idx, high: frame.high, blacks: blacks, depth: frame.depth + 1},
		)
	}

	if counted != m.count {
		return violation(RuleSize, "%d nodes reachable, %d entries reported", counted, m.count)
	}

	if used := m.alloc.used(); used != m.count {
		return violation(RuleSize, "%d live slots, %d entries reported", used, m.count)
	}

	if minPath*2 < maxPath {
		return violation(RuleHeight, "shortest path %d, longest path %d", minPath, maxPath)
	}

	return nil
}

// Height returns the number of nodes on the longest root-to-leaf path.
// A valid tree with n entries has Height() <= 2*log2(n+1).
func (m *OrderedMap[K, V]) Height() int {
	type frame struct {
		idx   uint32
		depth int
	}

	nodes := m.nodes()
	height := 0
	stack := []frame{{idx: m.root}}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if top.idx == nilNode {
			height = max(height, top.depth)

			continue
		}

		stack = append(stack,
			frame{idx: nodes[top.idx].left, depth: top.depth + 1},
			frame{idx: nodes[top.idx].right, depth: top.depth + 1},
		)
	}

	return height
}

func violation(rule, format string, args ...any) error {
	return &InvariantError{Rule: rule, Detail: fmt.Sprintf(format, args...)}
}
