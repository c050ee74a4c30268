package rbtree

import "errors"

// ErrKeyNotFound is returned by Get when the key is absent.
var ErrKeyNotFound = errors.New("key not found")

// ErrInvariantViolated is wrapped by every *InvariantError.
var ErrInvariantViolated = errors.New("red-black invariant violated")

// Invariant rules reported by CheckInvariants.
const (
	RuleRootColor   = "root is not black"
	RuleRedRed      = "red node has a red child"
	RuleBlackHeight = "black height differs between paths"
	RuleParentLink  = "parent back-reference does not match owner"
	RuleSize        = "size does not match reachable nodes"
	RuleOrder       = "keys are not strictly ascending"
	RuleHeight      = "longest path exceeds twice the shortest"
)

// InvariantError describes the first broken invariant found by CheckInvariants.
type InvariantError struct {
	Rule   string
	Detail string
}

func (e *InvariantError) Error() string {
	return "rbtree: " + e.Rule + ": " + e.Detail
}

// Unwrap returns ErrInvariantViolated.
func (e *InvariantError) Unwrap() error {
	return ErrInvariantViolated
}
