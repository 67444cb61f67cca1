package merkle

import (
	"fmt"

	"github.com/vybium/vybium-advice/internal/vybium-advice/core"
)

// MaxDepth is the deepest tree the store supports. Positions are 64-bit.
const MaxDepth = 64

// NodeIndex addresses a node of a binary Merkle tree by depth and position.
// Depth 0 is the root; positions at depth d range over [0, 2^d).
type NodeIndex struct {
	depth uint8
	value uint64
}

// NewNodeIndex validates and creates a node index
func NewNodeIndex(depth uint8, value uint64) (NodeIndex, error) {
	if depth > MaxDepth {
		return NodeIndex{}, fmt.Errorf("%w: %d exceeds %d", ErrDepthTooBig, depth, MaxDepth)
	}
	if depth < MaxDepth && value>>depth != 0 {
		return NodeIndex{}, fmt.Errorf("%w: position %d at depth %d", ErrInvalidIndex, value, depth)
	}
	return NodeIndex{depth: depth, value: value}, nil
}

// NodeIndexFromElements converts a (depth, position) pair of field elements
func NodeIndexFromElements(depth, value core.Felt) (NodeIndex, error) {
	d := depth.Value()
	if d > 0xff {
		return NodeIndex{}, fmt.Errorf("%w: %d does not fit a byte", ErrInvalidDepth, d)
	}
	return NewNodeIndex(uint8(d), value.Value())
}

// RootIndex returns the index of a tree root
func RootIndex() NodeIndex {
	return NodeIndex{}
}

// Depth returns the depth of the node
func (i NodeIndex) Depth() uint8 { return i.depth }

// Value returns the position of the node at its depth
func (i NodeIndex) Value() uint64 { return i.value }

// IsRoot reports whether the index addresses the root
func (i NodeIndex) IsRoot() bool { return i.depth == 0 }

// IsRightChild reports whether the node is the right child of its parent
func (i NodeIndex) IsRightChild() bool { return i.value&1 == 1 }

// Sibling returns the index of the node sharing the same parent
func (i NodeIndex) Sibling() NodeIndex {
	return NodeIndex{depth: i.depth, value: i.value ^ 1}
}

// MoveUp moves the index to its parent. Moving up from the root is a no-op.
func (i *NodeIndex) MoveUp() {
	if i.depth == 0 {
		return
	}
	i.depth--
	i.value >>= 1
}

// Child returns the left or right child index
func (i NodeIndex) Child(right bool) (NodeIndex, error) {
	value := i.value << 1
	if right {
		value |= 1
	}
	return NewNodeIndex(i.depth+1, value)
}

// BitAt returns the branch taken at the given level below the root when
// walking towards this node: 0 for left, 1 for right.
func (i NodeIndex) BitAt(level uint8) uint64 {
	return (i.value >> (i.depth - level - 1)) & 1
}

// String returns a readable representation of the index
func (i NodeIndex) String() string {
	return fmt.Sprintf("(depth=%d, value=%d)", i.depth, i.value)
}
