package merkle

import (
	"errors"
	"fmt"

	"github.com/vybium/vybium-advice/internal/vybium-advice/core"
)

// Store errors
var (
	ErrRootNotInStore = errors.New("root not in store")
	ErrNodeNotInStore = errors.New("node not in store")
	ErrInvalidIndex   = errors.New("invalid node index")
	ErrInvalidDepth   = errors.New("invalid tree depth")
	ErrDepthTooBig    = errors.New("tree depth too big")
	ErrInvalidPath    = errors.New("invalid merkle path")
	ErrInvalidTree    = errors.New("invalid merkle tree")
)

// Path is the list of sibling digests from a node up to, but excluding, the root.
// Path[0] is the sibling of the node itself.
type Path []core.Word

// Depth returns the depth of the node the path opens
func (p Path) Depth() uint8 {
	return uint8(len(p))
}

// ComputeRoot hashes node up the path and returns the resulting root
func (p Path) ComputeRoot(h Hasher, index uint64, node core.Word) (core.Word, error) {
	if len(p) > MaxDepth {
		return core.ZeroWord, fmt.Errorf("%w: %d siblings", ErrDepthTooBig, len(p))
	}
	idx, err := NewNodeIndex(p.Depth(), index)
	if err != nil {
		return core.ZeroWord, err
	}
	for _, sibling := range p {
		if idx.IsRightChild() {
			node = h.Merge(sibling, node)
		} else {
			node = h.Merge(node, sibling)
		}
		idx.MoveUp()
	}
	return node, nil
}

// Verify reports whether node at index opens to root along the path
func (p Path) Verify(h Hasher, index uint64, node, root core.Word) bool {
	computed, err := p.ComputeRoot(h, index, node)
	return err == nil && computed == root
}

// ValuePath is a node value together with its opening path
type ValuePath struct {
	Value core.Word
	Path  Path
}

// RootPath is the result of a node update: the new root and the path
// observed before the update
type RootPath struct {
	Root core.Word
	Path Path
}
