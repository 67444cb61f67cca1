// Package advice provides the non-deterministic inputs of an execution
//
// A Provider owns the advice stack, the advice map and a Merkle store, and
// is the only thing the executing process asks for data it cannot compute
// itself. MemProvider serves the inputs as given. RecProvider serves them the
// same way and remembers what was read, so that IntoProof can hand back the
// minimal inputs needed to replay the run.
package advice

import (
	"github.com/vybium/vybium-advice/internal/vybium-advice/core"
	"github.com/vybium/vybium-advice/internal/vybium-advice/merkle"
)

// Provider is the advice capability consumed by the process. Every error it
// returns is an *ExecutionError tagged with the current step.
type Provider interface {
	// Step returns the current value of the step clock
	Step() uint32

	// AdvanceClock increments the step clock by one
	AdvanceClock()

	// PopStack removes and returns the top element of the advice stack
	PopStack() (core.Felt, error)

	// PopStackWord removes the top four elements and returns them as a word,
	// the top element becoming the first component
	PopStackWord() (core.Word, error)

	// PopStackDWord pops two words, the first popped word first
	PopStackDWord() ([2]core.Word, error)

	// PushStack pushes a value or the contents of an advice map entry
	PushStack(source AdviceSource) error

	// InsertIntoMap stores values under key, replacing any previous entry
	InsertIntoMap(key core.Word, values []core.Felt)

	// GetTreeNode returns the node at (depth, index) in the tree with the given root
	GetTreeNode(root core.Word, depth, index core.Felt) (core.Word, error)

	// GetMerklePath returns the sibling path of the node at (depth, index)
	GetMerklePath(root core.Word, depth, index core.Felt) (merkle.Path, error)

	// GetLeafDepth returns the depth of the leaf met on the way to index in a
	// tree of the given depth
	GetLeafDepth(root core.Word, treeDepth, index core.Felt) (uint8, error)

	// UpdateMerkleNode replaces the node at (depth, index) and returns the new
	// root together with the path observed before the update
	UpdateMerkleNode(root core.Word, depth, index core.Felt, value core.Word) (merkle.RootPath, error)

	// MergeRoots creates a node whose children are two existing roots
	MergeRoots(lhs, rhs core.Word) (core.Word, error)

	// Hasher returns the hash function of the Merkle store
	Hasher() merkle.Hasher
}

var (
	_ Provider = (*MemProvider)(nil)
	_ Provider = (*RecProvider)(nil)
)
