// Package merkle implements a content-addressed store of binary Merkle trees
//
// Nodes are stored once, keyed by their own digest, and any number of roots
// may share subtrees. Updates and merges create new parent nodes only; the
// untouched siblings are referenced, never copied.
package merkle

import (
	"fmt"
	"iter"
	"math/bits"

	"github.com/vybium/vybium-advice/internal/vybium-advice/core"
	"github.com/vybium/vybium-advice/internal/vybium-advice/kv"
)

// StoreNode holds the two children of an inner node
type StoreNode struct {
	Left  core.Word `json:"left"`
	Right core.Word `json:"right"`
}

// InnerNode is an inner node together with its digest
type InnerNode struct {
	Value core.Word
	Left  core.Word
	Right core.Word
}

// NodeMap is the storage capability behind a Store
type NodeMap = kv.Map[core.Word, StoreNode]

// LessWord orders node digests
func LessWord(a, b core.Word) bool { return a.Less(b) }

// NewNodeMap returns an empty plain node map
func NewNodeMap() *kv.BTreeMap[core.Word, StoreNode] {
	return kv.NewBTreeMap[core.Word, StoreNode](LessWord)
}

// Store is a forest of Merkle trees sharing structure
type Store struct {
	nodes  NodeMap
	hasher Hasher
	empty  [MaxDepth + 1]core.Word
}

// NewStore creates an empty store backed by a plain node map
func NewStore(h Hasher) *Store {
	return NewStoreWith(NewNodeMap(), h)
}

// NewStoreWith creates a store over the given node map. Empty subtree roots
// for every height are inserted so sparse trees resolve without
// materialising empty leaves.
func NewStoreWith(nodes NodeMap, h Hasher) *Store {
	s := &Store{
		nodes:  nodes,
		hasher: h,
		empty:  EmptyRoots(h),
	}
	for height := 1; height <= MaxDepth; height++ {
		child := s.empty[height-1]
		if !nodes.Contains(s.empty[height]) {
			nodes.Insert(s.empty[height], StoreNode{Left: child, Right: child})
		}
	}
	return s
}

// Hasher returns the hash function used for inner nodes
func (s *Store) Hasher() Hasher { return s.hasher }

// Nodes returns the backing node map
func (s *Store) Nodes() NodeMap { return s.nodes }

// Len returns the number of stored inner nodes, empty subtree roots included
func (s *Store) Len() int { return s.nodes.Len() }

// EmptyRoot returns the root of an empty subtree of the given height
func (s *Store) EmptyRoot(height uint8) core.Word {
	return s.empty[height]
}

// HasRoot reports whether root is a known inner node. It does not count as
// a read of the node.
func (s *Store) HasRoot(root core.Word) bool {
	return s.nodes.Contains(root)
}

// GetNode returns the node at index in the tree with the given root
func (s *Store) GetNode(root core.Word, index NodeIndex) (core.Word, error) {
	if _, ok := s.nodes.Get(root); !ok {
		return core.ZeroWord, fmt.Errorf("%w: %s", ErrRootNotInStore, root)
	}

	hash := root
	for level := uint8(0); level < index.Depth(); level++ {
		node, ok := s.nodes.Get(hash)
		if !ok {
			return core.ZeroWord, fmt.Errorf("%w: %s at %s", ErrNodeNotInStore, hash, index)
		}
		if index.BitAt(level) == 1 {
			hash = node.Right
		} else {
			hash = node.Left
		}
	}
	return hash, nil
}

// GetPath returns the node at index and the sibling path from it to the root
func (s *Store) GetPath(root core.Word, index NodeIndex) (ValuePath, error) {
	if _, ok := s.nodes.Get(root); !ok {
		return ValuePath{}, fmt.Errorf("%w: %s", ErrRootNotInStore, root)
	}

	path := make(Path, index.Depth())
	hash := root
	for level := uint8(0); level < index.Depth(); level++ {
		node, ok := s.nodes.Get(hash)
		if !ok {
			return ValuePath{}, fmt.Errorf("%w: %s at %s", ErrNodeNotInStore, hash, index)
		}
		// Siblings are collected root-first and stored leaf-first.
		slot := index.Depth() - level - 1
		if index.BitAt(level) == 1 {
			hash, path[slot] = node.Right, node.Left
		} else {
			hash, path[slot] = node.Left, node.Right
		}
	}
	return ValuePath{Value: hash, Path: path}, nil
}

// GetLeafDepth walks from root towards index and returns the depth of the
// first leaf met. A leaf is either an empty subtree root or a digest with no
// children in the store, so pruned trees report their actual leaf depth.
func (s *Store) GetLeafDepth(root core.Word, treeDepth uint8, index uint64) (uint8, error) {
	if treeDepth > MaxDepth {
		return 0, fmt.Errorf("%w: %d exceeds %d", ErrDepthTooBig, treeDepth, MaxDepth)
	}
	target, err := NewNodeIndex(treeDepth, index)
	if err != nil {
		return 0, err
	}
	if _, ok := s.nodes.Get(root); !ok {
		return 0, fmt.Errorf("%w: %s", ErrRootNotInStore, root)
	}

	// Walk the path bits root-first.
	path := bits.Reverse64(index << (MaxDepth - uint(treeDepth)))

	hash := root
	for depth := uint8(0); depth <= treeDepth; depth++ {
		if hash == s.empty[treeDepth-depth] {
			return depth, nil
		}
		node, ok := s.nodes.Get(hash)
		if !ok {
			return depth, nil
		}
		if depth == treeDepth {
			break
		}
		if path&1 == 0 {
			hash = node.Left
		} else {
			hash = node.Right
		}
		path >>= 1
	}
	return 0, fmt.Errorf("%w: no leaf found within depth %d at %s", ErrDepthTooBig, treeDepth, target)
}

// SetNode replaces the node at index and returns the new root with the path
// observed before the update. The original tree stays addressable by its root.
func (s *Store) SetNode(root core.Word, index NodeIndex, value core.Word) (RootPath, error) {
	opening, err := s.GetPath(root, index)
	if err != nil {
		return RootPath{}, err
	}
	if opening.Value == value {
		return RootPath{Root: root, Path: opening.Path}, nil
	}
	newRoot, err := s.AddMerklePath(index.Value(), value, opening.Path)
	if err != nil {
		return RootPath{}, err
	}
	return RootPath{Root: newRoot, Path: opening.Path}, nil
}

// MergeRoots creates a node whose children are the two existing roots
func (s *Store) MergeRoots(lhs, rhs core.Word) (core.Word, error) {
	for _, root := range [2]core.Word{lhs, rhs} {
		if _, ok := s.nodes.Get(root); !ok {
			return core.ZeroWord, fmt.Errorf("%w: %s", ErrRootNotInStore, root)
		}
	}
	parent := s.hasher.Merge(lhs, rhs)
	s.nodes.Insert(parent, StoreNode{Left: lhs, Right: rhs})
	return parent, nil
}

// AddMerklePath inserts every node on the opening of node at index and
// returns the implied root
func (s *Store) AddMerklePath(index uint64, node core.Word, path Path) (core.Word, error) {
	if len(path) > MaxDepth {
		return core.ZeroWord, fmt.Errorf("%w: %d siblings", ErrDepthTooBig, len(path))
	}
	idx, err := NewNodeIndex(path.Depth(), index)
	if err != nil {
		return core.ZeroWord, err
	}
	for _, sibling := range path {
		left, right := node, sibling
		if idx.IsRightChild() {
			left, right = sibling, node
		}
		node = s.hasher.Merge(left, right)
		s.nodes.Insert(node, StoreNode{Left: left, Right: right})
		idx.MoveUp()
	}
	return node, nil
}

// PathEntry is one opening accepted by AddMerklePaths
type PathEntry struct {
	Index uint64
	Node  core.Word
	Path  Path
}

// AddMerklePaths inserts several openings that must all lead to the same root
func (s *Store) AddMerklePaths(entries []PathEntry) (core.Word, error) {
	var root core.Word
	for i, e := range entries {
		r, err := s.AddMerklePath(e.Index, e.Node, e.Path)
		if err != nil {
			return core.ZeroWord, err
		}
		if i > 0 && r != root {
			return core.ZeroWord, fmt.Errorf("%w: opening %d leads to %s, expected %s", ErrInvalidPath, i, r, root)
		}
		root = r
	}
	return root, nil
}

// AddTree inserts a full binary tree over leaves and returns its root.
// The number of leaves must be a power of two and at least two.
func (s *Store) AddTree(leaves []core.Word) (core.Word, error) {
	n := len(leaves)
	if n < 2 || n&(n-1) != 0 {
		return core.ZeroWord, fmt.Errorf("%w: %d leaves, need a power of two >= 2", ErrInvalidTree, n)
	}
	if bits.Len(uint(n))-1 > MaxDepth {
		return core.ZeroWord, fmt.Errorf("%w: %d leaves", ErrDepthTooBig, n)
	}

	level := append([]core.Word(nil), leaves...)
	for len(level) > 1 {
		next := make([]core.Word, len(level)/2)
		for i := range next {
			left, right := level[2*i], level[2*i+1]
			next[i] = s.hasher.Merge(left, right)
			s.nodes.Insert(next[i], StoreNode{Left: left, Right: right})
		}
		level = next
	}
	return level[0], nil
}

// InnerNodes iterates over every stored inner node
func (s *Store) InnerNodes() iter.Seq[InnerNode] {
	return InnerNodesOf(s.nodes)
}

// InnerNodesOf iterates over the entries of a node map as inner nodes
func InnerNodesOf(nodes NodeMap) iter.Seq[InnerNode] {
	return func(yield func(InnerNode) bool) {
		for value, node := range nodes.All() {
			if !yield(InnerNode{Value: value, Left: node.Left, Right: node.Right}) {
				return
			}
		}
	}
}

// Extend inserts inner nodes, re-hashing each so that no node is stored
// under a digest that does not match its children.
func (s *Store) Extend(nodes iter.Seq[InnerNode]) error {
	for n := range nodes {
		digest := s.hasher.Merge(n.Left, n.Right)
		if digest != n.Value {
			return fmt.Errorf("%w: node %s does not hash to its children", ErrInvalidTree, n.Value)
		}
		s.nodes.Insert(digest, StoreNode{Left: n.Left, Right: n.Right})
	}
	return nil
}

// Clone copies the store into a new plain-backed store with the same hasher
func (s *Store) Clone() *Store {
	nodes := kv.Collect[core.Word, StoreNode](LessWord, s.nodes.All())
	return &Store{nodes: nodes, hasher: s.hasher, empty: s.empty}
}

// IsEmptyRoot reports whether w is the root of an empty subtree of some height
func (s *Store) IsEmptyRoot(w core.Word) bool {
	for _, e := range s.empty {
		if e == w {
			return true
		}
	}
	return false
}
