// Package kv provides the key-value storage capability used by the advice map and the Merkle store
package kv

import (
	"iter"

	"github.com/google/btree"
)

// Map is a generic key-value capability.
//
// Implementations are swapped at construction time (plain vs. recording);
// the algorithms built on top of a Map never branch on the concrete type.
type Map[K, V any] interface {
	// Get returns the value stored under key
	Get(key K) (V, bool)

	// Contains reports whether key is present without recording an access
	Contains(key K) bool

	// Insert stores value under key, returning the previous value if any
	Insert(key K, value V) (V, bool)

	// Len returns the number of entries
	Len() int

	// All iterates over entries in key order
	All() iter.Seq2[K, V]
}

// LessFunc orders map keys
type LessFunc[K any] func(a, b K) bool

const btreeDegree = 32

type entry[K, V any] struct {
	key   K
	value V
}

// BTreeMap is the plain Map implementation, backed by an ordered B-tree
type BTreeMap[K, V any] struct {
	tree *btree.BTreeG[entry[K, V]]
}

// NewBTreeMap creates an empty map ordered by less
func NewBTreeMap[K, V any](less LessFunc[K]) *BTreeMap[K, V] {
	return &BTreeMap[K, V]{
		tree: btree.NewG(btreeDegree, func(a, b entry[K, V]) bool {
			return less(a.key, b.key)
		}),
	}
}

// Collect builds a BTreeMap from a sequence of pairs. Later pairs overwrite earlier ones.
func Collect[K, V any](less LessFunc[K], pairs iter.Seq2[K, V]) *BTreeMap[K, V] {
	m := NewBTreeMap[K, V](less)
	if pairs == nil {
		return m
	}
	for k, v := range pairs {
		m.Insert(k, v)
	}
	return m
}

// Get returns the value stored under key
func (m *BTreeMap[K, V]) Get(key K) (V, bool) {
	e, ok := m.tree.Get(entry[K, V]{key: key})
	return e.value, ok
}

// Contains reports whether key is present
func (m *BTreeMap[K, V]) Contains(key K) bool {
	return m.tree.Has(entry[K, V]{key: key})
}

// Insert stores value under key; the last write wins
func (m *BTreeMap[K, V]) Insert(key K, value V) (V, bool) {
	prev, ok := m.tree.ReplaceOrInsert(entry[K, V]{key: key, value: value})
	return prev.value, ok
}

// Len returns the number of entries
func (m *BTreeMap[K, V]) Len() int {
	return m.tree.Len()
}

// All iterates over entries in ascending key order
func (m *BTreeMap[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		m.tree.Ascend(func(e entry[K, V]) bool {
			return yield(e.key, e.value)
		})
	}
}

// Clone returns a copy of the map. Values are shared, not deep-copied.
func (m *BTreeMap[K, V]) Clone() *BTreeMap[K, V] {
	return &BTreeMap[K, V]{tree: m.tree.Clone()}
}
