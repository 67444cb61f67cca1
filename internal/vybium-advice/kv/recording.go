package kv

import "iter"

// RecordingMap wraps a plain map and tracks every entry that was read.
//
// A successful Get copies the pair into the accessed set the first time the
// key is read; later reads of the same key leave the recorded value untouched.
// Inserts only reach the backing map: entries created during execution are
// recorded once something reads them.
type RecordingMap[K, V any] struct {
	inner    Map[K, V]
	accessed *BTreeMap[K, V]
}

// NewRecordingMap wraps inner, recording accesses into a fresh map ordered by less
func NewRecordingMap[K, V any](inner Map[K, V], less LessFunc[K]) *RecordingMap[K, V] {
	return &RecordingMap[K, V]{
		inner:    inner,
		accessed: NewBTreeMap[K, V](less),
	}
}

// CollectRecording builds a RecordingMap over a BTreeMap loaded from pairs
func CollectRecording[K, V any](less LessFunc[K], pairs iter.Seq2[K, V]) *RecordingMap[K, V] {
	return NewRecordingMap[K, V](Collect(less, pairs), less)
}

// Get returns the value under key and records the access
func (m *RecordingMap[K, V]) Get(key K) (V, bool) {
	value, ok := m.inner.Get(key)
	if ok && !m.accessed.Contains(key) {
		m.accessed.Insert(key, value)
	}
	return value, ok
}

// Peek returns the value under key without recording an access
func (m *RecordingMap[K, V]) Peek(key K) (V, bool) {
	return m.inner.Get(key)
}

// Contains reports whether key is present. It does not record an access.
func (m *RecordingMap[K, V]) Contains(key K) bool {
	return m.inner.Contains(key)
}

// Insert updates the backing map only
func (m *RecordingMap[K, V]) Insert(key K, value V) (V, bool) {
	return m.inner.Insert(key, value)
}

// Len returns the number of entries in the backing map
func (m *RecordingMap[K, V]) Len() int {
	return m.inner.Len()
}

// All iterates over the backing map without recording
func (m *RecordingMap[K, V]) All() iter.Seq2[K, V] {
	return m.inner.All()
}

// Accessed returns a snapshot of the entries recorded so far
func (m *RecordingMap[K, V]) Accessed() *BTreeMap[K, V] {
	return m.accessed.Clone()
}

// IntoProof returns the recorded entries. The wrapper must not be used afterwards.
func (m *RecordingMap[K, V]) IntoProof() *BTreeMap[K, V] {
	accessed := m.accessed
	m.inner = nil
	m.accessed = nil
	return accessed
}
