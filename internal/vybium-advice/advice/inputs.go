package advice

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vybium/vybium-advice/internal/vybium-advice/core"
	"github.com/vybium/vybium-advice/internal/vybium-advice/kv"
	"github.com/vybium/vybium-advice/internal/vybium-advice/merkle"
)

// MapKey is the canonical encoding of a Word used as an advice map key
type MapKey = [core.WordBytes]byte

// MapValues is the backing capability of the advice map
type MapValues = kv.Map[MapKey, []core.Felt]

// LessKey orders advice map keys bytewise
func LessKey(a, b MapKey) bool {
	return bytes.Compare(a[:], b[:]) < 0
}

// AdviceInputs bundles the non-deterministic inputs of an execution: the
// initial advice stack (top first), the advice map and the Merkle store.
// A recording provider produces one of these as its replay bundle.
type AdviceInputs struct {
	stack     []core.Felt
	adviceMap *kv.BTreeMap[MapKey, []core.Felt]
	store     *merkle.Store
}

// NewAdviceInputs creates empty inputs whose store uses the Tip5 hasher
func NewAdviceInputs() *AdviceInputs {
	return NewAdviceInputsWithHasher(merkle.Tip5Hasher{})
}

// NewAdviceInputsWithHasher creates empty inputs whose store uses h
func NewAdviceInputsWithHasher(h merkle.Hasher) *AdviceInputs {
	return &AdviceInputs{
		adviceMap: kv.NewBTreeMap[MapKey, []core.Felt](LessKey),
		store:     merkle.NewStore(h),
	}
}

// WithStack appends values to the initial stack. Values are given top first.
func (a *AdviceInputs) WithStack(values ...core.Felt) *AdviceInputs {
	a.stack = append(a.stack, values...)
	return a
}

// WithStackValues appends integer values to the initial stack, top first
func (a *AdviceInputs) WithStackValues(values ...uint64) *AdviceInputs {
	return a.WithStack(core.FeltsFromUint64s(values...)...)
}

// WithMapEntry stores values under key, replacing any previous entry
func (a *AdviceInputs) WithMapEntry(key core.Word, values []core.Felt) *AdviceInputs {
	a.adviceMap.Insert(key.Bytes(), append([]core.Felt(nil), values...))
	return a
}

// WithMap merges entries into the advice map
func (a *AdviceInputs) WithMap(entries map[core.Word][]core.Felt) *AdviceInputs {
	for k, v := range entries {
		a.WithMapEntry(k, v)
	}
	return a
}

// WithMerkleStore replaces the Merkle store
func (a *AdviceInputs) WithMerkleStore(store *merkle.Store) *AdviceInputs {
	a.store = store
	return a
}

// Extend appends the other stack and merges its map and store into a.
// Map entries of other win over existing ones.
func (a *AdviceInputs) Extend(other *AdviceInputs) error {
	if other.store.Hasher().Name() != a.store.Hasher().Name() {
		return fmt.Errorf("cannot merge %s store into %s store", other.store.Hasher().Name(), a.store.Hasher().Name())
	}
	if err := a.store.Extend(other.store.InnerNodes()); err != nil {
		return err
	}
	a.stack = append(a.stack, other.stack...)
	for k, v := range other.adviceMap.All() {
		a.adviceMap.Insert(k, v)
	}
	return nil
}

// Stack returns a copy of the initial stack, top first
func (a *AdviceInputs) Stack() []core.Felt {
	return append([]core.Felt(nil), a.stack...)
}

// Map returns the advice map
func (a *AdviceInputs) Map() *kv.BTreeMap[MapKey, []core.Felt] {
	return a.adviceMap
}

// MapEntry returns the values stored under key
func (a *AdviceInputs) MapEntry(key core.Word) ([]core.Felt, bool) {
	return a.adviceMap.Get(key.Bytes())
}

// MerkleStore returns the Merkle store
func (a *AdviceInputs) MerkleStore() *merkle.Store {
	return a.store
}

type mapEntryJSON struct {
	Key    string   `json:"key"`
	Values []uint64 `json:"values"`
}

type innerNodeJSON struct {
	Left  core.Word `json:"left"`
	Right core.Word `json:"right"`
}

type adviceInputsJSON struct {
	Hash  string          `json:"hash"`
	Stack []uint64        `json:"stack"`
	Map   []mapEntryJSON  `json:"map"`
	Nodes []innerNodeJSON `json:"nodes"`
}

// MarshalJSON encodes the inputs. Empty subtree roots are implied by the
// hash function and are left out.
func (a *AdviceInputs) MarshalJSON() ([]byte, error) {
	out := adviceInputsJSON{
		Hash:  a.store.Hasher().Name(),
		Stack: core.FeltsToUint64s(a.stack),
		Map:   make([]mapEntryJSON, 0, a.adviceMap.Len()),
		Nodes: make([]innerNodeJSON, 0),
	}
	for k, v := range a.adviceMap.All() {
		w, err := core.WordFromBytes(k)
		if err != nil {
			return nil, err
		}
		out.Map = append(out.Map, mapEntryJSON{Key: w.Hex(), Values: core.FeltsToUint64s(v)})
	}
	for n := range a.store.InnerNodes() {
		if a.store.IsEmptyRoot(n.Value) {
			continue
		}
		out.Nodes = append(out.Nodes, innerNodeJSON{Left: n.Left, Right: n.Right})
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes inputs, re-hashing every node
func (a *AdviceInputs) UnmarshalJSON(data []byte) error {
	var in adviceInputsJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	h, err := merkle.HasherByName(in.Hash)
	if err != nil {
		return err
	}

	stack, err := core.CanonicalFelts(in.Stack)
	if err != nil {
		return fmt.Errorf("advice stack: %w", err)
	}
	decoded := NewAdviceInputsWithHasher(h).WithStack(stack...)
	for _, e := range in.Map {
		key, err := core.WordFromHex(e.Key)
		if err != nil {
			return fmt.Errorf("advice map key %q: %w", e.Key, err)
		}
		values, err := core.CanonicalFelts(e.Values)
		if err != nil {
			return fmt.Errorf("advice map values for %q: %w", e.Key, err)
		}
		decoded.WithMapEntry(key, values)
	}

	nodes := func(yield func(merkle.InnerNode) bool) {
		for _, n := range in.Nodes {
			if !yield(merkle.InnerNode{Value: h.Merge(n.Left, n.Right), Left: n.Left, Right: n.Right}) {
				return
			}
		}
	}
	if err := decoded.store.Extend(nodes); err != nil {
		return err
	}

	*a = *decoded
	return nil
}
