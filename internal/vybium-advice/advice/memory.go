package advice

import (
	"iter"

	"github.com/vybium/vybium-advice/internal/vybium-advice/core"
	"github.com/vybium/vybium-advice/internal/vybium-advice/kv"
	"github.com/vybium/vybium-advice/internal/vybium-advice/merkle"
)

type (
	plainMap   = *kv.BTreeMap[MapKey, []core.Felt]
	plainNodes = *kv.BTreeMap[core.Word, merkle.StoreNode]
)

// MemProvider serves advice from in-memory inputs
type MemProvider struct {
	*BaseProvider[plainMap, plainNodes]
}

// NewMemProvider loads inputs into a provider. The inputs are copied and
// are not modified by execution.
func NewMemProvider(inputs *AdviceInputs, opts ...Option) *MemProvider {
	store := inputs.MerkleStore()
	nodes := kv.Collect(merkle.LessWord, store.Nodes().All())
	return &MemProvider{
		BaseProvider: NewBaseProvider(inputs.Stack(), collectMap(inputs), nodes, store.Hasher(), opts...),
	}
}

// Stack returns a copy of the advice stack, top element first
func (p *MemProvider) Stack() []core.Felt {
	return topFirst(p.stack)
}

// MapEntry returns the values stored under key
func (p *MemProvider) MapEntry(key core.Word) ([]core.Felt, bool) {
	values, ok := p.adviceMap.Get(key.Bytes())
	if !ok {
		return nil, false
	}
	return append([]core.Felt(nil), values...), true
}

// Map iterates over the advice map in key order
func (p *MemProvider) Map() iter.Seq2[MapKey, []core.Felt] {
	return p.adviceMap.All()
}

// Store returns the Merkle store
func (p *MemProvider) Store() *merkle.Store {
	return p.store
}

// HasMerkleRoot reports whether root is a known node of the store
func (p *MemProvider) HasMerkleRoot(root core.Word) bool {
	return p.store.HasRoot(root)
}
