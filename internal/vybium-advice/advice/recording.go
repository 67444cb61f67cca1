package advice

import (
	"iter"

	"go.uber.org/zap"

	"github.com/vybium/vybium-advice/internal/vybium-advice/core"
	"github.com/vybium/vybium-advice/internal/vybium-advice/kv"
	"github.com/vybium/vybium-advice/internal/vybium-advice/merkle"
)

type (
	recordingMap   = *kv.RecordingMap[MapKey, []core.Felt]
	recordingNodes = *kv.RecordingMap[core.Word, merkle.StoreNode]
)

// RecProvider serves advice like MemProvider and records every map entry
// and store node it reads
type RecProvider struct {
	*BaseProvider[recordingMap, recordingNodes]
	initStack []core.Felt
}

// NewRecProvider loads inputs into a recording provider
func NewRecProvider(inputs *AdviceInputs, opts ...Option) *RecProvider {
	store := inputs.MerkleStore()
	adviceMap := kv.CollectRecording(LessKey, inputs.Map().All())
	nodes := kv.CollectRecording(merkle.LessWord, store.Nodes().All())
	return &RecProvider{
		BaseProvider: NewBaseProvider(inputs.Stack(), adviceMap, nodes, store.Hasher(), opts...),
		initStack:    inputs.Stack(),
	}
}

// Stack returns a copy of the live advice stack, top element first
func (p *RecProvider) Stack() []core.Felt {
	return topFirst(p.stack)
}

// MapEntry returns the values stored under key. The lookup is not recorded.
func (p *RecProvider) MapEntry(key core.Word) ([]core.Felt, bool) {
	values, ok := p.adviceMap.Peek(key.Bytes())
	if !ok {
		return nil, false
	}
	return append([]core.Felt(nil), values...), true
}

// Map iterates over the advice map in key order without recording
func (p *RecProvider) Map() iter.Seq2[MapKey, []core.Felt] {
	return p.adviceMap.All()
}

// Store returns the Merkle store. Node lookups made through it are recorded.
func (p *RecProvider) Store() *merkle.Store {
	return p.store
}

// HasMerkleRoot reports whether root is a known node of the store. The
// check is not recorded.
func (p *RecProvider) HasMerkleRoot(root core.Word) bool {
	return p.store.HasRoot(root)
}

// IntoProof returns the inputs needed to replay the recorded execution: the
// initial stack and the map entries and store nodes that were read. Inserted
// map entries and nodes created by updates are not included unless they were
// read back. The provider must not be used afterwards.
func (p *RecProvider) IntoProof() *AdviceInputs {
	hasher := p.store.Hasher()
	adviceMap := p.adviceMap.IntoProof()
	nodes := p.nodes.IntoProof()

	p.logger.Debug("advice proof extracted",
		zap.Uint32("steps", p.step),
		zap.Int("stack", len(p.initStack)),
		zap.Int("map_entries", adviceMap.Len()),
		zap.Int("store_nodes", nodes.Len()))

	inputs := &AdviceInputs{
		stack:     p.initStack,
		adviceMap: adviceMap,
		store:     merkle.NewStoreWith(nodes, hasher),
	}
	p.BaseProvider = nil
	p.initStack = nil
	return inputs
}
