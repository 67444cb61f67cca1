package advice

import (
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
	"go.uber.org/zap"

	"github.com/vybium/vybium-advice/internal/vybium-advice/core"
	"github.com/vybium/vybium-advice/internal/vybium-advice/kv"
	"github.com/vybium/vybium-advice/internal/vybium-advice/merkle"
)

// Option configures a provider
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger sets the logger used for provider events
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// BaseProvider implements Provider over any map backend M and node backend S.
// The memory and recording providers differ only in the backends they pick.
type BaseProvider[M MapValues, S merkle.NodeMap] struct {
	step      uint32
	stack     []core.Felt
	adviceMap M
	nodes     S
	store     *merkle.Store
	logger    *zap.Logger
}

// NewBaseProvider assembles a provider from inputs. The stack is copied and
// reversed on load; adviceMap and nodes must already hold the bulk-loaded
// map and store contents.
func NewBaseProvider[M MapValues, S merkle.NodeMap](stack []core.Felt, adviceMap M, nodes S, hasher merkle.Hasher, opts ...Option) *BaseProvider[M, S] {
	o := buildOptions(opts)
	b := &BaseProvider[M, S]{
		stack:     loadStack(stack),
		adviceMap: adviceMap,
		nodes:     nodes,
		store:     merkle.NewStoreWith(nodes, hasher),
		logger:    o.logger,
	}
	b.logger.Debug("advice provider created",
		zap.Int("stack", len(b.stack)),
		zap.Int("map_entries", adviceMap.Len()),
		zap.Int("store_nodes", nodes.Len()),
		zap.String("hash", hasher.Name()))
	return b
}

// Step returns the current value of the step clock
func (b *BaseProvider[M, S]) Step() uint32 {
	return b.step
}

// AdvanceClock increments the step clock by one
func (b *BaseProvider[M, S]) AdvanceClock() {
	b.step++
}

func (b *BaseProvider[M, S]) fail(err *ExecutionError) error {
	err.Step = b.step
	b.logger.Debug("advice operation failed",
		zap.Stringer("code", err.Code),
		zap.Uint32("step", b.step),
		zap.Error(err.Cause))
	return err
}

// PopStack removes and returns the top element of the advice stack
func (b *BaseProvider[M, S]) PopStack() (core.Felt, error) {
	n := len(b.stack)
	if n == 0 {
		return field.Zero, b.fail(&ExecutionError{Code: AdviceStackReadFailed})
	}
	v := b.stack[n-1]
	b.stack = b.stack[:n-1]
	return v, nil
}

// PopStackWord removes the top four elements and returns them as a word
func (b *BaseProvider[M, S]) PopStackWord() (core.Word, error) {
	n := len(b.stack)
	if n < core.WordSize {
		return core.ZeroWord, b.fail(&ExecutionError{Code: AdviceStackReadFailed})
	}
	w := wordFromTop(b.stack)
	b.stack = b.stack[:n-core.WordSize]
	return w, nil
}

// PopStackDWord pops two words. The stack is left untouched on failure.
func (b *BaseProvider[M, S]) PopStackDWord() ([2]core.Word, error) {
	if len(b.stack) < 2*core.WordSize {
		return [2]core.Word{}, b.fail(&ExecutionError{Code: AdviceStackReadFailed})
	}
	first, _ := b.PopStackWord()
	second, _ := b.PopStackWord()
	return [2]core.Word{first, second}, nil
}

// PushStack pushes a value or the contents of an advice map entry
func (b *BaseProvider[M, S]) PushStack(source AdviceSource) error {
	switch src := source.(type) {
	case ValueSource:
		b.stack = append(b.stack, src.Value)
	case MapSource:
		values, ok := b.adviceMap.Get(src.Key.Bytes())
		if !ok {
			return b.fail(&ExecutionError{Code: AdviceKeyNotFound, Key: src.Key})
		}
		b.stack = appendReversed(b.stack, values)
		if src.IncludeLen {
			b.stack = append(b.stack, field.New(uint64(len(values))))
		}
	}
	return nil
}

// InsertIntoMap stores a copy of values under key
func (b *BaseProvider[M, S]) InsertIntoMap(key core.Word, values []core.Felt) {
	b.adviceMap.Insert(key.Bytes(), append([]core.Felt(nil), values...))
}

func (b *BaseProvider[M, S]) nodeIndex(depth, index core.Felt) (merkle.NodeIndex, error) {
	idx, err := merkle.NodeIndexFromElements(depth, index)
	if err != nil {
		return merkle.NodeIndex{}, b.fail(&ExecutionError{Code: InvalidTreeNodeIndex, Depth: depth, Value: index, Cause: err})
	}
	return idx, nil
}

// GetTreeNode returns the node at (depth, index) in the tree with the given root
func (b *BaseProvider[M, S]) GetTreeNode(root core.Word, depth, index core.Felt) (core.Word, error) {
	idx, err := b.nodeIndex(depth, index)
	if err != nil {
		return core.ZeroWord, err
	}
	node, err := b.store.GetNode(root, idx)
	if err != nil {
		return core.ZeroWord, b.fail(&ExecutionError{Code: MerkleStoreLookupFailed, Cause: err})
	}
	return node, nil
}

// GetMerklePath returns the sibling path of the node at (depth, index)
func (b *BaseProvider[M, S]) GetMerklePath(root core.Word, depth, index core.Felt) (merkle.Path, error) {
	idx, err := b.nodeIndex(depth, index)
	if err != nil {
		return nil, err
	}
	opening, err := b.store.GetPath(root, idx)
	if err != nil {
		return nil, b.fail(&ExecutionError{Code: MerkleStoreLookupFailed, Cause: err})
	}
	return opening.Path, nil
}

// GetLeafDepth returns the depth of the first leaf on the way to index
func (b *BaseProvider[M, S]) GetLeafDepth(root core.Word, treeDepth, index core.Felt) (uint8, error) {
	if treeDepth.Value() > 0xff {
		return 0, b.fail(&ExecutionError{Code: InvalidTreeDepth, Depth: treeDepth})
	}
	depth, err := b.store.GetLeafDepth(root, uint8(treeDepth.Value()), index.Value())
	if err != nil {
		return 0, b.fail(&ExecutionError{Code: MerkleStoreLookupFailed, Cause: err})
	}
	return depth, nil
}

// UpdateMerkleNode replaces the node at (depth, index). The tree under the
// old root stays addressable.
func (b *BaseProvider[M, S]) UpdateMerkleNode(root core.Word, depth, index core.Felt, value core.Word) (merkle.RootPath, error) {
	idx, err := b.nodeIndex(depth, index)
	if err != nil {
		return merkle.RootPath{}, err
	}
	updated, err := b.store.SetNode(root, idx, value)
	if err != nil {
		return merkle.RootPath{}, b.fail(&ExecutionError{Code: MerkleStoreUpdateFailed, Cause: err})
	}
	return updated, nil
}

// MergeRoots creates a node whose children are two existing roots
func (b *BaseProvider[M, S]) MergeRoots(lhs, rhs core.Word) (core.Word, error) {
	root, err := b.store.MergeRoots(lhs, rhs)
	if err != nil {
		return core.ZeroWord, b.fail(&ExecutionError{Code: MerkleStoreMergeFailed, Cause: err})
	}
	return root, nil
}

// Hasher returns the hash function of the Merkle store
func (b *BaseProvider[M, S]) Hasher() merkle.Hasher {
	return b.store.Hasher()
}

func collectMap(inputs *AdviceInputs) *kv.BTreeMap[MapKey, []core.Felt] {
	return kv.Collect(LessKey, inputs.Map().All())
}
