package vybiumadvice

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/vybium/vybium-advice/internal/vybium-advice/advice"
	"github.com/vybium/vybium-advice/internal/vybium-advice/core"
	"github.com/vybium/vybium-advice/internal/vybium-advice/merkle"
	"github.com/vybium/vybium-advice/internal/vybium-advice/utils"
	"github.com/vybium/vybium-advice/internal/vybium-advice/vm"
)

// Advice error sentinels for errors.Is
var (
	ErrAdviceStackReadFailed   = advice.ErrAdviceStackReadFailed
	ErrAdviceKeyNotFound       = advice.ErrAdviceKeyNotFound
	ErrInvalidTreeNodeIndex    = advice.ErrInvalidTreeNodeIndex
	ErrInvalidTreeDepth        = advice.ErrInvalidTreeDepth
	ErrMerkleStoreLookupFailed = advice.ErrMerkleStoreLookupFailed
	ErrMerkleStoreUpdateFailed = advice.ErrMerkleStoreUpdateFailed
	ErrMerkleStoreMergeFailed  = advice.ErrMerkleStoreMergeFailed
)

// Option configures Record and Replay
type Option func(*runOptions)

type runOptions struct {
	logger *zap.Logger
	stack  []Felt
}

// WithLogger sets the logger passed to the provider and the process
func WithLogger(logger *zap.Logger) Option {
	return func(o *runOptions) { o.logger = logger }
}

// WithOperandStack sets the initial operand stack, top element first
func WithOperandStack(values ...Felt) Option {
	return func(o *runOptions) { o.stack = values }
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return utils.DefaultConfig()
}

// NewInputs creates empty advice inputs using the Tip5 hasher
func NewInputs() *AdviceInputs {
	return advice.NewAdviceInputs()
}

// NewInputsFromConfig creates empty advice inputs using the configured hasher
func NewInputsFromConfig(config *Config) (*AdviceInputs, error) {
	h, err := hasherFor(config)
	if err != nil {
		return nil, err
	}
	return advice.NewAdviceInputsWithHasher(h), nil
}

// NewMerkleStore creates an empty Merkle store using the configured hasher
func NewMerkleStore(config *Config) (*MerkleStore, error) {
	h, err := hasherFor(config)
	if err != nil {
		return nil, err
	}
	return merkle.NewStore(h), nil
}

// NewWord creates a word from four integers
func NewWord(a, b, c, d uint64) Word {
	return core.WordFromUint64s(a, b, c, d)
}

// NewFelts converts integers into field elements
func NewFelts(values ...uint64) []Felt {
	return core.FeltsFromUint64s(values...)
}

// NewMemProvider creates a provider serving inputs
func NewMemProvider(inputs *AdviceInputs, logger *zap.Logger) *MemProvider {
	return advice.NewMemProvider(inputs, advice.WithLogger(logger))
}

// NewRecProvider creates a provider serving inputs and recording every read
func NewRecProvider(inputs *AdviceInputs, logger *zap.Logger) *RecProvider {
	return advice.NewRecProvider(inputs, advice.WithLogger(logger))
}

// Execute runs an assembly program against provider. mtree_verify hashes
// with the provider's store hasher; the configured hash function only
// applies to stores created by NewMerkleStore and NewInputsFromConfig.
func Execute(config *Config, provider Provider, source string, opts ...Option) (*ExecutionResult, error) {
	if err := config.Validate(); err != nil {
		return nil, &VMError{Code: ErrInvalidConfig, Message: "invalid configuration", Cause: err}
	}
	program, err := vm.ParseProgram(source)
	if err == nil {
		err = vm.ValidateProgram(program)
	}
	if err != nil {
		return nil, &VMError{Code: ErrInvalidInput, Message: "invalid program", Cause: err}
	}

	o := runOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	process := vm.NewProcess(program, provider,
		vm.WithMaxCycles(config.MaxCycles),
		vm.WithLogger(o.logger),
		vm.WithStack(o.stack...))
	if err := process.Run(); err != nil {
		return nil, &VMError{Code: ErrExecution, Message: "execution failed", Cause: err}
	}
	return &ExecutionResult{Stack: process.Stack(), Cycles: process.Cycles()}, nil
}

// Record runs source against a recording provider and returns the result
// together with the minimal inputs needed to replay it
func Record(config *Config, inputs *AdviceInputs, source string, opts ...Option) (*ExecutionResult, error) {
	o := runOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	provider := advice.NewRecProvider(inputs, advice.WithLogger(o.logger))
	result, err := Execute(config, provider, source, opts...)
	if err != nil {
		return nil, err
	}
	result.Proof = provider.IntoProof()
	return result, nil
}

// Replay runs source against a plain provider built from inputs
func Replay(config *Config, inputs *AdviceInputs, source string, opts ...Option) (*ExecutionResult, error) {
	o := runOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return Execute(config, advice.NewMemProvider(inputs, advice.WithLogger(o.logger)), source, opts...)
}

// EncodeInputs serializes advice inputs to JSON
func EncodeInputs(inputs *AdviceInputs) ([]byte, error) {
	data, err := json.Marshal(inputs)
	if err != nil {
		return nil, &VMError{Code: ErrSerialization, Message: "failed to encode advice inputs", Cause: err}
	}
	return data, nil
}

// DecodeInputs parses advice inputs produced by EncodeInputs. Every Merkle
// node is re-hashed on load.
func DecodeInputs(data []byte) (*AdviceInputs, error) {
	inputs := advice.NewAdviceInputs()
	if err := json.Unmarshal(data, inputs); err != nil {
		return nil, &VMError{Code: ErrSerialization, Message: "failed to decode advice inputs", Cause: err}
	}
	return inputs, nil
}

func hasherFor(config *Config) (merkle.Hasher, error) {
	h, err := config.Hasher()
	if err != nil {
		return nil, &VMError{Code: ErrInvalidConfig, Message: "unknown hash function", Cause: err}
	}
	return h, nil
}
