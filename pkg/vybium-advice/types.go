package vybiumadvice

import (
	"github.com/vybium/vybium-advice/internal/vybium-advice/advice"
	"github.com/vybium/vybium-advice/internal/vybium-advice/core"
	"github.com/vybium/vybium-advice/internal/vybium-advice/merkle"
	"github.com/vybium/vybium-advice/internal/vybium-advice/utils"
)

// Felt is an element of the Goldilocks field
type Felt = core.Felt

// Word is a tuple of four field elements
type Word = core.Word

// AdviceInputs holds the initial stack, advice map and Merkle store
type AdviceInputs = advice.AdviceInputs

// Provider is the advice capability consumed by an execution
type Provider = advice.Provider

// MemProvider serves advice from in-memory inputs
type MemProvider = advice.MemProvider

// RecProvider serves advice and records what was read
type RecProvider = advice.RecProvider

// AdviceSource selects what PushStack pushes
type AdviceSource = advice.AdviceSource

// ValueSource pushes a single element
type ValueSource = advice.ValueSource

// MapSource pushes the values of an advice map entry
type MapSource = advice.MapSource

// ExecutionError is a provider failure tagged with its step
type ExecutionError = advice.ExecutionError

// MerkleStore is a forest of Merkle trees sharing structure
type MerkleStore = merkle.Store

// MerklePath is a sibling path, leaf first
type MerklePath = merkle.Path

// Config represents the recorder configuration
type Config = utils.Config

// ExecutionResult is the outcome of running a program against a provider
type ExecutionResult struct {
	// Operand stack at halt, top element first
	Stack []Felt

	// Number of executed instructions
	Cycles uint64

	// Replay bundle; set by Record only
	Proof *AdviceInputs
}
