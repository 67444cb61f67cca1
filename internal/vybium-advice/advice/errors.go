package advice

import (
	"fmt"

	"github.com/vybium/vybium-advice/internal/vybium-advice/core"
)

// ErrorCode identifies the kind of a provider failure
type ErrorCode int

const (
	// AdviceStackReadFailed is returned when a pop finds too few elements
	AdviceStackReadFailed ErrorCode = iota + 1

	// AdviceKeyNotFound is returned when a map push references a missing key
	AdviceKeyNotFound

	// InvalidTreeNodeIndex is returned for a malformed (depth, index) pair
	InvalidTreeNodeIndex

	// InvalidTreeDepth is returned when a tree depth does not fit a byte
	InvalidTreeDepth

	// MerkleStoreLookupFailed is returned when the store cannot resolve a node or path
	MerkleStoreLookupFailed

	// MerkleStoreUpdateFailed is returned when a node update is rejected
	MerkleStoreUpdateFailed

	// MerkleStoreMergeFailed is returned when two roots cannot be merged
	MerkleStoreMergeFailed
)

var codeNames = map[ErrorCode]string{
	AdviceStackReadFailed:   "AdviceStackReadFailed",
	AdviceKeyNotFound:       "AdviceKeyNotFound",
	InvalidTreeNodeIndex:    "InvalidTreeNodeIndex",
	InvalidTreeDepth:        "InvalidTreeDepth",
	MerkleStoreLookupFailed: "MerkleStoreLookupFailed",
	MerkleStoreUpdateFailed: "MerkleStoreUpdateFailed",
	MerkleStoreMergeFailed:  "MerkleStoreMergeFailed",
}

// String returns the name of the error code
func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ErrorCode(%d)", int(c))
}

// ExecutionError is a provider failure tagged with the step at which it occurred.
// Only the context fields relevant to Code are set.
type ExecutionError struct {
	Code ErrorCode
	Step uint32

	// Key is set for AdviceKeyNotFound
	Key core.Word

	// Depth and Value are set for InvalidTreeNodeIndex and InvalidTreeDepth
	Depth core.Felt
	Value core.Felt

	// Cause is the underlying store error, if any
	Cause error
}

// Sentinels for errors.Is; matching is by code only
var (
	ErrAdviceStackReadFailed   = &ExecutionError{Code: AdviceStackReadFailed}
	ErrAdviceKeyNotFound       = &ExecutionError{Code: AdviceKeyNotFound}
	ErrInvalidTreeNodeIndex    = &ExecutionError{Code: InvalidTreeNodeIndex}
	ErrInvalidTreeDepth        = &ExecutionError{Code: InvalidTreeDepth}
	ErrMerkleStoreLookupFailed = &ExecutionError{Code: MerkleStoreLookupFailed}
	ErrMerkleStoreUpdateFailed = &ExecutionError{Code: MerkleStoreUpdateFailed}
	ErrMerkleStoreMergeFailed  = &ExecutionError{Code: MerkleStoreMergeFailed}
)

// Error returns the error message
func (e *ExecutionError) Error() string {
	var msg string
	switch e.Code {
	case AdviceStackReadFailed:
		msg = "advice stack read failed"
	case AdviceKeyNotFound:
		msg = fmt.Sprintf("advice map key %s not found", e.Key)
	case InvalidTreeNodeIndex:
		msg = fmt.Sprintf("invalid tree node index: depth %d, value %d", e.Depth.Value(), e.Value.Value())
	case InvalidTreeDepth:
		msg = fmt.Sprintf("invalid tree depth %d", e.Depth.Value())
	case MerkleStoreLookupFailed:
		msg = "merkle store lookup failed"
	case MerkleStoreUpdateFailed:
		msg = "merkle store update failed"
	case MerkleStoreMergeFailed:
		msg = "merkle store merge failed"
	default:
		msg = e.Code.String()
	}
	if e.Cause != nil {
		return fmt.Sprintf("step %d: %s: %v", e.Step, msg, e.Cause)
	}
	return fmt.Sprintf("step %d: %s", e.Step, msg)
}

// Unwrap returns the cause of the error
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target error
func (e *ExecutionError) Is(target error) bool {
	t, ok := target.(*ExecutionError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}
