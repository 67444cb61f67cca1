package vm

import (
	"errors"
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
	"go.uber.org/zap"

	"github.com/vybium/vybium-advice/internal/vybium-advice/advice"
	"github.com/vybium/vybium-advice/internal/vybium-advice/core"
	"github.com/vybium/vybium-advice/internal/vybium-advice/merkle"
)

// DefaultMaxCycles bounds execution when no limit is configured
const DefaultMaxCycles = 1_000_000

var (
	// ErrStackUnderflow is returned when an instruction needs more operands than the stack holds
	ErrStackUnderflow = errors.New("operand stack underflow")

	// ErrHalted is returned when stepping a halted process
	ErrHalted = errors.New("process already halted")

	// ErrMaxCycles is returned when execution exceeds the cycle limit
	ErrMaxCycles = errors.New("execution exceeded maximum cycles")

	// ErrMerkleVerification is returned by mtree_verify when the node does not open to the root
	ErrMerkleVerification = errors.New("merkle path verification failed")

	// ErrInvalidArgument is returned for an out of range instruction argument
	ErrInvalidArgument = errors.New("invalid instruction argument")
)

// Option configures a Process
type Option func(*Process)

// WithMaxCycles limits the number of executed instructions
func WithMaxCycles(n uint64) Option {
	return func(p *Process) { p.maxCycles = n }
}

// WithHasher overrides the hash function used by mtree_verify, which
// defaults to the hasher of the provider's store
func WithHasher(h merkle.Hasher) Option {
	return func(p *Process) { p.hasher = h }
}

// WithLogger sets the logger used for per-instruction events
func WithLogger(logger *zap.Logger) Option {
	return func(p *Process) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithStack sets the initial operand stack, top element first
func WithStack(values ...core.Felt) Option {
	return func(p *Process) {
		p.stack = p.stack[:0]
		for i := len(values) - 1; i >= 0; i-- {
			p.stack = append(p.stack, values[i])
		}
	}
}

// Process executes a program against an advice provider
type Process struct {
	program  *Program
	provider advice.Provider
	hasher   merkle.Hasher
	logger   *zap.Logger

	// Operand stack, last element is the top
	stack []core.Felt

	ip        int
	cycles    uint64
	maxCycles uint64
	halted    bool
}

// NewProcess creates a process for program reading advice from provider
func NewProcess(program *Program, provider advice.Provider, opts ...Option) *Process {
	p := &Process{
		program:   program,
		provider:  provider,
		hasher:    provider.Hasher(),
		logger:    zap.NewNop(),
		stack:     make([]core.Felt, 0, 16),
		maxCycles: DefaultMaxCycles,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes the program until halt or error
func (p *Process) Run() error {
	for !p.halted {
		if p.cycles >= p.maxCycles {
			return fmt.Errorf("%w (%d)", ErrMaxCycles, p.maxCycles)
		}
		if err := p.Step(); err != nil {
			return fmt.Errorf("execution failed at cycle %d, IP %d: %w", p.cycles, p.ip, err)
		}
	}
	return nil
}

// Step executes one instruction and advances the provider clock
func (p *Process) Step() error {
	if p.halted {
		return ErrHalted
	}
	if p.ip >= len(p.program.Instructions) {
		return fmt.Errorf("instruction pointer out of bounds: %d", p.ip)
	}

	inst := p.program.Instructions[p.ip]
	info, err := inst.Instruction.Info()
	if err != nil {
		return err
	}
	if len(p.stack) < info.MinStack {
		return fmt.Errorf("%s: %w: need %d elements, have %d", inst, ErrStackUnderflow, info.MinStack, len(p.stack))
	}

	p.logger.Debug("executing instruction",
		zap.Stringer("instruction", inst),
		zap.Uint64("cycle", p.cycles),
		zap.Uint32("step", p.provider.Step()),
		zap.Int("stack", len(p.stack)))

	if err := p.execute(inst); err != nil {
		return fmt.Errorf("failed to execute %s: %w", inst, err)
	}

	p.ip++
	p.cycles++
	p.provider.AdvanceClock()
	return nil
}

func (p *Process) execute(inst *EncodedInstruction) error {
	switch inst.Instruction {
	case Halt:
		p.halted = true
		return nil
	case Push:
		p.push(*inst.Argument)
		return nil
	case Drop:
		return p.execDrop(inst)
	case AdvPush:
		return p.execAdvPush(inst)
	case AdvLoadW:
		return p.execAdvLoadW()
	case AdvPipe:
		return p.execAdvPipe()
	case AdvKeyval:
		return p.execAdvKeyval(inst)
	case AdvInsert:
		return p.execAdvInsert(inst)
	case MtreeGet:
		return p.execMtreeGet()
	case MtreeSet:
		return p.execMtreeSet()
	case MtreeMerge:
		return p.execMtreeMerge()
	case MtreeVerify:
		return p.execMtreeVerify()
	case MtreeLeafDepth:
		return p.execMtreeLeafDepth()
	default:
		return fmt.Errorf("unknown instruction: %d", inst.Instruction)
	}
}

// Stack returns a copy of the operand stack, top element first
func (p *Process) Stack() []core.Felt {
	out := make([]core.Felt, len(p.stack))
	for i, v := range p.stack {
		out[len(p.stack)-1-i] = v
	}
	return out
}

// Cycles returns the number of executed instructions
func (p *Process) Cycles() uint64 {
	return p.cycles
}

// Halted reports whether the program reached halt
func (p *Process) Halted() bool {
	return p.halted
}

// ========== Operand stack ==========

func (p *Process) push(v core.Felt) {
	p.stack = append(p.stack, v)
}

func (p *Process) pop() (core.Felt, error) {
	n := len(p.stack)
	if n == 0 {
		return field.Zero, ErrStackUnderflow
	}
	v := p.stack[n-1]
	p.stack = p.stack[:n-1]
	return v, nil
}

// pushWord places w[0] on top
func (p *Process) pushWord(w core.Word) {
	for i := core.WordSize - 1; i >= 0; i-- {
		p.push(w[i])
	}
}

func (p *Process) popWord() (core.Word, error) {
	var w core.Word
	for i := range w {
		v, err := p.pop()
		if err != nil {
			return core.ZeroWord, err
		}
		w[i] = v
	}
	return w, nil
}

// peek returns the element at depth, 0 being the top
func (p *Process) peek(depth int) core.Felt {
	return p.stack[len(p.stack)-1-depth]
}

// peekWord returns the word whose first element sits at depth
func (p *Process) peekWord(depth int) core.Word {
	return core.Word{p.peek(depth), p.peek(depth + 1), p.peek(depth + 2), p.peek(depth + 3)}
}

func (p *Process) count(inst *EncodedInstruction, max uint64) (int, error) {
	n := inst.Argument.Value()
	if n == 0 || n > max {
		return 0, fmt.Errorf("%w: %d not in 1..%d", ErrInvalidArgument, n, max)
	}
	return int(n), nil
}
