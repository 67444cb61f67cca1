// Package vm provides a small processor that consumes advice
//
// The instruction set covers the operations that read from or write to an
// advice provider, plus the few stack instructions needed to set up their
// operands. Words occupy four operand stack slots with element 0 on top.
package vm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-advice/internal/vybium-advice/core"
)

// Instruction is an opcode of the advice processor
type Instruction uint32

const (
	// ========== Control and stack ==========

	// Halt terminates execution
	Halt Instruction = 0

	// Push pushes its argument onto the operand stack
	Push Instruction = 1

	// Drop removes n elements from the operand stack
	Drop Instruction = 2

	// ========== Advice stack ==========

	// AdvPush pops n elements from the advice stack onto the operand stack
	AdvPush Instruction = 8

	// AdvLoadW overwrites the top operand word with a word popped from the advice stack
	AdvLoadW Instruction = 9

	// AdvPipe pops two words from the advice stack and pushes them, the first on top
	AdvPipe Instruction = 10

	// ========== Advice map ==========

	// AdvKeyval pushes the map values keyed by the top operand word onto the
	// advice stack. A non-zero argument also pushes the value count.
	AdvKeyval Instruction = 16

	// AdvInsert pops a key word and n values and stores the values in the advice map
	AdvInsert Instruction = 17

	// ========== Merkle store ==========

	// MtreeGet replaces [d, i, R] with [V, R] where V is the node at (d, i) under R
	MtreeGet Instruction = 24

	// MtreeSet replaces [d, i, R, V'] with [V, R'] where R' is the root after the update
	MtreeSet Instruction = 25

	// MtreeMerge replaces [R_rhs, R_lhs] with the root of their merged tree
	MtreeMerge Instruction = 26

	// MtreeVerify checks that V is the node at (d, i) under R for [V, d, i, R]
	MtreeVerify Instruction = 27

	// MtreeLeafDepth replaces [d, i, R] with [depth, R] where depth is the leaf depth on the path to i
	MtreeLeafDepth Instruction = 28
)

// InstructionInfo provides metadata about an instruction
type InstructionInfo struct {
	Opcode      Instruction
	Name        string
	Description string
	StackEffect int  // Net effect on operand stack depth, for an argument of 1
	MinStack    int  // Operand elements required before execution
	HasArg      bool // Whether instruction takes an argument
}

// AllInstructions describes every instruction of the advice processor
var AllInstructions = map[Instruction]InstructionInfo{
	Halt: {Halt, "halt", "Terminate execution", 0, 0, false},
	Push: {Push, "push", "Push value onto stack", 1, 0, true},
	Drop: {Drop, "drop", "Remove n elements from stack", -1, 1, true},

	AdvPush:  {AdvPush, "adv_push", "Pop n advice elements onto the stack", 1, 0, true},
	AdvLoadW: {AdvLoadW, "adv_loadw", "Overwrite top word with an advice word", 0, 4, false},
	AdvPipe:  {AdvPipe, "adv_pipe", "Push two advice words", 8, 0, false},

	AdvKeyval: {AdvKeyval, "adv_keyval", "Push map values for the top word onto the advice stack", 0, 4, true},
	AdvInsert: {AdvInsert, "adv_insert", "Store n stack values under the top word", -5, 5, true},

	MtreeGet:       {MtreeGet, "mtree_get", "Read a Merkle node", 2, 6, false},
	MtreeSet:       {MtreeSet, "mtree_set", "Update a Merkle node", -2, 10, false},
	MtreeMerge:     {MtreeMerge, "mtree_merge", "Merge two Merkle roots", -4, 8, false},
	MtreeVerify:    {MtreeVerify, "mtree_verify", "Verify a Merkle node against its root", 0, 10, false},
	MtreeLeafDepth: {MtreeLeafDepth, "mtree_leaf_depth", "Find the leaf depth on a Merkle path", -1, 6, false},
}

var instructionsByName = func() map[string]Instruction {
	byName := make(map[string]Instruction, len(AllInstructions))
	for op, info := range AllInstructions {
		byName[info.Name] = op
	}
	return byName
}()

// String returns the name of the instruction
func (i Instruction) String() string {
	if info, ok := AllInstructions[i]; ok {
		return info.Name
	}
	return fmt.Sprintf("unknown(%d)", i)
}

// Info returns metadata about the instruction
func (i Instruction) Info() (InstructionInfo, error) {
	info, ok := AllInstructions[i]
	if !ok {
		return InstructionInfo{}, fmt.Errorf("unknown instruction: %d", i)
	}
	return info, nil
}

// HasArgument returns whether the instruction takes an argument
func (i Instruction) HasArgument() bool {
	info, err := i.Info()
	if err != nil {
		return false
	}
	return info.HasArg
}

// EncodedInstruction is an instruction with its argument
type EncodedInstruction struct {
	Instruction Instruction
	Argument    *core.Felt // nil if no argument
}

// NewEncodedInstruction creates a new encoded instruction
func NewEncodedInstruction(inst Instruction, arg *core.Felt) (*EncodedInstruction, error) {
	ei := &EncodedInstruction{
		Instruction: inst,
		Argument:    arg,
	}
	if err := ei.validate(); err != nil {
		return nil, err
	}
	return ei, nil
}

func (ei *EncodedInstruction) validate() error {
	if _, err := ei.Instruction.Info(); err != nil {
		return err
	}
	if ei.Instruction.HasArgument() && ei.Argument == nil {
		return fmt.Errorf("instruction %s requires an argument", ei.Instruction)
	}
	if !ei.Instruction.HasArgument() && ei.Argument != nil {
		return fmt.Errorf("instruction %s does not take an argument", ei.Instruction)
	}
	return nil
}

// String returns the assembly form of the instruction
func (ei *EncodedInstruction) String() string {
	if ei.Argument == nil {
		return ei.Instruction.String()
	}
	return fmt.Sprintf("%s.%d", ei.Instruction, ei.Argument.Value())
}

// Words returns the instruction as field elements
func (ei *EncodedInstruction) Words() []core.Felt {
	if ei.Argument == nil {
		return []core.Felt{field.New(uint64(ei.Instruction))}
	}
	return []core.Felt{field.New(uint64(ei.Instruction)), *ei.Argument}
}

// DecodeInstruction decodes an instruction from field elements
func DecodeInstruction(words []core.Felt, offset int) (*EncodedInstruction, error) {
	if offset >= len(words) {
		return nil, fmt.Errorf("offset %d out of bounds", offset)
	}

	opcode := Instruction(words[offset].Value())
	info, err := opcode.Info()
	if err != nil {
		return nil, fmt.Errorf("unknown opcode: %d", words[offset].Value())
	}

	var arg *core.Felt
	if info.HasArg {
		if offset+1 >= len(words) {
			return nil, fmt.Errorf("instruction %s requires argument but none found", opcode)
		}
		arg = &words[offset+1]
	}

	return NewEncodedInstruction(opcode, arg)
}

// ParseInstruction parses the assembly form "name" or "name.arg"
func ParseInstruction(token string) (*EncodedInstruction, error) {
	name, argText, hasArg := strings.Cut(token, ".")
	op, ok := instructionsByName[name]
	if !ok {
		return nil, fmt.Errorf("unknown instruction %q", name)
	}

	var arg *core.Felt
	if hasArg {
		v, err := strconv.ParseUint(argText, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("instruction %q: invalid argument: %w", token, err)
		}
		if v >= field.P {
			return nil, fmt.Errorf("instruction %q: argument %d is not a field element", token, v)
		}
		e := field.New(v)
		arg = &e
	}
	return NewEncodedInstruction(op, arg)
}

// Program is a sequence of instructions
type Program struct {
	Instructions []*EncodedInstruction
}

// NewProgram creates a new program
func NewProgram() *Program {
	return &Program{Instructions: make([]*EncodedInstruction, 0)}
}

// AddInstruction adds an instruction to the program
func (p *Program) AddInstruction(inst *EncodedInstruction) {
	p.Instructions = append(p.Instructions, inst)
}

// ParseProgram parses whitespace-separated assembly. A trailing halt is
// appended when missing.
func ParseProgram(source string) (*Program, error) {
	program := NewProgram()
	for i, token := range strings.Fields(source) {
		inst, err := ParseInstruction(token)
		if err != nil {
			return nil, fmt.Errorf("token %d: %w", i, err)
		}
		program.AddInstruction(inst)
	}
	if n := len(program.Instructions); n == 0 || program.Instructions[n-1].Instruction != Halt {
		program.AddInstruction(&EncodedInstruction{Instruction: Halt})
	}
	return program, nil
}

// ToWords converts the program to field elements
func (p *Program) ToWords() []core.Felt {
	words := make([]core.Felt, 0, 2*len(p.Instructions))
	for _, inst := range p.Instructions {
		words = append(words, inst.Words()...)
	}
	return words
}

// String returns the assembly form of the program
func (p *Program) String() string {
	parts := make([]string, len(p.Instructions))
	for i, inst := range p.Instructions {
		parts[i] = inst.String()
	}
	return strings.Join(parts, " ")
}

// ValidateProgram checks that a program is non-empty, ends with halt and
// that every instruction carries an argument exactly when it takes one
func ValidateProgram(program *Program) error {
	if len(program.Instructions) == 0 {
		return fmt.Errorf("empty program")
	}

	for i, inst := range program.Instructions {
		if err := inst.validate(); err != nil {
			return fmt.Errorf("instruction %d: %w", i, err)
		}
	}

	lastInst := program.Instructions[len(program.Instructions)-1]
	if lastInst.Instruction != Halt {
		return fmt.Errorf("program must end with Halt instruction")
	}

	return nil
}
