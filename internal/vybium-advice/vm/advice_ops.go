package vm

import (
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-advice/internal/vybium-advice/advice"
	"github.com/vybium/vybium-advice/internal/vybium-advice/core"
)

// maxBatch bounds the element count taken by drop, adv_push and adv_insert
const maxBatch = 16

// ============================================================================
// Stack
// ============================================================================

// execDrop removes n elements from the stack
func (p *Process) execDrop(inst *EncodedInstruction) error {
	n, err := p.count(inst, maxBatch)
	if err != nil {
		return err
	}
	if len(p.stack) < n {
		return fmt.Errorf("%w: cannot drop %d elements from stack of size %d", ErrStackUnderflow, n, len(p.stack))
	}
	p.stack = p.stack[:len(p.stack)-n]
	return nil
}

// ============================================================================
// Advice stack
// ============================================================================

// execAdvPush moves n elements from the advice stack, the last one ending on top
func (p *Process) execAdvPush(inst *EncodedInstruction) error {
	n, err := p.count(inst, maxBatch)
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		v, err := p.provider.PopStack()
		if err != nil {
			return err
		}
		p.push(v)
	}
	return nil
}

// execAdvLoadW replaces the top word with a word from the advice stack
func (p *Process) execAdvLoadW() error {
	w, err := p.provider.PopStackWord()
	if err != nil {
		return err
	}
	if _, err := p.popWord(); err != nil {
		return err
	}
	p.pushWord(w)
	return nil
}

// execAdvPipe pushes two advice words, the first popped on top
func (p *Process) execAdvPipe() error {
	dword, err := p.provider.PopStackDWord()
	if err != nil {
		return err
	}
	p.pushWord(dword[1])
	p.pushWord(dword[0])
	return nil
}

// ============================================================================
// Advice map
// ============================================================================

// execAdvKeyval pushes the map entry keyed by the top word onto the advice stack
func (p *Process) execAdvKeyval(inst *EncodedInstruction) error {
	key := p.peekWord(0)
	return p.provider.PushStack(advice.MapSource{
		Key:        key,
		IncludeLen: inst.Argument.Value() != 0,
	})
}

// execAdvInsert pops a key word and n values and stores the values under the key
func (p *Process) execAdvInsert(inst *EncodedInstruction) error {
	n, err := p.count(inst, maxBatch)
	if err != nil {
		return err
	}
	if len(p.stack) < core.WordSize+n {
		return fmt.Errorf("%w: need %d elements, have %d", ErrStackUnderflow, core.WordSize+n, len(p.stack))
	}
	key, _ := p.popWord()
	values := make([]core.Felt, n)
	for i := range values {
		values[i], _ = p.pop()
	}
	p.provider.InsertIntoMap(key, values)
	return nil
}

// ============================================================================
// Merkle store
// ============================================================================

// popNodeIndex pops the depth and index operands
func (p *Process) popNodeIndex() (depth, index core.Felt, err error) {
	if depth, err = p.pop(); err != nil {
		return
	}
	index, err = p.pop()
	return
}

// execMtreeGet: [d, i, R] -> [V, R]
func (p *Process) execMtreeGet() error {
	depth, index, err := p.popNodeIndex()
	if err != nil {
		return err
	}
	node, err := p.provider.GetTreeNode(p.peekWord(0), depth, index)
	if err != nil {
		return err
	}
	p.pushWord(node)
	return nil
}

// execMtreeSet: [d, i, R, V'] -> [V, R']
func (p *Process) execMtreeSet() error {
	depth, index, err := p.popNodeIndex()
	if err != nil {
		return err
	}
	root, _ := p.popWord()
	value, _ := p.popWord()

	old, err := p.provider.GetTreeNode(root, depth, index)
	if err != nil {
		return err
	}
	updated, err := p.provider.UpdateMerkleNode(root, depth, index, value)
	if err != nil {
		return err
	}
	p.pushWord(updated.Root)
	p.pushWord(old)
	return nil
}

// execMtreeMerge: [R_rhs, R_lhs] -> [R]
func (p *Process) execMtreeMerge() error {
	rhs, _ := p.popWord()
	lhs, _ := p.popWord()
	root, err := p.provider.MergeRoots(lhs, rhs)
	if err != nil {
		return err
	}
	p.pushWord(root)
	return nil
}

// execMtreeVerify checks [V, d, i, R] against a path from the advice provider
func (p *Process) execMtreeVerify() error {
	node := p.peekWord(0)
	depth, index := p.peek(4), p.peek(5)
	root := p.peekWord(6)

	path, err := p.provider.GetMerklePath(root, depth, index)
	if err != nil {
		return err
	}
	computed, err := path.ComputeRoot(p.hasher, index.Value(), node)
	if err != nil {
		return err
	}
	if computed != root {
		return fmt.Errorf("%w: node %s at (%d, %d) opens to %s, expected %s",
			ErrMerkleVerification, node, depth.Value(), index.Value(), computed, root)
	}
	return nil
}

// execMtreeLeafDepth: [d, i, R] -> [depth, R]
func (p *Process) execMtreeLeafDepth() error {
	treeDepth, index, err := p.popNodeIndex()
	if err != nil {
		return err
	}
	depth, err := p.provider.GetLeafDepth(p.peekWord(0), treeDepth, index)
	if err != nil {
		return err
	}
	p.push(field.New(uint64(depth)))
	return nil
}
