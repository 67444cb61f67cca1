package vm

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-advice/internal/vybium-advice/advice"
	"github.com/vybium/vybium-advice/internal/vybium-advice/core"
	"github.com/vybium/vybium-advice/internal/vybium-advice/merkle"
)

func felts(values ...uint64) []core.Felt {
	return core.FeltsFromUint64s(values...)
}

// pushWord returns assembly leaving w on the stack with w[0] on top
func pushWord(w core.Word) string {
	return fmt.Sprintf("push.%d push.%d push.%d push.%d", w[3].Value(), w[2].Value(), w[1].Value(), w[0].Value())
}

// nodeArgs returns assembly leaving [d, i, R] on the stack
func nodeArgs(root core.Word, depth, index uint64) string {
	return fmt.Sprintf("%s push.%d push.%d", pushWord(root), index, depth)
}

func asm(parts ...string) string {
	return strings.Join(parts, " ")
}

func run(t *testing.T, source string, provider advice.Provider, opts ...Option) *Process {
	t.Helper()
	program, err := ParseProgram(source)
	require.NoError(t, err)
	p := NewProcess(program, provider, opts...)
	require.NoError(t, p.Run())
	return p
}

func runErr(t *testing.T, source string, provider advice.Provider, opts ...Option) error {
	t.Helper()
	program, err := ParseProgram(source)
	require.NoError(t, err)
	err = NewProcess(program, provider, opts...).Run()
	require.Error(t, err)
	return err
}

func testTree(t *testing.T) (*advice.AdviceInputs, core.Word, []core.Word) {
	t.Helper()
	leaves := make([]core.Word, 4)
	for i := range leaves {
		v := uint64(i) * 4
		leaves[i] = core.WordFromUint64s(v+1, v+2, v+3, v+4)
	}
	store := merkle.NewStore(merkle.Tip5Hasher{})
	root, err := store.AddTree(leaves)
	require.NoError(t, err)
	return advice.NewAdviceInputs().WithMerkleStore(store), root, leaves
}

func TestAdviceStackInstructions(t *testing.T) {
	t.Run("AdvPush", func(t *testing.T) {
		p := run(t, "adv_push.3", advice.NewMemProvider(advice.NewAdviceInputs().WithStackValues(1, 2, 3)))
		assert.Equal(t, felts(3, 2, 1), p.Stack())
		assert.Equal(t, uint64(2), p.Cycles())
		assert.True(t, p.Halted())
	})

	t.Run("AdvLoadW", func(t *testing.T) {
		provider := advice.NewMemProvider(advice.NewAdviceInputs().WithStackValues(1, 2, 3, 4))
		p := run(t, "push.9 push.0 push.0 push.0 push.0 adv_loadw", provider)
		assert.Equal(t, felts(1, 2, 3, 4, 9), p.Stack())
	})

	t.Run("AdvPipe", func(t *testing.T) {
		provider := advice.NewMemProvider(advice.NewAdviceInputs().WithStackValues(1, 2, 3, 4, 5, 6, 7, 8))
		p := run(t, "adv_pipe", provider)
		assert.Equal(t, felts(1, 2, 3, 4, 5, 6, 7, 8), p.Stack())
	})

	t.Run("EmptyAdviceStack", func(t *testing.T) {
		err := runErr(t, "push.1 push.2 adv_push.1", advice.NewMemProvider(advice.NewAdviceInputs()))
		assert.ErrorIs(t, err, advice.ErrAdviceStackReadFailed)

		var execErr *advice.ExecutionError
		require.ErrorAs(t, err, &execErr)
		assert.Equal(t, uint32(2), execErr.Step)
	})
}

func TestAdviceMapInstructions(t *testing.T) {
	key := core.WordFromUint64s(10, 20, 30, 40)

	t.Run("AdvKeyval", func(t *testing.T) {
		provider := advice.NewMemProvider(advice.NewAdviceInputs().WithMapEntry(key, felts(7, 8, 9)))
		p := run(t, asm(pushWord(key), "adv_keyval.1 adv_push.4"), provider)
		assert.Equal(t, felts(9, 8, 7, 3, 10, 20, 30, 40), p.Stack())
	})

	t.Run("AdvInsert", func(t *testing.T) {
		provider := advice.NewMemProvider(advice.NewAdviceInputs())
		p := run(t, asm("push.6 push.5", pushWord(key), "adv_insert.2", pushWord(key), "adv_keyval.0 adv_push.2"), provider)

		values, ok := provider.MapEntry(key)
		require.True(t, ok)
		assert.Equal(t, felts(5, 6), values)
		assert.Equal(t, felts(6, 5, 10, 20, 30, 40), p.Stack())
	})

	t.Run("MissingKey", func(t *testing.T) {
		err := runErr(t, asm(pushWord(key), "adv_keyval.0"), advice.NewMemProvider(advice.NewAdviceInputs()))
		assert.ErrorIs(t, err, advice.ErrAdviceKeyNotFound)
	})

	t.Run("InsertUnderflow", func(t *testing.T) {
		err := runErr(t, asm(pushWord(key), "push.1 adv_insert.2"), advice.NewMemProvider(advice.NewAdviceInputs()))
		assert.ErrorIs(t, err, ErrStackUnderflow)
	})
}

func TestMerkleInstructions(t *testing.T) {
	t.Run("MtreeGet", func(t *testing.T) {
		inputs, root, leaves := testTree(t)
		p := run(t, asm(nodeArgs(root, 2, 2), "mtree_get"), advice.NewMemProvider(inputs))
		want := append(leaves[2].Felts(), root.Felts()...)
		assert.Equal(t, want, p.Stack())
	})

	t.Run("MtreeSet", func(t *testing.T) {
		inputs, root, leaves := testTree(t)
		value := core.WordFromUint64s(100, 200, 300, 400)
		p := run(t, asm(pushWord(value), nodeArgs(root, 2, 1), "mtree_set"), advice.NewMemProvider(inputs))

		stack := p.Stack()
		require.Len(t, stack, 8)
		assert.Equal(t, leaves[1].Felts(), stack[:4])
		newRoot := core.Word{stack[4], stack[5], stack[6], stack[7]}
		assert.NotEqual(t, root, newRoot)
		assert.False(t, inputs.MerkleStore().HasRoot(newRoot), "inputs are not modified")
	})

	t.Run("MtreeSetThenGet", func(t *testing.T) {
		inputs, root, _ := testTree(t)
		value := core.WordFromUint64s(100, 200, 300, 400)
		p := run(t, asm(
			pushWord(value), nodeArgs(root, 2, 1), "mtree_set",
			"drop.4", "push.1 push.2", "mtree_get",
		), advice.NewMemProvider(inputs))
		assert.Equal(t, value.Felts(), p.Stack()[:4])
	})

	t.Run("MtreeMerge", func(t *testing.T) {
		inputs, root, _ := testTree(t)
		other, err := inputs.MerkleStore().AddTree([]core.Word{
			core.WordFromUint64s(1, 0, 0, 0),
			core.WordFromUint64s(2, 0, 0, 0),
		})
		require.NoError(t, err)

		p := run(t, asm(pushWord(root), pushWord(other), "mtree_merge", "push.1 push.1 mtree_get"), advice.NewMemProvider(inputs))
		assert.Equal(t, other.Felts(), p.Stack()[:4])
	})

	t.Run("MtreeVerify", func(t *testing.T) {
		inputs, root, leaves := testTree(t)
		provider := advice.NewMemProvider(inputs)
		p := run(t, asm(nodeArgs(root, 2, 3), pushWord(leaves[3]), "mtree_verify"), provider)
		assert.Len(t, p.Stack(), 10)

		err := runErr(t, asm(nodeArgs(root, 2, 3), pushWord(leaves[2]), "mtree_verify"), provider)
		assert.ErrorIs(t, err, ErrMerkleVerification)
	})

	t.Run("MtreeVerifyFollowsStoreHasher", func(t *testing.T) {
		_, _, leaves := testTree(t)
		store := merkle.NewStore(merkle.SHA3Hasher{})
		root, err := store.AddTree(leaves)
		require.NoError(t, err)
		inputs := advice.NewAdviceInputsWithHasher(merkle.SHA3Hasher{}).WithMerkleStore(store)
		source := asm(nodeArgs(root, 2, 1), pushWord(leaves[1]), "mtree_verify")

		run(t, source, advice.NewMemProvider(inputs))

		err = runErr(t, source, advice.NewMemProvider(inputs), WithHasher(merkle.Tip5Hasher{}))
		assert.ErrorIs(t, err, ErrMerkleVerification)
	})

	t.Run("MtreeLeafDepth", func(t *testing.T) {
		inputs, root, _ := testTree(t)
		p := run(t, asm(nodeArgs(root, 2, 1), "mtree_leaf_depth"), advice.NewMemProvider(inputs))
		assert.Equal(t, append(felts(2), root.Felts()...), p.Stack())
	})

	t.Run("UnknownRoot", func(t *testing.T) {
		inputs, _, leaves := testTree(t)
		err := runErr(t, asm(nodeArgs(leaves[0], 1, 0), "mtree_get"), advice.NewMemProvider(inputs))
		assert.ErrorIs(t, err, advice.ErrMerkleStoreLookupFailed)
		assert.ErrorIs(t, err, merkle.ErrRootNotInStore)
	})

	t.Run("InvalidIndex", func(t *testing.T) {
		inputs, root, _ := testTree(t)
		err := runErr(t, asm(nodeArgs(root, 2, 4), "mtree_get"), advice.NewMemProvider(inputs))
		assert.ErrorIs(t, err, advice.ErrInvalidTreeNodeIndex)
	})
}

func TestProcessLimits(t *testing.T) {
	t.Run("MaxCycles", func(t *testing.T) {
		err := runErr(t, "push.1 push.2 push.3 push.4", advice.NewMemProvider(advice.NewAdviceInputs()), WithMaxCycles(3))
		assert.ErrorIs(t, err, ErrMaxCycles)
	})

	t.Run("Underflow", func(t *testing.T) {
		err := runErr(t, "push.1 mtree_get", advice.NewMemProvider(advice.NewAdviceInputs()))
		assert.ErrorIs(t, err, ErrStackUnderflow)
	})

	t.Run("InvalidCount", func(t *testing.T) {
		err := runErr(t, "adv_push.0", advice.NewMemProvider(advice.NewAdviceInputs()))
		assert.ErrorIs(t, err, ErrInvalidArgument)

		err = runErr(t, "adv_push.17", advice.NewMemProvider(advice.NewAdviceInputs()))
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("Halted", func(t *testing.T) {
		p := run(t, "halt", advice.NewMemProvider(advice.NewAdviceInputs()))
		assert.ErrorIs(t, p.Step(), ErrHalted)
	})

	t.Run("ClockFollowsCycles", func(t *testing.T) {
		provider := advice.NewMemProvider(advice.NewAdviceInputs())
		p := run(t, "push.1 push.2 drop.2", provider)
		assert.Equal(t, uint32(p.Cycles()), provider.Step())
	})

	t.Run("InitialStack", func(t *testing.T) {
		p := run(t, "drop.1", advice.NewMemProvider(advice.NewAdviceInputs()), WithStack(felts(1, 2, 3)...))
		assert.Equal(t, felts(2, 3), p.Stack())
	})
}

func TestRecordReplay(t *testing.T) {
	inputs, root, _ := testTree(t)
	key := core.WordFromUint64s(5, 5, 5, 5)
	unused := core.WordFromUint64s(6, 6, 6, 6)
	inputs.WithStackValues(1, 2, 3, 4, 5).
		WithMapEntry(key, felts(11, 12)).
		WithMapEntry(unused, felts(13))

	source := asm(
		"adv_push.1",
		"push.0 push.0 push.0 push.0 adv_loadw",
		pushWord(key), "adv_keyval.1 adv_push.3",
		nodeArgs(root, 2, 3), "mtree_get",
		pushWord(core.WordFromUint64s(9, 9, 9, 9)), nodeArgs(root, 2, 0), "mtree_set",
	)

	rec := advice.NewRecProvider(inputs)
	recorded := run(t, source, rec).Stack()
	proof := rec.IntoProof()

	replayed := run(t, source, advice.NewMemProvider(proof)).Stack()
	assert.Equal(t, recorded, replayed)

	_, ok := proof.MapEntry(unused)
	assert.False(t, ok)
	assert.Less(t, proof.Map().Len(), inputs.Map().Len())
}

func TestProgramEncoding(t *testing.T) {
	program, err := ParseProgram("push.7 adv_push.2 mtree_get")
	require.NoError(t, err)
	assert.Equal(t, "push.7 adv_push.2 mtree_get halt", program.String())
	require.NoError(t, ValidateProgram(program))

	words := program.ToWords()
	assert.Len(t, words, 6)

	offset := 0
	for _, want := range program.Instructions {
		got, err := DecodeInstruction(words, offset)
		require.NoError(t, err)
		assert.Equal(t, want.String(), got.String())
		offset += len(got.Words())
	}

	_, err = ParseProgram("frobnicate")
	assert.Error(t, err)
	_, err = ParseProgram("push")
	assert.Error(t, err)
	_, err = ParseProgram("halt.1")
	assert.Error(t, err)
	_, err = ParseProgram(fmt.Sprintf("push.%d", field.P))
	assert.Error(t, err)

	assert.Error(t, ValidateProgram(NewProgram()))

	assert.True(t, AdvPush.HasArgument())
	assert.False(t, MtreeGet.HasArgument())
	assert.False(t, Instruction(99).HasArgument())

	missingArg := NewProgram()
	missingArg.AddInstruction(&EncodedInstruction{Instruction: AdvPush})
	missingArg.AddInstruction(&EncodedInstruction{Instruction: Halt})
	assert.ErrorContains(t, ValidateProgram(missingArg), "instruction 0: instruction adv_push requires an argument")

	one := field.One
	extraArg := NewProgram()
	extraArg.AddInstruction(&EncodedInstruction{Instruction: Halt, Argument: &one})
	assert.ErrorContains(t, ValidateProgram(extraArg), "does not take an argument")

	_, err = ParseInstruction("mtree_get.1")
	assert.ErrorContains(t, err, "does not take an argument")
	_, err = ParseInstruction("adv_push")
	assert.ErrorContains(t, err, "requires an argument")
	assert.Equal(t, "unknown(99)", Instruction(99).String())
}
