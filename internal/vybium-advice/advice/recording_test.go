package advice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-advice/internal/vybium-advice/core"
	"github.com/vybium/vybium-advice/internal/vybium-advice/merkle"
)

type recordingFixture struct {
	inputs    *AdviceInputs
	root      core.Word
	otherRoot core.Word
	usedKey   core.Word
	unusedKey core.Word
}

func newRecordingFixture(t *testing.T) recordingFixture {
	t.Helper()
	store := merkle.NewStore(merkle.Tip5Hasher{})
	root, err := store.AddTree(testLeaves(8, 0))
	require.NoError(t, err)
	otherRoot, err := store.AddTree(testLeaves(4, 1000))
	require.NoError(t, err)

	f := recordingFixture{
		root:      root,
		otherRoot: otherRoot,
		usedKey:   core.WordFromUint64s(1, 1, 1, 1),
		unusedKey: core.WordFromUint64s(2, 2, 2, 2),
	}
	f.inputs = NewAdviceInputs().
		WithStackValues(11, 12, 13, 14, 15).
		WithMapEntry(f.usedKey, felts(21, 22, 23)).
		WithMapEntry(f.unusedKey, felts(31)).
		WithMerkleStore(store)
	return f
}

// run drives a provider through a fixed sequence and returns everything it observed
func (f recordingFixture) run(t *testing.T, p Provider) []core.Word {
	t.Helper()
	var seen []core.Word
	step := func() { p.AdvanceClock() }

	w, err := p.PopStackWord()
	require.NoError(t, err)
	seen = append(seen, w)
	step()

	require.NoError(t, p.PushStack(MapSource{Key: f.usedKey, IncludeLen: true}))
	step()
	w, err = p.PopStackWord()
	require.NoError(t, err)
	seen = append(seen, w)
	step()

	node, err := p.GetTreeNode(f.root, field.New(3), field.New(5))
	require.NoError(t, err)
	seen = append(seen, node)
	step()

	updated, err := p.UpdateMerkleNode(f.root, field.New(3), field.New(2), core.WordFromUint64s(5, 5, 5, 5))
	require.NoError(t, err)
	seen = append(seen, updated.Root)
	seen = append(seen, updated.Path...)
	step()

	node, err = p.GetTreeNode(updated.Root, field.New(3), field.New(2))
	require.NoError(t, err)
	seen = append(seen, node)
	step()

	path, err := p.GetMerklePath(f.root, field.New(3), field.New(2))
	require.NoError(t, err)
	seen = append(seen, path...)
	step()

	created := core.WordFromUint64s(3, 3, 3, 3)
	p.InsertIntoMap(created, felts(41, 42, 43, 44))
	require.NoError(t, p.PushStack(MapSource{Key: created}))
	w, err = p.PopStackWord()
	require.NoError(t, err)
	seen = append(seen, w)
	step()

	return seen
}

func TestRecProvider(t *testing.T) {
	t.Run("ReplayMatchesRecording", func(t *testing.T) {
		f := newRecordingFixture(t)
		rec := NewRecProvider(f.inputs)
		recorded := f.run(t, rec)
		proof := rec.IntoProof()

		replayed := f.run(t, NewMemProvider(proof))
		assert.Equal(t, recorded, replayed)
	})

	t.Run("ProofIsMinimal", func(t *testing.T) {
		f := newRecordingFixture(t)
		rec := NewRecProvider(f.inputs)
		f.run(t, rec)
		proof := rec.IntoProof()

		assert.Equal(t, f.inputs.Stack(), proof.Stack())

		_, ok := proof.MapEntry(f.usedKey)
		assert.True(t, ok)
		_, ok = proof.MapEntry(f.unusedKey)
		assert.False(t, ok, "unread entries are not recorded")

		// The inserted entry was read back, so it is part of the proof.
		assert.Equal(t, 2, proof.Map().Len())

		assert.Less(t, proof.MerkleStore().Len(), f.inputs.MerkleStore().Len())
		assert.False(t, proof.MerkleStore().HasRoot(f.otherRoot))
	})

	t.Run("InsertWithoutReadIsNotRecorded", func(t *testing.T) {
		rec := NewRecProvider(NewAdviceInputs())
		rec.InsertIntoMap(core.WordFromUint64s(1, 2, 3, 4), felts(1))
		proof := rec.IntoProof()
		assert.Zero(t, proof.Map().Len())
	})

	t.Run("FirstReadWins", func(t *testing.T) {
		key := core.WordFromUint64s(1, 2, 3, 4)
		rec := NewRecProvider(NewAdviceInputs().WithMapEntry(key, felts(1)))
		require.NoError(t, rec.PushStack(MapSource{Key: key}))
		rec.InsertIntoMap(key, felts(2))
		require.NoError(t, rec.PushStack(MapSource{Key: key}))

		proof := rec.IntoProof()
		values, ok := proof.MapEntry(key)
		require.True(t, ok)
		assert.Equal(t, felts(1), values)
	})

	t.Run("FailedLookupsAreNotRecorded", func(t *testing.T) {
		f := newRecordingFixture(t)
		rec := NewRecProvider(f.inputs)
		_, err := rec.GetTreeNode(core.WordFromUint64s(9, 9, 9, 9), field.One, field.Zero)
		requireCode(t, err, MerkleStoreLookupFailed)
		err = rec.PushStack(MapSource{Key: core.WordFromUint64s(9, 9, 9, 9)})
		requireCode(t, err, AdviceKeyNotFound)

		proof := rec.IntoProof()
		assert.Zero(t, proof.Map().Len())
		assert.False(t, proof.MerkleStore().HasRoot(f.root))
	})

	t.Run("IntrospectionIsNotRecorded", func(t *testing.T) {
		f := newRecordingFixture(t)
		rec := NewRecProvider(f.inputs)

		assert.Equal(t, felts(11, 12, 13, 14, 15), rec.Stack())
		popN(t, rec, 1)
		assert.Equal(t, felts(12, 13, 14, 15), rec.Stack())

		values, ok := rec.MapEntry(f.usedKey)
		require.True(t, ok)
		assert.Equal(t, felts(21, 22, 23), values)
		_, ok = rec.MapEntry(core.WordFromUint64s(9, 9, 9, 9))
		assert.False(t, ok)

		entries := 0
		for range rec.Map() {
			entries++
		}
		assert.Equal(t, 2, entries)

		assert.True(t, rec.HasMerkleRoot(f.root))
		assert.True(t, rec.HasMerkleRoot(f.otherRoot))
		assert.False(t, rec.HasMerkleRoot(core.WordFromUint64s(9, 9, 9, 9)))
		assert.Equal(t, f.inputs.MerkleStore().Len(), rec.Store().Len())

		proof := rec.IntoProof()
		assert.Zero(t, proof.Map().Len())
		assert.False(t, proof.MerkleStore().HasRoot(f.root))
		assert.Equal(t, merkle.NewStore(merkle.Tip5Hasher{}).Len(), proof.MerkleStore().Len())
	})

	t.Run("InitialStackSurvivesPops", func(t *testing.T) {
		rec := NewRecProvider(NewAdviceInputs().WithStackValues(1, 2, 3))
		popN(t, rec, 3)
		require.NoError(t, rec.PushStack(ValueSource{Value: field.New(4)}))
		assert.Equal(t, felts(1, 2, 3), rec.IntoProof().Stack())
	})
}
