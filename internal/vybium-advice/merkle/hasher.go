package merkle

import (
	"encoding/binary"
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/hash"
	"golang.org/x/crypto/sha3"

	"github.com/vybium/vybium-advice/internal/vybium-advice/core"
)

// Hasher merges two child digests into their parent digest
type Hasher interface {
	// Merge returns the digest of the node with the given children
	Merge(left, right core.Word) core.Word

	// Name identifies the hash function
	Name() string
}

// Hash function names accepted by HasherByName
const (
	HashTip5 = "tip5"
	HashSHA3 = "sha3"
)

// HasherByName returns the hasher registered under name
func HasherByName(name string) (Hasher, error) {
	switch name {
	case HashTip5, "":
		return Tip5Hasher{}, nil
	case HashSHA3:
		return SHA3Hasher{}, nil
	default:
		return nil, fmt.Errorf("unknown hash function %q", name)
	}
}

// Tip5Hasher hashes the 8 child elements with the Tip5 sponge and
// keeps the first 4 digest elements.
type Tip5Hasher struct{}

// Merge implements Hasher
func (Tip5Hasher) Merge(left, right core.Word) core.Word {
	input := make([]field.Element, 0, 2*core.WordSize)
	input = append(input, left[:]...)
	input = append(input, right[:]...)

	digest := hash.HashVarlen(input)

	var out core.Word
	copy(out[:], digest[:])
	return out
}

// Name implements Hasher
func (Tip5Hasher) Name() string { return HashTip5 }

// SHA3Hasher hashes the canonical encoding of both children with SHA3-256
// and reads the 32-byte result back as four field elements.
type SHA3Hasher struct{}

// Merge implements Hasher
func (SHA3Hasher) Merge(left, right core.Word) core.Word {
	l, r := left.Bytes(), right.Bytes()
	var buf [2 * core.WordBytes]byte
	copy(buf[:core.WordBytes], l[:])
	copy(buf[core.WordBytes:], r[:])

	sum := sha3.Sum256(buf[:])

	var out core.Word
	for i := range out {
		out[i] = field.New(binary.LittleEndian.Uint64(sum[i*8:]) % field.P)
	}
	return out
}

// Name implements Hasher
func (SHA3Hasher) Name() string { return HashSHA3 }

// EmptyRoots returns the roots of empty subtrees for heights 0..=MaxDepth.
// roots[h] is the root of an empty tree of height h; roots[0] is the empty leaf.
func EmptyRoots(h Hasher) [MaxDepth + 1]core.Word {
	var roots [MaxDepth + 1]core.Word
	roots[0] = core.ZeroWord
	for i := 1; i <= MaxDepth; i++ {
		roots[i] = h.Merge(roots[i-1], roots[i-1])
	}
	return roots
}
