// Package core provides the field element and word types shared by the advice subsystem
package core

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
)

// Felt is an element of the Goldilocks field (2^64 - 2^32 + 1)
type Felt = field.Element

// WordSize is the number of field elements in a Word
const WordSize = 4

// WordBytes is the length of the canonical Word encoding
const WordBytes = WordSize * 8

// Word is a 4-element tuple used for digests, Merkle nodes and map keys
type Word [WordSize]Felt

// ZeroWord is the word with all elements set to zero
var ZeroWord = Word{field.Zero, field.Zero, field.Zero, field.Zero}

// NewWord creates a word from four field elements
func NewWord(a, b, c, d Felt) Word {
	return Word{a, b, c, d}
}

// WordFromUint64s creates a word from four integers, reducing each into the field
func WordFromUint64s(a, b, c, d uint64) Word {
	return Word{field.New(a), field.New(b), field.New(c), field.New(d)}
}

// WordFromBytes decodes a canonical 32-byte encoding
func WordFromBytes(b [WordBytes]byte) (Word, error) {
	var w Word
	for i := 0; i < WordSize; i++ {
		v := binary.LittleEndian.Uint64(b[i*8:])
		if v >= field.P {
			return ZeroWord, fmt.Errorf("element %d is not canonical: %d", i, v)
		}
		w[i] = field.New(v)
	}
	return w, nil
}

// FeltsFromUint64s converts integers into field elements
func FeltsFromUint64s(values ...uint64) []Felt {
	result := make([]Felt, len(values))
	for i, v := range values {
		result[i] = field.New(v)
	}
	return result
}

// CanonicalFelts converts integers into field elements, rejecting any value >= P
func CanonicalFelts(values []uint64) ([]Felt, error) {
	result := make([]Felt, len(values))
	for i, v := range values {
		if v >= field.P {
			return nil, fmt.Errorf("element %d is not canonical: %d", i, v)
		}
		result[i] = field.New(v)
	}
	return result, nil
}

// FeltsToUint64s returns the canonical integer value of each element
func FeltsToUint64s(values []Felt) []uint64 {
	result := make([]uint64, len(values))
	for i, v := range values {
		result[i] = v.Value()
	}
	return result
}

// Bytes returns the canonical little-endian encoding of the word.
// Equal words always encode to equal bytes.
func (w Word) Bytes() [WordBytes]byte {
	var out [WordBytes]byte
	for i, e := range w {
		binary.LittleEndian.PutUint64(out[i*8:], e.Value())
	}
	return out
}

// Less orders words lexicographically by element value
func (w Word) Less(other Word) bool {
	for i := 0; i < WordSize; i++ {
		a, b := w[i].Value(), other[i].Value()
		if a != b {
			return a < b
		}
	}
	return false
}

// Felts returns the word elements as a slice
func (w Word) Felts() []Felt {
	return []Felt{w[0], w[1], w[2], w[3]}
}

// Hex returns the hex encoding of the canonical bytes
func (w Word) Hex() string {
	b := w.Bytes()
	return hex.EncodeToString(b[:])
}

// String returns a readable representation of the word
func (w Word) String() string {
	parts := make([]string, WordSize)
	for i, e := range w {
		parts[i] = fmt.Sprintf("%d", e.Value())
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// WordFromHex parses the output of Hex
func WordFromHex(s string) (Word, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return ZeroWord, fmt.Errorf("invalid word hex: %w", err)
	}
	if len(raw) != WordBytes {
		return ZeroWord, fmt.Errorf("invalid word length: expected %d bytes, got %d", WordBytes, len(raw))
	}
	var b [WordBytes]byte
	copy(b[:], raw)
	return WordFromBytes(b)
}

// MarshalJSON encodes the word as a hex string
func (w Word) MarshalJSON() ([]byte, error) {
	return json.Marshal(w.Hex())
}

// UnmarshalJSON decodes a word from a hex string
func (w *Word) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	decoded, err := WordFromHex(s)
	if err != nil {
		return err
	}
	*w = decoded
	return nil
}
