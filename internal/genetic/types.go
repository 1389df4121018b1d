// Package genetic implements the mogwai crossover and progression rules.
// Every function is pure; all randomness arrives through an Entropy block.
package genetic

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	SegmentSize = 16
	GenomeSize  = 32
	EntropySize = 32

	// Loci is the number of crossover decision points, one per output nibble.
	Loci = 32

	MinGeneration = 1
	MaxGeneration = 16
)

// ErrHexLength is returned when a hex string decodes to the wrong number of bytes.
var ErrHexLength = errors.New("hex value has wrong length")

// Segment is a parent's heritable gene buffer. Bytes 0-7 are the dominant
// half, bytes 8-15 the recessive half.
type Segment [SegmentSize]byte

// Genome is the combined buffer built by Pair. Bytes 0-15 derive from
// parent 1, bytes 16-31 from parent 2.
type Genome [GenomeSize]byte

// Entropy is the caller-supplied random block driving a breeding event.
type Entropy [EntropySize]byte

// Markers is the evolution marker trace, parallel to an offspring Segment.
type Markers [SegmentSize]byte

func (s Segment) String() string { return hex.EncodeToString(s[:]) }
func (g Genome) String() string  { return hex.EncodeToString(g[:]) }
func (e Entropy) String() string { return hex.EncodeToString(e[:]) }
func (m Markers) String() string { return hex.EncodeToString(m[:]) }

// Dominant returns the first 8 bytes of the segment.
func (s Segment) Dominant() [8]byte {
	var out [8]byte
	copy(out[:], s[:8])
	return out
}

// Recessive returns the last 8 bytes of the segment.
func (s Segment) Recessive() [8]byte {
	var out [8]byte
	copy(out[:], s[8:])
	return out
}

// ParseSegment decodes a 32 character hex string.
func ParseSegment(s string) (Segment, error) {
	var out Segment
	err := decodeFixed(out[:], s)
	return out, err
}

// ParseGenome decodes a 64 character hex string.
func ParseGenome(s string) (Genome, error) {
	var out Genome
	err := decodeFixed(out[:], s)
	return out, err
}

// ParseEntropy decodes a 64 character hex string. A leading 0x is accepted
// since block hashes are usually printed that way.
func ParseEntropy(s string) (Entropy, error) {
	var out Entropy
	err := decodeFixed(out[:], s)
	return out, err
}

func decodeFixed(dst []byte, s string) error {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("decode hex: %w", err)
	}
	if len(raw) != len(dst) {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrHexLength, len(raw), len(dst))
	}
	copy(dst, raw)
	return nil
}

// BreedType selects how each parent's halves are ordered inside the Genome.
type BreedType uint8

const (
	DomDom BreedType = 0
	DomRez BreedType = 1
	RezDom BreedType = 2
	RezRez BreedType = 3
)

var breedTypeNames = map[BreedType]string{
	DomDom: "DomDom",
	DomRez: "DomRez",
	RezDom: "RezDom",
	RezRez: "RezRez",
}

func (bt BreedType) String() string {
	if name, ok := breedTypeNames[bt]; ok {
		return name
	}
	return fmt.Sprintf("BreedType(%d)", uint8(bt))
}

// Valid reports whether bt is one of the four pairing strategies.
func (bt BreedType) Valid() bool {
	return bt <= RezRez
}

// ParseBreedType accepts a strategy name (case-insensitive) or its ordinal.
func ParseBreedType(s string) (BreedType, error) {
	s = strings.TrimSpace(s)
	for bt, name := range breedTypeNames {
		if strings.EqualFold(s, name) {
			return bt, nil
		}
	}
	if n, err := strconv.ParseUint(s, 10, 8); err == nil && BreedType(n).Valid() {
		return BreedType(n), nil
	}
	return DomDom, fmt.Errorf("unknown breed type %q", s)
}

// BreedTypeForNonce picks the strategy used when a caller does not choose one.
func BreedTypeForNonce(nonce uint64) BreedType {
	return BreedType(nonce % 4)
}

// Rarity is the 5-level quality tier of a creature.
type Rarity uint8

const (
	Minor     Rarity = 0
	Normal    Rarity = 1
	Rare      Rarity = 2
	Epic      Rarity = 3
	Legendary Rarity = 4
)

// RarityTiers is the number of rarity tiers.
const RarityTiers = 5

var rarityNames = [RarityTiers]string{"Minor", "Normal", "Rare", "Epic", "Legendary"}

func (r Rarity) String() string {
	if r.Valid() {
		return rarityNames[r]
	}
	return fmt.Sprintf("Rarity(%d)", uint8(r))
}

// Valid reports whether r is a defined tier.
func (r Rarity) Valid() bool {
	return r <= Legendary
}

// RarityFromOrdinal maps an ordinal to its tier. Unknown ordinals map to Minor.
func RarityFromOrdinal(n uint32) Rarity {
	if n < RarityTiers {
		return Rarity(n)
	}
	return Minor
}

// ParseRarity accepts a tier name (case-insensitive) or its ordinal.
func ParseRarity(s string) (Rarity, error) {
	s = strings.TrimSpace(s)
	for i, name := range rarityNames {
		if strings.EqualFold(s, name) {
			return Rarity(i), nil
		}
	}
	if n, err := strconv.ParseUint(s, 10, 8); err == nil && Rarity(n).Valid() {
		return Rarity(n), nil
	}
	return Minor, fmt.Errorf("unknown rarity %q", s)
}
