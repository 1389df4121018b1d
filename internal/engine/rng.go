package engine

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/MJE43/mogwai-breed-go/internal/genetic"
)

const roundSize = 32

// ByteGenerator streams deterministic bytes for one (seeds, nonce) pair.
// Each round produces 32 bytes; the generator moves to the next round once
// the current one is exhausted.
type ByteGenerator struct {
	scheme       Scheme
	seeds        Seeds
	nonce        uint64
	currentRound uint64
	currentPos   int
	buffer       [roundSize]byte
}

// NewByteGenerator creates a generator positioned at cursor bytes into the stream.
func NewByteGenerator(scheme Scheme, seeds Seeds, nonce uint64, cursor uint64) *ByteGenerator {
	bg := &ByteGenerator{
		scheme:       scheme,
		seeds:        seeds,
		nonce:        nonce,
		currentRound: cursor / roundSize,
		currentPos:   int(cursor % roundSize),
	}

	// Always generate the initial round
	bg.generateRound()

	return bg
}

// Next returns the next byte from the generator
func (bg *ByteGenerator) Next() byte {
	if bg.currentPos >= roundSize {
		bg.currentRound++
		bg.currentPos = 0
		bg.generateRound()
	}

	b := bg.buffer[bg.currentPos]
	bg.currentPos++
	return b
}

// Read fills p from the stream. It never fails.
func (bg *ByteGenerator) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = bg.Next()
	}
	return len(p), nil
}

func (bg *ByteGenerator) generateRound() {
	switch bg.scheme {
	case SchemeBlake2b:
		message := fmt.Sprintf("%s:%s:%d:%d", bg.seeds.Server, bg.seeds.Client, bg.nonce, bg.currentRound)
		bg.buffer = blake2b.Sum256([]byte(message))
	default:
		h := hmac.New(sha256.New, []byte(bg.seeds.Server))
		message := fmt.Sprintf("%s:%d:%d", bg.seeds.Client, bg.nonce, bg.currentRound)
		h.Write([]byte(message))
		copy(bg.buffer[:], h.Sum(nil))
	}
}

// Entropy returns the entropy block for a breeding event: the first round
// of the stream for (seeds, nonce).
func Entropy(scheme Scheme, seeds Seeds, nonce uint64) genetic.Entropy {
	var e genetic.Entropy
	bg := NewByteGenerator(scheme, seeds, nonce, 0)
	bg.Read(e[:])
	return e
}

// EntropyInto writes the entropy block for (seeds, nonce) into dst,
// avoiding the generator allocation on hot scan paths.
func EntropyInto(dst *genetic.Entropy, scheme Scheme, seeds Seeds, nonce uint64) {
	bg := ByteGenerator{scheme: scheme, seeds: seeds, nonce: nonce}
	bg.generateRound()
	*dst = bg.buffer
}

// GenesisSegment derives a gene buffer for a creature minted without
// parents. It reads the second round of the stream so it never overlaps
// the breeding entropy of the same nonce.
func GenesisSegment(scheme Scheme, seeds Seeds, nonce uint64) genetic.Segment {
	var s genetic.Segment
	bg := NewByteGenerator(scheme, seeds, nonce, roundSize)
	bg.Read(s[:])
	return s
}
