// Package breed runs complete breeding events on top of the genetic rules
// and measures the resulting offspring.
package breed

import (
	"github.com/MJE43/mogwai-breed-go/internal/genetic"
)

// Parent carries the heritable attributes of one creature.
type Parent struct {
	DNA        genetic.Segment `json:"dna"`
	Generation int             `json:"generation"`
	Rarity     genetic.Rarity  `json:"rarity"`
}

// Offspring is the result of one breeding event.
type Offspring struct {
	BreedType  genetic.BreedType `json:"breed_type"`
	Genome     genetic.Genome    `json:"genome"`
	DNA        genetic.Segment   `json:"dna"`
	Evolution  genetic.Markers   `json:"evolution"`
	Generation int               `json:"generation"`
	Rarity     genetic.Rarity    `json:"rarity"`
}

// Breed pairs both parents, crosses the genome and advances generation and
// rarity, all from the same entropy block.
func Breed(bt genetic.BreedType, p1, p2 Parent, e genetic.Entropy) Offspring {
	g := genetic.Pair(bt, p1.DNA, p2.DNA)
	dna, evo := genetic.Cross(g, e)
	rarity, gen := genetic.Advance(p1.Generation, p1.Rarity, p2.Generation, p2.Rarity, e[:])

	return Offspring{
		BreedType:  bt,
		Genome:     g,
		DNA:        dna,
		Evolution:  evo,
		Generation: gen,
		Rarity:     rarity,
	}
}

// Recombinations counts offspring bytes rewritten by the recombination rule.
func (o Offspring) Recombinations() int {
	n := 0
	for _, m := range o.Evolution {
		if m == genetic.RecombinationMarker {
			n++
		}
	}
	return n
}

// CountMarkers counts nibbles outside recombined bytes whose marker is one of codes.
func (o Offspring) CountMarkers(codes ...byte) int {
	n := 0
	for _, m := range o.Evolution {
		if m == genetic.RecombinationMarker {
			continue
		}
		for _, side := range [2]int{genetic.High, genetic.Low} {
			code := genetic.Nibble(m, side)
			for _, c := range codes {
				if code == c {
					n++
					break
				}
			}
		}
	}
	return n
}

// GeneSum adds up all 32 offspring nibbles.
func (o Offspring) GeneSum() int {
	sum := 0
	for _, b := range o.DNA {
		sum += int(genetic.Nibble(b, genetic.High)) + int(genetic.Nibble(b, genetic.Low))
	}
	return sum
}
