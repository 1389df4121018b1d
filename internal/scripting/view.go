package scripting

import (
	"github.com/MJE43/mogwai-breed-go/internal/breed"
	"github.com/MJE43/mogwai-breed-go/internal/genetic"
)

// View is the read-only shape an offspring takes inside a predicate.
type View struct {
	BreedType  string             `json:"breed_type"`
	DNA        string             `json:"dna"`
	Evolution  string             `json:"evolution"`
	Generation int                `json:"generation"`
	Rarity     string             `json:"rarity"`
	Tier       int                `json:"tier"`
	Genes      []int              `json:"genes"`
	Markers    []int              `json:"markers"`
	Traits     map[string]float64 `json:"traits"`
}

// NewView flattens o into plain values. Genes holds the 32 offspring
// nibbles high nibble first; Markers holds the matching marker codes, with
// both nibbles of a recombined byte reported as 3.
func NewView(o breed.Offspring) View {
	v := View{
		BreedType:  o.BreedType.String(),
		DNA:        o.DNA.String(),
		Evolution:  o.Evolution.String(),
		Generation: o.Generation,
		Rarity:     o.Rarity.String(),
		Tier:       int(o.Rarity),
		Genes:      make([]int, 0, genetic.Loci),
		Markers:    make([]int, 0, genetic.Loci),
		Traits:     breed.MeasureAll(o),
	}
	for i := range o.DNA {
		for _, side := range [2]int{genetic.High, genetic.Low} {
			v.Genes = append(v.Genes, int(genetic.Nibble(o.DNA[i], side)))
			v.Markers = append(v.Markers, int(genetic.Nibble(o.Evolution[i], side)))
		}
	}
	return v
}
