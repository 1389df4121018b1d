package breed

import "github.com/MJE43/mogwai-breed-go/internal/genetic"

// GenerationTrait measures the offspring generation level.
type GenerationTrait struct{}

func (GenerationTrait) Spec() TraitSpec {
	return TraitSpec{ID: "generation", Name: "Generation", MetricLabel: "level", Min: genetic.MinGeneration, Max: genetic.MaxGeneration}
}

func (GenerationTrait) Measure(o Offspring) float64 { return float64(o.Generation) }

// RarityTrait measures the rarity ordinal (0 Minor .. 4 Legendary).
type RarityTrait struct{}

func (RarityTrait) Spec() TraitSpec {
	return TraitSpec{ID: "rarity", Name: "Rarity", MetricLabel: "tier", Min: 0, Max: genetic.RarityTiers - 1}
}

func (RarityTrait) Measure(o Offspring) float64 { return float64(o.Rarity) }

// RecombinationTrait counts bytes rewritten by recombination.
type RecombinationTrait struct{}

func (RecombinationTrait) Spec() TraitSpec {
	return TraitSpec{ID: "recombinations", Name: "Recombinations", MetricLabel: "bytes", Min: 0, Max: genetic.SegmentSize}
}

func (RecombinationTrait) Measure(o Offspring) float64 { return float64(o.Recombinations()) }

// MutationTrait counts nibbles that were incremented (markers 4, 8 and C).
type MutationTrait struct{}

func (MutationTrait) Spec() TraitSpec {
	return TraitSpec{ID: "mutations", Name: "Mutations", MetricLabel: "nibbles", Min: 0, Max: genetic.Loci}
}

func (MutationTrait) Measure(o Offspring) float64 {
	return float64(o.CountMarkers(genetic.MarkerBoostA, genetic.MarkerBoostB, genetic.MarkerFusion))
}

// InjectionTrait counts nibbles taken straight from entropy (markers E and F).
type InjectionTrait struct{}

func (InjectionTrait) Spec() TraitSpec {
	return TraitSpec{ID: "injections", Name: "Entropy injections", MetricLabel: "nibbles", Min: 0, Max: genetic.Loci}
}

func (InjectionTrait) Measure(o Offspring) float64 {
	return float64(o.CountMarkers(genetic.MarkerInverted, genetic.MarkerInjected))
}

// DominanceTrait is the number of nibbles copied from the dominant section
// minus those copied from the recessive section.
type DominanceTrait struct{}

func (DominanceTrait) Spec() TraitSpec {
	return TraitSpec{ID: "dominance", Name: "Dominance", MetricLabel: "balance", Min: -genetic.Loci, Max: genetic.Loci}
}

func (DominanceTrait) Measure(o Offspring) float64 {
	a := o.CountMarkers(genetic.MarkerDominant, genetic.MarkerBoostA)
	b := o.CountMarkers(genetic.MarkerRecessive, genetic.MarkerBoostB)
	return float64(a - b)
}

// GeneSumTrait adds up every offspring nibble.
type GeneSumTrait struct{}

func (GeneSumTrait) Spec() TraitSpec {
	return TraitSpec{ID: "gene_sum", Name: "Gene sum", MetricLabel: "sum", Min: 0, Max: 15 * genetic.Loci}
}

func (GeneSumTrait) Measure(o Offspring) float64 { return float64(o.GeneSum()) }
