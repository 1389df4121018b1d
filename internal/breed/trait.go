package breed

import (
	"sort"
)

// TraitSpec describes a measurable property of an offspring.
type TraitSpec struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MetricLabel string `json:"metric_label"`
	Min         int    `json:"min"`
	Max         int    `json:"max"`
}

// Trait turns an offspring into a single scannable metric.
type Trait interface {
	Spec() TraitSpec
	Measure(o Offspring) float64
}

var registry = map[string]Trait{}

// Register adds a trait to the registry, replacing any trait with the same ID.
func Register(t Trait) {
	registry[t.Spec().ID] = t
}

// GetTrait looks up a trait by ID.
func GetTrait(id string) (Trait, bool) {
	t, ok := registry[id]
	return t, ok
}

// ListTraits returns every registered trait spec ordered by ID.
func ListTraits() []TraitSpec {
	specs := make([]TraitSpec, 0, len(registry))
	for _, t := range registry {
		specs = append(specs, t.Spec())
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].ID < specs[j].ID })
	return specs
}

// TraitIDs returns the registered trait IDs in order.
func TraitIDs() []string {
	specs := ListTraits()
	ids := make([]string, len(specs))
	for i, s := range specs {
		ids[i] = s.ID
	}
	return ids
}

// MeasureAll measures o against every registered trait.
func MeasureAll(o Offspring) map[string]float64 {
	out := make(map[string]float64, len(registry))
	for id, t := range registry {
		out[id] = t.Measure(o)
	}
	return out
}

func init() {
	Register(GenerationTrait{})
	Register(RarityTrait{})
	Register(RecombinationTrait{})
	Register(MutationTrait{})
	Register(InjectionTrait{})
	Register(DominanceTrait{})
	Register(GeneSumTrait{})
}
