package scan

import (
	"fmt"

	"github.com/MJE43/mogwai-breed-go/internal/breed"
	"github.com/MJE43/mogwai-breed-go/internal/engine"
	"github.com/MJE43/mogwai-breed-go/internal/genetic"
	"github.com/MJE43/mogwai-breed-go/internal/scripting"
)

// Criteria is the part of a request shared by every scan mode: which
// pairing to repeat across nonces and what counts as a hit.
type Criteria struct {
	Trait      string             `json:"trait"`
	Parent1    breed.Parent       `json:"parent1"`
	Parent2    breed.Parent       `json:"parent2"`
	BreedType  *genetic.BreedType `json:"breed_type,omitempty"` // nil picks nonce % 4
	Scheme     engine.Scheme      `json:"scheme,omitempty"`
	Seeds      engine.Seeds       `json:"seeds"`
	NonceStart uint64             `json:"nonce_start"`
	NonceEnd   uint64             `json:"nonce_end"`
	TargetOp   TargetOp           `json:"target_op"`
	TargetVal  float64            `json:"target_val"`
	TargetVal2 float64            `json:"target_val2,omitempty"` // for "between" and "outside"
	Tolerance  float64            `json:"tolerance"`
	Predicate  string             `json:"predicate,omitempty"`
}

// breeder repeats one pairing for arbitrary nonces and tests each offspring.
type breeder struct {
	trait     breed.Trait
	evaluator *TargetEvaluator
	predicate *scripting.Predicate
	parent1   breed.Parent
	parent2   breed.Parent
	breedType *genetic.BreedType
	scheme    engine.Scheme
	seeds     engine.Seeds
}

func newBreeder(c Criteria) (*breeder, error) {
	trait, ok := breed.GetTrait(c.Trait)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTraitNotFound, c.Trait)
	}
	if c.NonceEnd < c.NonceStart {
		return nil, fmt.Errorf("%w: end %d before start %d", ErrInvalidRange, c.NonceEnd, c.NonceStart)
	}
	if c.BreedType != nil && !c.BreedType.Valid() {
		return nil, fmt.Errorf("breed type %d out of range", uint8(*c.BreedType))
	}
	scheme, err := engine.ParseScheme(string(c.Scheme))
	if err != nil {
		return nil, err
	}
	evaluator, err := newCheckedEvaluator(c.TargetOp, c.TargetVal, c.TargetVal2, c.Tolerance)
	if err != nil {
		return nil, err
	}

	b := &breeder{
		trait:     trait,
		evaluator: evaluator,
		parent1:   c.Parent1,
		parent2:   c.Parent2,
		breedType: c.BreedType,
		scheme:    scheme,
		seeds:     c.Seeds,
	}
	if c.Predicate != "" {
		b.predicate, err = scripting.Compile(c.Predicate)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPredicate, err)
		}
	}
	return b, nil
}

// newVM returns a predicate VM for one goroutine, or nil without a predicate.
func (b *breeder) newVM() (*scripting.VM, error) {
	if b.predicate == nil {
		return nil, nil
	}
	vm, err := b.predicate.NewVM()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPredicate, err)
	}
	return vm, nil
}

// outcome is the evaluation of a single nonce.
type outcome struct {
	offspring breed.Offspring
	metric    float64
	matched   bool
	err       error
}

func (b *breeder) evaluate(nonce uint64, e *genetic.Entropy, vm *scripting.VM) outcome {
	engine.EntropyInto(e, b.scheme, b.seeds, nonce)

	bt := genetic.BreedTypeForNonce(nonce)
	if b.breedType != nil {
		bt = *b.breedType
	}

	o := breed.Breed(bt, b.parent1, b.parent2, *e)
	out := outcome{offspring: o, metric: b.trait.Measure(o)}
	if !b.evaluator.Matches(out.metric) {
		return out
	}
	if vm != nil {
		out.matched, out.err = vm.Match(o)
		return out
	}
	out.matched = true
	return out
}
