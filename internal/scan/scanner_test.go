package scan

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/MJE43/mogwai-breed-go/internal/breed"
	"github.com/MJE43/mogwai-breed-go/internal/engine"
	"github.com/MJE43/mogwai-breed-go/internal/genetic"
)

func TestTargetEvaluator(t *testing.T) {
	tests := []struct {
		name      string
		op        TargetOp
		val1      float64
		val2      float64
		tolerance float64
		metric    float64
		expected  bool
	}{
		{"equal_exact", OpEqual, 2.0, 0, 0, 2.0, true},
		{"equal_within_tolerance", OpEqual, 2.0, 0, 0.1, 2.05, true},
		{"equal_outside_tolerance", OpEqual, 2.0, 0, 0.01, 2.05, false},
		{"greater_than", OpGreater, 2.0, 0, 0, 2.1, true},
		{"greater_than_false", OpGreater, 2.0, 0, 0, 1.9, false},
		{"greater_equal", OpGreaterEqual, 2.0, 0, 0, 2.0, true},
		{"less_than", OpLess, 2.0, 0, 0, 1.9, true},
		{"less_equal", OpLessEqual, 2.0, 0, 0, 2.0, true},
		{"between_true", OpBetween, 1.0, 3.0, 0, 2.0, true},
		{"between_false", OpBetween, 1.0, 3.0, 0, 4.0, false},
		{"outside_true", OpOutside, 1.0, 3.0, 0, 4.0, true},
		{"outside_false", OpOutside, 1.0, 3.0, 0, 2.0, false},
		{"unknown_op", TargetOp("ne"), 1.0, 0, 0, 2.0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evaluator := NewTargetEvaluator(tt.op, tt.val1, tt.val2, tt.tolerance)
			result := evaluator.Matches(tt.metric)
			if result != tt.expected {
				t.Errorf("Expected %v, got %v for metric %f", tt.expected, result, tt.metric)
			}
		})
	}
}

func mustParent(t *testing.T, dna string, gen int, r genetic.Rarity) breed.Parent {
	t.Helper()
	seg, err := genetic.ParseSegment(dna)
	if err != nil {
		t.Fatalf("ParseSegment: %v", err)
	}
	return breed.Parent{DNA: seg, Generation: gen, Rarity: r}
}

// baseCriteria scans nonces 1..2000 of a fixed pairing for offspring with
// at least 12 incremented nibbles.
func baseCriteria(t *testing.T) Criteria {
	t.Helper()
	return Criteria{
		Trait:      "mutations",
		Parent1:    mustParent(t, "00112233445566778899aabbccddeeff", 3, genetic.Rare),
		Parent2:    mustParent(t, "ffeeddccbbaa99887766554433221100", 5, genetic.Epic),
		Scheme:     engine.SchemeHMAC,
		Seeds:      engine.Seeds{Server: "scan_server", Client: "scan_client"},
		NonceStart: 1,
		NonceEnd:   2000,
		TargetOp:   OpGreaterEqual,
		TargetVal:  12,
	}
}

func nonces(hits []Hit) []uint64 {
	out := make([]uint64, len(hits))
	for i, h := range hits {
		out[i] = h.Nonce
	}
	return out
}

func TestScannerKnownRange(t *testing.T) {
	result, err := NewScanner().Scan(context.Background(), ScanRequest{Criteria: baseCriteria(t)})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if result.Summary.TotalEvaluated != 2000 {
		t.Errorf("Expected 2000 evaluations, got %d", result.Summary.TotalEvaluated)
	}
	if result.Summary.HitsFound != 530 || len(result.Hits) != 530 {
		t.Fatalf("Expected 530 hits, got %d (%d in slice)", result.Summary.HitsFound, len(result.Hits))
	}

	want := []uint64{7, 9, 11, 13, 16, 19, 21, 25, 33, 35}
	if got := nonces(result.Hits[:10]); !reflect.DeepEqual(got, want) {
		t.Errorf("First hits = %v, want %v", got, want)
	}
	for i := 1; i < len(result.Hits); i++ {
		if result.Hits[i-1].Nonce >= result.Hits[i].Nonce {
			t.Fatalf("Hits not ordered at %d: %d then %d", i, result.Hits[i-1].Nonce, result.Hits[i].Nonce)
		}
	}

	if result.Summary.MinMetric != 12 || result.Summary.MaxMetric != 18 {
		t.Errorf("Expected metric range [12,18], got [%v,%v]", result.Summary.MinMetric, result.Summary.MaxMetric)
	}
	if math.Abs(result.Summary.MeanMetric-7003.0/530.0) > 1e-9 {
		t.Errorf("Expected mean %v, got %v", 7003.0/530.0, result.Summary.MeanMetric)
	}
}

func TestScannerHitsMatchDirectBreeding(t *testing.T) {
	c := baseCriteria(t)
	c.NonceEnd = 300
	result, err := NewScanner().Scan(context.Background(), ScanRequest{Criteria: c})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	trait, _ := breed.GetTrait(c.Trait)
	for _, h := range result.Hits {
		e := engine.Entropy(c.Scheme, c.Seeds, h.Nonce)
		o := breed.Breed(genetic.BreedTypeForNonce(h.Nonce), c.Parent1, c.Parent2, e)
		if o != h.Offspring {
			t.Fatalf("Nonce %d: offspring differs from direct breeding", h.Nonce)
		}
		if trait.Measure(o) != h.Metric {
			t.Fatalf("Nonce %d: metric %v, direct %v", h.Nonce, h.Metric, trait.Measure(o))
		}
	}
}

func TestScannerOtherTraits(t *testing.T) {
	tests := []struct {
		name  string
		trait string
		op    TargetOp
		val   float64
		want  []uint64
	}{
		{"generation_seven", "generation", OpGreaterEqual, 7, []uint64{656, 747, 1147, 1491, 1553, 1895}},
		{"legendary", "rarity", OpEqual, 4, []uint64{747, 1895}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := baseCriteria(t)
			c.Trait, c.TargetOp, c.TargetVal = tt.trait, tt.op, tt.val
			result, err := NewScanner().Scan(context.Background(), ScanRequest{Criteria: c})
			if err != nil {
				t.Fatalf("Scan failed: %v", err)
			}
			if got := nonces(result.Hits); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Hits = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScannerFixedBreedType(t *testing.T) {
	c := baseCriteria(t)
	bt := genetic.RezDom
	c.BreedType = &bt

	result, err := NewScanner().Scan(context.Background(), ScanRequest{Criteria: c})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(result.Hits) != 70 {
		t.Errorf("Expected 70 RezDom hits, got %d", len(result.Hits))
	}
	for _, h := range result.Hits {
		if h.Offspring.BreedType != genetic.RezDom {
			t.Fatalf("Nonce %d bred as %s", h.Nonce, h.Offspring.BreedType)
		}
	}
}

func TestScannerLimitIsDeterministic(t *testing.T) {
	want := []uint64{7, 9, 11, 13, 16, 19, 21, 25, 33, 35}

	for _, workers := range []int{1, 2, 4, 16} {
		req := ScanRequest{Criteria: baseCriteria(t), Limit: 10}
		result, err := NewScannerWithWorkers(workers).Scan(context.Background(), req)
		if err != nil {
			t.Fatalf("workers=%d: Scan failed: %v", workers, err)
		}
		if got := nonces(result.Hits); !reflect.DeepEqual(got, want) {
			t.Errorf("workers=%d: hits = %v, want %v", workers, got, want)
		}
		if !result.Summary.LimitReached {
			t.Errorf("workers=%d: expected LimitReached", workers)
		}
	}
}

func TestScannerWorkerCountInvariance(t *testing.T) {
	var baseline []uint64
	for _, workers := range []int{1, 3, 8} {
		result, err := NewScannerWithWorkers(workers).Scan(context.Background(), ScanRequest{Criteria: baseCriteria(t)})
		if err != nil {
			t.Fatalf("Scan failed: %v", err)
		}
		got := nonces(result.Hits)
		if baseline == nil {
			baseline = got
			continue
		}
		if !reflect.DeepEqual(got, baseline) {
			t.Errorf("workers=%d produced different hits", workers)
		}
	}
}

func TestScannerPredicate(t *testing.T) {
	c := baseCriteria(t)
	c.Predicate = "o.generation >= 5"

	result, err := NewScannerWithWorkers(4).Scan(context.Background(), ScanRequest{Criteria: c})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(result.Hits) != 137 {
		t.Errorf("Expected 137 hits, got %d", len(result.Hits))
	}
	for _, h := range result.Hits {
		if h.Offspring.Generation < 5 {
			t.Fatalf("Nonce %d has generation %d", h.Nonce, h.Offspring.Generation)
		}
	}
}

func TestScannerPredicateErrorsAreCounted(t *testing.T) {
	c := baseCriteria(t)
	c.NonceEnd = 100
	c.TargetOp, c.TargetVal = OpGreaterEqual, 0
	c.Predicate = "o.missing.field"

	result, err := NewScanner().Scan(context.Background(), ScanRequest{Criteria: c})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(result.Hits) != 0 {
		t.Errorf("Expected no hits, got %d", len(result.Hits))
	}
	if result.Summary.PredicateErrors != 100 {
		t.Errorf("Expected 100 predicate errors, got %d", result.Summary.PredicateErrors)
	}
}

func TestScannerSingleNonce(t *testing.T) {
	c := baseCriteria(t)
	c.NonceStart, c.NonceEnd = 7, 7

	result, err := NewScanner().Scan(context.Background(), ScanRequest{Criteria: c})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if result.Summary.TotalEvaluated != 1 || len(result.Hits) != 1 {
		t.Errorf("Expected one evaluation and one hit, got %d and %d", result.Summary.TotalEvaluated, len(result.Hits))
	}
}

func TestScannerRangeEnd(t *testing.T) {
	c := baseCriteria(t)
	c.NonceStart, c.NonceEnd = math.MaxUint64-5, math.MaxUint64
	c.TargetOp, c.TargetVal = OpGreaterEqual, 0

	result, err := NewScanner().Scan(context.Background(), ScanRequest{Criteria: c})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if result.Summary.TotalEvaluated != 6 {
		t.Errorf("Expected 6 evaluations, got %d", result.Summary.TotalEvaluated)
	}
}

func TestScannerValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Criteria)
		want   error
	}{
		{"unknown_trait", func(c *Criteria) { c.Trait = "wings" }, ErrTraitNotFound},
		{"reversed_range", func(c *Criteria) { c.NonceStart, c.NonceEnd = 10, 5 }, ErrInvalidRange},
		{"unknown_op", func(c *Criteria) { c.TargetOp = "ne" }, ErrInvalidTarget},
		{"between_reversed", func(c *Criteria) { c.TargetOp, c.TargetVal, c.TargetVal2 = OpBetween, 5, 1 }, ErrInvalidTarget},
		{"bad_predicate", func(c *Criteria) { c.Predicate = "o.generation >" }, ErrInvalidPredicate},
		{"unknown_scheme", func(c *Criteria) { c.Scheme = "md5" }, engine.ErrUnknownScheme},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := baseCriteria(t)
			tt.mutate(&c)
			_, err := NewScanner().Scan(context.Background(), ScanRequest{Criteria: c})
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestScannerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := baseCriteria(t)
	c.NonceEnd = 10_000_000
	_, err := NewScanner().Scan(ctx, ScanRequest{Criteria: c})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestScannerTimeout(t *testing.T) {
	c := baseCriteria(t)
	c.NonceEnd = math.MaxUint64

	result, err := NewScanner().Scan(context.Background(), ScanRequest{Criteria: c, TimeoutMs: 20})
	if err != nil {
		if !errors.Is(err, ErrTimeout) {
			t.Fatalf("Expected ErrTimeout or partial result, got %v", err)
		}
		return
	}
	if !result.Summary.TimedOut {
		t.Error("Expected TimedOut in summary")
	}
	if result.Summary.TotalEvaluated == 0 {
		t.Error("Expected some evaluations before timeout")
	}
}

func BenchmarkScan(b *testing.B) {
	p1, _ := genetic.ParseSegment("00112233445566778899aabbccddeeff")
	p2, _ := genetic.ParseSegment("ffeeddccbbaa99887766554433221100")
	req := ScanRequest{Criteria: Criteria{
		Trait:      "gene_sum",
		Parent1:    breed.Parent{DNA: p1, Generation: 3, Rarity: genetic.Rare},
		Parent2:    breed.Parent{DNA: p2, Generation: 5, Rarity: genetic.Epic},
		Seeds:      engine.Seeds{Server: "bench_server", Client: "bench_client"},
		NonceStart: 1,
		NonceEnd:   100_000,
		TargetOp:   OpGreaterEqual,
		TargetVal:  400,
	}}
	scanner := NewScanner()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := scanner.Scan(context.Background(), req); err != nil {
			b.Fatal(err)
		}
	}
}
