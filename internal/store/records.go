package store

import (
	"github.com/MJE43/mogwai-breed-go/internal/engine"
	"github.com/MJE43/mogwai-breed-go/internal/scan"
)

// RunFromScan builds the run record for a finished scan. The server seed is
// reduced to its hash here.
func RunFromScan(res *scan.ScanResult, engineVersion string) *Run {
	req := res.Echo
	run := &Run{
		Trait:             req.Trait,
		Scheme:            string(req.Scheme),
		ServerSeedHash:    engine.HashSeed(req.Seeds.Server),
		ClientSeed:        req.Seeds.Client,
		Parent1DNA:        req.Parent1.DNA.String(),
		Parent1Generation: req.Parent1.Generation,
		Parent1Rarity:     req.Parent1.Rarity.String(),
		Parent2DNA:        req.Parent2.DNA.String(),
		Parent2Generation: req.Parent2.Generation,
		Parent2Rarity:     req.Parent2.Rarity.String(),
		NonceStart:        req.NonceStart,
		NonceEnd:          req.NonceEnd,
		TargetOp:          string(req.TargetOp),
		TargetVal:         req.TargetVal,
		TargetVal2:        req.TargetVal2,
		Tolerance:         req.Tolerance,
		Predicate:         req.Predicate,
		HitLimit:          req.Limit,
		TimedOut:          res.Summary.TimedOut,
		HitCount:          res.Summary.HitsFound,
		TotalEvaluated:    res.Summary.TotalEvaluated,
		SummaryCount:      len(res.Hits),
		EngineVersion:     engineVersion,
	}
	if run.Scheme == "" {
		run.Scheme = string(engine.SchemeHMAC)
	}
	if req.BreedType != nil {
		run.BreedType = req.BreedType.String()
	}

	if len(res.Hits) > 0 {
		min, max := res.Summary.MinMetric, res.Summary.MaxMetric
		sum := 0.0
		for _, h := range res.Hits {
			sum += h.Metric
		}
		run.SummaryMin, run.SummaryMax, run.SummarySum = &min, &max, &sum
	}
	return run
}

// HitsFromScan converts scan hits to hit records.
func HitsFromScan(hits []scan.Hit) []Hit {
	out := make([]Hit, len(hits))
	for i, h := range hits {
		out[i] = Hit{
			Nonce:      h.Nonce,
			Metric:     h.Metric,
			BreedType:  h.Offspring.BreedType.String(),
			DNA:        h.Offspring.DNA.String(),
			Evolution:  h.Offspring.Evolution.String(),
			Generation: h.Offspring.Generation,
			Rarity:     h.Offspring.Rarity.String(),
		}
	}
	return out
}
