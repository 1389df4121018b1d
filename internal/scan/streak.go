package scan

import (
	"context"
	"sort"

	"github.com/MJE43/mogwai-breed-go/internal/genetic"
)

// StreakRequest asks for runs of consecutive nonces that all produce a hit.
type StreakRequest struct {
	Criteria
	MinLength int `json:"min_length"` // shortest run worth recording, default 2
	TopN      int `json:"top_n"`      // 0 = return all, >0 = keep the N longest
}

// Streak is a run of consecutive hits.
type Streak struct {
	StartNonce uint64  `json:"start_nonce"`
	EndNonce   uint64  `json:"end_nonce"`
	Length     int     `json:"length"`
	MetricSum  float64 `json:"metric_sum"`
	Hits       []Hit   `json:"hits"`
}

// StreakResult contains the streaks found in a range.
type StreakResult struct {
	Streaks        []Streak `json:"streaks"`
	TotalFound     int      `json:"total_found"`
	Longest        int      `json:"longest"`
	TotalEvaluated uint64   `json:"total_evaluated"`
	Cancelled      bool     `json:"cancelled,omitempty"`
}

// StreakScanner walks a range in order, since a streak depends on its
// neighbours.
type StreakScanner struct{}

// NewStreakScanner creates a streak scanner.
func NewStreakScanner() *StreakScanner {
	return &StreakScanner{}
}

// Scan performs the streak scan across the nonce range. Streaks are sorted
// longest first, ties broken by the lower start nonce.
func (s *StreakScanner) Scan(ctx context.Context, req StreakRequest) (*StreakResult, error) {
	b, err := newBreeder(req.Criteria)
	if err != nil {
		return nil, err
	}
	vm, err := b.newVM()
	if err != nil {
		return nil, err
	}
	if req.MinLength < 1 {
		req.MinLength = 2
	}

	var (
		streaks   []Streak
		current   []Hit
		sum       float64
		evaluated uint64
		cancelled bool
		e         genetic.Entropy
	)

	flush := func() {
		if len(current) >= req.MinLength {
			run := Streak{
				StartNonce: current[0].Nonce,
				EndNonce:   current[len(current)-1].Nonce,
				Length:     len(current),
				MetricSum:  sum,
				Hits:       make([]Hit, len(current)),
			}
			copy(run.Hits, current)
			streaks = append(streaks, run)
		}
		current = current[:0]
		sum = 0
	}

	for nonce := req.NonceStart; ; nonce++ {
		if nonce%1024 == 0 {
			if ctx.Err() != nil {
				cancelled = true
				break
			}
		}

		out := b.evaluate(nonce, &e, vm)
		evaluated++
		if out.err == nil && out.matched {
			current = append(current, Hit{Nonce: nonce, Metric: out.metric, Offspring: out.offspring})
			sum += out.metric
		} else {
			flush()
		}

		if nonce == req.NonceEnd {
			break
		}
	}
	flush()
	if streaks == nil {
		streaks = []Streak{}
	}

	sort.SliceStable(streaks, func(i, j int) bool {
		if streaks[i].Length != streaks[j].Length {
			return streaks[i].Length > streaks[j].Length
		}
		return streaks[i].StartNonce < streaks[j].StartNonce
	})

	totalFound := len(streaks)
	if req.TopN > 0 && len(streaks) > req.TopN {
		streaks = streaks[:req.TopN]
	}

	longest := 0
	if len(streaks) > 0 {
		longest = streaks[0].Length
	}

	return &StreakResult{
		Streaks:        streaks,
		TotalFound:     totalFound,
		Longest:        longest,
		TotalEvaluated: evaluated,
		Cancelled:      cancelled,
	}, nil
}
