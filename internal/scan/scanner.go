// Package scan searches nonce ranges for offspring whose trait metric
// meets a target.
package scan

import (
	"context"
	"errors"
	"math"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MJE43/mogwai-breed-go/internal/breed"
	"github.com/MJE43/mogwai-breed-go/internal/genetic"
	"github.com/MJE43/mogwai-breed-go/internal/scripting"
)

const batchSize = 8192 // 8k nonces per batch for good throughput

// ScanRequest represents a scan operation request
type ScanRequest struct {
	Criteria
	Limit     int `json:"limit,omitempty"`
	TimeoutMs int `json:"timeout_ms,omitempty"`
}

// Hit represents a single matching result
type Hit struct {
	Nonce     uint64          `json:"nonce"`
	Metric    float64         `json:"metric"`
	Offspring breed.Offspring `json:"offspring"`
}

// Summary contains aggregate statistics
type Summary struct {
	TotalEvaluated  uint64  `json:"total_evaluated"`
	HitsFound       int     `json:"hits_found"`
	MinMetric       float64 `json:"min_metric"`
	MaxMetric       float64 `json:"max_metric"`
	MeanMetric      float64 `json:"mean_metric"`
	PredicateErrors uint64  `json:"predicate_errors,omitempty"`
	LimitReached    bool    `json:"limit_reached,omitempty"`
	TimedOut        bool    `json:"timed_out,omitempty"`
}

// ScanResult contains the complete scan results. Hits are ordered by nonce.
type ScanResult struct {
	Hits    []Hit       `json:"hits"`
	Summary Summary     `json:"summary"`
	Echo    ScanRequest `json:"echo"`
}

// ScanJob represents a batch of nonces to process
type ScanJob struct {
	NonceStart uint64
	NonceEnd   uint64
}

// Scanner performs parallel scanning across nonce ranges
type Scanner struct {
	workerCount int
}

// NewScanner creates a scanner with one worker per available CPU.
func NewScanner() *Scanner {
	return NewScannerWithWorkers(runtime.GOMAXPROCS(0))
}

// NewScannerWithWorkers creates a scanner with a fixed worker count.
func NewScannerWithWorkers(n int) *Scanner {
	if n < 1 {
		n = 1
	}
	return &Scanner{workerCount: n}
}

// Workers returns the number of worker goroutines used per scan.
func (s *Scanner) Workers() int {
	return s.workerCount
}

// scanWorker processes scan jobs and sends hits to the result channel
type scanWorker struct {
	jobs      <-chan ScanJob
	hits      chan<- Hit
	breeder   *breeder
	vm        *scripting.VM
	cutoff    *atomic.Uint64
	evaluated *atomic.Uint64
	failures  *atomic.Uint64
}

// Scan performs a parallel scan across the specified nonce range.
//
// With a limit the result holds the lowest-nonce hits in the range, so the
// same request always returns the same hits regardless of worker count.
// TotalEvaluated may still vary since workers stop at the limit cutoff
// independently.
func (s *Scanner) Scan(ctx context.Context, req ScanRequest) (*ScanResult, error) {
	b, err := newBreeder(req.Criteria)
	if err != nil {
		return nil, err
	}

	// Predicate VMs are built before any worker starts so load errors
	// surface as request errors.
	vms := make([]*scripting.VM, s.workerCount)
	for i := range vms {
		if vms[i], err = b.newVM(); err != nil {
			return nil, err
		}
	}

	if req.TimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(req.TimeoutMs)*time.Millisecond)
		defer cancel()
	}

	jobs := make(chan ScanJob, s.workerCount*2)
	hits := make(chan Hit, 1000)

	var evaluated, failures, cutoff atomic.Uint64
	cutoff.Store(math.MaxUint64)

	var wg sync.WaitGroup
	for i := 0; i < s.workerCount; i++ {
		w := &scanWorker{
			jobs:      jobs,
			hits:      hits,
			breeder:   b,
			vm:        vms[i],
			cutoff:    &cutoff,
			evaluated: &evaluated,
			failures:  &failures,
		}
		wg.Add(1)
		go w.run(ctx, &wg)
	}

	go generateJobs(ctx, jobs, req.NonceStart, req.NonceEnd, &cutoff)
	go func() {
		wg.Wait()
		close(hits)
	}()

	rc := &resultCollector{
		hits:   hits,
		limit:  req.Limit,
		cutoff: &cutoff,
	}
	collected, stopped := rc.collect(ctx)
	if ctx.Err() != nil {
		stopped = true
	}

	if stopped {
		if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ctx.Err()
		}
		if evaluated.Load() == 0 {
			return nil, ErrTimeout
		}
	}

	summary := summarize(collected, evaluated.Load(), stopped)
	summary.PredicateErrors = failures.Load()
	summary.LimitReached = req.Limit > 0 && len(collected) >= req.Limit

	return &ScanResult{
		Hits:    collected,
		Summary: summary,
		Echo:    req,
	}, nil
}

func (sw *scanWorker) run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		select {
		case job, ok := <-sw.jobs:
			if !ok {
				return
			}
			if !sw.processJob(ctx, job) {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// processJob evaluates one batch. It returns false once the context is done.
func (sw *scanWorker) processJob(ctx context.Context, job ScanJob) bool {
	var e genetic.Entropy
	for nonce := job.NonceStart; ; nonce++ {
		if nonce > sw.cutoff.Load() {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		default:
		}

		out := sw.breeder.evaluate(nonce, &e, sw.vm)
		sw.evaluated.Add(1)
		if out.err != nil {
			sw.failures.Add(1)
		} else if out.matched {
			select {
			case sw.hits <- Hit{Nonce: nonce, Metric: out.metric, Offspring: out.offspring}:
			case <-ctx.Done():
				return false
			}
		}

		if nonce == job.NonceEnd {
			return true
		}
	}
}

// generateJobs splits [start, end] into batches in ascending order.
func generateJobs(ctx context.Context, jobs chan<- ScanJob, start, end uint64, cutoff *atomic.Uint64) {
	defer close(jobs)

	for current := start; ; {
		if current > cutoff.Load() {
			return
		}
		batchEnd := end
		if end-current >= batchSize {
			batchEnd = current + batchSize - 1
		}

		select {
		case jobs <- ScanJob{NonceStart: current, NonceEnd: batchEnd}:
		case <-ctx.Done():
			return
		}

		if batchEnd == end {
			return
		}
		current = batchEnd + 1
	}
}

// resultCollector aggregates hits, keeping at most limit of the lowest
// nonces and publishing the highest kept nonce as the cutoff.
type resultCollector struct {
	hits   <-chan Hit
	limit  int
	cutoff *atomic.Uint64
	kept   []Hit
}

// collect drains hits until the workers finish or ctx is done. The second
// return value is true when collection stopped on ctx.
func (rc *resultCollector) collect(ctx context.Context) ([]Hit, bool) {
	initialCap := 1000
	if rc.limit > 0 && rc.limit < initialCap {
		initialCap = rc.limit
	}
	rc.kept = make([]Hit, 0, initialCap)

	stopped := false
loop:
	for {
		select {
		case hit, ok := <-rc.hits:
			if !ok {
				break loop
			}
			rc.add(hit)
		case <-ctx.Done():
			stopped = true
			break loop
		}
	}

	rc.compact()
	return rc.kept, stopped
}

func (rc *resultCollector) add(hit Hit) {
	if rc.limit <= 0 {
		rc.kept = append(rc.kept, hit)
		return
	}
	if hit.Nonce > rc.cutoff.Load() {
		return
	}
	rc.kept = append(rc.kept, hit)
	if len(rc.kept) == rc.limit || len(rc.kept) >= 2*rc.limit {
		rc.compact()
	}
}

// compact sorts kept hits by nonce and trims them to the limit.
func (rc *resultCollector) compact() {
	sort.Slice(rc.kept, func(i, j int) bool { return rc.kept[i].Nonce < rc.kept[j].Nonce })
	if rc.limit > 0 && len(rc.kept) >= rc.limit {
		rc.kept = rc.kept[:rc.limit]
		rc.cutoff.Store(rc.kept[rc.limit-1].Nonce)
	}
}

// summarize computes aggregate statistics. The mean is accumulated in
// decimal so it does not depend on the order hits arrived in.
func summarize(hits []Hit, totalEvaluated uint64, timedOut bool) Summary {
	summary := Summary{
		TotalEvaluated: totalEvaluated,
		HitsFound:      len(hits),
		TimedOut:       timedOut,
	}
	if len(hits) == 0 {
		return summary
	}

	min, max := hits[0].Metric, hits[0].Metric
	sum := decimal.Zero
	for _, h := range hits {
		if h.Metric < min {
			min = h.Metric
		}
		if h.Metric > max {
			max = h.Metric
		}
		sum = sum.Add(decimal.NewFromFloat(h.Metric))
	}

	summary.MinMetric = min
	summary.MaxMetric = max
	summary.MeanMetric = sum.Div(decimal.NewFromInt(int64(len(hits)))).InexactFloat64()
	return summary
}
