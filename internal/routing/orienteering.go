package routing

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"scenic-route-planner/internal/models"
)

// trialAccumulator folds the trials run by one worker. A worker receives its
// trials in increasing order.
type trialAccumulator interface {
	add(trial int, res models.PathResult)
}

type trialWorker struct {
	acc            trialAccumulator
	violation      *ErrInvariantViolation
	violationTrial int
}

// runTrials runs n trials of one pair on a bounded worker pool. Each worker
// folds its results into its own accumulator; the accumulators are returned
// for merging. The context is checked before a trial is handed out; a started
// trial always completes. Unreachable trials are dropped, invariant violations
// are logged (or panic in strict mode once the pool has drained).
func runTrials(ctx context.Context, b *pathBuilder, pairIdx, n int, opts Options, newAcc func() trialAccumulator) ([]trialAccumulator, error) {
	if n == 0 {
		return nil, nil
	}

	workers := make([]trialWorker, min(opts.workers(), n))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := range workers {
		workers[w].acc = newAcc()
		wg.Add(1)
		go func(tw *trialWorker) {
			defer wg.Done()
			for trial := range jobs {
				res, err := b.build(trialRNG(opts.Seed, pairIdx, trial))
				if err != nil {
					var iv *ErrInvariantViolation
					if errors.As(err, &iv) {
						log.Printf("[ORIENTEERING][INVARIANT] trial=%d skipped: %v", trial, iv)
						if tw.violation == nil {
							tw.violation, tw.violationTrial = iv, trial
						}
					}
					continue
				}
				tw.acc.add(trial, res)
			}
		}(&workers[w])
	}

	var ctxErr error
	for trial := 0; trial < n; trial++ {
		if err := ctx.Err(); err != nil {
			ctxErr = err
			break
		}
		jobs <- trial
	}
	close(jobs)
	wg.Wait()

	if ctxErr != nil {
		return nil, ctxErr
	}
	if opts.Strict {
		if iv := firstViolation(workers); iv != nil {
			panic(iv)
		}
	}

	accs := make([]trialAccumulator, len(workers))
	for i := range workers {
		accs[i] = workers[i].acc
	}
	return accs, nil
}

// firstViolation returns the invariant violation of the lowest trial
func firstViolation(workers []trialWorker) *ErrInvariantViolation {
	var first *ErrInvariantViolation
	firstTrial := 0
	for _, w := range workers {
		if w.violation != nil && (first == nil || w.violationTrial < firstTrial) {
			first, firstTrial = w.violation, w.violationTrial
		}
	}
	return first
}

// bestTrial keeps the best path and the trial that first produced it
type bestTrial struct {
	result models.PathResult
	trial  int
	found  bool
}

func (a *bestTrial) add(trial int, res models.PathResult) {
	a.offer(trial, res)
}

// offer keeps res when it beats the current best, or equals it and comes from
// an earlier trial. It reports whether res was kept.
func (a *bestTrial) offer(trial int, res models.PathResult) bool {
	if a.found && !Better(res, a.result) && (Better(a.result, res) || trial >= a.trial) {
		return false
	}
	a.result, a.trial, a.found = res, trial, true
	return true
}

type rankedTrial struct {
	result models.PathResult
	trial  int
}

// distinctTrials keeps one copy of every distinct path with the earliest
// trial that produced it
type distinctTrials struct {
	index map[string]int
	items []rankedTrial
}

func newDistinctTrials() *distinctTrials {
	return &distinctTrials{index: make(map[string]int)}
}

func (a *distinctTrials) add(trial int, res models.PathResult) {
	key := res.Key()
	if i, ok := a.index[key]; ok {
		if trial < a.items[i].trial {
			a.items[i].trial = trial
		}
		return
	}
	a.index[key] = len(a.items)
	a.items = append(a.items, rankedTrial{result: res, trial: trial})
}

// inTrialOrder returns the paths ordered by the trial that first produced them
func (a *distinctTrials) inTrialOrder() []models.PathResult {
	sort.Slice(a.items, func(i, j int) bool { return a.items[i].trial < a.items[j].trial })
	out := make([]models.PathResult, len(a.items))
	for i, it := range a.items {
		out[i] = it.result
	}
	return out
}

// fallbackPath is the direct origin to destination path with score 0
func fallbackPath(b *pathBuilder) (models.PathResult, bool) {
	direct, ok := b.distances.TryGet(b.origin, b.dest)
	if !ok {
		return models.PathResult{}, false
	}
	return models.PathResult{
		Path:   []models.NodeID{b.origin, b.dest},
		Score:  0,
		Length: direct,
	}, true
}

// SolvePair runs opts.Trials random walks from origin to dest and returns the
// best path found. When the direct distance already exceeds the budget the
// direct path is returned without running trials.
func SolvePair(ctx context.Context, origin, dest models.NodeID, budget float64, scores models.ScoreMap, distances models.DistanceTable, opts Options) (models.PathResult, error) {
	if err := validateBudget(budget); err != nil {
		return models.PathResult{}, err
	}
	if err := opts.Validate(); err != nil {
		return models.PathResult{}, err
	}
	if err := validateScores(scores, []models.NodeID{origin, dest}); err != nil {
		return models.PathResult{}, err
	}
	if err := validateDistances(distances); err != nil {
		return models.PathResult{}, err
	}

	b := newPathBuilder(origin, dest, budget, scores, distances, opts.PowerParam, opts.LengthParam)
	return solvePair(ctx, 0, b, opts.Trials, opts)
}

func solvePair(ctx context.Context, pairIdx int, b *pathBuilder, trials int, opts Options) (models.PathResult, error) {
	best := &bestTrial{}
	if direct, ok := fallbackPath(b); ok {
		if direct.Length > b.budget {
			log.Printf("[ORIENTEERING] Direct distance exceeds budget: origin=%d dest=%d direct=%.0f budget=%.0f", b.origin, b.dest, direct.Length, b.budget)
			return direct, nil
		}
		// The direct path precedes every trial
		best.offer(-1, direct)
	}

	accs, err := runTrials(ctx, b, pairIdx, trials, opts, func() trialAccumulator { return &bestTrial{} })
	if err != nil {
		return models.PathResult{}, err
	}

	for _, acc := range accs {
		local := acc.(*bestTrial)
		if local.found && best.offer(local.trial, local.result) {
			log.Printf("[ORIENTEERING] Best improved: origin=%d dest=%d path=%v score=%.2f length=%.0f trial=%d",
				b.origin, b.dest, best.result.Path, best.result.Score, best.result.Length, best.trial)
		}
	}

	if !best.found {
		return models.PathResult{}, ErrUnreachable
	}
	return best.result, nil
}

// solvePairDistinct runs the trials of one pair and returns up to n of the
// best distinct paths, the direct fallback included.
func solvePairDistinct(ctx context.Context, pairIdx int, b *pathBuilder, trials, n int, opts Options) ([]models.PathResult, error) {
	fallback, connected := fallbackPath(b)
	if connected && fallback.Length > b.budget {
		log.Printf("[ORIENTEERING] Direct distance exceeds budget: origin=%d dest=%d direct=%.0f budget=%.0f", b.origin, b.dest, fallback.Length, b.budget)
		return []models.PathResult{fallback}, nil
	}

	accs, err := runTrials(ctx, b, pairIdx, trials, opts, func() trialAccumulator { return newDistinctTrials() })
	if err != nil {
		return nil, err
	}

	merged := newDistinctTrials()
	if connected {
		merged.add(-1, fallback)
	}
	for _, acc := range accs {
		for _, it := range acc.(*distinctTrials).items {
			merged.add(it.trial, it.result)
		}
	}
	distinct := merged.inTrialOrder()

	if len(distinct) == 0 {
		return nil, ErrUnreachable
	}
	return SelectBest(distinct, n), nil
}

type pairJob struct {
	origin models.NodeID
	dest   models.NodeID
}

// Solve plans up to nOptions paths across every origin/destination pair.
// The trial budget is split evenly between pairs by integer division; the
// remainder is not used. Pairs run on a pool of Options.Workers goroutines
// and are merged by SelectBest.
func Solve(ctx context.Context, req *Request, nOptions int) ([]models.PathResult, error) {
	if err := req.Validate(nOptions); err != nil {
		return nil, err
	}

	pairs := make([]pairJob, 0, len(req.Origins)*len(req.Destinations))
	for _, o := range req.Origins {
		for _, d := range req.Destinations {
			pairs = append(pairs, pairJob{origin: o, dest: d})
		}
	}
	perPair := req.Options.Trials / len(pairs)

	log.Printf("[ORIENTEERING] Starting solve: origins=%d destinations=%d pois=%d budget=%.0f trials_per_pair=%d options=%d",
		len(req.Origins), len(req.Destinations), len(req.Scores), req.BudgetMeters, perPair, nOptions)

	results := make([][]models.PathResult, len(pairs))
	errs := make([]error, len(pairs))
	panics := make([]any, len(pairs))

	solveOne := func(i int) {
		defer func() {
			if r := recover(); r != nil {
				panics[i] = r
			}
		}()
		p := pairs[i]
		b := newPathBuilder(p.origin, p.dest, req.BudgetMeters, req.Scores, req.Distances, req.Options.PowerParam, req.Options.LengthParam)
		results[i], errs[i] = solvePairDistinct(ctx, i, b, perPair, nOptions, req.Options)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < min(req.Options.workers(), len(pairs)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				solveOne(i)
			}
		}()
	}
	for i := range pairs {
		if ctx.Err() != nil {
			break
		}
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for _, r := range panics {
		if r != nil {
			panic(r)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var all []models.PathResult
	for i, err := range errs {
		if errors.Is(err, ErrUnreachable) {
			log.Printf("[ORIENTEERING] Pair unreachable: origin=%d dest=%d", pairs[i].origin, pairs[i].dest)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to solve pair %d->%d: %w", pairs[i].origin, pairs[i].dest, err)
		}
		for _, r := range results[i] {
			key := r.Key()
			if seen[key] {
				continue
			}
			seen[key] = true
			all = append(all, r)
		}
	}

	if len(all) == 0 {
		log.Printf("[ORIENTEERING] No route found: pairs=%d", len(pairs))
		return nil, &ErrNoRoute{Pairs: len(pairs)}
	}

	best := SelectBest(all, nOptions)
	log.Printf("[ORIENTEERING] Solve complete: candidates=%d returned=%d best_score=%.2f best_length=%.0f",
		len(all), len(best), best[0].Score, best[0].Length)
	return best, nil
}
