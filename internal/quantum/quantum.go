// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package quantum runs N task variations concurrently and collapses them to
// one result by a chosen strategy. The worker-pool-plus-per-index-result
// concurrency pattern is grounded on orchestrator/workflow_engine.go's
// executeStepsParallel, generalized with a bounded semaphore and per-variation
// cancellation so FIRST_SUCCESS can cancel siblings cooperatively.
package quantum

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"axonflow/corerouter/internal/types"
)

// ScoringFunc ranks a successful variation's value for BEST_SCORE/COMBINED.
type ScoringFunc func(value any) float64

// Option configures an Execute call.
type Option func(*options)

type options struct {
	scoringFn  ScoringFunc
	timeout    time.Duration
	poolSize   int
	perVarTTL  time.Duration
}

// WithScoringFunc sets the scoring function required by BEST_SCORE and used
// to pick COMBINED's primary result.
func WithScoringFunc(fn ScoringFunc) Option {
	return func(o *options) { o.scoringFn = fn }
}

// WithTimeout bounds the whole Execute call; pending variations are
// cancelled when it elapses.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithPoolSize bounds how many variations run concurrently. Defaults to
// runtime.NumCPU().
func WithPoolSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.poolSize = n
		}
	}
}

// WithVariationTimeout bounds each individual variation.
func WithVariationTimeout(d time.Duration) Option {
	return func(o *options) { o.perVarTTL = d }
}

// ErrScoringFnRequired is returned when BEST_SCORE is requested without a
// scoring function. COMBINED without one takes the first success as its
// primary result.
var ErrScoringFnRequired = fmt.Errorf("quantum: scoring_fn is required for this collapse strategy")

type runResult struct {
	index  int
	result types.QuantumResult
}

// Execute runs variations concurrently and collapses them per strategy.
func Execute(ctx context.Context, variations []types.TaskVariation, strategy types.CollapseStrategy, opts ...Option) (types.QuantumResult, error) {
	o := options{poolSize: runtime.NumCPU()}
	for _, opt := range opts {
		opt(&o)
	}
	if (strategy == types.CollapseBestScore) && o.scoringFn == nil {
		return types.QuantumResult{}, ErrScoringFnRequired
	}
	if len(variations) == 0 {
		return types.QuantumResult{Success: false, Error: "quantum: no variations supplied"}, nil
	}

	runCtx := ctx
	var cancelGlobal context.CancelFunc
	if o.timeout > 0 {
		runCtx, cancelGlobal = context.WithTimeout(ctx, o.timeout)
		defer cancelGlobal()
	}

	switch strategy {
	case types.CollapseFirstSuccess:
		return executeFirstSuccess(runCtx, variations, o)
	default:
		results := executeAll(runCtx, variations, o)
		switch strategy {
		case types.CollapseBestScore:
			return collapseBestScore(results, o.scoringFn)
		case types.CollapseConsensus:
			return collapseConsensus(results)
		case types.CollapseCombined:
			return collapseCombined(results, o.scoringFn)
		case types.CollapseWeighted:
			return collapseWeighted(results)
		default:
			return types.QuantumResult{}, fmt.Errorf("quantum: unknown collapse strategy %q", strategy)
		}
	}
}

// executeAll runs every variation to completion (subject to the caller's
// deadline) and returns results indexed identically to the input slice.
func executeAll(ctx context.Context, variations []types.TaskVariation, o options) []types.QuantumResult {
	results := make([]types.QuantumResult, len(variations))
	sem := make(chan struct{}, o.poolSize)
	var wg sync.WaitGroup

	for i, v := range variations {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, variation types.TaskVariation) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = runVariation(ctx, variation, o.perVarTTL)
		}(i, v)
	}
	wg.Wait()
	return results
}

// executeFirstSuccess races variations and cancels siblings once one
// succeeds. Ordering is arrival order on the completion channel.
func executeFirstSuccess(ctx context.Context, variations []types.TaskVariation, o options) (types.QuantumResult, error) {
	varCtx, cancelAll := context.WithCancel(ctx)
	defer cancelAll()

	ch := make(chan runResult, len(variations))
	sem := make(chan struct{}, o.poolSize)
	var wg sync.WaitGroup

	for i, v := range variations {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, variation types.TaskVariation) {
			defer wg.Done()
			defer func() { <-sem }()
			r := runVariation(varCtx, variation, o.perVarTTL)
			select {
			case ch <- runResult{index: idx, result: r}:
			case <-varCtx.Done():
			}
		}(i, v)
	}

	go func() {
		wg.Wait()
		close(ch)
	}()

	var failures []string
	for rr := range ch {
		if rr.result.Success {
			cancelAll()
			// Drain remaining sends so goroutines don't block forever on ch.
			go func() {
				for range ch {
				}
			}()
			return rr.result, nil
		}
		failures = append(failures, fmt.Sprintf("%s: %s", rr.result.VariationID, rr.result.Error))
	}

	return types.QuantumResult{
		Success: false,
		Error:   fmt.Sprintf("quantum: all variations failed: %v", failures),
	}, nil
}

func runVariation(ctx context.Context, v types.TaskVariation, perVarTTL time.Duration) types.QuantumResult {
	taskCtx := ctx
	var cancel context.CancelFunc
	if perVarTTL > 0 {
		taskCtx, cancel = context.WithTimeout(ctx, perVarTTL)
		defer cancel()
	}

	start := time.Now()
	value, err := safeRun(taskCtx, v)
	elapsed := time.Since(start)

	if err != nil {
		return types.QuantumResult{
			VariationID:   v.ID,
			Success:       false,
			Error:         err.Error(),
			ExecutionTime: elapsed,
		}
	}
	return types.QuantumResult{
		VariationID:   v.ID,
		Success:       true,
		Value:         value,
		ExecutionTime: elapsed,
	}
}

// safeRun captures panics from variation bodies into an error, since
// exceptions (panics, in Go) must never propagate out of the executor.
func safeRun(ctx context.Context, v types.TaskVariation) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("variation %s panicked: %v", v.ID, r)
		}
	}()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return v.Task(ctx, v.Params)
}

func successes(results []types.QuantumResult) []types.QuantumResult {
	out := make([]types.QuantumResult, 0, len(results))
	for _, r := range results {
		if r.Success {
			out = append(out, r)
		}
	}
	return out
}

func collapseBestScore(results []types.QuantumResult, scoringFn ScoringFunc) (types.QuantumResult, error) {
	succ := successes(results)
	if len(succ) == 0 {
		return types.QuantumResult{Success: false, Error: "quantum: no successful variations for best_score"}, nil
	}
	sort.SliceStable(succ, func(i, j int) bool {
		si, sj := scoringFn(succ[i].Value), scoringFn(succ[j].Value)
		if si != sj {
			return si > sj
		}
		return succ[i].ExecutionTime < succ[j].ExecutionTime
	})
	return succ[0], nil
}

func collapseConsensus(results []types.QuantumResult) (types.QuantumResult, error) {
	succ := successes(results)
	if len(succ) == 0 {
		return types.QuantumResult{Success: false, Error: "quantum: no successful variations for consensus"}, nil
	}

	type group struct {
		members []types.QuantumResult
	}
	var groups []group
	for _, r := range succ {
		placed := false
		for i := range groups {
			if structurallyEqual(groups[i].members[0].Value, r.Value) {
				groups[i].members = append(groups[i].members, r)
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, group{members: []types.QuantumResult{r}})
		}
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if len(groups[i].members) != len(groups[j].members) {
			return len(groups[i].members) > len(groups[j].members)
		}
		return medianExecutionTime(groups[i].members) < medianExecutionTime(groups[j].members)
	})

	winner := groups[0].members[0]
	winner.Metadata = map[string]any{"consensus_size": len(groups[0].members), "total_successes": len(succ)}
	return winner, nil
}

func medianExecutionTime(results []types.QuantumResult) time.Duration {
	durs := make([]time.Duration, len(results))
	for i, r := range results {
		durs[i] = r.ExecutionTime
	}
	sort.Slice(durs, func(i, j int) bool { return durs[i] < durs[j] })
	return durs[len(durs)/2]
}

// structurallyEqual compares two variation values for CONSENSUS grouping,
// recursing into maps and slices the way dict/list equality does.
func structurallyEqual(a, b any) bool {
	switch av := a.(type) {
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			bvv, ok := bv[k]
			if !ok || !structurallyEqual(v, bvv) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !structurallyEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

func collapseCombined(results []types.QuantumResult, scoringFn ScoringFunc) (types.QuantumResult, error) {
	succ := successes(results)
	if len(succ) == 0 {
		return types.QuantumResult{Success: false, Error: "quantum: no successful variations for combined"}, nil
	}

	primary := succ[0]
	if scoringFn != nil {
		best := succ[0]
		bestScore := scoringFn(best.Value)
		for _, r := range succ[1:] {
			if s := scoringFn(r.Value); s > bestScore {
				best, bestScore = r, s
			}
		}
		primary = best
	}

	alternatives := make([]types.QuantumResult, 0, len(succ)-1)
	variationIDs := make([]string, len(succ))
	executionTimes := make(map[string]time.Duration, len(succ))
	for i, r := range succ {
		variationIDs[i] = r.VariationID
		executionTimes[r.VariationID] = r.ExecutionTime
		if r.VariationID != primary.VariationID {
			alternatives = append(alternatives, r)
		}
	}

	return types.QuantumResult{
		Success:       true,
		VariationID:   primary.VariationID,
		Value:         primary.Value,
		ExecutionTime: primary.ExecutionTime,
		Metadata: map[string]any{
			"primary":         primary,
			"alternatives":    alternatives,
			"execution_times": executionTimes,
			"variation_ids":   variationIDs,
		},
	}, nil
}

// WeightedCandidate is one entry in a WEIGHTED collapse: a named candidate
// carrying its own confidence, combined with a caller-assigned prior weight.
type WeightedCandidate struct {
	Key        string
	Confidence float64
	Weight     float64
	Value      any
}

// collapseWeighted sums weight*confidence per distinct result value and
// returns the QuantumResult carrying the winning value; it expects each
// successful result's Value to be a WeightedCandidate.
func collapseWeighted(results []types.QuantumResult) (types.QuantumResult, error) {
	succ := successes(results)
	if len(succ) == 0 {
		return types.QuantumResult{Success: false, Error: "quantum: no successful variations for weighted"}, nil
	}

	totals := make(map[string]float64)
	best := make(map[string]types.QuantumResult)
	for _, r := range succ {
		wc, ok := r.Value.(WeightedCandidate)
		if !ok {
			continue
		}
		totals[wc.Key] += wc.Weight * wc.Confidence
		if _, seen := best[wc.Key]; !seen {
			best[wc.Key] = r
		}
	}
	if len(totals) == 0 {
		return types.QuantumResult{Success: false, Error: "quantum: weighted collapse requires WeightedCandidate values"}, nil
	}

	var winnerKey string
	var winnerTotal float64
	first := true
	for k, total := range totals {
		if first || total > winnerTotal {
			winnerKey, winnerTotal, first = k, total, false
		}
	}

	winner := best[winnerKey]
	winner.Metadata = map[string]any{"aggregate_weight": winnerTotal, "candidate_key": winnerKey}
	return winner, nil
}
