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

// Package quantumrouting implements the Quantum Routing Manager (component
// G): it runs several RoutingStrategy variants concurrently through the
// Quantum Executor and collapses them into one RoutingDecision, falling
// back to a single synchronous Advanced Router call on total failure --
// mirroring the teacher's Router.getFallbackProvider failover idiom in
// internal/provider/router.go.
package quantumrouting

import (
	"context"
	"fmt"
	"sync"

	"axonflow/corerouter/internal/quantum"
	"axonflow/corerouter/internal/registry"
	"axonflow/corerouter/internal/router"
	"axonflow/corerouter/internal/types"
)

// strategyPriorWeight is WEIGHTED collapse's fixed per-strategy prior,
// resolved in SPEC_FULL.md section 4.G.
var strategyPriorWeight = map[types.RoutingStrategy]float64{
	types.StrategyLearningOptimized:  1.2,
	types.StrategyTaskOptimized:      1.1,
	types.StrategyPerformanceFocused: 1.0,
	types.StrategyBalanced:           1.0,
	types.StrategyCostEfficient:      0.9,
}

// strategyWeights maps a RoutingStrategy to the router.Weights preset it
// drives.
var strategyWeights = map[types.RoutingStrategy]router.Weights{
	types.StrategyTaskOptimized:      router.TaskOptimizedWeights,
	types.StrategyPerformanceFocused: router.PerformanceFocusedWeights,
	types.StrategyBalanced:           router.BalancedWeights,
	types.StrategyCostEfficient:      router.CostEfficientWeights,
}

// LearningPolicy supplies a routing decision for the LEARNING_OPTIMIZED
// strategy, typically backed by internal/dqn. It is optional: when nil,
// LEARNING_OPTIMIZED is skipped.
type LearningPolicy interface {
	Route(ctx context.Context, req types.Request) (types.RoutingDecision, error)
}

// Manager is the Quantum Routing Manager.
type Manager struct {
	registry    *registry.Registry
	fallbackRtr *router.Router
	learning    LearningPolicy
}

// New builds a Manager over the Model Registry and an optional learning
// policy. The synchronous fallback path routes with BalancedWeights.
func New(reg *registry.Registry, learning LearningPolicy) *Manager {
	return &Manager{registry: reg, fallbackRtr: router.New(reg, router.BalancedWeights), learning: learning}
}

// Route builds one TaskVariation per requested strategy, executes them
// concurrently via the Quantum Executor, and collapses per collapseStrategy
// (WEIGHTED by default). On total failure it falls back to one synchronous
// router.Route call tagged metadata["fallback"]=true.
func (m *Manager) Route(ctx context.Context, req types.Request, strategies []types.RoutingStrategy, collapseStrategy types.CollapseStrategy) (types.RoutingDecision, error) {
	if collapseStrategy == "" {
		collapseStrategy = types.CollapseWeighted
	}
	if len(strategies) == 0 {
		strategies = []types.RoutingStrategy{types.StrategyBalanced}
	}

	// CONSENSUS votes on "provider/model_id"; decisions map a vote back.
	var consensusMu sync.Mutex
	consensusDecisions := make(map[string]types.RoutingDecision, len(strategies))
	variations := make([]types.TaskVariation, 0, len(strategies))
	for _, strategy := range strategies {
		strategy := strategy
		if strategy == types.StrategyLearningOptimized && m.learning == nil {
			continue
		}
		variations = append(variations, types.TaskVariation{
			ID: string(strategy),
			Task: func(ctx context.Context, params map[string]any) (any, error) {
				decision, err := m.routeOneStrategy(ctx, req, strategy)
				if err != nil {
					return nil, err
				}
				if collapseStrategy == types.CollapseWeighted {
					return quantum.WeightedCandidate{
						Key:        decision.Provider + "/" + decision.ModelID,
						Confidence: decision.Confidence,
						Weight:     strategyPriorWeight[strategy],
						Value:      decision,
					}, nil
				}
				if collapseStrategy == types.CollapseConsensus {
					consensusMu.Lock()
					consensusDecisions[string(strategy)] = decision
					consensusMu.Unlock()
					return decision.Provider + "/" + decision.ModelID, nil
				}
				return decision, nil
			},
		})
	}

	if len(variations) == 0 {
		return m.fallback(ctx, req, "no strategies produced a variation")
	}

	opts := []quantum.Option{}
	if collapseStrategy == types.CollapseBestScore {
		opts = append(opts, quantum.WithScoringFunc(func(v any) float64 {
			return v.(types.RoutingDecision).Confidence
		}))
	}

	result, err := quantum.Execute(ctx, variations, collapseStrategy, opts...)
	if err != nil || !result.Success {
		reason := "all routing strategies failed"
		if err != nil {
			reason = err.Error()
		} else if result.Error != "" {
			reason = result.Error
		}
		return m.fallback(ctx, req, reason)
	}

	switch v := result.Value.(type) {
	case quantum.WeightedCandidate:
		decision := v.Value.(types.RoutingDecision)
		return decision, nil
	case types.RoutingDecision:
		return v, nil
	case string:
		if decision, ok := consensusDecisions[result.VariationID]; ok {
			return decision, nil
		}
		return m.fallback(ctx, req, "collapsed result had an unexpected shape")
	default:
		return m.fallback(ctx, req, "collapsed result had an unexpected shape")
	}
}

func (m *Manager) routeOneStrategy(ctx context.Context, req types.Request, strategy types.RoutingStrategy) (types.RoutingDecision, error) {
	if strategy == types.StrategyLearningOptimized {
		return m.learning.Route(ctx, req)
	}
	weights, ok := strategyWeights[strategy]
	if !ok {
		weights = router.BalancedWeights
	}
	return router.New(m.registry, weights).Route(ctx, req)
}

func (m *Manager) fallback(ctx context.Context, req types.Request, reason string) (types.RoutingDecision, error) {
	decision, err := m.fallbackRtr.Route(ctx, req)
	if err != nil {
		return types.RoutingDecision{}, fmt.Errorf("quantumrouting: fallback route failed after %q: %w", reason, err)
	}
	if decision.Metadata == nil {
		decision.Metadata = map[string]any{}
	}
	decision.Metadata["fallback"] = true
	decision.Metadata["fallback_reason"] = reason
	return decision, nil
}
