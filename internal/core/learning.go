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

package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"axonflow/corerouter/internal/dqn"
	"axonflow/corerouter/internal/persona"
	"axonflow/corerouter/internal/provider"
	"axonflow/corerouter/internal/registry"
	"axonflow/corerouter/internal/router"
	"axonflow/corerouter/internal/types"
)

// latencyCeiling and costCeiling normalize the DQN reward's penalty terms
// to roughly [0,1]; requests beyond either are simply clipped, matching
// ComposeReward's own [-2,2] clip.
const (
	latencyCeiling = 30 * time.Second
	costCeiling    = 0.01 // USD
	rollingSuccessEMAWeight = 0.1
)

// LearningAdapter wraps a DQN Routing Agent as a quantumrouting.LearningPolicy,
// translating between the Model Registry's provider/model_id action space
// and the agent's plain action indices. It is the bridge component F needs
// to plug into component G.
type LearningAdapter struct {
	agent     *dqn.Agent
	models    *registry.Registry
	providers *provider.Registry
	weights   dqn.RewardWeights

	providerOrder []string

	mu             sync.Mutex
	rollingSuccess float64
}

// NewLearningAdapter builds a LearningAdapter over an existing DQN agent.
// providers may be nil, in which case every provider is reported available
// in the state vector (no live health signal).
func NewLearningAdapter(agent *dqn.Agent, models *registry.Registry, providers *provider.Registry) *LearningAdapter {
	return &LearningAdapter{
		agent:          agent,
		models:         models,
		providers:      providers,
		weights:        dqn.DefaultRewardWeights(),
		providerOrder:  buildProviderOrder(models),
		rollingSuccess: 0.5,
	}
}

// Route implements quantumrouting.LearningPolicy: build the state vector,
// run epsilon-greedy action selection, and translate the chosen action
// index back into a RoutingDecision.
func (l *LearningAdapter) Route(ctx context.Context, req types.Request) (types.RoutingDecision, error) {
	actionSpace := l.agent.ActionSpace()
	state, complexityScore, complexityLevel, contextType := l.buildState(req)

	available := l.availabilityMask(actionSpace, complexityLevel)
	idx := l.agent.SelectAction(state, available)
	if idx < 0 {
		return types.RoutingDecision{}, fmt.Errorf("core: dqn agent found no eligible action for %s complexity", complexityLevel)
	}

	providerName, modelID := splitActionKey(actionSpace[idx])
	model, ok := l.models.Get(providerName, modelID)
	if !ok {
		return types.RoutingDecision{}, fmt.Errorf("core: dqn selected unknown model %q", actionSpace[idx])
	}

	sel := persona.SelectPersona(req, contextType)

	return types.RoutingDecision{
		Provider:   model.Provider,
		ModelID:    model.ModelID,
		Persona:    sel.Persona.ID,
		Confidence: 1 - l.agent.Epsilon(),
		Reasoning:  fmt.Sprintf("dqn agent selected %s/%s (epsilon=%.3f)", model.Provider, model.ModelID, l.agent.Epsilon()),
		ScoringBreakdown: types.ScoringBreakdown{
			Complexity: complexityScore,
			Context:    0,
			Capability: 0.5*model.CodeGenScore + 0.5*model.ReasoningScore,
		},
		Metadata: map[string]any{
			"context_type":     string(contextType),
			"complexity_level": complexityLevel.String(),
			"strategy":         string(types.StrategyLearningOptimized),
		},
	}, nil
}

// RecordOutcome composes the reward for a completed request and pushes one
// Experience into the agent's replay buffer, training it once enough
// samples have accumulated. quality is an optional externally-supplied
// quality score in [0,1] (e.g. from a downstream review step); pass nil
// when unavailable.
func (l *LearningAdapter) RecordOutcome(req types.Request, decision types.RoutingDecision, success bool, latency time.Duration, costUSD float64, quality *float64) (loss float64, trained bool, err error) {
	actionSpace := l.agent.ActionSpace()
	key := decision.Provider + "/" + decision.ModelID
	idx := indexOf(actionSpace, key)
	if idx < 0 {
		return 0, false, fmt.Errorf("core: %q is not in the current action space", key)
	}

	state, _, _, _ := l.buildState(req)

	normLatency := clamp01(float64(latency) / float64(latencyCeiling))
	normCost := clamp01(costUSD / costCeiling)
	reward := dqn.ComposeReward(l.weights, success, normLatency, normCost, quality)

	l.mu.Lock()
	sample := 0.0
	if success {
		sample = 1.0
	}
	l.rollingSuccess = (1-rollingSuccessEMAWeight)*l.rollingSuccess + rollingSuccessEMAWeight*sample
	l.mu.Unlock()

	loss, trained = l.agent.Observe(types.Experience{
		State:     state,
		Action:    idx,
		Reward:    reward,
		NextState: state,
		Done:      true,
	})
	return loss, trained, nil
}

// buildState derives the DQN state vector from a Request the same way
// Route and RecordOutcome both need it, so a request's training sample
// always matches the state it was routed under.
func (l *LearningAdapter) buildState(req types.Request) ([dqn.StateDim]float64, float64, types.ComplexityLevel, types.ContextType) {
	complexityScore, complexityLevel := router.ScoreComplexity(req)
	contextType := router.ExtractContext(req)

	l.mu.Lock()
	rollingSuccess := l.rollingSuccess
	l.mu.Unlock()

	state := dqn.BuildState(dqn.StateInputs{
		ComplexityScore:     complexityScore,
		ContextType:         contextType,
		ProviderAvailable:   l.providerAvailability(),
		RollingSuccessRate:  rollingSuccess,
		CostBudget:          costBudgetFromReq(req),
		LatencyBudget:       0.5,
		ContextWindowBudget: 0.5,
		UserPreference:      qualityPreference(req),
	})
	return state, complexityScore, complexityLevel, contextType
}

// availabilityMask marks which actions are eligible: the model must clear
// its complexity_floor for the current request (mirrors the Advanced
// Router's own cost gate in §4.C, reapplied here since the DQN agent
// bypasses router.Route entirely).
func (l *LearningAdapter) availabilityMask(actionSpace []string, level types.ComplexityLevel) []bool {
	mask := make([]bool, len(actionSpace))
	for i, key := range actionSpace {
		providerName, modelID := splitActionKey(key)
		model, ok := l.models.Get(providerName, modelID)
		if !ok {
			continue
		}
		if model.ComplexityFloor > level {
			continue
		}
		if l.providers != nil && !l.providers.Has(providerName) {
			continue
		}
		mask[i] = true
	}
	return mask
}

func (l *LearningAdapter) providerAvailability() [5]bool {
	var avail [5]bool
	for i, name := range l.providerOrder {
		if i >= 5 {
			break
		}
		if l.providers == nil {
			avail[i] = true
			continue
		}
		avail[i] = l.providers.Has(name)
	}
	return avail
}

// buildProviderOrder fixes the provider ordering for state dims 11-15: the
// first five distinct providers encountered in registry List order (which
// is sorted by provider/model_id key).
func buildProviderOrder(models *registry.Registry) []string {
	if models == nil {
		return nil
	}
	seen := make(map[string]bool)
	var order []string
	for _, m := range models.List() {
		if seen[m.Provider] {
			continue
		}
		seen[m.Provider] = true
		order = append(order, m.Provider)
		if len(order) == 5 {
			break
		}
	}
	return order
}

func splitActionKey(key string) (providerName, modelID string) {
	parts := strings.SplitN(key, "/", 2)
	if len(parts) != 2 {
		return "", key
	}
	return parts[0], parts[1]
}

func indexOf(space []string, key string) int {
	for i, k := range space {
		if k == key {
			return i
		}
	}
	return -1
}

func costBudgetFromReq(req types.Request) float64 {
	if req.Preferences == nil {
		return 0.5
	}
	return clamp01(0.5 + req.Preferences.QualityVsCost*0.5)
}

func qualityPreference(req types.Request) float64 {
	if req.Preferences == nil {
		return 0
	}
	return req.Preferences.QualityVsCost
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
