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

// Package router implements the Advanced Router: complexity and context
// scoring, capability-weighted model selection, persona attachment, and a
// confidence estimate derived from the score gap to the runner-up.
package router

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"axonflow/corerouter/internal/persona"
	"axonflow/corerouter/internal/registry"
	"axonflow/corerouter/internal/types"
)

// ErrNoEligibleModel is returned when no candidate model survives
// filtering, per §4.C edge cases.
var ErrNoEligibleModel = errors.New("router: no eligible model")

// Router computes a RoutingDecision for a Request using a Weights profile
// and a Model Registry.
type Router struct {
	registry *registry.Registry
	weights  Weights
	// confidenceGain is the sigmoid steepness k applied to the score gap
	// to the second-best candidate.
	confidenceGain float64
}

// New builds a Router over reg using the given scoring weights. A zero
// Weights value is replaced by BalancedWeights.
func New(reg *registry.Registry, weights Weights) *Router {
	if weights == (Weights{}) {
		weights = BalancedWeights
	}
	return &Router{registry: reg, weights: weights, confidenceGain: 6.0}
}

// candidateScore is the per-model intermediate used for selection and for
// the DebugInfo model_scores map.
type candidateScore struct {
	model types.ModelCapability
	score float64
}

// Route implements §4.C: complexity scoring, context extraction, capability
// scoring, provider filter, selection, persona attach, confidence.
func (r *Router) Route(ctx context.Context, req types.Request) (types.RoutingDecision, error) {
	decision, _, err := r.route(ctx, req)
	return decision, err
}

// DebugRoute runs the same selection as Route but additionally returns the
// per-candidate capability score keyed by "provider/model_id", for the
// debug_route ingress operation's model_scores field.
func (r *Router) DebugRoute(ctx context.Context, req types.Request) (types.RoutingDecision, map[string]float64, error) {
	return r.route(ctx, req)
}

func (r *Router) route(ctx context.Context, req types.Request) (types.RoutingDecision, map[string]float64, error) {
	complexityScore, complexityLevel := scoreComplexity(req)
	contextType := extractContext(req)

	allowDowngrade := req.Preferences != nil && req.Preferences.AllowDowngrade

	candidates := r.registry.List()
	if req.ProviderPreference != "" {
		candidates = filterByProvider(candidates, req.ProviderPreference)
	}
	if len(candidates) == 0 {
		return types.RoutingDecision{}, nil, fmt.Errorf("%w: no candidates after provider filter", ErrNoEligibleModel)
	}

	// Cost gate: a model's declared complexity_floor is the lowest task
	// complexity it is worth routing to (premium models sit this out for
	// trivial requests). This applies at every level.
	costFiltered := filterByComplexityFloor(candidates, complexityLevel)
	usedDowngrade := false
	if len(costFiltered) == 0 {
		if !allowDowngrade {
			return types.RoutingDecision{}, nil, fmt.Errorf("%w: all models sit above their cost floor for %s", ErrNoEligibleModel, complexityLevel)
		}
		costFiltered = candidates
		usedDowngrade = true
	}

	// Quality gate (§4.C step 3): for complex-and-above requests, exclude
	// models whose own capability score falls below what the complexity
	// band demands, regardless of their declared cost floor.
	eligible := costFiltered
	if complexityLevel >= types.ComplexityComplex {
		qualityFiltered := filterByCapabilityThreshold(costFiltered, complexityLevel)
		if len(qualityFiltered) == 0 {
			if !allowDowngrade {
				return types.RoutingDecision{}, nil, fmt.Errorf("%w: no model clears the capability threshold for %s", ErrNoEligibleModel, complexityLevel)
			}
			usedDowngrade = true
		} else {
			eligible = qualityFiltered
		}
	}

	scored := make([]candidateScore, 0, len(eligible))
	for _, m := range eligible {
		s := r.capabilityScore(m, req, contextType, complexityLevel, eligible)
		scored = append(scored, candidateScore{model: m, score: s})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return higherPriority(scored[i], scored[j])
	})

	best := scored[0]
	confidence := 1.0
	if len(scored) > 1 {
		gap := best.score - scored[1].score
		confidence = sigmoid(gap * r.confidenceGain)
	}
	if usedDowngrade && confidence > 0.5 {
		confidence = 0.5
	}

	sel := persona.SelectPersona(req, contextType)

	reasoning := fmt.Sprintf("selected %s/%s for %s complexity in %s context", best.model.Provider, best.model.ModelID, complexityLevel, contextType)
	if usedDowngrade {
		reasoning = fmt.Sprintf("no model met the %s complexity floor; downgraded to %s/%s with reduced confidence", complexityLevel, best.model.Provider, best.model.ModelID)
	}

	modelScores := make(map[string]float64, len(scored))
	for _, c := range scored {
		modelScores[c.model.Key()] = c.score
	}

	return types.RoutingDecision{
		Provider:   best.model.Provider,
		ModelID:    best.model.ModelID,
		Persona:    sel.Persona.ID,
		Confidence: confidence,
		Reasoning:  reasoning,
		ScoringBreakdown: types.ScoringBreakdown{
			Complexity: complexityScore,
			Context:    contextFit(best.model, contextType),
			Capability: best.score,
		},
		Metadata: map[string]any{
			"context_type":     string(contextType),
			"complexity_level": complexityLevel.String(),
			"effective_prompt": sel.EffectivePrompt,
			"slash_command":    sel.SlashCommand,
			"downgraded":       usedDowngrade,
		},
	}, modelScores, nil
}

// higherPriority reports whether a should rank ahead of b: higher score
// first, then the §4.C step 5 tie-break (higher reliability, then lower
// cost, then lexicographic (provider, model_id)).
func higherPriority(a, b candidateScore) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	if a.model.Reliability != b.model.Reliability {
		return a.model.Reliability > b.model.Reliability
	}
	costA := a.model.CostPerTokenIn + a.model.CostPerTokenOut
	costB := b.model.CostPerTokenIn + b.model.CostPerTokenOut
	if costA != costB {
		return costA < costB
	}
	if a.model.Provider != b.model.Provider {
		return a.model.Provider < b.model.Provider
	}
	return a.model.ModelID < b.model.ModelID
}

func (r *Router) capabilityScore(m types.ModelCapability, req types.Request, ctx types.ContextType, level types.ComplexityLevel, pool []types.ModelCapability) float64 {
	capabilityFit := capabilityFit(m, ctx, level)
	contextFit := contextFit(m, ctx)
	normCost := normalizeCost(m, pool)
	normLatency := normalizeLatency(m, pool)

	w := r.weights
	score := w.Capability*capabilityFit + w.Context*contextFit - w.Cost*normCost - w.Latency*normLatency + w.Reliability*m.Reliability

	if req.Preferences != nil {
		score += req.Preferences.QualityVsCost * 0.05 * capabilityFit
	}
	return score
}

func capabilityFit(m types.ModelCapability, ctx types.ContextType, level types.ComplexityLevel) float64 {
	base := 0.5*m.CodeGenScore + 0.5*m.ReasoningScore
	if level >= types.ComplexityComplex {
		base = 0.35*m.CodeGenScore + 0.65*m.ReasoningScore
	}
	return base
}

// contextTagByContext maps a ContextType onto the specialization tag a
// model would declare if tuned for it.
var contextTagByContext = map[types.ContextType]string{
	types.ContextCodeGeneration: "code_generation",
	types.ContextArchitecture:   "architecture",
	types.ContextSecurity:       "security",
	types.ContextTesting:        "testing",
	types.ContextDebugging:      "debugging",
	types.ContextDocumentation:  "documentation",
	types.ContextReview:         "review",
	types.ContextRefactoring:    "refactoring",
	types.ContextPerformance:    "performance",
}

func contextFit(m types.ModelCapability, ctx types.ContextType) float64 {
	tag, ok := contextTagByContext[ctx]
	if !ok {
		return 0.5
	}
	if m.HasSpecialization(tag) {
		return 1.0
	}
	return 0.4
}

func normalizeCost(m types.ModelCapability, pool []types.ModelCapability) float64 {
	cost := m.CostPerTokenIn + m.CostPerTokenOut
	max := 0.0
	for _, c := range pool {
		if v := c.CostPerTokenIn + c.CostPerTokenOut; v > max {
			max = v
		}
	}
	if max == 0 {
		return 0
	}
	return cost / max
}

func normalizeLatency(m types.ModelCapability, pool []types.ModelCapability) float64 {
	max := float64(0)
	for _, c := range pool {
		if float64(c.LatencyHint) > max {
			max = float64(c.LatencyHint)
		}
	}
	if max == 0 {
		return 0
	}
	return float64(m.LatencyHint) / max
}

func filterByProvider(models []types.ModelCapability, provider string) []types.ModelCapability {
	var out []types.ModelCapability
	for _, m := range models {
		if m.Provider == provider {
			out = append(out, m)
		}
	}
	return out
}

func filterByComplexityFloor(models []types.ModelCapability, level types.ComplexityLevel) []types.ModelCapability {
	var out []types.ModelCapability
	for _, m := range models {
		if m.ComplexityFloor <= level {
			out = append(out, m)
		}
	}
	return out
}

// capabilityThresholdByLevel is the minimum blended codegen/reasoning
// score a complexity band demands of a candidate model, per the "numeric
// band per level defines the expected capability floor" rule. Only
// consulted for ComplexityComplex and above.
var capabilityThresholdByLevel = map[types.ComplexityLevel]float64{
	types.ComplexityComplex:      0.70,
	types.ComplexityVeryComplex:  0.80,
	types.ComplexityExpert:       0.88,
	types.ComplexityCritical:     0.93,
}

func filterByCapabilityThreshold(models []types.ModelCapability, level types.ComplexityLevel) []types.ModelCapability {
	threshold, ok := capabilityThresholdByLevel[level]
	if !ok {
		return models
	}
	var out []types.ModelCapability
	for _, m := range models {
		if capabilityFit(m, "", level) >= threshold {
			out = append(out, m)
		}
	}
	return out
}

func sigmoid(x float64) float64 {
	v := 1.0 / (1.0 + math.Exp(-x))
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
