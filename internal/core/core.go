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

// Package core wires the Model Registry, Advanced Router, Quantum Routing
// Manager, Routing Cache, Metrics Collector, Provider Adapters, and the
// multi-agent coordinator into the two ingress operations the enclosing
// HTTP server calls: Orchestrate and DebugRoute. The single top-level
// dispatch shape -- one method fanning work out to sub-systems and
// collecting their results -- is grounded on orchestrator/workflow_engine.go's
// WorkflowEngine.Execute.
package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"axonflow/corerouter/internal/agents/bus"
	agentregistry "axonflow/corerouter/internal/agents/registry"
	"axonflow/corerouter/internal/cache"
	"axonflow/corerouter/internal/persona"
	"axonflow/corerouter/internal/provider"
	"axonflow/corerouter/internal/quantumrouting"
	"axonflow/corerouter/internal/registry"
	"axonflow/corerouter/internal/router"
	"axonflow/corerouter/internal/telemetry/metrics"
	"axonflow/corerouter/internal/types"
)

// AgentStep records one multi-agent subtask's outcome for the
// OrchestrationResult's agent_trace field.
type AgentStep struct {
	Capability types.CapabilityType `json:"capability"`
	AgentID    string               `json:"agent_id,omitempty"`
	Content    string               `json:"content"`
	Success    bool                 `json:"success"`
	Error      string               `json:"error,omitempty"`
	Duration   time.Duration        `json:"duration"`
}

// MetricsSnapshot is the point-in-time metrics view attached to an
// OrchestrationResult, per §6's optional metrics_snapshot field.
type MetricsSnapshot struct {
	RoutingLatency  metrics.Snapshot `json:"routing_latency"`
	ProviderLatency metrics.Snapshot `json:"provider_latency"`
	CacheHitRate    float64          `json:"cache_hit_rate"`
}

// Usage is the token/latency accounting carried from a provider's
// InvokeResult into an OrchestrationResult, independent of any one
// provider's wire format.
type Usage struct {
	TokensIn  int   `json:"tokens_in"`
	TokensOut int   `json:"tokens_out"`
	LatencyMs int64 `json:"latency_ms"`
}

// OrchestrationResult is orchestrate's return shape:
// {result, decision, metrics_snapshot?, agent_trace?, error?}.
type OrchestrationResult struct {
	Request         types.Request          `json:"request"`
	Decision        types.RoutingDecision  `json:"decision"`
	Content         string                 `json:"result,omitempty"`
	Usage           Usage                  `json:"usage,omitempty"`
	AgentTrace      []AgentStep            `json:"agent_trace,omitempty"`
	CacheHit        bool                   `json:"cache_hit"`
	MetricsSnapshot *MetricsSnapshot       `json:"metrics_snapshot,omitempty"`
	Latency         time.Duration          `json:"latency"`
	Error           string                 `json:"error,omitempty"`
}

// DebugMetadata is debug_route's metadata field.
type DebugMetadata struct {
	SlashCommand    string             `json:"slash_command,omitempty"`
	ContextType     string             `json:"context_type"`
	ComplexityLevel string             `json:"complexity_level"`
	ModelScores     map[string]float64 `json:"model_scores"`
}

// DebugInfo is debug_route's return shape.
type DebugInfo struct {
	RoutingDecision  types.RoutingDecision  `json:"routing_decision"`
	ScoringBreakdown types.ScoringBreakdown `json:"scoring_breakdown"`
	Metadata         DebugMetadata          `json:"metadata"`
}

// Orchestrator implements the core's ingress operations.
type Orchestrator struct {
	models    *registry.Registry
	providers *provider.Registry

	router     *router.Router
	quantumMgr *quantumrouting.Manager
	learning   *LearningAdapter

	strategies       []types.RoutingStrategy
	collapseStrategy types.CollapseStrategy

	cache    cache.Cache
	cacheTTL time.Duration

	metrics *metrics.Collector

	agents       *agentregistry.Registry
	bus          *bus.Bus
	agentTimeout time.Duration
}

// Option configures an Orchestrator at construction.
type Option func(*Orchestrator)

// WithQuantumRouting enables the Quantum Routing Manager: strategies run
// concurrently and collapse via collapseStrategy instead of the single
// synchronous Advanced Router call. learning may be nil, in which case
// LEARNING_OPTIMIZED is silently skipped by the manager.
func WithQuantumRouting(strategies []types.RoutingStrategy, collapseStrategy types.CollapseStrategy, learning *LearningAdapter) Option {
	return func(o *Orchestrator) {
		o.strategies = strategies
		o.collapseStrategy = collapseStrategy
		o.learning = learning
	}
}

// WithCache attaches a Routing Cache tier (LRUCache or RedisCache). Omit
// this option to run uncached, per the spec's "cache is optional" rule.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(o *Orchestrator) { o.cache, o.cacheTTL = c, ttl }
}

// WithMetrics attaches the Metrics Collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithAgents attaches the Agent Registry and Communication Bus, enabling
// multi-agent decomposition for sufficiently complex requests. timeout
// bounds each bus.RequestResponse call.
func WithAgents(reg *agentregistry.Registry, b *bus.Bus, timeout time.Duration) Option {
	return func(o *Orchestrator) { o.agents, o.bus, o.agentTimeout = reg, b, timeout }
}

// New builds an Orchestrator over the Model Registry and Provider Registry.
func New(models *registry.Registry, providers *provider.Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		models:           models,
		providers:        providers,
		router:           router.New(models, router.BalancedWeights),
		collapseStrategy: types.CollapseWeighted,
		agentTimeout:     30 * time.Second,
	}
	for _, opt := range opts {
		opt(o)
	}
	if len(o.strategies) > 0 {
		var learning quantumrouting.LearningPolicy
		if o.learning != nil {
			learning = o.learning
		}
		o.quantumMgr = quantumrouting.New(models, learning)
	}
	return o
}

// Orchestrate implements §6's orchestrate(request) -> OrchestrationResult:
// route (cache-first), execute (directly or via multi-agent decomposition),
// and report. Routing failures are returned as errors; execution failures
// are reported in OrchestrationResult.Error so the caller always learns how
// the request was routed even when the downstream call fails.
func (o *Orchestrator) Orchestrate(ctx context.Context, req types.Request) (OrchestrationResult, error) {
	start := time.Now()

	decision, cacheHit, err := o.route(ctx, req)
	if err != nil {
		return OrchestrationResult{Request: req}, fmt.Errorf("core: routing failed: %w", err)
	}

	if o.metrics != nil {
		o.metrics.RecordRoutingLatency(time.Since(start), map[string]string{"provider": decision.Provider})
		o.metrics.Record(types.MetricEvent{
			Timestamp:  time.Now(),
			MetricType: types.MetricRoutingDecision,
			Value:      decision.Confidence,
			Labels:     map[string]string{"provider": decision.Provider, "model_id": decision.ModelID},
		})
	}

	result := OrchestrationResult{Request: req, Decision: decision, CacheHit: cacheHit}

	switch {
	case o.agents != nil && o.bus != nil && shouldDecompose(decision):
		trace, content, execErr := o.runMultiAgent(ctx, req, decision)
		result.AgentTrace = trace
		if execErr != nil {
			result.Error = execErr.Error()
		} else {
			result.Content = content
		}
	default:
		content, usage, execErr := o.invoke(ctx, decision, req)
		if execErr != nil {
			result.Error = execErr.Error()
		} else {
			result.Content, result.Usage = content, usage
		}
	}

	result.Latency = time.Since(start)
	if o.metrics != nil {
		result.MetricsSnapshot = &MetricsSnapshot{
			RoutingLatency:  o.metrics.Snapshot(types.MetricRoutingLatency),
			ProviderLatency: o.metrics.Snapshot(types.MetricProviderLatency),
			CacheHitRate:    o.metrics.CacheHitRate(),
		}
	}

	if o.learning != nil {
		success := result.Error == ""
		if _, _, err := o.learning.RecordOutcome(req, decision, success, result.Latency, estimateCost(o.models, decision, result.Usage), nil); err != nil {
			// A training-loop failure never fails the request; it only
			// means this outcome doesn't feed back into the policy.
			if o.metrics != nil {
				o.metrics.Record(types.MetricEvent{Timestamp: time.Now(), MetricType: types.MetricAlert, Value: 1, Labels: map[string]string{"source": "dqn_record_outcome"}})
			}
		}
	}

	return result, nil
}

// DebugRoute implements §6's debug_route: the same Advanced Router scoring
// Orchestrate would use, but never executes the request and always reports
// per-candidate model_scores regardless of whether quantum routing is
// configured -- debug_route's contract is a transparency view into the
// base router, not into whichever strategy ensemble happens to be active.
func (o *Orchestrator) DebugRoute(ctx context.Context, req types.Request) (DebugInfo, error) {
	decision, modelScores, err := o.router.DebugRoute(ctx, req)
	if err != nil {
		return DebugInfo{}, err
	}
	return DebugInfo{
		RoutingDecision:  decision,
		ScoringBreakdown: decision.ScoringBreakdown,
		Metadata: DebugMetadata{
			SlashCommand:    metadataString(decision.Metadata, "slash_command"),
			ContextType:     metadataString(decision.Metadata, "context_type"),
			ComplexityLevel: metadataString(decision.Metadata, "complexity_level"),
			ModelScores:     modelScores,
		},
	}, nil
}

// route resolves a RoutingDecision, consulting the Routing Cache first when
// one is configured.
func (o *Orchestrator) route(ctx context.Context, req types.Request) (types.RoutingDecision, bool, error) {
	var fp cache.Fingerprint
	if o.cache != nil {
		fp = fingerprintFor(req)
		if decision, ok := o.cache.Get(ctx, fp); ok {
			return decision, true, nil
		}
	}

	var (
		decision types.RoutingDecision
		err      error
	)
	if o.quantumMgr != nil {
		decision, err = o.quantumMgr.Route(ctx, req, o.strategies, o.collapseStrategy)
	} else {
		decision, err = o.router.Route(ctx, req)
	}
	if err != nil {
		return types.RoutingDecision{}, false, err
	}

	if o.cache != nil {
		o.cache.Set(ctx, fp, decision, o.cacheTTL)
	}
	return decision, false, nil
}

// invoke calls the Provider Adapter chosen by decision, applying the
// persona's prompt preamble as the completion's system prompt.
func (o *Orchestrator) invoke(ctx context.Context, decision types.RoutingDecision, req types.Request) (string, Usage, error) {
	if o.providers == nil {
		return "", Usage{}, fmt.Errorf("core: no provider registry configured")
	}
	p, err := o.providers.Get(ctx, decision.Provider)
	if err != nil {
		return "", Usage{}, fmt.Errorf("provider %q unavailable: %w", decision.Provider, err)
	}

	params := provider.InvokeParams{SystemPrompt: personaPreamble(decision)}

	start := time.Now()
	resp, err := p.Invoke(ctx, decision.ModelID, effectivePrompt(req, decision), params)
	if o.metrics != nil {
		o.metrics.RecordProviderLatency(decision.Provider, time.Since(start))
	}
	if err != nil {
		return "", Usage{}, err
	}
	return resp.Text, Usage{TokensIn: resp.TokensIn, TokensOut: resp.TokensOut, LatencyMs: resp.LatencyMs}, nil
}

func fingerprintFor(req types.Request) cache.Fingerprint {
	persona := ""
	if req.PersonaConfig != nil {
		persona = string(req.PersonaConfig.Persona)
	}
	return cache.NewFingerprint(cache.FingerprintKey{
		NormalizedPrompt:   strings.TrimSpace(req.Prompt),
		TaskType:           string(req.TaskType),
		Language:           req.Language,
		Persona:            persona,
		ProviderPreference: req.ProviderPreference,
	})
}

func effectivePrompt(req types.Request, decision types.RoutingDecision) string {
	if p := metadataString(decision.Metadata, "effective_prompt"); p != "" {
		return p
	}
	return req.Prompt
}

func personaPreamble(decision types.RoutingDecision) string {
	return persona.Get(decision.Persona).PromptPreamble
}

func metadataString(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	v, ok := m[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// estimateCost projects USD cost from the provider's reported token usage
// and the model's manifest-declared per-token rates; it returns 0 if either
// is unavailable, which simply yields no cost penalty in the reward.
func estimateCost(models *registry.Registry, decision types.RoutingDecision, usage Usage) float64 {
	if models == nil {
		return 0
	}
	model, ok := models.Get(decision.Provider, decision.ModelID)
	if !ok {
		return 0
	}
	return float64(usage.TokensIn)*model.CostPerTokenIn + float64(usage.TokensOut)*model.CostPerTokenOut
}
