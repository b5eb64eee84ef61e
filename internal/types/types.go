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

// Package types holds the data model shared by the router, the quantum
// executor, the DQN agent, and the multi-agent coordinator. Nothing in this
// package depends on any other internal package, so it can be imported from
// anywhere without a cycle.
package types

import (
	"context"
	"time"
)

// TaskType is the closed enumeration of request kinds the router understands.
type TaskType string

const (
	TaskCodeGeneration TaskType = "code_generation"
	TaskCodeAnalysis   TaskType = "code_analysis"
	TaskTesting        TaskType = "testing"
	TaskDocumentation  TaskType = "documentation"
	TaskReview         TaskType = "review"
	TaskDebugging      TaskType = "debugging"
	TaskRefactoring    TaskType = "refactoring"
	TaskArchitecture   TaskType = "architecture"
	TaskCustom         TaskType = "custom"
)

// Request is the immutable entry point record. It is created once at ingress
// and never mutated by any downstream component.
type Request struct {
	Prompt             string            `json:"prompt"`
	TaskType           TaskType          `json:"task_type"`
	Files              []string          `json:"files,omitempty"`
	Language           string            `json:"language,omitempty"`
	Preferences        *Preferences      `json:"preferences,omitempty"`
	PersonaConfig      *PersonaConfig    `json:"persona_config,omitempty"`
	ProviderPreference string            `json:"provider_preference,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`
}

// Preferences biases the Advanced Router's weighting of cost, latency, and
// quality. Strategy is one of the RoutingStrategy values below.
type Preferences struct {
	Strategy        RoutingStrategy `json:"strategy,omitempty"`
	AllowDowngrade  bool            `json:"allow_downgrade,omitempty"`
	QualityVsCost   float64         `json:"quality_vs_cost,omitempty"` // -1 cost-pref .. +1 quality-pref
}

// PersonaConfig lets a caller pin a persona explicitly, bypassing context
// inference (priority 2 in the Persona Router's selection order).
type PersonaConfig struct {
	Persona PersonaID `json:"persona,omitempty"`
}

// ComplexityLevel is the ordered enum the Advanced Router buckets a request
// into after scoring. Numeric value preserves ordering so thresholds and
// capability floors can be compared with plain integer comparison.
type ComplexityLevel int

const (
	ComplexityTrivial ComplexityLevel = iota
	ComplexitySimple
	ComplexityModerate
	ComplexityComplex
	ComplexityVeryComplex
	ComplexityExpert
	ComplexityCritical
)

func (c ComplexityLevel) String() string {
	switch c {
	case ComplexityTrivial:
		return "trivial"
	case ComplexitySimple:
		return "simple"
	case ComplexityModerate:
		return "moderate"
	case ComplexityComplex:
		return "complex"
	case ComplexityVeryComplex:
		return "very_complex"
	case ComplexityExpert:
		return "expert"
	case ComplexityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ContextType is the closed set of request categories used both by the
// router's scoring and as one-hot input dimensions 1-10 of the DQN state
// vector. Order matters: it is the one-hot layout the DQN agent expects.
type ContextType string

const (
	ContextCodeGeneration ContextType = "code_generation"
	ContextDebugging      ContextType = "debugging"
	ContextArchitecture   ContextType = "architecture"
	ContextSecurity       ContextType = "security"
	ContextPerformance    ContextType = "performance"
	ContextTesting        ContextType = "testing"
	ContextDocumentation  ContextType = "documentation"
	ContextReview         ContextType = "review"
	ContextRefactoring    ContextType = "refactoring"
	ContextGeneral        ContextType = "general"
)

// ContextTypeOrder is the fixed one-hot ordering for dims 1-10 of the DQN
// state vector. Index 0 is reserved for the complexity scalar (dim 0).
var ContextTypeOrder = []ContextType{
	ContextCodeGeneration,
	ContextDebugging,
	ContextArchitecture,
	ContextSecurity,
	ContextPerformance,
	ContextTesting,
	ContextDocumentation,
	ContextReview,
	ContextRefactoring,
	ContextGeneral,
}

// PersonaID is the closed set of persona identities.
type PersonaID string

const (
	PersonaDeveloper         PersonaID = "developer"
	PersonaArchitect         PersonaID = "architect"
	PersonaReviewer          PersonaID = "reviewer"
	PersonaSecurityAnalyst   PersonaID = "security_analyst"
	PersonaPerformanceExpert PersonaID = "performance_expert"
	PersonaTester            PersonaID = "tester"
	PersonaTechnicalWriter   PersonaID = "technical_writer"
	PersonaCustom            PersonaID = "custom"
)

// Persona carries a prompt preamble plus routing biases. Instances are
// built once at process start and never mutated afterward.
type Persona struct {
	ID                    PersonaID
	PromptPreamble        string
	PreferredContextTypes map[ContextType]struct{}
	PreferredComplexity   map[ComplexityLevel]struct{}
}

// HasContext reports whether ct is one of the persona's preferred contexts.
func (p Persona) HasContext(ct ContextType) bool {
	_, ok := p.PreferredContextTypes[ct]
	return ok
}

// HasComplexity reports whether level is one of the persona's preferred
// complexity bands.
func (p Persona) HasComplexity(level ComplexityLevel) bool {
	_, ok := p.PreferredComplexity[level]
	return ok
}

// ModelCapability describes one routable (provider, model) pair as loaded
// from the static manifest at startup.
type ModelCapability struct {
	Provider          string          `json:"provider" yaml:"provider"`
	ModelID           string          `json:"model_id" yaml:"model_id"`
	CodeGenScore      float64         `json:"code_gen_score" yaml:"code_gen_score"`
	ReasoningScore    float64         `json:"reasoning_score" yaml:"reasoning_score"`
	ContextWindow     int             `json:"context_window" yaml:"context_window"`
	LatencyHint       time.Duration   `json:"latency_hint" yaml:"latency_hint"`
	CostPerTokenIn    float64         `json:"cost_per_token_in" yaml:"cost_per_token_in"`
	CostPerTokenOut   float64         `json:"cost_per_token_out" yaml:"cost_per_token_out"`
	Reliability       float64         `json:"reliability" yaml:"reliability"`
	Specializations   map[string]struct{} `json:"-" yaml:"-"`
	SpecializationsRaw []string       `json:"specializations" yaml:"specializations"`
	ComplexityFloor   ComplexityLevel `json:"complexity_floor" yaml:"complexity_floor"`
}

// HasSpecialization reports whether the model declares the given
// specialization tag.
func (m ModelCapability) HasSpecialization(tag string) bool {
	_, ok := m.Specializations[tag]
	return ok
}

// Key returns the (provider, model_id) identity used as an action-space and
// registry lookup key.
func (m ModelCapability) Key() string {
	return m.Provider + "/" + m.ModelID
}

// ScoringBreakdown is the per-decision transparency record the Advanced
// Router attaches to every RoutingDecision and exposes via DebugInfo.
type ScoringBreakdown struct {
	Complexity float64 `json:"complexity"`
	Context    float64 `json:"context"`
	Capability float64 `json:"capability"`
}

// RoutingDecision is the router's output: a chosen model, persona, and the
// scoring that produced the choice.
type RoutingDecision struct {
	Provider         string            `json:"provider"`
	ModelID          string            `json:"model_id"`
	Persona          PersonaID         `json:"persona"`
	Confidence       float64           `json:"confidence"`
	Reasoning        string            `json:"reasoning"`
	ScoringBreakdown ScoringBreakdown  `json:"scoring_breakdown"`
	Metadata         map[string]any    `json:"metadata,omitempty"`
}

// TaskVariation is one unit of work the Quantum Executor runs in parallel.
// Task receives ctx and params and must honor ctx cancellation.
type TaskVariation struct {
	ID     string
	Task   func(ctx context.Context, params map[string]any) (any, error)
	Params map[string]any
}

// QuantumResult is what a single variation (or a collapsed set of them)
// produces.
type QuantumResult struct {
	Value         any            `json:"value,omitempty"`
	Success       bool           `json:"success"`
	VariationID   string         `json:"variation_id"`
	ExecutionTime time.Duration  `json:"execution_time"`
	Error         string         `json:"error,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// CollapseStrategy picks how N parallel QuantumResults become one.
type CollapseStrategy string

const (
	CollapseFirstSuccess CollapseStrategy = "first_success"
	CollapseBestScore    CollapseStrategy = "best_score"
	CollapseConsensus    CollapseStrategy = "consensus"
	CollapseCombined     CollapseStrategy = "combined"
	CollapseWeighted     CollapseStrategy = "weighted"
)

// RoutingStrategy is a policy for computing a RoutingDecision; the Quantum
// Routing Manager runs several in parallel and collapses the result.
type RoutingStrategy string

const (
	StrategyLearningOptimized   RoutingStrategy = "learning_optimized"
	StrategyTaskOptimized       RoutingStrategy = "task_optimized"
	StrategyPerformanceFocused  RoutingStrategy = "performance_focused"
	StrategyBalanced            RoutingStrategy = "balanced"
	StrategyCostEfficient       RoutingStrategy = "cost_efficient"
)

// Experience is one replay-buffer entry for the DQN agent.
type Experience struct {
	State     [21]float64
	Action    int
	Reward    float64
	NextState [21]float64
	Done      bool
}

// AgentStatus is the multi-agent coordinator's health/lifecycle state.
type AgentStatus string

const (
	AgentActive      AgentStatus = "active"
	AgentInactive    AgentStatus = "inactive"
	AgentDegraded    AgentStatus = "degraded"
	AgentMaintenance AgentStatus = "maintenance"
	AgentFailed      AgentStatus = "failed"
)

// CapabilityType is the closed set of things an agent can be asked to do.
type CapabilityType string

const (
	CapabilityCodeGen      CapabilityType = "code_generation"
	CapabilityCodeAnalysis CapabilityType = "code_analysis"
	CapabilityTesting      CapabilityType = "testing"
	CapabilityReview       CapabilityType = "review"
	CapabilityArchitecture CapabilityType = "architecture"
	CapabilitySecurity     CapabilityType = "security"
	CapabilityDocs         CapabilityType = "documentation"
	CapabilityExecution    CapabilityType = "code_execution"
)

// AgentCapability is one declared skill of an agent, with a proficiency in
// [0,1] and an optional language restriction.
type AgentCapability struct {
	Type               CapabilityType `json:"type"`
	ProficiencyLevel   float64        `json:"proficiency_level"`
	SupportedLanguages []string       `json:"supported_languages,omitempty"`
}

// AgentMetadata is the directory entry the Agent Registry keeps for each
// registered specialist agent.
type AgentMetadata struct {
	AgentID         string            `json:"agent_id"`
	Name            string            `json:"name"`
	Version         string            `json:"version"`
	Capabilities    []AgentCapability `json:"capabilities"`
	Status          AgentStatus       `json:"status"`
	HealthScore     float64           `json:"health_score"`
	SuccessRate     float64           `json:"success_rate"`
	AvgResponseTime time.Duration     `json:"avg_response_time"`
	ExecutionCount  int64             `json:"execution_count"`
	Tags            map[string]struct{} `json:"-"`
	Endpoint        string            `json:"endpoint,omitempty"`
}

// MessageType is the closed set of agent-bus message kinds.
type MessageType string

const (
	MessageTaskRequest   MessageType = "task_request"
	MessageCollaboration MessageType = "collaboration"
	MessageStatus        MessageType = "status"
	MessageKnowledge     MessageType = "knowledge"
	MessageCoordination  MessageType = "coordination"
)

// MessagePriority orders delivery across a recipient's priority queues.
// Larger values are serviced first.
type MessagePriority int

const (
	PriorityLow MessagePriority = iota
	PriorityNormal
	PriorityHigh
	PriorityUrgent
)

// BroadcastRecipient is the sentinel "to" value meaning "every subscriber".
const BroadcastRecipient = "broadcast"

// AgentMessage is one envelope on the Agent Communication Bus.
type AgentMessage struct {
	ID            string          `json:"id"`
	FromAgent     string          `json:"from_agent"`
	ToAgent       string          `json:"to_agent"`
	Type          MessageType     `json:"type"`
	Priority      MessagePriority `json:"priority"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       any             `json:"payload"`
	Timestamp     time.Time       `json:"timestamp"`
}

// MetricType is the closed set of metric kinds the collector accepts.
type MetricType string

const (
	MetricRoutingDecision MetricType = "routing_decision"
	MetricRoutingLatency  MetricType = "routing_latency"
	MetricProviderLatency MetricType = "provider_latency"
	MetricCacheHit        MetricType = "cache_hit"
	MetricCacheMiss       MetricType = "cache_miss"
	MetricQualityScore    MetricType = "quality_score"
	MetricLearningLoss    MetricType = "learning_loss"
	MetricAgentOutcome    MetricType = "agent_outcome"
	MetricAlert           MetricType = "alert"
)

// MetricEvent is one append-only sample recorded by the Metrics Collector.
type MetricEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	MetricType MetricType       `json:"metric_type"`
	Labels    map[string]string `json:"labels,omitempty"`
	Value     float64           `json:"value"`
}
