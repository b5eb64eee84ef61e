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

// Package registry implements the Agent Registry (component J): a
// process-wide directory of specialist agents, their declared capabilities,
// and rolling health/performance signals. Read-heavy: writes take an
// exclusive lock, reads take a shared lock, matching the RWMutex discipline
// in orchestrator/agent_registry.go.
package registry

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"axonflow/corerouter/internal/types"
)

// ScoringWeights is the fixed-at-construction weighting for
// FindBestForTask, matching the spec's "sum_of_weights is fixed at compile
// time" invariant -- fixed per Registry instance, not mutated after New.
type ScoringWeights struct {
	Proficiency float64 // weight on capability proficiency_level
	Health      float64 // alpha: weight on health_score
	Success     float64 // beta: weight on success_rate
	Latency     float64 // gamma: weight on normalized_avg_response_time (penalty)
}

// DefaultScoringWeights matches the teacher's preference for a dominant
// primary signal with smaller secondary adjustments.
func DefaultScoringWeights() ScoringWeights {
	return ScoringWeights{Proficiency: 0.5, Health: 0.2, Success: 0.2, Latency: 0.1}
}

// Filter narrows List() results.
type Filter struct {
	Status     *types.AgentStatus
	Capability *types.CapabilityType
	Tags       []string
}

// Registry is the Agent Registry.
type Registry struct {
	mu      sync.RWMutex
	agents  map[string]*types.AgentMetadata
	weights ScoringWeights

	// latencyCeiling normalizes avg_response_time into [0,1] for scoring.
	latencyCeiling time.Duration
}

// New creates an empty Registry.
func New(weights ScoringWeights, latencyCeiling time.Duration) *Registry {
	if latencyCeiling <= 0 {
		latencyCeiling = 30 * time.Second
	}
	return &Registry{
		agents:         make(map[string]*types.AgentMetadata),
		weights:        weights,
		latencyCeiling: latencyCeiling,
	}
}

// Register adds or updates an agent and returns its agent_id. If
// metadata.AgentID is empty, a new one is generated.
func (r *Registry) Register(metadata types.AgentMetadata) (string, error) {
	if metadata.Name == "" {
		return "", fmt.Errorf("registry: agent name is required")
	}
	if metadata.AgentID == "" {
		metadata.AgentID = uuid.NewString()
	}
	if metadata.Status == "" {
		metadata.Status = types.AgentActive
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	copied := metadata
	r.agents[metadata.AgentID] = &copied
	return metadata.AgentID, nil
}

// Unregister transitions an agent to inactive status; idempotent.
func (r *Registry) Unregister(agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[agentID]
	if !ok {
		return fmt.Errorf("registry: agent %q not found", agentID)
	}
	a.Status = types.AgentInactive
	return nil
}

// List returns agents matching filter, ordered by health_score desc then
// success_rate desc.
func (r *Registry) List(filter Filter) []types.AgentMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []types.AgentMetadata
	for _, a := range r.agents {
		if !matchesFilter(*a, filter) {
			continue
		}
		out = append(out, *a)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].HealthScore != out[j].HealthScore {
			return out[i].HealthScore > out[j].HealthScore
		}
		return out[i].SuccessRate > out[j].SuccessRate
	})
	return out
}

func matchesFilter(a types.AgentMetadata, f Filter) bool {
	if f.Status != nil && a.Status != *f.Status {
		return false
	}
	if f.Capability != nil {
		found := false
		for _, c := range a.Capabilities {
			if c.Type == *f.Capability {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, tag := range f.Tags {
		if _, ok := a.Tags[tag]; !ok {
			return false
		}
	}
	return true
}

// FindBestForTask returns the agent_id of the best candidate possessing
// ALL required capabilities (and, if languages is non-empty, at least one
// matching SupportedLanguages entry on each required capability that lists
// any; a capability with no SupportedLanguages matches every language), or
// "" if none qualifies.
func (r *Registry) FindBestForTask(required []types.CapabilityType, languages []string, minProficiency float64) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	type candidate struct {
		id    string
		score float64
		count int64
	}
	var candidates []candidate

	for id, a := range r.agents {
		if a.Status != types.AgentActive {
			continue
		}
		capsByType := make(map[types.CapabilityType]types.AgentCapability, len(a.Capabilities))
		for _, c := range a.Capabilities {
			capsByType[c.Type] = c
		}

		qualifies := true
		var proficiencySum float64
		for _, req := range required {
			c, ok := capsByType[req]
			if !ok || c.ProficiencyLevel < minProficiency {
				qualifies = false
				break
			}
			if len(languages) > 0 && len(c.SupportedLanguages) > 0 && !anyLanguageMatch(c.SupportedLanguages, languages) {
				qualifies = false
				break
			}
			proficiencySum += c.ProficiencyLevel
		}
		if !qualifies || len(required) == 0 {
			continue
		}

		avgProficiency := proficiencySum / float64(len(required))
		normalizedLatency := normalizeLatency(a.AvgResponseTime, r.latencyCeiling)
		score := r.weights.Proficiency*avgProficiency +
			r.weights.Health*a.HealthScore +
			r.weights.Success*a.SuccessRate -
			r.weights.Latency*normalizedLatency

		candidates = append(candidates, candidate{id: id, score: score, count: a.ExecutionCount})
	}

	if len(candidates) == 0 {
		return ""
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		if candidates[i].count != candidates[j].count {
			return candidates[i].count < candidates[j].count
		}
		return candidates[i].id < candidates[j].id
	})
	return candidates[0].id
}

func anyLanguageMatch(supported, requested []string) bool {
	set := make(map[string]struct{}, len(supported))
	for _, s := range supported {
		set[s] = struct{}{}
	}
	for _, r := range requested {
		if _, ok := set[r]; ok {
			return true
		}
	}
	return false
}

func normalizeLatency(d, ceiling time.Duration) float64 {
	if ceiling <= 0 {
		return 0
	}
	v := float64(d) / float64(ceiling)
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}

// RecordExecution updates execution_count and the exponential moving
// average of success_rate and avg_response_time (weight 0.1 on the new
// sample), matching the spec's 4.J contract.
func (r *Registry) RecordExecution(agentID string, success bool, duration time.Duration) error {
	const emaWeight = 0.1

	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.agents[agentID]
	if !ok {
		return fmt.Errorf("registry: agent %q not found", agentID)
	}

	a.ExecutionCount++
	sample := 0.0
	if success {
		sample = 1.0
	}
	a.SuccessRate = (1-emaWeight)*a.SuccessRate + emaWeight*sample
	a.AvgResponseTime = time.Duration((1-emaWeight)*float64(a.AvgResponseTime) + emaWeight*float64(duration))
	return nil
}

// Get returns a copy of one agent's metadata.
func (r *Registry) Get(agentID string) (types.AgentMetadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[agentID]
	if !ok {
		return types.AgentMetadata{}, false
	}
	return *a, true
}

// SetStatus transitions an agent's status. Transitions are idempotent: no
// error setting the same status twice.
func (r *Registry) SetStatus(agentID string, status types.AgentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[agentID]
	if !ok {
		return fmt.Errorf("registry: agent %q not found", agentID)
	}
	a.Status = status
	return nil
}
