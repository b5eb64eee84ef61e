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

	"axonflow/corerouter/internal/types"
)

// domainTemplates breaks a context type into the ordered capability
// subtasks the Multi-Agent Coordinator fans out to specialist agents,
// generalizing the deleted planning engine's per-domain task template
// concept onto this package's ContextType taxonomy.
var domainTemplates = map[types.ContextType][]types.CapabilityType{
	types.ContextArchitecture:  {types.CapabilityArchitecture, types.CapabilityCodeGen, types.CapabilityReview},
	types.ContextCodeGeneration: {types.CapabilityCodeGen, types.CapabilityTesting},
	types.ContextSecurity:      {types.CapabilitySecurity, types.CapabilityReview},
	types.ContextRefactoring:   {types.CapabilityCodeGen, types.CapabilityReview},
	types.ContextTesting:       {types.CapabilityTesting},
	types.ContextDebugging:     {types.CapabilityCodeAnalysis, types.CapabilityCodeGen},
	types.ContextPerformance:   {types.CapabilityCodeAnalysis, types.CapabilityCodeGen},
	types.ContextDocumentation: {types.CapabilityDocs},
	types.ContextReview:        {types.CapabilityReview},
}

// complexityLevelsThatDecompose are the bands where a request is worth
// splitting across specialist agents instead of a single model call.
var complexityLevelsThatDecompose = map[string]bool{
	"very_complex": true,
	"expert":       true,
	"critical":     true,
}

func shouldDecompose(decision types.RoutingDecision) bool {
	return complexityLevelsThatDecompose[metadataString(decision.Metadata, "complexity_level")]
}

// runMultiAgent decomposes req into one subtask per capability in the
// matching domain template, runs them concurrently, and synthesizes the
// final text by concatenating each successful subtask's content under a
// capability heading -- the concatenation fallback the deleted result
// aggregator used when no smarter merge strategy applied.
func (o *Orchestrator) runMultiAgent(ctx context.Context, req types.Request, decision types.RoutingDecision) ([]AgentStep, string, error) {
	contextType := types.ContextType(metadataString(decision.Metadata, "context_type"))
	capabilities, ok := domainTemplates[contextType]
	if !ok || len(capabilities) == 0 {
		capabilities = []types.CapabilityType{types.CapabilityCodeGen}
	}

	steps := make([]AgentStep, len(capabilities))
	var wg sync.WaitGroup
	for i, capability := range capabilities {
		wg.Add(1)
		go func(i int, capability types.CapabilityType) {
			defer wg.Done()
			steps[i] = o.runSubtask(ctx, req, decision, capability)
		}(i, capability)
	}
	wg.Wait()

	parts := make([]string, 0, len(steps))
	successCount := 0
	for _, s := range steps {
		if s.Success {
			successCount++
			parts = append(parts, fmt.Sprintf("[%s]\n%s", s.Capability, s.Content))
		}
	}
	if successCount == 0 {
		return steps, "", fmt.Errorf("core: all %d subtasks failed", len(steps))
	}
	return steps, strings.Join(parts, "\n\n"), nil
}

// runSubtask dispatches one capability's subtask to the best-matching
// registered agent over the bus, falling back to a direct provider
// invocation when no agent qualifies or the bus call fails -- the
// coordinator always produces something for a capability it was asked for.
func (o *Orchestrator) runSubtask(ctx context.Context, req types.Request, decision types.RoutingDecision, capability types.CapabilityType) AgentStep {
	start := time.Now()

	var languages []string
	if req.Language != "" {
		languages = []string{req.Language}
	}

	if agentID := o.agents.FindBestForTask([]types.CapabilityType{capability}, languages, 0.5); agentID != "" {
		msg := types.AgentMessage{
			FromAgent: "orchestrator",
			ToAgent:   agentID,
			Type:      types.MessageTaskRequest,
			Priority:  types.PriorityNormal,
			Payload: map[string]any{
				"prompt":     req.Prompt,
				"capability": string(capability),
				"persona":    string(decision.Persona),
			},
		}
		reply, err := o.bus.RequestResponse(ctx, msg, o.agentTimeout)
		duration := time.Since(start)
		if err == nil {
			content, _ := reply.Payload.(string)
			success := content != ""
			_ = o.agents.RecordExecution(agentID, success, duration)
			return AgentStep{Capability: capability, AgentID: agentID, Content: content, Success: success, Duration: duration}
		}
		_ = o.agents.RecordExecution(agentID, false, duration)
	}

	content, _, err := o.invoke(ctx, decision, req)
	duration := time.Since(start)
	if err != nil {
		return AgentStep{Capability: capability, Content: "", Success: false, Error: err.Error(), Duration: duration}
	}
	return AgentStep{Capability: capability, Content: content, Success: true, Duration: duration}
}
