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
	"testing"
	"time"

	"axonflow/corerouter/internal/cache"
	"axonflow/corerouter/internal/provider"
	"axonflow/corerouter/internal/registry"
	"axonflow/corerouter/internal/types"
)

const testManifest = `
apiVersion: axonflow.io/v1
kind: ModelManifest
metadata:
  name: test-models
  version: "1"
spec:
  models:
    - provider: anthropic
      model_id: claude-3-opus
      code_gen_score: 0.95
      reasoning_score: 0.97
      context_window: 200000
      latency_hint_ms: 2200
      cost_per_token_in: 0.000015
      cost_per_token_out: 0.000075
      reliability: 0.98
      specializations: ["architecture", "security"]
      complexity_floor: complex
    - provider: anthropic
      model_id: claude-3-haiku
      code_gen_score: 0.78
      reasoning_score: 0.72
      context_window: 200000
      latency_hint_ms: 450
      cost_per_token_in: 0.00000025
      cost_per_token_out: 0.00000125
      reliability: 0.97
      specializations: ["code_generation"]
      complexity_floor: trivial
`

// fakeProvider is a minimal provider.Provider stub for exercising
// Orchestrate's invoke path without a live network call.
type fakeProvider struct {
	name    string
	content string
	err     error
}

func (f *fakeProvider) Name() string                { return f.name }
func (f *fakeProvider) Type() provider.ProviderType { return provider.ProviderTypeAnthropic }
func (f *fakeProvider) Invoke(ctx context.Context, modelID, prompt string, params provider.InvokeParams) (*provider.InvokeResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &provider.InvokeResult{
		Text:      f.content,
		TokensIn:  10,
		TokensOut: 20,
		LatencyMs: 5,
	}, nil
}
func (f *fakeProvider) HealthCheck(ctx context.Context) (*provider.HealthCheckResult, error) {
	return &provider.HealthCheckResult{Status: provider.HealthStatusHealthy}, nil
}
func (f *fakeProvider) Capabilities() []provider.Capability { return nil }
func (f *fakeProvider) EstimateCost(tokensIn, tokensOut int) *provider.CostEstimate { return nil }

func newTestOrchestrator(t *testing.T) (*Orchestrator, *fakeProvider) {
	t.Helper()
	reg, err := registry.Parse([]byte(testManifest))
	if err != nil {
		t.Fatalf("registry.Parse: %v", err)
	}

	providers := provider.NewRegistry()
	fp := &fakeProvider{name: "anthropic", content: "hello from anthropic"}
	if err := providers.RegisterProvider("anthropic", fp, nil); err != nil {
		t.Fatalf("RegisterProvider: %v", err)
	}

	return New(reg, providers), fp
}

func TestOrchestrate_RoutesAndInvokes(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	ctx := context.Background()

	result, err := o.Orchestrate(ctx, types.Request{Prompt: "write a quicksort function in go"})
	if err != nil {
		t.Fatalf("Orchestrate: %v", err)
	}
	if result.Decision.Provider == "" {
		t.Fatal("expected a routing decision to be populated")
	}
	if result.Error != "" {
		t.Fatalf("expected no execution error, got %q", result.Error)
	}
	if result.Content == "" {
		t.Fatal("expected provider content to be populated")
	}
}

func TestOrchestrate_ProviderFailureSurfacesAsResultError(t *testing.T) {
	reg, err := registry.Parse([]byte(testManifest))
	if err != nil {
		t.Fatalf("registry.Parse: %v", err)
	}
	providers := provider.NewRegistry()
	failing := &fakeProvider{name: "anthropic", err: context.DeadlineExceeded}
	if err := providers.RegisterProvider("anthropic", failing, nil); err != nil {
		t.Fatalf("RegisterProvider: %v", err)
	}

	o := New(reg, providers)
	result, err := o.Orchestrate(context.Background(), types.Request{Prompt: "write a quicksort function"})
	if err != nil {
		t.Fatalf("Orchestrate should not fail the whole request on a provider error: %v", err)
	}
	if result.Error == "" {
		t.Fatal("expected result.Error to report the provider failure")
	}
}

func TestOrchestrate_CacheHitSkipsReroute(t *testing.T) {
	reg, err := registry.Parse([]byte(testManifest))
	if err != nil {
		t.Fatalf("registry.Parse: %v", err)
	}
	providers := provider.NewRegistry()
	fp := &fakeProvider{name: "anthropic", content: "cached response"}
	if err := providers.RegisterProvider("anthropic", fp, nil); err != nil {
		t.Fatalf("RegisterProvider: %v", err)
	}

	o := New(reg, providers, WithCache(cache.NewLRUCache(16, nil), time.Minute))
	req := types.Request{Prompt: "write a quicksort function"}

	first, err := o.Orchestrate(context.Background(), req)
	if err != nil {
		t.Fatalf("Orchestrate: %v", err)
	}
	if first.CacheHit {
		t.Fatal("expected the first call to miss the cache")
	}

	second, err := o.Orchestrate(context.Background(), req)
	if err != nil {
		t.Fatalf("Orchestrate: %v", err)
	}
	if !second.CacheHit {
		t.Fatal("expected the second identical call to hit the cache")
	}
	if second.Decision.ModelID != first.Decision.ModelID {
		t.Fatalf("cached decision changed: %+v vs %+v", first.Decision, second.Decision)
	}
}

func TestDebugRoute_ReportsModelScores(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	info, err := o.DebugRoute(context.Background(), types.Request{Prompt: "design a distributed rate limiter architecture"})
	if err != nil {
		t.Fatalf("DebugRoute: %v", err)
	}
	if len(info.Metadata.ModelScores) == 0 {
		t.Fatal("expected model_scores to be populated")
	}
	if info.Metadata.ContextType == "" {
		t.Fatal("expected context_type to be populated")
	}
	if info.ScoringBreakdown.Capability == 0 {
		t.Fatal("expected a non-zero capability score in the scoring breakdown")
	}
}

func TestOrchestrate_NoProviderRegistryReportsError(t *testing.T) {
	reg, err := registry.Parse([]byte(testManifest))
	if err != nil {
		t.Fatalf("registry.Parse: %v", err)
	}

	o := New(reg, nil)
	result, err := o.Orchestrate(context.Background(), types.Request{Prompt: "write a function"})
	if err != nil {
		t.Fatalf("Orchestrate: %v", err)
	}
	if result.Error == "" {
		t.Fatal("expected result.Error when no provider registry is configured")
	}
}
