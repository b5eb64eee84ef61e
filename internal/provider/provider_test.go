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

package provider

import (
	"context"
	"errors"
	"testing"
	"time"
)

// MockProvider is a mock implementation of the Provider interface for testing.
type MockProvider struct {
	name            string
	providerType    ProviderType
	capabilities    []Capability
	healthStatus    HealthStatus
	invokeResp      *InvokeResult
	invokeErr       error
	healthCheckResp *HealthCheckResult
	healthCheckErr  error
	costEstimate    *CostEstimate
}

// Name implements Provider.
func (m *MockProvider) Name() string {
	return m.name
}

// Type implements Provider.
func (m *MockProvider) Type() ProviderType {
	return m.providerType
}

// Invoke implements Provider.
func (m *MockProvider) Invoke(ctx context.Context, modelID, prompt string, params InvokeParams) (*InvokeResult, error) {
	if m.invokeErr != nil {
		return nil, m.invokeErr
	}
	if m.invokeResp != nil {
		return m.invokeResp, nil
	}
	return &InvokeResult{
		Text:      "mock response to: " + prompt,
		TokensIn:  10,
		TokensOut: 5,
		LatencyMs: int64(100 * time.Millisecond / time.Millisecond),
	}, nil
}

// HealthCheck implements Provider.
func (m *MockProvider) HealthCheck(ctx context.Context) (*HealthCheckResult, error) {
	if m.healthCheckErr != nil {
		return nil, m.healthCheckErr
	}
	if m.healthCheckResp != nil {
		return m.healthCheckResp, nil
	}
	return &HealthCheckResult{
		Status:      m.healthStatus,
		Latency:     50 * time.Millisecond,
		LastChecked: time.Now(),
	}, nil
}

// Capabilities implements Provider.
func (m *MockProvider) Capabilities() []Capability {
	if m.capabilities != nil {
		return m.capabilities
	}
	return []Capability{CapabilityChat, CapabilityCompletion}
}

// EstimateCost implements Provider.
func (m *MockProvider) EstimateCost(tokensIn, tokensOut int) *CostEstimate {
	return m.costEstimate
}

// NewMockProvider creates a new mock provider for testing.
func NewMockProvider(name string, providerType ProviderType) *MockProvider {
	return &MockProvider{
		name:         name,
		providerType: providerType,
		healthStatus: HealthStatusHealthy,
	}
}

// TestProviderInterface verifies that MockProvider correctly implements Provider.
func TestProviderInterface(t *testing.T) {
	var _ Provider = (*MockProvider)(nil)
}

func TestMockProvider_Name(t *testing.T) {
	p := NewMockProvider("test-provider", ProviderTypeOpenAI)
	if p.Name() != "test-provider" {
		t.Errorf("Name() = %q, want %q", p.Name(), "test-provider")
	}
}

func TestMockProvider_Type(t *testing.T) {
	tests := []struct {
		name         string
		providerType ProviderType
	}{
		{"OpenAI", ProviderTypeOpenAI},
		{"Anthropic", ProviderTypeAnthropic},
		{"AzureOpenAI", ProviderTypeAzureOpenAI},
		{"Ollama", ProviderTypeOllama},
		{"Custom", ProviderTypeCustom},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewMockProvider("test", tt.providerType)
			if p.Type() != tt.providerType {
				t.Errorf("Type() = %v, want %v", p.Type(), tt.providerType)
			}
		})
	}
}

func TestMockProvider_Invoke(t *testing.T) {
	ctx := context.Background()

	t.Run("successful invocation", func(t *testing.T) {
		p := NewMockProvider("test", ProviderTypeOpenAI)

		resp, err := p.Invoke(ctx, "gpt-4o", "Hello, world!", InvokeParams{})
		if err != nil {
			t.Fatalf("Invoke() error = %v", err)
		}
		if resp == nil {
			t.Fatal("Invoke() returned nil response")
		}
		if resp.Text == "" {
			t.Error("Invoke() returned empty text")
		}
	})

	t.Run("custom response", func(t *testing.T) {
		p := NewMockProvider("test", ProviderTypeAnthropic)
		p.invokeResp = &InvokeResult{
			Text:      "Custom response",
			TokensIn:  100,
			TokensOut: 200,
			LatencyMs: 42,
			Extensions: map[string]any{
				"response_model": "claude-3-5-sonnet",
			},
		}

		resp, err := p.Invoke(ctx, "claude-3-5-sonnet-20241022", "Test", InvokeParams{})
		if err != nil {
			t.Fatalf("Invoke() error = %v", err)
		}
		if resp.Text != "Custom response" {
			t.Errorf("Text = %q, want %q", resp.Text, "Custom response")
		}
		if resp.TokensIn+resp.TokensOut != 300 {
			t.Errorf("total tokens = %d, want %d", resp.TokensIn+resp.TokensOut, 300)
		}
	})

	t.Run("error response", func(t *testing.T) {
		p := NewMockProvider("test", ProviderTypeOpenAI)
		p.invokeErr = &Error{Kind: KindRateLimited, Provider: "openai", Message: "rate limit exceeded"}

		_, err := p.Invoke(ctx, "gpt-4o", "Test", InvokeParams{})
		if err == nil {
			t.Fatal("Invoke() expected error, got nil")
		}

		var provErr *Error
		if !errors.As(err, &provErr) {
			t.Fatalf("expected *Error, got %T", err)
		}
		if provErr.Kind != KindRateLimited {
			t.Errorf("error kind = %q, want %q", provErr.Kind, KindRateLimited)
		}
		if !provErr.Retryable() {
			t.Error("expected rate-limited errors to be retryable")
		}
	})
}

func TestMockProvider_HealthCheck(t *testing.T) {
	ctx := context.Background()

	t.Run("healthy provider", func(t *testing.T) {
		p := NewMockProvider("test", ProviderTypeOpenAI)
		p.healthStatus = HealthStatusHealthy

		result, err := p.HealthCheck(ctx)
		if err != nil {
			t.Fatalf("HealthCheck() error = %v", err)
		}
		if result.Status != HealthStatusHealthy {
			t.Errorf("Status = %v, want %v", result.Status, HealthStatusHealthy)
		}
	})

	t.Run("unhealthy provider", func(t *testing.T) {
		p := NewMockProvider("test", ProviderTypeAnthropic)
		p.healthStatus = HealthStatusUnhealthy

		result, err := p.HealthCheck(ctx)
		if err != nil {
			t.Fatalf("HealthCheck() error = %v", err)
		}
		if result.Status != HealthStatusUnhealthy {
			t.Errorf("Status = %v, want %v", result.Status, HealthStatusUnhealthy)
		}
	})

	t.Run("health check error", func(t *testing.T) {
		p := NewMockProvider("test", ProviderTypeAzureOpenAI)
		p.healthCheckErr = &Error{Kind: KindProviderUnavailable, Provider: "azure-openai", Message: "service unavailable"}

		_, err := p.HealthCheck(ctx)
		if err == nil {
			t.Fatal("HealthCheck() expected error, got nil")
		}
	})
}

func TestMockProvider_Capabilities(t *testing.T) {
	t.Run("default capabilities", func(t *testing.T) {
		p := NewMockProvider("test", ProviderTypeOpenAI)
		caps := p.Capabilities()
		if len(caps) != 2 {
			t.Errorf("Capabilities() length = %d, want %d", len(caps), 2)
		}
	})

	t.Run("custom capabilities", func(t *testing.T) {
		p := NewMockProvider("test", ProviderTypeAnthropic)
		p.capabilities = []Capability{
			CapabilityChat,
			CapabilityVision,
			CapabilityLongContext,
		}

		caps := p.Capabilities()
		if len(caps) != 3 {
			t.Errorf("Capabilities() length = %d, want %d", len(caps), 3)
		}

		hasVision := false
		for _, c := range caps {
			if c == CapabilityVision {
				hasVision = true
			}
		}
		if !hasVision {
			t.Error("expected CapabilityVision in capabilities")
		}
	})
}

func TestMockProvider_EstimateCost(t *testing.T) {
	t.Run("no cost estimate", func(t *testing.T) {
		p := NewMockProvider("test", ProviderTypeOllama)
		estimate := p.EstimateCost(10, 20)
		if estimate != nil {
			t.Error("EstimateCost() expected nil for Ollama")
		}
	})

	t.Run("with cost estimate", func(t *testing.T) {
		p := NewMockProvider("test", ProviderTypeOpenAI)
		p.costEstimate = &CostEstimate{
			InputCostPer1K:  0.01,
			OutputCostPer1K: 0.03,
			TotalEstimate:   0.05,
			Currency:        "USD",
		}

		estimate := p.EstimateCost(10, 20)
		if estimate == nil {
			t.Fatal("EstimateCost() returned nil")
		}
		if estimate.TotalEstimate != 0.05 {
			t.Errorf("TotalEstimate = %f, want %f", estimate.TotalEstimate, 0.05)
		}
	})
}

func TestProviderConfig_Fields(t *testing.T) {
	config := ProviderConfig{
		Name:           "anthropic-primary",
		Type:           ProviderTypeAnthropic,
		APIKey:         "sk-test-key",
		Endpoint:       "https://api.anthropic.com",
		Model:          "claude-3-5-sonnet-20241022",
		Enabled:        true,
		TimeoutSeconds: 30,
		Settings: map[string]any{
			"max_retries": 3,
		},
	}

	if config.Name != "anthropic-primary" {
		t.Errorf("Name = %q, want %q", config.Name, "anthropic-primary")
	}
	if config.Type != ProviderTypeAnthropic {
		t.Errorf("Type = %v, want %v", config.Type, ProviderTypeAnthropic)
	}
	if !config.Enabled {
		t.Error("Enabled = false, want true")
	}
	if config.Settings["max_retries"] != 3 {
		t.Errorf("Settings[max_retries] = %v, want 3", config.Settings["max_retries"])
	}
}
