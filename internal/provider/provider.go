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
)

// Provider is the unified interface every LLM adapter implements.
// Implementations must be safe for concurrent use.
//
// This interface unifies openai, anthropic, azure-openai, ollama, and
// gemini adapters behind one pluggable contract: Invoke is the closed
// {text, tokens_in, tokens_out, latency_ms} + extensions shape, so the
// router and cost estimator never depend on any one vendor's wire format.
type Provider interface {
	// Name returns the unique identifier for this provider instance.
	// Example: "anthropic-primary", "openai-backup".
	Name() string

	// Type returns the provider type (e.g. "openai", "anthropic").
	Type() ProviderType

	// Invoke generates a completion for modelID given prompt and params.
	// ctx governs cancellation: a cancelled ctx must abort the in-flight
	// network call, not merely stop waiting on it. Errors are always of
	// type *Error, classified into one of the four ErrorKinds.
	Invoke(ctx context.Context, modelID, prompt string, params InvokeParams) (*InvokeResult, error)

	// HealthCheck verifies the provider is operational. Implementations
	// should check API connectivity/authentication and complete within a
	// reasonable timeout (e.g. 10s).
	HealthCheck(ctx context.Context) (*HealthCheckResult, error)

	// Capabilities returns the list of features this provider supports.
	// Used by the router to determine if a provider can handle a request.
	Capabilities() []Capability

	// EstimateCost projects the USD cost of a completion with the given
	// token counts. Returns nil if cost estimation is not supported.
	EstimateCost(tokensIn, tokensOut int) *CostEstimate
}

// ConfigurableProvider extends Provider with runtime configuration.
type ConfigurableProvider interface {
	Provider

	// Configure updates the provider configuration. Safe to call while
	// the provider is in use.
	Configure(config ProviderConfig) error

	// GetConfig returns the current provider configuration.
	GetConfig() ProviderConfig
}

// ProviderConfig contains the configuration needed to create a provider.
type ProviderConfig struct {
	// Name is the unique identifier for this provider instance.
	Name string `json:"name"`

	// Type identifies the provider implementation to use.
	Type ProviderType `json:"type"`

	// APIKey is the authentication key for the provider API.
	APIKey string `json:"api_key,omitempty"`

	// Endpoint is the API endpoint URL. If empty, provider defaults apply.
	Endpoint string `json:"endpoint,omitempty"`

	// Model is the default model to use.
	Model string `json:"model,omitempty"`

	// Enabled indicates if this provider is available for routing.
	Enabled bool `json:"enabled"`

	// TimeoutSeconds is the request timeout (0 = provider default).
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`

	// Settings contains provider-specific configuration, e.g. Azure's
	// "api_version" or Azure's deployment auth mode override.
	Settings map[string]any `json:"settings,omitempty"`
}

// Note: compile-time interface compliance checks for each adapter live in
// factories.go; mock implementations are checked in provider_test.go.
