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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"axonflow/corerouter/internal/provider/anthropic"
	"axonflow/corerouter/internal/provider/azure"
	"axonflow/corerouter/internal/provider/gemini"
)

// init registers all built-in provider factories.
func init() {
	RegisterFactory(ProviderTypeAnthropic, NewAnthropicProviderFactory)
	RegisterFactory(ProviderTypeOpenAI, NewOpenAIProviderFactory)
	RegisterFactory(ProviderTypeOllama, NewOllamaProviderFactory)
	RegisterFactory(ProviderTypeGemini, NewGeminiProviderFactory)
	RegisterFactory(ProviderTypeAzureOpenAI, NewAzureOpenAIProviderFactory)
}

// classifyCtxErr reports the ErrorKind for a ctx that errored during an
// in-flight HTTP call. Returns ("", false) if ctx has no error.
func classifyCtxErr(ctx context.Context) (ErrorKind, bool) {
	if ctx.Err() != nil {
		return KindTimeout, true
	}
	return "", false
}

// NewAnthropicProviderFactory creates an Anthropic provider from configuration.
func NewAnthropicProviderFactory(config ProviderConfig) (Provider, error) {
	if config.APIKey == "" {
		return nil, &FactoryError{
			ProviderType: ProviderTypeAnthropic,
			Code:         ErrFactoryInvalidConfig,
			Message:      "API key is required for Anthropic provider",
		}
	}

	model := config.Model
	if model == "" {
		model = anthropic.DefaultModel
	}

	timeout := 120 * time.Second
	if config.TimeoutSeconds > 0 {
		timeout = time.Duration(config.TimeoutSeconds) * time.Second
	}

	endpoint := config.Endpoint
	if endpoint == "" {
		endpoint = anthropic.DefaultBaseURL
	}

	p, err := anthropic.NewProvider(anthropic.Config{
		APIKey:  config.APIKey,
		BaseURL: endpoint,
		Model:   model,
		Timeout: timeout,
	})
	if err != nil {
		return nil, &FactoryError{
			ProviderType: ProviderTypeAnthropic,
			Code:         ErrFactoryCreationFailed,
			Message:      fmt.Sprintf("failed to create Anthropic provider: %v", err),
			Cause:        err,
		}
	}

	return &AnthropicProviderAdapter{provider: p, name: config.Name}, nil
}

// AnthropicProviderAdapter adapts anthropic.Provider to the unified Provider interface.
type AnthropicProviderAdapter struct {
	provider *anthropic.Provider
	name     string
}

func (a *AnthropicProviderAdapter) Name() string       { return a.name }
func (a *AnthropicProviderAdapter) Type() ProviderType { return ProviderTypeAnthropic }

// Invoke translates the closed invoke contract into an anthropic.Request,
// and the vendor result/error back into InvokeResult/*Error.
func (a *AnthropicProviderAdapter) Invoke(ctx context.Context, modelID, prompt string, params InvokeParams) (*InvokeResult, error) {
	resp, err := a.provider.Invoke(ctx, anthropic.Request{
		Prompt:        prompt,
		SystemPrompt:  params.SystemPrompt,
		MaxTokens:     params.MaxTokens,
		Temperature:   params.Temperature,
		TopP:          params.TopP,
		TopK:          params.TopK,
		Model:         modelID,
		StopSequences: params.StopSequences,
	})
	if err != nil {
		return nil, a.classifyError(ctx, err)
	}

	return &InvokeResult{
		Text:      resp.Text,
		TokensIn:  resp.TokensIn,
		TokensOut: resp.TokensOut,
		LatencyMs: resp.Latency.Milliseconds(),
		Extensions: map[string]any{
			"stop_reason":   resp.StopReason,
			"response_model": resp.Model,
		},
	}, nil
}

func (a *AnthropicProviderAdapter) classifyError(ctx context.Context, err error) *Error {
	if kind, ok := classifyCtxErr(ctx); ok {
		return &Error{Kind: kind, Provider: a.name, Message: err.Error(), Cause: err}
	}

	var apiErr *anthropic.APIError
	if aerr, ok := err.(*anthropic.APIError); ok {
		apiErr = aerr
		switch {
		case apiErr.IsRateLimitError():
			return &Error{Kind: KindRateLimited, Provider: a.name, Message: apiErr.Message, Cause: err}
		case apiErr.IsAuthError():
			return &Error{Kind: KindInvalidRequest, Provider: a.name, Message: apiErr.Message, Cause: err}
		case apiErr.IsOverloadedError():
			return &Error{Kind: KindProviderUnavailable, Provider: a.name, Message: apiErr.Message, Cause: err}
		case apiErr.StatusCode >= 500:
			return &Error{Kind: KindProviderUnavailable, Provider: a.name, Message: apiErr.Message, Cause: err}
		case apiErr.StatusCode >= 400:
			return &Error{Kind: KindInvalidRequest, Provider: a.name, Message: apiErr.Message, Cause: err}
		}
	}

	return &Error{Kind: KindProviderUnavailable, Provider: a.name, Message: err.Error(), Cause: err}
}

func (a *AnthropicProviderAdapter) HealthCheck(ctx context.Context) (*HealthCheckResult, error) {
	return adaptHealth(a.provider.IsHealthy()), nil
}

func (a *AnthropicProviderAdapter) Capabilities() []Capability {
	return []Capability{
		CapabilityChat,
		CapabilityCompletion,
		CapabilityVision,
		CapabilityCodeGeneration,
		CapabilityLongContext,
	}
}

func (a *AnthropicProviderAdapter) EstimateCost(tokensIn, tokensOut int) *CostEstimate {
	return costEstimate(tokensIn, tokensOut, anthropicInputCostPer1K, anthropicOutputCostPer1K)
}

var _ Provider = (*AnthropicProviderAdapter)(nil)

// NewGeminiProviderFactory creates a Google Gemini provider from configuration.
func NewGeminiProviderFactory(config ProviderConfig) (Provider, error) {
	if config.APIKey == "" {
		return nil, &FactoryError{
			ProviderType: ProviderTypeGemini,
			Code:         ErrFactoryInvalidConfig,
			Message:      "API key is required for Gemini provider",
		}
	}

	model := config.Model
	if model == "" {
		model = gemini.DefaultModel
	}

	timeout := 120 * time.Second
	if config.TimeoutSeconds > 0 {
		timeout = time.Duration(config.TimeoutSeconds) * time.Second
	}

	endpoint := config.Endpoint
	if endpoint == "" {
		endpoint = gemini.DefaultBaseURL
	}

	p, err := gemini.NewProvider(gemini.Config{
		APIKey:  config.APIKey,
		BaseURL: endpoint,
		Model:   model,
		Timeout: timeout,
	})
	if err != nil {
		return nil, &FactoryError{
			ProviderType: ProviderTypeGemini,
			Code:         ErrFactoryCreationFailed,
			Message:      fmt.Sprintf("failed to create Gemini provider: %v", err),
			Cause:        err,
		}
	}

	return &GeminiProviderAdapter{provider: p, name: config.Name}, nil
}

// GeminiProviderAdapter adapts gemini.Provider to the unified Provider interface.
type GeminiProviderAdapter struct {
	provider *gemini.Provider
	name     string
}

func (a *GeminiProviderAdapter) Name() string       { return a.name }
func (a *GeminiProviderAdapter) Type() ProviderType { return ProviderTypeGemini }

func (a *GeminiProviderAdapter) Invoke(ctx context.Context, modelID, prompt string, params InvokeParams) (*InvokeResult, error) {
	resp, err := a.provider.Invoke(ctx, gemini.Request{
		Prompt:        prompt,
		SystemPrompt:  params.SystemPrompt,
		MaxTokens:     params.MaxTokens,
		Temperature:   params.Temperature,
		TopP:          params.TopP,
		TopK:          params.TopK,
		Model:         modelID,
		StopSequences: params.StopSequences,
	})
	if err != nil {
		return nil, a.classifyError(ctx, err)
	}

	return &InvokeResult{
		Text:      resp.Text,
		TokensIn:  resp.TokensIn,
		TokensOut: resp.TokensOut,
		LatencyMs: resp.Latency.Milliseconds(),
		Extensions: map[string]any{
			"stop_reason":    resp.StopReason,
			"response_model": resp.Model,
		},
	}, nil
}

func (a *GeminiProviderAdapter) classifyError(ctx context.Context, err error) *Error {
	if kind, ok := classifyCtxErr(ctx); ok {
		return &Error{Kind: kind, Provider: a.name, Message: err.Error(), Cause: err}
	}

	if apiErr, ok := err.(*gemini.APIError); ok {
		switch {
		case apiErr.IsRateLimitError(), apiErr.IsQuotaExceededError():
			return &Error{Kind: KindRateLimited, Provider: a.name, Message: apiErr.Message, Cause: err}
		case apiErr.IsAuthError():
			return &Error{Kind: KindInvalidRequest, Provider: a.name, Message: apiErr.Message, Cause: err}
		case apiErr.StatusCode >= 500:
			return &Error{Kind: KindProviderUnavailable, Provider: a.name, Message: apiErr.Message, Cause: err}
		case apiErr.StatusCode >= 400:
			return &Error{Kind: KindInvalidRequest, Provider: a.name, Message: apiErr.Message, Cause: err}
		}
	}

	return &Error{Kind: KindProviderUnavailable, Provider: a.name, Message: err.Error(), Cause: err}
}

func (a *GeminiProviderAdapter) HealthCheck(ctx context.Context) (*HealthCheckResult, error) {
	return adaptHealth(a.provider.IsHealthy()), nil
}

func (a *GeminiProviderAdapter) Capabilities() []Capability {
	return []Capability{
		CapabilityChat,
		CapabilityCompletion,
		CapabilityVision,
		CapabilityCodeGeneration,
		CapabilityLongContext,
		CapabilityFunctionCalling,
	}
}

func (a *GeminiProviderAdapter) EstimateCost(tokensIn, tokensOut int) *CostEstimate {
	return costEstimate(tokensIn, tokensOut, geminiInputCostPer1K, geminiOutputCostPer1K)
}

var _ Provider = (*GeminiProviderAdapter)(nil)

// NewAzureOpenAIProviderFactory creates an Azure OpenAI provider from configuration.
func NewAzureOpenAIProviderFactory(config ProviderConfig) (Provider, error) {
	if config.Endpoint == "" {
		return nil, &FactoryError{
			ProviderType: ProviderTypeAzureOpenAI,
			Code:         ErrFactoryInvalidConfig,
			Message:      "endpoint is required for Azure OpenAI provider",
		}
	}
	if config.APIKey == "" {
		return nil, &FactoryError{
			ProviderType: ProviderTypeAzureOpenAI,
			Code:         ErrFactoryInvalidConfig,
			Message:      "API key is required for Azure OpenAI provider",
		}
	}
	deploymentName := config.Model
	if deploymentName == "" {
		return nil, &FactoryError{
			ProviderType: ProviderTypeAzureOpenAI,
			Code:         ErrFactoryInvalidConfig,
			Message:      "deployment name (config.Model) is required for Azure OpenAI provider",
		}
	}

	timeout := 120 * time.Second
	if config.TimeoutSeconds > 0 {
		timeout = time.Duration(config.TimeoutSeconds) * time.Second
	}

	apiVersion := azure.DefaultAPIVersion
	if v, ok := config.Settings["api_version"].(string); ok && v != "" {
		apiVersion = v
	}

	p, err := azure.NewProvider(azure.Config{
		Endpoint:       config.Endpoint,
		APIKey:         config.APIKey,
		DeploymentName: deploymentName,
		APIVersion:     apiVersion,
		Timeout:        timeout,
	})
	if err != nil {
		return nil, &FactoryError{
			ProviderType: ProviderTypeAzureOpenAI,
			Code:         ErrFactoryCreationFailed,
			Message:      fmt.Sprintf("failed to create Azure OpenAI provider: %v", err),
			Cause:        err,
		}
	}

	return &AzureOpenAIProviderAdapter{provider: p, name: config.Name}, nil
}

// AzureOpenAIProviderAdapter adapts azure.Provider to the unified Provider interface.
type AzureOpenAIProviderAdapter struct {
	provider *azure.Provider
	name     string
}

func (a *AzureOpenAIProviderAdapter) Name() string       { return a.name }
func (a *AzureOpenAIProviderAdapter) Type() ProviderType { return ProviderTypeAzureOpenAI }

func (a *AzureOpenAIProviderAdapter) Invoke(ctx context.Context, modelID, prompt string, params InvokeParams) (*InvokeResult, error) {
	resp, err := a.provider.Invoke(ctx, azure.Request{
		Prompt:        prompt,
		SystemPrompt:  params.SystemPrompt,
		MaxTokens:     params.MaxTokens,
		Temperature:   params.Temperature,
		TopP:          params.TopP,
		Model:         modelID,
		StopSequences: params.StopSequences,
	})
	if err != nil {
		return nil, a.classifyError(ctx, err)
	}

	return &InvokeResult{
		Text:      resp.Text,
		TokensIn:  resp.TokensIn,
		TokensOut: resp.TokensOut,
		LatencyMs: resp.Latency.Milliseconds(),
		Extensions: map[string]any{
			"stop_reason":    resp.StopReason,
			"response_model": resp.Model,
			"auth_type":      string(a.provider.GetAuthType()),
		},
	}, nil
}

func (a *AzureOpenAIProviderAdapter) classifyError(ctx context.Context, err error) *Error {
	if kind, ok := classifyCtxErr(ctx); ok {
		return &Error{Kind: kind, Provider: a.name, Message: err.Error(), Cause: err}
	}

	if apiErr, ok := err.(*azure.APIError); ok {
		switch {
		case apiErr.IsRateLimitError(), apiErr.IsQuotaExceededError():
			return &Error{Kind: KindRateLimited, Provider: a.name, Message: apiErr.Message, Cause: err}
		case apiErr.IsAuthError():
			return &Error{Kind: KindInvalidRequest, Provider: a.name, Message: apiErr.Message, Cause: err}
		case apiErr.StatusCode >= 500:
			return &Error{Kind: KindProviderUnavailable, Provider: a.name, Message: apiErr.Message, Cause: err}
		case apiErr.StatusCode >= 400:
			return &Error{Kind: KindInvalidRequest, Provider: a.name, Message: apiErr.Message, Cause: err}
		}
	}

	return &Error{Kind: KindProviderUnavailable, Provider: a.name, Message: err.Error(), Cause: err}
}

func (a *AzureOpenAIProviderAdapter) HealthCheck(ctx context.Context) (*HealthCheckResult, error) {
	return adaptHealth(a.provider.IsHealthy()), nil
}

func (a *AzureOpenAIProviderAdapter) Capabilities() []Capability {
	return []Capability{
		CapabilityChat,
		CapabilityCompletion,
		CapabilityVision,
		CapabilityCodeGeneration,
		CapabilityFunctionCalling,
	}
}

func (a *AzureOpenAIProviderAdapter) EstimateCost(tokensIn, tokensOut int) *CostEstimate {
	return costEstimate(tokensIn, tokensOut, azureOpenAIInputCostPer1K, azureOpenAIOutputCostPer1K)
}

var _ Provider = (*AzureOpenAIProviderAdapter)(nil)

// adaptHealth converts a vendor's boolean health flag into a HealthCheckResult.
func adaptHealth(healthy bool) *HealthCheckResult {
	status := HealthStatusUnhealthy
	message := "provider reports unhealthy"
	if healthy {
		status = HealthStatusHealthy
		message = "provider is operational"
	}
	return &HealthCheckResult{
		Status:      status,
		Message:     message,
		LastChecked: time.Now(),
	}
}

// costEstimate builds a CostEstimate from the given token counts; a
// non-positive tokensIn falls back to 1 and a non-positive tokensOut to 1000
// so callers can estimate before a call completes.
func costEstimate(tokensIn, tokensOut int, inputCostPer1K, outputCostPer1K float64) *CostEstimate {
	if tokensIn <= 0 {
		tokensIn = 1
	}
	if tokensOut <= 0 {
		tokensOut = 1000
	}
	total := (float64(tokensIn)/1000)*inputCostPer1K + (float64(tokensOut)/1000)*outputCostPer1K
	return &CostEstimate{
		InputCostPer1K:        inputCostPer1K,
		OutputCostPer1K:       outputCostPer1K,
		EstimatedInputTokens:  tokensIn,
		EstimatedOutputTokens: tokensOut,
		TotalEstimate:         total,
		Currency:              "USD",
	}
}

// Pricing constants, per 1K tokens.

const (
	// OpenAI GPT-4o pricing (as of 2025).
	openAIInputCostPer1K  = 0.0025 // $2.50/1M input
	openAIOutputCostPer1K = 0.01   // $10/1M output
)

const (
	// Anthropic Claude 3.5 Sonnet pricing.
	anthropicInputCostPer1K  = 0.003 // $3/1M input
	anthropicOutputCostPer1K = 0.015 // $15/1M output
)

const (
	// Gemini 2.0 Flash pricing.
	geminiInputCostPer1K  = 0.0001 // $0.10/1M input
	geminiOutputCostPer1K = 0.0004 // $0.40/1M output
)

// Azure OpenAI pricing mirrors OpenAI's own GPT-4o pricing per 1K
// tokens; Azure bills the underlying model, not the hosting layer.
const (
	azureOpenAIInputCostPer1K  = openAIInputCostPer1K
	azureOpenAIOutputCostPer1K = openAIOutputCostPer1K
)

// OpenAI provider implementation (inline: no separate vendor-local request
// contract is worth maintaining for a single-endpoint chat completions API).

const (
	OpenAIDefaultModel    = "gpt-4o"
	OpenAIDefaultEndpoint = "https://api.openai.com"
	OpenAIDefaultTimeout  = 120 * time.Second
)

// NewOpenAIProviderFactory creates an OpenAI provider from configuration.
func NewOpenAIProviderFactory(config ProviderConfig) (Provider, error) {
	if config.APIKey == "" {
		return nil, &FactoryError{
			ProviderType: ProviderTypeOpenAI,
			Code:         ErrFactoryInvalidConfig,
			Message:      "API key is required for OpenAI provider",
		}
	}

	model := config.Model
	if model == "" {
		model = OpenAIDefaultModel
	}

	timeout := OpenAIDefaultTimeout
	if config.TimeoutSeconds > 0 {
		timeout = time.Duration(config.TimeoutSeconds) * time.Second
	}

	endpoint := config.Endpoint
	if endpoint == "" {
		endpoint = OpenAIDefaultEndpoint
	}

	return &OpenAIProvider{
		name:     config.Name,
		apiKey:   config.APIKey,
		endpoint: endpoint,
		model:    model,
		timeout:  timeout,
		client:   &http.Client{Timeout: timeout},
		healthy:  true,
	}, nil
}

// OpenAIProvider implements Provider for OpenAI's GPT models.
type OpenAIProvider struct {
	name     string
	apiKey   string
	endpoint string
	model    string
	timeout  time.Duration
	client   *http.Client
	healthy  bool
	mu       sync.RWMutex
}

func (p *OpenAIProvider) Name() string       { return p.name }
func (p *OpenAIProvider) Type() ProviderType { return ProviderTypeOpenAI }

func (p *OpenAIProvider) Invoke(ctx context.Context, modelID, prompt string, params InvokeParams) (*InvokeResult, error) {
	start := time.Now()

	model := modelID
	if model == "" {
		model = p.model
	}

	maxTokens := params.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	temperature := params.Temperature
	if temperature < 0 {
		temperature = 0.7
	}

	messages := make([]map[string]string, 0, 2)
	if params.SystemPrompt != "" {
		messages = append(messages, map[string]string{"role": "system", "content": params.SystemPrompt})
	}
	messages = append(messages, map[string]string{"role": "user", "content": prompt})

	openAIReq := map[string]any{
		"model":       model,
		"messages":    messages,
		"max_tokens":  maxTokens,
		"temperature": temperature,
	}
	if params.TopP > 0 {
		openAIReq["top_p"] = params.TopP
	}
	if len(params.StopSequences) > 0 {
		openAIReq["stop"] = params.StopSequences
	}

	reqBody, err := json.Marshal(openAIReq)
	if err != nil {
		return nil, &Error{Kind: KindInvalidRequest, Provider: p.name, Message: fmt.Sprintf("failed to marshal request: %v", err), Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.endpoint+"/v1/chat/completions", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, &Error{Kind: KindInvalidRequest, Provider: p.name, Message: fmt.Sprintf("failed to create request: %v", err), Cause: err}
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		p.setHealthy(false)
		if kind, ok := classifyCtxErr(ctx); ok {
			return nil, &Error{Kind: kind, Provider: p.name, Message: err.Error(), Cause: err}
		}
		return nil, &Error{Kind: KindProviderUnavailable, Provider: p.name, Message: fmt.Sprintf("OpenAI API error: %v", err), Cause: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode >= 500 {
			p.setHealthy(false)
		}
		return nil, p.classifyHTTPError(resp.StatusCode, body)
	}

	p.setHealthy(true)

	var openAIResp struct {
		ID      string `json:"id"`
		Model   string `json:"model"`
		Choices []struct {
			Index   int `json:"index"`
			Message struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
			TotalTokens      int `json:"total_tokens"`
		} `json:"usage"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&openAIResp); err != nil {
		return nil, &Error{Kind: KindProviderUnavailable, Provider: p.name, Message: fmt.Sprintf("failed to decode response: %v", err), Cause: err}
	}

	text := ""
	finishReason := ""
	if len(openAIResp.Choices) > 0 {
		text = openAIResp.Choices[0].Message.Content
		finishReason = openAIResp.Choices[0].FinishReason
	}

	return &InvokeResult{
		Text:      text,
		TokensIn:  openAIResp.Usage.PromptTokens,
		TokensOut: openAIResp.Usage.CompletionTokens,
		LatencyMs: time.Since(start).Milliseconds(),
		Extensions: map[string]any{
			"stop_reason":    finishReason,
			"response_model": openAIResp.Model,
			"request_id":     openAIResp.ID,
		},
	}, nil
}

// classifyHTTPError maps an OpenAI-compatible error body/status to the
// four-kind taxonomy. OpenAI's error envelope shares its shape with Azure's.
func (p *OpenAIProvider) classifyHTTPError(statusCode int, body []byte) *Error {
	var errResp struct {
		Error struct {
			Code    string `json:"code"`
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.Unmarshal(body, &errResp)

	message := errResp.Error.Message
	if message == "" {
		message = string(body)
	}

	switch {
	case statusCode == http.StatusTooManyRequests || errResp.Error.Code == "rate_limit_exceeded" || errResp.Error.Code == "insufficient_quota":
		return &Error{Kind: KindRateLimited, Provider: p.name, Message: message}
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden || statusCode == http.StatusBadRequest:
		return &Error{Kind: KindInvalidRequest, Provider: p.name, Message: message}
	case statusCode >= 500:
		return &Error{Kind: KindProviderUnavailable, Provider: p.name, Message: message}
	default:
		return &Error{Kind: KindInvalidRequest, Provider: p.name, Message: message}
	}
}

func (p *OpenAIProvider) HealthCheck(ctx context.Context) (*HealthCheckResult, error) {
	p.mu.RLock()
	healthy := p.healthy && p.apiKey != ""
	p.mu.RUnlock()
	return adaptHealth(healthy), nil
}

func (p *OpenAIProvider) Capabilities() []Capability {
	return []Capability{
		CapabilityChat,
		CapabilityCompletion,
		CapabilityVision,
		CapabilityFunctionCalling,
		CapabilityCodeGeneration,
	}
}

func (p *OpenAIProvider) EstimateCost(tokensIn, tokensOut int) *CostEstimate {
	return costEstimate(tokensIn, tokensOut, openAIInputCostPer1K, openAIOutputCostPer1K)
}

func (p *OpenAIProvider) setHealthy(healthy bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.healthy = healthy
}

var _ Provider = (*OpenAIProvider)(nil)

// Ollama provider implementation (self-hosted, no API key).

const (
	OllamaDefaultEndpoint = "http://localhost:11434"
	OllamaDefaultModel    = "llama3.1:latest"
	OllamaDefaultTimeout  = 300 * time.Second
)

// NewOllamaProviderFactory creates an Ollama provider from configuration.
func NewOllamaProviderFactory(config ProviderConfig) (Provider, error) {
	endpoint := config.Endpoint
	if endpoint == "" {
		endpoint = OllamaDefaultEndpoint
	}
	endpoint = strings.TrimRight(endpoint, "/")

	model := config.Model
	if model == "" {
		model = OllamaDefaultModel
	}

	timeout := OllamaDefaultTimeout
	if config.TimeoutSeconds > 0 {
		timeout = time.Duration(config.TimeoutSeconds) * time.Second
	}

	return &OllamaProvider{
		name:     config.Name,
		endpoint: endpoint,
		model:    model,
		timeout:  timeout,
		client:   &http.Client{Timeout: timeout},
		healthy:  true,
	}, nil
}

// OllamaProvider implements Provider for self-hosted Ollama models.
type OllamaProvider struct {
	name     string
	endpoint string
	model    string
	timeout  time.Duration
	client   *http.Client
	healthy  bool
	mu       sync.RWMutex
}

func (p *OllamaProvider) Name() string       { return p.name }
func (p *OllamaProvider) Type() ProviderType { return ProviderTypeOllama }

func (p *OllamaProvider) Invoke(ctx context.Context, modelID, prompt string, params InvokeParams) (*InvokeResult, error) {
	start := time.Now()

	model := modelID
	if model == "" {
		model = p.model
	}

	maxTokens := params.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	temperature := params.Temperature
	if temperature < 0 {
		temperature = 0.7
	}

	fullPrompt := prompt
	if params.SystemPrompt != "" {
		fullPrompt = params.SystemPrompt + "\n\n" + prompt
	}

	options := map[string]any{
		"temperature": temperature,
		"num_predict": maxTokens,
	}
	if params.TopP > 0 {
		options["top_p"] = params.TopP
	}
	if params.TopK > 0 {
		options["top_k"] = params.TopK
	}
	if len(params.StopSequences) > 0 {
		options["stop"] = params.StopSequences
	}

	ollamaReq := map[string]any{
		"model":   model,
		"prompt":  fullPrompt,
		"stream":  false,
		"options": options,
	}

	reqBody, err := json.Marshal(ollamaReq)
	if err != nil {
		return nil, &Error{Kind: KindInvalidRequest, Provider: p.name, Message: fmt.Sprintf("failed to marshal request: %v", err), Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.endpoint+"/api/generate", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, &Error{Kind: KindInvalidRequest, Provider: p.name, Message: fmt.Sprintf("failed to create request: %v", err), Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		p.setHealthy(false)
		if kind, ok := classifyCtxErr(ctx); ok {
			return nil, &Error{Kind: kind, Provider: p.name, Message: err.Error(), Cause: err}
		}
		return nil, &Error{Kind: KindProviderUnavailable, Provider: p.name, Message: fmt.Sprintf("ollama API error: %v", err), Cause: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode >= 500 {
			p.setHealthy(false)
		}
		kind := KindInvalidRequest
		if resp.StatusCode >= 500 {
			kind = KindProviderUnavailable
		}
		return nil, &Error{Kind: kind, Provider: p.name, Message: fmt.Sprintf("ollama API error (status %d): %s", resp.StatusCode, string(body))}
	}

	p.setHealthy(true)

	var ollamaResp struct {
		Model           string `json:"model"`
		Response        string `json:"response"`
		Done            bool   `json:"done"`
		TotalDuration   int64  `json:"total_duration"`
		PromptEvalCount int    `json:"prompt_eval_count"`
		EvalCount       int    `json:"eval_count"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return nil, &Error{Kind: KindProviderUnavailable, Provider: p.name, Message: fmt.Sprintf("failed to decode response: %v", err), Cause: err}
	}

	finishReason := "stop"
	if !ollamaResp.Done {
		finishReason = "length"
	}

	return &InvokeResult{
		Text:      ollamaResp.Response,
		TokensIn:  ollamaResp.PromptEvalCount,
		TokensOut: ollamaResp.EvalCount,
		LatencyMs: time.Since(start).Milliseconds(),
		Extensions: map[string]any{
			"stop_reason":       finishReason,
			"response_model":    ollamaResp.Model,
			"total_duration_ns": ollamaResp.TotalDuration,
		},
	}, nil
}

func (p *OllamaProvider) HealthCheck(ctx context.Context) (*HealthCheckResult, error) {
	start := time.Now()

	httpReq, err := http.NewRequestWithContext(ctx, "GET", p.endpoint+"/api/tags", nil)
	if err != nil {
		return &HealthCheckResult{Status: HealthStatusUnhealthy, Latency: time.Since(start), Message: fmt.Sprintf("failed to create request: %v", err), LastChecked: time.Now()}, nil
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		p.setHealthy(false)
		return &HealthCheckResult{Status: HealthStatusUnhealthy, Latency: time.Since(start), Message: fmt.Sprintf("connection failed: %v", err), LastChecked: time.Now()}, nil
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		p.setHealthy(false)
		return &HealthCheckResult{Status: HealthStatusUnhealthy, Latency: time.Since(start), Message: fmt.Sprintf("unhealthy status: %d", resp.StatusCode), LastChecked: time.Now()}, nil
	}

	p.setHealthy(true)
	return &HealthCheckResult{Status: HealthStatusHealthy, Latency: time.Since(start), Message: "Ollama server is operational", LastChecked: time.Now()}, nil
}

func (p *OllamaProvider) Capabilities() []Capability {
	return []Capability{
		CapabilityChat,
		CapabilityCompletion,
		CapabilityCodeGeneration,
	}
}

// EstimateCost reports zero cost: Ollama is self-hosted, so API costs are
// $0 (compute costs are external to this estimate).
func (p *OllamaProvider) EstimateCost(tokensIn, tokensOut int) *CostEstimate {
	return costEstimate(tokensIn, tokensOut, 0, 0)
}

func (p *OllamaProvider) setHealthy(healthy bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.healthy = healthy
}

var _ Provider = (*OllamaProvider)(nil)
