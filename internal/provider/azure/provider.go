// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

// Package azure provides an LLM provider implementation for Azure OpenAI
// Service, translating the OpenAI-compatible chat completions API into the
// router's closed invoke contract.
package azure

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
)

const (
	// DefaultAPIVersion is the default Azure OpenAI API version.
	DefaultAPIVersion = "2024-08-01-preview"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 120 * time.Second

	// DefaultMaxTokens is the default max output tokens for completions.
	DefaultMaxTokens = 4096

	// DefaultTemperature is the default temperature for completions.
	DefaultTemperature = 0.7
)

// Model constants for common Azure OpenAI deployments.
const (
	ModelGPT4o     = "gpt-4o"
	ModelGPT4oMini = "gpt-4o-mini"

	ModelGPT4      = "gpt-4"
	ModelGPT4Turbo = "gpt-4-turbo"
	ModelGPT432K   = "gpt-4-32k"

	ModelGPT35Turbo    = "gpt-35-turbo"
	ModelGPT35Turbo16K = "gpt-35-turbo-16k"

	DefaultModel = ModelGPT4oMini
)

// HTTPClient is an interface for HTTP client operations (enables testing).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// AuthType represents the authentication method for Azure OpenAI.
type AuthType string

const (
	// AuthTypeAPIKey uses the api-key header (Classic Azure OpenAI)
	AuthTypeAPIKey AuthType = "api-key"

	// AuthTypeBearer uses Authorization: Bearer header (Azure AI Foundry)
	AuthTypeBearer AuthType = "bearer"
)

// Provider implements the Azure OpenAI chat completions API.
type Provider struct {
	endpoint       string
	apiKey         string
	deploymentName string
	apiVersion     string
	authType       AuthType
	timeout        time.Duration
	client         HTTPClient
	healthy        bool
	mu             sync.RWMutex
}

// Config contains configuration for the Azure OpenAI provider.
type Config struct {
	Endpoint       string
	APIKey         string
	DeploymentName string
	APIVersion     string
	AuthType       AuthType
	Timeout        time.Duration
}

// Request is the Azure-local shape of an invocation, built by the adapter
// from the router's InvokeParams.
type Request struct {
	Prompt        string
	SystemPrompt  string
	MaxTokens     int
	Temperature   float64
	TopP          float64
	Model         string
	StopSequences []string
}

// Result is the Azure-local shape of a completion, translated by the
// adapter into the router's InvokeResult.
type Result struct {
	Text       string
	Model      string
	StopReason string
	TokensIn   int
	TokensOut  int
	Latency    time.Duration
}

// NewProvider creates a new Azure OpenAI provider instance.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("azure OpenAI endpoint is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("azure OpenAI API key is required")
	}
	if cfg.DeploymentName == "" {
		return nil, fmt.Errorf("azure OpenAI deployment name is required")
	}

	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")

	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	authType := cfg.AuthType
	if authType == "" {
		authType = detectAuthType(cfg.Endpoint)
	}

	return &Provider{
		endpoint:       cfg.Endpoint,
		apiKey:         cfg.APIKey,
		deploymentName: cfg.DeploymentName,
		apiVersion:     cfg.APIVersion,
		authType:       authType,
		timeout:        cfg.Timeout,
		client:         &http.Client{Timeout: cfg.Timeout},
		healthy:        true,
	}, nil
}

// detectAuthType auto-detects the authentication type based on the endpoint URL.
// - Classic Azure OpenAI (*.openai.azure.com) uses api-key header
// - Azure AI Foundry (*.cognitiveservices.azure.com) uses Bearer token
func detectAuthType(endpoint string) AuthType {
	endpoint = strings.ToLower(endpoint)
	if strings.Contains(endpoint, ".cognitiveservices.azure.com") {
		return AuthTypeBearer
	}
	return AuthTypeAPIKey
}

// setAuthHeaders sets the appropriate authentication headers based on auth type.
func (p *Provider) setAuthHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	switch p.authType {
	case AuthTypeBearer:
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	default:
		req.Header.Set("api-key", p.apiKey)
	}
}

// GetAuthType returns the authentication type being used.
func (p *Provider) GetAuthType() AuthType {
	return p.authType
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "azure-openai"
}

// GetCapabilities returns the provider's capabilities.
func (p *Provider) GetCapabilities() []string {
	return []string{
		"reasoning",
		"analysis",
		"writing",
		"code_generation",
		"vision",
		"function_calling",
	}
}

// IsHealthy returns whether the provider is healthy.
func (p *Provider) IsHealthy() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.healthy && p.apiKey != ""
}

func (p *Provider) setHealthy(healthy bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.healthy = healthy
}

// EstimateCost estimates the cost for a given number of tokens.
// Pricing based on GPT-4o: $2.50/1M input, $10/1M output.
func (p *Provider) EstimateCost(tokens int) float64 {
	return float64(tokens) * 0.00000625
}

// buildURL constructs the Azure OpenAI API URL.
func (p *Provider) buildURL(deploymentName string) string {
	return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		p.endpoint, deploymentName, p.apiVersion)
}

// Invoke generates a completion for the given request. ctx cancellation
// aborts the in-flight HTTP call via http.NewRequestWithContext.
func (p *Provider) Invoke(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	deploymentName := p.deploymentName
	if req.Model != "" {
		deploymentName = req.Model
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	temperature := req.Temperature
	if temperature < 0 {
		temperature = DefaultTemperature
	}

	messages := make([]map[string]string, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, map[string]string{
			"role":    "system",
			"content": req.SystemPrompt,
		})
	}
	messages = append(messages, map[string]string{
		"role":    "user",
		"content": req.Prompt,
	})

	apiReq := map[string]any{
		"messages":    messages,
		"max_tokens":  maxTokens,
		"temperature": temperature,
	}

	if req.TopP > 0 {
		apiReq["top_p"] = req.TopP
	}
	if len(req.StopSequences) > 0 {
		apiReq["stop"] = req.StopSequences
	}

	reqBody, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := p.buildURL(deploymentName)

	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	p.setAuthHeaders(httpReq)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		p.setHealthy(false)
		return nil, fmt.Errorf("azure OpenAI API error: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode >= 500 {
			p.setHealthy(false)
		}
		return nil, p.parseAPIError(resp.StatusCode, body)
	}

	p.setHealthy(true)

	var apiResp openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	text := ""
	finishReason := "unknown"
	if len(apiResp.Choices) > 0 {
		text = apiResp.Choices[0].Message.Content
		finishReason = mapFinishReason(apiResp.Choices[0].FinishReason)
	}

	return &Result{
		Text:       text,
		Model:      apiResp.Model,
		StopReason: finishReason,
		TokensIn:   apiResp.Usage.PromptTokens,
		TokensOut:  apiResp.Usage.CompletionTokens,
		Latency:    time.Since(start),
	}, nil
}

// parseAPIError parses an API error response.
func (p *Provider) parseAPIError(statusCode int, body []byte) error {
	var errResp struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}

	if err := json.Unmarshal(body, &errResp); err != nil {
		return fmt.Errorf("azure OpenAI API error (status %d): %s", statusCode, string(body))
	}

	return &APIError{
		StatusCode: statusCode,
		Code:       errResp.Error.Code,
		Type:       errResp.Error.Type,
		Message:    errResp.Error.Message,
	}
}

// mapFinishReason maps Azure OpenAI finish reasons to standard reasons.
func mapFinishReason(reason string) string {
	switch reason {
	case "stop":
		return "stop"
	case "length":
		return "max_tokens"
	case "content_filter":
		return "content_filter"
	default:
		return reason
	}
}

// APIError represents an Azure OpenAI API error.
type APIError struct {
	StatusCode int
	Code       string
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("azure OpenAI API error (status %d, code %s, type %s): %s",
		e.StatusCode, e.Code, e.Type, e.Message)
}

// IsRateLimitError returns true if this is a rate limit error.
func (e *APIError) IsRateLimitError() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.Code == "rate_limit_exceeded"
}

// IsAuthError returns true if this is an authentication error.
func (e *APIError) IsAuthError() bool {
	return e.StatusCode == http.StatusUnauthorized ||
		e.StatusCode == http.StatusForbidden ||
		e.Code == "invalid_api_key"
}

// IsQuotaExceededError returns true if this is a quota exceeded error.
func (e *APIError) IsQuotaExceededError() bool {
	return e.Code == "quota_exceeded" || e.Code == "insufficient_quota"
}

// Internal API types (OpenAI-compatible format)

type openAIResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
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

// GetSupportedModels returns a list of common Azure OpenAI model deployments.
func GetSupportedModels() []string {
	return []string{
		ModelGPT4o,
		ModelGPT4oMini,
		ModelGPT4,
		ModelGPT4Turbo,
		ModelGPT432K,
		ModelGPT35Turbo,
		ModelGPT35Turbo16K,
	}
}

// IsValidModel checks if the given model is a valid Azure OpenAI model.
// Note: In Azure, the "model" is actually the deployment name, so any
// non-empty name is valid.
func IsValidModel(model string) bool {
	return model != ""
}

// SetHTTPClient sets a custom HTTP client for testing.
func (p *Provider) SetHTTPClient(client HTTPClient) {
	p.client = client
}
