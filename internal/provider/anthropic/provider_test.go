// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockHTTPClient is a mock implementation of HTTPClient
type MockHTTPClient struct {
	mock.Mock
}

func (m *MockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	args := m.Called(req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*http.Response), args.Error(1)
}

func jsonBody(v any) io.ReadCloser {
	b, _ := json.Marshal(v)
	return io.NopCloser(bytes.NewReader(b))
}

// =============================================================================
// Provider Creation Tests
// =============================================================================

func TestNewProvider_Success(t *testing.T) {
	provider, err := NewProvider(Config{
		APIKey: "test-api-key",
	})

	require.NoError(t, err)
	assert.NotNil(t, provider)
	assert.Equal(t, "anthropic", provider.Name())
	assert.Equal(t, DefaultBaseURL, provider.baseURL)
	assert.Equal(t, DefaultAPIVersion, provider.apiVersion)
	assert.Equal(t, DefaultModel, provider.model)
	assert.Equal(t, DefaultTimeout, provider.timeout)
	assert.True(t, provider.IsHealthy())
}

func TestNewProvider_CustomConfig(t *testing.T) {
	provider, err := NewProvider(Config{
		APIKey:     "test-api-key",
		BaseURL:    "https://custom.anthropic.com",
		APIVersion: "2024-01-01",
		Model:      ModelClaude3Opus,
		Timeout:    60 * time.Second,
	})

	require.NoError(t, err)
	assert.NotNil(t, provider)
	assert.Equal(t, "https://custom.anthropic.com", provider.baseURL)
	assert.Equal(t, "2024-01-01", provider.apiVersion)
	assert.Equal(t, ModelClaude3Opus, provider.model)
	assert.Equal(t, 60*time.Second, provider.timeout)
}

func TestNewProvider_MissingAPIKey(t *testing.T) {
	provider, err := NewProvider(Config{})

	require.Error(t, err)
	assert.Nil(t, provider)
	assert.Contains(t, err.Error(), "API key is required")
}

func TestProvider_GetCapabilities(t *testing.T) {
	provider, err := NewProvider(Config{APIKey: "test-api-key"})
	require.NoError(t, err)

	caps := provider.GetCapabilities()
	assert.Contains(t, caps, "reasoning")
	assert.Contains(t, caps, "vision")
}

func TestProvider_EstimateCost(t *testing.T) {
	provider, err := NewProvider(Config{APIKey: "test-api-key"})
	require.NoError(t, err)

	cost := provider.EstimateCost(1000)
	assert.Greater(t, cost, 0.0)
}

// =============================================================================
// Invoke Tests
// =============================================================================

func anthropicAPIResponse(text, model, stopReason string, tokensIn, tokensOut int) anthropicResponse {
	return anthropicResponse{
		ID:         "msg_123",
		Type:       "message",
		Role:       "assistant",
		Model:      model,
		StopReason: stopReason,
		Content: []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}{{Type: "text", Text: text}},
		Usage: struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		}{InputTokens: tokensIn, OutputTokens: tokensOut},
	}
}

func TestProvider_Invoke_Success(t *testing.T) {
	mockClient := new(MockHTTPClient)
	provider, err := NewProvider(Config{APIKey: "test-api-key"})
	require.NoError(t, err)
	provider.client = mockClient

	mockClient.On("Do", mock.Anything).Return(&http.Response{
		StatusCode: http.StatusOK,
		Body:       jsonBody(anthropicAPIResponse("hello there", DefaultModel, "end_turn", 10, 5)),
	}, nil)

	result, err := provider.Invoke(context.Background(), Request{
		Prompt:    "hi",
		MaxTokens: 100,
	})

	require.NoError(t, err)
	assert.Equal(t, "hello there", result.Text)
	assert.Equal(t, 10, result.TokensIn)
	assert.Equal(t, 5, result.TokensOut)
	assert.Equal(t, "end_turn", result.StopReason)
	assert.True(t, provider.IsHealthy())
}

func TestProvider_Invoke_ModelOverride(t *testing.T) {
	mockClient := new(MockHTTPClient)
	provider, err := NewProvider(Config{APIKey: "test-api-key", Model: DefaultModel})
	require.NoError(t, err)
	provider.client = mockClient

	var captured anthropicRequest
	mockClient.On("Do", mock.MatchedBy(func(req *http.Request) bool {
		body, _ := io.ReadAll(req.Body)
		_ = json.Unmarshal(body, &captured)
		return true
	})).Return(&http.Response{
		StatusCode: http.StatusOK,
		Body:       jsonBody(anthropicAPIResponse("ok", ModelClaude3Opus, "end_turn", 1, 1)),
	}, nil)

	_, err = provider.Invoke(context.Background(), Request{
		Prompt: "hi",
		Model:  ModelClaude3Opus,
	})

	require.NoError(t, err)
	assert.Equal(t, ModelClaude3Opus, captured.Model)
}

func TestProvider_Invoke_WithSystemPromptAndStopSequences(t *testing.T) {
	mockClient := new(MockHTTPClient)
	provider, err := NewProvider(Config{APIKey: "test-api-key"})
	require.NoError(t, err)
	provider.client = mockClient

	var captured anthropicRequest
	mockClient.On("Do", mock.MatchedBy(func(req *http.Request) bool {
		body, _ := io.ReadAll(req.Body)
		_ = json.Unmarshal(body, &captured)
		return true
	})).Return(&http.Response{
		StatusCode: http.StatusOK,
		Body:       jsonBody(anthropicAPIResponse("ok", DefaultModel, "stop_sequence", 1, 1)),
	}, nil)

	_, err = provider.Invoke(context.Background(), Request{
		Prompt:        "hi",
		SystemPrompt:  "you are terse",
		StopSequences: []string{"STOP"},
	})

	require.NoError(t, err)
	assert.Equal(t, "you are terse", captured.System)
	assert.Equal(t, []string{"STOP"}, captured.StopSequences)
}

func TestProvider_Invoke_HTTPError(t *testing.T) {
	mockClient := new(MockHTTPClient)
	provider, err := NewProvider(Config{APIKey: "test-api-key"})
	require.NoError(t, err)
	provider.client = mockClient

	errBody, _ := json.Marshal(map[string]any{
		"type": "error",
		"error": map[string]string{
			"type":    "invalid_request_error",
			"message": "bad request",
		},
	})
	mockClient.On("Do", mock.Anything).Return(&http.Response{
		StatusCode: http.StatusBadRequest,
		Body:       io.NopCloser(bytes.NewReader(errBody)),
	}, nil)

	result, err := provider.Invoke(context.Background(), Request{Prompt: "hi"})

	require.Error(t, err)
	assert.Nil(t, result)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "invalid_request_error", apiErr.Type)
}

func TestProvider_Invoke_RateLimitError(t *testing.T) {
	mockClient := new(MockHTTPClient)
	provider, err := NewProvider(Config{APIKey: "test-api-key"})
	require.NoError(t, err)
	provider.client = mockClient

	errBody, _ := json.Marshal(map[string]any{
		"error": map[string]string{"type": "rate_limit_error", "message": "slow down"},
	})
	mockClient.On("Do", mock.Anything).Return(&http.Response{
		StatusCode: http.StatusTooManyRequests,
		Body:       io.NopCloser(bytes.NewReader(errBody)),
	}, nil)

	_, err = provider.Invoke(context.Background(), Request{Prompt: "hi"})

	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.IsRateLimitError())
}

func TestProvider_Invoke_AuthError(t *testing.T) {
	mockClient := new(MockHTTPClient)
	provider, err := NewProvider(Config{APIKey: "test-api-key"})
	require.NoError(t, err)
	provider.client = mockClient

	errBody, _ := json.Marshal(map[string]any{
		"error": map[string]string{"type": "authentication_error", "message": "bad key"},
	})
	mockClient.On("Do", mock.Anything).Return(&http.Response{
		StatusCode: http.StatusUnauthorized,
		Body:       io.NopCloser(bytes.NewReader(errBody)),
	}, nil)

	_, err = provider.Invoke(context.Background(), Request{Prompt: "hi"})

	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.IsAuthError())
}

func TestProvider_Invoke_OverloadedError_MarksUnhealthy(t *testing.T) {
	mockClient := new(MockHTTPClient)
	provider, err := NewProvider(Config{APIKey: "test-api-key"})
	require.NoError(t, err)
	provider.client = mockClient

	errBody, _ := json.Marshal(map[string]any{
		"error": map[string]string{"type": "overloaded_error", "message": "busy"},
	})
	mockClient.On("Do", mock.Anything).Return(&http.Response{
		StatusCode: http.StatusServiceUnavailable,
		Body:       io.NopCloser(bytes.NewReader(errBody)),
	}, nil)

	_, err = provider.Invoke(context.Background(), Request{Prompt: "hi"})

	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.IsOverloadedError())
	assert.False(t, provider.IsHealthy())
}

func TestProvider_Invoke_NetworkError(t *testing.T) {
	mockClient := new(MockHTTPClient)
	provider, err := NewProvider(Config{APIKey: "test-api-key"})
	require.NoError(t, err)
	provider.client = mockClient

	mockClient.On("Do", mock.Anything).Return(nil, errors.New("connection refused"))

	result, err := provider.Invoke(context.Background(), Request{Prompt: "hi"})

	require.Error(t, err)
	assert.Nil(t, result)
	assert.False(t, provider.IsHealthy())
}

func TestProvider_Invoke_InvalidJSON(t *testing.T) {
	mockClient := new(MockHTTPClient)
	provider, err := NewProvider(Config{APIKey: "test-api-key"})
	require.NoError(t, err)
	provider.client = mockClient

	mockClient.On("Do", mock.Anything).Return(&http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader("not json")),
	}, nil)

	result, err := provider.Invoke(context.Background(), Request{Prompt: "hi"})

	require.Error(t, err)
	assert.Nil(t, result)
}

func TestProvider_Invoke_ContextCancellation(t *testing.T) {
	mockClient := new(MockHTTPClient)
	provider, err := NewProvider(Config{APIKey: "test-api-key"})
	require.NoError(t, err)
	provider.client = mockClient

	mockClient.On("Do", mock.Anything).Return(nil, context.Canceled)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := provider.Invoke(ctx, Request{Prompt: "hi"})

	require.Error(t, err)
	assert.Nil(t, result)
}

func TestProvider_Invoke_MultipleContentBlocks(t *testing.T) {
	mockClient := new(MockHTTPClient)
	provider, err := NewProvider(Config{APIKey: "test-api-key"})
	require.NoError(t, err)
	provider.client = mockClient

	resp := anthropicResponse{
		Model:      DefaultModel,
		StopReason: "end_turn",
		Content: []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}{
			{Type: "text", Text: "first "},
			{Type: "text", Text: "second"},
		},
	}
	mockClient.On("Do", mock.Anything).Return(&http.Response{
		StatusCode: http.StatusOK,
		Body:       jsonBody(resp),
	}, nil)

	result, err := provider.Invoke(context.Background(), Request{Prompt: "hi"})

	require.NoError(t, err)
	assert.Equal(t, "first second", result.Text)
}

func TestProvider_Invoke_DefaultValues(t *testing.T) {
	mockClient := new(MockHTTPClient)
	provider, err := NewProvider(Config{APIKey: "test-api-key"})
	require.NoError(t, err)
	provider.client = mockClient

	var captured anthropicRequest
	mockClient.On("Do", mock.MatchedBy(func(req *http.Request) bool {
		body, _ := io.ReadAll(req.Body)
		_ = json.Unmarshal(body, &captured)
		return true
	})).Return(&http.Response{
		StatusCode: http.StatusOK,
		Body:       jsonBody(anthropicAPIResponse("ok", DefaultModel, "end_turn", 1, 1)),
	}, nil)

	_, err = provider.Invoke(context.Background(), Request{Prompt: "hi"})

	require.NoError(t, err)
	assert.Equal(t, DefaultModel, captured.Model)
	assert.Equal(t, DefaultMaxTokens, captured.MaxTokens)
	require.NotNil(t, captured.Temperature)
	assert.Equal(t, 0.0, *captured.Temperature)
}

func TestProvider_Invoke_TemperatureZeroIsPreserved(t *testing.T) {
	mockClient := new(MockHTTPClient)
	provider, err := NewProvider(Config{APIKey: "test-api-key"})
	require.NoError(t, err)
	provider.client = mockClient

	var captured anthropicRequest
	mockClient.On("Do", mock.MatchedBy(func(req *http.Request) bool {
		body, _ := io.ReadAll(req.Body)
		_ = json.Unmarshal(body, &captured)
		return true
	})).Return(&http.Response{
		StatusCode: http.StatusOK,
		Body:       jsonBody(anthropicAPIResponse("ok", DefaultModel, "end_turn", 1, 1)),
	}, nil)

	_, err = provider.Invoke(context.Background(), Request{Prompt: "hi", Temperature: 0})

	require.NoError(t, err)
	require.NotNil(t, captured.Temperature)
	assert.Equal(t, 0.0, *captured.Temperature)
}

func TestProvider_Invoke_EmptyResponse(t *testing.T) {
	mockClient := new(MockHTTPClient)
	provider, err := NewProvider(Config{APIKey: "test-api-key"})
	require.NoError(t, err)
	provider.client = mockClient

	mockClient.On("Do", mock.Anything).Return(&http.Response{
		StatusCode: http.StatusOK,
		Body:       jsonBody(anthropicAPIResponse("", DefaultModel, "end_turn", 0, 0)),
	}, nil)

	result, err := provider.Invoke(context.Background(), Request{Prompt: "hi"})

	require.NoError(t, err)
	assert.Equal(t, "", result.Text)
}

// =============================================================================
// Model Helpers
// =============================================================================

func TestGetSupportedModels(t *testing.T) {
	models := GetSupportedModels()
	assert.Contains(t, models, ModelClaude35Sonnet)
	assert.Contains(t, models, ModelClaude4Opus)
}

func TestIsValidModel(t *testing.T) {
	assert.True(t, IsValidModel(ModelClaude35Sonnet))
	assert.True(t, IsValidModel("claude-some-future-model"))
	assert.False(t, IsValidModel("gpt-4"))
}
