// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

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
	provider, err := NewProvider(Config{APIKey: "test-key"})

	require.NoError(t, err)
	assert.NotNil(t, provider)
	assert.Equal(t, "gemini", provider.Name())
	assert.Equal(t, DefaultBaseURL, provider.baseURL)
	assert.Equal(t, DefaultAPIVersion, provider.apiVersion)
	assert.Equal(t, DefaultModel, provider.model)
	assert.True(t, provider.IsHealthy())
}

func TestNewProvider_CustomConfig(t *testing.T) {
	provider, err := NewProvider(Config{
		APIKey:     "test-key",
		BaseURL:    "https://custom.googleapis.com",
		APIVersion: "v1",
		Model:      ModelGemini15Pro,
	})

	require.NoError(t, err)
	assert.Equal(t, "https://custom.googleapis.com", provider.baseURL)
	assert.Equal(t, "v1", provider.apiVersion)
	assert.Equal(t, ModelGemini15Pro, provider.model)
}

func TestNewProvider_MissingAPIKey(t *testing.T) {
	provider, err := NewProvider(Config{})

	require.Error(t, err)
	assert.Nil(t, provider)
	assert.Contains(t, err.Error(), "API key is required")
}

func TestProvider_GetCapabilities(t *testing.T) {
	provider, err := NewProvider(Config{APIKey: "test-key"})
	require.NoError(t, err)

	caps := provider.GetCapabilities()
	assert.Contains(t, caps, "long_context")
	assert.Contains(t, caps, "function_calling")
}

func TestProvider_EstimateCost(t *testing.T) {
	provider, err := NewProvider(Config{APIKey: "test-key"})
	require.NoError(t, err)

	assert.Greater(t, provider.EstimateCost(1000), 0.0)
}

// =============================================================================
// Invoke Tests
// =============================================================================

func geminiAPIResponse(text, finishReason string, promptTokens, candidateTokens int) geminiResponse {
	return geminiResponse{
		Candidates: []geminiCandidate{
			{
				Content: geminiContent{
					Parts: []geminiPart{{Text: text}},
					Role:  "model",
				},
				FinishReason: finishReason,
			},
		},
		UsageMetadata: &geminiUsageMetadata{
			PromptTokenCount:     promptTokens,
			CandidatesTokenCount: candidateTokens,
		},
	}
}

func TestProvider_Invoke_Success(t *testing.T) {
	mockClient := new(MockHTTPClient)
	provider, err := NewProvider(Config{APIKey: "test-key"})
	require.NoError(t, err)
	provider.SetHTTPClient(mockClient)

	mockClient.On("Do", mock.Anything).Return(&http.Response{
		StatusCode: http.StatusOK,
		Body:       jsonBody(geminiAPIResponse("hello", "STOP", 8, 4)),
	}, nil)

	result, err := provider.Invoke(context.Background(), Request{
		Prompt:    "hi",
		MaxTokens: 100,
	})

	require.NoError(t, err)
	assert.Equal(t, "hello", result.Text)
	assert.Equal(t, "stop", result.StopReason)
	assert.Equal(t, 8, result.TokensIn)
	assert.Equal(t, 4, result.TokensOut)
}

func TestProvider_Invoke_ModelOverride(t *testing.T) {
	mockClient := new(MockHTTPClient)
	provider, err := NewProvider(Config{APIKey: "test-key"})
	require.NoError(t, err)
	provider.SetHTTPClient(mockClient)

	var capturedURL string
	mockClient.On("Do", mock.MatchedBy(func(req *http.Request) bool {
		capturedURL = req.URL.String()
		return true
	})).Return(&http.Response{
		StatusCode: http.StatusOK,
		Body:       jsonBody(geminiAPIResponse("ok", "STOP", 1, 1)),
	}, nil)

	_, err = provider.Invoke(context.Background(), Request{Prompt: "hi", Model: ModelGemini15Pro})

	require.NoError(t, err)
	assert.Contains(t, capturedURL, "/models/"+ModelGemini15Pro+":generateContent")
}

func TestProvider_Invoke_WithSystemPromptAndStop(t *testing.T) {
	mockClient := new(MockHTTPClient)
	provider, err := NewProvider(Config{APIKey: "test-key"})
	require.NoError(t, err)
	provider.SetHTTPClient(mockClient)

	var captured map[string]any
	mockClient.On("Do", mock.MatchedBy(func(req *http.Request) bool {
		body, _ := io.ReadAll(req.Body)
		_ = json.Unmarshal(body, &captured)
		return true
	})).Return(&http.Response{
		StatusCode: http.StatusOK,
		Body:       jsonBody(geminiAPIResponse("ok", "STOP", 1, 1)),
	}, nil)

	_, err = provider.Invoke(context.Background(), Request{
		Prompt:        "hi",
		SystemPrompt:  "be brief",
		StopSequences: []string{"END"},
	})

	require.NoError(t, err)
	assert.Contains(t, captured, "systemInstruction")
	genConfig, ok := captured["generationConfig"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, genConfig, "stopSequences")
}

func TestProvider_Invoke_HTTPError(t *testing.T) {
	mockClient := new(MockHTTPClient)
	provider, err := NewProvider(Config{APIKey: "test-key"})
	require.NoError(t, err)
	provider.SetHTTPClient(mockClient)

	errBody, _ := json.Marshal(map[string]any{
		"error": map[string]any{"code": 400, "status": "INVALID_ARGUMENT", "message": "bad request"},
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
}

func TestProvider_Invoke_RateLimitError(t *testing.T) {
	mockClient := new(MockHTTPClient)
	provider, err := NewProvider(Config{APIKey: "test-key"})
	require.NoError(t, err)
	provider.SetHTTPClient(mockClient)

	errBody, _ := json.Marshal(map[string]any{
		"error": map[string]any{"code": 429, "status": "RESOURCE_EXHAUSTED", "message": "slow down"},
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
	assert.True(t, apiErr.IsQuotaExceededError())
}

func TestProvider_Invoke_AuthError(t *testing.T) {
	mockClient := new(MockHTTPClient)
	provider, err := NewProvider(Config{APIKey: "test-key"})
	require.NoError(t, err)
	provider.SetHTTPClient(mockClient)

	errBody, _ := json.Marshal(map[string]any{
		"error": map[string]any{"code": 401, "status": "UNAUTHENTICATED", "message": "bad key"},
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

func TestProvider_Invoke_NetworkError_MarksUnhealthy(t *testing.T) {
	mockClient := new(MockHTTPClient)
	provider, err := NewProvider(Config{APIKey: "test-key"})
	require.NoError(t, err)
	provider.SetHTTPClient(mockClient)

	mockClient.On("Do", mock.Anything).Return(nil, errors.New("connection refused"))

	result, err := provider.Invoke(context.Background(), Request{Prompt: "hi"})

	require.Error(t, err)
	assert.Nil(t, result)
	assert.False(t, provider.IsHealthy())
}

func TestProvider_Invoke_InvalidJSON(t *testing.T) {
	mockClient := new(MockHTTPClient)
	provider, err := NewProvider(Config{APIKey: "test-key"})
	require.NoError(t, err)
	provider.SetHTTPClient(mockClient)

	mockClient.On("Do", mock.Anything).Return(&http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader("not json")),
	}, nil)

	result, err := provider.Invoke(context.Background(), Request{Prompt: "hi"})

	require.Error(t, err)
	assert.Nil(t, result)
}

func TestProvider_Invoke_MapsFinishReasons(t *testing.T) {
	cases := map[string]string{
		"STOP":       "stop",
		"MAX_TOKENS": "max_tokens",
		"SAFETY":     "content_filter",
		"RECITATION": "content_filter",
		"OTHER":      "other",
	}
	for in, want := range cases {
		mockClient := new(MockHTTPClient)
		provider, err := NewProvider(Config{APIKey: "test-key"})
		require.NoError(t, err)
		provider.SetHTTPClient(mockClient)

		mockClient.On("Do", mock.Anything).Return(&http.Response{
			StatusCode: http.StatusOK,
			Body:       jsonBody(geminiAPIResponse("x", in, 1, 1)),
		}, nil)

		result, err := provider.Invoke(context.Background(), Request{Prompt: "hi"})
		require.NoError(t, err)
		assert.Equal(t, want, result.StopReason)
	}
}

func TestProvider_Invoke_NoCandidates(t *testing.T) {
	mockClient := new(MockHTTPClient)
	provider, err := NewProvider(Config{APIKey: "test-key"})
	require.NoError(t, err)
	provider.SetHTTPClient(mockClient)

	mockClient.On("Do", mock.Anything).Return(&http.Response{
		StatusCode: http.StatusOK,
		Body:       jsonBody(geminiResponse{}),
	}, nil)

	result, err := provider.Invoke(context.Background(), Request{Prompt: "hi"})

	require.NoError(t, err)
	assert.Equal(t, "", result.Text)
	assert.Equal(t, "unknown", result.StopReason)
}

func TestProvider_Invoke_ContextCancellation(t *testing.T) {
	mockClient := new(MockHTTPClient)
	provider, err := NewProvider(Config{APIKey: "test-key"})
	require.NoError(t, err)
	provider.SetHTTPClient(mockClient)

	mockClient.On("Do", mock.Anything).Return(nil, context.Canceled)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := provider.Invoke(ctx, Request{Prompt: "hi"})

	require.Error(t, err)
	assert.Nil(t, result)
}

// =============================================================================
// Model Helpers
// =============================================================================

func TestGetSupportedModels(t *testing.T) {
	models := GetSupportedModels()
	assert.Contains(t, models, ModelGemini2Flash)
	assert.Contains(t, models, ModelGemini15Pro)
}

func TestIsValidModel(t *testing.T) {
	assert.True(t, IsValidModel(ModelGemini2Flash))
	assert.True(t, IsValidModel("gemini-some-future-model"))
	assert.False(t, IsValidModel("gpt-4"))
}
