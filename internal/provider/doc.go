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

/*
Package provider defines the unified interface and types the router's
model adapters implement: openai, anthropic, azure-openai, ollama, and
gemini.

# Overview

This package defines the common abstractions the core orchestrator relies
on. It enables pluggable provider implementations behind one
Invoke/HealthCheck/Capabilities contract.

# Provider Interface

The Provider interface is the core abstraction that all LLM providers must implement:

	type Provider interface {
		Name() string
		Type() ProviderType
		Invoke(ctx context.Context, modelID, prompt string, params InvokeParams) (*InvokeResult, error)
		HealthCheck(ctx context.Context) (*HealthCheckResult, error)
		Capabilities() []Capability
		EstimateCost(tokensIn, tokensOut int) *CostEstimate
	}

Invoke returns a closed tagged union -- {text, tokens_in, tokens_out,
latency_ms} plus an Extensions map for anything provider-specific (stop
reason, safety ratings, Azure's auth mode). The router and cost estimator
never branch on a provider's wire format; only the adapter that built
InvokeResult understands it.

# Supported Providers

AxonFlow supports the following LLM providers out of the box:

  - OpenAI (GPT-4o, GPT-4, GPT-3.5)
  - Anthropic (Claude 4, Claude 3.5, Claude 3)
  - Azure OpenAI (Classic and AI Foundry deployments)
  - Google Gemini (2.5/2.0/1.5 families)
  - Ollama (self-hosted models)

# Custom Providers

To create a custom provider, implement the Provider interface:

	type MyProvider struct {
		name   string
		config ProviderConfig
	}

	func (p *MyProvider) Name() string {
		return p.name
	}

	func (p *MyProvider) Type() ProviderType {
		return ProviderTypeCustom
	}

	func (p *MyProvider) Invoke(ctx context.Context, modelID, prompt string, params InvokeParams) (*InvokeResult, error) {
		// Your implementation here
	}

	// ... implement remaining methods

Then register the provider factory:

	provider.RegisterFactory(ProviderTypeCustom, func(cfg ProviderConfig) (Provider, error) {
		return &MyProvider{name: cfg.Name, config: cfg}, nil
	})

# Error Handling

Invoke errors are always *Error, classified into one of four kinds:

	result, err := p.Invoke(ctx, modelID, prompt, params)
	if err != nil {
		var provErr *provider.Error
		if errors.As(err, &provErr) {
			switch provErr.Kind {
			case provider.KindRateLimited:
				// back off and retry against a fallback model
			case provider.KindInvalidRequest:
				// not retryable; the request itself is the problem
			}
		}
	}

# Thread Safety

All provider implementations must be safe for concurrent use. The registry and
router implementations use sync.RWMutex for thread-safe operations.
*/
package provider
