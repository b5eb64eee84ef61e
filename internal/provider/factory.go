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

package provider

import (
	"fmt"
	"sync"
)

// ProviderFactory creates a Provider instance from configuration.
// Factories should validate the config and return an error if invalid.
type ProviderFactory func(config ProviderConfig) (Provider, error)

// FactoryManager is a thread-safe registry of provider factories keyed by
// ProviderType. One instance (globalFactories) backs the package-level
// RegisterFactory/CreateProvider helpers used by init()-time registration;
// callers that want an isolated registry (tests, custom deployments) can
// create their own with NewFactoryManager and pass it to NewRegistry via
// WithFactoryManager.
type FactoryManager struct {
	factories map[ProviderType]ProviderFactory
	mu        sync.RWMutex
}

// NewFactoryManager creates a new, empty factory manager.
func NewFactoryManager() *FactoryManager {
	return &FactoryManager{factories: make(map[ProviderType]ProviderFactory)}
}

// Register adds a factory to this manager, overwriting any existing entry
// for the same type.
func (m *FactoryManager) Register(providerType ProviderType, factory ProviderFactory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.factories[providerType] = factory
}

// Unregister removes a factory. Returns true if one was removed.
func (m *FactoryManager) Unregister(providerType ProviderType) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, existed := m.factories[providerType]
	delete(m.factories, providerType)
	return existed
}

// Get returns the factory for a type, or nil if none is registered.
func (m *FactoryManager) Get(providerType ProviderType) ProviderFactory {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.factories[providerType]
}

// Has returns true if a factory is registered for the type.
func (m *FactoryManager) Has(providerType ProviderType) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.factories[providerType]
	return ok
}

// List returns all registered provider types.
func (m *FactoryManager) List() []ProviderType {
	m.mu.RLock()
	defer m.mu.RUnlock()
	types := make([]ProviderType, 0, len(m.factories))
	for pt := range m.factories {
		types = append(types, pt)
	}
	return types
}

// Count returns the number of registered factories.
func (m *FactoryManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.factories)
}

// Clear removes all registered factories.
func (m *FactoryManager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.factories = make(map[ProviderType]ProviderFactory)
}

// Create builds a provider using a factory registered on this manager.
func (m *FactoryManager) Create(config ProviderConfig) (Provider, error) {
	if config.Type == "" {
		return nil, &FactoryError{Code: ErrFactoryMissingType, Message: "provider type is required"}
	}

	factory := m.Get(config.Type)
	if factory == nil {
		return nil, &FactoryError{
			ProviderType: config.Type,
			Code:         ErrFactoryNotRegistered,
			Message:      fmt.Sprintf("no factory registered for provider type %q", config.Type),
		}
	}

	p, err := factory(config)
	if err != nil {
		return nil, &FactoryError{
			ProviderType: config.Type,
			Code:         ErrFactoryCreationFailed,
			Message:      fmt.Sprintf("failed to create provider: %v", err),
			Cause:        err,
		}
	}
	return p, nil
}

// CopyFromGlobal copies all factories registered on globalFactories into m.
// Used by NewRegistry when no explicit FactoryManager is supplied.
func (m *FactoryManager) CopyFromGlobal() {
	globalFactories.mu.RLock()
	defer globalFactories.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	for pt, factory := range globalFactories.factories {
		m.factories[pt] = factory
	}
}

// globalFactories is the default factory registry, populated by each
// adapter package's init().
var globalFactories = NewFactoryManager()

// RegisterFactory registers a factory function for a provider type.
// Typically called from init() to register a built-in adapter.
func RegisterFactory(providerType ProviderType, factory ProviderFactory) {
	globalFactories.Register(providerType, factory)
}

// UnregisterFactory removes a factory for a provider type.
func UnregisterFactory(providerType ProviderType) bool {
	return globalFactories.Unregister(providerType)
}

// GetFactory returns the factory for a provider type, or nil if unregistered.
func GetFactory(providerType ProviderType) ProviderFactory {
	return globalFactories.Get(providerType)
}

// HasFactory returns true if a factory is registered for the provider type.
func HasFactory(providerType ProviderType) bool {
	return globalFactories.Has(providerType)
}

// ListFactories returns all registered provider types.
func ListFactories() []ProviderType {
	return globalFactories.List()
}

// CreateProvider creates a provider using the registered factory.
func CreateProvider(config ProviderConfig) (Provider, error) {
	return globalFactories.Create(config)
}

// MustCreateProvider creates a provider or panics on error. Use only in
// initialization code where failure should be fatal.
func MustCreateProvider(config ProviderConfig) Provider {
	p, err := CreateProvider(config)
	if err != nil {
		panic(fmt.Sprintf("failed to create provider %q: %v", config.Name, err))
	}
	return p
}

// FactoryError represents an error during provider factory operations.
type FactoryError struct {
	ProviderType ProviderType
	Code         string
	Message      string
	Cause        error
}

// Factory error codes.
const (
	ErrFactoryNotRegistered  = "factory_not_registered"
	ErrFactoryMissingType    = "factory_missing_type"
	ErrFactoryCreationFailed = "factory_creation_failed"
	ErrFactoryInvalidConfig  = "factory_invalid_config"
)

// Error implements the error interface.
func (e *FactoryError) Error() string {
	if e.ProviderType != "" {
		return fmt.Sprintf("factory error for %q: %s", e.ProviderType, e.Message)
	}
	return fmt.Sprintf("factory error: %s", e.Message)
}

// Unwrap returns the underlying error.
func (e *FactoryError) Unwrap() error {
	return e.Cause
}

// ValidateConfig validates a ProviderConfig and returns any errors. Call
// this before CreateProvider to get a detailed validation error.
func ValidateConfig(config ProviderConfig) error {
	if config.Type == "" {
		return &FactoryError{Code: ErrFactoryInvalidConfig, Message: "provider type is required"}
	}

	if config.Name == "" {
		return &FactoryError{
			ProviderType: config.Type,
			Code:         ErrFactoryInvalidConfig,
			Message:      "provider name is required",
		}
	}

	switch config.Type {
	case ProviderTypeOpenAI, ProviderTypeAnthropic, ProviderTypeGemini:
		if config.APIKey == "" {
			return &FactoryError{
				ProviderType: config.Type,
				Code:         ErrFactoryInvalidConfig,
				Message:      "API key is required",
			}
		}

	case ProviderTypeAzureOpenAI:
		if config.APIKey == "" || config.Endpoint == "" || config.Model == "" {
			return &FactoryError{
				ProviderType: config.Type,
				Code:         ErrFactoryInvalidConfig,
				Message:      "endpoint, API key, and deployment name (model) are required for Azure OpenAI",
			}
		}

	case ProviderTypeOllama:
		// Ollama has sensible defaults; endpoint defaults to localhost:11434.

	case ProviderTypeCustom:
		// Custom providers validate their own config in their factory.
	}

	if config.TimeoutSeconds < 0 {
		return &FactoryError{
			ProviderType: config.Type,
			Code:         ErrFactoryInvalidConfig,
			Message:      "timeout must be non-negative",
		}
	}

	return nil
}
