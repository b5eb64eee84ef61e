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
	"fmt"
	"log"
	"os"
	"sort"
	"sync"
	"time"
)

// Registry manages LLM provider instances with lazy loading and health
// monitoring. It is thread-safe for concurrent access. Providers are
// registered programmatically (via Register/RegisterProvider, typically
// from bootstrap.go); there is no persistence layer -- the registry is
// rebuilt from environment/config on every process start.
type Registry struct {
	providers map[string]Provider
	configs   map[string]*ProviderConfig
	factory   *FactoryManager
	logger    *log.Logger
	mu        sync.RWMutex

	healthResults map[string]*HealthCheckResult
	healthMu      sync.RWMutex
}

// RegistryOption configures the registry during creation.
type RegistryOption func(*Registry)

// WithLogger sets a custom logger for the registry.
func WithLogger(logger *log.Logger) RegistryOption {
	return func(r *Registry) { r.logger = logger }
}

// WithFactoryManager sets a custom factory manager. If not set, the
// registry uses a copy of the global factory registry.
func WithFactoryManager(fm *FactoryManager) RegistryOption {
	return func(r *Registry) { r.factory = fm }
}

// NewRegistry creates a new provider registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		providers:     make(map[string]Provider),
		configs:       make(map[string]*ProviderConfig),
		healthResults: make(map[string]*HealthCheckResult),
		logger:        log.New(os.Stdout, "[PROVIDER_REGISTRY] ", log.LstdFlags),
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.factory == nil {
		r.factory = NewFactoryManager()
		r.factory.CopyFromGlobal()
	}

	return r
}

// Register adds a provider configuration to the registry. The provider is
// instantiated lazily on first use. Returns an error if a provider with
// the same name is already registered.
func (r *Registry) Register(ctx context.Context, config *ProviderConfig) error {
	if config == nil {
		return &RegistryError{Code: ErrRegistryInvalidConfig, Message: "config cannot be nil"}
	}
	if config.Name == "" {
		return &RegistryError{Code: ErrRegistryInvalidConfig, Message: "provider name is required"}
	}
	if err := ValidateConfig(*config); err != nil {
		return &RegistryError{
			ProviderName: config.Name,
			Code:         ErrRegistryInvalidConfig,
			Message:      fmt.Sprintf("invalid configuration: %v", err),
			Cause:        err,
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.configs[config.Name]; exists {
		return &RegistryError{
			ProviderName: config.Name,
			Code:         ErrRegistryDuplicate,
			Message:      fmt.Sprintf("provider %q already registered", config.Name),
		}
	}

	configCopy := *config
	r.configs[config.Name] = &configCopy
	r.logger.Printf("registered provider config: %s (type: %s)", config.Name, config.Type)
	return nil
}

// RegisterProvider adds a pre-instantiated provider to the registry. Use
// this when the caller already has a live provider instance (tests, or a
// custom/third-party adapter built outside the factory system).
func (r *Registry) RegisterProvider(name string, p Provider, config *ProviderConfig) error {
	if p == nil {
		return &RegistryError{Code: ErrRegistryInvalidConfig, Message: "provider cannot be nil"}
	}
	if name == "" {
		return &RegistryError{Code: ErrRegistryInvalidConfig, Message: "provider name is required"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[name]; exists {
		return &RegistryError{
			ProviderName: name,
			Code:         ErrRegistryDuplicate,
			Message:      fmt.Sprintf("provider %q already registered", name),
		}
	}

	r.providers[name] = p
	if config != nil {
		configCopy := *config
		r.configs[name] = &configCopy
	}

	r.logger.Printf("registered provider instance: %s (type: %s)", name, p.Type())
	return nil
}

// Unregister removes a provider from the registry.
func (r *Registry) Unregister(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, hasConfig := r.configs[name]
	_, hasProvider := r.providers[name]
	if !hasConfig && !hasProvider {
		return &RegistryError{
			ProviderName: name,
			Code:         ErrRegistryNotFound,
			Message:      fmt.Sprintf("provider %q not found", name),
		}
	}

	delete(r.providers, name)
	delete(r.configs, name)

	r.healthMu.Lock()
	delete(r.healthResults, name)
	r.healthMu.Unlock()

	r.logger.Printf("unregistered provider: %s", name)
	return nil
}

// Get retrieves a provider by name, instantiating it lazily if needed.
func (r *Registry) Get(ctx context.Context, name string) (Provider, error) {
	r.mu.RLock()
	p, exists := r.providers[name]
	config, hasConfig := r.configs[name]
	r.mu.RUnlock()

	if exists {
		return p, nil
	}
	if hasConfig {
		return r.lazyInstantiate(ctx, name, config)
	}

	return nil, &RegistryError{
		ProviderName: name,
		Code:         ErrRegistryNotFound,
		Message:      fmt.Sprintf("provider %q not found", name),
	}
}

// lazyInstantiate creates a provider instance from its config.
func (r *Registry) lazyInstantiate(ctx context.Context, name string, config *ProviderConfig) (Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, exists := r.providers[name]; exists {
		return p, nil
	}

	r.logger.Printf("lazy-instantiating provider: %s (type: %s)", name, config.Type)

	p, err := r.factory.Create(*config)
	if err != nil {
		return nil, &RegistryError{
			ProviderName: name,
			Code:         ErrRegistryCreationFailed,
			Message:      fmt.Sprintf("failed to create provider: %v", err),
			Cause:        err,
		}
	}

	r.providers[name] = p
	r.logger.Printf("instantiated provider: %s", name)
	return p, nil
}

// GetConfig returns a copy of the configuration for a provider.
func (r *Registry) GetConfig(name string) (*ProviderConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	config, exists := r.configs[name]
	if !exists {
		return nil, &RegistryError{
			ProviderName: name,
			Code:         ErrRegistryNotFound,
			Message:      fmt.Sprintf("config for provider %q not found", name),
		}
	}
	configCopy := *config
	return &configCopy, nil
}

// List returns all registered provider names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	nameSet := make(map[string]bool)
	for name := range r.configs {
		nameSet[name] = true
	}
	for name := range r.providers {
		nameSet[name] = true
	}

	names := make([]string, 0, len(nameSet))
	for name := range nameSet {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListEnabled returns names of enabled providers.
func (r *Registry) ListEnabled() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var names []string
	for name, config := range r.configs {
		if config.Enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// ListByType returns provider names of a specific type.
func (r *Registry) ListByType(providerType ProviderType) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var names []string
	for name, config := range r.configs {
		if config.Type == providerType {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Count returns the total number of registered providers (configured or
// instantiated).
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	nameSet := make(map[string]bool)
	for name := range r.configs {
		nameSet[name] = true
	}
	for name := range r.providers {
		nameSet[name] = true
	}
	return len(nameSet)
}

// CountInstantiated returns the number of instantiated providers.
func (r *Registry) CountInstantiated() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}

// Has returns true if a provider is registered (configured or instantiated).
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, hasConfig := r.configs[name]
	_, hasProvider := r.providers[name]
	return hasConfig || hasProvider
}

// HealthCheck performs health checks on all instantiated providers.
func (r *Registry) HealthCheck(ctx context.Context) map[string]*HealthCheckResult {
	r.mu.RLock()
	providers := make(map[string]Provider, len(r.providers))
	for name, p := range r.providers {
		providers[name] = p
	}
	r.mu.RUnlock()

	results := make(map[string]*HealthCheckResult, len(providers))
	for name, p := range providers {
		results[name] = r.checkAndCache(ctx, name, p)
	}
	return results
}

// HealthCheckSingle performs a health check on a specific provider.
func (r *Registry) HealthCheckSingle(ctx context.Context, name string) (*HealthCheckResult, error) {
	p, err := r.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return r.checkAndCache(ctx, name, p), nil
}

func (r *Registry) checkAndCache(ctx context.Context, name string, p Provider) *HealthCheckResult {
	start := time.Now()
	result, err := p.HealthCheck(ctx)
	if err != nil {
		result = &HealthCheckResult{
			Status:      HealthStatusUnhealthy,
			Latency:     time.Since(start),
			Message:     err.Error(),
			LastChecked: time.Now(),
		}
	}
	if result.LastChecked.IsZero() {
		result.LastChecked = time.Now()
	}

	r.healthMu.Lock()
	r.healthResults[name] = result
	r.healthMu.Unlock()

	return result
}

// GetHealthResult returns the cached health result for a provider.
func (r *Registry) GetHealthResult(name string) *HealthCheckResult {
	r.healthMu.RLock()
	defer r.healthMu.RUnlock()
	return r.healthResults[name]
}

// GetHealthyProviders returns names of providers whose cached health
// result is healthy.
func (r *Registry) GetHealthyProviders() []string {
	r.healthMu.RLock()
	defer r.healthMu.RUnlock()

	var names []string
	for name, result := range r.healthResults {
		if result != nil && result.Status == HealthStatusHealthy {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// StartPeriodicHealthCheck starts a background goroutine that health-checks
// every instantiated provider on the given interval until ctx is done.
func (r *Registry) StartPeriodicHealthCheck(ctx context.Context, interval time.Duration) {
	r.logger.Printf("starting periodic health check (every %v)", interval)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				r.logger.Println("stopping periodic health check")
				return
			case <-ticker.C:
				results := r.HealthCheck(ctx)
				healthy, unhealthy := 0, 0
				for _, result := range results {
					if result.Status == HealthStatusHealthy {
						healthy++
					} else {
						unhealthy++
					}
				}
				if unhealthy > 0 {
					r.logger.Printf("health check: %d healthy, %d unhealthy", healthy, unhealthy)
				}
			}
		}
	}()
}

// Close cleans up registry resources. It does not close individual
// providers; they manage their own lifecycle.
func (r *Registry) Close() error {
	r.logger.Println("closing registry")

	r.mu.Lock()
	r.providers = make(map[string]Provider)
	r.configs = make(map[string]*ProviderConfig)
	r.mu.Unlock()

	r.healthMu.Lock()
	r.healthResults = make(map[string]*HealthCheckResult)
	r.healthMu.Unlock()

	return nil
}

// RegistryError represents an error from registry operations.
type RegistryError struct {
	ProviderName string
	Code         string
	Message      string
	Cause        error
}

// Registry error codes.
const (
	ErrRegistryNotFound       = "registry_not_found"
	ErrRegistryDuplicate      = "registry_duplicate"
	ErrRegistryInvalidConfig  = "registry_invalid_config"
	ErrRegistryCreationFailed = "registry_creation_failed"
)

// Error implements the error interface.
func (e *RegistryError) Error() string {
	if e.ProviderName != "" {
		return fmt.Sprintf("registry error for %q: %s", e.ProviderName, e.Message)
	}
	return fmt.Sprintf("registry error: %s", e.Message)
}

// Unwrap returns the underlying error.
func (e *RegistryError) Unwrap() error {
	return e.Cause
}
