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
)

// testProviderFactory is a test factory that creates MockProvider instances.
func testProviderFactory(config ProviderConfig) (Provider, error) {
	if config.APIKey == "" && config.Type != ProviderTypeOllama {
		return nil, errors.New("API key required")
	}
	return NewMockProvider(config.Name, config.Type), nil
}

// failingProviderFactory always returns an error.
func failingProviderFactory(config ProviderConfig) (Provider, error) {
	return nil, errors.New("factory always fails")
}

func TestRegisterFactory(t *testing.T) {
	defer UnregisterFactory(ProviderType("test-register"))

	providerType := ProviderType("test-register")

	if HasFactory(providerType) {
		t.Error("factory should not exist before registration")
	}

	RegisterFactory(providerType, testProviderFactory)

	if !HasFactory(providerType) {
		t.Error("factory should exist after registration")
	}

	if GetFactory(providerType) == nil {
		t.Fatal("GetFactory returned nil")
	}
}

func TestUnregisterFactory(t *testing.T) {
	providerType := ProviderType("test-unregister")

	RegisterFactory(providerType, testProviderFactory)
	if !HasFactory(providerType) {
		t.Fatal("factory should be registered")
	}

	if !UnregisterFactory(providerType) {
		t.Error("UnregisterFactory should return true when factory existed")
	}

	if HasFactory(providerType) {
		t.Error("factory should not exist after unregistration")
	}

	if UnregisterFactory(providerType) {
		t.Error("UnregisterFactory should return false when factory didn't exist")
	}
}

func TestGetFactory(t *testing.T) {
	defer UnregisterFactory(ProviderType("test-get"))

	t.Run("existing factory", func(t *testing.T) {
		providerType := ProviderType("test-get")
		RegisterFactory(providerType, testProviderFactory)

		if GetFactory(providerType) == nil {
			t.Error("GetFactory should return factory for registered type")
		}
	})

	t.Run("non-existent factory", func(t *testing.T) {
		if GetFactory(ProviderType("non-existent")) != nil {
			t.Error("GetFactory should return nil for unregistered type")
		}
	})
}

func TestHasFactory(t *testing.T) {
	defer UnregisterFactory(ProviderType("test-has"))

	providerType := ProviderType("test-has")

	if HasFactory(providerType) {
		t.Error("HasFactory should return false for unregistered type")
	}

	RegisterFactory(providerType, testProviderFactory)

	if !HasFactory(providerType) {
		t.Error("HasFactory should return true for registered type")
	}
}

func TestListFactories(t *testing.T) {
	defer func() {
		UnregisterFactory(ProviderType("test-list-1"))
		UnregisterFactory(ProviderType("test-list-2"))
	}()

	RegisterFactory(ProviderType("test-list-1"), testProviderFactory)
	RegisterFactory(ProviderType("test-list-2"), testProviderFactory)

	types := ListFactories()

	found1, found2 := false, false
	for _, pt := range types {
		if pt == ProviderType("test-list-1") {
			found1 = true
		}
		if pt == ProviderType("test-list-2") {
			found2 = true
		}
	}

	if !found1 {
		t.Error("ListFactories should include test-list-1")
	}
	if !found2 {
		t.Error("ListFactories should include test-list-2")
	}
}

func TestCreateProvider(t *testing.T) {
	defer UnregisterFactory(ProviderType("test-create"))

	providerType := ProviderType("test-create")
	RegisterFactory(providerType, testProviderFactory)

	t.Run("successful creation", func(t *testing.T) {
		config := ProviderConfig{Name: "test-provider", Type: providerType, APIKey: "test-key"}

		p, err := CreateProvider(config)
		if err != nil {
			t.Fatalf("CreateProvider error = %v", err)
		}
		if p == nil {
			t.Fatal("CreateProvider returned nil provider")
		}
		if p.Name() != "test-provider" {
			t.Errorf("provider.Name() = %q, want %q", p.Name(), "test-provider")
		}
	})

	t.Run("missing type", func(t *testing.T) {
		config := ProviderConfig{Name: "test-provider", APIKey: "test-key"}

		_, err := CreateProvider(config)
		if err == nil {
			t.Fatal("CreateProvider should error on missing type")
		}

		var factoryErr *FactoryError
		if !errors.As(err, &factoryErr) {
			t.Fatalf("expected FactoryError, got %T", err)
		}
		if factoryErr.Code != ErrFactoryMissingType {
			t.Errorf("error code = %q, want %q", factoryErr.Code, ErrFactoryMissingType)
		}
	})

	t.Run("unregistered type", func(t *testing.T) {
		config := ProviderConfig{Name: "test-provider", Type: ProviderType("unregistered"), APIKey: "test-key"}

		_, err := CreateProvider(config)
		if err == nil {
			t.Fatal("CreateProvider should error on unregistered type")
		}

		var factoryErr *FactoryError
		if !errors.As(err, &factoryErr) {
			t.Fatalf("expected FactoryError, got %T", err)
		}
		if factoryErr.Code != ErrFactoryNotRegistered {
			t.Errorf("error code = %q, want %q", factoryErr.Code, ErrFactoryNotRegistered)
		}
	})

	t.Run("factory returns error", func(t *testing.T) {
		failType := ProviderType("test-fail")
		RegisterFactory(failType, failingProviderFactory)
		defer UnregisterFactory(failType)

		config := ProviderConfig{Name: "test-provider", Type: failType}

		_, err := CreateProvider(config)
		if err == nil {
			t.Fatal("CreateProvider should error when factory fails")
		}

		var factoryErr *FactoryError
		if !errors.As(err, &factoryErr) {
			t.Fatalf("expected FactoryError, got %T", err)
		}
		if factoryErr.Code != ErrFactoryCreationFailed {
			t.Errorf("error code = %q, want %q", factoryErr.Code, ErrFactoryCreationFailed)
		}
	})
}

func TestMustCreateProvider(t *testing.T) {
	defer UnregisterFactory(ProviderType("test-must"))

	providerType := ProviderType("test-must")
	RegisterFactory(providerType, testProviderFactory)

	t.Run("successful creation", func(t *testing.T) {
		config := ProviderConfig{Name: "test-provider", Type: providerType, APIKey: "test-key"}

		p := MustCreateProvider(config)
		if p == nil {
			t.Fatal("MustCreateProvider returned nil provider")
		}
	})

	t.Run("panics on error", func(t *testing.T) {
		config := ProviderConfig{Name: "test-provider", Type: ProviderType("unregistered")}

		defer func() {
			if r := recover(); r == nil {
				t.Error("MustCreateProvider should panic on error")
			}
		}()

		MustCreateProvider(config)
	})
}

func TestFactoryError(t *testing.T) {
	t.Run("error with provider type", func(t *testing.T) {
		err := &FactoryError{ProviderType: ProviderTypeOpenAI, Code: ErrFactoryCreationFailed, Message: "test error"}

		if err.Error() == "" {
			t.Error("Error() returned empty string")
		}
	})

	t.Run("error without provider type", func(t *testing.T) {
		err := &FactoryError{Code: ErrFactoryMissingType, Message: "test error"}

		if err.Error() == "" {
			t.Error("Error() returned empty string")
		}
	})

	t.Run("unwrap cause", func(t *testing.T) {
		cause := errors.New("underlying error")
		err := &FactoryError{Code: ErrFactoryCreationFailed, Message: "wrapper", Cause: cause}

		if err.Unwrap() != cause {
			t.Error("Unwrap() should return cause")
		}
	})
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  ProviderConfig
		wantErr bool
		errCode string
	}{
		{
			name:    "valid OpenAI config",
			config:  ProviderConfig{Name: "openai-primary", Type: ProviderTypeOpenAI, APIKey: "sk-test"},
			wantErr: false,
		},
		{
			name:    "valid Ollama config (no required fields)",
			config:  ProviderConfig{Name: "ollama-local", Type: ProviderTypeOllama},
			wantErr: false,
		},
		{
			name:    "missing type",
			config:  ProviderConfig{Name: "test", APIKey: "test"},
			wantErr: true,
			errCode: ErrFactoryInvalidConfig,
		},
		{
			name:    "missing name",
			config:  ProviderConfig{Type: ProviderTypeOpenAI, APIKey: "test"},
			wantErr: true,
			errCode: ErrFactoryInvalidConfig,
		},
		{
			name:    "OpenAI missing API key",
			config:  ProviderConfig{Name: "openai", Type: ProviderTypeOpenAI},
			wantErr: true,
			errCode: ErrFactoryInvalidConfig,
		},
		{
			name:    "Anthropic missing API key",
			config:  ProviderConfig{Name: "anthropic", Type: ProviderTypeAnthropic},
			wantErr: true,
			errCode: ErrFactoryInvalidConfig,
		},
		{
			name:    "Azure OpenAI missing endpoint",
			config:  ProviderConfig{Name: "azure", Type: ProviderTypeAzureOpenAI, APIKey: "key", Model: "gpt-4o"},
			wantErr: true,
			errCode: ErrFactoryInvalidConfig,
		},
		{
			name:    "invalid timeout",
			config:  ProviderConfig{Name: "test", Type: ProviderTypeOllama, TimeoutSeconds: -1},
			wantErr: true,
			errCode: ErrFactoryInvalidConfig,
		},
		{
			name:    "valid config with optional fields",
			config:  ProviderConfig{Name: "test", Type: ProviderTypeOllama, TimeoutSeconds: 30},
			wantErr: false,
		},
		{
			name:    "custom provider (minimal validation)",
			config:  ProviderConfig{Name: "custom", Type: ProviderTypeCustom},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConfig(tt.config)
			if tt.wantErr {
				if err == nil {
					t.Fatal("ValidateConfig should return error")
				}
				if tt.errCode != "" {
					var factoryErr *FactoryError
					if errors.As(err, &factoryErr) && factoryErr.Code != tt.errCode {
						t.Errorf("error code = %q, want %q", factoryErr.Code, tt.errCode)
					}
				}
			} else if err != nil {
				t.Errorf("ValidateConfig error = %v", err)
			}
		})
	}
}

func TestFactoryManager(t *testing.T) {
	t.Run("new manager is empty", func(t *testing.T) {
		m := NewFactoryManager()
		if m.Count() != 0 {
			t.Errorf("Count() = %d, want 0", m.Count())
		}
	})

	t.Run("register and get", func(t *testing.T) {
		m := NewFactoryManager()
		m.Register(ProviderTypeOpenAI, testProviderFactory)

		if !m.Has(ProviderTypeOpenAI) {
			t.Error("Has should return true after registration")
		}
		if m.Get(ProviderTypeOpenAI) == nil {
			t.Error("Get should return factory after registration")
		}
	})

	t.Run("unregister", func(t *testing.T) {
		m := NewFactoryManager()
		m.Register(ProviderTypeOpenAI, testProviderFactory)

		if !m.Unregister(ProviderTypeOpenAI) {
			t.Error("Unregister should return true when factory existed")
		}
		if m.Has(ProviderTypeOpenAI) {
			t.Error("Has should return false after unregistration")
		}
	})

	t.Run("list", func(t *testing.T) {
		m := NewFactoryManager()
		m.Register(ProviderTypeOpenAI, testProviderFactory)
		m.Register(ProviderTypeAnthropic, testProviderFactory)

		if len(m.List()) != 2 {
			t.Errorf("List() length = %d, want 2", len(m.List()))
		}
	})

	t.Run("create provider", func(t *testing.T) {
		m := NewFactoryManager()
		m.Register(ProviderTypeOpenAI, testProviderFactory)

		config := ProviderConfig{Name: "test", Type: ProviderTypeOpenAI, APIKey: "test-key"}

		p, err := m.Create(config)
		if err != nil {
			t.Fatalf("Create error = %v", err)
		}
		if p == nil {
			t.Fatal("Create returned nil provider")
		}
	})

	t.Run("create with missing type", func(t *testing.T) {
		m := NewFactoryManager()

		_, err := m.Create(ProviderConfig{Name: "test"})
		if err == nil {
			t.Error("Create should error on missing type")
		}
	})

	t.Run("create with unregistered type", func(t *testing.T) {
		m := NewFactoryManager()

		_, err := m.Create(ProviderConfig{Name: "test", Type: ProviderTypeOpenAI})
		if err == nil {
			t.Error("Create should error on unregistered type")
		}
	})

	t.Run("copy from global", func(t *testing.T) {
		RegisterFactory(ProviderType("test-copy-global"), testProviderFactory)
		defer UnregisterFactory(ProviderType("test-copy-global"))

		m := NewFactoryManager()
		m.CopyFromGlobal()

		if !m.Has(ProviderType("test-copy-global")) {
			t.Error("CopyFromGlobal should copy factory from global registry")
		}
	})

	t.Run("clear", func(t *testing.T) {
		m := NewFactoryManager()
		m.Register(ProviderTypeOpenAI, testProviderFactory)
		m.Register(ProviderTypeAnthropic, testProviderFactory)

		m.Clear()

		if m.Count() != 0 {
			t.Errorf("Count() after Clear() = %d, want 0", m.Count())
		}
	})
}

func TestFactoryManager_Concurrency(t *testing.T) {
	m := NewFactoryManager()

	done := make(chan bool)

	go func() {
		for i := 0; i < 100; i++ {
			m.Register(ProviderType("test"), testProviderFactory)
			m.Unregister(ProviderType("test"))
		}
		done <- true
	}()

	go func() {
		for i := 0; i < 100; i++ {
			m.Has(ProviderType("test"))
			m.Get(ProviderType("test"))
			m.List()
			m.Count()
		}
		done <- true
	}()

	<-done
	<-done
}

func TestCreateProviderIntegration(t *testing.T) {
	defer func() {
		UnregisterFactory(ProviderType("test-openai"))
		UnregisterFactory(ProviderType("test-anthropic"))
		UnregisterFactory(ProviderType("test-ollama"))
	}()

	RegisterFactory(ProviderType("test-openai"), testProviderFactory)
	RegisterFactory(ProviderType("test-anthropic"), testProviderFactory)
	RegisterFactory(ProviderType("test-ollama"), func(config ProviderConfig) (Provider, error) {
		return NewMockProvider(config.Name, config.Type), nil
	})

	t.Run("create OpenAI-shaped provider", func(t *testing.T) {
		config := ProviderConfig{Name: "openai-primary", Type: ProviderType("test-openai"), APIKey: "sk-test", Model: "gpt-4o"}

		p, err := CreateProvider(config)
		if err != nil {
			t.Fatalf("CreateProvider error = %v", err)
		}
		if p.Type() != ProviderType("test-openai") {
			t.Errorf("Type() = %v, want %v", p.Type(), ProviderType("test-openai"))
		}
	})

	t.Run("create Ollama-shaped provider", func(t *testing.T) {
		config := ProviderConfig{Name: "ollama-local", Type: ProviderType("test-ollama"), Endpoint: "http://localhost:11434", Model: "llama3.1"}

		p, err := CreateProvider(config)
		if err != nil {
			t.Fatalf("CreateProvider error = %v", err)
		}
		if p.Type() != ProviderType("test-ollama") {
			t.Errorf("Type() = %v, want %v", p.Type(), ProviderType("test-ollama"))
		}
	})

	t.Run("invoke provider after creation", func(t *testing.T) {
		config := ProviderConfig{Name: "test-provider", Type: ProviderType("test-openai"), APIKey: "test-key"}

		p, err := CreateProvider(config)
		if err != nil {
			t.Fatalf("CreateProvider error = %v", err)
		}

		resp, err := p.Invoke(context.Background(), "gpt-4o", "Hello", InvokeParams{})
		if err != nil {
			t.Fatalf("Invoke error = %v", err)
		}
		if resp == nil {
			t.Fatal("Invoke returned nil response")
		}
	})
}
