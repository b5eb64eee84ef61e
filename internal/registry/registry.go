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

// Package registry loads the static model-capability manifest and serves it
// to the Advanced Router and the DQN agent. The registry is immutable after
// load: there is no runtime registration path, only a startup-time YAML file.
package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"axonflow/corerouter/internal/types"
)

// ManifestFile is the on-disk YAML document, following the same
// apiVersion/kind convention as the agent configs.
type ManifestFile struct {
	APIVersion string           `yaml:"apiVersion"`
	Kind       string           `yaml:"kind"`
	Metadata   ManifestMetadata `yaml:"metadata"`
	Spec       ManifestSpec     `yaml:"spec"`
}

// ManifestMetadata identifies the manifest revision.
type ManifestMetadata struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// ManifestSpec holds the actual model list.
type ManifestSpec struct {
	Models []ModelEntry `yaml:"models"`
}

// ModelEntry is one model as it appears in the YAML file before conversion
// to types.ModelCapability.
type ModelEntry struct {
	Provider          string   `yaml:"provider"`
	ModelID           string   `yaml:"model_id"`
	CodeGenScore      float64  `yaml:"code_gen_score"`
	ReasoningScore    float64  `yaml:"reasoning_score"`
	ContextWindow     int      `yaml:"context_window"`
	LatencyHintMillis int      `yaml:"latency_hint_ms"`
	CostPerTokenIn    float64  `yaml:"cost_per_token_in"`
	CostPerTokenOut   float64  `yaml:"cost_per_token_out"`
	Reliability       float64  `yaml:"reliability"`
	Specializations   []string `yaml:"specializations"`
	ComplexityFloor   string   `yaml:"complexity_floor"`
}

// ConfigurationError wraps a manifest validation failure with the field
// path that failed, mirroring the teacher's wrapped-error convention in
// orchestrator/agent_config.go.
type ConfigurationError struct {
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("model registry config: %s: %v", e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

var complexityByName = map[string]types.ComplexityLevel{
	"trivial":      types.ComplexityTrivial,
	"simple":       types.ComplexitySimple,
	"moderate":     types.ComplexityModerate,
	"complex":      types.ComplexityComplex,
	"very_complex": types.ComplexityVeryComplex,
	"expert":       types.ComplexityExpert,
	"critical":     types.ComplexityCritical,
}

// Registry is the immutable, loaded model-capability directory.
type Registry struct {
	version    string
	models     map[string]types.ModelCapability // keyed by "provider/model_id"
	actionSpace []string                          // registry order, fixed at load
}

// Load reads and validates a manifest file from path.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model manifest %s: %w", path, err)
	}
	return Parse(data)
}

// Parse validates and builds a Registry from raw YAML bytes.
func Parse(data []byte) (*Registry, error) {
	var file ManifestFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse model manifest YAML: %w", err)
	}

	if !strings.HasPrefix(file.APIVersion, "axonflow.io/") {
		return nil, &ConfigurationError{Field: "apiVersion", Err: fmt.Errorf("must start with 'axonflow.io/', got %q", file.APIVersion)}
	}
	if file.Kind != "ModelManifest" {
		return nil, &ConfigurationError{Field: "kind", Err: fmt.Errorf("expected 'ModelManifest', got %q", file.Kind)}
	}
	if file.Metadata.Version == "" {
		return nil, &ConfigurationError{Field: "metadata.version", Err: fmt.Errorf("version is required")}
	}
	if len(file.Spec.Models) == 0 {
		return nil, &ConfigurationError{Field: "spec.models", Err: fmt.Errorf("at least one model is required")}
	}

	reg := &Registry{
		version: file.Metadata.Version,
		models:  make(map[string]types.ModelCapability, len(file.Spec.Models)),
	}

	for i, entry := range file.Spec.Models {
		cap, err := convertEntry(entry)
		if err != nil {
			return nil, &ConfigurationError{Field: fmt.Sprintf("spec.models[%d]", i), Err: err}
		}
		key := cap.Key()
		if _, exists := reg.models[key]; exists {
			return nil, &ConfigurationError{Field: fmt.Sprintf("spec.models[%d]", i), Err: fmt.Errorf("duplicate model %q", key)}
		}
		reg.models[key] = cap
		reg.actionSpace = append(reg.actionSpace, key)
	}

	return reg, nil
}

func convertEntry(e ModelEntry) (types.ModelCapability, error) {
	if e.Provider == "" {
		return types.ModelCapability{}, fmt.Errorf("provider is required")
	}
	if e.ModelID == "" {
		return types.ModelCapability{}, fmt.Errorf("model_id is required")
	}
	if e.CodeGenScore < 0 || e.CodeGenScore > 1 {
		return types.ModelCapability{}, fmt.Errorf("code_gen_score must be in [0,1], got %v", e.CodeGenScore)
	}
	if e.ReasoningScore < 0 || e.ReasoningScore > 1 {
		return types.ModelCapability{}, fmt.Errorf("reasoning_score must be in [0,1], got %v", e.ReasoningScore)
	}
	if e.Reliability < 0 || e.Reliability > 1 {
		return types.ModelCapability{}, fmt.Errorf("reliability must be in [0,1], got %v", e.Reliability)
	}
	if e.ContextWindow < 1 {
		return types.ModelCapability{}, fmt.Errorf("context_window must be >= 1, got %d", e.ContextWindow)
	}
	if e.CostPerTokenIn < 0 || e.CostPerTokenOut < 0 {
		return types.ModelCapability{}, fmt.Errorf("cost_per_token values must be >= 0")
	}

	floor := types.ComplexityTrivial
	if e.ComplexityFloor != "" {
		lvl, ok := complexityByName[e.ComplexityFloor]
		if !ok {
			return types.ModelCapability{}, fmt.Errorf("unknown complexity_floor %q", e.ComplexityFloor)
		}
		floor = lvl
	}

	specs := make(map[string]struct{}, len(e.Specializations))
	for _, s := range e.Specializations {
		specs[s] = struct{}{}
	}

	return types.ModelCapability{
		Provider:           e.Provider,
		ModelID:            e.ModelID,
		CodeGenScore:       e.CodeGenScore,
		ReasoningScore:     e.ReasoningScore,
		ContextWindow:      e.ContextWindow,
		LatencyHint:        time.Duration(e.LatencyHintMillis) * time.Millisecond,
		CostPerTokenIn:     e.CostPerTokenIn,
		CostPerTokenOut:    e.CostPerTokenOut,
		Reliability:        e.Reliability,
		Specializations:    specs,
		SpecializationsRaw: e.Specializations,
		ComplexityFloor:    floor,
	}, nil
}

// Get returns the model registered under provider/modelID.
func (r *Registry) Get(provider, modelID string) (types.ModelCapability, bool) {
	cap, ok := r.models[provider+"/"+modelID]
	return cap, ok
}

// List returns all registered models in a stable, sorted order.
func (r *Registry) List() []types.ModelCapability {
	out := make([]types.ModelCapability, 0, len(r.models))
	for _, key := range r.sortedKeys() {
		out = append(out, r.models[key])
	}
	return out
}

func (r *Registry) sortedKeys() []string {
	keys := make([]string, 0, len(r.models))
	for k := range r.models {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ActionSpace returns the registry-ordered list of (provider, model_id)
// action keys, in the fixed order the manifest declared them. Nothing
// compares it with an earlier manifest's order; the DQN agent's output
// layer is sized to it.
func (r *Registry) ActionSpace() []string {
	out := make([]string, len(r.actionSpace))
	copy(out, r.actionSpace)
	return out
}

// ActionSpaceHash returns a SHA-256 hex digest over the action space, in
// registry order; it changes whenever the model list or its order changes.
// DQN weights are not persisted and no caller compares this hash (see §9
// Open Question: action space versioning).
func (r *Registry) ActionSpaceHash() string {
	h := sha256.New()
	for _, key := range r.actionSpace {
		h.Write([]byte(key))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Version returns the manifest's metadata.version string.
func (r *Registry) Version() string {
	return r.version
}

// FilterByComplexityFloor returns the models whose complexity_floor is <=
// the requested level, i.e. models capable of handling at least that
// complexity.
func (r *Registry) FilterByComplexityFloor(level types.ComplexityLevel) []types.ModelCapability {
	var out []types.ModelCapability
	for _, key := range r.sortedKeys() {
		m := r.models[key]
		if m.ComplexityFloor <= level {
			out = append(out, m)
		}
	}
	return out
}
