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

// Package persona selects a Persona for a request: a slash command, an
// explicit override, a context-derived default, or the developer fallback.
// The persona/context hint tables here play the same role the teacher's
// PlanningEngine.templates map plays for domain hints, keyed by persona
// instead of domain.
package persona

import (
	"strings"

	"axonflow/corerouter/internal/types"
)

// Selection is the output of SelectPersona: the resolved persona plus the
// prompt with any leading slash command stripped.
type Selection struct {
	Persona         types.Persona
	EffectivePrompt string
	SlashCommand    string // empty if none matched
}

// slashCommandTable is the closed set of recognized command prefixes.
var slashCommandTable = map[string]types.PersonaID{
	"/dev":      types.PersonaDeveloper,
	"/arch":     types.PersonaArchitect,
	"/security": types.PersonaSecurityAnalyst,
	"/test":     types.PersonaTester,
	"/docs":     types.PersonaTechnicalWriter,
	"/perf":     types.PersonaPerformanceExpert,
	"/review":   types.PersonaReviewer,
}

// contextToPersona is the fixed table used for step 3 of the selection
// order: a context type with no explicit or slash override falls back to
// whichever persona is conventionally associated with it.
var contextToPersona = map[types.ContextType]types.PersonaID{
	types.ContextCodeGeneration: types.PersonaDeveloper,
	types.ContextDebugging:      types.PersonaDeveloper,
	types.ContextArchitecture:   types.PersonaArchitect,
	types.ContextSecurity:       types.PersonaSecurityAnalyst,
	types.ContextPerformance:    types.PersonaPerformanceExpert,
	types.ContextTesting:        types.PersonaTester,
	types.ContextDocumentation:  types.PersonaTechnicalWriter,
	types.ContextReview:         types.PersonaReviewer,
	types.ContextRefactoring:    types.PersonaDeveloper,
	types.ContextGeneral:        types.PersonaDeveloper,
}

// registry holds the built-in personas, built once at package init.
var registry = map[types.PersonaID]types.Persona{
	types.PersonaDeveloper: {
		ID:             types.PersonaDeveloper,
		PromptPreamble: "You are an experienced software engineer. Write clear, correct, idiomatic code and explain tradeoffs briefly.",
		PreferredContextTypes: set(types.ContextCodeGeneration, types.ContextDebugging, types.ContextRefactoring),
	},
	types.PersonaArchitect: {
		ID:             types.PersonaArchitect,
		PromptPreamble: "You are a systems architect. Favor scalability, clear component boundaries, and explicit tradeoff analysis.",
		PreferredContextTypes: set(types.ContextArchitecture),
		PreferredComplexity:   complexitySet(types.ComplexityComplex, types.ComplexityVeryComplex, types.ComplexityExpert, types.ComplexityCritical),
	},
	types.PersonaReviewer: {
		ID:             types.PersonaReviewer,
		PromptPreamble: "You are a meticulous code reviewer. Identify correctness issues, style deviations, and missing tests before anything else.",
		PreferredContextTypes: set(types.ContextReview),
	},
	types.PersonaSecurityAnalyst: {
		ID:             types.PersonaSecurityAnalyst,
		PromptPreamble: "You are a security analyst. Identify vulnerabilities, trust boundary violations, and unsafe defaults first.",
		PreferredContextTypes: set(types.ContextSecurity),
	},
	types.PersonaPerformanceExpert: {
		ID:             types.PersonaPerformanceExpert,
		PromptPreamble: "You are a performance engineer. Reason about algorithmic complexity, allocation pressure, and measured bottlenecks before suggesting changes.",
		PreferredContextTypes: set(types.ContextPerformance),
	},
	types.PersonaTester: {
		ID:             types.PersonaTester,
		PromptPreamble: "You are a test engineer. Prioritize coverage of edge cases, failure modes, and regressions over happy-path assertions.",
		PreferredContextTypes: set(types.ContextTesting),
	},
	types.PersonaTechnicalWriter: {
		ID:             types.PersonaTechnicalWriter,
		PromptPreamble: "You are a technical writer. Produce precise, concise documentation aimed at the reader who will maintain this code.",
		PreferredContextTypes: set(types.ContextDocumentation),
	},
}

func set(contexts ...types.ContextType) map[types.ContextType]struct{} {
	m := make(map[types.ContextType]struct{}, len(contexts))
	for _, c := range contexts {
		m[c] = struct{}{}
	}
	return m
}

func complexitySet(levels ...types.ComplexityLevel) map[types.ComplexityLevel]struct{} {
	m := make(map[types.ComplexityLevel]struct{}, len(levels))
	for _, l := range levels {
		m[l] = struct{}{}
	}
	return m
}

// Get returns the built-in persona for id, falling back to the developer
// persona if id is unknown (e.g. a PersonaCustom placeholder with no table
// entry).
func Get(id types.PersonaID) types.Persona {
	if p, ok := registry[id]; ok {
		return p
	}
	return registry[types.PersonaDeveloper]
}

// SelectPersona implements §4.D: slash command, then explicit config, then
// context-derived, then the developer default.
func SelectPersona(req types.Request, contextType types.ContextType) Selection {
	if id, cmd, rest, ok := matchSlashCommand(req.Prompt); ok {
		return Selection{Persona: Get(id), EffectivePrompt: rest, SlashCommand: cmd}
	}

	if req.PersonaConfig != nil && req.PersonaConfig.Persona != "" {
		return Selection{Persona: Get(req.PersonaConfig.Persona), EffectivePrompt: req.Prompt}
	}

	if id, ok := contextToPersona[contextType]; ok {
		return Selection{Persona: Get(id), EffectivePrompt: req.Prompt}
	}

	return Selection{Persona: Get(types.PersonaDeveloper), EffectivePrompt: req.Prompt}
}

// matchSlashCommand checks whether prompt starts with a recognized slash
// command, returning the resolved persona, the matched command token, and
// the prompt with the command (and any following whitespace) stripped.
func matchSlashCommand(prompt string) (id types.PersonaID, command string, rest string, ok bool) {
	trimmed := strings.TrimLeft(prompt, " \t")
	if !strings.HasPrefix(trimmed, "/") {
		return "", "", prompt, false
	}
	fields := strings.SplitN(trimmed, " ", 2)
	cmd := fields[0]
	personaID, known := slashCommandTable[strings.ToLower(cmd)]
	if !known {
		return "", "", prompt, false
	}
	remainder := ""
	if len(fields) > 1 {
		remainder = strings.TrimLeft(fields[1], " \t")
	}
	return personaID, cmd, remainder, true
}
