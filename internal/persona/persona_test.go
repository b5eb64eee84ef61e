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

package persona

import (
	"testing"

	"axonflow/corerouter/internal/types"
)

func TestSelectPersona_SlashCommandWins(t *testing.T) {
	req := types.Request{
		Prompt:   "/arch Design a scalable microservices architecture for chat",
		TaskType: types.TaskCustom,
		PersonaConfig: &types.PersonaConfig{
			Persona: types.PersonaTester,
		},
	}
	sel := SelectPersona(req, types.ContextArchitecture)
	if sel.Persona.ID != types.PersonaArchitect {
		t.Fatalf("expected architect persona, got %s", sel.Persona.ID)
	}
	if sel.SlashCommand != "/arch" {
		t.Errorf("expected slash command /arch, got %q", sel.SlashCommand)
	}
	if sel.EffectivePrompt != "Design a scalable microservices architecture for chat" {
		t.Errorf("expected stripped prompt, got %q", sel.EffectivePrompt)
	}
}

func TestSelectPersona_ExplicitConfig(t *testing.T) {
	req := types.Request{
		Prompt: "write a function",
		PersonaConfig: &types.PersonaConfig{
			Persona: types.PersonaSecurityAnalyst,
		},
	}
	sel := SelectPersona(req, types.ContextCodeGeneration)
	if sel.Persona.ID != types.PersonaSecurityAnalyst {
		t.Fatalf("expected security_analyst persona, got %s", sel.Persona.ID)
	}
	if sel.SlashCommand != "" {
		t.Errorf("expected no slash command, got %q", sel.SlashCommand)
	}
}

func TestSelectPersona_ContextDerived(t *testing.T) {
	req := types.Request{Prompt: "why is this slow"}
	sel := SelectPersona(req, types.ContextPerformance)
	if sel.Persona.ID != types.PersonaPerformanceExpert {
		t.Fatalf("expected performance_expert persona, got %s", sel.Persona.ID)
	}
}

func TestSelectPersona_DefaultDeveloper(t *testing.T) {
	req := types.Request{Prompt: "hello"}
	sel := SelectPersona(req, "")
	if sel.Persona.ID != types.PersonaDeveloper {
		t.Fatalf("expected developer default, got %s", sel.Persona.ID)
	}
}

func TestSelectPersona_UnknownSlashIgnored(t *testing.T) {
	req := types.Request{Prompt: "/nonexistent do something"}
	sel := SelectPersona(req, types.ContextCodeGeneration)
	if sel.Persona.ID != types.PersonaDeveloper {
		t.Fatalf("expected fall-through to context-derived developer, got %s", sel.Persona.ID)
	}
	if sel.SlashCommand != "" {
		t.Errorf("expected no slash command recognized, got %q", sel.SlashCommand)
	}
	if sel.EffectivePrompt != req.Prompt {
		t.Errorf("expected prompt unchanged when no command matches")
	}
}

func TestGet_UnknownFallsBackToDeveloper(t *testing.T) {
	p := Get(types.PersonaCustom)
	if p.ID != types.PersonaDeveloper {
		t.Fatalf("expected developer fallback for unregistered persona id, got %s", p.ID)
	}
}
