package agents

import (
	"context"
	"fmt"

	"englishtutor/internal/llm"
)

// Session type keys. Each maps to exactly one persona.
const (
	TypeOnboarding   = "onboarding"
	TypeEvaluation   = "evaluation"
	TypeTutoring     = "tutoring"
	TypePlanning     = "planning"
	TypePlacement    = "placement"
	TypeProgressTest = "progress_test"
)

var personaNames = map[string]string{
	TypeOnboarding:   "Counselor",
	TypeEvaluation:   "Evaluator",
	TypeTutoring:     "Tutor",
	TypePlanning:     "Planner",
	TypePlacement:    "Placement",
	TypeProgressTest: "Progress",
}

// PersonaKeys lists every persona key in a stable order.
var PersonaKeys = []string{
	TypeOnboarding,
	TypeEvaluation,
	TypeTutoring,
	TypePlanning,
	TypePlacement,
	TypeProgressTest,
}

// InstructionSource resolves the active instruction text for a persona key.
type InstructionSource interface {
	ActiveOrDefault(ctx context.Context, agentKey string) (string, error)
}

// Orchestrator holds one agent per persona key. It carries no other state
// and is cheap to reconstruct per request, which is how instruction edits
// made in the admin console take effect.
type Orchestrator struct {
	agents map[string]*Agent
}

func NewOrchestrator(ctx context.Context, completer llm.Completer, instructions InstructionSource) (*Orchestrator, error) {
	table := make(map[string]*Agent, len(PersonaKeys))
	for _, key := range PersonaKeys {
		instruction, err := instructions.ActiveOrDefault(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("failed to load instruction for persona %q: %w", key, err)
		}
		table[key] = New(personaNames[key], key, instruction, completer)
	}
	return &Orchestrator{agents: table}, nil
}

// AgentFor resolves the persona for a session type. Unknown or legacy types
// fall back to the onboarding persona.
func (o *Orchestrator) AgentFor(sessionType string) *Agent {
	if agent, ok := o.agents[sessionType]; ok {
		return agent
	}
	return o.agents[TypeOnboarding]
}

// KnownType reports whether a session type maps to a persona.
func KnownType(sessionType string) bool {
	_, ok := personaNames[sessionType]
	return ok
}
