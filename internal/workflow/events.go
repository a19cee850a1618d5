// Package workflow is a small state-machine engine. A Definition names its
// steps and the transitions between them; the Engine resolves each step's
// StepHandler from a Registry, runs it and follows the transition selected
// by the event the handler returns.
package workflow

import (
	"context"
	"time"
)

// Transition events returned by StepHandler.Execute.
const (
	EventSuccess = "success"
	EventFailure = "failure"
)

// Terminal pseudo-steps. The "__" prefix keeps them apart from step names.
const (
	StepDone   = "__done__"
	StepFailed = "__failed__"
)

// Lifecycle event types carried by Event.Type.
const (
	WEWorkflowStarted   = "workflow_started"
	WEWorkflowCompleted = "workflow_completed"
	WEWorkflowFailed    = "workflow_failed"
	WEStepStarted       = "step_started"
	WEStepCompleted     = "step_completed"
	WEStepFailed        = "step_failed"
	WEStepSkipped       = "step_skipped"
)

// StepHandler implements one named step.
type StepHandler interface {
	// Execute runs the step and returns a transition event. It must respect
	// context cancellation.
	Execute(ctx context.Context, state *State) (string, error)

	// DryRun describes what Execute would do without side effects.
	DryRun(state *State) string

	// Name must match the step name in the Definition.
	Name() string
}

// Event is a lifecycle notification emitted by the Engine.
type Event struct {
	Type       string    `json:"type"`
	WorkflowID string    `json:"workflow_id"`
	Step       string    `json:"step"`
	Event      string    `json:"event,omitempty"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
	Error      string    `json:"error,omitempty"`
}

// Definition describes a workflow graph.
type Definition struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Steps       []StepDefinition `json:"steps"`
	InitialStep string           `json:"initial_step"`
}

// StepDefinition maps a step's transition events to the next step names,
// e.g. {"success": "open_pr", "failure": "__failed__"}.
type StepDefinition struct {
	Name        string            `json:"name"`
	Transitions map[string]string `json:"transitions"`
}

// Linear returns a Definition that runs steps in order. Every step moves to
// the next one on success and to StepFailed on failure; the last step moves
// to StepDone.
func Linear(name, description string, steps ...string) *Definition {
	def := &Definition{Name: name, Description: description}
	for i, s := range steps {
		next := StepDone
		if i+1 < len(steps) {
			next = steps[i+1]
		}
		def.Steps = append(def.Steps, StepDefinition{
			Name: s,
			Transitions: map[string]string{
				EventSuccess: next,
				EventFailure: StepFailed,
			},
		})
	}
	if len(steps) > 0 {
		def.InitialStep = steps[0]
	}
	return def
}
