// Package trigger defines the Trigger domain entity: a declarative
// event-pattern-to-action rule scoped to a project.
package trigger

import (
	"time"

	"github.com/forgewright/orchestrator/internal/domain/step"
)

// ActionKind tags the variant of an Action. TriggerEvaluator decodes a
// trigger's stored action once into this tagged struct and switches on
// Kind thereafter; no further stringly-typed dispatch occurs.
type ActionKind string

const (
	ActionCreateStep                ActionKind = "create_step"
	ActionEvaluateMissionCompletion ActionKind = "evaluate_mission_completion"
)

// Action is the tagged-union payload of a trigger. Only the fields
// relevant to Kind are meaningful; the others are zero.
type Action struct {
	Kind ActionKind `json:"kind"`

	// CreateStep fields.
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	StepType    step.Type `json:"step_type,omitempty"`
	OrderIndex  int       `json:"order_index,omitempty"`
}

// EventPattern describes what an event must look like to match.
type EventPattern struct {
	EventType  string         `json:"event_type"`
	Conditions map[string]any `json:"conditions,omitempty"`
}

// Trigger is a declarative {event_pattern -> action} rule, scoped to a
// project, with a name unique within that project.
type Trigger struct {
	ID           string       `json:"id"`
	ProjectID    string       `json:"project_id"`
	Name         string       `json:"name"`
	EventPattern EventPattern `json:"event_pattern"`
	Action       Action       `json:"action"`
	Enabled      bool         `json:"enabled"`
	LastFiredAt  *time.Time   `json:"last_fired_at,omitempty"`
	Version      int          `json:"version"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}
