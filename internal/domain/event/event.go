// Package event defines the append-only Event entity: the audit log
// and trigger substrate for the orchestration pipeline.
package event

import "time"

// Type identifies the kind of orchestration event.
type Type string

const (
	TypeProposalCreated   Type = "proposal.created"
	TypeProposalApproved  Type = "proposal.approved"
	TypeProposalRejected  Type = "proposal.rejected"
	TypeProposalExpired   Type = "proposal.expired"
	TypeMissionCreated    Type = "mission.created"
	TypeMissionCompleted  Type = "mission.completed"
	TypeMissionEscalated  Type = "mission.escalated"
	TypeStepCompleted     Type = "step.completed"
	TypeStepFailed        Type = "step.failed"
	TypeTriggerFired      Type = "trigger.fired"
)

// Event is a single immutable record in a project's audit trail. It is
// never mutated after creation; retention may delete old rows but an
// individual row is otherwise append-only (I6).
type Event struct {
	ID            string         `json:"id"`
	ProjectID     string         `json:"project_id"`
	EventType     Type           `json:"event_type"`
	SourceAgentID string         `json:"source_agent_id,omitempty"`
	Payload       map[string]any `json:"payload"`
	CreatedAt     time.Time      `json:"created_at"`
}

// CreateRequest holds the fields needed to append a new event.
type CreateRequest struct {
	ProjectID     string
	EventType     Type
	SourceAgentID string
	Payload       map[string]any
}
