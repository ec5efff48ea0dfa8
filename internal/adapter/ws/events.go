package ws

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Event type constants mirror internal/domain/event.Type, duplicated here
// as string literals so a frontend can switch on Message.Type without
// importing the domain package.
const (
	EventProposalCreated  = "proposal.created"
	EventProposalApproved = "proposal.approved"
	EventProposalRejected = "proposal.rejected"
	EventProposalExpired  = "proposal.expired"
	EventMissionCreated   = "mission.created"
	EventMissionCompleted = "mission.completed"
	EventMissionEscalated = "mission.escalated"
	EventStepCompleted    = "step.completed"
	EventStepFailed       = "step.failed"
	EventTriggerFired     = "trigger.fired"
)

// ProposalEvent is broadcast when a proposal is created, approved,
// rejected, or expires.
type ProposalEvent struct {
	ProposalID string `json:"proposal_id"`
	ProjectID  string `json:"project_id"`
	McTaskID   string `json:"mc_task_id,omitempty"`
}

// MissionEvent is broadcast when a mission is created, completes, or is
// escalated.
type MissionEvent struct {
	MissionID  string `json:"mission_id"`
	ProjectID  string `json:"project_id"`
	ProposalID string `json:"proposal_id,omitempty"`
}

// StepEvent is broadcast when a step completes or fails.
type StepEvent struct {
	StepID    string `json:"step_id"`
	MissionID string `json:"mission_id"`
	ProjectID string `json:"project_id"`
	AgentID   string `json:"agent_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// TriggerFiredEvent is broadcast when a trigger's condition is met and
// its action executes.
type TriggerFiredEvent struct {
	TriggerID string `json:"trigger_id"`
	ProjectID string `json:"project_id"`
	Action    string `json:"action"`
}

// BroadcastEvent marshals a typed event and broadcasts it to every
// connection, scoped by project when payload carries a ProjectID. It
// satisfies internal/port/broadcast.Broadcaster.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	msg := Message{Type: eventType, Payload: json.RawMessage(data)}
	if projectID := projectIDOf(payload); projectID != "" {
		h.BroadcastToProject(ctx, projectID, msg)
		return
	}
	h.Broadcast(ctx, msg)
}

// projectIDOf extracts a ProjectID field from the common event payload
// shapes so BroadcastEvent can route without a type switch per caller.
func projectIDOf(payload any) string {
	switch p := payload.(type) {
	case *ProposalEvent:
		return p.ProjectID
	case ProposalEvent:
		return p.ProjectID
	case *MissionEvent:
		return p.ProjectID
	case MissionEvent:
		return p.ProjectID
	case *StepEvent:
		return p.ProjectID
	case StepEvent:
		return p.ProjectID
	case *TriggerFiredEvent:
		return p.ProjectID
	case TriggerFiredEvent:
		return p.ProjectID
	default:
		return ""
	}
}
