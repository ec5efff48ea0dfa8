// Package proposal defines the Proposal domain entity: a human- or
// agent-originated intent to perform work on a project, gated on
// approval before it becomes a Mission.
package proposal

import "time"

// Priority is the urgency class of a proposal.
type Priority string

const (
	PriorityCritical Priority = "CRITICAL"
	PriorityHigh     Priority = "HIGH"
	PriorityMedium   Priority = "MEDIUM"
	PriorityLow      Priority = "LOW"
)

// Status is the lifecycle state of a proposal.
type Status string

const (
	StatusDraft    Status = "DRAFT"
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
	StatusExpired  Status = "EXPIRED"
)

// Proposal is an intent to do work, gated on approval (I1: a Mission
// always points back to a proposal that was approved at some point).
type Proposal struct {
	ID          string     `json:"id"`
	AgentID     string     `json:"agent_id"`
	ProjectID   string     `json:"project_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Rationale   string     `json:"rationale"`
	Priority    Priority   `json:"priority"`
	Status      Status     `json:"status"`
	AutoApprove bool       `json:"auto_approve"`
	ReviewedBy  string     `json:"reviewed_by,omitempty"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`
	// McTaskID is the remote board task ID this proposal was created
	// from, if any. Globally unique when non-null (I5): the dedup key
	// that makes inbound sync at-most-once per remote task.
	McTaskID  string    `json:"mc_task_id,omitempty"`
	McBoardID string    `json:"mc_board_id,omitempty"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsTerminal reports whether the proposal has reached a state ApprovalEngine
// will no longer act on.
func (p *Proposal) IsTerminal() bool {
	switch p.Status {
	case StatusApproved, StatusRejected, StatusExpired:
		return true
	default:
		return false
	}
}

// PriorityFromRemote maps a board's lowercase priority string onto the
// domain's Priority enum, defaulting to MEDIUM for anything unrecognized.
func PriorityFromRemote(s string) Priority {
	switch s {
	case "critical":
		return PriorityCritical
	case "high":
		return PriorityHigh
	case "low":
		return PriorityLow
	default:
		return PriorityMedium
	}
}
