// Package mission defines the Mission domain entity: an approved
// proposal realized as an executable plan composed of steps.
package mission

import "time"

// Status is the lifecycle state of a mission.
type Status string

const (
	StatusPlanned   Status = "PLANNED"
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

// Protocol names how a mission's steps are scheduled. Sequential is the
// default and is what the default 4-step plan uses. Protocol and
// MaxParallel are stored with the mission; step selection does not read
// them, so every mission's steps are selected by order_index, then
// created_at.
type Protocol string

const (
	ProtocolSequential Protocol = "sequential"
	ProtocolParallel   Protocol = "parallel"
)

// Mission is an approved proposal, realized as an executable plan.
// Exactly one Mission exists per approved Proposal (I1).
type Mission struct {
	ID              string     `json:"id"`
	ProposalID      string     `json:"proposal_id"`
	ProjectID       string     `json:"project_id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Status          Status     `json:"status"`
	Protocol        Protocol   `json:"protocol"`
	MaxParallel     int        `json:"max_parallel,omitempty"`
	AssignedAgentID string     `json:"assigned_agent_id,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	Version         int        `json:"version"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// IsActive reports whether the mission is still in its working state.
func (m *Mission) IsActive() bool {
	return m.Status == StatusActive
}
