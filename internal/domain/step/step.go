// Package step defines the Step domain entity: the atomic, typed unit
// of work dispatched to a backend.
package step

import (
	"time"

	"github.com/forgewright/orchestrator/internal/idgen"
)

// Type is the kind of work a step performs, used to select the
// required agent capability (see service.CapabilityFor).
type Type string

const (
	TypeCode     Type = "CODE"
	TypeTest     Type = "TEST"
	TypeReview   Type = "REVIEW"
	TypeDeploy   Type = "DEPLOY"
	TypeResearch Type = "RESEARCH"
	TypeSecurity Type = "SECURITY"
	TypeOther    Type = "OTHER"
)

// Status follows a strict forward DAG: PENDING -> CLAIMED -> RUNNING ->
// {COMPLETED | FAILED | SKIPPED}. Reverse transitions are forbidden (I2).
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusClaimed   Status = "CLAIMED"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusSkipped   Status = "SKIPPED"
)

// Step is the atomic unit of work within a mission, ordered by
// OrderIndex then CreatedAt.
type Step struct {
	ID               string     `json:"id"`
	MissionID        string     `json:"mission_id"`
	OrderIndex       int        `json:"order_index"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	StepType         Type       `json:"step_type"`
	Status           Status     `json:"status"`
	ClaimedByAgentID string     `json:"claimed_by_agent_id,omitempty"`
	// DependsOn lists the step IDs this step follows. The default 4-step
	// plan sets linear DependsOn (step N depends on step N-1). Step
	// selection does not read it: steps are selected by order_index,
	// then created_at.
	DependsOn   []string   `json:"depends_on,omitempty"`
	Output      string     `json:"output,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Version     int        `json:"version"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// IsTerminal reports whether the step has left the working states.
func (s *Step) IsTerminal() bool {
	switch s.Status {
	case StatusCompleted, StatusFailed, StatusSkipped:
		return true
	default:
		return false
	}
}

// IsClaimableBy reports whether agentID may claim this step: it is
// PENDING/CLAIMED, and either unclaimed or already claimed by agentID.
func (s *Step) IsClaimableBy(agentID string) bool {
	if s.Status != StatusPending && s.Status != StatusClaimed {
		return false
	}
	return s.ClaimedByAgentID == "" || s.ClaimedByAgentID == agentID
}

// DefaultPlan builds the default 4-step plan for a mission: RESEARCH,
// CODE, TEST, REVIEW at order_index 0..3, titles/descriptions derived
// from the mission title.
func DefaultPlan(missionID, missionTitle string) []Step {
	steps := []struct {
		t     Type
		title string
	}{
		{TypeResearch, "Research"},
		{TypeCode, "Implement"},
		{TypeTest, "Test"},
		{TypeReview, "Review"},
	}
	out := make([]Step, 0, len(steps))
	var prevID string
	for i, s := range steps {
		st := Step{
			ID:          idgen.New(),
			MissionID:   missionID,
			OrderIndex:  i,
			Title:       s.title + ": " + missionTitle,
			Description: s.title + " phase for \"" + missionTitle + "\"",
			StepType:    s.t,
			Status:      StatusPending,
		}
		if prevID != "" {
			st.DependsOn = []string{prevID}
		}
		out = append(out, st)
		prevID = st.ID
	}
	return out
}
