// Package agent defines the Agent domain entity: a persistent,
// role-bound worker scoped to exactly one project.
package agent

import "time"

// Status represents the current state of an agent.
type Status string

const (
	StatusActive Status = "ACTIVE"
	StatusPaused Status = "PAUSED"
)

// Config carries the agent's capability list and optional per-agent
// dispatcher overrides. Capabilities gate which step types the worker
// engine will select for this agent (see service.CapabilityFor).
type Config struct {
	Capabilities         []string `json:"capabilities"`
	AutoApproveProposals bool     `json:"auto_approve_proposals,omitempty"`
	DispatcherProvider   string   `json:"dispatcher_provider,omitempty"`
	DispatcherModel      string   `json:"dispatcher_model,omitempty"`
	DispatcherBaseURL    string   `json:"dispatcher_base_url,omitempty"`
	// PolicyProfile names the tool-permission profile this agent's steps
	// are evaluated against before dispatch. Empty skips evaluation.
	PolicyProfile string `json:"policy_profile,omitempty"`
}

// Pose holds presentational fields that do not affect orchestration;
// carried only so a dashboard can render agents moving around an office.
type Pose struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Facing string  `json:"facing,omitempty"`
}

// Agent is a persistent, role-bound worker bound to one project.
type Agent struct {
	ID         string    `json:"id"`
	ProjectID  string    `json:"project_id"`
	Name       string    `json:"name"`
	Role       string    `json:"role"`
	Status     Status    `json:"status"`
	Config     Config    `json:"config"`
	Pose       Pose      `json:"pose,omitempty"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
	Version    int       `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// HasCapability reports whether the agent's config lists the given
// capability, or carries the "general_work" wildcard capability.
func (a *Agent) HasCapability(capability string) bool {
	for _, c := range a.Config.Capabilities {
		if c == capability || c == "general_work" {
			return true
		}
	}
	return false
}

// IsActive reports whether the agent should be considered for work
// selection and inbound-sync origination.
func (a *Agent) IsActive() bool {
	return a.Status == StatusActive
}
