// Package projectcontext defines the ProjectContext entity: named
// snippets of project knowledge used to enrich worker prompts.
package projectcontext

import "time"

// ProjectContext is a single piece of project knowledge, unique by
// (project_id, category, key). An upsert on an existing key replaces
// content and the source references; it is not part of the critical
// path (a missing or stale entry never blocks step execution).
type ProjectContext struct {
	ID            string    `json:"id"`
	ProjectID     string    `json:"project_id"`
	Category      string    `json:"category"`
	Key           string    `json:"key"`
	Content       string    `json:"content"`
	SourceAgentID string    `json:"source_agent_id,omitempty"`
	SourceStepID  string    `json:"source_step_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// UpsertRequest is the input to Store.UpsertProjectContext.
type UpsertRequest struct {
	ProjectID     string
	Category      string
	Key           string
	Content       string
	SourceAgentID string
	SourceStepID  string
}
