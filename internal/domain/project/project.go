// Package project defines the Project domain entity: the top-level
// scoping unit that agents, proposals, missions, and steps belong to.
package project

import "time"

// Status is the lifecycle state of a Project.
type Status string

const (
	StatusActive        Status = "ACTIVE"
	StatusPaused         Status = "PAUSED"
	StatusDecommissioned Status = "DECOMMISSIONED"
)

// Project is a repository under orchestration. Slug is the stable
// external handle used by board mappings and on-disk config lookups.
type Project struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Slug        string         `json:"slug"`
	Description string         `json:"description"`
	RepoPath    string         `json:"repo_path,omitempty"`
	Status      Status         `json:"status"`
	Config      map[string]any `json:"config"`
	Version     int            `json:"version"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// CreateRequest holds the fields needed to create a new project.
type CreateRequest struct {
	Name        string         `json:"name"`
	Slug        string         `json:"slug"`
	Description string         `json:"description"`
	RepoPath    string         `json:"repo_path,omitempty"`
	Config      map[string]any `json:"config"`
}

// IsActive reports whether inbound sync and worker dispatch should
// consider this project at all. Decommissioned projects are skipped.
func (p *Project) IsActive() bool {
	return p.Status == StatusActive
}
