// Package database defines the persistence port: transactional CRUD
// over the entity model, plus the SELECT helpers the tick engine and
// worker engine need. It deliberately has no store-specific types in
// its signatures (no *sql.Rows, no pgx types) so any backing store can
// implement it.
package database

import (
	"context"
	"time"

	"github.com/forgewright/orchestrator/internal/domain/agent"
	"github.com/forgewright/orchestrator/internal/domain/mission"
	"github.com/forgewright/orchestrator/internal/domain/project"
	"github.com/forgewright/orchestrator/internal/domain/projectcontext"
	"github.com/forgewright/orchestrator/internal/domain/proposal"
	"github.com/forgewright/orchestrator/internal/domain/step"
	"github.com/forgewright/orchestrator/internal/domain/trigger"
)

// Store is the persistence port every service depends on.
type Store interface {
	// Projects
	ListProjects(ctx context.Context) ([]project.Project, error)
	ListActiveProjects(ctx context.Context) ([]project.Project, error)
	GetProject(ctx context.Context, id string) (*project.Project, error)
	GetProjectBySlug(ctx context.Context, slug string) (*project.Project, error)
	CreateProject(ctx context.Context, req project.CreateRequest) (*project.Project, error)
	UpdateProject(ctx context.Context, p *project.Project) error
	DeleteProject(ctx context.Context, id string) error

	// Agents
	ListAgents(ctx context.Context, projectID string) ([]agent.Agent, error)
	GetAgent(ctx context.Context, id string) (*agent.Agent, error)
	// FirstActiveAgent returns the oldest ACTIVE agent in the project
	// (ordered by created_at ascending, ties by id), the deterministic
	// stand-in for "first active agent" used by inbound sync.
	FirstActiveAgent(ctx context.Context, projectID string) (*agent.Agent, error)
	CreateAgent(ctx context.Context, a *agent.Agent) error
	UpdateAgent(ctx context.Context, a *agent.Agent) error
	TouchAgentLastSeen(ctx context.Context, id string, at time.Time) error
	DeleteAgent(ctx context.Context, id string) error

	// Proposals
	ListProposals(ctx context.Context, projectID string) ([]proposal.Proposal, error)
	ListPendingProposals(ctx context.Context) ([]proposal.Proposal, error)
	ListApprovedProposalsWithoutMission(ctx context.Context) ([]proposal.Proposal, error)
	GetProposal(ctx context.Context, id string) (*proposal.Proposal, error)
	GetProposalByMcTaskID(ctx context.Context, mcTaskID string) (*proposal.Proposal, error)
	CreateProposal(ctx context.Context, p *proposal.Proposal) error
	UpdateProposal(ctx context.Context, p *proposal.Proposal) error
	ExpireStaleProposals(ctx context.Context, olderThan time.Time) (int, error)

	// Missions
	ListMissions(ctx context.Context, projectID string) ([]mission.Mission, error)
	ListPlannedMissionsWithoutSteps(ctx context.Context) ([]mission.Mission, error)
	ListActiveMissions(ctx context.Context) ([]mission.Mission, error)
	GetMission(ctx context.Context, id string) (*mission.Mission, error)
	GetMissionByProposalID(ctx context.Context, proposalID string) (*mission.Mission, error)
	CreateMission(ctx context.Context, m *mission.Mission) error
	UpdateMission(ctx context.Context, m *mission.Mission) error

	// Steps
	ListSteps(ctx context.Context, missionID string) ([]step.Step, error)
	GetStep(ctx context.Context, id string) (*step.Step, error)
	CreateSteps(ctx context.Context, steps []step.Step) error
	CreateStep(ctx context.Context, s *step.Step) error
	UpdateStep(ctx context.Context, s *step.Step) error
	// SelectableSteps returns steps for projectID that are PENDING or
	// CLAIMED and unclaimed or claimed by agentID, ordered by
	// order_index then created_at.
	SelectableSteps(ctx context.Context, projectID, agentID string) ([]step.Step, error)

	// Triggers
	ListEnabledTriggers(ctx context.Context) ([]trigger.Trigger, error)
	GetTrigger(ctx context.Context, id string) (*trigger.Trigger, error)
	CreateTrigger(ctx context.Context, t *trigger.Trigger) error
	UpdateTrigger(ctx context.Context, t *trigger.Trigger) error
	DeleteTrigger(ctx context.Context, id string) error

	// Project context
	UpsertProjectContext(ctx context.Context, req projectcontext.UpsertRequest) (*projectcontext.ProjectContext, error)
	RecentProjectContext(ctx context.Context, projectID string, limit int) ([]projectcontext.ProjectContext, error)
}
