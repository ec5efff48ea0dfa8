package service

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/forgewright/orchestrator/internal/domain"
	"github.com/forgewright/orchestrator/internal/domain/agent"
	"github.com/forgewright/orchestrator/internal/domain/event"
	"github.com/forgewright/orchestrator/internal/domain/mission"
	"github.com/forgewright/orchestrator/internal/domain/project"
	"github.com/forgewright/orchestrator/internal/domain/projectcontext"
	"github.com/forgewright/orchestrator/internal/domain/proposal"
	"github.com/forgewright/orchestrator/internal/domain/step"
	"github.com/forgewright/orchestrator/internal/domain/trigger"
)

// fakeStore is an in-memory database.Store for exercising the service
// layer without a live Postgres instance. It is deliberately minimal:
// enough CRUD semantics to drive ApprovalEngine/TriggerEvaluator/
// WorkerEngine/OrchestratorService, not a faithful query planner.
type fakeStore struct {
	projects  map[string]*project.Project
	agents    map[string]*agent.Agent
	proposals map[string]*proposal.Proposal
	missions  map[string]*mission.Mission
	steps     map[string]*step.Step
	triggers  map[string]*trigger.Trigger
	pctx      []projectcontext.ProjectContext
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		projects:  map[string]*project.Project{},
		agents:    map[string]*agent.Agent{},
		proposals: map[string]*proposal.Proposal{},
		missions:  map[string]*mission.Mission{},
		steps:     map[string]*step.Step{},
		triggers:  map[string]*trigger.Trigger{},
	}
}

// Projects

func (f *fakeStore) ListProjects(ctx context.Context) ([]project.Project, error) {
	out := make([]project.Project, 0, len(f.projects))
	for _, p := range f.projects {
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakeStore) ListActiveProjects(ctx context.Context) ([]project.Project, error) {
	out := make([]project.Project, 0)
	for _, p := range f.projects {
		if p.IsActive() {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeStore) GetProject(ctx context.Context, id string) (*project.Project, error) {
	if p, ok := f.projects[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeStore) GetProjectBySlug(ctx context.Context, slug string) (*project.Project, error) {
	for _, p := range f.projects {
		if p.Slug == slug {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeStore) CreateProject(ctx context.Context, req project.CreateRequest) (*project.Project, error) {
	p := &project.Project{
		ID: idOf("project", len(f.projects)), Name: req.Name, Slug: req.Slug,
		Description: req.Description, RepoPath: req.RepoPath, Status: project.StatusActive,
		Config: req.Config, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	f.projects[p.ID] = p
	cp := *p
	return &cp, nil
}

func (f *fakeStore) UpdateProject(ctx context.Context, p *project.Project) error {
	if _, ok := f.projects[p.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *p
	f.projects[p.ID] = &cp
	return nil
}

func (f *fakeStore) DeleteProject(ctx context.Context, id string) error {
	delete(f.projects, id)
	return nil
}

// Agents

func (f *fakeStore) ListAgents(ctx context.Context, projectID string) ([]agent.Agent, error) {
	out := make([]agent.Agent, 0)
	for _, a := range f.agents {
		if a.ProjectID == projectID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeStore) GetAgent(ctx context.Context, id string) (*agent.Agent, error) {
	if a, ok := f.agents[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeStore) FirstActiveAgent(ctx context.Context, projectID string) (*agent.Agent, error) {
	var best *agent.Agent
	for _, a := range f.agents {
		if a.ProjectID != projectID || a.Status != agent.StatusActive {
			continue
		}
		if best == nil || a.CreatedAt.Before(best.CreatedAt) || (a.CreatedAt.Equal(best.CreatedAt) && a.ID < best.ID) {
			cp := *a
			best = &cp
		}
	}
	if best == nil {
		return nil, domain.ErrNotFound
	}
	return best, nil
}

func (f *fakeStore) CreateAgent(ctx context.Context, a *agent.Agent) error {
	if a.ID == "" {
		a.ID = idOf("agent", len(f.agents))
	}
	cp := *a
	f.agents[a.ID] = &cp
	return nil
}

func (f *fakeStore) UpdateAgent(ctx context.Context, a *agent.Agent) error {
	if _, ok := f.agents[a.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *a
	f.agents[a.ID] = &cp
	return nil
}

func (f *fakeStore) TouchAgentLastSeen(ctx context.Context, id string, at time.Time) error {
	if a, ok := f.agents[id]; ok {
		a.LastSeenAt = &at
	}
	return nil
}

func (f *fakeStore) DeleteAgent(ctx context.Context, id string) error {
	delete(f.agents, id)
	return nil
}

// Proposals

func (f *fakeStore) ListProposals(ctx context.Context, projectID string) ([]proposal.Proposal, error) {
	out := make([]proposal.Proposal, 0)
	for _, p := range f.proposals {
		if p.ProjectID == projectID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeStore) ListPendingProposals(ctx context.Context) ([]proposal.Proposal, error) {
	out := make([]proposal.Proposal, 0)
	for _, p := range f.proposals {
		if p.Status == proposal.StatusPending {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) ListApprovedProposalsWithoutMission(ctx context.Context) ([]proposal.Proposal, error) {
	out := make([]proposal.Proposal, 0)
	for _, p := range f.proposals {
		if p.Status != proposal.StatusApproved {
			continue
		}
		hasMission := false
		for _, m := range f.missions {
			if m.ProposalID == p.ID {
				hasMission = true
				break
			}
		}
		if !hasMission {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeStore) GetProposal(ctx context.Context, id string) (*proposal.Proposal, error) {
	if p, ok := f.proposals[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeStore) GetProposalByMcTaskID(ctx context.Context, mcTaskID string) (*proposal.Proposal, error) {
	for _, p := range f.proposals {
		if p.McTaskID == mcTaskID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeStore) CreateProposal(ctx context.Context, p *proposal.Proposal) error {
	if p.ID == "" {
		p.ID = idOf("proposal", len(f.proposals))
	}
	cp := *p
	f.proposals[p.ID] = &cp
	return nil
}

func (f *fakeStore) UpdateProposal(ctx context.Context, p *proposal.Proposal) error {
	if _, ok := f.proposals[p.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *p
	f.proposals[p.ID] = &cp
	return nil
}

func (f *fakeStore) ExpireStaleProposals(ctx context.Context, olderThan time.Time) (int, error) {
	count := 0
	for _, p := range f.proposals {
		if p.Status == proposal.StatusPending && p.CreatedAt.Before(olderThan) {
			p.Status = proposal.StatusExpired
			count++
		}
	}
	return count, nil
}

// Missions

func (f *fakeStore) ListMissions(ctx context.Context, projectID string) ([]mission.Mission, error) {
	out := make([]mission.Mission, 0)
	for _, m := range f.missions {
		if m.ProjectID == projectID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeStore) ListPlannedMissionsWithoutSteps(ctx context.Context) ([]mission.Mission, error) {
	out := make([]mission.Mission, 0)
	for _, m := range f.missions {
		if m.Status != mission.StatusPlanned {
			continue
		}
		hasSteps := false
		for _, s := range f.steps {
			if s.MissionID == m.ID {
				hasSteps = true
				break
			}
		}
		if !hasSteps {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeStore) ListActiveMissions(ctx context.Context) ([]mission.Mission, error) {
	out := make([]mission.Mission, 0)
	for _, m := range f.missions {
		if m.Status == mission.StatusActive {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeStore) GetMission(ctx context.Context, id string) (*mission.Mission, error) {
	if m, ok := f.missions[id]; ok {
		cp := *m
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeStore) GetMissionByProposalID(ctx context.Context, proposalID string) (*mission.Mission, error) {
	for _, m := range f.missions {
		if m.ProposalID == proposalID {
			cp := *m
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeStore) CreateMission(ctx context.Context, m *mission.Mission) error {
	if m.ID == "" {
		m.ID = idOf("mission", len(f.missions))
	}
	cp := *m
	f.missions[m.ID] = &cp
	return nil
}

func (f *fakeStore) UpdateMission(ctx context.Context, m *mission.Mission) error {
	if _, ok := f.missions[m.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *m
	f.missions[m.ID] = &cp
	return nil
}

// Steps

func (f *fakeStore) ListSteps(ctx context.Context, missionID string) ([]step.Step, error) {
	out := make([]step.Step, 0)
	for _, s := range f.steps {
		if s.MissionID == missionID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out, nil
}

func (f *fakeStore) GetStep(ctx context.Context, id string) (*step.Step, error) {
	if s, ok := f.steps[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeStore) CreateSteps(ctx context.Context, steps []step.Step) error {
	for i := range steps {
		if steps[i].ID == "" {
			steps[i].ID = idOf("step", len(f.steps))
		}
		cp := steps[i]
		f.steps[cp.ID] = &cp
	}
	return nil
}

func (f *fakeStore) CreateStep(ctx context.Context, s *step.Step) error {
	if s.ID == "" {
		s.ID = idOf("step", len(f.steps))
	}
	cp := *s
	f.steps[s.ID] = &cp
	return nil
}

func (f *fakeStore) UpdateStep(ctx context.Context, s *step.Step) error {
	if _, ok := f.steps[s.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *s
	f.steps[s.ID] = &cp
	return nil
}

func (f *fakeStore) SelectableSteps(ctx context.Context, projectID, agentID string) ([]step.Step, error) {
	out := make([]step.Step, 0)
	for _, s := range f.steps {
		m, ok := f.missions[s.MissionID]
		if !ok || m.ProjectID != projectID {
			continue
		}
		if s.Status != step.StatusPending && s.Status != step.StatusClaimed {
			continue
		}
		if s.Status == step.StatusClaimed && s.ClaimedByAgentID != agentID {
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OrderIndex != out[j].OrderIndex {
			return out[i].OrderIndex < out[j].OrderIndex
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Triggers

func (f *fakeStore) ListEnabledTriggers(ctx context.Context) ([]trigger.Trigger, error) {
	out := make([]trigger.Trigger, 0)
	for _, t := range f.triggers {
		if t.Enabled {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeStore) GetTrigger(ctx context.Context, id string) (*trigger.Trigger, error) {
	if t, ok := f.triggers[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeStore) CreateTrigger(ctx context.Context, t *trigger.Trigger) error {
	if t.ID == "" {
		t.ID = idOf("trigger", len(f.triggers))
	}
	cp := *t
	f.triggers[t.ID] = &cp
	return nil
}

func (f *fakeStore) UpdateTrigger(ctx context.Context, t *trigger.Trigger) error {
	if _, ok := f.triggers[t.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *t
	f.triggers[t.ID] = &cp
	return nil
}

func (f *fakeStore) DeleteTrigger(ctx context.Context, id string) error {
	delete(f.triggers, id)
	return nil
}

// Project context

func (f *fakeStore) UpsertProjectContext(ctx context.Context, req projectcontext.UpsertRequest) (*projectcontext.ProjectContext, error) {
	pc := projectcontext.ProjectContext{
		ID: idOf("pctx", len(f.pctx)), ProjectID: req.ProjectID, Category: req.Category,
		Key: req.Key, Content: req.Content, SourceAgentID: req.SourceAgentID,
		SourceStepID: req.SourceStepID, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	f.pctx = append(f.pctx, pc)
	return &pc, nil
}

func (f *fakeStore) RecentProjectContext(ctx context.Context, projectID string, limit int) ([]projectcontext.ProjectContext, error) {
	out := make([]projectcontext.ProjectContext, 0)
	for _, pc := range f.pctx {
		if pc.ProjectID == projectID {
			out = append(out, pc)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// fakeEventStore is an in-memory eventstore.Store.
type fakeEventStore struct {
	events []event.Event
}

func (f *fakeEventStore) Append(ctx context.Context, e *event.Event) error {
	if e.ID == "" {
		e.ID = idOf("event", len(f.events))
	}
	f.events = append(f.events, *e)
	return nil
}

func (f *fakeEventStore) Since(ctx context.Context, since time.Time) ([]event.Event, error) {
	out := make([]event.Event, 0)
	for _, e := range f.events {
		if !e.CreatedAt.Before(since) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeEventStore) LoadByProject(ctx context.Context, projectID string, limit int) ([]event.Event, error) {
	out := make([]event.Event, 0)
	for i := len(f.events) - 1; i >= 0 && len(out) < limit; i-- {
		if f.events[i].ProjectID == projectID {
			out = append(out, f.events[i])
		}
	}
	return out, nil
}

func (f *fakeEventStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	kept := f.events[:0]
	deleted := 0
	for _, e := range f.events {
		if e.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	f.events = kept
	return deleted, nil
}

var idCounters = map[string]int{}

// idOf generates a short, deterministic, human-readable test ID. Tests
// never run concurrently against the same fakeStore, so no locking.
func idOf(prefix string, _ int) string {
	idCounters[prefix]++
	return prefix + "-" + strconv.Itoa(idCounters[prefix])
}
