package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/forgewright/orchestrator/internal/domain/agent"
	"github.com/forgewright/orchestrator/internal/domain/mission"
	"github.com/forgewright/orchestrator/internal/domain/project"
	"github.com/forgewright/orchestrator/internal/domain/projectcontext"
	"github.com/forgewright/orchestrator/internal/domain/proposal"
	"github.com/forgewright/orchestrator/internal/domain/step"
	"github.com/forgewright/orchestrator/internal/domain/trigger"
	"github.com/forgewright/orchestrator/internal/idgen"
)

// Store implements database.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// --- Projects ---

const projectColumns = `id, name, slug, description, repo_path, status, config, version, created_at, updated_at`

func (s *Store) ListProjects(ctx context.Context) ([]project.Project, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()
	return scanProjects(rows)
}

func (s *Store) ListActiveProjects(ctx context.Context) ([]project.Project, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE status = $1 ORDER BY created_at DESC`,
		string(project.StatusActive))
	if err != nil {
		return nil, fmt.Errorf("list active projects: %w", err)
	}
	defer rows.Close()
	return scanProjects(rows)
}

func (s *Store) GetProject(ctx context.Context, id string) (*project.Project, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id)
	p, err := scanProject(row)
	if err != nil {
		return nil, notFoundWrap(err, "get project %s", id)
	}
	return &p, nil
}

func (s *Store) GetProjectBySlug(ctx context.Context, slug string) (*project.Project, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE slug = $1`, slug)
	p, err := scanProject(row)
	if err != nil {
		return nil, notFoundWrap(err, "get project by slug %s", slug)
	}
	return &p, nil
}

func (s *Store) CreateProject(ctx context.Context, req project.CreateRequest) (*project.Project, error) {
	configJSON, err := json.Marshal(req.Config)
	if err != nil {
		return nil, fmt.Errorf("marshal project config: %w", err)
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO projects (id, name, slug, description, repo_path, status, config)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+projectColumns,
		idgen.New(), req.Name, req.Slug, req.Description, req.RepoPath, string(project.StatusActive), configJSON)

	p, err := scanProject(row)
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	return &p, nil
}

func (s *Store) UpdateProject(ctx context.Context, p *project.Project) error {
	configJSON, err := json.Marshal(p.Config)
	if err != nil {
		return fmt.Errorf("marshal project config: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE projects SET name = $2, description = $3, repo_path = $4, status = $5, config = $6,
		        version = version + 1, updated_at = now()
		 WHERE id = $1 AND version = $7`,
		p.ID, p.Name, p.Description, p.RepoPath, string(p.Status), configJSON, p.Version)
	if err := execExpectOne(tag, err, "update project %s", p.ID); err != nil {
		return err
	}
	p.Version++
	return nil
}

func (s *Store) DeleteProject(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	return execExpectOne(tag, err, "delete project %s", id)
}

// --- Agents ---

const agentColumns = `id, project_id, name, role, status, config, pose, last_seen_at, version, created_at, updated_at`

func (s *Store) ListAgents(ctx context.Context, projectID string) ([]agent.Agent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE project_id = $1 ORDER BY created_at ASC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var agents []agent.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

func (s *Store) GetAgent(ctx context.Context, id string) (*agent.Agent, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+agentColumns+` FROM agents WHERE id = $1`, id)
	a, err := scanAgent(row)
	if err != nil {
		return nil, notFoundWrap(err, "get agent %s", id)
	}
	return &a, nil
}

func (s *Store) FirstActiveAgent(ctx context.Context, projectID string) (*agent.Agent, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE project_id = $1 AND status = $2
		 ORDER BY created_at ASC, id ASC LIMIT 1`, projectID, string(agent.StatusActive))
	a, err := scanAgent(row)
	if err != nil {
		return nil, notFoundWrap(err, "first active agent for project %s", projectID)
	}
	return &a, nil
}

func (s *Store) CreateAgent(ctx context.Context, a *agent.Agent) error {
	configJSON, err := json.Marshal(a.Config)
	if err != nil {
		return fmt.Errorf("marshal agent config: %w", err)
	}
	poseJSON, err := json.Marshal(a.Pose)
	if err != nil {
		return fmt.Errorf("marshal agent pose: %w", err)
	}
	if a.ID == "" {
		a.ID = idgen.New()
	}
	if a.Status == "" {
		a.Status = agent.StatusActive
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO agents (id, project_id, name, role, status, config, pose)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING version, created_at, updated_at`,
		a.ID, a.ProjectID, a.Name, a.Role, string(a.Status), configJSON, poseJSON)

	return row.Scan(&a.Version, &a.CreatedAt, &a.UpdatedAt)
}

func (s *Store) UpdateAgent(ctx context.Context, a *agent.Agent) error {
	configJSON, err := json.Marshal(a.Config)
	if err != nil {
		return fmt.Errorf("marshal agent config: %w", err)
	}
	poseJSON, err := json.Marshal(a.Pose)
	if err != nil {
		return fmt.Errorf("marshal agent pose: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE agents SET name = $2, role = $3, status = $4, config = $5, pose = $6,
		        version = version + 1, updated_at = now()
		 WHERE id = $1 AND version = $7`,
		a.ID, a.Name, a.Role, string(a.Status), configJSON, poseJSON, a.Version)
	if err := execExpectOne(tag, err, "update agent %s", a.ID); err != nil {
		return err
	}
	a.Version++
	return nil
}

func (s *Store) TouchAgentLastSeen(ctx context.Context, id string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `UPDATE agents SET last_seen_at = $2, updated_at = now() WHERE id = $1`, id, at)
	return execExpectOne(tag, err, "touch agent last seen %s", id)
}

func (s *Store) DeleteAgent(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM agents WHERE id = $1`, id)
	return execExpectOne(tag, err, "delete agent %s", id)
}

// --- Proposals ---

const proposalColumns = `id, agent_id, project_id, title, description, rationale, priority, status,
		auto_approve, reviewed_by, reviewed_at, mc_task_id, mc_board_id, version, created_at, updated_at`

func (s *Store) ListProposals(ctx context.Context, projectID string) ([]proposal.Proposal, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+proposalColumns+` FROM proposals WHERE project_id = $1 ORDER BY created_at DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}
	defer rows.Close()
	return scanProposals(rows)
}

func (s *Store) ListPendingProposals(ctx context.Context) ([]proposal.Proposal, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+proposalColumns+` FROM proposals WHERE status = $1 ORDER BY created_at ASC`,
		string(proposal.StatusPending))
	if err != nil {
		return nil, fmt.Errorf("list pending proposals: %w", err)
	}
	defer rows.Close()
	return scanProposals(rows)
}

func (s *Store) ListApprovedProposalsWithoutMission(ctx context.Context) ([]proposal.Proposal, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+proposalColumns+` FROM proposals p
		 WHERE p.status = $1 AND NOT EXISTS (SELECT 1 FROM missions m WHERE m.proposal_id = p.id)
		 ORDER BY p.created_at ASC`, string(proposal.StatusApproved))
	if err != nil {
		return nil, fmt.Errorf("list approved proposals without mission: %w", err)
	}
	defer rows.Close()
	return scanProposals(rows)
}

func (s *Store) GetProposal(ctx context.Context, id string) (*proposal.Proposal, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+proposalColumns+` FROM proposals WHERE id = $1`, id)
	p, err := scanProposal(row)
	if err != nil {
		return nil, notFoundWrap(err, "get proposal %s", id)
	}
	return &p, nil
}

func (s *Store) GetProposalByMcTaskID(ctx context.Context, mcTaskID string) (*proposal.Proposal, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+proposalColumns+` FROM proposals WHERE mc_task_id = $1`, mcTaskID)
	p, err := scanProposal(row)
	if err != nil {
		return nil, notFoundWrap(err, "get proposal by mc task id %s", mcTaskID)
	}
	return &p, nil
}

func (s *Store) CreateProposal(ctx context.Context, p *proposal.Proposal) error {
	if p.ID == "" {
		p.ID = idgen.New()
	}
	if p.Status == "" {
		p.Status = proposal.StatusDraft
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO proposals (id, agent_id, project_id, title, description, rationale, priority, status,
		        auto_approve, mc_task_id, mc_board_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING version, created_at, updated_at`,
		p.ID, p.AgentID, p.ProjectID, p.Title, p.Description, p.Rationale, string(p.Priority), string(p.Status),
		p.AutoApprove, nullIfEmpty(p.McTaskID), nullIfEmpty(p.McBoardID))

	return row.Scan(&p.Version, &p.CreatedAt, &p.UpdatedAt)
}

func (s *Store) UpdateProposal(ctx context.Context, p *proposal.Proposal) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE proposals SET title = $2, description = $3, rationale = $4, priority = $5, status = $6,
		        reviewed_by = $7, reviewed_at = $8, version = version + 1, updated_at = now()
		 WHERE id = $1 AND version = $9`,
		p.ID, p.Title, p.Description, p.Rationale, string(p.Priority), string(p.Status),
		nullIfEmpty(p.ReviewedBy), p.ReviewedAt, p.Version)
	if err := execExpectOne(tag, err, "update proposal %s", p.ID); err != nil {
		return err
	}
	p.Version++
	return nil
}

func (s *Store) ExpireStaleProposals(ctx context.Context, olderThan time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE proposals SET status = $1, version = version + 1, updated_at = now()
		 WHERE status = $2 AND created_at < $3`,
		string(proposal.StatusExpired), string(proposal.StatusPending), olderThan)
	if err != nil {
		return 0, fmt.Errorf("expire stale proposals: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// --- Missions ---

const missionColumns = `id, proposal_id, project_id, title, description, status, protocol, max_parallel,
		assigned_agent_id, completed_at, version, created_at, updated_at`

func (s *Store) ListMissions(ctx context.Context, projectID string) ([]mission.Mission, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+missionColumns+` FROM missions WHERE project_id = $1 ORDER BY created_at DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list missions: %w", err)
	}
	defer rows.Close()
	return scanMissions(rows)
}

func (s *Store) ListPlannedMissionsWithoutSteps(ctx context.Context) ([]mission.Mission, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+missionColumns+` FROM missions m
		 WHERE m.status = $1 AND NOT EXISTS (SELECT 1 FROM steps st WHERE st.mission_id = m.id)
		 ORDER BY m.created_at ASC`, string(mission.StatusPlanned))
	if err != nil {
		return nil, fmt.Errorf("list planned missions without steps: %w", err)
	}
	defer rows.Close()
	return scanMissions(rows)
}

func (s *Store) ListActiveMissions(ctx context.Context) ([]mission.Mission, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+missionColumns+` FROM missions WHERE status = $1 ORDER BY created_at ASC`,
		string(mission.StatusActive))
	if err != nil {
		return nil, fmt.Errorf("list active missions: %w", err)
	}
	defer rows.Close()
	return scanMissions(rows)
}

func (s *Store) GetMission(ctx context.Context, id string) (*mission.Mission, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+missionColumns+` FROM missions WHERE id = $1`, id)
	m, err := scanMission(row)
	if err != nil {
		return nil, notFoundWrap(err, "get mission %s", id)
	}
	return &m, nil
}

func (s *Store) GetMissionByProposalID(ctx context.Context, proposalID string) (*mission.Mission, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+missionColumns+` FROM missions WHERE proposal_id = $1`, proposalID)
	m, err := scanMission(row)
	if err != nil {
		return nil, notFoundWrap(err, "get mission by proposal %s", proposalID)
	}
	return &m, nil
}

func (s *Store) CreateMission(ctx context.Context, m *mission.Mission) error {
	if m.ID == "" {
		m.ID = idgen.New()
	}
	if m.Status == "" {
		m.Status = mission.StatusPlanned
	}
	if m.Protocol == "" {
		m.Protocol = mission.ProtocolSequential
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO missions (id, proposal_id, project_id, title, description, status, protocol, max_parallel,
		        assigned_agent_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING version, created_at, updated_at`,
		m.ID, m.ProposalID, m.ProjectID, m.Title, m.Description, string(m.Status), string(m.Protocol),
		m.MaxParallel, nullIfEmpty(m.AssignedAgentID))

	return row.Scan(&m.Version, &m.CreatedAt, &m.UpdatedAt)
}

func (s *Store) UpdateMission(ctx context.Context, m *mission.Mission) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE missions SET title = $2, description = $3, status = $4, protocol = $5, max_parallel = $6,
		        assigned_agent_id = $7, completed_at = $8, version = version + 1, updated_at = now()
		 WHERE id = $1 AND version = $9`,
		m.ID, m.Title, m.Description, string(m.Status), string(m.Protocol), m.MaxParallel,
		nullIfEmpty(m.AssignedAgentID), m.CompletedAt, m.Version)
	if err := execExpectOne(tag, err, "update mission %s", m.ID); err != nil {
		return err
	}
	m.Version++
	return nil
}

// --- Steps ---

const stepColumns = `id, mission_id, order_index, title, description, step_type, status,
		claimed_by_agent_id, depends_on, output, error, started_at, completed_at, version, created_at, updated_at`

func (s *Store) ListSteps(ctx context.Context, missionID string) ([]step.Step, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+stepColumns+` FROM steps WHERE mission_id = $1 ORDER BY order_index ASC, created_at ASC`,
		missionID)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()
	return scanSteps(rows)
}

func (s *Store) GetStep(ctx context.Context, id string) (*step.Step, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+stepColumns+` FROM steps WHERE id = $1`, id)
	st, err := scanStep(row)
	if err != nil {
		return nil, notFoundWrap(err, "get step %s", id)
	}
	return &st, nil
}

func (s *Store) CreateSteps(ctx context.Context, steps []step.Step) error {
	if len(steps) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create steps: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for i := range steps {
		if err := createStepTx(ctx, tx, &steps[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create steps: %w", err)
	}
	return nil
}

func (s *Store) CreateStep(ctx context.Context, st *step.Step) error {
	return createStepTx(ctx, s.pool, st)
}

// execer is satisfied by both *pgxpool.Pool and pgx.Tx.
type execer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func createStepTx(ctx context.Context, ex execer, st *step.Step) error {
	if st.ID == "" {
		st.ID = idgen.New()
	}
	if st.Status == "" {
		st.Status = step.StatusPending
	}

	row := ex.QueryRow(ctx,
		`INSERT INTO steps (id, mission_id, order_index, title, description, step_type, status,
		        claimed_by_agent_id, depends_on)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING version, created_at, updated_at`,
		st.ID, st.MissionID, st.OrderIndex, st.Title, st.Description, string(st.StepType), string(st.Status),
		nullIfEmpty(st.ClaimedByAgentID), pgTextArray(st.DependsOn))

	return row.Scan(&st.Version, &st.CreatedAt, &st.UpdatedAt)
}

func (s *Store) UpdateStep(ctx context.Context, st *step.Step) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE steps SET title = $2, description = $3, step_type = $4, status = $5, claimed_by_agent_id = $6,
		        depends_on = $7, output = $8, error = $9, started_at = $10, completed_at = $11,
		        version = version + 1, updated_at = now()
		 WHERE id = $1 AND version = $12`,
		st.ID, st.Title, st.Description, string(st.StepType), string(st.Status), nullIfEmpty(st.ClaimedByAgentID),
		pgTextArray(st.DependsOn), st.Output, st.Error, st.StartedAt, st.CompletedAt, st.Version)
	if err := execExpectOne(tag, err, "update step %s", st.ID); err != nil {
		return err
	}
	st.Version++
	return nil
}

const selectableStepColumns = `st.id, st.mission_id, st.order_index, st.title, st.description, st.step_type,
		st.status, st.claimed_by_agent_id, st.depends_on, st.output, st.error, st.started_at,
		st.completed_at, st.version, st.created_at, st.updated_at`

func (s *Store) SelectableSteps(ctx context.Context, projectID, agentID string) ([]step.Step, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+selectableStepColumns+`
		 FROM steps st
		 JOIN missions m ON m.id = st.mission_id
		 WHERE m.project_id = $1
		   AND st.status IN ($2, $3)
		   AND (st.claimed_by_agent_id IS NULL OR st.claimed_by_agent_id = $4)
		 ORDER BY st.order_index ASC, st.created_at ASC`,
		projectID, string(step.StatusPending), string(step.StatusClaimed), agentID)
	if err != nil {
		return nil, fmt.Errorf("selectable steps: %w", err)
	}
	defer rows.Close()
	return scanSteps(rows)
}

// --- Triggers ---

const triggerColumns = `id, project_id, name, event_pattern, action, enabled, last_fired_at, version, created_at, updated_at`

func (s *Store) ListEnabledTriggers(ctx context.Context) ([]trigger.Trigger, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+triggerColumns+` FROM triggers WHERE enabled = true ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list enabled triggers: %w", err)
	}
	defer rows.Close()
	return scanTriggers(rows)
}

func (s *Store) GetTrigger(ctx context.Context, id string) (*trigger.Trigger, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+triggerColumns+` FROM triggers WHERE id = $1`, id)
	t, err := scanTrigger(row)
	if err != nil {
		return nil, notFoundWrap(err, "get trigger %s", id)
	}
	return &t, nil
}

func (s *Store) CreateTrigger(ctx context.Context, t *trigger.Trigger) error {
	patternJSON, err := json.Marshal(t.EventPattern)
	if err != nil {
		return fmt.Errorf("marshal trigger event pattern: %w", err)
	}
	actionJSON, err := json.Marshal(t.Action)
	if err != nil {
		return fmt.Errorf("marshal trigger action: %w", err)
	}
	if t.ID == "" {
		t.ID = idgen.New()
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO triggers (id, project_id, name, event_pattern, action, enabled)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING version, created_at, updated_at`,
		t.ID, t.ProjectID, t.Name, patternJSON, actionJSON, t.Enabled)

	return row.Scan(&t.Version, &t.CreatedAt, &t.UpdatedAt)
}

func (s *Store) UpdateTrigger(ctx context.Context, t *trigger.Trigger) error {
	patternJSON, err := json.Marshal(t.EventPattern)
	if err != nil {
		return fmt.Errorf("marshal trigger event pattern: %w", err)
	}
	actionJSON, err := json.Marshal(t.Action)
	if err != nil {
		return fmt.Errorf("marshal trigger action: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE triggers SET name = $2, event_pattern = $3, action = $4, enabled = $5, last_fired_at = $6,
		        version = version + 1, updated_at = now()
		 WHERE id = $1 AND version = $7`,
		t.ID, t.Name, patternJSON, actionJSON, t.Enabled, t.LastFiredAt, t.Version)
	if err := execExpectOne(tag, err, "update trigger %s", t.ID); err != nil {
		return err
	}
	t.Version++
	return nil
}

func (s *Store) DeleteTrigger(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM triggers WHERE id = $1`, id)
	return execExpectOne(tag, err, "delete trigger %s", id)
}

// --- Project context ---

func (s *Store) UpsertProjectContext(ctx context.Context, req projectcontext.UpsertRequest) (*projectcontext.ProjectContext, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO project_context (id, project_id, category, key, content, source_agent_id, source_step_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (project_id, category, key) DO UPDATE SET
		        content = EXCLUDED.content, source_agent_id = EXCLUDED.source_agent_id,
		        source_step_id = EXCLUDED.source_step_id, updated_at = now()
		 RETURNING id, project_id, category, key, content, COALESCE(source_agent_id, ''),
		        COALESCE(source_step_id, ''), created_at, updated_at`,
		idgen.New(), req.ProjectID, req.Category, req.Key, req.Content,
		nullIfEmpty(req.SourceAgentID), nullIfEmpty(req.SourceStepID))

	var pc projectcontext.ProjectContext
	err := row.Scan(&pc.ID, &pc.ProjectID, &pc.Category, &pc.Key, &pc.Content, &pc.SourceAgentID,
		&pc.SourceStepID, &pc.CreatedAt, &pc.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert project context: %w", err)
	}
	return &pc, nil
}

func (s *Store) RecentProjectContext(ctx context.Context, projectID string, limit int) ([]projectcontext.ProjectContext, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, project_id, category, key, content, COALESCE(source_agent_id, ''),
		        COALESCE(source_step_id, ''), created_at, updated_at
		 FROM project_context WHERE project_id = $1 ORDER BY updated_at DESC LIMIT $2`,
		projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent project context: %w", err)
	}
	defer rows.Close()

	var out []projectcontext.ProjectContext
	for rows.Next() {
		var pc projectcontext.ProjectContext
		if err := rows.Scan(&pc.ID, &pc.ProjectID, &pc.Category, &pc.Key, &pc.Content, &pc.SourceAgentID,
			&pc.SourceStepID, &pc.CreatedAt, &pc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project context: %w", err)
		}
		out = append(out, pc)
	}
	return out, rows.Err()
}

// --- Scanners ---

func scanProjects(rows pgx.Rows) ([]project.Project, error) {
	var out []project.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanProject(row scannable) (project.Project, error) {
	var p project.Project
	var configJSON []byte
	err := row.Scan(&p.ID, &p.Name, &p.Slug, &p.Description, &p.RepoPath, &p.Status, &configJSON,
		&p.Version, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return p, err
	}
	if configJSON != nil {
		if err := json.Unmarshal(configJSON, &p.Config); err != nil {
			return p, fmt.Errorf("unmarshal project config: %w", err)
		}
	}
	return p, nil
}

func scanAgent(row scannable) (agent.Agent, error) {
	var a agent.Agent
	var configJSON, poseJSON []byte
	err := row.Scan(&a.ID, &a.ProjectID, &a.Name, &a.Role, &a.Status, &configJSON, &poseJSON,
		&a.LastSeenAt, &a.Version, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return a, err
	}
	if configJSON != nil {
		if err := json.Unmarshal(configJSON, &a.Config); err != nil {
			return a, fmt.Errorf("unmarshal agent config: %w", err)
		}
	}
	if poseJSON != nil {
		if err := json.Unmarshal(poseJSON, &a.Pose); err != nil {
			return a, fmt.Errorf("unmarshal agent pose: %w", err)
		}
	}
	return a, nil
}

func scanProposals(rows pgx.Rows) ([]proposal.Proposal, error) {
	var out []proposal.Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanProposal(row scannable) (proposal.Proposal, error) {
	var p proposal.Proposal
	var reviewedBy, mcTaskID, mcBoardID *string
	err := row.Scan(&p.ID, &p.AgentID, &p.ProjectID, &p.Title, &p.Description, &p.Rationale,
		&p.Priority, &p.Status, &p.AutoApprove, &reviewedBy, &p.ReviewedAt, &mcTaskID, &mcBoardID,
		&p.Version, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return p, err
	}
	if reviewedBy != nil {
		p.ReviewedBy = *reviewedBy
	}
	if mcTaskID != nil {
		p.McTaskID = *mcTaskID
	}
	if mcBoardID != nil {
		p.McBoardID = *mcBoardID
	}
	return p, nil
}

func scanMissions(rows pgx.Rows) ([]mission.Mission, error) {
	var out []mission.Mission
	for rows.Next() {
		m, err := scanMission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanMission(row scannable) (mission.Mission, error) {
	var m mission.Mission
	var assignedAgentID *string
	err := row.Scan(&m.ID, &m.ProposalID, &m.ProjectID, &m.Title, &m.Description, &m.Status, &m.Protocol,
		&m.MaxParallel, &assignedAgentID, &m.CompletedAt, &m.Version, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return m, err
	}
	if assignedAgentID != nil {
		m.AssignedAgentID = *assignedAgentID
	}
	return m, nil
}

func scanSteps(rows pgx.Rows) ([]step.Step, error) {
	var out []step.Step
	for rows.Next() {
		st, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func scanStep(row scannable) (step.Step, error) {
	var st step.Step
	var claimedBy *string
	err := row.Scan(&st.ID, &st.MissionID, &st.OrderIndex, &st.Title, &st.Description, &st.StepType,
		&st.Status, &claimedBy, &st.DependsOn, &st.Output, &st.Error, &st.StartedAt, &st.CompletedAt,
		&st.Version, &st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		return st, err
	}
	if claimedBy != nil {
		st.ClaimedByAgentID = *claimedBy
	}
	st.DependsOn = orEmpty(st.DependsOn)
	return st, nil
}

func scanTriggers(rows pgx.Rows) ([]trigger.Trigger, error) {
	var out []trigger.Trigger
	for rows.Next() {
		t, err := scanTrigger(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTrigger(row scannable) (trigger.Trigger, error) {
	var t trigger.Trigger
	var patternJSON, actionJSON []byte
	err := row.Scan(&t.ID, &t.ProjectID, &t.Name, &patternJSON, &actionJSON, &t.Enabled, &t.LastFiredAt,
		&t.Version, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return t, err
	}
	if err := json.Unmarshal(patternJSON, &t.EventPattern); err != nil {
		return t, fmt.Errorf("unmarshal event pattern: %w", err)
	}
	if err := json.Unmarshal(actionJSON, &t.Action); err != nil {
		return t, fmt.Errorf("unmarshal trigger action: %w", err)
	}
	return t, nil
}
