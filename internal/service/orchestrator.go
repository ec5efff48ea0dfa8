// Package service implements the orchestration core: the tick engine
// and the state machines it drives.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/forgewright/orchestrator/internal/adapter/otel"
	"github.com/forgewright/orchestrator/internal/config"
	"github.com/forgewright/orchestrator/internal/domain"
	"github.com/forgewright/orchestrator/internal/domain/agent"
	"github.com/forgewright/orchestrator/internal/domain/event"
	"github.com/forgewright/orchestrator/internal/domain/mission"
	"github.com/forgewright/orchestrator/internal/domain/proposal"
	"github.com/forgewright/orchestrator/internal/domain/step"
	"github.com/forgewright/orchestrator/internal/idgen"
	"github.com/forgewright/orchestrator/internal/port/board"
	"github.com/forgewright/orchestrator/internal/port/broadcast"
	"github.com/forgewright/orchestrator/internal/port/database"
	"github.com/forgewright/orchestrator/internal/port/eventstore"
	"github.com/forgewright/orchestrator/internal/port/notifier"
)

// OrchestrationResult is the outcome of one Tick(), returned regardless
// of whether individual phases hit errors: no phase aborts the tick.
type OrchestrationResult struct {
	TriggersEvaluated int
	TriggersFired     int
	EventsProcessed   int
	ActionsExecuted   int
	DurationMS        int64
	Errors            []string
}

// WorkCycleResult is the outcome of one agent work cycle.
type WorkCycleResult struct {
	AgentID    string
	WorkFound  bool
	Errors     []string
	DurationMS int64
}

// BoardMapping pins one external board to one project slug.
type BoardMapping struct {
	BoardID     string
	ProjectSlug string
}

// OrchestratorService sequences one tick: inbound sync, approvals,
// triggers, mission/step materialization, closure, escalation, and
// retention, always in this strict order.
type OrchestratorService struct {
	store    database.Store
	events   eventstore.Store
	hub      broadcast.Broadcaster
	boards   map[string]board.Adapter // board_id -> client
	mappings []BoardMapping
	notify   notifier.Notifier // optional escalation fan-out, may be nil

	approval *ApprovalEngine
	trigger  *TriggerEvaluator
	worker   *WorkerEngine
	hooks    *HookBus

	cfg     config.Orchestrator
	metrics *otel.Metrics // optional, may be nil

	mu sync.Mutex // serializes Tick() for this instance
}

// NewOrchestratorService wires the tick engine from its component services.
func NewOrchestratorService(
	store database.Store,
	events eventstore.Store,
	hub broadcast.Broadcaster,
	approval *ApprovalEngine,
	trigger *TriggerEvaluator,
	worker *WorkerEngine,
	hooks *HookBus,
	cfg config.Orchestrator,
) *OrchestratorService {
	return &OrchestratorService{
		store:    store,
		events:   events,
		hub:      hub,
		boards:   make(map[string]board.Adapter),
		approval: approval,
		trigger:  trigger,
		worker:   worker,
		hooks:    hooks,
		cfg:      cfg,
	}
}

// RegisterBoard pins a board client to a board_id -> project_slug mapping,
// consulted by inbound sync.
func (s *OrchestratorService) RegisterBoard(boardID, projectSlug string, client board.Adapter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.boards[boardID] = client
	s.mappings = append(s.mappings, BoardMapping{BoardID: boardID, ProjectSlug: projectSlug})
}

// SetNotifier installs an optional supplementary escalation channel.
func (s *OrchestratorService) SetNotifier(n notifier.Notifier) {
	s.notify = n
}

// SetMetrics installs the OTel instrument set; nil disables recording.
func (s *OrchestratorService) SetMetrics(m *otel.Metrics) {
	s.metrics = m
}

// Tick executes exactly one pass of the orchestration pipeline. It is
// not intended to run concurrently with itself for the same instance;
// the mutex enforces that regardless of whether the caller is a timer
// or an SSE-triggered wakeup.
func (s *OrchestratorService) Tick(ctx context.Context) OrchestrationResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, span := otel.StartTickSpan(ctx)
	defer span.End()

	start := time.Now()
	result := OrchestrationResult{}

	s.runPhase(ctx, &result, "inbound_sync", s.phaseInboundSync)
	s.runPhase(ctx, &result, "approvals", s.phaseApprovals)
	s.runPhase(ctx, &result, "triggers", s.phaseTriggers)
	s.runPhase(ctx, &result, "materialize_missions", s.phaseMaterializeMissions)
	s.runPhase(ctx, &result, "materialize_steps", s.phaseMaterializeSteps)
	s.runPhase(ctx, &result, "close_missions", s.phaseCloseMissions)
	s.runPhase(ctx, &result, "escalation", s.phaseEscalation)
	s.runPhase(ctx, &result, "retention", s.phaseRetention)

	result.DurationMS = time.Since(start).Milliseconds()
	if s.metrics != nil {
		s.metrics.TicksRun.Add(ctx, 1)
		s.metrics.TickDuration.Record(ctx, time.Since(start).Seconds())
		if result.TriggersFired > 0 {
			s.metrics.TriggersFired.Add(ctx, int64(result.TriggersFired))
		}
	}
	return result
}

// runPhase wraps one tick phase: errors are captured, logged, and
// appended to the result rather than raised, so a failure in an early
// phase never blocks later phases.
func (s *OrchestratorService) runPhase(ctx context.Context, result *OrchestrationResult, name string, fn func(ctx context.Context, result *OrchestrationResult) error) {
	if err := fn(ctx, result); err != nil {
		slog.Warn("orchestrator tick phase failed", "phase", name, "error", err)
		result.Errors = append(result.Errors, name+": "+err.Error())
	}
}

// WorkCycle runs one unit of work for a single agent, used by the
// /orchestrator/work-cycle/{agent} operational endpoint and by the
// scheduler's work-cycle loop, which calls it for each agent every
// agent_work_interval_seconds.
func (s *OrchestratorService) WorkCycle(ctx context.Context, agentID string) WorkCycleResult {
	start := time.Now()
	result := WorkCycleResult{AgentID: agentID}

	a, err := s.store.GetAgent(ctx, agentID)
	if err != nil {
		result.Errors = append(result.Errors, "agent not found: "+err.Error())
		result.DurationMS = time.Since(start).Milliseconds()
		return result
	}
	now := time.Now()
	if err := s.store.TouchAgentLastSeen(ctx, agentID, now); err != nil {
		result.Errors = append(result.Errors, "touch last_seen: "+err.Error())
	}

	found, err := s.worker.FindAndExecuteWork(ctx, a)
	if err != nil {
		result.Errors = append(result.Errors, "work cycle: "+err.Error())
	}
	result.WorkFound = found
	result.DurationMS = time.Since(start).Milliseconds()
	return result
}

func (s *OrchestratorService) appendEvent(ctx context.Context, projectID string, t event.Type, sourceAgentID string, payload map[string]any) {
	e := &event.Event{
		ID:            idgen.New(),
		ProjectID:     projectID,
		EventType:     t,
		SourceAgentID: sourceAgentID,
		Payload:       payload,
		CreatedAt:     time.Now(),
	}
	if err := s.events.Append(ctx, e); err != nil {
		slog.Warn("append event failed", "event_type", t, "error", err)
		return
	}
	if s.hub != nil {
		s.hub.BroadcastEvent(ctx, string(t), e)
	}
}

// --- Phase 1: inbound sync ---------------------------------------------

func (s *OrchestratorService) phaseInboundSync(ctx context.Context, result *OrchestrationResult) error {
	for _, m := range s.mappings {
		client, ok := s.boards[m.BoardID]
		if !ok {
			continue
		}
		if err := s.syncBoard(ctx, result, m, client); err != nil {
			slog.Warn("inbound sync failed for board", "board_id", m.BoardID, "error", err)
			result.Errors = append(result.Errors, "inbound_sync("+m.BoardID+"): "+err.Error())
		}
	}
	if s.hooks != nil {
		s.hooks.DispatchHook(ctx, HookOnTickSync, map[string]any{})
	}
	return nil
}

func (s *OrchestratorService) syncBoard(ctx context.Context, result *OrchestrationResult, m BoardMapping, client board.Adapter) error {
	proj, err := s.store.GetProjectBySlug(ctx, m.ProjectSlug)
	if err != nil {
		return err
	}
	if !proj.IsActive() {
		return nil // decommissioned/paused projects are skipped
	}

	tasks, err := client.ListTasks(ctx, m.BoardID, "")
	if err != nil {
		return err
	}
	originAgent, err := s.store.FirstActiveAgent(ctx, proj.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil // no active agent to originate proposals
	}
	if err != nil {
		return err
	}
	if originAgent == nil {
		return nil
	}

	for _, t := range tasks {
		if t.Status != "inbox" && t.Status != "in_progress" {
			continue
		}
		existing, err := s.store.GetProposalByMcTaskID(ctx, t.ID)
		if err == nil && existing != nil {
			continue // dedup: already proposed (I5)
		}
		priority := proposal.PriorityFromRemote(t.Priority)
		autoApprove := priority == proposal.PriorityCritical || priority == proposal.PriorityHigh
		p := &proposal.Proposal{
			ID:          idgen.New(),
			AgentID:     originAgent.ID,
			ProjectID:   proj.ID,
			Title:       t.Title,
			Description: t.Description,
			Priority:    priority,
			Status:      proposal.StatusPending,
			AutoApprove: autoApprove,
			McTaskID:    t.ID,
			McBoardID:   m.BoardID,
		}
		if err := s.store.CreateProposal(ctx, p); err != nil {
			return err
		}
		result.ActionsExecuted++
		s.appendEvent(ctx, proj.ID, event.TypeProposalCreated, originAgent.ID, map[string]any{
			"proposal_id": p.ID,
			"mc_task_id":  t.ID,
		})
	}
	return nil
}

// --- Phase 2: approvals --------------------------------------------------

func (s *OrchestratorService) phaseApprovals(ctx context.Context, result *OrchestrationResult) error {
	n, err := s.approval.ProcessPending(ctx)
	result.ActionsExecuted += n
	return err
}

// --- Phase 3: triggers -----------------------------------------------------

func (s *OrchestratorService) phaseTriggers(ctx context.Context, result *OrchestrationResult) error {
	evaluated, fired, executed, errs := s.trigger.Evaluate(ctx)
	result.TriggersEvaluated += evaluated
	result.TriggersFired += fired
	result.ActionsExecuted += executed
	result.Errors = append(result.Errors, errs...)
	return nil
}

// --- Phase 4: materialize missions ---------------------------------------

func (s *OrchestratorService) phaseMaterializeMissions(ctx context.Context, result *OrchestrationResult) error {
	proposals, err := s.store.ListApprovedProposalsWithoutMission(ctx)
	if err != nil {
		return err
	}
	for _, p := range proposals {
		m := &mission.Mission{
			ID:              idgen.New(),
			ProposalID:      p.ID,
			ProjectID:       p.ProjectID,
			Title:           p.Title,
			Description:     p.Description,
			Status:          mission.StatusPlanned,
			Protocol:        mission.ProtocolSequential,
			AssignedAgentID: p.AgentID,
		}
		if err := s.store.CreateMission(ctx, m); err != nil {
			slog.Warn("create mission failed", "proposal_id", p.ID, "error", err)
			result.Errors = append(result.Errors, "materialize_missions: "+err.Error())
			continue
		}
		result.ActionsExecuted++
		s.appendEvent(ctx, m.ProjectID, event.TypeMissionCreated, "", map[string]any{"mission_id": m.ID, "proposal_id": p.ID})
	}
	return nil
}

// --- Phase 5: materialize steps -------------------------------------------

func (s *OrchestratorService) phaseMaterializeSteps(ctx context.Context, result *OrchestrationResult) error {
	missions, err := s.store.ListPlannedMissionsWithoutSteps(ctx)
	if err != nil {
		return err
	}
	for _, m := range missions {
		steps := step.DefaultPlan(m.ID, m.Title)
		if err := s.store.CreateSteps(ctx, steps); err != nil {
			slog.Warn("create steps failed", "mission_id", m.ID, "error", err)
			result.Errors = append(result.Errors, "materialize_steps: "+err.Error())
			continue
		}
		m.Status = mission.StatusActive
		if err := s.store.UpdateMission(ctx, &m); err != nil {
			result.Errors = append(result.Errors, "materialize_steps: "+err.Error())
			continue
		}
		result.ActionsExecuted++
	}
	return nil
}

// --- Phase 6: close missions -----------------------------------------------

func (s *OrchestratorService) phaseCloseMissions(ctx context.Context, result *OrchestrationResult) error {
	missions, err := s.store.ListActiveMissions(ctx)
	if err != nil {
		return err
	}
	for _, m := range missions {
		closed, err := s.tryCloseMission(ctx, &m)
		if err != nil {
			result.Errors = append(result.Errors, "close_missions: "+err.Error())
			continue
		}
		if closed {
			result.ActionsExecuted++
		}
	}
	return nil
}

// tryCloseMission closes m once it has at least one step and all steps
// are COMPLETED. The status==ACTIVE check happens inside the same
// load/update pass that flips it, making repeated evaluation in one
// window a no-op rather than a double completion.
func (s *OrchestratorService) tryCloseMission(ctx context.Context, m *mission.Mission) (bool, error) {
	if m.Status != mission.StatusActive {
		return false, nil
	}
	steps, err := s.store.ListSteps(ctx, m.ID)
	if err != nil {
		return false, err
	}
	if len(steps) == 0 {
		return false, nil
	}
	for _, st := range steps {
		if st.Status != step.StatusCompleted {
			return false, nil
		}
	}
	now := time.Now()
	m.Status = mission.StatusCompleted
	m.CompletedAt = &now
	if err := s.store.UpdateMission(ctx, m); err != nil {
		return false, err
	}
	s.appendEvent(ctx, m.ProjectID, event.TypeMissionCompleted, "", map[string]any{"mission_id": m.ID})
	if s.hooks != nil {
		s.hooks.DispatchHook(ctx, HookOnMissionComplete, map[string]any{"mission": m})
	}
	s.reportMissionOutbound(ctx, m)
	if s.metrics != nil {
		s.metrics.MissionsCompleted.Add(ctx, 1)
	}
	return true, nil
}

// reportMissionOutbound posts the completion comment and review status
// to the board, when the mission's proposal carries board references.
func (s *OrchestratorService) reportMissionOutbound(ctx context.Context, m *mission.Mission) {
	p, err := s.store.GetProposal(ctx, m.ProposalID)
	if err != nil || p.McBoardID == "" || p.McTaskID == "" {
		return
	}
	client, ok := s.boards[p.McBoardID]
	if !ok {
		return
	}
	agentName := "agent"
	if a, err := s.store.GetAgent(ctx, m.AssignedAgentID); err == nil && a != nil {
		agentName = a.Name
	}
	comment := "[" + agentName + "]: Mission completed: " + m.Title
	if err := client.UpdateTask(ctx, p.McBoardID, p.McTaskID, "review", comment); err != nil {
		slog.Warn("outbound mission report failed", "mission_id", m.ID, "error", err)
	}
}

// --- Phase 7: escalation ---------------------------------------------------

func (s *OrchestratorService) phaseEscalation(ctx context.Context, result *OrchestrationResult) error {
	missions, err := s.store.ListActiveMissions(ctx)
	if err != nil {
		return err
	}
	for _, m := range missions {
		escalated, err := s.tryEscalate(ctx, &m)
		if err != nil {
			result.Errors = append(result.Errors, "escalation: "+err.Error())
			continue
		}
		if escalated {
			result.ActionsExecuted++
		}
	}
	if s.hooks != nil {
		s.hooks.DispatchHook(ctx, HookOnStuckCheck, map[string]any{})
	}
	return nil
}

// tryEscalate reports m as stuck when at least one step FAILED and no
// step remains in a working state (PENDING/CLAIMED/RUNNING).
func (s *OrchestratorService) tryEscalate(ctx context.Context, m *mission.Mission) (bool, error) {
	steps, err := s.store.ListSteps(ctx, m.ID)
	if err != nil {
		return false, err
	}
	var hasFailed bool
	var failedStep *step.Step
	for i := range steps {
		st := &steps[i]
		switch st.Status {
		case step.StatusPending, step.StatusClaimed, step.StatusRunning:
			return false, nil // still working, not stuck
		case step.StatusFailed:
			hasFailed = true
			if failedStep == nil {
				failedStep = st
			}
		}
	}
	if !hasFailed {
		return false, nil
	}

	p, err := s.store.GetProposal(ctx, m.ProposalID)
	if err == nil && p.McBoardID != "" {
		if client, ok := s.boards[p.McBoardID]; ok {
			msg := "Mission \"" + m.Title + "\" is stuck: step \"" + failedStep.Title + "\" (" + string(failedStep.StepType) + ") failed: " + failedStep.Error
			correlationID := "stuck-mission-" + m.ID
			if err := client.AskUser(ctx, p.McBoardID, msg, correlationID); err != nil {
				slog.Warn("ask-user escalation failed", "mission_id", m.ID, "error", err)
			}
		}
	}
	if s.notify != nil {
		_ = s.notify.Send(ctx, notifier.Notification{
			Title:   "Mission stuck",
			Message: "Mission \"" + m.Title + "\" escalated after step failure",
			Level:   "warning",
			Source:  "mission.escalated",
		})
	}
	s.appendEvent(ctx, m.ProjectID, event.TypeMissionEscalated, "", map[string]any{"mission_id": m.ID})
	if s.metrics != nil {
		s.metrics.MissionsEscalated.Add(ctx, 1)
	}
	return true, nil
}

// StuckMissionCount reports how many active missions meet the same
// stuck criterion tryEscalate checks (a FAILED step with nothing left
// working), without escalating them. For the deep health endpoint.
func (s *OrchestratorService) StuckMissionCount(ctx context.Context) (int, error) {
	missions, err := s.store.ListActiveMissions(ctx)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, m := range missions {
		steps, err := s.store.ListSteps(ctx, m.ID)
		if err != nil {
			return count, err
		}
		hasFailed := false
		working := false
		for i := range steps {
			switch steps[i].Status {
			case step.StatusPending, step.StatusClaimed, step.StatusRunning:
				working = true
			case step.StatusFailed:
				hasFailed = true
			}
		}
		if hasFailed && !working {
			count++
		}
	}
	return count, nil
}

// StaleAgentNames returns the names of active agents that have not
// been seen within olderThan, across every active project. For the
// deep health endpoint.
func (s *OrchestratorService) StaleAgentNames(ctx context.Context, olderThan time.Duration) ([]string, error) {
	projects, err := s.store.ListActiveProjects(ctx)
	if err != nil {
		return nil, err
	}
	cutoff := time.Now().Add(-olderThan)
	var stale []string
	for _, p := range projects {
		agents, err := s.store.ListAgents(ctx, p.ID)
		if err != nil {
			return stale, err
		}
		for _, a := range agents {
			if a.Status != agent.StatusActive {
				continue
			}
			if a.LastSeenAt == nil || a.LastSeenAt.Before(cutoff) {
				stale = append(stale, a.Name)
			}
		}
	}
	return stale, nil
}

// --- Phase 8: retention -----------------------------------------------------

func (s *OrchestratorService) phaseRetention(ctx context.Context, result *OrchestrationResult) error {
	eventCutoff := time.Now().Add(-30 * 24 * time.Hour)
	n, err := s.events.DeleteOlderThan(ctx, eventCutoff)
	if err != nil {
		return err
	}
	result.EventsProcessed += n

	proposalCutoff := time.Now().Add(-7 * 24 * time.Hour)
	m, err := s.store.ExpireStaleProposals(ctx, proposalCutoff)
	if err != nil {
		return err
	}
	result.ActionsExecuted += m
	return nil
}
