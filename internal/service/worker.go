package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/forgewright/orchestrator/internal/adapter/otel"
	"github.com/forgewright/orchestrator/internal/adapter/ristretto"
	"github.com/forgewright/orchestrator/internal/domain/agent"
	"github.com/forgewright/orchestrator/internal/domain/event"
	"github.com/forgewright/orchestrator/internal/domain/mission"
	"github.com/forgewright/orchestrator/internal/domain/policy"
	"github.com/forgewright/orchestrator/internal/domain/project"
	"github.com/forgewright/orchestrator/internal/domain/projectcontext"
	"github.com/forgewright/orchestrator/internal/domain/step"
	"github.com/forgewright/orchestrator/internal/git"
	"github.com/forgewright/orchestrator/internal/idgen"
	"github.com/forgewright/orchestrator/internal/port/database"
	"github.com/forgewright/orchestrator/internal/port/dispatcher"
	"github.com/forgewright/orchestrator/internal/port/eventstore"
)

// capabilityMap is the step_type -> required capability mapping.
var capabilityMap = map[step.Type]string{
	step.TypeCode:     "write_code",
	step.TypeTest:     "run_tests",
	step.TypeReview:   "review_code",
	step.TypeDeploy:   "deploy_code",
	step.TypeResearch: "research",
	step.TypeSecurity: "security_audit",
	step.TypeOther:    "general_work",
}

// CapabilityFor returns the capability a step of the given type requires.
func CapabilityFor(t step.Type) string {
	if capability, ok := capabilityMap[t]; ok {
		return capability
	}
	return "general_work"
}

const defaultStepTimeout = 300 * time.Second

// maxContextFiles caps how many repo files are embedded per prompt.
const maxContextFiles = 5

// maxContextFileBytes truncates each embedded file's content.
const maxContextFileBytes = 5000

const promptTemplateText = `You are {{.AgentName}}, working on project "{{.ProjectName}}".
Project description: {{.ProjectDescription}}
Repository: {{.RepoPath}}

Mission: {{.MissionTitle}}
{{.MissionDescription}}

Current step: {{.StepTitle}} ({{.StepType}})
{{.StepDescription}}

Project knowledge:
{{range .Knowledge}}- [{{.Category}}/{{.Key}}] {{.Content}}
{{end}}
Context files:
{{range .Files}}--- {{.Path}} ---
{{.Content}}
{{end}}`

var promptTemplate = template.Must(template.New("step_prompt").Parse(promptTemplateText))

type promptFile struct {
	Path    string
	Content string
}

type promptData struct {
	AgentName           string
	ProjectName         string
	ProjectDescription  string
	RepoPath            string
	MissionTitle        string
	MissionDescription  string
	StepTitle           string
	StepDescription     string
	StepType            string
	Knowledge           []projectcontext.ProjectContext
	Files               []promptFile
}

// WorkerEngine finds a suitable step for an agent and drives it
// through the claim/run/complete protocol.
type WorkerEngine struct {
	store   database.Store
	events  eventstore.Store
	cache   *ristretto.Cache
	timeout time.Duration
	metrics *otel.Metrics  // optional, may be nil
	policy  *PolicyService // optional, may be nil
	gitPool *git.Pool      // optional, may be nil
}

// NewWorkerEngine constructs a WorkerEngine. cache may be nil, in
// which case project context is always read from the store.
func NewWorkerEngine(store database.Store, events eventstore.Store, cache *ristretto.Cache, stepTimeout time.Duration) *WorkerEngine {
	if stepTimeout <= 0 {
		stepTimeout = defaultStepTimeout
	}
	return &WorkerEngine{store: store, events: events, cache: cache, timeout: stepTimeout}
}

// SetMetrics installs the OTel instrument set; nil disables recording.
func (w *WorkerEngine) SetMetrics(m *otel.Metrics) {
	w.metrics = m
}

// SetPolicy installs a tool-permission gate evaluated before every step
// dispatch; nil (the default) allows every step type unconditionally.
func (w *WorkerEngine) SetPolicy(p *PolicyService) {
	w.policy = p
}

// SetGitPool installs the shared concurrency limiter used to bound
// repo refresh (git pull) operations across agents; nil runs refreshes
// unbounded.
func (w *WorkerEngine) SetGitPool(p *git.Pool) {
	w.gitPool = p
}

// FindAndExecuteWork finds one step the agent can handle and executes
// it, returning whether work was found at all.
func (w *WorkerEngine) FindAndExecuteWork(ctx context.Context, a *agent.Agent) (bool, error) {
	candidates, err := w.findAvailableSteps(ctx, a)
	if err != nil {
		return false, err
	}
	if len(candidates) == 0 {
		return false, nil
	}
	s := &candidates[0]
	if err := w.executeStep(ctx, s, a); err != nil {
		return true, err
	}
	return true, nil
}

// findAvailableSteps selects steps the agent can claim and filters by
// capability, falling back to "capable" if config can't be loaded.
func (w *WorkerEngine) findAvailableSteps(ctx context.Context, a *agent.Agent) ([]step.Step, error) {
	steps, err := w.store.SelectableSteps(ctx, a.ProjectID, a.ID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(steps, func(i, j int) bool {
		if steps[i].OrderIndex != steps[j].OrderIndex {
			return steps[i].OrderIndex < steps[j].OrderIndex
		}
		return steps[i].CreatedAt.Before(steps[j].CreatedAt)
	})

	var suitable []step.Step
	for _, s := range steps {
		if w.canHandle(a, &s) {
			suitable = append(suitable, s)
		}
	}
	return suitable, nil
}

// canHandle reports whether the agent's capability config covers the
// step's required capability. On any error loading config, the agent
// is treated as capable (permissive fallback).
func (w *WorkerEngine) canHandle(a *agent.Agent, s *step.Step) bool {
	if a.Config.Capabilities == nil {
		return true // config missing entirely: permissive fallback
	}
	return a.HasCapability(CapabilityFor(s.StepType))
}

// checkPolicy evaluates the step's type against the agent's configured
// policy profile, if any. A step type that resolves to deny or ask is
// treated as denied here: this pipeline has no per-tool-call escalation
// path, only proposal/mission approval, so a step requiring a human in
// the loop is failed rather than silently auto-run.
func (w *WorkerEngine) checkPolicy(ctx context.Context, s *step.Step, a *agent.Agent) (denied bool, reason string) {
	if w.policy == nil || a.Config.PolicyProfile == "" {
		return false, ""
	}
	decision, err := w.policy.Evaluate(ctx, a.Config.PolicyProfile, policy.ToolCall{Tool: string(s.StepType)})
	if err != nil {
		return true, fmt.Sprintf("policy evaluation failed: %s", err)
	}
	if decision == policy.DecisionAllow {
		return false, ""
	}
	return true, fmt.Sprintf("step type %s denied by policy profile %q (%s)", s.StepType, a.Config.PolicyProfile, decision)
}

// failStep marks a step failed without dispatching it, used when a
// pre-dispatch check (policy) rejects the step outright.
func (w *WorkerEngine) failStep(ctx context.Context, s *step.Step, a *agent.Agent, projectID, reason string) error {
	now := time.Now()
	s.Status = step.StatusFailed
	s.Error = reason
	s.CompletedAt = &now
	if err := w.store.UpdateStep(ctx, s); err != nil {
		return fmt.Errorf("fail step: %w", err)
	}
	if w.metrics != nil {
		w.metrics.StepsFailed.Add(ctx, 1)
	}
	w.emitCompletion(ctx, s, a, projectID)
	return nil
}

func (w *WorkerEngine) executeStep(ctx context.Context, s *step.Step, a *agent.Agent) error {
	ctx, span := otel.StartStepSpan(ctx, s.ID, string(s.StepType), a.ID)
	defer span.End()

	// 1. Claim.
	if s.ClaimedByAgentID != a.ID {
		s.ClaimedByAgentID = a.ID
		s.Status = step.StatusClaimed
		if err := w.store.UpdateStep(ctx, s); err != nil {
			return fmt.Errorf("claim step: %w", err)
		}
	}

	// 2. Start.
	now := time.Now()
	s.Status = step.StatusRunning
	s.StartedAt = &now
	if err := w.store.UpdateStep(ctx, s); err != nil {
		return fmt.Errorf("start step: %w", err)
	}

	m, err := w.store.GetMission(ctx, s.MissionID)
	if err != nil {
		return fmt.Errorf("load mission: %w", err)
	}
	proj, err := w.store.GetProject(ctx, m.ProjectID)
	if err != nil {
		return fmt.Errorf("load project: %w", err)
	}

	if denied, reason := w.checkPolicy(ctx, s, a); denied {
		return w.failStep(ctx, s, a, proj.ID, reason)
	}

	prompt := w.buildPrompt(ctx, s, a, m, proj)

	cfg := w.dispatcherConfig(a)
	result, dispatchErr := w.dispatch(ctx, s, prompt, cfg)

	completedAt := time.Now()
	if dispatchErr == nil && result.Status == dispatcher.DispatchOK {
		s.Status = step.StatusCompleted
		s.Output = result.Text
		s.CompletedAt = &completedAt
	} else {
		s.Status = step.StatusFailed
		if dispatchErr != nil {
			s.Error = dispatchErr.Error()
		} else {
			s.Error = "dispatcher reported failure"
		}
		s.CompletedAt = &completedAt
	}
	if err := w.store.UpdateStep(ctx, s); err != nil {
		return fmt.Errorf("complete step: %w", err)
	}

	if w.metrics != nil {
		if s.Status == step.StatusFailed {
			w.metrics.StepsFailed.Add(ctx, 1)
		} else {
			w.metrics.StepsCompleted.Add(ctx, 1)
		}
	}

	w.emitCompletion(ctx, s, a, proj.ID)
	return nil
}

// dispatch sends the step to the active StepDispatcher. If none is
// registered, it falls through to a simulated completion so pipelines
// keep moving in dev environments.
func (w *WorkerEngine) dispatch(ctx context.Context, s *step.Step, prompt string, cfg *dispatcher.AgentConfig) (dispatcher.DispatchResult, error) {
	name, d := dispatcher.ActiveStepDispatcher()
	if d == nil {
		return w.simulate(s), nil
	}
	dctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	result, err := d.Dispatch(dctx, s.ID, prompt, w.timeout, cfg)
	if err != nil {
		slog.Warn("step dispatch transport error, falling back to simulated completion", "dispatcher", name, "step_id", s.ID, "error", err)
		return w.simulate(s), nil
	}
	return result, nil
}

// simulate produces a canned per-type output so the pipeline keeps
// moving when no dispatcher is configured.
func (w *WorkerEngine) simulate(s *step.Step) dispatcher.DispatchResult {
	text := fmt.Sprintf("[simulated] completed %s step %q", strings.ToLower(string(s.StepType)), s.Title)
	return dispatcher.DispatchResult{Status: dispatcher.DispatchOK, Text: text}
}

func (w *WorkerEngine) dispatcherConfig(a *agent.Agent) *dispatcher.AgentConfig {
	if a.Config.DispatcherProvider == "" && a.Config.DispatcherModel == "" && a.Config.DispatcherBaseURL == "" {
		return nil
	}
	return &dispatcher.AgentConfig{
		Provider: a.Config.DispatcherProvider,
		Model:    a.Config.DispatcherModel,
		BaseURL:  a.Config.DispatcherBaseURL,
	}
}

func (w *WorkerEngine) emitCompletion(ctx context.Context, s *step.Step, a *agent.Agent, projectID string) {
	t := event.TypeStepCompleted
	if s.Status == step.StatusFailed {
		t = event.TypeStepFailed
	}
	e := &event.Event{
		ID:        idgen.New(),
		ProjectID: projectID,
		EventType: t,
		SourceAgentID: a.ID,
		Payload: map[string]any{
			"step_id":    s.ID,
			"mission_id": s.MissionID,
			"step_type":  string(s.StepType),
			"agent_name": a.Name,
		},
		CreatedAt: time.Now(),
	}
	if err := w.events.Append(ctx, e); err != nil {
		slog.Warn("append step completion event failed", "step_id", s.ID, "error", err)
	}
}

// buildPrompt formats the step prompt from the shared template,
// enriched with recent project knowledge and repo context files. On
// any formatting failure it falls back to a minimal safe prompt.
func (w *WorkerEngine) buildPrompt(ctx context.Context, s *step.Step, a *agent.Agent, m *mission.Mission, proj *project.Project) string {
	knowledge, err := w.loadKnowledge(ctx, proj.ID)
	if err != nil {
		slog.Warn("load project knowledge failed", "project_id", proj.ID, "error", err)
	}
	w.refreshRepo(ctx, proj.RepoPath)
	files := w.loadContextFiles(proj.RepoPath)

	data := promptData{
		AgentName:          a.Name,
		ProjectName:        proj.Name,
		ProjectDescription: proj.Description,
		RepoPath:           proj.RepoPath,
		MissionTitle:       sanitizePromptInput(m.Title),
		MissionDescription: sanitizePromptInput(m.Description),
		StepTitle:          sanitizePromptInput(s.Title),
		StepDescription:    sanitizePromptInput(s.Description),
		StepType:           string(s.StepType),
		Knowledge:          knowledge,
		Files:              files,
	}

	var buf bytes.Buffer
	if err := promptTemplate.Execute(&buf, data); err != nil {
		slog.Warn("prompt template execution failed, using minimal fallback", "step_id", s.ID, "error", err)
		return fmt.Sprintf("Agent %s working on project %s. Step: %s - %s", a.Name, proj.Name, s.Title, s.Description)
	}
	return buf.String()
}

func (w *WorkerEngine) loadKnowledge(ctx context.Context, projectID string) ([]projectcontext.ProjectContext, error) {
	cacheKey := "projectcontext:" + projectID
	if w.cache != nil {
		if v, ok := w.cache.Get(cacheKey); ok {
			if entries, ok := v.([]projectcontext.ProjectContext); ok {
				return entries, nil
			}
		}
	}
	entries, err := w.store.RecentProjectContext(ctx, projectID, 20)
	if err != nil {
		return nil, err
	}
	if w.cache != nil {
		w.cache.Set(cacheKey, entries, 1)
	}
	return entries, nil
}

// refreshRepo best-effort pulls the working copy at repoPath up to
// date before context files are read from it. Failures are logged and
// otherwise ignored: a stale or missing clone just yields stale or
// empty context, not a failed step. Concurrent git operations across
// agents are bounded by gitPool, if one is installed.
func (w *WorkerEngine) refreshRepo(ctx context.Context, repoPath string) {
	if repoPath == "" {
		return
	}
	if _, err := os.Stat(filepath.Join(repoPath, ".git")); err != nil {
		return
	}
	run := func() error {
		cmd := exec.CommandContext(ctx, "git", "-C", repoPath, "pull", "--ff-only")
		out, err := cmd.CombinedOutput()
		if err != nil {
			return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out)))
		}
		return nil
	}
	var err error
	if w.gitPool != nil {
		err = w.gitPool.Run(ctx, run)
	} else {
		err = run()
	}
	if err != nil {
		slog.Warn("repo refresh failed", "repo_path", repoPath, "error", err)
	}
}

func (w *WorkerEngine) loadContextFiles(repoPath string) []promptFile {
	if repoPath == "" {
		return nil
	}
	entries, err := os.ReadDir(repoPath)
	if err != nil {
		return nil
	}
	var files []promptFile
	for _, entry := range entries {
		if entry.IsDir() || len(files) >= maxContextFiles {
			continue
		}
		full := filepath.Join(repoPath, entry.Name())
		data, err := os.ReadFile(full)
		if err != nil {
			continue
		}
		if len(data) > maxContextFileBytes {
			data = data[:maxContextFileBytes]
		}
		files = append(files, promptFile{Path: entry.Name(), Content: string(data)})
	}
	return files
}
