package service

import (
	"context"
	"strings"
	"time"

	"github.com/forgewright/orchestrator/internal/domain/agent"
	"github.com/forgewright/orchestrator/internal/domain/proposal"
	"github.com/forgewright/orchestrator/internal/port/database"
)

// keywordRule is one ordered auto-approval keyword class. The
// per-agent auto_approve_proposals config flag is checked separately
// since it isn't keyword-based.
type keywordRule struct {
	name     string
	keywords []string
}

var keywordRules = []keywordRule{
	{name: "fix", keywords: []string{"fix", "patch", "hotfix", "typo"}},
	{name: "docs", keywords: []string{"docs", "documentation", "readme"}},
	{name: "test", keywords: []string{"test", "spec", "testing"}},
}

// ApprovalEngine transitions PENDING proposals deterministically under
// an ordered, first-match-wins policy.
type ApprovalEngine struct {
	store database.Store
}

// NewApprovalEngine constructs an ApprovalEngine.
func NewApprovalEngine(store database.Store) *ApprovalEngine {
	return &ApprovalEngine{store: store}
}

// ProcessPending evaluates every PENDING proposal against the
// auto-approval policy, returning the count of proposals transitioned.
func (e *ApprovalEngine) ProcessPending(ctx context.Context) (int, error) {
	pending, err := e.store.ListPendingProposals(ctx)
	if err != nil {
		return 0, err
	}
	count := 0
	for i := range pending {
		p := &pending[i]
		if !p.AutoApprove {
			continue // P2: auto_approve=false proposals are never touched
		}
		var originAgent *agent.Agent
		if a, err := e.store.GetAgent(ctx, p.AgentID); err == nil {
			originAgent = a
		}
		if !e.matches(p, originAgent) {
			continue
		}
		now := time.Now()
		p.Status = proposal.StatusApproved
		p.ReviewedBy = "system"
		p.ReviewedAt = &now
		if err := e.store.UpdateProposal(ctx, p); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// matches walks the ordered rule list, first match wins. All rules
// require auto_approve=true, already checked by the caller.
func (e *ApprovalEngine) matches(p *proposal.Proposal, originAgent *agent.Agent) bool {
	// Rule 1: low/medium priority AND agent config has auto_approve_proposals=true.
	if (p.Priority == proposal.PriorityLow || p.Priority == proposal.PriorityMedium) &&
		originAgent != nil && originAgent.Config.AutoApproveProposals {
		return true
	}
	title := strings.ToLower(p.Title)
	for _, rule := range keywordRules {
		for _, kw := range rule.keywords {
			if strings.Contains(title, kw) {
				return true
			}
		}
	}
	return false
}

// Approve manually approves a PENDING proposal. Non-PENDING proposals
// fail with ErrInvariant and no state change.
func (e *ApprovalEngine) Approve(ctx context.Context, proposalID, reviewer string) (*proposal.Proposal, error) {
	p, err := e.store.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if p.Status != proposal.StatusPending {
		return nil, domainInvariantErr("approve", p.Status)
	}
	now := time.Now()
	p.Status = proposal.StatusApproved
	p.ReviewedBy = reviewer
	p.ReviewedAt = &now
	if err := e.store.UpdateProposal(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Reject manually rejects a PENDING proposal, appending a
// human-readable rejection line to its rationale.
func (e *ApprovalEngine) Reject(ctx context.Context, proposalID, reviewer, reason string) (*proposal.Proposal, error) {
	p, err := e.store.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if p.Status != proposal.StatusPending {
		return nil, domainInvariantErr("reject", p.Status)
	}
	now := time.Now()
	p.Status = proposal.StatusRejected
	p.ReviewedBy = reviewer
	p.ReviewedAt = &now
	if p.Rationale != "" {
		p.Rationale += "\n"
	}
	p.Rationale += "Rejected by " + reviewer + ": " + reason
	if err := e.store.UpdateProposal(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}
