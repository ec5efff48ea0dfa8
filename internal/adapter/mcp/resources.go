package mcp

import (
	"context"
	"encoding/json"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

// registerResources registers all MCP resources on the server.
func (s *Server) registerResources() {
	s.mcpServer.AddResource(
		mcplib.NewResource(
			"orchestrator://proposals/pending",
			"Pending Proposals",
			mcplib.WithResourceDescription("Proposals awaiting approval across all projects"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleProposalsResource,
	)

	s.mcpServer.AddResource(
		mcplib.NewResource(
			"orchestrator://triggers/enabled",
			"Enabled Triggers",
			mcplib.WithResourceDescription("Currently enabled triggers across all projects"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleTriggersResource,
	)
}

func (s *Server) handleProposalsResource(ctx context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	if s.deps.ProposalLister == nil {
		return []mcplib.ResourceContents{
			mcplib.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     `{"error":"proposal lister not configured"}`,
			},
		}, nil
	}
	proposals, err := s.deps.ProposalLister.ListPendingProposals(ctx)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(proposals)
	if err != nil {
		return nil, err
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleTriggersResource(ctx context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	if s.deps.TriggerLister == nil {
		return []mcplib.ResourceContents{
			mcplib.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     `{"error":"trigger lister not configured"}`,
			},
		}, nil
	}
	triggers, err := s.deps.TriggerLister.ListEnabledTriggers(ctx)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(triggers)
	if err != nil {
		return nil, err
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
