package mcp

import (
	"context"
	"encoding/json"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// registerTools registers all MCP tools on the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTools(
		s.listProposalsTool(),
		s.getMissionTool(),
		s.listTriggersTool(),
	)
}

func (s *Server) listProposalsTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("list_proposals",
		mcplib.WithDescription("List proposals awaiting approval across all projects"),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleListProposals,
	}
}

func (s *Server) getMissionTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_mission",
		mcplib.WithDescription("Get a mission's status, steps, and assigned agent by mission ID"),
		mcplib.WithString("mission_id",
			mcplib.Required(),
			mcplib.Description("The mission ID to look up"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleGetMission,
	}
}

func (s *Server) listTriggersTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("list_triggers",
		mcplib.WithDescription("List currently enabled triggers across all projects"),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleListTriggers,
	}
}

func (s *Server) handleListProposals(ctx context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.ProposalLister == nil {
		return mcplib.NewToolResultError("proposal lister not configured"), nil
	}
	proposals, err := s.deps.ProposalLister.ListPendingProposals(ctx)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to list proposals", err), nil
	}
	data, err := json.Marshal(proposals)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal proposals", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func (s *Server) handleGetMission(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.MissionReader == nil {
		return mcplib.NewToolResultError("mission reader not configured"), nil
	}
	args := req.GetArguments()
	missionID, ok := args["mission_id"].(string)
	if !ok || missionID == "" {
		return mcplib.NewToolResultError("mission_id is required"), nil
	}
	m, err := s.deps.MissionReader.GetMission(ctx, missionID)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to get mission "+missionID, err), nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal mission", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func (s *Server) handleListTriggers(ctx context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.TriggerLister == nil {
		return mcplib.NewToolResultError("trigger lister not configured"), nil
	}
	triggers, err := s.deps.TriggerLister.ListEnabledTriggers(ctx)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to list triggers", err), nil
	}
	data, err := json.Marshal(triggers)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal triggers", err), nil
	}
	return toolResultJSON(string(data)), nil
}
