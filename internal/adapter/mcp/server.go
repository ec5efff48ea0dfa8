// Package mcp exposes a read-only Model Context Protocol server so an
// external AI assistant can introspect orchestration state: pending
// proposals, a mission's status, and configured triggers.
package mcp

import (
	"context"
	"log/slog"
	"net/http"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/forgewright/orchestrator/internal/domain/mission"
	"github.com/forgewright/orchestrator/internal/domain/proposal"
	"github.com/forgewright/orchestrator/internal/domain/trigger"
)

// ProposalLister reads pending proposals for introspection.
type ProposalLister interface {
	ListPendingProposals(ctx context.Context) ([]proposal.Proposal, error)
}

// MissionReader reads a single mission by ID.
type MissionReader interface {
	GetMission(ctx context.Context, id string) (*mission.Mission, error)
}

// TriggerLister reads configured triggers.
type TriggerLister interface {
	ListEnabledTriggers(ctx context.Context) ([]trigger.Trigger, error)
}

// ServerConfig configures the MCP server's HTTP listener and identity.
type ServerConfig struct {
	Addr    string
	Name    string
	Version string
}

// ServerDeps wires the read-only store accessors the tools call into.
// Any field left nil makes its tool respond with an error result rather
// than panicking.
type ServerDeps struct {
	ProposalLister ProposalLister
	MissionReader  MissionReader
	TriggerLister  TriggerLister
}

// Server hosts the MCP tool set over streamable HTTP.
type Server struct {
	cfg       ServerConfig
	deps      ServerDeps
	mcpServer *mcpserver.MCPServer
	httpSrv   *http.Server
}

// NewServer constructs the MCP server and registers its tools.
func NewServer(cfg ServerConfig, deps ServerDeps) *Server {
	s := &Server{
		cfg:  cfg,
		deps: deps,
		mcpServer: mcpserver.NewMCPServer(
			cfg.Name, cfg.Version,
		),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying mcp-go server, exposed for tests and
// for mounting a transport.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// Start begins serving the MCP tool set over streamable HTTP.
func (s *Server) Start() error {
	handler := mcpserver.NewStreamableHTTPServer(s.mcpServer)
	s.httpSrv = &http.Server{Addr: s.cfg.Addr, Handler: handler}
	slog.Info("mcp server starting", "addr", s.cfg.Addr)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mcp server exited", "error", err)
		}
	}()
	return nil
}

// Stop gracefully shuts down the MCP HTTP listener.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	slog.Info("mcp server stopping")
	return s.httpSrv.Shutdown(ctx)
}

// toolResultJSON wraps a JSON-encoded string as a successful tool result.
func toolResultJSON(data string) *mcplib.CallToolResult {
	return mcplib.NewToolResultText(data)
}
