// Package mcp exposes read-only views of the game server to MCP clients:
// server status, user search, the moderation queue and town details.
package mcp

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/springfield-ops/townctl/internal/api"
	"github.com/springfield-ops/townctl/internal/audit"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Backend is the part of the game server API the tools read.
// *api.Client satisfies it.
type Backend interface {
	DashboardData(ctx context.Context) (*api.DashboardData, error)
	Uptime(ctx context.Context) (time.Duration, error)
	SearchUsers(ctx context.Context, field, term string) ([]api.User, error)
	PendingTowns(ctx context.Context) ([]api.PendingTown, error)
	TownInfo(ctx context.Context, email string) (*api.TownInfo, error)
}

// Server wraps an MCP server that exposes the game server tools.
type Server struct {
	backend Backend
	audit   *audit.Store
	mcp     *server.MCPServer
}

// NewServer creates a new MCP server. audit may be nil, in which case the
// audit_history tool is not offered.
func NewServer(backend Backend, au *audit.Store) *Server {
	s := &Server{
		backend: backend,
		audit:   au,
	}

	s.mcp = server.NewMCPServer(
		"townctl",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(serverStatusTool, s.handleServerStatus)
	s.mcp.AddTool(searchUsersTool, s.handleSearchUsers)
	s.mcp.AddTool(listPendingTownsTool, s.handleListPendingTowns)
	s.mcp.AddTool(townInfoTool, s.handleTownInfo)
	if s.audit != nil {
		s.mcp.AddTool(auditHistoryTool, s.handleAuditHistory)
	}
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
