package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/springfield-ops/townctl/internal/api"
)

// serverStatusTool defines the server_status MCP tool.
var serverStatusTool = mcp.NewTool("server_status",
	mcp.WithDescription("Get the game server's address, current event, active players and uptime."),
)

// searchUsersTool defines the search_users MCP tool.
var searchUsersTool = mcp.NewTool("search_users",
	mcp.WithDescription("Search game users by a field. Returns email, user id, display name and town name."),
	mcp.WithString("term",
		mcp.Required(),
		mcp.Description("Text to search for"),
	),
	mcp.WithString("field",
		mcp.Description("Field to search (default email)"),
		mcp.Enum(api.SearchFields...),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of users to return (default 25)"),
	),
)

// listPendingTownsTool defines the list_pending_towns MCP tool.
var listPendingTownsTool = mcp.NewTool("list_pending_towns",
	mcp.WithDescription("List publicly submitted towns waiting for review."),
)

// townInfoTool defines the town_info MCP tool.
var townInfoTool = mcp.NewTool("town_info",
	mcp.WithDescription("Get whether a user has a town, its size and when it was last saved."),
	mcp.WithString("email",
		mcp.Required(),
		mcp.Description("The user's email"),
	),
)

// auditHistoryTool defines the audit_history MCP tool.
var auditHistoryTool = mcp.NewTool("audit_history",
	mcp.WithDescription("List recent operator actions recorded by townctl, newest first."),
	mcp.WithString("target",
		mcp.Description("Only actions on this email or id"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of entries (default 20)"),
	),
)
