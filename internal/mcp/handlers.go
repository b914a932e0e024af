package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/springfield-ops/townctl/internal/api"
	"github.com/springfield-ops/townctl/internal/audit"
	"github.com/springfield-ops/townctl/internal/dashboard"
	"github.com/springfield-ops/townctl/internal/towns"
)

// handleServerStatus summarises the dashboard data.
func (s *Server) handleServerStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := s.backend.DashboardData(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("fetching server status failed: %s", api.Message(err))), nil
	}
	dashboard.FixPlaceholders(data)

	players := dashboard.Unknown
	if n, ok := data.Players(); ok {
		players = fmt.Sprintf("%d", n)
	}
	uptime := dashboard.UptimeError
	if d, err := s.backend.Uptime(ctx); err == nil {
		uptime = api.FormatUptime(d)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Server: %s:%s\n", data.ServerIP, data.GamePort)
	fmt.Fprintf(&sb, "Current event: %s\n", data.CurrentEvent)
	fmt.Fprintf(&sb, "Active players: %s\n", players)
	fmt.Fprintf(&sb, "Uptime: %s\n", uptime)
	if sched := data.Schedule(); len(sched) > 0 {
		sb.WriteString("\nEvents:\n")
		for _, e := range sched {
			mark := " "
			if e.Current {
				mark = "*"
			}
			fmt.Fprintf(&sb, "%s %d %s\n", mark, e.Time, e.Name)
		}
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// handleSearchUsers searches the game directory.
func (s *Server) handleSearchUsers(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	term, err := request.RequireString("term")
	if err != nil || strings.TrimSpace(term) == "" {
		return mcp.NewToolResultError("missing required parameter: term"), nil
	}
	field := request.GetString("field", "email")
	limit := request.GetInt("limit", 25)
	if limit <= 0 {
		limit = 25
	}

	users, err := s.backend.SearchUsers(ctx, field, strings.TrimSpace(term))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %s", api.Message(err))), nil
	}
	if len(users) == 0 {
		return mcp.NewToolResultText("No users found"), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d user(s):\n", len(users))
	for i, u := range users {
		if i == limit {
			fmt.Fprintf(&sb, "... %d more\n", len(users)-limit)
			break
		}
		fmt.Fprintf(&sb, "- %s (user id %s)", u.Email, orDash(u.UserID))
		if u.DisplayName != "" {
			fmt.Fprintf(&sb, ", %s", u.DisplayName)
		}
		if u.TownName != "" {
			fmt.Fprintf(&sb, ", town %q", u.TownName)
		}
		sb.WriteString("\n")
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// handleListPendingTowns lists submissions awaiting review.
func (s *Server) handleListPendingTowns(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	all, err := s.backend.PendingTowns(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing pending towns failed: %s", api.Message(err))), nil
	}

	var sb strings.Builder
	n := 0
	for _, t := range all {
		if t.Status != "" && t.Status != api.PendingStatus {
			continue
		}
		n++
		fmt.Fprintf(&sb, "\n--- %s ---\n", t.ID)
		fmt.Fprintf(&sb, "Town: %s\nFrom: %s\n", orDash(t.TownName), t.Email)
		if t.FileSize > 0 {
			fmt.Fprintf(&sb, "Size: %s\n", towns.FormatSize(t.FileSize))
		}
		if ts := t.Submitted(); !ts.IsZero() {
			fmt.Fprintf(&sb, "Submitted: %s\n", ts.UTC().Format(time.RFC3339))
		}
		if t.Description != "" {
			fmt.Fprintf(&sb, "\n%s\n", t.Description)
		}
	}
	if n == 0 {
		return mcp.NewToolResultText("No towns are waiting for review."), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%d town(s) pending:\n", n) + sb.String()), nil
}

// handleTownInfo reports on one user's town.
func (s *Server) handleTownInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	email, err := request.RequireString("email")
	if err != nil || email == "" {
		return mcp.NewToolResultError("missing required parameter: email"), nil
	}

	info, err := s.backend.TownInfo(ctx, email)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("fetching town info failed: %s", api.Message(err))), nil
	}
	if !info.HasTown {
		return mcp.NewToolResultText(fmt.Sprintf("%s has no town on the server.", email)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s has a town.\n", email)
	fmt.Fprintf(&sb, "Size: %s\n", towns.FormatSize(info.Size))
	if m := info.Modified(); !m.IsZero() {
		fmt.Fprintf(&sb, "Last saved: %s\n", m.UTC().Format(time.RFC3339))
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// handleAuditHistory lists recent audit entries.
func (s *Server) handleAuditHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := request.GetInt("limit", 20)
	if limit <= 0 {
		limit = 20
	}
	entries, err := s.audit.Query(ctx, audit.QueryFilter{
		Target: request.GetString("target", ""),
		Limit:  limit,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("reading audit log failed: %v", err)), nil
	}
	if len(entries) == 0 {
		return mcp.NewToolResultText("No recorded actions."), nil
	}

	var sb strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&sb, "%s %s %s %s %s", e.Timestamp.UTC().Format(time.RFC3339), e.Actor, e.Action, orDash(e.Target), e.Outcome)
		if e.Error != "" {
			fmt.Fprintf(&sb, " (%s)", e.Error)
		}
		sb.WriteString("\n")
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
