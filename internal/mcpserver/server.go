// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the daily plan tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/planpanel/internal/apperr"
	"github.com/starford/planpanel/internal/plan"
	"github.com/starford/planpanel/internal/planservice"
)

// FormatResourceURI is the URI of the checklist format resource.
const FormatResourceURI = "planpanel://checklist-format"

// Server wraps the MCP server with the plan tools.
type Server struct {
	mcp *server.MCPServer
	svc *planservice.Service
}

// New creates a new MCP server with all plan tools registered.
func New(svc *planservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"planpanel",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	dateParam := mcp.WithString("date", mcp.Description("Day as YYYY-MM-DD; today when omitted"))

	s.mcp.AddTool(mcp.NewTool("get_plan",
		mcp.WithDescription("Read the plan of one day, with its checksum and checklist progress."),
		dateParam,
	), s.getPlan)

	s.mcp.AddTool(mcp.NewTool("save_plan",
		mcp.WithDescription("Replace the plan of one day. Content MUST follow the checklist format; "+
			"read it via get_checklist_format or the "+FormatResourceURI+" resource first."),
		dateParam,
		mcp.WithString("content", mcp.Required(), mcp.Description("Full new plan text")),
		mcp.WithString("if_match", mcp.Description("Checksum from get_plan; the save fails if the plan changed since")),
	), s.savePlan)

	s.mcp.AddTool(mcp.NewTool("toggle_task",
		mcp.WithDescription("Flip one checklist item between open and done. Lines that are not checklist items are left alone."),
		dateParam,
		mcp.WithNumber("line", mcp.Required(), mcp.Description("0-based line number within the plan")),
	), s.toggleTask)

	s.mcp.AddTool(mcp.NewTool("format_plan",
		mcp.WithDescription("Turn every non-blank line of a plan into a checklist item."),
		dateParam,
	), s.formatPlan)

	s.mcp.AddTool(mcp.NewTool("list_plans",
		mcp.WithDescription("List days that have a daily note, newest first, with done/total counts."),
		mcp.WithNumber("limit", mcp.Description("Max days to return (default 31)")),
	), s.listPlans)

	s.mcp.AddTool(mcp.NewTool("search_plans",
		mcp.WithDescription("Full-text search through all plans."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchPlans)

	s.mcp.AddTool(mcp.NewTool("get_checklist_format",
		mcp.WithDescription("Returns the plan checklist format. Call this before writing plans."),
	), s.getChecklistFormat)

	s.mcp.AddResource(
		mcp.NewResource(FormatResourceURI, "Checklist Format",
			mcp.WithResourceDescription("How daily plans are stored and written."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) key(req mcp.CallToolRequest) (plan.Key, error) {
	return s.svc.ResolveKey(req.GetString("date", ""))
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func errorResult(err error) *mcp.CallToolResult {
	if errors.Is(err, apperr.ErrConflict) {
		return mcp.NewToolResultError("plan changed since it was read; call get_plan and retry")
	}
	return mcp.NewToolResultError(err.Error())
}

func (s *Server) getPlan(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := s.key(req)
	if err != nil {
		return errorResult(err), nil
	}
	p, err := s.svc.Get(ctx, key)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(p), nil
}

func (s *Server) savePlan(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := s.key(req)
	if err != nil {
		return errorResult(err), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p, err := s.svc.Save(ctx, key, content, req.GetString("if_match", ""), planservice.SourceMCP)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(p), nil
}

func (s *Server) toggleTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := s.key(req)
	if err != nil {
		return errorResult(err), nil
	}
	line, err := req.RequireInt("line")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p, ok, err := s.svc.Toggle(ctx, key, line, planservice.SourceMCP)
	if err != nil {
		return errorResult(err), nil
	}
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("line %d of %s is not a checklist item", line, key)), nil
	}
	return jsonResult(p), nil
}

func (s *Server) formatPlan(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := s.key(req)
	if err != nil {
		return errorResult(err), nil
	}
	p, err := s.svc.Format(ctx, key, planservice.SourceMCP)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(p), nil
}

func (s *Server) listPlans(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rows, total, err := s.svc.List(ctx, req.GetInt("limit", 0), 0)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(map[string]any{"days": rows, "total": total}), nil
}

func (s *Server) searchPlans(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(results), nil
}

func (s *Server) getChecklistFormat(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ChecklistFormat), nil
}

func (s *Server) readFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      FormatResourceURI,
			MIMEType: "text/markdown",
			Text:     ChecklistFormat,
		},
	}, nil
}
