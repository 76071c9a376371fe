package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/bugboard/internal/bugs"
	"github.com/joescharf/bugboard/internal/models"
	"github.com/joescharf/bugboard/internal/views"
)

// Server wraps the bug service and exposes it as MCP tools.
type Server struct {
	bugs    *bugs.Service
	version string
}

// NewServer creates the MCP server wrapper.
func NewServer(svc *bugs.Service, version string) *Server {
	if version == "" {
		version = "dev"
	}
	return &Server{bugs: svc, version: version}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("bugboard", s.version, server.WithToolCapabilities(true))

	srv.AddTool(s.listBugsTool())
	srv.AddTool(s.getBugTool())
	srv.AddTool(s.createBugTool())
	srv.AddTool(s.updateBugTool())
	srv.AddTool(s.deleteBugTool())
	srv.AddTool(s.bugStatsTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

func filterOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("status", mcp.Description("Filter by status"), mcp.Enum("open", "in-progress", "resolved", "closed")),
		mcp.WithString("priority", mcp.Description("Filter by priority"), mcp.Enum("low", "medium", "high", "critical")),
		mcp.WithString("assignee", mcp.Description("Filter by exact assignee name")),
		mcp.WithBoolean("reproducible", mcp.Description("Filter by reproducibility")),
		mcp.WithString("query", mcp.Description("Case-insensitive search over title, description, assignee, reporter and tags")),
	}
}

// bugs_list
func (s *Server) listBugsTool() (mcp.Tool, server.ToolHandlerFunc) {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription("List bugs in creation order. Returns a JSON array of bugs. All filters are optional and combine with AND."),
	}, filterOptions()...)
	return mcp.NewTool("bugs_list", opts...), s.handleListBugs
}

func (s *Server) handleListBugs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := s.filtered(ctx, request)
	if err != nil {
		return toolError("failed to list bugs", err), nil
	}
	return jsonResult(list)
}

// bugs_get
func (s *Server) getBugTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("bugs_get",
		mcp.WithDescription("Get one bug by id. Returns the bug as JSON."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Bug ID")),
	)
	return tool, s.handleGetBug
}

func (s *Server) handleGetBug(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}
	bug, err := s.bugs.Get(ctx, id)
	if err != nil {
		return toolError("failed to get bug", err), nil
	}
	return jsonResult(bug)
}

// bugs_create
func (s *Server) createBugTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("bugs_create",
		mcp.WithDescription("Report a new bug. The bug starts in status open. Returns the created bug as JSON."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Short title, at most 100 characters")),
		mcp.WithString("description", mcp.Required(), mcp.Description("What goes wrong, 10 to 1000 characters")),
		mcp.WithString("priority", mcp.Required(), mcp.Description("Priority"), mcp.Enum("low", "medium", "high", "critical")),
		mcp.WithString("assignee", mcp.Required(), mcp.Description("Person responsible for the fix")),
		mcp.WithString("reporter", mcp.Required(), mcp.Description("Person reporting the bug")),
		mcp.WithString("environment", mcp.Required(), mcp.Description("Where the bug occurs, e.g. browser or OS")),
		mcp.WithBoolean("reproducible", mcp.Description("Whether the bug can be reproduced reliably")),
		mcp.WithString("steps_to_reproduce", mcp.Description("Steps to reproduce")),
		mcp.WithArray("tags", mcp.Description("Tags"), mcp.WithStringItems()),
	)
	return tool, s.handleCreateBug
}

func (s *Server) handleCreateBug(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in := models.BugInput{
		Title:            request.GetString("title", ""),
		Description:      request.GetString("description", ""),
		Priority:         models.Priority(request.GetString("priority", "")),
		Assignee:         request.GetString("assignee", ""),
		Reporter:         request.GetString("reporter", ""),
		Environment:      request.GetString("environment", ""),
		StepsToReproduce: request.GetString("steps_to_reproduce", ""),
		Tags:             request.GetStringSlice("tags", nil),
	}
	if _, ok := request.GetArguments()["reproducible"]; ok {
		v := request.GetBool("reproducible", false)
		in.Reproducible = &v
	}

	bug, err := s.bugs.Create(ctx, in)
	if err != nil {
		return toolError("failed to create bug", err), nil
	}
	return jsonResult(bug)
}

// bugs_update
func (s *Server) updateBugTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("bugs_update",
		mcp.WithDescription("Update fields of an existing bug. Only the fields provided change. Any status may move to any other. Returns the updated bug as JSON."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Bug ID")),
		mcp.WithString("status", mcp.Description("New status"), mcp.Enum("open", "in-progress", "resolved", "closed")),
		mcp.WithString("priority", mcp.Description("New priority"), mcp.Enum("low", "medium", "high", "critical")),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("description", mcp.Description("New description")),
		mcp.WithString("assignee", mcp.Description("New assignee")),
		mcp.WithString("reporter", mcp.Description("New reporter")),
		mcp.WithString("environment", mcp.Description("New environment")),
		mcp.WithBoolean("reproducible", mcp.Description("New reproducibility flag")),
		mcp.WithString("steps_to_reproduce", mcp.Description("New steps to reproduce")),
		mcp.WithArray("tags", mcp.Description("Replacement tag list"), mcp.WithStringItems()),
	)
	return tool, s.handleUpdateBug
}

func (s *Server) handleUpdateBug(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}

	args := request.GetArguments()
	var patch models.BugPatch
	patch.Title = optString(request, args, "title")
	patch.Description = optString(request, args, "description")
	patch.Assignee = optString(request, args, "assignee")
	patch.Reporter = optString(request, args, "reporter")
	patch.Environment = optString(request, args, "environment")
	patch.StepsToReproduce = optString(request, args, "steps_to_reproduce")
	if v := optString(request, args, "status"); v != nil {
		st := models.Status(*v)
		patch.Status = &st
	}
	if v := optString(request, args, "priority"); v != nil {
		p := models.Priority(*v)
		patch.Priority = &p
	}
	if _, ok := args["reproducible"]; ok {
		v := request.GetBool("reproducible", false)
		patch.Reproducible = &v
	}
	if _, ok := args["tags"]; ok {
		tags := request.GetStringSlice("tags", []string{})
		patch.Tags = &tags
	}

	if patch.IsEmpty() {
		return mcp.NewToolResultError("no fields provided to update; specify at least one of: status, priority, title, description, assignee, reporter, environment, reproducible, steps_to_reproduce, tags"), nil
	}

	bug, err := s.bugs.Update(ctx, id, patch)
	if err != nil {
		return toolError("failed to update bug", err), nil
	}
	return jsonResult(bug)
}

// bugs_delete
func (s *Server) deleteBugTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("bugs_delete",
		mcp.WithDescription("Permanently delete a bug. Deleting an id that no longer exists is an error."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Bug ID")),
	)
	return tool, s.handleDeleteBug
}

func (s *Server) handleDeleteBug(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}
	if err := s.bugs.Delete(ctx, id); err != nil {
		return toolError("failed to delete bug", err), nil
	}
	return jsonResult(map[string]string{"message": "Bug deleted successfully", "id": id})
}

// bugs_stats
func (s *Server) bugStatsTool() (mcp.Tool, server.ToolHandlerFunc) {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription("Summarize bugs: total, counts per status and priority, and the percentage resolved. Accepts the same filters as bugs_list."),
	}, filterOptions()...)
	return mcp.NewTool("bugs_stats", opts...), s.handleBugStats
}

func (s *Server) handleBugStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := s.filtered(ctx, request)
	if err != nil {
		return toolError("failed to compute stats", err), nil
	}
	return jsonResult(views.ComputeStats(list))
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (s *Server) filtered(ctx context.Context, request mcp.CallToolRequest) ([]*models.Bug, error) {
	c := views.Criteria{
		Status:   models.Status(request.GetString("status", "")),
		Priority: models.Priority(request.GetString("priority", "")),
		Assignee: request.GetString("assignee", ""),
	}
	if c.Status != "" && !c.Status.Valid() {
		return nil, fmt.Errorf("unknown status %q", c.Status)
	}
	if c.Priority != "" && !c.Priority.Valid() {
		return nil, fmt.Errorf("unknown priority %q", c.Priority)
	}
	if _, ok := request.GetArguments()["reproducible"]; ok {
		v := request.GetBool("reproducible", false)
		c.Reproducible = &v
	}

	all, err := s.bugs.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return views.Apply(all, c, request.GetString("query", "")), nil
}

func optString(request mcp.CallToolRequest, args map[string]any, key string) *string {
	if _, ok := args[key]; !ok {
		return nil
	}
	v := request.GetString(key, "")
	return &v
}

// toolError reports err as a tool-level failure. Validation errors keep
// their full field list.
func toolError(prefix string, err error) *mcp.CallToolResult {
	var nf *bugs.NotFoundError
	if errors.As(err, &nf) {
		return mcp.NewToolResultError(nf.Error())
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s: %v", prefix, err))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
