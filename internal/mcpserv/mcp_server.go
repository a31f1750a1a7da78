// Package mcpserv provides the Model Context Protocol (MCP) server implementation.
package mcpserv

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/pmorales/segmint/internal/contract"
)

// NewMCPServer initializes and configures the Segmint MCP server without starting it.
// This is exposed for unit testing.
func NewMCPServer(baseCfg *contract.Config, stores contract.StoreManager) *server.MCPServer {
	s := server.NewMCPServer(
		"Segmint Pipeline Server",
		"1.0.0",
		server.WithLogging(),
	)

	h := &toolHandler{
		baseCfg: baseCfg,
		stores:  stores,
	}

	// --- 1. Tool: run_pipeline ---
	s.AddTool(mcp.NewTool("run_pipeline",
		mcp.WithDescription("Build billable time blocks from recorded desktop activity over a date range."),
		mcp.WithString("start", mcp.Description("Start of the range in ISO8601 or time ago (e.g., '2 days ago'). Defaults to the configured start.")),
		mcp.WithString("end", mcp.Description("End of the range in ISO8601 or time ago. Defaults to the configured end.")),
		mcp.WithString("idle_policy", mcp.Description("How idle time is handled (exclude, include, partial)."), mcp.Enum("exclude", "include", "partial")),
	), h.handleRunPipeline)

	// --- 2. Tool: list_blocks ---
	s.AddTool(mcp.NewTool("list_blocks",
		mcp.WithDescription("List proposed time blocks with project attribution and review status."),
		mcp.WithString("start", mcp.Description("Start of the range in ISO8601 or time ago.")),
		mcp.WithString("end", mcp.Description("End of the range in ISO8601 or time ago.")),
		mcp.WithString("status", mcp.Description("Filter by review status."), mcp.Enum("proposed", "accepted", "rejected")),
	), h.handleListBlocks)

	// --- 3. Tool: match_project ---
	s.AddTool(mcp.NewTool("match_project",
		mcp.WithDescription("Match free-form text against the project catalog and return ranked candidates."),
		mcp.WithString("query", mcp.Description("Text to match, e.g. a window title or ticket reference."), mcp.Required()),
		mcp.WithNumber("limit", mcp.Description("Limit the number of candidates returned.")),
	), h.handleMatchProject)

	// --- 4. Tool: pipeline_health ---
	s.AddTool(mcp.NewTool("pipeline_health",
		mcp.WithDescription("Report readiness of every classifier stage and the project catalog."),
	), h.handlePipelineHealth)

	return s
}

// StartMCPServer starts the Segmint MCP server.
func StartMCPServer(_ context.Context, baseCfg *contract.Config, stores contract.StoreManager) error {
	s := NewMCPServer(baseCfg, stores)
	return server.ServeStdio(s)
}
