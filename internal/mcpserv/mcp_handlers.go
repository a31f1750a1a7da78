package mcpserv

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/pmorales/segmint/core"
	"github.com/pmorales/segmint/internal/contract"
	"github.com/pmorales/segmint/schema"
)

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	baseCfg *contract.Config
	stores  contract.StoreManager
}

func (h *toolHandler) handleRunPipeline(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg := h.baseCfg.Clone()
	if err := contract.RevalidateTimeRange(cfg, request.GetString("start", ""), request.GetString("end", "")); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid date range: %v", err)), nil
	}
	if p := request.GetString("idle_policy", ""); p != "" {
		policy := schema.IdlePolicy(p)
		if _, ok := schema.ValidIdlePolicies[policy]; !ok {
			return mcp.NewToolResultError(fmt.Sprintf("invalid idle policy: %s", p)), nil
		}
		cfg.IdlePolicy = policy
	}

	pipeline := core.NewPipeline(cfg, h.stores)
	summary, err := pipeline.Run(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("pipeline run failed: %v", err)), nil
	}

	jsonData, _ := json.MarshalIndent(summary, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handleListBlocks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg := h.baseCfg.Clone()
	if err := contract.RevalidateTimeRange(cfg, request.GetString("start", ""), request.GetString("end", "")); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid date range: %v", err)), nil
	}

	rangeStart, _ := schema.DayBounds(cfg.StartTime, cfg.Location)
	_, rangeEnd := schema.DayBounds(cfg.EndTime, cfg.Location)

	var blocks []schema.ProposedBlock
	var err error
	if s := request.GetString("status", ""); s != "" {
		status := schema.BlockStatus(s)
		if _, ok := schema.ValidBlockStatuses[status]; !ok {
			return mcp.NewToolResultError(fmt.Sprintf("invalid status: %s", s)), nil
		}
		blocks, err = h.stores.Blocks().ListByStatus(ctx, status, rangeStart, rangeEnd)
	} else {
		blocks, err = h.stores.Blocks().QueryRange(ctx, rangeStart, rangeEnd)
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("block query failed: %v", err)), nil
	}

	jsonData, _ := json.MarshalIndent(blocks, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handleMatchProject(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg := h.baseCfg.Clone()
	query := request.GetString("query", "")
	if query == "" {
		return mcp.NewToolResultError("query is required"), nil
	}
	if l := request.GetInt("limit", 0); l > 0 {
		cfg.MatchLimit = l
	}

	matches, err := core.GetProjectMatches(ctx, cfg, h.stores, query)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("match failed: %v", err)), nil
	}

	jsonData, _ := json.MarshalIndent(matches, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handlePipelineHealth(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pipeline := core.NewPipeline(h.baseCfg, h.stores)
	health, err := pipeline.Health(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("health check failed: %v", err)), nil
	}

	jsonData, _ := json.MarshalIndent(health, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}
