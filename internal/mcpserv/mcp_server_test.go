package mcpserv_test

import (
	"context"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmorales/segmint/internal/contract"
	"github.com/pmorales/segmint/internal/mcpserv"
	"github.com/pmorales/segmint/internal/store"
)

func testBaseConfig() *contract.Config {
	return &contract.Config{
		Location:         time.UTC,
		StartTime:        time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
		EndTime:          time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC),
		IdlePolicy:       "partial",
		GapThreshold:     30 * time.Minute,
		MergeGap:         3 * time.Minute,
		Consolidation:    time.Hour,
		MinBlock:         30 * time.Minute,
		BillingIncrement: 6 * time.Minute,
		IdleExcludeRatio: 0.80,
		Workers:          1,
		MatchLimit:       5,
		CommonCacheSize:  10,
	}
}

func TestMCPServerHandlers_ValidationErrors(t *testing.T) {
	baseCfg := testBaseConfig()
	stores := store.NewMemoryStores()
	s := mcpserv.NewMCPServer(baseCfg, stores)

	ctx := context.Background()

	t.Run("run_pipeline invalid date range", func(t *testing.T) {
		tool := s.GetTool("run_pipeline")
		require.NotNil(t, tool, "Tool run_pipeline should exist")

		req := mcp.CallToolRequest{
			Params: mcp.CallToolParams{
				Name: "run_pipeline",
				Arguments: map[string]any{
					"start": "not-a-date",
				},
			},
		}

		res, err := tool.Handler(ctx, req)
		require.NoError(t, err, "The MCP handler should not return a raw error for tool logic failures")
		assert.True(t, res.IsError, "The response should indicate an error state")
		assert.Contains(t, res.Content[0].(mcp.TextContent).Text, "invalid date range")
	})

	t.Run("run_pipeline invalid idle policy", func(t *testing.T) {
		tool := s.GetTool("run_pipeline")
		require.NotNil(t, tool)

		req := mcp.CallToolRequest{
			Params: mcp.CallToolParams{
				Name: "run_pipeline",
				Arguments: map[string]any{
					"idle_policy": "sometimes",
				},
			},
		}

		res, err := tool.Handler(ctx, req)
		require.NoError(t, err)
		assert.True(t, res.IsError)
		assert.Contains(t, res.Content[0].(mcp.TextContent).Text, "invalid idle policy")
	})

	t.Run("list_blocks invalid status", func(t *testing.T) {
		tool := s.GetTool("list_blocks")
		require.NotNil(t, tool)

		req := mcp.CallToolRequest{
			Params: mcp.CallToolParams{
				Name: "list_blocks",
				Arguments: map[string]any{
					"status": "archived",
				},
			},
		}

		res, err := tool.Handler(ctx, req)
		require.NoError(t, err)
		assert.True(t, res.IsError)
		assert.Contains(t, res.Content[0].(mcp.TextContent).Text, "invalid status")
	})

	t.Run("match_project missing query", func(t *testing.T) {
		tool := s.GetTool("match_project")
		require.NotNil(t, tool)

		req := mcp.CallToolRequest{
			Params: mcp.CallToolParams{
				Name:      "match_project",
				Arguments: map[string]any{},
			},
		}

		res, err := tool.Handler(ctx, req)
		require.NoError(t, err)
		assert.True(t, res.IsError)
		assert.Contains(t, res.Content[0].(mcp.TextContent).Text, "query is required")
	})
}

func TestMCPServerHandlers_EmptyStore(t *testing.T) {
	baseCfg := testBaseConfig()
	stores := store.NewMemoryStores()
	s := mcpserv.NewMCPServer(baseCfg, stores)

	ctx := context.Background()

	t.Run("list_blocks returns empty JSON", func(t *testing.T) {
		tool := s.GetTool("list_blocks")
		require.NotNil(t, tool)

		req := mcp.CallToolRequest{
			Params: mcp.CallToolParams{
				Name:      "list_blocks",
				Arguments: map[string]any{},
			},
		}

		res, err := tool.Handler(ctx, req)
		require.NoError(t, err)
		assert.False(t, res.IsError)
	})

	t.Run("pipeline_health reports rules stage", func(t *testing.T) {
		tool := s.GetTool("pipeline_health")
		require.NotNil(t, tool)

		req := mcp.CallToolRequest{
			Params: mcp.CallToolParams{
				Name:      "pipeline_health",
				Arguments: map[string]any{},
			},
		}

		res, err := tool.Handler(ctx, req)
		require.NoError(t, err)
		assert.False(t, res.IsError)
		assert.Contains(t, res.Content[0].(mcp.TextContent).Text, "rules")
	})
}
