package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pmorales/segmint/core"
	"github.com/pmorales/segmint/internal/contract"
	"github.com/pmorales/segmint/internal/store"
	"github.com/pmorales/segmint/schema"
)

// blocksCmd groups block review operations.
var blocksCmd = &cobra.Command{
	Use:   "blocks",
	Short: "Review and export proposed time blocks",
	Long: `Review the blocks produced by previous pipeline runs.

Blocks move through a simple review lifecycle:
  proposed -> accepted or rejected

Subcommands:
  list   - Show blocks in the configured date range
  accept - Mark a block as accepted for billing
  reject - Mark a block as rejected
  export - Write accepted blocks to a parquet file

Examples:
  # List this week's pending blocks
  segmint blocks list --start "7 days ago" --status proposed

  # Accept a block after review
  segmint blocks accept 0198a3f2-1c44-7890-a1b2-c3d4e5f60718

  # Export everything accepted this month
  segmint blocks export --start "1 month ago" --output-file august.parquet`,
}

// blocksListCmd lists blocks in the configured range.
var blocksListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show blocks in the configured date range",
	Long: `List proposed blocks with their project, category and review status.

Use --status to narrow the list to one review state. Without it, every
block overlapping the date range is shown regardless of status.

Examples:
  # Everything from the last two weeks
  segmint blocks list --start "2 weeks ago"

  # Only blocks still waiting for review
  segmint blocks list --status proposed

  # Machine-readable output for scripting
  segmint blocks list --output json`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteListBlocks(rootCtx, cfg, store.Manager); err != nil {
			contract.LogFatal("Cannot list blocks", err)
		}
	},
}

// blocksAcceptCmd accepts a block by ID.
var blocksAcceptCmd = &cobra.Command{
	Use:   "accept <block-id>",
	Short: "Mark a block as accepted for billing",
	Long: `Accept a proposed block, recording the review time.

Accepting an already accepted block is a no-op. Accepted blocks are
picked up by 'blocks export'.

Examples:
  segmint blocks accept 0198a3f2-1c44-7890-a1b2-c3d4e5f60718`,
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, args []string) {
		if err := core.ExecuteReviewBlock(rootCtx, cfg, store.Manager, args[0], schema.AcceptedStatus); err != nil {
			contract.LogFatal("Cannot accept block", err)
		}
		fmt.Printf("Block %s accepted.\n", args[0])
	},
}

// blocksRejectCmd rejects a block by ID.
var blocksRejectCmd = &cobra.Command{
	Use:   "reject <block-id>",
	Short: "Mark a block as rejected",
	Long: `Reject a proposed block, recording the review time.

Rejected blocks stay in the store for auditing but are never exported.

Examples:
  segmint blocks reject 0198a3f2-1c44-7890-a1b2-c3d4e5f60718`,
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, args []string) {
		if err := core.ExecuteReviewBlock(rootCtx, cfg, store.Manager, args[0], schema.RejectedStatus); err != nil {
			contract.LogFatal("Cannot reject block", err)
		}
		fmt.Printf("Block %s rejected.\n", args[0])
	},
}

// blocksExportCmd exports accepted blocks to parquet.
var blocksExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write accepted blocks to a parquet file",
	Long: `Export all accepted blocks in the date range to a parquet file.

The file is suitable for loading into billing systems or data warehouses.
Requires --output-file.

Examples:
  # Export last month's accepted work
  segmint blocks export --start "1 month ago" --output-file august.parquet`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteExportBlocks(rootCtx, cfg, store.Manager); err != nil {
			contract.LogFatal("Cannot export blocks", err)
		}
	},
}
