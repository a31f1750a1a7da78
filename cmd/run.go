package cmd

import (
	"github.com/spf13/cobra"

	"github.com/pmorales/segmint/core"
	"github.com/pmorales/segmint/internal/contract"
	"github.com/pmorales/segmint/internal/store"
)

// runCmd runs the full activity-to-blocks pipeline.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Build billable time blocks from recorded desktop activity.",
	Long: `Run the full pipeline over the configured date range.

For each day in the range, the pipeline:
- Segments raw activity snapshots into contiguous spans of focused work
- Extracts project identifiers, keywords and meeting evidence
- Matches each span against the project catalog
- Consolidates matched spans into billable blocks
- Classifies every block as billable, non-billable or pending review

Each day is processed independently, so one bad day never blocks the rest
of the range. Blocks that fail classification are flagged and reported in
the run summary instead of aborting the run.

Examples:
  # Process yesterday with defaults
  segmint run --start "1 day ago" --end "today"

  # Process a full week, excluding idle time entirely
  segmint run --start 2026-08-17 --end 2026-08-24 --idle-policy exclude

  # Tighter blocks with a 15-minute billing increment
  segmint run --min-block 900 --billing-increment 900

  # Export the run's blocks straight to parquet
  segmint run --output parquet --output-file blocks.parquet`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteRunPipeline(rootCtx, cfg, store.Manager); err != nil {
			contract.LogFatal("Cannot run pipeline", err)
		}
	},
}

// proposeCmd builds a single block for a manually selected range.
var proposeCmd = &cobra.Command{
	Use:   "propose",
	Short: "Propose one block for an explicit time range.",
	Long: `Build a single proposed block covering exactly the given range.

Unlike 'run', this skips day splitting and gap detection: all activity
inside the range is treated as one candidate block, matched and
classified the same way the pipeline would. Useful for backfilling a
known meeting or work session that the automatic segmentation missed.

Examples:
  # Propose a block for a two-hour workshop
  segmint propose --start 2026-08-20T14:00:00 --end 2026-08-20T16:00:00`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteProposeSelection(rootCtx, cfg, store.Manager); err != nil {
			contract.LogFatal("Cannot propose block", err)
		}
	},
}
