package cmd

import (
	"github.com/spf13/cobra"

	"github.com/pmorales/segmint/core"
	"github.com/pmorales/segmint/internal/contract"
	"github.com/pmorales/segmint/internal/store"
)

// checkCmd reports pipeline readiness.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify classifier stages and catalog readiness.",
	Long: `Check every pipeline stage and report whether it is ready.

Verifies:
- Decision tree model (loadable, structurally valid)
- Logistic regression model (loadable, weights present)
- Rule-based classifier (always available)
- Project catalog (reachable, has active entries, not stale)

The pipeline runs even when optional stages are unavailable; it degrades
to the next stage in the chain. Use this command to see what a run
would actually have at its disposal.

Examples:
  # Check with configured model paths
  segmint check

  # Check a candidate model before rollout
  segmint check --tree-model models/tree-v2.json`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteCheck(rootCtx, cfg, store.Manager); err != nil {
			contract.LogFatal("Cannot run readiness check", err)
		}
	},
}
