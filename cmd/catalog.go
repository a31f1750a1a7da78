package cmd

import (
	"github.com/spf13/cobra"

	"github.com/pmorales/segmint/core"
	"github.com/pmorales/segmint/internal/contract"
	"github.com/pmorales/segmint/internal/store"
)

// catalogCmd groups project catalog operations.
var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the project catalog used for matching",
	Long: `Manage the catalog of billable project codes.

Every block the pipeline builds is matched against this catalog, so the
matcher is only as good as the entries loaded here. Inactive entries are
kept for history but never matched.

Subcommands:
  seed   - Load or update entries from a JSON file
  status - Show entry counts and sync freshness
  search - Try the matcher against an ad-hoc query

Examples:
  # Load this quarter's project list
  segmint catalog seed --seed-file projects.json

  # Verify the catalog is fresh before a run
  segmint catalog status`,
}

// catalogSeedCmd loads catalog entries from a JSON file.
var catalogSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load or update catalog entries from a JSON file",
	Long: `Upsert project entries from a JSON array into the catalog.

Each element needs at least a code and a description. Existing codes are
updated in place; match counts survive the update. Entries marked
inactive are removed from the search index but kept for history.

Example file:
  [
    {"code": "ACME-1042", "description": "Acme portal rebuild", "active": true},
    {"code": "INT-OPS", "description": "Internal operations", "active": true}
  ]

Examples:
  segmint catalog seed --seed-file projects.json`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteCatalogSeed(rootCtx, cfg, store.Manager); err != nil {
			contract.LogFatal("Cannot seed catalog", err)
		}
	},
}

// catalogStatusCmd shows catalog freshness.
var catalogStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show catalog entry counts and sync freshness",
	Long: `Display the state of the project catalog.

Shows total and active entry counts, when the catalog was last seeded,
and how many matches have been recorded against it. A stale catalog
degrades match quality, so check this before long pipeline runs.

Examples:
  segmint catalog status`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteCatalogStatus(rootCtx, cfg, store.Manager); err != nil {
			contract.LogFatal("Cannot get catalog status", err)
		}
	},
}

// catalogSearchCmd runs the matcher against an ad-hoc query.
var catalogSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Try the matcher against an ad-hoc query",
	Long: `Run the project matcher over a free-form query string.

The query goes through the same identifier and keyword extraction the
pipeline applies to window titles, so this is the quickest way to see
why a block matched (or failed to match) a given project.

Examples:
  # Does this ticket reference resolve?
  segmint catalog search "ACME-1042 checkout flow"

  # Show more candidates
  segmint catalog search "sprint planning" --match-limit 10`,
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, args []string) {
		if err := core.ExecuteMatchProject(rootCtx, cfg, store.Manager, args[0]); err != nil {
			contract.LogFatal("Cannot search catalog", err)
		}
	},
}
