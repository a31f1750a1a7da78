// Package cmd defines the command-line interface for segmint.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pmorales/segmint/internal/contract"
	"github.com/pmorales/segmint/schema"
)

func init() {
	// Call initConfig on Cobra's initialization
	cobra.OnInitialize(initConfig)

	// Add primary subcommands to the root command
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(proposeCmd)
	rootCmd.AddCommand(blocksCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(storeCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(versionCmd)

	// Add the blocks subcommands to the parent blocks command
	blocksCmd.AddCommand(blocksListCmd)
	blocksCmd.AddCommand(blocksAcceptCmd)
	blocksCmd.AddCommand(blocksRejectCmd)
	blocksCmd.AddCommand(blocksExportCmd)

	// Add the catalog subcommands to the parent catalog command
	catalogCmd.AddCommand(catalogSeedCmd)
	catalogCmd.AddCommand(catalogStatusCmd)
	catalogCmd.AddCommand(catalogSearchCmd)

	// Add the store subcommands to the parent store command
	storeCmd.AddCommand(storeStatusCmd)
	storeCmd.AddCommand(storeClearCmd)
	storeCmd.AddCommand(storeMigrateCmd)

	// Bind all persistent flags of rootCmd to Viper
	rootCmd.PersistentFlags().String("start", "", "Start date in ISO8601, a lookback like 7d, or time ago")
	rootCmd.PersistentFlags().String("end", "", "End date in ISO8601, a lookback like 7d, or time ago")
	rootCmd.PersistentFlags().String("timezone", "", "IANA timezone for day boundaries (default: system local)")
	rootCmd.PersistentFlags().String("idle-policy", string(schema.IdlePartial), "Idle handling: exclude or include or partial")
	rootCmd.PersistentFlags().Int("gap-threshold", contract.DefaultGapThresholdSecs, "Seconds of silence that start a new segment")
	rootCmd.PersistentFlags().Int("merge-gap", contract.DefaultMergeGapSecs, "Seconds below which same-app segments merge into one block")
	rootCmd.PersistentFlags().Int("consolidation-window", contract.DefaultConsolidationSecs, "Seconds below which same-project blocks consolidate")
	rootCmd.PersistentFlags().Int("min-block", contract.DefaultMinBlockSecs, "Blocks shorter than this many seconds are flagged for review")
	rootCmd.PersistentFlags().Int("billing-increment", contract.DefaultBillingSecs, "Billable time rounds up to this many seconds")
	rootCmd.PersistentFlags().Float64("idle-exclude-ratio", contract.DefaultIdleExcludeRatio, "Partial policy auto-excludes spans above this idle ratio")
	rootCmd.PersistentFlags().IntP("limit", "l", contract.DefaultResultLimit, "Number of results to display")
	rootCmd.PersistentFlags().Int("workers", contract.DefaultWorkers, "Number of concurrent workers")
	rootCmd.PersistentFlags().Int("precision", contract.DefaultPrecision, "Decimal precision for numeric columns")
	rootCmd.PersistentFlags().String("output", string(schema.TextOut), "Output format: text or csv or json or parquet")
	rootCmd.PersistentFlags().String("output-file", "", "Optional path to write output to")
	rootCmd.PersistentFlags().Int("width", 0, "Terminal width override (0 = auto-detect)")
	rootCmd.PersistentFlags().String("store-backend", string(schema.SQLiteBackend), "Store backend: sqlite or mysql or postgresql or none")
	rootCmd.PersistentFlags().String("store-db-connect", "", "Database connection string for mysql/postgresql (e.g., user:pass@tcp(host:port)/dbname)")
	rootCmd.PersistentFlags().String("tree-model", "", "Path to decision tree model file (JSON)")
	rootCmd.PersistentFlags().String("logistic-model", "", "Path to logistic regression model file (JSON)")
	rootCmd.PersistentFlags().Float64("min-confidence", contract.DefaultMinConfidence, "Minimum confidence before the next classifier stage is tried")
	rootCmd.PersistentFlags().String("fallback-code", "", "Project code assigned when no catalog match is found")
	rootCmd.PersistentFlags().Int("match-limit", contract.DefaultMatchLimit, "Number of catalog candidates per match")
	rootCmd.PersistentFlags().Int("common-cache-size", contract.DefaultCommonCacheSize, "Number of frequently matched projects held in memory")
	rootCmd.PersistentFlags().Int("catalog-stale-hours", contract.DefaultCatalogStaleHours, "Hours after which the catalog is reported stale")
	rootCmd.PersistentFlags().String("emoji", "no", "Enable emojis in output (yes/no/true/false/1/0)")
	rootCmd.PersistentFlags().String("color", "yes", "Enable colored labels in output (yes/no/true/false/1/0)")
	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		contract.LogFatal("Error binding root flags", err)
	}

	// Bind all flags of blocksListCmd to Viper
	blocksListCmd.Flags().String("status", "", "Filter by review status: proposed, accepted or rejected")
	if err := viper.BindPFlags(blocksListCmd.Flags()); err != nil {
		contract.LogFatal("Error binding blocks list flags", err)
	}

	// Bind all flags of catalogSeedCmd to Viper
	catalogSeedCmd.Flags().String("seed-file", "", "Path to a JSON file of catalog entries")
	if err := viper.BindPFlags(catalogSeedCmd.Flags()); err != nil {
		contract.LogFatal("Error binding catalog seed flags", err)
	}

	// Bind all flags of storeMigrateCmd to Viper
	storeMigrateCmd.Flags().Int("target-version", -1, "Target migration version (-1 means latest, 0 means rollback to initial state)")
	if err := viper.BindPFlags(storeMigrateCmd.Flags()); err != nil {
		contract.LogFatal("Error binding store migrate flags", err)
	}
}
