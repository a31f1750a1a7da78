package contract

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/pmorales/segmint/schema"
)

// Default values for configuration.
const (
	DefaultGapThresholdSecs   = 1800 // new segment after 30 minutes of silence
	DefaultMergeGapSecs       = 180  // merge same-context segments within 3 minutes
	DefaultConsolidationSecs  = 3600 // merge same-project blocks within an hour
	DefaultMinBlockSecs       = 1800 // blocks below 30 minutes are flagged for review
	DefaultBillingSecs        = 360  // 0.1h billing increment
	DefaultIdleExcludeRatio   = 0.80 // partial policy auto-excludes spans above this
	DefaultSampleSecs         = 30   // assumed capture interval for trailing samples
	DefaultResultLimit        = 25
	MaxResultLimit            = 1000
	DefaultPrecision          = 1
	DefaultMatchLimit         = 5
	DefaultCommonCacheSize    = 50
	DefaultMinConfidence      = 0.55
	DefaultFuzzyThreshold     = 0.25
	DefaultCatalogStaleHours  = 24
	DefaultCalendarSlackMins  = 15
	DefaultFallbackConfidence = 0.10
)

// DefaultWorkers is the default number of concurrent day workers.
var DefaultWorkers = runtime.GOMAXPROCS(0)

// DateTimeFormat is the default date time representation.
var DateTimeFormat = time.RFC3339

// Config holds the runtime configuration for a pipeline run.
// This struct remains the "final, validated" config.
type Config struct {
	StartTime time.Time
	EndTime   time.Time
	Location  *time.Location

	IdlePolicy       schema.IdlePolicy
	GapThreshold     time.Duration
	MergeGap         time.Duration
	Consolidation    time.Duration
	MinBlock         time.Duration
	BillingIncrement time.Duration
	IdleExcludeRatio float64

	ResultLimit int
	Workers     int
	Precision   int
	Output      schema.OutputMode
	OutputFile  string
	Width       int // Terminal width override (0 = auto-detect)

	StoreBackend   schema.DatabaseBackend
	StoreDBConnect string // Please use env var as this is plaintext

	// Classifier model files. Empty or missing paths leave that stage
	// unavailable; the rule stage needs no model.
	TreeModelPath     string
	LogisticModelPath string
	MinConfidence     float64

	// FallbackCode is the G&A work code attached at low confidence when no
	// other match is found. Empty disables the fallback.
	FallbackCode string

	MatchLimit        int
	CommonCacheSize   int
	CatalogStaleAfter time.Duration

	// StatusFilter narrows block listings to one review status. Empty
	// means all statuses.
	StatusFilter schema.BlockStatus
	SeedFile     string

	UseEmojis bool // Enable emojis in output headers
	UseColors bool // Enable colored labels in table output
}

// ConfigRawInput holds the raw inputs from all sources (flags, env, config file).
// Viper unmarshals into this struct.
type ConfigRawInput struct {
	// --- Fields from rootCmd.PersistentFlags() ---
	Start            string  `mapstructure:"start"`
	End              string  `mapstructure:"end"`
	Timezone         string  `mapstructure:"timezone"`
	IdlePolicy       string  `mapstructure:"idle-policy"`
	GapThreshold     int     `mapstructure:"gap-threshold"`
	MergeGap         int     `mapstructure:"merge-gap"`
	Consolidation    int     `mapstructure:"consolidation-window"`
	MinBlock         int     `mapstructure:"min-block"`
	BillingIncrement int     `mapstructure:"billing-increment"`
	IdleExcludeRatio float64 `mapstructure:"idle-exclude-ratio"`
	Limit            int     `mapstructure:"limit"`
	Workers          int     `mapstructure:"workers"`
	Precision        int     `mapstructure:"precision"`
	Output           string  `mapstructure:"output"`
	OutputFile       string  `mapstructure:"output-file"`
	Width            int     `mapstructure:"width"`
	StoreBackend     string  `mapstructure:"store-backend"`
	StoreDBConnect   string  `mapstructure:"store-db-connect"`
	Emoji            string  `mapstructure:"emoji"`
	Color            string  `mapstructure:"color"`

	// --- Classifier fields from config file or flags ---
	TreeModel     string  `mapstructure:"tree-model"`
	LogisticModel string  `mapstructure:"logistic-model"`
	MinConfidence float64 `mapstructure:"min-confidence"`

	// --- Matcher fields ---
	FallbackCode      string `mapstructure:"fallback-code"`
	MatchLimit        int    `mapstructure:"match-limit"`
	CommonCacheSize   int    `mapstructure:"common-cache-size"`
	CatalogStaleHours int    `mapstructure:"catalog-stale-hours"`

	// --- Fields from blocksCmd.Flags() ---
	Status string `mapstructure:"status"`

	// --- Fields from catalogCmd.Flags() ---
	SeedFile string `mapstructure:"seed-file"`

	// --- Fields from storeMigrateCmd.Flags() ---
	TargetVersion int `mapstructure:"target-version"`
}

// Clone returns a deep copy of the Config struct.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// Days enumerates the local calendar days covered by [StartTime, EndTime),
// as midnight timestamps in the configured location.
func (c *Config) Days() []time.Time {
	var days []time.Time
	day, _ := schema.DayBounds(c.StartTime, c.Location)
	for day.Before(c.EndTime) {
		days = append(days, day)
		day = day.AddDate(0, 0, 1)
	}
	return days
}

// ProcessAndValidate performs all complex parsing and validation on the raw
// inputs and updates the final Config struct.
func ProcessAndValidate(cfg *Config, input *ConfigRawInput) error {
	if err := validateSimpleInputs(cfg, input); err != nil {
		return err
	}
	if err := processTimeRange(cfg, input); err != nil {
		return err
	}
	if err := processPipelineTuning(cfg, input); err != nil {
		return err
	}
	if err := processClassifierInputs(cfg, input); err != nil {
		return err
	}
	return nil
}

// ValidateDatabaseConnectionString validates the format of database
// connection strings for MySQL and PostgreSQL backends.
func ValidateDatabaseConnectionString(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.SQLiteBackend, schema.NoneBackend:
		return nil
	case schema.MySQLBackend:
		if connStr == "" {
			return fmt.Errorf("store-db-connect is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "@tcp(") {
			return fmt.Errorf("MySQL connection string must contain '@tcp(' for host:port specification")
		}
		if !strings.Contains(connStr, "/") {
			return fmt.Errorf("MySQL connection string must contain '/' followed by database name")
		}
	case schema.PostgreSQLBackend:
		if connStr == "" {
			return fmt.Errorf("store-db-connect is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "host=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'host=' parameter")
		}
		if !strings.Contains(connStr, "dbname=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'dbname=' parameter")
		}
	}
	return nil
}

// validateSimpleInputs processes and validates all non-time fields.
func validateSimpleInputs(cfg *Config, input *ConfigRawInput) error {
	cfg.OutputFile = input.OutputFile
	cfg.Width = input.Width

	// Parse emoji flag
	emojis, err := ParseBoolString(input.Emoji)
	if err != nil {
		return fmt.Errorf("invalid --emoji value: %w", err)
	}
	cfg.UseEmojis = emojis

	// Parse color flag
	colors, err := ParseBoolString(input.Color)
	if err != nil {
		return fmt.Errorf("invalid --color value: %w", err)
	}
	cfg.UseColors = colors

	// --- 1. ResultLimit Validation ---
	if input.Limit <= 0 || input.Limit > MaxResultLimit {
		return fmt.Errorf("limit must be greater than 0 and cannot exceed %d (received %d)", MaxResultLimit, input.Limit)
	}
	cfg.ResultLimit = input.Limit

	// --- 2. Workers Validation ---
	if input.Workers <= 0 {
		return fmt.Errorf("workers must be greater than 0 (received %d)", input.Workers)
	}
	cfg.Workers = input.Workers

	// --- 3. Idle Policy Validation ---
	cfg.IdlePolicy = schema.IdlePolicy(strings.ToLower(input.IdlePolicy))
	if _, ok := schema.ValidIdlePolicies[cfg.IdlePolicy]; !ok {
		return fmt.Errorf("invalid idle policy '%s'. must be exclude, include, partial", input.IdlePolicy)
	}

	// --- 4. Precision and Output Validation ---
	if input.Precision < 1 || input.Precision > 2 {
		return fmt.Errorf("precision must be 1 or 2 (received %d)", input.Precision)
	}
	cfg.Precision = input.Precision

	cfg.Output = schema.OutputMode(strings.ToLower(input.Output))
	if _, ok := schema.ValidOutputModes[cfg.Output]; !ok {
		return fmt.Errorf("invalid output format '%s'. must be text, csv, json, parquet", cfg.Output)
	}

	// --- 5. Backend Validation ---
	cfg.StoreBackend = schema.DatabaseBackend(strings.ToLower(input.StoreBackend))
	if _, ok := schema.ValidDatabaseBackends[cfg.StoreBackend]; !ok {
		return fmt.Errorf("invalid store backend '%s'. must be sqlite, mysql, postgresql, none", input.StoreBackend)
	}
	cfg.StoreDBConnect = input.StoreDBConnect
	if err := ValidateDatabaseConnectionString(cfg.StoreBackend, cfg.StoreDBConnect); err != nil {
		return err
	}

	return nil
}

// processTimeRange handles date parsing and time range validation.
func processTimeRange(cfg *Config, input *ConfigRawInput) error {
	loc := time.Local
	if input.Timezone != "" {
		parsed, err := time.LoadLocation(input.Timezone)
		if err != nil {
			return fmt.Errorf("invalid timezone '%s': %w", input.Timezone, err)
		}
		loc = parsed
	}
	cfg.Location = loc

	now := time.Now().In(loc)
	cfg.EndTime = now
	cfg.StartTime, _ = schema.DayBounds(now, loc) // default: today so far

	if input.Start != "" {
		t, err := parseDateInput(input.Start, loc, now)
		if err != nil {
			return err
		}
		cfg.StartTime = t
	}
	if input.End != "" {
		t, err := parseDateInput(input.End, loc, now)
		if err != nil {
			return err
		}
		cfg.EndTime = t
	}

	if cfg.StartTime.After(cfg.EndTime) {
		return fmt.Errorf("%w: start time (%s) cannot be after end time (%s)",
			schema.ErrInvalidDateRange, cfg.StartTime.Format(DateTimeFormat), cfg.EndTime.Format(DateTimeFormat))
	}

	return nil
}

// parseDateInput accepts ISO8601 datetimes, plain dates, lookback
// durations ("7d", "2 weeks") counted back from now, and relative
// expressions like "2 days ago".
func parseDateInput(s string, loc *time.Location, now time.Time) (time.Time, error) {
	if t, err := time.Parse(DateTimeFormat, s); err == nil {
		return t.In(loc), nil
	}
	if t, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
		return t, nil
	}
	if d, err := ParseLookbackDuration(s); err == nil {
		return now.Add(-d), nil
	}
	t, err := ParseRelativeTime(s, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date format for '%s'. Expected ISO8601, YYYY-MM-DD, a lookback like '7d', or 'N [units] ago'", s)
	}
	return t, nil
}

// RevalidateTimeRange re-parses an overriding start/end pair on an already
// validated config. Empty strings keep the existing bounds. Used by the MCP
// server, where per-call ranges arrive after startup validation.
func RevalidateTimeRange(cfg *Config, startStr, endStr string) error {
	now := time.Now().In(cfg.Location)
	if startStr != "" {
		t, err := parseDateInput(startStr, cfg.Location, now)
		if err != nil {
			return err
		}
		cfg.StartTime = t
	}
	if endStr != "" {
		t, err := parseDateInput(endStr, cfg.Location, now)
		if err != nil {
			return err
		}
		cfg.EndTime = t
	}
	if cfg.StartTime.After(cfg.EndTime) {
		return fmt.Errorf("%w: start time (%s) cannot be after end time (%s)",
			schema.ErrInvalidDateRange, cfg.StartTime.Format(DateTimeFormat), cfg.EndTime.Format(DateTimeFormat))
	}
	return nil
}

// processPipelineTuning validates the segmentation and consolidation knobs.
func processPipelineTuning(cfg *Config, input *ConfigRawInput) error {
	if input.GapThreshold <= 0 {
		return fmt.Errorf("gap-threshold must be positive (received %d)", input.GapThreshold)
	}
	cfg.GapThreshold = time.Duration(input.GapThreshold) * time.Second

	if input.MergeGap < 0 {
		return fmt.Errorf("merge-gap cannot be negative (received %d)", input.MergeGap)
	}
	cfg.MergeGap = time.Duration(input.MergeGap) * time.Second

	if cfg.MergeGap > cfg.GapThreshold {
		return fmt.Errorf("merge-gap (%s) cannot exceed gap-threshold (%s)", cfg.MergeGap, cfg.GapThreshold)
	}

	if input.Consolidation < 0 {
		return fmt.Errorf("consolidation-window cannot be negative (received %d)", input.Consolidation)
	}
	cfg.Consolidation = time.Duration(input.Consolidation) * time.Second

	if input.MinBlock < 0 {
		return fmt.Errorf("min-block cannot be negative (received %d)", input.MinBlock)
	}
	cfg.MinBlock = time.Duration(input.MinBlock) * time.Second

	if input.BillingIncrement < 0 {
		return fmt.Errorf("billing-increment cannot be negative (received %d)", input.BillingIncrement)
	}
	cfg.BillingIncrement = time.Duration(input.BillingIncrement) * time.Second

	if input.IdleExcludeRatio <= 0 || input.IdleExcludeRatio > 1 {
		return fmt.Errorf("idle-exclude-ratio must be in (0, 1] (received %.2f)", input.IdleExcludeRatio)
	}
	cfg.IdleExcludeRatio = input.IdleExcludeRatio

	if input.MatchLimit <= 0 {
		return fmt.Errorf("match-limit must be positive (received %d)", input.MatchLimit)
	}
	cfg.MatchLimit = input.MatchLimit

	if input.CommonCacheSize < 0 {
		return fmt.Errorf("common-cache-size cannot be negative (received %d)", input.CommonCacheSize)
	}
	cfg.CommonCacheSize = input.CommonCacheSize

	if input.CatalogStaleHours < 0 {
		return fmt.Errorf("catalog-stale-hours cannot be negative (received %d)", input.CatalogStaleHours)
	}
	cfg.CatalogStaleAfter = time.Duration(input.CatalogStaleHours) * time.Hour

	cfg.FallbackCode = strings.TrimSpace(input.FallbackCode)

	status := schema.BlockStatus(strings.ToLower(strings.TrimSpace(input.Status)))
	if status != "" {
		if _, ok := schema.ValidBlockStatuses[status]; !ok {
			return fmt.Errorf("invalid status filter '%s'. must be proposed, accepted, rejected", input.Status)
		}
	}
	cfg.StatusFilter = status
	cfg.SeedFile = strings.TrimSpace(input.SeedFile)
	return nil
}

// processClassifierInputs validates model paths and confidence threshold.
func processClassifierInputs(cfg *Config, input *ConfigRawInput) error {
	cfg.TreeModelPath = strings.TrimSpace(input.TreeModel)
	cfg.LogisticModelPath = strings.TrimSpace(input.LogisticModel)

	if input.MinConfidence < 0 || input.MinConfidence > 1 {
		return fmt.Errorf("min-confidence must be in [0, 1] (received %.2f)", input.MinConfidence)
	}
	cfg.MinConfidence = input.MinConfidence
	return nil
}
