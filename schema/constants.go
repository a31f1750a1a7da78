package schema

// Custom string types for type safety.
type (
	// Category is the billing classification assigned to a block.
	Category string

	// BlockStatus is the review lifecycle state of a proposed block.
	BlockStatus string

	// MatchMethod tags how a project match was produced.
	MatchMethod string

	// IdlePolicy governs how idle time inside a block is counted.
	IdlePolicy string

	// AppCategory buckets applications for extraction and classification.
	AppCategory string

	// OutputMode represents the format of the output.
	OutputMode string

	// DatabaseBackend represents the database backend for the store.
	DatabaseBackend string
)

// All block categories supported.
const (
	BillableCategory    Category = "billable"
	NonBillableCategory Category = "non-billable"
	PendingCategory     Category = "pending-review" // default until classified with confidence
)

// All block statuses supported.
const (
	ProposedStatus BlockStatus = "proposed" // default
	AcceptedStatus BlockStatus = "accepted"
	RejectedStatus BlockStatus = "rejected"
)

// All match methods supported, in priority order.
const (
	ExactCodeMatch  MatchMethod = "exact-code"
	FuzzyTextMatch  MatchMethod = "fuzzy-text"
	CachedMatch     MatchMethod = "cached-common"
	FallbackMatch   MatchMethod = "fallback"
	NoMatchRecorded MatchMethod = ""
)

// All idle policies supported.
const (
	IdleExclude IdlePolicy = "exclude"
	IdleInclude IdlePolicy = "include"
	IdlePartial IdlePolicy = "partial" // default
)

// All application categories supported.
const (
	SpreadsheetApp AppCategory = "spreadsheet"
	DocumentApp    AppCategory = "document"
	BrowserApp     AppCategory = "browser"
	EmailApp       AppCategory = "email"
	MeetingApp     AppCategory = "meeting"
	TerminalApp    AppCategory = "terminal"
	IDEApp         AppCategory = "ide"
	DesignApp      AppCategory = "design"
	ChatApp        AppCategory = "chat"
	VDRApp         AppCategory = "vdr"
	UnknownApp     AppCategory = "unknown"
)

// All output modes supported.
const (
	TextOut    OutputMode = "text" // default
	CSVOut     OutputMode = "csv"
	JSONOut    OutputMode = "json"
	ParquetOut OutputMode = "parquet"
)

// All store backends supported.
const (
	SQLiteBackend     DatabaseBackend = "sqlite" // default
	MySQLBackend      DatabaseBackend = "mysql"
	PostgreSQLBackend DatabaseBackend = "postgresql"
	NoneBackend       DatabaseBackend = "none"
)

// ShareTolerance is the floating-point tolerance when checking that
// activity-breakdown shares sum to 1.0.
const ShareTolerance = 1e-6

// ValidIdlePolicies lists all valid idle policies.
var ValidIdlePolicies = map[IdlePolicy]struct{}{
	IdleExclude: {},
	IdleInclude: {},
	IdlePartial: {},
}

// ValidOutputModes lists all valid output modes.
var ValidOutputModes = map[OutputMode]struct{}{
	TextOut:    {},
	CSVOut:     {},
	JSONOut:    {},
	ParquetOut: {},
}

// ValidDatabaseBackends lists all valid store backends.
var ValidDatabaseBackends = map[DatabaseBackend]struct{}{
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
	NoneBackend:       {},
}

// ValidCategories lists all valid billing categories.
var ValidCategories = map[Category]struct{}{
	BillableCategory:    {},
	NonBillableCategory: {},
	PendingCategory:     {},
}

// ValidBlockStatuses lists all valid block statuses.
var ValidBlockStatuses = map[BlockStatus]struct{}{
	ProposedStatus: {},
	AcceptedStatus: {},
	RejectedStatus: {},
}

// MethodPriority ranks match methods for tie-breaking. Lower is better.
func MethodPriority(m MatchMethod) int {
	switch m {
	case ExactCodeMatch:
		return 0
	case FuzzyTextMatch:
		return 1
	case CachedMatch:
		return 2
	case FallbackMatch:
		return 3
	default:
		return 4
	}
}
