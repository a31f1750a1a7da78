package schema

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// ActivityShare is one application's duration-weighted slice of a block.
type ActivityShare struct {
	App          string  `json:"app"`
	DurationSecs int64   `json:"duration_secs"`
	Share        float64 `json:"share"`
}

// ActivityBreakdown holds per-application duration shares over a block's
// non-idle duration. Shares sum to 1.0 within ShareTolerance.
type ActivityBreakdown struct {
	Shares []ActivityShare `json:"shares"`
}

// TotalShare returns the sum of all shares.
func (b *ActivityBreakdown) TotalShare() float64 {
	var total float64
	for _, s := range b.Shares {
		total += s.Share
	}
	return total
}

// Validate checks that shares sum to 1.0 within tolerance. An empty
// breakdown is valid only for fully idle blocks.
func (b *ActivityBreakdown) Validate() error {
	if len(b.Shares) == 0 {
		return nil
	}
	total := b.TotalShare()
	if math.Abs(total-1.0) > ShareTolerance {
		return fmt.Errorf("%w: breakdown shares sum to %.9f", ErrInvariant, total)
	}
	return nil
}

// Dominant returns the application with the largest share, or "" when the
// breakdown is empty.
func (b *ActivityBreakdown) Dominant() string {
	var best string
	var bestShare float64 = -1
	for _, s := range b.Shares {
		if s.Share > bestShare {
			best = s.App
			bestShare = s.Share
		}
	}
	return best
}

// ProjectMatch is a candidate project/work code with a confidence score,
// the method that produced it, and supporting evidence text.
type ProjectMatch struct {
	Code        string      `json:"code"`
	Description string      `json:"description"`
	Confidence  float64     `json:"confidence"`
	Method      MatchMethod `json:"method"`
	Evidence    []string    `json:"evidence,omitempty"`
}

// SortMatches orders matches descending by confidence, breaking ties by
// method priority then lexical code order for determinism.
func SortMatches(matches []ProjectMatch) {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Confidence != matches[j].Confidence {
			return matches[i].Confidence > matches[j].Confidence
		}
		pi, pj := MethodPriority(matches[i].Method), MethodPriority(matches[j].Method)
		if pi != pj {
			return pi < pj
		}
		return matches[i].Code < matches[j].Code
	})
}

// ProposedBlock is a consolidated time range [Start, End) awaiting human
// review. Created by the block builder, categorized by the classifier, and
// accepted or rejected by review.
type ProposedBlock struct {
	ID        string            `json:"id"`
	Start     time.Time         `json:"start"`
	End       time.Time         `json:"end"`
	Breakdown ActivityBreakdown `json:"breakdown"`

	// Match is the top-ranked project match, if any.
	Match *ProjectMatch `json:"match,omitempty"`

	Category   Category `json:"category"`
	Confidence float64  `json:"confidence"`

	// DecidedBy records which classifier stage produced the category.
	DecidedBy string `json:"decided_by,omitempty"`

	Status BlockStatus `json:"status"`

	SegmentIDs []string `json:"segment_ids"`

	IdlePolicy    IdlePolicy `json:"idle_policy"`
	TotalIdleSecs int64      `json:"total_idle_secs"`

	// BillableSecs is the block duration rounded to the billing increment.
	BillableSecs int64 `json:"billable_secs"`

	FlaggedForReview bool     `json:"flagged_for_review"`
	ReviewReasons    []string `json:"review_reasons,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	ReviewedAt *time.Time `json:"reviewed_at,omitempty"`
}

// Duration returns the block's span length.
func (b *ProposedBlock) Duration() time.Duration {
	return b.End.Sub(b.Start)
}

// Validate checks the block's structural invariants: a coherent time range,
// no day-boundary crossing, and a breakdown that sums to 1.0. Violations
// indicate a construction bug and are fatal to this block only.
func (b *ProposedBlock) Validate(loc *time.Location) error {
	if !b.Start.Before(b.End) {
		return fmt.Errorf("%w: block start %s not before end %s", ErrInvariant, b.Start, b.End)
	}
	startDay := b.Start.In(loc).Format("2006-01-02")
	// End is exclusive, so a block ending exactly at midnight stays in-day.
	endDay := b.End.In(loc).Add(-time.Nanosecond).Format("2006-01-02")
	if startDay != endDay {
		return fmt.Errorf("%w: block spans days %s and %s", ErrInvariant, startDay, endDay)
	}
	return b.Breakdown.Validate()
}

// RunSummary aggregates per-run statistics for the pipeline footer.
type RunSummary struct {
	Days         int            `json:"days"`
	Snapshots    int            `json:"snapshots"`
	Segments     int            `json:"segments"`
	Blocks       int            `json:"blocks"`
	Flagged      int            `json:"flagged"`
	FailedBlocks int            `json:"failed_blocks"`
	StageCounts  map[string]int `json:"stage_counts"`
	Degradations []string       `json:"degradations,omitempty"`
	Elapsed      time.Duration  `json:"elapsed"`
}

// StoreStatus reports health and size information for the activity store.
type StoreStatus struct {
	Backend    string           `json:"backend"`
	Connected  bool             `json:"connected"`
	TableRows  map[string]int64 `json:"table_rows,omitempty"`
	SizeBytes  int64            `json:"size_bytes,omitempty"`
	OldestData time.Time        `json:"oldest_data,omitempty"`
	NewestData time.Time        `json:"newest_data,omitempty"`
}

// StageHealth reports one classifier stage's readiness.
type StageHealth struct {
	Stage     string `json:"stage"`
	Available bool   `json:"available"`
	Detail    string `json:"detail,omitempty"`
}

// CatalogStatus reports the state of the project catalog.
type CatalogStatus struct {
	Entries      int64     `json:"entries"`
	ActiveCount  int64     `json:"active_count"`
	LastSync     time.Time `json:"last_sync"`
	TotalMatches int64     `json:"total_matches"`
}
