package outwriter

import (
	"fmt"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/pmorales/segmint/internal/contract"
	"github.com/pmorales/segmint/schema"
)

// BlockRecord is the flattened Parquet row for one proposed block. The
// schema is derived from the struct tags.
type BlockRecord struct {
	// BlockID is the unique identifier of the block
	BlockID string `parquet:"block_id,snappy"`

	// Start and End bound the block (stored as TIMESTAMP with nanosecond precision)
	Start time.Time `parquet:"start,snappy"`
	End   time.Time `parquet:"end,snappy"`

	// BillableSecs is the rounded billable duration in seconds
	BillableSecs int64 `parquet:"billable_secs,snappy"`

	// TotalIdleSecs is the idle time observed inside the block
	TotalIdleSecs int64 `parquet:"total_idle_secs,snappy"`

	// ProjectCode is the matched WBS code (nullable for unmatched blocks)
	ProjectCode *string `parquet:"project_code,optional,snappy"`

	// ProjectDescription is the matched project description (nullable)
	ProjectDescription *string `parquet:"project_description,optional,snappy"`

	// MatchMethod records how the project was resolved (nullable)
	MatchMethod *string `parquet:"match_method,optional,snappy"`

	// Category is the billing category assigned by the classifier
	Category string `parquet:"category,snappy"`

	// Confidence is the classifier confidence in [0, 1]
	Confidence float64 `parquet:"confidence,snappy"`

	// DecidedBy records the classifier stage that produced the category
	DecidedBy string `parquet:"decided_by,snappy"`

	// Status is the review status at export time
	Status string `parquet:"status,snappy"`

	// IdlePolicy is the policy the block was built under
	IdlePolicy string `parquet:"idle_policy,snappy"`

	// Breakdown is the "app:share|app:share" activity breakdown
	Breakdown string `parquet:"breakdown,snappy"`

	// Flagged marks blocks needing human review
	Flagged bool `parquet:"flagged,snappy"`

	// ReviewedAt is when the review decision was made (nullable)
	ReviewedAt *time.Time `parquet:"reviewed_at,optional,snappy"`
}

// ExportBlocksParquet writes blocks to a Parquet file for downstream
// billing systems. An explicit output file is required.
func ExportBlocksParquet(blocks []schema.ProposedBlock, cfg *contract.Config) error {
	if cfg.OutputFile == "" {
		return fmt.Errorf("parquet output requires --output-file")
	}

	records := make([]BlockRecord, 0, len(blocks))
	for i := range blocks {
		records = append(records, toBlockRecord(&blocks[i]))
	}

	file, err := contract.SelectOutputFile(cfg.OutputFile)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	// The schema is automatically derived from the BlockRecord struct tags
	writer := parquet.NewGenericWriter[BlockRecord](file)
	defer func() { _ = writer.Close() }()

	if _, err := writer.Write(records); err != nil {
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}

	contract.LogInfo(fmt.Sprintf("💾 Wrote %d blocks to %s", len(records), cfg.OutputFile))
	return nil
}

// toBlockRecord flattens one block into its Parquet row.
func toBlockRecord(b *schema.ProposedBlock) BlockRecord {
	rec := BlockRecord{
		BlockID:       b.ID,
		Start:         b.Start,
		End:           b.End,
		BillableSecs:  b.BillableSecs,
		TotalIdleSecs: b.TotalIdleSecs,
		Category:      string(b.Category),
		Confidence:    b.Confidence,
		DecidedBy:     b.DecidedBy,
		Status:        string(b.Status),
		IdlePolicy:    string(b.IdlePolicy),
		Breakdown:     formatShares(b.Breakdown),
		Flagged:       b.FlaggedForReview,
	}
	if b.Match != nil {
		code := b.Match.Code
		desc := b.Match.Description
		method := string(b.Match.Method)
		rec.ProjectCode = &code
		rec.ProjectDescription = &desc
		rec.MatchMethod = &method
	}
	if b.ReviewedAt != nil && !b.ReviewedAt.IsZero() {
		rec.ReviewedAt = b.ReviewedAt
	}
	return rec
}
