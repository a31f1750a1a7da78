package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/pmorales/segmint/internal/contract"
	"github.com/pmorales/segmint/schema"
)

// PrintBlocks outputs proposed blocks, dispatching based on the output
// format configured.
func PrintBlocks(blocks []schema.ProposedBlock, cfg *contract.Config, duration time.Duration) error {
	fmtFloat, _ := createFormatters(cfg.Precision)

	switch cfg.Output {
	case schema.JSONOut:
		if err := writeBlockJSONResults(blocks, cfg); err != nil {
			return fmt.Errorf("error writing JSON output: %w", err)
		}
	case schema.CSVOut:
		if err := writeBlockCSVResults(blocks, cfg); err != nil {
			return fmt.Errorf("error writing CSV output: %w", err)
		}
	case schema.ParquetOut:
		return ExportBlocksParquet(blocks, cfg)
	default:
		// Default to human-readable table
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeBlockTable(blocks, cfg, fmtFloat, duration, w)
		}, "Wrote table")
	}
	return nil
}

// writeBlockTable generates and writes the human-readable table.
func writeBlockTable(blocks []schema.ProposedBlock, cfg *contract.Config, fmtFloat func(float64) string, duration time.Duration, writer io.Writer) error {
	table := tablewriter.NewWriter(writer)

	headers := []string{"Date", "Time", "Hours", "Project", "Description", "Category", "Label", "Stage", "Status"}
	table.Header(headers)

	table.Configure(func(tcfg *tablewriter.Config) {
		tcfg.Row.Alignment.Global = tw.AlignRight
	})

	label := contract.GetPlainLabel
	if cfg.UseColors {
		label = contract.GetColorLabel
	}
	descWidth := getMaxDescriptionWidth(cfg)

	var data [][]string
	for i := range blocks {
		b := &blocks[i]
		code, desc := matchColumns(b)
		status := string(b.Status)
		if b.FlaggedForReview {
			status += " ⚑"
		}
		data = append(data, []string{
			b.Start.In(cfg.Location).Format("2006-01-02"),
			schema.FormatClockRange(b.Start, b.End, cfg.Location),
			schema.FormatHours(b.BillableSecs),
			code,
			contract.TruncateText(desc, descWidth),
			string(b.Category),
			label(b.Confidence),
			b.DecidedBy,
			status,
		})
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	// Compute summary stats
	var billableSecs int64
	flagged := 0
	for i := range blocks {
		billableSecs += blocks[i].BillableSecs
		if blocks[i].FlaggedForReview {
			flagged++
		}
	}
	if _, err := fmt.Fprintf(writer, "Showing %d blocks (billable: %s, flagged: %d)\n",
		len(blocks), schema.FormatHours(billableSecs), flagged); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(writer, "Completed in %v with %d workers. Store backend: %s\n",
		duration, cfg.Workers, cfg.StoreBackend); err != nil {
		return err
	}
	return nil
}

// writeBlockCSVResults handles opening the file and calling the CSV writer.
func writeBlockCSVResults(blocks []schema.ProposedBlock, cfg *contract.Config) error {
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		header := []string{
			"id",
			"date",
			"start",
			"end",
			"billable_hours",
			"idle_secs",
			"project",
			"description",
			"confidence",
			"method",
			"category",
			"decided_by",
			"status",
			"flagged",
			"reasons",
			"apps",
		}
		return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
			for i := range blocks {
				b := &blocks[i]
				code, desc := matchColumns(b)
				method := ""
				confidence := b.Confidence
				if b.Match != nil {
					method = string(b.Match.Method)
				}
				rec := []string{
					b.ID,
					b.Start.In(cfg.Location).Format("2006-01-02"),
					b.Start.In(cfg.Location).Format(contract.DateTimeFormat),
					b.End.In(cfg.Location).Format(contract.DateTimeFormat),
					fmt.Sprintf("%.2f", float64(b.BillableSecs)/3600.0),
					strconv.FormatInt(b.TotalIdleSecs, 10),
					code,
					desc,
					fmt.Sprintf("%.2f", confidence),
					method,
					string(b.Category),
					b.DecidedBy,
					string(b.Status),
					strconv.FormatBool(b.FlaggedForReview),
					strings.Join(b.ReviewReasons, "|"),
					formatShares(b.Breakdown),
				}
				if err := cw.Write(rec); err != nil {
					return err
				}
			}
			return nil
		})
	}, "Wrote CSV")
}

// writeBlockJSONResults writes the blocks in JSON format with a label added.
func writeBlockJSONResults(blocks []schema.ProposedBlock, cfg *contract.Config) error {
	type JSONBlockResult struct {
		Label string `json:"label"`
		schema.ProposedBlock
	}
	output := make([]JSONBlockResult, len(blocks))
	for i := range blocks {
		output[i] = JSONBlockResult{
			Label:         contract.GetPlainLabel(blocks[i].Confidence),
			ProposedBlock: blocks[i],
		}
	}
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		return writeJSON(w, output)
	}, "Wrote JSON")
}

// matchColumns returns the project code and description columns for a block.
func matchColumns(b *schema.ProposedBlock) (string, string) {
	if b.Match == nil {
		return "-", dominantApp(b)
	}
	return b.Match.Code, b.Match.Description
}

// dominantApp falls back to the largest activity share for unmatched blocks.
func dominantApp(b *schema.ProposedBlock) string {
	return b.Breakdown.Dominant()
}

// formatShares renders the breakdown as "app:0.75|app:0.25".
func formatShares(breakdown schema.ActivityBreakdown) string {
	parts := make([]string, 0, len(breakdown.Shares))
	for _, share := range breakdown.Shares {
		parts = append(parts, fmt.Sprintf("%s:%.2f", share.App, share.Share))
	}
	return strings.Join(parts, "|")
}

// PrintRunSummary prints the pipeline run summary after the block listing.
func PrintRunSummary(summary *schema.RunSummary, cfg *contract.Config) error {
	if cfg.Output == schema.JSONOut {
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, summary)
		}, "Wrote JSON")
	}
	return writeWithFile("", func(w io.Writer) error {
		if _, err := fmt.Fprintln(w, headerWithEmoji(cfg, "📊", "Run summary")); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "  days: %d, snapshots: %d, segments: %d, blocks: %d\n",
			summary.Days, summary.Snapshots, summary.Segments, summary.Blocks); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "  flagged: %d, failed: %d, elapsed: %v\n",
			summary.Flagged, summary.FailedBlocks, summary.Elapsed.Round(time.Millisecond)); err != nil {
			return err
		}
		if len(summary.StageCounts) > 0 {
			stages := make([]string, 0, len(summary.StageCounts))
			for stage := range summary.StageCounts {
				stages = append(stages, stage)
			}
			sort.Strings(stages)
			parts := make([]string, 0, len(stages))
			for _, stage := range stages {
				parts = append(parts, fmt.Sprintf("%s=%d", stage, summary.StageCounts[stage]))
			}
			if _, err := fmt.Fprintf(w, "  decided by: %s\n", strings.Join(parts, ", ")); err != nil {
				return err
			}
		}
		for _, msg := range summary.Degradations {
			if _, err := fmt.Fprintf(w, "  degraded: %s\n", msg); err != nil {
				return err
			}
		}
		return nil
	}, "")
}
