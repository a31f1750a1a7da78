// Package core has core logic for segmentation, matching, block building
// and classification.
package core

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/pmorales/segmint/internal/contract"
	"github.com/pmorales/segmint/internal/outwriter"
	"github.com/pmorales/segmint/schema"
)

// ExecutorFunc defines the function signature for executing different
// pipeline modes.
type ExecutorFunc func(ctx context.Context, cfg *contract.Config, stores contract.StoreManager) error

// ExecuteRunPipeline runs the full proposal pipeline over the configured
// date range and prints the resulting blocks and run summary. It serves
// as the main entry point for the 'run' mode.
func ExecuteRunPipeline(ctx context.Context, cfg *contract.Config, stores contract.StoreManager) error {
	pipeline := NewPipeline(cfg, stores)
	summary, err := pipeline.Run(ctx)
	if err != nil {
		if summary != nil {
			// Partial work was persisted before cancellation; show it.
			_ = outwriter.PrintRunSummary(summary, cfg)
		}
		return err
	}

	rangeStart, _ := schema.DayBounds(cfg.StartTime, cfg.Location)
	_, rangeEnd := schema.DayBounds(cfg.EndTime, cfg.Location)
	blocks, err := stores.Blocks().QueryRange(ctx, rangeStart, rangeEnd)
	if err != nil {
		return fmt.Errorf("block query failed: %w", err)
	}
	if err := outwriter.PrintBlocks(blocks, cfg, summary.Elapsed); err != nil {
		return err
	}
	return outwriter.PrintRunSummary(summary, cfg)
}

// ExecuteProposeSelection builds one block over an explicit time range.
func ExecuteProposeSelection(ctx context.Context, cfg *contract.Config, stores contract.StoreManager) error {
	start := time.Now()
	pipeline := NewPipeline(cfg, stores)
	block, err := pipeline.ProposeForSelection(ctx, cfg.StartTime, cfg.EndTime)
	if err != nil {
		return err
	}
	return outwriter.PrintBlocks([]schema.ProposedBlock{*block}, cfg, time.Since(start))
}

// ExecuteListBlocks prints stored blocks for the configured range,
// optionally filtered to one review status.
func ExecuteListBlocks(ctx context.Context, cfg *contract.Config, stores contract.StoreManager) error {
	start := time.Now()
	rangeStart, _ := schema.DayBounds(cfg.StartTime, cfg.Location)
	_, rangeEnd := schema.DayBounds(cfg.EndTime, cfg.Location)

	var blocks []schema.ProposedBlock
	var err error
	if cfg.StatusFilter != "" {
		blocks, err = stores.Blocks().ListByStatus(ctx, cfg.StatusFilter, rangeStart, rangeEnd)
	} else {
		blocks, err = stores.Blocks().QueryRange(ctx, rangeStart, rangeEnd)
	}
	if err != nil {
		return fmt.Errorf("block query failed: %w", err)
	}
	return outwriter.PrintBlocks(blocks, cfg, time.Since(start))
}

// ExecuteReviewBlock transitions one block to accepted or rejected.
// Reviewing an already-reviewed block to the same status is a no-op.
func ExecuteReviewBlock(ctx context.Context, cfg *contract.Config, stores contract.StoreManager, blockID string, status schema.BlockStatus) error {
	current, err := stores.Blocks().Get(ctx, blockID)
	if err != nil {
		return err
	}
	if current.Status == status {
		contract.LogInfo(fmt.Sprintf("block %s already %s", blockID, status))
		return nil
	}
	if err := stores.Blocks().UpdateStatus(ctx, blockID, status, time.Now()); err != nil {
		return err
	}
	contract.LogInfo(fmt.Sprintf("block %s marked %s", blockID, status))
	return nil
}

// ExecuteExportBlocks writes accepted blocks for the range to a Parquet
// file for downstream billing systems.
func ExecuteExportBlocks(ctx context.Context, cfg *contract.Config, stores contract.StoreManager) error {
	rangeStart, _ := schema.DayBounds(cfg.StartTime, cfg.Location)
	_, rangeEnd := schema.DayBounds(cfg.EndTime, cfg.Location)
	blocks, err := stores.Blocks().ListByStatus(ctx, schema.AcceptedStatus, rangeStart, rangeEnd)
	if err != nil {
		return fmt.Errorf("block query failed: %w", err)
	}
	return outwriter.ExportBlocksParquet(blocks, cfg)
}

// ExecuteMatchProject runs the project matcher over ad-hoc query text and
// prints the ranked candidates. Useful for probing the catalog.
func ExecuteMatchProject(ctx context.Context, cfg *contract.Config, stores contract.StoreManager, query string) error {
	start := time.Now()
	matches, err := GetProjectMatches(ctx, cfg, stores, query)
	if err != nil {
		return err
	}
	return outwriter.PrintMatches(query, matches, cfg, time.Since(start))
}

// GetProjectMatches returns ranked catalog candidates for free-form query
// text. This is exposed for the MCP server.
func GetProjectMatches(ctx context.Context, cfg *contract.Config, stores contract.StoreManager, query string) ([]schema.ProjectMatch, error) {
	cache := NewCommonCache(cfg.CommonCacheSize)
	if err := cache.WarmUp(ctx, stores.Catalog()); err != nil {
		contract.LogWarn("common-projects cache warm-up", err)
	}
	matcher := NewMatcher(stores.Catalog(), cache, cfg)

	sig := schema.ContextSignals{
		Keywords:    extractKeywords(query),
		Identifiers: identifiersIn(query),
	}
	return matcher.Match(ctx, sig)
}

// identifiersIn applies the shared identifier rules to free text.
func identifiersIn(text string) []string {
	set := newTokenSet()
	for _, rule := range commonRules {
		set.addAll(rule.Apply(text))
	}
	return set.sorted()
}

// ExecuteCheck reports classifier stage and catalog health.
func ExecuteCheck(ctx context.Context, cfg *contract.Config, stores contract.StoreManager) error {
	pipeline := NewPipeline(cfg, stores)
	health, err := pipeline.Health(ctx)
	if err != nil {
		return err
	}
	return outwriter.PrintHealth(health, cfg)
}

// ExecuteCatalogSeed loads catalog entries from a JSON seed file and
// upserts them. Existing codes are updated, not duplicated.
func ExecuteCatalogSeed(ctx context.Context, cfg *contract.Config, stores contract.StoreManager) error {
	raw, err := os.ReadFile(cfg.SeedFile)
	if err != nil {
		return fmt.Errorf("cannot read seed file: %w", err)
	}
	var entries []schema.WbsEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return fmt.Errorf("malformed seed file: %w", err)
	}
	for i := range entries {
		if entries[i].Code == "" {
			return fmt.Errorf("seed entry %d has no code", i)
		}
	}
	if err := stores.Catalog().Upsert(ctx, entries); err != nil {
		return fmt.Errorf("catalog upsert failed: %w", err)
	}
	contract.LogInfo(fmt.Sprintf("seeded %d catalog entries", len(entries)))
	return nil
}

// ExecuteCatalogStatus prints catalog size, freshness and match counts.
func ExecuteCatalogStatus(ctx context.Context, cfg *contract.Config, stores contract.StoreManager) error {
	status, err := stores.Catalog().Status(ctx)
	if err != nil {
		return fmt.Errorf("catalog status failed: %w", err)
	}
	return outwriter.PrintCatalogStatus(status, cfg)
}
