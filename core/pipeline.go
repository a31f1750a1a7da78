package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pmorales/segmint/internal/contract"
	"github.com/pmorales/segmint/schema"
)

// Pipeline wires the full segmentation-to-classification run: snapshots
// in, proposed blocks out, one day at a time.
type Pipeline struct {
	cfg        *contract.Config
	stores     contract.StoreManager
	segmenter  *Segmenter
	extractor  *SignalExtractor
	cache      *CommonCache
	matcher    *Matcher
	builder    *Builder
	classifier *HybridClassifier
}

// NewPipeline assembles the pipeline from the validated config and the
// initialized stores.
func NewPipeline(cfg *contract.Config, stores contract.StoreManager) *Pipeline {
	extractor := NewSignalExtractor(stores.Calendar(), cfg.Location)
	cache := NewCommonCache(cfg.CommonCacheSize)
	matcher := NewMatcher(stores.Catalog(), cache, cfg)
	return &Pipeline{
		cfg:        cfg,
		stores:     stores,
		segmenter:  NewSegmenter(cfg),
		extractor:  extractor,
		cache:      cache,
		matcher:    matcher,
		builder:    NewBuilder(cfg, extractor, matcher),
		classifier: NewHybridClassifier(cfg),
	}
}

// dayResult carries one day's counters back to the aggregating summary.
type dayResult struct {
	day       time.Time
	snapshots int
	segments  int
	blocks    []schema.ProposedBlock
	flagged   int
	failed    int
	decidedBy map[string]int
	err       error
}

// Run executes the pipeline over the configured date range. Days are
// processed concurrently up to cfg.Workers; cancellation is honored
// between days and between blocks, never mid-block. A failed day or
// block is recorded in the summary and does not abort its siblings.
func (p *Pipeline) Run(ctx context.Context) (*schema.RunSummary, error) {
	start := time.Now()

	if warning, err := p.matcher.CheckCatalog(ctx, p.cfg.CatalogStaleAfter); err != nil {
		return nil, fmt.Errorf("catalog preflight failed: %w", err)
	} else if warning != "" {
		contract.LogWarn("catalog", errors.New(warning))
	}
	if err := p.cache.WarmUp(ctx, p.stores.Catalog()); err != nil {
		contract.LogWarn("common-projects cache warm-up", err)
	}

	summary := &schema.RunSummary{
		StageCounts:  map[string]int{},
		Degradations: p.classifier.Degradations(),
	}
	for _, msg := range summary.Degradations {
		contract.LogWarn("pipeline", errors.New(msg))
	}

	days := p.cfg.Days()
	summary.Days = len(days)

	workers := p.cfg.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(days) {
		workers = len(days)
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	dayCh := make(chan time.Time)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for day := range dayCh {
				result := p.processDay(ctx, day)
				mu.Lock()
				mergeDayResult(summary, result)
				mu.Unlock()
			}
		}()
	}

feed:
	for _, day := range days {
		select {
		case <-ctx.Done():
			break feed
		case dayCh <- day:
		}
	}
	close(dayCh)
	wg.Wait()

	summary.Elapsed = time.Since(start)
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

// mergeDayResult folds one day's counters into the run summary. Callers
// hold the summary lock.
func mergeDayResult(summary *schema.RunSummary, result dayResult) {
	summary.Snapshots += result.snapshots
	summary.Segments += result.segments
	summary.Blocks += len(result.blocks)
	summary.Flagged += result.flagged
	summary.FailedBlocks += result.failed
	for stage, n := range result.decidedBy {
		summary.StageCounts[stage] += n
	}
	if result.err != nil {
		summary.Degradations = append(summary.Degradations,
			fmt.Sprintf("day %s: %v", result.day.Format("2006-01-02"), result.err))
	}
}

// processDay runs the full chain for one local day. Segmentation errors
// fail the day; block-level failures are counted and skipped.
func (p *Pipeline) processDay(ctx context.Context, day time.Time) dayResult {
	result := dayResult{day: day, decidedBy: map[string]int{}}

	dayStart, dayEnd := schema.DayBounds(day, p.cfg.Location)
	snaps, err := p.stores.Snapshots().QueryRange(ctx, dayStart, dayEnd)
	if err != nil {
		result.err = fmt.Errorf("snapshot query failed: %w", err)
		return result
	}
	result.snapshots = len(snaps)
	if len(snaps) == 0 {
		return result
	}

	segments, err := p.segmenter.Segment(snaps)
	if err != nil {
		// Out-of-order input is a data defect the caller must fix; it is
		// never silently reordered.
		result.err = err
		return result
	}
	result.segments = len(segments)

	// Segmentation is deterministic, so an unchanged day re-derives the
	// same spans. Adopt stored identity and processed state for those, then
	// build only from what has not been consumed by a saved block yet: a
	// re-run over an unchanged range proposes nothing, while segments whose
	// block failed last run are picked up again.
	stored, err := p.stores.Segments().QueryRange(ctx, dayStart, dayEnd)
	if err != nil {
		result.err = fmt.Errorf("segment query failed: %w", err)
		return result
	}
	segments = reconcileSegments(segments, stored)

	var pending []schema.ActivitySegment
	for _, seg := range segments {
		if !seg.Processed {
			pending = append(pending, seg)
		}
	}
	if len(pending) == 0 {
		return result
	}

	built, failures := p.builder.BuildBlocks(ctx, day, pending, snaps)
	result.failed = len(failures)
	for _, fail := range failures {
		contract.LogWarn(fmt.Sprintf("%s block skipped", day.Format("2006-01-02")), fail)
	}

	if err := p.stores.Segments().SaveBatch(ctx, segments); err != nil {
		result.err = fmt.Errorf("segment save failed: %w", err)
		return result
	}

	for i := range built {
		// Finish the block in hand before honoring cancellation.
		if err := ctx.Err(); err != nil {
			result.err = err
			return result
		}
		block := &built[i].Block
		p.classifier.Classify(block, built[i].Evidence)

		if err := p.stores.Blocks().Save(ctx, block); err != nil {
			result.failed++
			contract.LogWarn(fmt.Sprintf("%s block %s not saved", day.Format("2006-01-02"), block.ID), err)
			continue
		}
		result.blocks = append(result.blocks, *block)
		result.decidedBy[block.DecidedBy]++
		if block.FlaggedForReview {
			result.flagged++
		}
	}

	if err := p.markProcessed(ctx, result.blocks); err != nil {
		result.err = err
	}
	return result
}

// reconcileSegments matches freshly derived segments against stored rows
// by span and context. A match keeps the stored ID, processed flag and
// signals envelope; anything else (new activity reshaping the day) stays a
// new unprocessed segment.
func reconcileSegments(derived, stored []schema.ActivitySegment) []schema.ActivitySegment {
	type spanKey struct {
		start, end int64
		contextKey string
	}
	prior := make(map[spanKey]*schema.ActivitySegment, len(stored))
	for i := range stored {
		seg := &stored[i]
		prior[spanKey{seg.Start.UnixMilli(), seg.End.UnixMilli(), seg.ContextKey}] = seg
	}
	for i := range derived {
		seg := &derived[i]
		match, ok := prior[spanKey{seg.Start.UnixMilli(), seg.End.UnixMilli(), seg.ContextKey}]
		if !ok {
			continue
		}
		seg.ID = match.ID
		seg.Processed = match.Processed
		if seg.SignalsJSON == "" {
			seg.SignalsJSON = match.SignalsJSON
		}
	}
	return derived
}

// markProcessed marks every segment referenced by a saved block.
func (p *Pipeline) markProcessed(ctx context.Context, blocks []schema.ProposedBlock) error {
	var ids []string
	for _, block := range blocks {
		ids = append(ids, block.SegmentIDs...)
	}
	if len(ids) == 0 {
		return nil
	}
	if err := p.stores.Segments().MarkProcessed(ctx, ids); err != nil {
		return fmt.Errorf("marking segments processed failed: %w", err)
	}
	return nil
}

// ProposeForSelection builds and classifies a single block over a
// user-selected time range, bypassing the normal grouping rules.
func (p *Pipeline) ProposeForSelection(ctx context.Context, start, end time.Time) (*schema.ProposedBlock, error) {
	snaps, err := p.stores.Snapshots().QueryRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("snapshot query failed: %w", err)
	}
	segments, err := p.segmenter.Segment(snaps)
	if err != nil {
		return nil, err
	}
	built, err := p.builder.BuildBlockForSelection(ctx, segments, snaps, start, end)
	if err != nil {
		return nil, err
	}
	p.classifier.Classify(&built.Block, built.Evidence)
	if err := p.stores.Blocks().Save(ctx, &built.Block); err != nil {
		return nil, fmt.Errorf("block save failed: %w", err)
	}
	return &built.Block, nil
}

// Health reports classifier stage readiness plus catalog usability.
func (p *Pipeline) Health(ctx context.Context) ([]schema.StageHealth, error) {
	health := p.classifier.Health()
	warning, err := p.matcher.CheckCatalog(ctx, p.cfg.CatalogStaleAfter)
	catalog := schema.StageHealth{Stage: "catalog", Available: true}
	switch {
	case errors.Is(err, schema.ErrEmptyCatalog):
		catalog.Available = false
		catalog.Detail = "no active entries"
	case err != nil:
		catalog.Available = false
		catalog.Detail = err.Error()
	case warning != "":
		catalog.Detail = warning
	}
	return append(health, catalog), nil
}
