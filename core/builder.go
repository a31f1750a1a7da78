package core

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/pmorales/segmint/internal/contract"
	"github.com/pmorales/segmint/schema"
)

// Builder consolidates activity segments into proposed blocks: merging
// adjacent same-context segments, applying the idle policy, computing
// duration-weighted breakdowns, and invoking the project matcher per block.
type Builder struct {
	cfg       *contract.Config
	extractor *SignalExtractor
	matcher   *Matcher
}

// NewBuilder builds a block builder from the validated config.
func NewBuilder(cfg *contract.Config, extractor *SignalExtractor, matcher *Matcher) *Builder {
	return &Builder{cfg: cfg, extractor: extractor, matcher: matcher}
}

// BuiltBlock pairs a proposed block with the evidence collected while
// building it, for the classifier stage.
type BuiltBlock struct {
	Block    schema.ProposedBlock
	Evidence schema.EvidenceSignals
}

// BuildBlocks consolidates the day's segments into proposed blocks.
// Per-block failures (matcher errors, invariant violations) are collected
// and returned alongside the blocks that succeeded; they never abort the
// day.
func (b *Builder) BuildBlocks(ctx context.Context, day time.Time, segments []schema.ActivitySegment, snaps []schema.ActivitySnapshot) ([]BuiltBlock, []error) {
	dayStart, dayEnd := schema.DayBounds(day, b.cfg.Location)

	inDay := clipSegments(segments, dayStart, dayEnd)
	if len(inDay) == 0 {
		return nil, nil
	}
	sort.Slice(inDay, func(i, j int) bool { return inDay[i].Start.Before(inDay[j].Start) })

	kept, excluded := b.applyIdlePolicy(inDay)
	groups := b.groupSegments(kept)

	snapIndex := indexSnapshots(snaps)

	var built []BuiltBlock
	var failures []error
	for _, group := range groups {
		result, err := b.buildOne(ctx, group, snapIndex)
		if err != nil {
			failures = append(failures, err)
			continue
		}
		built = append(built, *result)
	}

	built = b.consolidateByProject(built)

	for i := range built {
		b.finalizeBlock(&built[i].Block)
	}

	// Re-validate after consolidation; a violation here is a construction
	// bug fatal to that block only.
	valid := built[:0]
	for i := range built {
		if err := built[i].Block.Validate(b.cfg.Location); err != nil {
			failures = append(failures, fmt.Errorf("block %s: %w", built[i].Block.ID, err))
			continue
		}
		valid = append(valid, built[i])
	}

	b.flagExclusions(valid, excluded)
	return valid, failures
}

// BuildBlockForSelection consolidates an arbitrary user-selected range into
// a single proposed block, regardless of context changes inside it.
func (b *Builder) BuildBlockForSelection(ctx context.Context, segments []schema.ActivitySegment, snaps []schema.ActivitySnapshot, start, end time.Time) (*BuiltBlock, error) {
	if !start.Before(end) {
		return nil, fmt.Errorf("%w: selection start %s not before end %s", schema.ErrInvalidDateRange, start, end)
	}
	inRange := clipSegments(segments, start, end)
	if len(inRange) == 0 {
		return nil, fmt.Errorf("no activity in selection %s to %s", start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	sort.Slice(inRange, func(i, j int) bool { return inRange[i].Start.Before(inRange[j].Start) })

	result, err := b.buildOne(ctx, inRange, indexSnapshots(snaps))
	if err != nil {
		return nil, err
	}
	// Selection blocks span the requested range, not just observed activity.
	result.Block.Start = start
	result.Block.End = end
	b.finalizeBlock(&result.Block)
	if err := result.Block.Validate(b.cfg.Location); err != nil {
		return nil, err
	}
	return result, nil
}

// applyIdlePolicy splits segments into kept and auto-excluded sets. Only
// the partial policy excludes spans; exclude/include keep every span and
// differ in how durations are weighted later.
func (b *Builder) applyIdlePolicy(segments []schema.ActivitySegment) (kept, excluded []schema.ActivitySegment) {
	if b.cfg.IdlePolicy != schema.IdlePartial {
		return segments, nil
	}
	for _, seg := range segments {
		if seg.IdleRatio >= b.cfg.IdleExcludeRatio {
			excluded = append(excluded, seg)
			continue
		}
		kept = append(kept, seg)
	}
	return kept, excluded
}

// groupSegments clusters ordered segments into candidate blocks: same
// dominant application with inter-segment gap at most the merge threshold.
func (b *Builder) groupSegments(segments []schema.ActivitySegment) [][]schema.ActivitySegment {
	var groups [][]schema.ActivitySegment
	var cur []schema.ActivitySegment

	for _, seg := range segments {
		if len(cur) > 0 {
			last := cur[len(cur)-1]
			gap := seg.Start.Sub(last.End)
			if seg.App != last.App || gap > b.cfg.MergeGap {
				groups = append(groups, cur)
				cur = nil
			}
		}
		cur = append(cur, seg)
	}
	if len(cur) > 0 {
		groups = append(groups, cur)
	}
	return groups
}

// buildOne turns one segment group into a proposed block: weighted
// breakdown, idle accounting, signal aggregation, and project matching.
func (b *Builder) buildOne(ctx context.Context, group []schema.ActivitySegment, snapIndex map[string]*schema.ActivitySnapshot) (*BuiltBlock, error) {
	start := group[0].Start
	end := group[len(group)-1].End

	weights := make(map[string]float64)
	var totalWeight float64
	var idleSecs float64

	for _, seg := range group {
		dur := seg.Duration().Seconds()
		idle := dur * seg.IdleRatio
		idleSecs += idle

		weight := dur
		if b.cfg.IdlePolicy != schema.IdleInclude {
			weight = dur - idle
		}
		if weight <= 0 {
			continue
		}
		weights[seg.App] += weight
		totalWeight += weight
	}

	breakdown := schema.ActivityBreakdown{}
	if totalWeight > 0 {
		apps := make([]string, 0, len(weights))
		for app := range weights {
			apps = append(apps, app)
		}
		sort.Strings(apps)
		for _, app := range apps {
			breakdown.Shares = append(breakdown.Shares, schema.ActivityShare{
				App:          app,
				DurationSecs: int64(weights[app]),
				Share:        weights[app] / totalWeight,
			})
		}
	}

	// Signals per segment, dominant (longest) segment first.
	ordered := make([]schema.ActivitySegment, len(group))
	copy(ordered, group)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Duration() > ordered[j].Duration()
	})

	var signals []schema.ContextSignals
	var blockSnaps []schema.ActivitySnapshot
	segmentIDs := make([]string, 0, len(group))
	for i := range ordered {
		seg := &ordered[i]
		segSnaps := snapshotsFor(seg, snapIndex)
		signals = append(signals, b.extractor.SignalsForSegment(ctx, seg, segSnaps))
		blockSnaps = append(blockSnaps, segSnaps...)
	}
	for _, seg := range group {
		segmentIDs = append(segmentIDs, seg.ID)
	}

	merged := MergeSignals(signals)
	evidence := BuildEvidence(signals, blockSnaps)

	block := schema.ProposedBlock{
		ID:            schema.NewID(),
		Start:         start,
		End:           end,
		Breakdown:     breakdown,
		Category:      schema.PendingCategory,
		Status:        schema.ProposedStatus,
		SegmentIDs:    segmentIDs,
		IdlePolicy:    b.cfg.IdlePolicy,
		TotalIdleSecs: int64(idleSecs),
		CreatedAt:     time.Now(),
	}

	matches, err := b.matcher.Match(ctx, merged)
	if err != nil {
		return nil, fmt.Errorf("block %s-%s: %w",
			start.Format("15:04"), end.Format("15:04"), err)
	}
	if len(matches) > 0 {
		top := matches[0]
		block.Match = &top
	}

	if merged.Personal {
		block.FlaggedForReview = true
		block.ReviewReasons = append(block.ReviewReasons, "personal browsing detected")
	}
	if merged.CalendarDegraded {
		block.ReviewReasons = append(block.ReviewReasons, "calendar lookup unavailable")
	}

	return &BuiltBlock{Block: block, Evidence: evidence}, nil
}

// flagExclusions marks the block nearest each auto-excluded high-idle span
// for review, so the hole is visible even when nothing survived directly
// beside it. A day whose spans were all excluded is logged instead.
func (b *Builder) flagExclusions(built []BuiltBlock, excluded []schema.ActivitySegment) {
	if len(excluded) == 0 {
		return
	}
	if len(built) == 0 {
		for _, seg := range excluded {
			contract.LogWarn("high-idle span auto-excluded with no surviving block",
				fmt.Errorf("span %s at %.0f%% idle",
					schema.FormatClockRange(seg.Start, seg.End, b.cfg.Location), seg.IdleRatio*100))
		}
		return
	}
	for _, seg := range excluded {
		nearest := &built[0].Block
		best := gapToSegment(nearest, &seg)
		for i := 1; i < len(built); i++ {
			if d := gapToSegment(&built[i].Block, &seg); d < best {
				nearest = &built[i].Block
				best = d
			}
		}
		nearest.FlaggedForReview = true
		nearest.ReviewReasons = append(nearest.ReviewReasons,
			fmt.Sprintf("span %s auto-excluded at %.0f%% idle",
				schema.FormatClockRange(seg.Start, seg.End, b.cfg.Location), seg.IdleRatio*100))
	}
}

// gapToSegment is the distance between a block and a segment, zero when
// they overlap.
func gapToSegment(block *schema.ProposedBlock, seg *schema.ActivitySegment) time.Duration {
	if seg.End.Before(block.Start) {
		return block.Start.Sub(seg.End)
	}
	if seg.Start.After(block.End) {
		return seg.Start.Sub(block.End)
	}
	return 0
}

// consolidateByProject merges adjacent blocks attributed to the same
// project when the gap between them is within the consolidation window.
func (b *Builder) consolidateByProject(built []BuiltBlock) []BuiltBlock {
	if b.cfg.Consolidation <= 0 || len(built) < 2 {
		return built
	}
	sort.Slice(built, func(i, j int) bool { return built[i].Block.Start.Before(built[j].Block.Start) })

	out := built[:1]
	for i := 1; i < len(built); i++ {
		prev := &out[len(out)-1]
		next := &built[i]
		if sameProject(prev.Block.Match, next.Block.Match) &&
			next.Block.Start.Sub(prev.Block.End) <= b.cfg.Consolidation {
			mergeInto(prev, next)
			continue
		}
		out = append(out, *next)
	}
	return out
}

// mergeInto folds next into prev: extended range, recomputed shares from
// the stored per-app durations, combined idle and evidence.
func mergeInto(prev, next *BuiltBlock) {
	pb, nb := &prev.Block, &next.Block

	weights := make(map[string]int64)
	var total int64
	for _, share := range append(pb.Breakdown.Shares, nb.Breakdown.Shares...) {
		weights[share.App] += share.DurationSecs
		total += share.DurationSecs
	}
	merged := schema.ActivityBreakdown{}
	apps := make([]string, 0, len(weights))
	for app := range weights {
		apps = append(apps, app)
	}
	sort.Strings(apps)
	for _, app := range apps {
		merged.Shares = append(merged.Shares, schema.ActivityShare{
			App:          app,
			DurationSecs: weights[app],
			Share:        float64(weights[app]) / float64(total),
		})
	}

	pb.End = nb.End
	pb.Breakdown = merged
	pb.SegmentIDs = append(pb.SegmentIDs, nb.SegmentIDs...)
	pb.TotalIdleSecs += nb.TotalIdleSecs
	if nb.Match != nil && (pb.Match == nil || nb.Match.Confidence > pb.Match.Confidence) {
		pb.Match = nb.Match
	}
	pb.FlaggedForReview = pb.FlaggedForReview || nb.FlaggedForReview
	pb.ReviewReasons = append(pb.ReviewReasons, nb.ReviewReasons...)

	prev.Evidence = mergeEvidence(prev.Evidence, next.Evidence)
}

// finalizeBlock fills derived fields: billable duration rounded to the
// billing increment and the minimum-length review flag.
func (b *Builder) finalizeBlock(block *schema.ProposedBlock) {
	active := block.Duration() - time.Duration(block.TotalIdleSecs)*time.Second
	if block.IdlePolicy == schema.IdleInclude {
		active = block.Duration()
	}
	if active < 0 {
		active = 0
	}
	block.BillableSecs = int64(schema.RoundToIncrement(active, b.cfg.BillingIncrement).Seconds())

	if b.cfg.MinBlock > 0 && block.Duration() < b.cfg.MinBlock {
		block.FlaggedForReview = true
		block.ReviewReasons = append(block.ReviewReasons,
			fmt.Sprintf("below minimum block length (%s)", b.cfg.MinBlock))
	}
}

// clipSegments returns copies of the segments overlapping [start, end),
// clipped to those bounds with idle time scaled to the surviving span.
func clipSegments(segments []schema.ActivitySegment, start, end time.Time) []schema.ActivitySegment {
	var out []schema.ActivitySegment
	for _, seg := range segments {
		if !seg.End.After(start) || !seg.Start.Before(end) {
			continue
		}
		clipped := seg
		if clipped.Start.Before(start) {
			clipped.Start = start
		}
		if clipped.End.After(end) {
			clipped.End = end
		}
		out = append(out, clipped)
	}
	return out
}

// sameProject reports whether both blocks carry the same non-empty match.
func sameProject(a, b *schema.ProjectMatch) bool {
	return a != nil && b != nil && a.Code == b.Code
}

// mergeEvidence unions two evidence sets.
func mergeEvidence(a, b schema.EvidenceSignals) schema.EvidenceSignals {
	union := func(x, y []string) []string {
		set := newTokenSet()
		set.addAll(x)
		set.addAll(y)
		return set.sorted()
	}
	return schema.EvidenceSignals{
		Apps:                union(a.Apps, b.Apps),
		Titles:              union(a.Titles, b.Titles),
		Keywords:            union(a.Keywords, b.Keywords),
		Identifiers:         union(a.Identifiers, b.Identifiers),
		Domains:             union(a.Domains, b.Domains),
		Paths:               union(a.Paths, b.Paths),
		MeetingPlatforms:    union(a.MeetingPlatforms, b.MeetingPlatforms),
		HasRecurringMeeting: a.HasRecurringMeeting || b.HasRecurringMeeting,
		HasOnlineMeeting:    a.HasOnlineMeeting || b.HasOnlineMeeting,
	}
}

// indexSnapshots builds an ID index over the day's snapshots.
func indexSnapshots(snaps []schema.ActivitySnapshot) map[string]*schema.ActivitySnapshot {
	index := make(map[string]*schema.ActivitySnapshot, len(snaps))
	for i := range snaps {
		index[snaps[i].ID] = &snaps[i]
	}
	return index
}

// snapshotsFor resolves a segment's snapshot references against the index.
func snapshotsFor(seg *schema.ActivitySegment, index map[string]*schema.ActivitySnapshot) []schema.ActivitySnapshot {
	out := make([]schema.ActivitySnapshot, 0, len(seg.SnapshotIDs))
	for _, id := range seg.SnapshotIDs {
		if snap, ok := index[id]; ok {
			out = append(out, *snap)
		}
	}
	return out
}
