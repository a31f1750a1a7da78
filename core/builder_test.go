package core

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmorales/segmint/internal/contract"
	"github.com/pmorales/segmint/schema"
)

func segAt(id string, start, end time.Time, app string, idle float64, snapIDs ...string) schema.ActivitySegment {
	return schema.ActivitySegment{
		ID:          id,
		Start:       start,
		End:         end,
		App:         app,
		ContextKey:  app,
		SampleCount: 1,
		SnapshotIDs: snapIDs,
		IdleRatio:   idle,
	}
}

func newTestBuilder(t *testing.T, cfg *contract.Config, entries ...schema.WbsEntry) *Builder {
	t.Helper()
	catalog := seededCatalog(t, entries...)
	extractor := NewSignalExtractor(nil, cfg.Location)
	matcher := NewMatcher(catalog, nil, cfg)
	return NewBuilder(cfg, extractor, matcher)
}

func TestBuildBlocksMergesWithinGap(t *testing.T) {
	cfg := newTestConfig()
	b := newTestBuilder(t, cfg)

	segments := []schema.ActivitySegment{
		segAt("s1", at(9, 0, 0), at(9, 20, 0), "GoLand", 0),
		segAt("s2", at(9, 22, 0), at(9, 45, 0), "GoLand", 0),
	}

	built, failures := b.BuildBlocks(context.Background(), at(0, 0, 0), segments, nil)
	require.Empty(t, failures)
	require.Len(t, built, 1)

	block := built[0].Block
	assert.Equal(t, at(9, 0, 0), block.Start)
	assert.Equal(t, at(9, 45, 0), block.End)
	require.Len(t, block.Breakdown.Shares, 1)
	assert.Equal(t, "GoLand", block.Breakdown.Shares[0].App)
	assert.InDelta(t, 1.0, block.Breakdown.Shares[0].Share, schema.ShareTolerance)
	assert.ElementsMatch(t, []string{"s1", "s2"}, block.SegmentIDs)

	// 45 minutes of active time rounds up to the next 6-minute increment.
	assert.Equal(t, int64(2880), block.BillableSecs)
	assert.False(t, block.FlaggedForReview)
}

func TestBuildBlocksSplitsBeyondGap(t *testing.T) {
	cfg := newTestConfig()
	b := newTestBuilder(t, cfg)

	segments := []schema.ActivitySegment{
		segAt("s1", at(9, 0, 0), at(9, 40, 0), "GoLand", 0),
		segAt("s2", at(10, 30, 0), at(11, 10, 0), "Excel", 0),
	}

	built, failures := b.BuildBlocks(context.Background(), at(0, 0, 0), segments, nil)
	require.Empty(t, failures)
	assert.Len(t, built, 2)
}

func TestBuildBlocksPartialPolicyExcludesHighIdle(t *testing.T) {
	cfg := newTestConfig()
	b := newTestBuilder(t, cfg)

	segments := []schema.ActivitySegment{
		segAt("s1", at(9, 0, 0), at(9, 40, 0), "Excel", 0),
		// 85% idle, right after the block: auto-excluded, neighbor flagged.
		segAt("s2", at(9, 41, 0), at(10, 20, 0), "Excel", 0.85),
	}

	built, failures := b.BuildBlocks(context.Background(), at(0, 0, 0), segments, nil)
	require.Empty(t, failures)
	require.Len(t, built, 1)

	block := built[0].Block
	assert.Equal(t, at(9, 40, 0), block.End)
	assert.True(t, block.FlaggedForReview)
	found := false
	for _, reason := range block.ReviewReasons {
		if strings.Contains(reason, "auto-excluded") {
			found = true
		}
	}
	assert.True(t, found, "expected an auto-exclusion review reason, got %v", block.ReviewReasons)
}

func TestBuildBlocksFlagsDistantExclusion(t *testing.T) {
	cfg := newTestConfig()
	b := newTestBuilder(t, cfg)

	segments := []schema.ActivitySegment{
		segAt("s1", at(9, 0, 0), at(9, 40, 0), "Excel", 0),
		// Hours away from anything that survives; the exclusion still has
		// to surface on the nearest block.
		segAt("s2", at(12, 0, 0), at(12, 45, 0), "Excel", 0.9),
	}

	built, failures := b.BuildBlocks(context.Background(), at(0, 0, 0), segments, nil)
	require.Empty(t, failures)
	require.Len(t, built, 1)

	block := built[0].Block
	assert.True(t, block.FlaggedForReview)
	found := false
	for _, reason := range block.ReviewReasons {
		if strings.Contains(reason, "auto-excluded") {
			found = true
		}
	}
	assert.True(t, found, "expected the distant exclusion to flag the block, got %v", block.ReviewReasons)
}

func TestBuildBlocksIncludePolicyKeepsHighIdle(t *testing.T) {
	cfg := newTestConfig()
	cfg.IdlePolicy = schema.IdleInclude
	b := newTestBuilder(t, cfg)

	segments := []schema.ActivitySegment{
		segAt("s1", at(9, 0, 0), at(10, 0, 0), "Excel", 0.9),
	}

	built, failures := b.BuildBlocks(context.Background(), at(0, 0, 0), segments, nil)
	require.Empty(t, failures)
	require.Len(t, built, 1)

	// Include policy bills the full hour despite idle time.
	assert.Equal(t, int64(3600), built[0].Block.BillableSecs)
}

func TestBuildBlocksConsolidatesSameProject(t *testing.T) {
	cfg := newTestConfig()
	b := newTestBuilder(t, cfg,
		schema.WbsEntry{Code: "ACME-1042", Description: "Acme checkout rebuild", Active: true},
	)

	snaps := []schema.ActivitySnapshot{
		snapAt("n1", at(9, 0, 0), "GoLand", "ACME-1042 checkout.go"),
		snapAt("n2", at(10, 0, 0), "GoLand", "ACME-1042 matcher.go"),
	}
	segments := []schema.ActivitySegment{
		// Two groups: the 10-minute gap exceeds merge-gap but sits inside
		// the consolidation window, and both resolve to the same project.
		segAt("s1", at(9, 0, 0), at(9, 50, 0), "GoLand", 0, "n1"),
		segAt("s2", at(10, 0, 0), at(10, 45, 0), "GoLand", 0, "n2"),
	}

	built, failures := b.BuildBlocks(context.Background(), at(0, 0, 0), segments, snaps)
	require.Empty(t, failures)
	require.Len(t, built, 1)

	block := built[0].Block
	assert.Equal(t, at(9, 0, 0), block.Start)
	assert.Equal(t, at(10, 45, 0), block.End)
	require.NotNil(t, block.Match)
	assert.Equal(t, "ACME-1042", block.Match.Code)
	assert.InDelta(t, 1.0, block.Breakdown.TotalShare(), schema.ShareTolerance)
	assert.ElementsMatch(t, []string{"s1", "s2"}, block.SegmentIDs)
}

func TestBuildBlocksFlagsShortBlocks(t *testing.T) {
	cfg := newTestConfig()
	b := newTestBuilder(t, cfg)

	segments := []schema.ActivitySegment{
		segAt("s1", at(9, 0, 0), at(9, 10, 0), "Excel", 0),
	}

	built, failures := b.BuildBlocks(context.Background(), at(0, 0, 0), segments, nil)
	require.Empty(t, failures)
	require.Len(t, built, 1)

	block := built[0].Block
	assert.True(t, block.FlaggedForReview)
	require.NotEmpty(t, block.ReviewReasons)
	assert.Contains(t, block.ReviewReasons[len(block.ReviewReasons)-1], "below minimum block length")
}

func TestBuildBlocksFlagsPersonalBrowsing(t *testing.T) {
	cfg := newTestConfig()
	b := newTestBuilder(t, cfg)

	snaps := []schema.ActivitySnapshot{
		{ID: "n1", Timestamp: at(13, 0, 0), App: "Safari", WindowTitle: "Home", URL: "https://youtube.com/watch"},
	}
	segments := []schema.ActivitySegment{
		segAt("s1", at(13, 0, 0), at(13, 40, 0), "Safari", 0, "n1"),
	}

	built, failures := b.BuildBlocks(context.Background(), at(0, 0, 0), segments, snaps)
	require.Empty(t, failures)
	require.Len(t, built, 1)

	block := built[0].Block
	assert.True(t, block.FlaggedForReview)
	assert.Contains(t, block.ReviewReasons, "personal browsing detected")
}

func TestBuildBlockForSelection(t *testing.T) {
	cfg := newTestConfig()
	b := newTestBuilder(t, cfg)

	segments := []schema.ActivitySegment{
		segAt("s1", at(14, 5, 0), at(14, 35, 0), "Excel", 0),
		segAt("s2", at(14, 40, 0), at(14, 55, 0), "Google Chrome", 0),
	}

	built, err := b.BuildBlockForSelection(context.Background(), segments, nil, at(14, 0, 0), at(15, 0, 0))
	require.NoError(t, err)

	block := built.Block
	// Selection blocks span the requested range exactly.
	assert.Equal(t, at(14, 0, 0), block.Start)
	assert.Equal(t, at(15, 0, 0), block.End)

	// Two apps share the breakdown in duration proportion: 30 and 15 minutes.
	require.Len(t, block.Breakdown.Shares, 2)
	assert.InDelta(t, 1.0, block.Breakdown.TotalShare(), schema.ShareTolerance)
	assert.Equal(t, "Excel", block.Breakdown.Dominant())
}

func TestBuildBlockForSelectionErrors(t *testing.T) {
	cfg := newTestConfig()
	b := newTestBuilder(t, cfg)

	t.Run("inverted range", func(t *testing.T) {
		_, err := b.BuildBlockForSelection(context.Background(), nil, nil, at(15, 0, 0), at(14, 0, 0))
		assert.ErrorIs(t, err, schema.ErrInvalidDateRange)
	})

	t.Run("no activity", func(t *testing.T) {
		_, err := b.BuildBlockForSelection(context.Background(), nil, nil, at(14, 0, 0), at(15, 0, 0))
		assert.Error(t, err)
	})
}

func TestClipSegments(t *testing.T) {
	segments := []schema.ActivitySegment{
		segAt("s1", at(9, 0, 0), at(11, 0, 0), "Excel", 0),
		segAt("s2", at(12, 0, 0), at(13, 0, 0), "Excel", 0),
	}

	clipped := clipSegments(segments, at(10, 0, 0), at(12, 30, 0))
	require.Len(t, clipped, 2)
	assert.Equal(t, at(10, 0, 0), clipped[0].Start)
	assert.Equal(t, at(11, 0, 0), clipped[0].End)
	assert.Equal(t, at(12, 30, 0), clipped[1].End)
}
