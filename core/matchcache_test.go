package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmorales/segmint/internal/store"
	"github.com/pmorales/segmint/schema"
)

func TestCommonCacheRecordAndCandidates(t *testing.T) {
	cache := NewCommonCache(5)
	cache.Record(schema.WbsEntry{Code: "ACME-1042", Description: "Acme checkout rebuild"})

	t.Run("code token hits", func(t *testing.T) {
		got := cache.Candidates([]string{"ACME-1042"})
		require.Len(t, got, 1)
		assert.Equal(t, schema.CachedMatch, got[0].Method)
	})

	t.Run("description token hits", func(t *testing.T) {
		got := cache.Candidates([]string{"checkout"})
		require.Len(t, got, 1)
	})

	t.Run("short tokens never match description", func(t *testing.T) {
		assert.Empty(t, cache.Candidates([]string{"acm"}))
	})

	t.Run("no overlap", func(t *testing.T) {
		assert.Empty(t, cache.Candidates([]string{"unrelated"}))
	})
}

func TestCommonCacheConfidenceGrowsWithHits(t *testing.T) {
	cache := NewCommonCache(5)
	entry := schema.WbsEntry{Code: "ACME-1", Description: "Acme retainer work"}

	cache.Record(entry)
	first := cache.Candidates([]string{"ACME-1"})[0].Confidence

	for i := 0; i < 9; i++ {
		cache.Record(entry)
	}
	later := cache.Candidates([]string{"ACME-1"})[0].Confidence

	assert.Greater(t, later, first)
	// A cache hit never rivals a strong fuzzy match.
	assert.LessOrEqual(t, later, cacheBaseConfidence+cacheFreqBonus)
}

func TestCommonCacheEvictsColdest(t *testing.T) {
	cache := NewCommonCache(2)
	hot := schema.WbsEntry{Code: "HOT-1", Description: "hot"}
	cold := schema.WbsEntry{Code: "COLD-1", Description: "cold"}

	cache.Record(hot)
	cache.Record(hot)
	cache.Record(cold)
	cache.Record(schema.WbsEntry{Code: "NEW-1", Description: "new"})

	assert.Equal(t, 2, cache.Len())
	assert.Empty(t, cache.Candidates([]string{"COLD-1"}))
	assert.NotEmpty(t, cache.Candidates([]string{"HOT-1"}))
}

func TestCommonCacheDisabled(t *testing.T) {
	cache := NewCommonCache(0)
	cache.Record(schema.WbsEntry{Code: "A", Description: "a"})
	assert.Zero(t, cache.Len())
	assert.Empty(t, cache.Candidates([]string{"A"}))
}

func TestCommonCacheWarmUp(t *testing.T) {
	catalog := store.NewMemoryStores().Catalog()
	ctx := context.Background()
	require.NoError(t, catalog.Upsert(ctx, []schema.WbsEntry{
		{Code: "ACME-1", Description: "Acme retainer", Active: true},
		{Code: "BETA-2", Description: "Beta rollout", Active: true},
	}))
	require.NoError(t, catalog.RecordMatch(ctx, "ACME-1"))
	require.NoError(t, catalog.RecordMatch(ctx, "ACME-1"))
	require.NoError(t, catalog.RecordMatch(ctx, "BETA-2"))

	cache := NewCommonCache(10)
	require.NoError(t, cache.WarmUp(ctx, catalog))
	assert.Equal(t, 2, cache.Len())
}
