package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmorales/segmint/schema"
)

// newTestDB opens a throwaway SQLite store with the full schema applied.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := openDB(schema.SQLiteBackend, filepath.Join(t.TempDir(), "segmint_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, createTables(db, schema.SQLiteBackend))
	return db
}

func testTime(hour, minute int) time.Time {
	return time.Date(2026, 8, 20, hour, minute, 0, 0, time.UTC)
}

func TestSnapshotStoreRoundTrip(t *testing.T) {
	db := newTestDB(t)
	s := &SnapshotStoreImpl{db: db, backend: schema.SQLiteBackend}
	ctx := context.Background()

	require.NoError(t, s.SaveBatch(ctx, []schema.ActivitySnapshot{
		{ID: "b", Timestamp: testTime(10, 5), App: "Excel", WindowTitle: "Model_v3"},
		{ID: "a", Timestamp: testTime(10, 0), App: "GoLand", WindowTitle: "main.go", URL: "", DocumentPath: "/tmp/main.go"},
		{ID: "c", Timestamp: testTime(11, 0), App: "Excel", Idle: true},
	}))

	got, err := s.QueryRange(ctx, testTime(10, 0), testTime(10, 30))
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Ordered by timestamp, end bound exclusive.
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
	assert.True(t, got[0].Timestamp.Equal(testTime(10, 0)))
	assert.Equal(t, "/tmp/main.go", got[0].DocumentPath)

	t.Run("upsert replaces by id", func(t *testing.T) {
		require.NoError(t, s.SaveBatch(ctx, []schema.ActivitySnapshot{
			{ID: "a", Timestamp: testTime(10, 0), App: "GoLand", WindowTitle: "matcher.go"},
		}))
		got, err := s.QueryRange(ctx, testTime(10, 0), testTime(10, 1))
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "matcher.go", got[0].WindowTitle)
	})
}

func TestSegmentStoreRoundTrip(t *testing.T) {
	db := newTestDB(t)
	s := &SegmentStoreImpl{db: db, backend: schema.SQLiteBackend}
	ctx := context.Background()

	require.NoError(t, s.SaveBatch(ctx, []schema.ActivitySegment{
		{
			ID: "seg1", Start: testTime(9, 0), End: testTime(9, 30), App: "GoLand",
			ContextKey: "GoLand", SampleCount: 60, SnapshotIDs: []string{"a", "b"},
			IdleRatio: 0.1, SignalsJSON: `{"version":2}`,
		},
		{
			ID: "seg2", Start: testTime(10, 0), End: testTime(10, 20), App: "Excel",
			ContextKey: "Excel", SampleCount: 40,
		},
	}))

	got, err := s.QueryRange(ctx, testTime(9, 0), testTime(11, 0))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"a", "b"}, got[0].SnapshotIDs)
	assert.Equal(t, `{"version":2}`, got[0].SignalsJSON)
	assert.InDelta(t, 0.1, got[0].IdleRatio, 0.0001)

	t.Run("mark processed", func(t *testing.T) {
		unprocessed, err := s.FindUnprocessed(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, unprocessed, 2)

		require.NoError(t, s.MarkProcessed(ctx, []string{"seg1", "missing"}))
		require.NoError(t, s.MarkProcessed(ctx, []string{"seg1"})) // idempotent

		unprocessed, err = s.FindUnprocessed(ctx, 10)
		require.NoError(t, err)
		require.Len(t, unprocessed, 1)
		assert.Equal(t, "seg2", unprocessed[0].ID)
	})
}

func TestBlockStoreLifecycle(t *testing.T) {
	db := newTestDB(t)
	s := &BlockStoreImpl{db: db, backend: schema.SQLiteBackend}
	ctx := context.Background()

	block := &schema.ProposedBlock{
		ID:     "blk1",
		Start:  testTime(9, 0),
		End:    testTime(10, 0),
		Status: schema.ProposedStatus,
		Match:  &schema.ProjectMatch{Code: "ACME-1042", Confidence: 1, Method: schema.ExactCodeMatch},
		Breakdown: schema.ActivityBreakdown{Shares: []schema.ActivityShare{
			{App: "GoLand", DurationSecs: 3600, Share: 1},
		}},
		BillableSecs: 3600,
	}
	require.NoError(t, s.Save(ctx, block))

	t.Run("get round trips the payload", func(t *testing.T) {
		got, err := s.Get(ctx, "blk1")
		require.NoError(t, err)
		assert.Equal(t, schema.ProposedStatus, got.Status)
		require.NotNil(t, got.Match)
		assert.Equal(t, "ACME-1042", got.Match.Code)
		assert.Equal(t, int64(3600), got.BillableSecs)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := s.Get(ctx, "nope")
		assert.ErrorIs(t, err, schema.ErrBlockNotFound)
	})

	t.Run("status transitions", func(t *testing.T) {
		err := s.UpdateStatus(ctx, "nope", schema.AcceptedStatus, testTime(12, 0))
		assert.ErrorIs(t, err, schema.ErrBlockNotFound)

		require.NoError(t, s.UpdateStatus(ctx, "blk1", schema.AcceptedStatus, testTime(12, 0)))
		// Re-applying the same decision is a no-op.
		require.NoError(t, s.UpdateStatus(ctx, "blk1", schema.AcceptedStatus, testTime(13, 0)))

		got, err := s.Get(ctx, "blk1")
		require.NoError(t, err)
		assert.Equal(t, schema.AcceptedStatus, got.Status)
		require.NotNil(t, got.ReviewedAt)
		assert.True(t, got.ReviewedAt.Equal(testTime(12, 0)))

		accepted, err := s.ListByStatus(ctx, schema.AcceptedStatus, testTime(0, 0), testTime(23, 59))
		require.NoError(t, err)
		assert.Len(t, accepted, 1)

		proposed, err := s.ListByStatus(ctx, schema.ProposedStatus, testTime(0, 0), testTime(23, 59))
		require.NoError(t, err)
		assert.Empty(t, proposed)
	})
}

func TestBlockStoreGetStatus(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	snaps := &SnapshotStoreImpl{db: db, backend: schema.SQLiteBackend}
	require.NoError(t, snaps.SaveBatch(ctx, []schema.ActivitySnapshot{
		{ID: "a", Timestamp: testTime(9, 0), App: "Excel"},
		{ID: "b", Timestamp: testTime(17, 0), App: "Excel"},
	}))

	s := &BlockStoreImpl{db: db, backend: schema.SQLiteBackend}
	status, err := s.GetStatus(ctx)
	require.NoError(t, err)

	assert.Equal(t, string(schema.SQLiteBackend), status.Backend)
	assert.True(t, status.Connected)
	assert.Equal(t, int64(2), status.TableRows[snapshotsTable])
	assert.Equal(t, int64(0), status.TableRows[blocksTable])
	assert.True(t, status.OldestData.Equal(testTime(9, 0)))
	assert.True(t, status.NewestData.Equal(testTime(17, 0)))
	assert.Greater(t, status.SizeBytes, int64(0))
}

func TestCatalogUpsertAndSearch(t *testing.T) {
	db := newTestDB(t)
	c := newCatalogStore(db, schema.SQLiteBackend)
	ctx := context.Background()

	require.NoError(t, c.Upsert(ctx, []schema.WbsEntry{
		{Code: "ACME-1042", Description: "Acme checkout rebuild", Tokens: []string{"checkout", "payments"}, Active: true},
		{Code: "INT-OPS", Description: "Internal operations", Active: true},
		{Code: "OLD-1", Description: "Retired engagement", Active: false},
	}))

	t.Run("exact skips inactive", func(t *testing.T) {
		entry, err := c.Exact(ctx, "ACME-1042")
		require.NoError(t, err)
		require.NotNil(t, entry)
		assert.Equal(t, []string{"checkout", "payments"}, entry.Tokens)

		entry, err = c.Exact(ctx, "OLD-1")
		require.NoError(t, err)
		assert.Nil(t, entry)
	})

	t.Run("fts search ranks matches", func(t *testing.T) {
		hits, err := c.Search(ctx, []string{"checkout"}, 5)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "ACME-1042", hits[0].Entry.Code)
		assert.GreaterOrEqual(t, hits[0].Relevance, 0.0)
	})

	t.Run("deactivation drops from the index", func(t *testing.T) {
		require.NoError(t, c.Upsert(ctx, []schema.WbsEntry{
			{Code: "ACME-1042", Description: "Acme checkout rebuild", Tokens: []string{"checkout"}, Active: false},
		}))
		hits, err := c.Search(ctx, []string{"checkout"}, 5)
		require.NoError(t, err)
		assert.Empty(t, hits)

		// Reactivate for the remaining subtests.
		require.NoError(t, c.Upsert(ctx, []schema.WbsEntry{
			{Code: "ACME-1042", Description: "Acme checkout rebuild", Tokens: []string{"checkout"}, Active: true},
		}))
	})

	t.Run("match counters survive upserts", func(t *testing.T) {
		require.NoError(t, c.RecordMatch(ctx, "ACME-1042"))
		require.NoError(t, c.RecordMatch(ctx, "ACME-1042"))
		require.NoError(t, c.RecordMatch(ctx, "INT-OPS"))

		require.NoError(t, c.Upsert(ctx, []schema.WbsEntry{
			{Code: "ACME-1042", Description: "Acme checkout rebuild phase 2", Tokens: []string{"checkout"}, Active: true},
		}))

		top, err := c.MostMatched(ctx, 5)
		require.NoError(t, err)
		require.Len(t, top, 2)
		assert.Equal(t, "ACME-1042", top[0].Code)
		assert.Equal(t, "Acme checkout rebuild phase 2", top[0].Description)

		status, err := c.Status(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), status.Entries)
		assert.Equal(t, int64(2), status.ActiveCount)
		assert.Equal(t, int64(3), status.TotalMatches)
		assert.False(t, status.LastSync.IsZero())
	})
}

func TestCalendarStoreRoundTrip(t *testing.T) {
	db := newTestDB(t)
	c := &CalendarStoreImpl{db: db, backend: schema.SQLiteBackend}
	ctx := context.Background()

	require.NoError(t, c.SaveEvents(ctx, []schema.CalendarEvent{
		{
			ID: "ev1", Title: "Acme merger sync", Start: testTime(10, 0), End: testTime(10, 30),
			Attendees: []string{"kat@acme.com"}, Platform: "Zoom", Recurring: true, Online: true,
		},
		{ID: "ev2", Title: "Lunch", Start: testTime(12, 0), End: testTime(13, 0)},
	}))

	got, err := c.EventsInRange(ctx, testTime(10, 15), testTime(10, 45))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ev1", got[0].ID)
	assert.Equal(t, []string{"kat@acme.com"}, got[0].Attendees)
	assert.Equal(t, "Zoom", got[0].Platform)
	assert.True(t, got[0].Recurring)
}

func TestRebind(t *testing.T) {
	query := "SELECT * FROM t WHERE a = ? AND b = ?"
	assert.Equal(t, query, rebind(schema.SQLiteBackend, query))
	assert.Equal(t, query, rebind(schema.MySQLBackend, query))
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", rebind(schema.PostgreSQLBackend, query))
}

func TestUpsertQuery(t *testing.T) {
	cols := []string{"id", "name"}
	assert.Contains(t, upsertQuery(schema.SQLiteBackend, "t", cols), "INSERT OR REPLACE")
	assert.Contains(t, upsertQuery(schema.MySQLBackend, "t", cols), "ON DUPLICATE KEY UPDATE")
	assert.Contains(t, upsertQuery(schema.PostgreSQLBackend, "t", cols), "ON CONFLICT (id) DO UPDATE")
}

func TestFtsQuery(t *testing.T) {
	assert.Equal(t, `"checkout" OR "ACME1042"`, ftsQuery([]string{"checkout", "ACME-1042"}))
	// Injection characters are stripped rather than escaped.
	assert.Equal(t, `"drop"`, ftsQuery([]string{`"drop";--`, "***"}))
}
