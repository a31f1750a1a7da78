// Package contract provides interfaces and shared utilities for internal architecture.
package contract

import (
	"context"
	"time"

	"github.com/pmorales/segmint/schema"
)

// SnapshotStore defines read/write access to raw activity snapshots.
// This allows the pipeline to be tested without a real database.
type SnapshotStore interface {
	// QueryRange returns snapshots in [start, end) ordered by timestamp.
	QueryRange(ctx context.Context, start, end time.Time) ([]schema.ActivitySnapshot, error)

	// SaveBatch persists snapshots, replacing duplicates by ID.
	SaveBatch(ctx context.Context, snaps []schema.ActivitySnapshot) error

	// Close closes the underlying connection.
	Close() error
}

// SegmentStore defines access to derived activity segments.
type SegmentStore interface {
	// SaveBatch persists segments, replacing duplicates by ID.
	SaveBatch(ctx context.Context, segments []schema.ActivitySegment) error

	// QueryRange returns segments overlapping [start, end) ordered by start.
	QueryRange(ctx context.Context, start, end time.Time) ([]schema.ActivitySegment, error)

	// FindUnprocessed returns up to limit segments not yet consumed by the
	// block builder, oldest first.
	FindUnprocessed(ctx context.Context, limit int) ([]schema.ActivitySegment, error)

	// MarkProcessed flags segments as consumed. Already-processed IDs are a no-op.
	MarkProcessed(ctx context.Context, ids []string) error

	// Close closes the underlying connection.
	Close() error
}

// BlockStore defines access to proposed blocks and their review lifecycle.
type BlockStore interface {
	// Save persists a block, replacing any existing row with the same ID.
	Save(ctx context.Context, block *schema.ProposedBlock) error

	// Get returns one block by ID, or schema.ErrBlockNotFound.
	Get(ctx context.Context, id string) (*schema.ProposedBlock, error)

	// QueryRange returns blocks overlapping [start, end) ordered by start.
	QueryRange(ctx context.Context, start, end time.Time) ([]schema.ProposedBlock, error)

	// ListByStatus returns blocks in the given status overlapping [start, end),
	// ordered by start.
	ListByStatus(ctx context.Context, status schema.BlockStatus, start, end time.Time) ([]schema.ProposedBlock, error)

	// UpdateStatus applies a review decision. Re-applying the same status is
	// idempotent; an unknown ID returns schema.ErrBlockNotFound.
	UpdateStatus(ctx context.Context, id string, status schema.BlockStatus, reviewedAt time.Time) error

	// GetStatus returns store health and size information.
	GetStatus(ctx context.Context) (schema.StoreStatus, error)

	// Close closes the underlying connection.
	Close() error
}

// ProjectCatalog defines read access to the WBS project catalog plus the
// match-frequency bookkeeping behind the common-projects cache.
type ProjectCatalog interface {
	// Exact returns the active entry with the given code, or nil when absent.
	Exact(ctx context.Context, code string) (*schema.WbsEntry, error)

	// Search runs a ranked full-text query over the catalog. Relevance in
	// each hit is normalized so that higher is better.
	Search(ctx context.Context, tokens []string, limit int) ([]schema.CatalogHit, error)

	// MostMatched returns the most frequently matched active entries.
	MostMatched(ctx context.Context, limit int) ([]schema.WbsEntry, error)

	// RecordMatch increments the match counter for a code.
	RecordMatch(ctx context.Context, code string) error

	// Upsert inserts or updates catalog entries and refreshes the sync time.
	Upsert(ctx context.Context, entries []schema.WbsEntry) error

	// Status returns entry counts and the last sync time.
	Status(ctx context.Context) (schema.CatalogStatus, error)

	// Close closes the underlying connection.
	Close() error
}

// CalendarLookup defines the optional calendar capability. Implementations
// may fail or return empty; callers must degrade gracefully.
type CalendarLookup interface {
	// EventsInRange returns events overlapping [start, end).
	EventsInRange(ctx context.Context, start, end time.Time) ([]schema.CalendarEvent, error)
}

// StoreManager bundles the capability interfaces the pipeline consumes.
// This allows the persistence layer to be mocked for testing.
type StoreManager interface {
	Snapshots() SnapshotStore
	Segments() SegmentStore
	Blocks() BlockStore
	Catalog() ProjectCatalog

	// Calendar may return nil when no calendar source is configured.
	Calendar() CalendarLookup
}
