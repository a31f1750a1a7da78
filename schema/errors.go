package schema

import "errors"

// Error taxonomy for the pipeline. Validation errors reject bad input
// immediately; degraded-capability conditions are recorded, not raised;
// invariant violations mark internal defects fatal to a single block.
var (
	// ErrOutOfOrder rejects snapshot input that is not sorted by timestamp.
	// The caller must re-sort before retrying; input is never reordered here.
	ErrOutOfOrder = errors.New("snapshots out of timestamp order")

	// ErrInvalidDateRange rejects a pipeline run with start after end.
	ErrInvalidDateRange = errors.New("invalid date range")

	// ErrEmptyCatalog indicates the project catalog has no active entries.
	ErrEmptyCatalog = errors.New("project catalog is empty")

	// ErrInvariant marks an internal defect in block construction.
	ErrInvariant = errors.New("invariant violation")

	// ErrBlockNotFound indicates a review operation referenced an unknown block.
	ErrBlockNotFound = errors.New("block not found")
)
