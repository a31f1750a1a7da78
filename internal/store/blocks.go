package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/pmorales/segmint/internal/contract"
	"github.com/pmorales/segmint/schema"
)

// BlockStoreImpl persists proposed blocks. The full block is stored as a
// JSON payload; the indexed columns exist for range and status queries.
type BlockStoreImpl struct {
	db      *sql.DB
	backend schema.DatabaseBackend
	connStr string
}

var _ contract.BlockStore = &BlockStoreImpl{} // Compile-time check

// Save persists a block, replacing any existing row with the same ID.
func (s *BlockStoreImpl) Save(ctx context.Context, block *schema.ProposedBlock) error {
	payload, err := json.Marshal(block)
	if err != nil {
		return fmt.Errorf("block encode failed: %w", err)
	}
	query := rebind(s.backend, upsertQuery(s.backend, blocksTable,
		[]string{"id", "start_ts", "end_ts", "status", "flagged", "payload"}))
	if _, err := s.db.ExecContext(ctx, query,
		block.ID, block.Start.UnixMilli(), block.End.UnixMilli(),
		string(block.Status), block.FlaggedForReview, string(payload)); err != nil {
		return fmt.Errorf("block upsert failed: %w", err)
	}
	return nil
}

// Get returns one block by ID, or schema.ErrBlockNotFound.
func (s *BlockStoreImpl) Get(ctx context.Context, id string) (*schema.ProposedBlock, error) {
	query := rebind(s.backend, fmt.Sprintf(
		`SELECT payload FROM %s WHERE id = ?`, blocksTable))
	var payload string
	if err := s.db.QueryRowContext(ctx, query, id).Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", schema.ErrBlockNotFound, id)
		}
		return nil, fmt.Errorf("block query failed: %w", err)
	}
	var block schema.ProposedBlock
	if err := json.Unmarshal([]byte(payload), &block); err != nil {
		return nil, fmt.Errorf("block decode failed: %w", err)
	}
	return &block, nil
}

// QueryRange returns blocks overlapping [start, end) ordered by start.
func (s *BlockStoreImpl) QueryRange(ctx context.Context, start, end time.Time) ([]schema.ProposedBlock, error) {
	query := rebind(s.backend, fmt.Sprintf(
		`SELECT payload FROM %s WHERE end_ts > ? AND start_ts < ? ORDER BY start_ts`, blocksTable))
	rows, err := s.db.QueryContext(ctx, query, start.UnixMilli(), end.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("block query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanBlocks(rows)
}

// ListByStatus returns blocks in the given status overlapping [start, end),
// ordered by start.
func (s *BlockStoreImpl) ListByStatus(ctx context.Context, status schema.BlockStatus, start, end time.Time) ([]schema.ProposedBlock, error) {
	query := rebind(s.backend, fmt.Sprintf(
		`SELECT payload FROM %s WHERE status = ? AND end_ts > ? AND start_ts < ? ORDER BY start_ts`, blocksTable))
	rows, err := s.db.QueryContext(ctx, query, string(status), start.UnixMilli(), end.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("block query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanBlocks(rows)
}

// UpdateStatus applies a review decision. Re-applying the same status is
// idempotent; an unknown ID returns schema.ErrBlockNotFound.
func (s *BlockStoreImpl) UpdateStatus(ctx context.Context, id string, status schema.BlockStatus, reviewedAt time.Time) error {
	block, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if block.Status == status {
		return nil
	}
	block.Status = status
	block.ReviewedAt = &reviewedAt
	return s.Save(ctx, block)
}

// GetStatus returns store health and size information.
func (s *BlockStoreImpl) GetStatus(ctx context.Context) (schema.StoreStatus, error) {
	status := schema.StoreStatus{
		Backend:   string(s.backend),
		Connected: s.db != nil,
		TableRows: map[string]int64{},
	}
	if s.db == nil {
		return status, nil
	}

	for _, table := range []string{snapshotsTable, segmentsTable, blocksTable, catalogTable, calendarTable} {
		var count int64
		row := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table))
		if err := row.Scan(&count); err != nil {
			return status, fmt.Errorf("failed to count %s rows: %w", table, err)
		}
		status.TableRows[table] = count
	}

	if status.TableRows[snapshotsTable] > 0 {
		var oldest, newest int64
		row := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT MIN(ts), MAX(ts) FROM %s", snapshotsTable))
		if err := row.Scan(&oldest, &newest); err != nil {
			return status, fmt.Errorf("failed to get snapshot bounds: %w", err)
		}
		status.OldestData = time.UnixMilli(oldest)
		status.NewestData = time.UnixMilli(newest)
	}

	status.SizeBytes = s.estimateSize(ctx, status.TableRows)
	return status, nil
}

// estimateSize approximates the on-disk footprint of the store.
func (s *BlockStoreImpl) estimateSize(ctx context.Context, tableRows map[string]int64) int64 {
	var totalRows int64
	for _, n := range tableRows {
		totalRows += n
	}

	switch s.backend {
	case schema.SQLiteBackend:
		var size int64
		row := s.db.QueryRowContext(ctx, "SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()")
		if err := row.Scan(&size); err != nil {
			return 0
		}
		return size

	case schema.MySQLBackend:
		cfg, err := mysql.ParseDSN(s.connStr)
		if err != nil || cfg.DBName == "" {
			return totalRows * 1000 // Fallback rough estimate
		}
		var size int64
		row := s.db.QueryRowContext(ctx,
			"SELECT COALESCE(SUM(data_length + index_length), 0) FROM information_schema.tables WHERE table_schema = ?", cfg.DBName)
		if err := row.Scan(&size); err != nil {
			return totalRows * 1000
		}
		return size

	case schema.PostgreSQLBackend:
		var size int64
		row := s.db.QueryRowContext(ctx, "SELECT pg_database_size(current_database())")
		if err := row.Scan(&size); err != nil {
			return totalRows * 1000
		}
		return size

	default:
		return totalRows * 1000
	}
}

// Close closes the underlying DB connection.
func (s *BlockStoreImpl) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// scanBlocks decodes block payload rows.
func scanBlocks(rows *sql.Rows) ([]schema.ProposedBlock, error) {
	var out []schema.ProposedBlock
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("block scan failed: %w", err)
		}
		var block schema.ProposedBlock
		if err := json.Unmarshal([]byte(payload), &block); err != nil {
			return nil, fmt.Errorf("block decode failed: %w", err)
		}
		out = append(out, block)
	}
	return out, rows.Err()
}
