package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pmorales/segmint/internal/contract"
	"github.com/pmorales/segmint/schema"
)

// SnapshotStoreImpl persists raw activity snapshots.
type SnapshotStoreImpl struct {
	db      *sql.DB
	backend schema.DatabaseBackend
}

var _ contract.SnapshotStore = &SnapshotStoreImpl{} // Compile-time check

// QueryRange returns snapshots in [start, end) ordered by timestamp.
func (s *SnapshotStoreImpl) QueryRange(ctx context.Context, start, end time.Time) ([]schema.ActivitySnapshot, error) {
	query := rebind(s.backend, fmt.Sprintf(
		`SELECT id, ts, app, window_title, url, document_path, idle
		 FROM %s WHERE ts >= ? AND ts < ? ORDER BY ts`, snapshotsTable))
	rows, err := s.db.QueryContext(ctx, query, start.UnixMilli(), end.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("snapshot query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []schema.ActivitySnapshot
	for rows.Next() {
		var snap schema.ActivitySnapshot
		var ts int64
		var title, url, docPath sql.NullString
		if err := rows.Scan(&snap.ID, &ts, &snap.App, &title, &url, &docPath, &snap.Idle); err != nil {
			return nil, fmt.Errorf("snapshot scan failed: %w", err)
		}
		snap.Timestamp = time.UnixMilli(ts)
		snap.WindowTitle = title.String
		snap.URL = url.String
		snap.DocumentPath = docPath.String
		out = append(out, snap)
	}
	return out, rows.Err()
}

// SaveBatch persists snapshots, replacing duplicates by ID.
func (s *SnapshotStoreImpl) SaveBatch(ctx context.Context, snaps []schema.ActivitySnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("snapshot save failed: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := rebind(s.backend, upsertQuery(s.backend, snapshotsTable,
		[]string{"id", "ts", "app", "window_title", "url", "document_path", "idle"}))
	for i := range snaps {
		snap := &snaps[i]
		if _, err := tx.ExecContext(ctx, query,
			snap.ID, snap.Timestamp.UnixMilli(), snap.App,
			snap.WindowTitle, snap.URL, snap.DocumentPath, snap.Idle); err != nil {
			return fmt.Errorf("snapshot upsert failed: %w", err)
		}
	}
	return tx.Commit()
}

// Close closes the underlying DB connection.
func (s *SnapshotStoreImpl) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SegmentStoreImpl persists derived activity segments.
type SegmentStoreImpl struct {
	db      *sql.DB
	backend schema.DatabaseBackend
}

var _ contract.SegmentStore = &SegmentStoreImpl{} // Compile-time check

// SaveBatch persists segments, replacing duplicates by ID.
func (s *SegmentStoreImpl) SaveBatch(ctx context.Context, segments []schema.ActivitySegment) error {
	if len(segments) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("segment save failed: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := rebind(s.backend, upsertQuery(s.backend, segmentsTable,
		[]string{"id", "start_ts", "end_ts", "app", "context_key", "sample_count", "snapshot_ids", "idle_ratio", "signals", "processed"}))
	for i := range segments {
		seg := &segments[i]
		ids, err := json.Marshal(seg.SnapshotIDs)
		if err != nil {
			return fmt.Errorf("segment snapshot IDs encode failed: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query,
			seg.ID, seg.Start.UnixMilli(), seg.End.UnixMilli(), seg.App, seg.ContextKey,
			seg.SampleCount, string(ids), seg.IdleRatio, seg.SignalsJSON, seg.Processed); err != nil {
			return fmt.Errorf("segment upsert failed: %w", err)
		}
	}
	return tx.Commit()
}

// QueryRange returns segments overlapping [start, end) ordered by start.
func (s *SegmentStoreImpl) QueryRange(ctx context.Context, start, end time.Time) ([]schema.ActivitySegment, error) {
	query := rebind(s.backend, fmt.Sprintf(
		`SELECT id, start_ts, end_ts, app, context_key, sample_count, snapshot_ids, idle_ratio, signals, processed
		 FROM %s WHERE end_ts > ? AND start_ts < ? ORDER BY start_ts`, segmentsTable))
	rows, err := s.db.QueryContext(ctx, query, start.UnixMilli(), end.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("segment query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanSegments(rows)
}

// FindUnprocessed returns up to limit segments not yet consumed by the
// block builder, oldest first.
func (s *SegmentStoreImpl) FindUnprocessed(ctx context.Context, limit int) ([]schema.ActivitySegment, error) {
	query := rebind(s.backend, fmt.Sprintf(
		`SELECT id, start_ts, end_ts, app, context_key, sample_count, snapshot_ids, idle_ratio, signals, processed
		 FROM %s WHERE processed = ? ORDER BY start_ts LIMIT %d`, segmentsTable, limit))
	rows, err := s.db.QueryContext(ctx, query, false)
	if err != nil {
		return nil, fmt.Errorf("segment query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanSegments(rows)
}

// MarkProcessed flags segments as consumed. Already-processed IDs are a no-op.
func (s *SegmentStoreImpl) MarkProcessed(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query := rebind(s.backend, fmt.Sprintf(
		`UPDATE %s SET processed = ? WHERE id = ?`, segmentsTable))
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("segment update failed: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, query, true, id); err != nil {
			return fmt.Errorf("segment update failed: %w", err)
		}
	}
	return tx.Commit()
}

// Close closes the underlying DB connection.
func (s *SegmentStoreImpl) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// scanSegments reads segment rows into schema structs.
func scanSegments(rows *sql.Rows) ([]schema.ActivitySegment, error) {
	var out []schema.ActivitySegment
	for rows.Next() {
		var seg schema.ActivitySegment
		var startTS, endTS int64
		var snapIDs, signals sql.NullString
		if err := rows.Scan(&seg.ID, &startTS, &endTS, &seg.App, &seg.ContextKey,
			&seg.SampleCount, &snapIDs, &seg.IdleRatio, &signals, &seg.Processed); err != nil {
			return nil, fmt.Errorf("segment scan failed: %w", err)
		}
		seg.Start = time.UnixMilli(startTS)
		seg.End = time.UnixMilli(endTS)
		seg.SignalsJSON = signals.String
		if snapIDs.String != "" {
			if err := json.Unmarshal([]byte(snapIDs.String), &seg.SnapshotIDs); err != nil {
				return nil, fmt.Errorf("segment snapshot IDs decode failed: %w", err)
			}
		}
		out = append(out, seg)
	}
	return out, rows.Err()
}

// upsertQuery returns the backend-specific UPSERT for the given columns.
// The first column is assumed to be the primary key.
func upsertQuery(backend schema.DatabaseBackend, table string, cols []string) string {
	placeholders := make([]byte, 0, len(cols)*3)
	colList := ""
	for i, col := range cols {
		if i > 0 {
			placeholders = append(placeholders, ", "...)
			colList += ", "
		}
		placeholders = append(placeholders, '?')
		colList += col
	}

	switch backend {
	case schema.MySQLBackend:
		set := ""
		for i, col := range cols[1:] {
			if i > 0 {
				set += ", "
			}
			set += fmt.Sprintf("%s = new.%s", col, col)
		}
		return fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) AS new
			ON DUPLICATE KEY UPDATE %s`, table, colList, placeholders, set)

	case schema.PostgreSQLBackend:
		set := ""
		for i, col := range cols[1:] {
			if i > 0 {
				set += ", "
			}
			set += fmt.Sprintf("%s = EXCLUDED.%s", col, col)
		}
		return fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)
			ON CONFLICT (%s) DO UPDATE SET %s`, table, colList, placeholders, cols[0], set)

	default: // SQLite
		return fmt.Sprintf(`INSERT OR REPLACE INTO %s (%s) VALUES (%s)`, table, colList, placeholders)
	}
}
