package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pmorales/segmint/internal/contract"
	"github.com/pmorales/segmint/schema"
)

// CatalogStoreImpl persists the WBS project catalog and its match
// counters. On SQLite, search runs through an FTS5 index ranked by bm25;
// other backends fall back to LIKE candidate retrieval scored in Go.
type CatalogStoreImpl struct {
	db      *sql.DB
	backend schema.DatabaseBackend
}

var _ contract.ProjectCatalog = &CatalogStoreImpl{} // Compile-time check

func newCatalogStore(db *sql.DB, backend schema.DatabaseBackend) *CatalogStoreImpl {
	return &CatalogStoreImpl{db: db, backend: backend}
}

// Exact returns the active entry with the given code, or nil when absent.
func (c *CatalogStoreImpl) Exact(ctx context.Context, code string) (*schema.WbsEntry, error) {
	query := rebind(c.backend, fmt.Sprintf(
		`SELECT code, description, tokens, active FROM %s WHERE code = ? AND active = ?`, catalogTable))
	row := c.db.QueryRowContext(ctx, query, code, true)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("catalog lookup failed: %w", err)
	}
	return entry, nil
}

// Search runs a ranked full-text query over the catalog. Relevance in
// each hit is normalized so that higher is better and non-negative.
func (c *CatalogStoreImpl) Search(ctx context.Context, tokens []string, limit int) ([]schema.CatalogHit, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	if c.backend == schema.SQLiteBackend {
		return c.searchFTS(ctx, tokens, limit)
	}
	return c.searchLike(ctx, tokens, limit)
}

// searchFTS queries the FTS5 index. bm25 assigns lower (more negative)
// scores to better matches, so relevance is the negated score.
func (c *CatalogStoreImpl) searchFTS(ctx context.Context, tokens []string, limit int) ([]schema.CatalogHit, error) {
	match := ftsQuery(tokens)
	if match == "" {
		return nil, nil
	}
	query := fmt.Sprintf(
		`SELECT f.code, bm25(%s) AS rank
		 FROM %s f WHERE %s MATCH ? ORDER BY rank LIMIT %d`,
		catalogFTS, catalogFTS, catalogFTS, limit)
	rows, err := c.db.QueryContext(ctx, query, match)
	if err != nil {
		return nil, fmt.Errorf("catalog search failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	type ranked struct {
		code  string
		score float64
	}
	var hits []ranked
	for rows.Next() {
		var r ranked
		if err := rows.Scan(&r.code, &r.score); err != nil {
			return nil, fmt.Errorf("catalog scan failed: %w", err)
		}
		hits = append(hits, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []schema.CatalogHit
	for _, hit := range hits {
		entry, err := c.Exact(ctx, hit.code)
		if err != nil {
			return nil, err
		}
		if entry == nil { // inactive or deleted since indexing
			continue
		}
		relevance := -hit.score
		if relevance < 0 {
			relevance = 0
		}
		out = append(out, schema.CatalogHit{Entry: *entry, Relevance: relevance})
	}
	return out, nil
}

// searchLike retrieves candidates with LIKE filters and scores them by
// token overlap. Relevance is the number of matched tokens.
func (c *CatalogStoreImpl) searchLike(ctx context.Context, tokens []string, limit int) ([]schema.CatalogHit, error) {
	conds := make([]string, 0, len(tokens))
	args := make([]any, 0, len(tokens)+1)
	args = append(args, true)
	for _, tok := range tokens {
		conds = append(conds, "(LOWER(description) LIKE ? OR LOWER(tokens) LIKE ? OR LOWER(code) = ?)")
		pattern := "%" + strings.ToLower(tok) + "%"
		args = append(args, pattern, pattern, strings.ToLower(tok))
	}
	query := rebind(c.backend, fmt.Sprintf(
		`SELECT code, description, tokens, active FROM %s WHERE active = ? AND (%s)`,
		catalogTable, strings.Join(conds, " OR ")))
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog search failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []schema.CatalogHit
	for rows.Next() {
		entry, err := scanEntryRows(rows)
		if err != nil {
			return nil, err
		}
		score := tokenOverlapScore(entry, tokens)
		if score <= 0 {
			continue
		}
		out = append(out, schema.CatalogHit{Entry: *entry, Relevance: score})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Highest overlap first, bounded by limit.
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].Relevance > out[i].Relevance {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// tokenOverlapScore counts query tokens appearing in the entry.
func tokenOverlapScore(entry *schema.WbsEntry, tokens []string) float64 {
	desc := strings.ToLower(entry.Description)
	entryToks := strings.ToLower(strings.Join(entry.Tokens, " "))
	var score float64
	for _, tok := range tokens {
		lower := strings.ToLower(tok)
		switch {
		case lower == strings.ToLower(entry.Code):
			score += 2
		case strings.Contains(desc, lower) || strings.Contains(entryToks, lower):
			score++
		}
	}
	return score
}

// ftsQuery builds a sanitized OR query from raw tokens. FTS5 syntax
// characters are stripped so user text cannot break the query.
func ftsQuery(tokens []string) string {
	clean := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		tok = strings.Map(func(r rune) rune {
			if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
				return r
			}
			return -1
		}, tok)
		if tok != "" {
			clean = append(clean, `"`+tok+`"`)
		}
	}
	return strings.Join(clean, " OR ")
}

// MostMatched returns the most frequently matched active entries.
func (c *CatalogStoreImpl) MostMatched(ctx context.Context, limit int) ([]schema.WbsEntry, error) {
	query := rebind(c.backend, fmt.Sprintf(
		`SELECT code, description, tokens, active FROM %s
		 WHERE active = ? AND match_count > 0 ORDER BY match_count DESC LIMIT %d`, catalogTable, limit))
	rows, err := c.db.QueryContext(ctx, query, true)
	if err != nil {
		return nil, fmt.Errorf("catalog query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []schema.WbsEntry
	for rows.Next() {
		entry, err := scanEntryRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *entry)
	}
	return out, rows.Err()
}

// RecordMatch increments the match counter for a code.
func (c *CatalogStoreImpl) RecordMatch(ctx context.Context, code string) error {
	query := rebind(c.backend, fmt.Sprintf(
		`UPDATE %s SET match_count = match_count + 1 WHERE code = ?`, catalogTable))
	if _, err := c.db.ExecContext(ctx, query, code); err != nil {
		return fmt.Errorf("catalog update failed: %w", err)
	}
	return nil
}

// Upsert inserts or updates catalog entries and refreshes the sync time.
// Match counters on existing rows are preserved.
func (c *CatalogStoreImpl) Upsert(ctx context.Context, entries []schema.WbsEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("catalog upsert failed: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	insert := rebind(c.backend, fmt.Sprintf(
		`INSERT INTO %s (code, description, tokens, active, match_count, updated_at) VALUES (?, ?, ?, ?, 0, ?)`, catalogTable))
	update := rebind(c.backend, fmt.Sprintf(
		`UPDATE %s SET description = ?, tokens = ?, active = ?, updated_at = ? WHERE code = ?`, catalogTable))

	for i := range entries {
		entry := &entries[i]
		tokens, err := json.Marshal(entry.Tokens)
		if err != nil {
			return fmt.Errorf("catalog tokens encode failed: %w", err)
		}
		res, err := tx.ExecContext(ctx, update, entry.Description, string(tokens), entry.Active, now, entry.Code)
		if err != nil {
			return fmt.Errorf("catalog update failed: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("catalog update failed: %w", err)
		}
		if affected == 0 {
			if _, err := tx.ExecContext(ctx, insert, entry.Code, entry.Description, string(tokens), entry.Active, now); err != nil {
				return fmt.Errorf("catalog insert failed: %w", err)
			}
		}

		if c.backend == schema.SQLiteBackend {
			if err := c.reindexFTS(ctx, tx, entry); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

// reindexFTS replaces the entry's row in the FTS index. Inactive entries
// are dropped from the index entirely.
func (c *CatalogStoreImpl) reindexFTS(ctx context.Context, tx *sql.Tx, entry *schema.WbsEntry) error {
	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE code = ?`, catalogFTS), entry.Code); err != nil {
		return fmt.Errorf("catalog FTS delete failed: %w", err)
	}
	if !entry.Active {
		return nil
	}
	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (code, description, tokens) VALUES (?, ?, ?)`, catalogFTS),
		entry.Code, entry.Description, strings.Join(entry.Tokens, " ")); err != nil {
		return fmt.Errorf("catalog FTS insert failed: %w", err)
	}
	return nil
}

// Status returns entry counts and the last sync time.
func (c *CatalogStoreImpl) Status(ctx context.Context) (schema.CatalogStatus, error) {
	var status schema.CatalogStatus

	row := c.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN active THEN 1 ELSE 0 END), 0),
		        COALESCE(MAX(updated_at), 0), COALESCE(SUM(match_count), 0) FROM %s`, catalogTable))
	var lastSync int64
	if err := row.Scan(&status.Entries, &status.ActiveCount, &lastSync, &status.TotalMatches); err != nil {
		return status, fmt.Errorf("catalog status failed: %w", err)
	}
	if lastSync > 0 {
		status.LastSync = time.UnixMilli(lastSync)
	}
	return status, nil
}

// Close closes the underlying DB connection.
func (c *CatalogStoreImpl) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*schema.WbsEntry, error) {
	var entry schema.WbsEntry
	var tokens sql.NullString
	if err := row.Scan(&entry.Code, &entry.Description, &tokens, &entry.Active); err != nil {
		return nil, err
	}
	if tokens.String != "" {
		if err := json.Unmarshal([]byte(tokens.String), &entry.Tokens); err != nil {
			return nil, fmt.Errorf("catalog tokens decode failed: %w", err)
		}
	}
	return &entry, nil
}

func scanEntryRows(rows *sql.Rows) (*schema.WbsEntry, error) {
	entry, err := scanEntry(rows)
	if err != nil {
		return nil, fmt.Errorf("catalog scan failed: %w", err)
	}
	return entry, nil
}
