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

// CalendarStoreImpl serves calendar events synced into the store by an
// external calendar importer. Lookups may legitimately return nothing.
type CalendarStoreImpl struct {
	db      *sql.DB
	backend schema.DatabaseBackend
}

var _ contract.CalendarLookup = &CalendarStoreImpl{} // Compile-time check

// EventsInRange returns events overlapping [start, end).
func (c *CalendarStoreImpl) EventsInRange(ctx context.Context, start, end time.Time) ([]schema.CalendarEvent, error) {
	query := rebind(c.backend, fmt.Sprintf(
		`SELECT id, title, start_ts, end_ts, attendees, platform, recurring, online
		 FROM %s WHERE end_ts > ? AND start_ts < ? ORDER BY start_ts`, calendarTable))
	rows, err := c.db.QueryContext(ctx, query, start.UnixMilli(), end.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("calendar query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []schema.CalendarEvent
	for rows.Next() {
		var ev schema.CalendarEvent
		var startTS, endTS int64
		var attendees, platform sql.NullString
		if err := rows.Scan(&ev.ID, &ev.Title, &startTS, &endTS, &attendees, &platform, &ev.Recurring, &ev.Online); err != nil {
			return nil, fmt.Errorf("calendar scan failed: %w", err)
		}
		ev.Start = time.UnixMilli(startTS)
		ev.End = time.UnixMilli(endTS)
		ev.Platform = platform.String
		if attendees.String != "" {
			if err := json.Unmarshal([]byte(attendees.String), &ev.Attendees); err != nil {
				return nil, fmt.Errorf("calendar attendees decode failed: %w", err)
			}
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// SaveEvents persists calendar events, replacing duplicates by ID. Used
// by the calendar sync path and by tests.
func (c *CalendarStoreImpl) SaveEvents(ctx context.Context, events []schema.CalendarEvent) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("calendar save failed: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := rebind(c.backend, upsertQuery(c.backend, calendarTable,
		[]string{"id", "title", "start_ts", "end_ts", "attendees", "platform", "recurring", "online"}))
	for i := range events {
		ev := &events[i]
		attendees, err := json.Marshal(ev.Attendees)
		if err != nil {
			return fmt.Errorf("calendar attendees encode failed: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query,
			ev.ID, ev.Title, ev.Start.UnixMilli(), ev.End.UnixMilli(),
			string(attendees), ev.Platform, ev.Recurring, ev.Online); err != nil {
			return fmt.Errorf("calendar upsert failed: %w", err)
		}
	}
	return tx.Commit()
}
