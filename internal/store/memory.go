package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pmorales/segmint/internal/contract"
	"github.com/pmorales/segmint/schema"
)

// MemoryStores is the in-memory StoreManager used for the none backend
// and for tests. Nothing persists between process runs.
type MemoryStores struct {
	snapshots *MemorySnapshotStore
	segments  *MemorySegmentStore
	blocks    *MemoryBlockStore
	catalog   *MemoryCatalog
	calendar  *MemoryCalendar
}

var _ contract.StoreManager = &MemoryStores{} // Compile-time check

// NewMemoryStores builds an empty in-memory store set.
func NewMemoryStores() *MemoryStores {
	return &MemoryStores{
		snapshots: &MemorySnapshotStore{},
		segments:  &MemorySegmentStore{},
		blocks:    &MemoryBlockStore{byID: map[string]schema.ProposedBlock{}},
		catalog:   &MemoryCatalog{entries: map[string]schema.WbsEntry{}, matches: map[string]int64{}},
		calendar:  &MemoryCalendar{},
	}
}

// Snapshots returns the snapshot store.
func (m *MemoryStores) Snapshots() contract.SnapshotStore { return m.snapshots }

// Segments returns the segment store.
func (m *MemoryStores) Segments() contract.SegmentStore { return m.segments }

// Blocks returns the block store.
func (m *MemoryStores) Blocks() contract.BlockStore { return m.blocks }

// Catalog returns the project catalog.
func (m *MemoryStores) Catalog() contract.ProjectCatalog { return m.catalog }

// Calendar returns the calendar lookup.
func (m *MemoryStores) Calendar() contract.CalendarLookup { return m.calendar }

// MemorySnapshotStore holds snapshots in a sorted slice.
type MemorySnapshotStore struct {
	mu    sync.RWMutex
	snaps []schema.ActivitySnapshot
}

func (s *MemorySnapshotStore) QueryRange(_ context.Context, start, end time.Time) ([]schema.ActivitySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []schema.ActivitySnapshot
	for _, snap := range s.snaps {
		if !snap.Timestamp.Before(start) && snap.Timestamp.Before(end) {
			out = append(out, snap)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (s *MemorySnapshotStore) SaveBatch(_ context.Context, snaps []schema.ActivitySnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, snap := range snaps {
		replaced := false
		for i := range s.snaps {
			if s.snaps[i].ID == snap.ID {
				s.snaps[i] = snap
				replaced = true
				break
			}
		}
		if !replaced {
			s.snaps = append(s.snaps, snap)
		}
	}
	return nil
}

func (s *MemorySnapshotStore) Close() error { return nil }

// MemorySegmentStore holds segments in a map by ID.
type MemorySegmentStore struct {
	mu       sync.RWMutex
	segments []schema.ActivitySegment
}

func (s *MemorySegmentStore) SaveBatch(_ context.Context, segments []schema.ActivitySegment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, seg := range segments {
		replaced := false
		for i := range s.segments {
			if s.segments[i].ID == seg.ID {
				s.segments[i] = seg
				replaced = true
				break
			}
		}
		if !replaced {
			s.segments = append(s.segments, seg)
		}
	}
	return nil
}

func (s *MemorySegmentStore) QueryRange(_ context.Context, start, end time.Time) ([]schema.ActivitySegment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []schema.ActivitySegment
	for _, seg := range s.segments {
		if seg.End.After(start) && seg.Start.Before(end) {
			out = append(out, seg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (s *MemorySegmentStore) FindUnprocessed(_ context.Context, limit int) ([]schema.ActivitySegment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []schema.ActivitySegment
	for _, seg := range s.segments {
		if !seg.Processed {
			out = append(out, seg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemorySegmentStore) MarkProcessed(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	for i := range s.segments {
		if _, ok := wanted[s.segments[i].ID]; ok {
			s.segments[i].Processed = true
		}
	}
	return nil
}

func (s *MemorySegmentStore) Close() error { return nil }

// MemoryBlockStore holds blocks in a map by ID.
type MemoryBlockStore struct {
	mu   sync.RWMutex
	byID map[string]schema.ProposedBlock
}

func (s *MemoryBlockStore) Save(_ context.Context, block *schema.ProposedBlock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[block.ID] = *block
	return nil
}

func (s *MemoryBlockStore) Get(_ context.Context, id string) (*schema.ProposedBlock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	block, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", schema.ErrBlockNotFound, id)
	}
	return &block, nil
}

func (s *MemoryBlockStore) QueryRange(_ context.Context, start, end time.Time) ([]schema.ProposedBlock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []schema.ProposedBlock
	for _, block := range s.byID {
		if block.End.After(start) && block.Start.Before(end) {
			out = append(out, block)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (s *MemoryBlockStore) ListByStatus(ctx context.Context, status schema.BlockStatus, start, end time.Time) ([]schema.ProposedBlock, error) {
	all, err := s.QueryRange(ctx, start, end)
	if err != nil {
		return nil, err
	}
	var out []schema.ProposedBlock
	for _, block := range all {
		if block.Status == status {
			out = append(out, block)
		}
	}
	return out, nil
}

func (s *MemoryBlockStore) UpdateStatus(_ context.Context, id string, status schema.BlockStatus, reviewedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	block, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", schema.ErrBlockNotFound, id)
	}
	if block.Status == status {
		return nil
	}
	block.Status = status
	block.ReviewedAt = &reviewedAt
	s.byID[id] = block
	return nil
}

func (s *MemoryBlockStore) GetStatus(_ context.Context) (schema.StoreStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return schema.StoreStatus{
		Backend:   string(schema.NoneBackend),
		Connected: true,
		TableRows: map[string]int64{blocksTable: int64(len(s.byID))},
	}, nil
}

func (s *MemoryBlockStore) Close() error { return nil }

// MemoryCatalog is a token-overlap searchable in-memory catalog.
type MemoryCatalog struct {
	mu       sync.RWMutex
	entries  map[string]schema.WbsEntry
	matches  map[string]int64
	lastSync time.Time
}

func (c *MemoryCatalog) Exact(_ context.Context, code string) (*schema.WbsEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[code]
	if !ok || !entry.Active {
		return nil, nil
	}
	return &entry, nil
}

func (c *MemoryCatalog) Search(_ context.Context, tokens []string, limit int) ([]schema.CatalogHit, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []schema.CatalogHit
	for _, entry := range c.entries {
		if !entry.Active {
			continue
		}
		e := entry
		score := tokenOverlapScore(&e, tokens)
		if score <= 0 {
			continue
		}
		out = append(out, schema.CatalogHit{Entry: entry, Relevance: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Relevance != out[j].Relevance {
			return out[i].Relevance > out[j].Relevance
		}
		return out[i].Entry.Code < out[j].Entry.Code
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (c *MemoryCatalog) MostMatched(_ context.Context, limit int) ([]schema.WbsEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	codes := make([]string, 0, len(c.matches))
	for code, n := range c.matches {
		if n > 0 {
			codes = append(codes, code)
		}
	}
	sort.Slice(codes, func(i, j int) bool {
		if c.matches[codes[i]] != c.matches[codes[j]] {
			return c.matches[codes[i]] > c.matches[codes[j]]
		}
		return codes[i] < codes[j]
	})
	var out []schema.WbsEntry
	for _, code := range codes {
		if entry, ok := c.entries[code]; ok && entry.Active {
			out = append(out, entry)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (c *MemoryCatalog) RecordMatch(_ context.Context, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.matches[code]++
	return nil
}

func (c *MemoryCatalog) Upsert(_ context.Context, entries []schema.WbsEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, entry := range entries {
		c.entries[entry.Code] = entry
	}
	c.lastSync = time.Now()
	return nil
}

func (c *MemoryCatalog) Status(_ context.Context) (schema.CatalogStatus, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	status := schema.CatalogStatus{
		Entries:  int64(len(c.entries)),
		LastSync: c.lastSync,
	}
	for _, entry := range c.entries {
		if entry.Active {
			status.ActiveCount++
		}
	}
	for _, n := range c.matches {
		status.TotalMatches += n
	}
	return status, nil
}

func (c *MemoryCatalog) Close() error { return nil }

// MemoryCalendar serves a fixed event list.
type MemoryCalendar struct {
	mu     sync.RWMutex
	events []schema.CalendarEvent

	// Err, when set, is returned by every lookup. Lets tests exercise
	// the degraded-calendar path.
	Err error
}

func (c *MemoryCalendar) EventsInRange(_ context.Context, start, end time.Time) ([]schema.CalendarEvent, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.Err != nil {
		return nil, c.Err
	}
	var out []schema.CalendarEvent
	for _, ev := range c.events {
		if ev.End.After(start) && ev.Start.Before(end) {
			out = append(out, ev)
		}
	}
	return out, nil
}

// AddEvents appends events to the fixed list.
func (c *MemoryCalendar) AddEvents(events ...schema.CalendarEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, events...)
}
