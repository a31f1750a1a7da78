// Package schema defines the shared data model for the segmint pipeline:
// activity snapshots and segments, proposed blocks, project matches, and
// the typed constants used across packages.
package schema

import (
	"time"

	"github.com/google/uuid"
)

// ActivitySnapshot is a single point-in-time observation from the capture
// layer: the active application, its window title, and optional URL or
// document context. Snapshots are immutable once captured.
type ActivitySnapshot struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	App          string    `json:"app"`
	WindowTitle  string    `json:"window_title"`
	URL          string    `json:"url,omitempty"`
	DocumentPath string    `json:"document_path,omitempty"`

	// Idle marks a sample during which no input was observed.
	Idle bool `json:"idle"`
}

// ActivitySegment is a contiguous span [Start, End) of snapshots sharing one
// dominant context. Segments never span midnight and never overlap for a
// single capture source. Immutable after creation except for Processed.
type ActivitySegment struct {
	ID          string    `json:"id"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	App         string    `json:"app"`
	ContextKey  string    `json:"context_key"`
	SampleCount int       `json:"sample_count"`
	SnapshotIDs []string  `json:"snapshot_ids"`

	// IdleRatio is the fraction of the span with no observed input.
	IdleRatio float64 `json:"idle_ratio"`

	// SignalsJSON holds pre-extracted signals in versioned envelope form so
	// re-runs can skip re-extraction. Empty until signals are first extracted.
	SignalsJSON string `json:"signals_json,omitempty"`

	Processed bool `json:"processed"`
}

// Duration returns the span length of the segment.
func (s *ActivitySegment) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// IdleDuration returns the portion of the span attributed to idle samples.
func (s *ActivitySegment) IdleDuration() time.Duration {
	return time.Duration(float64(s.End.Sub(s.Start)) * s.IdleRatio)
}

// WbsEntry is a project catalog record: a billable work code plus the
// descriptive text and tokens it is searched by. Read-only from the
// pipeline's perspective.
type WbsEntry struct {
	Code        string   `json:"code"`
	Description string   `json:"description"`
	Tokens      []string `json:"tokens,omitempty"`
	Active      bool     `json:"active"`
}

// CatalogHit is a full-text search hit with its raw relevance score.
// Relevance is backend-specific; higher is better after normalization
// by the store layer.
type CatalogHit struct {
	Entry     WbsEntry `json:"entry"`
	Relevance float64  `json:"relevance"`
}

// CalendarEvent is a calendar entry overlapping a segment or block,
// used as additional attribution evidence.
type CalendarEvent struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Attendees []string  `json:"attendees,omitempty"`
	Platform  string    `json:"platform,omitempty"`
	Recurring bool      `json:"recurring"`
	Online    bool      `json:"online"`
}

// NewID returns a time-ordered unique identifier for segments and blocks.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
