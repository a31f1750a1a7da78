package schema

import (
	"encoding/json"
	"fmt"
	"time"
)

// SignalsVersion is the current serialization version for pre-extracted
// segment signals. Bump when ContextSignals changes shape.
const SignalsVersion = 2

// ContextSignals holds the structured tokens derived from one segment:
// identifiers (ticket codes, repo names, WBS codes), keywords, URL and
// file context, and any calendar overlap. Recomputed on demand, never
// persisted independently of its envelope.
type ContextSignals struct {
	App         string      `json:"app"`
	AppCategory AppCategory `json:"app_category"`

	Keywords    []string `json:"keywords,omitempty"`
	Identifiers []string `json:"identifiers,omitempty"`

	URLDomain     string `json:"url_domain,omitempty"`
	FilePath      string `json:"file_path,omitempty"`
	ProjectFolder string `json:"project_folder,omitempty"`

	CalendarEvents  []CalendarEvent `json:"calendar_events,omitempty"`
	AttendeeDomains []string        `json:"attendee_domains,omitempty"`

	// Personal marks browsing/activity recognized as non-work.
	Personal bool `json:"personal"`

	// CalendarDegraded records that the calendar lookup failed and the
	// signals were built from pattern extraction alone.
	CalendarDegraded bool `json:"calendar_degraded,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// Tokens returns the searchable token set for catalog matching:
// identifiers first, then keywords, domain, and project folder.
func (s *ContextSignals) Tokens() []string {
	tokens := make([]string, 0, len(s.Identifiers)+len(s.Keywords)+2)
	tokens = append(tokens, s.Identifiers...)
	tokens = append(tokens, s.Keywords...)
	if s.URLDomain != "" {
		tokens = append(tokens, s.URLDomain)
	}
	if s.ProjectFolder != "" {
		tokens = append(tokens, s.ProjectFolder)
	}
	return tokens
}

// EvidenceSignals aggregates deduplicated evidence across all snapshots and
// segments contributing to one block.
type EvidenceSignals struct {
	Apps        []string `json:"apps,omitempty"`
	Titles      []string `json:"titles,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	Identifiers []string `json:"identifiers,omitempty"`
	Domains     []string `json:"domains,omitempty"`
	Paths       []string `json:"paths,omitempty"`

	MeetingPlatforms    []string `json:"meeting_platforms,omitempty"`
	HasRecurringMeeting bool     `json:"has_recurring_meeting"`
	HasOnlineMeeting    bool     `json:"has_online_meeting"`
}

// signalsEnvelope wraps ContextSignals with a version tag for storage.
type signalsEnvelope struct {
	Version int            `json:"version"`
	Signals ContextSignals `json:"signals"`
}

// EncodeSignals serializes signals into the versioned envelope stored on a
// segment.
func EncodeSignals(s ContextSignals) (string, error) {
	raw, err := json.Marshal(signalsEnvelope{Version: SignalsVersion, Signals: s})
	if err != nil {
		return "", fmt.Errorf("failed to encode signals: %w", err)
	}
	return string(raw), nil
}

// DecodeSignals parses a stored envelope. A version mismatch returns
// ok=false so the caller re-extracts instead of trusting stale shapes.
func DecodeSignals(raw string) (ContextSignals, bool) {
	var env signalsEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return ContextSignals{}, false
	}
	if env.Version != SignalsVersion {
		return ContextSignals{}, false
	}
	return env.Signals, true
}
