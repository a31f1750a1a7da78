package core

import (
	"context"
	"net/url"
	"path"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/pmorales/segmint/internal/contract"
	"github.com/pmorales/segmint/schema"
)

// countMarker matches unread/notification counters like "(3)" in titles.
var countMarker = regexp.MustCompile(`\(\d+\)`)

// calendarSlack widens the lookup window around a segment so meetings that
// started slightly before or ran slightly past it still count as overlap.
const calendarSlack = contract.DefaultCalendarSlackMins * time.Minute

// SignalExtractor derives ContextSignals from a segment and its snapshots.
// Extraction is pure except for the calendar lookup, which may fail or
// return empty; a failed lookup degrades to pattern signals alone.
type SignalExtractor struct {
	calendar contract.CalendarLookup
	loc      *time.Location
}

// NewSignalExtractor builds an extractor. calendar may be nil.
func NewSignalExtractor(calendar contract.CalendarLookup, loc *time.Location) *SignalExtractor {
	return &SignalExtractor{calendar: calendar, loc: loc}
}

// Extract derives signals for one segment from its contributing snapshots.
// It never returns an error: calendar failures are recorded on the signals
// as a degradation.
func (e *SignalExtractor) Extract(ctx context.Context, seg *schema.ActivitySegment, snaps []schema.ActivitySnapshot) schema.ContextSignals {
	sig := schema.ContextSignals{
		App:         seg.App,
		AppCategory: CategorizeApp(seg.App),
		Timestamp:   seg.Start,
	}

	idents := newTokenSet()
	keywords := newTokenSet()
	rules := RulesFor(sig.AppCategory)

	for i := range snaps {
		snap := &snaps[i]
		for _, rule := range rules {
			for _, surface := range []string{snap.WindowTitle, snap.URL, snap.DocumentPath} {
				for _, tok := range rule.Apply(surface) {
					idents.add(tok)
				}
			}
		}
		keywords.addAll(extractKeywords(snap.WindowTitle))

		if sig.URLDomain == "" {
			sig.URLDomain = URLDomain(snap.URL)
		}
		if sig.FilePath == "" && snap.DocumentPath != "" {
			sig.FilePath = snap.DocumentPath
			sig.ProjectFolder = ProjectFolder(snap.DocumentPath)
		}
	}

	if sig.URLDomain != "" {
		if IsVDRDomain(sig.URLDomain) {
			sig.AppCategory = schema.VDRApp
		}
		if IsPersonalDomain(sig.URLDomain) {
			sig.Personal = true
		}
	}

	sig.Identifiers = idents.sorted()
	sig.Keywords = keywords.sorted()

	e.attachCalendar(ctx, &sig, seg)
	return sig
}

// attachCalendar folds overlapping calendar events into the signals.
func (e *SignalExtractor) attachCalendar(ctx context.Context, sig *schema.ContextSignals, seg *schema.ActivitySegment) {
	if e.calendar == nil {
		return
	}
	events, err := e.calendar.EventsInRange(ctx, seg.Start.Add(-calendarSlack), seg.End.Add(calendarSlack))
	if err != nil {
		sig.CalendarDegraded = true
		return
	}
	if len(events) == 0 {
		return
	}
	sig.CalendarEvents = events

	domains := newTokenSet()
	keywords := newTokenSet()
	keywords.addAll(sig.Keywords)
	for _, ev := range events {
		keywords.addAll(extractKeywords(ev.Title))
		for _, attendee := range ev.Attendees {
			if at := strings.LastIndex(attendee, "@"); at >= 0 {
				domains.add(strings.ToLower(attendee[at+1:]))
			}
		}
	}
	sig.AttendeeDomains = domains.sorted()
	sig.Keywords = keywords.sorted()
}

// SignalsForSegment returns the segment's signals, reusing the stored
// envelope when its version matches and extracting (and caching back onto
// the segment) otherwise.
func (e *SignalExtractor) SignalsForSegment(ctx context.Context, seg *schema.ActivitySegment, snaps []schema.ActivitySnapshot) schema.ContextSignals {
	if seg.SignalsJSON != "" {
		if sig, ok := schema.DecodeSignals(seg.SignalsJSON); ok {
			return sig
		}
	}
	sig := e.Extract(ctx, seg, snaps)
	if raw, err := schema.EncodeSignals(sig); err == nil {
		seg.SignalsJSON = raw
	}
	return sig
}

// URLDomain extracts the registrable-ish host from a URL, stripping any
// leading "www.". Returns "" for unparseable input.
func URLDomain(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}

// ProjectFolder returns the most project-like ancestor folder of a file
// path: the first directory after a known workspace root, otherwise the
// immediate parent.
func ProjectFolder(filePath string) string {
	if filePath == "" {
		return ""
	}
	clean := strings.ReplaceAll(filePath, "\\", "/")
	parts := strings.Split(path.Dir(clean), "/")

	roots := map[string]struct{}{
		"projects": {}, "clients": {}, "work": {}, "repos": {}, "src": {},
		"engagements": {}, "documents": {},
	}
	for i, part := range parts {
		if _, ok := roots[strings.ToLower(part)]; ok && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	if len(parts) > 0 && parts[len(parts)-1] != "." && parts[len(parts)-1] != "" {
		return parts[len(parts)-1]
	}
	return ""
}

// NormalizeTitle lowercases a window title and strips volatile noise such
// as unread counts so near-identical titles group together.
func NormalizeTitle(title string) string {
	lower := strings.ToLower(strings.TrimSpace(title))
	lower = countMarker.ReplaceAllString(lower, "")
	return strings.Join(strings.Fields(lower), " ")
}

// extractKeywords lowercases a title and keeps alphanumeric words longer
// than three characters, minus stopwords.
func extractKeywords(title string) []string {
	if title == "" {
		return nil
	}
	var out []string
	for _, word := range strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		if len(word) <= 3 {
			continue
		}
		if _, ok := stopwords[word]; ok {
			continue
		}
		out = append(out, word)
	}
	return out
}

// tokenSet is an ordered, deduplicating string collector.
type tokenSet struct {
	seen map[string]struct{}
}

func newTokenSet() *tokenSet {
	return &tokenSet{seen: make(map[string]struct{})}
}

func (t *tokenSet) add(tok string) {
	if tok == "" {
		return
	}
	t.seen[tok] = struct{}{}
}

func (t *tokenSet) addAll(toks []string) {
	for _, tok := range toks {
		t.add(tok)
	}
}

func (t *tokenSet) sorted() []string {
	if len(t.seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(t.seen))
	for tok := range t.seen {
		out = append(out, tok)
	}
	sort.Strings(out)
	return out
}
