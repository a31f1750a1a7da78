package core

import (
	"github.com/pmorales/segmint/schema"
)

// maxEvidenceTitles caps the raw titles carried as evidence per block.
const maxEvidenceTitles = 10

// BuildEvidence aggregates deduplicated evidence across all segments and
// snapshots contributing to one block. Sets are sorted for determinism.
func BuildEvidence(signals []schema.ContextSignals, snaps []schema.ActivitySnapshot) schema.EvidenceSignals {
	apps := newTokenSet()
	titles := newTokenSet()
	keywords := newTokenSet()
	idents := newTokenSet()
	domains := newTokenSet()
	paths := newTokenSet()
	platforms := newTokenSet()

	var ev schema.EvidenceSignals

	for i := range signals {
		sig := &signals[i]
		apps.add(sig.App)
		keywords.addAll(sig.Keywords)
		idents.addAll(sig.Identifiers)
		domains.add(sig.URLDomain)
		paths.add(sig.FilePath)
		for _, event := range sig.CalendarEvents {
			titles.add(event.Title)
			if event.Platform != "" {
				platforms.add(event.Platform)
			}
			if event.Recurring {
				ev.HasRecurringMeeting = true
			}
			if event.Online {
				ev.HasOnlineMeeting = true
			}
		}
	}

	for i := range snaps {
		snap := &snaps[i]
		if len(titles.seen) < maxEvidenceTitles {
			titles.add(snap.WindowTitle)
		}
		if domain := URLDomain(snap.URL); domain != "" {
			domains.add(domain)
			if platform := MeetingPlatform(domain); platform != "" {
				platforms.add(platform)
				ev.HasOnlineMeeting = true
			}
		}
	}

	ev.Apps = apps.sorted()
	ev.Titles = titles.sorted()
	ev.Keywords = keywords.sorted()
	ev.Identifiers = idents.sorted()
	ev.Domains = domains.sorted()
	ev.Paths = paths.sorted()
	ev.MeetingPlatforms = platforms.sorted()
	return ev
}

// MergeSignals folds per-segment signals into one block-level signal set
// for project matching. The dominant segment (first in the slice order,
// which the builder sorts by duration) supplies app and context fields.
func MergeSignals(signals []schema.ContextSignals) schema.ContextSignals {
	if len(signals) == 0 {
		return schema.ContextSignals{}
	}
	merged := signals[0]

	idents := newTokenSet()
	keywords := newTokenSet()
	attendees := newTokenSet()
	var events []schema.CalendarEvent
	eventIDs := map[string]struct{}{}

	for i := range signals {
		sig := &signals[i]
		idents.addAll(sig.Identifiers)
		keywords.addAll(sig.Keywords)
		attendees.addAll(sig.AttendeeDomains)
		if merged.URLDomain == "" {
			merged.URLDomain = sig.URLDomain
		}
		if merged.FilePath == "" {
			merged.FilePath = sig.FilePath
			merged.ProjectFolder = sig.ProjectFolder
		}
		if sig.CalendarDegraded {
			merged.CalendarDegraded = true
		}
		if sig.Personal {
			merged.Personal = true
		}
		for _, event := range sig.CalendarEvents {
			if _, ok := eventIDs[event.ID]; ok {
				continue
			}
			eventIDs[event.ID] = struct{}{}
			events = append(events, event)
		}
	}

	merged.Identifiers = idents.sorted()
	merged.Keywords = keywords.sorted()
	merged.AttendeeDomains = attendees.sorted()
	merged.CalendarEvents = events
	return merged
}
