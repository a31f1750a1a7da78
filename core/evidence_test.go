package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmorales/segmint/schema"
)

func TestBuildEvidenceAggregatesAndDedupes(t *testing.T) {
	signals := []schema.ContextSignals{
		{
			App:         "Google Chrome",
			Keywords:    []string{"checkout", "redesign"},
			Identifiers: []string{"ACME-1042"},
			URLDomain:   "acme.atlassian.net",
		},
		{
			App:         "GoLand",
			Keywords:    []string{"checkout"},
			Identifiers: []string{"ACME-1042", "ACME-1055"},
			FilePath:    "/Users/kat/Clients/acme/checkout.go",
			CalendarEvents: []schema.CalendarEvent{
				{ID: "ev1", Title: "Checkout standup", Platform: "Zoom", Recurring: true, Online: true},
			},
		},
	}
	snaps := []schema.ActivitySnapshot{
		{WindowTitle: "checkout.go - acme - GoLand", URL: "https://zoom.us/j/99"},
	}

	ev := BuildEvidence(signals, snaps)

	assert.Equal(t, []string{"GoLand", "Google Chrome"}, ev.Apps)
	assert.Equal(t, []string{"ACME-1042", "ACME-1055"}, ev.Identifiers)
	assert.Equal(t, []string{"checkout", "redesign"}, ev.Keywords)
	assert.Contains(t, ev.Domains, "acme.atlassian.net")
	assert.Contains(t, ev.Domains, "zoom.us")
	assert.Contains(t, ev.MeetingPlatforms, "Zoom")
	assert.True(t, ev.HasRecurringMeeting)
	assert.True(t, ev.HasOnlineMeeting)
}

func TestBuildEvidenceCapsTitles(t *testing.T) {
	var snaps []schema.ActivitySnapshot
	for i := 0; i < 30; i++ {
		snaps = append(snaps, schema.ActivitySnapshot{
			WindowTitle: string(rune('a'+i)) + " window",
		})
	}

	ev := BuildEvidence(nil, snaps)
	assert.LessOrEqual(t, len(ev.Titles), maxEvidenceTitles)
}

func TestMergeSignalsDominantFirst(t *testing.T) {
	signals := []schema.ContextSignals{
		{
			App:         "Excel",
			AppCategory: schema.SpreadsheetApp,
			Identifiers: []string{"10234.001"},
			Keywords:    []string{"model"},
		},
		{
			App:         "Google Chrome",
			AppCategory: schema.BrowserApp,
			Identifiers: []string{"ACME-1042"},
			Keywords:    []string{"checkout"},
			URLDomain:   "acme.atlassian.net",
			Personal:    false,
			CalendarEvents: []schema.CalendarEvent{
				{ID: "ev1", Title: "Sync"},
				{ID: "ev1", Title: "Sync"}, // duplicate ID dropped
			},
		},
	}

	merged := MergeSignals(signals)

	// The first (dominant) signal supplies app identity.
	assert.Equal(t, "Excel", merged.App)
	assert.Equal(t, schema.SpreadsheetApp, merged.AppCategory)

	assert.Equal(t, []string{"10234.001", "ACME-1042"}, merged.Identifiers)
	assert.Equal(t, []string{"checkout", "model"}, merged.Keywords)
	assert.Equal(t, "acme.atlassian.net", merged.URLDomain)
	require.Len(t, merged.CalendarEvents, 1)
}

func TestMergeSignalsPropagatesFlags(t *testing.T) {
	merged := MergeSignals([]schema.ContextSignals{
		{App: "Excel"},
		{App: "Safari", Personal: true, CalendarDegraded: true},
	})
	assert.True(t, merged.Personal)
	assert.True(t, merged.CalendarDegraded)
}

func TestMergeSignalsEmpty(t *testing.T) {
	merged := MergeSignals(nil)
	assert.Empty(t, merged.App)
}
