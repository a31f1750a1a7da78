package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmorales/segmint/schema"
)

func TestSegmentEmptyInput(t *testing.T) {
	s := NewSegmenter(newTestConfig())
	segments, err := s.Segment(nil)
	require.NoError(t, err)
	assert.Empty(t, segments)
}

func TestSegmentSingleContext(t *testing.T) {
	s := NewSegmenter(newTestConfig())
	snaps := snapSeries("s", at(10, 0, 0), 3, 30*time.Second, "GoLand", "matcher.go")

	segments, err := s.Segment(snaps)
	require.NoError(t, err)
	require.Len(t, segments, 1)

	seg := segments[0]
	assert.Equal(t, at(10, 0, 0), seg.Start)
	// The trailing snapshot carries the assumed capture interval.
	assert.Equal(t, at(10, 1, 30), seg.End)
	assert.Equal(t, "GoLand", seg.App)
	assert.Equal(t, 3, seg.SampleCount)
	assert.Len(t, seg.SnapshotIDs, 3)
	assert.NotEmpty(t, seg.ID)
}

func TestSegmentSplitsOnGapAndContext(t *testing.T) {
	tests := []struct {
		name    string
		second  time.Time
		app     string
		title   string
		wantTwo bool
	}{
		{
			name:    "small gap same context merges",
			second:  at(10, 5, 0),
			app:     "GoLand",
			title:   "matcher.go",
			wantTwo: false,
		},
		{
			name:    "gap over threshold splits",
			second:  at(10, 35, 0),
			app:     "GoLand",
			title:   "matcher.go",
			wantTwo: true,
		},
		{
			name:    "app change splits",
			second:  at(10, 1, 0),
			app:     "Slack",
			title:   "#general",
			wantTwo: true,
		},
		{
			name:    "title change splits",
			second:  at(10, 1, 0),
			app:     "GoLand",
			title:   "builder.go",
			wantTwo: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSegmenter(newTestConfig())
			snaps := append(
				snapSeries("a", at(10, 0, 0), 2, 30*time.Second, "GoLand", "matcher.go"),
				snapAt("b", tt.second, tt.app, tt.title),
			)
			segments, err := s.Segment(snaps)
			require.NoError(t, err)
			if tt.wantTwo {
				assert.Len(t, segments, 2)
			} else {
				assert.Len(t, segments, 1)
			}
		})
	}
}

func TestSegmentNeverSpansMidnight(t *testing.T) {
	s := NewSegmenter(newTestConfig())
	snaps := []schema.ActivitySnapshot{
		snapAt("a", time.Date(2026, 8, 20, 23, 59, 0, 0, time.UTC), "Excel", "model.xlsx"),
		snapAt("b", time.Date(2026, 8, 20, 23, 59, 40, 0, time.UTC), "Excel", "model.xlsx"),
		snapAt("c", time.Date(2026, 8, 21, 0, 0, 20, 0, time.UTC), "Excel", "model.xlsx"),
	}

	segments, err := s.Segment(snaps)
	require.NoError(t, err)
	require.Len(t, segments, 2)

	midnight := time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC)
	assert.True(t, !segments[0].End.After(midnight), "first segment must be clipped at midnight")
	assert.False(t, segments[1].Start.Before(midnight))
}

func TestSegmentRejectsOutOfOrder(t *testing.T) {
	s := NewSegmenter(newTestConfig())
	snaps := []schema.ActivitySnapshot{
		snapAt("a", at(10, 5, 0), "Excel", "model.xlsx"),
		snapAt("b", at(10, 0, 0), "Excel", "model.xlsx"),
	}

	segments, err := s.Segment(snaps)
	require.ErrorIs(t, err, schema.ErrOutOfOrder)
	assert.Nil(t, segments)
}

func TestSegmentIdleRatio(t *testing.T) {
	s := NewSegmenter(newTestConfig())
	snaps := []schema.ActivitySnapshot{
		snapAt("a", at(10, 0, 0), "Excel", "model.xlsx"),
		snapAt("b", at(10, 0, 30), "Excel", "model.xlsx"),
	}
	snaps[1].Idle = true

	segments, err := s.Segment(snaps)
	require.NoError(t, err)
	require.Len(t, segments, 1)

	// One of two 30s spans was idle.
	assert.InDelta(t, 0.5, segments[0].IdleRatio, 0.01)
	assert.Equal(t, 30*time.Second, segments[0].IdleDuration())
}

func TestContextIdentityGroupsBrowserByDomain(t *testing.T) {
	a := schema.ActivitySnapshot{App: "Chrome", WindowTitle: "Dashboard - Jira", URL: "https://acme.atlassian.net/browse/ACME-1"}
	b := schema.ActivitySnapshot{App: "Chrome", WindowTitle: "Sprint Board - Jira", URL: "https://acme.atlassian.net/jira/boards/2"}
	c := schema.ActivitySnapshot{App: "Chrome", WindowTitle: "News", URL: "https://reddit.com/r/golang"}

	assert.Equal(t, ContextIdentity(&a), ContextIdentity(&b))
	assert.NotEqual(t, ContextIdentity(&a), ContextIdentity(&c))
}
