package contract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseRelativeTime tests relative date expressions.
func TestParseRelativeTime(t *testing.T) {
	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		in   string
		want time.Time
	}{
		{"2 days ago", now.AddDate(0, 0, -2)},
		{"1 day ago", now.AddDate(0, 0, -1)},
		{"3 weeks ago", now.AddDate(0, 0, -21)},
		{"6 hours ago", now.Add(-6 * time.Hour)},
		{"1 month ago", now.AddDate(0, -1, 0)},
		{"1 year ago", now.AddDate(-1, 0, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRelativeTime(tt.in, now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "yesterday", "two days ago", "2 fortnights ago", "-1 days ago"} {
		_, err := ParseRelativeTime(bad, now)
		assert.Error(t, err, bad)
	}
}

// TestParseLookbackDuration tests compact and spelled-out durations.
func TestParseLookbackDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"30d", 30 * 24 * time.Hour},
		{"2w", 14 * 24 * time.Hour},
		{"12h", 12 * time.Hour},
		{"6 months", 180 * 24 * time.Hour},
		{"1 year", 365 * 24 * time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLookbackDuration(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "soon", "6 fortnights"} {
		_, err := ParseLookbackDuration(bad)
		assert.Error(t, err, bad)
	}
}
