package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBreakdownValidate tests the share-sum invariant check.
func TestBreakdownValidate(t *testing.T) {
	t.Run("valid shares", func(t *testing.T) {
		b := ActivityBreakdown{Shares: []ActivityShare{
			{App: "Excel", DurationSecs: 1800, Share: 0.75},
			{App: "Chrome", DurationSecs: 600, Share: 0.25},
		}}
		assert.NoError(t, b.Validate())
	})

	t.Run("empty breakdown is valid", func(t *testing.T) {
		b := ActivityBreakdown{}
		assert.NoError(t, b.Validate())
	})

	t.Run("shares off by more than tolerance", func(t *testing.T) {
		b := ActivityBreakdown{Shares: []ActivityShare{
			{App: "Excel", Share: 0.70},
			{App: "Chrome", Share: 0.25},
		}}
		err := b.Validate()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvariant)
	})
}

// TestBreakdownDominant tests dominant-application selection.
func TestBreakdownDominant(t *testing.T) {
	b := ActivityBreakdown{Shares: []ActivityShare{
		{App: "Chrome", Share: 0.3},
		{App: "Excel", Share: 0.5},
		{App: "Outlook", Share: 0.2},
	}}
	assert.Equal(t, "Excel", b.Dominant())
	assert.Equal(t, "", (&ActivityBreakdown{}).Dominant())
}

// TestSortMatches tests match ordering and tie-breaking.
func TestSortMatches(t *testing.T) {
	matches := []ProjectMatch{
		{Code: "30021.1", Confidence: 0.42, Method: CachedMatch},
		{Code: "20017.3", Confidence: 0.42, Method: FuzzyTextMatch},
		{Code: "10001.2", Confidence: 1.0, Method: ExactCodeMatch},
		{Code: "20017.1", Confidence: 0.42, Method: FuzzyTextMatch},
	}
	SortMatches(matches)

	assert.Equal(t, "10001.2", matches[0].Code)
	// Equal confidence: fuzzy beats cached, then lexical code order.
	assert.Equal(t, "20017.1", matches[1].Code)
	assert.Equal(t, "20017.3", matches[2].Code)
	assert.Equal(t, "30021.1", matches[3].Code)
}

// TestBlockValidate tests block-level invariants.
func TestBlockValidate(t *testing.T) {
	loc := time.UTC
	day := time.Date(2026, 3, 9, 0, 0, 0, 0, loc)

	valid := ProposedBlock{
		Start: day.Add(9 * time.Hour),
		End:   day.Add(10 * time.Hour),
		Breakdown: ActivityBreakdown{Shares: []ActivityShare{
			{App: "Excel", Share: 1.0},
		}},
	}
	assert.NoError(t, valid.Validate(loc))

	t.Run("ends exactly at midnight", func(t *testing.T) {
		b := valid
		b.Start = day.Add(23 * time.Hour)
		b.End = day.AddDate(0, 0, 1)
		assert.NoError(t, b.Validate(loc))
	})

	t.Run("crosses midnight", func(t *testing.T) {
		b := valid
		b.Start = day.Add(23 * time.Hour)
		b.End = day.AddDate(0, 0, 1).Add(time.Hour)
		assert.ErrorIs(t, b.Validate(loc), ErrInvariant)
	})

	t.Run("start not before end", func(t *testing.T) {
		b := valid
		b.End = b.Start
		assert.ErrorIs(t, b.Validate(loc), ErrInvariant)
	})
}

// TestSignalsRoundTrip tests the versioned signals envelope.
func TestSignalsRoundTrip(t *testing.T) {
	sig := ContextSignals{
		App:         "Code",
		AppCategory: IDEApp,
		Identifiers: []string{"PROJ-1234"},
		Keywords:    []string{"merger", "diligence"},
		Timestamp:   time.Date(2026, 3, 9, 9, 30, 0, 0, time.UTC),
	}

	raw, err := EncodeSignals(sig)
	require.NoError(t, err)

	decoded, ok := DecodeSignals(raw)
	require.True(t, ok)
	assert.Equal(t, sig.Identifiers, decoded.Identifiers)
	assert.Equal(t, IDEApp, decoded.AppCategory)

	t.Run("version mismatch forces re-extraction", func(t *testing.T) {
		_, ok := DecodeSignals(`{"version":1,"signals":{}}`)
		assert.False(t, ok)
	})

	t.Run("garbage input", func(t *testing.T) {
		_, ok := DecodeSignals("not json")
		assert.False(t, ok)
	})
}

// TestRoundToIncrement tests billing-increment rounding.
func TestRoundToIncrement(t *testing.T) {
	inc := 6 * time.Minute
	tests := []struct {
		name string
		in   time.Duration
		want time.Duration
	}{
		{"exact multiple", 30 * time.Minute, 30 * time.Minute},
		{"rounds up", 31 * time.Minute, 36 * time.Minute},
		{"small value rounds to one increment", time.Minute, 6 * time.Minute},
		{"zero stays zero", 0, 0},
		{"negative clamps to zero", -time.Minute, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RoundToIncrement(tt.in, inc))
		})
	}
	assert.Equal(t, 7*time.Minute, RoundToIncrement(7*time.Minute, 0))
}

// TestDayBounds tests day-window computation.
func TestDayBounds(t *testing.T) {
	loc := time.UTC
	start, end := DayBounds(time.Date(2026, 3, 9, 14, 22, 5, 0, loc), loc)
	assert.Equal(t, time.Date(2026, 3, 9, 0, 0, 0, 0, loc), start)
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, loc), end)
}
