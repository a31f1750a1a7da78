package core

import (
	"time"

	"github.com/pmorales/segmint/internal/contract"
	"github.com/pmorales/segmint/schema"
)

// newTestConfig returns a config with the default pipeline tuning, pinned
// to UTC so day boundaries are stable in tests.
func newTestConfig() *contract.Config {
	return &contract.Config{
		Location:          time.UTC,
		IdlePolicy:        schema.IdlePartial,
		GapThreshold:      30 * time.Minute,
		MergeGap:          3 * time.Minute,
		Consolidation:     time.Hour,
		MinBlock:          30 * time.Minute,
		BillingIncrement:  6 * time.Minute,
		IdleExcludeRatio:  0.80,
		Workers:           2,
		MatchLimit:        5,
		CommonCacheSize:   10,
		MinConfidence:     0.55,
		CatalogStaleAfter: 24 * time.Hour,
	}
}

// at builds a timestamp on 2026-08-20 UTC at the given clock offset.
func at(hour, minute, sec int) time.Time {
	return time.Date(2026, 8, 20, hour, minute, sec, 0, time.UTC)
}

// snapAt builds one snapshot with a deterministic ID.
func snapAt(id string, ts time.Time, app, title string) schema.ActivitySnapshot {
	return schema.ActivitySnapshot{
		ID:          id,
		Timestamp:   ts,
		App:         app,
		WindowTitle: title,
	}
}

// snapSeries builds n same-context snapshots spaced interval apart.
func snapSeries(prefix string, start time.Time, n int, interval time.Duration, app, title string) []schema.ActivitySnapshot {
	out := make([]schema.ActivitySnapshot, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, snapAt(prefix+string(rune('a'+i)), start.Add(time.Duration(i)*interval), app, title))
	}
	return out
}
