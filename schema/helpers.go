package schema

import (
	"fmt"
	"time"
)

// RoundToIncrement rounds a duration up to the nearest billing increment.
// Zero and negative durations round to zero; a zero increment is an
// identity.
func RoundToIncrement(d, increment time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	if increment <= 0 {
		return d
	}
	rem := d % increment
	if rem == 0 {
		return d
	}
	return d - rem + increment
}

// DayBounds returns the [midnight, next midnight) window containing t in
// the given location.
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// FormatClockRange renders a block's span as "09:00-09:45" in the given
// location.
func FormatClockRange(start, end time.Time, loc *time.Location) string {
	return fmt.Sprintf("%s-%s", start.In(loc).Format("15:04"), end.In(loc).Format("15:04"))
}

// FormatHours renders seconds as decimal hours, e.g. "1.5h".
func FormatHours(secs int64) string {
	return fmt.Sprintf("%.1fh", float64(secs)/3600.0)
}
