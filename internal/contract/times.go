package contract

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseRelativeTime parses expressions like "2 days ago", "3 weeks ago",
// "1 month ago" relative to the given reference time.
func ParseRelativeTime(s string, now time.Time) (time.Time, error) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(s)))
	if len(fields) != 3 || fields[2] != "ago" {
		return time.Time{}, fmt.Errorf("expected 'N <unit> ago', got %q", s)
	}

	n, err := strconv.Atoi(fields[0])
	if err != nil || n < 0 {
		return time.Time{}, fmt.Errorf("invalid count %q in relative time", fields[0])
	}

	switch strings.TrimSuffix(fields[1], "s") {
	case "hour":
		return now.Add(-time.Duration(n) * time.Hour), nil
	case "day":
		return now.AddDate(0, 0, -n), nil
	case "week":
		return now.AddDate(0, 0, -7*n), nil
	case "month":
		return now.AddDate(0, -n, 0), nil
	case "year":
		return now.AddDate(-n, 0, 0), nil
	default:
		return time.Time{}, fmt.Errorf("invalid unit %q in relative time (expected hours, days, weeks, months, years)", fields[1])
	}
}

// ParseLookbackDuration parses durations like "30d", "6 months", "2 weeks"
// into a time.Duration. Month is treated as 30 days, year as 365.
func ParseLookbackDuration(s string) (time.Duration, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}

	// Compact form: 30d, 12h, 6w
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	if len(s) > 1 {
		if n, err := strconv.Atoi(s[:len(s)-1]); err == nil {
			switch s[len(s)-1] {
			case 'd':
				return time.Duration(n) * 24 * time.Hour, nil
			case 'w':
				return time.Duration(n) * 7 * 24 * time.Hour, nil
			}
		}
	}

	// Spelled-out form: "6 months"
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return 0, fmt.Errorf("invalid duration %q (expected forms like '30d' or '6 months')", s)
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid count %q in duration", fields[0])
	}
	switch strings.TrimSuffix(fields[1], "s") {
	case "hour":
		return time.Duration(n) * time.Hour, nil
	case "day":
		return time.Duration(n) * 24 * time.Hour, nil
	case "week":
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	case "month":
		return time.Duration(n) * 30 * 24 * time.Hour, nil
	case "year":
		return time.Duration(n) * 365 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("invalid unit %q in duration", fields[1])
	}
}
