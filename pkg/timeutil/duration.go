package timeutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// unit suffixes accepted by ParseOffset, largest first for rendering.
var units = []struct {
	suffix string
	d      time.Duration
}{
	{"w", 7 * 24 * time.Hour},
	{"d", 24 * time.Hour},
	{"h", time.Hour},
	{"m", time.Minute},
	{"s", time.Second},
}

// ParseOffset parses a reminder offset in the grammar <int>(s|m|h|d|w),
// e.g. "24h", "3d", "1w". The value must be positive.
func ParseOffset(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid offset %q", s)
	}

	for _, u := range units {
		if !strings.HasSuffix(s, u.suffix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(s, u.suffix))
		if err != nil {
			return 0, fmt.Errorf("invalid offset %q: %w", s, err)
		}
		if n <= 0 {
			return 0, fmt.Errorf("offset %q must be positive", s)
		}
		return time.Duration(n) * u.d, nil
	}
	return 0, fmt.Errorf("invalid offset %q: unknown unit", s)
}

// ParseOffsets parses a delimiter-separated list of offsets, deduplicating
// while preserving order.
func ParseOffsets(s, delim string) ([]time.Duration, error) {
	var out []time.Duration
	seen := make(map[time.Duration]bool)
	for _, part := range strings.Split(s, delim) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := ParseOffset(part)
		if err != nil {
			return nil, err
		}
		if seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out, nil
}

// FormatOffset renders a duration in the offset grammar, using the largest
// unit that divides it evenly. A lone day is spelled "24h", the canonical
// form of the day-before offset; the day unit starts at "2d".
func FormatOffset(d time.Duration) string {
	for _, u := range units {
		if d < u.d || d%u.d != 0 {
			continue
		}
		if u.suffix == "d" && d == u.d {
			continue
		}
		return fmt.Sprintf("%d%s", d/u.d, u.suffix)
	}
	return fmt.Sprintf("%ds", int64(d/time.Second))
}

// Humanize renders a duration for email subjects: "in 1 hour", "in 2 days".
// Non-positive durations render as "now".
func Humanize(d time.Duration) string {
	if d <= 0 {
		return "now"
	}
	type unit struct {
		d    time.Duration
		name string
	}
	for _, u := range []unit{
		{7 * 24 * time.Hour, "week"},
		{24 * time.Hour, "day"},
		{time.Hour, "hour"},
		{time.Minute, "minute"},
	} {
		if d >= u.d {
			n := int(d / u.d)
			if n == 1 {
				return fmt.Sprintf("in 1 %s", u.name)
			}
			return fmt.Sprintf("in %d %ss", n, u.name)
		}
	}
	return "now"
}
