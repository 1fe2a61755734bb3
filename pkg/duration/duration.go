// Package duration provides human-readable duration parsing.
// It extends Go's standard time.ParseDuration with support for days and weeks.
//
// Supported extended units (case-insensitive):
//   - d, day(s): days (24 hours)
//   - w, wk, week(s): weeks (7 days)
//
// Examples:
//   - "30d" = 30 days
//   - "2w" = 2 weeks
//   - "1w2d12h" = 1 week, 2 days, 12 hours
//   - "720h" = 720 hours (standard Go format)
package duration

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// Day represents 24 hours.
	Day = 24 * time.Hour
	// Week represents 7 days.
	Week = 7 * Day
)

// unitHours maps extended unit names to their hour multiplier. Hours are the
// base for conversion since time.ParseDuration supports up to hours natively.
var unitHours = map[string]int64{
	"w":     7 * 24,
	"wk":    7 * 24,
	"wks":   7 * 24,
	"week":  7 * 24,
	"weeks": 7 * 24,
	"d":     24,
	"day":   24,
	"days":  24,
}

// extendedUnitPattern matches extended duration units (weeks, days) with
// optional whitespace between number and unit: "30d", "30 days", "2weeks".
var extendedUnitPattern = regexp.MustCompile(`(?i)(\d+)\s*(weeks?|wks?|w|days?|d)`)

// Parse parses a human-readable duration string.
// Extended units are converted to hours before delegating to
// time.ParseDuration, so standard Go duration syntax still works.
func Parse(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("duration: empty string")
	}

	s = strings.TrimSpace(s)

	negative := false
	if strings.HasPrefix(s, "-") {
		negative = true
		s = strings.TrimSpace(strings.TrimPrefix(s, "-"))
	}

	var totalHours int64
	remaining := extendedUnitPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := extendedUnitPattern.FindStringSubmatch(match)
		if len(parts) == 3 {
			value, _ := strconv.ParseInt(parts[1], 10, 64)
			if mult, ok := unitHours[strings.ToLower(parts[2])]; ok {
				totalHours += value * mult
			}
		}
		return ""
	})

	// time.ParseDuration does not accept spaces between units.
	remaining = strings.Join(strings.Fields(strings.TrimSpace(remaining)), "")

	var durationStr string
	if totalHours > 0 {
		durationStr = fmt.Sprintf("%dh", totalHours)
	}
	durationStr += remaining
	if durationStr == "" {
		durationStr = "0s"
	}

	d, err := time.ParseDuration(durationStr)
	if err != nil {
		return 0, fmt.Errorf("duration: %w", err)
	}

	if negative {
		d = -d
	}
	return d, nil
}

// MustParse is like Parse but panics if the string cannot be parsed.
// Use only for compile-time constants.
func MustParse(s string) time.Duration {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Format converts a duration to a human-readable string using the largest
// appropriate units. Zero components are omitted: 26h becomes "1d2h".
func Format(d time.Duration) string {
	if d == 0 {
		return "0s"
	}

	negative := d < 0
	if negative {
		d = -d
	}

	var b strings.Builder

	weeks := d / Week
	d -= weeks * Week
	days := d / Day
	d -= days * Day

	if weeks > 0 {
		fmt.Fprintf(&b, "%dw", weeks)
	}
	if days > 0 {
		fmt.Fprintf(&b, "%dd", days)
	}
	if d > 0 || b.Len() == 0 {
		b.WriteString(d.String())
	}

	out := b.String()
	if negative {
		out = "-" + out
	}
	return out
}
