// Package bytesize provides human-readable byte size parsing and formatting.
// Units use the binary (1024) base; "KB" and "KiB" are equivalent.
//
// Examples:
//   - "64KB" = 64 * 1024 bytes
//   - "1.5 MB" = 1.5 * 1024^2 bytes
//   - "1024" = 1024 bytes (no unit = bytes)
package bytesize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Size represents a byte size as int64.
type Size int64

// Common size constants using binary (1024) base.
const (
	B  Size = 1
	KB Size = 1024
	MB Size = 1024 * KB
	GB Size = 1024 * MB
	TB Size = 1024 * GB
)

// unitMultipliers maps unit names to their byte multiplier.
var unitMultipliers = map[string]Size{
	"b": B, "byte": B, "bytes": B,
	"k": KB, "kb": KB, "kib": KB,
	"m": MB, "mb": MB, "mib": MB,
	"g": GB, "gb": GB, "gib": GB,
	"t": TB, "tb": TB, "tib": TB,
}

// sizePattern matches a number (optionally fractional) followed by an
// optional unit, with optional whitespace between them.
var sizePattern = regexp.MustCompile(`(?i)^\s*([0-9]+(?:\.[0-9]+)?)\s*([a-z]*)\s*$`)

// Parse parses a human-readable byte size string.
func Parse(s string) (Size, error) {
	if s == "" {
		return 0, fmt.Errorf("bytesize: empty string")
	}

	parts := sizePattern.FindStringSubmatch(s)
	if parts == nil {
		return 0, fmt.Errorf("bytesize: invalid size %q", s)
	}

	value, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, fmt.Errorf("bytesize: invalid number %q: %w", parts[1], err)
	}

	unit := strings.ToLower(parts[2])
	if unit == "" {
		return Size(value), nil
	}

	mult, ok := unitMultipliers[unit]
	if !ok {
		return 0, fmt.Errorf("bytesize: unknown unit %q", parts[2])
	}

	return Size(value * float64(mult)), nil
}

// MustParse is like Parse but panics on error. Use only for constants.
func MustParse(s string) Size {
	size, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return size
}

// Format converts a size to a human-readable string using the largest unit
// that yields a whole or short fractional value.
func Format(s Size) string {
	switch {
	case s >= TB && s%TB == 0:
		return fmt.Sprintf("%dTB", s/TB)
	case s >= GB && s%GB == 0:
		return fmt.Sprintf("%dGB", s/GB)
	case s >= MB && s%MB == 0:
		return fmt.Sprintf("%dMB", s/MB)
	case s >= KB && s%KB == 0:
		return fmt.Sprintf("%dKB", s/KB)
	default:
		return fmt.Sprintf("%dB", s)
	}
}

// Int returns the size as an int. Sizes beyond int range are callers' risk;
// configuration caps are far below that.
func (s Size) Int() int {
	return int(s)
}

// Int64 returns the size as an int64.
func (s Size) Int64() int64 {
	return int64(s)
}
