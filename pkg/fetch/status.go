package fetch

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// statusRange is an inclusive range of HTTP status codes.
type statusRange struct {
	min, max int
}

func (r statusRange) contains(code int) bool {
	return code >= r.min && code <= r.max
}

// StatusCodeSet is a set of HTTP status codes, expressed as individual
// codes and inclusive ranges.
//
// Text forms:
//   - "200" single code
//   - "200,304" multiple codes
//   - "200-299" range
//   - "200-299,304" mixed
type StatusCodeSet struct {
	codes  map[int]struct{}
	ranges []statusRange
}

// ParseStatusCodes parses a form like "200-299,304". Empty input
// returns nil, which means the default 2xx behavior.
func ParseStatusCodes(s string) (*StatusCodeSet, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	set := &StatusCodeSet{codes: make(map[int]struct{})}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if lo, hi, ok := strings.Cut(part, "-"); ok {
			min, err := parseStatusCode(lo)
			if err != nil {
				return nil, fmt.Errorf("invalid range start in %q: %w", part, err)
			}
			max, err := parseStatusCode(hi)
			if err != nil {
				return nil, fmt.Errorf("invalid range end in %q: %w", part, err)
			}
			if min > max {
				return nil, fmt.Errorf("invalid range %q: start above end", part)
			}
			set.ranges = append(set.ranges, statusRange{min: min, max: max})
			continue
		}

		code, err := parseStatusCode(part)
		if err != nil {
			return nil, err
		}
		set.codes[code] = struct{}{}
	}

	if set.IsEmpty() {
		return nil, nil
	}
	return set, nil
}

// MustParseStatusCodes is ParseStatusCodes that panics on error, for
// package-level defaults.
func MustParseStatusCodes(s string) *StatusCodeSet {
	set, err := ParseStatusCodes(s)
	if err != nil {
		panic(err)
	}
	return set
}

func parseStatusCode(s string) (int, error) {
	code, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid status code %q: %w", s, err)
	}
	if code < 100 || code > 599 {
		return 0, fmt.Errorf("status code %d out of range 100-599", code)
	}
	return code, nil
}

// Contains reports whether code is in the set. A nil set contains
// nothing.
func (s *StatusCodeSet) Contains(code int) bool {
	if s == nil {
		return false
	}
	if _, ok := s.codes[code]; ok {
		return true
	}
	for _, r := range s.ranges {
		if r.contains(code) {
			return true
		}
	}
	return false
}

// IsEmpty reports whether the set has no codes or ranges.
func (s *StatusCodeSet) IsEmpty() bool {
	return s == nil || (len(s.codes) == 0 && len(s.ranges) == 0)
}

// String renders the set back into its text form.
func (s *StatusCodeSet) String() string {
	if s.IsEmpty() {
		return ""
	}

	parts := make([]string, 0, len(s.ranges)+len(s.codes))
	for _, r := range s.ranges {
		if r.min == r.max {
			parts = append(parts, strconv.Itoa(r.min))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", r.min, r.max))
		}
	}
	codes := make([]int, 0, len(s.codes))
	for code := range s.codes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		parts = append(parts, strconv.Itoa(code))
	}
	return strings.Join(parts, ",")
}

// MarshalText implements encoding.TextMarshaler.
func (s *StatusCodeSet) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *StatusCodeSet) UnmarshalText(text []byte) error {
	parsed, err := ParseStatusCodes(string(text))
	if err != nil {
		return err
	}
	if parsed == nil {
		*s = StatusCodeSet{}
		return nil
	}
	*s = *parsed
	return nil
}
