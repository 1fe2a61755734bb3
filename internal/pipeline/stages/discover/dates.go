package discover

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// dateSource identifies where a publication date candidate came from.
// Sources carry weights reflecting their reliability; a feed timestamp
// or a datetime attribute outweighs a date squeezed out of link text.
type dateSource string

const (
	sourceFeed         dateSource = "feed"
	sourceDatetimeAttr dateSource = "datetime_attr"
	sourceSchemaOrg    dateSource = "schema_org"
	sourceURLPath      dateSource = "url_path"
	sourceNearTitle    dateSource = "near_title"
)

var sourceWeights = map[dateSource]int{
	sourceFeed:         7,
	sourceDatetimeAttr: 7,
	sourceSchemaOrg:    5,
	sourceURLPath:      3,
	sourceNearTitle:    2,
}

// dateCandidate is one extracted date with its provenance.
type dateCandidate struct {
	date   string // YYYY-MM-DD
	source dateSource
}

// dateVote is the winning date for a candidate article.
type dateVote struct {
	date   string
	score  int
	source dateSource
}

// voteDate picks a publication date by weighted consensus. Candidates
// are grouped by date value; each group scores the sum of its source
// weights plus a consensus bonus of one per additional agreeing source.
// The winning group must reach threshold, otherwise no date is chosen.
// Ties go to the more recent date.
func voteDate(candidates []dateCandidate, threshold int) (dateVote, bool) {
	if len(candidates) == 0 {
		return dateVote{}, false
	}

	groups := make(map[string][]dateCandidate)
	for _, c := range candidates {
		groups[c.date] = append(groups[c.date], c)
	}

	var winner dateVote
	for date, group := range groups {
		score := len(group) - 1
		best := group[0].source
		for _, c := range group {
			score += sourceWeights[c.source]
			if sourceWeights[c.source] > sourceWeights[best] {
				best = c.source
			}
		}
		if score > winner.score || (score == winner.score && date > winner.date) {
			winner = dateVote{date: date, score: score, source: best}
		}
	}

	if winner.score < threshold {
		return dateVote{}, false
	}
	return winner, true
}

// textDateLayouts are the layouts tried when normalizing a free-form
// date string. Ambiguous numeric forms like 01/02/2006 are excluded.
var textDateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"2 January 2006",
	"2 Jan 2006",
}

// normalizeDate parses s into YYYY-MM-DD form. Timestamps are reduced
// to their date part.
func normalizeDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}

	// RFC 3339 style timestamps: the date part stands alone.
	if len(s) >= 10 {
		if t, err := time.Parse("2006-01-02", s[:10]); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	for _, layout := range textDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}

var (
	// /2026/01/28/ style path segments.
	urlSlashDate = regexp.MustCompile(`/(20\d{2})/(\d{1,2})/(\d{1,2})(?:/|$)`)
	// 2026-01-28 embedded in a path segment.
	urlDashDate = regexp.MustCompile(`(20\d{2})-(\d{2})-(\d{2})`)
	// january-28-2026 style slugs.
	urlMonthNameDate = regexp.MustCompile(`(?i)(january|february|march|april|may|june|july|august|september|october|november|december)-(\d{1,2})-(20\d{2})`)
)

// dateFromURLPath extracts a publication date encoded in a URL path.
func dateFromURLPath(rawURL string) (string, bool) {
	if m := urlSlashDate.FindStringSubmatch(rawURL); m != nil {
		return buildDate(m[1], m[2], m[3])
	}
	if m := urlDashDate.FindStringSubmatch(rawURL); m != nil {
		return buildDate(m[1], m[2], m[3])
	}
	if m := urlMonthNameDate.FindStringSubmatch(rawURL); m != nil {
		month := monthNumber(m[1])
		return buildDate(m[3], month, m[2])
	}
	return "", false
}

// textDatePattern finds human-readable dates in prose, e.g.
// "January 28, 2026", "28 January 2026" or a bare "2026-01-28".
var textDatePattern = regexp.MustCompile(`(?i)\b(?:(january|february|march|april|may|june|july|august|september|october|november|december)\s+(\d{1,2}),?\s+(20\d{2})|(\d{1,2})\s+(january|february|march|april|may|june|july|august|september|october|november|december),?\s+(20\d{2})|(20\d{2})-(\d{2})-(\d{2}))\b`)

// dateFromText extracts the first recognizable date from prose.
func dateFromText(text string) (string, bool) {
	m := textDatePattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	switch {
	case m[1] != "":
		return buildDate(m[3], monthNumber(m[1]), m[2])
	case m[4] != "":
		return buildDate(m[6], monthNumber(m[5]), m[4])
	default:
		return buildDate(m[7], m[8], m[9])
	}
}

// buildDate validates components and renders YYYY-MM-DD. Overflowing
// values such as month 13 or February 30 are rejected.
func buildDate(year, month, day string) (string, bool) {
	y, errY := strconv.Atoi(year)
	m, errM := strconv.Atoi(month)
	d, errD := strconv.Atoi(day)
	if errY != nil || errM != nil || errD != nil {
		return "", false
	}
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return "", false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || int(t.Month()) != m || t.Day() != d {
		return "", false
	}
	return t.Format("2006-01-02"), true
}

var monthNumbers = map[string]string{
	"january": "1", "february": "2", "march": "3", "april": "4",
	"may": "5", "june": "6", "july": "7", "august": "8",
	"september": "9", "october": "10", "november": "11", "december": "12",
}

func monthNumber(name string) string {
	return monthNumbers[strings.ToLower(name)]
}
