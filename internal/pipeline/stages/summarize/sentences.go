package summarize

import (
	"strings"
	"unicode"
)

// abbreviations that a period does not terminate a sentence after.
// Multi-part forms like "u.s" are matched against the token up to the
// final period.
var abbreviations = map[string]struct{}{
	"mr": {}, "mrs": {}, "ms": {}, "dr": {}, "prof": {}, "rev": {},
	"hon": {}, "sen": {}, "rep": {}, "gov": {}, "gen": {}, "col": {},
	"maj": {}, "capt": {}, "sgt": {}, "lt": {}, "st": {}, "jr": {},
	"sr": {}, "vs": {}, "etc": {}, "al": {}, "inc": {}, "ltd": {},
	"co": {}, "corp": {}, "dept": {}, "univ": {}, "assn": {},
	"u.s": {}, "u.k": {}, "u.n": {}, "e.g": {}, "i.e": {},
	"a.m": {}, "p.m": {},
	"jan": {}, "feb": {}, "mar": {}, "apr": {}, "jun": {}, "jul": {},
	"aug": {}, "sep": {}, "sept": {}, "oct": {}, "nov": {}, "dec": {},
}

// splitSentences splits prose into sentences on ., ! and ? boundaries,
// keeping abbreviations, initials, decimals and ellipses intact.
func splitSentences(text string) []string {
	runes := []rune(text)
	var sentences []string
	start := 0

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if r == '.' && !periodEndsSentence(runes, i) {
			continue
		}

		end := i + 1
		for end < len(runes) && isClosing(runes[end]) {
			end++
		}
		if !boundaryFollows(runes, end) {
			continue
		}

		if s := strings.TrimSpace(string(runes[start:end])); s != "" {
			sentences = append(sentences, s)
		}
		start = end
		i = end - 1
	}

	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// periodEndsSentence rejects periods inside ellipses, decimals,
// initials and known abbreviations.
func periodEndsSentence(runes []rune, i int) bool {
	if i+1 < len(runes) && runes[i+1] == '.' {
		// Middle of an ellipsis run; only its last period can end.
		return false
	}
	if i+1 < len(runes) && unicode.IsDigit(runes[i+1]) {
		return false
	}
	if i > 0 && runes[i-1] == '.' {
		// End of an ellipsis; the word before is irrelevant.
		return true
	}

	word := wordBefore(runes, i)
	if word == "" {
		return true
	}
	if len([]rune(word)) == 1 && unicode.IsUpper([]rune(word)[0]) {
		// Single-letter initial.
		return false
	}
	_, abbrev := abbreviations[strings.ToLower(word)]
	return !abbrev
}

// wordBefore collects the letters and internal periods immediately
// preceding position i, so "U.S." yields "U.S" at its final period.
func wordBefore(runes []rune, i int) string {
	j := i
	for j > 0 {
		r := runes[j-1]
		if !unicode.IsLetter(r) && r != '.' {
			break
		}
		j--
	}
	return strings.Trim(string(runes[j:i]), ".")
}

// boundaryFollows requires whitespace and then a plausible sentence
// opener after the terminator, or end of text.
func boundaryFollows(runes []rune, end int) bool {
	j := end
	for j < len(runes) && unicode.IsSpace(runes[j]) {
		j++
	}
	if j == len(runes) {
		return true
	}
	if j == end {
		// No whitespace after the terminator.
		return false
	}
	r := runes[j]
	return unicode.IsUpper(r) || unicode.IsDigit(r) || isOpening(r)
}

func isClosing(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '”', '’':
		return true
	}
	return false
}

func isOpening(r rune) bool {
	switch r {
	case '"', '\'', '(', '“', '‘':
		return true
	}
	return false
}
