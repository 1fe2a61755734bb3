package discover

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"
)

// maxSlugLength bounds the title slug inside an item id so ids stay
// usable as file names.
const maxSlugLength = 40

// makeID builds an item id of the form YYYY-MM-DD-title-slug-hash8.
// The hash is derived from the source URL so the same communication
// found twice yields the same id.
func makeID(date, title, sourceURL string) string {
	return fmt.Sprintf("%s-%s-%s", date, slugify(title, maxSlugLength), urlHash(sourceURL))
}

// slugify lowercases text, drops punctuation and collapses whitespace
// and hyphen runs into single hyphens.
func slugify(text string, maxLen int) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(text)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_' || r == '\t' || r == '\n':
			b.WriteRune(' ')
		}
	}

	slug := strings.Join(strings.Fields(b.String()), "-")
	runes := []rune(slug)
	if len(runes) > maxLen {
		slug = strings.TrimRight(string(runes[:maxLen]), "-")
	}
	if slug == "" {
		return "untitled"
	}
	return slug
}

// urlHash returns the first 8 hex characters of the SHA-1 of url.
func urlHash(url string) string {
	sum := sha1.Sum([]byte(url))
	return hex.EncodeToString(sum[:])[:8]
}
