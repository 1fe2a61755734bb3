package models

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// CanonicalName normalizes an entity or speaker name for use as a merge
// key: whitespace trimmed, Unicode NFC, case folded. Display forms are
// stored separately; the canonical form only drives identity.
func CanonicalName(name string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(name)))
}
