package diary

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// NormalizeContent converts text to Unicode NFC so that visually identical
// content is stored, compared and searched identically.
func NormalizeContent(s string) string {
	return norm.NFC.String(s)
}

// ContainsFold reports whether substr occurs in s under Unicode case
// folding. An empty substr matches everything.
func ContainsFold(s, substr string) bool {
	if substr == "" {
		return true
	}
	folder := cases.Fold()
	return strings.Contains(folder.String(NormalizeContent(s)), folder.String(NormalizeContent(substr)))
}
