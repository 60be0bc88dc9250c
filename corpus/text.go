package corpus

import (
	"strings"
	"unicode/utf8"
)

// MaxTextLength bounds every text field in runes, ellipsis included.
const MaxTextLength = 8000

const ellipsis = "..."

// Truncate trims s and caps it at max runes. Truncated text ends with "...".
func Truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	if max <= len(ellipsis) {
		return ellipsis[:max]
	}
	runes := []rune(s)
	return strings.TrimRightFunc(string(runes[:max-len(ellipsis)]), isSpace) + ellipsis
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
