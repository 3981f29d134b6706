package linemap

import (
	"strings"
	"unicode"
)

// Normalize reduces lyric or span text to its comparable form: Unicode
// lowercase, letters/digits/marks only, single spaces. Apostrophes and
// hyphens are dropped rather than replaced so that "don't" and "dont"
// compare equal, and punctuation-only tokens vanish entirely.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := true // suppress leading space
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r):
			b.WriteRune(r)
			space = false
		case unicode.IsSpace(r):
			if !space {
				b.WriteByte(' ')
				space = true
			}
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// wordCount returns the number of space-separated tokens in normalized
// text. Zero for empty input.
func wordCount(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, " ") + 1
}
