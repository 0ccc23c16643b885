package domain

import (
	"strings"
	"unicode"
)

// NormalizeAddress produces the dedup key for an address: lower-cased,
// punctuation replaced by spaces, whitespace collapsed and trimmed.
// "12 Oak St." and "12  oak st" normalize to the same key.
func NormalizeAddress(address string) string {
	var b strings.Builder
	b.Grow(len(address))

	pendingSpace := false
	for _, r := range address {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(unicode.ToLower(r))
		default:
			pendingSpace = true
		}
	}
	return b.String()
}
