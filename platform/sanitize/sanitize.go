// Package sanitize provides text sanitization utilities to prevent XSS attacks.
package sanitize

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// htmlTagRegex matches HTML tags
	htmlTagRegex = regexp.MustCompile(`<[^>]*>`)
	// blankRunRegex matches three or more consecutive newlines
	blankRunRegex = regexp.MustCompile(`\n{3,}`)
)

// MaxNotesLength bounds the free-text scratchpad on a lead, in runes.
const MaxNotesLength = 20000

// StripHTML removes all HTML tags from a string, making it safe for text-only display.
func StripHTML(s string) string {
	result := htmlTagRegex.ReplaceAllString(s, "")
	result = strings.ReplaceAll(result, "&lt;", "<")
	result = strings.ReplaceAll(result, "&gt;", ">")
	result = strings.ReplaceAll(result, "&amp;", "&")
	result = strings.ReplaceAll(result, "&quot;", "\"")
	result = strings.ReplaceAll(result, "&#39;", "'")
	// Re-strip after entity decode to catch encoded tags
	result = htmlTagRegex.ReplaceAllString(result, "")
	return strings.TrimSpace(result)
}

// Text sanitizes a single-line user field such as a valuation note or a
// follow-up reason.
func Text(s string) string {
	return strings.Join(strings.Fields(StripHTML(s)), " ")
}

// Notes sanitizes multi-line free text. Line breaks survive, runs of blank
// lines collapse to one, and the result is truncated to MaxNotesLength runes.
func Notes(s string) string {
	result := strings.ReplaceAll(StripHTML(s), "\r\n", "\n")
	result = blankRunRegex.ReplaceAllString(result, "\n\n")
	if utf8.RuneCountInString(result) > MaxNotesLength {
		result = string([]rune(result)[:MaxNotesLength])
	}
	return result
}

// TextPtr is a helper for optional string pointers
func TextPtr(s *string) *string {
	if s == nil {
		return nil
	}
	result := Text(*s)
	return &result
}
