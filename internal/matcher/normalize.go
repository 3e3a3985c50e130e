package matcher

import (
	"regexp"
	"strings"
)

// \w would be ASCII-only here; letters and digits from any script survive.
var nonWordRegex = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)

// Normalize canonicalizes free text for comparison: lowercase, punctuation
// stripped. Whitespace runs survive untouched. Every comparison in the
// matching pipeline goes through here rather than touching raw strings, so
// case and punctuation drift between catalog metadata and filenames cancels
// out. Pure and total; safe on empty and non-ASCII input.
func Normalize(text string) string {
	return nonWordRegex.ReplaceAllString(strings.ToLower(text), "")
}

// NormalizeList normalizes each element and joins with a single space,
// matching how performer lists are compared against filename stems.
func NormalizeList(items []string) string {
	normalized := make([]string, 0, len(items))
	for _, item := range items {
		normalized = append(normalized, Normalize(item))
	}
	return strings.Join(normalized, " ")
}
