package stringsutil

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var stripPolicy = bluemonday.StrictPolicy()

func RemoveEmptyStrings(slice []string) []string {
	var result []string

	for _, s := range slice {
		if s != "" {
			result = append(result, s)
		}
	}

	return result
}

// CollapseWhitespace trims the string and folds runs of whitespace into
// single spaces.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// StripMarkup removes every HTML tag and entity, returning plain text.
func StripMarkup(s string) string {
	return CollapseWhitespace(html.UnescapeString(stripPolicy.Sanitize(s)))
}

// Summarize truncates plain text to at most maxLen runes, preferring a
// sentence boundary in the second half of the window and falling back to the
// last word boundary. The input is expected to be markup-free.
func Summarize(s string, maxLen int) string {
	s = CollapseWhitespace(s)
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}

	// Byte offsets from here on; the midpoint must be in bytes too, or
	// multibyte text skews the comparison.
	cut := string(runes[:maxLen])
	if idx := strings.LastIndex(cut, ". "); idx > len(cut)/2 {
		return cut[:idx+1]
	}
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
		return cut[:idx] + "..."
	}
	return cut + "..."
}
