// Package sanitize strips markup from user supplied free text before it is stored.
package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// Text removes every HTML element, unescapes entities and trims the result to max runes (0 = unbounded).
func Text(raw string, max int) string {
	clean := html.UnescapeString(strict.Sanitize(raw))
	clean = strings.TrimSpace(clean)
	if max > 0 {
		if runes := []rune(clean); len(runes) > max {
			clean = strings.TrimSpace(string(runes[:max]))
		}
	}
	return clean
}
