// Package sanitize cleans user-submitted free text before it is stored.
// Secrets are shown as plain text on the public board, so every tag is
// stripped here and templ escapes whatever remains at render time.
package sanitize

import (
	"html"
	"strings"
	"sync"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

var (
	policy     *bluemonday.Policy
	policyOnce sync.Once
)

// getPolicy returns the shared strict policy, initializing it on first call.
func getPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		policy = bluemonday.StrictPolicy()
	})
	return policy
}

// Text strips all HTML from input, drops control characters (newlines and
// tabs excepted) and trims surrounding whitespace. The result is unescaped
// plain text; callers must not render it as raw HTML.
func Text(input string) string {
	if input == "" {
		return ""
	}

	// StrictPolicy entity-encodes what it keeps; undo that so the stored
	// value is what the user typed minus markup.
	stripped := html.UnescapeString(getPolicy().Sanitize(input))

	cleaned := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, stripped)

	return strings.TrimSpace(cleaned)
}
