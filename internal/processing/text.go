package processing

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	stripPolicy = bluemonday.StrictPolicy()
	whitespace  = regexp.MustCompile(`\s+`)
)

// CleanHTML strips markup and entities from feed text. Feeds routinely embed
// HTML inside titles and descriptions, so everything that reaches enrichment
// goes through here first.
func CleanHTML(input string) string {
	if input == "" {
		return ""
	}
	text := stripPolicy.Sanitize(input)
	text = html.UnescapeString(text)
	text = whitespace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Truncate cuts text to at most max runes, appending an ellipsis when it had
// to cut. Used to keep enrichment prompts bounded.
func Truncate(input string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(input)
	if len(runes) <= max {
		return input
	}
	return strings.TrimSpace(string(runes[:max])) + "..."
}
