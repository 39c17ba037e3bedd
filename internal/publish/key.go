package publish

import (
	"regexp"
	"strings"
)

var separatorRuns = regexp.MustCompile(`[\s_/]+`)

// CategoryKey normalizes a category label into the output document key.
// "World News", "world_news" and "World/News" all collapse to "world_news",
// so near-identical labels cannot fan out into duplicate output files.
func CategoryKey(label string) string {
	key := strings.ToLower(strings.TrimSpace(label))
	key = separatorRuns.ReplaceAllString(key, "_")
	return strings.Trim(key, "_")
}
