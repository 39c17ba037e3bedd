package enrich

import "strings"

type parsed struct {
	title    string
	summary  string
	category string
}

func (p parsed) complete() bool {
	return p.title != "" && p.summary != "" && p.category != ""
}

// parseResponse scans every line of the generator output for the three
// labeled fields. The first occurrence of each label wins; everything else
// is discarded.
func parseResponse(raw string) parsed {
	var p parsed
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case p.title == "" && strings.HasPrefix(line, "TITLE:"):
			p.title = strings.TrimSpace(strings.TrimPrefix(line, "TITLE:"))
		case p.summary == "" && strings.HasPrefix(line, "SUMMARY:"):
			p.summary = strings.TrimSpace(strings.TrimPrefix(line, "SUMMARY:"))
		case p.category == "" && strings.HasPrefix(line, "CATEGORY:"):
			p.category = strings.TrimSpace(strings.TrimPrefix(line, "CATEGORY:"))
		}
	}
	return p
}
