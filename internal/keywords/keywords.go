// Package keywords parses the space-separated branding keyword string a
// channel carries, keeping quoted phrases intact.
package keywords

import (
	"regexp"
	"strings"
)

var keywordPattern = regexp.MustCompile(`"[^"]+"|[^ ]+`)

// Parse splits a raw keyword string into individual keywords. Quoted
// phrases count as a single keyword; surrounding quotes are stripped.
func Parse(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	matches := keywordPattern.FindAllString(raw, -1)
	keywords := make([]string, 0, len(matches))
	for _, m := range matches {
		m = strings.Trim(m, `"`)
		if m == "" {
			continue
		}
		keywords = append(keywords, m)
	}
	return keywords
}
