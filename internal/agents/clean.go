// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agents

import (
	"regexp"
	"strings"
)

var fenceLine = regexp.MustCompile("^\\s*```[\\w-]*\\s*$")

// Lines a model tends to wrap around the article itself.
var (
	leadingMeta = []string{
		"here is", "here's", "i have", "i've", "the rewritten", "note:",
		"please", "remember", "sure", "certainly",
	}
	trailingMeta = []string{
		"note:", "i have", "i've", "the rewritten", "let me know", "i hope", "feel free",
	}
)

// CleanArticle strips code fences and the meta-commentary lines a model adds
// before or after the article body.
func CleanArticle(raw string) string {
	var lines []string
	for _, l := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		if fenceLine.MatchString(l) {
			continue
		}
		lines = append(lines, l)
	}

	start, end := 0, len(lines)
	for start < end && skippable(lines[start], leadingMeta) {
		start++
	}
	for end > start && skippable(lines[end-1], trailingMeta) {
		end--
	}
	return strings.TrimSpace(strings.Join(lines[start:end], "\n"))
}

func skippable(line string, prefixes []string) bool {
	l := strings.ToLower(strings.TrimSpace(strings.Trim(line, "*_ \t")))
	if l == "" || l == "---" {
		return true
	}
	for _, p := range prefixes {
		if strings.HasPrefix(l, p) {
			return true
		}
	}
	return false
}
