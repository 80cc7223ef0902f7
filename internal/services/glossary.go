package services

import (
	"fmt"
	"strings"
)

// GlossaryService answers keyword lookups against the static rules
// reference. The document never changes at runtime, so lookups are pure
// string scans and safe for concurrent use.
type GlossaryService struct {
	document string
}

func NewGlossaryService() *GlossaryService {
	return &GlossaryService{document: keywordReference}
}

// Lookup returns the reference entry whose heading line contains keyword,
// matched case-insensitively in document order. An entry runs from its
// heading line (leading "*" bullet) up to, but not including, the next
// heading line. Only the first matching entry is returned. An empty keyword
// returns the whole document.
func (g *GlossaryService) Lookup(keyword string) string {
	if keyword == "" {
		return g.document
	}

	needle := strings.ToLower(keyword)
	lines := strings.Split(g.document, "\n")

	for i, line := range lines {
		if !isHeadingLine(line) {
			continue
		}
		if !strings.Contains(strings.ToLower(line), needle) {
			continue
		}

		entry := []string{line}
		for j := i + 1; j < len(lines) && !isHeadingLine(lines[j]); j++ {
			entry = append(entry, lines[j])
		}
		return strings.Join(entry, "\n")
	}

	return fmt.Sprintf("Keyword %q not found in the reference.", keyword)
}

func isHeadingLine(line string) bool {
	return strings.HasPrefix(line, "*")
}
