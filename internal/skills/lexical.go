package skills

import (
	"regexp"
	"strings"
	"sync"
)

// termPatterns caches boundary patterns per lowercased term.
var termPatterns sync.Map // string -> *regexp.Regexp

// termPattern matches term as a whole token. Word boundaries are defined on
// alphanumerics so that terms such as "c++", "node.js" and "ci/cd" work.
func termPattern(term string) *regexp.Regexp {
	if re, ok := termPatterns.Load(term); ok {
		return re.(*regexp.Regexp)
	}
	re := regexp.MustCompile(`(^|[^a-z0-9])` + regexp.QuoteMeta(term) + `($|[^a-z0-9])`)
	actual, _ := termPatterns.LoadOrStore(term, re)
	return actual.(*regexp.Regexp)
}

// containsTerm reports whether lowerText contains the lowercased term on
// token boundaries. Both arguments must already be lowercase.
func containsTerm(lowerText, term string) bool {
	if term == "" || lowerText == "" {
		return false
	}
	// Cheap reject before the regex.
	if !strings.Contains(lowerText, term) {
		return false
	}
	return termPattern(term).MatchString(lowerText)
}
