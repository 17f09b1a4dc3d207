package ratelimit

import "strings"

// defaultRuleKey names the bucket shared by requests no rule covers.
const defaultRuleKey = "*"

// healthRule keeps the liveness endpoint unlimited whatever the config says.
var healthRule = Rule{Method: "GET", Path: "/health"}

func (r Rule) matches(method, path string) bool {
	if r.Method != method {
		return false
	}
	if strings.HasSuffix(r.Path, "/") {
		return strings.HasPrefix(path, r.Path)
	}
	return r.Path == path
}

func (r Rule) key() string {
	return r.Method + " " + r.Path
}

// MatchRule returns the most specific rule covering method and path. An exact
// rule beats any prefix rule; among prefix rules the longest wins.
// GET /health always matches an unlimited rule.
func MatchRule(method, path string, rules []Rule) (Rule, bool) {
	if healthRule.matches(method, path) {
		return healthRule, true
	}
	var (
		best  Rule
		found bool
	)
	for _, r := range rules {
		if !r.matches(method, path) {
			continue
		}
		if r.Path == path {
			return r, true
		}
		if !found || len(r.Path) > len(best.Path) {
			best, found = r, true
		}
	}
	return best, found
}
