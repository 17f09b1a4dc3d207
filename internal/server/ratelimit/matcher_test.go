package ratelimit

import (
	"testing"
	"time"

	"github.com/jonathan/cv-ranker/internal/config"
)

func TestMatchRule(t *testing.T) {
	rules := []Rule{
		{Method: "POST", Path: "/companies/", Limit: 30},
		{Method: "POST", Path: "/companies/acme/", Limit: 5},
		{Method: "POST", Path: "/search", Limit: 120},
		{Method: "PUT", Path: "/companies/", Limit: 300},
		{Method: "GET", Path: "/health", Limit: 1},
	}

	tests := []struct {
		name      string
		method    string
		path      string
		wantFound bool
		wantLimit int
	}{
		{name: "exact", method: "POST", path: "/search", wantFound: true, wantLimit: 120},
		{name: "exact does not prefix", method: "POST", path: "/search/stream"},
		{name: "prefix", method: "POST", path: "/companies/initech/jobs/dev/embed", wantFound: true, wantLimit: 30},
		{name: "longest prefix wins", method: "POST", path: "/companies/acme/jobs/dev/cvs", wantFound: true, wantLimit: 5},
		{name: "method matters", method: "PUT", path: "/companies/acme/jobs/dev/jd", wantFound: true, wantLimit: 300},
		{name: "no rule", method: "GET", path: "/companies/acme/jobs/dev/status"},
		{name: "health is unlimited", method: "GET", path: "/health", wantFound: true, wantLimit: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := MatchRule(tt.method, tt.path, rules)
			if found != tt.wantFound {
				t.Fatalf("found = %v, want %v", found, tt.wantFound)
			}
			if found && got.Limit != tt.wantLimit {
				t.Errorf("limit = %d, want %d", got.Limit, tt.wantLimit)
			}
		})
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig(config.RateLimitConfig{
		Enabled:       true,
		DefaultLimit:  10,
		DefaultWindow: time.Minute,
		Allowlist:     []string{" 10.0.0.1 ", ""},
		Denylist:      []string{"10.0.0.2"},
		Exempt:        []string{"/health"},
		Rules:         []config.RateLimitRule{{Method: "post", Path: "/search", Limit: 5, Window: time.Second}},
	})

	if !cfg.Allowlist["10.0.0.1"] || len(cfg.Allowlist) != 1 {
		t.Errorf("unexpected allowlist %v", cfg.Allowlist)
	}
	if !cfg.Denylist["10.0.0.2"] || !cfg.Exempt["/health"] {
		t.Error("denylist and exempt paths should be converted to sets")
	}
	if len(cfg.Rules) != 1 || cfg.Rules[0].Method != "POST" {
		t.Errorf("rule methods should be upper-cased, got %+v", cfg.Rules)
	}
}
