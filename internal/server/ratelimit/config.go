package ratelimit

import (
	"strings"
	"time"

	"github.com/jonathan/cv-ranker/internal/config"
)

// Rule is the quota of one method and path pattern.
type Rule struct {
	Method string
	// Path is matched exactly, or as a prefix when it ends in "/".
	Path   string
	Limit  int
	Window time.Duration
	// Burst defaults to Limit when 0.
	Burst int
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	CleanupInterval time.Duration
	// Allowlist clients are never limited; Denylist clients always are.
	Allowlist map[string]bool
	Denylist  map[string]bool
	// Exempt paths bypass limiting for every method.
	Exempt map[string]bool
	Rules  []Rule
}

// NewConfig converts the rate_limit section of the application config.
func NewConfig(s config.RateLimitConfig) *Config {
	cfg := &Config{
		Enabled:         s.Enabled,
		DefaultLimit:    s.DefaultLimit,
		DefaultWindow:   s.DefaultWindow,
		CleanupInterval: s.CleanupInterval,
		Allowlist:       toSet(s.Allowlist),
		Denylist:        toSet(s.Denylist),
		Exempt:          toSet(s.Exempt),
	}
	for _, r := range s.Rules {
		cfg.Rules = append(cfg.Rules, Rule{
			Method: strings.ToUpper(r.Method),
			Path:   r.Path,
			Limit:  r.Limit,
			Window: r.Window,
			Burst:  r.Burst,
		})
	}
	return cfg
}

// DefaultConfig returns the limits used when the server is given none.
func DefaultConfig() *Config {
	return NewConfig(config.Default().RateLimit)
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			set[item] = true
		}
	}
	return set
}
