// Package ratelimit provides per-client request quotas on top of golang.org/x/time/rate.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// staleAfter is how long an unused bucket survives cleanup.
const staleAfter = time.Hour

type bucket struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// Info describes the quota state after one request.
type Info struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

// Limiter tracks one token bucket per client and rule.
type Limiter struct {
	config *Config

	mu      sync.Mutex
	buckets map[string]*bucket // client + rule -> bucket

	cleanupTicker *time.Ticker
	cleanupStop   chan struct{}
	stopOnce      sync.Once
}

// NewLimiter creates a limiter. A nil config uses DefaultConfig. When enabled
// with a CleanupInterval, a goroutine evicts idle buckets until Stop.
func NewLimiter(cfg *Config) *Limiter {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	l := &Limiter{
		config:  cfg,
		buckets: make(map[string]*bucket),
	}
	if cfg.Enabled && cfg.CleanupInterval > 0 {
		l.cleanupTicker = time.NewTicker(cfg.CleanupInterval)
		l.cleanupStop = make(chan struct{})
		go l.cleanup()
	}
	return l
}

// Allow takes one token from the bucket of clientID for the rule covering
// method and path. Requests under the same prefix rule share a bucket.
func (l *Limiter) Allow(clientID, method, path string) (bool, Info) {
	cfg := l.config
	if !cfg.Enabled || cfg.Allowlist[clientID] || cfg.Exempt[path] {
		return true, Info{Allowed: true}
	}
	if cfg.Denylist[clientID] {
		return false, Info{Allowed: false}
	}

	rule, ok := MatchRule(method, path, cfg.Rules)
	key := defaultRuleKey
	if ok {
		key = rule.key()
	} else {
		rule = Rule{Limit: cfg.DefaultLimit, Window: cfg.DefaultWindow}
	}
	if rule.Limit <= 0 || rule.Window <= 0 {
		return true, Info{Allowed: true}
	}

	now := time.Now()
	lim := l.limiterFor(clientID+"|"+key, rule, now)

	allowed := lim.AllowN(now, 1)
	tokens := lim.TokensAt(now)
	perSecond := float64(lim.Limit())

	info := Info{
		Allowed:   allowed,
		Limit:     rule.Limit,
		Remaining: max(0, int(tokens)),
		ResetTime: now,
	}
	if missing := float64(lim.Burst()) - tokens; missing > 0 {
		info.ResetTime = now.Add(time.Duration(missing / perSecond * float64(time.Second)))
	}
	if !allowed {
		info.RetryAfter = time.Duration((1 - tokens) / perSecond * float64(time.Second))
	}
	return allowed, info
}

func (l *Limiter) limiterFor(key string, rule Rule, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.buckets[key]; ok {
		b.lastAccess = now
		return b.limiter
	}

	burst := rule.Burst
	if burst <= 0 {
		burst = rule.Limit
	}
	refill := rate.Limit(float64(rule.Limit) / rule.Window.Seconds())
	b := &bucket{limiter: rate.NewLimiter(refill, burst), lastAccess: now}
	l.buckets[key] = b
	return b.limiter
}

func (l *Limiter) cleanup() {
	for {
		select {
		case <-l.cleanupTicker.C:
			l.evictIdle(time.Now().Add(-staleAfter))
		case <-l.cleanupStop:
			return
		}
	}
}

// evictIdle drops buckets last used before cutoff.
func (l *Limiter) evictIdle(cutoff time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		if b.lastAccess.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() {
		if l.cleanupTicker != nil {
			l.cleanupTicker.Stop()
			close(l.cleanupStop)
		}
	})
}
