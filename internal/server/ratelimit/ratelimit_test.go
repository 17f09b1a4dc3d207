package ratelimit

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestLimiter(t *testing.T, cfg *Config) *Limiter {
	t.Helper()
	l := NewLimiter(cfg)
	t.Cleanup(l.Stop)
	return l
}

func TestLimiter_DefaultQuota(t *testing.T) {
	l := newTestLimiter(t, &Config{Enabled: true, DefaultLimit: 3, DefaultWindow: time.Minute})

	for i := 0; i < 3; i++ {
		allowed, info := l.Allow("10.0.0.1", "GET", "/companies/acme/jobs/dev/status")
		if !allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
		if info.Limit != 3 {
			t.Errorf("expected limit 3, got %d", info.Limit)
		}
		if info.Remaining != 2-i {
			t.Errorf("request %d: expected %d remaining, got %d", i+1, 2-i, info.Remaining)
		}
	}

	allowed, info := l.Allow("10.0.0.1", "GET", "/companies/acme/jobs/dev/status")
	if allowed {
		t.Fatal("fourth request should be rejected")
	}
	if info.RetryAfter <= 0 {
		t.Error("rejected request should carry a retry delay")
	}
	if !info.ResetTime.After(time.Now()) {
		t.Error("reset time should be in the future")
	}
}

func TestLimiter_DefaultBucketIsSharedAcrossPaths(t *testing.T) {
	l := newTestLimiter(t, &Config{Enabled: true, DefaultLimit: 2, DefaultWindow: time.Minute})

	l.Allow("10.0.0.1", "GET", "/companies/a/jobs/x/status")
	l.Allow("10.0.0.1", "GET", "/companies/b/jobs/y/status")
	if allowed, _ := l.Allow("10.0.0.1", "GET", "/companies/c/jobs/z/status"); allowed {
		t.Error("default quota should span every unmatched path")
	}
	if allowed, _ := l.Allow("10.0.0.2", "GET", "/companies/c/jobs/z/status"); !allowed {
		t.Error("another client has its own bucket")
	}
}

func TestLimiter_RuleQuota(t *testing.T) {
	l := newTestLimiter(t, &Config{
		Enabled:       true,
		DefaultLimit:  100,
		DefaultWindow: time.Minute,
		Rules: []Rule{
			{Method: "POST", Path: "/companies/", Limit: 1, Window: time.Hour},
		},
	})

	if allowed, _ := l.Allow("c", "POST", "/companies/acme/jobs/dev/embed"); !allowed {
		t.Fatal("first embed should be allowed")
	}
	if allowed, _ := l.Allow("c", "POST", "/companies/acme/jobs/ops/embed"); allowed {
		t.Error("embeds of other jobs share the prefix rule bucket")
	}
	if allowed, info := l.Allow("c", "PUT", "/companies/acme/jobs/dev/jd"); !allowed || info.Limit != 100 {
		t.Errorf("PUT is not covered by the POST rule, got allowed=%v limit=%d", allowed, info.Limit)
	}
}

func TestLimiter_Burst(t *testing.T) {
	l := newTestLimiter(t, &Config{
		Enabled: true,
		Rules:   []Rule{{Method: "POST", Path: "/search", Limit: 60, Window: time.Minute, Burst: 2}},
	})

	for i := 0; i < 2; i++ {
		if allowed, _ := l.Allow("c", "POST", "/search"); !allowed {
			t.Fatalf("burst request %d should be allowed", i+1)
		}
	}
	if allowed, _ := l.Allow("c", "POST", "/search"); allowed {
		t.Error("request beyond burst should be rejected")
	}
}

func TestLimiter_ClientLists(t *testing.T) {
	l := newTestLimiter(t, &Config{
		Enabled:       true,
		DefaultLimit:  1,
		DefaultWindow: time.Minute,
		Allowlist:     map[string]bool{"10.0.0.9": true},
		Denylist:      map[string]bool{"10.0.0.66": true},
	})

	for i := 0; i < 5; i++ {
		if allowed, _ := l.Allow("10.0.0.9", "POST", "/search"); !allowed {
			t.Fatal("allowlisted client should never be limited")
		}
	}
	if allowed, _ := l.Allow("10.0.0.66", "POST", "/search"); allowed {
		t.Error("denylisted client should always be rejected")
	}
}

func TestLimiter_ExemptAndDisabled(t *testing.T) {
	l := newTestLimiter(t, &Config{
		Enabled:       true,
		DefaultLimit:  1,
		DefaultWindow: time.Minute,
		Exempt:        map[string]bool{"/health": true},
	})
	for i := 0; i < 3; i++ {
		if allowed, info := l.Allow("c", "GET", "/health"); !allowed || info.Limit != 0 {
			t.Fatal("exempt path should be unlimited")
		}
	}

	off := newTestLimiter(t, &Config{Enabled: false, DefaultLimit: 1, DefaultWindow: time.Minute})
	for i := 0; i < 3; i++ {
		if allowed, _ := off.Allow("c", "POST", "/search"); !allowed {
			t.Fatal("disabled limiter should allow everything")
		}
	}
}

func TestLimiter_HealthUnlimitedWithoutExempt(t *testing.T) {
	l := newTestLimiter(t, &Config{Enabled: true, DefaultLimit: 1, DefaultWindow: time.Hour})
	for i := 0; i < 5; i++ {
		if allowed, _ := l.Allow("c", "GET", "/health"); !allowed {
			t.Fatalf("health request %d was limited", i+1)
		}
	}
	if allowed, _ := l.Allow("c", "GET", "/status"); !allowed {
		t.Fatal("first non-health request should pass")
	}
	if allowed, _ := l.Allow("c", "GET", "/status"); allowed {
		t.Fatal("health requests should not have drawn from the default bucket")
	}
}

func TestLimiter_Concurrent(t *testing.T) {
	l := newTestLimiter(t, &Config{Enabled: true, DefaultLimit: 50, DefaultWindow: time.Hour})

	var (
		wg      sync.WaitGroup
		allowed atomic.Int64
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := l.Allow("c", "POST", "/search"); ok {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := allowed.Load(); got != 50 {
		t.Errorf("expected exactly 50 allowed requests, got %d", got)
	}
}

func TestLimiter_EvictIdle(t *testing.T) {
	l := newTestLimiter(t, &Config{Enabled: true, DefaultLimit: 10, DefaultWindow: time.Minute})
	for i := 0; i < 3; i++ {
		l.Allow(fmt.Sprintf("10.0.0.%d", i), "GET", "/x")
	}

	l.evictIdle(time.Now().Add(-time.Minute))
	if n := len(l.buckets); n != 3 {
		t.Errorf("recent buckets should survive, got %d", n)
	}
	l.evictIdle(time.Now().Add(time.Minute))
	if n := len(l.buckets); n != 0 {
		t.Errorf("idle buckets should be evicted, got %d", n)
	}
}

func TestLimiter_StopTwice(t *testing.T) {
	l := NewLimiter(&Config{Enabled: true, DefaultLimit: 1, DefaultWindow: time.Minute, CleanupInterval: time.Second})
	l.Stop()
	l.Stop()
}

func TestNewLimiter_NilConfigUsesDefaults(t *testing.T) {
	l := newTestLimiter(t, nil)
	if !l.config.Enabled {
		t.Fatal("default config should be enabled")
	}
	if allowed, _ := l.Allow("c", "GET", "/health"); !allowed {
		t.Error("health should be exempt by default")
	}
	_, info := l.Allow("c", "POST", "/search")
	if info.Limit != 120 {
		t.Errorf("expected the search rule limit of 120, got %d", info.Limit)
	}
}
