package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestLimiter(t *testing.T, perMinute int) (*Limiter, *time.Time) {
	t.Helper()
	rl := NewLimiter(Config{RequestsPerMinute: perMinute})
	t.Cleanup(rl.Stop)
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	return rl, &now
}

func TestLimiterAllow(t *testing.T) {
	rl, now := newTestLimiter(t, 2)

	if !rl.Allow("u1") || !rl.Allow("u1") {
		t.Fatalf("first two requests should pass")
	}
	if rl.Allow("u1") {
		t.Fatalf("third request in the window should be limited")
	}
	if !rl.Allow("u2") {
		t.Fatalf("senders are limited independently")
	}

	*now = now.Add(time.Minute)
	if !rl.Allow("u1") {
		t.Fatalf("a new window should reset the count")
	}
}

func TestLimiterSteadyTrafficStillLimited(t *testing.T) {
	rl, now := newTestLimiter(t, 3)
	allowed := 0
	for range 10 {
		if rl.Allow("u1") {
			allowed++
		}
		*now = now.Add(5 * time.Second)
	}
	if allowed != 3 {
		t.Fatalf("expected 3 allowed within one minute, got %d", allowed)
	}
}

func TestLimiterCleanup(t *testing.T) {
	rl, now := newTestLimiter(t, 1)
	rl.Allow("u1")
	*now = now.Add(11 * time.Minute)
	rl.Allow("u2")
	rl.cleanupStaleEntries()
	if got := rl.ActiveClients(); got != 1 {
		t.Fatalf("expected stale sender removed, active=%d", got)
	}
}

func TestLimiterMiddleware(t *testing.T) {
	rl, _ := newTestLimiter(t, 1)
	h := rl.Middleware(func(r *http.Request) string { return r.Header.Get("X-Sender") }, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }),
	)

	codes := make([]int, 0, 2)
	for range 2 {
		req := httptest.NewRequest(http.MethodPost, "/api/messages", nil)
		req.Header.Set("X-Sender", "u1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusNoContent || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status codes: %v", codes)
	}
}
