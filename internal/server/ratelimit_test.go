package server

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func newTestLimiter(limit int, interval time.Duration) (*Limiter, *time.Time) {
	l := NewLimiter(limit, interval)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestLimiter_Allow(t *testing.T) {
	l, _ := newTestLimiter(3, time.Minute)
	for i := 0; i < 3; i++ {
		if !l.Allow("a") {
			t.Fatalf("request %d rejected", i+1)
		}
	}
	if l.Allow("a") {
		t.Error("fourth request allowed")
	}
	if !l.Allow("b") {
		t.Error("other client throttled")
	}
}

func TestLimiter_WindowSlides(t *testing.T) {
	l, now := newTestLimiter(1, time.Minute)
	l.Allow("a")
	if got := l.RetryAfter("a"); got != time.Minute {
		t.Errorf("RetryAfter = %v, want 1m", got)
	}
	*now = now.Add(61 * time.Second)
	if !l.Allow("a") {
		t.Error("request after window rejected")
	}
}

func TestLimiter_Disabled(t *testing.T) {
	l := NewLimiter(-1, time.Minute)
	for i := 0; i < 100; i++ {
		if !l.Allow("a") {
			t.Fatal("disabled limiter rejected a request")
		}
	}
}

func TestServer_LoginRateLimited(t *testing.T) {
	e := newTestServer(t, Config{Secret: "k", LoginLimit: 2})
	for i := 0; i < 2; i++ {
		resp, _ := e.do(t, "POST", "/api/login", "", gin.H{"password": "x"})
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("attempt %d status = %d", i+1, resp.StatusCode)
		}
	}
	resp, _ := e.do(t, "POST", "/api/login", "", gin.H{"password": "x"})
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Error("Retry-After missing")
	}
}
