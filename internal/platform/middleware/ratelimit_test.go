package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func newLimitedHandler(l Limiter, limit int) echo.HandlerFunc {
	return RateLimit(l, limit, zerolog.Nop())(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
}

func doRequest(t *testing.T, h echo.HandlerFunc, remoteAddr string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/doctors", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	return rec, h(e.NewContext(req, rec))
}

func TestRateLimit_RequestsWithinLimit(t *testing.T) {
	h := newLimitedHandler(NewMemoryLimiter(RateLimitConfig{RequestsPerSecond: 10, BurstSize: 5}), 10)

	for i := 0; i < 5; i++ {
		rec, err := doRequest(t, h, "10.0.0.1:1234")
		if err != nil {
			t.Fatalf("request %d: expected no error, got %v", i+1, err)
		}
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
		if got := rec.Header().Get("X-RateLimit-Limit"); got != "10" {
			t.Errorf("request %d: expected X-RateLimit-Limit '10', got %q", i+1, got)
		}
	}
}

func TestRateLimit_ExceedsLimit(t *testing.T) {
	h := newLimitedHandler(NewMemoryLimiter(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 2}), 1)

	for i := 0; i < 2; i++ {
		if _, err := doRequest(t, h, "10.0.0.1:1234"); err != nil {
			t.Fatalf("request %d: expected no error, got %v", i+1, err)
		}
	}

	rec, err := doRequest(t, h, "10.0.0.1:1234")
	if err == nil {
		t.Fatal("expected error for rate-limited request")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", httpErr.Code)
	}

	retry, convErr := strconv.Atoi(rec.Header().Get("Retry-After"))
	if convErr != nil || retry < 1 {
		t.Errorf("expected Retry-After >= 1, got %q", rec.Header().Get("Retry-After"))
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("expected X-RateLimit-Remaining '0', got %q", rec.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestRateLimit_PerClientIsolation(t *testing.T) {
	h := newLimitedHandler(NewMemoryLimiter(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1}), 1)

	if _, err := doRequest(t, h, "10.0.0.1:1234"); err != nil {
		t.Fatalf("client a first request: %v", err)
	}
	if _, err := doRequest(t, h, "10.0.0.1:1234"); err == nil {
		t.Fatal("client a second request: expected rate limit error")
	}
	if _, err := doRequest(t, h, "10.0.0.2:1234"); err != nil {
		t.Fatalf("client b first request: %v", err)
	}
}

func TestMemoryLimiter_Refills(t *testing.T) {
	l := NewMemoryLimiter(RateLimitConfig{RequestsPerSecond: 2, BurstSize: 1})
	now := time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	if ok, _, _ := l.Allow(ctx, "k"); !ok {
		t.Fatal("expected first request allowed")
	}
	ok, wait, _ := l.Allow(ctx, "k")
	if ok {
		t.Fatal("expected second request denied")
	}
	if wait != 500*time.Millisecond {
		t.Errorf("expected 500ms wait, got %v", wait)
	}

	now = now.Add(500 * time.Millisecond)
	if ok, _, _ := l.Allow(ctx, "k"); !ok {
		t.Error("expected request allowed after refill")
	}
}

func TestTokenBucket_ZeroRate(t *testing.T) {
	now := time.Now()
	b := &tokenBucket{tokens: 1, maxTokens: 1, lastRefill: now}
	if ok, _ := b.take(now); !ok {
		t.Fatal("expected first take to succeed")
	}
	ok, wait := b.take(now)
	if ok {
		t.Fatal("expected second take to fail")
	}
	if wait != time.Second {
		t.Errorf("expected 1s wait for zero rate, got %v", wait)
	}
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (bool, time.Duration, error) {
	return false, 0, errors.New("redis: connection refused")
}

func TestRateLimit_FailsOpen(t *testing.T) {
	h := newLimitedHandler(failingLimiter{}, 10)
	rec, err := doRequest(t, h, "10.0.0.1:1234")
	if err != nil {
		t.Fatalf("expected request to pass when limiter fails, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestRedisLimiter_WindowKey(t *testing.T) {
	l := NewRedisLimiter(nil, 5, time.Second)
	at := time.Unix(1700000000, 250*int64(time.Millisecond))
	if got := l.windowKey("10.0.0.1", at); got != "clinic:ratelimit:10.0.0.1:1700000000" {
		t.Errorf("unexpected key %q", got)
	}
	if l.windowKey("10.0.0.1", at) == l.windowKey("10.0.0.1", at.Add(time.Second)) {
		t.Error("expected a new key for the next window")
	}
}
