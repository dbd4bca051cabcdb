package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type fakeCounter struct {
	counts map[string]int64
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{counts: make(map[string]int64)}
}

func (f *fakeCounter) IncrWithTTL(_ context.Context, key string, _ time.Duration) (int64, error) {
	f.counts[key]++
	return f.counts[key], nil
}

func TestRateLimitBlocksIPAfterLimit(t *testing.T) {
	store := newFakeCounter()
	policy := NewRateLimitPolicy("activation", time.Minute, 2, 0)
	calls := 0
	handler := RateLimit(policy, store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/public/v1/activations", strings.NewReader(`{"code":"X"}`))
		req.RemoteAddr = "198.51.100.7:4431"
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)

		if i < 2 && resp.Code != http.StatusOK {
			t.Fatalf("attempt %d: expected 200 got %d", i, resp.Code)
		}
		if i == 2 && resp.Code != http.StatusTooManyRequests {
			t.Fatalf("attempt %d: expected 429 got %d", i, resp.Code)
		}
	}

	if calls != 2 {
		t.Fatalf("expected 2 handler invocations, got %d", calls)
	}
}

func TestRateLimitBlocksCodeAcrossIPs(t *testing.T) {
	store := newFakeCounter()
	policy := NewRateLimitPolicy("activation", time.Minute, 0, 1)
	calls := 0
	handler := RateLimit(policy, store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))

	body := `{"code":"AB12C-DE34F-GH56I-JK78L-MN90P","device_id":"d1"}`

	first := httptest.NewRequest(http.MethodPost, "/api/public/v1/activations", strings.NewReader(body))
	first.RemoteAddr = "198.51.100.7:1000"
	firstResp := httptest.NewRecorder()
	handler.ServeHTTP(firstResp, first)
	if firstResp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", firstResp.Code)
	}

	second := httptest.NewRequest(http.MethodPost, "/api/public/v1/activations", strings.NewReader(body))
	second.RemoteAddr = "203.0.113.9:1000"
	secondResp := httptest.NewRecorder()
	handler.ServeHTTP(secondResp, second)

	if secondResp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", secondResp.Code)
	}
	if calls != 1 {
		t.Fatalf("expected 1 handler invocation, got %d", calls)
	}
}

func TestRateLimitDisabledPolicyPassesThrough(t *testing.T) {
	policy := NewRateLimitPolicy("activation", 0, 0, 0)
	calls := 0
	handler := RateLimit(policy, newFakeCounter(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/public/v1/activations", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if calls != 1 {
		t.Fatalf("expected pass-through")
	}
}

func TestClientIPPrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:9999"
	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.2")

	if got := clientIP(req); got != "203.0.113.5" {
		t.Fatalf("unexpected client ip: %s", got)
	}
}
