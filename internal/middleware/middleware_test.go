package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimiterAllowsBurstThenThrottles(t *testing.T) {
	rl := NewRateLimiter(1, 2, nil)
	h := rl.Handler(okHandler())

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		h.ServeHTTP(rec, req)
		statuses = append(statuses, rec.Code)
	}
	if statuses[0] != http.StatusOK || statuses[1] != http.StatusOK {
		t.Fatalf("burst requests got %v", statuses[:2])
	}
	if statuses[2] != http.StatusTooManyRequests {
		t.Fatalf("third request status = %d, want 429", statuses[2])
	}
}

func TestRateLimiterIsolatesClients(t *testing.T) {
	rl := NewRateLimiter(1, 1, nil)
	h := rl.Handler(okHandler())

	for i, addr := range []string{"10.0.0.1:1", "10.0.0.2:1", "10.0.0.3:1"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("client %d status = %d, want 200", i, rec.Code)
		}
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(1, 1, nil)
	rl.getLimiter("10.0.0.1")
	rl.getLimiter("10.0.0.2")

	rl.Cleanup(0)
	time.Sleep(time.Millisecond)
	rl.Cleanup(time.Nanosecond)

	rl.mu.Lock()
	n := len(rl.limiters)
	rl.mu.Unlock()
	if n != 0 {
		t.Fatalf("kept %d limiters after cleanup, want 0", n)
	}
}

func TestCORSPreflight(t *testing.T) {
	m := NewCORSMiddleware([]string{"*"})
	h := m.Handler(okHandler())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/events", nil)
	req.Header.Set("Origin", "https://board.example.com")
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://board.example.com" {
		t.Fatalf("allow-origin = %q", got)
	}
}

func TestCORSOriginMatching(t *testing.T) {
	m := NewCORSMiddleware([]string{"trusted.example.com", "https://board.example.net"})

	cases := []struct {
		origin string
		want   bool
	}{
		{"https://trusted.example.com", true},
		{"http://trusted.example.com", true},
		{"https://sub.trusted.example.com", true},
		{"https://board.example.net", true},
		// A registered domain embedded in a longer host must not match.
		{"https://evil-trusted.example.com", false},
		{"https://trusted.example.com.evil.net", false},
		{"https://untrusted.example.net", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := m.isOriginAllowed(tc.origin); got != tc.want {
			t.Errorf("isOriginAllowed(%q) = %v, want %v", tc.origin, got, tc.want)
		}
	}
}

func TestRateLimiterCleanupLoop(t *testing.T) {
	rl := NewRateLimiter(1, 1, nil)
	rl.getLimiter("10.0.0.1")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rl.CleanupLoop(ctx, time.Millisecond, time.Nanosecond)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		rl.mu.Lock()
		n := len(rl.limiters)
		rl.mu.Unlock()
		if n == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("idle limiter never cleaned up")
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup loop did not stop on cancel")
	}
}

func TestCORSRejectsOtherOrigins(t *testing.T) {
	m := NewCORSMiddleware([]string{"trusted.example.com"})
	h := m.Handler(okHandler())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req.Header.Set("Origin", "https://evil.example.net")
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("allow-origin = %q, want empty", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("request status = %d, want 200 (CORS is headers only)", rec.Code)
	}
}
