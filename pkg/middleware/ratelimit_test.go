package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(60, 2)
	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/agents", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 2; i++ {
		if code := send("10.0.0.1:1234"); code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, code)
		}
	}
	if code := send("10.0.0.1:5678"); code != http.StatusTooManyRequests {
		t.Errorf("expected 429 once burst is spent, got %d", code)
	}
	if code := send("10.0.0.2:1234"); code != http.StatusOK {
		t.Errorf("expected other client to be unaffected, got %d", code)
	}
}

func TestRateLimiterPrune(t *testing.T) {
	rl := NewRateLimiter(0, 0)
	rl.getLimiter("10.0.0.1")

	if n := rl.Prune(time.Now()); n != 0 {
		t.Errorf("expected fresh client to stay, pruned %d", n)
	}
	if n := rl.Prune(time.Now().Add(time.Hour)); n != 1 {
		t.Errorf("expected idle client to be pruned, pruned %d", n)
	}
}

func TestMetrics(t *testing.T) {
	var gotEndpoint string
	var gotStatus int
	handler := Metrics(func(endpoint string, status int) {
		gotEndpoint, gotStatus = endpoint, status
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/plain", nil))

	if gotEndpoint != "/plain" {
		t.Errorf("expected endpoint /plain, got %s", gotEndpoint)
	}
	if gotStatus != http.StatusTeapot {
		t.Errorf("expected status 418, got %d", gotStatus)
	}
}
