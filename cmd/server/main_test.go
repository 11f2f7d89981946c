package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dennisdiepolder/monti/callrouter/internal/config"
	"github.com/dennisdiepolder/monti/callrouter/internal/storage"
	"github.com/dennisdiepolder/monti/callrouter/pkg/middleware"
	"github.com/rs/zerolog"
)

func TestHealthHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	healthHandler(rec, req)

	// Check status code
	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	// Check content type
	contentType := rec.Header().Get("Content-Type")
	if contentType != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", contentType)
	}

	// Parse response body
	var response map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}

	// Check response fields
	if response["status"] != "ok" {
		t.Errorf("expected status ok, got %s", response["status"])
	}
	if response["service"] != "callrouter" {
		t.Errorf("expected service callrouter, got %s", response["service"])
	}
	if response["version"] != version {
		t.Errorf("expected version %s, got %s", version, response["version"])
	}
}

func testConfig() *config.Config {
	return &config.Config{
		AllowedOrigins:     []string{"http://localhost:5173"},
		Location:           time.UTC,
		WaitFloor:          15 * time.Second,
		SLThreshold:        60 * time.Second,
		DefaultMaxWait:     300 * time.Second,
		RateLimitPerMinute: 600,
		PongWait:           time.Minute,
		PingPeriod:         54 * time.Second,
		WriteWait:          10 * time.Second,
		MaxMessageSize:     512,
	}
}

func TestEngineRoutes(t *testing.T) {
	cfg := testConfig()
	e := newEngine(cfg, storage.NewNoopStore(), zerolog.Nop())
	srv := httptest.NewServer(e.handler(cfg, middleware.NewRateLimiter(cfg.RateLimitPerMinute, 0), zerolog.Nop()))
	defer srv.Close()

	tests := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodGet, "/metrics", "", http.StatusOK},
		{http.MethodGet, "/api/queues", "", http.StatusOK},
		{http.MethodGet, "/api/agents", "", http.StatusOK},
		{http.MethodGet, "/api/rules", "", http.StatusOK},
		{http.MethodPost, "/api/route", `{"callerId":"+4930","callType":"sales","urgency":"low"}`, http.StatusOK},
		{http.MethodGet, "/api/unknown", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, srv.URL+tt.path, strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("failed to build request: %v", err)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("expected status %d, got %d", tt.want, resp.StatusCode)
			}
		})
	}
}

func TestCheckRules(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.yaml")
	if err := os.WriteFile(good, []byte("rules:\n  - {id: r1, priority: 1, active: true, actions: {target: voicemail}}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	if err := checkRules(&out, good); err != nil {
		t.Errorf("expected valid file, got %v", err)
	}
	if !strings.Contains(out.String(), "1 rules") {
		t.Errorf("expected summary, got %q", out.String())
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("rules:\n  - {id: r1, priority: 1, actions: {target: nowhere}}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out.Reset()
	if err := checkRules(&out, bad); err == nil {
		t.Error("expected invalid target to be reported")
	}
	if !strings.Contains(out.String(), "invalid") {
		t.Errorf("expected problem listing, got %q", out.String())
	}
}
