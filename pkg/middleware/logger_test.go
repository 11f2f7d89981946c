package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

func decodeLogLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log entry %q: %v", buf.String(), err)
	}
	return entry
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	body := `{"agentId":"a1","status":"available"}`

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(Logger(zerolog.New(&buf)))
	r.Get("/api/v1/agents/{agentID}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/agents/a1", nil)
	req.Header.Set(chimiddleware.RequestIDHeader, "dash-42")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	entry := decodeLogLine(t, &buf)
	if entry["method"] != "GET" {
		t.Errorf("expected method GET, got %v", entry["method"])
	}
	if entry["path"] != "/api/v1/agents/a1" {
		t.Errorf("expected concrete path, got %v", entry["path"])
	}
	if entry["status"] != float64(200) {
		t.Errorf("expected status 200, got %v", entry["status"])
	}
	if entry["bytes"] != float64(len(body)) {
		t.Errorf("expected %d bytes, got %v", len(body), entry["bytes"])
	}
	if entry["request_id"] != "dash-42" {
		t.Errorf("expected request_id dash-42, got %v", entry["request_id"])
	}
	if entry["level"] != "info" {
		t.Errorf("expected info level, got %v", entry["level"])
	}
	if entry["message"] != "request completed" {
		t.Errorf("expected message 'request completed', got %v", entry["message"])
	}
}

func TestLoggerServerErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	handler := Logger(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/calls/route", nil))

	entry := decodeLogLine(t, &buf)
	if entry["status"] != float64(503) {
		t.Errorf("expected status 503, got %v", entry["status"])
	}
	if entry["level"] != "error" {
		t.Errorf("expected error level for 5xx, got %v", entry["level"])
	}
	if entry["request_id"] != "" {
		t.Errorf("expected empty request_id without the RequestID middleware, got %v", entry["request_id"])
	}
}

func TestMetricsUsesRoutePattern(t *testing.T) {
	type sample struct {
		endpoint string
		status   int
	}
	var got []sample
	record := func(endpoint string, status int) {
		got = append(got, sample{endpoint, status})
	}

	r := chi.NewRouter()
	r.Use(Metrics(record))
	r.Get("/api/v1/queues/{queueID}", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "queueID") == "missing" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("{}"))
	})

	for _, path := range []string{"/api/v1/queues/sales", "/api/v1/queues/missing"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	want := []sample{
		{"/api/v1/queues/{queueID}", http.StatusOK},
		{"/api/v1/queues/{queueID}", http.StatusNotFound},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d samples, got %+v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}
