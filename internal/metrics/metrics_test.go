package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dennisdiepolder/monti/callrouter/internal/types"
)

func TestHandlerExposesRecordedMetrics(t *testing.T) {
	m := Get()
	m.RecordDecision("route", "queue")
	m.RecordQueueExit("general", "answered")
	m.RecordInvariantViolation("double_booked")
	m.RecordHTTPRequest("/api/route", http.StatusOK)
	m.UpdateAgentStats(map[types.AgentStatus]int{types.StatusAvailable: 2, types.StatusBusy: 1})
	m.UpdateQueueStats([]types.CallQueue{{ID: "general", Calls: make([]types.QueuedCall, 3), Metrics: types.QueueMetrics{ServiceLevel: 0.5}}})

	rec := httptest.NewRecorder()
	m.Handler()(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("expected text/plain, got %s", ct)
	}

	body := rec.Body.String()
	for _, want := range []string{
		`callrouter_decisions_total{trigger="route",action="queue"}`,
		`callrouter_queue_exits_total{outcome="answered"}`,
		`callrouter_invariant_violations_total{rule="double_booked"}`,
		`callrouter_http_requests_total{endpoint="/api/route",status="200"}`,
		"callrouter_agents_total 3\n",
		`callrouter_queue_waiting_calls{queue="general"} 3`,
		`callrouter_queue_service_level{queue="general"} 0.500000`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in metrics output", want)
		}
	}
}

func TestWebSocketGaugeTracksActiveConnections(t *testing.T) {
	m := Get()
	m.mu.RLock()
	before := m.activeConnections
	m.mu.RUnlock()

	m.RecordWebSocketConnect()
	m.RecordWebSocketConnect()
	m.RecordWebSocketDisconnect()

	m.mu.RLock()
	after := m.activeConnections
	m.mu.RUnlock()
	if after != before+1 {
		t.Errorf("expected %d active connections, got %d", before+1, after)
	}
}
