package api

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

	"github.com/dennisdiepolder/monti/callrouter/internal/callqueue"
	"github.com/dennisdiepolder/monti/callrouter/internal/directory"
	"github.com/dennisdiepolder/monti/callrouter/internal/router"
	"github.com/dennisdiepolder/monti/callrouter/internal/rules"
	"github.com/dennisdiepolder/monti/callrouter/internal/storage"
	"github.com/dennisdiepolder/monti/callrouter/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	*httptest.Server
	router *router.Router
}

func newTestServer(t *testing.T, rulesFile string) *testServer {
	t.Helper()
	logger := zerolog.Nop()

	dir := directory.New()
	mgr := callqueue.NewManager(dir, callqueue.Options{WaitFloor: 15 * time.Second, SLThreshold: 60 * time.Second}, logger)
	require.Empty(t, mgr.Configure(callqueue.DefaultConfigs()))

	rt := router.New(dir, mgr, rules.NewStore(logger), rules.NewEvaluator(time.UTC, logger), router.DefaultOptions(), logger)
	store := storage.NewNoopStore()

	r := chi.NewRouter()
	r.Route("/api", Handlers{
		Routing: NewRoutingHandler(rt, logger),
		Roster:  NewRosterHandler(rt, logger),
		Actions: NewAgentActionsHandler(rt, logger),
		History: NewHistoryHandler(store, logger),
		Admin:   NewAdminHandler(rt, store, rulesFile, logger),
		Queues:  callqueue.NewHandler(mgr, logger),
	}.Register)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, router: rt}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) (int, []byte) {
	t.Helper()
	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case string:
		rd = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, s.URL+path, rd)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, buf.Bytes()
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

func salesAgent(id string) types.Agent {
	return types.Agent{
		ID:         id,
		Name:       "Agent " + id,
		Status:     types.StatusAvailable,
		Skills:     []string{"sales"},
		Experience: types.ExperienceSenior,
	}
}

func TestRouteAndCompleteFlow(t *testing.T) {
	s := newTestServer(t, "")

	code, _ := s.do(t, http.MethodPost, "/api/agents", salesAgent("a1"))
	require.Equal(t, http.StatusCreated, code)

	code, body := s.do(t, http.MethodPost, "/api/route", types.CallContext{
		CallID:   "c1",
		CallerID: "+4930111",
		CallType: types.CallTypeSales,
		Urgency:  types.UrgencyLow,
	})
	require.Equal(t, http.StatusOK, code)
	d := decode[types.RoutingDecision](t, body)
	assert.Equal(t, types.ActionRouteToAgent, d.Action)
	assert.Equal(t, "a1", d.TargetAgentID)

	code, body = s.do(t, http.MethodPost, "/api/route", types.CallContext{
		CallID:   "c2",
		CallerID: "+4930222",
		CallType: types.CallTypeSales,
		Urgency:  types.UrgencyMedium,
	})
	require.Equal(t, http.StatusOK, code)
	d = decode[types.RoutingDecision](t, body)
	assert.Equal(t, types.ActionQueue, d.Action)
	assert.Equal(t, "sales", d.TargetQueueID)

	code, body = s.do(t, http.MethodPost, "/api/agents/a1/complete", types.CallOutcome{HandleTime: 120, Resolved: true})
	require.Equal(t, http.StatusOK, code)
	agent := decode[types.Agent](t, body)
	assert.Equal(t, 1, agent.Performance.CallsToday)

	// Completion drained the queued call onto the same agent.
	code, body = s.do(t, http.MethodGet, "/api/agents/a1", nil)
	require.Equal(t, http.StatusOK, code)
	agent = decode[types.Agent](t, body)
	assert.Equal(t, types.StatusBusy, agent.Status)
	require.NotNil(t, agent.CurrentCall)
	assert.Equal(t, "c2", agent.CurrentCall.CallID)

	code, body = s.do(t, http.MethodGet, "/api/metrics/calls", nil)
	require.Equal(t, http.StatusOK, code)
	m := decode[types.CallMetrics](t, body)
	assert.Equal(t, 1, m.TotalCalls)
	assert.Equal(t, 1, m.AnsweredCalls)
}

func TestRouteRejectsBadInput(t *testing.T) {
	s := newTestServer(t, "")

	code, _ := s.do(t, http.MethodPost, "/api/route", "{not json")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodPost, "/api/route", types.CallContext{CallType: types.CallTypeSales})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestAgentStatusErrors(t *testing.T) {
	s := newTestServer(t, "")
	code, _ := s.do(t, http.MethodPost, "/api/agents", salesAgent("a1"))
	require.Equal(t, http.StatusCreated, code)

	code, _ = s.do(t, http.MethodPut, "/api/agents/ghost/status", map[string]string{"status": "away"})
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(t, http.MethodPut, "/api/agents/a1/status", map[string]string{"status": "sleeping"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodPut, "/api/agents/a1/status", map[string]string{"status": "busy"})
	assert.Equal(t, http.StatusConflict, code)

	code, body := s.do(t, http.MethodPut, "/api/agents/a1/status", map[string]string{"status": "away"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, types.StatusAway, decode[types.Agent](t, body).Status)

	code, _ = s.do(t, http.MethodPost, "/api/agents/a1/complete", nil)
	assert.Equal(t, http.StatusConflict, code, "no call to complete")
}

func TestAbandonAndCallback(t *testing.T) {
	s := newTestServer(t, "")

	for _, id := range []string{"c1", "c2"} {
		code, body := s.do(t, http.MethodPost, "/api/route", types.CallContext{
			CallID:   id,
			CallerID: "+49" + id,
			CallType: types.CallTypeSupport,
			Urgency:  types.UrgencyMedium,
		})
		require.Equal(t, http.StatusOK, code)
		require.Equal(t, types.ActionQueue, decode[types.RoutingDecision](t, body).Action)
	}

	code, body := s.do(t, http.MethodPost, "/api/calls/c1/abandon", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, decode[map[string]interface{}](t, body)["removed"])

	code, body = s.do(t, http.MethodPost, "/api/calls/c1/abandon", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, decode[map[string]interface{}](t, body)["removed"])

	code, body = s.do(t, http.MethodPost, "/api/calls/c2/callback", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, types.ActionCallback, decode[types.RoutingDecision](t, body).Action)

	code, _ = s.do(t, http.MethodPost, "/api/calls/c2/callback", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, body = s.do(t, http.MethodGet, "/api/queues/support", nil)
	require.Equal(t, http.StatusOK, code)
	q := decode[types.CallQueue](t, body)
	assert.Empty(t, q.Calls)
	assert.Equal(t, 2, q.Metrics.AbandonedCalls)
}

func TestRosterAndList(t *testing.T) {
	s := newTestServer(t, "")

	code, body := s.do(t, http.MethodPost, "/api/agents/roster", []types.Agent{
		salesAgent("a1"),
		salesAgent("a2"),
		{Name: "missing id"},
	})
	require.Equal(t, http.StatusOK, code)
	res := decode[map[string]interface{}](t, body)
	assert.Equal(t, float64(2), res["registered"])
	assert.Len(t, res["errors"], 1)

	code, body = s.do(t, http.MethodGet, "/api/agents", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(2), decode[map[string]interface{}](t, body)["totalAgents"])

	code, _ = s.do(t, http.MethodGet, "/api/queues/nope", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestRulesReloadFromBody(t *testing.T) {
	s := newTestServer(t, "")

	code, body := s.do(t, http.MethodPost, "/api/rules/reload", []types.RoutingRule{
		{ID: "r1", Priority: 1, IsActive: true, Actions: types.RuleActions{Target: types.TargetQueue, TargetID: "vip", Priority: 1}},
		{ID: "r2", Priority: 2, IsActive: true, Actions: types.RuleActions{Target: types.TargetAgent}},
	})
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[map[string]interface{}](t, body)["errors"], 1)

	code, body = s.do(t, http.MethodGet, "/api/rules", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(2), decode[map[string]interface{}](t, body)["totalRules"])

	// Without a routing file an empty body has nothing to reload.
	code, _ = s.do(t, http.MethodPost, "/api/rules/reload", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestRulesReloadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routing.yaml")
	doc := strings.Join([]string{
		"agents:",
		"  - {id: a9, name: Nina, status: away, skills: [technical]}",
		"rules:",
		"  - id: r-tech",
		"    priority: 1",
		"    active: true",
		"    conditions: {call_type: technical}",
		"    actions: {target: queue, target_id: support, priority: 2}",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	s := newTestServer(t, path)
	code, body := s.do(t, http.MethodPost, "/api/rules/reload", nil)
	require.Equal(t, http.StatusOK, code, string(body))

	res := decode[map[string]interface{}](t, body)
	assert.Equal(t, float64(1), res["rules"])
	assert.Equal(t, float64(1), res["agents"])

	agent, err := s.router.GetAgentSnapshot("a9")
	require.NoError(t, err)
	assert.Equal(t, types.StatusAway, agent.Status)
	require.Len(t, s.router.Rules(), 1)
}

func TestHistoryEndpoints(t *testing.T) {
	s := newTestServer(t, "")

	code, body := s.do(t, http.MethodGet, "/api/history/decisions?date=2025-07-16", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "[]\n", string(body))

	code, _ = s.do(t, http.MethodGet, "/api/history/calls?date=16.07.2025", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodGet, "/api/agents/a1/calls", nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = s.do(t, http.MethodDelete, "/api/admin/storage", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestConfigureQueues(t *testing.T) {
	s := newTestServer(t, "")

	code, body := s.do(t, http.MethodPut, "/api/queues", []callqueue.Config{
		{ID: "general", Name: "General", Type: types.QueueGeneral, MaxSize: 5, Active: true},
		{ID: "broken", MaxSize: 0},
	})
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[map[string]interface{}](t, body)["errors"], 1)

	code, body = s.do(t, http.MethodGet, "/api/queues/sales", nil)
	require.Equal(t, http.StatusOK, code)
	assert.False(t, decode[types.CallQueue](t, body).IsActive, "queues left out of the config are deactivated")
}
