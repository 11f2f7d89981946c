package router

import (
	"sync"
	"testing"
	"time"

	"github.com/dennisdiepolder/monti/callrouter/internal/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statsSink struct {
	mu    sync.Mutex
	saved []types.AgentDailyStats
}

func (s *statsSink) SaveAgentDailyStats(stats types.AgentDailyStats) error {
	s.mu.Lock()
	s.saved = append(s.saved, stats)
	s.mu.Unlock()
	return nil
}

func TestRegisterDailyResetRejectsBadSpec(t *testing.T) {
	r, _ := newTestRouter(t, nil)
	s := NewScheduler(r, time.UTC, zerolog.Nop())

	assert.Error(t, s.RegisterDailyReset("every midnight"))
	assert.NoError(t, s.RegisterDailyReset(""))
	assert.NoError(t, s.RegisterDailyReset("0 0 * * *"))
}

func TestDailyResetArchivesThenClears(t *testing.T) {
	r, clock := newTestRouter(t, nil, availableAgent("a1", "sales"))

	d := r.RouteCall(call("c1", types.CallTypeSales, types.UrgencyLow))
	require.Equal(t, "a1", d.TargetAgentID)
	clock.Advance(2 * time.Minute)
	_, err := r.CompleteCall("a1", types.CallOutcome{Resolved: true})
	require.NoError(t, err)

	sink := &statsSink{}
	s := NewScheduler(r, time.UTC, zerolog.Nop())
	s.SetStore(sink)
	s.dailyReset()

	require.Len(t, sink.saved, 1)
	assert.Equal(t, "a1", sink.saved[0].AgentID)
	assert.Equal(t, "2025-07-16", sink.saved[0].Date)
	assert.Equal(t, 1, sink.saved[0].CallsHandled)
	assert.InDelta(t, 120, sink.saved[0].AvgCallTime, 1e-9)

	agent, err := r.GetAgentSnapshot("a1")
	require.NoError(t, err)
	assert.Equal(t, 0, agent.Performance.CallsToday)
	assert.Equal(t, 1, agent.Performance.CallsTotal)
}
