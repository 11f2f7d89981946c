package directory

import (
	"sync"
	"testing"

	"github.com/dennisdiepolder/monti/callrouter/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAgent(id string, status types.AgentStatus) types.Agent {
	return types.Agent{
		ID:         id,
		Name:       "Agent " + id,
		Status:     status,
		Skills:     []string{"sales"},
		Experience: types.ExperienceSenior,
	}
}

func TestReserveOnlyFromAvailable(t *testing.T) {
	d := New()
	require.NoError(t, d.Register(newAgent("a1", types.StatusAvailable)))
	require.NoError(t, d.Register(newAgent("a2", types.StatusAway)))

	require.NoError(t, d.Reserve("a1", "call-1"))
	agent, err := d.Get("a1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusBusy, agent.Status)
	require.NotNil(t, agent.CurrentCall)
	assert.Equal(t, "call-1", agent.CurrentCall.CallID)

	assert.ErrorIs(t, d.Reserve("a1", "call-2"), ErrAgentUnavailable)
	assert.ErrorIs(t, d.Reserve("a2", "call-3"), ErrAgentUnavailable)
	assert.ErrorIs(t, d.Reserve("missing", "call-4"), ErrAgentNotFound)
}

func TestReserveNoDoubleBooking(t *testing.T) {
	d := New()
	require.NoError(t, d.Register(newAgent("a1", types.StatusAvailable)))

	const callers = 64
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := d.Reserve("a1", "call"); err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
}

func TestReleaseUpdatesPerformance(t *testing.T) {
	d := New()
	require.NoError(t, d.Register(newAgent("a1", types.StatusAvailable)))
	require.NoError(t, d.Reserve("a1", "call-1"))

	_, err := d.Release("a1", "call-other", nil)
	assert.ErrorIs(t, err, ErrCallMismatch)

	released, err := d.Release("a1", "call-1", &types.CallOutcome{HandleTime: 90, Resolved: true})
	require.NoError(t, err)
	assert.Equal(t, 1, released.Performance.CallsToday)

	agent, err := d.Get("a1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusAvailable, agent.Status)
	assert.Nil(t, agent.CurrentCall)
	assert.Equal(t, 90.0, agent.Performance.AvgCallTime)

	_, err = d.Release("a1", "", nil)
	assert.ErrorIs(t, err, ErrCallMismatch)
}

func TestUpdateStatusRespectsCurrentCall(t *testing.T) {
	d := New()
	require.NoError(t, d.Register(newAgent("a1", types.StatusAvailable)))

	assert.ErrorIs(t, d.UpdateStatus("a1", types.StatusBusy), ErrInvalidTransition)
	assert.ErrorIs(t, d.UpdateStatus("a1", "lunch"), ErrInvalidStatus)
	assert.ErrorIs(t, d.UpdateStatus("nobody", types.StatusAway), ErrAgentNotFound)

	require.NoError(t, d.Reserve("a1", "call-1"))
	assert.ErrorIs(t, d.UpdateStatus("a1", types.StatusAvailable), ErrCallInProgress)
	assert.ErrorIs(t, d.UpdateStatus("a1", types.StatusOffline), ErrCallInProgress)

	agent, _ := d.Get("a1")
	assert.Equal(t, types.StatusBusy, agent.Status)

	_, err := d.Release("a1", "call-1", nil)
	require.NoError(t, err)
	require.NoError(t, d.UpdateStatus("a1", types.StatusAway))
	agent, _ = d.Get("a1")
	assert.Equal(t, types.StatusAway, agent.Status)
}

func TestRegisterRejectsBusy(t *testing.T) {
	d := New()
	assert.ErrorIs(t, d.Register(newAgent("a1", types.StatusBusy)), ErrInvalidTransition)
	assert.ErrorIs(t, d.Register(types.Agent{}), ErrMissingID)

	require.NoError(t, d.Register(types.Agent{ID: "a2"}))
	agent, _ := d.Get("a2")
	assert.Equal(t, types.StatusOffline, agent.Status)
}

func TestSnapshotsAreCopies(t *testing.T) {
	d := New()
	require.NoError(t, d.Register(newAgent("a1", types.StatusAvailable)))

	agent, _ := d.Get("a1")
	agent.Skills[0] = "mutated"
	agent.Status = types.StatusOffline

	fresh, _ := d.Get("a1")
	assert.Equal(t, "sales", fresh.Skills[0])
	assert.Equal(t, types.StatusAvailable, fresh.Status)
}

func TestCountActiveAndReset(t *testing.T) {
	d := New()
	require.NoError(t, d.Register(newAgent("a1", types.StatusAvailable)))
	require.NoError(t, d.Register(newAgent("a2", types.StatusAvailable)))
	require.NoError(t, d.Register(newAgent("a3", types.StatusOffline)))
	require.NoError(t, d.Reserve("a2", "call-1"))
	_, err := d.Release("a2", "call-1", &types.CallOutcome{HandleTime: 10})
	require.NoError(t, err)

	assert.Equal(t, 2, d.CountActive(nil))
	assert.Equal(t, 1, d.CountActive([]string{"a1", "a3", "ghost"}))
	assert.Len(t, d.GetAvailable(), 2)

	assert.Equal(t, 3, d.ResetDaily())
	agent, _ := d.Get("a2")
	assert.Equal(t, 0, agent.Performance.CallsToday)
	assert.Equal(t, 1, agent.Performance.CallsTotal)
}

func TestUpdateProfileKeepsLiveState(t *testing.T) {
	d := New()
	require.NoError(t, d.Register(newAgent("a1", types.StatusAvailable)))
	require.NoError(t, d.Reserve("a1", "call-1"))

	profile := newAgent("a1", types.StatusOffline)
	profile.Name = "Renamed"
	profile.Skills = []string{"technical"}
	require.NoError(t, d.UpdateProfile(profile))

	agent, err := d.Get("a1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", agent.Name)
	assert.Equal(t, []string{"technical"}, agent.Skills)
	assert.Equal(t, types.StatusBusy, agent.Status)
	require.NotNil(t, agent.CurrentCall)

	assert.ErrorIs(t, d.UpdateProfile(newAgent("ghost", types.StatusAvailable)), ErrAgentNotFound)
}
