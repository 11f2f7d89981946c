package router

import (
	"time"

	"github.com/dennisdiepolder/monti/callrouter/internal/metrics"
	"github.com/dennisdiepolder/monti/callrouter/internal/types"
)

// RegisterAgent adds or replaces an agent. An agent registered as available
// immediately starts pulling queued calls.
func (r *Router) RegisterAgent(agent types.Agent) error {
	if err := r.dir.Register(agent); err != nil {
		return err
	}

	r.logger.Info().
		Str("agent_id", agent.ID).
		Str("status", string(agent.Status)).
		Msg("agent registered")

	if agent.Status == types.StatusAvailable {
		r.Drain()
	}
	return nil
}

// UpdateAgentStatus applies a manual status change. Busy is never set
// manually, and an agent on a call keeps busy until the call completes.
func (r *Router) UpdateAgentStatus(agentID string, status types.AgentStatus) error {
	if err := r.dir.UpdateStatus(agentID, status); err != nil {
		r.logger.Debug().Err(err).
			Str("agent_id", agentID).
			Str("status", string(status)).
			Msg("status update rejected")
		return err
	}

	r.logger.Info().
		Str("agent_id", agentID).
		Str("status", string(status)).
		Msg("agent status updated")

	if status == types.StatusAvailable {
		r.Drain()
	}
	return nil
}

// CompleteCall ends the agent's current call, folds the outcome into the
// agent's performance and the queue's handle time, then lets the agent pull
// the next queued call.
func (r *Router) CompleteCall(agentID string, outcome types.CallOutcome) (types.Agent, error) {
	agent, err := r.dir.Get(agentID)
	if err != nil {
		return types.Agent{}, err
	}

	var startedAt time.Time
	if agent.CurrentCall != nil {
		startedAt = agent.CurrentCall.StartedAt
		if outcome.CallID == "" {
			outcome.CallID = agent.CurrentCall.CallID
		}
	}
	if outcome.HandleTime <= 0 && !startedAt.IsZero() {
		outcome.HandleTime = r.now().Sub(startedAt).Seconds()
	}

	released, err := r.dir.Release(agentID, outcome.CallID, &outcome)
	if err != nil {
		return types.Agent{}, err
	}

	a, _ := r.unassign(outcome.CallID)
	handle := time.Duration(outcome.HandleTime * float64(time.Second))
	r.queues.RecordCompletion(a.QueueID, outcome.CallID, agentID, startedAt, handle)
	metrics.Get().RecordCompletion()

	r.logger.Info().
		Str("agent_id", agentID).
		Str("call_id", outcome.CallID).
		Str("queue_id", a.QueueID).
		Float64("handle_time", outcome.HandleTime).
		Bool("resolved", outcome.Resolved).
		Msg("call completed")

	r.Drain()

	released.Status = types.StatusAvailable
	released.CurrentCall = nil
	return released, nil
}

// GetAgentSnapshot returns a read-only view of one agent
func (r *Router) GetAgentSnapshot(agentID string) (types.Agent, error) {
	return r.dir.Get(agentID)
}

// ListAgents returns views of every agent ordered by ID
func (r *Router) ListAgents() []types.Agent {
	return r.dir.GetAll()
}

// ResetDaily zeroes every agent's calls-today counter
func (r *Router) ResetDaily() int {
	n := r.dir.ResetDaily()
	r.logger.Info().Int("agents", n).Msg("daily agent counters reset")
	return n
}
