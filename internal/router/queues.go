package router

import (
	"fmt"
	"sort"

	"github.com/dennisdiepolder/monti/callrouter/internal/callqueue"
	"github.com/dennisdiepolder/monti/callrouter/internal/metrics"
	"github.com/dennisdiepolder/monti/callrouter/internal/scoring"
	"github.com/dennisdiepolder/monti/callrouter/internal/types"
)

// AbandonCall removes a call whose caller hung up while waiting. It is
// idempotent: a call that already left its queue reports false.
func (r *Router) AbandonCall(callID string) bool {
	queueID, call, ok := r.queues.WithdrawAny(callID, callqueue.OutcomeAbandoned)
	if !ok {
		r.logger.Debug().Str("call_id", callID).Msg("abandon for call not in any queue")
		return false
	}
	metrics.Get().RecordQueueExit(queueID, string(callqueue.OutcomeAbandoned))

	r.logger.Info().
		Str("call_id", callID).
		Str("queue_id", queueID).
		Float64("waited", r.now().Sub(call.QueuedAt).Seconds()).
		Msg("caller abandoned queue")
	return true
}

// RequestCallback takes a waiting call out of its queue and returns a
// callback decision for it
func (r *Router) RequestCallback(callID string) (types.RoutingDecision, error) {
	queueID, call, ok := r.queues.WithdrawAny(callID, callqueue.OutcomeCallback)
	if !ok {
		return types.RoutingDecision{}, fmt.Errorf("%w: %s", ErrCallNotQueued, callID)
	}
	metrics.Get().RecordQueueExit(queueID, string(callqueue.OutcomeCallback))

	call.CallbackRequested = true
	d := types.RoutingDecision{
		CallID:     call.CallID,
		Action:     types.ActionCallback,
		Priority:   call.Priority,
		Confidence: confCallback,
		RuleID:     call.RuleID,
		Reason:     fmt.Sprintf("Caller requested a callback after waiting in %s", queueID),
		DecidedAt:  r.now(),
	}
	r.emit(TriggerCallback, d)
	return d, nil
}

// Drain assigns waiting calls to available agents. Each pass compares the
// heads of all queues and serves the most urgent one, (priority, queuedAt)
// first, that has an eligible agent. An agent is reserved before its call is
// claimed; if the call left the queue in between, the agent is released
// again. Returns the number of calls assigned.
func (r *Router) Drain() int {
	assigned := 0
	for r.drainOne() {
		assigned++
	}
	return assigned
}

type queueHead struct {
	queue types.CallQueue
	call  types.QueuedCall
}

// waitingHeads returns the head call of every non-empty queue, most urgent first
func (r *Router) waitingHeads() []queueHead {
	var heads []queueHead
	for _, q := range r.queues.GetAll() {
		head, ok := r.queues.Peek(q.ID)
		if !ok {
			continue
		}
		heads = append(heads, queueHead{queue: q, call: head})
	}
	sort.SliceStable(heads, func(i, j int) bool {
		a, b := heads[i].call, heads[j].call
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if !a.QueuedAt.Equal(b.QueuedAt) {
			return a.QueuedAt.Before(b.QueuedAt)
		}
		return heads[i].queue.ID < heads[j].queue.ID
	})
	return heads
}

// drainOne assigns the most urgent head call that some agent can take. It
// reports false when no call could be assigned.
func (r *Router) drainOne() bool {
	for {
		claimLost := false
		for _, h := range r.waitingHeads() {
			agentID, score, ok := r.reserveFor(h.queue, h.call)
			if !ok {
				continue
			}

			call, ok := r.queues.Claim(h.queue.ID, h.call.CallID, agentID)
			if !ok {
				if _, err := r.dir.Release(agentID, h.call.CallID, nil); err != nil {
					r.logger.Error().Err(err).Str("agent_id", agentID).Msg("failed to release agent after lost claim")
				}
				claimLost = true
				break
			}
			r.assign(call.CallID, agentID, h.queue.ID)
			metrics.Get().RecordQueueExit(h.queue.ID, string(callqueue.OutcomeAnswered))

			d := types.RoutingDecision{
				CallID:        call.CallID,
				Action:        types.ActionRouteToAgent,
				TargetAgentID: agentID,
				Priority:      call.Priority,
				Confidence:    scoring.Confidence(score),
				RuleID:        call.RuleID,
				Reason:        fmt.Sprintf("Dequeued from %s after %.0fs", queueName(h.queue), r.now().Sub(call.QueuedAt).Seconds()),
				DecidedAt:     r.now(),
			}
			r.emit(TriggerDrain, d)
			return true
		}
		if !claimLost {
			return false
		}
	}
}

// reserveFor reserves the best eligible agent for a queued call. Queued
// calls take any eligible agent regardless of the assignment threshold.
func (r *Router) reserveFor(q types.CallQueue, call types.QueuedCall) (string, float64, bool) {
	available := r.dir.GetAvailable()
	if len(q.Agents) > 0 {
		eligible := make(map[string]bool, len(q.Agents))
		for _, id := range q.Agents {
			eligible[id] = true
		}
		filtered := available[:0]
		for _, a := range available {
			if eligible[a.ID] {
				filtered = append(filtered, a)
			}
		}
		available = filtered
	}

	cc := types.CallContext{
		CallID:   call.CallID,
		CallerID: call.CallerID,
		CallType: call.Metadata.CallType,
		Urgency:  call.Metadata.Urgency,
		Caller:   types.CallerProfile{PreviousAgentID: call.Metadata.PreviousAgentID},
	}
	for _, c := range scoring.Score(available, cc) {
		if err := r.dir.Reserve(c.Agent.ID, call.CallID); err != nil {
			metrics.Get().RecordLostReservation()
			continue
		}
		return c.Agent.ID, c.Score, true
	}
	return "", 0, false
}

// Sweep expires calls that waited past their max wait time and applies
// each call's fallback action
func (r *Router) Sweep() []types.RoutingDecision {
	expired := r.queues.Expire(r.opts.DefaultMaxWait)
	decisions := make([]types.RoutingDecision, 0, len(expired))

	for _, e := range expired {
		metrics.Get().RecordQueueExit(e.QueueID, string(callqueue.OutcomeTimeout))

		fallback := e.Call.FallbackAction
		if fallback == "" {
			fallback = r.opts.DefaultFallback
		}
		action := types.ActionVoicemail
		switch fallback {
		case types.FallbackCallback:
			action = types.ActionCallback
		case types.FallbackTransfer:
			action = types.ActionTransfer
		}

		d := types.RoutingDecision{
			CallID:     e.Call.CallID,
			Action:     action,
			Priority:   e.Call.Priority,
			Confidence: confTimeout,
			RuleID:     e.Call.RuleID,
			Reason:     fmt.Sprintf("Waited %.0fs in %s, max wait exceeded", e.Waited.Seconds(), e.QueueID),
			DecidedAt:  r.now(),
		}
		r.emit(TriggerTimeout, d)
		decisions = append(decisions, d)
	}
	return decisions
}

// GetQueueSnapshot returns a read-only view of one queue
func (r *Router) GetQueueSnapshot(queueID string) (types.CallQueue, error) {
	return r.queues.Snapshot(queueID)
}

// ListQueues returns views of every queue ordered by ID
func (r *Router) ListQueues() []types.CallQueue {
	return r.queues.GetAll()
}

// ConfigureQueues applies a new queue configuration
func (r *Router) ConfigureQueues(cfgs []callqueue.Config) []error {
	errs := r.queues.Configure(cfgs)
	r.Drain()
	return errs
}

// Rules returns the current rule set in precedence order
func (r *Router) Rules() []types.RoutingRule {
	return r.rules.Snapshot()
}

// ReloadRules replaces the rule set. Invalid rules are disabled and
// reported; the rest take effect for the next routing decision.
func (r *Router) ReloadRules(rules []types.RoutingRule) []error {
	return r.rules.Replace(rules)
}
