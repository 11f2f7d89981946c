// Package router is the public entry point of the routing engine. It turns
// call events into routing decisions by walking the fallback chain of rules,
// agent scoring, queues and voicemail.
package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dennisdiepolder/monti/callrouter/internal/aggregator"
	"github.com/dennisdiepolder/monti/callrouter/internal/callqueue"
	"github.com/dennisdiepolder/monti/callrouter/internal/directory"
	"github.com/dennisdiepolder/monti/callrouter/internal/metrics"
	"github.com/dennisdiepolder/monti/callrouter/internal/rules"
	"github.com/dennisdiepolder/monti/callrouter/internal/scoring"
	"github.com/dennisdiepolder/monti/callrouter/internal/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Decision confidences
const (
	confRuleAgent     = 0.95
	confRuleTarget    = 0.9
	confQueue         = 0.75
	confQueueCallback = 0.8
	confVoicemail     = 0.5
	confVMCallback    = 0.6
	confTimeout       = 0.8
	confCallback      = 0.9
	confExisting      = 1.0
)

// Decision triggers
const (
	TriggerRoute    = "route"
	TriggerDrain    = "drain"
	TriggerTimeout  = "timeout"
	TriggerCallback = "callback"
)

// ErrCallNotQueued is returned when a queued-call operation finds no such call
var ErrCallNotQueued = errors.New("call is not waiting in any queue")

// Broadcaster delivers serialized events to dashboard clients
type Broadcaster interface {
	Broadcast(message []byte)
}

// DecisionStore is the subset of storage.Store needed by Router
type DecisionStore interface {
	SaveDecisionRecord(record types.DecisionRecord) error
}

// Options hold routing defaults
type Options struct {
	DefaultMaxWait  time.Duration        // applied when a rule sets no max wait
	DefaultFallback types.FallbackAction // applied when a rule sets no fallback
}

// DefaultOptions returns the defaults used when none are configured
func DefaultOptions() Options {
	return Options{
		DefaultMaxWait:  300 * time.Second,
		DefaultFallback: types.FallbackVoicemail,
	}
}

type assignment struct {
	AgentID   string
	QueueID   string
	StartedAt time.Time
}

// Router composes the directory, rule evaluator, scorer and queues
type Router struct {
	dir    *directory.Directory
	queues *callqueue.Manager
	rules  *rules.Store
	eval   *rules.Evaluator
	opts   Options

	hub   Broadcaster
	store DecisionStore

	active map[string]assignment // callID -> agent handling it
	mu     sync.Mutex

	now    func() time.Time
	logger zerolog.Logger
}

// New creates a router over the given components
func New(dir *directory.Directory, queues *callqueue.Manager, store *rules.Store, eval *rules.Evaluator, opts Options, logger zerolog.Logger) *Router {
	if opts.DefaultMaxWait <= 0 {
		opts.DefaultMaxWait = DefaultOptions().DefaultMaxWait
	}
	if opts.DefaultFallback == "" {
		opts.DefaultFallback = DefaultOptions().DefaultFallback
	}
	return &Router{
		dir:    dir,
		queues: queues,
		rules:  store,
		eval:   eval,
		opts:   opts,
		active: make(map[string]assignment),
		now:    time.Now,
		logger: logger.With().Str("component", "router").Logger(),
	}
}

// SetBroadcaster sets where decision events are published
func (r *Router) SetBroadcaster(hub Broadcaster) {
	r.hub = hub
}

// SetStore sets the persistence store for decision records
func (r *Router) SetStore(store DecisionStore) {
	r.store = store
}

// SetClock overrides the time source (tests)
func (r *Router) SetClock(now func() time.Time) {
	r.now = now
}

// RouteCall decides where a call goes. It always returns a decision: any
// internal failure degrades the call to voicemail. A repeated event for a
// call that is already waiting or with an agent returns where it is now.
func (r *Router) RouteCall(cc types.CallContext) (d types.RoutingDecision) {
	if cc.CallID == "" {
		cc.CallID = uuid.New().String()
	}
	if cc.ReceivedAt.IsZero() {
		cc.ReceivedAt = r.now()
	}

	defer func() {
		if rec := recover(); rec != nil {
			metrics.Get().RecordRoutingPanic()
			r.logger.Error().
				Interface("panic", rec).
				Str("call_id", cc.CallID).
				Msg("routing panicked, falling back to voicemail")
			d = r.voicemail(cc, "Routing error, sent to voicemail")
		}
		r.emit(TriggerRoute, d)
	}()

	if d, ok := r.existingPlacement(cc); ok {
		return d
	}
	if d, ok := r.routeByRule(cc); ok {
		return d
	}
	if d, ok := r.routeToBestAgent(cc); ok {
		return d
	}
	if d, ok := r.routeToQueue(cc); ok {
		return d
	}
	return r.voicemail(cc, "No agent or queue available")
}

// existingPlacement reports where a call that was already routed is now
func (r *Router) existingPlacement(cc types.CallContext) (types.RoutingDecision, bool) {
	r.mu.Lock()
	a, active := r.active[cc.CallID]
	r.mu.Unlock()
	if active {
		d := r.decision(cc, types.ActionRouteToAgent)
		d.TargetAgentID = a.AgentID
		d.Confidence = confExisting
		d.Reason = fmt.Sprintf("Call is already with agent %s", a.AgentID)
		return d, true
	}

	queueID, ok := r.queues.Find(cc.CallID)
	if !ok {
		return types.RoutingDecision{}, false
	}
	q, err := r.queues.Snapshot(queueID)
	if err != nil {
		return types.RoutingDecision{}, false
	}
	for i, c := range q.Calls {
		if c.CallID != cc.CallID {
			continue
		}
		d := r.decision(cc, types.ActionQueue)
		d.TargetQueueID = q.ID
		d.Position = i + 1
		d.Priority = c.Priority
		d.EstimatedWaitTime = c.EstimatedWaitTime
		d.RuleID = c.RuleID
		d.Confidence = confExisting
		d.Reason = fmt.Sprintf("Call is already waiting in %s at position %d", queueName(q), i+1)
		return d, true
	}
	return types.RoutingDecision{}, false
}

// routeByRule applies the highest-precedence matching rule. It reports false
// when no rule matches or the rule's target cannot be used right now.
func (r *Router) routeByRule(cc types.CallContext) (types.RoutingDecision, bool) {
	rule, ok := r.eval.Evaluate(r.rules.Snapshot(), cc)
	if !ok {
		return types.RoutingDecision{}, false
	}
	log := r.logger.With().Str("call_id", cc.CallID).Str("rule_id", rule.ID).Logger()
	a := rule.Actions

	switch a.Target {
	case types.TargetAgent:
		agent, err := r.dir.Get(a.TargetID)
		if err != nil {
			log.Warn().Err(err).Msg("rule references unknown agent, ignoring rule")
			return types.RoutingDecision{}, false
		}
		if agent.Status != types.StatusAvailable {
			log.Debug().Str("agent_id", agent.ID).Str("status", string(agent.Status)).Msg("rule target agent not available")
			return types.RoutingDecision{}, false
		}
		if err := r.dir.Reserve(agent.ID, cc.CallID); err != nil {
			metrics.Get().RecordLostReservation()
			log.Debug().Err(err).Msg("lost reservation for rule target agent")
			return types.RoutingDecision{}, false
		}
		r.assign(cc.CallID, agent.ID, "")

		d := r.decision(cc, types.ActionRouteToAgent)
		d.TargetAgentID = agent.ID
		d.Confidence = confRuleAgent
		d.RuleID = rule.ID
		d.Priority = r.priority(cc, &rule)
		d.Reason = fmt.Sprintf("Rule %q routed call to %s", rule.Name, agentName(agent))
		return d, true

	case types.TargetQueue:
		q, err := r.queues.Snapshot(a.TargetID)
		if err != nil {
			log.Warn().Err(err).Msg("rule references unknown queue, ignoring rule")
			return types.RoutingDecision{}, false
		}
		if !q.IsActive || q.Full() {
			log.Debug().Str("queue_id", q.ID).Bool("active", q.IsActive).Msg("rule target queue not usable")
			return types.RoutingDecision{}, false
		}
		p, err := r.enqueue(q.ID, cc, &rule)
		if err != nil {
			log.Debug().Err(err).Msg("rule target queue rejected call")
			return types.RoutingDecision{}, false
		}

		d := r.queued(cc, p, &rule)
		d.Confidence = confRuleTarget
		d.Reason = fmt.Sprintf("Rule %q queued call in %s", rule.Name, queueName(q))
		return d, true

	case types.TargetVoicemail:
		d := r.decision(cc, types.ActionVoicemail)
		d.Confidence = confRuleTarget
		d.RuleID = rule.ID
		d.Priority = r.priority(cc, &rule)
		d.Reason = fmt.Sprintf("Rule %q sends call to voicemail", rule.Name)
		return d, true

	case types.TargetCallback:
		d := r.decision(cc, types.ActionCallback)
		d.Confidence = confRuleTarget
		d.RuleID = rule.ID
		d.Priority = r.priority(cc, &rule)
		d.Reason = fmt.Sprintf("Rule %q schedules a callback", rule.Name)
		return d, true
	}

	log.Warn().Str("target", string(a.Target)).Msg("rule has unknown target, ignoring rule")
	return types.RoutingDecision{}, false
}

// routeToBestAgent reserves the top-scoring available agent. A lost
// reservation is retried once against fresh availability.
func (r *Router) routeToBestAgent(cc types.CallContext) (types.RoutingDecision, bool) {
	for attempt := 0; attempt < 2; attempt++ {
		ranked := scoring.Score(r.dir.GetAvailable(), cc)
		if len(ranked) == 0 || ranked[0].Score <= scoring.AssignThreshold {
			return types.RoutingDecision{}, false
		}

		top := ranked[0]
		if err := r.dir.Reserve(top.Agent.ID, cc.CallID); err != nil {
			metrics.Get().RecordLostReservation()
			r.logger.Debug().Err(err).
				Str("call_id", cc.CallID).
				Str("agent_id", top.Agent.ID).
				Int("attempt", attempt+1).
				Msg("lost reservation, rescoring")
			continue
		}
		r.assign(cc.CallID, top.Agent.ID, "")

		d := r.decision(cc, types.ActionRouteToAgent)
		d.TargetAgentID = top.Agent.ID
		d.Confidence = scoring.Confidence(top.Score)
		d.Reason = fmt.Sprintf("Best available agent %s (score %.1f)", agentName(top.Agent), top.Score)
		for _, alt := range ranked[1:] {
			if len(d.AlternativeOptions) >= types.MaxAlternatives {
				break
			}
			o := r.decision(cc, types.ActionRouteToAgent)
			o.TargetAgentID = alt.Agent.ID
			o.Confidence = scoring.Confidence(alt.Score) * 0.9
			o.Reason = fmt.Sprintf("Alternative agent %s (score %.1f)", agentName(alt.Agent), alt.Score)
			d = d.WithAlternative(o)
		}
		return d, true
	}
	return types.RoutingDecision{}, false
}

// routeToQueue enqueues the call in the best eligible queue, moving to the
// next candidate when a queue rejects the call.
func (r *Router) routeToQueue(cc types.CallContext) (types.RoutingDecision, bool) {
	for _, q := range callqueue.Select(cc, r.queues.GetAll()) {
		p, err := r.enqueue(q.ID, cc, nil)
		if err != nil {
			r.logger.Debug().Err(err).
				Str("call_id", cc.CallID).
				Str("queue_id", q.ID).
				Msg("queue rejected call, trying next candidate")
			continue
		}

		d := r.queued(cc, p, nil)
		d.Confidence = confQueue
		d.Reason = fmt.Sprintf("Queued in %s at position %d", queueName(q), p.Position)

		cb := r.decision(cc, types.ActionCallback)
		cb.Confidence = confQueueCallback
		cb.Reason = "Offer a callback instead of waiting"
		return d.WithAlternative(cb), true
	}
	return types.RoutingDecision{}, false
}

func (r *Router) enqueue(queueID string, cc types.CallContext, rule *types.RoutingRule) (callqueue.Placement, error) {
	call := types.QueuedCall{
		CallID:         cc.CallID,
		CallerID:       cc.CallerID,
		Priority:       r.priority(cc, rule),
		QueuedAt:       r.now(),
		MaxWaitTime:    r.opts.DefaultMaxWait.Seconds(),
		FallbackAction: r.opts.DefaultFallback,
		Metadata: types.CallMetadata{
			CallType:        cc.CallType,
			Urgency:         cc.Urgency,
			Source:          cc.Source,
			PreviousAgentID: cc.Caller.PreviousAgentID,
			Notes:           cc.Notes,
		},
	}
	if rule != nil {
		call.RuleID = rule.ID
		if rule.Actions.MaxWaitTime > 0 {
			call.MaxWaitTime = rule.Actions.MaxWaitTime
		}
		if rule.Actions.FallbackAction != "" {
			call.FallbackAction = rule.Actions.FallbackAction
		}
	}

	p, err := r.queues.Enqueue(queueID, call)
	if errors.Is(err, callqueue.ErrQueueFull) || errors.Is(err, callqueue.ErrQueueInactive) {
		metrics.Get().RecordCapacityRejection(queueID)
	}
	return p, err
}

func (r *Router) queued(cc types.CallContext, p callqueue.Placement, rule *types.RoutingRule) types.RoutingDecision {
	d := r.decision(cc, types.ActionQueue)
	d.TargetQueueID = p.QueueID
	d.Position = p.Position
	d.Priority = r.priority(cc, rule)
	d.EstimatedWaitTime = p.QueueEstimate
	if rule != nil {
		d.RuleID = rule.ID
	}
	return d
}

func (r *Router) voicemail(cc types.CallContext, reason string) types.RoutingDecision {
	d := r.decision(cc, types.ActionVoicemail)
	d.Confidence = confVoicemail
	d.Reason = reason

	cb := r.decision(cc, types.ActionCallback)
	cb.Confidence = confVMCallback
	cb.Reason = "Schedule a callback"
	return d.WithAlternative(cb)
}

func (r *Router) decision(cc types.CallContext, action types.Action) types.RoutingDecision {
	return types.RoutingDecision{
		CallID:    cc.CallID,
		Action:    action,
		Priority:  types.UrgencyPriority(cc.Urgency),
		DecidedAt: r.now(),
	}
}

// priority is the rule's assigned priority, else derived from urgency
func (r *Router) priority(cc types.CallContext, rule *types.RoutingRule) int {
	if rule != nil && rule.Actions.Priority > 0 {
		return rule.Actions.Priority
	}
	return types.UrgencyPriority(cc.Urgency)
}

func (r *Router) assign(callID, agentID, queueID string) {
	r.mu.Lock()
	r.active[callID] = assignment{AgentID: agentID, QueueID: queueID, StartedAt: r.now()}
	r.mu.Unlock()
}

func (r *Router) unassign(callID string) (assignment, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.active[callID]
	delete(r.active, callID)
	return a, ok
}

// emit logs, counts, persists and publishes a decision
func (r *Router) emit(trigger string, d types.RoutingDecision) {
	metrics.Get().RecordDecision(trigger, string(d.Action))

	r.logger.Info().
		Str("trigger", trigger).
		Str("call_id", d.CallID).
		Str("action", string(d.Action)).
		Str("agent_id", d.TargetAgentID).
		Str("queue_id", d.TargetQueueID).
		Str("rule_id", d.RuleID).
		Float64("confidence", d.Confidence).
		Msg(d.Reason)

	if r.store != nil {
		record := types.DecisionRecord{
			DateKey:       d.DecidedAt.Format("2006-01-02"),
			DecisionID:    d.DecidedAt.Format(time.RFC3339Nano) + "#" + d.CallID,
			CallID:        d.CallID,
			Action:        string(d.Action),
			TargetAgentID: d.TargetAgentID,
			TargetQueueID: d.TargetQueueID,
			RuleID:        d.RuleID,
			Confidence:    d.Confidence,
			Reason:        d.Reason,
			DecidedAt:     d.DecidedAt.Format(time.RFC3339),
		}
		go func() {
			if err := r.store.SaveDecisionRecord(record); err != nil {
				r.logger.Error().Err(err).Str("call_id", record.CallID).Msg("failed to save decision record")
			}
		}()
	}

	if r.hub == nil {
		return
	}
	data, err := json.Marshal(types.DecisionEvent{
		Type:      "decision",
		Trigger:   trigger,
		Decision:  d,
		Timestamp: r.now(),
	})
	if err != nil {
		r.logger.Error().Err(err).Str("call_id", d.CallID).Msg("failed to marshal decision event")
		return
	}
	r.hub.Broadcast(data)
}

// CallMetrics summarizes queue statistics and agent availability
func (r *Router) CallMetrics() types.CallMetrics {
	m := aggregator.Merge(r.queues.GetAll())
	m.AgentsByStatus = r.dir.GetStatusStats()
	m.Timestamp = r.now()
	return m
}

func agentName(a types.Agent) string {
	if a.Name != "" {
		return a.Name
	}
	return a.ID
}

func queueName(q types.CallQueue) string {
	if q.Name != "" {
		return q.Name
	}
	return q.ID
}
