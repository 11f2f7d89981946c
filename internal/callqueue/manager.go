package callqueue

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dennisdiepolder/monti/callrouter/internal/types"
	"github.com/rs/zerolog"
)

var (
	ErrQueueNotFound = errors.New("queue not found")
	ErrQueueFull     = errors.New("queue is full")
	ErrQueueInactive = errors.New("queue is inactive")
	ErrDuplicateCall = errors.New("call already queued")
	ErrInvalidConfig = errors.New("invalid queue config")
)

// Outcome describes how a call left a queue
type Outcome string

const (
	OutcomeAnswered  Outcome = "answered"
	OutcomeAbandoned Outcome = "abandoned"
	OutcomeCallback  Outcome = "callback"
	OutcomeTimeout   Outcome = "timeout"
	OutcomeCompleted Outcome = "completed"
)

// AgentCounter reports how many of the given agents are working
type AgentCounter interface {
	CountActive(ids []string) int
}

// CallStore is the subset of storage.Store needed by Manager
type CallStore interface {
	SaveCallRecord(record types.CallRecord) error
}

// Options tune wait estimation and service level tracking
type Options struct {
	WaitFloor   time.Duration // minimum estimated wait
	SLThreshold time.Duration // answer target for service level
}

// Placement is the result of a successful enqueue
type Placement struct {
	QueueID       string
	Position      int     // 1-based
	EstimatedWait float64 // seconds, for this call
	QueueEstimate float64 // seconds, for the queue as a whole
}

// Expired is a call removed by the timeout sweep
type Expired struct {
	QueueID string
	Call    types.QueuedCall
	Waited  time.Duration
}

// Manager owns all wait queues. The manager lock only guards the queue set;
// each queue serializes its own mutations.
type Manager struct {
	queues map[string]*Queue
	mu     sync.RWMutex
	agents AgentCounter
	opts   Options
	store  CallStore
	now    func() time.Time
	logger zerolog.Logger
}

// NewManager creates a queue manager with no queues configured
func NewManager(agents AgentCounter, opts Options, logger zerolog.Logger) *Manager {
	return &Manager{
		queues: make(map[string]*Queue),
		agents: agents,
		opts:   opts,
		now:    time.Now,
		logger: logger.With().Str("component", "callqueue").Logger(),
	}
}

// SetStore sets the persistence store for call records
func (m *Manager) SetStore(store CallStore) {
	m.store = store
}

// SetClock overrides the time source (tests)
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// Configure installs queue configuration. Existing queues keep their waiting
// calls and statistics. Queues missing from cfgs are deactivated, not
// dropped, so their waiting calls can still be answered or expire.
func (m *Manager) Configure(cfgs []Config) []error {
	var errs []error
	seen := make(map[string]bool, len(cfgs))

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, cfg := range cfgs {
		if err := validateConfig(cfg); err != nil {
			errs = append(errs, err)
			m.logger.Warn().Err(err).Str("queue_id", cfg.ID).Msg("skipping invalid queue config")
			continue
		}
		seen[cfg.ID] = true

		q, ok := m.queues[cfg.ID]
		if !ok {
			m.queues[cfg.ID] = NewQueue(cfg, m.opts.SLThreshold)
			continue
		}
		q.mu.Lock()
		q.cfg = cfg
		q.mu.Unlock()
	}

	for id, q := range m.queues {
		if seen[id] {
			continue
		}
		q.mu.Lock()
		q.cfg.Active = false
		q.mu.Unlock()
		m.logger.Info().Str("queue_id", id).Msg("queue removed from config, deactivated")
	}

	m.logger.Info().Int("queues", len(m.queues)).Int("invalid", len(errs)).Msg("queues configured")
	return errs
}

func validateConfig(cfg Config) error {
	if cfg.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidConfig)
	}
	if cfg.MaxSize <= 0 {
		return fmt.Errorf("%w: %s max size must be positive", ErrInvalidConfig, cfg.ID)
	}
	switch cfg.Type {
	case types.QueueSales, types.QueueSupport, types.QueueGeneral, types.QueueVIP, types.QueueEmergency:
		return nil
	}
	return fmt.Errorf("%w: %s has unknown type %q", ErrInvalidConfig, cfg.ID, cfg.Type)
}

// Enqueue inserts a call in priority order. It fails with ErrQueueFull when
// the queue is at capacity and ErrQueueInactive when the queue is disabled.
func (m *Manager) Enqueue(queueID string, call types.QueuedCall) (Placement, error) {
	q, err := m.get(queueID)
	if err != nil {
		return Placement{}, err
	}
	if call.QueuedAt.IsZero() {
		call.QueuedAt = m.now()
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.cfg.Active {
		return Placement{}, fmt.Errorf("%w: %s", ErrQueueInactive, queueID)
	}
	if len(q.calls) >= q.cfg.MaxSize {
		return Placement{}, fmt.Errorf("%w: %s (%d/%d)", ErrQueueFull, queueID, len(q.calls), q.cfg.MaxSize)
	}
	if q.indexOf(call.CallID) >= 0 {
		return Placement{}, fmt.Errorf("%w: %s in %s", ErrDuplicateCall, call.CallID, queueID)
	}
	if err := q.stats.RecordEnqueue(call.CallID); err != nil {
		return Placement{}, fmt.Errorf("%w: %v", ErrDuplicateCall, err)
	}

	pos := q.insert(call)
	q.recompute(m.agents.CountActive(q.cfg.Agents), m.opts.WaitFloor)

	m.logger.Debug().
		Str("call_id", call.CallID).
		Str("queue_id", queueID).
		Int("priority", call.Priority).
		Int("position", pos).
		Int("queue_depth", len(q.calls)).
		Msg("call enqueued")

	return Placement{
		QueueID:       queueID,
		Position:      pos,
		EstimatedWait: q.calls[pos-1].EstimatedWaitTime,
		QueueEstimate: q.estimate,
	}, nil
}

// Dequeue removes the head call and records it as answered
func (m *Manager) Dequeue(queueID string) (types.QueuedCall, bool) {
	q, err := m.get(queueID)
	if err != nil {
		return types.QueuedCall{}, false
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.calls) == 0 {
		return types.QueuedCall{}, false
	}
	return m.answer(q, 0, ""), true
}

// Claim removes a specific call for the given agent and records it as
// answered. It reports false if the call already left the queue.
func (m *Manager) Claim(queueID, callID, agentID string) (types.QueuedCall, bool) {
	q, err := m.get(queueID)
	if err != nil {
		return types.QueuedCall{}, false
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	i := q.indexOf(callID)
	if i < 0 {
		return types.QueuedCall{}, false
	}
	return m.answer(q, i, agentID), true
}

// answer takes the call at index i as answered. Callers must hold q.mu.
func (m *Manager) answer(q *Queue, i int, agentID string) types.QueuedCall {
	call := q.take(i)
	now := m.now()
	wait := now.Sub(call.QueuedAt)

	if err := q.stats.RecordAnswered(call.CallID, wait); err != nil {
		m.logger.Error().Err(err).Str("call_id", call.CallID).Msg("metrics invariant violated on answer")
	}
	q.recompute(m.agents.CountActive(q.cfg.Agents), m.opts.WaitFloor)

	m.logger.Debug().
		Str("call_id", call.CallID).
		Str("queue_id", q.id).
		Str("agent_id", agentID).
		Float64("wait_time", wait.Seconds()).
		Msg("call answered from queue")

	m.persist(m.record(q.id, call, agentID, OutcomeAnswered, now, wait))
	return call
}

// Remove withdraws a call as abandoned. Removing a call that is no longer
// queued is a no-op and reports false.
func (m *Manager) Remove(queueID, callID string) bool {
	_, ok := m.Withdraw(queueID, callID, OutcomeAbandoned)
	return ok
}

// Withdraw removes a waiting call without an agent answering it. Every
// outcome other than answered counts toward the abandonment rate.
func (m *Manager) Withdraw(queueID, callID string, outcome Outcome) (types.QueuedCall, bool) {
	q, err := m.get(queueID)
	if err != nil {
		return types.QueuedCall{}, false
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	i := q.indexOf(callID)
	if i < 0 {
		return types.QueuedCall{}, false
	}
	return m.abandon(q, i, outcome), true
}

// WithdrawAny searches every queue for the call and withdraws it
func (m *Manager) WithdrawAny(callID string, outcome Outcome) (string, types.QueuedCall, bool) {
	for _, q := range m.list() {
		q.mu.Lock()
		i := q.indexOf(callID)
		if i < 0 {
			q.mu.Unlock()
			continue
		}
		call := m.abandon(q, i, outcome)
		id := q.id
		q.mu.Unlock()
		return id, call, true
	}
	return "", types.QueuedCall{}, false
}

// abandon takes the call at index i as not answered. Callers must hold q.mu.
func (m *Manager) abandon(q *Queue, i int, outcome Outcome) types.QueuedCall {
	call := q.take(i)
	now := m.now()
	wait := now.Sub(call.QueuedAt)

	if err := q.stats.RecordAbandoned(call.CallID); err != nil {
		m.logger.Error().Err(err).Str("call_id", call.CallID).Msg("metrics invariant violated on abandon")
	}
	q.recompute(m.agents.CountActive(q.cfg.Agents), m.opts.WaitFloor)

	m.logger.Debug().
		Str("call_id", call.CallID).
		Str("queue_id", q.id).
		Str("outcome", string(outcome)).
		Float64("wait_time", wait.Seconds()).
		Msg("call left queue unanswered")

	m.persist(m.record(q.id, call, "", outcome, now, wait))
	return call
}

// Expire removes every call that has waited longer than its max wait time.
// Calls without their own limit use defaultMaxWait.
func (m *Manager) Expire(defaultMaxWait time.Duration) []Expired {
	var expired []Expired
	now := m.now()

	for _, q := range m.list() {
		q.mu.Lock()
		for i := 0; i < len(q.calls); {
			call := q.calls[i]
			limit := defaultMaxWait
			if call.MaxWaitTime > 0 {
				limit = time.Duration(call.MaxWaitTime * float64(time.Second))
			}
			waited := now.Sub(call.QueuedAt)
			if waited <= limit {
				i++
				continue
			}
			expired = append(expired, Expired{
				QueueID: q.id,
				Call:    m.abandon(q, i, OutcomeTimeout),
				Waited:  waited,
			})
		}
		q.mu.Unlock()
	}
	return expired
}

// Peek returns the head call without removing it
func (m *Manager) Peek(queueID string) (types.QueuedCall, bool) {
	q, err := m.get(queueID)
	if err != nil {
		return types.QueuedCall{}, false
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.calls) == 0 {
		return types.QueuedCall{}, false
	}
	return q.calls[0], true
}

// Find returns the ID of the queue holding the call
func (m *Manager) Find(callID string) (string, bool) {
	for _, q := range m.list() {
		q.mu.Lock()
		found := q.indexOf(callID) >= 0
		id := q.id
		q.mu.Unlock()
		if found {
			return id, true
		}
	}
	return "", false
}

// RecordCompletion feeds a finished call's handle time into the queue it was
// answered from and persists the completed call. queueID is empty for calls
// routed directly to an agent.
func (m *Manager) RecordCompletion(queueID, callID, agentID string, startedAt time.Time, handle time.Duration) {
	if q, err := m.get(queueID); err == nil {
		q.mu.Lock()
		q.stats.RecordHandleTime(handle)
		q.recompute(m.agents.CountActive(q.cfg.Agents), m.opts.WaitFloor)
		q.mu.Unlock()
	}

	now := m.now()
	record := types.CallRecord{
		DateKey:     startedAt.Format("2006-01-02"),
		CallID:      callID,
		QueueID:     queueID,
		AgentID:     agentID,
		Outcome:     string(OutcomeCompleted),
		EnqueueTime: startedAt.Format(time.RFC3339),
		FinishTime:  now.Format(time.RFC3339),
		HandleTime:  handle.Seconds(),
	}
	m.persist(record)
}

// RefreshEstimates recomputes wait estimates for every queue. Agent status
// changes do not pass through the queues, so this runs periodically.
func (m *Manager) RefreshEstimates() {
	for _, q := range m.list() {
		q.mu.Lock()
		q.recompute(m.agents.CountActive(q.cfg.Agents), m.opts.WaitFloor)
		q.mu.Unlock()
	}
}

// Snapshot returns a read-only view of one queue
func (m *Manager) Snapshot(queueID string) (types.CallQueue, error) {
	q, err := m.get(queueID)
	if err != nil {
		return types.CallQueue{}, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snapshot(), nil
}

// GetAll returns views of every queue ordered by ID
func (m *Manager) GetAll() []types.CallQueue {
	queues := m.list()
	out := make([]types.CallQueue, 0, len(queues))
	for _, q := range queues {
		q.mu.Lock()
		out = append(out, q.snapshot())
		q.mu.Unlock()
	}
	return out
}

func (m *Manager) get(queueID string) (*Queue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	q, ok := m.queues[queueID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrQueueNotFound, queueID)
	}
	return q, nil
}

// list returns the queues ordered by ID
func (m *Manager) list() []*Queue {
	m.mu.RLock()
	queues := make([]*Queue, 0, len(m.queues))
	for _, q := range m.queues {
		queues = append(queues, q)
	}
	m.mu.RUnlock()

	sort.Slice(queues, func(i, j int) bool { return queues[i].id < queues[j].id })
	return queues
}

func (m *Manager) record(queueID string, call types.QueuedCall, agentID string, outcome Outcome, finished time.Time, wait time.Duration) types.CallRecord {
	return types.CallRecord{
		DateKey:      call.QueuedAt.Format("2006-01-02"),
		CallID:       call.CallID,
		QueueID:      queueID,
		AgentID:      agentID,
		Outcome:      string(outcome),
		EnqueueTime:  call.QueuedAt.Format(time.RFC3339),
		FinishTime:   finished.Format(time.RFC3339),
		WaitTime:     wait.Seconds(),
		AnsweredInSL: outcome == OutcomeAnswered && wait <= m.opts.SLThreshold,
	}
}

// persist saves a call record asynchronously
func (m *Manager) persist(record types.CallRecord) {
	if m.store == nil {
		return
	}
	go func() {
		if err := m.store.SaveCallRecord(record); err != nil {
			m.logger.Error().Err(err).Str("call_id", record.CallID).Msg("failed to save call record")
		}
	}()
}
