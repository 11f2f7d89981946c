package callqueue

import (
	"math"
	"sync"
	"time"

	"github.com/dennisdiepolder/monti/callrouter/internal/aggregator"
	"github.com/dennisdiepolder/monti/callrouter/internal/types"
)

// Queue is a capacity-bounded priority queue of waiting calls. Calls are
// kept sorted by (priority, queuedAt) so equal priorities preserve arrival
// order. All mutations are serialized by the queue's own lock.
type Queue struct {
	id string // fixed at construction, readable without mu

	mu       sync.Mutex
	cfg      Config
	calls    []types.QueuedCall
	stats    *aggregator.QueueStats
	estimate float64 // seconds
}

// NewQueue creates an empty queue
func NewQueue(cfg Config, slThreshold time.Duration) *Queue {
	return &Queue{
		id:    cfg.ID,
		cfg:   cfg,
		calls: make([]types.QueuedCall, 0),
		stats: aggregator.NewQueueStats(slThreshold),
	}
}

// insert places the call in priority order and returns its 1-based position.
// Callers must hold q.mu.
func (q *Queue) insert(call types.QueuedCall) int {
	i := len(q.calls)
	for j, c := range q.calls {
		if c.Priority > call.Priority || (c.Priority == call.Priority && c.QueuedAt.After(call.QueuedAt)) {
			i = j
			break
		}
	}
	q.calls = append(q.calls, types.QueuedCall{})
	copy(q.calls[i+1:], q.calls[i:])
	q.calls[i] = call
	return i + 1
}

// take removes the call at index i. Callers must hold q.mu.
func (q *Queue) take(i int) types.QueuedCall {
	call := q.calls[i]
	q.calls = append(q.calls[:i], q.calls[i+1:]...)
	return call
}

func (q *Queue) indexOf(callID string) int {
	for i, c := range q.calls {
		if c.CallID == callID {
			return i
		}
	}
	return -1
}

// recompute refreshes the wait estimate of the queue and of every waiting
// call. Callers must hold q.mu.
func (q *Queue) recompute(activeAgents int, floor time.Duration) {
	agents := math.Max(1, float64(activeAgents))
	aht := q.stats.AverageHandleTime()

	q.estimate = math.Max(floor.Seconds(), float64(len(q.calls))/agents*aht)
	for i := range q.calls {
		q.calls[i].EstimatedWaitTime = math.Max(floor.Seconds(), float64(i+1)/agents*aht)
	}
}

// snapshot returns a read-only copy. Callers must hold q.mu.
func (q *Queue) snapshot() types.CallQueue {
	calls := make([]types.QueuedCall, len(q.calls))
	copy(calls, q.calls)
	return types.CallQueue{
		ID:                q.id,
		Name:              q.cfg.Name,
		Type:              q.cfg.Type,
		MaxSize:           q.cfg.MaxSize,
		IsActive:          q.cfg.Active,
		Agents:            append([]string(nil), q.cfg.Agents...),
		Calls:             calls,
		Metrics:           q.stats.Snapshot(),
		EstimatedWaitTime: q.estimate,
	}
}
