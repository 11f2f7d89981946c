// Package aggregator maintains running queue statistics and agent
// performance aggregates as calls move through the routing engine.
package aggregator

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dennisdiepolder/monti/callrouter/internal/types"
)

var (
	// ErrAlreadyTracked is returned when a call is enqueued twice on the same stats
	ErrAlreadyTracked = errors.New("call already tracked")

	// ErrNotPending is returned when an outcome is recorded for a call that
	// has no pending enqueue, e.g. an answer after an abandonment.
	ErrNotPending = errors.New("call has no pending outcome")
)

// QueueStats holds the running statistics of a single queue.
//
// AverageWaitTime is the mean over answered calls only. Abandoned and
// expired calls never produce a wait sample, so dividing by the total
// call count would pull the mean towards zero as abandonment rises.
type QueueStats struct {
	mu sync.Mutex

	pending     map[string]struct{}
	total       int
	answered    int
	abandoned   int
	waitSamples int
	avgWait     float64 // seconds
	sl          *SLTracker

	ahtSamples int
	aht        float64 // seconds
}

// NewQueueStats creates stats with the given service level answer target
func NewQueueStats(slThreshold time.Duration) *QueueStats {
	return &QueueStats{
		pending: make(map[string]struct{}),
		sl:      NewSLTracker(slThreshold),
	}
}

// RecordEnqueue counts a new call entering the queue
func (s *QueueStats) RecordEnqueue(callID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pending[callID]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyTracked, callID)
	}
	s.pending[callID] = struct{}{}
	s.total++
	return nil
}

// RecordAnswered closes a pending call as answered after waiting for wait
func (s *QueueStats) RecordAnswered(callID string, wait time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.resolve(callID); err != nil {
		return err
	}
	s.answered++
	s.sl.RecordAnswer(wait)

	s.waitSamples++
	s.avgWait += (wait.Seconds() - s.avgWait) / float64(s.waitSamples)
	return nil
}

// RecordAbandoned closes a pending call as abandoned. Callback requests and
// timeouts are counted here as well.
func (s *QueueStats) RecordAbandoned(callID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.resolve(callID); err != nil {
		return err
	}
	s.abandoned++
	return nil
}

// RecordHandleTime feeds a completed call's handle time into the rolling average
func (s *QueueStats) RecordHandleTime(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ahtSamples++
	s.aht += (d.Seconds() - s.aht) / float64(s.ahtSamples)
}

// AverageHandleTime returns the rolling handle time in seconds. Until a
// handle time has been reported it is seeded by the average wait time.
func (s *QueueStats) AverageHandleTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ahtSamples == 0 {
		return s.avgWait
	}
	return s.aht
}

// Snapshot returns the current metrics
func (s *QueueStats) Snapshot() types.QueueMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := types.QueueMetrics{
		TotalCalls:      s.total,
		AnsweredCalls:   s.answered,
		AbandonedCalls:  s.abandoned,
		AverageWaitTime: s.avgWait,
		ServiceLevel:    s.sl.CurrentSL(),
		AnsweredInSL:    s.sl.AnsweredInSL,
	}
	if s.total > 0 {
		m.AbandonmentRate = float64(s.abandoned) / float64(s.total)
	}
	return m
}

func (s *QueueStats) resolve(callID string) error {
	if _, ok := s.pending[callID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotPending, callID)
	}
	delete(s.pending, callID)
	return nil
}

// ApplyCompletion folds a finished call into an agent's performance aggregates
func ApplyCompletion(perf *types.AgentPerformance, outcome types.CallOutcome) {
	perf.CallsToday++
	perf.CallsTotal++
	n := float64(perf.CallsTotal)

	perf.AvgCallTime += (outcome.HandleTime - perf.AvgCallTime) / n
	perf.ResolutionRate += (boolToFloat(outcome.Resolved) - perf.ResolutionRate) / n
	perf.ConversionRate += (boolToFloat(outcome.Converted) - perf.ConversionRate) / n
	if outcome.Satisfaction != nil {
		score := clamp(*outcome.Satisfaction, 0, 10)
		perf.Satisfaction += (score - perf.Satisfaction) / n
	}
}

// Merge combines per-queue metrics into an engine-wide summary
func Merge(queues []types.CallQueue) types.CallMetrics {
	var out types.CallMetrics
	var waitWeighted float64
	var inSL int
	for _, q := range queues {
		out.TotalCalls += q.Metrics.TotalCalls
		out.AnsweredCalls += q.Metrics.AnsweredCalls
		out.AbandonedCalls += q.Metrics.AbandonedCalls
		out.WaitingCalls += len(q.Calls)
		waitWeighted += q.Metrics.AverageWaitTime * float64(q.Metrics.AnsweredCalls)
		inSL += q.Metrics.AnsweredInSL
	}
	out.ServiceLevel = 1.0
	if out.AnsweredCalls > 0 {
		out.AverageWaitTime = waitWeighted / float64(out.AnsweredCalls)
		out.ServiceLevel = float64(inSL) / float64(out.AnsweredCalls)
	}
	if out.TotalCalls > 0 {
		out.AbandonmentRate = float64(out.AbandonedCalls) / float64(out.TotalCalls)
	}
	return out
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
