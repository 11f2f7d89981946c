package aggregator

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/dennisdiepolder/monti/callrouter/internal/types"
)

func TestServiceLevelCalculation(t *testing.T) {
	sl := NewSLTracker(20 * time.Second)

	// No calls yet - SL should be 1.0
	if sl.CurrentSL() != 1.0 {
		t.Errorf("expected SL 1.0 with no calls, got %.2f", sl.CurrentSL())
	}

	// 4 calls answered in SL, 1 outside
	sl.RecordAnswer(10 * time.Second)
	sl.RecordAnswer(15 * time.Second)
	sl.RecordAnswer(19 * time.Second)
	sl.RecordAnswer(20 * time.Second) // exactly at threshold, counts as in SL
	sl.RecordAnswer(25 * time.Second)

	if sl.CurrentSL() != 0.8 {
		t.Errorf("expected SL 0.8, got %.2f", sl.CurrentSL())
	}
	if sl.AnsweredInSL != 4 {
		t.Errorf("expected 4 answered in SL, got %d", sl.AnsweredInSL)
	}
	if sl.TotalAnswered != 5 {
		t.Errorf("expected 5 total answered, got %d", sl.TotalAnswered)
	}
}

func TestQueueStatsRunningMean(t *testing.T) {
	s := NewQueueStats(60 * time.Second)

	for _, id := range []string{"c1", "c2", "c3"} {
		if err := s.RecordEnqueue(id); err != nil {
			t.Fatalf("enqueue %s: %v", id, err)
		}
	}
	if err := s.RecordAnswered("c1", 30*time.Second); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordAnswered("c2", 90*time.Second); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordAbandoned("c3"); err != nil {
		t.Fatal(err)
	}

	m := s.Snapshot()
	if m.TotalCalls != 3 {
		t.Errorf("expected 3 total calls, got %d", m.TotalCalls)
	}
	// the abandoned call does not dilute the mean: (30+90)/2, not /3
	if m.AverageWaitTime != 60 {
		t.Errorf("expected average wait 60s, got %.2f", m.AverageWaitTime)
	}
	if math.Abs(m.AbandonmentRate-1.0/3.0) > 1e-9 {
		t.Errorf("expected abandonment rate 1/3, got %.4f", m.AbandonmentRate)
	}
	if m.ServiceLevel != 0.5 {
		t.Errorf("expected service level 0.5, got %.2f", m.ServiceLevel)
	}
}

func TestQueueStatsRejectsDoubleRecording(t *testing.T) {
	s := NewQueueStats(60 * time.Second)
	s.RecordEnqueue("c1")

	if err := s.RecordAbandoned("c1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.RecordAnswered("c1", time.Second); !errors.Is(err, ErrNotPending) {
		t.Errorf("expected ErrNotPending for answer after abandon, got %v", err)
	}
	if err := s.RecordAbandoned("c1"); !errors.Is(err, ErrNotPending) {
		t.Errorf("expected ErrNotPending for second abandon, got %v", err)
	}

	m := s.Snapshot()
	if m.AbandonedCalls != 1 || m.AnsweredCalls != 0 {
		t.Errorf("expected exactly one outcome, got answered=%d abandoned=%d", m.AnsweredCalls, m.AbandonedCalls)
	}
}

func TestQueueStatsDuplicateEnqueue(t *testing.T) {
	s := NewQueueStats(time.Minute)
	s.RecordEnqueue("c1")
	if err := s.RecordEnqueue("c1"); !errors.Is(err, ErrAlreadyTracked) {
		t.Errorf("expected ErrAlreadyTracked, got %v", err)
	}
	if s.Snapshot().TotalCalls != 1 {
		t.Errorf("duplicate enqueue must not be counted")
	}
}

func TestAverageHandleTimeSeededByWait(t *testing.T) {
	s := NewQueueStats(time.Minute)
	if s.AverageHandleTime() != 0 {
		t.Errorf("expected zero handle time on empty stats")
	}

	s.RecordEnqueue("c1")
	s.RecordAnswered("c1", 40*time.Second)
	if s.AverageHandleTime() != 40 {
		t.Errorf("expected handle time seeded by wait (40), got %.2f", s.AverageHandleTime())
	}

	s.RecordHandleTime(120 * time.Second)
	s.RecordHandleTime(180 * time.Second)
	if s.AverageHandleTime() != 150 {
		t.Errorf("expected rolling handle time 150, got %.2f", s.AverageHandleTime())
	}
}

func TestApplyCompletion(t *testing.T) {
	perf := types.AgentPerformance{}
	sat := 8.0

	ApplyCompletion(&perf, types.CallOutcome{HandleTime: 100, Resolved: true, Satisfaction: &sat})
	ApplyCompletion(&perf, types.CallOutcome{HandleTime: 200, Resolved: false, Converted: true})

	if perf.CallsToday != 2 || perf.CallsTotal != 2 {
		t.Errorf("expected 2 calls today and total, got %d/%d", perf.CallsToday, perf.CallsTotal)
	}
	if perf.AvgCallTime != 150 {
		t.Errorf("expected avg call time 150, got %.2f", perf.AvgCallTime)
	}
	if perf.ResolutionRate != 0.5 {
		t.Errorf("expected resolution rate 0.5, got %.2f", perf.ResolutionRate)
	}
	if perf.ConversionRate != 0.5 {
		t.Errorf("expected conversion rate 0.5, got %.2f", perf.ConversionRate)
	}
	if perf.Satisfaction != 8 {
		t.Errorf("expected satisfaction 8, got %.2f", perf.Satisfaction)
	}
}
