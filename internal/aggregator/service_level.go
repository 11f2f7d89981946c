package aggregator

import "time"

// SLTracker tracks service level for a queue
type SLTracker struct {
	Threshold     time.Duration // answer target (e.g., 60s)
	AnsweredInSL  int           // calls answered within threshold
	TotalAnswered int           // total calls answered
}

// NewSLTracker creates a new SL tracker with the given answer target
func NewSLTracker(threshold time.Duration) *SLTracker {
	return &SLTracker{
		Threshold: threshold,
	}
}

// RecordAnswer records a call being answered after waiting for wait
func (s *SLTracker) RecordAnswer(wait time.Duration) {
	s.TotalAnswered++
	if wait <= s.Threshold {
		s.AnsweredInSL++
	}
}

// CurrentSL returns the fraction of answered calls within threshold
func (s *SLTracker) CurrentSL() float64 {
	if s.TotalAnswered == 0 {
		return 1.0 // nothing answered late yet
	}
	return float64(s.AnsweredInSL) / float64(s.TotalAnswered)
}
