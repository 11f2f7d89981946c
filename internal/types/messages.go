package types

import "time"

// DecisionEvent is pushed to dashboards whenever the engine produces a decision
type DecisionEvent struct {
	Type      string          `json:"type"`    // "decision"
	Trigger   string          `json:"trigger"` // route, drain, timeout, callback
	Decision  RoutingDecision `json:"decision"`
	Timestamp time.Time       `json:"timestamp"`
}

// Snapshot is the periodic payload sent to dashboards
type Snapshot struct {
	Type      string      `json:"type"` // always "snapshot"
	Timestamp time.Time   `json:"timestamp"`
	Agents    []Agent     `json:"agents"`
	Queues    []CallQueue `json:"queues"`
	Metrics   CallMetrics `json:"metrics"`
	Alerts    []Alert     `json:"alerts,omitempty"`
}
