package types

import "time"

// MaxAlternatives caps the alternative options attached to a decision
const MaxAlternatives = 3

// Action is the outcome of a routing decision
type Action string

const (
	ActionRouteToAgent Action = "route_to_agent"
	ActionQueue        Action = "queue"
	ActionVoicemail    Action = "voicemail"
	ActionCallback     Action = "callback"
	ActionTransfer     Action = "transfer"
)

// RoutingDecision is the engine's output for one call event
type RoutingDecision struct {
	CallID             string            `json:"callId"`
	Action             Action            `json:"action"`
	TargetAgentID      string            `json:"targetAgentId,omitempty"`
	TargetQueueID      string            `json:"targetQueueId,omitempty"`
	Position           int               `json:"position,omitempty"` // 1-based queue position
	Priority           int               `json:"priority"`
	EstimatedWaitTime  float64           `json:"estimatedWaitTime"` // seconds
	Reason             string            `json:"reason"`
	Confidence         float64           `json:"confidence"` // 0-1
	RuleID             string            `json:"ruleId,omitempty"`
	AlternativeOptions []RoutingDecision `json:"alternativeOptions,omitempty"`
	DecidedAt          time.Time         `json:"decidedAt"`
}

// WithAlternative appends an alternative while respecting MaxAlternatives
func (d RoutingDecision) WithAlternative(alt RoutingDecision) RoutingDecision {
	if len(d.AlternativeOptions) >= MaxAlternatives {
		return d
	}
	alt.AlternativeOptions = nil
	d.AlternativeOptions = append(d.AlternativeOptions, alt)
	return d
}
