package types

import "time"

// TargetKind is the kind of destination a routing rule sends a call to
type TargetKind string

const (
	TargetAgent     TargetKind = "agent"
	TargetQueue     TargetKind = "queue"
	TargetVoicemail TargetKind = "voicemail"
	TargetCallback  TargetKind = "callback"
)

// FallbackAction is applied when a queued call exceeds its max wait time
type FallbackAction string

const (
	FallbackVoicemail FallbackAction = "voicemail"
	FallbackCallback  FallbackAction = "callback"
	FallbackTransfer  FallbackAction = "transfer"
)

// DayOfWeek is a lowercase English weekday name
type DayOfWeek string

const (
	Sunday    DayOfWeek = "sunday"
	Monday    DayOfWeek = "monday"
	Tuesday   DayOfWeek = "tuesday"
	Wednesday DayOfWeek = "wednesday"
	Thursday  DayOfWeek = "thursday"
	Friday    DayOfWeek = "friday"
	Saturday  DayOfWeek = "saturday"
)

// DayOf converts a time.Weekday to a DayOfWeek
func DayOf(d time.Weekday) DayOfWeek {
	return [...]DayOfWeek{Sunday, Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}[d]
}

// TimeWindow is an inclusive HH:MM window in the router's reference timezone.
// A window whose start is after its end wraps past midnight.
type TimeWindow struct {
	Start string `json:"start" yaml:"start"`
	End   string `json:"end" yaml:"end"`
}

// ValueRange is an inclusive customer value range; nil bounds are open
type ValueRange struct {
	Min *float64 `json:"min,omitempty" yaml:"min"`
	Max *float64 `json:"max,omitempty" yaml:"max"`
}

// RuleConditions are optional predicates; zero values act as wildcards
type RuleConditions struct {
	CallerType      CallerType   `json:"callerType,omitempty" yaml:"caller_type"`
	CustomerTier    CustomerTier `json:"customerTier,omitempty" yaml:"customer_tier"`
	CallType        CallType     `json:"callType,omitempty" yaml:"call_type"`
	TimeWindow      *TimeWindow  `json:"timeWindow,omitempty" yaml:"time_window"`
	DaysOfWeek      []DayOfWeek  `json:"daysOfWeek,omitempty" yaml:"days_of_week"`
	CustomerValue   *ValueRange  `json:"customerValue,omitempty" yaml:"customer_value"`
	PreviousAgentID string       `json:"previousAgentId,omitempty" yaml:"previous_agent_id"`
	Language        string       `json:"language,omitempty" yaml:"language"`
}

// RuleActions describe what happens when a rule matches
type RuleActions struct {
	Target         TargetKind     `json:"target" yaml:"target"`
	TargetID       string         `json:"targetId,omitempty" yaml:"target_id"`
	Priority       int            `json:"priority" yaml:"priority"`           // 1 (highest) .. 5 (lowest)
	MaxWaitTime    float64        `json:"maxWaitTime" yaml:"max_wait_time"`   // seconds, 0 = system default
	FallbackAction FallbackAction `json:"fallbackAction" yaml:"fallback_action"`
}

// RoutingRule is a priority-ordered predicate to action mapping
type RoutingRule struct {
	ID         string         `json:"id" yaml:"id"`
	Name       string         `json:"name" yaml:"name"`
	Priority   int            `json:"priority" yaml:"priority"` // lower is evaluated first
	Conditions RuleConditions `json:"conditions" yaml:"conditions"`
	Actions    RuleActions    `json:"actions" yaml:"actions"`
	IsActive   bool           `json:"isActive" yaml:"active"`
	CreatedAt  time.Time      `json:"createdAt" yaml:"created_at"`
}
