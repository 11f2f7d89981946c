package types

import "time"

// CallType represents the reason for a call
type CallType string

const (
	CallTypeSales     CallType = "sales"
	CallTypeSupport   CallType = "support"
	CallTypeComplaint CallType = "complaint"
	CallTypeBooking   CallType = "booking"
	CallTypeEmergency CallType = "emergency"
	CallTypeGeneral   CallType = "general"
)

// Urgency represents how quickly a call should be answered
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// CustomerTier represents the commercial tier of a caller
type CustomerTier string

const (
	TierBronze   CustomerTier = "bronze"
	TierSilver   CustomerTier = "silver"
	TierGold     CustomerTier = "gold"
	TierPlatinum CustomerTier = "platinum"
)

// CallerType classifies the caller relationship
type CallerType string

const (
	CallerNew      CallerType = "new"
	CallerExisting CallerType = "existing"
	CallerPartner  CallerType = "partner"
	CallerVendor   CallerType = "vendor"
)

// CallerProfile is supplied by the CRM collaborator
type CallerProfile struct {
	Name                 string       `json:"name,omitempty"`
	Phone                string       `json:"phone,omitempty"`
	Type                 CallerType   `json:"type,omitempty"`
	Tier                 CustomerTier `json:"tier,omitempty"`
	PreviousInteractions int          `json:"previousInteractions,omitempty"`
	CustomerValue        float64      `json:"customerValue,omitempty"`
	PreviousAgentID      string       `json:"previousAgentId,omitempty"`
	Language             string       `json:"language,omitempty"`
}

// CallContext describes an inbound or outbound call event to be routed
type CallContext struct {
	CallID           string        `json:"callId,omitempty"`
	CallerID         string        `json:"callerId"`
	Caller           CallerProfile `json:"caller"`
	CallType         CallType      `json:"callType"`
	Urgency          Urgency       `json:"urgency"`
	PreferredAgentID string        `json:"preferredAgentId,omitempty"`
	Source           string        `json:"source,omitempty"` // inbound, outbound, callback
	Notes            string        `json:"notes,omitempty"`
	ReceivedAt       time.Time     `json:"receivedAt,omitempty"`
}

// UrgencyPriority maps an urgency to a queue priority (1 = most urgent)
func UrgencyPriority(u Urgency) int {
	switch u {
	case UrgencyCritical:
		return 1
	case UrgencyHigh:
		return 2
	case UrgencyMedium:
		return 3
	case UrgencyLow:
		return 4
	default:
		return 5
	}
}

// QueueType represents the kind of wait queue
type QueueType string

const (
	QueueSales     QueueType = "sales"
	QueueSupport   QueueType = "support"
	QueueGeneral   QueueType = "general"
	QueueVIP       QueueType = "vip"
	QueueEmergency QueueType = "emergency"
)

// CallMetadata carries call attributes kept alongside a queued call
type CallMetadata struct {
	CallType        CallType `json:"callType"`
	Urgency         Urgency  `json:"urgency"`
	Source          string   `json:"source,omitempty"`
	PreviousAgentID string   `json:"previousAgentId,omitempty"`
	Notes           string   `json:"notes,omitempty"`
}

// QueuedCall represents one call waiting in a queue
type QueuedCall struct {
	CallID            string         `json:"callId"`
	CallerID          string         `json:"callerId"`
	Priority          int            `json:"priority"` // 1 (highest) .. 5 (lowest)
	QueuedAt          time.Time      `json:"queuedAt"`
	EstimatedWaitTime float64        `json:"estimatedWaitTime"` // seconds
	CallbackRequested bool           `json:"callbackRequested"`
	MaxWaitTime       float64        `json:"maxWaitTime"` // seconds
	FallbackAction    FallbackAction `json:"fallbackAction"`
	RuleID            string         `json:"ruleId,omitempty"`
	Metadata          CallMetadata   `json:"metadata"`
}

// QueueMetrics holds running statistics for a queue
type QueueMetrics struct {
	TotalCalls      int     `json:"totalCalls"`
	AnsweredCalls   int     `json:"answeredCalls"`
	AbandonedCalls  int     `json:"abandonedCalls"`
	AverageWaitTime float64 `json:"averageWaitTime"` // seconds
	AbandonmentRate float64 `json:"abandonmentRate"` // 0-1
	ServiceLevel    float64 `json:"serviceLevel"`    // 0-1
	AnsweredInSL    int     `json:"answeredInSL"`
}

// CallQueue is a read-only view of a wait queue
type CallQueue struct {
	ID                string       `json:"id"`
	Name              string       `json:"name"`
	Type              QueueType    `json:"type"`
	MaxSize           int          `json:"maxSize"`
	IsActive          bool         `json:"isActive"`
	Agents            []string     `json:"agents"`
	Calls             []QueuedCall `json:"calls"`
	Metrics           QueueMetrics `json:"metrics"`
	EstimatedWaitTime float64      `json:"estimatedWaitTime"` // seconds
}

// Full reports whether the queue has reached capacity
func (q CallQueue) Full() bool {
	return len(q.Calls) >= q.MaxSize
}

// CallMetrics summarizes routing activity across all queues and agents
type CallMetrics struct {
	TotalCalls      int                 `json:"totalCalls"`
	WaitingCalls    int                 `json:"waitingCalls"`
	AnsweredCalls   int                 `json:"answeredCalls"`
	AbandonedCalls  int                 `json:"abandonedCalls"`
	AverageWaitTime float64             `json:"averageWaitTime"`
	AbandonmentRate float64             `json:"abandonmentRate"`
	ServiceLevel    float64             `json:"serviceLevel"`
	AgentsByStatus  map[AgentStatus]int `json:"agentsByStatus"`
	Timestamp       time.Time           `json:"timestamp"`
}
