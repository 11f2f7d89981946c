package types

// CallRecord represents a finished call lifecycle for DynamoDB persistence
type CallRecord struct {
	DateKey      string  `json:"dateKey" dynamodbav:"DateKey"` // YYYY-MM-DD (partition key)
	CallID       string  `json:"callId" dynamodbav:"CallID"`   // sort key
	QueueID      string  `json:"queueId" dynamodbav:"QueueID"`
	AgentID      string  `json:"agentId" dynamodbav:"AgentID"`
	Outcome      string  `json:"outcome" dynamodbav:"Outcome"`           // answered, abandoned, callback, timeout, completed
	EnqueueTime  string  `json:"enqueueTime" dynamodbav:"EnqueueTime"`   // RFC3339
	FinishTime   string  `json:"finishTime" dynamodbav:"FinishTime"`     // RFC3339
	WaitTime     float64 `json:"waitTime" dynamodbav:"WaitTime"`         // seconds
	HandleTime   float64 `json:"handleTime" dynamodbav:"HandleTime"`     // seconds
	AnsweredInSL bool    `json:"answeredInSL" dynamodbav:"AnsweredInSL"`
}

// DecisionRecord represents one routing decision for DynamoDB persistence
type DecisionRecord struct {
	DateKey       string  `json:"dateKey" dynamodbav:"DateKey"`   // YYYY-MM-DD (partition key)
	DecisionID    string  `json:"decisionId" dynamodbav:"DecisionID"` // sort key: RFC3339Nano#callID
	CallID        string  `json:"callId" dynamodbav:"CallID"`
	Action        string  `json:"action" dynamodbav:"Action"`
	TargetAgentID string  `json:"targetAgentId" dynamodbav:"TargetAgentID"`
	TargetQueueID string  `json:"targetQueueId" dynamodbav:"TargetQueueID"`
	RuleID        string  `json:"ruleId" dynamodbav:"RuleID"`
	Confidence    float64 `json:"confidence" dynamodbav:"Confidence"`
	Reason        string  `json:"reason" dynamodbav:"Reason"`
	DecidedAt     string  `json:"decidedAt" dynamodbav:"DecidedAt"` // RFC3339
}

// AgentDailyStats is an agent's performance captured at the daily reset
type AgentDailyStats struct {
	AgentID        string  `json:"agentId" dynamodbav:"AgentID"` // partition key
	Date           string  `json:"date" dynamodbav:"Date"`       // YYYY-MM-DD (sort key)
	Name           string  `json:"name" dynamodbav:"Name"`
	CallsHandled   int     `json:"callsHandled" dynamodbav:"CallsHandled"`
	CallsTotal     int     `json:"callsTotal" dynamodbav:"CallsTotal"`
	AvgCallTime    float64 `json:"avgCallTime" dynamodbav:"AvgCallTime"` // seconds
	ResolutionRate float64 `json:"resolutionRate" dynamodbav:"ResolutionRate"`
	Satisfaction   float64 `json:"satisfaction" dynamodbav:"Satisfaction"`
	ConversionRate float64 `json:"conversionRate" dynamodbav:"ConversionRate"`
}
