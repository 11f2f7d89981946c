package types

import "time"

// AgentStatus represents the current status of an agent
type AgentStatus string

const (
	StatusAvailable AgentStatus = "available"
	StatusBusy      AgentStatus = "busy"
	StatusAway      AgentStatus = "away"
	StatusOffline   AgentStatus = "offline"
)

// Valid reports whether s is a known agent status
func (s AgentStatus) Valid() bool {
	switch s {
	case StatusAvailable, StatusBusy, StatusAway, StatusOffline:
		return true
	}
	return false
}

// Specialty represents the business line an agent specializes in
type Specialty string

const (
	SpecialtySales       Specialty = "sales"
	SpecialtySupport     Specialty = "support"
	SpecialtyCollections Specialty = "collections"
	SpecialtyRetention   Specialty = "retention"
)

// Experience represents an agent's seniority level
type Experience string

const (
	ExperienceJunior Experience = "junior"
	ExperienceSenior Experience = "senior"
	ExperienceExpert Experience = "expert"
)

// AgentPerformance contains running performance aggregates for an agent
type AgentPerformance struct {
	AvgCallTime    float64 `json:"avgCallTime" yaml:"avg_call_time"`       // seconds
	ResolutionRate float64 `json:"resolutionRate" yaml:"resolution_rate"`  // 0-1
	Satisfaction   float64 `json:"satisfaction" yaml:"satisfaction"`       // 0-10
	ConversionRate float64 `json:"conversionRate" yaml:"conversion_rate"`  // 0-1
	CallsToday     int     `json:"callsToday" yaml:"calls_today"`
	CallsTotal     int     `json:"callsTotal" yaml:"calls_total"`
}

// CurrentCall is a back-reference to the call an agent is handling
type CurrentCall struct {
	CallID    string    `json:"callId"`
	StartedAt time.Time `json:"startedAt"`
}

// Agent represents one human call-taker
type Agent struct {
	ID          string           `json:"id" yaml:"id"`
	Name        string           `json:"name" yaml:"name"`
	Email       string           `json:"email,omitempty" yaml:"email"`
	Phone       string           `json:"phone,omitempty" yaml:"phone"`
	Extension   string           `json:"extension,omitempty" yaml:"extension"`
	Status      AgentStatus      `json:"status" yaml:"status"`
	Skills      []string         `json:"skills" yaml:"skills"`
	Specialties []Specialty      `json:"specialties" yaml:"specialties"`
	Experience  Experience       `json:"experience" yaml:"experience"`
	Performance AgentPerformance `json:"performance" yaml:"performance"`
	CurrentCall *CurrentCall     `json:"currentCall,omitempty" yaml:"-"`
	StatusSince time.Time        `json:"statusSince" yaml:"-"`
}

// HasSpecialty reports whether the agent lists the given specialty
func (a *Agent) HasSpecialty(s Specialty) bool {
	for _, sp := range a.Specialties {
		if sp == s {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the agent safe to hand to readers
func (a *Agent) Clone() Agent {
	c := *a
	c.Skills = append([]string(nil), a.Skills...)
	c.Specialties = append([]Specialty(nil), a.Specialties...)
	if a.CurrentCall != nil {
		cc := *a.CurrentCall
		c.CurrentCall = &cc
	}
	return c
}

// CallOutcome is reported by the telephony collaborator when an agent finishes a call
type CallOutcome struct {
	CallID       string   `json:"callId,omitempty"`
	HandleTime   float64  `json:"handleTime"` // seconds
	Resolved     bool     `json:"resolved"`
	Converted    bool     `json:"converted"`
	Satisfaction *float64 `json:"satisfaction,omitempty"` // 0-10, optional survey score
}

// AlertSeverity represents the severity of an invariant alert
type AlertSeverity string

const (
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// Alert represents an inconsistency detected in agent or queue state
type Alert struct {
	Rule     string        `json:"rule"`
	Severity AlertSeverity `json:"severity"`
	Subject  string        `json:"subject"`
	Message  string        `json:"message"`
}
