// Package scoring ranks available agents for a call with a weighted heuristic.
package scoring

import (
	"sort"

	"github.com/dennisdiepolder/monti/callrouter/internal/types"
)

// AssignThreshold is the score an agent must exceed to be assigned directly
const AssignThreshold = 50.0

// Score weights
const (
	availableBonus   = 100.0
	expertBonus      = 30.0
	seniorBonus      = 20.0
	juniorBonus      = 10.0
	skillMatchWeight = 15.0
	satisfactionW    = 5.0
	resolutionW      = 3.0
	workloadPenalty  = 2.0
	preferredBonus   = 50.0
	criticalSupport  = 40.0
)

var requiredSkills = map[types.CallType][]string{
	types.CallTypeSales:     {"sales", "negotiation", "product_knowledge"},
	types.CallTypeSupport:   {"technical_support", "problem_solving", "patience"},
	types.CallTypeComplaint: {"conflict_resolution", "empathy", "escalation_handling"},
	types.CallTypeBooking:   {"logistics", "scheduling", "attention_to_detail"},
	types.CallTypeEmergency: {"crisis_management", "quick_thinking", "authority"},
}

var defaultSkills = []string{"customer_service"}

// RequiredSkills returns the skill tags wanted for a call type
func RequiredSkills(ct types.CallType) []string {
	if skills, ok := requiredSkills[ct]; ok {
		return skills
	}
	return defaultSkills
}

// Candidate is an agent with its computed score
type Candidate struct {
	Agent types.Agent `json:"agent"`
	Score float64     `json:"score"`
}

// Score ranks every available agent for the call. Unavailable agents are
// excluded. Ties go to the agent with fewer calls today, then the lower ID.
func Score(agents []types.Agent, cc types.CallContext) []Candidate {
	required := RequiredSkills(cc.CallType)

	ranked := make([]Candidate, 0, len(agents))
	for _, a := range agents {
		if a.Status != types.StatusAvailable {
			continue
		}
		ranked = append(ranked, Candidate{Agent: a, Score: scoreAgent(&a, cc, required)})
	}

	sort.Slice(ranked, func(i, j int) bool {
		a, b := &ranked[i], &ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Agent.Performance.CallsToday != b.Agent.Performance.CallsToday {
			return a.Agent.Performance.CallsToday < b.Agent.Performance.CallsToday
		}
		return a.Agent.ID < b.Agent.ID
	})
	return ranked
}

func scoreAgent(a *types.Agent, cc types.CallContext, required []string) float64 {
	score := availableBonus

	switch a.Experience {
	case types.ExperienceExpert:
		score += expertBonus
	case types.ExperienceSenior:
		score += seniorBonus
	case types.ExperienceJunior:
		score += juniorBonus
	}

	score += skillMatchWeight * float64(overlap(a.Skills, required))

	score += a.Performance.Satisfaction*satisfactionW + a.Performance.ResolutionRate*resolutionW
	score -= float64(a.Performance.CallsToday) * workloadPenalty

	if cc.PreferredAgentID != "" && cc.PreferredAgentID == a.ID {
		score += preferredBonus
	}
	if cc.Urgency == types.UrgencyCritical && a.HasSpecialty(types.SpecialtySupport) {
		score += criticalSupport
	}
	return score
}

// overlap counts distinct skills present in both sets
func overlap(skills, required []string) int {
	n := 0
	for _, r := range required {
		for _, s := range skills {
			if s == r {
				n++
				break
			}
		}
	}
	return n
}

// Confidence converts a score into a decision confidence
func Confidence(score float64) float64 {
	c := score / 100
	if c > 0.95 {
		return 0.95
	}
	if c < 0 {
		return 0
	}
	return c
}
