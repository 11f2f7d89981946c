package simulator

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/dennisdiepolder/monti/callrouter/internal/types"
	"github.com/google/uuid"
)

type weighted[T any] struct {
	value  T
	weight int
}

var (
	// 30% sales, 35% support, 20% collections, 15% retention
	specialtyWeights = []weighted[types.Specialty]{
		{types.SpecialtySales, 30},
		{types.SpecialtySupport, 35},
		{types.SpecialtyCollections, 20},
		{types.SpecialtyRetention, 15},
	}
	experienceWeights = []weighted[types.Experience]{
		{types.ExperienceJunior, 50},
		{types.ExperienceSenior, 35},
		{types.ExperienceExpert, 15},
	}
	callTypeWeights = []weighted[types.CallType]{
		{types.CallTypeSales, 30},
		{types.CallTypeSupport, 35},
		{types.CallTypeComplaint, 10},
		{types.CallTypeBooking, 15},
		{types.CallTypeGeneral, 9},
		{types.CallTypeEmergency, 1},
	}
	urgencyWeights = []weighted[types.Urgency]{
		{types.UrgencyLow, 40},
		{types.UrgencyMedium, 35},
		{types.UrgencyHigh, 20},
		{types.UrgencyCritical, 5},
	}
	tierWeights = []weighted[types.CustomerTier]{
		{types.TierBronze, 50},
		{types.TierSilver, 30},
		{types.TierGold, 15},
		{types.TierPlatinum, 5},
	}
)

var skillsBySpecialty = map[types.Specialty][]string{
	types.SpecialtySales:       {"sales", "booking"},
	types.SpecialtySupport:     {"support", "customer_service", "technical"},
	types.SpecialtyCollections: {"billing", "collections"},
	types.SpecialtyRetention:   {"retention", "complaint", "customer_service"},
}

// Generator creates fake agents and calls with realistic distributions.
// It is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator creates a generator. The same seed yields the same sequence.
func NewGenerator(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// Agents creates count available agents with IDs AGT-00001 onwards
func (g *Generator) Agents(count int) []types.Agent {
	g.mu.Lock()
	defer g.mu.Unlock()

	agents := make([]types.Agent, count)
	for i := range agents {
		sp := pick(g.rng, specialtyWeights)
		agents[i] = types.Agent{
			ID:          fmt.Sprintf("AGT-%05d", i+1),
			Name:        fmt.Sprintf("Agent %d", i+1),
			Extension:   fmt.Sprintf("%04d", 1000+i),
			Status:      types.StatusAvailable,
			Skills:      append([]string(nil), skillsBySpecialty[sp]...),
			Specialties: []types.Specialty{sp},
			Experience:  pick(g.rng, experienceWeights),
			Performance: types.AgentPerformance{
				AvgCallTime:    180 + g.rng.Float64()*240,
				ResolutionRate: 0.6 + g.rng.Float64()*0.35,
				Satisfaction:   6 + g.rng.Float64()*4,
				ConversionRate: 0.1 + g.rng.Float64()*0.3,
			},
		}
	}
	return agents
}

// Call creates an inbound call from a random caller
func (g *Generator) Call() types.CallContext {
	g.mu.Lock()
	defer g.mu.Unlock()

	tier := pick(g.rng, tierWeights)
	callerType := types.CallerExisting
	if g.rng.Intn(4) == 0 {
		callerType = types.CallerNew
	}

	return types.CallContext{
		CallID:   uuid.New().String(),
		CallerID: fmt.Sprintf("+4930%07d", g.rng.Intn(10_000_000)),
		Caller: types.CallerProfile{
			Type:                 callerType,
			Tier:                 tier,
			PreviousInteractions: g.rng.Intn(10),
			CustomerValue:        float64(g.rng.Intn(50_000)),
		},
		CallType:   pick(g.rng, callTypeWeights),
		Urgency:    pick(g.rng, urgencyWeights),
		Source:     "inbound",
		ReceivedAt: time.Now().UTC(),
	}
}

// Outcome draws a completion result for a call that lasted handleTime
func (g *Generator) Outcome(callID string, handleTime time.Duration) types.CallOutcome {
	g.mu.Lock()
	defer g.mu.Unlock()

	sat := 5 + g.rng.Float64()*5
	return types.CallOutcome{
		CallID:       callID,
		HandleTime:   handleTime.Seconds(),
		Resolved:     g.rng.Float64() < 0.8,
		Converted:    g.rng.Float64() < 0.25,
		Satisfaction: &sat,
	}
}

// Jitter returns d varied by +/-25%
func (g *Generator) Jitter(d time.Duration) time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()

	return d + time.Duration(float64(d)*(g.rng.Float64()*0.5-0.25))
}

// Chance reports true with probability p
func (g *Generator) Chance(p float64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.rng.Float64() < p
}

func pick[T any](rng *rand.Rand, items []weighted[T]) T {
	total := 0
	for _, it := range items {
		total += it.weight
	}
	choice := rng.Intn(total)
	for _, it := range items {
		choice -= it.weight
		if choice < 0 {
			return it.value
		}
	}
	return items[len(items)-1].value
}
