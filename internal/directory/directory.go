// Package directory holds agent records and their status transitions.
//
// Every agent is guarded by its own mutex so that reserving one agent never
// contends with another. The directory-level lock only protects membership.
package directory

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dennisdiepolder/monti/callrouter/internal/aggregator"
	"github.com/dennisdiepolder/monti/callrouter/internal/types"
)

var (
	ErrAgentNotFound     = errors.New("agent not found")
	ErrAgentUnavailable  = errors.New("agent not available")
	ErrCallInProgress    = errors.New("agent has a call in progress")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidStatus     = errors.New("invalid agent status")
	ErrCallMismatch      = errors.New("agent is not handling that call")
	ErrMissingID         = errors.New("agent id is required")
)

type entry struct {
	mu    sync.Mutex
	agent types.Agent
}

// Directory maintains the current state of all agents
type Directory struct {
	agents map[string]*entry // agentID -> record
	mu     sync.RWMutex
	now    func() time.Time
}

// New creates an empty agent directory
func New() *Directory {
	return &Directory{
		agents: make(map[string]*entry),
		now:    time.Now,
	}
}

// SetClock overrides the time source (tests)
func (d *Directory) SetClock(now func() time.Time) {
	d.now = now
}

// Register adds or replaces an agent record. An agent cannot be registered
// as busy since busy is only reachable through Reserve.
func (d *Directory) Register(agent types.Agent) error {
	if agent.ID == "" {
		return ErrMissingID
	}
	if agent.Status == "" {
		agent.Status = types.StatusOffline
	}
	if !agent.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, agent.Status)
	}
	if agent.Status == types.StatusBusy {
		return fmt.Errorf("%w: cannot register %s as busy", ErrInvalidTransition, agent.ID)
	}

	agent = agent.Clone()
	agent.CurrentCall = nil
	agent.StatusSince = d.now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if existing, ok := d.agents[agent.ID]; ok {
		existing.mu.Lock()
		defer existing.mu.Unlock()
		if existing.agent.CurrentCall != nil {
			return fmt.Errorf("%w: %s", ErrCallInProgress, agent.ID)
		}
		existing.agent = agent
		return nil
	}

	d.agents[agent.ID] = &entry{agent: agent}
	return nil
}

// UpdateProfile replaces an agent's descriptive fields while keeping its
// live status, performance and current call
func (d *Directory) UpdateProfile(agent types.Agent) error {
	e, err := d.lookup(agent.ID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	a := &e.agent
	a.Name = agent.Name
	a.Email = agent.Email
	a.Phone = agent.Phone
	a.Extension = agent.Extension
	a.Skills = append([]string(nil), agent.Skills...)
	a.Specialties = append([]types.Specialty(nil), agent.Specialties...)
	a.Experience = agent.Experience
	return nil
}

// Reserve atomically claims an available agent for a call. It succeeds only
// if the agent's status is exactly available at the moment of the swap.
func (d *Directory) Reserve(agentID, callID string) error {
	e, err := d.lookup(agentID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.agent.Status != types.StatusAvailable {
		return fmt.Errorf("%w: %s is %s", ErrAgentUnavailable, agentID, e.agent.Status)
	}

	now := d.now()
	e.agent.Status = types.StatusBusy
	e.agent.StatusSince = now
	e.agent.CurrentCall = &types.CurrentCall{CallID: callID, StartedAt: now}
	return nil
}

// Release frees an agent from its current call. When outcome is non-nil the
// agent's performance aggregates are updated. callID may be empty to release
// whatever call the agent holds.
func (d *Directory) Release(agentID, callID string, outcome *types.CallOutcome) (types.Agent, error) {
	e, err := d.lookup(agentID)
	if err != nil {
		return types.Agent{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.agent.CurrentCall
	if cur == nil {
		return types.Agent{}, fmt.Errorf("%w: %s has no current call", ErrCallMismatch, agentID)
	}
	if callID != "" && cur.CallID != callID {
		return types.Agent{}, fmt.Errorf("%w: %s is on %s, not %s", ErrCallMismatch, agentID, cur.CallID, callID)
	}

	if outcome != nil {
		aggregator.ApplyCompletion(&e.agent.Performance, *outcome)
	}
	released := e.agent.Clone()

	e.agent.CurrentCall = nil
	e.agent.Status = types.StatusAvailable
	e.agent.StatusSince = d.now()
	return released, nil
}

// UpdateStatus applies a manual status change. Moving into busy is only
// possible through Reserve, and an agent holding a call cannot leave busy
// until the call is released.
func (d *Directory) UpdateStatus(agentID string, status types.AgentStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	e, err := d.lookup(agentID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.agent.CurrentCall != nil {
		if status == types.StatusBusy {
			return nil
		}
		return fmt.Errorf("%w: %s is on %s", ErrCallInProgress, agentID, e.agent.CurrentCall.CallID)
	}
	if status == types.StatusBusy {
		return fmt.Errorf("%w: %s cannot be set busy without a call", ErrInvalidTransition, agentID)
	}

	if e.agent.Status != status {
		e.agent.Status = status
		e.agent.StatusSince = d.now()
	}
	return nil
}

// Get returns a snapshot of one agent
func (d *Directory) Get(agentID string) (types.Agent, error) {
	e, err := d.lookup(agentID)
	if err != nil {
		return types.Agent{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.agent.Clone(), nil
}

// GetAll returns snapshots of all agents ordered by ID
func (d *Directory) GetAll() []types.Agent {
	return d.filter(func(*types.Agent) bool { return true })
}

// GetAvailable returns snapshots of agents whose status is available
func (d *Directory) GetAvailable() []types.Agent {
	return d.filter(func(a *types.Agent) bool {
		return a.Status == types.StatusAvailable
	})
}

// CountActive returns how many of the given agents are working (available or
// busy). An empty id list counts every working agent.
func (d *Directory) CountActive(ids []string) int {
	active := func(a *types.Agent) bool {
		return a.Status == types.StatusAvailable || a.Status == types.StatusBusy
	}
	if len(ids) == 0 {
		return len(d.filter(active))
	}

	count := 0
	for _, id := range ids {
		e, err := d.lookup(id)
		if err != nil {
			continue
		}
		e.mu.Lock()
		if active(&e.agent) {
			count++
		}
		e.mu.Unlock()
	}
	return count
}

// ResetDaily zeroes every agent's calls-handled-today counter
func (d *Directory) ResetDaily() int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, e := range d.agents {
		e.mu.Lock()
		e.agent.Performance.CallsToday = 0
		e.mu.Unlock()
	}
	return len(d.agents)
}

// GetStatusStats returns the number of agents per status
func (d *Directory) GetStatusStats() map[types.AgentStatus]int {
	stats := make(map[types.AgentStatus]int, 4)
	for _, a := range d.GetAll() {
		stats[a.Status]++
	}
	return stats
}

func (d *Directory) lookup(agentID string) (*entry, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	e, ok := d.agents[agentID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
	}
	return e, nil
}

func (d *Directory) filter(keep func(*types.Agent) bool) []types.Agent {
	d.mu.RLock()
	entries := make([]*entry, 0, len(d.agents))
	for _, e := range d.agents {
		entries = append(entries, e)
	}
	d.mu.RUnlock()

	agents := make([]types.Agent, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if keep(&e.agent) {
			agents = append(agents, e.agent.Clone())
		}
		e.mu.Unlock()
	}

	sort.Slice(agents, func(i, j int) bool { return agents[i].ID < agents[j].ID })
	return agents
}
