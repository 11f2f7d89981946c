package simulator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dennisdiepolder/monti/callrouter/internal/types"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Options controls the simulated traffic
type Options struct {
	Agents       int
	CallsPerMin  float64
	HandleTime   time.Duration // mean time an agent spends on a call
	Patience     time.Duration // mean time before an impatient caller hangs up
	AbandonRate  float64       // share of queued callers that hang up, 0-1
	PollInterval time.Duration
	Seed         int64
}

// DefaultOptions returns a light load suitable for a laptop
func DefaultOptions() Options {
	return Options{
		Agents:       20,
		CallsPerMin:  30,
		HandleTime:   45 * time.Second,
		Patience:     90 * time.Second,
		AbandonRate:  0.2,
		PollInterval: time.Second,
		Seed:         time.Now().UnixNano(),
	}
}

// Stats counts what the simulator has done so far
type Stats struct {
	Routed    int64 `json:"routed"`
	Queued    int64 `json:"queued"`
	Completed int64 `json:"completed"`
	Abandoned int64 `json:"abandoned"`
	Errors    int64 `json:"errors"`
}

type activeCall struct {
	callID    string
	startedAt time.Time
	finishAt  time.Time
}

// Simulator drives the routing engine with generated calls and plays the
// agents who answer them
type Simulator struct {
	client *Client
	gen    *Generator
	opts   Options
	logger zerolog.Logger

	mu        sync.Mutex
	active    map[string]activeCall // agentID -> call being handled
	abandonAt map[string]time.Time  // callID -> caller hangs up

	routed    atomic.Int64
	queued    atomic.Int64
	completed atomic.Int64
	abandoned atomic.Int64
	errors    atomic.Int64
}

// New creates a simulator
func New(client *Client, opts Options, logger zerolog.Logger) *Simulator {
	return &Simulator{
		client:    client,
		gen:       NewGenerator(opts.Seed),
		opts:      opts,
		logger:    logger.With().Str("component", "simulator").Logger(),
		active:    make(map[string]activeCall),
		abandonAt: make(map[string]time.Time),
	}
}

// Run registers the agent roster and generates traffic until ctx is cancelled
func (s *Simulator) Run(ctx context.Context) error {
	registered, err := s.client.RegisterRoster(ctx, s.gen.Agents(s.opts.Agents))
	if err != nil {
		return fmt.Errorf("register roster: %w", err)
	}
	s.logger.Info().Int("agents", registered).Float64("calls_per_min", s.opts.CallsPerMin).Msg("simulation started")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.generateCalls(gctx) })
	g.Go(func() error { return s.work(gctx) })

	err = g.Wait()
	st := s.Stats()
	s.logger.Info().
		Int64("routed", st.Routed).
		Int64("queued", st.Queued).
		Int64("completed", st.Completed).
		Int64("abandoned", st.Abandoned).
		Int64("errors", st.Errors).
		Msg("simulation stopped")
	return err
}

// Stats returns the current counters
func (s *Simulator) Stats() Stats {
	return Stats{
		Routed:    s.routed.Load(),
		Queued:    s.queued.Load(),
		Completed: s.completed.Load(),
		Abandoned: s.abandoned.Load(),
		Errors:    s.errors.Load(),
	}
}

func (s *Simulator) generateCalls(ctx context.Context) error {
	if s.opts.CallsPerMin <= 0 {
		<-ctx.Done()
		return nil
	}
	limiter := rate.NewLimiter(rate.Limit(s.opts.CallsPerMin/60), 1)

	for {
		if err := limiter.Wait(ctx); err != nil {
			return nil
		}
		s.placeCall(ctx, time.Now())
	}
}

// placeCall routes one generated call and remembers when its caller gives up
func (s *Simulator) placeCall(ctx context.Context, now time.Time) {
	cc := s.gen.Call()
	d, err := s.client.RouteCall(ctx, cc)
	if err != nil {
		if ctx.Err() == nil {
			s.errors.Add(1)
			s.logger.Error().Err(err).Str("call_id", cc.CallID).Msg("failed to route call")
		}
		return
	}
	s.routed.Add(1)

	s.logger.Debug().
		Str("call_id", d.CallID).
		Str("action", string(d.Action)).
		Str("agent_id", d.TargetAgentID).
		Str("queue_id", d.TargetQueueID).
		Msg("call routed")

	if d.Action != types.ActionQueue {
		return
	}
	s.queued.Add(1)
	if s.gen.Chance(s.opts.AbandonRate) {
		s.mu.Lock()
		s.abandonAt[d.CallID] = now.Add(s.gen.Jitter(s.opts.Patience))
		s.mu.Unlock()
	}
}

func (s *Simulator) work(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if err := s.poll(ctx, now); err != nil && ctx.Err() == nil {
				s.errors.Add(1)
				s.logger.Warn().Err(err).Msg("poll failed")
			}
		}
	}
}

// poll completes calls whose handle time has passed and hangs up callers
// whose patience ran out
func (s *Simulator) poll(ctx context.Context, now time.Time) error {
	agents, err := s.client.ListAgents(ctx)
	if err != nil {
		return err
	}

	var finished []activeCall
	var finishedAgents []string

	s.mu.Lock()
	busy := make(map[string]bool, len(agents))
	for _, a := range agents {
		if a.Status != types.StatusBusy || a.CurrentCall == nil {
			continue
		}
		busy[a.ID] = true
		call, ok := s.active[a.ID]
		if !ok || call.callID != a.CurrentCall.CallID {
			call = activeCall{
				callID:    a.CurrentCall.CallID,
				startedAt: a.CurrentCall.StartedAt,
				finishAt:  a.CurrentCall.StartedAt.Add(s.gen.Jitter(s.opts.HandleTime)),
			}
			s.active[a.ID] = call
		}
		// a queued call that reached an agent is no longer waiting
		delete(s.abandonAt, call.callID)
		if !now.Before(call.finishAt) {
			finished = append(finished, call)
			finishedAgents = append(finishedAgents, a.ID)
		}
	}
	for id := range s.active {
		if !busy[id] {
			delete(s.active, id)
		}
	}

	var hangups []string
	for callID, at := range s.abandonAt {
		if !now.Before(at) {
			hangups = append(hangups, callID)
			delete(s.abandonAt, callID)
		}
	}
	s.mu.Unlock()

	for i, call := range finished {
		agentID := finishedAgents[i]
		outcome := s.gen.Outcome(call.callID, now.Sub(call.startedAt))
		if err := s.client.CompleteCall(ctx, agentID, outcome); err != nil {
			s.errors.Add(1)
			s.logger.Warn().Err(err).Str("agent_id", agentID).Str("call_id", call.callID).Msg("failed to complete call")
			continue
		}
		s.completed.Add(1)
		s.mu.Lock()
		delete(s.active, agentID)
		s.mu.Unlock()
	}

	for _, callID := range hangups {
		removed, err := s.client.Abandon(ctx, callID)
		if err != nil {
			s.errors.Add(1)
			s.logger.Warn().Err(err).Str("call_id", callID).Msg("failed to abandon call")
			continue
		}
		if removed {
			s.abandoned.Add(1)
		}
	}
	return nil
}
