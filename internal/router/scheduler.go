package router

import (
	"context"
	"fmt"
	"time"

	"github.com/dennisdiepolder/monti/callrouter/internal/types"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// StatsStore persists the per-agent snapshot taken before each reset
type StatsStore interface {
	SaveAgentDailyStats(stats types.AgentDailyStats) error
}

// Scheduler runs calendar-driven maintenance such as the daily reset of
// agents' calls-today counters
type Scheduler struct {
	cron   *cron.Cron
	router *Router
	loc    *time.Location
	store  StatsStore
	logger zerolog.Logger
}

// NewScheduler creates a scheduler evaluating cron specs in loc
func NewScheduler(r *Router, loc *time.Location, logger zerolog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(loc)),
		router: r,
		loc:    loc,
		logger: logger.With().Str("component", "scheduler").Logger(),
	}
}

// SetStore sets where daily agent stats are written before a reset
func (s *Scheduler) SetStore(store StatsStore) {
	s.store = store
}

// RegisterDailyReset schedules ResetDaily on the given cron spec. An empty
// spec disables the reset.
func (s *Scheduler) RegisterDailyReset(spec string) error {
	if spec == "" {
		return nil
	}
	_, err := s.cron.AddFunc(spec, s.dailyReset)
	if err != nil {
		return fmt.Errorf("invalid daily reset schedule %q: %w", spec, err)
	}
	s.logger.Info().Str("schedule", spec).Msg("daily reset scheduled")
	return nil
}

// dailyReset archives each agent's counters for the day that just ended,
// then zeroes them
func (s *Scheduler) dailyReset() {
	if s.store != nil {
		date := s.router.now().In(s.loc).Add(-time.Minute).Format("2006-01-02")
		for _, a := range s.router.ListAgents() {
			if err := s.store.SaveAgentDailyStats(DailyStats(a, date)); err != nil {
				s.logger.Error().Err(err).Str("agent_id", a.ID).Msg("failed to save agent daily stats")
			}
		}
	}
	s.router.ResetDaily()
}

// DailyStats captures an agent's counters for the given date
func DailyStats(a types.Agent, date string) types.AgentDailyStats {
	return types.AgentDailyStats{
		AgentID:        a.ID,
		Date:           date,
		Name:           a.Name,
		CallsHandled:   a.Performance.CallsToday,
		CallsTotal:     a.Performance.CallsTotal,
		AvgCallTime:    a.Performance.AvgCallTime,
		ResolutionRate: a.Performance.ResolutionRate,
		Satisfaction:   a.Performance.Satisfaction,
		ConversionRate: a.Performance.ConversionRate,
	}
}

// Start begins running scheduled jobs
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler; the returned context is done once running jobs finish
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
