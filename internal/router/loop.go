package router

import (
	"context"
	"time"

	"github.com/dennisdiepolder/monti/callrouter/internal/metrics"
	"github.com/rs/zerolog"
)

// Loop periodically expires overdue queued calls and drains queues into
// agents that became available without passing through the router
type Loop struct {
	router   *Router
	interval time.Duration
	logger   zerolog.Logger
}

// NewLoop creates a new Loop
func NewLoop(r *Router, interval time.Duration, logger zerolog.Logger) *Loop {
	if interval <= 0 {
		interval = time.Second
	}
	return &Loop{
		router:   r,
		interval: interval,
		logger:   logger.With().Str("component", "routing_loop").Logger(),
	}
}

// Start runs the loop until the context is cancelled
func (l *Loop) Start(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.logger.Info().Dur("interval", l.interval).Msg("routing loop started")

	for {
		select {
		case <-ctx.Done():
			l.logger.Info().Msg("routing loop stopped")
			return
		case <-ticker.C:
			l.tick()
		}
	}
}

// tick performs a single sweep and drain pass
func (l *Loop) tick() {
	timeouts := l.router.Sweep()
	l.router.queues.RefreshEstimates()
	assigned := l.router.Drain()

	queues := l.router.ListQueues()
	metrics.Get().UpdateQueueStats(queues)
	metrics.Get().UpdateAgentStats(l.router.dir.GetStatusStats())

	if len(timeouts) > 0 || assigned > 0 {
		l.logger.Debug().
			Int("timeouts", len(timeouts)).
			Int("assigned", assigned).
			Msg("routing loop pass")
	}
}
