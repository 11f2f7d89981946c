package dashboard

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dennisdiepolder/monti/callrouter/internal/alerts"
	"github.com/dennisdiepolder/monti/callrouter/internal/metrics"
	"github.com/dennisdiepolder/monti/callrouter/internal/types"
	"github.com/rs/zerolog"
)

// Source provides the read-only views a snapshot is built from
type Source interface {
	ListAgents() []types.Agent
	ListQueues() []types.CallQueue
	CallMetrics() types.CallMetrics
}

// Hub is where snapshots are published
type Hub interface {
	Broadcast(message []byte)
	ClientCount() int
}

// Broadcaster periodically publishes engine snapshots to dashboards
type Broadcaster struct {
	source   Source
	hub      Hub
	interval time.Duration
	now      func() time.Time
	logger   zerolog.Logger
}

// NewBroadcaster creates a new snapshot broadcaster
func NewBroadcaster(source Source, hub Hub, interval time.Duration, logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		source:   source,
		hub:      hub,
		interval: interval,
		now:      time.Now,
		logger:   logger.With().Str("component", "dashboard").Logger(),
	}
}

// Start begins broadcasting snapshots until ctx is cancelled
func (b *Broadcaster) Start(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	b.logger.Info().Dur("interval", b.interval).Msg("dashboard broadcaster started")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("dashboard broadcaster stopped")
			return

		case <-ticker.C:
			// Alerts still feed metrics when nobody is watching.
			snap := b.Build()
			if b.hub.ClientCount() == 0 {
				continue
			}
			b.publish(snap)
		}
	}
}

// Build assembles a snapshot of agents, queues, aggregate metrics and alerts
func (b *Broadcaster) Build() types.Snapshot {
	agents := b.source.ListAgents()
	queues := b.source.ListQueues()
	now := b.now()

	return types.Snapshot{
		Type:      "snapshot",
		Timestamp: now,
		Agents:    agents,
		Queues:    queues,
		Metrics:   b.source.CallMetrics(),
		Alerts:    alerts.Check(agents, queues, now),
	}
}

func (b *Broadcaster) publish(snap types.Snapshot) {
	start := time.Now()

	data, err := json.Marshal(snap)
	if err != nil {
		b.logger.Error().Err(err).Msg("failed to marshal snapshot")
		return
	}
	b.hub.Broadcast(data)
	metrics.Get().RecordBroadcastCycle(time.Since(start))

	b.logger.Debug().
		Int("agents", len(snap.Agents)).
		Int("queues", len(snap.Queues)).
		Int("alerts", len(snap.Alerts)).
		Int("clients", b.hub.ClientCount()).
		Msg("snapshot broadcasted")
}
