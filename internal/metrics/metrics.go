package metrics

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/dennisdiepolder/monti/callrouter/internal/telemetry"
	"github.com/dennisdiepolder/monti/callrouter/internal/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics. Counters are exposed in Prometheus
// text format on /metrics and mirrored to OpenTelemetry instruments.
type Metrics struct {
	mu sync.RWMutex

	// Routing metrics
	decisionsTotal          map[string]map[string]int64 // trigger -> action -> count
	LostReservationsTotal   int64
	CapacityRejectionsTotal int64
	queueExitsTotal         map[string]int64 // outcome -> count
	CompletedCallsTotal     int64
	invariantViolations     map[string]int64 // rule -> count
	RoutingPanicsTotal      int64

	// WebSocket metrics
	WebSocketConnectionsTotal    int64
	WebSocketDisconnectionsTotal int64
	WebSocketMessagesTotal       int64
	WebSocketErrorsTotal         int64
	activeConnections            int64

	// Broadcast metrics
	BroadcastCyclesTotal  int64
	lastBroadcastDuration time.Duration

	// Agent and queue gauges
	agentsByStatus map[types.AgentStatus]int
	totalAgents    int
	queueDepth     map[string]int
	queueSL        map[string]float64

	// HTTP metrics
	httpRequestsTotal map[string]map[int]int64 // endpoint -> status -> count

	otel instruments

	// Timing
	startTime time.Time
}

type instruments struct {
	decisions          metric.Int64Counter
	lostReservations   metric.Int64Counter
	capacityRejections metric.Int64Counter
	queueExits         metric.Int64Counter
	completions        metric.Int64Counter
	violations         metric.Int64Counter
	waitingCalls       metric.Int64Gauge
}

// Global metrics instance
var instance *Metrics
var once sync.Once

// Get returns the singleton metrics instance
func Get() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			decisionsTotal:      make(map[string]map[string]int64),
			queueExitsTotal:     make(map[string]int64),
			invariantViolations: make(map[string]int64),
			agentsByStatus:      make(map[types.AgentStatus]int),
			queueDepth:          make(map[string]int),
			queueSL:             make(map[string]float64),
			httpRequestsTotal:   make(map[string]map[int]int64),
			otel:                newInstruments(),
			startTime:           time.Now(),
		}
	})
	return instance
}

// newInstruments registers the OpenTelemetry instruments. Creation errors
// leave a nil instrument, which the record helpers skip.
func newInstruments() instruments {
	meter := telemetry.Meter("github.com/dennisdiepolder/monti/callrouter")
	var in instruments
	in.decisions, _ = meter.Int64Counter("callrouter.decisions",
		metric.WithDescription("Routing decisions by action and trigger"))
	in.lostReservations, _ = meter.Int64Counter("callrouter.reservations.lost",
		metric.WithDescription("Agent reservations lost to a concurrent call"))
	in.capacityRejections, _ = meter.Int64Counter("callrouter.queue.rejections",
		metric.WithDescription("Enqueue attempts rejected because a queue was full or inactive"))
	in.queueExits, _ = meter.Int64Counter("callrouter.queue.exits",
		metric.WithDescription("Calls leaving a queue by outcome"))
	in.completions, _ = meter.Int64Counter("callrouter.calls.completed",
		metric.WithDescription("Calls completed by agents"))
	in.violations, _ = meter.Int64Counter("callrouter.invariant.violations",
		metric.WithDescription("Detected agent or queue state inconsistencies"))
	in.waitingCalls, _ = meter.Int64Gauge("callrouter.queue.waiting",
		metric.WithDescription("Calls currently waiting per queue"))
	return in
}

func add(c metric.Int64Counter, attrs ...attribute.KeyValue) {
	if c == nil {
		return
	}
	c.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// RecordDecision counts a routing decision
func (m *Metrics) RecordDecision(trigger, action string) {
	m.mu.Lock()
	if m.decisionsTotal[trigger] == nil {
		m.decisionsTotal[trigger] = make(map[string]int64)
	}
	m.decisionsTotal[trigger][action]++
	m.mu.Unlock()

	add(m.otel.decisions, attribute.String("trigger", trigger), attribute.String("action", action))
}

// RecordLostReservation counts a reservation that lost a race
func (m *Metrics) RecordLostReservation() {
	m.mu.Lock()
	m.LostReservationsTotal++
	m.mu.Unlock()

	add(m.otel.lostReservations)
}

// RecordCapacityRejection counts an enqueue rejected by a full or inactive queue
func (m *Metrics) RecordCapacityRejection(queueID string) {
	m.mu.Lock()
	m.CapacityRejectionsTotal++
	m.mu.Unlock()

	add(m.otel.capacityRejections, attribute.String("queue", queueID))
}

// RecordQueueExit counts a call leaving a queue
func (m *Metrics) RecordQueueExit(queueID, outcome string) {
	m.mu.Lock()
	m.queueExitsTotal[outcome]++
	m.mu.Unlock()

	add(m.otel.queueExits, attribute.String("queue", queueID), attribute.String("outcome", outcome))
}

// RecordCompletion counts a call completed by an agent
func (m *Metrics) RecordCompletion() {
	m.mu.Lock()
	m.CompletedCallsTotal++
	m.mu.Unlock()

	add(m.otel.completions)
}

// RecordInvariantViolation counts a detected state inconsistency
func (m *Metrics) RecordInvariantViolation(rule string) {
	m.mu.Lock()
	m.invariantViolations[rule]++
	m.mu.Unlock()

	add(m.otel.violations, attribute.String("rule", rule))
}

// RecordRoutingPanic counts a recovered panic inside the router
func (m *Metrics) RecordRoutingPanic() {
	m.mu.Lock()
	m.RoutingPanicsTotal++
	m.mu.Unlock()
}

// RecordWebSocketConnect increments connection counters
func (m *Metrics) RecordWebSocketConnect() {
	m.mu.Lock()
	m.WebSocketConnectionsTotal++
	m.activeConnections++
	m.mu.Unlock()
}

// RecordWebSocketDisconnect increments disconnection counter
func (m *Metrics) RecordWebSocketDisconnect() {
	m.mu.Lock()
	m.WebSocketDisconnectionsTotal++
	m.activeConnections--
	m.mu.Unlock()
}

// RecordWebSocketMessage increments message counter
func (m *Metrics) RecordWebSocketMessage() {
	m.mu.Lock()
	m.WebSocketMessagesTotal++
	m.mu.Unlock()
}

// RecordWebSocketError increments WebSocket error counter
func (m *Metrics) RecordWebSocketError() {
	m.mu.Lock()
	m.WebSocketErrorsTotal++
	m.mu.Unlock()
}

// RecordBroadcastCycle records a dashboard snapshot broadcast
func (m *Metrics) RecordBroadcastCycle(duration time.Duration) {
	m.mu.Lock()
	m.BroadcastCyclesTotal++
	m.lastBroadcastDuration = duration
	m.mu.Unlock()
}

// UpdateAgentStats updates agent distribution gauges
func (m *Metrics) UpdateAgentStats(byStatus map[types.AgentStatus]int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.agentsByStatus = make(map[types.AgentStatus]int, len(byStatus))
	m.totalAgents = 0
	for status, count := range byStatus {
		m.agentsByStatus[status] = count
		m.totalAgents += count
	}
}

// UpdateQueueStats updates per-queue depth and service level gauges
func (m *Metrics) UpdateQueueStats(queues []types.CallQueue) {
	m.mu.Lock()
	m.queueDepth = make(map[string]int, len(queues))
	m.queueSL = make(map[string]float64, len(queues))
	for _, q := range queues {
		m.queueDepth[q.ID] = len(q.Calls)
		m.queueSL[q.ID] = q.Metrics.ServiceLevel
	}
	m.mu.Unlock()

	if m.otel.waitingCalls == nil {
		return
	}
	for _, q := range queues {
		m.otel.waitingCalls.Record(context.Background(), int64(len(q.Calls)),
			metric.WithAttributes(attribute.String("queue", q.ID)))
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(endpoint string, statusCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.httpRequestsTotal[endpoint] == nil {
		m.httpRequestsTotal[endpoint] = make(map[int]int64)
	}
	m.httpRequestsTotal[endpoint][statusCode]++
}

// Handler returns an HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.mu.RLock()
		defer m.mu.RUnlock()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		// Helper to write metric
		write := func(name string, value interface{}, labels ...string) {
			labelStr := ""
			if len(labels) > 0 {
				labelStr = "{"
				for i := 0; i < len(labels); i += 2 {
					if i > 0 {
						labelStr += ","
					}
					labelStr += labels[i] + "=\"" + labels[i+1] + "\""
				}
				labelStr += "}"
			}

			switch v := value.(type) {
			case int:
				w.Write([]byte(name + labelStr + " " + strconv.Itoa(v) + "\n"))
			case int64:
				w.Write([]byte(name + labelStr + " " + strconv.FormatInt(v, 10) + "\n"))
			case float64:
				w.Write([]byte(name + labelStr + " " + strconv.FormatFloat(v, 'f', 6, 64) + "\n"))
			}
		}

		write("callrouter_uptime_seconds", time.Since(m.startTime).Seconds())

		// Routing metrics
		for _, trigger := range sortedKeys(m.decisionsTotal) {
			for _, action := range sortedKeys(m.decisionsTotal[trigger]) {
				write("callrouter_decisions_total", m.decisionsTotal[trigger][action], "trigger", trigger, "action", action)
			}
		}
		write("callrouter_reservations_lost_total", m.LostReservationsTotal)
		write("callrouter_queue_rejections_total", m.CapacityRejectionsTotal)
		for _, outcome := range sortedKeys(m.queueExitsTotal) {
			write("callrouter_queue_exits_total", m.queueExitsTotal[outcome], "outcome", outcome)
		}
		write("callrouter_calls_completed_total", m.CompletedCallsTotal)
		for _, rule := range sortedKeys(m.invariantViolations) {
			write("callrouter_invariant_violations_total", m.invariantViolations[rule], "rule", rule)
		}
		write("callrouter_routing_panics_total", m.RoutingPanicsTotal)

		// WebSocket metrics
		write("callrouter_websocket_connections_total", m.WebSocketConnectionsTotal)
		write("callrouter_websocket_disconnections_total", m.WebSocketDisconnectionsTotal)
		write("callrouter_websocket_active_connections", m.activeConnections)
		write("callrouter_websocket_messages_total", m.WebSocketMessagesTotal)
		write("callrouter_websocket_errors_total", m.WebSocketErrorsTotal)

		// Broadcast metrics
		write("callrouter_broadcast_cycles_total", m.BroadcastCyclesTotal)
		write("callrouter_broadcast_duration_seconds", m.lastBroadcastDuration.Seconds())

		// Agent metrics
		write("callrouter_agents_total", m.totalAgents)
		for status, count := range m.agentsByStatus {
			write("callrouter_agents_by_status", count, "status", string(status))
		}

		// Queue metrics
		for _, id := range sortedKeys(m.queueDepth) {
			write("callrouter_queue_waiting_calls", m.queueDepth[id], "queue", id)
			write("callrouter_queue_service_level", m.queueSL[id], "queue", id)
		}

		// HTTP metrics
		for endpoint, statusCodes := range m.httpRequestsTotal {
			for status, count := range statusCodes {
				write("callrouter_http_requests_total", count, "endpoint", endpoint, "status", strconv.Itoa(status))
			}
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
