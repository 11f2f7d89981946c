package alerts

import (
	"fmt"
	"time"

	"github.com/dennisdiepolder/monti/callrouter/internal/metrics"
	"github.com/dennisdiepolder/monti/callrouter/internal/types"
)

// Alert rule names
const (
	RuleBusyWithoutCall = "busy_without_call"
	RuleCallWithoutBusy = "call_without_busy"
	RuleDoubleBooked    = "double_booked"
	RuleQueueOverflow   = "queue_over_capacity"
	RuleQueueOrder      = "queue_out_of_order"
	RuleAwayLong        = "away_long"
)

// AwayThreshold is how long an agent may stay away before a warning
const AwayThreshold = 10 * time.Minute

// Check inspects agent and queue views for inconsistencies. Critical alerts
// mean an engine invariant was broken and are counted in metrics.
func Check(agents []types.Agent, queues []types.CallQueue, now time.Time) []types.Alert {
	var out []types.Alert
	holders := make(map[string]string)

	for i := range agents {
		a := &agents[i]
		switch {
		case a.Status == types.StatusBusy && a.CurrentCall == nil:
			out = append(out, critical(RuleBusyWithoutCall, a.ID,
				fmt.Sprintf("%s is busy without a current call", a.Name)))
		case a.Status != types.StatusBusy && a.CurrentCall != nil:
			out = append(out, critical(RuleCallWithoutBusy, a.ID,
				fmt.Sprintf("%s holds call %s while %s", a.Name, a.CurrentCall.CallID, a.Status)))
		}

		if a.CurrentCall != nil {
			if other, ok := holders[a.CurrentCall.CallID]; ok {
				out = append(out, critical(RuleDoubleBooked, a.CurrentCall.CallID,
					fmt.Sprintf("call held by both %s and %s", other, a.ID)))
			}
			holders[a.CurrentCall.CallID] = a.ID
		}

		if a.Status == types.StatusAway && !a.StatusSince.IsZero() {
			if dur := now.Sub(a.StatusSince); dur > AwayThreshold {
				out = append(out, types.Alert{
					Rule:     RuleAwayLong,
					Severity: types.SeverityWarning,
					Subject:  a.ID,
					Message:  fmt.Sprintf("%s away for %s", a.Name, formatDuration(dur)),
				})
			}
		}
	}

	for i := range queues {
		q := &queues[i]
		if len(q.Calls) > q.MaxSize {
			out = append(out, critical(RuleQueueOverflow, q.ID,
				fmt.Sprintf("%d calls waiting, capacity %d", len(q.Calls), q.MaxSize)))
		}
		for j := 1; j < len(q.Calls); j++ {
			if outOfOrder(q.Calls[j-1], q.Calls[j]) {
				out = append(out, critical(RuleQueueOrder, q.ID,
					fmt.Sprintf("%s is ahead of %s", q.Calls[j-1].CallID, q.Calls[j].CallID)))
				break
			}
		}
	}

	m := metrics.Get()
	for _, a := range out {
		if a.Severity == types.SeverityCritical {
			m.RecordInvariantViolation(a.Rule)
		}
	}
	return out
}

// outOfOrder reports whether prev must not precede next: a lower priority
// number always goes first, and equal priorities keep arrival order.
func outOfOrder(prev, next types.QueuedCall) bool {
	if prev.Priority != next.Priority {
		return prev.Priority > next.Priority
	}
	return prev.QueuedAt.After(next.QueuedAt)
}

func critical(rule, subject, msg string) types.Alert {
	return types.Alert{
		Rule:     rule,
		Severity: types.SeverityCritical,
		Subject:  subject,
		Message:  msg,
	}
}

func formatDuration(d time.Duration) string {
	mins := int(d.Minutes())
	secs := int(d.Seconds()) % 60
	if mins >= 60 {
		hours := mins / 60
		mins = mins % 60
		return fmt.Sprintf("%dh%dm", hours, mins)
	}
	return fmt.Sprintf("%dm%ds", mins, secs)
}
