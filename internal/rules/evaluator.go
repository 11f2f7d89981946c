// Package rules matches call contexts against configured routing rules.
package rules

import (
	"fmt"
	"strings"
	"time"

	"github.com/dennisdiepolder/monti/callrouter/internal/types"
	"github.com/rs/zerolog"
)

// Evaluator picks the highest-precedence active rule matching a call
type Evaluator struct {
	loc    *time.Location
	now    func() time.Time
	logger zerolog.Logger
}

// NewEvaluator creates an evaluator comparing time windows in loc
func NewEvaluator(loc *time.Location, logger zerolog.Logger) *Evaluator {
	if loc == nil {
		loc = time.UTC
	}
	return &Evaluator{
		loc:    loc,
		now:    time.Now,
		logger: logger.With().Str("component", "rules").Logger(),
	}
}

// SetClock overrides the time source used when a call carries no timestamp
func (e *Evaluator) SetClock(now func() time.Time) {
	e.now = now
}

// Evaluate returns the matching rule with the lowest priority value. Equal
// priorities are resolved by the earlier CreatedAt, then by ID.
func (e *Evaluator) Evaluate(rules []types.RoutingRule, cc types.CallContext) (types.RoutingRule, bool) {
	at := cc.ReceivedAt
	if at.IsZero() {
		at = e.now()
	}
	at = at.In(e.loc)

	var best *types.RoutingRule
	for i := range rules {
		rule := &rules[i]
		if !rule.IsActive {
			continue
		}

		ok, err := Matches(rule.Conditions, cc, at)
		if err != nil {
			e.logger.Warn().Err(err).
				Str("rule_id", rule.ID).
				Msg("malformed rule treated as non-matching")
			continue
		}
		if !ok {
			continue
		}
		if best == nil || precedes(rule, best) {
			best = rule
		}
	}

	if best == nil {
		return types.RoutingRule{}, false
	}
	return *best, true
}

// Matches reports whether every specified condition holds for the call at
// the given instant. The instant must already be in the reference timezone.
func Matches(c types.RuleConditions, cc types.CallContext, at time.Time) (bool, error) {
	if c.CallerType != "" && c.CallerType != cc.Caller.Type {
		return false, nil
	}
	if c.CustomerTier != "" && c.CustomerTier != cc.Caller.Tier {
		return false, nil
	}
	if c.CallType != "" && c.CallType != cc.CallType {
		return false, nil
	}
	if c.PreviousAgentID != "" && c.PreviousAgentID != cc.Caller.PreviousAgentID {
		return false, nil
	}
	if c.Language != "" && !strings.EqualFold(c.Language, cc.Caller.Language) {
		return false, nil
	}

	if r := c.CustomerValue; r != nil {
		if r.Min != nil && cc.Caller.CustomerValue < *r.Min {
			return false, nil
		}
		if r.Max != nil && cc.Caller.CustomerValue > *r.Max {
			return false, nil
		}
	}

	if len(c.DaysOfWeek) > 0 {
		today := types.DayOf(at.Weekday())
		found := false
		for _, d := range c.DaysOfWeek {
			if types.DayOfWeek(strings.ToLower(string(d))) == today {
				found = true
				break
			}
		}
		if !found {
			return false, nil
		}
	}

	if w := c.TimeWindow; w != nil {
		start, err := parseClock(w.Start)
		if err != nil {
			return false, fmt.Errorf("time window start: %w", err)
		}
		end, err := parseClock(w.End)
		if err != nil {
			return false, fmt.Errorf("time window end: %w", err)
		}
		minute := at.Hour()*60 + at.Minute()
		if start <= end {
			if minute < start || minute > end {
				return false, nil
			}
		} else if minute < start && minute > end {
			// wraps past midnight
			return false, nil
		}
	}

	return true, nil
}

func precedes(a, b *types.RoutingRule) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// parseClock converts "HH:MM" into minutes after midnight
func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}
