package rules

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/dennisdiepolder/monti/callrouter/internal/types"
	"github.com/rs/zerolog"
)

var (
	ErrMissingRuleID    = errors.New("rule id is required")
	ErrInvalidTarget    = errors.New("invalid rule target")
	ErrMissingTargetID  = errors.New("rule target requires a target id")
	ErrInvalidPriority  = errors.New("rule action priority must be between 1 and 5")
	ErrInvalidFallback  = errors.New("invalid fallback action")
	ErrInvalidDay       = errors.New("invalid day of week")
	ErrInvalidRange     = errors.New("customer value min exceeds max")
	ErrInvalidMaxWait   = errors.New("max wait time must not be negative")
	ErrInvalidTimeRange = errors.New("invalid time window")
)

// Validate checks a rule for configuration errors
func Validate(rule types.RoutingRule) error {
	if rule.ID == "" {
		return ErrMissingRuleID
	}

	a := rule.Actions
	switch a.Target {
	case types.TargetAgent, types.TargetQueue:
		if a.TargetID == "" {
			return fmt.Errorf("%w: %s", ErrMissingTargetID, a.Target)
		}
	case types.TargetVoicemail, types.TargetCallback:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidTarget, a.Target)
	}
	if a.Priority != 0 && (a.Priority < 1 || a.Priority > 5) {
		return fmt.Errorf("%w: %d", ErrInvalidPriority, a.Priority)
	}
	switch a.FallbackAction {
	case "", types.FallbackVoicemail, types.FallbackCallback, types.FallbackTransfer:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidFallback, a.FallbackAction)
	}
	if a.MaxWaitTime < 0 {
		return ErrInvalidMaxWait
	}

	c := rule.Conditions
	for _, d := range c.DaysOfWeek {
		if !validDay(d) {
			return fmt.Errorf("%w: %q", ErrInvalidDay, d)
		}
	}
	if r := c.CustomerValue; r != nil && r.Min != nil && r.Max != nil && *r.Min > *r.Max {
		return ErrInvalidRange
	}
	if w := c.TimeWindow; w != nil {
		if _, err := parseClock(w.Start); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidTimeRange, err)
		}
		if _, err := parseClock(w.End); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidTimeRange, err)
		}
	}
	return nil
}

func validDay(d types.DayOfWeek) bool {
	switch types.DayOfWeek(strings.ToLower(string(d))) {
	case types.Sunday, types.Monday, types.Tuesday, types.Wednesday,
		types.Thursday, types.Friday, types.Saturday:
		return true
	}
	return false
}

// Store holds the current rule set. Readers receive an immutable snapshot;
// Replace swaps the whole set so a routing decision never observes a
// partially applied edit.
type Store struct {
	rules  atomic.Pointer[[]types.RoutingRule]
	logger zerolog.Logger
}

// NewStore creates an empty rule store
func NewStore(logger zerolog.Logger) *Store {
	s := &Store{logger: logger.With().Str("component", "rule_store").Logger()}
	empty := []types.RoutingRule{}
	s.rules.Store(&empty)
	return s
}

// Replace installs a new rule set and returns the validation errors found.
// Invalid rules are kept for visibility but are deactivated.
func (s *Store) Replace(rules []types.RoutingRule) []error {
	next := make([]types.RoutingRule, len(rules))
	copy(next, rules)

	var errs []error
	for i := range next {
		if err := Validate(next[i]); err != nil {
			s.logger.Warn().Err(err).
				Str("rule_id", next[i].ID).
				Str("rule_name", next[i].Name).
				Msg("invalid routing rule disabled")
			next[i].IsActive = false
			errs = append(errs, fmt.Errorf("rule %q: %w", next[i].ID, err))
		}
	}

	sort.SliceStable(next, func(i, j int) bool {
		return precedes(&next[i], &next[j])
	})
	s.rules.Store(&next)

	s.logger.Info().
		Int("rules", len(next)).
		Int("invalid", len(errs)).
		Msg("routing rules loaded")
	return errs
}

// Snapshot returns the current rule set ordered by precedence. The returned
// slice is shared and must not be modified.
func (s *Store) Snapshot() []types.RoutingRule {
	return *s.rules.Load()
}

