package rules

import (
	"testing"
	"time"

	"github.com/dennisdiepolder/monti/callrouter/internal/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func float(v float64) *float64 { return &v }

func rule(id string, priority int, cond types.RuleConditions) types.RoutingRule {
	return types.RoutingRule{
		ID:         id,
		Name:       "rule " + id,
		Priority:   priority,
		Conditions: cond,
		Actions:    types.RuleActions{Target: types.TargetQueue, TargetID: "general", Priority: 3},
		IsActive:   true,
		CreatedAt:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func salesCall() types.CallContext {
	return types.CallContext{
		CallID:   "call-1",
		CallerID: "+4930123",
		Caller: types.CallerProfile{
			Type:          types.CallerExisting,
			Tier:          types.TierGold,
			CustomerValue: 5000,
			Language:      "de",
		},
		CallType: types.CallTypeSales,
		Urgency:  types.UrgencyMedium,
		// Wednesday, 10:30 UTC
		ReceivedAt: time.Date(2025, 7, 16, 10, 30, 0, 0, time.UTC),
	}
}

func TestEvaluatePrecedence(t *testing.T) {
	e := NewEvaluator(time.UTC, zerolog.Nop())
	rules := []types.RoutingRule{
		rule("low", 5, types.RuleConditions{CallType: types.CallTypeSales}),
		rule("high", 1, types.RuleConditions{CustomerTier: types.TierGold}),
		rule("other", 0, types.RuleConditions{CallType: types.CallTypeSupport}),
	}

	got, ok := e.Evaluate(rules, salesCall())
	require.True(t, ok)
	assert.Equal(t, "high", got.ID)
}

func TestEvaluateTieBreakByCreation(t *testing.T) {
	e := NewEvaluator(time.UTC, zerolog.Nop())
	older := rule("b", 2, types.RuleConditions{})
	newer := rule("a", 2, types.RuleConditions{})
	newer.CreatedAt = older.CreatedAt.Add(time.Hour)

	got, ok := e.Evaluate([]types.RoutingRule{newer, older}, salesCall())
	require.True(t, ok)
	assert.Equal(t, "b", got.ID)
}

func TestEvaluateSkipsInactiveAndMalformed(t *testing.T) {
	e := NewEvaluator(time.UTC, zerolog.Nop())
	inactive := rule("inactive", 1, types.RuleConditions{})
	inactive.IsActive = false
	broken := rule("broken", 2, types.RuleConditions{TimeWindow: &types.TimeWindow{Start: "9am", End: "17:00"}})

	_, ok := e.Evaluate([]types.RoutingRule{inactive, broken}, salesCall())
	assert.False(t, ok)
}

func TestMatchesConditions(t *testing.T) {
	cc := salesCall()
	at := cc.ReceivedAt

	tests := []struct {
		name string
		cond types.RuleConditions
		want bool
	}{
		{"wildcard", types.RuleConditions{}, true},
		{"caller type", types.RuleConditions{CallerType: types.CallerExisting}, true},
		{"caller type mismatch", types.RuleConditions{CallerType: types.CallerNew}, false},
		{"language case-insensitive", types.RuleConditions{Language: "DE"}, true},
		{"previous agent mismatch", types.RuleConditions{PreviousAgentID: "a9"}, false},
		{"value in range", types.RuleConditions{CustomerValue: &types.ValueRange{Min: float(1000), Max: float(5000)}}, true},
		{"value below min", types.RuleConditions{CustomerValue: &types.ValueRange{Min: float(5001)}}, false},
		{"value above max", types.RuleConditions{CustomerValue: &types.ValueRange{Max: float(4999)}}, false},
		{"day matches", types.RuleConditions{DaysOfWeek: []types.DayOfWeek{types.Monday, types.Wednesday}}, true},
		{"day mismatch", types.RuleConditions{DaysOfWeek: []types.DayOfWeek{types.Saturday}}, false},
		{"inside window", types.RuleConditions{TimeWindow: &types.TimeWindow{Start: "09:00", End: "17:00"}}, true},
		{"window end inclusive", types.RuleConditions{TimeWindow: &types.TimeWindow{Start: "08:00", End: "10:30"}}, true},
		{"outside window", types.RuleConditions{TimeWindow: &types.TimeWindow{Start: "11:00", End: "17:00"}}, false},
		{"overnight window excludes day", types.RuleConditions{TimeWindow: &types.TimeWindow{Start: "22:00", End: "06:00"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Matches(tt.cond, cc, at)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOvernightWindow(t *testing.T) {
	cc := salesCall()
	cond := types.RuleConditions{TimeWindow: &types.TimeWindow{Start: "22:00", End: "06:00"}}

	for _, hour := range []int{22, 23, 0, 5} {
		at := time.Date(2025, 7, 16, hour, 15, 0, 0, time.UTC)
		ok, err := Matches(cond, cc, at)
		require.NoError(t, err)
		assert.True(t, ok, "hour %d should match", hour)
	}
}

func TestEvaluateUsesReferenceTimezone(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	e := NewEvaluator(berlin, zerolog.Nop())
	r := rule("office", 1, types.RuleConditions{TimeWindow: &types.TimeWindow{Start: "12:00", End: "13:00"}})

	// 10:30 UTC is 12:30 in Berlin during summer time
	_, ok := e.Evaluate([]types.RoutingRule{r}, salesCall())
	assert.True(t, ok)

	utc := NewEvaluator(time.UTC, zerolog.Nop())
	_, ok = utc.Evaluate([]types.RoutingRule{r}, salesCall())
	assert.False(t, ok)
}

func TestValidate(t *testing.T) {
	valid := rule("ok", 1, types.RuleConditions{})
	require.NoError(t, Validate(valid))

	missingTarget := valid
	missingTarget.Actions = types.RuleActions{Target: types.TargetAgent}
	assert.ErrorIs(t, Validate(missingTarget), ErrMissingTargetID)

	badTarget := valid
	badTarget.Actions.Target = "fax"
	assert.ErrorIs(t, Validate(badTarget), ErrInvalidTarget)

	badPriority := valid
	badPriority.Actions.Priority = 9
	assert.ErrorIs(t, Validate(badPriority), ErrInvalidPriority)

	badDay := valid
	badDay.Conditions.DaysOfWeek = []types.DayOfWeek{"funday"}
	assert.ErrorIs(t, Validate(badDay), ErrInvalidDay)

	badRange := valid
	badRange.Conditions.CustomerValue = &types.ValueRange{Min: float(10), Max: float(1)}
	assert.ErrorIs(t, Validate(badRange), ErrInvalidRange)

	assert.ErrorIs(t, Validate(types.RoutingRule{}), ErrMissingRuleID)
}

func TestStoreReplaceDisablesInvalid(t *testing.T) {
	s := NewStore(zerolog.Nop())
	assert.Empty(t, s.Snapshot())

	bad := rule("bad", 1, types.RuleConditions{})
	bad.Actions.Target = "nowhere"
	good := rule("good", 2, types.RuleConditions{})

	errs := s.Replace([]types.RoutingRule{good, bad})
	require.Len(t, errs, 1)

	snap := s.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "bad", snap[0].ID)
	assert.False(t, snap[0].IsActive)
	assert.True(t, snap[1].IsActive)

	var r types.RoutingRule
	ok := false
	for _, sr := range snap {
		if sr.ID == "good" {
			r, ok = sr, true
			break
		}
	}
	require.True(t, ok)
	assert.Equal(t, 2, r.Priority)
}
