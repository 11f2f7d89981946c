package rules

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dennisdiepolder/monti/callrouter/internal/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const routingYAML = `
agents:
  - id: a1
    name: Alice
    status: available
    skills: [sales, customer_service]
    specialties: [sales]
    experience: senior
    performance:
      avg_call_time: 240
      satisfaction: 9.1
  - id: a2
    name: Bob
queues:
  - id: vip
    name: VIP
    type: vip
    max_size: 20
    active: true
  - id: general
    name: General
    type: general
    max_size: 100
    active: true
    agents: [a1, a2]
rules:
  - id: r-vip
    name: Platinum to VIP
    priority: 1
    active: true
    conditions:
      customer_tier: platinum
    actions:
      target: queue
      target_id: vip
      priority: 1
      max_wait_time: 120
      fallback_action: callback
  - id: r-hours
    name: After hours
    priority: 1
    active: true
    conditions:
      time_window: {start: "18:00", end: "08:00"}
      days_of_week: [monday, friday]
    actions:
      target: voicemail
      priority: 5
`

func TestParse(t *testing.T) {
	loadedAt := time.Date(2025, 7, 16, 9, 0, 0, 0, time.UTC)
	f, err := Parse([]byte(routingYAML), loadedAt)
	require.NoError(t, err)

	require.Len(t, f.Agents, 2)
	assert.Equal(t, types.StatusAvailable, f.Agents[0].Status)
	assert.Equal(t, types.ExperienceSenior, f.Agents[0].Experience)
	assert.InDelta(t, 9.1, f.Agents[0].Performance.Satisfaction, 1e-9)
	assert.Equal(t, types.StatusOffline, f.Agents[1].Status, "missing status defaults to offline")

	require.Len(t, f.Queues, 2)
	assert.Equal(t, []string{"a1", "a2"}, f.Queues[1].Agents)

	require.Len(t, f.Rules, 2)
	assert.Equal(t, types.TierPlatinum, f.Rules[0].Conditions.CustomerTier)
	assert.Equal(t, types.FallbackCallback, f.Rules[0].Actions.FallbackAction)
	assert.Equal(t, "08:00", f.Rules[1].Conditions.TimeWindow.End)

	// Equal priorities keep file order through the assigned creation times.
	assert.True(t, f.Rules[0].CreatedAt.Before(f.Rules[1].CreatedAt))
	assert.Empty(t, f.Check())
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("rules:\n  - id: r1\n    conditons: {}\n"), time.Now())
	assert.Error(t, err)
}

func TestParseRejectsDuplicateIDs(t *testing.T) {
	doc := "queues:\n  - {id: q, max_size: 1}\n  - {id: q, max_size: 2}\n"
	_, err := Parse([]byte(doc), time.Now())
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestFileCheck(t *testing.T) {
	doc := `
queues:
  - {id: broken, max_size: 0}
rules:
  - id: r1
    priority: 1
    active: true
    actions: {target: agent, priority: 2}
`
	f, err := Parse([]byte(doc), time.Now())
	require.NoError(t, err)

	errs := f.Check()
	require.Len(t, errs, 2)
	assert.ErrorIs(t, errs[0], ErrMissingTargetID)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routing.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules: []\n"), 0o644))

	loaded := make(chan File, 4)
	w := NewWatcher(path, func(f File) { loaded <- f }, zerolog.Nop())
	w.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(routingYAML), 0o644))

	select {
	case f := <-loaded:
		assert.Len(t, f.Rules, 2)
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not reload the routing file")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcherKeepsPreviousOnBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routing.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules: []\n"), 0o644))

	loaded := make(chan File, 4)
	w := NewWatcher(path, func(f File) { loaded <- f }, zerolog.Nop())
	w.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("rules: [\n"), 0o644))

	select {
	case <-loaded:
		t.Fatal("malformed file must not be applied")
	case <-time.After(300 * time.Millisecond):
	}
}
