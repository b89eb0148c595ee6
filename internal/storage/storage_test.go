package storage

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/pathwatch/internal/model"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testTarget(t *testing.T, db *DB) *model.Target {
	t.Helper()
	tgt := &model.Target{
		Host:   "example.net",
		Label:  "edge",
		Active: true,
		Probe: model.ProbeConfig{
			PacketType:      model.PacketICMP,
			PacketSize:      56,
			MaxHops:         30,
			Timeout:         3 * time.Second,
			InterProbeDelay: 25 * time.Millisecond,
			TraceInterval:   10 * time.Second,
		},
	}
	require.NoError(t, NewTargetStorage(db).Create(context.Background(), tgt))
	return tgt
}

func TestTargets_CreateGetRoundTrip(t *testing.T) {
	db := testDB(t)
	ts := NewTargetStorage(db)
	tgt := testTarget(t, db)
	require.NotZero(t, tgt.ID)

	got, err := ts.Get(context.Background(), tgt.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "example.net", got.Host)
	assert.Equal(t, model.PacketICMP, got.Probe.PacketType)
	assert.Equal(t, 3*time.Second, got.Probe.Timeout)
	assert.Equal(t, 10*time.Second, got.Probe.TraceInterval)
	assert.True(t, got.Active)
}

func TestTargets_GetMissing(t *testing.T) {
	ts := NewTargetStorage(testDB(t))
	got, err := ts.Get(context.Background(), 99)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTargets_SetActiveFiltersListActive(t *testing.T) {
	db := testDB(t)
	ts := NewTargetStorage(db)
	tgt := testTarget(t, db)
	ctx := context.Background()

	require.NoError(t, ts.SetActive(ctx, tgt.ID, false))
	active, err := ts.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := ts.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func rtt(v float64) *float64 { return &v }

func TestSamples_RecentMostRecentFirst(t *testing.T) {
	db := testDB(t)
	tgt := testTarget(t, db)
	ss := NewSampleStorage(db)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 3; i++ {
		hops := []model.Hop{
			{Number: 1, Addr: "10.0.0.1", RTTMs: rtt(float64(10 + i))},
			{Number: 2, Timeout: true},
		}
		require.NoError(t, ss.Append(ctx, tgt.ID, base.Add(time.Duration(i)*time.Second), hops))
	}

	recent, err := ss.Recent(ctx, tgt.ID, 1, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.InDelta(t, 12.0, *recent[0].RTTMs, 0.001, "newest sample first")
	assert.InDelta(t, 11.0, *recent[1].RTTMs, 0.001)

	timeouts, err := ss.Recent(ctx, tgt.ID, 2, 0)
	require.NoError(t, err)
	require.Len(t, timeouts, 3)
	for _, s := range timeouts {
		assert.True(t, s.Timeout)
		assert.Nil(t, s.RTTMs, "timeout stores NULL, never zero")
		assert.Empty(t, s.Addr)
	}

	maxHop, err := ss.MaxHop(ctx, tgt.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, maxHop)

	nums, err := ss.HopNumbers(ctx, tgt.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, nums)
}

func TestRoutes_ReplaceAndHistory(t *testing.T) {
	db := testDB(t)
	tgt := testTarget(t, db)
	rs := NewRouteStorage(db)
	ctx := context.Background()

	got, err := rs.LastRoute(ctx, tgt.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	now := time.Now().UTC()
	require.NoError(t, rs.ReplaceRoute(ctx, tgt.ID, []string{"A", "B", "C"}, now))
	require.NoError(t, rs.ReplaceRoute(ctx, tgt.ID, []string{"A", "B", "D"}, now))

	got, err = rs.LastRoute(ctx, tgt.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "D"}, got, "snapshot replaced, not appended")

	change := &model.RouteChange{
		TargetID:   tgt.ID,
		DetectedAt: now,
		OldRoute:   []string{"A", "B", "C"},
		NewRoute:   []string{"A", "B", "D"},
	}
	require.NoError(t, rs.AppendRouteChange(ctx, change))
	require.NotZero(t, change.ID)

	changes, err := rs.Changes(ctx, tgt.ID, 10)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, []string{"A", "B", "C"}, changes[0].OldRoute)
}

func TestAlerts_RulesAndEvents(t *testing.T) {
	db := testDB(t)
	tgt := testTarget(t, db)
	as := NewAlertStorage(db)
	ctx := context.Background()

	rule := &model.AlertRule{
		TargetID:        tgt.ID,
		Metric:          model.MetricLossPct,
		Operator:        ">",
		Threshold:       10,
		DurationSamples: 3,
		Hop:             model.HopFinal,
		Action:          model.ActionWebhook,
		ActionConfig:    json.RawMessage(`{"url":"http://localhost/hook"}`),
		Enabled:         true,
	}
	require.NoError(t, as.CreateRule(ctx, rule))
	require.NotZero(t, rule.ID)

	rules, err := as.Rules(ctx, tgt.ID, true)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, model.ActionWebhook, rules[0].Action)
	assert.JSONEq(t, `{"url":"http://localhost/hook"}`, string(rules[0].ActionConfig))

	require.NoError(t, as.SetRuleEnabled(ctx, rule.ID, false))
	rules, err = as.Rules(ctx, tgt.ID, true)
	require.NoError(t, err)
	assert.Empty(t, rules)

	ev := &model.AlertEvent{
		RuleID:   rule.ID,
		TargetID: tgt.ID,
		Kind:     model.AlertTriggered,
		Metric:   model.MetricLossPct,
		Value:    42,
		Message:  "loss over threshold",
		At:       time.Now().UTC(),
	}
	require.NoError(t, as.AppendEvent(ctx, ev))

	events, err := as.Events(ctx, tgt.ID, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.AlertTriggered, events[0].Kind)

	ok, err := as.DeleteRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}
