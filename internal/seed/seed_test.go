package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/pathwatch/internal/model"
)

type memTargets struct {
	created []model.Target
}

func (m *memTargets) Create(_ context.Context, t *model.Target) error {
	t.ID = int64(len(m.created) + 1)
	m.created = append(m.created, *t)
	return nil
}

type memRules struct {
	created []model.AlertRule
}

func (m *memRules) CreateRule(_ context.Context, r *model.AlertRule) error {
	r.ID = int64(len(m.created) + 1)
	m.created = append(m.created, *r)
	return nil
}

func writeSeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const sampleSeed = `
targets:
  - host: example.net
    label: edge
    trace_interval_s: 5
    max_hops: 16
    alerts:
      - metric: packet_loss_pct
        operator: ">"
        threshold: 20
        duration_samples: 3
        hop: final
        action: webhook
        action_config:
          url: https://hooks.example.net/pw
  - host: 192.0.2.10
    paused: true
`

func defaults() model.ProbeConfig {
	return model.ProbeConfig{
		PacketType:    model.PacketICMP,
		PacketSize:    56,
		MaxHops:       30,
		Timeout:       3 * time.Second,
		TraceInterval: 10 * time.Second,
	}
}

func TestLoadAndImport(t *testing.T) {
	f, err := Load(writeSeed(t, sampleSeed))
	require.NoError(t, err)
	require.Len(t, f.Targets, 2)

	targets := &memTargets{}
	rules := &memRules{}
	res, err := Import(context.Background(), f, defaults(), targets, rules)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Targets)
	assert.Equal(t, 1, res.Rules)

	first := targets.created[0]
	assert.Equal(t, "example.net", first.Host)
	assert.True(t, first.Active)
	assert.Equal(t, 5*time.Second, first.Probe.TraceInterval)
	assert.Equal(t, 16, first.Probe.MaxHops)
	assert.Equal(t, model.PacketICMP, first.Probe.PacketType, "defaults fill unset knobs")

	second := targets.created[1]
	assert.False(t, second.Active)
	assert.Equal(t, 30, second.Probe.MaxHops)

	rule := rules.created[0]
	assert.Equal(t, first.ID, rule.TargetID)
	assert.Equal(t, model.ActionWebhook, rule.Action)
	assert.JSONEq(t, `{"url":"https://hooks.example.net/pw"}`, string(rule.ActionConfig))
	assert.True(t, rule.Enabled)
}

func TestLoadRejectsBadSeed(t *testing.T) {
	cases := map[string]string{
		"missing host": `
targets:
  - label: nameless
`,
		"bad packet type": `
targets:
  - host: example.net
    packet_type: gre
`,
		"bad metric": `
targets:
  - host: example.net
    alerts:
      - metric: jitter_ms
        operator: ">"
        threshold: 1
        action: log
`,
		"bad operator": `
targets:
  - host: example.net
    alerts:
      - metric: packet_loss_pct
        operator: "=="
        threshold: 1
        action: log
`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeSeed(t, content))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
