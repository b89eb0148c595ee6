// Package seed imports targets and alert rules from a YAML file, so a
// fleet of monitors can be provisioned without driving the API by hand.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/user/pathwatch/internal/model"
)

// File is the root of a seed document.
type File struct {
	Targets []TargetSpec `yaml:"targets"`
}

// TargetSpec declares one target and its optional alert rules.
type TargetSpec struct {
	Host  string `yaml:"host"`
	Label string `yaml:"label"`

	PacketType   string  `yaml:"packet_type"`
	PacketSize   int     `yaml:"packet_size"`
	MaxHops      int     `yaml:"max_hops"`
	TimeoutSec   float64 `yaml:"timeout_s"`
	InterProbeMs int     `yaml:"inter_probe_delay_ms"`
	IntervalSec  float64 `yaml:"trace_interval_s"`
	FinalHopOnly bool    `yaml:"final_hop_only"`
	Paused       bool    `yaml:"paused"`

	Alerts []RuleSpec `yaml:"alerts"`
}

// RuleSpec declares one alert rule.
type RuleSpec struct {
	Metric          string         `yaml:"metric"`
	Operator        string         `yaml:"operator"`
	Threshold       float64        `yaml:"threshold"`
	DurationSamples int            `yaml:"duration_samples"`
	Hop             string         `yaml:"hop"`
	Action          string         `yaml:"action"`
	ActionConfig    map[string]any `yaml:"action_config"`
}

// TargetStore is the persistence surface the importer writes to.
type TargetStore interface {
	Create(ctx context.Context, t *model.Target) error
}

// RuleStore persists imported alert rules.
type RuleStore interface {
	CreateRule(ctx context.Context, r *model.AlertRule) error
}

// Result summarizes one import run.
type Result struct {
	Targets int
	Rules   int
}

// Load parses and validates a seed file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	for i, t := range f.Targets {
		if t.Host == "" {
			return nil, fmt.Errorf("target %d: host is required", i+1)
		}
		if t.PacketType != "" {
			switch model.PacketType(t.PacketType) {
			case model.PacketICMP, model.PacketUDP, model.PacketTCP:
			default:
				return nil, fmt.Errorf("target %q: unknown packet type %q", t.Host, t.PacketType)
			}
		}
		for j, r := range t.Alerts {
			if err := validateRule(r); err != nil {
				return nil, fmt.Errorf("target %q alert %d: %w", t.Host, j+1, err)
			}
		}
	}
	return &f, nil
}

func validateRule(r RuleSpec) error {
	switch r.Metric {
	case model.MetricLossPct, model.MetricAvgRTT, model.MetricCurRTT:
	default:
		return fmt.Errorf("unknown metric %q", r.Metric)
	}
	switch r.Operator {
	case ">", "<", ">=", "<=":
	default:
		return fmt.Errorf("unknown operator %q", r.Operator)
	}
	switch model.ActionType(r.Action) {
	case model.ActionWebhook, model.ActionEmail, model.ActionLog, model.ActionCommand:
	default:
		return fmt.Errorf("unknown action %q", r.Action)
	}
	return nil
}

// Import persists every target and rule from the seed file. Defaults
// fill the probe knobs a spec leaves at zero.
func Import(ctx context.Context, f *File, defaults model.ProbeConfig, targets TargetStore, rules RuleStore) (*Result, error) {
	res := &Result{}
	for _, spec := range f.Targets {
		t := &model.Target{
			Host:      spec.Host,
			Label:     spec.Label,
			Active:    !spec.Paused,
			CreatedAt: time.Now().UTC(),
			Probe:     spec.probe(defaults),
		}
		if err := targets.Create(ctx, t); err != nil {
			return res, fmt.Errorf("failed to create target %q: %w", spec.Host, err)
		}
		res.Targets++

		for _, rs := range spec.Alerts {
			rule, err := rs.rule(t.ID)
			if err != nil {
				return res, fmt.Errorf("target %q: %w", spec.Host, err)
			}
			if err := rules.CreateRule(ctx, rule); err != nil {
				return res, fmt.Errorf("failed to create rule for %q: %w", spec.Host, err)
			}
			res.Rules++
		}
	}
	return res, nil
}

func (s TargetSpec) probe(defaults model.ProbeConfig) model.ProbeConfig {
	probe := defaults
	if s.PacketType != "" {
		probe.PacketType = model.PacketType(s.PacketType)
	}
	if s.PacketSize > 0 {
		probe.PacketSize = s.PacketSize
	}
	if s.MaxHops > 0 {
		probe.MaxHops = s.MaxHops
	}
	if s.TimeoutSec > 0 {
		probe.Timeout = time.Duration(s.TimeoutSec * float64(time.Second))
	}
	if s.InterProbeMs > 0 {
		probe.InterProbeDelay = time.Duration(s.InterProbeMs) * time.Millisecond
	}
	if s.IntervalSec > 0 {
		probe.TraceInterval = time.Duration(s.IntervalSec * float64(time.Second))
	}
	if s.FinalHopOnly {
		probe.FinalHopOnly = true
	}
	return probe
}

func (r RuleSpec) rule(targetID int64) (*model.AlertRule, error) {
	var cfg json.RawMessage
	if len(r.ActionConfig) > 0 {
		data, err := json.Marshal(r.ActionConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to encode action config: %w", err)
		}
		cfg = data
	}

	hop := r.Hop
	if hop == "" {
		hop = model.HopFinal
	}
	duration := r.DurationSamples
	if duration <= 0 {
		duration = 1
	}

	return &model.AlertRule{
		TargetID:        targetID,
		Metric:          r.Metric,
		Operator:        r.Operator,
		Threshold:       r.Threshold,
		DurationSamples: duration,
		Hop:             hop,
		Action:          model.ActionType(r.Action),
		ActionConfig:    cfg,
		Enabled:         true,
	}, nil
}
