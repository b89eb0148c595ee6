// Package model defines core data structures for pathwatch.
package model

import (
	"encoding/json"
	"time"
)

// PacketType selects the probe packet family for a target.
type PacketType string

const (
	PacketICMP PacketType = "icmp"
	PacketUDP  PacketType = "udp"
	PacketTCP  PacketType = "tcp"
)

// ProbeConfig holds per-target probe tuning.
type ProbeConfig struct {
	PacketType      PacketType    `json:"packet_type"`
	PacketSize      int           `json:"packet_size"`
	MaxHops         int           `json:"max_hops"`
	Timeout         time.Duration `json:"timeout"`
	InterProbeDelay time.Duration `json:"inter_probe_delay"`
	TraceInterval   time.Duration `json:"trace_interval"`
	FinalHopOnly    bool          `json:"final_hop_only"`
}

// Target represents a host under continuous monitoring.
type Target struct {
	ID        int64       `json:"id"`
	Host      string      `json:"host"`
	Label     string      `json:"label"`
	Active    bool        `json:"active"`
	CreatedAt time.Time   `json:"created_at"`
	Probe     ProbeConfig `json:"probe"`
}

// Hop is one relay (or the destination) observed during a trace run.
// Addr is empty and RTTMs nil when the probe timed out.
type Hop struct {
	Number  int      `json:"hop"`
	Addr    string   `json:"addr,omitempty"`
	Name    string   `json:"name,omitempty"`
	RTTMs   *float64 `json:"rtt_ms"`
	Timeout bool     `json:"is_timeout"`
}

// TraceResult is one complete trace run against a target.
type TraceResult struct {
	TargetID  int64     `json:"target_id"`
	Host      string    `json:"host"`
	Timestamp time.Time `json:"timestamp"`
	Hops      []Hop     `json:"hops"`
}

// FinalHop returns the last hop of the run, or nil for an empty trace.
func (t *TraceResult) FinalHop() *Hop {
	if len(t.Hops) == 0 {
		return nil
	}
	return &t.Hops[len(t.Hops)-1]
}

// Addrs returns the ordered hop address sequence of the run.
func (t *TraceResult) Addrs() []string {
	addrs := make([]string, len(t.Hops))
	for i, h := range t.Hops {
		addrs[i] = h.Addr
	}
	return addrs
}

// Sample is one persisted hop measurement from one trace run.
type Sample struct {
	ID        int64     `json:"id"`
	TargetID  int64     `json:"target_id"`
	SampledAt time.Time `json:"sampled_at"`
	HopNumber int       `json:"hop"`
	Addr      string    `json:"addr,omitempty"`
	Name      string    `json:"name,omitempty"`
	RTTMs     *float64  `json:"rtt_ms"`
	Timeout   bool      `json:"is_timeout"`
}

// HopStats is the focus-window aggregate for one (target, hop) pair.
// AvgMs/MinMs are nil when the window holds no successful samples;
// CurMs is nil when the most recent sample timed out.
type HopStats struct {
	Hop     int      `json:"hop"`
	Addr    string   `json:"addr,omitempty"`
	Name    string   `json:"name,omitempty"`
	AvgMs   *float64 `json:"avg_ms"`
	MinMs   *float64 `json:"min_ms"`
	CurMs   *float64 `json:"cur_ms"`
	LossPct float64  `json:"packet_loss_pct"`
}

// RouteChange records a confirmed change of a target's hop sequence.
type RouteChange struct {
	ID         int64     `json:"id"`
	TargetID   int64     `json:"target_id"`
	DetectedAt time.Time `json:"detected_at"`
	OldRoute   []string  `json:"old_route"`
	NewRoute   []string  `json:"new_route"`
}

// Alert metrics understood by the evaluator.
const (
	MetricLossPct = "packet_loss_pct"
	MetricAvgRTT  = "avg_rtt_ms"
	MetricCurRTT  = "cur_rtt_ms"
)

// Hop selectors for alert rules.
const (
	HopAny   = "any"
	HopFinal = "final"
)

// ActionType is the closed set of alert action kinds.
type ActionType string

const (
	ActionEmail   ActionType = "email"
	ActionWebhook ActionType = "webhook"
	ActionLog     ActionType = "log"
	ActionCommand ActionType = "command"
)

// AlertRule is an externally authored alert condition for one target.
type AlertRule struct {
	ID              int64           `json:"id"`
	TargetID        int64           `json:"target_id"`
	Metric          string          `json:"metric"`
	Operator        string          `json:"operator"`
	Threshold       float64         `json:"threshold"`
	DurationSamples int             `json:"duration_samples"`
	Hop             string          `json:"hop"`
	Action          ActionType      `json:"action"`
	ActionConfig    json.RawMessage `json:"action_config,omitempty"`
	Enabled         bool            `json:"enabled"`
}

// AlertEventKind distinguishes firing from recovery.
type AlertEventKind string

const (
	AlertTriggered AlertEventKind = "triggered"
	AlertRecovered AlertEventKind = "recovered"
)

// AlertEvent records one state transition of a rule.
type AlertEvent struct {
	ID       int64          `json:"id"`
	RuleID   int64          `json:"rule_id"`
	TargetID int64          `json:"target_id"`
	Kind     AlertEventKind `json:"kind"`
	Metric   string         `json:"metric"`
	Value    float64        `json:"value"`
	Message  string         `json:"message"`
	At       time.Time      `json:"at"`
}

// WebhookConfig configures the webhook alert action.
type WebhookConfig struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
}

// EmailConfig configures the email alert action.
type EmailConfig struct {
	SMTPAddr string   `json:"smtp_addr"`
	From     string   `json:"from"`
	To       []string `json:"to"`
}

// LogConfig configures the log-append alert action.
type LogConfig struct {
	Path string `json:"path"`
}

// CommandConfig configures the shell-command alert action.
type CommandConfig struct {
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
}
