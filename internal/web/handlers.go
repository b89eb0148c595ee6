package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/user/pathwatch/internal/model"
	"github.com/user/pathwatch/internal/stats"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to write response", zap.Error(err))
	}
}

func idParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

func intQuery(r *http.Request, name, fallbackName string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" && fallbackName != "" {
		raw = r.URL.Query().Get(fallbackName)
	}
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

// loadTarget resolves the {id} URL parameter, writing the error
// response itself when the target cannot be served.
func (s *Server) loadTarget(w http.ResponseWriter, r *http.Request) *model.Target {
	id, ok := idParam(r, "id")
	if !ok {
		http.Error(w, "invalid target id", http.StatusBadRequest)
		return nil
	}
	t, err := s.targets.Get(r.Context(), id)
	if err != nil {
		s.logger.Error("failed to load target", zap.Int64("target_id", id), zap.Error(err))
		http.Error(w, "storage error", http.StatusInternalServerError)
		return nil
	}
	if t == nil {
		http.Error(w, "target not found", http.StatusNotFound)
		return nil
	}
	return t
}

type targetPayload struct {
	Host  string `json:"host"`
	Label string `json:"label"`

	PacketType       string   `json:"packet_type,omitempty"`
	PacketSize       *int     `json:"packet_size,omitempty"`
	MaxHops          *int     `json:"max_hops,omitempty"`
	TimeoutSec       *float64 `json:"timeout_s,omitempty"`
	InterProbeMs     *int     `json:"inter_probe_delay_ms,omitempty"`
	TraceIntervalSec *float64 `json:"trace_interval_s,omitempty"`
	FinalHopOnly     *bool    `json:"final_hop_only,omitempty"`
}

func (p *targetPayload) probe(defaults model.ProbeConfig) model.ProbeConfig {
	probe := defaults
	if p.PacketType != "" {
		probe.PacketType = model.PacketType(p.PacketType)
	}
	if p.PacketSize != nil {
		probe.PacketSize = *p.PacketSize
	}
	if p.MaxHops != nil {
		probe.MaxHops = *p.MaxHops
	}
	if p.TimeoutSec != nil {
		probe.Timeout = time.Duration(*p.TimeoutSec * float64(time.Second))
	}
	if p.InterProbeMs != nil {
		probe.InterProbeDelay = time.Duration(*p.InterProbeMs) * time.Millisecond
	}
	if p.TraceIntervalSec != nil {
		probe.TraceInterval = time.Duration(*p.TraceIntervalSec * float64(time.Second))
	}
	if p.FinalHopOnly != nil {
		probe.FinalHopOnly = *p.FinalHopOnly
	}
	return probe
}

func (s *Server) handleAddTarget(w http.ResponseWriter, r *http.Request) {
	var p targetPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.Host == "" {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}

	probe := p.probe(s.probeDefaults)
	switch probe.PacketType {
	case model.PacketICMP, model.PacketUDP, model.PacketTCP:
	default:
		http.Error(w, "unknown packet type", http.StatusBadRequest)
		return
	}

	t := &model.Target{
		Host:      p.Host,
		Label:     p.Label,
		Active:    true,
		CreatedAt: time.Now().UTC(),
		Probe:     probe,
	}
	if err := s.targets.Create(r.Context(), t); err != nil {
		s.logger.Error("failed to create target", zap.String("host", p.Host), zap.Error(err))
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}
	if err := s.engine.Activate(*t); err != nil {
		s.logger.Error("failed to schedule target", zap.Int64("target_id", t.ID), zap.Error(err))
		http.Error(w, "scheduling error", http.StatusInternalServerError)
		return
	}

	s.logger.Info("target added",
		zap.Int64("target_id", t.ID), zap.String("host", t.Host))
	s.writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleListTargets(w http.ResponseWriter, r *http.Request) {
	ts, err := s.targets.List(r.Context())
	if err != nil {
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, ts)
}

func (s *Server) handleGetTarget(w http.ResponseWriter, r *http.Request) {
	t := s.loadTarget(w, r)
	if t == nil {
		return
	}
	s.writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleDeleteTarget(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		http.Error(w, "invalid target id", http.StatusBadRequest)
		return
	}
	s.engine.Deactivate(id)
	deleted, err := s.targets.Delete(r.Context(), id)
	if err != nil {
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}
	if !deleted {
		http.Error(w, "target not found", http.StatusNotFound)
		return
	}
	s.logger.Info("target deleted", zap.Int64("target_id", id))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePauseTarget(w http.ResponseWriter, r *http.Request) {
	t := s.loadTarget(w, r)
	if t == nil {
		return
	}
	s.engine.Deactivate(t.ID)
	if err := s.targets.SetActive(r.Context(), t.ID, false); err != nil {
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResumeTarget(w http.ResponseWriter, r *http.Request) {
	t := s.loadTarget(w, r)
	if t == nil {
		return
	}
	if err := s.targets.SetActive(r.Context(), t.ID, true); err != nil {
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}
	t.Active = true
	if err := s.engine.Activate(*t); err != nil {
		http.Error(w, "scheduling error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHopStats(w http.ResponseWriter, r *http.Request) {
	t := s.loadTarget(w, r)
	if t == nil {
		return
	}

	focus := intQuery(r, "focus", "", s.focusSize)
	hops, err := s.samples.HopNumbers(r.Context(), t.ID)
	if err != nil {
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}

	out := make([]model.HopStats, 0, len(hops))
	for _, hop := range hops {
		window, err := s.samples.Recent(r.Context(), t.ID, hop, focus)
		if err != nil {
			http.Error(w, "storage error", http.StatusInternalServerError)
			return
		}
		hs := stats.Focus(window, focus)
		hs.Hop = hop
		out = append(out, hs)
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	t := s.loadTarget(w, r)
	if t == nil {
		return
	}

	hop := intQuery(r, "hop", "", 0)
	if hop <= 0 {
		http.Error(w, "hop parameter required", http.StatusBadRequest)
		return
	}

	until := time.Now().UTC()
	since := until.Add(-time.Hour)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "invalid since timestamp", http.StatusBadRequest)
			return
		}
		since = parsed
	}
	if raw := r.URL.Query().Get("until"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "invalid until timestamp", http.StatusBadRequest)
			return
		}
		until = parsed
	}

	samples, err := s.samples.Timeline(r.Context(), t.ID, hop, since, until)
	if err != nil {
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, samples)
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	t := s.loadTarget(w, r)
	if t == nil {
		return
	}
	route, err := s.routes.LastRoute(r.Context(), t.ID)
	if err != nil {
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"target_id": t.ID, "route": route})
}

func (s *Server) handleRouteChanges(w http.ResponseWriter, r *http.Request) {
	t := s.loadTarget(w, r)
	if t == nil {
		return
	}
	limit := intQuery(r, "limit", "", 50)
	changes, err := s.routes.Changes(r.Context(), t.ID, limit)
	if err != nil {
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, changes)
}

type rulePayload struct {
	Metric          string          `json:"metric"`
	Operator        string          `json:"operator"`
	Threshold       float64         `json:"threshold"`
	DurationSamples int             `json:"duration_samples"`
	Hop             string          `json:"hop"`
	Action          string          `json:"action"`
	ActionConfig    json.RawMessage `json:"action_config,omitempty"`
}

func (s *Server) handleAddRule(w http.ResponseWriter, r *http.Request) {
	t := s.loadTarget(w, r)
	if t == nil {
		return
	}

	var p rulePayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}
	switch p.Metric {
	case model.MetricLossPct, model.MetricAvgRTT, model.MetricCurRTT:
	default:
		http.Error(w, "unknown metric", http.StatusBadRequest)
		return
	}
	switch p.Operator {
	case ">", "<", ">=", "<=":
	default:
		http.Error(w, "unknown operator", http.StatusBadRequest)
		return
	}
	switch model.ActionType(p.Action) {
	case model.ActionWebhook, model.ActionEmail, model.ActionLog, model.ActionCommand:
	default:
		http.Error(w, "unknown action", http.StatusBadRequest)
		return
	}
	if p.Hop == "" {
		p.Hop = model.HopFinal
	}
	if p.DurationSamples <= 0 {
		p.DurationSamples = 1
	}

	rule := &model.AlertRule{
		TargetID:        t.ID,
		Metric:          p.Metric,
		Operator:        p.Operator,
		Threshold:       p.Threshold,
		DurationSamples: p.DurationSamples,
		Hop:             p.Hop,
		Action:          model.ActionType(p.Action),
		ActionConfig:    p.ActionConfig,
		Enabled:         true,
	}
	if err := s.alerts.CreateRule(r.Context(), rule); err != nil {
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusCreated, rule)
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	t := s.loadTarget(w, r)
	if t == nil {
		return
	}
	rules, err := s.alerts.Rules(r.Context(), t.ID, false)
	if err != nil {
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, rules)
}

func (s *Server) handleAlertEvents(w http.ResponseWriter, r *http.Request) {
	t := s.loadTarget(w, r)
	if t == nil {
		return
	}
	limit := intQuery(r, "limit", "", 50)
	events, err := s.alerts.Events(r.Context(), t.ID, limit)
	if err != nil {
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "ruleID")
	if !ok {
		http.Error(w, "invalid rule id", http.StatusBadRequest)
		return
	}
	deleted, err := s.alerts.DeleteRule(r.Context(), id)
	if err != nil {
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}
	if !deleted {
		http.Error(w, "rule not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEnableRule(w http.ResponseWriter, r *http.Request) {
	s.setRuleEnabled(w, r, true)
}

func (s *Server) handleDisableRule(w http.ResponseWriter, r *http.Request) {
	s.setRuleEnabled(w, r, false)
}

func (s *Server) setRuleEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	id, ok := idParam(r, "ruleID")
	if !ok {
		http.Error(w, "invalid rule id", http.StatusBadRequest)
		return
	}
	if err := s.alerts.SetRuleEnabled(r.Context(), id, enabled); err != nil {
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
