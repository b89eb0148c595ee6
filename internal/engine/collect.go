package engine

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/user/pathwatch/internal/model"
	"github.com/user/pathwatch/internal/probes"
	"github.com/user/pathwatch/internal/stats"
)

// collect is one sampling run: trace, enrich, persist, detect route
// changes, evaluate alerts, publish. Storage failures are logged and
// the run carries on; only a failed trace aborts it.
func (e *Engine) collect(target model.Target, j *job) {
	ctx := e.ctx
	start := time.Now()

	hops, err := e.tracer.Trace(ctx, probes.TraceRequest{
		Host:            target.Host,
		PacketType:      target.Probe.PacketType,
		PacketSize:      target.Probe.PacketSize,
		MaxHops:         target.Probe.MaxHops,
		Timeout:         target.Probe.Timeout,
		InterProbeDelay: target.Probe.InterProbeDelay,
		FinalHopOnly:    target.Probe.FinalHopOnly,
	})
	if err != nil {
		if errors.Is(err, probes.ErrProbeToolUnavailable) {
			e.logger.Warn("probe tool unavailable, keeping target scheduled",
				zap.Int64("target_id", target.ID), zap.Error(err))
		} else if ctx.Err() == nil {
			e.logger.Warn("trace failed",
				zap.Int64("target_id", target.ID),
				zap.String("host", target.Host),
				zap.Error(err))
		}
		return
	}

	for i := range hops {
		if hops[i].Addr != "" {
			hops[i].Name = e.resolver.Resolve(hops[i].Addr)
		}
	}

	// A run that outlived its target's deactivation is discarded whole:
	// nothing persisted, nothing published, no alert state advanced.
	if j.cancelled.Load() {
		e.logger.Debug("discarding run for deactivated target",
			zap.Int64("target_id", target.ID))
		return
	}

	at := time.Now()
	if err := e.samples.Append(ctx, target.ID, at, hops); err != nil {
		e.logger.Error("failed to persist samples",
			zap.Int64("target_id", target.ID), zap.Error(err))
	}

	result := &model.TraceResult{
		TargetID:  target.ID,
		Host:      target.Host,
		Timestamp: at,
		Hops:      hops,
	}
	e.hub.PublishSample(target.ID, result)

	change, err := e.detector.Check(ctx, target.ID, hops, at)
	if err != nil {
		e.logger.Error("route check failed",
			zap.Int64("target_id", target.ID), zap.Error(err))
	} else if change != nil {
		e.logger.Info("route change detected",
			zap.Int64("target_id", target.ID),
			zap.Strings("old_route", change.OldRoute),
			zap.Strings("new_route", change.NewRoute))
		e.hub.PublishRouteChange(target.ID, change)
	}

	e.evaluate(target, hops)

	e.logger.Debug("sampling run complete",
		zap.Int64("target_id", target.ID),
		zap.Int("hops", len(hops)),
		zap.Duration("took", time.Since(start)))
}

// evaluate recomputes per-hop focus-window stats and runs the target's
// enabled alert rules against them.
func (e *Engine) evaluate(target model.Target, hops []model.Hop) {
	ctx := e.ctx

	rules, err := e.rules.Rules(ctx, target.ID, true)
	if err != nil {
		e.logger.Error("failed to load alert rules",
			zap.Int64("target_id", target.ID), zap.Error(err))
		return
	}
	if len(rules) == 0 {
		return
	}

	allStats := make([]model.HopStats, 0, len(hops))
	for _, h := range hops {
		window, err := e.samples.Recent(ctx, target.ID, h.Number, e.focusSize)
		if err != nil {
			// Dropping one hop would shift the final-hop selector onto
			// the wrong hop, so a failed window load skips alerting for
			// the whole run.
			e.logger.Error("failed to load sample window, skipping alert evaluation",
				zap.Int64("target_id", target.ID),
				zap.Int("hop", h.Number),
				zap.Error(err))
			return
		}
		hs := stats.Focus(window, e.focusSize)
		hs.Hop = h.Number
		allStats = append(allStats, hs)
	}

	for _, ev := range e.evaluator.Evaluate(ctx, rules, allStats) {
		ev := ev
		if err := e.events.AppendEvent(ctx, &ev); err != nil {
			e.logger.Error("failed to persist alert event",
				zap.Int64("rule_id", ev.RuleID), zap.Error(err))
		}
		e.hub.PublishAlert(target.ID, &ev)
	}
}
