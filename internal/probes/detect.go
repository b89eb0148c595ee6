package probes

import (
	"context"
	"os/exec"

	"go.uber.org/zap"

	"github.com/user/pathwatch/internal/model"
)

// Detect selects the trace strategy for this host at startup.
//
// Per-hop ping probing is preferred because it needs no extra tooling
// and no root. The whole-route traceroute binary is the total fallback,
// and is also chosen when the configured packet type is one ping cannot
// produce. Returns ErrProbeToolUnavailable when neither binary exists.
func Detect(packetType model.PacketType, logger *zap.Logger) (Tracer, error) {
	_, pingErr := exec.LookPath("ping")
	_, trErr := exec.LookPath("traceroute")

	if pingErr == nil && packetType == model.PacketICMP {
		logger.Info("probe strategy selected", zap.String("strategy", "ping-per-hop"))
		return NewPingTracer(), nil
	}
	if trErr == nil {
		logger.Info("probe strategy selected",
			zap.String("strategy", "system-traceroute"),
			zap.String("packet_type", string(packetType)))
		return NewSystemTracer(), nil
	}
	if pingErr == nil {
		// Non-ICMP requested but only ping available; degrade to ICMP.
		logger.Warn("traceroute missing, degrading to ICMP ping probes",
			zap.String("requested", string(packetType)))
		return NewPingTracer(), nil
	}
	return nil, ErrProbeToolUnavailable
}

type unavailableTracer struct{}

func (unavailableTracer) Trace(ctx context.Context, req TraceRequest) ([]model.Hop, error) {
	return nil, ErrProbeToolUnavailable
}

// Unavailable returns a tracer whose every run fails with
// ErrProbeToolUnavailable. It lets the service start on hosts with no
// probe binary; the scheduler keeps targets registered and each run
// logs the missing tool.
func Unavailable() Tracer {
	return unavailableTracer{}
}
