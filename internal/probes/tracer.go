// Package probes runs per-hop trace attempts against monitored targets.
//
// Two strategies implement the Tracer interface: PingTracer sends one
// system ping per TTL, SystemTracer shells out to the whole-route
// traceroute binary and parses its output. Detect picks the working
// strategy for the host platform at startup.
package probes

import (
	"context"
	"errors"
	"time"

	"github.com/user/pathwatch/internal/model"
)

// ErrProbeToolUnavailable reports that the underlying probing facility is
// missing or broken. It is fatal for the current run only; the target
// stays scheduled and is retried on the next interval.
var ErrProbeToolUnavailable = errors.New("probe tool unavailable")

// TraceRequest describes one trace attempt.
type TraceRequest struct {
	Host            string
	PacketType      model.PacketType
	PacketSize      int
	MaxHops         int
	Timeout         time.Duration
	InterProbeDelay time.Duration
	FinalHopOnly    bool

	// End the trace early after this many consecutive hop timeouts.
	// Zero disables the early stop and the trace always runs to MaxHops
	// or the destination.
	MaxConsecutiveTimeouts int
}

func (r *TraceRequest) normalize() {
	if r.MaxHops <= 0 {
		r.MaxHops = 30
	}
	if r.Timeout <= 0 {
		r.Timeout = 3 * time.Second
	}
}

// Tracer runs one trace attempt, hop by hop, against a target.
//
// The returned hops are ordered by hop number. A hop that produced no
// reply within the timeout is present with Timeout set; it never aborts
// the trace. A trace that exhausts MaxHops without a destination reply
// is a valid, complete result, not an error.
type Tracer interface {
	Trace(ctx context.Context, req TraceRequest) ([]model.Hop, error)
}
