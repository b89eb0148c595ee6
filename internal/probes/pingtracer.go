package probes

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"regexp"
	"strconv"
	"time"

	"github.com/user/pathwatch/internal/model"
)

// Patterns for parsing ping output across platforms.
var (
	reTTLExceededMac   = regexp.MustCompile(`(\d+) bytes from ([\d.]+): Time to live exceeded`)
	reTTLExceededLinux = regexp.MustCompile(`From ([\d.]+).*Time to live exceeded`)
	reReplyRTT         = regexp.MustCompile(`time[=<]([\d.]+)\s*ms`)
	reReplyFrom        = regexp.MustCompile(`from ([\d.]+)`)
)

// PingTracer probes one TTL at a time with the system ping binary.
// Works without root on both macOS and Linux. ICMP only; UDP and TCP
// packet types fall back to SystemTracer at detection time.
type PingTracer struct {
	// run invokes one ping and returns its combined output. Injectable
	// for tests; defaults to the system binary.
	run func(ctx context.Context, args []string) (string, error)
}

// NewPingTracer creates a ping-per-hop tracer.
func NewPingTracer() *PingTracer {
	return &PingTracer{run: runPing}
}

func runPing(ctx context.Context, args []string) (string, error) {
	out, err := exec.CommandContext(ctx, "ping", args...).CombinedOutput()
	return string(out), err
}

// Trace iterates TTL 1..MaxHops, stopping at the destination reply.
func (p *PingTracer) Trace(ctx context.Context, req TraceRequest) ([]model.Hop, error) {
	req.normalize()

	targetIP, err := resolveTarget(ctx, req.Host)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving %s: %v", ErrProbeToolUnavailable, req.Host, err)
	}

	if req.FinalHopOnly {
		hop, err := p.probe(ctx, req, targetIP, req.MaxHops)
		if err != nil {
			return nil, err
		}
		hop.Number = 1
		return []model.Hop{hop}, nil
	}

	hops := make([]model.Hop, 0, req.MaxHops)
	consecutiveTimeouts := 0

	for ttl := 1; ttl <= req.MaxHops; ttl++ {
		hop, err := p.probe(ctx, req, targetIP, ttl)
		if err != nil {
			return nil, err
		}
		hops = append(hops, hop)

		if hop.Addr == targetIP {
			break
		}
		if hop.Timeout {
			consecutiveTimeouts++
			if req.MaxConsecutiveTimeouts > 0 && consecutiveTimeouts >= req.MaxConsecutiveTimeouts {
				break
			}
		} else {
			consecutiveTimeouts = 0
		}

		if req.InterProbeDelay > 0 && ttl < req.MaxHops {
			select {
			case <-ctx.Done():
				return hops, ctx.Err()
			case <-time.After(req.InterProbeDelay):
			}
		}
	}

	return hops, nil
}

// probe sends a single ping at the given TTL and parses the result.
func (p *PingTracer) probe(ctx context.Context, req TraceRequest, targetIP string, ttl int) (model.Hop, error) {
	hop := model.Hop{Number: ttl}

	runCtx, cancel := context.WithTimeout(ctx, req.Timeout+2*time.Second)
	defer cancel()

	args := pingArgs(req.Host, ttl, req.Timeout, req.PacketSize)

	start := time.Now()
	output, err := p.run(runCtx, args)
	elapsed := float64(time.Since(start).Microseconds()) / 1000.0

	if err != nil {
		if execErr, ok := err.(*exec.Error); ok && execErr.Err == exec.ErrNotFound {
			return hop, fmt.Errorf("%w: %v", ErrProbeToolUnavailable, err)
		}
		// Non-zero exit is normal for both TTL-exceeded and timeout;
		// the output decides which.
	}

	// TTL exceeded: an intermediate router answered. Ping prints no RTT
	// for expired probes, so the recorded value is the subprocess
	// wall-clock, an upper bound that includes process startup overhead.
	if m := reTTLExceededMac.FindStringSubmatch(output); m != nil {
		hop.Addr = m[2]
		hop.RTTMs = &elapsed
		return hop, nil
	}
	if m := reTTLExceededLinux.FindStringSubmatch(output); m != nil {
		hop.Addr = m[1]
		hop.RTTMs = &elapsed
		return hop, nil
	}

	// Echo reply: destination reached.
	rttMatch := reReplyRTT.FindStringSubmatch(output)
	fromMatch := reReplyFrom.FindStringSubmatch(output)
	if rttMatch != nil && fromMatch != nil {
		rtt, perr := strconv.ParseFloat(rttMatch[1], 64)
		if perr == nil {
			hop.Addr = fromMatch[1]
			hop.RTTMs = &rtt
			return hop, nil
		}
	}

	hop.Timeout = true
	return hop, nil
}

// resolveTarget resolves host to an IPv4 address string.
func resolveTarget(ctx context.Context, host string) (string, error) {
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return "", err
	}
	for _, a := range addrs {
		if v4 := a.IP.To4(); v4 != nil {
			return v4.String(), nil
		}
	}
	if len(addrs) > 0 {
		return addrs[0].IP.String(), nil
	}
	return "", fmt.Errorf("no addresses for %s", host)
}
