package probes

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/user/pathwatch/internal/model"
)

// Matches " 1  192.168.0.1  1.234 ms" or " 1  *".
var reTracerouteHop = regexp.MustCompile(`^\s*(\d+)\s+(?:(\d+\.\d+\.\d+\.\d+)\s+([\d.]+)\s*ms|\*)`)

// SystemTracer runs the system traceroute binary for the whole route in
// one invocation. It is the fallback when per-hop ping probing is
// unavailable or unreliable on the host platform, and the only strategy
// that supports UDP and TCP packet types.
type SystemTracer struct{}

// NewSystemTracer creates a whole-route traceroute tracer.
func NewSystemTracer() *SystemTracer {
	return &SystemTracer{}
}

// Trace shells out to traceroute and parses its output into ordered hops.
func (p *SystemTracer) Trace(ctx context.Context, req TraceRequest) ([]model.Hop, error) {
	req.normalize()

	secs := int(req.Timeout.Seconds())
	if secs < 1 {
		secs = 1
	}

	// -n = numeric output, -q 1 = one probe per hop.
	args := []string{"-n", "-q", "1",
		"-w", strconv.Itoa(secs),
		"-m", strconv.Itoa(req.MaxHops)}
	switch req.PacketType {
	case model.PacketICMP:
		args = append(args, "-I")
	case model.PacketTCP:
		args = append(args, "-T")
	}
	if req.FinalHopOnly {
		args = append(args, "-f", strconv.Itoa(req.MaxHops))
	}
	args = append(args, req.Host)
	if req.PacketSize > 0 {
		args = append(args, strconv.Itoa(req.PacketSize))
	}

	runCtx, cancel := context.WithTimeout(ctx,
		time.Duration(req.MaxHops)*req.Timeout+10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "traceroute", args...)
	out, err := cmd.Output()
	if err != nil {
		if execErr, ok := err.(*exec.Error); ok && execErr.Err == exec.ErrNotFound {
			return nil, fmt.Errorf("%w: %v", ErrProbeToolUnavailable, err)
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("%w: traceroute: %v", ErrProbeToolUnavailable, err)
		}
		// Partial output still parses; traceroute exits non-zero on
		// unreachable destinations.
	}

	hops := parseTracerouteOutput(string(out))
	if req.FinalHopOnly && len(hops) > 0 {
		last := hops[len(hops)-1]
		last.Number = 1
		hops = []model.Hop{last}
	}
	return hops, nil
}

func parseTracerouteOutput(output string) []model.Hop {
	var hops []model.Hop

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		m := reTracerouteHop.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		num, _ := strconv.Atoi(m[1])
		hop := model.Hop{Number: num, Timeout: true}
		if m[2] != "" {
			hop.Addr = m[2]
			hop.Timeout = false
			if m[3] != "" {
				if rtt, err := strconv.ParseFloat(m[3], 64); err == nil {
					hop.RTTMs = &rtt
				}
			}
		}
		hops = append(hops, hop)
	}

	return hops
}
