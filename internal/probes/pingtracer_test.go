package probes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedTracer returns canned ping outputs in order, one per probe.
func scriptedTracer(outputs []string) (*PingTracer, *int) {
	calls := 0
	p := &PingTracer{run: func(ctx context.Context, args []string) (string, error) {
		if calls >= len(outputs) {
			calls++
			return "Request timeout for icmp_seq 0", nil
		}
		out := outputs[calls]
		calls++
		return out, nil
	}}
	return p, &calls
}

func TestPingTracerStopsAtDestination(t *testing.T) {
	p, calls := scriptedTracer([]string{
		"From 10.0.0.1 icmp_seq=1 Time to live exceeded",
		"From 10.0.0.2 icmp_seq=1 Time to live exceeded",
		"64 bytes from 192.0.2.9: icmp_seq=1 ttl=61 time=12.3 ms",
		"64 bytes from 192.0.2.9: icmp_seq=1 ttl=61 time=12.3 ms",
	})

	hops, err := p.Trace(context.Background(), TraceRequest{
		Host:    "192.0.2.9",
		MaxHops: 30,
	})
	require.NoError(t, err)

	require.Len(t, hops, 3, "trace must end at the destination reply")
	assert.Equal(t, 3, *calls, "no probes after the destination answered")

	assert.Equal(t, "10.0.0.1", hops[0].Addr)
	assert.Equal(t, "10.0.0.2", hops[1].Addr)
	assert.Equal(t, "192.0.2.9", hops[2].Addr)
	assert.Equal(t, 3, hops[2].Number)
	require.NotNil(t, hops[2].RTTMs)
	assert.Equal(t, 12.3, *hops[2].RTTMs)
	for _, h := range hops {
		assert.False(t, h.Timeout)
	}
}

func TestPingTracerLostIntermediateHopContinues(t *testing.T) {
	p, _ := scriptedTracer([]string{
		"From 10.0.0.1 icmp_seq=1 Time to live exceeded",
		"Request timeout for icmp_seq 0",
		"64 bytes from 192.0.2.9: icmp_seq=1 ttl=62 time=8.1 ms",
	})

	hops, err := p.Trace(context.Background(), TraceRequest{
		Host:    "192.0.2.9",
		MaxHops: 30,
	})
	require.NoError(t, err)

	require.Len(t, hops, 3)
	assert.True(t, hops[1].Timeout)
	assert.Empty(t, hops[1].Addr)
	assert.Equal(t, "192.0.2.9", hops[2].Addr)
}

func TestPingTracerExhaustsMaxHops(t *testing.T) {
	p, calls := scriptedTracer(nil)

	hops, err := p.Trace(context.Background(), TraceRequest{
		Host:    "192.0.2.9",
		MaxHops: 4,
	})
	require.NoError(t, err, "an unreached destination is a complete result, not an error")

	require.Len(t, hops, 4)
	assert.Equal(t, 4, *calls)
	for i, h := range hops {
		assert.Equal(t, i+1, h.Number)
		assert.True(t, h.Timeout)
	}
}

func TestPingTracerFinalHopOnly(t *testing.T) {
	p, calls := scriptedTracer([]string{
		"64 bytes from 192.0.2.9: icmp_seq=1 ttl=56 time=20.4 ms",
	})

	hops, err := p.Trace(context.Background(), TraceRequest{
		Host:         "192.0.2.9",
		MaxHops:      30,
		FinalHopOnly: true,
	})
	require.NoError(t, err)

	require.Len(t, hops, 1)
	assert.Equal(t, 1, *calls)
	assert.Equal(t, 1, hops[0].Number)
	assert.Equal(t, "192.0.2.9", hops[0].Addr)
}

func TestPingTracerConsecutiveTimeoutStop(t *testing.T) {
	p, calls := scriptedTracer([]string{
		"From 10.0.0.1 icmp_seq=1 Time to live exceeded",
	})

	hops, err := p.Trace(context.Background(), TraceRequest{
		Host:                   "192.0.2.9",
		MaxHops:                30,
		MaxConsecutiveTimeouts: 3,
	})
	require.NoError(t, err)

	require.Len(t, hops, 4)
	assert.Equal(t, 4, *calls)
	assert.False(t, hops[0].Timeout)
	for _, h := range hops[1:] {
		assert.True(t, h.Timeout)
	}
}
