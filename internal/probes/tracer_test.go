package probes

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTracerouteOutput(t *testing.T) {
	out := `traceroute to example.net (93.184.216.34), 30 hops max, 60 byte packets
 1  192.168.0.1  1.234 ms
 2  *
 3  10.20.30.40  12.5 ms
`
	hops := parseTracerouteOutput(out)
	require.Len(t, hops, 3)

	assert.Equal(t, 1, hops[0].Number)
	assert.Equal(t, "192.168.0.1", hops[0].Addr)
	require.NotNil(t, hops[0].RTTMs)
	assert.Equal(t, 1.234, *hops[0].RTTMs)
	assert.False(t, hops[0].Timeout)

	assert.Equal(t, 2, hops[1].Number)
	assert.Empty(t, hops[1].Addr)
	assert.Nil(t, hops[1].RTTMs)
	assert.True(t, hops[1].Timeout)

	assert.Equal(t, "10.20.30.40", hops[2].Addr)
}

func TestParseTracerouteOutputEmpty(t *testing.T) {
	assert.Empty(t, parseTracerouteOutput(""))
	assert.Empty(t, parseTracerouteOutput("traceroute: unknown host nope.invalid\n"))
}

func TestPingReplyPatterns(t *testing.T) {
	linuxTTL := "From 192.168.0.1 icmp_seq=1 Time to live exceeded"
	m := reTTLExceededLinux.FindStringSubmatch(linuxTTL)
	require.NotNil(t, m)
	assert.Equal(t, "192.168.0.1", m[1])

	macTTL := "36 bytes from 10.0.0.1: Time to live exceeded"
	m = reTTLExceededMac.FindStringSubmatch(macTTL)
	require.NotNil(t, m)
	assert.Equal(t, "10.0.0.1", m[2])

	reply := "64 bytes from 93.184.216.34: icmp_seq=1 ttl=56 time=11.2 ms"
	rtt := reReplyRTT.FindStringSubmatch(reply)
	require.NotNil(t, rtt)
	assert.Equal(t, "11.2", rtt[1])
	from := reReplyFrom.FindStringSubmatch(reply)
	require.NotNil(t, from)
	assert.Equal(t, "93.184.216.34", from[1])

	// Sub-millisecond replies print "time<1 ms".
	fast := "64 bytes from 127.0.0.1: icmp_seq=1 ttl=64 time<1 ms"
	rtt = reReplyRTT.FindStringSubmatch(fast)
	require.NotNil(t, rtt)
	assert.Equal(t, "1", rtt[1])

	assert.Nil(t, reReplyRTT.FindStringSubmatch("Request timeout for icmp_seq 0"))
}

func TestTraceRequestNormalize(t *testing.T) {
	req := TraceRequest{Host: "example.net"}
	req.normalize()

	assert.Equal(t, 30, req.MaxHops)
	assert.Equal(t, 3*time.Second, req.Timeout)

	req = TraceRequest{Host: "example.net", MaxHops: 12, Timeout: time.Second}
	req.normalize()
	assert.Equal(t, 12, req.MaxHops)
	assert.Equal(t, time.Second, req.Timeout)
}
