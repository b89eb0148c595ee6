//go:build !darwin

package probes

import (
	"strconv"
	"time"
)

// pingArgs builds the Linux (and other POSIX) ping argument list for one
// TTL probe. -t sets the TTL, -W the timeout in whole seconds.
func pingArgs(host string, ttl int, timeout time.Duration, size int) []string {
	secs := int(timeout.Seconds())
	if secs < 1 {
		secs = 1
	}
	args := []string{
		"-c", "1",
		"-t", strconv.Itoa(ttl),
		"-W", strconv.Itoa(secs),
	}
	if size > 0 {
		args = append(args, "-s", strconv.Itoa(size))
	}
	return append(args, host)
}
