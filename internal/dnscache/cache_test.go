package dnscache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fakeLookup(answers map[string]string, calls *int) func(context.Context, string) ([]string, error) {
	return func(_ context.Context, addr string) ([]string, error) {
		*calls++
		name, ok := answers[addr]
		if !ok {
			return nil, errors.New("no PTR record")
		}
		return []string{name}, nil
	}
}

func TestResolve_CachesHits(t *testing.T) {
	calls := 0
	r := New(8, time.Second)
	r.lookup = fakeLookup(map[string]string{"10.0.0.1": "gw.example.net."}, &calls)

	assert.Equal(t, "gw.example.net", r.Resolve("10.0.0.1"))
	assert.Equal(t, "gw.example.net", r.Resolve("10.0.0.1"))
	assert.Equal(t, 1, calls)

	st := r.Stats()
	assert.Equal(t, uint64(1), st.Hits)
	assert.Equal(t, uint64(1), st.Misses)
}

func TestResolve_FailureCachesSentinel(t *testing.T) {
	calls := 0
	r := New(8, time.Second)
	r.lookup = fakeLookup(map[string]string{}, &calls)

	assert.Equal(t, NoPTR, r.Resolve("192.0.2.9"))
	assert.Equal(t, NoPTR, r.Resolve("192.0.2.9"))
	assert.Equal(t, 1, calls, "failed lookups must not retry on every call")
}

func TestResolve_EmptyAddr(t *testing.T) {
	r := New(8, time.Second)
	assert.Equal(t, NoPTR, r.Resolve(""))
}

func TestResolve_LRUEviction(t *testing.T) {
	calls := 0
	answers := map[string]string{
		"10.0.0.1": "a.example.net.",
		"10.0.0.2": "b.example.net.",
		"10.0.0.3": "c.example.net.",
	}
	r := New(2, time.Second)
	r.lookup = fakeLookup(answers, &calls)

	r.Resolve("10.0.0.1")
	r.Resolve("10.0.0.2")
	r.Resolve("10.0.0.1") // keep .1 fresh
	r.Resolve("10.0.0.3") // evicts .2

	calls = 0
	r.Resolve("10.0.0.1")
	r.Resolve("10.0.0.3")
	assert.Equal(t, 0, calls, "fresh entries should still be cached")

	r.Resolve("10.0.0.2")
	assert.Equal(t, 1, calls, "evicted entry should require a new lookup")
	assert.Equal(t, 2, r.Stats().Size)
}

func TestRefresh_BypassesCache(t *testing.T) {
	calls := 0
	answers := map[string]string{"10.0.0.1": "old.example.net."}
	r := New(8, time.Second)
	r.lookup = fakeLookup(answers, &calls)

	assert.Equal(t, "old.example.net", r.Resolve("10.0.0.1"))

	answers["10.0.0.1"] = "new.example.net."
	assert.Equal(t, "old.example.net", r.Resolve("10.0.0.1"), "cached value served")
	assert.Equal(t, "new.example.net", r.Refresh("10.0.0.1"))
	assert.Equal(t, "new.example.net", r.Resolve("10.0.0.1"), "refresh replaces cache entry")
}

func TestClear(t *testing.T) {
	calls := 0
	r := New(8, time.Second)
	r.lookup = fakeLookup(map[string]string{"10.0.0.1": "a.example.net."}, &calls)

	r.Resolve("10.0.0.1")
	r.Clear()
	r.Resolve("10.0.0.1")
	assert.Equal(t, 2, calls)
}
