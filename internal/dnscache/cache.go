// Package dnscache resolves hop addresses to names through a bounded
// LRU cache of reverse lookups.
package dnscache

import (
	"container/list"
	"context"
	"net"
	"strings"
	"sync"
	"time"
)

// NoPTR is returned and cached when an address has no reverse record or
// the lookup fails.
const NoPTR = "----------"

type entry struct {
	addr string
	name string
}

// Stats reports cache effectiveness.
type Stats struct {
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Size    int    `json:"size"`
	MaxSize int    `json:"max_size"`
}

// Resolver caches reverse lookups with least-recently-used eviction.
// Safe for concurrent use by all in-flight probe runs.
type Resolver struct {
	mu      sync.Mutex
	maxSize int
	timeout time.Duration
	items   map[string]*list.Element
	order   *list.List // front = most recently used
	hits    uint64
	misses  uint64

	lookup func(ctx context.Context, addr string) ([]string, error)
}

// New creates a resolver holding at most maxSize addresses; each lookup
// is bounded by timeout.
func New(maxSize int, timeout time.Duration) *Resolver {
	if maxSize <= 0 {
		maxSize = 512
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Resolver{
		maxSize: maxSize,
		timeout: timeout,
		items:   make(map[string]*list.Element),
		order:   list.New(),
		lookup:  net.DefaultResolver.LookupAddr,
	}
}

// Resolve returns the reverse name for addr, or NoPTR when none exists.
// Failures are cached so repeated lookups of a dead address stay cheap.
func (r *Resolver) Resolve(addr string) string {
	if addr == "" {
		return NoPTR
	}

	r.mu.Lock()
	if el, ok := r.items[addr]; ok {
		r.order.MoveToFront(el)
		r.hits++
		name := el.Value.(*entry).name
		r.mu.Unlock()
		return name
	}
	r.misses++
	r.mu.Unlock()

	name := r.resolveUncached(addr)
	r.store(addr, name)
	return name
}

// Refresh forces a fresh lookup for addr, replacing any cached value.
// Used for addresses known to carry dynamic reverse records.
func (r *Resolver) Refresh(addr string) string {
	if addr == "" {
		return NoPTR
	}
	name := r.resolveUncached(addr)
	r.store(addr, name)
	return name
}

func (r *Resolver) resolveUncached(addr string) string {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	names, err := r.lookup(ctx, addr)
	if err != nil || len(names) == 0 {
		return NoPTR
	}
	return strings.TrimSuffix(names[0], ".")
}

func (r *Resolver) store(addr, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if el, ok := r.items[addr]; ok {
		el.Value.(*entry).name = name
		r.order.MoveToFront(el)
		return
	}
	r.items[addr] = r.order.PushFront(&entry{addr: addr, name: name})
	if r.order.Len() > r.maxSize {
		oldest := r.order.Back()
		r.order.Remove(oldest)
		delete(r.items, oldest.Value.(*entry).addr)
	}
}

// Clear flushes all cached entries.
func (r *Resolver) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = make(map[string]*list.Element)
	r.order.Init()
}

// Stats returns hit/miss counters and current occupancy.
func (r *Resolver) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{
		Hits:    r.hits,
		Misses:  r.misses,
		Size:    r.order.Len(),
		MaxSize: r.maxSize,
	}
}
