// Package visits counts page views in memory. Counts reset when the
// process restarts.
package visits

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Counter is a set of named counters safe for concurrent use.
type Counter struct {
	counts sync.Map // string -> *atomic.Uint64
}

// NewCounter returns an empty Counter.
func NewCounter() *Counter {
	return &Counter{}
}

func (c *Counter) slot(key string) *atomic.Uint64 {
	if v, ok := c.counts.Load(key); ok {
		return v.(*atomic.Uint64)
	}
	v, _ := c.counts.LoadOrStore(key, new(atomic.Uint64))
	return v.(*atomic.Uint64)
}

// Hit increments key and returns its new count.
func (c *Counter) Hit(key string) uint64 {
	return c.slot(key).Add(1)
}

// Get returns the count of key, zero if it was never hit.
func (c *Counter) Get(key string) uint64 {
	if v, ok := c.counts.Load(key); ok {
		return v.(*atomic.Uint64).Load()
	}
	return 0
}

// Total is the sum over every key.
func (c *Counter) Total() uint64 {
	var total uint64
	c.counts.Range(func(_, v any) bool {
		total += v.(*atomic.Uint64).Load()
		return true
	})
	return total
}

// Entry is one key and its count.
type Entry struct {
	Key   string `json:"key"`
	Count uint64 `json:"count"`
}

// Snapshot returns every counter sorted by key.
func (c *Counter) Snapshot() []Entry {
	out := []Entry{}
	c.counts.Range(func(k, v any) bool {
		out = append(out, Entry{Key: k.(string), Count: v.(*atomic.Uint64).Load()})
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
