// Package query implements the per-endpoint result cache with tag-based
// invalidation. Each (endpoint, argument) pair owns one slot holding the last
// successful result, the tags it depends on and its subscriber count.
//
// A single mutex serializes every cache operation, including the network call
// of a fetch. That mirrors the cooperative model the layer is written for: an
// optimistic patch is visible before its network call starts, and no two
// mutations interleave on the same slot.
package query

import (
	"context"
	"fmt"
	"sync"
	"time"

	coremetrics "github.com/dispatchkit/dispatchboard/core/metrics"
	"github.com/dispatchkit/dispatchboard/infra/logger"
	"github.com/dispatchkit/dispatchboard/internal/eventbus"
)

// Key identifies a cache slot.
type Key struct {
	Endpoint string
	Arg      string
}

func (k Key) String() string {
	if k.Arg == "" {
		return k.Endpoint
	}
	return k.Endpoint + "/" + k.Arg
}

// FetchFunc performs the network call for a slot and returns the result
// together with the tags it depends on.
type FetchFunc func(ctx context.Context) (any, []Tag, error)

// Undo reverts an optimistic update, restoring the slot contents that were
// present immediately before the update was applied.
type Undo func()

type slot struct {
	fetch   FetchFunc
	data    any
	hasData bool
	stale   bool
	tags    []Tag
	subs    int
	ver     uint64
}

// Cache owns all query slots and the tag index used for invalidation fan-out.
type Cache struct {
	mu      sync.Mutex
	slots   map[Key]*slot
	byTag   map[Tag]map[Key]struct{}
	bus     *eventbus.Bus[Tag]
	log     logger.Logger
	metrics coremetrics.Sink
}

// New creates an empty cache. A nil sink disables metrics.
func New(log logger.Logger, sink coremetrics.Sink) *Cache {
	if log == nil {
		log = logger.NopLogger{}
	}
	if sink == nil {
		sink = coremetrics.NopSink{}
	}
	return &Cache{
		slots:   make(map[Key]*slot),
		byTag:   make(map[Tag]map[Key]struct{}),
		bus:     eventbus.New[Tag](16),
		log:     log,
		metrics: sink,
	}
}

// Register declares a slot and the fetcher that fills it. Registering an
// existing key replaces its fetcher but keeps cached data.
func (c *Cache) Register(key Key, fetch FetchFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.slots[key]; ok {
		s.fetch = fetch
		return
	}
	c.slots[key] = &slot{fetch: fetch}
}

// Fetch returns the cached result when present and fresh, otherwise it runs
// the slot fetcher and stores the outcome with its tags.
func (c *Cache) Fetch(ctx context.Context, key Key) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.slots[key]
	if !ok {
		return nil, fmt.Errorf("query: slot %s not registered", key)
	}
	if s.hasData && !s.stale {
		_ = c.metrics.RecordQuery(coremetrics.QueryEvent{Endpoint: key.Endpoint, Hit: true})
		return s.data, nil
	}
	return c.refetchLocked(ctx, key, s)
}

// Refetch bypasses the cached result and runs the slot fetcher. Polling
// consumers use it to pick up server-side changes no mutation announced.
func (c *Cache) Refetch(ctx context.Context, key Key) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.slots[key]
	if !ok {
		return nil, fmt.Errorf("query: slot %s not registered", key)
	}
	return c.refetchLocked(ctx, key, s)
}

// refetchLocked runs the slot fetcher and updates data, tags and version.
// Callers hold the cache lock.
func (c *Cache) refetchLocked(ctx context.Context, key Key, s *slot) (any, error) {
	start := time.Now()
	data, tags, err := s.fetch(ctx)
	if err != nil {
		_ = c.metrics.RecordQuery(coremetrics.QueryEvent{Endpoint: key.Endpoint, Latency: time.Since(start), Err: true})
		return nil, err
	}
	c.retagLocked(key, s, tags)
	s.data = data
	s.hasData = true
	s.stale = false
	s.ver++
	_ = c.metrics.RecordQuery(coremetrics.QueryEvent{Endpoint: key.Endpoint, Latency: time.Since(start)})
	c.log.Debugw("slot filled", map[string]any{"slot": key.String(), "tags": len(tags)})
	return data, nil
}

func (c *Cache) retagLocked(key Key, s *slot, tags []Tag) {
	for _, t := range s.tags {
		if keys, ok := c.byTag[t]; ok {
			delete(keys, key)
			if len(keys) == 0 {
				delete(c.byTag, t)
			}
		}
	}
	s.tags = tags
	for _, t := range tags {
		keys, ok := c.byTag[t]
		if !ok {
			keys = make(map[Key]struct{})
			c.byTag[t] = keys
		}
		keys[key] = struct{}{}
	}
}

// Data returns the cached result for the slot, if any.
func (c *Cache) Data(key Key) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.slots[key]
	if !ok || !s.hasData {
		return nil, false
	}
	return s.data, true
}

// Version returns a counter bumped on every slot content change. Selectors
// memoize on it.
func (c *Cache) Version(key Key) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.slots[key]; ok {
		return s.ver
	}
	return 0
}

// Subscribe marks the slot as actively consumed; invalidation refetches
// subscribed slots instead of only marking them stale.
func (c *Cache) Subscribe(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.slots[key]; ok {
		s.subs++
	}
}

// Unsubscribe releases one subscription.
func (c *Cache) Unsubscribe(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.slots[key]; ok && s.subs > 0 {
		s.subs--
	}
}

// Update applies an optimistic patch to the slot contents. apply receives the
// current data and must return a fresh value instead of mutating in place, so
// the returned Undo can restore the prior contents exactly. An empty slot is
// a silent no-op: the slot may simply not be populated yet.
func (c *Cache) Update(key Key, apply func(any) any) Undo {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.slots[key]
	if !ok || !s.hasData {
		return func() {}
	}
	prev := s.data
	s.data = apply(prev)
	s.ver++
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		s.data = prev
		s.ver++
	}
}

// Invalidate marks every slot depending on one of the tags as stale and
// refetches the ones with active subscribers. Failed refetches keep the slot
// stale so the next Fetch retries.
func (c *Cache) Invalidate(ctx context.Context, tags ...Tag) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range tags {
		keys := c.byTag[t]
		_ = c.metrics.RecordInvalidation(coremetrics.InvalidationEvent{Tag: t.String(), Fanout: len(keys)})
		c.bus.Publish(t)
		for key := range keys {
			s := c.slots[key]
			s.stale = true
			if s.subs == 0 {
				continue
			}
			if _, err := c.refetchLocked(ctx, key, s); err != nil {
				c.log.Errorf("refetch %s after %s: %v", key, t, err)
			}
		}
	}
}

// Invalidations returns a channel of invalidated tags. Consumers such as the
// map bridge use it to resync after list changes.
func (c *Cache) Invalidations() <-chan Tag {
	return c.bus.Subscribe()
}

// Close releases the invalidation bus.
func (c *Cache) Close() {
	c.bus.Close()
}

// Data returns the slot contents decoded as T, or the zero value when the
// slot is empty or holds a different type.
func Data[T any](c *Cache, key Key) (T, bool) {
	var zero T
	raw, ok := c.Data(key)
	if !ok {
		return zero, false
	}
	v, ok := raw.(T)
	if !ok {
		return zero, false
	}
	return v, true
}

// Fetch runs Cache.Fetch and decodes the result as T.
func Fetch[T any](ctx context.Context, c *Cache, key Key) (T, error) {
	var zero T
	raw, err := c.Fetch(ctx, key)
	if err != nil {
		return zero, err
	}
	v, ok := raw.(T)
	if !ok {
		return zero, fmt.Errorf("query: slot %s holds %T", key, raw)
	}
	return v, nil
}
