package query

import (
	"context"
	"sync"
	"time"

	"pathlog/api"
	"pathlog/utils"
)

// FetchFunc performs the actual backend read for a cache key.
type FetchFunc func(ctx context.Context) (interface{}, error)

// Result is an observation of a cache entry.
type Result struct {
	Data     interface{}
	Err      error
	HasData  bool
	Stale    bool // data predates the latest invalidation, or is a placeholder from another key
	Fetching bool // a request for this key is in flight
}

type call struct {
	gen  uint64
	done chan struct{}
	data interface{}
	err  error
}

type entry struct {
	data      interface{}
	err       error
	hasData   bool
	stale     bool
	fetchedAt time.Time
	gen       uint64 // bumped per issued fetch and per invalidation; only the matching fetch may write
	inflight  *call
}

// Cache is the explicit read-through cache behind the domain query
// layer. Two reads with the same key share one in-flight request and
// one stored result; a mutation's success path invalidates a whole
// resource prefix so the next observation refetches.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	ttl     time.Duration
}

// NewCache creates a cache whose entries go stale after ttl even
// without an invalidation. A zero ttl disables the safety net.
func NewCache(ttl time.Duration) *Cache {
	cache := &Cache{
		entries: make(map[string]*entry),
		ttl:     ttl,
	}

	// Start cleanup goroutine
	go cache.cleanupLoop()

	return cache
}

// Fetch returns the cached value for key, or performs fn once and
// caches it. Concurrent callers for the same key join the same request.
// If ctx is cancelled while waiting the caller gets ctx.Err() back and
// the cache is left untouched.
func (c *Cache) Fetch(ctx context.Context, key Key, fn FetchFunc) (interface{}, error) {
	k := key.String()

	for {
		c.mu.Lock()
		e, ok := c.entries[k]
		if !ok {
			e = &entry{}
			c.entries[k] = e
		}

		if e.hasData && !e.stale && !c.expired(e) {
			data := e.data
			c.mu.Unlock()
			return data, nil
		}

		// Join the in-flight call only while it is still current. An
		// invalidation bumps the generation, so a fetch issued before
		// the mutation must not serve a read issued after it: the old
		// call keeps resolving for its own waiters while a fresh fetch
		// starts here.
		if e.inflight == nil || e.inflight.gen != e.gen {
			e.gen++
			cl := &call{gen: e.gen, done: make(chan struct{})}
			e.inflight = cl
			c.mu.Unlock()
			go c.run(ctx, k, cl, fn)
			return c.wait(ctx, cl)
		}

		cl := e.inflight
		c.mu.Unlock()

		data, err := c.wait(ctx, cl)
		// The shared fetch was abandoned by its initiator, but this
		// caller is still live: start over instead of surfacing a
		// cancellation the caller never asked for.
		if err != nil && api.IsCancelled(err) && ctx.Err() == nil {
			continue
		}
		return data, err
	}
}

func (c *Cache) wait(ctx context.Context, cl *call) (interface{}, error) {
	select {
	case <-cl.done:
		return cl.data, cl.err
	case <-ctx.Done():
		// Abandoned: the fetch may still complete for other waiters,
		// but this caller is gone. Nothing is notified.
		return nil, ctx.Err()
	}
}

// run executes one fetch and commits the outcome, unless the entry has
// moved on (newer fetch issued, or invalidated) or the fetch was
// cancelled. A superseded or cancelled response never mutates the
// cache.
func (c *Cache) run(ctx context.Context, k string, cl *call, fn FetchFunc) {
	data, err := fn(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[k]; ok {
		if e.inflight == cl {
			e.inflight = nil
		}
		if cl.gen == e.gen && (err == nil || !api.IsCancelled(err)) {
			if err == nil {
				e.data = data
				e.hasData = true
				e.stale = false
				e.err = nil
				e.fetchedAt = time.Now()
			} else {
				e.err = err
			}
		}
	}

	cl.data = data
	cl.err = err
	close(cl.done)
}

// Peek observes an entry without triggering a fetch.
func (c *Cache) Peek(key Key) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.String()]
	if !ok {
		return Result{}
	}
	return Result{
		Data:     e.data,
		Err:      e.err,
		HasData:  e.hasData,
		Stale:    e.stale || c.expired(e),
		Fetching: e.inflight != nil,
	}
}

// Placeholder returns the most recently fetched data under prefix, for
// showing the previous page while a new one loads. The caller must
// surface it as stale so consumers can tell "old page N-1" apart from
// "no data".
func (c *Cache) Placeholder(prefix Key) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var (
		newest    interface{}
		newestAt  time.Time
		found     bool
		prefixStr = prefix.String()
	)
	for k, e := range c.entries {
		if !e.hasData {
			continue
		}
		if !keyStringHasPrefix(k, prefixStr) {
			continue
		}
		if !found || e.fetchedAt.After(newestAt) {
			newest = e.data
			newestAt = e.fetchedAt
			found = true
		}
	}
	return newest, found
}

// Invalidate marks every entry under prefix stale, forcing the next
// observation of those keys to refetch. Results of fetches already in
// flight are discarded rather than cached. Called only from mutation
// success paths.
func (c *Cache) Invalidate(prefix Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prefixStr := prefix.String()
	count := 0
	for k, e := range c.entries {
		if !keyStringHasPrefix(k, prefixStr) {
			continue
		}
		e.stale = true
		e.gen++
		e.err = nil
		count++
	}
	utils.Log.Debug("invalidated %d cache entries under %s", count, prefixStr)
}

// Size returns the number of entries in cache
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// Keys returns all keys in cache
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}

	return keys
}

func (c *Cache) expired(e *entry) bool {
	return c.ttl > 0 && e.hasData && time.Since(e.fetchedAt) > c.ttl
}

// cleanupLoop periodically drops idle stale entries so an abandoned
// filter combination does not pin its pages forever.
func (c *Cache) cleanupLoop() {
	if c.ttl <= 0 {
		return
	}

	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		c.cleanup()
	}
}

func (c *Cache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, e := range c.entries {
		if e.inflight == nil && (e.stale || c.expired(e)) {
			delete(c.entries, k)
		}
	}
}

func keyStringHasPrefix(k, prefix string) bool {
	if prefix == "" {
		return true
	}
	if len(k) < len(prefix) || k[:len(prefix)] != prefix {
		return false
	}
	return len(k) == len(prefix) || k[len(prefix)] == '/'
}
