package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

var (
	// ErrDisabled is returned by a query whose inputs are not ready, for
	// example a lookup by an empty id. No fetch is made.
	ErrDisabled = errors.New("cache: query disabled")
	// ErrNoMorePages is returned by FetchNextPage when the last loaded page
	// was empty.
	ErrNoMorePages = errors.New("cache: no more pages")
	// ErrClosed is returned by every read after Close.
	ErrClosed = errors.New("cache: client closed")
)

// Options configures a Client.
type Options struct {
	// StaleTime is how long a fetched value is served without refetching.
	// Zero keeps values fresh until they are invalidated.
	StaleTime time.Duration
	// GCTime is how long an unused entry is kept. Zero disables collection.
	GCTime time.Duration
	Logger *slog.Logger
}

// EventKind tells subscribers what happened to the matched keys.
type EventKind string

const (
	EventInvalidated EventKind = "invalidated"
	EventRemoved     EventKind = "removed"
)

// Event is published to subscribers on every Invalidate and Remove.
type Event struct {
	Kind EventKind `json:"kind"`
	Keys []Key     `json:"keys"`
	At   time.Time `json:"at"`
}

type entry struct {
	key       Key
	value     any
	gen       uint64
	fetchedAt time.Time
	usedAt    time.Time
	invalid   bool
}

// flight tracks a fetch in progress so invalidations that land while it
// runs still apply to its result.
type flight struct {
	key         Key
	invalidated bool
	removed     bool
}

// Client is the query cache. Create one per process with New and release it
// with Close.
type Client struct {
	staleTime time.Duration
	gcTime    time.Duration
	logger    *slog.Logger

	group singleflight.Group

	mu      sync.Mutex
	gen     uint64 // last generation handed to an entry write
	entries map[string]*entry
	flights map[string]*flight
	subs    map[chan Event]struct{}
	closed  bool

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New creates a Client and starts its garbage collector when GCTime is set.
func New(opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		staleTime: opts.StaleTime,
		gcTime:    opts.GCTime,
		logger:    logger.With("system", "cache"),
		entries:   make(map[string]*entry),
		flights:   make(map[string]*flight),
		subs:      make(map[chan Event]struct{}),
		done:      make(chan struct{}),
	}
	if c.gcTime > 0 {
		c.wg.Add(1)
		go c.collect()
	}
	return c
}

// Close stops the garbage collector, closes every subscription and drops all
// entries. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.wg.Wait()

		c.mu.Lock()
		defer c.mu.Unlock()
		c.closed = true
		for ch := range c.subs {
			close(ch)
		}
		c.subs = nil
		clear(c.entries)
	})
}

// Len returns the number of cached entries.
func (c *Client) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Invalidate marks every entry matching one of the prefixes stale. Values are
// not recomputed; the next read fetches. Fetches in progress for a matching
// key store their result as stale.
func (c *Client) Invalidate(prefixes ...Key) {
	if len(prefixes) == 0 {
		return
	}
	c.mu.Lock()
	n := 0
	for _, e := range c.entries {
		if matchesAny(e.key, prefixes) {
			e.invalid = true
			n++
		}
	}
	for _, f := range c.flights {
		if matchesAny(f.key, prefixes) {
			f.invalidated = true
		}
	}
	c.publish(Event{Kind: EventInvalidated, Keys: prefixes, At: time.Now()})
	c.mu.Unlock()

	c.logger.Debug("keys invalidated", "keys", fmt.Sprint(prefixes), "entries", n)
}

// Remove drops every entry matching one of the prefixes. Fetches in progress
// for a matching key discard their result.
func (c *Client) Remove(prefixes ...Key) {
	if len(prefixes) == 0 {
		return
	}
	c.mu.Lock()
	n := 0
	for id, e := range c.entries {
		if matchesAny(e.key, prefixes) {
			delete(c.entries, id)
			n++
		}
	}
	for _, f := range c.flights {
		if matchesAny(f.key, prefixes) {
			f.removed = true
		}
	}
	c.publish(Event{Kind: EventRemoved, Keys: prefixes, At: time.Now()})
	c.mu.Unlock()

	c.logger.Debug("keys removed", "keys", fmt.Sprint(prefixes), "entries", n)
}

// Subscribe returns a channel of invalidation events and a function that
// ends the subscription. Events are dropped for a subscriber whose buffer is
// full. The channel is closed by cancel or by Close.
func (c *Client) Subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	c.subs[ch] = struct{}{}
	c.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if _, ok := c.subs[ch]; ok {
				delete(c.subs, ch)
				close(ch)
			}
		})
	}
	return ch, cancel
}

// publish must be called with c.mu held.
func (c *Client) publish(ev Event) {
	for ch := range c.subs {
		select {
		case ch <- ev:
		default:
			c.logger.Warn("subscriber too slow, event dropped", "kind", ev.Kind)
		}
	}
}

// loaded is a cached value and the generation of the entry holding it. A
// zero generation means the value was not stored.
type loaded struct {
	value any
	gen   uint64
}

// load returns the fresh cached value of key, or runs fetch. Concurrent loads
// of one key share a single fetch, which is not cancelled when one of the
// callers goes away. Errors are returned, never cached.
func (c *Client) load(ctx context.Context, key Key, fetch func(context.Context) (any, error)) (loaded, error) {
	id := key.id()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return loaded{}, ErrClosed
	}
	if e, ok := c.entries[id]; ok {
		now := time.Now()
		e.usedAt = now
		if !c.stale(e, now) {
			l := loaded{value: e.value, gen: e.gen}
			c.mu.Unlock()
			return l, nil
		}
	}
	c.mu.Unlock()

	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(id, func() (any, error) {
		f := &flight{key: key}
		c.mu.Lock()
		c.flights[id] = f
		c.mu.Unlock()

		started := time.Now()
		value, err := fetch(shared)

		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.flights, id)
		if err != nil {
			return nil, err
		}
		l := loaded{value: value}
		if !f.removed && !c.closed {
			c.gen++
			l.gen = c.gen
			c.entries[id] = &entry{
				key:       key,
				value:     value,
				gen:       l.gen,
				fetchedAt: started,
				usedAt:    time.Now(),
				invalid:   f.invalidated,
			}
		}
		return l, nil
	})

	select {
	case <-ctx.Done():
		return loaded{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			c.logger.Debug("fetch failed", "key", key.String(), "error", res.Err)
			return loaded{}, res.Err
		}
		return res.Val.(loaded), nil
	}
}

// replace stores value for key only while the entry is still the one written
// at generation gen and has not been invalidated since. It reports whether
// the value was stored.
func (c *Client) replace(key Key, gen uint64, value any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.id()]
	if !ok || e.gen != gen || e.invalid {
		return false
	}
	c.gen++
	e.gen = c.gen
	e.value = value
	e.usedAt = time.Now()
	return true
}

func (c *Client) stale(e *entry, now time.Time) bool {
	if e.invalid {
		return true
	}
	return c.staleTime > 0 && now.Sub(e.fetchedAt) >= c.staleTime
}

func (c *Client) collect() {
	defer c.wg.Done()

	ticker := time.NewTicker(max(c.gcTime/2, time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case now := <-ticker.C:
			c.evictUnused(now)
		}
	}
}

func (c *Client) evictUnused(now time.Time) {
	c.mu.Lock()
	n := 0
	for id, e := range c.entries {
		if now.Sub(e.usedAt) >= c.gcTime {
			delete(c.entries, id)
			n++
		}
	}
	c.mu.Unlock()

	if n > 0 {
		c.logger.Debug("unused entries collected", "entries", n)
	}
}
