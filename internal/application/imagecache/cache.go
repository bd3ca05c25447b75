// Package imagecache resolves image references for the session with per-key
// de-duplication, a bounded wait, and a degrade-to-identity failure policy.
//
// Each key moves Unresolved -> Pending -> Resolved. Pending is shared by every
// caller asking for the same key; Resolved is terminal until Clear. A failed
// or slow resolution still ends in Resolved, holding the original reference,
// so callers never see an error.
package imagecache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/doeshing/mindtrail/internal/domain"
	"github.com/doeshing/mindtrail/internal/ports"
)

type state int

const (
	statePending state = iota + 1
	stateResolved
)

type entry struct {
	state state
	value string
	done  chan struct{}
}

// Config tunes the cache. Zero values fall back to the domain defaults.
type Config struct {
	Timeout     time.Duration
	Concurrency int
	GroupPause  time.Duration
}

// ConfigFromSettings converts the YAML settings.
func ConfigFromSettings(s domain.ImageSettings) Config {
	return Config{
		Timeout:     s.TimeoutDuration(),
		Concurrency: s.Concurrency,
		GroupPause:  s.GroupPauseDuration(),
	}
}

// Cache is the image cache. The zero value is not usable; call New.
type Cache struct {
	prober  ports.ImageProber
	memo    ports.KVStore
	log     ports.Logger
	metrics *Metrics
	cfg     Config

	mu      sync.Mutex
	entries map[string]*entry

	// memoMu orders memo write-throughs against Clear. Lock order: memoMu, then mu.
	memoMu sync.Mutex
}

// New builds a cache. memo is an optional volatile store that resolved values
// are written through to and read back from; metrics may be nil.
func New(prober ports.ImageProber, memo ports.KVStore, log ports.Logger, metrics *Metrics, cfg Config) *Cache {
	if cfg.Timeout <= 0 {
		cfg.Timeout = domain.DefaultImageTimeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = domain.DefaultImageConcurrency
	}
	if cfg.GroupPause < 0 {
		cfg.GroupPause = 0
	}
	return &Cache{
		prober:  prober,
		memo:    memo,
		log:     log,
		metrics: metrics,
		cfg:     cfg,
		entries: make(map[string]*entry),
	}
}

// Resolve returns a usable reference for key. A memoized value is returned
// immediately; a pending resolution is joined; otherwise a new one starts.
// If ctx ends first the caller gets reference back while the resolution
// keeps running for the other waiters.
func (c *Cache) Resolve(ctx context.Context, key, reference string) string {
	c.mu.Lock()
	e, ok := c.entries[key]
	if ok && e.state == stateResolved {
		value := e.value
		c.mu.Unlock()
		c.metrics.hit()
		return value
	}
	if ok {
		c.mu.Unlock()
		c.metrics.coalesce()
	} else {
		e = &entry{state: statePending, done: make(chan struct{})}
		c.entries[key] = e
		c.mu.Unlock()
		go c.run(context.WithoutCancel(ctx), key, reference, e)
	}

	select {
	case <-e.done:
		c.mu.Lock()
		defer c.mu.Unlock()
		return e.value
	case <-ctx.Done():
		return reference
	}
}

// Lookup returns the resolved value for key without starting a resolution.
func (c *Cache) Lookup(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || e.state != stateResolved {
		return "", false
	}
	return e.value, true
}

// Clear drops every resolved entry and every in-flight tracker, including the
// session memo copies. Resolutions already running still finish for their
// waiters but are not memoized.
func (c *Cache) Clear() {
	c.memoMu.Lock()
	defer c.memoMu.Unlock()

	c.mu.Lock()
	old := c.entries
	c.entries = make(map[string]*entry)
	c.mu.Unlock()

	if c.memo == nil {
		return
	}
	for key := range old {
		if err := c.memo.Delete(context.Background(), memoKey(key)); err != nil {
			c.log.Warn("image memo delete failed", map[string]interface{}{"key": key, "error": err.Error()})
		}
	}
}

// Size counts resolved entries.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.entries {
		if e.state == stateResolved {
			n++
		}
	}
	return n
}

// Pending counts in-flight resolutions.
func (c *Cache) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.entries {
		if e.state == statePending {
			n++
		}
	}
	return n
}

func (c *Cache) run(ctx context.Context, key, reference string, e *entry) {
	value, outcome := c.realize(ctx, key, reference)
	c.metrics.resolved(outcome)

	c.mu.Lock()
	e.value = value
	e.state = stateResolved
	c.mu.Unlock()
	close(e.done)

	if outcome != outcomeMemo {
		c.writeThrough(ctx, key, e)
	}
}

// realize produces the value for a key: a session memo hit, or the original
// reference once the probe finishes, fails or outlives the timeout.
func (c *Cache) realize(ctx context.Context, key, reference string) (string, string) {
	if v, ok := c.readMemo(ctx, key); ok {
		return v, outcomeMemo
	}

	result := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				result <- fmt.Errorf("probe panic: %v", r)
			}
		}()
		result <- c.prober.Probe(ctx, reference)
	}()

	timer := time.NewTimer(c.cfg.Timeout)
	defer timer.Stop()
	select {
	case err := <-result:
		if err != nil {
			c.log.Warn("image load failed, using original reference", map[string]interface{}{
				"key":       key,
				"reference": reference,
				"error":     err.Error(),
			})
			return reference, outcomeFailed
		}
		return reference, outcomeLoaded
	case <-timer.C:
		c.log.Warn("image load timed out, using original reference", map[string]interface{}{
			"key":       key,
			"reference": reference,
			"timeout":   c.cfg.Timeout.String(),
		})
		return reference, outcomeTimeout
	}
}

func (c *Cache) readMemo(ctx context.Context, key string) (string, bool) {
	if c.memo == nil {
		return "", false
	}
	raw, ok, err := c.memo.Get(ctx, memoKey(key))
	if err != nil {
		c.log.Warn("image memo read failed", map[string]interface{}{"key": key, "error": err.Error()})
		return "", false
	}
	if !ok || len(raw) == 0 {
		return "", false
	}
	return string(raw), true
}

// writeThrough stores e's value in the memo unless e was dropped by Clear.
// Holding memoMu across the check and the Set keeps Clear from interleaving.
func (c *Cache) writeThrough(ctx context.Context, key string, e *entry) {
	if c.memo == nil {
		return
	}
	c.memoMu.Lock()
	defer c.memoMu.Unlock()

	c.mu.Lock()
	current := c.entries[key] == e
	value := e.value
	c.mu.Unlock()
	if !current {
		return
	}
	if err := c.memo.Set(ctx, memoKey(key), []byte(value)); err != nil {
		c.log.Warn("image memo write failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
}

func memoKey(key string) string {
	return "image_cache:" + key
}

var _ ports.ImageResolver = (*Cache)(nil)
