package imagecache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/mindtrail/internal/domain"
	"github.com/doeshing/mindtrail/internal/infrastructure/kv"
	"github.com/doeshing/mindtrail/internal/pkg/logger"
)

// stubProber behaves per reference: "fail:*" errors, "panic:*" panics,
// "hang:*" blocks until release is closed, anything else sleeps delay.
type stubProber struct {
	delay   time.Duration
	release chan struct{}

	calls    atomic.Int32
	inFlight atomic.Int32
	peak     atomic.Int32
}

func newStubProber(delay time.Duration) *stubProber {
	return &stubProber{delay: delay, release: make(chan struct{})}
}

func (p *stubProber) Probe(ctx context.Context, reference string) error {
	p.calls.Add(1)
	n := p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	for {
		peak := p.peak.Load()
		if n <= peak || p.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	switch {
	case len(reference) > 5 && reference[:5] == "fail:":
		return errors.New("404 not found")
	case len(reference) > 6 && reference[:6] == "panic:":
		panic("decoder exploded")
	case len(reference) > 5 && reference[:5] == "hang:":
		<-p.release
		return nil
	}
	time.Sleep(p.delay)
	return nil
}

func newTestCache(prober *stubProber, cfg Config) (*Cache, *Metrics) {
	metrics := NewMetrics(prometheus.NewRegistry())
	return New(prober, nil, logger.NewNop(), metrics, cfg), metrics
}

func TestResolveCoalescesConcurrentCallers(t *testing.T) {
	prober := newStubProber(0)
	cache, metrics := newTestCache(prober, Config{Timeout: 5 * time.Second})
	ctx := context.Background()

	const callers = 20
	results := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = cache.Resolve(ctx, "images_calm_0", "hang:https://img/calm.jpg")
		}(i)
	}

	require.Eventually(t, func() bool { return prober.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, cache.Pending())
	close(prober.release)
	wg.Wait()

	assert.EqualValues(t, 1, prober.calls.Load())
	for _, got := range results {
		assert.Equal(t, "hang:https://img/calm.jpg", got)
	}
	assert.Equal(t, 1, cache.Size())
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Resolutions.WithLabelValues(outcomeLoaded)))
	assert.Equal(t, float64(callers-1),
		testutil.ToFloat64(metrics.Coalesced)+testutil.ToFloat64(metrics.Hits))
}

func TestResolveMemoizedValueSkipsProbe(t *testing.T) {
	prober := newStubProber(0)
	cache, metrics := newTestCache(prober, Config{})
	ctx := context.Background()

	first := cache.Resolve(ctx, "k", "https://img/a.jpg")
	second := cache.Resolve(ctx, "k", "https://img/other.jpg")

	assert.Equal(t, "https://img/a.jpg", first)
	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, prober.calls.Load())
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Hits))
}

func TestResolveTimeoutYieldsFallback(t *testing.T) {
	prober := newStubProber(0)
	t.Cleanup(func() { close(prober.release) })
	cache, metrics := newTestCache(prober, Config{Timeout: 50 * time.Millisecond})

	start := time.Now()
	got := cache.Resolve(context.Background(), "slow", "hang:https://img/slow.jpg")
	elapsed := time.Since(start)

	assert.Equal(t, "hang:https://img/slow.jpg", got)
	assert.Less(t, elapsed, time.Second)
	v, ok := cache.Lookup("slow")
	assert.True(t, ok)
	assert.Equal(t, got, v)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Resolutions.WithLabelValues(outcomeTimeout)))
}

func TestResolveFailureReturnsOriginalReference(t *testing.T) {
	prober := newStubProber(0)
	cache, metrics := newTestCache(prober, Config{})

	got := cache.Resolve(context.Background(), "broken", "fail:https://img/missing.jpg")
	assert.Equal(t, "fail:https://img/missing.jpg", got)
	assert.Equal(t, 1, cache.Size())
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Resolutions.WithLabelValues(outcomeFailed)))

	cache.Resolve(context.Background(), "broken", "fail:https://img/missing.jpg")
	assert.EqualValues(t, 1, prober.calls.Load())
}

func TestResolveCallerCancellationDoesNotAbortResolution(t *testing.T) {
	prober := newStubProber(0)
	cache, _ := newTestCache(prober, Config{Timeout: 5 * time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan string, 1)
	go func() { done <- cache.Resolve(ctx, "k", "hang:https://img/x.jpg") }()

	require.Eventually(t, func() bool { return prober.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case got := <-done:
		assert.Equal(t, "hang:https://img/x.jpg", got)
	case <-time.After(time.Second):
		t.Fatal("Resolve did not return after cancellation")
	}

	_, ok := cache.Lookup("k")
	assert.False(t, ok)
	close(prober.release)
	require.Eventually(t, func() bool {
		_, ok := cache.Lookup("k")
		return ok
	}, time.Second, 5*time.Millisecond)
	assert.EqualValues(t, 1, prober.calls.Load())
}

func TestClearDropsEntries(t *testing.T) {
	prober := newStubProber(0)
	memo := kv.NewMemoryStore()
	cache := New(prober, memo, logger.NewNop(), nil, Config{})
	ctx := context.Background()

	cache.Resolve(ctx, "k", "https://img/a.jpg")
	require.Equal(t, 1, cache.Size())
	require.Equal(t, 1, memo.Len())

	cache.Clear()
	assert.Equal(t, 0, cache.Size())
	assert.Equal(t, 0, memo.Len())
	_, ok := cache.Lookup("k")
	assert.False(t, ok)

	cache.Resolve(ctx, "k", "https://img/a.jpg")
	assert.EqualValues(t, 2, prober.calls.Load())
}

func TestClearDuringPendingResolution(t *testing.T) {
	prober := newStubProber(0)
	cache, _ := newTestCache(prober, Config{Timeout: 5 * time.Second})

	done := make(chan string, 1)
	go func() { done <- cache.Resolve(context.Background(), "k", "hang:https://img/x.jpg") }()
	require.Eventually(t, func() bool { return prober.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	cache.Clear()
	close(prober.release)

	assert.Equal(t, "hang:https://img/x.jpg", <-done)
	assert.Equal(t, 0, cache.Size())
}

func TestMemoStoreServesLaterCaches(t *testing.T) {
	memo := kv.NewMemoryStore()
	first := New(newStubProber(0), memo, logger.NewNop(), nil, Config{})
	first.Resolve(context.Background(), "k", "https://img/a.jpg")

	prober := newStubProber(0)
	metrics := NewMetrics(prometheus.NewRegistry())
	second := New(prober, memo, logger.NewNop(), metrics, Config{})
	got := second.Resolve(context.Background(), "k", "https://img/ignored.jpg")

	assert.Equal(t, "https://img/a.jpg", got)
	assert.EqualValues(t, 0, prober.calls.Load())
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Resolutions.WithLabelValues(outcomeMemo)))
}

func TestPreloadBatchWithPoisonedRequest(t *testing.T) {
	prober := newStubProber(time.Millisecond)
	cache, _ := newTestCache(prober, Config{Concurrency: 4, GroupPause: time.Millisecond})

	var reqs []domain.ImageRequest
	for i := 0; i < 9; i++ {
		reqs = append(reqs, domain.ImageRequest{Key: fmt.Sprintf("k%d", i), Reference: fmt.Sprintf("https://img/%d.jpg", i)})
	}
	reqs = append(reqs, domain.ImageRequest{Key: "poison", Reference: "panic:https://img/bad.jpg"})

	require.NotPanics(t, func() { cache.PreloadBatch(context.Background(), reqs) })

	assert.Equal(t, 10, cache.Size())
	v, ok := cache.Lookup("poison")
	assert.True(t, ok)
	assert.Equal(t, "panic:https://img/bad.jpg", v)
}

func TestPreloadBatchBoundsConcurrency(t *testing.T) {
	prober := newStubProber(20 * time.Millisecond)
	cache, _ := newTestCache(prober, Config{Concurrency: 3, GroupPause: 0})

	var reqs []domain.ImageRequest
	for i := 0; i < 10; i++ {
		reqs = append(reqs, domain.ImageRequest{Key: fmt.Sprintf("k%d", i), Reference: fmt.Sprintf("https://img/%d.jpg", i)})
	}
	cache.PreloadBatch(context.Background(), reqs)

	assert.Equal(t, 10, cache.Size())
	assert.EqualValues(t, 10, prober.calls.Load())
	assert.LessOrEqual(t, prober.peak.Load(), int32(3))
}

func TestPreloadBatchDeduplicatesKeys(t *testing.T) {
	prober := newStubProber(time.Millisecond)
	cache, _ := newTestCache(prober, Config{Concurrency: 4})

	reqs := domain.ImageRequestsFor("calm", []string{"https://img/a.jpg", "https://img/b.jpg"})
	reqs = append(reqs, reqs...)
	cache.PreloadBatch(context.Background(), reqs)

	assert.Equal(t, 2, cache.Size())
	assert.EqualValues(t, 2, prober.calls.Load())
}

func TestConfigFromSettings(t *testing.T) {
	cfg := ConfigFromSettings(domain.ImageSettings{Concurrency: 2, Timeout: "1s", GroupPause: "10ms"})
	assert.Equal(t, 2, cfg.Concurrency)
	assert.Equal(t, time.Second, cfg.Timeout)
	assert.Equal(t, 10*time.Millisecond, cfg.GroupPause)

	c := New(newStubProber(0), nil, logger.NewNop(), nil, Config{})
	assert.Equal(t, domain.DefaultImageConcurrency, c.cfg.Concurrency)
	assert.Equal(t, domain.DefaultImageTimeout, c.cfg.Timeout)
}

// gatedMemo holds the first Set until release is closed.
type gatedMemo struct {
	*kv.MemoryStore
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedMemo() *gatedMemo {
	return &gatedMemo{
		MemoryStore: kv.NewMemoryStore(),
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
}

func (g *gatedMemo) Set(ctx context.Context, key string, value []byte) error {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	return g.MemoryStore.Set(ctx, key, value)
}

func TestClearWinsOverSlowMemoWrite(t *testing.T) {
	memo := newGatedMemo()
	prober := newStubProber(0)
	cache := New(prober, memo, logger.NewNop(), nil, Config{})
	ctx := context.Background()

	assert.Equal(t, "https://img/a.jpg", cache.Resolve(ctx, "k", "https://img/a.jpg"))
	select {
	case <-memo.entered:
	case <-time.After(time.Second):
		t.Fatal("memo write never started")
	}

	cleared := make(chan struct{})
	go func() {
		cache.Clear()
		close(cleared)
	}()
	time.Sleep(20 * time.Millisecond)
	close(memo.release)
	select {
	case <-cleared:
	case <-time.After(time.Second):
		t.Fatal("Clear did not return")
	}

	assert.Equal(t, 0, cache.Size())
	assert.Equal(t, 0, memo.Len())

	got := cache.Resolve(ctx, "k", "https://img/b.jpg")
	assert.Equal(t, "https://img/b.jpg", got)
	assert.EqualValues(t, 2, prober.calls.Load())
}

// timedProber sleeps and records when each reference started and finished.
type timedProber struct {
	delay time.Duration

	mu    sync.Mutex
	start map[string]time.Time
	end   map[string]time.Time
}

func (p *timedProber) Probe(ctx context.Context, reference string) error {
	p.mu.Lock()
	p.start[reference] = time.Now()
	p.mu.Unlock()

	time.Sleep(p.delay)

	p.mu.Lock()
	p.end[reference] = time.Now()
	p.mu.Unlock()
	return nil
}

func TestPreloadBatchRunsGroupsStrictlyInSequence(t *testing.T) {
	const (
		limit = 3
		total = 7
		pause = 30 * time.Millisecond
	)
	prober := &timedProber{delay: 60 * time.Millisecond, start: map[string]time.Time{}, end: map[string]time.Time{}}
	cache := New(prober, nil, logger.NewNop(), nil, Config{Concurrency: limit, GroupPause: pause, Timeout: 5 * time.Second})

	var reqs []domain.ImageRequest
	for i := 0; i < total; i++ {
		reqs = append(reqs, domain.ImageRequest{Key: fmt.Sprintf("k%d", i), Reference: fmt.Sprintf("https://img/%d.jpg", i)})
	}
	cache.PreloadBatch(context.Background(), reqs)
	require.Equal(t, total, cache.Size())

	prober.mu.Lock()
	defer prober.mu.Unlock()
	require.Len(t, prober.start, total)
	require.Len(t, prober.end, total)

	var groups [][]string
	for i := 0; i < total; i += limit {
		var group []string
		for j := i; j < i+limit && j < total; j++ {
			group = append(group, reqs[j].Reference)
		}
		groups = append(groups, group)
	}

	for g := 1; g < len(groups); g++ {
		var prevEnd time.Time
		for _, ref := range groups[g-1] {
			if prober.end[ref].After(prevEnd) {
				prevEnd = prober.end[ref]
			}
		}
		for _, ref := range groups[g] {
			gap := prober.start[ref].Sub(prevEnd)
			assert.GreaterOrEqual(t, gap, pause, "%s started %s after group %d finished", ref, gap, g-1)
		}
	}

	for g, group := range groups {
		if len(group) < 2 {
			continue
		}
		var lastStart, firstEnd time.Time
		for i, ref := range group {
			if prober.start[ref].After(lastStart) {
				lastStart = prober.start[ref]
			}
			if i == 0 || prober.end[ref].Before(firstEnd) {
				firstEnd = prober.end[ref]
			}
		}
		assert.True(t, lastStart.Before(firstEnd), "items of group %d did not overlap", g)
	}
}
