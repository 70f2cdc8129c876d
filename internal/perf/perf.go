// Package perf implements the Performance Optimizer (C10): a directory-info
// LRU cache, a memory-usage monitor, and a concurrency gate shared by the
// scanner and migration pipeline.
//
// Grounded on original_source/src-tauri/src/performance_optimizer.rs
// (MemoryMonitor's warning/critical thresholds at 50%/80% of the configured
// ceiling, DirectoryCache's 5-minute entry TTL and hit/miss counters, and
// BatchProcessor's semaphore-gated concurrency) — a component the initial
// distillation dropped entirely. The concurrency gate itself generalizes
// worker.go's `sem := make(chan struct{}, cfg.Walkers)` pattern from a
// fixed walker pool into a general-purpose operation gate.
package perf

import (
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"dirmover/internal/types"
)

const cacheEntryTTL = 5 * time.Minute

// MemoryMonitor tracks an estimated byte count against warning (50%) and
// critical (80%) thresholds derived from a configured ceiling.
type MemoryMonitor struct {
	current  int64
	peak     int64
	warning  int64
	critical int64
}

// NewMemoryMonitor derives warning/critical thresholds from ceilingMB
// (50% and 80% respectively, per the original optimizer's split).
func NewMemoryMonitor(ceilingMB int) *MemoryMonitor {
	ceiling := int64(ceilingMB) * 1024 * 1024
	return &MemoryMonitor{
		warning:  ceiling / 2,
		critical: ceiling * 8 / 10,
	}
}

// Record adds bytes to the current usage estimate, updating the peak if
// exceeded.
func (m *MemoryMonitor) Record(bytes int64) {
	current := atomic.AddInt64(&m.current, bytes)
	for {
		peak := atomic.LoadInt64(&m.peak)
		if current <= peak {
			return
		}
		if atomic.CompareAndSwapInt64(&m.peak, peak, current) {
			return
		}
	}
}

// Release subtracts bytes from the current usage estimate, floored at zero.
func (m *MemoryMonitor) Release(bytes int64) {
	for {
		current := atomic.LoadInt64(&m.current)
		next := current - bytes
		if next < 0 {
			next = 0
		}
		if atomic.CompareAndSwapInt64(&m.current, current, next) {
			return
		}
	}
}

// Current returns the current usage estimate in bytes.
func (m *MemoryMonitor) Current() int64 { return atomic.LoadInt64(&m.current) }

// Peak returns the highest usage estimate recorded so far.
func (m *MemoryMonitor) Peak() int64 { return atomic.LoadInt64(&m.peak) }

// ShouldCleanup reports whether current usage has crossed the warning
// threshold, signaling the cache should be cleared.
func (m *MemoryMonitor) ShouldCleanup() bool {
	return atomic.LoadInt64(&m.current) > m.warning
}

// Critical reports whether current usage has crossed the critical
// threshold.
func (m *MemoryMonitor) Critical() bool {
	return atomic.LoadInt64(&m.current) > m.critical
}

// cacheEntry pairs a CacheEntry with its insertion time for TTL expiry.
type cacheEntry struct {
	value      types.CacheEntry
	insertedAt time.Time
}

// DirectoryCache is an LRU cache of directory scan results, keyed by the
// path as given after filepath.Clean (it is not made absolute), with a
// 5-minute entry TTL.
type DirectoryCache struct {
	mu     sync.Mutex
	cache  *lru.Cache[string, cacheEntry]
	hits   int64
	misses int64
}

// NewDirectoryCache returns a DirectoryCache with the given entry capacity.
func NewDirectoryCache(capacity int) (*DirectoryCache, error) {
	if capacity <= 0 {
		capacity = 1000
	}
	c, err := lru.New[string, cacheEntry](capacity)
	if err != nil {
		return nil, err
	}
	return &DirectoryCache{cache: c}, nil
}

func normalizeKey(path string) string {
	return filepath.Clean(path)
}

// Get returns the cached entry for path if present and not expired.
func (d *DirectoryCache) Get(path string) (types.CacheEntry, bool) {
	key := normalizeKey(path)

	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.cache.Get(key)
	if !ok || time.Since(entry.insertedAt) >= cacheEntryTTL {
		if ok {
			d.cache.Remove(key)
		}
		atomic.AddInt64(&d.misses, 1)
		return types.CacheEntry{}, false
	}
	atomic.AddInt64(&d.hits, 1)
	return entry.value, true
}

// Put inserts or replaces the cached entry for path.
func (d *DirectoryCache) Put(path string, value types.CacheEntry) {
	key := normalizeKey(path)
	value.Path = key
	value.CachedAt = time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.cache.Add(key, cacheEntry{value: value, insertedAt: value.CachedAt})
}

// Clear discards every cached entry, used when the memory monitor signals
// cleanup is needed.
func (d *DirectoryCache) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cache.Purge()
}

// Len reports the current number of cached entries.
func (d *DirectoryCache) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cache.Len()
}

// Stats returns the cache's hit/miss counters and current size.
func (d *DirectoryCache) Stats() (hits, misses int64, size int) {
	return atomic.LoadInt64(&d.hits), atomic.LoadInt64(&d.misses), d.Len()
}

// Gate is a bounded-concurrency admission control shared by the scanner
// and migration pipeline, generalizing worker.go's fixed-size walker
// semaphore into a reusable type. Acquire/Release must never be held
// across a lock acquired elsewhere in the call chain.
type Gate struct {
	sem chan struct{}
}

// NewGate returns a Gate admitting at most max concurrent holders.
func NewGate(max int) *Gate {
	if max <= 0 {
		max = 1
	}
	return &Gate{sem: make(chan struct{}, max)}
}

// Acquire blocks until a slot is free.
func (g *Gate) Acquire() { g.sem <- struct{}{} }

// TryAcquire attempts to acquire a slot without blocking.
func (g *Gate) TryAcquire() bool {
	select {
	case g.sem <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release frees a slot previously acquired with Acquire or TryAcquire.
func (g *Gate) Release() { <-g.sem }

// InUse reports the number of currently held slots.
func (g *Gate) InUse() int { return len(g.sem) }

// Optimizer bundles the cache, memory monitor and concurrency gate behind
// the single entry point the scanner and migration pipeline depend on.
type Optimizer struct {
	Cache  *DirectoryCache
	Memory *MemoryMonitor
	Gate   *Gate
}

// New builds an Optimizer from an AppConfig's performance settings.
func New(cfg types.AppConfig) (*Optimizer, error) {
	cache, err := NewDirectoryCache(cfg.DirectoryCacheSize)
	if err != nil {
		return nil, err
	}
	return &Optimizer{
		Cache:  cache,
		Memory: NewMemoryMonitor(cfg.MaxMemoryUsageMB),
		Gate:   NewGate(cfg.MaxConcurrentOperations),
	}, nil
}

// MaybeCleanup clears the directory cache if the memory monitor reports
// the warning threshold has been crossed, returning whether it cleared.
func (o *Optimizer) MaybeCleanup() bool {
	if !o.Memory.ShouldCleanup() {
		return false
	}
	o.Cache.Clear()
	return true
}

// Stats snapshots the optimizer's counters into the public PerformanceStats
// type exposed over the command boundary.
func (o *Optimizer) Stats() types.PerformanceStats {
	hits, misses, size := o.Cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	const mb = 1024 * 1024
	return types.PerformanceStats{
		MemoryUsageMB:    float64(o.Memory.Current()) / mb,
		MemoryPeakMB:     float64(o.Memory.Peak()) / mb,
		CacheHitRatePct:  hitRate,
		CacheSize:        size,
		ActiveOperations: o.Gate.InUse(),
	}
}
