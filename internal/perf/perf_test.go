package perf

import (
	"testing"

	"dirmover/internal/types"
)

func TestMemoryMonitor_Thresholds(t *testing.T) {
	m := NewMemoryMonitor(100) // warning at 50MB, critical at 80MB

	m.Record(40 * 1024 * 1024)
	if m.ShouldCleanup() {
		t.Fatalf("should not need cleanup at 40MB of a 100MB ceiling")
	}

	m.Record(20 * 1024 * 1024) // total 60MB, crosses warning
	if !m.ShouldCleanup() {
		t.Fatalf("expected cleanup signal at 60MB of a 100MB ceiling")
	}
	if m.Critical() {
		t.Fatalf("60MB should not be critical yet")
	}

	m.Record(30 * 1024 * 1024) // total 90MB, crosses critical
	if !m.Critical() {
		t.Fatalf("expected critical signal at 90MB of a 100MB ceiling")
	}

	m.Release(90 * 1024 * 1024)
	if m.Current() != 0 {
		t.Fatalf("Current() = %d, want 0 after releasing all recorded bytes", m.Current())
	}
	if m.Peak() < 90*1024*1024 {
		t.Fatalf("Peak() should retain the highest watermark after release")
	}
}

func TestDirectoryCache_HitMissAndExpiry(t *testing.T) {
	cache, err := NewDirectoryCache(10)
	if err != nil {
		t.Fatalf("NewDirectoryCache: %v", err)
	}

	if _, ok := cache.Get(`C:\Data\x`); ok {
		t.Fatalf("expected miss on empty cache")
	}

	cache.Put(`C:\Data\x`, types.CacheEntry{FileCount: 5, TotalSize: 1024})
	entry, ok := cache.Get(`C:\Data\x`)
	if !ok {
		t.Fatalf("expected hit after Put")
	}
	if entry.FileCount != 5 || entry.TotalSize != 1024 {
		t.Fatalf("unexpected cached entry: %+v", entry)
	}

	hits, misses, size := cache.Stats()
	if hits != 1 || misses != 1 || size != 1 {
		t.Fatalf("Stats() = (%d, %d, %d), want (1, 1, 1)", hits, misses, size)
	}

	cache.Clear()
	if _, ok := cache.Get(`C:\Data\x`); ok {
		t.Fatalf("expected miss after Clear")
	}
}

func TestDirectoryCache_NormalizesPathKeys(t *testing.T) {
	cache, err := NewDirectoryCache(10)
	if err != nil {
		t.Fatalf("NewDirectoryCache: %v", err)
	}

	cache.Put("/data/./x", types.CacheEntry{FileCount: 1})
	if _, ok := cache.Get("/data/x"); !ok {
		t.Fatalf("expected cache hit via normalized key")
	}
}

func TestGate_BoundsConcurrentHolders(t *testing.T) {
	g := NewGate(2)

	g.Acquire()
	g.Acquire()
	if g.TryAcquire() {
		t.Fatalf("third acquire should have blocked out at capacity 2")
	}
	if got := g.InUse(); got != 2 {
		t.Fatalf("InUse() = %d, want 2", got)
	}

	g.Release()
	if !g.TryAcquire() {
		t.Fatalf("expected a free slot after Release")
	}
}

func TestOptimizer_MaybeCleanupClearsCacheOnWarning(t *testing.T) {
	cfg := types.AppConfig{
		MaxMemoryUsageMB:        10,
		DirectoryCacheSize:      10,
		MaxConcurrentOperations: 2,
	}
	o, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	o.Cache.Put(`C:\Data\x`, types.CacheEntry{FileCount: 1})

	if o.MaybeCleanup() {
		t.Fatalf("should not clean up before the warning threshold is crossed")
	}

	o.Memory.Record(8 * 1024 * 1024) // 80% of 10MB ceiling, past the 50% warning line
	if !o.MaybeCleanup() {
		t.Fatalf("expected cleanup once memory crosses the warning threshold")
	}
	if o.Cache.Len() != 0 {
		t.Fatalf("expected cache cleared after MaybeCleanup")
	}
}

func TestOptimizer_Stats(t *testing.T) {
	cfg := types.AppConfig{MaxMemoryUsageMB: 100, DirectoryCacheSize: 10, MaxConcurrentOperations: 3}
	o, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	o.Cache.Put(`C:\x`, types.CacheEntry{})
	o.Cache.Get(`C:\x`)
	o.Cache.Get(`C:\missing`)

	stats := o.Stats()
	if stats.CacheSize != 1 {
		t.Fatalf("CacheSize = %d, want 1", stats.CacheSize)
	}
	if stats.CacheHitRatePct <= 0 || stats.CacheHitRatePct >= 100 {
		t.Fatalf("CacheHitRatePct = %v, want a value strictly between 0 and 100", stats.CacheHitRatePct)
	}
}
