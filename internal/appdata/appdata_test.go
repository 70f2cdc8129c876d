package appdata

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"dirmover/internal/types"
)

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestScanBucket_SizesFilesAndDirectories(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "file.txt"), 100)
	writeFile(t, filepath.Join(dir, "folder", "nested.txt"), 200)

	s := New(nil, nil)
	items, total := s.scanBucket(context.Background(), types.BucketLocal, dir, Options{}.withDefaults())

	if total != 300 {
		t.Fatalf("total = %d, want 300", total)
	}
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	for _, item := range items {
		if item.Bucket != types.BucketLocal {
			t.Fatalf("item %s has bucket %s, want Local", item.Name, item.Bucket)
		}
	}
}

func TestScanBucket_FlagsLargeItems(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "big.bin"), 2048)
	writeFile(t, filepath.Join(dir, "small.bin"), 10)

	s := New(nil, nil)
	items, _ := s.scanBucket(context.Background(), types.BucketRoaming, dir, Options{MinLargeThresholdB: 1024}.withDefaults())

	var sawLarge, sawSmall bool
	for _, item := range items {
		if item.Name == "big.bin" {
			sawLarge = item.IsLarge
		}
		if item.Name == "small.bin" {
			sawSmall = item.IsLarge
		}
	}
	if !sawLarge {
		t.Fatalf("expected big.bin to be flagged large")
	}
	if sawSmall {
		t.Fatalf("did not expect small.bin to be flagged large")
	}
}

func TestScanBucket_MissingRootReturnsEmpty(t *testing.T) {
	s := New(nil, nil)
	items, total := s.scanBucket(context.Background(), types.BucketLocalLow, "/does/not/exist", Options{}.withDefaults())
	if items != nil || total != 0 {
		t.Fatalf("expected empty result for a missing bucket root, got items=%v total=%d", items, total)
	}
}

func TestSortItems(t *testing.T) {
	items := []types.AppDataItem{{Name: "a", Size: 10}, {Name: "b", Size: 30}, {Name: "c", Size: 20}}

	sortItems(items, true)
	if items[0].Name != "b" || items[2].Name != "a" {
		t.Fatalf("descending sort order wrong: %+v", items)
	}

	sortItems(items, false)
	if items[0].Name != "a" || items[2].Name != "b" {
		t.Fatalf("ascending sort order wrong: %+v", items)
	}
}

func TestScanner_CacheHitAvoidsRescan(t *testing.T) {
	s := New(nil, nil)
	want := types.AppDataReport{ElapsedMS: 42}
	s.cachePut(want)

	got, ok := s.cacheGet()
	if !ok {
		t.Fatalf("expected a cache hit right after cachePut")
	}
	if got.ElapsedMS != 42 {
		t.Fatalf("ElapsedMS = %d, want 42", got.ElapsedMS)
	}
}

func TestScanner_CacheExpires(t *testing.T) {
	s := New(nil, nil)
	s.cachePut(types.AppDataReport{ElapsedMS: 1})
	s.cache.at = time.Now().Add(-cacheTTL - time.Second)

	if _, ok := s.cacheGet(); ok {
		t.Fatalf("expected cache to have expired")
	}
}

func TestScanner_InvalidateCache(t *testing.T) {
	s := New(nil, nil)
	s.cachePut(types.AppDataReport{ElapsedMS: 1})
	s.InvalidateCache()

	if _, ok := s.cacheGet(); ok {
		t.Fatalf("expected cache to be empty after InvalidateCache")
	}
}
