// Package appdata implements the App-Data Scanner (C3): a concurrent,
// first-level enumeration of the Local/LocalLow/Roaming subtrees under a
// user's application-data root, with a short-lived whole-report cache and
// a streaming event variant.
//
// Grounded on worker.go's bounded-concurrency walker pattern (one
// goroutine per unit of work, a WaitGroup join) — here reused for
// exactly three goroutines, one per bucket, since the bucket count is
// fixed by the app-data bucket layout rather than configurable like
// worker.go's cfg.Walkers. An optional perf.Gate (C10) bounds how
// many of those bucket scans run at once.
package appdata

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"dirmover/internal/logging"
	"dirmover/internal/perf"
	"dirmover/internal/scanner"
	"dirmover/internal/types"
)

const (
	cacheKey        = "appdata_scan"
	cacheTTL        = 300 * time.Second
	defaultMinLarge = 1 << 30
	defaultMaxDepth = 2
	eventThrottle   = 10 * time.Millisecond
)

// Options configures one app-data scan.
type Options struct {
	MinLargeThresholdB int64
	MaxDepth           int
	SortDescending     bool
}

func (o Options) withDefaults() Options {
	if o.MinLargeThresholdB <= 0 {
		o.MinLargeThresholdB = defaultMinLarge
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = defaultMaxDepth
	}
	return o
}

type cachedReport struct {
	report types.AppDataReport
	at     time.Time
}

// Scanner runs app-data scans and caches the merged report for 300s.
type Scanner struct {
	log  *logging.Logger
	gate *perf.Gate

	mu    sync.Mutex
	cache *cachedReport
}

// New returns an app-data Scanner. gate may be nil.
func New(log *logging.Logger, gate *perf.Gate) *Scanner {
	return &Scanner{log: log, gate: gate}
}

// userProfileRoot resolves the per-user profile directory from the
// platform's conventional environment variable.
func userProfileRoot() string {
	if runtime.GOOS == "windows" {
		if v := os.Getenv("USERPROFILE"); v != "" {
			return v
		}
	}
	if v := os.Getenv("HOME"); v != "" {
		return v
	}
	return "."
}

// BaseDir returns the resolved <profile>/AppData root, for the
// get_appdata_path command.
func BaseDir() string {
	return filepath.Join(userProfileRoot(), "AppData")
}

// RootPaths returns the three bucket paths under the resolved app-data
// root: <profile>/AppData/{Local,LocalLow,Roaming}.
func RootPaths() map[types.AppDataBucket]string {
	base := BaseDir()
	return map[types.AppDataBucket]string{
		types.BucketLocal:    filepath.Join(base, "Local"),
		types.BucketLocalLow: filepath.Join(base, "LocalLow"),
		types.BucketRoaming:  filepath.Join(base, "Roaming"),
	}
}

// Scan enumerates the first level of each bucket concurrently, sizing
// directories via C2 and files via a direct stat, and returns a merged
// AppDataReport. A cache hit within 300s of the previous call returns
// without touching the filesystem.
func (s *Scanner) Scan(ctx context.Context, opts Options) (types.AppDataReport, error) {
	opts = opts.withDefaults()

	if cached, ok := s.cacheGet(); ok {
		return cached, nil
	}

	start := time.Now()
	roots := RootPaths()

	type bucketResult struct {
		bucket types.AppDataBucket
		items  []types.AppDataItem
		size   int64
	}

	results := make(chan bucketResult, len(roots))
	var wg sync.WaitGroup
	for bucket, root := range roots {
		wg.Add(1)
		go func(bucket types.AppDataBucket, root string) {
			defer wg.Done()
			items, size := s.scanBucket(ctx, bucket, root, opts)
			results <- bucketResult{bucket: bucket, items: items, size: size}
		}(bucket, root)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	report := types.AppDataReport{
		BucketPaths: roots,
		BucketSizes: make(map[types.AppDataBucket]int64),
	}
	for res := range results {
		report.BucketSizes[res.bucket] = res.size
		report.Items = append(report.Items, res.items...)
	}

	sortItems(report.Items, opts.SortDescending)
	for _, item := range report.Items {
		if item.IsLarge {
			report.LargeItems = append(report.LargeItems, item)
		}
	}
	report.ElapsedMS = time.Since(start).Milliseconds()

	s.cachePut(report)
	return report, nil
}

func sortItems(items []types.AppDataItem, descending bool) {
	sort.Slice(items, func(i, j int) bool {
		if descending {
			return items[i].Size > items[j].Size
		}
		return items[i].Size < items[j].Size
	})
}

// scanBucket sizes every first-level entry under root for one bucket. If
// a gate was supplied to New, it bounds how many bucket scans (one per
// goroutine in Scan/ScanStream) run at once.
func (s *Scanner) scanBucket(ctx context.Context, bucket types.AppDataBucket, root string, opts Options) ([]types.AppDataItem, int64) {
	if s.gate != nil {
		s.gate.Acquire()
		defer s.gate.Release()
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		if s.log != nil {
			s.log.Warnf("Could not read app-data bucket %s (%s): %v", bucket, root, err)
		}
		return nil, 0
	}

	var items []types.AppDataItem
	var total int64

	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		item := s.sizeEntry(ctx, bucket, root, entry, opts)
		if item == nil {
			continue
		}
		items = append(items, *item)
		total += item.Size
	}

	for i := range items {
		items[i].IsLarge = items[i].Size >= opts.MinLargeThresholdB
		if total > 0 {
			items[i].SizePercentage = float64(items[i].Size) / float64(total) * 100
		}
	}
	return items, total
}

func (s *Scanner) sizeEntry(ctx context.Context, bucket types.AppDataBucket, root string, entry os.DirEntry, opts Options) *types.AppDataItem {
	path := filepath.Join(root, entry.Name())

	if entry.IsDir() {
		sc := scanner.New(s.log, nil, nil, nil)
		node, err := sc.Scan(ctx, path, scanner.Options{MaxDepth: opts.MaxDepth})
		if err != nil {
			if s.log != nil {
				s.log.Warnf("Could not size %s: %v", path, err)
			}
			return nil
		}
		return &types.AppDataItem{
			Path:   path,
			Name:   entry.Name(),
			Size:   node.Size,
			Kind:   types.AppDataKindDirectory,
			Bucket: bucket,
		}
	}

	info, err := entry.Info()
	if err != nil {
		return nil
	}
	return &types.AppDataItem{
		Path:   path,
		Name:   entry.Name(),
		Size:   info.Size(),
		Kind:   types.AppDataKindFile,
		Bucket: bucket,
	}
}

func (s *Scanner) cacheGet() (types.AppDataReport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cache == nil || time.Since(s.cache.at) >= cacheTTL {
		return types.AppDataReport{}, false
	}
	return s.cache.report, true
}

func (s *Scanner) cachePut(report types.AppDataReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = &cachedReport{report: report, at: time.Now()}
}

// InvalidateCache discards the cached report, forcing the next Scan to
// touch the filesystem.
func (s *Scanner) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = nil
}

// ScanStream runs the same scan as Scan but emits one AppDataEvent per
// discovery onto events, throttled to at most one event every 10ms, and
// closes events when done.
func (s *Scanner) ScanStream(ctx context.Context, opts Options, events chan<- types.AppDataEvent) {
	defer close(events)
	opts = opts.withDefaults()

	start := time.Now()
	roots := RootPaths()
	report := types.AppDataReport{
		BucketPaths: roots,
		BucketSizes: make(map[types.AppDataBucket]int64),
	}

	var lastEmit time.Time
	emit := func(ev types.AppDataEvent) {
		wait := eventThrottle - time.Since(lastEmit)
		if wait > 0 {
			time.Sleep(wait)
		}
		select {
		case events <- ev:
		case <-ctx.Done():
		}
		lastEmit = time.Now()
	}

	for bucket, root := range roots {
		if ctx.Err() != nil {
			emit(types.AppDataEvent{Kind: types.AppDataEventScanError, Message: ctx.Err().Error()})
			return
		}
		items, size := s.scanBucket(ctx, bucket, root, opts)
		for _, item := range items {
			item := item
			emit(types.AppDataEvent{Kind: types.AppDataEventItemFound, Item: &item, Bucket: bucket})
			report.Items = append(report.Items, item)
		}
		report.BucketSizes[bucket] = size
		emit(types.AppDataEvent{Kind: types.AppDataEventBucketDone, Bucket: bucket, BucketBytes: size, BucketCount: int64(len(items))})
	}

	sortItems(report.Items, opts.SortDescending)
	for _, item := range report.Items {
		if item.IsLarge {
			report.LargeItems = append(report.LargeItems, item)
		}
	}
	report.ElapsedMS = time.Since(start).Milliseconds()
	s.cachePut(report)

	emit(types.AppDataEvent{Kind: types.AppDataEventScanComplete, Report: &report})
}

// CacheKey is the stable identifier for the single canonical app-data
// report cache.
const CacheKey = cacheKey
