// Package scanner implements the Sized Directory Scanner (C2): a
// depth-bounded, cancellable, progress-reporting recursive sizing walk.
// One Scanner instance is meant to be kept and reused across calls — Scan
// takes its Options by value per call, so cancellation (the one thing a
// caller needs to reach into an in-flight scan) is the only state shared
// across calls, via an atomic flag.
//
// Grounded on worker.go's walker goroutines (bounded
// concurrency via a semaphore, cooperative cancellation via
// context.Context, the "absorb per-entry errors, surface only root
// failures" discipline) — generalized here from "discover deletable
// files" into "recursively size a directory tree and build a
// DirectoryNode", and on internal/maintenance/paths.go's blocklist idea
// for the system_drive_mode protected path check (a short subtree list
// kept in this package; internal/pathsafety is not consulted).
package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"

	"dirmover/internal/logging"
	"dirmover/internal/perf"
	"dirmover/internal/progress"
	"dirmover/internal/types"
)

// systemProtectedSubpaths are the subtrees system_drive_mode stubs instead
// of descending into. These are the only paths the scanner checks; the C1
// blocklist in internal/pathsafety is not applied here.
var systemProtectedSubpaths = []string{
	`Windows\System32`,
	`Windows\SysWOW64`,
	`Program Files\Windows Defender`,
}

// Options configures one Scan call.
type Options struct {
	MaxDepth              int
	LargeFolderThresholdB int64
	SystemDriveMode       bool
}

func (o Options) withDefaults() Options {
	if o.MaxDepth <= 0 {
		o.MaxDepth = 3
	}
	if o.LargeFolderThresholdB <= 0 {
		o.LargeFolderThresholdB = 1 << 30
	}
	return o
}

// ErrCancelled is returned (wrapped) when a scan observes cancellation.
var ErrCancelled = context.Canceled

// Scanner runs depth-first directory sizing scans, publishing progress to
// a shared Reporter and consulting an optional Optimizer for a
// directory-result cache and concurrency gate.
//
// Scan's config is passed in by value on each call rather than stored on
// Scanner, so one Scanner can be shared and reused (Dispatcher keeps a
// single long-lived instance) while cancellation — the one piece of state
// that must reach an in-flight call from another goroutine — lives behind
// a shared atomic.
type Scanner struct {
	log      *logging.Logger
	reporter *progress.Reporter
	cache    *perf.DirectoryCache
	gate     *perf.Gate

	processedSinceReport int64
	cancelled            atomic.Bool
}

// New builds a Scanner. reporter, cache, and gate may be nil.
func New(log *logging.Logger, reporter *progress.Reporter, cache *perf.DirectoryCache, gate *perf.Gate) *Scanner {
	return &Scanner{log: log, reporter: reporter, cache: cache, gate: gate}
}

// Cancel requests that an in-flight or future Scan call stop early.
func (s *Scanner) Cancel() { s.cancelled.Store(true) }

// ResetCancel clears a prior Cancel, allowing the Scanner to be reused.
func (s *Scanner) ResetCancel() { s.cancelled.Store(false) }

// Scan recursively sizes root, returning its DirectoryNode tree. If a gate
// was supplied to New, it is held for the duration of the scan.
func (s *Scanner) Scan(ctx context.Context, root string, opts Options) (*types.DirectoryNode, error) {
	opts = opts.withDefaults()
	if s.gate != nil {
		s.gate.Acquire()
		defer s.gate.Release()
	}
	node, err := s.scanDir(ctx, root, 0, opts)
	if err != nil {
		return nil, err
	}
	finalizeSizePercentages(node)
	return node, nil
}

// entryCap returns the per-directory entry processing cap for depth d:
// 1000 throughout in generic mode; in system_drive_mode, 100 at depth 0
// and 1000 below.
func entryCap(opts Options, depth int) int {
	if opts.SystemDriveMode && depth == 0 {
		return 100
	}
	return 1000
}

func isSystemProtected(opts Options, path string) bool {
	if !opts.SystemDriveMode {
		return false
	}
	for _, sub := range systemProtectedSubpaths {
		if hasPathComponent(path, sub) {
			return true
		}
	}
	return false
}

// hasPathComponent reports whether path contains sub as a
// case-insensitive substring on a path-separator boundary (or at either
// end of path), so `Windows\System32` does not match `MyWindows\System32x`.
func hasPathComponent(path, sub string) bool {
	lowerPath := toLowerASCII(filepath.Clean(path))
	lowerSub := toLowerASCII(filepath.Clean(sub))
	for offset := 0; offset <= len(lowerPath); {
		idx := indexOfString(lowerPath[offset:], lowerSub)
		if idx < 0 {
			return false
		}
		start := offset + idx
		end := start + len(lowerSub)
		if (start == 0 || isPathSep(lowerPath[start-1])) && (end == len(lowerPath) || isPathSep(lowerPath[end])) {
			return true
		}
		offset = start + 1
	}
	return false
}

func isPathSep(c byte) bool { return c == '\\' || c == '/' }

func toLowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func indexOfString(s, substr string) int {
	if len(substr) == 0 {
		return 0
	}
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}

func stubNode(path string) *types.DirectoryNode {
	return &types.DirectoryNode{Path: path, Name: filepath.Base(path)}
}

// scanDir implements the depth-first sizing algorithm.
func (s *Scanner) scanDir(ctx context.Context, path string, depth int, opts Options) (*types.DirectoryNode, error) {
	if s.cancelled.Load() || ctx.Err() != nil {
		return nil, fmt.Errorf("scan cancelled at %s: %w", path, ErrCancelled)
	}

	if depth > opts.MaxDepth {
		return stubNode(path), nil
	}

	if depth > 0 && isSystemProtected(opts, path) {
		return stubNode(path), nil
	}

	if s.reporter != nil {
		s.reporter.UpdateCurrentPath(path)
	}

	if cached, ok := s.cacheGet(path); ok {
		return cached, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsPermission(err) {
			return stubNode(path), nil
		}
		if depth == 0 {
			return nil, fmt.Errorf("read root directory %s: %w", path, err)
		}
		if s.log != nil {
			s.log.Warnf("Could not read directory %s: %v", path, err)
		}
		return stubNode(path), nil
	}

	entryLimit := entryCap(opts, depth)
	if len(entries) > entryLimit && s.log != nil {
		s.log.Warnf("Directory %s has %d entries, processing only the first %d", path, len(entries), entryLimit)
	}
	if len(entries) > entryLimit {
		entries = entries[:entryLimit]
	}

	node := &types.DirectoryNode{Path: path, Name: filepath.Base(path)}
	var children []*types.DirectoryNode

	for _, entry := range entries {
		if s.cancelled.Load() || ctx.Err() != nil {
			return nil, fmt.Errorf("scan cancelled at %s: %w", path, ErrCancelled)
		}

		childPath := filepath.Join(path, entry.Name())

		if entry.IsDir() {
			child, err := s.scanDir(ctx, childPath, depth+1, opts)
			if err != nil {
				return nil, err
			}
			children = append(children, child)
			node.Size += child.Size
			node.FileCount += child.FileCount + 1
		} else {
			info, err := entry.Info()
			if err != nil {
				if s.log != nil {
					s.log.Warnf("Could not stat %s: %v", childPath, err)
				}
				continue
			}
			node.Size += info.Size()
			node.FileCount++
		}

		s.bumpProgress(path)
	}

	sort.Slice(children, func(i, j int) bool { return children[i].Size > children[j].Size })
	for _, child := range children {
		if node.Size > 0 {
			child.SizePercentage = float64(child.Size) / float64(node.Size) * 100
		}
	}
	node.Subdirectories = children
	node.IsLargeFolder = node.Size >= opts.LargeFolderThresholdB
	if node.IsLargeFolder && s.reporter != nil {
		s.reporter.NoteLargeFolder()
	}

	s.cachePut(path, node)
	return node, nil
}

// bumpProgress implements the "every 100 processed entries" publish
// cadence.
func (s *Scanner) bumpProgress(currentPath string) {
	if s.reporter == nil {
		return
	}
	n := atomic.AddInt64(&s.processedSinceReport, 1)
	if n%100 == 0 {
		s.reporter.AddFiles(100)
		s.reporter.UpdateCurrentPath(currentPath)
	}
}

func (s *Scanner) cacheGet(path string) (*types.DirectoryNode, bool) {
	if s.cache == nil {
		return nil, false
	}
	entry, ok := s.cache.Get(path)
	if !ok {
		return nil, false
	}
	return &types.DirectoryNode{
		Path:          entry.Path,
		Name:          filepath.Base(entry.Path),
		Size:          entry.TotalSize,
		FileCount:     entry.FileCount,
		IsLargeFolder: entry.IsLargeFolder,
	}, true
}

func (s *Scanner) cachePut(path string, node *types.DirectoryNode) {
	if s.cache == nil {
		return
	}
	s.cache.Put(path, types.CacheEntry{
		FileCount:     node.FileCount,
		TotalSize:     node.Size,
		IsLargeFolder: node.IsLargeFolder,
	})
}

// finalizeSizePercentages enforces the "0 at the scan root" invariant;
// every non-root DirectoryNode's percentage is already assigned by its
// parent during scanDir.
func finalizeSizePercentages(root *types.DirectoryNode) {
	root.SizePercentage = 0
}
