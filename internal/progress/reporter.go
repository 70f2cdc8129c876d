// Package progress implements the Progress Reporter (C9): a mutex-guarded
// snapshot of the current scan/migration state that any number of readers
// can poll without blocking the writer for longer than a lock acquisition.
//
// Grounded on worker.go's shared-counter discipline (perFolderMu guarding
// deletedByFolder, atomic.Value for firstErr): this package generalizes
// that same "one writer updates under a short-held lock, readers copy a
// snapshot" shape into a single reusable type instead of ad-hoc counters
// per run.
package progress

import (
	"sync"
	"time"

	"dirmover/internal/types"
)

// Reporter holds the live progress snapshot for one in-flight operation.
// The zero value is not usable; construct with New.
type Reporter struct {
	mu       sync.Mutex
	snapshot types.ScanProgress
}

// New returns a Reporter with StartedAt set to startedAt.
func New(startedAt time.Time) *Reporter {
	return &Reporter{
		snapshot: types.ScanProgress{StartedAt: &startedAt},
	}
}

// Snapshot returns a copy of the current progress state. Safe for
// concurrent use by any number of readers.
func (r *Reporter) Snapshot() types.ScanProgress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot
}

// UpdateCurrentPath records the directory currently being visited and bumps
// the processed-directory counter.
func (r *Reporter) UpdateCurrentPath(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshot.CurrentPath = path
	r.snapshot.CurrentDirectory = path
	r.snapshot.ProcessedDirectories++
	r.recomputeLocked()
}

// AddFiles increments the processed-file counter by n.
func (r *Reporter) AddFiles(n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshot.ProcessedFiles += n
	r.recomputeLocked()
}

// SetTotals sets the estimated totals used to compute ProgressPercent and
// ETASeconds. Callers may revise totals mid-scan as better estimates
// become available; the reporter always uses the latest value.
func (r *Reporter) SetTotals(totalFiles, totalDirs int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshot.TotalFilesEstimate = totalFiles
	r.snapshot.TotalDirectories = totalDirs
	r.recomputeLocked()
}

// NoteLargeFolder increments the large-folders-found counter.
func (r *Reporter) NoteLargeFolder() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshot.LargeFoldersFound++
}

// recomputeLocked derives ProgressPercent, FilesPerSecond and ETASeconds
// from the current counters. Callers must hold mu.
func (r *Reporter) recomputeLocked() {
	s := &r.snapshot
	if s.TotalFilesEstimate > 0 {
		pct := float64(s.ProcessedFiles) / float64(s.TotalFilesEstimate) * 100
		if pct > 100 {
			pct = 100
		}
		s.ProgressPercent = pct
	}

	if s.StartedAt == nil {
		return
	}
	elapsed := time.Since(*s.StartedAt).Seconds()
	if elapsed <= 0 {
		return
	}
	s.FilesPerSecond = float64(s.ProcessedFiles) / elapsed

	if s.FilesPerSecond > 0 && s.TotalFilesEstimate > s.ProcessedFiles {
		remaining := float64(s.TotalFilesEstimate - s.ProcessedFiles)
		s.ETASeconds = remaining / s.FilesPerSecond
	} else {
		s.ETASeconds = 0
	}
}
