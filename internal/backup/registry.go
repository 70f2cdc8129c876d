// Package backup implements the Backup Registry (C5): timestamped,
// copy-based backups of a source subtree kept for rollback, subject to a
// total size ceiling and a retention-window sweep.
//
// Grounded on internal/maintenance/backup.go's copyfileStream/retry shape
// and retention.go (RemoveOldLogs' "stat or create, list non-recursively,
// best-effort per-entry delete" shape, generalized from log files to
// backup folders). The backup destination's own layout — a flat
// `<sourceLeaf>_<timestamp>_<backupID>` folder under a process-temp
// directory — follows the one documented for this registry rather than
// a nested per-day log-folder convention.
package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"dirmover/internal/fileops"
	"dirmover/internal/logging"
	"dirmover/internal/types"
)

// Registry tracks backup records for one process lifetime and persists
// the backups themselves as copy-based subtrees under root.
type Registry struct {
	root          string
	maxTotalBytes int64
	retention     time.Duration
	log           *logging.Logger

	mu      sync.Mutex
	records []types.BackupRecord
}

// CheckPath validates that root is safe to use as a backup destination:
// it must exist, be a directory, and accept a real write (a temp file is
// created and removed immediately). This is intentionally conservative —
// failures here, left unchecked, can lead to data loss if a source delete
// runs without a successful backup first, so it's called before wiring a
// recovery engine around root. A true result is not a guarantee: a network
// share can still fail a later write (credentials expiring, the share
// going offline), and this does not check free space or quota.
//
// Grounded on internal/maintenance/verify.go's CheckBackupPath.
func CheckPath(root string) bool {
	root = filepath.Clean(root)

	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return false
	}

	f, err := os.CreateTemp(root, ".backup_test_*")
	if err != nil {
		return false
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return true
}

// New returns a Registry rooted at root, with the given size ceiling (in
// MB) and retention window (in hours) — both sourced from AppConfig.
func New(root string, maxRollbackSizeMB int64, retentionHours int, log *logging.Logger) *Registry {
	return &Registry{
		root:          root,
		maxTotalBytes: maxRollbackSizeMB * 1024 * 1024,
		retention:     time.Duration(retentionHours) * time.Hour,
		log:           log,
	}
}

// totalActiveBytesLocked sums SizeBytes across every Active record.
// Callers must hold r.mu.
func (r *Registry) totalActiveBytesLocked() int64 {
	var total int64
	for _, rec := range r.records {
		if rec.Active {
			total += rec.SizeBytes
		}
	}
	return total
}

// Create backs up source (a file or directory tree) under a fresh
// backup-ID folder, rejecting the backup if it would push total active
// backup bytes over the registry's ceiling.
func (r *Registry) Create(ctx context.Context, source, operationType string) (types.BackupRecord, error) {
	info, err := os.Stat(source)
	if err != nil {
		return types.BackupRecord{}, errors.Wrap(err, "stat backup source")
	}

	estimatedSize, err := dirSize(source)
	if err != nil {
		return types.BackupRecord{}, errors.Wrap(err, "measure backup source size")
	}

	r.mu.Lock()
	if r.totalActiveBytesLocked()+estimatedSize > r.maxTotalBytes {
		r.mu.Unlock()
		return types.BackupRecord{}, fmt.Errorf(
			"backup of %s (%d bytes) would exceed the %d MB rollback size ceiling",
			source, estimatedSize, r.maxTotalBytes/(1024*1024))
	}
	r.mu.Unlock()

	backupID := uuid.NewString()
	folderName := fmt.Sprintf("%s_%s_%s", filepath.Base(source), time.Now().Format("20060102_150405"), backupID)
	dest := filepath.Join(r.root, folderName)

	if info.IsDir() {
		if _, _, err := fileops.CopyTree(ctx, source, dest, 1, r.log); err != nil {
			return types.BackupRecord{}, errors.Wrap(err, "copy backup tree")
		}
	} else {
		if err := fileops.CopyFileWithRetry(ctx, source, dest, 1, r.log); err != nil {
			return types.BackupRecord{}, errors.Wrap(err, "copy backup file")
		}
	}

	record := types.BackupRecord{
		BackupID:      backupID,
		OriginalPath:  source,
		BackupPath:    dest,
		SizeBytes:     estimatedSize,
		CreatedAt:     time.Now(),
		OperationType: operationType,
		Active:        true,
	}

	r.mu.Lock()
	r.records = append(r.records, record)
	r.mu.Unlock()

	if r.log != nil {
		r.log.Successf("Backed up %s -> %s (%d bytes)", source, dest, estimatedSize)
	}
	return record, nil
}

// Restore copies a backup's contents back to its OriginalPath, used by the
// recovery engine's Rollback strategy.
func (r *Registry) Restore(ctx context.Context, backupID string) error {
	rec, ok := r.Lookup(backupID)
	if !ok {
		return fmt.Errorf("no backup record for id %s", backupID)
	}
	if !rec.Active {
		return fmt.Errorf("backup %s has already been released", backupID)
	}

	info, err := os.Stat(rec.BackupPath)
	if err != nil {
		return errors.Wrap(err, "stat backup contents")
	}

	if info.IsDir() {
		if _, _, err := fileops.CopyTree(ctx, rec.BackupPath, rec.OriginalPath, 1, r.log); err != nil {
			return errors.Wrap(err, "restore backup tree")
		}
	} else if err := fileops.CopyFileWithRetry(ctx, rec.BackupPath, rec.OriginalPath, 1, r.log); err != nil {
		return errors.Wrap(err, "restore backup file")
	}

	if r.log != nil {
		r.log.Infof("Restored %s from backup %s", rec.OriginalPath, rec.BackupID)
	}
	return nil
}

// Release marks a backup record inactive and removes its on-disk copy,
// called once a migration has completed successfully and no longer needs
// the safety copy.
func (r *Registry) Release(backupID string) error {
	r.mu.Lock()
	idx := -1
	for i, rec := range r.records {
		if rec.BackupID == backupID {
			idx = i
			break
		}
	}
	if idx == -1 {
		r.mu.Unlock()
		return fmt.Errorf("no backup record for id %s", backupID)
	}
	r.records[idx].Active = false
	path := r.records[idx].BackupPath
	r.mu.Unlock()

	return fileops.DeleteTree(path)
}

// Lookup returns the record for backupID, if any.
func (r *Registry) Lookup(backupID string) (types.BackupRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.BackupID == backupID {
			return rec, true
		}
	}
	return types.BackupRecord{}, false
}

// ByOperation returns the most recent active record whose OperationType
// contains operationType, used by the recovery engine when a caller
// knows an operation id but not the backup id it produced.
func (r *Registry) ByOperation(operationType string) (types.BackupRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matches []types.BackupRecord
	for _, rec := range r.records {
		if rec.Active && strings.Contains(rec.OperationType, operationType) {
			matches = append(matches, rec)
		}
	}
	if len(matches) == 0 {
		return types.BackupRecord{}, false
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt.After(matches[j].CreatedAt) })
	return matches[0], true
}

// Sweep removes active backups older than the registry's retention
// window: best-effort per entry, never failing the whole sweep for one
// bad entry.
func (r *Registry) Sweep() (removed int, err error) {
	cutoff := time.Now().Add(-r.retention)

	r.mu.Lock()
	var toRemove []int
	for i, rec := range r.records {
		if rec.Active && rec.CreatedAt.Before(cutoff) {
			toRemove = append(toRemove, i)
		}
	}
	r.mu.Unlock()

	for _, i := range toRemove {
		r.mu.Lock()
		rec := r.records[i]
		r.mu.Unlock()

		if delErr := fileops.DeleteTree(rec.BackupPath); delErr != nil {
			if r.log != nil {
				r.log.Warnf("Retention sweep could not remove backup %s: %v", rec.BackupID, delErr)
			}
			continue
		}

		r.mu.Lock()
		r.records[i].Active = false
		r.mu.Unlock()
		removed++
	}
	return removed, nil
}

// Records returns a snapshot copy of every known record.
func (r *Registry) Records() []types.BackupRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.BackupRecord, len(r.records))
	copy(out, r.records)
	return out
}

func dirSize(path string) (int64, error) {
	var total int64
	err := filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, infoErr := d.Info()
		if infoErr != nil {
			return infoErr
		}
		total += info.Size()
		return nil
	})
	return total, err
}
