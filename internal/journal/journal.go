// Package journal implements the Operation Journal (C8): an append-only
// record of every operation lifecycle update, stored one file per
// calendar month, queryable and summarizable, with CSV export and
// retention pruning.
//
// Grounded on internal/maintenance/retention.go's RemoveOldLogs ("list
// the log directory, age-filter, best-effort delete" shape, generalized
// from pruning whole log files into pruning individual journal records
// inside one file) and logging.Logger's side-file fan-out
// (appendSideFile), whose append-a-line-under-a-lock discipline this
// package formalizes with a real file lock instead of an in-process
// mutex, since multiple
// dirmover processes could in principle append concurrently.
package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
	natomic "github.com/natefinch/atomic"

	"dirmover/internal/types"
)

// Journal appends OperationRecord entries to one file per calendar month
// under Dir, guarded by a file lock so concurrent processes never
// interleave partial lines.
type Journal struct {
	dir string
}

// New returns a Journal rooted at dir, creating it if necessary.
func New(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Journal{dir: dir}, nil
}

func (j *Journal) pathForMonth(t time.Time) string {
	return filepath.Join(j.dir, fmt.Sprintf("journal-%s.jsonl", t.Format("2006-01")))
}

func (j *Journal) lockPath(path string) string {
	return path + ".lock"
}

// Append writes one record as a JSON line to the current month's file.
func (j *Journal) Append(rec types.OperationRecord) error {
	path := j.pathForMonth(rec.Timestamp)

	lock := flock.New(j.lockPath(path))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock journal file: %w", err)
	}
	defer lock.Unlock()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open journal file: %w", err)
	}
	defer f.Close()

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode journal record: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write journal record: %w", err)
	}
	return nil
}

// monthFiles returns every journal-*.jsonl file under dir, oldest first.
func (j *Journal) monthFiles() ([]string, error) {
	entries, err := os.ReadDir(j.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), "journal-") && strings.HasSuffix(e.Name(), ".jsonl") {
			files = append(files, filepath.Join(j.dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// readAll loads every record across every month file, in append order.
func (j *Journal) readAll() ([]types.OperationRecord, error) {
	files, err := j.monthFiles()
	if err != nil {
		return nil, err
	}

	var out []types.OperationRecord
	for _, path := range files {
		recs, err := readRecords(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		out = append(out, recs...)
	}
	return out, nil
}

func readRecords(path string) ([]types.OperationRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []types.OperationRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec types.OperationRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			continue // skip a corrupted line rather than fail the whole read
		}
		out = append(out, rec)
	}
	return out, scanner.Err()
}

// Recent returns the n records with the latest Timestamp, newest first
// (all records when n <= 0).
func (j *Journal) Recent(n int) ([]types.OperationRecord, error) {
	all, err := j.readAll()
	if err != nil {
		return nil, err
	}
	sort.Slice(all, func(a, b int) bool { return all[a].Timestamp.After(all[b].Timestamp) })
	if n > 0 && n < len(all) {
		all = all[:n]
	}
	return all, nil
}

// ByType returns every record matching the given OperationType.
func (j *Journal) ByType(t types.OperationType) ([]types.OperationRecord, error) {
	all, err := j.readAll()
	if err != nil {
		return nil, err
	}
	var out []types.OperationRecord
	for _, rec := range all {
		if rec.Type == t {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Failed returns every record with Status == Failed.
func (j *Journal) Failed() ([]types.OperationRecord, error) {
	all, err := j.readAll()
	if err != nil {
		return nil, err
	}
	var out []types.OperationRecord
	for _, rec := range all {
		if rec.Status == types.StatusFailed {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Stats computes aggregate JournalStats across every known record.
func (j *Journal) Stats() (types.JournalStats, error) {
	all, err := j.readAll()
	if err != nil {
		return types.JournalStats{}, err
	}
	return computeStats(all), nil
}

func computeStats(records []types.OperationRecord) types.JournalStats {
	var stats types.JournalStats
	for _, rec := range records {
		stats.Total++
		switch rec.Status {
		case types.StatusCompleted:
			stats.Completed++
		case types.StatusFailed:
			stats.Failed++
		case types.StatusCancelled:
			stats.Cancelled++
		}
		stats.BytesTransferred += rec.TotalSize
		stats.FilesProcessed += rec.FileCount
		stats.DurationMS += rec.DurationMS
	}
	if stats.Total > 0 {
		stats.AvgDurationMS = float64(stats.DurationMS) / float64(stats.Total)
		stats.SuccessRatePct = float64(stats.Completed) / float64(stats.Total) * 100
	}
	if stats.DurationMS > 0 {
		seconds := float64(stats.DurationMS) / 1000
		stats.AvgSpeedMBps = float64(stats.BytesTransferred) / (1024 * 1024) / seconds
	}
	return stats
}

// Prune rewrites every month file, keeping only records newer than
// keepDays, atomically replacing each file so a crash mid-rewrite never
// leaves a half-written journal.
func (j *Journal) Prune(keepDays int) (removed int, err error) {
	cutoff := time.Now().AddDate(0, 0, -keepDays)

	files, err := j.monthFiles()
	if err != nil {
		return 0, err
	}

	for _, path := range files {
		lock := flock.New(j.lockPath(path))
		if lockErr := lock.Lock(); lockErr != nil {
			continue
		}

		recs, readErr := readRecords(path)
		if readErr != nil {
			lock.Unlock()
			continue
		}

		var kept []types.OperationRecord
		for _, rec := range recs {
			if rec.Timestamp.Before(cutoff) {
				removed++
				continue
			}
			kept = append(kept, rec)
		}

		if len(kept) == len(recs) {
			lock.Unlock()
			continue
		}

		var buf strings.Builder
		for _, rec := range kept {
			line, encErr := json.Marshal(rec)
			if encErr != nil {
				continue
			}
			buf.Write(line)
			buf.WriteByte('\n')
		}

		if len(kept) == 0 {
			_ = os.Remove(path)
		} else if writeErr := natomic.WriteFile(path, strings.NewReader(buf.String())); writeErr != nil {
			lock.Unlock()
			return removed, fmt.Errorf("rewrite %s: %w", path, writeErr)
		}
		lock.Unlock()
	}

	return removed, nil
}

// ExportCSV writes every known record to path as CSV: a header row,
// commas in Details replaced by semicolons, timestamps formatted as
// YYYY-MM-DD HH:MM:SS.
func (j *Journal) ExportCSV(path string) error {
	all, err := j.readAll()
	if err != nil {
		return err
	}
	sort.Slice(all, func(a, b int) bool { return all[a].Timestamp.Before(all[b].Timestamp) })

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	defer w.Flush()

	if _, err := w.WriteString("ID,Timestamp,Type,Status,Source,Target,Details,Error,Duration(ms),FileCount,TotalSize,User,Session\n"); err != nil {
		return err
	}
	for _, rec := range all {
		details := strings.ReplaceAll(rec.Details, ",", ";")
		line := fmt.Sprintf("%s,%s,%s,%s,%s,%s,%s,%s,%d,%d,%d,%s,%s\n",
			rec.ID,
			rec.Timestamp.Format("2006-01-02 15:04:05"),
			rec.Type,
			rec.Status,
			rec.Source,
			rec.Target,
			details,
			rec.Error,
			rec.DurationMS,
			rec.FileCount,
			rec.TotalSize,
			rec.User,
			rec.SessionID,
		)
		if _, err := w.WriteString(line); err != nil {
			return err
		}
	}
	return nil
}
