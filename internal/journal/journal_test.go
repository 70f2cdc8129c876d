package journal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dirmover/internal/types"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return j
}

func TestJournal_AppendAndRecent(t *testing.T) {
	j := newTestJournal(t)

	now := time.Now()
	recs := []types.OperationRecord{
		{ID: "1", Timestamp: now.Add(-2 * time.Minute), Type: types.OpMigrate, Status: types.StatusCompleted},
		{ID: "2", Timestamp: now.Add(-1 * time.Minute), Type: types.OpScan, Status: types.StatusCompleted},
		{ID: "3", Timestamp: now, Type: types.OpMigrate, Status: types.StatusFailed},
	}
	for _, rec := range recs {
		if err := j.Append(rec); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	recent, err := j.Recent(2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("Recent(2) returned %d records, want 2", len(recent))
	}
	if recent[0].ID != "3" {
		t.Fatalf("Recent[0].ID = %s, want 3 (newest first)", recent[0].ID)
	}
}

func TestJournal_ByTypeAndFailed(t *testing.T) {
	j := newTestJournal(t)
	now := time.Now()

	_ = j.Append(types.OperationRecord{ID: "1", Timestamp: now, Type: types.OpMigrate, Status: types.StatusCompleted})
	_ = j.Append(types.OperationRecord{ID: "2", Timestamp: now, Type: types.OpScan, Status: types.StatusCompleted})
	_ = j.Append(types.OperationRecord{ID: "3", Timestamp: now, Type: types.OpMigrate, Status: types.StatusFailed})

	migrations, err := j.ByType(types.OpMigrate)
	if err != nil {
		t.Fatalf("ByType: %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("ByType(Migrate) returned %d, want 2", len(migrations))
	}

	failed, err := j.Failed()
	if err != nil {
		t.Fatalf("Failed: %v", err)
	}
	if len(failed) != 1 || failed[0].ID != "3" {
		t.Fatalf("Failed() = %+v, want one record with ID 3", failed)
	}
}

func TestJournal_Stats(t *testing.T) {
	j := newTestJournal(t)
	now := time.Now()

	_ = j.Append(types.OperationRecord{ID: "1", Timestamp: now, Status: types.StatusCompleted, DurationMS: 1000, TotalSize: 1024 * 1024, FileCount: 10})
	_ = j.Append(types.OperationRecord{ID: "2", Timestamp: now, Status: types.StatusFailed, DurationMS: 500})
	_ = j.Append(types.OperationRecord{ID: "3", Timestamp: now, Status: types.StatusCancelled, DurationMS: 200})

	stats, err := j.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 3 || stats.Completed != 1 || stats.Failed != 1 || stats.Cancelled != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.SuccessRatePct <= 33 || stats.SuccessRatePct >= 34 {
		t.Fatalf("SuccessRatePct = %v, want ~33.33", stats.SuccessRatePct)
	}
}

func TestJournal_Prune(t *testing.T) {
	j := newTestJournal(t)

	old := time.Now().AddDate(0, 0, -100)
	recent := time.Now()

	_ = j.Append(types.OperationRecord{ID: "old", Timestamp: old, Status: types.StatusCompleted})
	_ = j.Append(types.OperationRecord{ID: "new", Timestamp: recent, Status: types.StatusCompleted})

	removed, err := j.Prune(90)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 1 {
		t.Fatalf("Prune removed %d, want 1", removed)
	}

	all, err := j.Recent(0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(all) != 1 || all[0].ID != "new" {
		t.Fatalf("expected only the recent record to survive pruning, got %+v", all)
	}
}

func TestJournal_ExportCSV(t *testing.T) {
	j := newTestJournal(t)
	now := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)

	_ = j.Append(types.OperationRecord{
		ID: "1", Timestamp: now, Type: types.OpMigrate, Status: types.StatusCompleted,
		Source: `C:\Data\a`, Target: `D:\Data\a`, Details: "moved, verified", DurationMS: 1500,
		FileCount: 3, TotalSize: 4096, User: "alice", SessionID: "sess1",
	})

	out := filepath.Join(t.TempDir(), "export.csv")
	if err := j.ExportCSV(out); err != nil {
		t.Fatalf("ExportCSV: %v", err)
	}

	content, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(content), "\n"), "\n")
	if lines[0] != "ID,Timestamp,Type,Status,Source,Target,Details,Error,Duration(ms),FileCount,TotalSize,User,Session" {
		t.Fatalf("unexpected header: %s", lines[0])
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines (header + 1 record), got %d", len(lines))
	}
	if !strings.Contains(lines[1], "moved; verified") {
		t.Fatalf("expected comma in Details to be replaced by semicolon, got: %s", lines[1])
	}
	if !strings.Contains(lines[1], "2026-01-15 10:30:00") {
		t.Fatalf("expected formatted timestamp, got: %s", lines[1])
	}
}
