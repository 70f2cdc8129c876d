package recovery

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"dirmover/internal/backup"
	"dirmover/internal/types"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want types.ErrorKind
	}{
		{"cancelled", context.Canceled, types.ErrorOperationCancelled},
		{"not exist", os.ErrNotExist, types.ErrorPathNotFound},
		{"exist", os.ErrExist, types.ErrorPathAlreadyExists},
		{"permission", os.ErrPermission, types.ErrorPermissionDenied},
		{"deadline", context.DeadlineExceeded, types.ErrorTimeout},
		{"disk full message", errors.New("write failed: no space left on device"), types.ErrorDiskSpaceInsufficient},
		{"unrecognized", errors.New("something weird happened"), types.ErrorIO},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Fatalf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestSeverity_MatchesTable(t *testing.T) {
	tests := []struct {
		kind types.ErrorKind
		want types.Severity
	}{
		{types.ErrorOperationCancelled, types.SeverityLow},
		{types.ErrorPathAlreadyExists, types.SeverityLow},
		{types.ErrorPathNotFound, types.SeverityMedium},
		{types.ErrorPermissionDenied, types.SeverityMedium},
		{types.ErrorNetwork, types.SeverityMedium},
		{types.ErrorTimeout, types.SeverityMedium},
		{types.ErrorInvalidPath, types.SeverityHigh},
		{types.ErrorIO, types.SeverityHigh},
		{types.ErrorUnknown, types.SeverityHigh},
		{types.ErrorDiskSpaceInsufficient, types.SeverityCritical},
		{types.ErrorSystemProtection, types.SeverityCritical},
	}
	for _, tt := range tests {
		if got := Severity(tt.kind); got != tt.want {
			t.Fatalf("Severity(%s) = %s, want %s", tt.kind, got, tt.want)
		}
	}
}

func TestStrategy_MatchesTable(t *testing.T) {
	tests := []struct {
		kind types.ErrorKind
		want types.RecoveryStrategy
	}{
		{types.ErrorOperationCancelled, types.StrategySkip},
		{types.ErrorPathAlreadyExists, types.StrategySkip},
		{types.ErrorPathNotFound, types.StrategyRetry},
		{types.ErrorPermissionDenied, types.StrategyManual},
		{types.ErrorIO, types.StrategyRetry},
		{types.ErrorDiskSpaceInsufficient, types.StrategyAbort},
		{types.ErrorSystemProtection, types.StrategyAbort},
		{types.ErrorUnknown, types.StrategyManual},
	}
	for _, tt := range tests {
		if got := Strategy(tt.kind, true); got != tt.want {
			t.Fatalf("Strategy(%s) = %s, want %s", tt.kind, got, tt.want)
		}
	}
}

func TestStrategy_AutoRecoveryDisabledForcesManual(t *testing.T) {
	if got := Strategy(types.ErrorIO, false); got != types.StrategyManual {
		t.Fatalf("Strategy with auto-recovery disabled = %s, want Manual", got)
	}
	if got := Strategy(types.ErrorDiskSpaceInsufficient, false); got != types.StrategyManual {
		t.Fatalf("Strategy with auto-recovery disabled = %s, want Manual", got)
	}
}

func TestEngine_Handle_RetrySucceeds(t *testing.T) {
	cfg := types.AppConfig{RetryDelayMS: 1, EnableAutoRecovery: true, EnablePartialRollback: true}
	e := NewEngine(nil, cfg, nil)

	attempts := 0
	op := func() error {
		attempts++
		if attempts < 2 {
			return os.ErrNotExist
		}
		return nil
	}

	state := e.Handle(context.Background(), "op-1", os.ErrNotExist, "", op)
	if !state.Recovered {
		t.Fatalf("expected recovery to succeed on the second attempt")
	}
	if state.Strategy != types.StrategyRetry {
		t.Fatalf("Strategy = %s, want Retry", state.Strategy)
	}
}

func TestEngine_Handle_RetryExhaustedFallsBackToRollback(t *testing.T) {
	dir := t.TempDir()
	source := dir + "/source"
	if err := os.MkdirAll(source, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(source+"/a.txt", []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	reg := backup.New(dir+"/backups", 1000, 24, nil)
	rec, err := reg.Create(context.Background(), source, "Migrate")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	cfg := types.AppConfig{RetryDelayMS: 1, EnableAutoRecovery: true, EnablePartialRollback: true}
	e := NewEngine(reg, cfg, nil)

	op := func() error { return os.ErrNotExist }
	state := e.Handle(context.Background(), "op-2", os.ErrNotExist, rec.BackupID, op)

	if state.Strategy != types.StrategyRollback {
		t.Fatalf("Strategy = %s, want Rollback after exhausting retries", state.Strategy)
	}
	if !state.Recovered {
		t.Fatalf("expected rollback to succeed: %s", state.Message)
	}
}

func TestEngine_Handle_SkipAndAbortReturnImmediately(t *testing.T) {
	cfg := types.AppConfig{EnableAutoRecovery: true}
	e := NewEngine(nil, cfg, nil)

	start := time.Now()
	state := e.Handle(context.Background(), "op-3", context.Canceled, "", nil)
	if time.Since(start) > 50*time.Millisecond {
		t.Fatalf("Skip strategy should return immediately without retry delay")
	}
	if state.Strategy != types.StrategySkip {
		t.Fatalf("Strategy = %s, want Skip", state.Strategy)
	}
	if state.Recovered {
		t.Fatalf("Skip should not report Recovered")
	}

	start = time.Now()
	state = e.Handle(context.Background(), "op-4", errors.New("write failed: no space left on device"), "", nil)
	if time.Since(start) > 50*time.Millisecond {
		t.Fatalf("Abort strategy should return immediately without retry delay")
	}
	if state.Strategy != types.StrategyAbort {
		t.Fatalf("Strategy = %s, want Abort", state.Strategy)
	}
	if state.Recovered {
		t.Fatalf("Abort should not report Recovered")
	}
}
