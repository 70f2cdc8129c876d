// Package recovery implements the Error Classifier & Strategy Engine
// (C6): a closed ErrorKind taxonomy, a Severity mapping, and a Strategy
// table that the Migration Pipeline (C7) consults whenever an operation
// fails.
//
// Grounded on the retry/backoff ladder in
// internal/maintenance/backup.go (copyFileWithRetry), generalized from
// "always retry a copy" into "classify the error first, then pick Retry,
// Skip, Abort, Rollback, or Manual" — a decision worker.go never had to
// make because its only failure mode was a copy error.
package recovery

import (
	"context"
	"errors"
	"os"
	"time"

	"dirmover/internal/backup"
	"dirmover/internal/logging"
	"dirmover/internal/types"
)

// Classify maps a raw error into the closed ErrorKind taxonomy. Context
// cancellation and os package sentinel errors are checked first; anything
// else falls through to classifyByMessage, which defaults to IoError. Only
// a nil error maps to Unknown.
func Classify(err error) types.ErrorKind {
	switch {
	case err == nil:
		return types.ErrorUnknown
	case errors.Is(err, context.Canceled):
		return types.ErrorOperationCancelled
	case errors.Is(err, os.ErrNotExist):
		return types.ErrorPathNotFound
	case errors.Is(err, os.ErrExist):
		return types.ErrorPathAlreadyExists
	case errors.Is(err, os.ErrPermission):
		return types.ErrorPermissionDenied
	case errors.Is(err, context.DeadlineExceeded):
		return types.ErrorTimeout
	default:
		return classifyByMessage(err.Error())
	}
}

// classifyByMessage catches the kinds Classify's typed checks cannot see
// because the underlying package returns a plain *PathError/*fmt.wrapError
// without a matching sentinel (disk-full, network-share failures).
func classifyByMessage(msg string) types.ErrorKind {
	switch {
	case containsAny(msg, "no space left", "disk full", "not enough space"):
		return types.ErrorDiskSpaceInsufficient
	case containsAny(msg, "network", "share", "smb"):
		return types.ErrorNetwork
	case containsAny(msg, "access is denied", "permission denied"):
		return types.ErrorPermissionDenied
	case containsAny(msg, "cannot find the path", "no such file"):
		return types.ErrorPathNotFound
	case containsAny(msg, "already exists"):
		return types.ErrorPathAlreadyExists
	case containsAny(msg, "invalid"):
		return types.ErrorInvalidPath
	case containsAny(msg, "protected system location", "reserved", "paging file", "program installation"):
		return types.ErrorSystemProtection
	default:
		return types.ErrorIO
	}
}

func containsAny(s string, substrs ...string) bool {
	lower := toLower(s)
	for _, sub := range substrs {
		if indexOf(lower, toLower(sub)) >= 0 {
			return true
		}
	}
	return false
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func indexOf(s, substr string) int {
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

// Severity ranks a classified ErrorKind against the fixed severity table.
func Severity(kind types.ErrorKind) types.Severity {
	switch kind {
	case types.ErrorOperationCancelled, types.ErrorPathAlreadyExists:
		return types.SeverityLow
	case types.ErrorPathNotFound, types.ErrorPermissionDenied, types.ErrorNetwork, types.ErrorTimeout:
		return types.SeverityMedium
	case types.ErrorInvalidPath, types.ErrorIO, types.ErrorUnknown:
		return types.SeverityHigh
	case types.ErrorDiskSpaceInsufficient, types.ErrorSystemProtection:
		return types.SeverityCritical
	default:
		return types.SeverityHigh
	}
}

// maxRetriesFor returns how many times Strategy should retry a given kind,
// 0 meaning "do not retry" (the table's non-Retry rows).
func maxRetriesFor(kind types.ErrorKind) int {
	switch kind {
	case types.ErrorPathNotFound:
		return 2
	case types.ErrorIO:
		return 3
	default:
		return 0
	}
}

// Strategy picks the recovery action for a classified error against the
// fixed kind x severity table. autoRecoveryEnabled=false short-circuits
// every kind to Manual.
func Strategy(kind types.ErrorKind, autoRecoveryEnabled bool) types.RecoveryStrategy {
	if !autoRecoveryEnabled {
		return types.StrategyManual
	}

	switch kind {
	case types.ErrorOperationCancelled:
		return types.StrategySkip
	case types.ErrorPathAlreadyExists:
		return types.StrategySkip
	case types.ErrorPathNotFound:
		return types.StrategyRetry
	case types.ErrorPermissionDenied:
		return types.StrategyManual
	case types.ErrorIO:
		return types.StrategyRetry
	case types.ErrorDiskSpaceInsufficient, types.ErrorSystemProtection:
		return types.StrategyAbort
	default:
		return types.StrategyManual
	}
}

// Engine executes the strategy chosen for a failed operation, retrying the
// caller-supplied op, falling back to a C5 rollback when retries are
// exhausted and partial rollback is enabled, and otherwise returning an
// unrecovered RecoveryState for Skip/Abort/Manual.
type Engine struct {
	registry              *backup.Registry
	log                   *logging.Logger
	retryDelay            time.Duration
	enableAutoRecovery    bool
	enablePartialRollback bool
}

// NewEngine builds an Engine from AppConfig's recovery settings.
func NewEngine(registry *backup.Registry, cfg types.AppConfig, log *logging.Logger) *Engine {
	return &Engine{
		registry:              registry,
		log:                   log,
		retryDelay:            time.Duration(cfg.RetryDelayMS) * time.Millisecond,
		enableAutoRecovery:    cfg.EnableAutoRecovery,
		enablePartialRollback: cfg.EnablePartialRollback,
	}
}

// Handle classifies err, chooses a strategy, executes it (retrying op as
// needed), and returns the resulting RecoveryState.
func (e *Engine) Handle(ctx context.Context, operationID string, err error, backupID string, op func() error) types.RecoveryState {
	kind := Classify(err)
	severity := Severity(kind)
	strategy := Strategy(kind, e.enableAutoRecovery)

	state := types.RecoveryState{
		OperationID: operationID,
		Kind:        kind,
		Severity:    severity,
		Strategy:    strategy,
		BackupID:    backupID,
		Timestamp:   time.Now(),
	}

	switch strategy {
	case types.StrategySkip, types.StrategyAbort:
		state.Message = err.Error()
		return state

	case types.StrategyManual:
		state.Message = err.Error()
		return state

	case types.StrategyRetry:
		maxRetries := maxRetriesFor(kind)
		lastErr := err
		for attempt := 1; attempt <= maxRetries; attempt++ {
			select {
			case <-ctx.Done():
				state.Message = ctx.Err().Error()
				return state
			case <-time.After(e.retryDelay):
			}
			if op == nil {
				break
			}
			retryErr := op()
			if retryErr == nil {
				state.Recovered = true
				state.RetryCount = attempt
				return state
			}
			lastErr = retryErr
		}
		state.RetryCount = maxRetries
		if e.enablePartialRollback {
			return e.rollback(state, lastErr)
		}
		state.Message = "retries exhausted: " + errMessage(lastErr, err)
		return state

	case types.StrategyRollback:
		return e.rollback(state, err)

	default:
		state.Message = err.Error()
		return state
	}
}

func (e *Engine) rollback(state types.RecoveryState, cause error) types.RecoveryState {
	state.Strategy = types.StrategyRollback
	if e.registry == nil {
		state.Message = "rollback requested but no backup is available: " + errMessage(cause, nil)
		return state
	}
	if state.BackupID == "" {
		// The caller didn't carry a backup id through (e.g. a retry path
		// that only has the operation id); fall back to the most recent
		// active backup tagged for this operation before giving up.
		if rec, ok := e.registry.ByOperation(state.OperationID); ok {
			state.BackupID = rec.BackupID
		}
	}
	if state.BackupID == "" {
		state.Message = "rollback requested but no backup is available: " + errMessage(cause, nil)
		return state
	}
	if err := e.registry.Restore(context.Background(), state.BackupID); err != nil {
		state.Message = "rollback failed: " + err.Error()
		return state
	}
	state.Recovered = true
	state.Message = "rolled back via backup " + state.BackupID
	return state
}

func errMessage(err, fallback error) string {
	if err != nil {
		return err.Error()
	}
	if fallback != nil {
		return fallback.Error()
	}
	return "unknown error"
}
