// Package migration implements the Migration Pipeline (C7): the state
// machine that drives a directory move through PreCheck, Copy, Verify, an
// optional symlink Link step, and an optional source delete, composing
// C1 (path safety), C4 (file operator), C5 (backup registry), C6 (error
// classifier), and C9 (progress).
//
// Grounded on run.go's top-level orchestration style (wire collaborators
// explicitly, no hidden globals) and worker.go's top-level orchestration
// (Worker wires walkers, a processor, and stop conditions into one run) —
// generalized from "one long-running sweep over many files" into "one
// staged pipeline over a single directory pair", with each stage
// delegating to the package that already owns it rather than
// reimplementing copy/verify/backup logic inline.
package migration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"dirmover/internal/backup"
	"dirmover/internal/diskspace"
	"dirmover/internal/fileops"
	"dirmover/internal/journal"
	"dirmover/internal/logging"
	"dirmover/internal/pathsafety"
	"dirmover/internal/perf"
	"dirmover/internal/progress"
	"dirmover/internal/recovery"
	"dirmover/internal/scanner"
	"dirmover/internal/types"
)

// headroomFraction is the PreCheck free-space safety margin required
// against the estimated source size.
const headroomFraction = 0.20

// verifyToleranceFraction is the acceptable size drift Verify allows
// between source and target (10%), measured on the summed file lengths
// the scanner reports for each tree.
const verifyToleranceFraction = 0.10

// Pipeline runs migrations end to end, journaling every lifecycle edge
// and delegating recovery decisions to C6.
type Pipeline struct {
	cfg      types.AppConfig
	log      *logging.Logger
	journal  *journal.Journal
	backups  *backup.Registry
	recovery *recovery.Engine
	gate     *perf.Gate
	reporter *progress.Reporter
}

// New builds a Pipeline from its collaborators. journal, backups,
// recoveryEngine, gate, and reporter may be nil for a reduced-dependency
// pipeline (useful in tests).
func New(cfg types.AppConfig, log *logging.Logger, j *journal.Journal, backups *backup.Registry, recoveryEngine *recovery.Engine, gate *perf.Gate, reporter *progress.Reporter) *Pipeline {
	return &Pipeline{cfg: cfg, log: log, journal: j, backups: backups, recovery: recoveryEngine, gate: gate, reporter: reporter}
}

// Migrate drives opts through the full state machine, returning the
// terminal MigrationResult. It never panics; every failure mode is
// reported through the result and (when a journal is configured) an
// OperationRecord.
func (p *Pipeline) Migrate(ctx context.Context, opts types.MigrationOptions) types.MigrationResult {
	if p.gate != nil {
		p.gate.Acquire()
		defer p.gate.Release()
	}

	operationID := uuid.NewString()
	started := time.Now()
	rec := types.OperationRecord{
		ID:        operationID,
		Timestamp: started,
		Type:      types.OpMigrate,
		Status:    types.StatusStarted,
		Source:    opts.Source,
		Target:    opts.Target,
		User:      p.cfg.User,
		SessionID: p.cfg.SessionID,
	}
	p.appendJournal(rec)

	result := p.run(ctx, operationID, opts)

	rec.DurationMS = time.Since(started).Milliseconds()
	if result.Success {
		rec.Status = types.StatusCompleted
		rec.Details = result.Message
	} else {
		rec.Status = types.StatusFailed
		rec.Error = result.Message
	}
	p.appendJournal(rec)

	return result
}

func (p *Pipeline) run(ctx context.Context, operationID string, opts types.MigrationOptions) types.MigrationResult {
	if err := p.preCheck(opts); err != nil {
		return p.fail(ctx, operationID, "", err)
	}

	if _, _, err := fileops.CopyTree(ctx, opts.Source, opts.Target, 2, p.log); err != nil {
		return p.fail(ctx, operationID, "", err)
	}

	if err := p.verify(opts.Source, opts.Target); err != nil {
		_ = fileops.DeleteTree(opts.Target)
		return p.fail(ctx, operationID, "", err)
	}

	result := types.MigrationResult{Success: true, TargetPath: opts.Target}

	if opts.CreateSymlink {
		linkPath, linkErr := p.link(opts.Source, opts.Target)
		if linkErr != nil {
			if p.log != nil {
				p.log.Warnf("Symlink step failed for %s: %v", opts.Source, linkErr)
			}
		} else {
			result.LinkPath = linkPath
		}
	}

	if opts.DeleteSource && result.LinkPath == "" {
		if err := fileops.DeleteTree(opts.Source); err != nil && p.log != nil {
			p.log.Warnf("Delete-source step failed for %s: %v", opts.Source, err)
		}
	}

	result.Message = fmt.Sprintf("migrated %s to %s", opts.Source, opts.Target)
	return result
}

// preCheck runs the PreCheck phase's validations in order.
func (p *Pipeline) preCheck(opts types.MigrationOptions) error {
	if r := pathsafety.Validate(opts.Source, opts.Target); !r.Ok {
		return fmt.Errorf("path safety check failed: %s", r.Reason)
	}

	if _, err := os.ReadDir(opts.Source); err != nil {
		return fmt.Errorf("cannot read source directory: %w", err)
	}

	targetParent := filepath.Dir(opts.Target)
	if err := os.MkdirAll(targetParent, 0o755); err != nil {
		return fmt.Errorf("cannot create target parent directory: %w", err)
	}
	probe := filepath.Join(targetParent, ".dirmover-write-test")
	f, err := os.Create(probe)
	if err != nil {
		return fmt.Errorf("target parent is not writable: %w", err)
	}
	f.Close()
	os.Remove(probe)

	sourceSize, err := treeSize(opts.Source)
	if err != nil {
		return fmt.Errorf("cannot estimate source size: %w", err)
	}
	hasRoom, info, err := diskspace.HasHeadroom(targetParent, sourceSize, headroomFraction)
	if err != nil {
		return fmt.Errorf("cannot query free space on target drive: %w", err)
	}
	if !hasRoom {
		return fmt.Errorf("insufficient free space on target drive: need %d bytes with %.0f%% headroom, have %d free",
			sourceSize, headroomFraction*100, info.FreeBytes)
	}

	return nil
}

// verify runs the Verify phase: a size-drift check followed by a
// leaf-name spot check.
func (p *Pipeline) verify(source, target string) error {
	sourceNode, err := scanner.New(p.log, nil, nil, nil).Scan(context.Background(), source, scanner.Options{MaxDepth: 64})
	if err != nil {
		return fmt.Errorf("cannot re-size source for verification: %w", err)
	}
	targetNode, err := scanner.New(p.log, nil, nil, nil).Scan(context.Background(), target, scanner.Options{MaxDepth: 64})
	if err != nil {
		return fmt.Errorf("cannot re-size target for verification: %w", err)
	}

	if sourceNode.Size > 0 {
		drift := absFloat(float64(sourceNode.Size-targetNode.Size)) / float64(sourceNode.Size)
		if drift > verifyToleranceFraction {
			return fmt.Errorf("size drift %.1f%% exceeds the %.0f%% tolerance (source %d bytes, target %d bytes)",
				drift*100, verifyToleranceFraction*100, sourceNode.Size, targetNode.Size)
		}
	}

	return verifyLeafNames(source, target)
}

// verifyLeafNames re-reads the first 10 entries of source and requires
// each leaf name to exist somewhere at the corresponding target path.
func verifyLeafNames(source, target string) error {
	entries, err := os.ReadDir(source)
	if err != nil {
		return fmt.Errorf("cannot re-read source for verification: %w", err)
	}
	limit := 10
	if len(entries) < limit {
		limit = len(entries)
	}
	for _, entry := range entries[:limit] {
		targetPath := filepath.Join(target, entry.Name())
		if _, err := os.Stat(targetPath); err != nil {
			return fmt.Errorf("verification could not find %s at the target", entry.Name())
		}
	}
	return nil
}

// link runs the optional Link step: rename the source to a ".backup"
// sibling, then create a directory symlink at the original source path
// pointing at the target.
func (p *Pipeline) link(source, target string) (string, error) {
	backupPath := source + ".backup"
	if err := os.Rename(source, backupPath); err != nil {
		return "", fmt.Errorf("cannot rename source for symlink step: %w", err)
	}
	if err := fileops.CreateSymlink(target, source); err != nil {
		_ = os.Rename(backupPath, source)
		return "", fmt.Errorf("cannot create symlink: %w", err)
	}
	return source, nil
}

func (p *Pipeline) fail(ctx context.Context, operationID string, backupID string, cause error) types.MigrationResult {
	if p.recovery != nil {
		state := p.recovery.Handle(ctx, operationID, cause, backupID, nil)
		return types.MigrationResult{Success: false, Message: state.Message}
	}
	return types.MigrationResult{Success: false, Message: cause.Error()}
}

func (p *Pipeline) appendJournal(rec types.OperationRecord) {
	if p.journal == nil {
		return
	}
	if err := p.journal.Append(rec); err != nil && p.log != nil {
		p.log.Warnf("Could not append journal record for operation %s: %v", rec.ID, err)
	}
}

func treeSize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(_ string, d os.DirEntry, err error) error {
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

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
