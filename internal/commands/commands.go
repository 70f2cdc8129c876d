// Package commands implements the Command Dispatcher (C11): a concrete,
// type-safe stand-in for the opaque UI-binding command boundary, with one
// method per named command, each taking the documented arguments and
// returning the documented result shape. cmd/dirmoverd and tests call
// these methods directly instead of crossing a real IPC boundary.
//
// Grounded on run.go's composition-root style (wire every collaborator
// explicitly, return errors rather than hiding them) generalized from "one
// fixed sweep" into "a table of independently callable operations."
package commands

import (
	"context"
	"fmt"
	"os"

	humanize "github.com/dustin/go-humanize"

	"dirmover/internal/appdata"
	"dirmover/internal/backup"
	"dirmover/internal/diskspace"
	"dirmover/internal/journal"
	"dirmover/internal/logging"
	"dirmover/internal/migration"
	"dirmover/internal/pathsafety"
	"dirmover/internal/perf"
	"dirmover/internal/progress"
	"dirmover/internal/scanner"
	"dirmover/internal/types"
)

// ValidationReport is the result of validate_migration_path /
// validate_appdata_migration_options.
type ValidationReport struct {
	Valid       bool
	Message     string
	Suggestions []string
}

// RecoveryStats is the result of get_recovery_statistics.
type RecoveryStats struct {
	ActiveBackups    int
	TotalBackupBytes int64
	RetentionHours   int
}

// Dispatcher wires every subsystem (C1-C10) behind the command surface.
type Dispatcher struct {
	cfg       types.AppConfig
	log       *logging.Logger
	reporter  *progress.Reporter
	optimizer *perf.Optimizer
	appdataSc *appdata.Scanner
	pipeline  *migration.Pipeline
	backups   *backup.Registry
	journal   *journal.Journal

	scanner *scanner.Scanner
}

// New builds a Dispatcher from its collaborators. Any of optimizer,
// appdataSc, pipeline, backups, journal may be nil to run a reduced
// command surface (useful in tests); calls needing a nil collaborator
// return an error instead of panicking.
func New(cfg types.AppConfig, log *logging.Logger, reporter *progress.Reporter, optimizer *perf.Optimizer, appdataSc *appdata.Scanner, pipeline *migration.Pipeline, backups *backup.Registry, j *journal.Journal) *Dispatcher {
	d := &Dispatcher{
		cfg:       cfg,
		log:       log,
		reporter:  reporter,
		optimizer: optimizer,
		appdataSc: appdataSc,
		pipeline:  pipeline,
		backups:   backups,
		journal:   j,
	}
	d.scanner = scanner.New(log, reporter, d.cacheOrNil(), d.gateOrNil())
	return d
}

// ScanDirectory implements the scan_directory command, running it on the
// one Scanner the Dispatcher keeps for its lifetime so a later StopScan
// call reaches this same in-flight run via its shared cancellation flag,
// instead of a disposable per-call Scanner it could never cancel. As with
// stop_scan itself, this assumes a single live scan at a time — the
// command surface this mirrors has no concept of concurrent scan handles.
func (d *Dispatcher) ScanDirectory(ctx context.Context, path string, systemDriveMode bool) (*types.DirectoryNode, error) {
	d.scanner.ResetCancel()
	return d.scanner.Scan(ctx, path, scanner.Options{
		MaxDepth:              d.cfg.MaxDepth,
		LargeFolderThresholdB: d.cfg.LargeFolderThreshold,
		SystemDriveMode:       systemDriveMode,
	})
}

// GetScanProgress implements the get_scan_progress command.
func (d *Dispatcher) GetScanProgress() types.ScanProgress {
	if d.reporter == nil {
		return types.ScanProgress{}
	}
	return d.reporter.Snapshot()
}

// StopScan implements the stop_scan command.
func (d *Dispatcher) StopScan() {
	d.scanner.Cancel()
}

// ScanAppData implements the scan_appdata command.
func (d *Dispatcher) ScanAppData(ctx context.Context, opts appdata.Options) (types.AppDataReport, error) {
	if d.appdataSc == nil {
		return types.AppDataReport{}, fmt.Errorf("app-data scanner is not configured")
	}
	return d.appdataSc.Scan(ctx, opts)
}

// ScanAppDataStreaming implements the scan_appdata_streaming command,
// emitting appdata-scan-event / appdata-scan-complete / appdata-scan-error
// equivalents onto events.
func (d *Dispatcher) ScanAppDataStreaming(ctx context.Context, opts appdata.Options, events chan<- types.AppDataEvent) error {
	if d.appdataSc == nil {
		return fmt.Errorf("app-data scanner is not configured")
	}
	d.appdataSc.ScanStream(ctx, opts, events)
	return nil
}

// GetAppDataPath implements the get_appdata_path command.
func (d *Dispatcher) GetAppDataPath() string {
	return appdata.BaseDir()
}

// MigrateDirectory implements the migrate_directory command.
func (d *Dispatcher) MigrateDirectory(ctx context.Context, opts types.MigrationOptions) (types.MigrationResult, error) {
	if d.pipeline == nil {
		return types.MigrationResult{}, fmt.Errorf("migration pipeline is not configured")
	}
	return d.pipeline.Migrate(ctx, opts), nil
}

// MigrateAppDataItems implements the migrate_appdata_items command: runs
// one migration per item, rooted at the same leaf name under targetDrive,
// and aggregates the outcome.
func (d *Dispatcher) MigrateAppDataItems(ctx context.Context, items []types.AppDataItem, targetDrive string, createSymlink, deleteSource bool) (types.MigrationResult, error) {
	if d.pipeline == nil {
		return types.MigrationResult{}, fmt.Errorf("migration pipeline is not configured")
	}
	if len(items) == 0 {
		return types.MigrationResult{Success: true, Message: "no items to migrate"}, nil
	}

	var failures []string
	migrated := 0
	for _, item := range items {
		target := targetDrive + string(os.PathSeparator) + item.Name
		result := d.pipeline.Migrate(ctx, types.MigrationOptions{
			Source:        item.Path,
			Target:        target,
			CreateSymlink: createSymlink,
			DeleteSource:  deleteSource,
		})
		if !result.Success {
			failures = append(failures, fmt.Sprintf("%s: %s", item.Name, result.Message))
			continue
		}
		migrated++
	}

	if len(failures) > 0 {
		return types.MigrationResult{
			Success: migrated > 0,
			Message: fmt.Sprintf("migrated %d/%d items, failures: %v", migrated, len(items), failures),
		}, nil
	}
	return types.MigrationResult{Success: true, Message: fmt.Sprintf("migrated %d items", migrated)}, nil
}

// ValidateMigrationPath implements the validate_migration_path command.
func (d *Dispatcher) ValidateMigrationPath(source, target string) ValidationReport {
	r := pathsafety.Validate(source, target)
	if r.Ok {
		return ValidationReport{Valid: true}
	}
	return ValidationReport{
		Valid:       false,
		Message:     r.Reason,
		Suggestions: suggestionsFor(r.Reason),
	}
}

// ValidateAppDataMigrationOptions implements the
// validate_appdata_migration_options command: one report per item.
func (d *Dispatcher) ValidateAppDataMigrationOptions(items []types.AppDataItem, targetDrive string) []ValidationReport {
	reports := make([]ValidationReport, 0, len(items))
	for _, item := range items {
		target := targetDrive + string(os.PathSeparator) + item.Name
		reports = append(reports, d.ValidateMigrationPath(item.Path, target))
	}
	return reports
}

func suggestionsFor(reason string) []string {
	return []string{"choose a different target directory", "confirm the source path still exists"}
}

// GetAvailableDrives implements the get_available_drives command.
func (d *Dispatcher) GetAvailableDrives() []string {
	return diskspace.AvailableDrives()
}

// GetDiskInfo implements the get_disk_info command: a best-effort
// per-drive total, silently skipping any drive a query fails against.
func (d *Dispatcher) GetDiskInfo() []diskspace.Info {
	var infos []diskspace.Info
	for _, drive := range diskspace.AvailableDrives() {
		info, err := diskspace.Query(drive)
		if err != nil {
			continue
		}
		infos = append(infos, info)
	}
	return infos
}

// PathExists implements the path_exists command.
func (d *Dispatcher) PathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// FormatSize implements the format_size command.
func (d *Dispatcher) FormatSize(bytes int64) string {
	return humanize.IBytes(uint64(bytes))
}

// GetOperationLogs implements the get_operation_logs command.
func (d *Dispatcher) GetOperationLogs(n int) ([]types.OperationRecord, error) {
	if d.journal == nil {
		return nil, fmt.Errorf("journal is not configured")
	}
	return d.journal.Recent(n)
}

// GetOperationStatistics implements the get_operation_statistics command.
func (d *Dispatcher) GetOperationStatistics() (types.JournalStats, error) {
	if d.journal == nil {
		return types.JournalStats{}, fmt.Errorf("journal is not configured")
	}
	return d.journal.Stats()
}

// ExportOperationLogs implements the export_operation_logs command.
func (d *Dispatcher) ExportOperationLogs(path string) error {
	if d.journal == nil {
		return fmt.Errorf("journal is not configured")
	}
	return d.journal.ExportCSV(path)
}

// CleanupOldOperationLogs implements the cleanup_old_operation_logs
// command.
func (d *Dispatcher) CleanupOldOperationLogs(days int) (int, error) {
	if d.journal == nil {
		return 0, fmt.Errorf("journal is not configured")
	}
	return d.journal.Prune(days)
}

// GetRecoveryStatistics implements the get_recovery_statistics command.
func (d *Dispatcher) GetRecoveryStatistics() (RecoveryStats, error) {
	if d.backups == nil {
		return RecoveryStats{}, fmt.Errorf("backup registry is not configured")
	}
	records := d.backups.Records()
	stats := RecoveryStats{RetentionHours: d.cfg.BackupRetentionHrs}
	for _, r := range records {
		if r.Active {
			stats.ActiveBackups++
			stats.TotalBackupBytes += r.SizeBytes
		}
	}
	return stats, nil
}

// CleanupExpiredBackups implements the cleanup_expired_backups command.
func (d *Dispatcher) CleanupExpiredBackups() (int, error) {
	if d.backups == nil {
		return 0, fmt.Errorf("backup registry is not configured")
	}
	return d.backups.Sweep()
}

// GetPerformanceStatistics implements the get_performance_statistics
// command.
func (d *Dispatcher) GetPerformanceStatistics() (types.PerformanceStats, error) {
	if d.optimizer == nil {
		return types.PerformanceStats{}, fmt.Errorf("performance optimizer is not configured")
	}
	return d.optimizer.Stats(), nil
}

// ClearDirectoryCache implements the clear_directory_cache command,
// returning the number of entries removed.
func (d *Dispatcher) ClearDirectoryCache() (int, error) {
	if d.optimizer == nil {
		return 0, fmt.Errorf("performance optimizer is not configured")
	}
	removed := d.optimizer.Cache.Len()
	d.optimizer.Cache.Clear()
	return removed, nil
}

func (d *Dispatcher) cacheOrNil() *perf.DirectoryCache {
	if d.optimizer == nil {
		return nil
	}
	return d.optimizer.Cache
}

func (d *Dispatcher) gateOrNil() *perf.Gate {
	if d.optimizer == nil {
		return nil
	}
	return d.optimizer.Gate
}
