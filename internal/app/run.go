// Package app is the composition root: it wires config, logging, and every
// subsystem (C1-C11) into one Dispatcher and exposes the entry point
// cmd/dirmoverd calls.
package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"dirmover/internal/appdata"
	"dirmover/internal/backup"
	"dirmover/internal/commands"
	"dirmover/internal/config"
	"dirmover/internal/journal"
	"dirmover/internal/logging"
	"dirmover/internal/migration"
	"dirmover/internal/perf"
	"dirmover/internal/progress"
	"dirmover/internal/recovery"
	"dirmover/internal/setup"
	"dirmover/internal/types"
	"dirmover/internal/utils"
)

// Build resolves configDir (falling back to the executable's own directory
// when unset), provisions config.ini on first run, loads the layered
// configuration, and wires every subsystem into a Dispatcher.
//
// Fails early rather than doing partial work with unclear outcomes: a
// scheduled or unattended run should surface a missing/unwritable config
// directory immediately, not mid-migration.
func Build(configDir string) (*commands.Dispatcher, *logging.Logger, types.AppConfig, error) {
	if configDir == "" {
		exeDir, err := utils.ExeDir()
		if err != nil {
			return nil, nil, types.AppConfig{}, fmt.Errorf("resolve default config directory: %w", err)
		}
		configDir = setup.GetDefaultConfigDir(exeDir)
	}

	if err := setup.EnsureConfig(configDir); err != nil {
		return nil, nil, types.AppConfig{}, fmt.Errorf("provision config.ini: %w", err)
	}

	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, nil, types.AppConfig{}, fmt.Errorf("load config: %w", err)
	}
	cfg = config.WithIdentity(cfg)
	if cfg.LogDir == "" {
		cfg.LogDir = filepath.Join(configDir, "logs")
	}

	log, err := logging.New(configDir, logging.LogSettings{NoLogs: cfg.NoLogs, LogDir: cfg.LogDir})
	if err != nil {
		return nil, nil, types.AppConfig{}, fmt.Errorf("init logger: %w", err)
	}

	root := backupRoot()
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, nil, types.AppConfig{}, fmt.Errorf("create backup directory: %w", err)
	}
	backups := backup.New(root, cfg.MaxRollbackSizeMB, cfg.BackupRetentionHrs, log)

	// Safety check: confirm the backup root is reachable (especially on
	// network shares) before wiring a recovery engine around it. A backup
	// destination that can't be written to makes auto-recovery useless and
	// should be surfaced immediately rather than discovered mid-migration.
	if !backup.CheckPath(root) {
		msg := fmt.Sprintf("backup path is not accessible: %s", root)
		utils.ShowPopup("Backup Location Error", msg)
		return nil, nil, types.AppConfig{}, fmt.Errorf("%s", msg)
	}

	recoveryEngine := recovery.NewEngine(backups, cfg, log)

	j, err := journal.New(cfg.JournalDir)
	if err != nil {
		return nil, nil, types.AppConfig{}, fmt.Errorf("init journal: %w", err)
	}

	optimizer, err := perf.New(cfg)
	if err != nil {
		return nil, nil, types.AppConfig{}, fmt.Errorf("init performance optimizer: %w", err)
	}

	reporter := progress.New(time.Now())
	appdataSc := appdata.New(log, optimizer.Gate)
	pipeline := migration.New(cfg, log, j, backups, recoveryEngine, optimizer.Gate, reporter)

	dispatcher := commands.New(cfg, log, reporter, optimizer, appdataSc, pipeline, backups, j)
	return dispatcher, log, cfg, nil
}

// Maintain runs the periodic housekeeping a long-lived process performs
// between migrations: pruning operation logs older than cfg.JournalKeepDays
// and sweeping expired backups. Safe to call on an interval or once at
// shutdown.
func Maintain(d *commands.Dispatcher, cfg types.AppConfig) error {
	if _, err := d.CleanupOldOperationLogs(cfg.JournalKeepDays); err != nil {
		return fmt.Errorf("prune operation logs: %w", err)
	}
	if _, err := d.CleanupExpiredBackups(); err != nil {
		return fmt.Errorf("sweep expired backups: %w", err)
	}
	return nil
}

// backupRoot is the process-temp directory backups are copied under,
// matching the documented backup tree layout rather than config_dir —
// backups are ephemeral rollback aids, not part of the durable config
// footprint.
func backupRoot() string {
	return filepath.Join(os.TempDir(), "dir_mover_backups")
}
