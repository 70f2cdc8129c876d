// Package config reads dirmover's layered configuration: config.ini
// overrides the built-in defaults below. This replaces a hand-rolled INI
// parser with spf13/viper (gopkg.in/ini.v1 underneath, keeping the original
// INI format). No CLI flags or environment variables are bound into this
// chain; cmd/dirmoverd's only flag, --config-dir, picks which config.ini is
// read.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"dirmover/internal/types"
)

// defaults sets the documented default for every tunable.
func defaults(v *viper.Viper) {
	v.SetDefault("scan.max_depth", 3)
	v.SetDefault("scan.large_folder_threshold_bytes", int64(1)<<30) // 1 GiB
	v.SetDefault("scan.system_drive_mode", false)
	v.SetDefault("scan.appdata_max_depth", 2)
	v.SetDefault("scan.appdata_sort_descending", true)

	v.SetDefault("backup.max_rollback_size_mb", int64(1000))
	v.SetDefault("backup.retention_hours", 24)

	v.SetDefault("recovery.auto_recovery", true)
	v.SetDefault("recovery.partial_rollback", true)
	v.SetDefault("recovery.retry_delay_ms", 1000)

	v.SetDefault("journal.keep_days", 90)

	v.SetDefault("performance.max_concurrent_operations", 5)
	v.SetDefault("performance.directory_cache_size", 1000)
	v.SetDefault("performance.max_memory_usage_mb", 500)
}

// Load resolves AppConfig from configDir/config.ini layered over the
// defaults above. A missing config.ini is not an error: first-run behavior
// falls through to WriteDefault (see setup.EnsureConfig), so Load simply
// uses defaults when the file does not exist yet.
func Load(configDir string) (types.AppConfig, error) {
	v := viper.New()
	defaults(v)

	v.SetConfigName("config")
	v.SetConfigType("ini")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return types.AppConfig{}, fmt.Errorf("read config.ini: %w", err)
		}
	}

	journalDir := v.GetString("journal.dir")
	if journalDir == "" {
		journalDir = filepath.Join(configDir, "journal")
	}

	cfg := types.AppConfig{
		MaxDepth:              v.GetInt("scan.max_depth"),
		LargeFolderThreshold:  v.GetInt64("scan.large_folder_threshold_bytes"),
		SystemDriveMode:       v.GetBool("scan.system_drive_mode"),
		AppDataMaxDepth:       v.GetInt("scan.appdata_max_depth"),
		AppDataSortDescending: v.GetBool("scan.appdata_sort_descending"),

		MaxRollbackSizeMB:     v.GetInt64("backup.max_rollback_size_mb"),
		BackupRetentionHrs:    v.GetInt("backup.retention_hours"),
		EnableAutoRecovery:    v.GetBool("recovery.auto_recovery"),
		EnablePartialRollback: v.GetBool("recovery.partial_rollback"),
		RetryDelayMS:          v.GetInt("recovery.retry_delay_ms"),

		JournalDir:      journalDir,
		JournalKeepDays: v.GetInt("journal.keep_days"),

		ConfigDir: configDir,

		MaxConcurrentOperations: v.GetInt("performance.max_concurrent_operations"),
		DirectoryCacheSize:      v.GetInt("performance.directory_cache_size"),
		MaxMemoryUsageMB:        v.GetInt("performance.max_memory_usage_mb"),
	}

	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = 3
	}
	if cfg.MaxConcurrentOperations <= 0 {
		cfg.MaxConcurrentOperations = 1
	}

	return cfg, nil
}

// defaultConfigINI is written by setup.EnsureConfig on first run, so a
// fresh install gets a commented, editable file instead of silently running
// on baked-in defaults.
const defaultConfigINI = `; dirmover configuration. Values shown are the built-in defaults;
; uncomment and edit to override.

[scan]
;max_depth = 3
;large_folder_threshold_bytes = 1073741824
;system_drive_mode = false
;appdata_max_depth = 2
;appdata_sort_descending = true

[backup]
;max_rollback_size_mb = 1000
;retention_hours = 24

[recovery]
;auto_recovery = true
;partial_rollback = true
;retry_delay_ms = 1000

[journal]
;dir =
;keep_days = 90

[performance]
;max_concurrent_operations = 5
;directory_cache_size = 1000
;max_memory_usage_mb = 500
`

// WriteDefault creates configDir/config.ini with defaultConfigINI if it does
// not already exist. It never overwrites an existing file.
func WriteDefault(configDir string) error {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	path := filepath.Join(configDir, "config.ini")
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat config.ini: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigINI), 0o644)
}

// stampSessionID mints an identity pair (user, session id) for the
// OperationRecord fields every journal entry carries. Kept here rather than
// in the journal package so a dispatcher can stamp it once per process.
func stampSessionID() (user, sessionID string) {
	u := os.Getenv("USERNAME")
	if u == "" {
		u = os.Getenv("USER")
	}
	if u == "" {
		u = "unknown"
	}
	return u, time.Now().Format("20060102T150405")
}

// WithIdentity fills cfg.User/cfg.SessionID using the process environment.
func WithIdentity(cfg types.AppConfig) types.AppConfig {
	cfg.User, cfg.SessionID = stampSessionID()
	return cfg
}
