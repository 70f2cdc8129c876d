// Package logging provides the process-wide Logger used by every
// subsystem.
//
// The facade (Debug/Info/Warn/Error/Success/Count/Fatal and their *f
// variants): one shared instance, goroutine-safe, with a level-enable map
// loaded from logging.json. Underneath, lines are written
// through zap's core instead of hand-rolled file appends, so log files are
// structured (JSON) while the console stays a colorized single-line format
// operators actually want to read during a migration run.
package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogSettings controls where logs go.
//
// Modes:
//   - NoLogs=true  => console-only. No log files are created.
//   - NoLogs=false => write logs to files under LogDir, in addition to the
//     console.
type LogSettings struct {
	NoLogs bool
	LogDir string
}

// Logger is a lightweight, goroutine-safe logger intended for:
//   - a single shared instance across the entire app
//   - safe concurrent writes from multiple goroutines (scanner workers,
//     the migration pipeline, the journal)
//
// Thread safety model: the zap core it wraps already serializes writes to
// its sinks; mu additionally guards the COUNT/ERROR side-file fan-out so two
// goroutines never interleave a record's duplicate writes.
type Logger struct {
	ConfigDir string

	settings LogSettings
	levels   map[string]bool
	base     *zap.Logger
	logPath  string

	mu sync.Mutex
}

// New initializes a Logger.
//
// Reads configDir/logging.json (if present) to determine enabled log
// levels, falling back to sensible defaults; if
// file logging is enabled, creates LogDir eagerly so permission problems on
// a scheduled/unattended run surface immediately rather than mid-migration.
func New(configDir string, settings LogSettings) (*Logger, error) {
	levels, err := loadLevels(configDir)
	if err != nil {
		return nil, err
	}

	var logPath string
	if !settings.NoLogs {
		if settings.LogDir == "" {
			return nil, fmt.Errorf("log dir is empty (settings.LogDir)")
		}
		if err := os.MkdirAll(settings.LogDir, os.ModePerm); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		logPath = filepath.Join(settings.LogDir, fmt.Sprintf("dir-mover-%s.log", time.Now().Format("2006-01-02_15-04-05")))
		if err := pruneOldLogs(settings.LogDir, 5); err != nil {
			return nil, fmt.Errorf("prune old logs: %w", err)
		}
	}

	base, err := buildZapLogger(settings, logPath)
	if err != nil {
		return nil, fmt.Errorf("build zap core: %w", err)
	}

	return &Logger{
		ConfigDir: configDir,
		settings:  settings,
		levels:    levels,
		base:      base,
		logPath:   logPath,
	}, nil
}

// buildZapLogger assembles a zap.Logger with a single JSON file core when
// file logging is enabled (a no-op logger otherwise). Console output does
// not go through zap: Log() prints the colorized line itself, so the same
// line a file gets structured is also readable at a terminal.
func buildZapLogger(settings LogSettings, logPath string) (*zap.Logger, error) {
	if settings.NoLogs {
		return zap.NewNop(), nil
	}

	f, err := os.OpenFile(logPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	fileEncoderCfg := zap.NewProductionEncoderConfig()
	fileEncoderCfg.TimeKey = "ts"
	fileEncoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(fileEncoderCfg),
		zapcore.AddSync(f),
		zapcore.DebugLevel,
	)

	return zap.New(fileCore), nil
}

// loadLevels loads log-level enable/disable configuration from
// logging.json, defaulting to everything on except DEBUG (to avoid noisy
// unattended runs).
func loadLevels(configDir string) (map[string]bool, error) {
	path := filepath.Join(configDir, "logging.json")

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return map[string]bool{
				"DEBUG":   false,
				"COUNT":   true,
				"INFO":    true,
				"WARN":    true,
				"ERROR":   true,
				"SUCCESS": true,
				"FATAL":   true,
			}, nil
		}
		return nil, fmt.Errorf("stat logging config: %w", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read logging config: %w", err)
	}

	var levels map[string]bool
	if err := json.Unmarshal(b, &levels); err != nil {
		return nil, fmt.Errorf("parse logging config: %w", err)
	}
	return levels, nil
}

// pruneOldLogs trims dir to the `keep`-1 most recent dir-mover-*.log files,
// so that with the file New is about to create at most `keep` remain,
// matching the command boundary's documented retention (§6: "oldest
// files pruned to keep <= 5").
func pruneOldLogs(dir string, keep int) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), "dir-mover-") && strings.HasSuffix(e.Name(), ".log") {
			names = append(names, e.Name())
		}
	}
	if len(names) < keep {
		return nil
	}
	sort.Strings(names) // timestamped names sort chronologically
	for _, name := range names[:len(names)-keep+1] {
		_ = os.Remove(filepath.Join(dir, name))
	}
	return nil
}

// Enabled returns whether a log level is enabled.
//
// Policy (fail-open): a level absent from logging.json is enabled, so a new
// level added to the code is never silently dropped until the config is
// updated.
func (l *Logger) Enabled(level string) bool {
	level = strings.ToUpper(strings.TrimSpace(level))
	enabled, ok := l.levels[level]
	if ok && !enabled {
		return false
	}
	return true
}

// colorFor picks a terminal color for a level; levels with no special
// treatment render uncolored.
func colorFor(level string) *color.Color {
	switch level {
	case "WARN":
		return color.New(color.FgYellow)
	case "ERROR", "FATAL":
		return color.New(color.FgRed)
	case "SUCCESS":
		return color.New(color.FgGreen)
	default:
		return nil
	}
}

// Log writes a single colorized line to the console and, unless NoLogs is
// set, a structured record to the zap file core. For COUNT and ERROR levels
// it also mirrors the line to a dedicated side file (count_*.log /
// errors_*.log fan-out) so failures stay easy to scan without grepping
// the full structured log.
func (l *Logger) Log(level, msg string) {
	level = strings.ToUpper(strings.TrimSpace(level))
	if !l.Enabled(level) {
		return
	}

	now := time.Now()
	stamp := now.Format("01/02/06 15:04:05")
	line := fmt.Sprintf("[%s] [%s] -> %s", stamp, level, msg)

	if c := colorFor(level); c != nil {
		c.Println(line)
	} else {
		fmt.Println(line)
	}

	if l.settings.NoLogs {
		return
	}

	l.base.Info(msg, zap.String("level", level), zap.String("stamp", stamp))

	l.mu.Lock()
	defer l.mu.Unlock()

	switch level {
	case "COUNT":
		l.appendSideFile("count", line)
	case "ERROR":
		l.appendSideFile("errors", line)
	}
}

// appendSideFile appends line to <LogDir>/<prefix>_<date>.log, creating it
// if needed. Failures are reported to stderr only: the structured zap file
// already has the record, so a side-file failure is not fatal.
func (l *Logger) appendSideFile(prefix, line string) {
	date := time.Now().Format("2006-01-02")
	path := filepath.Join(l.settings.LogDir, fmt.Sprintf("%s_%s.log", prefix, date))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		fmt.Printf("Error writing to %s log file: %v\n", prefix, err)
		return
	}
	defer f.Close()
	if _, err := f.WriteString(line + "\n"); err != nil {
		fmt.Printf("Error writing to %s log file: %v\n", prefix, err)
	}
}

// Convenience methods avoid passing level strings everywhere.
func (l *Logger) Debug(msg string)   { l.Log("DEBUG", msg) }
func (l *Logger) Info(msg string)    { l.Log("INFO", msg) }
func (l *Logger) Warn(msg string)    { l.Log("WARN", msg) }
func (l *Logger) Error(msg string)   { l.Log("ERROR", msg) }
func (l *Logger) Success(msg string) { l.Log("SUCCESS", msg) }
func (l *Logger) Count(msg string)   { l.Log("COUNT", msg) }

// Fatal logs the message and exits the process with code 1.
//
// os.Exit(1) terminates immediately (defers do NOT run); use only for
// unrecoverable states where continuing could cause data loss.
func (l *Logger) Fatal(msg string) {
	l.Log("FATAL", msg)
	_ = l.base.Sync()
	os.Exit(1)
}

func (l *Logger) Debugf(format string, args ...any)   { l.Debug(fmt.Sprintf(format, args...)) }
func (l *Logger) Infof(format string, args ...any)    { l.Info(fmt.Sprintf(format, args...)) }
func (l *Logger) Warnf(format string, args ...any)    { l.Warn(fmt.Sprintf(format, args...)) }
func (l *Logger) Errorf(format string, args ...any)   { l.Error(fmt.Sprintf(format, args...)) }
func (l *Logger) Successf(format string, args ...any) { l.Success(fmt.Sprintf(format, args...)) }
func (l *Logger) Countf(format string, args ...any)   { l.Count(fmt.Sprintf(format, args...)) }
func (l *Logger) Fatalf(format string, args ...any)   { l.Fatal(fmt.Sprintf(format, args...)) }

// Sync flushes the underlying zap core. Callers should defer this after New
// succeeds.
func (l *Logger) Sync() error {
	return l.base.Sync()
}
