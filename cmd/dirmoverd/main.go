// Command dirmoverd is the CLI entry point: it builds the Dispatcher via
// app.Build and exposes one subcommand per command-surface operation.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"dirmover/internal/app"
	"dirmover/internal/appdata"
	"dirmover/internal/commands"
	"dirmover/internal/types"
)

var configDir string

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "dirmoverd",
		Short:         "Scan, validate, and migrate large directories off a full drive",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&configDir, "config-dir", "", "config directory (defaults next to the binary)")

	root.AddCommand(
		newScanCmd(),
		newAppDataCmd(),
		newMigrateCmd(),
		newValidateCmd(),
		newDrivesCmd(),
		newDiskInfoCmd(),
		newLogsCmd(),
		newStatsCmd(),
		newRecoveryCmd(),
		newCacheCmd(),
		newMaintainCmd(),
	)
	return root
}

func build() (*commands.Dispatcher, error) {
	d, _, _, err := app.Build(configDir)
	if err != nil {
		return nil, fmt.Errorf("build dispatcher: %w", err)
	}
	return d, nil
}

func buildWithConfig() (*commands.Dispatcher, types.AppConfig, error) {
	d, _, cfg, err := app.Build(configDir)
	if err != nil {
		return nil, types.AppConfig{}, fmt.Errorf("build dispatcher: %w", err)
	}
	return d, cfg, nil
}

func newScanCmd() *cobra.Command {
	var systemDriveMode bool
	cmd := &cobra.Command{
		Use:   "scan <path>",
		Short: "Scan a directory and report its size breakdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := build()
			if err != nil {
				return err
			}
			node, err := d.ScanDirectory(context.Background(), args[0], systemDriveMode)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %s (%d bytes)\n", node.Path, d.FormatSize(node.Size), node.Size)
			return nil
		},
	}
	cmd.Flags().BoolVar(&systemDriveMode, "system-drive", false, "apply system-drive scan rules")
	return cmd
}

func newAppDataCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "appdata",
		Short: "Scan the current user's AppData tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := build()
			if err != nil {
				return err
			}
			report, err := d.ScanAppData(context.Background(), appdata.Options{})
			if err != nil {
				return err
			}
			for _, item := range report.LargeItems {
				fmt.Printf("%s\t%s\t%s\n", item.Bucket, item.Name, d.FormatSize(item.Size))
			}
			return nil
		},
	}
	return cmd
}

func newMigrateCmd() *cobra.Command {
	var createSymlink, deleteSource bool
	cmd := &cobra.Command{
		Use:   "migrate <source> <target>",
		Short: "Migrate a directory to a new location",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := build()
			if err != nil {
				return err
			}
			result, err := d.MigrateDirectory(context.Background(), types.MigrationOptions{
				Source:        args[0],
				Target:        args[1],
				CreateSymlink: createSymlink,
				DeleteSource:  deleteSource,
			})
			if err != nil {
				return err
			}
			fmt.Println(result.Message)
			if !result.Success {
				return fmt.Errorf("migration failed")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&createSymlink, "symlink", false, "leave a symlink at the source pointing to the target")
	cmd.Flags().BoolVar(&deleteSource, "delete-source", false, "delete the source tree once the copy is verified")
	return cmd
}

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <source> <target>",
		Short: "Check whether a source/target pair is safe to migrate",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := build()
			if err != nil {
				return err
			}
			report := d.ValidateMigrationPath(args[0], args[1])
			if report.Valid {
				fmt.Println("ok")
				return nil
			}
			fmt.Println(report.Message)
			for _, s := range report.Suggestions {
				fmt.Println("  -", s)
			}
			return fmt.Errorf("invalid path pair")
		},
	}
	return cmd
}

func newDrivesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drives",
		Short: "List available drives",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := build()
			if err != nil {
				return err
			}
			for _, drive := range d.GetAvailableDrives() {
				fmt.Println(drive)
			}
			return nil
		},
	}
}

func newDiskInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diskinfo",
		Short: "Report free/total space per drive",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := build()
			if err != nil {
				return err
			}
			for _, info := range d.GetDiskInfo() {
				fmt.Printf("%s\t%s free of %s\n", info.Path, d.FormatSize(int64(info.FreeBytes)), d.FormatSize(int64(info.TotalBytes)))
			}
			return nil
		},
	}
}

func newLogsCmd() *cobra.Command {
	var n int
	var exportPath string
	var pruneDays int
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Inspect or export the operation journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := build()
			if err != nil {
				return err
			}
			if exportPath != "" {
				return d.ExportOperationLogs(exportPath)
			}
			if pruneDays > 0 {
				removed, err := d.CleanupOldOperationLogs(pruneDays)
				if err != nil {
					return err
				}
				fmt.Printf("pruned %d records\n", removed)
				return nil
			}
			records, err := d.GetOperationLogs(n)
			if err != nil {
				return err
			}
			for _, r := range records {
				fmt.Printf("%s\t%s\t%s\t%s\n", r.ID, r.Type, r.Status, r.Source)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of recent records to show")
	cmd.Flags().StringVar(&exportPath, "export", "", "export the full journal to this CSV path")
	cmd.Flags().IntVar(&pruneDays, "prune-older-than", 0, "prune records older than this many days")
	return cmd
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show operation journal statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := build()
			if err != nil {
				return err
			}
			stats, err := d.GetOperationStatistics()
			if err != nil {
				return err
			}
			fmt.Printf("total=%d completed=%d failed=%d bytes_moved=%s\n",
				stats.Total, stats.Completed, stats.Failed, d.FormatSize(stats.BytesTransferred))
			return nil
		},
	}
}

func newRecoveryCmd() *cobra.Command {
	var sweep bool
	cmd := &cobra.Command{
		Use:   "recovery",
		Short: "Show backup/recovery statistics, or sweep expired backups",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := build()
			if err != nil {
				return err
			}
			if sweep {
				removed, err := d.CleanupExpiredBackups()
				if err != nil {
					return err
				}
				fmt.Printf("removed %d expired backups\n", removed)
				return nil
			}
			stats, err := d.GetRecoveryStatistics()
			if err != nil {
				return err
			}
			fmt.Printf("active backups=%d total=%s retention=%dh\n",
				stats.ActiveBackups, d.FormatSize(stats.TotalBackupBytes), stats.RetentionHours)
			return nil
		},
	}
	cmd.Flags().BoolVar(&sweep, "sweep", false, "remove expired backups instead of reporting statistics")
	return cmd
}

func newCacheCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cache-clear",
		Short: "Clear the directory-size cache and print performance statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := build()
			if err != nil {
				return err
			}
			removed, err := d.ClearDirectoryCache()
			if err != nil {
				return err
			}
			fmt.Printf("cleared %d cache entries\n", removed)
			stats, err := d.GetPerformanceStatistics()
			if err != nil {
				return err
			}
			fmt.Printf("memory=%.0fMB concurrent_ops=%d\n", stats.MemoryUsageMB, stats.ActiveOperations)
			return nil
		},
	}
}

func newMaintainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "maintain",
		Short: "Run periodic housekeeping (prune old journal records, sweep expired backups)",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, cfg, err := buildWithConfig()
			if err != nil {
				return err
			}
			if err := app.Maintain(d, cfg); err != nil {
				return err
			}
			fmt.Println("maintenance complete")
			return nil
		},
	}
}
