// Package setup provisions configDir/config.ini on first run.
//
// This replaces the original interactive PowerShell GUI wizard: a
// headless directory-migration tool should default-write a commented
// config.ini and let the operator edit it, not block startup on a GUI
// window. See DESIGN.md for the full justification.
package setup

import (
	"fmt"
	"os"
	"path/filepath"

	"dirmover/internal/config"
)

// ConfigExists reports whether config.ini already exists in configDir.
func ConfigExists(configDir string) bool {
	_, err := os.Stat(GetConfigPath(configDir))
	return err == nil
}

// EnsureConfig makes sure configDir/config.ini exists, writing the
// commented default file when it's missing. It never overwrites an
// existing file and never prompts.
func EnsureConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return config.WriteDefault(configDir)
}

// GetConfigPath returns the full path to config.ini.
func GetConfigPath(configDir string) string {
	return filepath.Join(configDir, "config.ini")
}

// GetDefaultConfigDir returns the default config directory alongside the
// running executable.
func GetDefaultConfigDir(exeDir string) string {
	return filepath.Join(exeDir, "config")
}
