package setup

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEnsureConfig_WritesDefaultOnFirstRun(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "config")

	if ConfigExists(dir) {
		t.Fatalf("did not expect config.ini to exist before EnsureConfig")
	}
	if err := EnsureConfig(dir); err != nil {
		t.Fatalf("EnsureConfig: %v", err)
	}
	if !ConfigExists(dir) {
		t.Fatalf("expected config.ini to exist after EnsureConfig")
	}
}

func TestEnsureConfig_NeverOverwritesExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := GetConfigPath(dir)
	if err := os.WriteFile(path, []byte("custom content"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := EnsureConfig(dir); err != nil {
		t.Fatalf("EnsureConfig: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "custom content" {
		t.Fatalf("expected EnsureConfig to leave existing config.ini untouched, got: %s", got)
	}
}

func TestGetDefaultConfigDir(t *testing.T) {
	if got, want := GetDefaultConfigDir("/opt/dirmover"), filepath.Join("/opt/dirmover", "config"); got != want {
		t.Fatalf("GetDefaultConfigDir = %s, want %s", got, want)
	}
}
