package app

import (
	"path/filepath"
	"testing"
)

func TestBuild_ProvisionsConfigAndWiresDispatcher(t *testing.T) {
	configDir := filepath.Join(t.TempDir(), "config")

	d, log, _, err := Build(configDir)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if d == nil {
		t.Fatalf("expected a non-nil Dispatcher")
	}
	if log == nil {
		t.Fatalf("expected a non-nil Logger")
	}

	if !d.PathExists(configDir) {
		t.Fatalf("expected EnsureConfig to have created %s", configDir)
	}
}

func TestBuild_IsIdempotentAcrossCalls(t *testing.T) {
	configDir := filepath.Join(t.TempDir(), "config")

	if _, _, _, err := Build(configDir); err != nil {
		t.Fatalf("first Build: %v", err)
	}
	if _, _, _, err := Build(configDir); err != nil {
		t.Fatalf("second Build: %v", err)
	}
}
