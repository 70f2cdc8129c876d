package pathsafety

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidate_Table(t *testing.T) {
	// Paths under root carry no drive colon, which rule 1 accepts only on
	// Windows, so the later rules are reached on every host.
	root := string(filepath.Separator)
	tests := []struct {
		name    string
		source  string
		target  string
		wantOk  bool
		wantSub string
	}{
		{
			name:   "ordinary pair is safe",
			source: filepath.Join(root, "Data", "bigfolder"),
			target: filepath.Join(root, "Moved", "bigfolder"),
			wantOk: true,
		},
		{
			name:    "empty source rejected",
			source:  "",
			target:  filepath.Join("D:", "x"),
			wantSub: "must not be empty",
		},
		{
			name: "traversal segment rejected",
			// Written out by hand: filepath.Join would clean the ".." away.
			source:  "/Data/../x",
			target:  filepath.Join(root, "x"),
			wantSub: "..",
		},
		{
			name:    "reserved device name rejected",
			source:  filepath.Join(root, "Data", "CON"),
			target:  filepath.Join(root, "x"),
			wantSub: "reserved Windows device name",
		},
		{
			name:    "identical paths rejected",
			source:  filepath.Join(root, "Data", "x"),
			target:  filepath.Join(root, "Data", "x"),
			wantSub: "identical",
		},
		{
			name:    "migrating into own subdirectory rejected",
			source:  filepath.Join(root, "Data", "x"),
			target:  filepath.Join(root, "Data", "x", "inside"),
			wantSub: "cannot migrate a directory into its own subdirectory",
		},
		{
			name:    "system blocklist rejected",
			source:  `C:\Windows\Fonts`,
			target:  filepath.Join(root, "x"),
			wantSub: "protected system location",
		},
		{
			name:   "lookalike blocklist sibling is not rejected",
			source: `C:\Windows2\Fonts`,
			target: filepath.Join(root, "x"),
			wantOk: true,
		},
		{
			name:    "pagefile artifact rejected",
			source:  filepath.Join(root, "pagefile.sys"),
			target:  filepath.Join(root, "x"),
			wantSub: "paging file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Validate(tt.source, tt.target)
			if got.Ok != tt.wantOk {
				t.Fatalf("Ok = %v (reason %q), want %v", got.Ok, got.Reason, tt.wantOk)
			}
			if tt.wantSub != "" && !contains(got.Reason, tt.wantSub) {
				t.Fatalf("reason %q does not contain %q", got.Reason, tt.wantSub)
			}
		})
	}
}

func TestValidate_Idempotent(t *testing.T) {
	// S5/property 5: validate(a,b) is a pure function of (a,b) and the
	// filesystem snapshot; repeated calls return identical results.
	source := filepath.Join("C:", "Data", "x")
	target := filepath.Join("D:", "y")

	first := Validate(source, target)
	for i := 0; i < 5; i++ {
		got := Validate(source, target)
		if got != first {
			t.Fatalf("call %d diverged: %+v != %+v", i, got, first)
		}
	}
}

func TestIsProgramInstallDir(t *testing.T) {
	dir := t.TempDir()
	progDir := filepath.Join(dir, "Program Files", "Thing")
	if err := os.MkdirAll(progDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(progDir, "thing.exe"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if !isProgramInstallDir(progDir) {
		t.Fatalf("expected %s to be flagged as a program install dir", progDir)
	}

	emptyDir := filepath.Join(dir, "Program Files", "Empty")
	if err := os.MkdirAll(emptyDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if isProgramInstallDir(emptyDir) {
		t.Fatalf("expected %s (no exe/dll) to not be flagged", emptyDir)
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && (substr == "" || indexOf(s, substr) >= 0)
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
