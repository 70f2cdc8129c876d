// Package pathsafety implements the Path-Safety Oracle (C1): a pure
// classifier that decides whether a (source, target) path pair is safe to
// migrate, evaluating a fixed ordered rule list.
//
// Grounded on internal/maintenance/paths.go (the
// root-escape check generalizes directly into rule 4's "source is not a
// prefix of target") and on original_source/src-tauri/src/migration_service.rs
// and disk_analyzer.rs, which carry the exact reserved-name list and
// system-protection blocklist this package reproduces.
package pathsafety

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// reservedNames are Windows device names that are illegal path segments
// regardless of extension or case (ported from migration_service.rs).
var reservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// illegalChars are Windows-path-illegal characters other than the drive
// colon (ported from disk_analyzer.rs / migration_service.rs).
const illegalChars = "<>*?|"

// systemBlocklist is the case-insensitive path-prefix blocklist protecting
// well-known Windows system locations (rule 5).
var systemBlocklist = []string{
	`C:\Windows`,
	`C:\Program Files`,
	`C:\Program Files (x86)`,
	`C:\Users\Default`,
	`C:\Recovery`,
	`C:\System Volume Information`,
	`C:\$Recycle.Bin`,
}

// pagefileArtifacts are filenames the oracle refuses to touch regardless of
// directory (rule 6).
var pagefileArtifacts = []string{"pagefile.sys", "hiberfil.sys", "swapfile.sys"}

// Result is the outcome of Validate: Ok reports whether the pair is safe;
// Reason is a human-readable explanation, empty when Ok is true.
type Result struct {
	Ok     bool
	Reason string
}

func fail(reason string) Result { return Result{Ok: false, Reason: reason} }
func ok() Result                { return Result{Ok: true} }

// Validate runs the ordered rule list against source and target,
// returning the first failing rule's reason. Validate is pure
// aside from the filesystem probe rule 7 requires (listing a directory's
// immediate entries); it never mutates state.
func Validate(source, target string) Result {
	// Rule 1: non-empty, no traversal segments, no illegal characters
	// (colon allowed only as the Windows drive separator at position 1).
	if source == "" || target == "" {
		return fail("source and target paths must not be empty")
	}
	for _, p := range []string{source, target} {
		if hasTraversalSegment(p) {
			return fail("path must not contain '..' segments")
		}
		if hasIllegalChars(p) {
			return fail("path contains characters that are not valid on this platform")
		}
	}

	// Rule 2: reserved device names, case-insensitive, any segment.
	for _, p := range []string{source, target} {
		if seg, bad := firstReservedSegment(p); bad {
			return fail("path uses a reserved Windows device name: " + seg)
		}
	}

	// Rule 3: MAX_PATH compatibility.
	for _, p := range []string{source, target} {
		if len(p) > 260 {
			return fail("path exceeds the 260 character Windows MAX_PATH limit")
		}
	}

	// Rule 4: after canonicalization, source != target and source is not a
	// prefix of target (forbids migrating a tree into its own subtree).
	canonSource := canonicalize(source)
	canonTarget := canonicalize(target)
	if pathsEqual(canonSource, canonTarget) {
		return fail("source and target paths are identical")
	}
	if isPrefixOf(canonSource, canonTarget) {
		return fail("cannot migrate a directory into its own subdirectory")
	}

	// Rule 5: system-protection blocklist, case-insensitive prefix match.
	for _, p := range []string{canonSource, canonTarget} {
		if blocked, prefix := matchesBlocklist(p); blocked {
			return fail("path is under a protected system location: " + prefix)
		}
	}

	// Rule 6: pagefile-style artifacts.
	for _, p := range []string{source, target} {
		if isPagefileArtifact(p) {
			return fail("path refers to a reserved system paging file")
		}
	}

	// Rule 7: program-installation directory heuristic — a path beneath
	// Program Files* or Users\* whose immediate directory contains an
	// executable or library is rejected.
	for _, p := range []string{source, target} {
		if isProgramInstallDir(p) {
			return fail("path looks like a program installation directory (contains .exe/.dll)")
		}
	}

	return ok()
}

func hasTraversalSegment(p string) bool {
	for _, seg := range strings.FieldsFunc(p, func(r rune) bool { return r == '/' || r == '\\' }) {
		if seg == ".." {
			return true
		}
	}
	return false
}

func hasIllegalChars(p string) bool {
	for i, r := range p {
		if r == ':' {
			// Allowed only as the Windows drive separator at position 1
			// (e.g. "C:").
			if runtime.GOOS == "windows" && i == 1 {
				continue
			}
			return true
		}
		if strings.ContainsRune(illegalChars, r) {
			return true
		}
	}
	return false
}

func firstReservedSegment(p string) (string, bool) {
	for _, seg := range strings.FieldsFunc(p, func(r rune) bool { return r == '/' || r == '\\' }) {
		name := seg
		if idx := strings.IndexByte(name, '.'); idx >= 0 {
			name = name[:idx]
		}
		if reservedNames[strings.ToUpper(name)] {
			return seg, true
		}
	}
	return "", false
}

func canonicalize(p string) string {
	clean := filepath.Clean(p)
	if abs, err := filepath.Abs(clean); err == nil {
		return abs
	}
	return clean
}

func pathsEqual(a, b string) bool {
	if runtime.GOOS == "windows" {
		return strings.EqualFold(a, b)
	}
	return a == b
}

// isPrefixOf reports whether target is source or lies beneath it.
func isPrefixOf(source, target string) bool {
	rel, err := filepath.Rel(source, target)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func matchesBlocklist(p string) (bool, string) {
	for _, prefix := range systemBlocklist {
		if hasPathPrefixFold(p, prefix) {
			return true, prefix
		}
	}
	return false, ""
}

// hasPathPrefixFold is a case-insensitive path-prefix match: prefix must
// align on a path separator boundary, not just share a character run
// (so "C:\Windows2" does not match the "C:\Windows" blocklist entry).
func hasPathPrefixFold(p, prefix string) bool {
	p = strings.TrimRight(p, `\/`)
	prefix = strings.TrimRight(prefix, `\/`)
	if len(p) < len(prefix) {
		return false
	}
	if !strings.EqualFold(p[:len(prefix)], prefix) {
		return false
	}
	return len(p) == len(prefix) || p[len(prefix)] == '\\' || p[len(prefix)] == '/'
}

func isPagefileArtifact(p string) bool {
	base := filepath.Base(p)
	for _, name := range pagefileArtifacts {
		if strings.EqualFold(base, name) {
			return true
		}
	}
	return false
}

// isProgramInstallDir flags p when it lies beneath Program Files* or
// Users\* and its immediate directory contains a *.exe or *.dll — the only
// rule that probes the filesystem rather than being a pure string check.
func isProgramInstallDir(p string) bool {
	lower := strings.ToLower(p)
	underProgramFiles := strings.Contains(lower, `program files`)
	underUsers := strings.Contains(lower, `\users\`) || strings.HasPrefix(lower, `c:\users\`)
	if !underProgramFiles && !underUsers {
		return false
	}

	dir := p
	if info, err := os.Stat(p); err == nil && !info.IsDir() {
		dir = filepath.Dir(p)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".exe" || ext == ".dll" {
			return true
		}
	}
	return false
}
