// Package diskspace answers "how much free space is on the drive holding
// this path" with a real platform query, rather than falling back to
// hardcoded per-drive guesses.
//
// The unexported freeBytes is platform-split (diskspace_windows.go,
// diskspace_unix.go) behind Query and HasHeadroom, so callers (the
// migration pipeline's PreCheck, the get_disk_info command) never branch
// on runtime.GOOS themselves.
package diskspace

// Info is the free/total byte pair for the volume holding a path.
type Info struct {
	Path       string
	TotalBytes uint64
	FreeBytes  uint64
}

// Query returns free/total space for the drive holding path.
func Query(path string) (Info, error) {
	total, free, err := freeBytes(path)
	if err != nil {
		return Info{}, err
	}
	return Info{Path: path, TotalBytes: total, FreeBytes: free}, nil
}

// HasHeadroom reports whether the drive holding path has at least
// requiredBytes plus the given headroom fraction (e.g. 0.20 for the
// pipeline's 20% rule) free.
func HasHeadroom(path string, requiredBytes int64, headroomFraction float64) (bool, Info, error) {
	info, err := Query(path)
	if err != nil {
		return false, Info{}, err
	}
	needed := float64(requiredBytes) * (1 + headroomFraction)
	return float64(info.FreeBytes) >= needed, info, nil
}
