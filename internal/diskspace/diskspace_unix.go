//go:build !windows

package diskspace

import "golang.org/x/sys/unix"

// AvailableDrives has no drive-letter concept on POSIX; it reports the
// single root volume so the command surface stays cross-platform when
// developing or testing this Windows-first tool on a POSIX host.
func AvailableDrives() []string {
	return []string{"/"}
}

// freeBytes uses statvfs (via golang.org/x/sys/unix.Statfs, the portable
// equivalent) so the same oracle contract holds when developing or testing
// this Windows-first tool on a POSIX host.
func freeBytes(path string) (total, free uint64, err error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, 0, err
	}
	total = stat.Blocks * uint64(stat.Bsize)
	free = stat.Bavail * uint64(stat.Bsize)
	return total, free, nil
}
