//go:build windows

package diskspace

import (
	"os"

	"golang.org/x/sys/windows"
)

// AvailableDrives enumerates A:\ through Z:\ and returns the ones that
// exist, grounded on xBen-Harveyx-GoSize's detectWindowsDrives.
func AvailableDrives() []string {
	var roots []string
	for c := 'A'; c <= 'Z'; c++ {
		root := string([]rune{c, ':'}) + `\`
		if _, err := os.Stat(root); err == nil {
			roots = append(roots, root)
		}
	}
	return roots
}

// freeBytes calls GetDiskFreeSpaceEx, the same API xBen-Harveyx-GoSize's
// driveSpaceCache uses for its DRIVE% column, here used for the pipeline's
// free-space pre-check instead of a display percentage.
func freeBytes(path string) (total, free uint64, err error) {
	var freeAvailToCaller, totalBytes, totalFree uint64
	ptr, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, 0, err
	}
	if err := windows.GetDiskFreeSpaceEx(ptr, &freeAvailToCaller, &totalBytes, &totalFree); err != nil {
		return 0, 0, err
	}
	return totalBytes, freeAvailToCaller, nil
}
