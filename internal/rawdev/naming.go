package rawdev

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// DevicePath maps a zero-based drive index to the OS physical drive
// namespace.
func DevicePath(index int) string {
	return devicePathFor(runtime.GOOS, index)
}

func devicePathFor(goos string, index int) string {
	if goos == "windows" {
		return fmt.Sprintf(`\\.\PhysicalDrive%d`, index)
	}
	return "/dev/sd" + driveLetters(index)
}

// driveLetters renders an index the way the kernel names SCSI disks:
// 0 is "a", 25 is "z", 26 is "aa".
func driveLetters(index int) string {
	var b []byte
	for n := index; n >= 0; n = n/26 - 1 {
		b = append([]byte{byte('a' + n%26)}, b...)
	}
	return string(b)
}

// IndexFromName returns the drive index for a disk name such as "sdb",
// "/dev/sdaa" or `\\.\PHYSICALDRIVE2`. It returns false for names outside
// the physical drive namespace (nvme, loop, md, ...).
func IndexFromName(name string) (int, bool) {
	lower := strings.ToLower(name)

	if i := strings.Index(lower, "physicaldrive"); i >= 0 {
		n, err := strconv.Atoi(lower[i+len("physicaldrive"):])
		if err != nil || n < 0 {
			return 0, false
		}
		return n, true
	}

	base := filepath.Base(lower)
	if !strings.HasPrefix(base, "sd") || len(base) == 2 {
		return 0, false
	}
	v := 0
	for _, ch := range base[2:] {
		if ch < 'a' || ch > 'z' {
			return 0, false
		}
		v = v*26 + int(ch-'a'+1)
	}
	return v - 1, true
}
