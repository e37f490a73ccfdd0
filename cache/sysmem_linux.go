package cache

import (
	"os"

	"golang.org/x/sys/unix"
)

var cgroupLimitFiles = []string{
	"/sys/fs/cgroup/memory.max",
	"/sys/fs/cgroup/memory/memory.limit_in_bytes",
}

// The smaller of the container's limit and physical memory, 0 if neither is
// known.
func systemMemory() uint64 {
	var total uint64
	info := unix.Sysinfo_t{}
	if err := unix.Sysinfo(&info); err == nil {
		total = uint64(info.Totalram) * uint64(info.Unit)
	}

	for _, f := range cgroupLimitFiles {
		b, err := os.ReadFile(f)
		if err != nil {
			continue
		}
		if l := parseCgroupLimit(string(b)); l != 0 && (total == 0 || l < total) {
			total = l
		}
		break
	}
	return total
}
