//go:build !linux

package cache

// Unknown, the memory strategy only evicts once a Go memory limit is set.
func systemMemory() uint64 {
	return 0
}
