//go:build !linux && !darwin && !freebsd
// +build !linux,!darwin,!freebsd

package gittree

// No advisory file locks here; the in-process lock is all there is.
func openFileLock(path string) (fileLocker, error) {
	return nil, nil
}
