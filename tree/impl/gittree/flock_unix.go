//go:build linux || darwin || freebsd
// +build linux darwin freebsd

package gittree

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/polydawn/shelf/tree"
)

type flock struct {
	f *os.File
}

func openFileLock(path string) (fileLocker, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	return &flock{f}, nil
}

func (l *flock) lock(mode tree.LockMode, block bool) (bool, error) {
	how := unix.LOCK_SH
	if mode == tree.LockWrite {
		how = unix.LOCK_EX
	}
	if !block {
		how |= unix.LOCK_NB
	}
	for {
		err := unix.Flock(int(l.f.Fd()), how)
		switch err {
		case nil:
			return true, nil
		case unix.EINTR:
			continue
		case unix.EWOULDBLOCK:
			if !block {
				return false, nil
			}
		}
		return false, err
	}
}

func (l *flock) unlock() error {
	return unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
}

func (l *flock) close() error {
	return l.f.Close()
}
