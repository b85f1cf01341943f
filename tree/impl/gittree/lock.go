package gittree

import (
	"sync"
	"time"

	. "github.com/warpfork/go-errcat"

	"github.com/polydawn/shelf/api"
	"github.com/polydawn/shelf/lib/log"
	"github.com/polydawn/shelf/tree"
)

// How often a lock with a timeout is retried.
var lockPollInterval = 5 * time.Millisecond

/*
	An OS-level advisory lock on a file, shared with other processes.
*/
type fileLocker interface {
	// Returns false (and no error) if block is false and the lock is busy.
	lock(mode tree.LockMode, block bool) (bool, error)
	unlock() error
	close() error
}

/*
	The whole-tree lock.

	A RWMutex orders goroutines sharing this handle; the file lock (absent for
	in-memory trees) orders everyone else.  The OS sees one shared lock for
	all of our concurrent readers: the first reader in takes it, the last
	reader out drops it.
*/
type treeLock struct {
	mu      sync.RWMutex
	readMu  sync.Mutex // guards readers and file lock transitions for readers
	readers int
	file    fileLocker
	timeout time.Duration
	mon     api.Monitor
}

func newTreeLock(file fileLocker, timeout time.Duration, mon api.Monitor) *treeLock {
	return &treeLock{
		file:    file,
		timeout: timeout,
		mon:     mon,
	}
}

func (l *treeLock) acquire(mode tree.LockMode) (func(), error) {
	var deadline time.Time
	if l.timeout > 0 {
		deadline = time.Now().Add(l.timeout)
	}
	switch mode {
	case tree.LockRead:
		if !waitFor(l.mu.RLock, l.mu.TryRLock, deadline) {
			return nil, l.timedOut(mode)
		}
		if err := l.shareFile(deadline); err != nil {
			l.mu.RUnlock()
			return nil, err
		}
		return once(l.releaseRead), nil
	case tree.LockWrite:
		if !waitFor(l.mu.Lock, l.mu.TryLock, deadline) {
			return nil, l.timedOut(mode)
		}
		if l.file != nil {
			if err := l.lockFile(mode, deadline); err != nil {
				l.mu.Unlock()
				return nil, err
			}
		}
		return once(l.releaseWrite), nil
	default:
		return nil, Errorf(api.ErrStoreFailure, "invalid lock mode %d", mode)
	}
}

func (l *treeLock) shareFile(deadline time.Time) error {
	if l.file == nil {
		return nil
	}
	l.readMu.Lock()
	defer l.readMu.Unlock()
	if l.readers == 0 {
		if err := l.lockFile(tree.LockRead, deadline); err != nil {
			return err
		}
	}
	l.readers++
	return nil
}

func (l *treeLock) lockFile(mode tree.LockMode, deadline time.Time) error {
	if deadline.IsZero() {
		if _, err := l.file.lock(mode, true); err != nil {
			return Errorf(api.ErrStoreFailure, "failed to acquire %s lock: %s", mode, err)
		}
		return nil
	}
	for {
		ok, err := l.file.lock(mode, false)
		if err != nil {
			return Errorf(api.ErrStoreFailure, "failed to acquire %s lock: %s", mode, err)
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return l.timedOut(mode)
		}
		time.Sleep(lockPollInterval)
	}
}

func (l *treeLock) releaseRead() {
	if l.file != nil {
		l.readMu.Lock()
		l.readers--
		if l.readers == 0 {
			l.file.unlock()
		}
		l.readMu.Unlock()
	}
	l.mu.RUnlock()
}

func (l *treeLock) releaseWrite() {
	if l.file != nil {
		l.file.unlock()
	}
	l.mu.Unlock()
}

func (l *treeLock) timedOut(mode tree.LockMode) error {
	log.LockTimedOut(l.mon, mode.String(), l.timeout)
	return Errorf(api.ErrLockTimeout, "gave up acquiring %s lock after %s", mode, l.timeout)
}

func (l *treeLock) close() error {
	if l.file == nil {
		return nil
	}
	return l.file.close()
}

/*
	Block on the mutex, or, given a deadline, poll it until the deadline passes.
*/
func waitFor(block func(), try func() bool, deadline time.Time) bool {
	if deadline.IsZero() {
		block()
		return true
	}
	for {
		if try() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(lockPollInterval)
	}
}

func once(fn func()) func() {
	var o sync.Once
	return func() { o.Do(fn) }
}
