package tree

import (
	"github.com/polydawn/shelf/api"
)

/*
	A versioned tree is a directory of tracked files with a commit history.

	The tree is the one piece of shared mutable state under a shelf:
	callers must hold a lock from `Lock` around every other method call,
	`LockRead` for Has/Read/Entries and `LockWrite` for everything that
	mutates the working state or the history.
	Implementations do not lock on their own behalf.

	Errors from tree implementations are of category:

	  - `api.ErrStoreNotFound` -- when opening a tree whose root dir is missing
	  - `api.ErrLockTimeout` -- if lock acquisition gave up
	  - `api.ErrStoreFailure` -- for any failure of the underlying storage
*/
type Tree interface {
	// Acquire the whole-tree lock.  The returned release func is safe to
	// call more than once; callers should defer it immediately.
	Lock(mode LockMode) (release func(), err error)

	// True if the entry is tracked (whether or not it has been committed yet).
	Has(id EntryID) (bool, error)

	// Working content of the entry.
	Read(id EntryID) ([]byte, error)

	// Replace the working content of the entry, creating it if necessary.
	// Writing does not change whether the entry is tracked.
	Write(id EntryID, content []byte) error

	// Register the entries as tracked content, all in one index update.
	Track(ids ...EntryID) error

	// Stop tracking the entries and delete their working files.
	// Removal is forced: a working file which is already gone, or which
	// was modified behind our back, is removed without complaint.
	Untrack(ids ...EntryID) error

	// All tracked entries, sorted.
	Entries() ([]EntryID, error)

	// Record a commit.  With nil ids, every outstanding change is committed;
	// otherwise only the current state of the named entries is, and all
	// other outstanding changes are left pending.
	Commit(message string, ids []EntryID) (api.CommitResult, error)

	// Commits reachable from the current head, newest first.
	History() ([]api.CommitResult, error)

	Close() error
}

// Identifier of an entry: its slash-separated path relative to the tree root.
type EntryID string

type LockMode uint8

const (
	LockRead LockMode = iota + 1
	LockWrite
)

func (m LockMode) String() string {
	switch m {
	case LockRead:
		return "read"
	case LockWrite:
		return "write"
	default:
		return "invalid"
	}
}
