/*
	Package contentstore maps string keys onto entries of a versioned tree.

	Each key is stored as two tracked entries, named by the key's hash:

		<keyID>      -- the value bytes
		<keyID>.key  -- the key itself, so the set of keys can be listed

	The two are always added together and removed together.

	Every operation holds the tree's whole-tree lock for its duration:
	a shared lock for Get, Contains and ListKeys, and an exclusive lock
	for Set, Delete and Commit.  No lock is held between operations.
*/
package contentstore

import (
	"sort"
	"time"

	. "github.com/warpfork/go-errcat"

	"github.com/polydawn/shelf/api"
	"github.com/polydawn/shelf/config"
	"github.com/polydawn/shelf/lib/log"
	"github.com/polydawn/shelf/tree"
	"github.com/polydawn/shelf/tree/impl/gittree"
)

type Config struct {
	// How long to wait for the tree lock.  Zero waits forever.
	LockTimeout time.Duration
	// Identity commits are signed with.  Zero value means config.GetAuthor().
	Author config.Author
	// Optional; receives log events.
	Monitor api.Monitor
}

/*
	Load the Config an operator has set up in the environment.
*/
func ConfigFromEnv() (Config, error) {
	timeout, err := config.GetLockTimeout()
	if err != nil {
		return Config{}, err
	}
	return Config{
		LockTimeout: timeout,
		Author:      config.GetAuthor(),
	}, nil
}

type Store struct {
	tree tree.Tree
	mon  api.Monitor
}

/*
	Open the store rooted at the directory `path`,
	creating the versioning metadata if it does not exist yet.

	May return errors of category:

	  - `api.ErrStoreNotFound` -- if the directory does not exist
	  - `api.ErrStoreFailure` -- if the repository could not be opened or created
*/
func Open(path string, cfg Config) (*Store, error) {
	t, err := gittree.Open(path, gittree.Options{
		LockTimeout: cfg.LockTimeout,
		Author:      cfg.Author,
		Monitor:     cfg.Monitor,
	})
	if err != nil {
		return nil, err
	}
	return New(t, cfg), nil
}

/*
	Wrap any versioned tree as a store.
	The store takes ownership of the tree; closing the store closes it.
*/
func New(t tree.Tree, cfg Config) *Store {
	return &Store{tree: t, mon: cfg.Monitor}
}

func keyNotFound(key string) error {
	return ErrorDetailed(api.ErrKeyNotFound, "key not found: "+key, map[string]string{
		"key": key,
	})
}

func (s *Store) Get(key string) ([]byte, error) {
	id := api.HashKey(key)
	release, err := s.tree.Lock(tree.LockRead)
	if err != nil {
		return nil, err
	}
	defer release()

	has, err := s.tree.Has(tree.EntryID(id.ValuePath()))
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, keyNotFound(key)
	}
	return s.tree.Read(tree.EntryID(id.ValuePath()))
}

/*
	Set the value of a key.

	An existing key has its value replaced in place; its index record is left
	alone.  A new key has its value and index record written and then both
	registered with the tree in a single call.
*/
func (s *Store) Set(key string, value []byte) error {
	id := api.HashKey(key)
	release, err := s.tree.Lock(tree.LockWrite)
	if err != nil {
		return err
	}
	defer release()

	valuePath := tree.EntryID(id.ValuePath())
	has, err := s.tree.Has(valuePath)
	if err != nil {
		return err
	}
	if err := s.tree.Write(valuePath, value); err != nil {
		return err
	}
	if !has {
		indexPath := tree.EntryID(id.IndexPath())
		if err := s.tree.Write(indexPath, []byte(key)); err != nil {
			return err
		}
		if err := s.tree.Track(valuePath, indexPath); err != nil {
			return err
		}
	}
	log.KeyWritten(s.mon, id, !has)
	return nil
}

func (s *Store) Delete(key string) error {
	id := api.HashKey(key)
	release, err := s.tree.Lock(tree.LockWrite)
	if err != nil {
		return err
	}
	defer release()

	valuePath := tree.EntryID(id.ValuePath())
	has, err := s.tree.Has(valuePath)
	if err != nil {
		return err
	}
	if !has {
		return keyNotFound(key)
	}
	if err := s.tree.Untrack(valuePath, tree.EntryID(id.IndexPath())); err != nil {
		return err
	}
	log.KeyRemoved(s.mon, id)
	return nil
}

// Existence check by key hash alone; the value is never read.
func (s *Store) Contains(key string) (bool, error) {
	id := api.HashKey(key)
	release, err := s.tree.Lock(tree.LockRead)
	if err != nil {
		return false, err
	}
	defer release()

	return s.tree.Has(tree.EntryID(id.ValuePath()))
}

/*
	List every key on the shelf, once each, read back from the index records.
	Keys come back in the order of their hashes, which is stable but
	unrelated to the order they were set in.
*/
func (s *Store) ListKeys() ([]string, error) {
	release, err := s.tree.Lock(tree.LockRead)
	if err != nil {
		return nil, err
	}
	defer release()

	ids, err := s.tree.Entries()
	if err != nil {
		return nil, err
	}
	keys := []string{}
	for _, entry := range ids {
		if _, ok := api.KeyIDFromIndexPath(string(entry)); !ok {
			continue
		}
		bs, err := s.tree.Read(entry)
		if err != nil {
			return nil, err
		}
		keys = append(keys, string(bs))
	}
	return keys, nil
}

/*
	Commit to history.

	A blank message is replaced by config.DefaultCommitMessage().
	With no keys, every outstanding change is committed; otherwise only
	the values and index records of the given keys are, including the
	removal of any of them that were deleted.
*/
func (s *Store) Commit(message string, keys []string) (api.CommitResult, error) {
	if message == "" {
		message = config.DefaultCommitMessage()
	}
	var ids []tree.EntryID
	if len(keys) > 0 {
		seen := make(map[api.KeyID]struct{}, len(keys))
		ids = make([]tree.EntryID, 0, len(keys)*2)
		for _, key := range keys {
			id := api.HashKey(key)
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, tree.EntryID(id.ValuePath()), tree.EntryID(id.IndexPath()))
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}

	release, err := s.tree.Lock(tree.LockWrite)
	if err != nil {
		return api.CommitResult{}, err
	}
	defer release()

	return s.tree.Commit(message, ids)
}

// Commits reachable from the current head, newest first.
func (s *Store) History() ([]api.CommitResult, error) {
	release, err := s.tree.Lock(tree.LockRead)
	if err != nil {
		return nil, err
	}
	defer release()

	return s.tree.History()
}

/*
	Release the tree.  Nothing is committed; uncommitted changes remain
	in the working tree, visible to whoever opens the store next.
*/
func (s *Store) Close() error {
	return s.tree.Close()
}
