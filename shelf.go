/*
	Package shelf is a persistent, versioned map from string keys to byte values.

	A shelf lives in a directory.  Every change is visible immediately to
	anyone who opens the same directory, and `Sync` records a snapshot of
	the shelf (or of some keys on it) in the directory's git history.

		s, err := shelf.Open("./data")
		...
		defer s.Close()
		s.Set("greeting", []byte("hello"))
		s.Sync("say hello")

	Shelves are safe for concurrent use by goroutines and by processes
	sharing the directory: every call takes the shelf's lock for exactly
	as long as it runs.
*/
package shelf

import (
	"sort"

	"github.com/polydawn/shelf/api"
	"github.com/polydawn/shelf/contentstore"
)

/*
	The map-like capabilities of a shelf.

	Anything implementing Mapping can stand in for a shelf in code that
	only reads and writes keys.
*/
type Mapping interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
	Contains(key string) (bool, error)
	Keys() ([]string, error)
	Update(entries map[string][]byte) error
}

var (
	_ Mapping = &Shelf{}
)

type Shelf struct {
	store *contentstore.Store
}

/*
	Open the shelf in directory `path`, starting a new one if the directory
	holds none yet.  Lock timeout and commit author are read from the
	environment (see the config package).

	May return errors of category:

	  - `api.ErrStoreNotFound` -- if the directory does not exist
	  - `api.ErrStoreFailure` -- if the repository could not be opened or created
	  - `api.ErrUsage` -- if the environment holds an unparsable setting
*/
func Open(path string) (*Shelf, error) {
	cfg, err := contentstore.ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return OpenWith(path, cfg)
}

// Like Open, with the config given explicitly instead of read from the environment.
func OpenWith(path string, cfg contentstore.Config) (*Shelf, error) {
	store, err := contentstore.Open(path, cfg)
	if err != nil {
		return nil, err
	}
	return New(store), nil
}

func New(store *contentstore.Store) *Shelf {
	return &Shelf{store: store}
}

// Errors with category `api.ErrKeyNotFound` if the key is not on the shelf.
func (s *Shelf) Get(key string) ([]byte, error) {
	return s.store.Get(key)
}

func (s *Shelf) Set(key string, value []byte) error {
	return s.store.Set(key, value)
}

// Errors with category `api.ErrKeyNotFound` if the key is not on the shelf.
func (s *Shelf) Delete(key string) error {
	return s.store.Delete(key)
}

func (s *Shelf) Contains(key string) (bool, error) {
	return s.store.Contains(key)
}

func (s *Shelf) Keys() ([]string, error) {
	return s.store.ListKeys()
}

/*
	Set every pair in `entries`, in sorted key order.

	Each pair is its own Set; this is not a transaction.
	The first failure stops the update and is returned,
	leaving the pairs before it applied.
*/
func (s *Shelf) Update(entries map[string][]byte) error {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := s.store.Set(k, entries[k]); err != nil {
			return err
		}
	}
	return nil
}

/*
	Record the shelf's current state in history.

	With no keys, every change since the last sync is recorded.
	Given keys, only their changes are; changes to other keys stay
	pending for a later sync.  A blank message is replaced with one
	naming the current process.
*/
func (s *Shelf) Sync(message string, keys ...string) (api.CommitResult, error) {
	return s.store.Commit(message, keys)
}

// Same as Sync.
func (s *Shelf) Commit(message string, keys ...string) (api.CommitResult, error) {
	return s.Sync(message, keys...)
}

// Every sync so far, newest first.
func (s *Shelf) History() ([]api.CommitResult, error) {
	return s.store.History()
}

/*
	Release the shelf.  Close does not sync: unsynced changes remain in the
	directory, visible the next time it is opened, but not in history.
*/
func (s *Shelf) Close() error {
	return s.store.Close()
}
