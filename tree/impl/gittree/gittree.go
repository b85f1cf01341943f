/*
	The git tree is a versioned tree backed by a git repository.

	Entries are plain files at the root of the repository's working tree,
	"tracked" means present in the git index, and commits are ordinary
	git commits on the current branch.  Any git tool can inspect the result.

	The repository is driven entirely through go-git; no git binary is needed.
*/
package gittree

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	. "github.com/warpfork/go-errcat"

	billy "gopkg.in/src-d/go-billy.v4"
	"gopkg.in/src-d/go-billy.v4/memfs"
	srcd_git "gopkg.in/src-d/go-git.v4"
	"gopkg.in/src-d/go-git.v4/plumbing"
	"gopkg.in/src-d/go-git.v4/plumbing/filemode"
	"gopkg.in/src-d/go-git.v4/plumbing/format/index"
	"gopkg.in/src-d/go-git.v4/storage/memory"

	"github.com/polydawn/shelf/api"
	"github.com/polydawn/shelf/config"
	"github.com/polydawn/shelf/lib/log"
	"github.com/polydawn/shelf/tree"
)

var (
	_ tree.Tree = &Tree{}
)

// Name of the advisory lock file, kept inside the repository's ".git" dir.
const lockFilename = "shelf.lock"

// Prefix of files used to stage writes before they are renamed into place.
const stagePrefix = ".shelf-stage."

type Options struct {
	// How long Lock may wait.  Zero waits forever.
	LockTimeout time.Duration
	// Identity commits are signed with.  Zero value means config.GetAuthor().
	Author config.Author
	// Optional; receives log events.
	Monitor api.Monitor
}

type Tree struct {
	path string // root of the working tree; blank for in-memory trees
	repo *srcd_git.Repository
	wt   *srcd_git.Worktree
	fs   billy.Filesystem // the worktree's filesystem
	lock *treeLock
	opts Options

	// go-git's object cache is not safe for concurrent readers,
	// so walks of commits and trees take this even under a shared lock.
	objMu sync.Mutex
}

/*
	Open the git tree rooted at `path`, initializing a new repository there
	if there isn't one yet.

	The directory itself must already exist; only the versioning metadata
	within it is created on demand.

	May return errors of category:

	  - `api.ErrStoreNotFound` -- if the path does not exist or is not a dir
	  - `api.ErrStoreFailure` -- if the repository could not be opened or created
*/
func Open(path string, opts Options) (*Tree, error) {
	absPth, err := filepath.Abs(path)
	if err != nil {
		return nil, Errorf(api.ErrStoreFailure, "failed handling local path: %s", err)
	}
	stat, err := os.Stat(absPth)
	switch {
	case os.IsNotExist(err):
		return nil, Errorf(api.ErrStoreNotFound, "store does not exist (%s)", err)
	case err != nil:
		return nil, Errorf(api.ErrStoreFailure, "store unavailable (%s)", err)
	case !stat.IsDir():
		return nil, Errorf(api.ErrStoreNotFound, "store does not exist (%s is not a dir)", absPth)
	}

	created := false
	repo, err := srcd_git.PlainOpen(absPth)
	if err == srcd_git.ErrRepositoryNotExists {
		repo, err = srcd_git.PlainInit(absPth, false)
		created = true
	}
	if err != nil {
		return nil, ErrorDetailed(api.ErrStoreFailure, "unable to open repository", map[string]string{
			"cause": err.Error(),
			"store": absPth,
		})
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, Errorf(api.ErrStoreFailure, "repository has no worktree: %s", err)
	}
	lockFile, err := openFileLock(filepath.Join(absPth, srcd_git.GitDirName, lockFilename))
	if err != nil {
		return nil, Errorf(api.ErrStoreFailure, "unable to create lock file: %s", err)
	}

	t := &Tree{
		path: absPth,
		repo: repo,
		wt:   wt,
		fs:   wt.Filesystem,
		lock: newTreeLock(lockFile, opts.LockTimeout, opts.Monitor),
		opts: opts,
	}
	log.TreeOpened(opts.Monitor, absPth, created)
	return t, nil
}

/*
	Create a tree held entirely in memory.

	In-memory trees vanish with the process, and their lock only
	coordinates goroutines sharing the one handle.
*/
func OpenMemory(opts Options) (*Tree, error) {
	repo, err := srcd_git.Init(memory.NewStorage(), memfs.New())
	if err != nil {
		return nil, Errorf(api.ErrStoreFailure, "unable to create repository: %s", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, Errorf(api.ErrStoreFailure, "repository has no worktree: %s", err)
	}
	// The memory storer creates its index lazily on first read,
	// which would make the first concurrent readers race to create it.
	if err := repo.Storer.SetIndex(&index.Index{Version: 2}); err != nil {
		return nil, Errorf(api.ErrStoreFailure, "unable to create index: %s", err)
	}
	log.TreeOpened(opts.Monitor, "", true)
	return &Tree{
		repo: repo,
		wt:   wt,
		fs:   wt.Filesystem,
		lock: newTreeLock(nil, opts.LockTimeout, opts.Monitor),
		opts: opts,
	}, nil
}

func (t *Tree) Lock(mode tree.LockMode) (func(), error) {
	return t.lock.acquire(mode)
}

func (t *Tree) Has(id tree.EntryID) (bool, error) {
	idx, err := t.repo.Storer.Index()
	if err != nil {
		return false, Errorf(api.ErrStoreFailure, "failed to read index: %s", err)
	}
	_, err = idx.Entry(string(id))
	switch err {
	case nil:
		return true, nil
	case index.ErrEntryNotFound:
		return false, nil
	default:
		return false, Errorf(api.ErrStoreFailure, "failed to read index: %s", err)
	}
}

func (t *Tree) Read(id tree.EntryID) ([]byte, error) {
	f, err := t.fs.Open(string(id))
	switch {
	case os.IsNotExist(err):
		return nil, Errorf(api.ErrStoreFailure, "entry %q is missing from the working tree", id)
	case err != nil:
		return nil, Errorf(api.ErrStoreFailure, "failed to open entry %q: %s", id, err)
	}
	defer f.Close()
	bs, err := ioutil.ReadAll(f)
	if err != nil {
		return nil, Errorf(api.ErrStoreFailure, "failed to read entry %q: %s", id, err)
	}
	return bs, nil
}

/*
	Writes go to a uniquely named stage file first, which is then renamed
	over the entry; a reader never sees a half-written or partially
	truncated value.
*/
func (t *Tree) Write(id tree.EntryID, content []byte) error {
	stagePath := stagePrefix + uuid.New().String()
	f, err := t.fs.OpenFile(stagePath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	if err != nil {
		return Errorf(api.ErrStoreFailure, "failed to reserve stage file: %s", err)
	}
	_, err = f.Write(content)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		t.fs.Remove(stagePath)
		return Errorf(api.ErrStoreFailure, "failed to write entry %q: %s", id, err)
	}
	if err := t.fs.Rename(stagePath, string(id)); err != nil {
		t.fs.Remove(stagePath)
		return Errorf(api.ErrStoreFailure, "failed to move entry %q into place: %s", id, err)
	}
	return nil
}

func (t *Tree) Track(ids ...tree.EntryID) error {
	idx, err := t.repo.Storer.Index()
	if err != nil {
		return Errorf(api.ErrStoreFailure, "failed to read index: %s", err)
	}
	for _, id := range ids {
		if err := t.stage(idx, id); err != nil {
			return err
		}
	}
	if err := t.repo.Storer.SetIndex(idx); err != nil {
		return Errorf(api.ErrStoreFailure, "failed to write index: %s", err)
	}
	return nil
}

/*
	Copy the working content of an entry into the object store,
	and point the entry's index record at it (adding the record if needed).
	Only the in-memory index is touched; the caller saves it.
*/
func (t *Tree) stage(idx *index.Index, id tree.EntryID) error {
	pth := string(id)
	fi, err := t.fs.Lstat(pth)
	if err != nil {
		return Errorf(api.ErrStoreFailure, "cannot track entry %q: %s", id, err)
	}
	content, err := t.Read(id)
	if err != nil {
		return err
	}
	obj := t.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	obj.SetSize(int64(len(content)))
	w, err := obj.Writer()
	if err != nil {
		return Errorf(api.ErrStoreFailure, "cannot store entry %q: %s", id, err)
	}
	if _, err := w.Write(content); err != nil {
		w.Close()
		return Errorf(api.ErrStoreFailure, "cannot store entry %q: %s", id, err)
	}
	if err := w.Close(); err != nil {
		return Errorf(api.ErrStoreFailure, "cannot store entry %q: %s", id, err)
	}
	hash, err := t.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return Errorf(api.ErrStoreFailure, "cannot store entry %q: %s", id, err)
	}

	e, err := idx.Entry(pth)
	if err == index.ErrEntryNotFound {
		e = idx.Add(pth)
	} else if err != nil {
		return Errorf(api.ErrStoreFailure, "failed to read index: %s", err)
	}
	e.Hash = hash
	e.Mode = filemode.Regular
	e.ModifiedAt = fi.ModTime()
	e.Size = uint32(len(content))
	return nil
}

func (t *Tree) Untrack(ids ...tree.EntryID) error {
	idx, err := t.repo.Storer.Index()
	if err != nil {
		return Errorf(api.ErrStoreFailure, "failed to read index: %s", err)
	}
	for _, id := range ids {
		if _, err := idx.Remove(string(id)); err != nil && err != index.ErrEntryNotFound {
			return Errorf(api.ErrStoreFailure, "failed to update index: %s", err)
		}
	}
	if err := t.repo.Storer.SetIndex(idx); err != nil {
		return Errorf(api.ErrStoreFailure, "failed to write index: %s", err)
	}
	for _, id := range ids {
		if err := t.fs.Remove(string(id)); err != nil && !os.IsNotExist(err) {
			return Errorf(api.ErrStoreFailure, "failed to remove entry %q: %s", id, err)
		}
	}
	return nil
}

func (t *Tree) Entries() ([]tree.EntryID, error) {
	idx, err := t.repo.Storer.Index()
	if err != nil {
		return nil, Errorf(api.ErrStoreFailure, "failed to read index: %s", err)
	}
	ids := make([]tree.EntryID, len(idx.Entries))
	for i, e := range idx.Entries {
		ids[i] = tree.EntryID(e.Name)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

/*
	Release the lock file.  The tree must not be used afterwards.
	Closing does not commit anything; uncommitted changes stay in the
	working tree and index for the next opener.
*/
func (t *Tree) Close() error {
	return t.lock.close()
}
