package gittree

import (
	"sort"
	"time"

	. "github.com/warpfork/go-errcat"

	srcd_git "gopkg.in/src-d/go-git.v4"
	"gopkg.in/src-d/go-git.v4/plumbing"
	"gopkg.in/src-d/go-git.v4/plumbing/format/index"
	"gopkg.in/src-d/go-git.v4/plumbing/object"

	"github.com/polydawn/shelf/api"
	"github.com/polydawn/shelf/config"
	"github.com/polydawn/shelf/lib/log"
	"github.com/polydawn/shelf/tree"
)

func (t *Tree) Commit(message string, ids []tree.EntryID) (api.CommitResult, error) {
	var (
		result api.CommitResult
		err    error
	)
	if ids == nil {
		result, err = t.commitAll(message)
	} else {
		result, err = t.commitPaths(message, ids)
	}
	if err != nil {
		return api.CommitResult{}, err
	}
	log.Committed(t.opts.Monitor, result)
	return result, nil
}

func (t *Tree) signature() *object.Signature {
	author := t.opts.Author
	if author.Name == "" {
		author = config.GetAuthor()
	}
	return &object.Signature{
		Name:  author.Name,
		Email: author.Email,
		When:  time.Now(),
	}
}

/*
	Commit everything: entries overwritten in place since they were tracked
	are restaged first, same as `git commit -a`.
*/
func (t *Tree) commitAll(message string) (api.CommitResult, error) {
	hash, err := t.wt.Commit(message, &srcd_git.CommitOptions{
		All:    true,
		Author: t.signature(),
	})
	if err != nil {
		return api.CommitResult{}, Errorf(api.ErrStoreFailure, "commit failed: %s", err)
	}
	return api.CommitResult{
		Hash:    hash.String(),
		Message: message,
	}, nil
}

/*
	Commit only the named entries.

	git commits whatever the index holds, so the index is swapped out for the
	duration of the commit: the swapped-in index is HEAD's tree with only the
	named entries brought up to date (or dropped, if they are no longer tracked).
	Afterwards the full index goes back, so every other pending change is still
	pending relative to the new HEAD.
*/
func (t *Tree) commitPaths(message string, ids []tree.EntryID) (api.CommitResult, error) {
	full, err := t.repo.Storer.Index()
	if err != nil {
		return api.CommitResult{}, Errorf(api.ErrStoreFailure, "failed to read index: %s", err)
	}
	paths := make([]string, 0, len(ids))
	for _, id := range ids {
		paths = append(paths, string(id))
		// Overwrites don't touch the index, so restage anything still tracked.
		if _, err := full.Entry(string(id)); err == index.ErrEntryNotFound {
			continue
		}
		if _, err := t.fs.Lstat(string(id)); err != nil {
			continue
		}
		if err := t.stage(full, id); err != nil {
			return api.CommitResult{}, err
		}
	}
	sort.Strings(paths)

	entries, err := t.headEntries()
	if err != nil {
		return api.CommitResult{}, err
	}
	for _, pth := range paths {
		delete(entries, pth)
		if e, err := full.Entry(pth); err == nil {
			cp := *e
			entries[pth] = &cp
		}
	}
	partial := &index.Index{Version: full.Version}
	for _, e := range entries {
		partial.Entries = append(partial.Entries, e)
	}
	sort.Slice(partial.Entries, func(i, j int) bool { return partial.Entries[i].Name < partial.Entries[j].Name })

	if err := t.repo.Storer.SetIndex(partial); err != nil {
		return api.CommitResult{}, Errorf(api.ErrStoreFailure, "failed to write index: %s", err)
	}
	hash, commitErr := t.wt.Commit(message, &srcd_git.CommitOptions{
		Author: t.signature(),
	})
	if err := t.repo.Storer.SetIndex(full); err != nil {
		return api.CommitResult{}, Errorf(api.ErrStoreFailure, "failed to restore index after commit: %s", err)
	}
	if commitErr != nil {
		return api.CommitResult{}, Errorf(api.ErrStoreFailure, "commit failed: %s", commitErr)
	}
	return api.CommitResult{
		Hash:    hash.String(),
		Message: message,
		Paths:   paths,
	}, nil
}

/*
	Index entries for every file in HEAD's tree, by path.
	Empty if nothing has been committed yet.
*/
func (t *Tree) headEntries() (map[string]*index.Entry, error) {
	t.objMu.Lock()
	defer t.objMu.Unlock()

	entries := map[string]*index.Entry{}
	ref, err := t.repo.Head()
	if err == plumbing.ErrReferenceNotFound {
		return entries, nil
	} else if err != nil {
		return nil, Errorf(api.ErrStoreFailure, "failed to resolve HEAD: %s", err)
	}
	commit, err := t.repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, Errorf(api.ErrStoreFailure, "failed to get commit: %s", err)
	}
	headTree, err := commit.Tree()
	if err != nil {
		return nil, Errorf(api.ErrStoreFailure, "commit missing tree: %s", err)
	}
	err = headTree.Files().ForEach(func(f *object.File) error {
		entries[f.Name] = &index.Entry{
			Name: f.Name,
			Hash: f.Hash,
			Mode: f.Mode,
			Size: uint32(f.Size),
		}
		return nil
	})
	if err != nil {
		return nil, Errorf(api.ErrStoreFailure, "failed to walk commit tree: %s", err)
	}
	return entries, nil
}

/*
	Returns the messages of the commits reachable from HEAD, newest first.
*/
func (t *Tree) History() ([]api.CommitResult, error) {
	t.objMu.Lock()
	defer t.objMu.Unlock()

	ref, err := t.repo.Head()
	if err == plumbing.ErrReferenceNotFound {
		return nil, nil
	} else if err != nil {
		return nil, Errorf(api.ErrStoreFailure, "failed to resolve HEAD: %s", err)
	}
	iter, err := t.repo.Log(&srcd_git.LogOptions{From: ref.Hash()})
	if err != nil {
		return nil, Errorf(api.ErrStoreFailure, "failed to read history: %s", err)
	}
	var history []api.CommitResult
	err = iter.ForEach(func(c *object.Commit) error {
		history = append(history, api.CommitResult{
			Hash:    c.Hash.String(),
			Message: c.Message,
		})
		return nil
	})
	if err != nil {
		return nil, Errorf(api.ErrStoreFailure, "failed to read history: %s", err)
	}
	return history, nil
}
