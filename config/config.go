/*
	Helpers for loading contextual config.

	Config for the shelf means "things that are the host machine operator's concerns":
	how long to wait on a busy tree lock, and who to sign commits as.
	The storage directory and commit messages are parameters of calls, not config.
*/
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	. "github.com/warpfork/go-errcat"

	"github.com/polydawn/shelf/api"
)

const (
	DefaultAuthorName  = "shelf"
	DefaultAuthorEmail = "shelf@localhost"
)

type Author struct {
	Name  string
	Email string
}

/*
	Return how long lock acquisition may wait before failing.

	The default value is zero, which means wait forever;
	this can be overriden by the `SHELF_LOCK_TIMEOUT` environment variable,
	which is parsed as a Go duration (e.g. "30s").

	May return errors of category:

	  - `api.ErrUsage` -- if the variable is not a non-negative duration
*/
func GetLockTimeout() (time.Duration, error) {
	raw := os.Getenv("SHELF_LOCK_TIMEOUT")
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, Errorf(api.ErrUsage, "SHELF_LOCK_TIMEOUT: %s", err)
	}
	if d < 0 {
		return 0, Errorf(api.ErrUsage, "SHELF_LOCK_TIMEOUT: must not be negative")
	}
	return d, nil
}

/*
	Return the identity commits are signed with.

	The defaults are "shelf" and "shelf@localhost";
	these can be overriden by the `SHELF_AUTHOR_NAME` and `SHELF_AUTHOR_EMAIL`
	environment variables.
*/
func GetAuthor() Author {
	author := Author{
		Name:  os.Getenv("SHELF_AUTHOR_NAME"),
		Email: os.Getenv("SHELF_AUTHOR_EMAIL"),
	}
	if author.Name == "" {
		author.Name = DefaultAuthorName
	}
	if author.Email == "" {
		author.Email = DefaultAuthorEmail
	}
	return author
}

/*
	Return the message used for commits made without one:
	the program name and process id, e.g. "shelf (4321)".
	Stable for the life of the process.
*/
func DefaultCommitMessage() string {
	prog := "shelf"
	if len(os.Args) > 0 && os.Args[0] != "" {
		prog = filepath.Base(os.Args[0])
	}
	return fmt.Sprintf("%s (%d)", prog, os.Getpid())
}
