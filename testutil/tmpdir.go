package testutil

import (
	"os"
	"path/filepath"

	"github.com/smartystreets/goconvey/convey"
)

/*
	Runs fn with a fresh temporary directory, which is removed afterwards.

	The path is resolved through symlinks, so it can be compared against
	paths the code under test has absolutized.
*/
func WithTmpdir(fn func(tmpDir string)) {
	tmpBase, err := os.MkdirTemp("", "shelf-test-")
	convey.So(err, convey.ShouldBeNil)
	defer os.RemoveAll(tmpBase)
	tmpBase, err = filepath.EvalSymlinks(tmpBase)
	convey.So(err, convey.ShouldBeNil)
	fn(tmpBase)
}

/*
	Returns the path of a directory which does not exist
	(nor does its parent).
*/
func NonexistentDir(tmpDir string) string {
	return filepath.Join(tmpDir, "not-here", "a")
}
