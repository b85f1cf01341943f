package main

import (
	"bytes"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/polydawn/shelf/api"
	"github.com/polydawn/shelf/testutil"
)

func run(stdin string, args ...string) (api.ExitCode, string, string) {
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	exitCode := Main(append([]string{"shelf"}, args...), strings.NewReader(stdin), stdout, stderr)
	return exitCode, stdout.String(), stderr.String()
}

func TestWithoutArgs(t *testing.T) {
	Convey("shelf: usage printed to stderr", t, func() {
		args := []string{"shelf"}
		stdout := &bytes.Buffer{}
		stderr := &bytes.Buffer{}
		stdin := &bytes.Buffer{}
		exitCode := Main(args, stdin, stdout, stderr)
		t.Log(string(stdout.Bytes()))
		t.Log(string(stderr.Bytes()))
		So(string(stdout.Bytes()), ShouldBeBlank)
		So(string(stderr.Bytes()), ShouldNotBeBlank)
		firstLine, err := stderr.ReadString('\n')
		So(err, ShouldBeNil)
		So(string(firstLine), ShouldContainSubstring, "usage: shelf [<flags>] <command> [<args> ...]")
		So(exitCode, ShouldEqual, api.ExitUsage)
	})
}

func TestCommands(t *testing.T) {
	Convey("shelf: commands against a directory", t,
		testutil.Requires(testutil.RequiresEnvBlank("SHELF_LOCK_TIMEOUT"), func() {
			testutil.WithTmpdir(func(tmpDir string) {
				Convey("set then get round trips the value", func() {
					code, _, stderr := run("", "set", tmpDir, "greeting", "hello")
					So(stderr, ShouldBeBlank)
					So(code, ShouldEqual, api.ExitSuccess)
					code, stdout, _ := run("", "get", tmpDir, "greeting")
					So(code, ShouldEqual, api.ExitSuccess)
					So(stdout, ShouldEqual, "hello")

					Convey("has and keys see it", func() {
						code, stdout, _ := run("", "has", tmpDir, "greeting")
						So(code, ShouldEqual, api.ExitSuccess)
						So(stdout, ShouldEqual, "true\n")
						code, stdout, _ = run("", "has", tmpDir, "farewell")
						So(code, ShouldEqual, api.ExitSuccess)
						So(stdout, ShouldEqual, "false\n")
						code, stdout, _ = run("", "keys", tmpDir)
						So(code, ShouldEqual, api.ExitSuccess)
						So(stdout, ShouldEqual, "greeting\n")
					})
					Convey("sync records history", func() {
						code, hash, _ := run("", "sync", tmpDir, "-m", "first")
						So(code, ShouldEqual, api.ExitSuccess)
						So(strings.TrimSpace(hash), ShouldHaveLength, 40)
						code, stdout, _ := run("", "log", tmpDir)
						So(code, ShouldEqual, api.ExitSuccess)
						So(stdout, ShouldEqual, strings.TrimSpace(hash)+" first\n")
					})
					Convey("delete removes it", func() {
						code, _, _ := run("", "delete", tmpDir, "greeting")
						So(code, ShouldEqual, api.ExitSuccess)
						code, stdout, stderr := run("", "get", tmpDir, "greeting")
						So(code, ShouldEqual, api.ExitKeyNotFound)
						So(stdout, ShouldBeBlank)
						So(stderr, ShouldContainSubstring, "greeting")
					})
				})
				Convey("set reads stdin when no value is given", func() {
					code, _, _ := run("line one\nline two\n", "set", tmpDir, "doc")
					So(code, ShouldEqual, api.ExitSuccess)
					_, stdout, _ := run("", "get", tmpDir, "doc")
					So(stdout, ShouldEqual, "line one\nline two\n")
				})
				Convey("json output carries results and errors", func() {
					code, stdout, _ := run("", "--format=json", "has", tmpDir, "nope")
					So(code, ShouldEqual, api.ExitSuccess)
					So(stdout, ShouldContainSubstring, `"has":false`)
					code, stdout, _ = run("", "--format=json", "get", tmpDir, "nope")
					So(code, ShouldEqual, api.ExitKeyNotFound)
					So(stdout, ShouldContainSubstring, `"category":"shelf-key-not-found"`)
				})
				Convey("json output encodes values which are not utf-8", func() {
					code, _, _ := run("\xff\xfe\"\x00", "set", tmpDir, "bin")
					So(code, ShouldEqual, api.ExitSuccess)
					code, stdout, _ := run("", "--format=json", "get", tmpDir, "bin")
					So(code, ShouldEqual, api.ExitSuccess)
					So(stdout, ShouldContainSubstring, `"value":"//4iAA=="`)
					So(stdout, ShouldContainSubstring, `"encoding":"base64"`)
					_, stdout, _ = run("", "get", tmpDir, "bin")
					So(stdout, ShouldEqual, "\xff\xfe\"\x00")

					Convey("and leaves utf-8 values alone", func() {
						run("", "set", tmpDir, "text", "héllo")
						_, stdout, _ := run("", "--format=json", "get", tmpDir, "text")
						So(stdout, ShouldContainSubstring, `"value":"héllo"`)
						So(stdout, ShouldNotContainSubstring, `"encoding"`)
					})
				})
				Convey("verbose mode logs to stderr", func() {
					code, _, stderr := run("", "--verbose", "set", tmpDir, "k", "v")
					So(code, ShouldEqual, api.ExitSuccess)
					So(stderr, ShouldContainSubstring, "[info] initialized new tree")
					So(stderr, ShouldContainSubstring, "[debug] wrote value")
				})
				Convey("a missing directory is reported", func() {
					code, _, _ := run("", "keys", testutil.NonexistentDir(tmpDir))
					So(code, ShouldEqual, api.ExitStoreNotFound)
				})
				Convey("a negative lock timeout is a usage error", func() {
					code, _, _ := run("", "--lock-timeout=-1s", "keys", tmpDir)
					So(code, ShouldEqual, api.ExitUsage)
				})
			})
		}),
	)
}
