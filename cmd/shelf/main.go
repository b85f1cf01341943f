package main

import (
	"encoding/base64"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/polydawn/refmt"
	"github.com/polydawn/refmt/json"
	. "github.com/warpfork/go-errcat"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/polydawn/shelf"
	"github.com/polydawn/shelf/api"
	"github.com/polydawn/shelf/contentstore"
)

/*
	Output serialization formats
*/
const (
	FmtJson = "json"
	FmtDumb = "dumb"
)

type baseCLI struct {
	Format      string        // Output api format, eg. json
	LockTimeout time.Duration // How long to wait for the shelf lock; zero defers to env
	Verbose     bool          // Emit log events on stderr
	Dir         string        // Shelf directory
	Key         string        // Key operated on
	SetCLI      struct {
		Value string // Value to set; "-" reads stdin
	}
	SyncCLI struct {
		Message string   // Commit message; blank for the default
		Keys    []string // Keys to limit the sync to
	}
}

func configureDir(cli *baseCLI, cmd *kingpin.CmdClause) {
	cmd.Arg("dir", "Shelf directory").
		Required().
		StringVar(&cli.Dir)
}

func configureKey(cli *baseCLI, cmd *kingpin.CmdClause) {
	configureDir(cli, cmd)
	cmd.Arg("key", "Key").
		Required().
		StringVar(&cli.Key)
}

func configureSet(cli *baseCLI, appSet *kingpin.CmdClause) {
	configureKey(cli, appSet)
	appSet.Arg("value", "Value, or '-' to read it from stdin").
		Default("-").
		StringVar(&cli.SetCLI.Value)
}

func configureSync(cli *baseCLI, appSync *kingpin.CmdClause) {
	configureDir(cli, appSync)
	appSync.Flag("message", "Commit message").
		Short('m').
		StringVar(&cli.SyncCLI.Message)
	appSync.Flag("key", "Sync only this key (repeatable)").
		StringsVar(&cli.SyncCLI.Keys)
}

func main() {
	exitCode := Main(os.Args, os.Stdin, os.Stdout, os.Stderr)
	os.Exit(int(exitCode))
}

func Main(args []string, stdin io.Reader, stdout, stderr io.Writer) api.ExitCode {
	cli := baseCLI{}

	app := kingpin.New("shelf", "Versioned key-value shelf")
	app.HelpFlag.Short('h')

	app.UsageWriter(stderr)
	app.ErrorWriter(stderr)

	app.Flag("format", "Output api format").
		Default(FmtDumb).
		EnumVar(&cli.Format, FmtJson, FmtDumb)
	app.Flag("lock-timeout", "How long to wait for the shelf lock (default from SHELF_LOCK_TIMEOUT, else forever)").
		DurationVar(&cli.LockTimeout)
	app.Flag("verbose", "Emit log events on stderr").
		Short('v').
		BoolVar(&cli.Verbose)

	appGet := app.Command("get", "print the value of a key (base64 in json output if not utf-8)")
	configureKey(&cli, appGet)

	appSet := app.Command("set", "set the value of a key")
	configureSet(&cli, appSet)

	appDelete := app.Command("delete", "remove a key")
	configureKey(&cli, appDelete)

	appHas := app.Command("has", "check whether a key is on the shelf")
	configureKey(&cli, appHas)

	appKeys := app.Command("keys", "list every key")
	configureDir(&cli, appKeys)

	appSync := app.Command("sync", "record the shelf's state in history")
	configureSync(&cli, appSync)

	appLog := app.Command("log", "list synced snapshots, newest first")
	configureDir(&cli, appLog)

	var termErr error
	app.Terminate(func(status int) {
		termErr = fmt.Errorf("parsing error: %d\n", status)
	})
	cmd, err := app.Parse(args[1:])
	if err != nil {
		fmt.Fprintln(stderr, err)
		return api.ExitUsage
	}
	if termErr != nil {
		fmt.Fprintln(stderr, termErr)
		return api.ExitUsage
	}

	var action func(*shelf.Shelf, *api.Event_Result) error
	switch cmd {
	case appGet.FullCommand():
		action = func(s *shelf.Shelf, result *api.Event_Result) error {
			bs, err := s.Get(cli.Key)
			if err != nil {
				return err
			}
			value := string(bs)
			result.Value = &value
			return nil
		}
	case appSet.FullCommand():
		value := []byte(cli.SetCLI.Value)
		if cli.SetCLI.Value == "-" {
			value, err = ioutil.ReadAll(stdin)
			if err != nil {
				fmt.Fprintln(stderr, err)
				return api.ExitUsage
			}
		}
		action = func(s *shelf.Shelf, result *api.Event_Result) error {
			return s.Set(cli.Key, value)
		}
	case appDelete.FullCommand():
		action = func(s *shelf.Shelf, result *api.Event_Result) error {
			return s.Delete(cli.Key)
		}
	case appHas.FullCommand():
		action = func(s *shelf.Shelf, result *api.Event_Result) error {
			has, err := s.Contains(cli.Key)
			result.Has = &has
			return err
		}
	case appKeys.FullCommand():
		action = func(s *shelf.Shelf, result *api.Event_Result) error {
			keys, err := s.Keys()
			sort.Strings(keys)
			result.Keys = keys
			return err
		}
	case appSync.FullCommand():
		action = func(s *shelf.Shelf, result *api.Event_Result) error {
			commit, err := s.Sync(cli.SyncCLI.Message, cli.SyncCLI.Keys...)
			if err != nil {
				return err
			}
			result.Commit = &commit
			return nil
		}
	case appLog.FullCommand():
		action = func(s *shelf.Shelf, result *api.Event_Result) error {
			history, err := s.History()
			result.History = history
			return err
		}
	}

	result := &api.Event_Result{}
	result.SetError(execute(cli, action, result, stderr))
	SerializeResult(cli.Format, result, stdout, stderr)
	if result.Error != nil {
		return api.ExitCodeForCategory(result.Error.Category)
	}
	return api.ExitSuccess
}

/*
	Open the shelf, run the action against it, and close it again,
	draining log events to stderr meanwhile if verbose.
*/
func execute(cli baseCLI, action func(*shelf.Shelf, *api.Event_Result) error, result *api.Event_Result, stderr io.Writer) error {
	cfg, err := contentstore.ConfigFromEnv()
	if err != nil {
		return err
	}
	if cli.LockTimeout < 0 {
		return Errorf(api.ErrUsage, "lock timeout must not be negative")
	}
	if cli.LockTimeout > 0 {
		cfg.LockTimeout = cli.LockTimeout
	}
	if cli.Verbose {
		ch := make(chan api.Event)
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ev := range ch {
				SerializeLog(cli.Format, ev, stderr)
			}
		}()
		defer wg.Wait()
		defer close(ch)
		cfg.Monitor = api.Monitor{Chan: ch}
	}

	s, err := shelf.OpenWith(cli.Dir, cfg)
	if err != nil {
		return err
	}
	err = action(s, result)
	if closeErr := s.Close(); err == nil {
		err = closeErr
	}
	return err
}

func SerializeResult(format string, result *api.Event_Result, stdout io.Writer, stderr io.Writer) {
	ev := api.Event{Result: result}
	switch format {
	case FmtJson:
		if result.Value != nil && !utf8.ValidString(*result.Value) {
			encoded := *result
			value := base64.StdEncoding.EncodeToString([]byte(*result.Value))
			encoded.Value = &value
			encoded.Encoding = "base64"
			ev.Result = &encoded
		}
		marshaller := refmt.NewMarshallerAtlased(json.EncodeOptions{}, stdout, api.Atlas)
		err := marshaller.Marshal(&ev)
		if err != nil {
			panic(err)
		}
		fmt.Fprintln(stdout)
	case FmtDumb:
		switch {
		case result.Error != nil:
			fmt.Fprintln(stderr, result.Error.Message)
		case result.Value != nil:
			// Values are printed raw; they may be binary or lack a trailing newline.
			io.WriteString(stdout, *result.Value)
		case result.Has != nil:
			fmt.Fprintln(stdout, *result.Has)
		case result.Keys != nil:
			for _, key := range result.Keys {
				fmt.Fprintln(stdout, key)
			}
		case result.Commit != nil:
			fmt.Fprintln(stdout, result.Commit.Hash)
		case result.History != nil:
			for _, c := range result.History {
				fmt.Fprintf(stdout, "%s %s\n", c.Hash, firstLine(c.Message))
			}
		}
	default:
		panic(fmt.Errorf("shelf: invalid format %s", format))
	}
}

func SerializeLog(format string, ev api.Event, stderr io.Writer) {
	switch format {
	case FmtJson:
		marshaller := refmt.NewMarshallerAtlased(json.EncodeOptions{}, stderr, api.Atlas)
		if err := marshaller.Marshal(&ev); err != nil {
			panic(err)
		}
		fmt.Fprintln(stderr)
	case FmtDumb:
		if ev.Log == nil {
			return
		}
		details := make([]string, 0, len(ev.Log.Detail))
		for k, v := range ev.Log.Detail {
			details = append(details, k+"="+v)
		}
		sort.Strings(details)
		fmt.Fprintf(stderr, "[%s] %s", ev.Log.Level, ev.Log.Msg)
		if len(details) > 0 {
			fmt.Fprintf(stderr, " (%s)", strings.Join(details, " "))
		}
		fmt.Fprintln(stderr)
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
