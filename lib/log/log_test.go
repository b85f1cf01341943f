package log

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/polydawn/shelf/api"
)

func TestEmit(t *testing.T) {
	Convey("Log helpers", t, func() {
		Convey("are silent on a nil monitor channel", func() {
			So(func() { Committed(api.Monitor{}, api.CommitResult{Hash: "abc"}) }, ShouldNotPanic)
		})
		Convey("send one event per call", func() {
			ch := make(chan api.Event, 4)
			mon := api.Monitor{Chan: ch}
			LockTimedOut(mon, "write", 2*time.Second)
			Committed(mon, api.CommitResult{Hash: "abc", Message: "m", Paths: []string{"a", "a.key"}})
			close(ch)

			ev := <-ch
			So(ev.Log, ShouldNotBeNil)
			So(ev.Log.Level, ShouldEqual, api.LogWarn)
			So(ev.Log.Msg, ShouldContainSubstring, string(api.ErrLockTimeout))
			So(ev.Log.Detail["timeout"], ShouldEqual, "2s")

			ev = <-ch
			So(ev.Log.Level, ShouldEqual, api.LogInfo)
			So(ev.Log.Detail["hash"], ShouldEqual, "abc")
			So(ev.Log.Detail["scope"], ShouldEqual, "2 paths")
		})
	})
}
