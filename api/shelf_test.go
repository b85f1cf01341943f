package api

import (
	"fmt"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/warpfork/go-errcat"
)

func TestKeyIDs(t *testing.T) {
	Convey("Key IDs", t, func() {
		id := HashKey("foobar")
		So(id, ShouldHaveLength, KeyIDLen)
		So(string(id), ShouldEqual, strings.ToLower(string(id)))
		So(HashKey("foobar"), ShouldEqual, id)
		So(HashKey("foobaz"), ShouldNotEqual, id)

		Convey("round trip through index paths", func() {
			back, ok := KeyIDFromIndexPath(id.IndexPath())
			So(ok, ShouldBeTrue)
			So(back, ShouldEqual, id)
		})
		Convey("reject things which are not index paths", func() {
			for _, pth := range []string{
				id.ValuePath(),
				"short" + IndexMark,
				strings.ToUpper(string(id)) + IndexMark,
				string(id[1:]) + "z" + IndexMark,
				".git",
			} {
				_, ok := KeyIDFromIndexPath(pth)
				So(ok, ShouldBeFalse)
			}
		})
	})
}

func TestSetError(t *testing.T) {
	Convey("Results carry errors in serial form", t, func() {
		r := &Event_Result{}
		r.SetError(errcat.ErrorDetailed(ErrKeyNotFound, "key not found: k", map[string]string{"key": "k"}))
		So(r.Error.Category, ShouldEqual, ErrKeyNotFound)
		So(r.Error.Message, ShouldContainSubstring, "key not found: k")
		So(r.Error.Details, ShouldResemble, map[string]string{"key": "k"})
		So(ExitCodeForCategory(r.Error.Category), ShouldEqual, ExitKeyNotFound)

		r.SetError(fmt.Errorf("mystery"))
		So(r.Error.Category, ShouldEqual, ErrStoreFailure)

		r.SetError(nil)
		So(r.Error, ShouldBeNil)
	})
}
