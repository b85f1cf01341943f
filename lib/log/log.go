/*
	Helper functions for emitting structured logs to an api.Monitor.

	These functions encompass the common lifecycle events of a shelf,
	and using them A) saves typing and B) keeps the common stuff formatted
	in a common way between the tree and the content store.
	Callers can of course also write their own log events raw; it is freetext.
*/
package log

import (
	"fmt"
	"time"

	"github.com/polydawn/shelf/api"
)

func emit(mon api.Monitor, lvl api.LogLevel, msg string, detail map[string]string) {
	if mon.Chan == nil {
		return
	}
	mon.Chan <- api.Event{
		Log: &api.Event_Log{
			Time:   time.Now(),
			Level:  lvl,
			Msg:    msg,
			Detail: detail,
		},
	}
}

// Called once per open; created is true if the versioning metadata had to be initialized.
func TreeOpened(mon api.Monitor, path string, created bool) {
	msg := "opened tree"
	if created {
		msg = "initialized new tree"
	}
	emit(mon, api.LogInfo, msg, map[string]string{
		"path": path,
	})
}

// Typically followed by an 'api.ErrLockTimeout' being returned; mode is "read" or "write".
func LockTimedOut(mon api.Monitor, mode string, timeout time.Duration) {
	emit(mon, api.LogWarn, fmt.Sprintf("%s while acquiring %s lock", api.ErrLockTimeout, mode), map[string]string{
		"mode":    mode,
		"timeout": timeout.String(),
	})
}

func KeyWritten(mon api.Monitor, keyID api.KeyID, created bool) {
	emit(mon, api.LogDebug, "wrote value", map[string]string{
		"keyID":   string(keyID),
		"created": fmt.Sprintf("%t", created),
	})
}

func KeyRemoved(mon api.Monitor, keyID api.KeyID) {
	emit(mon, api.LogDebug, "removed value", map[string]string{
		"keyID": string(keyID),
	})
}

func Committed(mon api.Monitor, result api.CommitResult) {
	scope := "all"
	if len(result.Paths) > 0 {
		scope = fmt.Sprintf("%d paths", len(result.Paths))
	}
	emit(mon, api.LogInfo, "committed", map[string]string{
		"hash":    result.Hash,
		"message": result.Message,
		"scope":   scope,
	})
}
