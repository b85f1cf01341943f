package api

import (
	"time"

	"github.com/warpfork/go-errcat"
)

/*
	Monitoring configuration and the message types used.

	Shelf operations never block on the monitor for long:
	the caller owns the channel and is expected to drain it.
*/
type (
	/*
		Slot for the channel the caller wishes log events to be sent to.
	*/
	Monitor struct {
		// Channel to which events will be sent as operations proceed.
		// A nil channel will disable all event reporting.
		Chan chan<- Event
	}

	/*
		A "union" type of all the kinds of event that may be generated.

		The "Result" message is never sent to Monitor.Chan --
		its values are converted into the function returns --
		but *is* seen in the serial form emitted by the CLI.
	*/
	Event struct {
		Log    *Event_Log    `refmt:"log,omitempty"`
		Result *Event_Result `refmt:"result,omitempty"`
	}

	Event_Log struct {
		Time   time.Time         `refmt:"time"`
		Level  LogLevel          `refmt:"lvl"`
		Msg    string            `refmt:"msg"`
		Detail map[string]string `refmt:"detail,omitempty"`
	}

	/*
		The outcome of one command.  At most one of the value fields is set,
		depending on the command; Error is set instead on failure.
	*/
	Event_Result struct {
		Value    *string        `refmt:"value,omitempty"`
		Encoding string         `refmt:"encoding,omitempty"` // "base64" when Value had to be encoded for serialization
		Has      *bool          `refmt:"has,omitempty"`
		Keys     []string       `refmt:"keys,omitempty"`
		Commit   *CommitResult  `refmt:"commit,omitempty"`
		History  []CommitResult `refmt:"history,omitempty"`
		Error    *Error         `refmt:"error,omitempty"`
	}

	/*
		Serial form of a categorized error.
	*/
	Error struct {
		Category ErrorCategory     `refmt:"category"`
		Message  string            `refmt:"msg"`
		Details  map[string]string `refmt:"details,omitempty"`
	}
)

/*
	Fill in the Error field from a go error.  Nil clears it.

	Errors without a category are reported under ErrStoreFailure,
	since anything uncategorized escaped from below the store.
*/
func (r *Event_Result) SetError(err error) {
	if err == nil {
		r.Error = nil
		return
	}
	r.Error = &Error{
		Category: ErrStoreFailure,
		Message:  err.Error(),
	}
	if cat, ok := errcat.Category(err).(ErrorCategory); ok {
		r.Error.Category = cat
	}
	if e, ok := err.(errcat.Error); ok {
		r.Error.Details = e.Details()
	}
}

type LogLevel int8

const (
	LogError = LogLevel(4)
	LogWarn  = LogLevel(3)
	LogInfo  = LogLevel(2)
	LogDebug = LogLevel(1)
)

func (lvl LogLevel) String() string {
	switch lvl {
	case LogError:
		return "error"
	case LogWarn:
		return "warn"
	case LogInfo:
		return "info"
	case LogDebug:
		return "debug"
	default:
		return "unknown"
	}
}
