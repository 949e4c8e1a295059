// Package reporter defines the sink the engine writes lifecycle events
// to, plus a console implementation and a plugin-loaded one.
package reporter

import (
	"time"

	"github.com/xjet-run/engine/internal/wire"
)

// LogLevel mirrors the reporter's level vocabulary.
type LogLevel string

const (
	LevelSilent LogLevel = "silent"
	LevelError  LogLevel = "error"
	LevelWarn   LogLevel = "warn"
	LevelInfo   LogLevel = "info"
	LevelDebug  LogLevel = "debug"
)

// LogEvent is passed to Reporter.Log.
type LogEvent struct {
	Suite       string
	Level       LogLevel
	Context     string
	Location    string
	Timestamp   time.Time
	Description string
}

// StatusEvent is passed to Reporter.Status.
type StatusEvent struct {
	Suite       string
	Kind        string // "describe" | "test"
	Type        string // START | SKIP | TODO | END
	Ancestry    []string
	Description string
}

// ActionEvent is passed to Reporter.Action.
type ActionEvent struct {
	Suite       string
	Kind        string
	Type        string // SUCCESS | FAILURE
	Ancestry    []string
	Errors      []wire.ErrorDetail
	DurationMS  int64
	Location    string
	Description string
}

// SuiteErrorEvent is passed to Reporter.SuiteError for infrastructure
// failures: runner disconnects, dispatch timeouts, sandbox init
// errors.
type SuiteErrorEvent struct {
	Suite      string
	Message    string
	FormatCode string
	Stacks     []string
}

// Reporter is the sink every dispatch Target's decoded events are fed
// to. Implementations must tolerate concurrent invocation — multiple
// suites may report in parallel under an ExternalTarget — typically by
// serializing internally onto one output stream.
type Reporter interface {
	Init(suiteNames []string, runnerCount int)
	Log(e LogEvent)
	Status(e StatusEvent)
	Action(e ActionEvent)
	SuiteError(e SuiteErrorEvent)
	Finish()
}
