package reporter

import (
	"time"

	"github.com/xjet-run/engine/internal/wire"
)

// Sink adapts a Reporter to wire.Sink, the shape the wire.Handler
// dispatches decoded frames onto.
type Sink struct {
	R Reporter
}

func (s Sink) Log(suiteID, level, context, location string, timestamp time.Time, description string) {
	s.R.Log(LogEvent{Suite: suiteID, Level: LogLevel(level), Context: context, Location: location, Timestamp: timestamp, Description: description})
}

func (s Sink) Status(suiteID, kind, typ string, ancestry []string, description string) {
	s.R.Status(StatusEvent{Suite: suiteID, Kind: kind, Type: typ, Ancestry: ancestry, Description: description})
}

func (s Sink) Action(suiteID, kind, typ string, ancestry []string, errs []wire.ErrorDetail, durationMS int64, location, description string) {
	s.R.Action(ActionEvent{Suite: suiteID, Kind: kind, Type: typ, Ancestry: ancestry, Errors: errs, DurationMS: durationMS, Location: location, Description: description})
}

func (s Sink) SuiteError(suiteID, message, formatCode string, stacks []string) {
	s.R.SuiteError(SuiteErrorEvent{Suite: suiteID, Message: message, FormatCode: formatCode, Stacks: stacks})
}
