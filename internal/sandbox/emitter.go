package sandbox

import (
	"time"

	"github.com/xjet-run/engine/internal/lifecycle"
	"github.com/xjet-run/engine/internal/wire"
)

// wireEmitter adapts lifecycle.Engine's Emitter interface to the framed
// wire protocol: every Status/Action call is encoded with wire.Encode
// and handed to a sink func, the same "dispatch(bytes)" entry point the
// bundled JS code itself calls for log()/error() events it emits
// directly (see installDispatchRuntime in executor.go).
type wireEmitter struct {
	suiteID  wire.ID
	runnerID wire.ID
	sink     func(raw []byte)
}

func newWireEmitter(suiteID, runnerID wire.ID, sink func(raw []byte)) *wireEmitter {
	return &wireEmitter{suiteID: suiteID, runnerID: runnerID, sink: sink}
}

func (w *wireEmitter) emit(typ wire.Type, payload interface{}) {
	raw, err := wire.Encode(typ, w.suiteID, w.runnerID, payload)
	if err != nil {
		// Encoding failures here indicate a framework-internal bug;
		// there is no user-facing recovery, so the
		// payload is dropped and nothing is sent rather than risk a
		// panic tearing down the whole suite run.
		return
	}
	w.sink(raw)
}

func (w *wireEmitter) Status(kind lifecycle.EventKind, typ lifecycle.StatusType, ancestry []string, description string) {
	w.emit(wire.TypeStatus, wire.StatusPayload{
		Kind:        string(kind),
		Type:        string(typ),
		Ancestry:    ancestry,
		Description: description,
	})
}

func (w *wireEmitter) Action(kind lifecycle.EventKind, typ lifecycle.ActionType, ancestry []string, errs []error, duration time.Duration, loc *lifecycle.SourceLocation, description string) {
	location := ""
	if loc != nil {
		location = loc.File
	}
	w.emit(wire.TypeAction, wire.ActionPayload{
		Kind:        string(kind),
		Type:        string(typ),
		Ancestry:    ancestry,
		Errors:      wire.ErrorsToDetail(errs),
		DurationMS:  duration.Milliseconds(),
		Location:    location,
		Description: description,
	})
}

// Log emits a log() frame directly, bypassing the Engine (console.log
// calls inside a suite reach here via the console global, not through
// lifecycle.Emitter).
func (w *wireEmitter) Log(level, context, location, description string) {
	w.emit(wire.TypeLog, wire.LogPayload{
		Level:       level,
		Context:     context,
		Location:    location,
		TimestampMS: time.Now().UnixMilli(),
		Description: description,
	})
}

// Error emits an infrastructure-level suiteError() frame (sandbox
// initialization failure, uncaught VM error outside any test body).
func (w *wireEmitter) Error(message, formatCode string, stacks []string) {
	w.emit(wire.TypeError, wire.SuiteErrorPayload{
		Message:    message,
		FormatCode: formatCode,
		Stacks:     stacks,
	})
}
