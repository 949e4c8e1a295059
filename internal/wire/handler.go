package wire

import (
	"fmt"
	"sync"
	"time"
)

// Sink is the subset of reporter.Reporter the MessageHandler needs.
// Defined locally (rather than importing internal/reporter) so this
// package has no dependency on the reporter's event-struct shapes;
// callers adapt.
type Sink interface {
	Log(suiteID string, level, context, location string, timestamp time.Time, description string)
	Status(suiteID string, kind, typ string, ancestry []string, description string)
	Action(suiteID string, kind, typ string, ancestry []string, errs []ErrorDetail, durationMS int64, location, description string)
	SuiteError(suiteID string, message, formatCode string, stacks []string)
}

// Handler decodes raw frames and dispatches them to a Sink, plus any
// per-kind listeners registered via OnFrame (the mechanism backing
// dispatch.Target.On). One Handler instance serves an entire run;
// frames from different suites may arrive concurrently so dispatch is
// mutex-guarded only around the listener slice; the Sink itself must
// tolerate concurrent invocation.
type Handler struct {
	sink Sink

	mu        sync.Mutex
	listeners map[Type][]func(*FramedMessage)
}

// NewHandler builds a Handler forwarding decoded frames to sink.
func NewHandler(sink Sink) *Handler {
	return &Handler{sink: sink, listeners: make(map[Type][]func(*FramedMessage))}
}

// OnFrame registers a listener invoked after a frame of typ has been
// forwarded to the Sink.
func (h *Handler) OnFrame(typ Type, fn func(*FramedMessage)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners[typ] = append(h.listeners[typ], fn)
}

// Dispatch decodes raw and routes it to the Sink and any listeners.
// Errors decoding the envelope are returned; malformed payloads for a
// known type are reported via SuiteError rather than propagated,
// since one malformed frame must not abort the run.
func (h *Handler) Dispatch(raw []byte) error {
	msg, err := Decode(raw)
	if err != nil {
		return err
	}

	var payloadErr error
	switch msg.Type {
	case TypeLog:
		if p, err := msg.DecodeLog(); err == nil {
			h.sink.Log(msg.SuiteID.String(), p.Level, p.Context, p.Location, time.UnixMilli(p.TimestampMS), p.Description)
		} else {
			payloadErr = err
		}
	case TypeStatus:
		if p, err := msg.DecodeStatus(); err == nil {
			h.sink.Status(msg.SuiteID.String(), p.Kind, p.Type, p.Ancestry, p.Description)
		} else {
			payloadErr = err
		}
	case TypeAction:
		if p, err := msg.DecodeAction(); err == nil {
			h.sink.Action(msg.SuiteID.String(), p.Kind, p.Type, p.Ancestry, p.Errors, p.DurationMS, p.Location, p.Description)
		} else {
			payloadErr = err
		}
	case TypeError:
		if p, err := msg.DecodeSuiteError(); err == nil {
			h.sink.SuiteError(msg.SuiteID.String(), p.Message, p.FormatCode, p.Stacks)
		} else {
			payloadErr = err
		}
	}
	if payloadErr != nil {
		h.sink.SuiteError(msg.SuiteID.String(), fmt.Sprintf("malformed %v payload: %v", msg.Type, payloadErr), "", nil)
	}

	h.mu.Lock()
	fns := append([]func(*FramedMessage){}, h.listeners[msg.Type]...)
	h.mu.Unlock()
	for _, fn := range fns {
		fn(msg)
	}
	return nil
}
