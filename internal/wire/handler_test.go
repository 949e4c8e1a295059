package wire

import (
	"testing"
	"time"
)

type recordingSink struct {
	logs     []string
	statuses []string
	actions  []string
	errors   []string
}

func (r *recordingSink) Log(suiteID, level, context, location string, timestamp time.Time, description string) {
	r.logs = append(r.logs, description)
}

func (r *recordingSink) Status(suiteID, kind, typ string, ancestry []string, description string) {
	r.statuses = append(r.statuses, typ)
}

func (r *recordingSink) Action(suiteID, kind, typ string, ancestry []string, errs []ErrorDetail, durationMS int64, location, description string) {
	r.actions = append(r.actions, typ)
}

func (r *recordingSink) SuiteError(suiteID, message, formatCode string, stacks []string) {
	r.errors = append(r.errors, message)
}

func TestHandlerRoutesByFrameType(t *testing.T) {
	sink := &recordingSink{}
	h := NewHandler(sink)

	suiteID, runnerID := NewID(), NewID()

	frames := [][]byte{}
	mustEncode := func(typ Type, payload interface{}) {
		raw, err := Encode(typ, suiteID, runnerID, payload)
		if err != nil {
			t.Fatal(err)
		}
		frames = append(frames, raw)
	}
	mustEncode(TypeLog, LogPayload{Level: "info", Description: "hello"})
	mustEncode(TypeStatus, StatusPayload{Kind: "test", Type: "START"})
	mustEncode(TypeAction, ActionPayload{Kind: "test", Type: "SUCCESS"})
	mustEncode(TypeError, SuiteErrorPayload{Message: "runner gone"})

	for _, raw := range frames {
		if err := h.Dispatch(raw); err != nil {
			t.Fatalf("Dispatch: %v", err)
		}
	}

	if len(sink.logs) != 1 || sink.logs[0] != "hello" {
		t.Errorf("logs = %v", sink.logs)
	}
	if len(sink.statuses) != 1 || sink.statuses[0] != "START" {
		t.Errorf("statuses = %v", sink.statuses)
	}
	if len(sink.actions) != 1 || sink.actions[0] != "SUCCESS" {
		t.Errorf("actions = %v", sink.actions)
	}
	if len(sink.errors) != 1 || sink.errors[0] != "runner gone" {
		t.Errorf("errors = %v", sink.errors)
	}
}

func TestHandlerInvokesListenersAfterSink(t *testing.T) {
	sink := &recordingSink{}
	h := NewHandler(sink)

	var seen []*FramedMessage
	h.OnFrame(TypeAction, func(msg *FramedMessage) { seen = append(seen, msg) })

	raw, err := Encode(TypeAction, NewID(), NewID(), ActionPayload{Kind: "describe", Type: "SUCCESS"})
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Dispatch(raw); err != nil {
		t.Fatal(err)
	}
	if len(seen) != 1 {
		t.Fatalf("expected 1 listener invocation, got %d", len(seen))
	}
	if len(sink.actions) != 1 {
		t.Fatalf("expected sink to also receive the frame")
	}
}

func TestHandlerRejectsShortFrame(t *testing.T) {
	h := NewHandler(&recordingSink{})
	if err := h.Dispatch([]byte{3, 0, 0}); err == nil {
		t.Fatal("expected an envelope decode error")
	}
}
