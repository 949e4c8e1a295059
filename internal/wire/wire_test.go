package wire

import (
	"reflect"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	suiteID := NewID()
	runnerID := NewID()
	payload := StatusPayload{Kind: "test", Type: "START", Ancestry: []string{"a", "b"}, Description: "does a thing"}

	frame, err := Encode(TypeStatus, suiteID, runnerID, payload)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	msg, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if msg.Type != TypeStatus {
		t.Errorf("Type = %v, want %v", msg.Type, TypeStatus)
	}
	if msg.SuiteID != suiteID {
		t.Errorf("SuiteID mismatch")
	}
	if msg.RunnerID != runnerID {
		t.Errorf("RunnerID mismatch")
	}

	got, err := msg.DecodeStatus()
	if err != nil {
		t.Fatalf("DecodeStatus: %v", err)
	}
	if !reflect.DeepEqual(*got, payload) {
		t.Errorf("got %+v, want %+v", *got, payload)
	}
}

func TestDecodeRejectsShortFrame(t *testing.T) {
	if _, err := Decode([]byte{0, 1, 2}); err == nil {
		t.Fatal("expected error for short frame")
	}
}

func TestDistinctIDs(t *testing.T) {
	a, b := NewID(), NewID()
	if a == b {
		t.Fatal("expected distinct ids")
	}
}
