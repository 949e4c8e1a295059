// Package wire implements the framed event protocol: a fixed-width
// header (type, suiteId, runnerId) followed by a JSON-encoded payload,
// used to stream lifecycle events from a dispatch Target back to the
// orchestrator.
package wire

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// IDLen fixes the suite/runner id byte width at 16 bytes, the width of
// a uuid.UUID. Both ends of the protocol depend on this constant.
const IDLen = 16

// Type is the one-byte frame discriminator.
type Type byte

const (
	TypeLog    Type = 0
	TypeStatus Type = 1
	TypeError  Type = 2
	TypeAction Type = 3
)

func (t Type) String() string {
	switch t {
	case TypeLog:
		return "log"
	case TypeStatus:
		return "status"
	case TypeError:
		return "error"
	case TypeAction:
		return "action"
	default:
		return fmt.Sprintf("Type(%d)", t)
	}
}

// ID is a fixed-width opaque identifier (a suite or runner id).
type ID [IDLen]byte

// NewID generates a fresh random ID.
func NewID() ID {
	var id ID
	u := uuid.New()
	copy(id[:], u[:])
	return id
}

// DeriveID deterministically derives a 16-byte ID from a string key (a
// discovery-layer suite path, a configured runner id). Used instead of
// NewID wherever the same logical suite/runner must map to the same
// wire id across dispatches (reruns, the ExternalTarget's per-runner
// demux matching the orchestrator's view of a suite to the runner's).
func DeriveID(key string) ID {
	var id ID
	h1 := fnvHash(key, 14695981039346656037)
	h2 := fnvHash(key, 14695981039346656037^1099511628211)
	for i := 0; i < 8; i++ {
		id[i] = byte(h1 >> (8 * uint(i)))
		id[i+8] = byte(h2 >> (8 * uint(i)))
	}
	return id
}

func fnvHash(s string, seed uint64) uint64 {
	h := seed
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 1099511628211
	}
	return h
}

func (id ID) String() string {
	return uuid.UUID(id).String()
}

// LogPayload carries one log() reporter event.
type LogPayload struct {
	Level       string `json:"level"`
	Context     string `json:"context,omitempty"`
	Location    string `json:"location,omitempty"`
	TimestampMS int64  `json:"timestampMs"`
	Description string `json:"description"`
}

// StatusPayload carries one non-terminal status() reporter event.
type StatusPayload struct {
	Kind        string   `json:"kind"`
	Type        string   `json:"type"`
	Ancestry    []string `json:"ancestry"`
	Description string   `json:"description"`
}

// ErrorDetail is the error-as-data shape crossing the sandbox
// boundary: an Error-like value flattened to its own properties plus
// name/message/stack, with no prototype traversal assumed.
type ErrorDetail struct {
	Name            string `json:"name"`
	Message         string `json:"message"`
	Stack           string `json:"stack,omitempty"`
	FormattedStack  string `json:"formattedStack,omitempty"`
	Location        string `json:"location,omitempty"`
	SourceMapRef    string `json:"sourceMapReference,omitempty"`
}

// ActionPayload carries one terminal action() reporter event.
type ActionPayload struct {
	Kind        string        `json:"kind"`
	Type        string        `json:"type"`
	Ancestry    []string      `json:"ancestry"`
	Errors      []ErrorDetail `json:"errors,omitempty"`
	DurationMS  int64         `json:"durationMs"`
	Location    string        `json:"location,omitempty"`
	Description string        `json:"description"`
}

// SuiteErrorPayload carries an infrastructure-level suiteError() event
// (sandbox init failure, uncaught VM error). Runner disconnects and
// transpile errors reach the reporter directly, not as frames.
type SuiteErrorPayload struct {
	Message    string   `json:"message"`
	FormatCode string   `json:"formatCode,omitempty"`
	Stacks     []string `json:"stacks,omitempty"`
}

// FramedMessage is one decoded frame: header plus raw JSON payload.
type FramedMessage struct {
	Type     Type
	SuiteID  ID
	RunnerID ID
	Payload  []byte
}

// Encode serializes a frame: 1-byte type, IDLen bytes suiteId, IDLen
// bytes runnerId, then the JSON-marshaled payload.
func Encode(typ Type, suiteID, runnerID ID, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode wire payload: %w", err)
	}
	buf := make([]byte, 0, 1+IDLen+IDLen+len(body))
	buf = append(buf, byte(typ))
	buf = append(buf, suiteID[:]...)
	buf = append(buf, runnerID[:]...)
	buf = append(buf, body...)
	return buf, nil
}

// Decode parses a frame produced by Encode. Decode(Encode(type,
// payload)) must reproduce (type, payload) exactly.
func Decode(data []byte) (*FramedMessage, error) {
	minLen := 1 + IDLen + IDLen
	if len(data) < minLen {
		return nil, fmt.Errorf("frame too short: %d bytes, need at least %d", len(data), minLen)
	}
	msg := &FramedMessage{Type: Type(data[0])}
	copy(msg.SuiteID[:], data[1:1+IDLen])
	copy(msg.RunnerID[:], data[1+IDLen:1+2*IDLen])
	msg.Payload = append([]byte(nil), data[minLen:]...)
	return msg, nil
}

// DecodeLog, DecodeStatus, DecodeAction, DecodeSuiteError unmarshal a
// frame's payload according to its declared Type.
func (m *FramedMessage) DecodeLog() (*LogPayload, error) {
	var p LogPayload
	if err := json.Unmarshal(m.Payload, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (m *FramedMessage) DecodeStatus() (*StatusPayload, error) {
	var p StatusPayload
	if err := json.Unmarshal(m.Payload, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (m *FramedMessage) DecodeAction() (*ActionPayload, error) {
	var p ActionPayload
	if err := json.Unmarshal(m.Payload, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (m *FramedMessage) DecodeSuiteError() (*SuiteErrorPayload, error) {
	var p SuiteErrorPayload
	if err := json.Unmarshal(m.Payload, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ErrorsToDetail converts a slice of Go errors into the wire's
// ErrorDetail shape, the boundary where internal error types (e.g.
// lifecycle.TimeoutError) become plain property bags.
func ErrorsToDetail(errs []error) []ErrorDetail {
	out := make([]ErrorDetail, 0, len(errs))
	for _, e := range errs {
		out = append(out, ErrorDetail{
			Name:    errorName(e),
			Message: e.Error(),
		})
	}
	return out
}

func errorName(err error) string {
	type named interface{ Name() string }
	if n, ok := err.(named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", err)
}
