// Package dispatch implements the Target abstraction: a uniform
// interface the orchestrator drives, backed either by an in-process
// sandbox (LocalTarget, see internal/sandbox) or a pool of remote
// runners (ExternalTarget, see internal/dispatch/runner).
package dispatch

import (
	"context"

	"github.com/xjet-run/engine/internal/reporter"
	"github.com/xjet-run/engine/internal/wire"
	"github.com/xjet-run/engine/pkg/artifact"
)

// EventKind is the event_kind vocabulary a Target emits on.
type EventKind string

const (
	EventLog    EventKind = "log"
	EventStatus EventKind = "status"
	EventAction EventKind = "action"
	EventError  EventKind = "error"
)

// Target is implemented by LocalTarget and ExternalTarget.
type Target interface {
	// Init acquires whatever resources the target needs (runner
	// handles, event streams) before ExecuteSuites can be called.
	Init(ctx context.Context) error

	// ExecuteSuites runs every artifact, keyed by suite id, and
	// completes only once each suite has emitted its terminal
	// describe-level action event.
	ExecuteSuites(ctx context.Context, artifacts map[string]artifact.SpecArtifact, rerun bool) error

	// ActiveTaskCount supports the orchestrator's watch loop.
	ActiveTaskCount() int

	// On registers a handler for one event kind. Handlers registered
	// for different kinds are independent; within one kind, delivery
	// is ordered per (suiteId, runnerId) but not across suites.
	On(kind EventKind, handler func(msg *wire.FramedMessage))

	// Reporter returns the sink events are ultimately forwarded to,
	// wired at construction time.
	Reporter() reporter.Reporter

	// Shutdown releases target-held resources (runner connections,
	// sandbox VMs).
	Shutdown(ctx context.Context) error
}
