package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/dop251/goja"

	"github.com/xjet-run/engine/internal/reporter"
	"github.com/xjet-run/engine/internal/sandbox"
	"github.com/xjet-run/engine/internal/wire"
	"github.com/xjet-run/engine/pkg/artifact"
)

// LocalTarget executes each artifact in a freshly constructed sandbox
// in the orchestrator's own process, one suite at a time, so
// ActiveTaskCount is never more than 1.
type LocalTarget struct {
	handler  *wire.Handler
	reporter reporter.Reporter
	timeout  int
	filter   []string
	random   bool
	seed     int64

	mu       sync.Mutex
	active   int
	handlers map[EventKind][]func(msg *wire.FramedMessage)

	// Resolve backs the sandbox's require(): given a specifier
	// relative to the orchestrator's module origin, it returns the
	// exported value or an error.
	Resolve func(specifier string) (goja.Value, error)
}

// NewLocalTarget builds a LocalTarget reporting through rep. timeoutMS,
// filters and randomize mirror the orchestrator's Config; seed fixes
// the Fisher-Yates shuffle when randomize is set.
func NewLocalTarget(rep reporter.Reporter, timeoutMS int, filters []string, randomize bool, seed int64) *LocalTarget {
	t := &LocalTarget{
		reporter: rep,
		timeout:  timeoutMS,
		filter:   filters,
		random:   randomize,
		seed:     seed,
		handlers: make(map[EventKind][]func(msg *wire.FramedMessage)),
	}
	t.handler = wire.NewHandler(reporter.Sink{R: rep})
	for _, k := range []wire.Type{wire.TypeLog, wire.TypeStatus, wire.TypeAction, wire.TypeError} {
		k := k
		t.handler.OnFrame(k, func(msg *wire.FramedMessage) { t.fanOut(k, msg) })
	}
	return t
}

func kindForWireType(t wire.Type) EventKind {
	switch t {
	case wire.TypeLog:
		return EventLog
	case wire.TypeStatus:
		return EventStatus
	case wire.TypeAction:
		return EventAction
	default:
		return EventError
	}
}

func (t *LocalTarget) fanOut(wt wire.Type, msg *wire.FramedMessage) {
	kind := kindForWireType(wt)
	t.mu.Lock()
	fns := append([]func(*wire.FramedMessage){}, t.handlers[kind]...)
	t.mu.Unlock()
	for _, fn := range fns {
		fn(msg)
	}
}

// Init is a no-op for LocalTarget: there are no runner handles to
// acquire, only per-suite VMs constructed lazily in ExecuteSuites.
func (t *LocalTarget) Init(ctx context.Context) error { return nil }

// ExecuteSuites runs every artifact sequentially, each in its own
// goja VM, blocking until its terminal describe-action frame has been
// emitted (sandbox.Execute does not return until the suite tree has
// finished running). A sandbox error in one suite is reported (via the
// error/action frames sandbox.Execute already emitted) but does not
// abort the remaining suites — each suite is its own error-isolation
// unit. ExecuteSuites returns the first such error only
// after every suite has run, so callers can still detect run-level
// failure.
func (t *LocalTarget) ExecuteSuites(ctx context.Context, artifacts map[string]artifact.SpecArtifact, rerun bool) error {
	var firstErr error
	for suiteID, art := range artifacts {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		t.mu.Lock()
		t.active++
		t.mu.Unlock()

		sid := wire.DeriveID(suiteID)
		rid := wire.ID{} // local execution has no remote runner; zero id.

		err := sandbox.Execute(art, sandbox.RunOptions{
			SuiteID:    sid,
			RunnerID:   rid,
			Timeout:    t.timeout,
			Filter:     t.filter,
			Randomize:  t.random,
			RandomSeed: t.seed,
			Require:    t.Resolve,
		}, func(raw []byte) {
			// A malformed frame is dropped here; it must not abort
			// the suite that emitted it.
			_ = t.handler.Dispatch(raw)
		})

		t.mu.Lock()
		t.active--
		t.mu.Unlock()

		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("suite %s: %w", suiteID, err)
		}
	}
	return firstErr
}

// ActiveTaskCount reports how many suites are currently executing (0
// or 1 for LocalTarget).
func (t *LocalTarget) ActiveTaskCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// On registers a handler for one event kind.
func (t *LocalTarget) On(kind EventKind, handler func(msg *wire.FramedMessage)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[kind] = append(t.handlers[kind], handler)
}

// Reporter returns the sink this target forwards decoded events to.
func (t *LocalTarget) Reporter() reporter.Reporter { return t.reporter }

// Shutdown is a no-op: LocalTarget disposes each VM as soon as its
// suite finishes (see sandbox.Execute's deferred vm.Dispose).
func (t *LocalTarget) Shutdown(ctx context.Context) error { return nil }

var _ Target = (*LocalTarget)(nil)
