package dispatch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/xjet-run/engine/internal/dispatch/runner"
	"github.com/xjet-run/engine/internal/queue"
	"github.com/xjet-run/engine/internal/reporter"
	"github.com/xjet-run/engine/internal/wire"
	"github.com/xjet-run/engine/pkg/artifact"
)

// RunnerConfig describes one remote execution endpoint ExternalTarget
// dispatches to.
type RunnerConfig struct {
	ID              string
	Address         string
	Concurrency     int
	DispatchTimeout time.Duration
	ConnectTimeout  time.Duration
}

type runnerState struct {
	cfg    RunnerConfig
	handle *runner.Handle
	down   bool
}

// ExternalTarget dispatches artifacts to a pool of remote runners over
// HTTP (dispatch) and a websocket event stream (connection), driving a
// bounded AsyncQueue sized to the sum of every runner's configured
// concurrency.
type ExternalTarget struct {
	reporter reporter.Reporter
	handler  *wire.Handler
	queue    *queue.AsyncQueue

	mu       sync.Mutex
	runners  map[string]*runnerState
	order    []string // stable iteration order for round-robin assignment
	handlers map[EventKind][]func(msg *wire.FramedMessage)

	completionsMu sync.Mutex
	completions   map[string]chan struct{} // suiteId -> signaled on terminal root action

	abortMu sync.Mutex
	aborts  map[string][]chan struct{} // runnerId -> abort signals for its still-pending suites
}

// NewExternalTarget builds an ExternalTarget over the given runner pool.
func NewExternalTarget(rep reporter.Reporter, runners []RunnerConfig) *ExternalTarget {
	t := &ExternalTarget{
		reporter:    rep,
		runners:     make(map[string]*runnerState, len(runners)),
		handlers:    make(map[EventKind][]func(msg *wire.FramedMessage)),
		completions: make(map[string]chan struct{}),
		aborts:      make(map[string][]chan struct{}),
	}
	total := 0
	for _, cfg := range runners {
		if cfg.Concurrency <= 0 {
			cfg.Concurrency = 1
		}
		total += cfg.Concurrency
		t.runners[cfg.ID] = &runnerState{
			cfg:    cfg,
			handle: runner.NewHandle(cfg.ID, cfg.Address, cfg.DispatchTimeout, cfg.ConnectTimeout),
		}
		t.order = append(t.order, cfg.ID)
	}
	sort.Strings(t.order)
	t.queue = queue.New(total)

	t.handler = wire.NewHandler(reporter.Sink{R: rep})
	for _, k := range []wire.Type{wire.TypeLog, wire.TypeStatus, wire.TypeAction, wire.TypeError} {
		k := k
		t.handler.OnFrame(k, func(msg *wire.FramedMessage) { t.fanOut(k, msg) })
	}
	return t
}

func (t *ExternalTarget) fanOut(wt wire.Type, msg *wire.FramedMessage) {
	kind := kindForWireType(wt)
	t.mu.Lock()
	fns := append([]func(*wire.FramedMessage){}, t.handlers[kind]...)
	t.mu.Unlock()
	for _, fn := range fns {
		fn(msg)
	}
}

// Init dials every runner's event-stream connection. A runner whose
// connection fails (or times out) within ConnectTimeout is marked
// unavailable: its pending tasks are removed from the queue via
// RemoveByRunner and reported as infrastructure errors, not failed
// tests.
func (t *ExternalTarget) Init(ctx context.Context) error {
	var wg sync.WaitGroup
	t.mu.Lock()
	ids := append([]string{}, t.order...)
	t.mu.Unlock()

	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			t.connectRunner(ctx, id)
		}(id)
	}
	wg.Wait()
	return nil
}

func (t *ExternalTarget) connectRunner(ctx context.Context, id string) {
	t.mu.Lock()
	rs := t.runners[id]
	t.mu.Unlock()
	if rs == nil {
		return
	}

	err := rs.handle.Connection(ctx, func(raw []byte) {
		t.onRunnerFrame(raw)
	}, id, func(disconnectErr error) {
		t.markDown(id, disconnectErr)
	})
	if err != nil {
		t.markDown(id, err)
	}
}

// markDown flags runner id unavailable, drains its pending queue
// entries and reports the loss as a suiteError.
func (t *ExternalTarget) markDown(id string, cause error) {
	t.mu.Lock()
	rs := t.runners[id]
	if rs != nil {
		rs.down = true
	}
	t.mu.Unlock()

	t.queue.RemoveByRunner(id)

	t.reporter.SuiteError(reporter.SuiteErrorEvent{
		Suite:   "",
		Message: fmt.Sprintf("runner %s unavailable: %v", id, cause),
	})

	// RemoveByRunner leaves the pending entries' queue completions
	// orphaned: the underlying Enqueue call for each never returns.
	// ExecuteSuites does not block forever on them — it races each
	// suite's wait against this abort signal so the overall call still
	// completes once every suite has either finished or been evicted
	// this way.
	t.abortMu.Lock()
	signals := t.aborts[id]
	delete(t.aborts, id)
	t.abortMu.Unlock()
	for _, ch := range signals {
		close(ch)
	}
}

func (t *ExternalTarget) registerAbort(runnerID, suiteID string) chan struct{} {
	ch := make(chan struct{})
	t.abortMu.Lock()
	t.aborts[runnerID] = append(t.aborts[runnerID], ch)
	t.abortMu.Unlock()
	return ch
}

// onRunnerFrame decodes a raw frame pushed back from a runner, routes
// it to the reporter, and — if it is the terminal root describe-action
// — signals the suite's completion channel so the dispatching task in
// ExecuteSuites can return.
func (t *ExternalTarget) onRunnerFrame(raw []byte) {
	msg, err := wire.Decode(raw)
	if err != nil {
		return
	}
	_ = t.handler.Dispatch(raw)

	if msg.Type != wire.TypeAction {
		return
	}
	payload, err := msg.DecodeAction()
	if err != nil || payload.Kind != "describe" || len(payload.Ancestry) != 0 {
		return
	}
	t.signalComplete(msg.SuiteID.String())
}

func (t *ExternalTarget) signalComplete(suiteID string) {
	t.completionsMu.Lock()
	ch, ok := t.completions[suiteID]
	t.completionsMu.Unlock()
	if ok {
		close(ch)
	}
}

func (t *ExternalTarget) completionChan(suiteID string) chan struct{} {
	t.completionsMu.Lock()
	defer t.completionsMu.Unlock()
	ch := make(chan struct{})
	t.completions[suiteID] = ch
	return ch
}

// ExecuteSuites assigns each artifact to a runner round-robin, enqueues
// one task per artifact tagged with its destination runnerId, starts
// the queue, and waits for every task to complete — where completion
// means the suite's terminal describe-action frame has arrived, not
// merely that the dispatch HTTP call returned.
func (t *ExternalTarget) ExecuteSuites(ctx context.Context, artifacts map[string]artifact.SpecArtifact, rerun bool) error {
	t.mu.Lock()
	available := make([]string, 0, len(t.order))
	for _, id := range t.order {
		if !t.runners[id].down {
			available = append(available, id)
		}
	}
	t.mu.Unlock()

	suiteIDs := make([]string, 0, len(artifacts))
	for id := range artifacts {
		suiteIDs = append(suiteIDs, id)
	}
	sort.Strings(suiteIDs)

	var wg sync.WaitGroup
	errCh := make(chan error, len(suiteIDs))

	for i, suiteID := range suiteIDs {
		art := artifacts[suiteID]

		if len(available) == 0 {
			t.reporter.SuiteError(reporter.SuiteErrorEvent{Suite: suiteID, Message: "no available runners"})
			continue
		}
		runnerID := available[i%len(available)]

		done := t.completionChan(wire.DeriveID(suiteID).String())
		abort := t.registerAbort(runnerID, suiteID)

		wg.Add(1)
		go func(suiteID, runnerID string, art artifact.SpecArtifact, done, abort chan struct{}) {
			defer wg.Done()

			enqueueResult := make(chan error, 1)
			go func() {
				enqueueResult <- t.queue.Enqueue(func() error {
					t.mu.Lock()
					rs := t.runners[runnerID]
					t.mu.Unlock()
					if rs == nil || rs.down {
						return fmt.Errorf("runner %s unavailable", runnerID)
					}
					if err := rs.handle.Dispatch(ctx, art, suiteID); err != nil {
						return err
					}
					select {
					case <-done:
						return nil
					case <-ctx.Done():
						return ctx.Err()
					}
				}, runnerID)
			}()

			select {
			case err := <-enqueueResult:
				if err != nil {
					errCh <- fmt.Errorf("suite %s on runner %s: %w", suiteID, runnerID, err)
				}
			case <-abort:
				errCh <- fmt.Errorf("suite %s on runner %s: evicted, runner disconnected before dispatch", suiteID, runnerID)
			}
		}(suiteID, runnerID, art, done, abort)
	}

	t.queue.Start()
	wg.Wait()
	close(errCh)

	var firstErr error
	for err := range errCh {
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ActiveTaskCount reports the queue's currently running task count.
func (t *ExternalTarget) ActiveTaskCount() int { return t.queue.ActiveCount() }

// On registers a handler for one event kind.
func (t *ExternalTarget) On(kind EventKind, handler func(msg *wire.FramedMessage)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[kind] = append(t.handlers[kind], handler)
}

// Reporter returns the sink this target forwards decoded events to.
func (t *ExternalTarget) Reporter() reporter.Reporter { return t.reporter }

// Shutdown disconnects every runner handle.
func (t *ExternalTarget) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	var firstErr error
	for _, rs := range t.runners {
		if err := rs.handle.Disconnect(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ Target = (*ExternalTarget)(nil)
