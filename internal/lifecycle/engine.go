package lifecycle

import (
	"context"
	"math/rand"
	"time"
)

// EventKind distinguishes describe-level from test-level lifecycle
// events, matching the wire protocol's `kind` field.
type EventKind string

const (
	EventDescribe EventKind = "describe"
	EventTest     EventKind = "test"
)

// StatusType is the non-terminal lifecycle status vocabulary.
type StatusType string

const (
	StatusStart StatusType = "START"
	StatusSkip  StatusType = "SKIP"
	StatusTodo  StatusType = "TODO"
	StatusEnd   StatusType = "END"
)

// ActionType is the terminal lifecycle outcome vocabulary.
type ActionType string

const (
	ActionSuccess ActionType = "SUCCESS"
	ActionFailure ActionType = "FAILURE"
)

// Emitter receives lifecycle events from the Engine. Implementations
// (see internal/sandbox) translate these into framed wire messages.
type Emitter interface {
	Status(kind EventKind, typ StatusType, ancestry []string, description string)
	Action(kind EventKind, typ ActionType, ancestry []string, errs []error, duration time.Duration, loc *SourceLocation, description string)
}

// Engine executes a registered suite tree against an ExecutionContext.
// It is single-threaded and cooperative: within one suite's execution,
// tests run sequentially and hook ordering is strict.
type Engine struct {
	Emitter   Emitter
	Randomize bool
	Rand      *rand.Rand
	OnlyMode  bool

	registrar *Registrar
}

// NewEngine builds an Engine. rngSeed is used only when randomize is
// true; callers that need reproducible runs should pass a fixed seed.
func NewEngine(emitter Emitter, randomize bool, onlyMode bool, rngSeed int64) *Engine {
	return &Engine{
		Emitter:   emitter,
		Randomize: randomize,
		OnlyMode:  onlyMode,
		Rand:      rand.New(rand.NewSource(rngSeed)),
	}
}

// BindRegistrar associates r with the engine so the nesting guard
// (describe/test invoked while a TestCase is running fails with
// NestingError) sees a test as "currently running" for the duration of
// its beforeEach/body/afterEach window. Optional: an engine with no
// bound registrar simply never flags the guard.
func (e *Engine) BindRegistrar(r *Registrar) { e.registrar = r }

// RunSuite executes suite and its children against execCtx: status,
// beforeAll hooks, direct tests, child suites, afterAll hooks, then
// the terminal action. execCtx is shared across the
// whole recursion; this call saves and restores its BeforeAllErrors/
// AfterAllErrors around its own scope so a suite's errors cascade to
// its descendants (shared buffer, read before each beforeAll) but never
// leak sideways to its siblings (restored on exit).
func (e *Engine) RunSuite(suite *SuiteDescribe, execCtx *ExecutionContext) {
	if suite.Flags.Skip {
		e.Emitter.Status(EventDescribe, StatusSkip, suite.Ancestry, suite.Name)
	} else {
		e.Emitter.Status(EventDescribe, StatusStart, suite.Ancestry, suite.Name)
	}

	savedBeforeAll := execCtx.BeforeAllErrors
	savedAfterAll := execCtx.AfterAllErrors

	if len(execCtx.BeforeAllErrors) == 0 {
		for _, hook := range suite.Hooks[HookBeforeAll] {
			if err := e.runWithTimeout(hook.Callback, &Context{Suite: suite}, hook.TimeoutMS, hook.SourceLocation, "hook"); err != nil {
				execCtx.BeforeAllErrors = append(execCtx.BeforeAllErrors, &HookError{Kind: HookBeforeAll, Err: err})
			}
		}
	}

	tests := suite.Tests
	if e.Randomize {
		tests = shuffledCopy(tests, e.Rand)
	}
	for _, t := range tests {
		e.runTest(t, suite, execCtx)
	}

	for _, child := range suite.Children {
		e.RunSuite(child, execCtx)
	}

	for _, hook := range suite.Hooks[HookAfterAll] {
		if err := e.runWithTimeout(hook.Callback, &Context{Suite: suite}, hook.TimeoutMS, hook.SourceLocation, "hook"); err != nil {
			execCtx.AfterAllErrors = append(execCtx.AfterAllErrors, &HookError{Kind: HookAfterAll, Err: err})
		}
	}

	if len(execCtx.AfterAllErrors) == 0 {
		e.Emitter.Action(EventDescribe, ActionSuccess, suite.Ancestry, nil, 0, nil, suite.Name)
	} else {
		e.Emitter.Action(EventDescribe, ActionFailure, suite.Ancestry, execCtx.AfterAllErrors, 0, nil, suite.Name)
	}

	execCtx.BeforeAllErrors = savedBeforeAll
	execCtx.AfterAllErrors = savedAfterAll
}

func shuffledCopy(tests []*TestCase, r *rand.Rand) []*TestCase {
	out := append([]*TestCase{}, tests...)
	r.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func (e *Engine) runTest(t *TestCase, suite *SuiteDescribe, execCtx *ExecutionContext) {
	e.Emitter.Status(EventTest, StatusStart, t.Ancestry, t.Description)

	if len(execCtx.BeforeAllErrors) > 0 {
		e.Emitter.Action(EventTest, ActionFailure, t.Ancestry, execCtx.BeforeAllErrors, 0, t.SourceLocation, t.Description)
		return
	}

	switch {
	case e.OnlyMode && !t.Flags.Only:
		e.Emitter.Status(EventTest, StatusSkip, t.Ancestry, t.Description)
		return
	case t.Flags.Todo:
		e.Emitter.Status(EventTest, StatusTodo, t.Ancestry, t.Description)
		return
	case t.Flags.Skip:
		e.Emitter.Status(EventTest, StatusSkip, t.Ancestry, t.Description)
		return
	}

	tc := &Context{Suite: suite, Test: t}
	start := time.Now()

	if e.registrar != nil {
		e.registrar.running = t
		defer func() { e.registrar.running = nil }()
	}

	var hookErr error
	for _, hook := range suite.Hooks[HookBeforeEach] {
		if err := e.runWithTimeout(hook.Callback, tc, hook.TimeoutMS, hook.SourceLocation, "hook"); err != nil {
			hookErr = &HookError{Kind: HookBeforeEach, Err: err}
			break
		}
	}

	var bodyErr error
	if hookErr == nil && t.Implementation != nil {
		bodyErr = e.runWithTimeout(t.Implementation, tc, t.TimeoutMS, t.SourceLocation, "test")
	}

	var afterErrs []error
	for i := len(suite.Hooks[HookAfterEach]) - 1; i >= 0; i-- {
		hook := suite.Hooks[HookAfterEach][i]
		if err := e.runWithTimeout(hook.Callback, tc, hook.TimeoutMS, hook.SourceLocation, "hook"); err != nil {
			afterErrs = append(afterErrs, &HookError{Kind: HookAfterEach, Err: err})
		}
	}

	var errs []error
	switch {
	case hookErr != nil:
		errs = append(errs, hookErr)
	case bodyErr != nil:
		errs = append(errs, bodyErr)
	}
	errs = append(errs, afterErrs...)

	if t.Flags.Failing && hookErr == nil {
		if bodyErr == nil {
			errs = append(errs, &FailingPassedError{Description: t.Description})
		} else {
			// Expected-to-fail and the body did: that error is the
			// expected outcome, not a failure. Hook errors are never
			// part of the expectation, and afterEach errors (if any)
			// still count against the test.
			errs = afterErrs
		}
	}

	duration := time.Since(start)
	if len(errs) == 0 {
		e.Emitter.Action(EventTest, ActionSuccess, t.Ancestry, nil, duration, t.SourceLocation, t.Description)
	} else {
		e.Emitter.Action(EventTest, ActionFailure, t.Ancestry, errs, duration, t.SourceLocation, t.Description)
	}
}

// runWithTimeout races impl against timeoutMS (0 = no timeout) and
// returns a *TimeoutError on expiry. The underlying goroutine is not
// forcibly killed, only signaled cooperatively via ctx.Done(); the
// abandoned operation may continue in the background.
func (e *Engine) runWithTimeout(impl Implementation, tc *Context, timeoutMS int, loc *SourceLocation, label string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- panicToError(r)
			}
		}()
		done <- impl.Invoke(ctx, tc)
	}()

	if timeoutMS <= 0 {
		return <-done
	}

	timer := time.NewTimer(time.Duration(timeoutMS) * time.Millisecond)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return &TimeoutError{DurationMS: timeoutMS, Location: loc, ContextLabel: label}
	}
}

func panicToError(r interface{}) error {
	if err, ok := r.(error); ok {
		return err
	}
	return &PanicError{Value: r}
}

// PanicError wraps a recovered panic value from a hook or test body.
type PanicError struct {
	Value interface{}
}

func (e *PanicError) Error() string {
	return "panic: " + toDisplayString(e.Value)
}

func (e *PanicError) Name() string { return "PanicError" }

func toDisplayString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	if stringer, ok := v.(interface{ String() string }); ok {
		return stringer.String()
	}
	return jsonEncode(v)
}
