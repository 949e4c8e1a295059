// Package lifecycle implements the suite/test data model and the
// hierarchical lifecycle engine: registration of describe/test/hook
// nodes, parameterized expansion, flag propagation, and ordered
// execution with timeout enforcement.
package lifecycle

import "context"

// HookKind identifies where in a suite's lifecycle a hook runs.
type HookKind string

const (
	HookBeforeAll  HookKind = "beforeAll"
	HookBeforeEach HookKind = "beforeEach"
	HookAfterEach  HookKind = "afterEach"
	HookAfterAll   HookKind = "afterAll"
)

// SourceLocation pinpoints a registration site in the original (pre-bundle)
// source, used both for reporting and for the stack decorator.
type SourceLocation struct {
	File   string
	Line   int
	Column int
}

// Flags are the describe-level skip/only latches. They are idempotently
// mergeable: OR-assigned from parent to child, never cleared.
type Flags struct {
	Skip bool
	Only bool
}

// TestFlags extends Flags with the per-test todo/failing modifiers.
type TestFlags struct {
	Skip    bool
	Only    bool
	Todo    bool
	Failing bool
}

// Context is the explicit first parameter threaded through hook and
// test bodies, in place of a dynamically bound receiver.
type Context struct {
	Suite *SuiteDescribe
	Test  *TestCase
}

// Implementation is a registered hook or test body. Three concrete
// implementations model the source DSL's arity-based dispatch as an
// explicit tagged sum: SyncImpl, PromiseImpl, CallbackImpl.
type Implementation interface {
	Invoke(ctx context.Context, tc *Context) error
}

// SyncImpl wraps a synchronous body.
type SyncImpl func(tc *Context) error

func (f SyncImpl) Invoke(_ context.Context, tc *Context) error { return f(tc) }

// PromiseImpl wraps a body whose completion is signaled by a channel,
// the Go analogue of a promise-returning test body.
type PromiseImpl func(tc *Context) <-chan error

func (f PromiseImpl) Invoke(ctx context.Context, tc *Context) error {
	select {
	case err := <-f(tc):
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CallbackImpl wraps a body that signals completion by invoking `done`,
// the Go analogue of the one- or two-argument callback-style test body.
type CallbackImpl func(tc *Context, done func(error))

func (f CallbackImpl) Invoke(ctx context.Context, tc *Context) error {
	result := make(chan error, 1)
	f(tc, func(err error) {
		select {
		case result <- err:
		default:
		}
	})
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HookModel is one registered lifecycle hook.
type HookModel struct {
	Kind           HookKind
	Callback       Implementation
	TimeoutMS      int
	SourceLocation *SourceLocation
}

// TestCase is one declared unit of behavior.
type TestCase struct {
	Description    string
	Implementation Implementation // nil => todo
	Parameters     map[string]interface{}
	Flags          TestFlags
	TimeoutMS      int
	Ancestry       []string
	SourceLocation *SourceLocation
}

// SuiteDescribe is a named container of tests, hooks and nested suites.
//
// Ownership: BeforeAll/AfterAll hooks belong solely to the declaring
// suite. BeforeEach/AfterEach hooks are snapshotted from the parent at
// the moment a child suite is registered (see Registrar.Describe) —
// later additions to the parent's hook lists do not propagate.
type SuiteDescribe struct {
	Name     string
	Ancestry []string
	Hooks    map[HookKind][]*HookModel
	Children []*SuiteDescribe
	Tests    []*TestCase
	Flags    Flags
	Parent   *SuiteDescribe
}

func newSuite(name string, parent *SuiteDescribe) *SuiteDescribe {
	return &SuiteDescribe{
		Name:   name,
		Hooks:  make(map[HookKind][]*HookModel),
		Parent: parent,
	}
}

// ExecutionContext accumulates beforeAll/afterAll hook errors across one
// root-suite run. It is created once per run and passed by reference
// down the recursion; RunSuite saves and restores it around each
// describe's own scope so that one suite's errors never leak to its
// siblings (see Engine.RunSuite).
type ExecutionContext struct {
	BeforeAllErrors []error
	AfterAllErrors  []error
}
