package lifecycle

import "regexp"

// Registrar translates the describe/test/hook directive surface into
// the typed model below. It is an explicit handle rather than global
// mutable state: one Registrar is created per sandboxed artifact
// execution (see internal/sandbox), so the registration phase is
// owned by exactly one goroutine.
type Registrar struct {
	Root    *SuiteDescribe
	current *SuiteDescribe
	running *TestCase // non-nil while a test body is executing

	onlyMode bool

	// filters, compiled once, anchored full-match per description.
	filters []*regexp.Regexp
}

// NewRegistrar creates a fresh registration scope. filterPatterns are
// raw regex source strings from the runtime's filter configuration;
// each is anchored as ^pattern$ and matched against full test
// descriptions.
func NewRegistrar(filterPatterns []string) (*Registrar, error) {
	root := newSuite("", nil)
	r := &Registrar{Root: root, current: root}
	for _, p := range filterPatterns {
		re, err := regexp.Compile("^(?:" + p + ")$")
		if err != nil {
			return nil, err
		}
		r.filters = append(r.filters, re)
	}
	return r, nil
}

// OnlyMode reports whether any registered describe or test carries
// only=true. It is a monotonic latch for the lifetime of the Registrar.
func (r *Registrar) OnlyMode() bool { return r.onlyMode }

func (r *Registrar) matchesFilter(description string) bool {
	for _, re := range r.filters {
		if re.MatchString(description) {
			return true
		}
	}
	return false
}

// Describe registers a new suite, invokes body synchronously so it can
// register nested describes/tests/hooks, then restores the current
// scope. flags are OR-merged with the parent's effective flags at
// registration time (the "idempotent OR-assignment" invariant).
func (r *Registrar) Describe(name string, flags Flags, body func() error) error {
	if r.running != nil {
		return &NestingError{Directive: "describe", Reason: "cannot register a suite while a test is running"}
	}

	parent := r.current
	suite := newSuite(name, parent)
	suite.Ancestry = append(append([]string{}, parent.Ancestry...), name)
	suite.Flags = Flags{
		Skip: flags.Skip || parent.Flags.Skip,
		Only: flags.Only || parent.Flags.Only,
	}
	if suite.Flags.Only {
		r.onlyMode = true
	}

	// Snapshot beforeEach/afterEach from the parent at this instant;
	// later additions to parent.Hooks do not propagate (see model.go).
	suite.Hooks[HookBeforeEach] = append([]*HookModel{}, parent.Hooks[HookBeforeEach]...)
	suite.Hooks[HookAfterEach] = append([]*HookModel{}, parent.Hooks[HookAfterEach]...)

	parent.Children = append(parent.Children, suite)

	r.current = suite
	err := body()
	r.current = parent
	return err
}

// TestOptions carries the chain-built modifier state plus timeout for a
// single Test() registration.
type TestOptions struct {
	Flags     TestFlags
	TimeoutMS int
}

// Test registers a TestCase in the current suite. impl == nil marks
// the test as todo regardless of the Todo flag.
func (r *Registrar) Test(description string, impl Implementation, opts TestOptions, loc *SourceLocation) (*TestCase, error) {
	if r.running != nil {
		return nil, &NestingError{Directive: "test", Reason: "cannot register a test while another test is running"}
	}

	flags := opts.Flags
	if impl == nil {
		flags.Todo = true
	}
	flags.Skip = flags.Skip || r.current.Flags.Skip
	flags.Only = flags.Only || r.current.Flags.Only
	if r.matchesFilter(description) {
		flags.Only = true
	}
	if flags.Only {
		r.onlyMode = true
	}

	tc := &TestCase{
		Description:    description,
		Implementation: impl,
		Flags:          flags,
		TimeoutMS:      opts.TimeoutMS,
		Ancestry:       append(append([]string{}, r.current.Ancestry...), description),
		SourceLocation: loc,
	}
	r.current.Tests = append(r.current.Tests, tc)
	return tc, nil
}

func (r *Registrar) addHook(kind HookKind, impl Implementation, timeoutMS int, loc *SourceLocation) {
	hook := &HookModel{Kind: kind, Callback: impl, TimeoutMS: timeoutMS, SourceLocation: loc}
	r.current.Hooks[kind] = append(r.current.Hooks[kind], hook)
}

func (r *Registrar) BeforeAll(impl Implementation, timeoutMS int, loc *SourceLocation) {
	r.addHook(HookBeforeAll, impl, timeoutMS, loc)
}

func (r *Registrar) AfterAll(impl Implementation, timeoutMS int, loc *SourceLocation) {
	r.addHook(HookAfterAll, impl, timeoutMS, loc)
}

func (r *Registrar) BeforeEach(impl Implementation, timeoutMS int, loc *SourceLocation) {
	r.addHook(HookBeforeEach, impl, timeoutMS, loc)
}

func (r *Registrar) AfterEach(impl Implementation, timeoutMS int, loc *SourceLocation) {
	r.addHook(HookAfterEach, impl, timeoutMS, loc)
}
