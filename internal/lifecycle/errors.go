package lifecycle

import "fmt"

// NestingError is raised when a directive is invoked from a scope where
// it isn't allowed (e.g. describe() called while a TestCase is running).
type NestingError struct {
	Directive string
	Reason    string
}

func (e *NestingError) Error() string {
	return fmt.Sprintf("%s: invalid nesting: %s", e.Directive, e.Reason)
}

func (e *NestingError) Name() string { return "NestingError" }

// FlagConflictError is raised at modifier-chain time when incompatible
// flags are combined (skip+only, skip+todo, skip+failing).
type FlagConflictError struct {
	Flags []string
}

func (e *FlagConflictError) Error() string {
	return fmt.Sprintf("conflicting test flags: %v", e.Flags)
}

func (e *FlagConflictError) Name() string { return "FlagConflictError" }

// TemplateShapeError is raised when a tagged-template .each() call's
// value count isn't a multiple of its heading count.
type TemplateShapeError struct {
	HeadingCount int
	ValueCount   int
}

func (e *TemplateShapeError) Error() string {
	return fmt.Sprintf("template shape mismatch: %d values is not a multiple of %d headings", e.ValueCount, e.HeadingCount)
}

func (e *TemplateShapeError) Name() string { return "TemplateShapeError" }

// TimeoutError is raised when a hook or test body does not complete
// within its configured timeout. The underlying operation is abandoned,
// not forcibly cancelled.
type TimeoutError struct {
	DurationMS   int
	Location     *SourceLocation
	ContextLabel string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("'%d' %s", e.DurationMS, e.ContextLabel)
}

func (e *TimeoutError) Name() string { return "TimeoutError" }

// FailingPassedError is raised when a test marked .failing completes
// without error — a test expected to fail that passed is itself a
// failure.
type FailingPassedError struct {
	Description string
}

func (e *FailingPassedError) Error() string {
	return fmt.Sprintf("test %q was marked failing but passed", e.Description)
}

func (e *FailingPassedError) Name() string { return "FailingPassedError" }

// HookError wraps an error raised by a beforeEach/afterEach/beforeAll/
// afterAll callback with the hook's kind for diagnostics.
type HookError struct {
	Kind HookKind
	Err  error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("%s hook failed: %v", e.Kind, e.Err)
}

func (e *HookError) Unwrap() error { return e.Err }

func (e *HookError) Name() string { return fmt.Sprintf("%sHookError", e.Kind) }
