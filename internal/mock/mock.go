// Package mock implements the per-call tracking state machine behind
// spy/stub behavior: recorded invocations, a one-shot implementation
// queue, and a globally monotonic invocation order counter shared
// across every mock in the process.
package mock

import (
	"reflect"
	"sync/atomic"
)

// invocationCounter orders invocations across every mock in the
// process, so interleaving between mocks is observable.
var invocationCounter int64

func nextInvocationOrder() int64 {
	return atomic.AddInt64(&invocationCounter, 1)
}

// ResultKind distinguishes how a recorded call completed.
type ResultKind int

const (
	// ResultIncomplete is a transient placeholder, overwritten once the
	// implementation returns (ResultReturn) or returns an error
	// (ResultThrow).
	ResultIncomplete ResultKind = iota
	ResultReturn
	ResultThrow
)

// Implementation is the function a State delegates to.
type Implementation func(args []interface{}, this interface{}) (interface{}, error)

// Call is one recorded invocation.
type Call struct {
	Args    []interface{}
	This    interface{}
	Result  interface{}
	Err     error
	Kind    ResultKind
	Order   int64
}

// State is the mutable state backing one mock function. It is not
// itself goroutine-safe beyond what the atomic invocation counter
// guarantees; mocks are registered and invoked from the single
// cooperative lifecycle goroutine.
type State struct {
	Calls     []Call
	Instances []interface{}

	defaultImpl Implementation
	onceQueue   []Implementation
	restoreFn   func()

	boundArgs    []interface{}
	boundThis    interface{}
	hasBoundThis bool

	lastArgs []interface{}
}

// New builds an empty mock State.
func New() *State {
	return &State{}
}

// WithRestore attaches the callback mockRestore invokes before
// resetting, typically a closure that re-installs the original
// implementation this mock replaced (e.g. jest.spyOn semantics).
func (s *State) WithRestore(fn func()) *State {
	s.restoreFn = fn
	return s
}

// Bind sets a bound-argument prefix and/or bound-this override applied
// ahead of every call.
func (s *State) Bind(args []interface{}, this interface{}) {
	s.boundArgs = args
	s.boundThis = this
	s.hasBoundThis = true
}

// Call executes the mock: step 1 consumes the one-shot queue if
// non-empty, falling back to the default implementation; step 2
// applies bound args/this; step 3 records the call and assigns a
// monotonic order; result variant starts Incomplete and is finalized
// before return.
func (s *State) Call(args []interface{}, this interface{}) (interface{}, error) {
	impl := s.defaultImpl
	if len(s.onceQueue) > 0 {
		impl = s.onceQueue[0]
		s.onceQueue = s.onceQueue[1:]
	}

	effectiveArgs := args
	if len(s.boundArgs) > 0 {
		effectiveArgs = append(append([]interface{}{}, s.boundArgs...), args...)
	}
	effectiveThis := this
	if s.hasBoundThis {
		effectiveThis = s.boundThis
	}

	s.lastArgs = effectiveArgs
	call := Call{Args: effectiveArgs, This: effectiveThis, Kind: ResultIncomplete, Order: nextInvocationOrder()}
	idx := len(s.Calls)
	s.Calls = append(s.Calls, call)

	if impl == nil {
		s.Calls[idx].Kind = ResultReturn
		return nil, nil
	}

	result, err := impl(effectiveArgs, effectiveThis)
	if err != nil {
		s.Calls[idx].Kind = ResultThrow
		s.Calls[idx].Err = err
		return nil, err
	}
	s.Calls[idx].Kind = ResultReturn
	s.Calls[idx].Result = result
	return result, nil
}

// CallAsConstructor behaves like Call but additionally records the
// produced instance: the result if it is a non-nil object-shaped
// value, else `this`.
func (s *State) CallAsConstructor(args []interface{}, this interface{}) (interface{}, error) {
	result, err := s.Call(args, this)
	if err != nil {
		return nil, err
	}
	instance := this
	if result != nil {
		switch reflect.ValueOf(result).Kind() {
		case reflect.Map, reflect.Struct, reflect.Ptr, reflect.Slice, reflect.Func:
			instance = result
		}
	}
	s.Instances = append(s.Instances, instance)
	return instance, nil
}

// MockClear resets tracking only: Calls, Instances, and lastArgs.
func (s *State) MockClear() {
	s.Calls = nil
	s.Instances = nil
	s.lastArgs = nil
}

// MockReset clears tracking and drops the one-shot implementation
// queue (but keeps the default implementation).
func (s *State) MockReset() {
	s.MockClear()
	s.onceQueue = nil
}

// MockRestore invokes the stored restore callback, then resets.
func (s *State) MockRestore() {
	if s.restoreFn != nil {
		s.restoreFn()
	}
	s.MockReset()
	s.defaultImpl = nil
}

// MockImplementation sets the default implementation.
func (s *State) MockImplementation(fn Implementation) {
	s.defaultImpl = fn
}

// MockImplementationOnce appends to the FIFO one-shot queue.
func (s *State) MockImplementationOnce(fn Implementation) {
	s.onceQueue = append(s.onceQueue, fn)
}

// MockReturnValue installs a default implementation that always
// returns v.
func (s *State) MockReturnValue(v interface{}) {
	s.defaultImpl = func([]interface{}, interface{}) (interface{}, error) { return v, nil }
}

// MockReturnValueOnce enqueues a one-shot implementation returning v.
func (s *State) MockReturnValueOnce(v interface{}) {
	s.MockImplementationOnce(func([]interface{}, interface{}) (interface{}, error) { return v, nil })
}

// Resolved wraps a value as a "resolved promise" — this engine has no
// native promise type, so it is represented as the tagged value a
// PromiseImpl-shaped caller recognizes.
type Resolved struct{ Value interface{} }

// Rejected wraps an error as a "rejected promise".
type Rejected struct{ Err error }

// MockResolvedValue installs a default implementation returning a
// Resolved-wrapped value.
func (s *State) MockResolvedValue(v interface{}) {
	s.defaultImpl = func([]interface{}, interface{}) (interface{}, error) { return Resolved{Value: v}, nil }
}

// MockResolvedValueOnce enqueues a one-shot Resolved-wrapped value.
func (s *State) MockResolvedValueOnce(v interface{}) {
	s.MockImplementationOnce(func([]interface{}, interface{}) (interface{}, error) { return Resolved{Value: v}, nil })
}

// MockRejectedValue installs a default implementation returning a
// Rejected-wrapped error.
func (s *State) MockRejectedValue(err error) {
	s.defaultImpl = func([]interface{}, interface{}) (interface{}, error) { return Rejected{Err: err}, nil }
}

// MockRejectedValueOnce enqueues a one-shot Rejected-wrapped error.
func (s *State) MockRejectedValueOnce(err error) {
	s.MockImplementationOnce(func([]interface{}, interface{}) (interface{}, error) { return Rejected{Err: err}, nil })
}

// LastArgs returns the most recent call's effective argument tuple.
func (s *State) LastArgs() []interface{} {
	return s.lastArgs
}
