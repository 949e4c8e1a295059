package sandbox

import (
	"fmt"

	"github.com/dop251/goja"

	"github.com/xjet-run/engine/internal/lifecycle"
)

// Bridge wires the lifecycle registration directives (describe, test,
// beforeEach, ...) into a VM's globals, bound to one Registrar.
type Bridge struct {
	vm  *VM
	reg *lifecycle.Registrar
}

// NewBridge builds a Bridge; Install puts its globals onto a runtime.
func NewBridge(vm *VM, reg *lifecycle.Registrar) *Bridge {
	b := &Bridge{vm: vm, reg: reg}
	return b
}

// Install registers describe/test/hooks globals on rt.
func (b *Bridge) Install(rt *goja.Runtime) error {
	describeObj := rt.ToValue(b.describe(rt, lifecycle.Flags{})).(*goja.Object)
	describeObj.Set("skip", b.describe(rt, lifecycle.Flags{Skip: true}))
	describeObj.Set("only", b.describe(rt, lifecycle.Flags{Only: true}))
	if err := rt.Set("describe", describeObj); err != nil {
		return err
	}
	if err := rt.Set("beforeAll", b.hook(rt, lifecycle.HookBeforeAll)); err != nil {
		return err
	}
	if err := rt.Set("afterAll", b.hook(rt, lifecycle.HookAfterAll)); err != nil {
		return err
	}
	if err := rt.Set("beforeEach", b.hook(rt, lifecycle.HookBeforeEach)); err != nil {
		return err
	}
	if err := rt.Set("afterEach", b.hook(rt, lifecycle.HookAfterEach)); err != nil {
		return err
	}

	testObj, err := b.testDirective(rt)
	if err != nil {
		return err
	}
	if err := rt.Set("test", testObj); err != nil {
		return err
	}
	return rt.Set("it", testObj)
}

func (b *Bridge) describe(rt *goja.Runtime, flags lifecycle.Flags) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		fn, ok := goja.AssertFunction(call.Argument(1))
		if !ok {
			panic(rt.NewTypeError("describe requires a function body"))
		}
		err := b.reg.Describe(name, flags, func() error {
			_, callErr := fn(goja.Undefined())
			return callErr
		})
		if err != nil {
			panic(rt.NewGoError(err))
		}
		return goja.Undefined()
	}
}

func (b *Bridge) hook(rt *goja.Runtime, kind lifecycle.HookKind) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		fn, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			panic(rt.NewTypeError(fmt.Sprintf("%s requires a function", kind)))
		}
		impl := wrapImplementation(b.vm, rt, call.Argument(0), fn)
		switch kind {
		case lifecycle.HookBeforeAll:
			b.reg.BeforeAll(impl, 0, nil)
		case lifecycle.HookAfterAll:
			b.reg.AfterAll(impl, 0, nil)
		case lifecycle.HookBeforeEach:
			b.reg.BeforeEach(impl, 0, nil)
		case lifecycle.HookAfterEach:
			b.reg.AfterEach(impl, 0, nil)
		}
		return goja.Undefined()
	}
}

// testDirective builds the `test` callable-with-properties object:
// test(desc, fn), test.skip(...), test.only(...), test.todo(desc),
// test.failing(...), and test.skip.only(...) (which fails with the
// builder's flag-conflict error). No other modifier combination is
// exposed.
func (b *Bridge) testDirective(rt *goja.Runtime) (goja.Value, error) {
	base := func(call goja.FunctionCall) goja.Value {
		return b.registerTest(rt, lifecycle.NewBuilder(b.reg), call)
	}
	obj := rt.ToValue(base).(*goja.Object)

	chain := func(modify func(lifecycle.Builder) (lifecycle.Builder, error)) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			builder, err := modify(lifecycle.NewBuilder(b.reg))
			if err != nil {
				panic(rt.NewGoError(err))
			}
			return b.registerTest(rt, builder, call)
		}
	}

	obj.Set("skip", chain(func(bd lifecycle.Builder) (lifecycle.Builder, error) { return bd.Skip() }))
	obj.Set("only", chain(func(bd lifecycle.Builder) (lifecycle.Builder, error) { return bd.Only() }))
	obj.Set("failing", chain(func(bd lifecycle.Builder) (lifecycle.Builder, error) { return bd.Failing() }))
	obj.Set("todo", func(call goja.FunctionCall) goja.Value {
		builder, err := lifecycle.NewBuilder(b.reg).Todo()
		if err != nil {
			panic(rt.NewGoError(err))
		}
		desc := call.Argument(0).String()
		if _, err := builder.Test(desc, nil, 0, nil); err != nil {
			panic(rt.NewGoError(err))
		}
		return goja.Undefined()
	})

	skipObj := obj.Get("skip").(*goja.Object)
	skipObj.Set("only", chain(func(bd lifecycle.Builder) (lifecycle.Builder, error) {
		bd, err := bd.Skip()
		if err != nil {
			return bd, err
		}
		return bd.Only()
	}))

	obj.Set("each", func(call goja.FunctionCall) goja.Value {
		return b.eachDirective(rt, lifecycle.NewBuilder(b.reg), call)
	})

	return obj, nil
}

func (b *Bridge) registerTest(rt *goja.Runtime, builder lifecycle.Builder, call goja.FunctionCall) goja.Value {
	desc := call.Argument(0).String()
	fn, ok := goja.AssertFunction(call.Argument(1))
	if !ok {
		panic(rt.NewTypeError("test requires a function body"))
	}
	timeout := 0
	if len(call.Arguments) > 2 {
		timeout = int(call.Argument(2).ToInteger())
	}
	impl := wrapImplementation(b.vm, rt, call.Argument(1), fn)
	if _, err := builder.Test(desc, impl, timeout, nil); err != nil {
		panic(rt.NewGoError(err))
	}
	return goja.Undefined()
}

// eachDirective implements test.each(rows)(description, fn): rows may
// be an array of arrays (positional), an array of objects, or a
// structured {headers, rows} value standing in for a tagged template.
func (b *Bridge) eachDirective(rt *goja.Runtime, builder lifecycle.Builder, call goja.FunctionCall) goja.Value {
	exported := call.Argument(0).Export()

	var rows []lifecycle.EachRow
	if m, ok := exported.(map[string]interface{}); ok {
		headers, _ := m["headers"].([]interface{})
		values, _ := m["rows"].([]interface{})
		headerStrs := make([]string, len(headers))
		for i, h := range headers {
			headerStrs[i] = fmt.Sprintf("%v", h)
		}
		var err error
		rows, err = lifecycle.EachTagged(headerStrs, values)
		if err != nil {
			panic(rt.NewGoError(err))
		}
	} else if list, ok := exported.([]interface{}); ok {
		rows = make([]lifecycle.EachRow, len(list))
		for i, item := range list {
			switch v := item.(type) {
			case []interface{}:
				rows[i] = lifecycle.EachRow{Positional: v, Index: i}
			case map[string]interface{}:
				// An object row binds both ways: $name lookups resolve
				// against it and printf tokens consume it positionally.
				rows[i] = lifecycle.EachRow{Named: v, Positional: []interface{}{item}, Index: i}
			default:
				rows[i] = lifecycle.EachRow{Positional: []interface{}{item}, Index: i}
			}
		}
	}

	return rt.ToValue(func(inner goja.FunctionCall) goja.Value {
		template := inner.Argument(0).String()
		fn, ok := goja.AssertFunction(inner.Argument(1))
		if !ok {
			panic(rt.NewTypeError("test.each requires a function body"))
		}
		implFor := func(row lifecycle.EachRow) lifecycle.Implementation {
			arg := rt.ToValue(row.Named)
			if len(row.Named) == 0 {
				arg = rt.ToValue(row.Positional)
			}
			return wrapImplementation(b.vm, rt, inner.Argument(1), fn, arg)
		}
		eb := builder.WithRows(rows)
		if _, err := eb.Test(template, implFor, 0, nil); err != nil {
			panic(rt.NewGoError(err))
		}
		return goja.Undefined()
	})
}

// wrapImplementation maps a goja function onto the tagged-sum
// Implementation interface. leadingArgs are bound ahead of the
// done-callback slot, e.g. test.each's row value; plain test()/hooks
// pass none. Arity beyond len(leadingArgs) (mirroring Jest's
// done-callback convention) selects the variant: no extra param ->
// sync (or promise, if the return value is thenable); one extra param
// -> callback, invoking the lifecycle context's done() on it.
//
// The returned implementations run later, on the lifecycle engine's
// own goroutines, so every touch of the runtime goes through vm.Run:
// a goja.Runtime is single-threaded, and timer callbacks re-enter it
// on the same event-loop goroutine. Wrapping here is what keeps a
// test body and a firing setTimeout from overlapping.
func wrapImplementation(vm *VM, rt *goja.Runtime, fnVal goja.Value, fn goja.Callable, leadingArgs ...goja.Value) lifecycle.Implementation {
	length := functionArity(rt, fnVal)
	if length > len(leadingArgs) {
		return lifecycle.CallbackImpl(func(tc *lifecycle.Context, done func(error)) {
			vm.Run(func(rt *goja.Runtime) {
				doneFn := func(call goja.FunctionCall) goja.Value {
					if len(call.Arguments) > 0 && !goja.IsUndefined(call.Arguments[0]) && !goja.IsNull(call.Arguments[0]) {
						done(fmt.Errorf("%v", call.Arguments[0].Export()))
					} else {
						done(nil)
					}
					return goja.Undefined()
				}
				args := append(append([]goja.Value{}, leadingArgs...), rt.ToValue(doneFn))
				if _, err := fn(goja.Undefined(), args...); err != nil {
					done(err)
				}
			})
		})
	}
	return lifecycle.SyncImpl(func(tc *lifecycle.Context) error {
		var err error
		vm.Run(func(rt *goja.Runtime) {
			var result goja.Value
			result, err = fn(goja.Undefined(), leadingArgs...)
			if err != nil {
				return
			}
			if thenable, ok := asThenable(result); ok {
				err = drainThenable(rt, thenable)
			}
		})
		return err
	})
}

func functionArity(rt *goja.Runtime, fnVal goja.Value) int {
	obj := fnVal.ToObject(rt)
	if obj == nil {
		return 0
	}
	lengthVal := obj.Get("length")
	if lengthVal == nil {
		return 0
	}
	return int(lengthVal.ToInteger())
}

func asThenable(v goja.Value) (*goja.Object, bool) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, false
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil, false
	}
	then := obj.Get("then")
	if then == nil || goja.IsUndefined(then) {
		return nil, false
	}
	return obj, true
}

// drainThenable synchronously resolves a thenable produced by a
// simplified promise polyfill the sandbox's bundled code may use —
// this engine does not run a microtask queue, so `then` is expected to
// invoke its resolve/reject callback synchronously.
func drainThenable(rt *goja.Runtime, thenable *goja.Object) error {
	then, ok := goja.AssertFunction(thenable.Get("then"))
	if !ok {
		return nil
	}
	var callErr error
	resolve := func(call goja.FunctionCall) goja.Value { return goja.Undefined() }
	reject := func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) > 0 {
			callErr = fmt.Errorf("%v", call.Arguments[0].Export())
		}
		return goja.Undefined()
	}
	_, err := then(thenable, rt.ToValue(resolve), rt.ToValue(reject))
	if err != nil {
		return err
	}
	return callErr
}
