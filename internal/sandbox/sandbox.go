// Package sandbox hosts in-process suite execution: one goja VM per
// suite, exposing a fixed set of globals, bridged into the
// internal/lifecycle registration/execution engine. A goja.Runtime is
// never safe for concurrent use, so every JS-touching operation for
// one suite is funneled through one goroutine.
package sandbox

import (
	"fmt"
	"time"

	"github.com/dop251/goja"
)

// VM wraps one goja.Runtime dedicated to a single suite execution,
// serializing access onto its own event-loop goroutine.
type VM struct {
	runtime *goja.Runtime
	queue   chan func()
	done    chan struct{}
}

// NewVM constructs a VM and starts its event-loop goroutine.
func NewVM() *VM {
	vm := &VM{
		runtime: goja.New(),
		queue:   make(chan func(), 256),
		done:    make(chan struct{}),
	}
	go vm.loop()
	return vm
}

func (vm *VM) loop() {
	for {
		select {
		case fn := <-vm.queue:
			fn()
		case <-vm.done:
			return
		}
	}
}

// Run schedules fn onto the VM's single goroutine and blocks until it
// completes.
func (vm *VM) Run(fn func(rt *goja.Runtime)) {
	result := make(chan struct{})
	vm.queue <- func() {
		defer close(result)
		fn(vm.runtime)
	}
	<-result
}

// Dispose stops the VM's event loop. Any timers registered against it
// are abandoned, not forcibly cancelled.
func (vm *VM) Dispose() {
	close(vm.done)
}

// Globals sets up the sandbox's deliberately small global surface:
// container types and Error/RegExp come from goja itself; this
// installs console, setTimeout/setInterval, a require resolver, a
// module.exports shim, and a Buffer-equivalent byte container.
// Nothing else from the host leaks in.
func (vm *VM) Globals(requireResolver func(specifier string) (goja.Value, error)) error {
	var setupErr error
	vm.Run(func(rt *goja.Runtime) {
		if err := installConsole(rt); err != nil {
			setupErr = err
			return
		}
		if err := installTimers(rt, vm); err != nil {
			setupErr = err
			return
		}
		if err := installBuffer(rt); err != nil {
			setupErr = err
			return
		}
		if err := installModuleShim(rt, requireResolver); err != nil {
			setupErr = err
			return
		}
	})
	return setupErr
}

func installConsole(rt *goja.Runtime) error {
	console := rt.NewObject()
	logFn := func(call goja.FunctionCall) goja.Value {
		fmt.Println(formatArgs(call.Arguments)...)
		return goja.Undefined()
	}
	for _, name := range []string{"log", "info", "debug", "warn", "error"} {
		if err := console.Set(name, logFn); err != nil {
			return err
		}
	}
	return rt.Set("console", console)
}

func formatArgs(args []goja.Value) []interface{} {
	out := make([]interface{}, len(args))
	for i, a := range args {
		out[i] = a.Export()
	}
	return out
}

func installTimers(rt *goja.Runtime, vm *VM) error {
	timers := newTimerRegistry(rt, vm)
	if err := rt.Set("setTimeout", timers.setTimeout); err != nil {
		return err
	}
	if err := rt.Set("clearTimeout", timers.clear); err != nil {
		return err
	}
	if err := rt.Set("setInterval", timers.setInterval); err != nil {
		return err
	}
	if err := rt.Set("clearInterval", timers.clear); err != nil {
		return err
	}
	return nil
}

// installBuffer exposes a minimal Buffer-equivalent byte container —
// a constructor that wraps a string argument as a Go []byte and
// exposes length and toString (there is no Buffer.from), sufficient
// for test suites that assert on binary payloads without pulling in a
// full Node-compatible Buffer implementation.
func installBuffer(rt *goja.Runtime) error {
	bufferCtor := rt.ToValue(func(call goja.ConstructorCall) *goja.Object {
		var data []byte
		if len(call.Arguments) > 0 {
			if s, ok := call.Arguments[0].Export().(string); ok {
				data = []byte(s)
			}
		}
		obj := call.This
		obj.Set("length", len(data))
		obj.Set("toString", func() string { return string(data) })
		return nil
	})
	return rt.Set("Buffer", bufferCtor)
}

// installModuleShim installs `require` and a `module.exports` object,
// the resolver being supplied by the caller and rooted at the
// orchestrator's module origin.
func installModuleShim(rt *goja.Runtime, resolver func(specifier string) (goja.Value, error)) error {
	moduleObj := rt.NewObject()
	exportsObj := rt.NewObject()
	moduleObj.Set("exports", exportsObj)
	if err := rt.Set("module", moduleObj); err != nil {
		return err
	}
	if err := rt.Set("exports", exportsObj); err != nil {
		return err
	}

	requireFn := func(call goja.FunctionCall) goja.Value {
		if resolver == nil {
			panic(rt.NewTypeError("require is not available in this sandbox"))
		}
		specifier := call.Argument(0).String()
		val, err := resolver(specifier)
		if err != nil {
			panic(rt.NewGoError(err))
		}
		return val
	}
	return rt.Set("require", requireFn)
}

// timerRegistry backs setTimeout/setInterval: one time.Timer or
// time.Ticker per id, each callback re-entering the VM's single
// goroutine through VM.Run.
type timerRegistry struct {
	rt      *goja.Runtime
	vm      *VM
	nextID  int64
	cancels map[int64]func()
}

func newTimerRegistry(rt *goja.Runtime, vm *VM) *timerRegistry {
	return &timerRegistry{rt: rt, vm: vm, cancels: make(map[int64]func())}
}

func (tr *timerRegistry) setTimeout(call goja.FunctionCall) goja.Value {
	callback, _ := goja.AssertFunction(call.Argument(0))
	delay := call.Argument(1).ToInteger()
	if delay < 0 {
		delay = 0
	}
	tr.nextID++
	id := tr.nextID

	t := time.AfterFunc(time.Duration(delay)*time.Millisecond, func() {
		tr.vm.Run(func(rt *goja.Runtime) {
			if callback != nil {
				callback(goja.Undefined())
			}
		})
	})
	tr.cancels[id] = func() { t.Stop() }
	return tr.rt.ToValue(id)
}

func (tr *timerRegistry) setInterval(call goja.FunctionCall) goja.Value {
	callback, _ := goja.AssertFunction(call.Argument(0))
	interval := call.Argument(1).ToInteger()
	if interval < 1 {
		interval = 1
	}
	tr.nextID++
	id := tr.nextID

	ticker := time.NewTicker(time.Duration(interval) * time.Millisecond)
	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				tr.vm.Run(func(rt *goja.Runtime) {
					if callback != nil {
						callback(goja.Undefined())
					}
				})
			case <-stop:
				ticker.Stop()
				return
			}
		}
	}()
	tr.cancels[id] = func() { close(stop) }
	return tr.rt.ToValue(id)
}

func (tr *timerRegistry) clear(call goja.FunctionCall) goja.Value {
	id := call.Argument(0).ToInteger()
	if cancel, ok := tr.cancels[id]; ok {
		cancel()
		delete(tr.cancels, id)
	}
	return goja.Undefined()
}
