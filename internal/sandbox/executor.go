package sandbox

import (
	"fmt"

	"github.com/dop251/goja"

	"github.com/xjet-run/engine/internal/lifecycle"
	"github.com/xjet-run/engine/internal/wire"
	"github.com/xjet-run/engine/pkg/artifact"
)

// RunOptions configures one artifact execution — the per-VM analogue of
// the bundled code's `__XJET__` runtime record.
type RunOptions struct {
	SuiteID    wire.ID
	RunnerID   wire.ID
	Timeout    int
	Filter     []string
	Randomize  bool
	RandomSeed int64
	Require    func(specifier string) (goja.Value, error)
}

// VMRuntimeError wraps an uncaught sandbox error (a thrown value that
// escaped every test body, or a syntax/reference error in the bundle
// itself) decorated with the artifact's source map.
type VMRuntimeError struct {
	Message string
	Stack   string
}

func (e *VMRuntimeError) Error() string { return e.Message }

func (e *VMRuntimeError) Name() string { return "VMRuntimeError" }

// Execute runs one SpecArtifact in a freshly constructed VM: it installs
// the sandbox globals (including `dispatch` and `__XJET__`), evaluates
// the bundle to let it register describe/test nodes, then runs the
// lifecycle engine over the resulting suite tree.
// Every Status/Action/Log/Error frame is handed to sink as raw wire
// bytes. Execute blocks until the suite's terminal describe-action frame
// has been emitted (or a sandbox-level error aborted the run first).
func Execute(art artifact.SpecArtifact, opts RunOptions, sink func(raw []byte)) error {
	reg, err := lifecycle.NewRegistrar(opts.Filter)
	if err != nil {
		return fmt.Errorf("build registrar: %w", err)
	}

	vm := NewVM()
	defer vm.Dispose()

	emitter := newWireEmitter(opts.SuiteID, opts.RunnerID, sink)

	if err := vm.Globals(opts.Require); err != nil {
		emitter.Error(fmt.Sprintf("sandbox init failed: %v", err), "", nil)
		return err
	}

	bridge := NewBridge(vm, reg)

	var runErr error
	vm.Run(func(rt *goja.Runtime) {
		installDispatchRuntime(rt, emitter, opts)
		if err := bridge.Install(rt); err != nil {
			runErr = err
			return
		}
		if _, err := rt.RunString(art.Code); err != nil {
			runErr = err
			return
		}
	})

	if runErr != nil {
		decorated := decorateRuntimeError(runErr, art.SourceMap)
		emitter.Error(decorated.Message, "", splitLines(decorated.Stack))
		emitter.Action(lifecycle.EventDescribe, lifecycle.ActionFailure, nil, []error{decorated}, 0, nil, "")
		return decorated
	}

	engine := lifecycle.NewEngine(emitter, opts.Randomize, reg.OnlyMode(), opts.RandomSeed)
	engine.BindRegistrar(reg)
	engine.RunSuite(reg.Root, &lifecycle.ExecutionContext{})
	return nil
}

// installDispatchRuntime installs the `dispatch` function and the
// `__XJET__` runtime record the bundle assumes exist: raw
// frames the bundled runtime (or hand-written test code) constructs
// itself are forwarded verbatim via dispatch, and console.log/warn/
// error are rerouted through the same framed log() channel instead of
// bare stdout so LocalTarget and ExternalTarget behave identically from
// the reporter's point of view.
func installDispatchRuntime(rt *goja.Runtime, emitter *wireEmitter, opts RunOptions) {
	rt.Set("dispatch", func(call goja.FunctionCall) goja.Value {
		raw := exportBytes(call.Argument(0))
		if raw != nil {
			emitter.sink(raw)
		}
		return goja.Undefined()
	})

	xjet := rt.NewObject()
	xjet.Set("suiteId", opts.SuiteID.String())
	xjet.Set("runnerId", opts.RunnerID.String())
	xjet.Set("timeout", opts.Timeout)
	xjet.Set("filter", opts.Filter)
	xjet.Set("randomize", opts.Randomize)
	rt.Set("__XJET__", xjet)

	console := rt.Get("console")
	if consoleObj, ok := console.(*goja.Object); ok {
		for _, level := range []string{"log", "info", "debug", "warn", "error"} {
			lvl := normalizeLevel(level)
			consoleObj.Set(level, func(call goja.FunctionCall) goja.Value {
				emitter.Log(lvl, "console", "", formatArgsJoined(call.Arguments))
				return goja.Undefined()
			})
		}
	}
}

func normalizeLevel(consoleMethod string) string {
	switch consoleMethod {
	case "warn":
		return "warn"
	case "error":
		return "error"
	case "debug":
		return "debug"
	default:
		return "info"
	}
}

func formatArgsJoined(args []goja.Value) string {
	parts := formatArgs(args)
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += " "
		}
		out += fmt.Sprintf("%v", p)
	}
	return out
}

func exportBytes(v goja.Value) []byte {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	switch exported := v.Export().(type) {
	case string:
		return []byte(exported)
	case []byte:
		return exported
	case []interface{}:
		out := make([]byte, len(exported))
		for i, b := range exported {
			if n, ok := b.(int64); ok {
				out[i] = byte(n)
			}
		}
		return out
	default:
		return nil
	}
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}
