package sandbox

import (
	"errors"

	"github.com/dop251/goja"
	gosourcemap "github.com/go-sourcemap/sourcemap"

	"github.com/xjet-run/engine/internal/stackdecorator"
)

// decorateRuntimeError converts an uncaught goja error into a
// VMRuntimeError whose Stack has been resolved against sourceMapJSON.
func decorateRuntimeError(err error, sourceMapJSON string) *VMRuntimeError {
	name, message, rawStack := describeGojaError(err)

	var smap *gosourcemap.Consumer
	if sourceMapJSON != "" {
		if parsed, parseErr := gosourcemap.Parse("", []byte(sourceMapJSON)); parseErr == nil {
			smap = parsed
		}
	}

	frames := stackdecorator.ParseStack(rawStack)
	result, decoratedMessage := stackdecorator.Decorate(frames, smap, name, message, stackdecorator.Options{}, nil)

	full := decoratedMessage
	if result.FormattedStack != "" {
		full = decoratedMessage + "\n" + result.FormattedStack
	}
	return &VMRuntimeError{Message: decoratedMessage, Stack: full}
}

func describeGojaError(err error) (name, message, stack string) {
	var gojaErr *goja.Exception
	if errors.As(err, &gojaErr) {
		val := gojaErr.Value()
		if obj, ok := val.(*goja.Object); ok {
			name = stringProp(obj, "name")
			message = stringProp(obj, "message")
			stack = stringProp(obj, "stack")
			if stack == "" {
				stack = gojaErr.String()
			}
			if message == "" {
				message = gojaErr.Error()
			}
			return name, message, stack
		}
		return "Error", gojaErr.Error(), gojaErr.String()
	}
	return "Error", err.Error(), ""
}

func stringProp(obj *goja.Object, key string) string {
	v := obj.Get(key)
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}
	return v.String()
}
