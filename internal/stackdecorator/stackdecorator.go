// Package stackdecorator resolves a sandboxed JS stack trace against
// its source map, producing formatted frames positioned in the
// original (pre-bundle) source via go-sourcemap/sourcemap.
package stackdecorator

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-sourcemap/sourcemap"
)

// Frame is one parsed stack frame prior to source-map resolution.
type Frame struct {
	Function string
	File     string
	Line     int
	Column   int
}

// ResolvedFrame is a Frame after source-map lookup.
type ResolvedFrame struct {
	Frame
	SourceFile  string
	OrigLine    int
	OrigColumn  int
	Name        string
	CodeExcerpt string
	Resolved    bool
}

// Options configures which frames survive the drop rules.
type Options struct {
	ActiveNative     bool
	IncludeFramework bool
	FrameworkFile    string
	SharedFiles      map[string]bool
}

// Result is the decorator's output: the formatted stack, the first
// resolvable frame's highlighted excerpt, and that frame's original
// position.
type Result struct {
	FormattedStack   string
	CodeExcerpt      string
	FirstFrameLine   int
	FirstFrameColumn int
}

// V8/goja-style stack lines come in two shapes: "at fn (file:line:col)"
// and "at file:line:col".
var (
	frameWithFnRegex = regexp.MustCompile(`^\s*at\s+(.+?)\s+\((.+?):(\d+):(\d+)\)$`)
	frameBareRegex   = regexp.MustCompile(`^\s*at\s+(.+?):(\d+):(\d+)$`)
)

// ParseStack splits a raw "Error: msg\n  at ...\n  at ..." stack
// string into Frames, skipping the message line.
func ParseStack(stack string) []Frame {
	var frames []Frame
	for _, line := range strings.Split(stack, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !strings.HasPrefix(line, "at ") {
			continue
		}
		if m := frameWithFnRegex.FindStringSubmatch(line); len(m) == 5 {
			line, _ := strconv.Atoi(m[3])
			col, _ := strconv.Atoi(m[4])
			frames = append(frames, Frame{Function: m[1], File: m[2], Line: line, Column: col})
			continue
		}
		if m := frameBareRegex.FindStringSubmatch(line); len(m) == 4 {
			line, _ := strconv.Atoi(m[2])
			col, _ := strconv.Atoi(m[3])
			frames = append(frames, Frame{Function: "<anonymous>", File: m[1], Line: line, Column: col})
		}
	}
	return frames
}

// Decorate resolves each frame against smap, drops frames per the
// Options rules, produces a code excerpt for the first resolvable
// frame, and, for TypeErrors, prepends the resolved symbol name to
// errMessage.
func Decorate(frames []Frame, smap *sourcemap.Consumer, errName, errMessage string, opts Options, highlight func(file string, line int) string) (Result, string) {
	resolved := make([]ResolvedFrame, 0, len(frames))
	for _, f := range frames {
		rf := ResolvedFrame{Frame: f}
		if smap != nil {
			if source, name, line, col, ok := smap.Source(f.Line, f.Column); ok {
				rf.SourceFile = source
				rf.Name = name
				rf.OrigLine = line
				rf.OrigColumn = col
				rf.Resolved = true
			}
		}
		if dropFrame(rf, opts) {
			continue
		}
		resolved = append(resolved, rf)
	}

	var excerpt string
	var firstLine, firstCol int
	for i := range resolved {
		if !resolved[i].Resolved {
			continue
		}
		if highlight != nil {
			excerpt = highlight(resolved[i].SourceFile, resolved[i].OrigLine)
			resolved[i].CodeExcerpt = excerpt
		}
		firstLine = resolved[i].OrigLine
		firstCol = resolved[i].OrigColumn
		break
	}

	message := errMessage
	if errName == "TypeError" {
		for _, rf := range resolved {
			if rf.Resolved && rf.Name != "" {
				message = prependToken(message, rf.Name)
				break
			}
		}
	}

	return Result{
		FormattedStack:   formatFrames(resolved),
		CodeExcerpt:      excerpt,
		FirstFrameLine:   firstLine,
		FirstFrameColumn: firstCol,
	}, message
}

// dropFrame hides runtime-internal and framework frames unless Options
// asks for them.
func dropFrame(rf ResolvedFrame, opts Options) bool {
	if strings.HasPrefix(rf.File, "node:") && !opts.ActiveNative {
		return true
	}
	if opts.FrameworkFile != "" && rf.File == opts.FrameworkFile && !opts.IncludeFramework {
		return true
	}
	if rf.File == "evalmachine.<anonymous>" && rf.Function == "" {
		return true
	}
	if rf.Line == 0 && rf.Column == 0 && rf.File == "" && rf.Function == "" {
		return true
	}
	if rf.Resolved && opts.SharedFiles != nil && opts.SharedFiles[rf.SourceFile] && !opts.IncludeFramework {
		return true
	}
	return false
}

func formatFrames(frames []ResolvedFrame) string {
	var b strings.Builder
	for _, f := range frames {
		file, line, col := f.File, f.Line, f.Column
		if f.Resolved {
			file, line, col = f.SourceFile, f.OrigLine, f.OrigColumn
		}
		fmt.Fprintf(&b, "    at %s (%s:%d:%d)\n", displayFunction(f), file, line, col)
	}
	return b.String()
}

func displayFunction(f ResolvedFrame) string {
	if f.Function != "" {
		return f.Function
	}
	if f.Name != "" {
		return f.Name
	}
	return "<anonymous>"
}

// prependToken rewrites the first whitespace-delimited token of msg,
// prefixing it with name.
func prependToken(msg, name string) string {
	parts := strings.SplitN(msg, " ", 2)
	if len(parts) == 0 {
		return name
	}
	parts[0] = name + parts[0]
	return strings.Join(parts, " ")
}
