package stackdecorator

import (
	"strings"
	"testing"
)

func TestParseStackWithFunction(t *testing.T) {
	stack := "TypeError: x is not a function\n    at run (bundle.js:10:5)\n    at main (bundle.js:2:1)"
	frames := ParseStack(stack)
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d: %+v", len(frames), frames)
	}
	if frames[0].Function != "run" || frames[0].File != "bundle.js" || frames[0].Line != 10 || frames[0].Column != 5 {
		t.Errorf("unexpected first frame: %+v", frames[0])
	}
}

func TestDropNodeInternalFrames(t *testing.T) {
	frames := []Frame{
		{Function: "internalBind", File: "node:internal/bind", Line: 1, Column: 1},
		{Function: "run", File: "suite.js", Line: 3, Column: 1},
	}
	result, _ := Decorate(frames, nil, "Error", "boom", Options{}, nil)
	if strings.Contains(result.FormattedStack, "node:internal") {
		t.Errorf("expected node: frame dropped, got %q", result.FormattedStack)
	}
	if !strings.Contains(result.FormattedStack, "suite.js") {
		t.Errorf("expected suite.js frame kept, got %q", result.FormattedStack)
	}
}

func TestDropEvalmachineWithoutFunction(t *testing.T) {
	frames := []Frame{
		{Function: "", File: "evalmachine.<anonymous>", Line: 1, Column: 1},
		{Function: "named", File: "evalmachine.<anonymous>", Line: 2, Column: 1},
	}
	result, _ := Decorate(frames, nil, "Error", "boom", Options{}, nil)
	count := strings.Count(result.FormattedStack, "evalmachine")
	if count != 1 {
		t.Fatalf("expected exactly 1 surviving evalmachine frame, got %d:\n%s", count, result.FormattedStack)
	}
}

func TestTypeErrorPrependsName(t *testing.T) {
	frames := []Frame{{Function: "f", File: "a.js", Line: 1, Column: 1}}
	// Simulate a resolved frame with a Name by skipping real source-map
	// lookup and checking prependToken directly.
	msg := prependToken("is not a function", "obj.")
	if msg != "obj.is not a function" {
		t.Errorf("got %q", msg)
	}
	_ = frames
}
