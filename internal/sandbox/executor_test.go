package sandbox

import (
	"testing"

	"github.com/xjet-run/engine/internal/wire"
	"github.com/xjet-run/engine/pkg/artifact"
)

func decodeFrames(t *testing.T, raws [][]byte) []*wire.FramedMessage {
	t.Helper()
	out := make([]*wire.FramedMessage, 0, len(raws))
	for _, raw := range raws {
		msg, err := wire.Decode(raw)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		out = append(out, msg)
	}
	return out
}

func rootAction(t *testing.T, frames []*wire.FramedMessage) *wire.ActionPayload {
	t.Helper()
	for _, f := range frames {
		if f.Type != wire.TypeAction {
			continue
		}
		payload, err := f.DecodeAction()
		if err != nil {
			t.Fatalf("DecodeAction: %v", err)
		}
		if payload.Kind == "describe" && len(payload.Ancestry) == 0 {
			return payload
		}
	}
	return nil
}

func TestExecutePassingSuite(t *testing.T) {
	art := artifact.SpecArtifact{SuiteID: "suite-a", Code: `
describe("math", function () {
  test("adds", function () {
    if (1 + 1 !== 2) { throw new Error("bad math"); }
  });
});
`}

	var raws [][]byte
	opts := RunOptions{SuiteID: wire.NewID(), RunnerID: wire.NewID(), Timeout: 1000}
	if err := Execute(art, opts, func(raw []byte) { raws = append(raws, append([]byte{}, raw...)) }); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	frames := decodeFrames(t, raws)
	root := rootAction(t, frames)
	if root == nil {
		t.Fatal("no root describe action frame emitted")
	}
	if root.Type != "SUCCESS" {
		t.Fatalf("root action type = %s, want SUCCESS", root.Type)
	}
}

func TestExecuteSyntaxErrorReportsSuiteError(t *testing.T) {
	art := artifact.SpecArtifact{SuiteID: "suite-bad", Code: `this is not valid javascript {{{`}

	var raws [][]byte
	opts := RunOptions{SuiteID: wire.NewID(), RunnerID: wire.NewID(), Timeout: 1000}
	err := Execute(art, opts, func(raw []byte) { raws = append(raws, append([]byte{}, raw...)) })
	if err == nil {
		t.Fatal("expected Execute to return an error for invalid JS")
	}

	frames := decodeFrames(t, raws)
	found := false
	for _, f := range frames {
		if f.Type == wire.TypeError {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a suiteError frame for the syntax error")
	}
}

func TestExecuteEachCallbackStyle(t *testing.T) {
	art := artifact.SpecArtifact{SuiteID: "suite-each", Code: `
describe("each callback", function () {
  test.each([[1, 2], [2, 4]])("doubles %i", function (row, done) {
    setTimeout(function () {
      if (row[1] !== row[0] * 2) {
        done(new Error("bad double"));
        return;
      }
      done();
    }, 1);
  });
});
`}

	var raws [][]byte
	opts := RunOptions{SuiteID: wire.NewID(), RunnerID: wire.NewID(), Timeout: 1000}
	if err := Execute(art, opts, func(raw []byte) { raws = append(raws, append([]byte{}, raw...)) }); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	frames := decodeFrames(t, raws)
	root := rootAction(t, frames)
	if root == nil {
		t.Fatal("no root describe action frame emitted")
	}
	if root.Type != "SUCCESS" {
		t.Fatalf("root action type = %s, want SUCCESS", root.Type)
	}

	testCount := 0
	for _, f := range frames {
		if f.Type != wire.TypeAction {
			continue
		}
		payload, err := f.DecodeAction()
		if err != nil {
			t.Fatalf("DecodeAction: %v", err)
		}
		if payload.Kind != "test" {
			continue
		}
		testCount++
		if payload.Type != "SUCCESS" {
			t.Fatalf("test %q = %s, want SUCCESS", payload.Description, payload.Type)
		}
	}
	if testCount != 2 {
		t.Fatalf("expected 2 expanded each tests, got %d", testCount)
	}
}

func TestExecuteEachPromiseRejectionFails(t *testing.T) {
	art := artifact.SpecArtifact{SuiteID: "suite-each-promise", Code: `
function thenable(ok) {
  return {
    then: function (resolve, reject) {
      if (ok) { resolve(); } else { reject(new Error("row failed")); }
    },
  };
}
describe("each promise", function () {
  test.each([[true], [false]])("row %i", function (row) {
    return thenable(row[0]);
  });
});
`}

	var raws [][]byte
	opts := RunOptions{SuiteID: wire.NewID(), RunnerID: wire.NewID(), Timeout: 1000}
	if err := Execute(art, opts, func(raw []byte) { raws = append(raws, append([]byte{}, raw...)) }); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	frames := decodeFrames(t, raws)
	var successes, failures int
	for _, f := range frames {
		if f.Type != wire.TypeAction {
			continue
		}
		payload, err := f.DecodeAction()
		if err != nil {
			t.Fatalf("DecodeAction: %v", err)
		}
		if payload.Kind != "test" {
			continue
		}
		switch payload.Type {
		case "SUCCESS":
			successes++
		case "FAILURE":
			failures++
		}
	}
	if successes != 1 || failures != 1 {
		t.Fatalf("expected 1 success and 1 failure among each rows, got %d success, %d failure", successes, failures)
	}
}

func TestExecuteConsoleLogEmitsLogFrame(t *testing.T) {
	art := artifact.SpecArtifact{SuiteID: "suite-c", Code: `
console.log("hello from the sandbox");
describe("noop", function () {
  test("passes", function () {});
});
`}

	var raws [][]byte
	opts := RunOptions{SuiteID: wire.NewID(), RunnerID: wire.NewID(), Timeout: 1000}
	if err := Execute(art, opts, func(raw []byte) { raws = append(raws, append([]byte{}, raw...)) }); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	frames := decodeFrames(t, raws)
	found := false
	for _, f := range frames {
		if f.Type != wire.TypeLog {
			continue
		}
		payload, err := f.DecodeLog()
		if err != nil {
			t.Fatalf("DecodeLog: %v", err)
		}
		if payload.Description == "hello from the sandbox" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a log frame carrying the console.log message")
	}
}
