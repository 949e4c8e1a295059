package runner

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/xjet-run/engine/internal/wire"
	"github.com/xjet-run/engine/pkg/artifact"
)

const passingSuite = `
describe("arithmetic", function () {
  test("adds", function () {
    if (1 + 1 !== 2) { throw new Error("bad math"); }
  });
});
`

func TestHandleDispatchAndEventStream(t *testing.T) {
	srv := NewServer("runner-1")
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	handle := NewHandle("runner-1", ts.URL, 2*time.Second, 2*time.Second)

	var mu sync.Mutex
	var frames []*wire.FramedMessage
	disconnected := make(chan error, 1)

	err := handle.Connection(context.Background(), func(raw []byte) {
		msg, decodeErr := wire.Decode(raw)
		if decodeErr != nil {
			return
		}
		mu.Lock()
		frames = append(frames, msg)
		mu.Unlock()
	}, "runner-1", func(err error) {
		disconnected <- err
	})
	if err != nil {
		t.Fatalf("Connection: %v", err)
	}
	defer handle.Disconnect()

	art := artifact.SpecArtifact{SuiteID: "suite-a", Code: passingSuite}
	if err := handle.Dispatch(context.Background(), art, "suite-a"); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(frames)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(frames) == 0 {
		t.Fatal("expected at least one framed event pushed back over the websocket")
	}
}

func TestToWebsocketURL(t *testing.T) {
	cases := map[string]string{
		"http://127.0.0.1:9001/":  "ws://127.0.0.1:9001",
		"https://example.com:443": "wss://example.com:443",
	}
	for in, want := range cases {
		got, err := toWebsocketURL(in)
		if err != nil {
			t.Fatalf("toWebsocketURL(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("toWebsocketURL(%q) = %q, want %q", in, got, want)
		}
	}
}
