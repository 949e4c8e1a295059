// Package runner implements the handle the ExternalTarget drives for
// each remote runner — an HTTP dispatch call plus a long-lived
// websocket event stream — and the runner-side gin server that
// receives dispatched suites, re-executes them through the same
// internal/sandbox machinery local execution uses, and streams framed
// events back.
package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xjet-run/engine/pkg/artifact"
)

// Handle is the client-side connection to one remote runner, owned by
// the ExternalTarget.
type Handle struct {
	ID      string
	Address string // e.g. "http://127.0.0.1:9001"

	DispatchTimeout  time.Duration
	ConnectTimeout   time.Duration

	httpClient *http.Client
	wsConn     *websocket.Conn
}

// NewHandle builds a Handle for one runner endpoint.
func NewHandle(id, address string, dispatchTimeout, connectTimeout time.Duration) *Handle {
	return &Handle{
		ID:              id,
		Address:         address,
		DispatchTimeout: dispatchTimeout,
		ConnectTimeout:  connectTimeout,
		httpClient:      &http.Client{Timeout: dispatchTimeout},
	}
}

// Dispatch posts a suite artifact to the runner's /suites/:id endpoint
// under the configured dispatch timeout.
func (h *Handle) Dispatch(ctx context.Context, art artifact.SpecArtifact, suiteID string) error {
	body, err := json.Marshal(art)
	if err != nil {
		return fmt.Errorf("marshal artifact for suite %s: %w", suiteID, err)
	}

	ctx, cancel := context.WithTimeout(ctx, h.DispatchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.Address+"/suites/"+suiteID, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("dispatch suite %s to runner %s: %w", suiteID, h.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("runner %s rejected suite %s: status %d", h.ID, suiteID, resp.StatusCode)
	}
	return nil
}

// Connection opens the websocket event stream to the runner's /events
// endpoint under the configured connect timeout. It returns once the
// handshake completes (or fails); ctx bounds only the handshake. A
// successful connection spawns a background goroutine that invokes
// onData for every framed message until a read fails (the connection
// closes, including through Disconnect), at which point it calls
// disconnected (so the ExternalTarget can evict the runner's pending
// work).
func (h *Handle) Connection(ctx context.Context, onData func(raw []byte), runnerID string, disconnected func(err error)) error {
	wsURL, err := toWebsocketURL(h.Address)
	if err != nil {
		return err
	}

	dialCtx, cancel := context.WithTimeout(ctx, h.ConnectTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, wsURL+"/events", nil)
	if err != nil {
		return fmt.Errorf("connect to runner %s: %w", runnerID, err)
	}
	h.wsConn = conn

	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if disconnected != nil {
					disconnected(err)
				}
				return
			}
			if onData != nil {
				onData(data)
			}
		}
	}()

	return nil
}

// Disconnect closes the websocket connection, if open.
func (h *Handle) Disconnect() error {
	if h.wsConn == nil {
		return nil
	}
	return h.wsConn.Close()
}

func toWebsocketURL(address string) (string, error) {
	u, err := url.Parse(address)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return strings.TrimSuffix(u.String(), "/"), nil
}
