package runner

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"

	"github.com/dop251/goja"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/xjet-run/engine/internal/sandbox"
	"github.com/xjet-run/engine/internal/wire"
	"github.com/xjet-run/engine/pkg/artifact"
)

// Server is the runner-process side of the ExternalTarget protocol: a
// thin gin control plane exposing POST /suites/:id (dispatch) and a
// websocket GET /events (the framed event stream).
type Server struct {
	RunnerID string
	Resolve  func(specifier string) (goja.Value, error)
	Timeout  int
	engine   *gin.Engine

	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns []*websocket.Conn
}

// NewServer builds a runner server identified by runnerID.
func NewServer(runnerID string) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		RunnerID: runnerID,
		engine:   gin.New(),
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
	s.engine.Use(gin.Recovery())
	s.engine.POST("/suites/:id", s.handleDispatch)
	s.engine.GET("/events", s.handleEvents)
	return s
}

// Run starts the HTTP server on addr; blocks like http.ListenAndServe.
func (s *Server) Run(addr string) error {
	return s.engine.Run(addr)
}

// Handler exposes the underlying http.Handler so tests can drive the
// server through an httptest.Server instead of a fixed listen address.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) handleDispatch(c *gin.Context) {
	suiteID := c.Param("id")

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var art artifact.SpecArtifact
	if err := json.Unmarshal(body, &art); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	go s.executeAndStream(art, suiteID)

	c.JSON(http.StatusAccepted, gin.H{"suiteId": suiteID, "runnerId": s.RunnerID})
}

// executeAndStream runs the dispatched artifact in a fresh sandbox and
// broadcasts every framed event to every currently connected websocket
// — normally just the one orchestrator that dispatched it.
func (s *Server) executeAndStream(art artifact.SpecArtifact, suiteID string) {
	opts := sandbox.RunOptions{
		SuiteID:  wire.DeriveID(suiteID),
		RunnerID: wire.DeriveID(s.RunnerID),
		Timeout:  s.Timeout,
		Require:  s.Resolve,
	}
	_ = sandbox.Execute(art, opts, s.broadcast)
}

func (s *Server) broadcast(raw []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	live := s.conns[:0]
	for _, conn := range s.conns {
		if err := conn.WriteMessage(websocket.BinaryMessage, raw); err == nil {
			live = append(live, conn)
		}
	}
	s.conns = live
}

func (s *Server) handleEvents(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.conns = append(s.conns, conn)
	s.mu.Unlock()

	// Drain (and discard) any client->server control messages until the
	// socket closes; the protocol is one-directional runner->orchestrator.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
