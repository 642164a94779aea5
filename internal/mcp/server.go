package mcp

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/alucardeht/birdwatch-mcp/internal/logger"
	"github.com/alucardeht/birdwatch-mcp/internal/tools"
	"github.com/alucardeht/birdwatch-mcp/pkg/protocol"
)

var log = logger.ForComponent("mcp")

// Server speaks MCP over a JSON-RPC stream and forwards tool calls to a
// dispatcher. Tool calls run concurrently; every other request is answered
// in arrival order.
type Server struct {
	dispatcher  *tools.Dispatcher
	initialized atomic.Bool

	mu         sync.Mutex
	clientInfo protocol.Implementation
	inflight   map[jsonrpc2.ID]context.CancelFunc
}

func NewServer(dispatcher *tools.Dispatcher) *Server {
	return &Server{
		dispatcher: dispatcher,
		inflight:   make(map[jsonrpc2.ID]context.CancelFunc),
	}
}

// Serve runs until the peer disconnects or ctx is cancelled. Either way the
// stream is closed and every in-flight call is cancelled before it returns.
func (s *Server) Serve(ctx context.Context, rwc io.ReadWriteCloser) error {
	stream := jsonrpc2.NewBufferedStream(rwc, jsonrpc2.PlainObjectCodec{})
	conn := jsonrpc2.NewConn(ctx, stream, s, jsonrpc2.SetLogger(connLogger{}))

	log.Info("mcp server ready", "capabilities", s.dispatcher.Registry().Len())

	select {
	case <-conn.DisconnectNotify():
		log.Info("client disconnected")
	case <-ctx.Done():
		log.Info("shutting down", "reason", ctx.Err())
		conn.Close()
	}

	s.cancelAll()
	return nil
}

func (s *Server) Initialized() bool {
	return s.initialized.Load()
}

func (s *Server) ClientInfo() protocol.Implementation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clientInfo
}

func (s *Server) track(id jsonrpc2.ID, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight[id] = cancel
}

func (s *Server) untrack(id jsonrpc2.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, id)
}

// cancel reports whether a call with that id was still running.
func (s *Server) cancel(id jsonrpc2.ID) bool {
	s.mu.Lock()
	cancel, ok := s.inflight[id]
	s.mu.Unlock()

	if ok {
		cancel()
	}
	return ok
}

func (s *Server) cancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, cancel := range s.inflight {
		cancel()
		delete(s.inflight, id)
	}
}

// connLogger routes jsonrpc2's own diagnostics into the structured log.
type connLogger struct{}

func (connLogger) Printf(format string, v ...interface{}) {
	log.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
