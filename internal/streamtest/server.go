// Package streamtest provides a fake document-stream WebSocket server for
// integration tests. It speaks the docstream wire format over text frames
// and can greet, broadcast, finish, and kill connections on demand.
//
// The WebSocket server is implemented using the `gws` library. Frames are
// passed around as raw JSON so the package stays independent of the client
// types it is used to test.
package streamtest

import (
	"context"
	"errors"
	"log"
	"net"
	"sync"

	"github.com/lxzan/gws"
)

// Server is a scripted document-stream server. Use "127.0.0.1:0" to bind
// to a random available port.
type Server struct {
	addr     string
	listener net.Listener
	server   *gws.Server

	mu          sync.RWMutex
	greeting    [][]byte
	connections map[*gws.Conn]bool
	totalConns  int
}

type handler struct {
	server *Server
}

// NewServer creates a stream server bound to addr once started.
func NewServer(addr string) *Server {
	s := &Server{
		addr:        addr,
		connections: make(map[*gws.Conn]bool),
	}

	s.server = gws.NewServer(&handler{server: s}, &gws.ServerOption{})
	s.server.OnError = func(_ net.Conn, err error) {
		if !errors.Is(err, net.ErrClosed) && !isUseOfClosedNetworkError(err) {
			log.Printf("streamtest server error: %v", err)
		}
	}

	return s
}

// Start begins accepting WebSocket connections.
func (s *Server) Start() error {
	var lc net.ListenConfig
	listener, err := lc.Listen(context.Background(), "tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener

	go func() {
		if err := s.server.RunListener(listener); err != nil {
			// "use of closed network connection" is expected on shutdown.
			if !errors.Is(err, net.ErrClosed) && !isUseOfClosedNetworkError(err) {
				log.Printf("streamtest server error: %v", err)
			}
		}
	}()

	return nil
}

// Stop closes every connection and the listener.
func (s *Server) Stop() error {
	s.CloseAll(1001, "server stopping")
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

// Address returns the actual address the server is listening on. This is
// the assigned port when the server was created with "127.0.0.1:0".
func (s *Server) Address() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// URL returns a ws:// endpoint for the running server.
func (s *Server) URL() string {
	return "ws://" + s.Address() + "/stream"
}

// Greet sets the frames written to every connection as soon as it opens.
func (s *Server) Greet(frames ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.greeting = s.greeting[:0]
	for _, f := range frames {
		s.greeting = append(s.greeting, []byte(f))
	}
}

// Broadcast writes one raw frame to every open connection and reports how
// many received it.
func (s *Server) Broadcast(frame string) int {
	conns := s.conns()
	for _, socket := range conns {
		if err := socket.WriteMessage(gws.OpcodeText, []byte(frame)); err != nil {
			log.Printf("streamtest broadcast error: %v", err)
		}
	}
	return len(conns)
}

// BroadcastPatch wraps a JSON array of operations in the stream envelope
// and broadcasts it.
func (s *Server) BroadcastPatch(ops string) int {
	return s.Broadcast(PatchFrame(ops))
}

// Finish broadcasts the terminal message.
func (s *Server) Finish() int {
	return s.Broadcast(FinishedFrame())
}

// CloseAll sends a close frame with the given code to every connection.
func (s *Server) CloseAll(code uint16, reason string) {
	for _, socket := range s.conns() {
		socket.WriteClose(code, []byte(reason))
	}
}

// DropAll kills every connection at the TCP level, with no close frame.
func (s *Server) DropAll() {
	for _, socket := range s.conns() {
		_ = socket.NetConn().Close()
	}
}

// ConnCount returns the number of currently open connections.
func (s *Server) ConnCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.connections)
}

// TotalConns returns how many connections the server has ever accepted.
func (s *Server) TotalConns() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totalConns
}

func (s *Server) conns() []*gws.Conn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*gws.Conn, 0, len(s.connections))
	for socket := range s.connections {
		out = append(out, socket)
	}
	return out
}

// PatchFrame wraps a JSON array of operations in the stream envelope.
func PatchFrame(ops string) string {
	return `{"JsonPatch":` + ops + `}`
}

// FinishedFrame is the terminal stream message.
func FinishedFrame() string {
	return `{"finished":true}`
}

func (h *handler) OnOpen(socket *gws.Conn) {
	h.server.mu.Lock()
	h.server.connections[socket] = true
	h.server.totalConns++
	greeting := append([][]byte(nil), h.server.greeting...)
	h.server.mu.Unlock()

	for _, frame := range greeting {
		if err := socket.WriteMessage(gws.OpcodeText, frame); err != nil {
			log.Printf("streamtest greeting error: %v", err)
			return
		}
	}
}

func (h *handler) OnClose(socket *gws.Conn, err error) {
	h.server.mu.Lock()
	delete(h.server.connections, socket)
	h.server.mu.Unlock()
}

func (h *handler) OnPing(socket *gws.Conn, payload []byte) {
	if err := socket.WritePong(payload); err != nil {
		log.Printf("streamtest pong error: %v", err)
	}
}

func (h *handler) OnPong(socket *gws.Conn, payload []byte) {
}

func (h *handler) OnMessage(socket *gws.Conn, message *gws.Message) {
	// The stream is one-way; clients have nothing to say.
	defer message.Close()
}

func isUseOfClosedNetworkError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return errStr == "use of closed network connection" ||
		(len(errStr) > 30 && errStr[len(errStr)-30:] == "use of closed network connection")
}
