package ws

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
)

// HandlerFunc serves one request. Each request runs on its own goroutine.
type HandlerFunc func(c *Conn, req *Request)

// Server accepts UI connections, routes their requests by event name and
// fans pushes out to every connection.
type Server struct {
	mu    sync.RWMutex
	conns map[*Conn]struct{}

	handlers  map[string]HandlerFunc
	connectFn func(c *Conn)
}

func NewServer() *Server {
	return &Server{
		conns:    make(map[*Conn]struct{}),
		handlers: make(map[string]HandlerFunc),
	}
}

// Handle registers fn for event. Register everything before serving.
func (s *Server) Handle(event string, fn HandlerFunc) {
	s.handlers[event] = fn
}

// HandleConnect registers fn to run for every new connection, after it is
// registered for pushes and before its first request is read.
func (s *Server) HandleConnect(fn func(c *Conn)) {
	s.connectFn = fn
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wsConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// The UI may be served from a dev server on another origin.
		InsecureSkipVerify: true,
	})
	if err != nil {
		slog.Error("ws accept", "err", err)
		return
	}

	c := newConn(wsConn, s)
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()
	slog.Debug("ws connected", "remote", r.RemoteAddr, "conn", c.ID())

	if s.connectFn != nil {
		s.connectFn(c)
	}
	c.readPump(r.Context())
}

// Broadcast encodes data once and pushes it to every connection. It
// returns how many connections were written to.
func Broadcast[T any](s *Server, event string, version uint64, data T) int {
	p, err := encodePush(event, version, data)
	if err != nil {
		slog.Error("ws encode broadcast", "event", event, "err", err)
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for c := range s.conns {
		if c.push(p) {
			n++
		}
	}
	return n
}

func (s *Server) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

// CloseAll closes every connection. Used on shutdown.
func (s *Server) CloseAll() {
	s.mu.RLock()
	conns := make([]*Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.RUnlock()

	for _, c := range conns {
		c.Close()
	}
}

func (s *Server) remove(c *Conn) {
	s.mu.Lock()
	delete(s.conns, c)
	remaining := len(s.conns)
	s.mu.Unlock()
	slog.Debug("ws disconnected", "conn", c.ID(), "remaining", remaining)
}

func (s *Server) dispatch(c *Conn, req *Request) {
	h, ok := s.handlers[req.Event]
	if !ok {
		slog.Warn("ws unknown event", "event", req.Event, "conn", c.ID())
		if req.ID != nil {
			SendAck(c, *req.ID, Fail("unknown event: "+req.Event))
		}
		return
	}
	h(c, req)
}
