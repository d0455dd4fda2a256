package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
)

const (
	writeTimeout = 10 * time.Second
	maxRequest   = 1 << 20
)

var connSeq atomic.Uint64

// channelState is what a connection last received on one push channel.
type channelState struct {
	version uint64
	sum     uint64
}

// Conn is one UI connection. Writes are serialized, and per push channel
// the connection remembers the version and payload sum it last sent: an
// older version is never written after a newer one, and an unchanged
// payload is not written twice.
type Conn struct {
	ws     *websocket.Conn
	server *Server
	id     string

	mu       sync.Mutex
	closed   bool
	channels map[string]channelState
}

func newConn(ws *websocket.Conn, server *Server) *Conn {
	return &Conn{
		ws:       ws,
		server:   server,
		id:       "c" + strconv.FormatUint(connSeq.Add(1), 10),
		channels: make(map[string]channelState),
	}
}

func (c *Conn) ID() string { return c.id }

// Push sends data on channel event at version. It reports whether anything
// was written; stale versions and unchanged payloads are dropped.
func Push[T any](c *Conn, event string, version uint64, data T) bool {
	p, err := encodePush(event, version, data)
	if err != nil {
		slog.Error("ws encode push", "event", event, "err", err)
		return false
	}
	return c.push(p)
}

func (c *Conn) push(p push) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	last, seen := c.channels[p.event]
	if seen && p.version <= last.version {
		return false
	}
	if seen && p.sum == last.sum {
		c.channels[p.event] = channelState{version: p.version, sum: p.sum}
		return false
	}
	if !c.writeLocked(p.msg) {
		return false
	}
	c.channels[p.event] = channelState{version: p.version, sum: p.sum}
	return true
}

// SendAck answers the request with the given id.
func SendAck[T any](c *Conn, id int64, data T) {
	msg, err := json.Marshal(Ack[T]{ID: id, Data: data})
	if err != nil {
		slog.Error("ws encode ack", "id", id, "err", err)
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeLocked(msg)
}

// writeLocked writes one message. A failed write closes the connection.
func (c *Conn) writeLocked(msg []byte) bool {
	if c.closed {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := c.ws.Write(ctx, websocket.MessageText, msg); err != nil {
		slog.Debug("ws write", "conn", c.id, "err", err)
		c.closeLocked()
		return false
	}
	return true
}

// readPump decodes requests until the connection fails, then unregisters it.
func (c *Conn) readPump(ctx context.Context) {
	defer func() {
		c.server.remove(c)
		c.Close()
	}()

	c.ws.SetReadLimit(maxRequest)
	for {
		_, data, err := c.ws.Read(ctx)
		if err != nil {
			slog.Debug("ws read", "conn", c.id, "err", err)
			return
		}
		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			slog.Warn("ws bad request", "conn", c.id, "err", err)
			continue
		}
		go c.server.dispatch(c, &req)
	}
}

func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Conn) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	c.ws.Close(websocket.StatusNormalClosure, "")
}
