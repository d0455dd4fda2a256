package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatal("dial ws:", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatal("read:", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("unmarshal %s: %v", data, err)
	}
}

func writeJSONMsg(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatal("write:", err)
	}
}

func waitForConns(t *testing.T, s *Server, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for s.ConnectionCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("connection count = %d, want %d", s.ConnectionCount(), n)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestServer_ConnectAndEcho(t *testing.T) {
	s := NewServer()
	s.HandleConnect(func(c *Conn) {
		Push(c, "hello", 1, c.ID())
	})
	s.Handle("echo", func(c *Conn, req *Request) {
		var args []string
		json.Unmarshal(req.Args, &args)
		SendAck(c, *req.ID, Result{OK: true, Msg: strings.Join(args, " ")})
	})

	srv := httptest.NewServer(s)
	defer srv.Close()
	conn := dial(t, srv)

	var hello PushMessage[string]
	readJSON(t, conn, &hello)
	if hello.Event != "hello" || hello.Version != 1 || !strings.HasPrefix(hello.Data, "c") {
		t.Errorf("hello = %+v", hello)
	}

	writeJSONMsg(t, conn, map[string]any{"id": 7, "event": "echo", "args": []string{"a", "b"}})
	var ack Ack[Result]
	readJSON(t, conn, &ack)
	if ack.ID != 7 || !ack.Data.OK || ack.Data.Msg != "a b" {
		t.Errorf("ack = %+v", ack)
	}
}

func TestServer_UnknownEvent(t *testing.T) {
	s := NewServer()
	srv := httptest.NewServer(s)
	defer srv.Close()
	conn := dial(t, srv)

	writeJSONMsg(t, conn, map[string]any{"id": 1, "event": "nope"})
	var ack Ack[Result]
	readJSON(t, conn, &ack)
	if ack.ID != 1 || ack.Data.OK || ack.Data.Msg != "unknown event: nope" {
		t.Errorf("ack = %+v", ack)
	}
}

// A value read before a newer one was pushed must not reach the client
// after it, and an unchanged value is not resent.
func TestConn_PushOrdering(t *testing.T) {
	s := NewServer()
	results := make(chan []bool, 1)
	s.HandleConnect(func(c *Conn) {
		results <- []bool{
			Push(c, "lastAction", 2, "newer"),
			Push(c, "lastAction", 1, "older"),
			Push(c, "lastAction", 2, "newer"),
			// Newer version with the same payload.
			Push(c, "lastAction", 3, "newer"),
			Push(c, "isLoading", 1, true),
			Push(c, "lastAction", 4, "newest"),
		}
	})

	srv := httptest.NewServer(s)
	defer srv.Close()
	conn := dial(t, srv)

	got := <-results
	want := []bool{true, false, false, false, true, true}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("push %d written = %v, want %v", i, got[i], want[i])
		}
	}

	var msgs []PushMessage[any]
	for range 3 {
		var m PushMessage[any]
		readJSON(t, conn, &m)
		msgs = append(msgs, m)
	}
	if msgs[0].Data != "newer" || msgs[0].Version != 2 {
		t.Errorf("first push = %+v", msgs[0])
	}
	if msgs[1].Event != "isLoading" || msgs[1].Data != true {
		t.Errorf("second push = %+v", msgs[1])
	}
	if msgs[2].Data != "newest" || msgs[2].Version != 4 {
		t.Errorf("third push = %+v", msgs[2])
	}
}

func TestServer_BroadcastAndClose(t *testing.T) {
	s := NewServer()
	srv := httptest.NewServer(s)
	defer srv.Close()
	a, b := dial(t, srv), dial(t, srv)
	waitForConns(t, s, 2)

	if n := Broadcast(s, "isLoading", 1, true); n != 2 {
		t.Errorf("broadcast reached %d connections, want 2", n)
	}
	if n := Broadcast(s, "isLoading", 2, true); n != 0 {
		t.Errorf("unchanged payload reached %d connections, want 0", n)
	}
	for _, conn := range []*websocket.Conn{a, b} {
		var msg PushMessage[bool]
		readJSON(t, conn, &msg)
		if msg.Event != "isLoading" || !msg.Data || msg.Version != 1 {
			t.Errorf("broadcast = %+v", msg)
		}
	}

	s.CloseAll()
	waitForConns(t, s, 0)
}
