// Package testutil wires a complete in-process environment for integration
// tests: a fake Docker daemon, a real SDK client, the inventory, and the
// websocket server behind httptest.
package testutil

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/MH0386/containr/internal/docker"
	"github.com/MH0386/containr/internal/handlers"
	"github.com/MH0386/containr/internal/state"
	"github.com/MH0386/containr/internal/ws"
)

var msgIDCounter int64

// TestEnv holds a fully wired test application backed by a fake daemon.
type TestEnv struct {
	App       *handlers.App
	Inventory *state.Inventory
	Server    *httptest.Server
	WSServer  *ws.Server
	State     *docker.FakeState // nil when set up without a daemon
	Host      string
}

// Setup creates a test environment with a fake daemon serving the default
// inventory. Nothing is fetched until a test asks for a refresh.
func Setup(t testing.TB) *TestEnv {
	t.Helper()

	fs := docker.DefaultFakeState()
	sockPath, daemonCleanup, err := docker.StartFakeDaemon(fs)
	if err != nil {
		t.Fatal("start fake daemon:", err)
	}
	host := "unix://" + sockPath

	client, err := docker.Connect(context.Background(), host)
	if err != nil {
		daemonCleanup()
		t.Fatal("connect:", err)
	}

	t.Cleanup(func() {
		client.Close()
		daemonCleanup()
	})

	env := setup(t, client, host)
	env.State = fs
	return env
}

// SetupUnavailable creates a test environment whose inventory has no daemon
// client, as after a failed connect at startup.
func SetupUnavailable(t testing.TB) *TestEnv {
	t.Helper()
	return setup(t, nil, "unix:///nonexistent/docker.sock")
}

func setup(t testing.TB, client docker.Client, host string) *TestEnv {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())

	inv := state.New(client, host, state.WithContext(ctx))
	wss := ws.NewServer()
	app := handlers.NewApp(wss, inv, "test")
	handlers.RegisterInventoryHandlers(app)
	app.StartBroadcaster(ctx)

	mux := http.NewServeMux()
	mux.Handle("/ws", wss)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	server := httptest.NewServer(mux)

	t.Cleanup(func() {
		inv.Wait()
		cancel()
		wss.CloseAll()
		server.Close()
	})

	return &TestEnv{
		App:       app,
		Inventory: inv,
		Server:    server,
		WSServer:  wss,
		Host:      host,
	}
}

// DialWS opens a WebSocket connection to the test server. Push messages sent
// on connect are not drained here.
func (e *TestEnv) DialWS(t testing.TB) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(e.Server.URL, "http") + "/ws"
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatal("dial ws:", err)
	}
	conn.SetReadLimit(1 << 20)

	t.Cleanup(func() {
		conn.Close(websocket.StatusNormalClosure, "")
	})

	return conn
}

// SendAndReceive sends a WS event with an ack ID and returns the parsed ack
// data. Push messages read while waiting are skipped.
func (e *TestEnv) SendAndReceive(t testing.TB, conn *websocket.Conn, event string, args ...any) map[string]any {
	t.Helper()

	id := atomic.AddInt64(&msgIDCounter, 1)
	writeMessage(t, conn, map[string]any{"id": id, "event": event, "args": args})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for {
		_, respData, err := conn.Read(ctx)
		if err != nil {
			t.Fatal("read:", err)
		}

		var raw map[string]json.RawMessage
		if err := json.Unmarshal(respData, &raw); err != nil {
			t.Fatal("unmarshal response:", err)
		}

		idRaw, ok := raw["id"]
		if !ok {
			continue
		}
		var ackID int64
		if err := json.Unmarshal(idRaw, &ackID); err != nil || ackID != id {
			continue
		}
		var ack struct {
			Data map[string]any `json:"data"`
		}
		if err := json.Unmarshal(respData, &ack); err != nil {
			t.Fatal("unmarshal ack:", err)
		}
		return ack.Data
	}
}

// SendEvent sends a WS event without waiting for an ack.
func (e *TestEnv) SendEvent(t testing.TB, conn *websocket.Conn, event string, args ...any) {
	t.Helper()
	writeMessage(t, conn, map[string]any{"event": event, "args": args})
}

// WaitForPush reads messages until a push on channel satisfies match, and
// returns it. Other messages are skipped.
func (e *TestEnv) WaitForPush(t testing.TB, conn *websocket.Conn, channel string, match func(data json.RawMessage) bool) ws.PushMessage[json.RawMessage] {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for {
		_, respData, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("waiting for %s push: %v", channel, err)
		}
		var msg ws.PushMessage[json.RawMessage]
		if err := json.Unmarshal(respData, &msg); err != nil {
			t.Fatal("unmarshal push:", err)
		}
		if msg.Event != channel {
			continue
		}
		if match == nil || match(msg.Data) {
			return msg
		}
	}
}

func writeMessage(t testing.TB, conn *websocket.Conn, msg map[string]any) {
	t.Helper()

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatal("marshal msg:", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatal("write:", err)
	}
}
