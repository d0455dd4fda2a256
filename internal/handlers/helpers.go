package handlers

import (
	"encoding/json"
	"log/slog"

	"github.com/MH0386/containr/internal/state"
	"github.com/MH0386/containr/internal/ws"
)

// App holds shared dependencies for all handlers.
type App struct {
	WS        *ws.Server
	Inventory *state.Inventory
	Version   string
}

// NewApp returns an App ready for RegisterInventoryHandlers.
func NewApp(wss *ws.Server, inv *state.Inventory, version string) *App {
	return &App{
		WS:        wss,
		Inventory: inv,
		Version:   version,
	}
}

// ack sends data as the ack for req if the client asked for one.
func ack[T any](c *ws.Conn, req *ws.Request, data T) {
	if req == nil || req.ID == nil {
		return
	}
	ws.SendAck(c, *req.ID, data)
}

// parseArgs unmarshals the Args JSON array into a slice of json.RawMessage.
func parseArgs(req *ws.Request) []json.RawMessage {
	if req == nil || len(req.Args) == 0 {
		return nil
	}
	var args []json.RawMessage
	if err := json.Unmarshal(req.Args, &args); err != nil {
		slog.Warn("parse args", "err", err)
		return nil
	}
	return args
}

// argString extracts a string from args at the given index.
func argString(args []json.RawMessage, index int) string {
	if index >= len(args) {
		return ""
	}
	var s string
	if err := json.Unmarshal(args[index], &s); err != nil {
		return ""
	}
	return s
}
