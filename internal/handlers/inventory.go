package handlers

import (
	"log/slog"

	"github.com/MH0386/containr/internal/docker"
	"github.com/MH0386/containr/internal/state"
	"github.com/MH0386/containr/internal/ws"
)

// SnapshotResponse is the ack payload of getSnapshot. Version is the
// server build.
type SnapshotResponse struct {
	OK       bool           `json:"ok"`
	Version  string         `json:"version"`
	Snapshot state.Snapshot `json:"snapshot"`
}

// RegisterInventoryHandlers wires the UI events to the inventory entry
// points. Every entry point only starts background work, so an OK ack means
// "accepted"; outcomes arrive on the broadcast channels.
func RegisterInventoryHandlers(app *App) {
	app.WS.Handle("refreshAll", app.handleRefresh("all", app.Inventory.RefreshAll))
	app.WS.Handle("refreshContainers", app.handleRefresh("containers", app.Inventory.RefreshContainers))
	app.WS.Handle("refreshImages", app.handleRefresh("images", app.Inventory.RefreshImages))
	app.WS.Handle("refreshVolumes", app.handleRefresh("volumes", app.Inventory.RefreshVolumes))
	app.WS.Handle("setContainerState", app.handleSetContainerState)
	app.WS.Handle("recordAction", app.handleRecordAction)
	app.WS.Handle("getSnapshot", app.handleGetSnapshot)

	app.WS.HandleConnect(app.sendAllBroadcastsTo)
}

func (app *App) handleRefresh(kind string, refresh func()) ws.HandlerFunc {
	return func(c *ws.Conn, req *ws.Request) {
		slog.Debug("refresh requested", "kind", kind, "conn", c.ID())
		refresh()
		ack(c, req, ws.OK())
	}
}

// handleSetContainerState expects args [id, "running"|"stopped"].
func (app *App) handleSetContainerState(c *ws.Conn, req *ws.Request) {
	args := parseArgs(req)
	id := argString(args, 0)
	if id == "" {
		ack(c, req, ws.Fail("container id required"))
		return
	}

	var target docker.RuntimeState
	if err := target.UnmarshalText([]byte(argString(args, 1))); err != nil {
		ack(c, req, ws.Fail(err.Error()))
		return
	}

	app.Inventory.SetContainerState(id, target)
	ack(c, req, ws.OK())
}

func (app *App) handleRecordAction(c *ws.Conn, req *ws.Request) {
	// argString yields "" for a missing or non-string argument; neither may
	// clear the last action.
	action := argString(parseArgs(req), 0)
	if action == "" {
		ack(c, req, ws.Fail("action message must be a non-empty string"))
		return
	}
	app.Inventory.RecordAction(action)
	ack(c, req, ws.OK())
}

func (app *App) handleGetSnapshot(c *ws.Conn, req *ws.Request) {
	ack(c, req, SnapshotResponse{OK: true, Version: app.Version, Snapshot: app.Inventory.Store().Snapshot()})
}
