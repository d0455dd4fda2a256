package handlers

import (
	"context"
	"log/slog"

	"github.com/MH0386/containr/internal/state"
	"github.com/MH0386/containr/internal/ws"
)

// sendAllBroadcastsTo pushes the current value of every channel to a new
// connection. The connection drops any of these that a concurrent
// broadcast has already overtaken.
func (app *App) sendAllBroadcastsTo(c *ws.Conn) {
	store := app.Inventory.Store()
	for _, f := range state.AllFields() {
		v, version := store.Versioned(f)
		ws.Push(c, f.String(), version, v)
	}
}

// StartBroadcaster pushes every store change to all connections until ctx
// is done. Each changed field goes out on the channel of the same name.
func (app *App) StartBroadcaster(ctx context.Context) {
	store := app.Inventory.Store()
	sub := store.Subscribe()

	go func() {
		defer store.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-sub.Ready():
				if !ok {
					return
				}
				for _, f := range sub.Changes() {
					v, version := store.Versioned(f)
					n := ws.Broadcast(app.WS, f.String(), version, v)
					slog.Debug("broadcast", "channel", f, "version", version, "conns", n)
				}
			}
		}
	}()
}
