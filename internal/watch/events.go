package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MH0386/containr/internal/docker"
	"github.com/MH0386/containr/internal/state"
)

// EventSource streams daemon events. docker.Client satisfies it.
type EventSource interface {
	Events(ctx context.Context) (<-chan docker.Event, <-chan error)
}

var errStreamClosed = errors.New("docker events stream closed")

// WatchEvents refreshes the matching resource kind after daemon events,
// debounced per kind. It blocks until ctx is done (returning nil) or the
// event stream fails or ends (returning the cause). The stream is not
// reopened.
func WatchEvents(ctx context.Context, src EventSource, r Refresher) error {
	return watchEvents(ctx, src, r, debounceDelay)
}

func watchEvents(ctx context.Context, src EventSource, r Refresher, delay time.Duration) error {
	d := newDebouncer(delay)
	defer d.stop()

	eventCh, errCh := src.Events(ctx)
	slog.Info("docker event watcher started")

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-eventCh:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errStreamClosed
			}
			kind, ok := kindForEvent(evt)
			if !ok {
				continue
			}
			slog.Debug("docker event", "type", evt.Type, "action", evt.Action, "id", evt.ActorID)
			d.trigger(string(kind), func() { r.Refresh(kind) })

		case err, ok := <-errCh:
			if ctx.Err() != nil {
				return nil
			}
			if !ok {
				// Error channel closed first; keep draining events.
				errCh = nil
				continue
			}
			return fmt.Errorf("docker events: %w", err)
		}
	}
}

func kindForEvent(evt docker.Event) (state.Kind, bool) {
	switch evt.Type {
	case docker.EventContainer:
		return state.KindContainers, true
	case docker.EventImage:
		return state.KindImages, true
	case docker.EventVolume:
		return state.KindVolumes, true
	}
	return "", false
}
