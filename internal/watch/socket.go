package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// SocketPath extracts the filesystem path from a unix:// daemon host.
func SocketPath(host string) (string, bool) {
	path, ok := strings.CutPrefix(host, "unix://")
	if !ok || path == "" {
		return "", false
	}
	return path, true
}

// StartSocketWatcher watches the directory holding the daemon socket and
// calls RefreshAll when the socket is created again, i.e. the daemon came
// back. Hosts that are not unix sockets are ignored.
func StartSocketWatcher(ctx context.Context, host string, r Refresher) error {
	sockPath, ok := SocketPath(host)
	if !ok {
		slog.Debug("socket watcher: not a unix socket, skipping", "host", host)
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("socket watcher: %w", err)
	}
	dir := filepath.Dir(sockPath)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("socket watcher: watch %s: %w", dir, err)
	}

	go runSocketWatcher(ctx, watcher, filepath.Clean(sockPath), r)

	slog.Info("daemon socket watcher started", "socket", sockPath)
	return nil
}

func runSocketWatcher(ctx context.Context, watcher *fsnotify.Watcher, sockPath string, r Refresher) {
	defer watcher.Close()

	d := newDebouncer(debounceDelay)
	defer d.stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != sockPath {
				continue
			}
			switch {
			case event.Op&fsnotify.Create != 0:
				slog.Info("daemon socket created", "socket", sockPath)
				d.trigger("socket", r.RefreshAll)
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				slog.Warn("daemon socket removed", "socket", sockPath)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("socket watcher error", "err", err)
		}
	}
}
