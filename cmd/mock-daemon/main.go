// Command mock-daemon runs a standalone fake Docker daemon on a Unix socket,
// seeded with a small inventory, so the UI can be developed without Docker.
//
// Usage:
//
//	mock-daemon --socket /tmp/containr-mock/docker.sock
//	CONTAINR_DOCKER_HOST=unix:///tmp/containr-mock/docker.sock containr
//
// Failures can be injected at runtime:
//
//	curl --unix-socket /tmp/containr-mock/docker.sock -d 'disk full' http://docker/_mock/fail/images
//	curl --unix-socket /tmp/containr-mock/docker.sock -X POST http://docker/_mock/reset
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/MH0386/containr/internal/config"
	"github.com/MH0386/containr/internal/docker"
)

func main() {
	var (
		socketPath string
		empty      bool
		logLevel   string
	)

	flag.StringVar(&socketPath, "socket", "", "Unix socket path (default: /tmp/containr-mock-<pid>/docker.sock)")
	flag.BoolVar(&empty, "empty", false, "Start with no containers, images or volumes")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.ParseLogLevel(logLevel),
	})))

	// Default socket path if not specified
	if socketPath == "" {
		socketPath = filepath.Join(os.TempDir(), fmt.Sprintf("containr-mock-%d", os.Getpid()), "docker.sock")
	}
	if err := os.MkdirAll(filepath.Dir(socketPath), 0o755); err != nil {
		slog.Error("create socket dir", "err", err)
		os.Exit(1)
	}

	fakeState := docker.DefaultFakeState()
	if empty {
		fakeState = docker.NewFakeState()
	}

	cleanup, err := docker.StartFakeDaemonOnSocket(fakeState, socketPath)
	if err != nil {
		slog.Error("start fake daemon", "err", err)
		os.Exit(1)
	}
	defer cleanup()

	// Print socket path to stdout so parent processes can discover it
	fmt.Println(socketPath)

	slog.Info("mock daemon started",
		"socket", socketPath,
		"containers", len(fakeState.Containers()),
		"images", len(fakeState.Images()),
		"volumes", len(fakeState.Volumes()),
	)

	// Wait for SIGINT/SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("mock daemon shutting down")
}
