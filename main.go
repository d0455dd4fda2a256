package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	netpprof "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MH0386/containr/internal/config"
	"github.com/MH0386/containr/internal/docker"
	"github.com/MH0386/containr/internal/handlers"
	"github.com/MH0386/containr/internal/metrics"
	"github.com/MH0386/containr/internal/state"
	"github.com/MH0386/containr/internal/watch"
	"github.com/MH0386/containr/internal/ws"
)

// version is set at build time via -ldflags="-X main.version=..."
var version = "0.1.0"

const connectTimeout = 5 * time.Second

func main() {
	// Quick healthcheck mode, used by a container HEALTHCHECK. Hits /healthz
	// and exits without initializing anything.
	if len(os.Args) > 1 && os.Args[1] == "healthcheck" {
		port := "5001"
		if v := os.Getenv("CONTAINR_PORT"); v != "" {
			port = v
		}
		resp, err := http.Get("http://127.0.0.1:" + port + "/healthz")
		if err != nil || resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		os.Exit(0)
	}

	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "containr:", err)
		os.Exit(2)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	})))

	host := docker.ResolveHost(cfg.DockerHost)
	slog.Info("starting containr",
		"version", version,
		"port", cfg.Port,
		"dockerHost", host,
		"refreshInterval", cfg.RefreshInterval,
		"watchEvents", cfg.WatchEvents,
		"watchSocket", cfg.WatchSocket,
		"metrics", cfg.Metrics,
		"pprof", cfg.Pprof,
		"logLevel", cfg.LogLevel,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// A failed connect is not fatal: the inventory runs without a client and
	// every operation reports the daemon as unavailable.
	var client docker.Client
	connectCtx, connectCancel := context.WithTimeout(ctx, connectTimeout)
	sdk, err := docker.Connect(connectCtx, host)
	connectCancel()
	if err != nil {
		slog.Warn("docker daemon unavailable", "host", host, "err", err)
	} else {
		slog.Info("docker daemon connected", "host", sdk.Host())
		client = sdk
		defer sdk.Close()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	var rec metrics.Recorder = metrics.NoopRecorder{}
	if cfg.Metrics {
		reg := metrics.NewRegistry()
		rec = metrics.NewPrometheusRecorder(reg)
		mux.Handle("/metrics", metrics.HTTPHandler(reg))
	}

	if cfg.Pprof {
		mux.HandleFunc("/debug/pprof/", pprofIndex)
		mux.HandleFunc("/debug/pprof/cmdline", pprofCmdline)
		mux.HandleFunc("/debug/pprof/profile", pprofProfile)
		mux.HandleFunc("/debug/pprof/symbol", pprofSymbol)
		mux.HandleFunc("/debug/pprof/trace", pprofTrace)
		slog.Info("pprof enabled at /debug/pprof/")
	}

	inv := state.New(client, host,
		state.WithContext(ctx),
		state.WithLogger(slog.Default()),
		state.WithMetrics(rec),
	)

	wss := ws.NewServer()
	mux.Handle("/ws", wss)

	app := handlers.NewApp(wss, inv, version)
	handlers.RegisterInventoryHandlers(app)
	app.StartBroadcaster(ctx)

	if client != nil {
		startWatchers(ctx, cfg, client, host, inv)
	}

	var sched *watch.Scheduler
	if cfg.RefreshInterval > 0 {
		sched, err = watch.NewScheduler()
		if err != nil {
			slog.Error("scheduler", "err", err)
			os.Exit(1)
		}
		if _, err := sched.SchedulePeriodicRefresh(cfg.RefreshInterval, inv); err != nil {
			slog.Error("schedule refresh", "err", err)
			os.Exit(1)
		}
		sched.Start()
	}

	// Initial load
	inv.RefreshAll()

	srv := &http.Server{
		Addr:        cfg.Addr(),
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		slog.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	if sched != nil {
		if err := sched.Stop(); err != nil {
			slog.Warn("scheduler stop", "err", err)
		}
	}
	cancel()
	wss.CloseAll()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)
}

// startWatchers starts the daemon event and socket watchers that keep the
// inventory fresh without UI requests.
func startWatchers(ctx context.Context, cfg *config.Config, client docker.Client, host string, inv *state.Inventory) {
	if cfg.WatchEvents {
		go func() {
			if err := watch.WatchEvents(ctx, client, inv); err != nil {
				slog.Warn("docker event watcher stopped", "err", err)
			}
		}()
	}
	if cfg.WatchSocket {
		if err := watch.StartSocketWatcher(ctx, host, inv); err != nil {
			slog.Warn("socket watcher failed to start", "err", err)
		}
	}
}

// pprof handler wrappers: net/http/pprof registers on DefaultServeMux via init(),
// but we use a custom mux. Reference the exported handler functions directly.
var (
	pprofIndex   = netpprof.Index
	pprofCmdline = netpprof.Cmdline
	pprofProfile = netpprof.Profile
	pprofSymbol  = netpprof.Symbol
	pprofTrace   = netpprof.Trace
)
