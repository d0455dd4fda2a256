package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// clearEnv blanks every CONTAINR_* variable for the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{"CONFIG", "PORT", "DOCKER_HOST", "LOG_LEVEL", "REFRESH_INTERVAL", "WATCH_EVENTS", "WATCH_SOCKET", "METRICS", "PPROF"} {
		t.Setenv(envPrefix+name, "")
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "containr.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParse_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Parse(nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 5001 {
		t.Errorf("port = %d", cfg.Port)
	}
	if cfg.DockerHost != "" {
		t.Errorf("docker host = %q", cfg.DockerHost)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("log level = %v", cfg.LogLevel)
	}
	if cfg.RefreshInterval != 0 {
		t.Errorf("refresh interval = %v", cfg.RefreshInterval)
	}
	if !cfg.WatchEvents || !cfg.WatchSocket || !cfg.Metrics || cfg.Pprof {
		t.Errorf("toggles = %+v", cfg)
	}
	if cfg.Addr() != ":5001" {
		t.Errorf("addr = %q", cfg.Addr())
	}
}

func TestParse_Flags(t *testing.T) {
	clearEnv(t)

	cfg, err := Parse([]string{
		"--port", "8080",
		"--docker-host", "tcp://10.0.0.2:2375",
		"--log-level", "debug",
		"--refresh-interval", "30s",
		"--watch-events=false",
		"--metrics=false",
	})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 8080 || cfg.DockerHost != "tcp://10.0.0.2:2375" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("log level = %v", cfg.LogLevel)
	}
	if cfg.RefreshInterval != 30*time.Second {
		t.Errorf("refresh interval = %v", cfg.RefreshInterval)
	}
	if cfg.WatchEvents || cfg.Metrics {
		t.Errorf("toggles not applied: %+v", cfg)
	}
}

func TestParse_FileUnderFlags(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `
port: 6000
docker_host: unix:///run/user/1000/docker.sock
log_level: warn
refresh_interval: 1m
watch_socket: false
`)

	cfg, err := Parse([]string{"--config", path, "--port", "7000"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 7000 {
		t.Errorf("flag should beat file: port = %d", cfg.Port)
	}
	if cfg.DockerHost != "unix:///run/user/1000/docker.sock" {
		t.Errorf("docker host = %q", cfg.DockerHost)
	}
	if cfg.LogLevel != slog.LevelWarn {
		t.Errorf("log level = %v", cfg.LogLevel)
	}
	if cfg.RefreshInterval != time.Minute {
		t.Errorf("refresh interval = %v", cfg.RefreshInterval)
	}
	if cfg.WatchSocket {
		t.Error("watch_socket from file not applied")
	}
}

func TestParse_EnvOverridesFlags(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONTAINR_PORT", "9000")
	t.Setenv("CONTAINR_DOCKER_HOST", "unix:///tmp/env.sock")
	t.Setenv("CONTAINR_LOG_LEVEL", "error")
	t.Setenv("CONTAINR_PPROF", "true")

	cfg, err := Parse([]string{"--port", "8080", "--docker-host", "unix:///tmp/flag.sock"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 9000 || cfg.DockerHost != "unix:///tmp/env.sock" {
		t.Errorf("env did not win: %+v", cfg)
	}
	if cfg.LogLevel != slog.LevelError || !cfg.Pprof {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		env  map[string]string
		file string
	}{
		{name: "bad port env", env: map[string]string{"CONTAINR_PORT": "http"}},
		{name: "port out of range", args: []string{"--port", "70000"}},
		{name: "bad duration", args: []string{"--refresh-interval", "soon"}},
		{name: "negative duration", args: []string{"--refresh-interval", "-5s"}},
		{name: "bad bool env", env: map[string]string{"CONTAINR_METRICS": "maybe"}},
		{name: "unknown flag", args: []string{"--stacks-dir", "/opt"}},
		{name: "unknown file key", file: "stacks_dir: /opt\n"},
		{name: "missing file", args: []string{"--config", "/nonexistent/containr.yaml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			args := tt.args
			if tt.file != "" {
				args = append(args, "--config", writeFile(t, tt.file))
			}
			if _, err := Parse(args); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" DEBUG ": slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
