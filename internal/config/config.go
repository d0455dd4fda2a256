package config

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const envPrefix = "CONTAINR_"

type Config struct {
	Port            int
	DockerHost      string        // empty: $DOCKER_HOST, then the platform default
	LogLevel        slog.Level    // Parsed log level (debug, info, warn, error)
	RefreshInterval time.Duration // 0 disables the periodic refresh
	WatchEvents     bool          // refresh on daemon events
	WatchSocket     bool          // refresh when the daemon socket reappears
	Metrics         bool          // serve /metrics
	Pprof           bool          // Enable /debug/pprof/ endpoints
	ConfigFile      string
}

// fileConfig is the YAML config file. Pointer fields distinguish "absent"
// from the zero value.
type fileConfig struct {
	Port            *int    `yaml:"port"`
	DockerHost      *string `yaml:"docker_host"`
	LogLevel        *string `yaml:"log_level"`
	RefreshInterval *string `yaml:"refresh_interval"`
	WatchEvents     *bool   `yaml:"watch_events"`
	WatchSocket     *bool   `yaml:"watch_socket"`
	Metrics         *bool   `yaml:"metrics"`
	Pprof           *bool   `yaml:"pprof"`
}

// Parse reads configuration from args (without the program name), an
// optional YAML file and CONTAINR_* environment variables. Environment
// beats flags, flags beat the file, the file beats defaults.
func Parse(args []string) (*Config, error) {
	cfg := &Config{}

	fs := flag.NewFlagSet("containr", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var logLevel, refresh string
	fs.IntVar(&cfg.Port, "port", 5001, "HTTP server port")
	fs.StringVar(&cfg.DockerHost, "docker-host", "", "Docker daemon endpoint (default: $DOCKER_HOST or the platform socket)")
	fs.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	fs.StringVar(&refresh, "refresh-interval", "0s", "Periodic full refresh interval (0 disables)")
	fs.BoolVar(&cfg.WatchEvents, "watch-events", true, "Refresh on daemon events")
	fs.BoolVar(&cfg.WatchSocket, "watch-socket", true, "Refresh when the daemon socket is recreated")
	fs.BoolVar(&cfg.Metrics, "metrics", true, "Serve Prometheus metrics at /metrics")
	fs.BoolVar(&cfg.Pprof, "pprof", false, "Enable /debug/pprof/ endpoints")
	fs.StringVar(&cfg.ConfigFile, "config", "", "Path to a YAML config file")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if v := os.Getenv(envPrefix + "CONFIG"); v != "" {
		cfg.ConfigFile = v
	}
	if cfg.ConfigFile != "" {
		fc, err := loadFile(cfg.ConfigFile)
		if err != nil {
			return nil, err
		}
		applyFile(cfg, fc, set, &logLevel, &refresh)
	}

	// Env vars override flags (if set)
	if v := os.Getenv(envPrefix + "PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%sPORT: %w", envPrefix, err)
		}
		cfg.Port = p
	}
	if v := os.Getenv(envPrefix + "DOCKER_HOST"); v != "" {
		cfg.DockerHost = v
	}
	if v := os.Getenv(envPrefix + "LOG_LEVEL"); v != "" {
		logLevel = v
	}
	if v := os.Getenv(envPrefix + "REFRESH_INTERVAL"); v != "" {
		refresh = v
	}
	for name, dst := range map[string]*bool{
		"WATCH_EVENTS": &cfg.WatchEvents,
		"WATCH_SOCKET": &cfg.WatchSocket,
		"METRICS":      &cfg.Metrics,
		"PPROF":        &cfg.Pprof,
	} {
		if v := os.Getenv(envPrefix + name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("%s%s: %w", envPrefix, name, err)
			}
			*dst = b
		}
	}

	cfg.LogLevel = ParseLogLevel(logLevel)

	d, err := time.ParseDuration(refresh)
	if err != nil {
		return nil, fmt.Errorf("refresh interval: %w", err)
	}
	cfg.RefreshInterval = d

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.RefreshInterval < 0 {
		return errors.New("refresh interval must not be negative")
	}
	return nil
}

func loadFile(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return &fc, nil
}

// applyFile copies file values into cfg for every flag not given explicitly.
func applyFile(cfg *Config, fc *fileConfig, set map[string]bool, logLevel, refresh *string) {
	if fc.Port != nil && !set["port"] {
		cfg.Port = *fc.Port
	}
	if fc.DockerHost != nil && !set["docker-host"] {
		cfg.DockerHost = *fc.DockerHost
	}
	if fc.LogLevel != nil && !set["log-level"] {
		*logLevel = *fc.LogLevel
	}
	if fc.RefreshInterval != nil && !set["refresh-interval"] {
		*refresh = *fc.RefreshInterval
	}
	if fc.WatchEvents != nil && !set["watch-events"] {
		cfg.WatchEvents = *fc.WatchEvents
	}
	if fc.WatchSocket != nil && !set["watch-socket"] {
		cfg.WatchSocket = *fc.WatchSocket
	}
	if fc.Metrics != nil && !set["metrics"] {
		cfg.Metrics = *fc.Metrics
	}
	if fc.Pprof != nil && !set["pprof"] {
		cfg.Pprof = *fc.Pprof
	}
}

// ParseLogLevel maps a level name to a slog.Level. Unknown names are info.
func ParseLogLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
