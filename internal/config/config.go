package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/NodePath81/linewatch/internal/util"
	"gopkg.in/yaml.v3"
)

const (
	defaultLatencyTarget   = "8.8.8.8"
	defaultLatencyInterval = 7 * time.Second
	defaultLatencyTimeout  = 2 * time.Second

	defaultThroughputInterval = 70 * time.Second
	defaultPerSourceTimeout   = 60 * time.Second

	defaultHistoryCapacity = 10000
	defaultStatsWindow     = 50

	defaultControlAddr = "127.0.0.1"
	defaultControlPort = 8090

	PingModeAuto         = "auto"
	PingModeRaw          = "raw"
	PingModeUnprivileged = "unprivileged"
)

// Default download endpoints: large, publicly served objects on well-provisioned
// hosts, so the measured ceiling is the local link and not the origin.
var defaultDownloadURLs = []string{
	"https://github.com/aseprite/aseprite/releases/download/v1.2.27/Aseprite-v1.2.27-Source.zip",
	"https://dl.google.com/drive-file-stream/GoogleDriveSetup.exe",
	"https://awscli.amazonaws.com/AWSCLIV2.msi",
	"https://awscli.amazonaws.com/awscli-exe-linux-x86_64.zip",
}

type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be a scalar")
	}
	switch value.Tag {
	case "!!int", "!!float":
		var secs float64
		if err := value.Decode(&secs); err != nil {
			return err
		}
		*d = Duration(time.Duration(secs * float64(time.Second)))
		return nil
	default:
		var raw string
		if err := value.Decode(&raw); err != nil {
			return err
		}
		if raw == "" {
			*d = 0
			return nil
		}
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
		return nil
	}
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

type Config struct {
	Latency    LatencyConfig    `yaml:"latency"`
	Throughput ThroughputConfig `yaml:"throughput"`
	History    HistoryConfig    `yaml:"history"`
	Store      StoreConfig      `yaml:"store"`
	Control    ControlConfig    `yaml:"control"`
	DNS        DNSConfig        `yaml:"dns"`
}

type LatencyConfig struct {
	// Targets are candidate hosts for round-trip probes. The first entry is
	// the active target under the static selection policy.
	Targets  []string `yaml:"targets"`
	Interval Duration `yaml:"interval"`
	Timeout  Duration `yaml:"timeout"`
	// Mode selects the pinger: raw ICMP sockets, unprivileged UDP ping, or
	// auto (raw with fallback to unprivileged).
	Mode string `yaml:"mode"`
	// Rotate enables round-robin target selection across Targets.
	Rotate bool `yaml:"rotate"`
}

type ThroughputConfig struct {
	URLs     []string `yaml:"urls"`
	Interval Duration `yaml:"interval"`
	// Parallelism bounds concurrent downloads; 0 means one worker per URL.
	Parallelism      int      `yaml:"parallelism"`
	PerSourceTimeout Duration `yaml:"per_source_timeout"`
}

type HistoryConfig struct {
	// Capacity bounds each probe kind's retained samples. An explicit 0 keeps
	// everything; leaving the key unset takes the default bound.
	Capacity *int `yaml:"capacity"`
	// StatsWindow is the number of recent samples rolling statistics cover.
	StatsWindow int `yaml:"stats_window"`
}

type StoreConfig struct {
	// JournalDir receives timestamped .ltst journals; empty disables journaling.
	JournalDir string `yaml:"journal_dir"`
	// SQLitePath enables the SQLite archive when set.
	SQLitePath string `yaml:"sqlite_path"`
}

type ControlConfig struct {
	Enabled  *bool  `yaml:"enabled"`
	BindAddr string `yaml:"bind_addr"`
	BindPort int    `yaml:"bind_port"`
	Metrics  *bool  `yaml:"metrics"`
}

type DNSConfig struct {
	Servers []string `yaml:"servers"`
}

func (c ControlConfig) IsEnabled() bool {
	return util.BoolValue(c.Enabled, true)
}

func (c ControlConfig) MetricsEnabled() bool {
	return util.BoolValue(c.Metrics, true)
}

// RetainedCapacity resolves the history bound; 0 means unbounded.
func (h HistoryConfig) RetainedCapacity() int {
	return util.IntValue(h.Capacity, defaultHistoryCapacity)
}

func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	decoder := yaml.NewDecoder(strings.NewReader(string(data)))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DefaultConfig returns a runnable configuration without reading any file.
func DefaultConfig() Config {
	var cfg Config
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if len(c.Latency.Targets) == 0 {
		c.Latency.Targets = []string{defaultLatencyTarget}
	}
	if c.Latency.Interval <= 0 {
		c.Latency.Interval = Duration(defaultLatencyInterval)
	}
	if c.Latency.Timeout <= 0 {
		c.Latency.Timeout = Duration(defaultLatencyTimeout)
	}
	if c.Latency.Mode == "" {
		c.Latency.Mode = PingModeAuto
	}
	if len(c.Throughput.URLs) == 0 {
		c.Throughput.URLs = append([]string(nil), defaultDownloadURLs...)
	}
	if c.Throughput.Interval <= 0 {
		c.Throughput.Interval = Duration(defaultThroughputInterval)
	}
	if c.Throughput.Parallelism <= 0 {
		c.Throughput.Parallelism = len(c.Throughput.URLs)
	}
	if c.Throughput.PerSourceTimeout <= 0 {
		c.Throughput.PerSourceTimeout = Duration(defaultPerSourceTimeout)
	}
	if c.History.StatsWindow <= 0 {
		c.History.StatsWindow = defaultStatsWindow
	}
	if c.Control.BindAddr == "" {
		c.Control.BindAddr = defaultControlAddr
	}
	if c.Control.BindPort == 0 {
		c.Control.BindPort = defaultControlPort
	}
}

func (c Config) Validate() error {
	if len(c.Latency.Targets) == 0 {
		return errors.New("latency: at least one target is required")
	}
	for _, target := range c.Latency.Targets {
		if strings.TrimSpace(target) == "" {
			return errors.New("latency: empty target")
		}
	}
	if c.Latency.Interval.Duration() <= 0 {
		return errors.New("latency: interval must be positive")
	}
	if c.Latency.Timeout.Duration() <= 0 {
		return errors.New("latency: timeout must be positive")
	}
	if c.Latency.Timeout.Duration() >= c.Latency.Interval.Duration() {
		return fmt.Errorf("latency: timeout %s must be below interval %s",
			c.Latency.Timeout.Duration(), c.Latency.Interval.Duration())
	}
	switch c.Latency.Mode {
	case PingModeAuto, PingModeRaw, PingModeUnprivileged:
	default:
		return fmt.Errorf("latency: unknown mode %q", c.Latency.Mode)
	}
	if len(c.Throughput.URLs) == 0 {
		return errors.New("throughput: at least one download URL is required")
	}
	for _, raw := range c.Throughput.URLs {
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("throughput: invalid URL %q: %w", raw, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("throughput: unsupported scheme in %q", raw)
		}
		if u.Host == "" {
			return fmt.Errorf("throughput: URL %q has no host", raw)
		}
	}
	if c.Throughput.Interval.Duration() <= 0 {
		return errors.New("throughput: interval must be positive")
	}
	if c.Throughput.Parallelism <= 0 {
		return errors.New("throughput: parallelism must be positive")
	}
	if c.Throughput.PerSourceTimeout.Duration() <= 0 {
		return errors.New("throughput: per_source_timeout must be positive")
	}
	if c.History.Capacity != nil && *c.History.Capacity < 0 {
		return errors.New("history: capacity must not be negative")
	}
	if c.History.StatsWindow <= 0 {
		return errors.New("history: stats_window must be positive")
	}
	if c.Control.BindPort < 0 || c.Control.BindPort > 65535 {
		return fmt.Errorf("control: invalid port %d", c.Control.BindPort)
	}
	return nil
}
