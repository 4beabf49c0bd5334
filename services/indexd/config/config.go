package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to support YAML unmarshalling.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	raw := value.Value
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// Config captures runtime configuration for the indexer.
type Config struct {
	ListenAddress string       `yaml:"listen"`
	DatabasePath  string       `yaml:"database"`
	Node          NodeConfig   `yaml:"node"`
	Report        ReportConfig `yaml:"report"`
	Log           LogConfig    `yaml:"log"`
}

// NodeConfig points the consumer at the node's event stream.
type NodeConfig struct {
	WebsocketURL string   `yaml:"websocket_url"`
	DialTimeout  Duration `yaml:"dial_timeout"`
	ReconnectMin Duration `yaml:"reconnect_min"`
	ReconnectMax Duration `yaml:"reconnect_max"`
}

// ReportConfig schedules the daily payout report.
type ReportConfig struct {
	OutputDir string   `yaml:"output_dir"`
	RunHour   int      `yaml:"run_hour"`
	RunMinute int      `yaml:"run_minute"`
	Window    Duration `yaml:"window"`
	Timezone  string   `yaml:"timezone"`
}

// LogConfig mirrors the gateway's file logging knobs.
type LogConfig struct {
	Level      string `yaml:"level"`
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
}

// Load reads configuration from the supplied path.
func Load(path string) (Config, error) {
	cfg := Config{}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()
	dec := yaml.NewDecoder(file)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	applyDefaults(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":7160"
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = "/var/data/curio-indexd.sqlite"
	}
	if cfg.Node.WebsocketURL == "" {
		cfg.Node.WebsocketURL = "ws://localhost:8545/ws/events"
	}
	if cfg.Node.DialTimeout.Duration == 0 {
		cfg.Node.DialTimeout.Duration = 5 * time.Second
	}
	if cfg.Node.ReconnectMin.Duration == 0 {
		cfg.Node.ReconnectMin.Duration = time.Second
	}
	if cfg.Node.ReconnectMax.Duration == 0 {
		cfg.Node.ReconnectMax.Duration = time.Minute
	}
	if cfg.Report.OutputDir == "" {
		cfg.Report.OutputDir = "/var/data/curio-reports"
	}
	if cfg.Report.Window.Duration == 0 {
		cfg.Report.Window.Duration = 24 * time.Hour
	}
	if cfg.Report.Timezone == "" {
		cfg.Report.Timezone = "UTC"
	}
}

func validate(cfg Config) error {
	url := strings.TrimSpace(cfg.Node.WebsocketURL)
	if !strings.HasPrefix(url, "ws://") && !strings.HasPrefix(url, "wss://") {
		return fmt.Errorf("node websocket_url must use ws:// or wss://")
	}
	if cfg.Node.ReconnectMin.Duration > cfg.Node.ReconnectMax.Duration {
		return fmt.Errorf("node reconnect_min must not exceed reconnect_max")
	}
	if cfg.Report.RunHour < 0 || cfg.Report.RunHour > 23 {
		return fmt.Errorf("report run_hour must be between 0 and 23")
	}
	if cfg.Report.RunMinute < 0 || cfg.Report.RunMinute > 59 {
		return fmt.Errorf("report run_minute must be between 0 and 59")
	}
	if _, err := time.LoadLocation(cfg.Report.Timezone); err != nil {
		return fmt.Errorf("report timezone: %w", err)
	}
	return nil
}
