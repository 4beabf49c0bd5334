package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "indexd.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "database: /tmp/indexd-test.sqlite\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddress != ":7160" {
		t.Fatalf("unexpected listen default: %q", cfg.ListenAddress)
	}
	if cfg.Node.WebsocketURL != "ws://localhost:8545/ws/events" {
		t.Fatalf("unexpected websocket default: %q", cfg.Node.WebsocketURL)
	}
	if cfg.Node.ReconnectMin.Duration != time.Second || cfg.Node.ReconnectMax.Duration != time.Minute {
		t.Fatalf("unexpected reconnect defaults: %+v", cfg.Node)
	}
	if cfg.Report.Window.Duration != 24*time.Hour {
		t.Fatalf("unexpected window default: %v", cfg.Report.Window.Duration)
	}
	if cfg.Report.Timezone != "UTC" {
		t.Fatalf("unexpected timezone default: %q", cfg.Report.Timezone)
	}
}

func TestLoadParsesDurations(t *testing.T) {
	path := writeConfig(t, `
listen: ":7161"
node:
  websocket_url: wss://node.internal:8545/ws/events
  dial_timeout: 3s
  reconnect_min: 500ms
  reconnect_max: 30s
report:
  output_dir: /var/data/reports
  run_hour: 2
  run_minute: 15
  window: 24h
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Node.DialTimeout.Duration != 3*time.Second {
		t.Fatalf("dial timeout: %v", cfg.Node.DialTimeout.Duration)
	}
	if cfg.Node.ReconnectMin.Duration != 500*time.Millisecond {
		t.Fatalf("reconnect min: %v", cfg.Node.ReconnectMin.Duration)
	}
	if cfg.Report.RunHour != 2 || cfg.Report.RunMinute != 15 {
		t.Fatalf("run schedule: %+v", cfg.Report)
	}
}

func TestLoadRejectsNonWebsocketURL(t *testing.T) {
	path := writeConfig(t, "node:\n  websocket_url: https://node.internal:8545/ws/events\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected scheme validation error")
	}
}

func TestLoadRejectsInvertedBackoff(t *testing.T) {
	path := writeConfig(t, "node:\n  reconnect_min: 2m\n  reconnect_max: 10s\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected backoff validation error")
	}
}

func TestLoadRejectsBadSchedule(t *testing.T) {
	path := writeConfig(t, "report:\n  run_hour: 24\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected run_hour validation error")
	}
}
