package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleConfig = `
cloud:
  base_url: "https://registry.example.com"
  token_url: "https://registry.example.com/token"
  client_id: "from-file"

mail:
  host: "smtp.example.com"
  from: "alerts@example.com"

monitor:
  interval_minutes: 30

logger:
  level: "debug"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Cloud.BaseURL != "https://registry.example.com" {
		t.Errorf("base_url = %q", cfg.Cloud.BaseURL)
	}
	if cfg.Monitor.IntervalMinutes != 30 {
		t.Errorf("interval = %d", cfg.Monitor.IntervalMinutes)
	}
	// Unset settings fall back to defaults
	if cfg.Monitor.CooldownMinutes != 60 {
		t.Errorf("default cooldown = %d, want 60", cfg.Monitor.CooldownMinutes)
	}
	if cfg.Monitor.BatchSize != 5 {
		t.Errorf("default batch size = %d, want 5", cfg.Monitor.BatchSize)
	}
	if cfg.Cloud.TimeoutSeconds != 10 {
		t.Errorf("default timeout = %d, want 10", cfg.Cloud.TimeoutSeconds)
	}
	if cfg.MQTT.TopicPrefix != "alerts" {
		t.Errorf("default topic prefix = %q", cfg.MQTT.TopicPrefix)
	}
}

func TestLoadConfigEnvironmentWins(t *testing.T) {
	t.Setenv("CLOUD_CLIENT_ID", "from-env")
	t.Setenv("CLOUD_CLIENT_SECRET", "secret-env")

	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Cloud.ClientID != "from-env" {
		t.Errorf("client id = %q, want env override", cfg.Cloud.ClientID)
	}
	if cfg.Cloud.ClientSecret != "secret-env" {
		t.Errorf("client secret not taken from environment")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}
