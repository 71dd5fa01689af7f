package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yml"), []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return dir
}

func TestLoad_FileValuesAndDefaults(t *testing.T) {
	dir := writeConfig(t, `
port: "9090"
auth:
  jwt_key: "secret"
device:
  base_url: "http://10.0.0.5/"
dashboard:
  status_interval: 2s
  default_range: week
`)
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("port = %q", cfg.Port)
	}
	if cfg.Device.BaseURL != "http://10.0.0.5" {
		t.Errorf("base url should be trimmed, got %q", cfg.Device.BaseURL)
	}
	if cfg.Dashboard.StatusInterval != 2*time.Second {
		t.Errorf("status interval = %v", cfg.Dashboard.StatusInterval)
	}
	if cfg.Dashboard.HistoryInterval != time.Minute {
		t.Errorf("history interval default = %v", cfg.Dashboard.HistoryInterval)
	}
	if cfg.Dashboard.DefaultRange != "week" {
		t.Errorf("default range = %q", cfg.Dashboard.DefaultRange)
	}
	if cfg.Device.Timeout != 5*time.Second {
		t.Errorf("device timeout default = %v", cfg.Device.Timeout)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := writeConfig(t, `
auth:
  jwt_key: "from-file"
`)
	t.Setenv("MONOTUB_AUTH_JWT_KEY", "from-env")
	t.Setenv("MONOTUB_MQTT_BROKER", "tcp://broker:1883")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.JWTKey != "from-env" {
		t.Errorf("jwt key = %q, want env override", cfg.JWTKey)
	}
	if cfg.MQTT.Broker != "tcp://broker:1883" {
		t.Errorf("mqtt broker = %q", cfg.MQTT.Broker)
	}
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing jwt key", `device: {base_url: "http://x"}`},
		{"non-positive interval", "auth: {jwt_key: k}\ndashboard: {status_interval: 0s}"},
		{"empty default range", "auth: {jwt_key: k}\ndashboard: {default_range: \" \"}"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.body)); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("MONOTUB_AUTH_JWT_KEY", "k")
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" || cfg.Dashboard.DefaultRange != "day" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}
