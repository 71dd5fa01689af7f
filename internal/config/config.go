// Package config loads dashboard settings from configs/config.yml, an optional
// .env file and MONOTUB_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "MONOTUB"

// Config is the fully resolved dashboard configuration.
type Config struct {
	Port      string
	LogLevel  string
	LogFormat string
	DBPath    string
	JWTKey    string
	TokenTTL  time.Duration

	Device    DeviceConfig
	Dashboard DashboardConfig
	MQTT      MQTTConfig
}

// DeviceConfig points the dashboard at the monotub device.
type DeviceConfig struct {
	BaseURL  string
	Timeout  time.Duration
	Simulate bool
	SimPort  string
}

// DashboardConfig holds polling cadence and presentation settings.
type DashboardConfig struct {
	StatusInterval  time.Duration
	HistoryInterval time.Duration
	ClockInterval   time.Duration
	DefaultRange    string
	ClockLayout     string
	ClockTimezone   string
}

// MQTTConfig enables the status mirror when Broker is non-empty.
type MQTTConfig struct {
	Broker      string
	ClientID    string
	TopicPrefix string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("db.path", "dashboard.db")
	v.SetDefault("auth.jwt_key", "")
	v.SetDefault("auth.token_ttl", time.Hour)

	v.SetDefault("device.base_url", "http://monotub.local")
	v.SetDefault("device.timeout", 5*time.Second)
	v.SetDefault("device.simulate", false)
	v.SetDefault("device.sim_port", "8081")

	v.SetDefault("dashboard.status_interval", 5*time.Second)
	v.SetDefault("dashboard.history_interval", time.Minute)
	v.SetDefault("dashboard.clock_interval", time.Second)
	v.SetDefault("dashboard.default_range", "day")
	v.SetDefault("dashboard.clock_layout", "02/01/2006, 15:04:05")
	v.SetDefault("dashboard.clock_timezone", "America/Bogota")

	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.client_id", "monotub-dashboard")
	v.SetDefault("mqtt.topic_prefix", "monotub/dashboard")
}

// Load reads configuration from the given directories (first match wins).
// A missing config file is not an error; defaults and env still apply.
func Load(paths ...string) (*Config, error) {
	// .env is optional; variables already set in the environment take precedence.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("yml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := fromViper(v)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Port:      v.GetString("port"),
		LogLevel:  v.GetString("log.level"),
		LogFormat: v.GetString("log.format"),
		DBPath:    v.GetString("db.path"),
		JWTKey:    v.GetString("auth.jwt_key"),
		TokenTTL:  v.GetDuration("auth.token_ttl"),
		Device: DeviceConfig{
			BaseURL:  strings.TrimRight(v.GetString("device.base_url"), "/"),
			Timeout:  v.GetDuration("device.timeout"),
			Simulate: v.GetBool("device.simulate"),
			SimPort:  v.GetString("device.sim_port"),
		},
		Dashboard: DashboardConfig{
			StatusInterval:  v.GetDuration("dashboard.status_interval"),
			HistoryInterval: v.GetDuration("dashboard.history_interval"),
			ClockInterval:   v.GetDuration("dashboard.clock_interval"),
			DefaultRange:    v.GetString("dashboard.default_range"),
			ClockLayout:     v.GetString("dashboard.clock_layout"),
			ClockTimezone:   v.GetString("dashboard.clock_timezone"),
		},
		MQTT: MQTTConfig{
			Broker:      v.GetString("mqtt.broker"),
			ClientID:    v.GetString("mqtt.client_id"),
			TopicPrefix: strings.TrimRight(v.GetString("mqtt.topic_prefix"), "/"),
		},
	}
}

func (c *Config) validate() error {
	if c.JWTKey == "" {
		return errors.New("auth.jwt_key is required")
	}
	if !c.Device.Simulate && c.Device.BaseURL == "" {
		return errors.New("device.base_url is required unless device.simulate is set")
	}
	for name, d := range map[string]time.Duration{
		"device.timeout":             c.Device.Timeout,
		"dashboard.status_interval":  c.Dashboard.StatusInterval,
		"dashboard.history_interval": c.Dashboard.HistoryInterval,
		"dashboard.clock_interval":   c.Dashboard.ClockInterval,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %v", name, d)
		}
	}
	if strings.TrimSpace(c.Dashboard.DefaultRange) == "" {
		return errors.New("dashboard.default_range must not be empty")
	}
	return nil
}
