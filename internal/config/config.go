// Package config loads the everwatch YAML configuration and its environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/guregu/null/v5"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hazz-dev/everwatch/internal/endpoint"
)

// Check interval bounds, in seconds.
const (
	MinCheckInterval     = 60
	MaxCheckInterval     = 600
	DefaultCheckInterval = 60
)

// Duration is a time.Duration that unmarshals from a YAML string like "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = dur
	return nil
}

// EndpointConfig seeds one monitored endpoint.
type EndpointConfig struct {
	ID                  string
	Name                string
	URL                 string
	TimeSensitive       bool
	SkipTLSVerification bool
	// ExpectedStatus is absent when the endpoint declares no expectation.
	ExpectedStatus null.Int
}

// Settings returns the endpoint settings described by e.
func (e EndpointConfig) Settings() endpoint.Settings {
	return endpoint.Settings{
		TimeSensitive:       e.TimeSensitive,
		SkipTLSVerification: e.SkipTLSVerification,
		ExpectedStatus:      e.ExpectedStatus,
	}
}

// WebhookConfig holds alert webhook settings.
type WebhookConfig struct {
	URL      string   `yaml:"url"`
	Cooldown Duration `yaml:"cooldown"`
}

// AlertsConfig holds all alert configuration.
type AlertsConfig struct {
	Webhook WebhookConfig `yaml:"webhook"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	Driver      string `yaml:"driver"`
	Path        string `yaml:"path"`
	RedisAddr   string `yaml:"redis_addr"`
	RedisKey    string `yaml:"redis_key"`
	PostgresURL string `yaml:"postgres_url"`
}

// RetentionConfig bounds stored history. Zero keeps everything.
type RetentionConfig struct {
	MaxRecords int `yaml:"max_records"`
}

// Config is the root application configuration.
type Config struct {
	CheckInterval       int
	ProbeTimeout        time.Duration
	BackgroundChecks    bool
	BackgroundDelay     time.Duration
	NotifyOnDown        bool
	NotifyOnUp          bool
	MaxConcurrentProbes int
	Retention           RetentionConfig
	Storage             StorageConfig
	Server              ServerConfig
	Alerts              AlertsConfig
	Endpoints           []EndpointConfig
}

// Interval returns the check interval as a duration.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.CheckInterval) * time.Second
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		CheckInterval:       DefaultCheckInterval,
		ProbeTimeout:        10 * time.Second,
		BackgroundChecks:    true,
		BackgroundDelay:     60 * time.Second,
		NotifyOnDown:        true,
		NotifyOnUp:          true,
		MaxConcurrentProbes: 16,
		Storage:             StorageConfig{Driver: "sqlite", Path: "everwatch.db"},
		Server:              ServerConfig{Address: ":8080"},
	}
}

// LoadEnvFile loads KEY=value pairs from path into the environment without
// overriding variables that are already set. With an empty path an optional
// ".env" in the working directory is read.
func LoadEnvFile(path string) error {
	if path == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading env file %q: %w", path, err)
	}
	return nil
}

// Load reads, parses, and validates the config file at path. A missing file
// yields the defaults. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// Defaults apply.
	case err != nil:
		return nil, fmt.Errorf("reading config: %w", err)
	default:
		if err := parse(data, cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parse(data []byte, cfg *Config) error {
	// Unmarshal into a raw intermediate so absent keys keep their defaults and
	// duration errors name their field.
	type rawEndpoint struct {
		ID                  string `yaml:"id"`
		Name                string `yaml:"name"`
		URL                 string `yaml:"url"`
		TimeSensitive       *bool  `yaml:"time_sensitive"`
		SkipTLSVerification bool   `yaml:"skip_tls_verification"`
		ExpectedStatus      *int   `yaml:"expected_status"`
	}
	type rawConfig struct {
		CheckInterval       *int            `yaml:"check_interval"`
		ProbeTimeout        string          `yaml:"probe_timeout"`
		BackgroundChecks    *bool           `yaml:"background_checks"`
		BackgroundDelay     string          `yaml:"background_delay"`
		NotifyOnDown        *bool           `yaml:"notify_on_down"`
		NotifyOnUp          *bool           `yaml:"notify_on_up"`
		MaxConcurrentProbes int             `yaml:"max_concurrent_probes"`
		Retention           RetentionConfig `yaml:"retention"`
		Storage             StorageConfig   `yaml:"storage"`
		Server              ServerConfig    `yaml:"server"`
		Alerts              AlertsConfig    `yaml:"alerts"`
		Endpoints           []rawEndpoint   `yaml:"endpoints"`
	}

	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}

	if raw.CheckInterval != nil {
		cfg.CheckInterval = *raw.CheckInterval
	}
	if raw.ProbeTimeout != "" {
		d, err := time.ParseDuration(raw.ProbeTimeout)
		if err != nil {
			return fmt.Errorf("invalid probe_timeout %q: %w", raw.ProbeTimeout, err)
		}
		cfg.ProbeTimeout = d
	}
	if raw.BackgroundChecks != nil {
		cfg.BackgroundChecks = *raw.BackgroundChecks
	}
	if raw.BackgroundDelay != "" {
		d, err := time.ParseDuration(raw.BackgroundDelay)
		if err != nil {
			return fmt.Errorf("invalid background_delay %q: %w", raw.BackgroundDelay, err)
		}
		cfg.BackgroundDelay = d
	}
	if raw.NotifyOnDown != nil {
		cfg.NotifyOnDown = *raw.NotifyOnDown
	}
	if raw.NotifyOnUp != nil {
		cfg.NotifyOnUp = *raw.NotifyOnUp
	}
	if raw.MaxConcurrentProbes != 0 {
		cfg.MaxConcurrentProbes = raw.MaxConcurrentProbes
	}
	cfg.Retention = raw.Retention
	cfg.Alerts = raw.Alerts

	// Apply defaults.
	if raw.Storage.Driver == "" {
		raw.Storage.Driver = cfg.Storage.Driver
	}
	if raw.Storage.Path == "" {
		raw.Storage.Path = cfg.Storage.Path
	}
	cfg.Storage = raw.Storage
	if raw.Server.Address != "" {
		cfg.Server = raw.Server
	}

	for _, re := range raw.Endpoints {
		ec := EndpointConfig{
			ID:                  strings.TrimSpace(re.ID),
			Name:                strings.TrimSpace(re.Name),
			URL:                 endpoint.NormalizeURL(re.URL),
			TimeSensitive:       true,
			SkipTLSVerification: re.SkipTLSVerification,
			ExpectedStatus:      null.IntFrom(endpoint.DefaultExpectedStatus),
		}
		if re.TimeSensitive != nil {
			ec.TimeSensitive = *re.TimeSensitive
		}
		// expected_status: 0 declares no expectation.
		if re.ExpectedStatus != nil {
			if *re.ExpectedStatus == 0 {
				ec.ExpectedStatus = null.Int{}
			} else {
				ec.ExpectedStatus = null.IntFrom(int64(*re.ExpectedStatus))
			}
		}
		if ec.Name == "" {
			ec.Name = ec.URL
		}
		cfg.Endpoints = append(cfg.Endpoints, ec)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("EVERWATCH_STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("EVERWATCH_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("EVERWATCH_REDIS_ADDR"); v != "" {
		cfg.Storage.RedisAddr = v
	}
	if v := os.Getenv("EVERWATCH_POSTGRES_URL"); v != "" {
		cfg.Storage.PostgresURL = v
	}
	if v := os.Getenv("EVERWATCH_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("EVERWATCH_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Webhook.URL = v
	}
	if v := os.Getenv("EVERWATCH_CHECK_INTERVAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid EVERWATCH_CHECK_INTERVAL %q: %w", v, err)
		}
		cfg.CheckInterval = n
	}
	return nil
}

var validDrivers = map[string]bool{
	"sqlite":   true,
	"redis":    true,
	"postgres": true,
	"memory":   true,
}

func validate(cfg *Config) error {
	if cfg.CheckInterval < MinCheckInterval || cfg.CheckInterval > MaxCheckInterval {
		return fmt.Errorf("check_interval must be between %d and %d seconds, got %d",
			MinCheckInterval, MaxCheckInterval, cfg.CheckInterval)
	}
	if cfg.ProbeTimeout <= 0 {
		return fmt.Errorf("probe_timeout must be positive, got %s", cfg.ProbeTimeout)
	}
	if cfg.BackgroundDelay <= 0 {
		return fmt.Errorf("background_delay must be positive, got %s", cfg.BackgroundDelay)
	}
	if cfg.MaxConcurrentProbes < 1 {
		return fmt.Errorf("max_concurrent_probes must be at least 1, got %d", cfg.MaxConcurrentProbes)
	}
	if cfg.Retention.MaxRecords < 0 {
		return fmt.Errorf("retention.max_records must not be negative, got %d", cfg.Retention.MaxRecords)
	}
	if !validDrivers[cfg.Storage.Driver] {
		return fmt.Errorf("storage.driver: invalid driver %q (must be sqlite, redis, postgres, or memory)", cfg.Storage.Driver)
	}
	if cfg.Storage.Driver == "redis" && cfg.Storage.RedisAddr == "" {
		return fmt.Errorf("storage.redis_addr is required for the redis driver")
	}
	if cfg.Storage.Driver == "postgres" && cfg.Storage.PostgresURL == "" {
		return fmt.Errorf("storage.postgres_url is required for the postgres driver")
	}

	ids := make(map[string]bool, len(cfg.Endpoints))
	urls := make(map[string]bool, len(cfg.Endpoints))
	for i, ec := range cfg.Endpoints {
		if ec.URL == "" {
			return fmt.Errorf("endpoints[%d]: url is required", i)
		}
		if urls[ec.URL] {
			return fmt.Errorf("duplicate endpoint url %q", ec.URL)
		}
		urls[ec.URL] = true
		if ec.ID != "" {
			if ids[ec.ID] {
				return fmt.Errorf("duplicate endpoint id %q", ec.ID)
			}
			ids[ec.ID] = true
		}
		if ec.ExpectedStatus.Valid && (ec.ExpectedStatus.Int64 < 100 || ec.ExpectedStatus.Int64 > 599) {
			return fmt.Errorf("endpoint %q: invalid expected_status %d", ec.Name, ec.ExpectedStatus.Int64)
		}
	}
	return nil
}
