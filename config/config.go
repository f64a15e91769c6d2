package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	API        APIConfig        `yaml:"api"`
	Auth       AuthConfig       `yaml:"auth"`
	Poller     PollerConfig     `yaml:"poller"`
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
}

// APIConfig describes how to reach the upstream farm monitor API.
type APIConfig struct {
	Protocol      string        `yaml:"protocol"`
	Hostname      string        `yaml:"hostname"`
	Port          int           `yaml:"port"`
	Prefix        string        `yaml:"prefix"`
	HTTPTimeoutMS int           `yaml:"http_timeout_ms"`
	HTTPTimeout   time.Duration `yaml:"-"`
}

// BaseURL assembles the upstream base URL with a trailing slash.
func (a APIConfig) BaseURL() string {
	return fmt.Sprintf("%s://%s:%d%s/", a.Protocol, a.Hostname, a.Port, a.Prefix)
}

// AuthConfig holds the upstream login credentials. Credentials are normally
// supplied through FM_USERNAME / FM_PASSWORD rather than the YAML file.
type AuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// PollerConfig holds the telemetry poller configuration.
type PollerConfig struct {
	Enabled           bool          `yaml:"enabled"`
	IntervalSeconds   int           `yaml:"interval_seconds"`
	Interval          time.Duration `yaml:"-"`
	StaleAfterSeconds int           `yaml:"stale_after_seconds"`
	StaleAfter        time.Duration `yaml:"-"`
	UpdatePageSize    int           `yaml:"update_page_size"`
}

// ServerConfig holds the local dashboard API configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the local persistence configuration. The sqlite file
// keeps tokens and push subscriptions across restarts.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "postgres"
	DSN    string `yaml:"dsn"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// Load reads the configuration from the given path and applies environment
// overrides and defaults.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(&cfg)

	if cfg.API.Protocol == "" {
		cfg.API.Protocol = "http"
	}
	if cfg.API.Hostname == "" {
		cfg.API.Hostname = "localhost"
	}
	if cfg.API.Port <= 0 {
		cfg.API.Port = 5000
	}
	if cfg.API.HTTPTimeoutMS <= 0 {
		cfg.API.HTTPTimeoutMS = 10000
	}
	cfg.API.HTTPTimeout = time.Duration(cfg.API.HTTPTimeoutMS) * time.Millisecond

	if cfg.Poller.IntervalSeconds <= 0 {
		cfg.Poller.IntervalSeconds = 60
	}
	cfg.Poller.Interval = time.Duration(cfg.Poller.IntervalSeconds) * time.Second

	if cfg.Poller.StaleAfterSeconds <= 0 {
		cfg.Poller.StaleAfterSeconds = 900
	}
	cfg.Poller.StaleAfter = time.Duration(cfg.Poller.StaleAfterSeconds) * time.Second

	if cfg.Poller.UpdatePageSize <= 0 {
		cfg.Poller.UpdatePageSize = 10
	}

	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 30
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "farm-monitor.db"
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}

	return &cfg, nil
}

// applyEnvOverrides lets the upstream connection and credentials be supplied
// through the environment, matching the FM_* variables used in deployment.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FM_API_PROTOCOL"); v != "" {
		cfg.API.Protocol = v
	}
	if v := os.Getenv("FM_API_HOSTNAME"); v != "" {
		cfg.API.Hostname = v
	}
	if v := os.Getenv("FM_API_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = p
		}
	}
	if v := os.Getenv("FM_API_PREFIX"); v != "" {
		cfg.API.Prefix = v
	}
	if v := os.Getenv("FM_API_HTTP_TIMEOUT"); v != "" {
		if t, err := strconv.Atoi(v); err == nil {
			cfg.API.HTTPTimeoutMS = t
		}
	}
	if v := os.Getenv("FM_USERNAME"); v != "" {
		cfg.Auth.Username = v
	}
	if v := os.Getenv("FM_PASSWORD"); v != "" {
		cfg.Auth.Password = v
	}
}
