// Package config handles Nostrboard configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/quantumlife/nostrboard/internal/core"
	"github.com/quantumlife/nostrboard/internal/dashboard"
	"github.com/quantumlife/nostrboard/internal/relay"
	"github.com/quantumlife/nostrboard/internal/stats"
)

// Environment overrides
const (
	EnvRelays   = "NOSTRBOARD_RELAYS"
	EnvPort     = "NOSTRBOARD_PORT"
	EnvLogLevel = "NOSTRBOARD_LOG_LEVEL"
)

// DefaultRelays seeds the relay list on first start.
var DefaultRelays = []string{
	"wss://relay.damus.io",
	"wss://nos.lol",
	"wss://relay.nostr.band",
	"wss://nostr.wine",
	"wss://relay.snort.social",
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("relayurl", func(fl validator.FieldLevel) bool {
		_, err := core.NormalizeRelayURL(fl.Field().String())
		return err == nil
	})
}

// Config holds all configuration
type Config struct {
	// Paths
	DataDir string `yaml:"data_dir" validate:"required"`

	// Server
	Server ServerConfig `yaml:"server"`

	// Relays seeded into storage when none are configured
	Relays []string `yaml:"relays" validate:"dive,relayurl"`

	Queries QueryConfig   `yaml:"queries"`
	Cache   CacheConfig   `yaml:"cache"`
	Refresh RefreshConfig `yaml:"refresh"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig for HTTP server
type ServerConfig struct {
	Port int    `yaml:"port" validate:"min=1,max=65535"`
	Host string `yaml:"host"`
	// CORSOrigins lists origins allowed to call the API
	CORSOrigins []string `yaml:"cors_origins"`
}

// QueryConfig bounds relay queries
type QueryConfig struct {
	UserTimeout  time.Duration `yaml:"user_timeout" validate:"gt=0"`
	RelayTimeout time.Duration `yaml:"relay_timeout" validate:"gt=0"`
	DialTimeout  time.Duration `yaml:"dial_timeout" validate:"gt=0"`

	UserStatsStale time.Duration `yaml:"user_stats_stale" validate:"gte=0"`
	ActivityStale  time.Duration `yaml:"activity_stale" validate:"gte=0"`
	RelayStale     time.Duration `yaml:"relay_stale" validate:"gte=0"`
	ExploreStale   time.Duration `yaml:"explore_stale" validate:"gte=0"`
	EventsStale    time.Duration `yaml:"events_stale" validate:"gte=0"`

	PostLimit     int `yaml:"post_limit" validate:"gte=0"`
	ActivityLimit int `yaml:"activity_limit" validate:"gte=0"`
	ExploreLimit  int `yaml:"explore_limit" validate:"gte=0"`
	MaxEvents     int `yaml:"max_events" validate:"gte=0"`

	WindowDays      int    `yaml:"window_days" validate:"min=1,max=366"`
	RelayWindowDays int    `yaml:"relay_window_days" validate:"min=1,max=366"`
	TopN            int    `yaml:"top_n" validate:"min=1,max=100"`
	TieBreak        string `yaml:"tie_break" validate:"omitempty,oneof=input id"`
}

// CacheConfig for the query cache
type CacheConfig struct {
	MaxEntries int `yaml:"max_entries" validate:"min=1"`
}

// RefreshConfig holds background refresh schedules: a duration ("30s"),
// "daily@HH:MM", "weekly@mon,thu@HH:MM", "once@<RFC3339>" or a cron
// expression ("*/5 * * * *"). Empty disables the task.
type RefreshConfig struct {
	Explore    string        `yaml:"explore"`
	RelayStats string        `yaml:"relay_stats"`
	Timeout    time.Duration `yaml:"timeout" validate:"gte=0"`
}

// LoggingConfig for log output
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format string `yaml:"format" validate:"omitempty,oneof=text json"`
}

// Default returns default configuration
func Default() *Config {
	home, _ := os.UserHomeDir()
	dash := dashboard.DefaultConfig()

	return &Config{
		DataDir: filepath.Join(home, ".nostrboard"),
		Server: ServerConfig{
			Port:        8080,
			Host:        "localhost",
			CORSOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		},
		Relays: append([]string(nil), DefaultRelays...),
		Queries: QueryConfig{
			UserTimeout:     dash.UserTimeout,
			RelayTimeout:    dash.RelayTimeout,
			DialTimeout:     5 * time.Second,
			UserStatsStale:  dash.UserStatsStale,
			ActivityStale:   dash.ActivityStale,
			RelayStale:      dash.RelayStale,
			ExploreStale:    dash.ExploreStale,
			EventsStale:     dash.EventsStale,
			PostLimit:       dash.PostLimit,
			ActivityLimit:   dash.ActivityLimit,
			ExploreLimit:    dash.ExploreLimit,
			MaxEvents:       5000,
			WindowDays:      dash.WindowDays,
			RelayWindowDays: dash.RelayWindowDays,
			TopN:            dash.TopN,
			TieBreak:        dash.TieBreak.String(),
		},
		Cache: CacheConfig{MaxEntries: 512},
		Refresh: RefreshConfig{
			Explore:    "30s",
			RelayStats: "1m",
			Timeout:    30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultPath returns ~/.nostrboard/config.yaml
func DefaultPath() string {
	return filepath.Join(Default().DataDir, "config.yaml")
}

// Load loads config from file, falling back to defaults, then applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = filepath.Join(cfg.DataDir, "config.yaml")
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// Use defaults
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", core.ErrInvalidConfig, path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvRelays); v != "" {
		var relays []string
		for _, r := range strings.Split(v, ",") {
			if r = strings.TrimSpace(r); r != "" {
				relays = append(relays, r)
			}
		}
		c.Relays = relays
	}
	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a port", core.ErrInvalidConfig, EnvPort, v)
		}
		c.Server.Port = port
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	return nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", core.ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", core.ErrInvalidConfig, err)
	}
	return nil
}

// Save saves config to file
func (c *Config) Save(path string) error {
	if path == "" {
		path = filepath.Join(c.DataDir, "config.yaml")
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// DatabasePath is the SQLite file under DataDir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "nostrboard.db")
}

// Addr is host:port for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Dashboard converts query settings for dashboard.NewService.
func (c *Config) Dashboard() dashboard.Config {
	q := c.Queries
	tb, _ := stats.ParseTieBreak(q.TieBreak)

	dc := dashboard.DefaultConfig()
	dc.UserTimeout = q.UserTimeout
	dc.RelayTimeout = q.RelayTimeout
	dc.UserStatsStale = q.UserStatsStale
	dc.ActivityStale = q.ActivityStale
	dc.RelayStale = q.RelayStale
	dc.ExploreStale = q.ExploreStale
	dc.EventsStale = q.EventsStale
	dc.PostLimit = q.PostLimit
	dc.ActivityLimit = q.ActivityLimit
	dc.ExploreLimit = q.ExploreLimit
	dc.WindowDays = q.WindowDays
	dc.RelayWindowDays = q.RelayWindowDays
	dc.TopN = q.TopN
	dc.TieBreak = tb
	return dc
}

// RelayClient converts connection settings for relay.NewPool.
func (c *Config) RelayClient() relay.ClientConfig {
	rc := relay.DefaultClientConfig()
	rc.DialTimeout = c.Queries.DialTimeout
	rc.MaxEvents = c.Queries.MaxEvents
	return rc
}
