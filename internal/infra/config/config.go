// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server     ServerConfig            `yaml:"server"`
	Admin      AdminConfig             `yaml:"admin"`
	Wall       WallConfig              `yaml:"wall"`
	Director   DirectorConfig          `yaml:"director"`
	Sync       SyncConfig              `yaml:"sync"`
	Drift      DriftConfig             `yaml:"drift"`
	Queue      QueueConfig             `yaml:"queue"`
	Simulation SimulationConfig        `yaml:"simulation"`
	Filters    map[string]FilterConfig `yaml:"filters"`
}

// ServerConfig represents server configuration.
type ServerConfig struct {
	Addr  string      `yaml:"addr" default:":8080"`
	Hooks HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// AdminConfig represents admin-related configuration.
type AdminConfig struct {
	Token string `yaml:"token" validate:"required"`
}

// WallConfig describes the tile grid.
type WallConfig struct {
	TileCount int    `yaml:"tile_count" default:"4" validate:"gte=1,lte=64"`
	Kind      string `yaml:"kind" default:"LOCAL" validate:"oneof=LOCAL REMOTE"`
	Muted     *bool  `yaml:"muted" default:"true"`
}

// DirectorConfig represents playback director configuration.
type DirectorConfig struct {
	BufferTimeoutMs int `yaml:"buffer_timeout_ms" default:"5000" validate:"gte=100,lte=60000"`
}

// SyncConfig represents the initial drift correction settings.
type SyncConfig struct {
	GapMs   int  `yaml:"gap_ms" validate:"gte=0,lte=10000"`
	FreeRun bool `yaml:"free_run"` // Start with drift correction disabled
}

// DriftConfig holds the thresholds of both drift engines.
type DriftConfig struct {
	Rate RateConfig `yaml:"rate"`
	Seek SeekConfig `yaml:"seek"`
}

// RateConfig represents continuous-rate engine configuration.
type RateConfig struct {
	SoftThreshold float64 `yaml:"soft_threshold" default:"0.04" validate:"gt=0"`
	HardThreshold float64 `yaml:"hard_threshold" default:"0.5" validate:"gt=0"`
	FastRate      float64 `yaml:"fast_rate" default:"1.02" validate:"gt=1,lte=2"`
	SlowRate      float64 `yaml:"slow_rate" default:"0.98" validate:"gt=0,lt=1"`
	IntervalMs    int     `yaml:"interval_ms" default:"16" validate:"gte=1,lte=1000"`
}

// SeekConfig represents discrete-seek engine configuration.
type SeekConfig struct {
	SoftThreshold float64 `yaml:"soft_threshold" default:"0.25" validate:"gt=0"`
	HardThreshold float64 `yaml:"hard_threshold" default:"1.0" validate:"gt=0"`
	IntervalMs    int     `yaml:"interval_ms" default:"100" validate:"gte=10,lte=5000"`
}

// QueueConfig represents play queue policy.
type QueueConfig struct {
	AutoAdvance *bool `yaml:"auto_advance" default:"true"`
	LoopQueue   bool  `yaml:"loop_queue"`
}

// SimulationConfig holds the simulated tile settings.
type SimulationConfig struct {
	Settings map[string]any `yaml:"settings,omitempty"`
}

// FilterConfig represents a filter's configuration.
type FilterConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse parses, defaults and validates a YAML document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	cfg.overrideFromEnv()

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	cfg.Wall.Kind = strings.ToUpper(strings.TrimSpace(cfg.Wall.Kind))

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("WALL_ADMIN_TOKEN"); v != "" {
		c.Admin.Token = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	if c.Drift.Rate.SoftThreshold >= c.Drift.Rate.HardThreshold {
		return errors.Newf("drift.rate.soft_threshold (%v) must be below hard_threshold (%v)",
			c.Drift.Rate.SoftThreshold, c.Drift.Rate.HardThreshold)
	}
	if c.Drift.Seek.SoftThreshold >= c.Drift.Seek.HardThreshold {
		return errors.Newf("drift.seek.soft_threshold (%v) must be below hard_threshold (%v)",
			c.Drift.Seek.SoftThreshold, c.Drift.Seek.HardThreshold)
	}

	return nil
}

// IsFilterEnabled checks if a filter is enabled.
func (c *Config) IsFilterEnabled(filterName string) bool {
	if f, ok := c.Filters[filterName]; ok {
		return f.Enabled
	}
	return false
}

// EnabledFilters returns the settings of every enabled filter by name.
func (c *Config) EnabledFilters() map[string]map[string]any {
	out := make(map[string]map[string]any)
	for name, f := range c.Filters {
		if f.Enabled {
			out[name] = f.Settings
		}
	}
	return out
}

// BufferTimeout returns the director failsafe window.
func (c *Config) BufferTimeout() time.Duration {
	return time.Duration(c.Director.BufferTimeoutMs) * time.Millisecond
}

// IsMuted reports whether tiles start muted.
func (c *Config) IsMuted() bool {
	return c.Wall.Muted == nil || *c.Wall.Muted
}

// IsAutoAdvance reports whether a natural end loads the next queued source.
func (c *Config) IsAutoAdvance() bool {
	return c.Queue.AutoAdvance == nil || *c.Queue.AutoAdvance
}

// Interval returns the rate engine tick period.
func (r RateConfig) Interval() time.Duration {
	return time.Duration(r.IntervalMs) * time.Millisecond
}

// Interval returns the seek engine tick period.
func (s SeekConfig) Interval() time.Duration {
	return time.Duration(s.IntervalMs) * time.Millisecond
}
