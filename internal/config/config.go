// Package config loads and validates the service configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrNoSources is returned when validation finds no enabled data source.
// A process with zero fetchers has nothing to aggregate, so this is a
// startup error rather than something discovered per request.
var ErrNoSources = errors.New("no data sources enabled")

// Duration wraps time.Duration so values can be written as "10s" or
// "250ms" in the YAML file.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped value as a standard time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// SourceConfig configures a single data source. BaseURL exists mainly so
// tests can point a source at a local server; when empty, the source's
// production endpoint is used.
type SourceConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
}

// Sources enumerates the data sources the process may run. The set of
// kinds is fixed at startup; there is no dynamic registration.
type Sources struct {
	Weather   SourceConfig `yaml:"weather"`
	CityStats SourceConfig `yaml:"city_stats"`
}

// Config holds the full service configuration.
type Config struct {
	// ListenAddr is the address the HTTP API binds to.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel is a logrus level name ("debug", "info", "warn", ...).
	LogLevel string `yaml:"log_level"`

	// RequestTimeout bounds the collection phase of one aggregation
	// request. When it elapses the dispatcher merges whatever outcomes
	// arrived and treats the rest as missing.
	RequestTimeout Duration `yaml:"request_timeout"`

	// FetchTimeout bounds a single fetch inside a worker. It should be
	// shorter than RequestTimeout so a slow source resolves to a failure
	// outcome before the whole request gives up.
	FetchTimeout Duration `yaml:"fetch_timeout"`

	// QueueSize is the capacity of the dispatcher's inbound request
	// channel.
	QueueSize int `yaml:"queue_size"`

	// FetcherQueueSize is the capacity of each worker's request channel.
	FetcherQueueSize int `yaml:"fetcher_queue_size"`

	// UserAgent is sent on outbound source requests. Both wttr.in and
	// nominatim require one for usage tracking.
	UserAgent string `yaml:"user_agent"`

	Sources Sources `yaml:"sources"`
}

// Default returns the configuration used when no file is provided.
func Default() Config {
	return Config{
		ListenAddr:       ":4242",
		LogLevel:         "info",
		RequestTimeout:   Duration(10 * time.Second),
		FetchTimeout:     Duration(5 * time.Second),
		QueueSize:        128,
		FetcherQueueSize: 16,
		UserAgent:        "cityinfo",
		Sources: Sources{
			Weather:   SourceConfig{Enabled: true},
			CityStats: SourceConfig{Enabled: true},
		},
	}
}

// Load reads the configuration file at path, layering it over Default.
// An empty path returns the defaults. The returned configuration is
// always validated.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the service cannot run
// with. A configuration with zero enabled sources is rejected here, at
// startup, rather than surfacing later as a per-request failure.
func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return errors.New("listen_addr must not be empty")
	}
	if c.RequestTimeout.Std() <= 0 {
		return errors.New("request_timeout must be positive")
	}
	if c.FetchTimeout.Std() <= 0 {
		return errors.New("fetch_timeout must be positive")
	}
	if c.QueueSize <= 0 {
		return errors.New("queue_size must be positive")
	}
	if c.FetcherQueueSize <= 0 {
		return errors.New("fetcher_queue_size must be positive")
	}
	if !c.Sources.Weather.Enabled && !c.Sources.CityStats.Enabled {
		return ErrNoSources
	}
	return nil
}
