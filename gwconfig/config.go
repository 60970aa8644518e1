// Package gwconfig loads the gateway's YAML configuration: which SP to
// talk to, how aggressively to retry, and where to expose the console and
// metrics HTTP surfaces.
package gwconfig

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the gateway's full static configuration.
type Config struct {
	SP      SPConfig      `yaml:"sp"`
	Console ConsoleConfig `yaml:"console"`
	Metrics MetricsConfig `yaml:"metrics"`
	Log     LogConfig     `yaml:"log"`
}

// SPConfig addresses the single Service Processor this gateway instance
// talks to.
type SPConfig struct {
	Address           string        `yaml:"address"`   // IPv6 address or hostname
	Port              int           `yaml:"port"`
	Interface         string        `yaml:"interface"` // required for link-local addresses
	LocalPort         int           `yaml:"local_port"`
	MaxAttempts       int           `yaml:"max_attempts"`
	PerAttemptTimeout time.Duration `yaml:"per_attempt_timeout"`
}

// ConsoleConfig configures the HTTP/SSE surface that exposes the serial
// console and bulk queries to operators.
type ConsoleConfig struct {
	BindAddr string `yaml:"bind_addr"`
}

// MetricsConfig configures the Prometheus scrape endpoint.
type MetricsConfig struct {
	BindAddr string `yaml:"bind_addr"`
	Enabled  bool   `yaml:"enabled"`
}

// LogConfig controls structured logging verbosity/format.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Load reads and parses the YAML config at path, applying defaults for
// anything the file leaves unset. There is no on-disk cache of discovered
// state to load here — that's out of scope for this core, unlike the
// teacher's BMH-backed discovery cache.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("gwconfig: %w", err)
	}

	cfg := &Config{
		SP: SPConfig{
			Port:              22222,
			LocalPort:         0,
			MaxAttempts:       5,
			PerAttemptTimeout: 2 * time.Second,
		},
		Console: ConsoleConfig{
			BindAddr: "127.0.0.1:8080",
		},
		Metrics: MetricsConfig{
			BindAddr: "127.0.0.1:9090",
			Enabled:  true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("gwconfig: parsing %s: %w", path, err)
	}
	if cfg.SP.Address == "" {
		return nil, fmt.Errorf("gwconfig: sp.address is required")
	}

	return cfg, nil
}
