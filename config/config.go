// Package config loads and validates the service configuration from a
// YAML file, filling defaults for anything left unset.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360/linkstream/errors"
	gqlgateway "github.com/c360/linkstream/gateway/graphql"
)

// Store backends
const (
	StoreMemory = "memory"
	StoreKV     = "kv"
)

// Bus backends
const (
	BusMemory = "memory"
	BusNATS   = "nats"
)

// Config is the top-level service configuration
type Config struct {
	Service ServiceConfig     `yaml:"service"`
	NATS    NATSConfig        `yaml:"nats"`
	Store   StoreConfig       `yaml:"store"`
	Bus     BusConfig         `yaml:"bus"`
	Gateway gqlgateway.Config `yaml:"gateway"`
}

// ServiceConfig identifies the service instance
type ServiceConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
}

// NATSConfig configures the NATS connection shared by the KV store
// and the NATS event bus
type NATSConfig struct {
	URL           string `yaml:"url"`
	Name          string `yaml:"name"`
	TimeoutStr    string `yaml:"timeout,omitempty"`
	MaxReconnects int    `yaml:"max_reconnects,omitempty"`

	timeout time.Duration
}

// StoreConfig selects the document store backend
type StoreConfig struct {
	// Backend is "kv" (NATS JetStream) or "memory"
	Backend string `yaml:"backend"`
}

// BusConfig selects the event bus backend
type BusConfig struct {
	// Backend is "memory" (single process) or "nats" (multi-process)
	Backend string `yaml:"backend"`

	// SubjectPrefix namespaces event subjects for the NATS backend
	SubjectPrefix string `yaml:"subject_prefix,omitempty"`

	// Buffer is the per-subscriber event buffer
	Buffer int `yaml:"buffer,omitempty"`
}

// Default returns a fully-defaulted configuration
func Default() *Config {
	cfg := &Config{}
	// Validate on a zero value only fills defaults
	_ = cfg.Validate()
	return cfg
}

// Load reads and validates a configuration file. An empty path yields
// the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Config", "Load", "read config file")
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.WrapInvalid(err, "Config", "Load", "parse config file")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration and fills in defaults
func (c *Config) Validate() error {
	if c.Service.Name == "" {
		c.Service.Name = "linkstream"
	}
	if c.Service.Environment == "" {
		c.Service.Environment = "development"
	}

	if err := c.NATS.Validate(); err != nil {
		return err
	}

	switch c.Store.Backend {
	case "":
		c.Store.Backend = StoreKV
	case StoreKV, StoreMemory:
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("unknown store backend: %s", c.Store.Backend))
	}

	switch c.Bus.Backend {
	case "":
		c.Bus.Backend = BusMemory
	case BusMemory, BusNATS:
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("unknown bus backend: %s", c.Bus.Backend))
	}
	if c.Bus.Buffer < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"bus buffer must be positive")
	}

	if err := c.Gateway.Validate(); err != nil {
		return err
	}

	return nil
}

// NeedsNATS reports whether any configured backend requires a NATS
// connection
func (c *Config) NeedsNATS() bool {
	return c.Store.Backend == StoreKV || c.Bus.Backend == BusNATS
}

// Validate checks the NATS configuration and fills in defaults
func (n *NATSConfig) Validate() error {
	if n.URL == "" {
		n.URL = "nats://localhost:4222"
	}
	if n.Name == "" {
		n.Name = "linkstream"
	}
	if n.MaxReconnects == 0 {
		n.MaxReconnects = 10
	}

	if n.TimeoutStr == "" {
		n.timeout = 5 * time.Second
	} else {
		timeout, err := time.ParseDuration(n.TimeoutStr)
		if err != nil {
			return errors.WrapInvalid(err, "NATSConfig", "Validate",
				fmt.Sprintf("invalid timeout format: %s", n.TimeoutStr))
		}
		n.timeout = timeout
	}
	return nil
}

// Timeout returns the parsed connection timeout
func (n *NATSConfig) Timeout() time.Duration {
	return n.timeout
}
