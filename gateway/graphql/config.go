package graphql

import (
	"fmt"
	"time"

	"github.com/c360/linkstream/errors"
)

// Config holds configuration for the GraphQL gateway
type Config struct {
	// BindAddress is the HTTP bind address (default: ":8080")
	BindAddress string `json:"bind_address" yaml:"bind_address"`

	// Path is the GraphQL endpoint path (default: "/graphql")
	Path string `json:"path" yaml:"path"`

	// EnablePlayground enables the GraphQL Playground UI (default: true)
	EnablePlayground bool `json:"enable_playground" yaml:"enable_playground"`

	// EnableCORS enables CORS headers (default: true)
	EnableCORS bool `json:"enable_cors" yaml:"enable_cors"`

	// CORSOrigins lists allowed CORS origins (default: ["*"])
	CORSOrigins []string `json:"cors_origins,omitempty" yaml:"cors_origins,omitempty"`

	// TimeoutStr is the per-request timeout (default: "30s")
	TimeoutStr string `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// MaxQueryDepth limits query nesting depth (default: 10)
	MaxQueryDepth int `json:"max_query_depth,omitempty" yaml:"max_query_depth,omitempty"`

	// SubscriptionBuffer is the per-subscriber event buffer (default: 64)
	SubscriptionBuffer int `json:"subscription_buffer,omitempty" yaml:"subscription_buffer,omitempty"`

	// PropagateStoreErrors surfaces store failures to clients as
	// classified GraphQL errors instead of logging and resolving null
	// (default: true)
	PropagateStoreErrors *bool `json:"propagate_store_errors,omitempty" yaml:"propagate_store_errors,omitempty"`

	// timeout is the parsed duration (internal use)
	timeout time.Duration
}

// Validate checks the configuration and fills in defaults
func (c *Config) Validate() error {
	if c.BindAddress == "" {
		c.BindAddress = ":8080"
	}

	if c.Path == "" {
		c.Path = "/graphql"
	}
	if c.Path[0] != '/' {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"path must start with /")
	}

	if c.TimeoutStr == "" {
		c.timeout = 30 * time.Second
	} else {
		timeout, err := time.ParseDuration(c.TimeoutStr)
		if err != nil {
			return errors.WrapInvalid(err, "Config", "Validate",
				fmt.Sprintf("invalid timeout format: %s", c.TimeoutStr))
		}
		if timeout < 100*time.Millisecond || timeout > 5*time.Minute {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
				"timeout must be between 100ms and 5m")
		}
		c.timeout = timeout
	}

	if c.MaxQueryDepth == 0 {
		c.MaxQueryDepth = 10
	}
	if c.MaxQueryDepth < 1 || c.MaxQueryDepth > 50 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"max_query_depth must be between 1 and 50")
	}

	if c.SubscriptionBuffer == 0 {
		c.SubscriptionBuffer = 64
	}
	if c.SubscriptionBuffer < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"subscription_buffer must be positive")
	}

	if c.EnableCORS && len(c.CORSOrigins) == 0 {
		c.CORSOrigins = []string{"*"}
	}

	if c.PropagateStoreErrors == nil {
		propagate := true
		c.PropagateStoreErrors = &propagate
	}

	return nil
}

// Timeout returns the parsed timeout duration
func (c *Config) Timeout() time.Duration {
	return c.timeout
}

// DefaultConfig returns default gateway configuration
func DefaultConfig() Config {
	propagate := true
	return Config{
		BindAddress:          ":8080",
		Path:                 "/graphql",
		EnablePlayground:     true,
		EnableCORS:           true,
		CORSOrigins:          []string{"*"},
		TimeoutStr:           "30s",
		MaxQueryDepth:        10,
		SubscriptionBuffer:   64,
		PropagateStoreErrors: &propagate,
	}
}
