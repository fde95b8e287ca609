package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/c360/linkstream/config"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPath      string
	BindAddress     string
	NATSURL         string
	StoreBackend    string
	BusBackend      string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	ShowVersion     bool
	ShowHelp        bool
	Validate        bool
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	flag.StringVar(&cfg.ConfigPath, "config",
		getEnv("LINKSTREAM_CONFIG", ""),
		"Path to configuration file, empty for defaults (env: LINKSTREAM_CONFIG)")

	flag.StringVar(&cfg.BindAddress, "addr",
		getEnv("LINKSTREAM_ADDR", ""),
		"HTTP bind address, overrides config (env: LINKSTREAM_ADDR)")

	flag.StringVar(&cfg.NATSURL, "nats",
		getEnv("LINKSTREAM_NATS_URL", ""),
		"NATS server URL, overrides config (env: LINKSTREAM_NATS_URL)")

	flag.StringVar(&cfg.StoreBackend, "store",
		getEnv("LINKSTREAM_STORE", ""),
		"Store backend: kv, memory (env: LINKSTREAM_STORE)")

	flag.StringVar(&cfg.BusBackend, "bus",
		getEnv("LINKSTREAM_BUS", ""),
		"Event bus backend: memory, nats (env: LINKSTREAM_BUS)")

	flag.StringVar(&cfg.LogLevel, "log-level",
		getEnv("LINKSTREAM_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: LINKSTREAM_LOG_LEVEL)")

	flag.StringVar(&cfg.LogFormat, "log-format",
		getEnv("LINKSTREAM_LOG_FORMAT", "json"),
		"Log format: json, text (env: LINKSTREAM_LOG_FORMAT)")

	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("LINKSTREAM_SHUTDOWN_TIMEOUT", 30*time.Second),
		"Graceful shutdown timeout (env: LINKSTREAM_SHUTDOWN_TIMEOUT)")

	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	flag.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	flag.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")
	flag.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")

	flag.Usage = printDetailedHelp

	flag.Parse()

	return cfg
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	if cfg.ConfigPath != "" {
		if _, err := os.Stat(cfg.ConfigPath); err != nil {
			return fmt.Errorf("config file not found: %s", cfg.ConfigPath)
		}
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}

	validFormats := []string{"json", "text"}
	if !contains(validFormats, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}

	if cfg.StoreBackend != "" && !contains([]string{config.StoreKV, config.StoreMemory}, cfg.StoreBackend) {
		return fmt.Errorf("invalid store backend: %s", cfg.StoreBackend)
	}

	if cfg.BusBackend != "" && !contains([]string{config.BusMemory, config.BusNATS}, cfg.BusBackend) {
		return fmt.Errorf("invalid bus backend: %s", cfg.BusBackend)
	}

	return nil
}

// applyOverrides layers non-empty CLI flags over the file configuration
func applyOverrides(cfg *config.Config, cliCfg *CLIConfig) {
	if cliCfg.BindAddress != "" {
		cfg.Gateway.BindAddress = cliCfg.BindAddress
	}
	if cliCfg.NATSURL != "" {
		cfg.NATS.URL = cliCfg.NATSURL
	}
	if cliCfg.StoreBackend != "" {
		cfg.Store.Backend = cliCfg.StoreBackend
	}
	if cliCfg.BusBackend != "" {
		cfg.Bus.Backend = cliCfg.BusBackend
	}
}

func printDetailedHelp() {
	_, _ = fmt.Fprintf(os.Stderr, `%s - GraphQL API for links, users, and votes

Usage: %s [options]

Options:
`, appName, os.Args[0])
	flag.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Examples:
  # Run with defaults (NATS KV store, in-memory bus)
  %s

  # Run fully in memory, no NATS required
  %s --store=memory --bus=memory

  # Run with custom config and debug logging
  %s --config=/etc/linkstream/config.yaml --log-level=debug --log-format=text

  # Validate configuration only
  %s --config=config.yaml --validate

Version: %s
Build: %s
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0], Version, BuildTime)
}

// Environment variable helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
