// Package main implements the entry point for the linkstream API
// server: a GraphQL gateway for links, users, and votes with live
// subscriptions fed by an event bus.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/c360/linkstream/auth"
	"github.com/c360/linkstream/config"
	"github.com/c360/linkstream/eventbus"
	gqlgateway "github.com/c360/linkstream/gateway/graphql"
	"github.com/c360/linkstream/natsclient"
	"github.com/c360/linkstream/store"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "linkstream"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("Starting linkstream",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyOverrides(cfg, cliCfg)

	if cliCfg.Validate {
		slog.Info("Configuration is valid")
		return nil
	}

	ctx := context.Background()

	var natsClient *natsclient.Client
	if cfg.NeedsNATS() {
		natsClient, err = connectNATS(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer natsClient.Close(ctx)
	}

	st, err := buildStore(ctx, cfg, natsClient)
	if err != nil {
		return fmt.Errorf("create store: %w", err)
	}

	bus, err := buildBus(cfg, natsClient, logger)
	if err != nil {
		return fmt.Errorf("create event bus: %w", err)
	}
	defer bus.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	resolver, err := gqlgateway.NewResolver(st, bus,
		gqlgateway.WithResolverLogger(logger),
		gqlgateway.WithMetrics(gqlgateway.NewMetrics(registry)),
		gqlgateway.WithStoreErrorPropagation(*cfg.Gateway.PropagateStoreErrors),
		gqlgateway.WithSubscriptionBuffer(cfg.Gateway.SubscriptionBuffer))
	if err != nil {
		return fmt.Errorf("create resolver: %w", err)
	}

	server, err := gqlgateway.NewServer(cfg.Gateway, resolver, auth.New(st, logger), logger,
		gqlgateway.WithPromRegistry(registry))
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	if err := server.Setup(); err != nil {
		return fmt.Errorf("setup server: %w", err)
	}

	return runWithSignalHandling(ctx, server, cliCfg.ShutdownTimeout)
}

// connectNATS establishes the shared NATS connection
func connectNATS(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*natsclient.Client, error) {
	client, err := natsclient.NewClient(cfg.NATS.URL,
		natsclient.WithLogger(logger),
		natsclient.WithClientName(cfg.NATS.Name),
		natsclient.WithMaxReconnects(cfg.NATS.MaxReconnects),
		natsclient.WithTimeout(cfg.NATS.Timeout()))
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}

	slog.Info("Connecting to NATS", "url", cfg.NATS.URL)
	connCtx, cancel := context.WithTimeout(ctx, cfg.NATS.Timeout())
	defer cancel()

	if err := client.Connect(connCtx); err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return client, nil
}

// buildStore creates the configured document store backend
func buildStore(ctx context.Context, cfg *config.Config, natsClient *natsclient.Client) (store.Store, error) {
	switch cfg.Store.Backend {
	case config.StoreMemory:
		slog.Warn("Using in-memory store, data will not survive restarts")
		return store.NewMemory(), nil
	case config.StoreKV:
		return store.NewKV(ctx, natsClient)
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Store.Backend)
	}
}

// buildBus creates the configured event bus backend
func buildBus(cfg *config.Config, natsClient *natsclient.Client, logger *slog.Logger) (eventbus.Bus, error) {
	switch cfg.Bus.Backend {
	case config.BusMemory:
		opts := []eventbus.MemoryOption{eventbus.WithLogger(logger)}
		if cfg.Bus.Buffer > 0 {
			opts = append(opts, eventbus.WithBuffer(cfg.Bus.Buffer))
		}
		return eventbus.NewMemory(opts...), nil
	case config.BusNATS:
		opts := []eventbus.NATSOption{eventbus.WithNATSLogger(logger)}
		if cfg.Bus.SubjectPrefix != "" {
			opts = append(opts, eventbus.WithSubjectPrefix(cfg.Bus.SubjectPrefix))
		}
		if cfg.Bus.Buffer > 0 {
			opts = append(opts, eventbus.WithNATSBuffer(cfg.Bus.Buffer))
		}
		return eventbus.NewNATS(natsClient, opts...)
	default:
		return nil, fmt.Errorf("unknown bus backend: %s", cfg.Bus.Backend)
	}
}

// runWithSignalHandling starts the server and handles shutdown signals
func runWithSignalHandling(ctx context.Context, server *gqlgateway.Server, shutdownTimeout time.Duration) error {
	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	errChan := make(chan error, 1)
	ready := make(chan struct{})
	go func() {
		errChan <- server.Start(signalCtx, ready)
	}()

	select {
	case <-ready:
		slog.Info("linkstream started successfully")
	case err := <-errChan:
		return fmt.Errorf("start server: %w", err)
	}

	select {
	case <-signalCtx.Done():
		slog.Info("Received shutdown signal")
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	}

	if err := server.Stop(shutdownTimeout); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("linkstream shutdown complete")
	return nil
}
