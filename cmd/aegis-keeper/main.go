package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aegisvault/aegisvault/internal/config"
)

func main() {
	// Define command-line flags
	configPath := flag.String("config", "", "Path to TOML configuration file")
	registryPath := flag.String("registry", "", "Guardian registry snapshot path")
	nullifierPath := flag.String("nullifiers", "", "Nullifier snapshot path")
	inboxDir := flag.String("inbox", "", "Proof bundle inbox directory")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")

	flag.Parse()

	// Set up logger based on log level
	var level slog.Level
	switch strings.ToLower(*logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	// Build configuration
	cfg, err := buildConfig(*configPath, *registryPath, *nullifierPath, *inboxDir)
	if err != nil {
		logger.Error("failed to build configuration", "error", err)
		os.Exit(1)
	}

	// Create daemon
	daemon, err := NewDaemon(cfg, nil, nil)
	if err != nil {
		logger.Error("failed to create daemon", "error", err)
		os.Exit(1)
	}

	// Set up signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	// Run daemon
	logger.Info("starting aegis-keeper daemon",
		"registry", cfg.RegistryPath,
		"nullifiers", cfg.NullifierPath,
		"inbox", cfg.InboxDir,
		"policy", cfg.Authz.String(),
	)

	if err := daemon.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("daemon error", "error", err)
		os.Exit(1)
	}

	logger.Info("daemon stopped gracefully")
}

// buildConfig creates a DaemonConfig from file and/or flags.
// Flags override file settings.
func buildConfig(configPath, registryPath, nullifierPath, inboxDir string) (DaemonConfig, error) {
	var cfg DaemonConfig

	// Load from file if provided
	if configPath != "" {
		fileCfg, err := config.LoadKeeperConfig(configPath)
		if err != nil {
			return cfg, fmt.Errorf("failed to load config file: %w", err)
		}

		// Map config file to DaemonConfig
		cfg = DaemonConfig{
			RegistryPath:     fileCfg.Registry.SnapshotPath,
			NullifierPath:    fileCfg.Nullifiers.SnapshotPath,
			InboxDir:         fileCfg.Inbox.Dir,
			QueueSize:        fileCfg.Inbox.QueueSize,
			SnapshotInterval: time.Duration(fileCfg.Nullifiers.SnapshotIntervalSeconds) * time.Second,
			Authz:            fileCfg.AuthzConfig(),
		}
	} else {
		// Start with defaults
		cfg = DefaultDaemonConfig()
	}

	// Override with flags
	if registryPath != "" {
		cfg.RegistryPath = config.ExpandPath(registryPath)
	}

	if nullifierPath != "" {
		cfg.NullifierPath = config.ExpandPath(nullifierPath)
	}

	if inboxDir != "" {
		cfg.InboxDir = config.ExpandPath(inboxDir)
	}

	// Validate final config
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
