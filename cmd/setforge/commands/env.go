package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/setforge/setforge/pkg/bridge"
	"github.com/setforge/setforge/pkg/config"
	"github.com/setforge/setforge/pkg/handlers"
	"github.com/setforge/setforge/pkg/policy"
	"github.com/setforge/setforge/pkg/stores"
	"github.com/setforge/setforge/pkg/telemetry"
)

// appEnv bundles the wired-up engine components a command needs.
type appEnv struct {
	log      *telemetry.Logger
	parser   *config.Parser
	registry *handlers.Registry
	bridge   *bridge.Bridge
	gate     *policy.Gate
}

func defaultStateDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "setforge")
	}
	return "/var/lib/setforge"
}

// newAppEnv constructs the shared component graph from the global flags.
func newAppEnv(ctx context.Context) (*appEnv, error) {
	log, err := telemetry.NewLogger(telemetry.LoggingConfig{
		Level:  logLevel,
		Format: logFormat,
		Output: "stderr",
	})
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	registry, err := handlers.DefaultRegistry(log, stateDir)
	if err != nil {
		return nil, fmt.Errorf("initializing handlers: %w", err)
	}

	gate, err := policy.NewGate(log)
	if err != nil {
		return nil, fmt.Errorf("initializing policy gate: %w", err)
	}
	if policyDir != "" {
		if err := gate.LoadDir(ctx, policyDir); err != nil {
			return nil, fmt.Errorf("loading policies: %w", err)
		}
	}

	return &appEnv{
		log:      log,
		parser:   config.NewParser(log),
		registry: registry,
		bridge:   bridge.New(bridge.Options{Logger: log}),
		gate:     gate,
	}, nil
}

// openStore opens the run-history database under the state directory.
func (e *appEnv) openStore(ctx context.Context) (*stores.SQLiteStore, error) {
	store, err := stores.NewSQLiteStore(stores.Config{
		Path: filepath.Join(stateDir, "runs.db"),
	})
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("opening run store: %w", err)
	}
	return store, nil
}

// loadConfiguration resolves the declaration source: a preset name given via
// --preset, a single file, or a directory of files.
func (e *appEnv) loadConfiguration(path, preset string) (*engineConfig, error) {
	if preset != "" {
		cfg, err := e.parser.FromPreset(preset)
		if err != nil {
			return nil, err
		}
		return &engineConfig{Configuration: cfg}, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if info.IsDir() {
		cfg, warnings, err := e.parser.ParseDir(path)
		if err != nil {
			return nil, err
		}
		return &engineConfig{Configuration: cfg, Warnings: warnings}, nil
	}

	cfg, err := e.parser.ParseFile(path)
	if err != nil {
		return nil, err
	}
	return &engineConfig{Configuration: cfg}, nil
}
