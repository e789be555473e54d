package commands

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/anthropic-labs/nat64core/internal/config"
	"github.com/anthropic-labs/nat64core/internal/nat64"
)

// loadCore loads the configuration at configPath (or DefaultConfig if
// empty) and builds a Core with its pool4 addresses registered, ready for
// inspection. The Core never serves traffic -- nat64ctl only exercises its
// construction-time validation and read-only introspection surface.
func loadCore() (*nat64.Core, *config.Config, error) {
	cfg, err := loadConfigFile()
	if err != nil {
		return nil, nil, err
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	core := nat64.NewCore(logger, nat64.WithFilteringConfig(cfg.Filtering.Resolve()))

	addrs, err := cfg.Pool4Addrs()
	if err != nil {
		return nil, nil, fmt.Errorf("parse pool4 addresses: %w", err)
	}
	for _, a := range addrs {
		if err := core.Pool4Register(a); err != nil {
			return nil, nil, fmt.Errorf("register pool4 address %s: %w", a, err)
		}
	}

	return core, cfg, nil
}

func loadConfigFile() (*config.Config, error) {
	if configPath == "" {
		return config.DefaultConfig(), nil
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config from %s: %w", configPath, err)
	}
	return cfg, nil
}
