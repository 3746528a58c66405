package main

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/joho/godotenv"

	"hubsync/internal/app"
	"hubsync/pkg/config"
	"hubsync/pkg/logger"
	"hubsync/pkg/shutdown"
)

func main() {
	// build metadata - set via ldflags during build/release
	var version = "dev"

	_ = godotenv.Load(".env")
	addrVal, backendVal, cfgVal, setFlags := config.ParseCommandFlags()

	// Resolve config path (file flag wins over env)
	cfgPath := config.ResolveConfigPath(cfgVal, setFlags["config"])

	// Load effective config (file + env); explicit flags win over both.
	cfg, envUsed, err := config.LoadEffective(cfgPath)
	if err != nil {
		logger.Init()
		shutdown.Abort("failed to load config", err)
	}
	if setFlags["backend"] || cfg.Backend.BaseURL == "" {
		cfg.Backend.BaseURL = backendVal
	}
	if setFlags["addr"] {
		if err := applyAddrFlag(cfg, addrVal); err != nil {
			logger.Init()
			shutdown.Abort("invalid -addr", err)
		}
	}

	logger.InitWithLevel(cfg.Logging.Level)

	source := "flags"
	switch {
	case envUsed:
		source = "env"
	case len(setFlags) == 0:
		source = "config"
	}

	a, err := app.New(cfg, source, version)
	if err != nil {
		shutdown.Abort("startup failed", err)
	}

	ctx, cancel := shutdown.SetupSignalHandler(context.Background())
	defer cancel()

	if err := a.Run(ctx); err != nil {
		shutdown.Abort("observe server failed", err)
	}
}

// applyAddrFlag splits a host:port flag value into the observe config.
func applyAddrFlag(cfg *config.Config, addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("expected host:port, got %q", addr)
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("invalid port %q", port)
	}
	cfg.Observe.Address = host
	cfg.Observe.Port = p
	return nil
}
