// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ManuGH/sitekit/internal/config"
	"github.com/ManuGH/sitekit/internal/log"
	"github.com/rs/zerolog"
)

// PerformStartupChecks validates the runtime environment before the server starts.
// Configuration values were validated during assembly; these checks cover the
// filesystem and network state that can drift after resolution.
func PerformStartupChecks(_ context.Context, cfg config.Config) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("running pre-flight startup checks")

	if err := checkWritableDir(cfg.Storage.MediaRoot); err != nil {
		return fmt.Errorf("media root check failed: %w", err)
	}
	logger.Info().Str("path", cfg.Storage.MediaRoot).Msg("media root is writable")

	if err := checkListenAddr(logger, "LISTEN_ADDR", cfg.Server.ListenAddr); err != nil {
		return err
	}
	if cfg.Server.MetricsAddr != "" {
		if err := checkListenAddr(logger, "METRICS_ADDR", cfg.Server.MetricsAddr); err != nil {
			return err
		}
	}

	for _, dir := range cfg.Templates.Dirs {
		if _, err := os.Stat(dir); err != nil {
			// Missing template dirs fall back to the embedded defaults.
			logger.Warn().Str("path", dir).Err(err).Msg("template directory unavailable")
		}
	}

	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0750); err != nil {
			return fmt.Errorf("log directory check failed: %w", err)
		}
	}

	if cfg.Tasks.Broker == config.BrokerMemory {
		logger.Warn().
			Str("broker", string(cfg.Tasks.Broker)).
			Msg("in-memory task broker; queued tasks are lost on restart")
	}

	logger.Info().Msg("all startup checks passed")
	return nil
}

func checkListenAddr(logger zerolog.Logger, key, addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, addr, err)
	}
	portNum, err := strconv.Atoi(port)
	if err != nil || portNum < 0 || portNum > 65535 {
		return fmt.Errorf("invalid %s port %q in %q", key, port, addr)
	}
	logger.Info().Str("addr", addr).Msg("listen address is valid")
	return nil
}

func checkWritableDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("directory does not exist: %s", path)
		}
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	f, err := os.CreateTemp(path, ".write_test")
	if err != nil {
		return fmt.Errorf("directory is not writable: %s (error: %v)", path, err)
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return nil
}
