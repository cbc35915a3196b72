// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ManuGH/ytpoint/internal/config"
	"github.com/ManuGH/ytpoint/internal/log"
)

// PerformStartupChecks validates the environment before the daemon serves.
// A missing worker binary is only a warning: sessions fail at start instead.
func PerformStartupChecks(_ context.Context, cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("running pre-flight startup checks")

	checkWorkerBin(logger, cfg.Worker.Bin)

	if cfg.Journal.Backend != config.JournalMemory {
		if err := checkJournalDir(logger, cfg.Journal.Path); err != nil {
			return fmt.Errorf("journal directory check failed: %w", err)
		}
	}

	if cfg.Worker.Cookies == "" {
		logger.Info().Msg("no worker cookies configured, exact subscriber counts unavailable")
	}

	logger.Info().Msg("all startup checks passed")
	return nil
}

func checkWorkerBin(logger zerolog.Logger, bin string) {
	bin = strings.TrimSpace(bin)
	path, err := exec.LookPath(bin)
	if err != nil {
		logger.Warn().Err(err).Str("bin", bin).Msg("worker binary not found, sessions will fail to start")
		return
	}
	logger.Info().Str("bin", path).Msg("worker binary available")
}

// checkJournalDir ensures the journal's parent directory exists and is writable.
func checkJournalDir(logger zerolog.Logger, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	probe := filepath.Join(dir, ".write_test")
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		return fmt.Errorf("directory is not writable: %s (error: %v)", dir, err)
	}
	_ = os.Remove(probe)
	logger.Info().Str("path", dir).Msg("journal directory is writable")
	return nil
}
