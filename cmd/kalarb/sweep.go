package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/kalarb/config"
	"github.com/alejandrodnm/kalarb/internal/adapters/notify"
	"github.com/alejandrodnm/kalarb/internal/pipeline"
	"github.com/alejandrodnm/kalarb/internal/ports"
)

// runSweep descarga los precios una vez y barre la grilla de la config.
func runSweep(ctx context.Context, runner *pipeline.Runner, cfg *config.Config, store ports.RunStore, console *notify.Console, from, to time.Time) error {
	grid := cfg.Grid()
	slog.Info("=== SWEEP MODE ===",
		"combinations", grid.Size(),
		"workers", cfg.Sweep.Workers,
	)

	pair := cfg.PairID()
	points, err := runner.Load(ctx, pair, from, to)
	if err != nil {
		return err
	}

	start := time.Now()
	results, err := pipeline.Sweep(ctx, points, runner.Config(), grid, cfg.Sweep.Workers)
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}

	console.PrintSweep(results, cfg.Sweep.Top)

	sweepID := uuid.NewString()
	if store != nil {
		if err := store.SaveSweep(ctx, sweepID, pair, results); err != nil {
			slog.Warn("failed to persist sweep", "sweep_id", sweepID, "err", err)
		}
	}

	slog.Info("sweep complete",
		"sweep_id", sweepID,
		"combinations", len(results),
		"duration", time.Since(start),
	)
	return nil
}
