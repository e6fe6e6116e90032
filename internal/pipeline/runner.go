package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/kalarb/internal/domain"
	"github.com/alejandrodnm/kalarb/internal/ports"
)

// Runner orquesta una corrida: descarga precios, ejecuta el pipeline,
// persiste (si hay store) y reporta.
type Runner struct {
	cfg      Config
	prices   ports.PriceProvider
	store    ports.RunStore // nil en dry-run
	reporter ports.Reporter
}

// NewRunner crea un Runner. store puede ser nil.
func NewRunner(cfg Config, prices ports.PriceProvider, store ports.RunStore, reporter ports.Reporter) *Runner {
	return &Runner{cfg: cfg, prices: prices, store: store, reporter: reporter}
}

// Config devuelve la configuración del pipeline.
func (r *Runner) Config() Config {
	return r.cfg
}

// Load descarga y valida la serie del par.
func (r *Runner) Load(ctx context.Context, pair domain.Pair, from, to time.Time) ([]domain.PricePoint, error) {
	points, err := r.prices.FetchPair(ctx, pair, from, to)
	if err != nil {
		return nil, fmt.Errorf("pipeline.Load: fetch %s/%s: %w", pair.TickerY, pair.TickerX, err)
	}
	slog.Info("price series loaded",
		"y", pair.TickerY,
		"x", pair.TickerX,
		"points", len(points),
	)
	return points, nil
}

// RunOnce ejecuta el ciclo completo para el par en [from, to).
func (r *Runner) RunOnce(ctx context.Context, pair domain.Pair, from, to time.Time) (domain.RunResult, error) {
	points, err := r.Load(ctx, pair, from, to)
	if err != nil {
		return domain.RunResult{}, err
	}

	start := time.Now()
	result, err := Run(points, r.cfg)
	if err != nil {
		return domain.RunResult{}, err
	}
	result.Pair = pair

	slog.Info("backtest complete",
		"run_id", result.ID,
		"steps", len(result.Steps),
		"trades", result.Summary.Trades,
		"total_pnl", result.Summary.TotalPnL,
		"sharpe", result.Summary.SharpeRatio,
		"sharpe_defined", result.Summary.SharpeDefined,
		"max_drawdown", result.Summary.MaxDrawdown,
		"duration", time.Since(start),
	)

	if r.store != nil {
		if err := r.store.SaveRun(ctx, result); err != nil {
			slog.Warn("failed to persist run", "run_id", result.ID, "err", err)
		}
	}

	if r.reporter != nil {
		if err := r.reporter.Report(ctx, result); err != nil {
			slog.Warn("reporter error", "err", err)
		}
	}

	return result, nil
}
