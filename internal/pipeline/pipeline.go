// Package pipeline encadena filtro → señales → backtest sobre una serie de precios.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/kalarb/internal/backtest"
	"github.com/alejandrodnm/kalarb/internal/domain"
	"github.com/alejandrodnm/kalarb/internal/estimator"
	"github.com/alejandrodnm/kalarb/internal/signal"
)

// Config agrupa la configuración de las tres etapas.
type Config struct {
	Filter   estimator.Config
	Signal   signal.Config
	Backtest backtest.Config

	// Warmup > 0 reemplaza Filter.InitialBeta por el OLS de los primeros Warmup puntos.
	Warmup int
}

// DefaultConfig devuelve Q=1e-4, R=1e-3, θ=2, τ=0 y 5 bps de coste.
func DefaultConfig() Config {
	return Config{
		Filter: estimator.Config{
			ProcessNoise:      1e-4,
			MeasurementNoise:  1e-3,
			InitialBeta:       0,
			InitialCovariance: 1,
			Epsilon:           estimator.DefaultEpsilon,
			OnDegenerate:      estimator.PolicyHalt,
		},
		Signal:   signal.DefaultConfig(),
		Backtest: backtest.Config{CostRate: 0.0005},
	}
}

// Params devuelve los parámetros escalares de la configuración.
func (c Config) Params() domain.Params {
	return domain.Params{
		ProcessNoise:      c.Filter.ProcessNoise,
		MeasurementNoise:  c.Filter.MeasurementNoise,
		InitialBeta:       c.Filter.InitialBeta,
		InitialCovariance: c.Filter.InitialCovariance,
		EntryThreshold:    c.Signal.EntryThreshold,
		ExitThreshold:     c.Signal.ExitThreshold,
		CostRate:          c.Backtest.CostRate,
	}
}

// WithParams devuelve una copia de c con los parámetros escalares de p.
func (c Config) WithParams(p domain.Params) Config {
	c.Filter.ProcessNoise = p.ProcessNoise
	c.Filter.MeasurementNoise = p.MeasurementNoise
	c.Filter.InitialBeta = p.InitialBeta
	c.Filter.InitialCovariance = p.InitialCovariance
	c.Signal.EntryThreshold = p.EntryThreshold
	c.Signal.ExitThreshold = p.ExitThreshold
	c.Backtest.CostRate = p.CostRate
	return c
}

// Validate revisa la configuración de las tres etapas.
func (c Config) Validate() error {
	if err := c.Filter.Validate(); err != nil {
		return err
	}
	if err := c.Signal.Validate(); err != nil {
		return err
	}
	if err := c.Backtest.Validate(); err != nil {
		return err
	}
	if c.Warmup < 0 {
		return fmt.Errorf("pipeline: warmup must be >= 0, got %d", c.Warmup)
	}
	return nil
}

// Run ejecuta una corrida completa y causal sobre points.
// Si el filtro se detiene por degeneración, devuelve el resultado parcial
// (prefijo previo al paso degenerado) junto con el error.
// Cada llamada crea su propio estimador, generador y motor: corridas
// distintas no comparten estado y pueden ejecutarse en paralelo.
func Run(points []domain.PricePoint, cfg Config) (domain.RunResult, error) {
	points, err := domain.NewPriceSeries(points)
	if err != nil {
		return domain.RunResult{}, fmt.Errorf("pipeline.Run: %w", err)
	}

	if cfg.Warmup > 0 {
		beta, err := estimator.OLSPrior(points, cfg.Warmup)
		if err != nil {
			return domain.RunResult{}, fmt.Errorf("pipeline.Run: %w", err)
		}
		slog.Debug("initial beta from OLS warmup", "warmup", cfg.Warmup, "beta", beta)
		cfg.Filter.InitialBeta = beta
	}

	est, err := estimator.New(cfg.Filter)
	if err != nil {
		return domain.RunResult{}, fmt.Errorf("pipeline.Run: %w", err)
	}
	gen, err := signal.New(cfg.Signal)
	if err != nil {
		return domain.RunResult{}, fmt.Errorf("pipeline.Run: %w", err)
	}
	eng, err := backtest.New(cfg.Backtest)
	if err != nil {
		return domain.RunResult{}, fmt.Errorf("pipeline.Run: %w", err)
	}

	// con política halt el filtro devuelve el prefijo válido; las etapas
	// siguientes corren sobre ese prefijo y el error se devuelve junto al resultado
	steps, filterErr := est.Run(points)
	points = points[:len(steps)]

	signals, err := gen.Run(steps)
	if err != nil {
		return domain.RunResult{}, fmt.Errorf("pipeline.Run: signals: %w", err)
	}
	records, err := eng.Run(points, steps, signals)
	if err != nil {
		return domain.RunResult{}, fmt.Errorf("pipeline.Run: backtest: %w", err)
	}

	summary, err := backtest.Summarize(records)
	if err != nil && !errors.Is(err, domain.ErrInsufficientData) {
		return domain.RunResult{}, fmt.Errorf("pipeline.Run: %w", err)
	}
	if err != nil {
		slog.Warn("not enough records for statistics", "records", len(records))
	}
	if len(steps) > 0 {
		summary.FinalBeta = steps[len(steps)-1].BetaFiltered
	}

	result := domain.RunResult{
		ID:        uuid.New().String(),
		CreatedAt: time.Now().UTC(),
		Params:    cfg.Params(),
		Prices:    points,
		Steps:     steps,
		Signals:   signals,
		Backtest:  records,
		Summary:   summary,
	}
	if filterErr != nil {
		return result, fmt.Errorf("pipeline.Run: filter halted after %d steps: %w", len(steps), filterErr)
	}
	return result, nil
}
