// Package backtest simula la estrategia long/short sobre el spread Y - β·X.
//
// El PnL de hoy usa la posición y la β de ayer (sin lookahead):
//
//	gross_t = pos_{t-1} × (ΔY_t − β_{t-1} × ΔX_t)
//	cost_t  = |pos_t − pos_{t-1}| × (Y_t + β_t × X_t) × c
package backtest

import (
	"fmt"
	"math"

	"github.com/alejandrodnm/kalarb/internal/domain"
)

// Config controla la fricción del backtest.
type Config struct {
	CostRate float64 // fracción del valor negociado, ej. 0.0005 = 5 bps
}

// Validate comprueba que el coste no sea negativo.
func (c Config) Validate() error {
	if c.CostRate < 0 || math.IsNaN(c.CostRate) {
		return fmt.Errorf("backtest: cost rate must be >= 0, got %v", c.CostRate)
	}
	return nil
}

// Engine guarda el estado del paso previo: precios, β, posición y equity.
// Antes del primer registro la posición previa es Flat y la equity es 0.
type Engine struct {
	cfg Config

	started   bool
	prevY     float64
	prevX     float64
	prevBeta  float64
	prevPos   domain.Position
	equity    float64
	processed int
}

// New crea un Engine vacío.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, prevPos: domain.Flat}, nil
}

// Equity devuelve la equity acumulada hasta el último paso.
func (e *Engine) Equity() float64 {
	return e.equity
}

// Step contabiliza un paso. El primer paso no tiene deltas de precio, así que
// su PnL bruto es 0; si ya abre posición paga el coste de entrada.
func (e *Engine) Step(p domain.PricePoint, beta float64, pos domain.Position) domain.BacktestRecord {
	var gross float64
	if e.started {
		dy := p.PriceY - e.prevY
		dx := p.PriceX - e.prevX
		gross = e.prevPos.Multiplier() * (dy - e.prevBeta*dx)
	}

	delta := int(pos) - int(e.prevPos)
	cost := math.Abs(float64(delta)) * (p.PriceY + beta*p.PriceX) * e.cfg.CostRate
	net := gross - cost
	e.equity += net

	rec := domain.BacktestRecord{
		Index:            e.processed,
		Time:             p.Time,
		Position:         pos,
		PositionDelta:    delta,
		GrossPnL:         gross,
		TransactionCost:  cost,
		NetPnL:           net,
		CumulativeEquity: e.equity,
	}

	e.started = true
	e.prevY, e.prevX = p.PriceY, p.PriceX
	e.prevBeta = beta
	e.prevPos = pos
	e.processed++
	return rec
}

// Run valida que las tres secuencias estén alineadas y las procesa en orden.
func (e *Engine) Run(points []domain.PricePoint, steps []domain.StepResult, signals []domain.SignalRecord) ([]domain.BacktestRecord, error) {
	if err := checkAligned(points, steps, signals); err != nil {
		return nil, fmt.Errorf("backtest.Run: %w", err)
	}
	out := make([]domain.BacktestRecord, len(points))
	for i, p := range points {
		out[i] = e.Step(p, steps[i].BetaFiltered, signals[i].Position)
	}
	return out, nil
}

func checkAligned(points []domain.PricePoint, steps []domain.StepResult, signals []domain.SignalRecord) error {
	if len(points) != len(steps) || len(points) != len(signals) {
		return &domain.MisalignmentError{
			Index:  min(len(points), len(steps), len(signals)),
			Reason: fmt.Sprintf("length mismatch: prices=%d steps=%d signals=%d", len(points), len(steps), len(signals)),
		}
	}
	for i := range points {
		if !steps[i].Time.Equal(points[i].Time) {
			return &domain.MisalignmentError{Index: i, Reason: "step timestamp differs from price timestamp"}
		}
		if !signals[i].Time.Equal(points[i].Time) {
			return &domain.MisalignmentError{Index: i, Reason: "signal timestamp differs from price timestamp"}
		}
	}
	return nil
}
