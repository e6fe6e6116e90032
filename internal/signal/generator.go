// Package signal convierte las innovaciones del filtro en z-scores y posiciones.
package signal

import (
	"fmt"
	"math"

	"github.com/alejandrodnm/kalarb/internal/domain"
)

// Config son los umbrales de la máquina de estados.
type Config struct {
	EntryThreshold float64 // θ > 0
	ExitThreshold  float64 // τ, parámetro libre
}

// DefaultConfig devuelve θ=2, τ=0.
func DefaultConfig() Config {
	return Config{EntryThreshold: 2.0, ExitThreshold: 0.0}
}

// Validate comprueba que θ sea positivo.
func (c Config) Validate() error {
	if !(c.EntryThreshold > 0) {
		return fmt.Errorf("signal: entry threshold must be > 0, got %v", c.EntryThreshold)
	}
	if math.IsNaN(c.ExitThreshold) || math.IsInf(c.ExitThreshold, 0) {
		return fmt.Errorf("signal: exit threshold must be finite, got %v", c.ExitThreshold)
	}
	return nil
}

// Generator guarda la posición previa; empieza en Flat.
type Generator struct {
	th       domain.Thresholds
	position domain.Position
}

// New crea un Generator en estado Flat.
func New(cfg Config) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Generator{
		th:       domain.Thresholds{Entry: cfg.EntryThreshold, Exit: cfg.ExitThreshold},
		position: domain.Flat,
	}, nil
}

// Position devuelve la posición actual.
func (g *Generator) Position() domain.Position {
	return g.position
}

// ZScore normaliza la innovación por su desviación estándar.
func ZScore(innovation, variance float64) (float64, error) {
	if !(variance > 0) {
		return 0, fmt.Errorf("signal.ZScore: S=%v: %w", variance, domain.ErrNonPositiveVariance)
	}
	return innovation / math.Sqrt(variance), nil
}

// Step calcula el z-score del paso y aplica la transición.
// Un paso degenerado mantiene la posición previa y reporta z = 0.
func (g *Generator) Step(step domain.StepResult) (domain.SignalRecord, error) {
	rec := domain.SignalRecord{Index: step.Index, Time: step.Time}
	if step.Degenerate {
		rec.Degenerate = true
		rec.Position = g.position
		return rec, nil
	}

	z, err := ZScore(step.Innovation, step.InnovationVariance)
	if err != nil {
		return domain.SignalRecord{}, fmt.Errorf("step %d: %w", step.Index, err)
	}

	g.position = domain.Next(g.position, z, g.th)
	rec.ZScore = z
	rec.Position = g.position
	return rec, nil
}

// Run aplica Step sobre toda la secuencia del filtro.
func (g *Generator) Run(steps []domain.StepResult) ([]domain.SignalRecord, error) {
	out := make([]domain.SignalRecord, 0, len(steps))
	for _, s := range steps {
		rec, err := g.Step(s)
		if err != nil {
			return out, fmt.Errorf("signal.Run: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}
