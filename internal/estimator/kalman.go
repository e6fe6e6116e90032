// Package estimator implementa el filtro de Kalman escalar que sigue el hedge ratio β.
//
// Modelo:
//
//	estado:      β_t = β_{t-1} + w_t,   w ~ N(0, Q)   (random walk, sin decaimiento)
//	observación: Y_t = X_t·β_t + v_t,   v ~ N(0, R)   (H = X_t, variable en el tiempo)
package estimator

import (
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/kalarb/internal/domain"
)

// DefaultEpsilon es el umbral bajo el cual S se considera degenerada.
const DefaultEpsilon = 1e-12

// DegeneracyPolicy decide qué hacer cuando S <= epsilon.
type DegeneracyPolicy string

const (
	// PolicyHalt devuelve el error y deja el estado intacto.
	PolicyHalt DegeneracyPolicy = "halt"
	// PolicyCarry arrastra β sin corregir, marca el paso y continúa.
	PolicyCarry DegeneracyPolicy = "carry"
)

// Config son los parámetros fijos de una corrida del filtro.
type Config struct {
	ProcessNoise      float64 // Q
	MeasurementNoise  float64 // R
	InitialBeta       float64
	InitialCovariance float64 // P0
	Epsilon           float64
	OnDegenerate      DegeneracyPolicy
}

// Validate comprueba los rangos de los parámetros.
// Q = 0 se admite (modelo de β constante); R debe ser estrictamente positivo.
func (c Config) Validate() error {
	switch {
	case c.ProcessNoise < 0:
		return fmt.Errorf("estimator: process noise must be >= 0, got %v", c.ProcessNoise)
	case !(c.MeasurementNoise > 0):
		return fmt.Errorf("estimator: measurement noise must be > 0, got %v", c.MeasurementNoise)
	case c.InitialCovariance < 0:
		return fmt.Errorf("estimator: initial covariance must be >= 0, got %v", c.InitialCovariance)
	case c.Epsilon < 0:
		return fmt.Errorf("estimator: epsilon must be >= 0, got %v", c.Epsilon)
	}
	switch c.OnDegenerate {
	case "", PolicyHalt, PolicyCarry:
	default:
		return fmt.Errorf("estimator: unknown degeneracy policy %q", c.OnDegenerate)
	}
	return nil
}

// FilterState es la creencia actual del filtro: β y su varianza P.
type FilterState struct {
	Beta       float64
	Covariance float64
}

// DegenerateError marca un paso cuya varianza de innovación no permite dividir.
type DegenerateError struct {
	Index              int
	InnovationVariance float64
	Epsilon            float64
}

func (e *DegenerateError) Error() string {
	return fmt.Sprintf("step %d: innovation variance %g <= epsilon %g", e.Index, e.InnovationVariance, e.Epsilon)
}

func (e *DegenerateError) Unwrap() error { return domain.ErrDegenerateInnovation }

// Estimator es dueño exclusivo de un FilterState.
// No es seguro para uso concurrente: cada corrida crea el suyo.
type Estimator struct {
	cfg   Config
	state FilterState
	index int
}

// New crea un Estimator con el prior (InitialBeta, InitialCovariance).
func New(cfg Config) (*Estimator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Epsilon == 0 {
		cfg.Epsilon = DefaultEpsilon
	}
	if cfg.OnDegenerate == "" {
		cfg.OnDegenerate = PolicyHalt
	}
	return &Estimator{
		cfg:   cfg,
		state: FilterState{Beta: cfg.InitialBeta, Covariance: cfg.InitialCovariance},
	}, nil
}

// State devuelve una copia de la creencia actual.
func (e *Estimator) State() FilterState {
	return e.state
}

// Steps devuelve cuántas observaciones se han procesado.
func (e *Estimator) Steps() int {
	return e.index
}

// Step hace predict + update con una observación.
// No es idempotente: cada llamada avanza el filtro.
func (e *Estimator) Step(priceY, priceX float64) (domain.StepResult, error) {
	betaPred := e.state.Beta
	covPred := e.state.Covariance + e.cfg.ProcessNoise

	h := priceX
	innov := priceY - h*betaPred
	s := h*h*covPred + e.cfg.MeasurementNoise

	res := domain.StepResult{
		Index:               e.index,
		BetaPredicted:       betaPred,
		CovariancePredicted: covPred,
		Innovation:          innov,
		InnovationVariance:  s,
	}

	if !(s > e.cfg.Epsilon) {
		derr := &DegenerateError{Index: e.index, InnovationVariance: s, Epsilon: e.cfg.Epsilon}
		if e.cfg.OnDegenerate == PolicyHalt {
			return domain.StepResult{}, derr
		}
		slog.Warn("degenerate innovation variance, carrying beta forward",
			"step", e.index,
			"s", s,
		)
		e.state = FilterState{Beta: betaPred, Covariance: covPred}
		e.index++
		res.BetaFiltered = betaPred
		res.CovarianceFiltered = covPred
		res.Degenerate = true
		return res, nil
	}

	k := covPred * h / s
	beta := betaPred + k*innov
	cov := (1 - k*h) * covPred
	if cov < 0 {
		// redondeo de coma flotante en corridas largas
		slog.Debug("clamping negative covariance", "step", e.index, "cov", cov)
		cov = 0
	}

	e.state = FilterState{Beta: beta, Covariance: cov}
	e.index++

	res.KalmanGain = k
	res.BetaFiltered = beta
	res.CovarianceFiltered = cov
	return res, nil
}

// Run procesa la serie completa llamando a Step en orden.
// Si un paso falla devuelve los resultados previos junto con el error.
func (e *Estimator) Run(points []domain.PricePoint) ([]domain.StepResult, error) {
	out := make([]domain.StepResult, 0, len(points))
	for _, p := range points {
		res, err := e.Step(p.PriceY, p.PriceX)
		if err != nil {
			return out, fmt.Errorf("estimator.Run: %w", err)
		}
		res.Time = p.Time
		out = append(out, res)
	}
	return out, nil
}
