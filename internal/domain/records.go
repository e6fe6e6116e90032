package domain

import "time"

// StepResult es la salida inmutable del filtro para una observación.
type StepResult struct {
	Index               int
	Time                time.Time
	BetaPredicted       float64
	BetaFiltered        float64
	CovariancePredicted float64
	CovarianceFiltered  float64
	Innovation          float64 // e = Y - H·β⁻
	InnovationVariance  float64 // S = H²·P⁻ + R
	KalmanGain          float64
	Degenerate          bool // S <= epsilon y la política fue arrastrar β
}

// SignalRecord es el z-score del paso y la posición resultante.
type SignalRecord struct {
	Index      int
	Time       time.Time
	ZScore     float64
	Position   Position
	Degenerate bool
}

// BacktestRecord es la contabilidad de un paso del backtest.
type BacktestRecord struct {
	Index            int
	Time             time.Time
	Position         Position
	PositionDelta    int
	GrossPnL         float64
	TransactionCost  float64
	NetPnL           float64
	CumulativeEquity float64
}

// Summary agrega las estadísticas de un backtest completo.
type Summary struct {
	Records       int
	Trades        int // cambios de posición
	TotalPnL      float64
	TotalCost     float64
	SharpeRatio   float64
	SharpeDefined bool // false si la desviación del PnL es cero
	MaxDrawdown   float64
	FinalBeta     float64
}

// Params es el conjunto completo de parámetros escalares de una corrida.
type Params struct {
	ProcessNoise      float64
	MeasurementNoise  float64
	InitialBeta       float64
	InitialCovariance float64
	EntryThreshold    float64
	ExitThreshold     float64
	CostRate          float64
}

// Pair identifica los dos tickers de una corrida.
type Pair struct {
	TickerY string
	TickerX string
}

// RunResult reúne las cuatro salidas alineadas del pipeline.
type RunResult struct {
	ID        string
	CreatedAt time.Time
	Pair      Pair
	Params    Params
	Prices    []PricePoint
	Steps     []StepResult
	Signals   []SignalRecord
	Backtest  []BacktestRecord
	Summary   Summary
}

// SweepResult es el resumen de una combinación de parámetros en un barrido.
type SweepResult struct {
	Params  Params
	Summary Summary
	Err     string // error de la corrida, vacío si terminó bien
}
