package backtest

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/alejandrodnm/kalarb/internal/domain"
)

const (
	// TradingDaysPerYear anualiza el Sharpe de PnL diario.
	TradingDaysPerYear = 252

	// relStdDevTol: una desviación menor que esta fracción de max|pnl| es
	// ruido de redondeo de una serie constante.
	relStdDevTol = 1e-12
)

// Sharpe devuelve √252·mean/stdev del PnL neto (desviación muestral).
// ok es false si la serie tiene menos de 2 valores o es constante. La tolerancia
// es relativa a la escala del PnL, así series de magnitud muy chica siguen definidas.
func Sharpe(netPnL []float64) (sharpe float64, ok bool) {
	if len(netPnL) < 2 {
		return 0, false
	}
	mean, sd := stat.MeanStdDev(netPnL, nil)
	if math.IsNaN(sd) || sd == 0 || sd <= relStdDevTol*maxAbs(netPnL) {
		return 0, false
	}
	return math.Sqrt(TradingDaysPerYear) * mean / sd, true
}

func maxAbs(xs []float64) float64 {
	m := 0.0
	for _, x := range xs {
		m = max(m, math.Abs(x))
	}
	return m
}

// MaxDrawdown devuelve min(equity_t − max(equity_1..t)). Siempre <= 0.
func MaxDrawdown(equity []float64) float64 {
	if len(equity) == 0 {
		return 0
	}
	peak := equity[0]
	worst := 0.0
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		if dd := v - peak; dd < worst {
			worst = dd
		}
	}
	return worst
}

// Summarize calcula las estadísticas sobre la secuencia completa.
func Summarize(records []domain.BacktestRecord) (domain.Summary, error) {
	if len(records) < 2 {
		return domain.Summary{Records: len(records)}, fmt.Errorf("backtest.Summarize: got %d: %w", len(records), domain.ErrInsufficientData)
	}

	net := make([]float64, len(records))
	equity := make([]float64, len(records))
	s := domain.Summary{Records: len(records)}
	for i, r := range records {
		net[i] = r.NetPnL
		equity[i] = r.CumulativeEquity
		s.TotalCost += r.TransactionCost
		if r.PositionDelta != 0 {
			s.Trades++
		}
	}

	s.TotalPnL = equity[len(equity)-1]
	s.SharpeRatio, s.SharpeDefined = Sharpe(net)
	s.MaxDrawdown = MaxDrawdown(equity)
	return s, nil
}
