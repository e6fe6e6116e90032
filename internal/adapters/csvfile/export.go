package csvfile

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/alejandrodnm/kalarb/internal/domain"
)

var exportHeader = []string{
	"date", "price_y", "price_x", "beta", "covariance", "innovation",
	"innovation_variance", "zscore", "position", "gross_pnl", "cost", "net_pnl", "equity",
}

// WriteRun exporta la tabla por paso de run a path.
func WriteRun(path string, run domain.RunResult) error {
	n := len(run.Backtest)
	if len(run.Steps) != n || len(run.Signals) != n || len(run.Prices) != n {
		return fmt.Errorf("csvfile.WriteRun: %w", &domain.MisalignmentError{
			Index:  min(len(run.Prices), len(run.Steps), len(run.Signals), n),
			Reason: "run sequences have different lengths",
		})
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("csvfile.WriteRun: create: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(exportHeader); err != nil {
		return fmt.Errorf("csvfile.WriteRun: header: %w", err)
	}
	for i := 0; i < n; i++ {
		p, st, sg, bt := run.Prices[i], run.Steps[i], run.Signals[i], run.Backtest[i]
		row := []string{
			p.Time.Format(time.RFC3339),
			ff(p.PriceY), ff(p.PriceX),
			ff(st.BetaFiltered), ff(st.CovarianceFiltered),
			ff(st.Innovation), ff(st.InnovationVariance),
			ff(sg.ZScore), sg.Position.String(),
			ff(bt.GrossPnL), ff(bt.TransactionCost), ff(bt.NetPnL), ff(bt.CumulativeEquity),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("csvfile.WriteRun: row %d: %w", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("csvfile.WriteRun: flush: %w", err)
	}
	return f.Close()
}

func ff(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
