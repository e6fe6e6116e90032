package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alejandrodnm/kalarb/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// tailRows es la cantidad de pasos finales que muestra el reporte en modo tabla.
const tailRows = 10

// Console implementa ports.Reporter.
type Console struct {
	out   io.Writer
	table bool
}

// NewConsole crea un reporter que escribe a stdout.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter crea un reporter para tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

// Report imprime el resumen de la corrida. En modo tabla agrega los últimos pasos.
func (c *Console) Report(_ context.Context, run domain.RunResult) error {
	if len(run.Backtest) == 0 {
		fmt.Fprintf(c.out, "%s: no records\n", pairLabel(run.Pair))
		return nil
	}

	if !c.table {
		c.printCompact(run)
		return nil
	}

	first, last := run.Prices[0].Time, run.Prices[len(run.Prices)-1].Time
	fmt.Fprintf(c.out, "\nRun %s  %s  %s → %s  (%d records)\n",
		shortID(run.ID), pairLabel(run.Pair),
		first.Format("2006-01-02"), last.Format("2006-01-02"), len(run.Backtest))

	c.printParams(run.Params)
	c.printSummary(run.Summary)
	return c.printTail(run)
}

// printCompact imprime lo esencial en una línea.
func (c *Console) printCompact(run domain.RunResult) {
	s := run.Summary
	fmt.Fprintf(c.out, "[%s] %s n=%d trades=%d pnl=%.4f sharpe=%s mdd=%.4f beta=%.4f\n",
		shortID(run.ID), pairLabel(run.Pair), s.Records, s.Trades,
		s.TotalPnL, sharpeLabel(s), s.MaxDrawdown, s.FinalBeta)
}

func (c *Console) printParams(p domain.Params) {
	fmt.Fprintf(c.out, "  Q=%g R=%g beta0=%g P0=%g entry=%g exit=%g cost=%g\n",
		p.ProcessNoise, p.MeasurementNoise, p.InitialBeta, p.InitialCovariance,
		p.EntryThreshold, p.ExitThreshold, p.CostRate)
}

func (c *Console) printSummary(s domain.Summary) {
	table := tablewriter.NewWriter(c.out)
	table.Header("Metric", "Value")
	table.Append("Records", fmt.Sprintf("%d", s.Records))
	table.Append("Trades", fmt.Sprintf("%d", s.Trades))
	table.Append("Total PnL", fmt.Sprintf("%.4f", s.TotalPnL))
	table.Append("Total cost", fmt.Sprintf("%.4f", s.TotalCost))
	table.Append("Sharpe", sharpeLabel(s))
	table.Append("Max drawdown", fmt.Sprintf("%.4f", s.MaxDrawdown))
	table.Append("Final beta", fmt.Sprintf("%.4f", s.FinalBeta))
	table.Render()
}

// printTail imprime los últimos tailRows pasos de la corrida.
func (c *Console) printTail(run domain.RunResult) error {
	n := len(run.Backtest)
	if len(run.Steps) != n || len(run.Signals) != n || len(run.Prices) != n {
		return fmt.Errorf("notify.Report: %w", &domain.MisalignmentError{
			Index:  min(len(run.Prices), len(run.Steps), len(run.Signals), n),
			Reason: "run sequences have different lengths",
		})
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Date", "Y", "X", "Beta", "Z", "Pos", "Net PnL", "Equity")
	for i := max(0, n-tailRows); i < n; i++ {
		p, st, sg, bt := run.Prices[i], run.Steps[i], run.Signals[i], run.Backtest[i]
		table.Append(
			p.Time.Format("2006-01-02"),
			fmt.Sprintf("%.2f", p.PriceY),
			fmt.Sprintf("%.2f", p.PriceX),
			fmt.Sprintf("%.4f", st.BetaFiltered),
			fmt.Sprintf("%+.2f", sg.ZScore),
			sg.Position.String(),
			fmt.Sprintf("%+.4f", bt.NetPnL),
			fmt.Sprintf("%.4f", bt.CumulativeEquity),
		)
	}
	table.Render()
	return nil
}

// PrintSweep imprime el ranking de un barrido. top <= 0 muestra todo.
func (c *Console) PrintSweep(results []domain.SweepResult, top int) {
	if len(results) == 0 {
		fmt.Fprintln(c.out, "sweep: no results")
		return
	}
	if top <= 0 || top > len(results) {
		top = len(results)
	}

	fmt.Fprintf(c.out, "\nSweep: %d parameter sets (top %d)\n", len(results), top)
	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Q", "Entry", "Exit", "Trades", "PnL", "Sharpe", "MaxDD", "Error")
	for i, r := range results[:top] {
		table.Append(
			fmt.Sprintf("%d", i+1),
			fmt.Sprintf("%g", r.Params.ProcessNoise),
			fmt.Sprintf("%g", r.Params.EntryThreshold),
			fmt.Sprintf("%g", r.Params.ExitThreshold),
			fmt.Sprintf("%d", r.Summary.Trades),
			fmt.Sprintf("%.4f", r.Summary.TotalPnL),
			sharpeLabel(r.Summary),
			fmt.Sprintf("%.4f", r.Summary.MaxDrawdown),
			truncate(r.Err, 40),
		)
	}
	table.Render()
}

// PrintHistory imprime las corridas persistidas, más recientes primero.
func (c *Console) PrintHistory(runs []domain.RunResult) {
	if len(runs) == 0 {
		fmt.Fprintln(c.out, "No runs stored yet")
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("ID", "Created", "Pair", "Q", "Entry", "Trades", "PnL", "Sharpe", "MaxDD")
	for _, r := range runs {
		table.Append(
			shortID(r.ID),
			r.CreatedAt.Format("2006-01-02 15:04"),
			pairLabel(r.Pair),
			fmt.Sprintf("%g", r.Params.ProcessNoise),
			fmt.Sprintf("%g", r.Params.EntryThreshold),
			fmt.Sprintf("%d", r.Summary.Trades),
			fmt.Sprintf("%.4f", r.Summary.TotalPnL),
			sharpeLabel(r.Summary),
			fmt.Sprintf("%.4f", r.Summary.MaxDrawdown),
		)
	}
	table.Render()
}

// --- helpers ---

func sharpeLabel(s domain.Summary) string {
	if !s.SharpeDefined {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", s.SharpeRatio)
}

func pairLabel(p domain.Pair) string {
	if p.TickerY == "" && p.TickerX == "" {
		return "csv"
	}
	return p.TickerY + "/" + p.TickerX
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
