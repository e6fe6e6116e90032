package pipeline

// sweep.go: barrido de sensibilidad sobre Q × θ × τ.
//
// Cada combinación es una corrida independiente (estimador, generador y motor
// propios), así que se reparten en un pool acotado sin estado compartido.

import (
	"context"
	"log/slog"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/alejandrodnm/kalarb/internal/domain"
)

// Grid lista los valores a barrer. Una lista vacía usa el valor de la config base.
type Grid struct {
	ProcessNoise   []float64
	EntryThreshold []float64
	ExitThreshold  []float64
}

// Size devuelve el número de combinaciones del grid.
func (g Grid) Size() int {
	return max(1, len(g.ProcessNoise)) * max(1, len(g.EntryThreshold)) * max(1, len(g.ExitThreshold))
}

// Expand devuelve el producto cartesiano del grid sobre los parámetros base.
func (g Grid) Expand(base domain.Params) []domain.Params {
	qs := orDefault(g.ProcessNoise, base.ProcessNoise)
	entries := orDefault(g.EntryThreshold, base.EntryThreshold)
	exits := orDefault(g.ExitThreshold, base.ExitThreshold)

	out := make([]domain.Params, 0, g.Size())
	for _, q := range qs {
		for _, en := range entries {
			for _, ex := range exits {
				p := base
				p.ProcessNoise = q
				p.EntryThreshold = en
				p.ExitThreshold = ex
				out = append(out, p)
			}
		}
	}
	return out
}

func orDefault(vals []float64, def float64) []float64 {
	if len(vals) == 0 {
		return []float64{def}
	}
	return vals
}

// Sweep ejecuta el pipeline para cada combinación del grid en paralelo.
// Las corridas que fallan quedan registradas con Err y no cancelan el resto.
// Si workers <= 0 usa runtime.NumCPU().
// El resultado se ordena por Sharpe desc; los Sharpe indefinidos van al final.
func Sweep(ctx context.Context, points []domain.PricePoint, base Config, grid Grid, workers int) ([]domain.SweepResult, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	combos := grid.Expand(base.Params())
	results := make([]domain.SweepResult, len(combos))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, params := range combos {
		i, params := i, params
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := Run(points, base.WithParams(params))
			if err != nil {
				slog.Debug("sweep run failed", "params", params, "err", err)
				results[i] = domain.SweepResult{Params: params, Err: err.Error()}
				return nil
			}
			results[i] = domain.SweepResult{Params: params, Summary: res.Summary}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	SortBySharpe(results)

	slog.Debug("sweep complete",
		"combinations", len(combos),
		"workers", workers,
	)
	return results, nil
}

// SortBySharpe ordena por Sharpe desc; fallidos e indefinidos al final.
func SortBySharpe(results []domain.SweepResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		aOK := a.Err == "" && a.Summary.SharpeDefined
		bOK := b.Err == "" && b.Summary.SharpeDefined
		if aOK != bOK {
			return aOK
		}
		if !aOK {
			return a.Err == "" && b.Err != ""
		}
		return a.Summary.SharpeRatio > b.Summary.SharpeRatio
	})
}
