package pipeline_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/kalarb/internal/domain"
	"github.com/alejandrodnm/kalarb/internal/pipeline"
)

func TestGrid_Expand(t *testing.T) {
	base := pipeline.DefaultConfig().Params()
	g := pipeline.Grid{
		ProcessNoise:   []float64{1e-4, 1e-5},
		EntryThreshold: []float64{1.5, 2, 2.5},
	}
	assert.Equal(t, 6, g.Size())

	combos := g.Expand(base)
	require.Len(t, combos, 6)
	for _, c := range combos {
		assert.Equal(t, base.ExitThreshold, c.ExitThreshold)
		assert.Equal(t, base.MeasurementNoise, c.MeasurementNoise)
	}
	assert.Equal(t, 1e-5, combos[3].ProcessNoise)
	assert.Equal(t, 1.5, combos[3].EntryThreshold)

	assert.Len(t, pipeline.Grid{}.Expand(base), 1)
}

func TestSweep_MatchesIndependentRuns(t *testing.T) {
	pts := meanRevertingPair(400)
	base := tradingConfig()
	grid := pipeline.Grid{
		ProcessNoise:   []float64{1e-7, 1e-6},
		EntryThreshold: []float64{1.5, 2.0},
		ExitThreshold:  []float64{0, -0.5},
	}

	results, err := pipeline.Sweep(context.Background(), pts, base, grid, 4)
	require.NoError(t, err)
	require.Len(t, results, 8)

	for _, r := range results {
		require.Empty(t, r.Err)
		direct, err := pipeline.Run(pts, base.WithParams(r.Params))
		require.NoError(t, err)
		assert.Equal(t, direct.Summary, r.Summary, "params %+v", r.Params)
	}

	for i := 1; i < len(results); i++ {
		if results[i].Summary.SharpeDefined && results[i-1].Summary.SharpeDefined {
			assert.GreaterOrEqual(t, results[i-1].Summary.SharpeRatio, results[i].Summary.SharpeRatio)
		}
	}
}

func TestSweep_FailedRunsGoLast(t *testing.T) {
	grid := pipeline.Grid{EntryThreshold: []float64{0, 2.0}}
	results, err := pipeline.Sweep(context.Background(), meanRevertingPair(200), tradingConfig(), grid, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Empty(t, results[0].Err)
	assert.NotEmpty(t, results[1].Err)
	assert.Equal(t, 0.0, results[1].Params.EntryThreshold)
}

func TestSweep_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pipeline.Sweep(ctx, meanRevertingPair(100), tradingConfig(), pipeline.Grid{EntryThreshold: []float64{1, 2, 3}}, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSortBySharpe(t *testing.T) {
	rs := []domain.SweepResult{
		{Err: "boom"},
		{Summary: domain.Summary{SharpeRatio: 0.5, SharpeDefined: true}},
		{Summary: domain.Summary{}},
		{Summary: domain.Summary{SharpeRatio: 1.5, SharpeDefined: true}},
	}
	pipeline.SortBySharpe(rs)
	assert.Equal(t, 1.5, rs[0].Summary.SharpeRatio)
	assert.Equal(t, 0.5, rs[1].Summary.SharpeRatio)
	assert.False(t, rs[2].Summary.SharpeDefined)
	assert.Empty(t, rs[2].Err)
	assert.Equal(t, "boom", rs[3].Err)
}
