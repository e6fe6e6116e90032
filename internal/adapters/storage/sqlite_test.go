package storage_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/kalarb/internal/adapters/storage"
	"github.com/alejandrodnm/kalarb/internal/domain"
	"github.com/alejandrodnm/kalarb/internal/pipeline"
)

func makeRun(t *testing.T, created time.Time) domain.RunResult {
	t.Helper()
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	pts := make([]domain.PricePoint, 40)
	for i := range pts {
		f := float64(i)
		x := 50 + 2*math.Sin(f/5)
		pts[i] = domain.PricePoint{
			Time:   start.AddDate(0, 0, i),
			PriceY: 1.2*x + math.Sin(f/2),
			PriceX: x,
		}
	}
	run, err := pipeline.Run(pts, pipeline.DefaultConfig())
	require.NoError(t, err)
	run.Pair = domain.Pair{TickerY: "KO", TickerX: "PEP"}
	run.CreatedAt = created
	return run
}

func newDB(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLiteStorage_SaveAndGetRun(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()
	run := makeRun(t, time.Now().UTC())

	require.NoError(t, db.SaveRun(ctx, run))

	got, err := db.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.WithinDuration(t, run.CreatedAt, got.CreatedAt, time.Microsecond)
	assert.Equal(t, run.Pair, got.Pair)
	assert.Equal(t, run.Params, got.Params)
	assert.Equal(t, run.Summary, got.Summary)
	assert.Equal(t, run.Prices, got.Prices)
	assert.Equal(t, run.Steps, got.Steps)
	assert.Equal(t, run.Signals, got.Signals)
	assert.Equal(t, run.Backtest, got.Backtest)
}

func TestSQLiteStorage_GetRun_NotFound(t *testing.T) {
	db := newDB(t)
	_, err := db.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSQLiteStorage_SaveRun_Duplicate(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()
	run := makeRun(t, time.Now().UTC())

	require.NoError(t, db.SaveRun(ctx, run))
	assert.Error(t, db.SaveRun(ctx, run))
}

func TestSQLiteStorage_SaveRun_Misaligned(t *testing.T) {
	db := newDB(t)
	run := makeRun(t, time.Now().UTC())
	run.Signals = run.Signals[:3]

	err := db.SaveRun(context.Background(), run)
	assert.ErrorIs(t, err, domain.ErrMisaligned)
}

func TestSQLiteStorage_ListRuns(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	older := makeRun(t, now.Add(-time.Hour))
	newer := makeRun(t, now)
	require.NoError(t, db.SaveRun(ctx, older))
	require.NoError(t, db.SaveRun(ctx, newer))

	runs, err := db.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, newer.ID, runs[0].ID)
	assert.Equal(t, older.ID, runs[1].ID)
	assert.Empty(t, runs[0].Steps, "la lista no carga los pasos")

	one, err := db.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, one, 1)
}

func TestSQLiteStorage_Sweep(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()
	id := uuid.NewString()

	results := []domain.SweepResult{
		{Params: domain.Params{ProcessNoise: 1e-5, EntryThreshold: 2}, Summary: domain.Summary{SharpeRatio: 1.4, SharpeDefined: true, Trades: 8}},
		{Params: domain.Params{ProcessNoise: 1e-4, EntryThreshold: 2}, Summary: domain.Summary{SharpeRatio: 0.3, SharpeDefined: true, Trades: 3}},
		{Params: domain.Params{ProcessNoise: 1e-3, EntryThreshold: 2}, Err: "estimator.Run: degenerate"},
	}
	require.NoError(t, db.SaveSweep(ctx, id, domain.Pair{TickerY: "KO", TickerX: "PEP"}, results))

	got, err := db.GetSweep(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, results, got)

	empty, err := db.GetSweep(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, empty)

	assert.NoError(t, db.SaveSweep(ctx, uuid.NewString(), domain.Pair{}, nil))
}

func TestSQLiteStorage_Prune(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	old := makeRun(t, now.Add(-48*time.Hour))
	recent := makeRun(t, now)
	require.NoError(t, db.SaveRun(ctx, old))
	require.NoError(t, db.SaveRun(ctx, recent))

	n, err := db.Prune(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = db.GetRun(ctx, old.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	got, err := db.GetRun(ctx, recent.ID)
	require.NoError(t, err)
	assert.Len(t, got.Steps, len(recent.Steps))
}
