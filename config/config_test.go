package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/kalarb/internal/estimator"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"LOG_LEVEL", "LOG_FORMAT", "KALARB_DSN", "KALARB_TICKER_Y", "KALARB_TICKER_X"} {
		t.Setenv(k, "")
	}
}

func writeYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_ExampleFile(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("config.yaml")
	require.NoError(t, err)

	assert.Equal(t, "KO", cfg.Pair.TickerY)
	assert.Equal(t, "PEP", cfg.Pair.TickerX)
	assert.Equal(t, 1e-4, cfg.Filter.ProcessNoise)
	assert.Equal(t, 2.0, cfg.Signal.EntryThreshold)
	assert.Len(t, cfg.Sweep.ProcessNoise, 4)
	assert.Equal(t, 36, cfg.Grid().Size())
}

func TestLoad_MissingKeepsDefaults(t *testing.T) {
	clearEnv(t)
	path := writeYAML(t, "pair:\n  ticker_y: xom\n  ticker_x: cvx\nbacktest:\n  cost_rate: 0\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, "XOM", cfg.Pair.TickerY)
	assert.Equal(t, "CVX", cfg.Pair.TickerX)
	assert.Equal(t, def.Filter.ProcessNoise, cfg.Filter.ProcessNoise)
	assert.Equal(t, def.Filter.InitialCovariance, cfg.Filter.InitialCovariance)
	assert.Equal(t, 0.0, cfg.Backtest.CostRate, "cero explícito se respeta")
	assert.Equal(t, "kalarb.db", cfg.Storage.DSN)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("KALARB_DSN", ":memory:")
	t.Setenv("KALARB_TICKER_Y", "gld")
	t.Setenv("KALARB_TICKER_X", "gdx")

	cfg, err := Load(writeYAML(t, "log:\n  level: warn\n"))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, ":memory:", cfg.Storage.DSN)
	assert.Equal(t, "GLD", cfg.Pair.TickerY)
	assert.Equal(t, "GDX", cfg.Pair.TickerX)
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)

	_, err = Load(writeYAML(t, "filter: [1, 2"))
	assert.Error(t, err)

	_, err = Load(writeYAML(t, "filter:\n  on_degenerate: panic\n"))
	assert.Error(t, err)

	_, err = Load(writeYAML(t, "data:\n  source: csv\n"))
	assert.ErrorContains(t, err, "csv_path")

	_, err = Load(writeYAML(t, "data:\n  source: bloomberg\n"))
	assert.ErrorContains(t, err, "unknown source")

	_, err = Load(writeYAML(t, "data:\n  start: \"2024-05-01\"\n  end: \"2024-01-01\"\n"))
	assert.ErrorContains(t, err, "before")
}

func TestSetDefaults_FixesNonPositive(t *testing.T) {
	cfg := Config{}
	setDefaults(&cfg)
	def := Default()
	assert.Equal(t, def.Filter.ProcessNoise, cfg.Filter.ProcessNoise)
	assert.Equal(t, def.Filter.MeasurementNoise, cfg.Filter.MeasurementNoise)
	assert.Equal(t, def.Signal.EntryThreshold, cfg.Signal.EntryThreshold)
	assert.Equal(t, "yahoo", cfg.Data.Source)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestPipeline(t *testing.T) {
	cfg := Default()
	cfg.Filter.OnDegenerate = "carry"
	cfg.Filter.Warmup = 20

	p := cfg.Pipeline()
	assert.Equal(t, estimator.PolicyCarry, p.Filter.OnDegenerate)
	assert.Equal(t, 20, p.Warmup)
	assert.Equal(t, cfg.Backtest.CostRate, p.Backtest.CostRate)
	assert.NoError(t, p.Validate())
}

func TestRange(t *testing.T) {
	now := time.Date(2024, 6, 15, 18, 0, 0, 0, time.UTC)

	cfg := Default()
	from, to, err := cfg.Range(now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 16, 0, 0, 0, 0, time.UTC), to)
	assert.Equal(t, time.Date(2022, 6, 16, 0, 0, 0, 0, time.UTC), from)

	cfg.Data.Start = "2023-01-02"
	cfg.Data.End = "2023-12-29"
	from, to, err = cfg.Range(now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2023, 12, 29, 0, 0, 0, 0, time.UTC), to)

	cfg.Data.Start = "02/01/2023"
	_, _, err = cfg.Range(now)
	assert.Error(t, err)
}

func TestRetention(t *testing.T) {
	cfg := Default()
	assert.Zero(t, cfg.Retention())
	cfg.Storage.RetentionDays = 2
	assert.Equal(t, 48*time.Hour, cfg.Retention())
}

func TestUseCSV_DropsRangeAndPair(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("config.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, cfg.Data.Start)

	cfg.UseCSV("prices.csv")
	assert.Equal(t, "csv", cfg.Data.Source)
	assert.Equal(t, "prices.csv", cfg.Data.CSVPath)
	assert.Empty(t, cfg.PairID().TickerY)
	assert.Empty(t, cfg.PairID().TickerX)
	require.NoError(t, cfg.Validate())

	from, to, err := cfg.Range(time.Now())
	require.NoError(t, err)
	assert.True(t, from.IsZero(), "sin filtro inferior")
	assert.True(t, to.IsZero(), "sin filtro superior")
}

func TestRange_CSVWithExplicitDates(t *testing.T) {
	cfg := Default()
	cfg.Data.Source = "csv"
	cfg.Data.CSVPath = "prices.csv"
	cfg.Data.Start = "2023-01-02"

	from, to, err := cfg.Range(time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2024, 6, 16, 0, 0, 0, 0, time.UTC), to)
}
