package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/kalarb/internal/backtest"
	"github.com/alejandrodnm/kalarb/internal/domain"
	"github.com/alejandrodnm/kalarb/internal/estimator"
	"github.com/alejandrodnm/kalarb/internal/pipeline"
	"github.com/alejandrodnm/kalarb/internal/signal"
)

const dateLayout = "2006-01-02"

// Config es la configuración completa de kalarb.
type Config struct {
	Pair     PairConfig     `yaml:"pair"`
	Filter   FilterConfig   `yaml:"filter"`
	Signal   SignalConfig   `yaml:"signal"`
	Backtest BacktestConfig `yaml:"backtest"`
	Data     DataConfig     `yaml:"data"`
	Storage  StorageConfig  `yaml:"storage"`
	Log      LogConfig      `yaml:"log"`
	Sweep    SweepConfig    `yaml:"sweep"`
}

// PairConfig identifica los dos activos. Y es el dependiente, X la cobertura.
type PairConfig struct {
	TickerY string `yaml:"ticker_y"`
	TickerX string `yaml:"ticker_x"`
}

// FilterConfig parametriza el filtro de Kalman.
type FilterConfig struct {
	ProcessNoise      float64 `yaml:"process_noise"`     // Q
	MeasurementNoise  float64 `yaml:"measurement_noise"` // R
	InitialBeta       float64 `yaml:"initial_beta"`
	InitialCovariance float64 `yaml:"initial_covariance"`
	Epsilon           float64 `yaml:"epsilon"`
	OnDegenerate      string  `yaml:"on_degenerate"` // halt | carry
	Warmup            int     `yaml:"warmup"`        // > 0: β inicial por OLS sobre los primeros N puntos
}

// SignalConfig controla la histéresis de entrada/salida.
type SignalConfig struct {
	EntryThreshold float64 `yaml:"entry_threshold"`
	ExitThreshold  float64 `yaml:"exit_threshold"`
}

// BacktestConfig controla la contabilidad.
type BacktestConfig struct {
	CostRate float64 `yaml:"cost_rate"` // fracción del nocional por unidad de cambio de posición
}

// DataConfig elige la fuente de precios y el rango.
type DataConfig struct {
	Source    string `yaml:"source"` // yahoo | csv
	CSVPath   string `yaml:"csv_path"`
	YahooBase string `yaml:"yahoo_base"`
	Start     string `yaml:"start"` // 2006-01-02
	End       string `yaml:"end"`   // vacío = hoy
}

// StorageConfig controla dónde se persisten las corridas.
type StorageConfig struct {
	DSN           string `yaml:"dsn"`            // ruta al archivo SQLite, o ":memory:"
	RetentionDays int    `yaml:"retention_days"` // 0 = no borrar nunca
	HistoryLimit  int    `yaml:"history_limit"`
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// SweepConfig define la grilla del barrido de sensibilidad.
type SweepConfig struct {
	ProcessNoise   []float64 `yaml:"process_noise"`
	EntryThreshold []float64 `yaml:"entry_threshold"`
	ExitThreshold  []float64 `yaml:"exit_threshold"`
	Workers        int       `yaml:"workers"`
	Top            int       `yaml:"top"`
}

// Default devuelve la configuración base. Load parte de ella, así los campos
// ausentes del YAML conservan estos valores aunque su cero sea válido.
func Default() Config {
	p := pipeline.DefaultConfig()
	return Config{
		Pair: PairConfig{TickerY: "KO", TickerX: "PEP"},
		Filter: FilterConfig{
			ProcessNoise:      p.Filter.ProcessNoise,
			MeasurementNoise:  p.Filter.MeasurementNoise,
			InitialBeta:       p.Filter.InitialBeta,
			InitialCovariance: p.Filter.InitialCovariance,
			Epsilon:           p.Filter.Epsilon,
			OnDegenerate:      string(p.Filter.OnDegenerate),
		},
		Signal: SignalConfig{
			EntryThreshold: p.Signal.EntryThreshold,
			ExitThreshold:  p.Signal.ExitThreshold,
		},
		Backtest: BacktestConfig{CostRate: p.Backtest.CostRate},
		Data:     DataConfig{Source: "yahoo"},
		Storage:  StorageConfig{DSN: "kalarb.db", HistoryLimit: 20},
		Log:      LogConfig{Level: "info", Format: "text"},
		Sweep:    SweepConfig{Top: 10},
	}
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Las variables de entorno sobreescriben los valores del YAML.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("KALARB_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("KALARB_TICKER_Y"); v != "" {
		cfg.Pair.TickerY = v
	}
	if v := os.Getenv("KALARB_TICKER_X"); v != "" {
		cfg.Pair.TickerX = v
	}
}

// setDefaults corrige valores que no pueden quedar en cero o vacíos.
func setDefaults(cfg *Config) {
	def := Default()
	if cfg.Filter.ProcessNoise <= 0 {
		cfg.Filter.ProcessNoise = def.Filter.ProcessNoise
	}
	if cfg.Filter.MeasurementNoise <= 0 {
		cfg.Filter.MeasurementNoise = def.Filter.MeasurementNoise
	}
	if cfg.Filter.Epsilon <= 0 {
		cfg.Filter.Epsilon = def.Filter.Epsilon
	}
	if cfg.Filter.OnDegenerate == "" {
		cfg.Filter.OnDegenerate = def.Filter.OnDegenerate
	}
	if cfg.Signal.EntryThreshold <= 0 {
		cfg.Signal.EntryThreshold = def.Signal.EntryThreshold
	}
	if cfg.Data.Source == "" {
		cfg.Data.Source = def.Data.Source
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = def.Storage.DSN
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = def.Log.Format
	}
	cfg.Pair.TickerY = strings.ToUpper(strings.TrimSpace(cfg.Pair.TickerY))
	cfg.Pair.TickerX = strings.ToUpper(strings.TrimSpace(cfg.Pair.TickerX))
}

// Validate revisa lo que setDefaults no puede corregir.
func (c *Config) Validate() error {
	if err := c.Pipeline().Validate(); err != nil {
		return err
	}
	switch c.Data.Source {
	case "yahoo":
		if c.Pair.TickerY == "" || c.Pair.TickerX == "" {
			return fmt.Errorf("pair: ticker_y and ticker_x are required for source yahoo")
		}
	case "csv":
		if c.Data.CSVPath == "" {
			return fmt.Errorf("data: csv_path is required for source csv")
		}
	default:
		return fmt.Errorf("data: unknown source %q", c.Data.Source)
	}
	if _, _, err := c.Range(time.Now()); err != nil {
		return err
	}
	return nil
}

// UseCSV cambia la fuente a un CSV local. El rango y el par del YAML se
// descartan: el archivo define las fechas y no tiene tickers.
func (c *Config) UseCSV(path string) {
	c.Data.Source = "csv"
	c.Data.CSVPath = path
	c.Data.Start, c.Data.End = "", ""
	c.Pair = PairConfig{}
}

// Pipeline traduce la configuración a la del pipeline.
func (c *Config) Pipeline() pipeline.Config {
	return pipeline.Config{
		Filter: estimator.Config{
			ProcessNoise:      c.Filter.ProcessNoise,
			MeasurementNoise:  c.Filter.MeasurementNoise,
			InitialBeta:       c.Filter.InitialBeta,
			InitialCovariance: c.Filter.InitialCovariance,
			Epsilon:           c.Filter.Epsilon,
			OnDegenerate:      estimator.DegeneracyPolicy(c.Filter.OnDegenerate),
		},
		Signal: signal.Config{
			EntryThreshold: c.Signal.EntryThreshold,
			ExitThreshold:  c.Signal.ExitThreshold,
		},
		Backtest: backtest.Config{CostRate: c.Backtest.CostRate},
		Warmup:   c.Filter.Warmup,
	}
}

// PairID devuelve el par configurado.
func (c *Config) PairID() domain.Pair {
	return domain.Pair{TickerY: c.Pair.TickerY, TickerX: c.Pair.TickerX}
}

// Range devuelve [from, to) del rango de datos. Sin start se usan 2 años hasta now;
// sin end, el día siguiente a now para incluir el último cierre. Con fuente csv
// y sin fechas devuelve tiempos cero: se usa el archivo completo.
func (c *Config) Range(now time.Time) (from, to time.Time, err error) {
	if c.Data.Source == "csv" && c.Data.Start == "" && c.Data.End == "" {
		return time.Time{}, time.Time{}, nil
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	to = today.AddDate(0, 0, 1)
	if c.Data.End != "" {
		if to, err = time.Parse(dateLayout, c.Data.End); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("data: end %q: %w", c.Data.End, err)
		}
	}
	from = to.AddDate(-2, 0, 0)
	if c.Data.Start != "" {
		if from, err = time.Parse(dateLayout, c.Data.Start); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("data: start %q: %w", c.Data.Start, err)
		}
	}
	if !from.Before(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("data: start %s must be before end %s",
			from.Format(dateLayout), to.Format(dateLayout))
	}
	return from, to, nil
}

// Grid devuelve la grilla del barrido.
func (c *Config) Grid() pipeline.Grid {
	return pipeline.Grid{
		ProcessNoise:   c.Sweep.ProcessNoise,
		EntryThreshold: c.Sweep.EntryThreshold,
		ExitThreshold:  c.Sweep.ExitThreshold,
	}
}

// Retention devuelve la antigüedad máxima de las corridas guardadas; 0 = sin límite.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Storage.RetentionDays) * 24 * time.Hour
}
