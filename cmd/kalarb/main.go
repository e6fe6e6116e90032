package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/kalarb/config"
	"github.com/alejandrodnm/kalarb/internal/adapters/csvfile"
	"github.com/alejandrodnm/kalarb/internal/adapters/notify"
	"github.com/alejandrodnm/kalarb/internal/adapters/storage"
	"github.com/alejandrodnm/kalarb/internal/adapters/yahoo"
	"github.com/alejandrodnm/kalarb/internal/pipeline"
	"github.com/alejandrodnm/kalarb/internal/ports"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	csvPath := flag.String("csv", "", "read prices from a date,y,x CSV instead of Yahoo")
	exportPath := flag.String("export", "", "write the per-step table of the run to this CSV")
	sweep := flag.Bool("sweep", false, "run the parameter sweep defined in the config")
	history := flag.Bool("history", false, "list stored runs and exit")
	dryRun := flag.Bool("dry-run", false, "do not persist anything")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print full report tables (default: compact 1-line)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *csvPath != "" {
		cfg.UseCSV(*csvPath)
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	slog.Info("kalarb starting",
		"config", *configPath,
		"pair", cfg.Pair.TickerY+"/"+cfg.Pair.TickerX,
		"source", cfg.Data.Source,
		"dry_run", *dryRun,
		"sweep", *sweep,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// store queda en nil en dry-run; la interfaz solo se asigna si hay base
	var store *storage.SQLiteStorage
	var runStore ports.RunStore
	if !*dryRun {
		store, err = storage.NewSQLiteStorage(cfg.Storage.DSN)
		if err != nil {
			slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
			os.Exit(1)
		}
		defer store.Close()
		runStore = store
		pruneOld(ctx, store, cfg.Retention())
	}

	console := notify.NewConsole(*table || *sweep)

	if *history {
		if store == nil {
			slog.Error("history needs storage; drop -dry-run")
			os.Exit(1)
		}
		if err := runHistory(ctx, store, console, cfg.Storage.HistoryLimit); err != nil {
			slog.Error("history failed", "err", err)
			os.Exit(1)
		}
		return
	}

	runner := pipeline.NewRunner(cfg.Pipeline(), newProvider(cfg), runStore, console)

	from, to, err := cfg.Range(time.Now().UTC())
	if err != nil {
		slog.Error("invalid data range", "err", err)
		os.Exit(1)
	}

	if *sweep {
		if err := runSweep(ctx, runner, cfg, runStore, console, from, to); err != nil {
			slog.Error("sweep failed", "err", err)
			os.Exit(1)
		}
		return
	}

	result, err := runner.RunOnce(ctx, cfg.PairID(), from, to)
	if err != nil {
		slog.Error("run failed", "err", err)
		os.Exit(1)
	}

	if *exportPath != "" {
		if err := csvfile.WriteRun(*exportPath, result); err != nil {
			slog.Error("export failed", "err", err, "path", *exportPath)
			os.Exit(1)
		}
		slog.Info("run exported", "path", *exportPath, "rows", len(result.Backtest))
	}

	slog.Info("kalarb finished", "run_id", result.ID)
}

// newProvider elige la fuente de precios según la config.
func newProvider(cfg *config.Config) ports.PriceProvider {
	if cfg.Data.Source == "csv" {
		return csvfile.NewSource(cfg.Data.CSVPath)
	}
	return yahoo.NewClient(cfg.Data.YahooBase)
}

// pruneOld borra corridas más viejas que la retención configurada.
func pruneOld(ctx context.Context, store *storage.SQLiteStorage, retention time.Duration) {
	if retention <= 0 {
		return
	}
	n, err := store.Prune(ctx, time.Now().Add(-retention))
	if err != nil {
		slog.Warn("failed to prune old runs", "err", err)
		return
	}
	if n > 0 {
		slog.Info("pruned old runs", "deleted", n, "retention", retention)
	}
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
