package storage

// sqlite.go: persistencia de corridas y barridos.
//
//   - `runs`: una fila por corrida con parámetros y resumen en columnas.
//   - `run_steps`: una fila por paso (filtro + señal + contabilidad).
//   - `sweeps`: una fila por punto de la grilla, agrupadas por sweep_id.
//
// Los tiempos se guardan como TEXT en UTC con nanosegundos fijos, así el
// orden lexicográfico coincide con el cronológico.

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alejandrodnm/kalarb/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id                 TEXT PRIMARY KEY,
    created_at         TEXT    NOT NULL,
    ticker_y           TEXT    NOT NULL DEFAULT '',
    ticker_x           TEXT    NOT NULL DEFAULT '',
    process_noise      REAL    NOT NULL,
    measurement_noise  REAL    NOT NULL,
    initial_beta       REAL    NOT NULL,
    initial_covariance REAL    NOT NULL,
    entry_threshold    REAL    NOT NULL,
    exit_threshold     REAL    NOT NULL,
    cost_rate          REAL    NOT NULL,
    records            INTEGER NOT NULL DEFAULT 0,
    trades             INTEGER NOT NULL DEFAULT 0,
    total_pnl          REAL    NOT NULL DEFAULT 0,
    total_cost         REAL    NOT NULL DEFAULT 0,
    sharpe             REAL    NOT NULL DEFAULT 0,
    sharpe_defined     INTEGER NOT NULL DEFAULT 0,
    max_drawdown       REAL    NOT NULL DEFAULT 0,
    final_beta         REAL    NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS run_steps (
    run_id              TEXT    NOT NULL,
    idx                 INTEGER NOT NULL,
    ts                  TEXT    NOT NULL,
    price_y             REAL    NOT NULL,
    price_x             REAL    NOT NULL,
    beta_predicted      REAL    NOT NULL,
    beta_filtered       REAL    NOT NULL,
    cov_predicted       REAL    NOT NULL,
    cov_filtered        REAL    NOT NULL,
    innovation          REAL    NOT NULL,
    innovation_variance REAL    NOT NULL,
    kalman_gain         REAL    NOT NULL,
    degenerate          INTEGER NOT NULL DEFAULT 0,
    zscore              REAL    NOT NULL,
    position            INTEGER NOT NULL,
    position_delta      INTEGER NOT NULL,
    gross_pnl           REAL    NOT NULL,
    cost                REAL    NOT NULL,
    net_pnl             REAL    NOT NULL,
    equity              REAL    NOT NULL,
    PRIMARY KEY (run_id, idx)
);

CREATE TABLE IF NOT EXISTS sweeps (
    sweep_id          TEXT    NOT NULL,
    rank_idx          INTEGER NOT NULL,
    created_at        TEXT    NOT NULL,
    ticker_y          TEXT    NOT NULL DEFAULT '',
    ticker_x          TEXT    NOT NULL DEFAULT '',
    process_noise     REAL    NOT NULL,
    measurement_noise REAL    NOT NULL,
    entry_threshold   REAL    NOT NULL,
    exit_threshold    REAL    NOT NULL,
    cost_rate         REAL    NOT NULL,
    trades            INTEGER NOT NULL DEFAULT 0,
    total_pnl         REAL    NOT NULL DEFAULT 0,
    sharpe            REAL    NOT NULL DEFAULT 0,
    sharpe_defined    INTEGER NOT NULL DEFAULT 0,
    max_drawdown      REAL    NOT NULL DEFAULT 0,
    err               TEXT    NOT NULL DEFAULT '',
    PRIMARY KEY (sweep_id, rank_idx)
);

CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at DESC);
`

// ErrNotFound se devuelve cuando un ID no existe.
var ErrNotFound = errors.New("storage: not found")

// SQLiteStorage implementa ports.RunStore usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada y aplica el schema.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}
	return &SQLiteStorage{db: db}, nil
}

// SaveRun persiste la corrida y todos sus pasos en una sola transacción.
func (s *SQLiteStorage) SaveRun(ctx context.Context, run domain.RunResult) error {
	n := len(run.Backtest)
	if len(run.Prices) != n || len(run.Steps) != n || len(run.Signals) != n {
		return fmt.Errorf("storage.SaveRun: %w", &domain.MisalignmentError{
			Index:  min(len(run.Prices), len(run.Steps), len(run.Signals), n),
			Reason: "run sequences have different lengths",
		})
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: begin tx: %w", err)
	}
	defer tx.Rollback()

	p, sm := run.Params, run.Summary
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs
			(id, created_at, ticker_y, ticker_x,
			 process_noise, measurement_noise, initial_beta, initial_covariance,
			 entry_threshold, exit_threshold, cost_rate,
			 records, trades, total_pnl, total_cost, sharpe, sharpe_defined,
			 max_drawdown, final_beta)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, formatTime(run.CreatedAt), run.Pair.TickerY, run.Pair.TickerX,
		p.ProcessNoise, p.MeasurementNoise, p.InitialBeta, p.InitialCovariance,
		p.EntryThreshold, p.ExitThreshold, p.CostRate,
		sm.Records, sm.Trades, sm.TotalPnL, sm.TotalCost, sm.SharpeRatio, boolInt(sm.SharpeDefined),
		sm.MaxDrawdown, sm.FinalBeta,
	); err != nil {
		return fmt.Errorf("storage.SaveRun: insert run %s: %w", run.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_steps
			(run_id, idx, ts, price_y, price_x,
			 beta_predicted, beta_filtered, cov_predicted, cov_filtered,
			 innovation, innovation_variance, kalman_gain, degenerate,
			 zscore, position, position_delta, gross_pnl, cost, net_pnl, equity)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: prepare: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		pt, st, sg, bt := run.Prices[i], run.Steps[i], run.Signals[i], run.Backtest[i]
		if _, err := stmt.ExecContext(ctx,
			run.ID, i, formatTime(pt.Time), pt.PriceY, pt.PriceX,
			st.BetaPredicted, st.BetaFiltered, st.CovariancePredicted, st.CovarianceFiltered,
			st.Innovation, st.InnovationVariance, st.KalmanGain, boolInt(st.Degenerate),
			sg.ZScore, int(sg.Position), bt.PositionDelta,
			bt.GrossPnL, bt.TransactionCost, bt.NetPnL, bt.CumulativeEquity,
		); err != nil {
			return fmt.Errorf("storage.SaveRun: insert step %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveRun: commit: %w", err)
	}
	return nil
}

const runColumns = `id, created_at, ticker_y, ticker_x,
	process_noise, measurement_noise, initial_beta, initial_covariance,
	entry_threshold, exit_threshold, cost_rate,
	records, trades, total_pnl, total_cost, sharpe, sharpe_defined,
	max_drawdown, final_beta`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (domain.RunResult, error) {
	var run domain.RunResult
	var created string
	var sharpeDefined int
	p, sm := &run.Params, &run.Summary
	if err := row.Scan(
		&run.ID, &created, &run.Pair.TickerY, &run.Pair.TickerX,
		&p.ProcessNoise, &p.MeasurementNoise, &p.InitialBeta, &p.InitialCovariance,
		&p.EntryThreshold, &p.ExitThreshold, &p.CostRate,
		&sm.Records, &sm.Trades, &sm.TotalPnL, &sm.TotalCost, &sm.SharpeRatio, &sharpeDefined,
		&sm.MaxDrawdown, &sm.FinalBeta,
	); err != nil {
		return run, err
	}
	sm.SharpeDefined = sharpeDefined == 1
	t, err := parseTime(created)
	if err != nil {
		return run, err
	}
	run.CreatedAt = t
	return run, nil
}

// GetRun devuelve la corrida id con sus cuatro secuencias reconstruidas.
func (s *SQLiteStorage) GetRun(ctx context.Context, id string) (domain.RunResult, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RunResult{}, fmt.Errorf("storage.GetRun %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return domain.RunResult{}, fmt.Errorf("storage.GetRun %s: scan run: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT idx, ts, price_y, price_x,
		       beta_predicted, beta_filtered, cov_predicted, cov_filtered,
		       innovation, innovation_variance, kalman_gain, degenerate,
		       zscore, position, position_delta, gross_pnl, cost, net_pnl, equity
		FROM run_steps
		WHERE run_id = ?
		ORDER BY idx`, id)
	if err != nil {
		return domain.RunResult{}, fmt.Errorf("storage.GetRun %s: query steps: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			pt             domain.PricePoint
			st             domain.StepResult
			sg             domain.SignalRecord
			bt             domain.BacktestRecord
			ts             string
			degenerate, ps int
		)
		if err := rows.Scan(
			&st.Index, &ts, &pt.PriceY, &pt.PriceX,
			&st.BetaPredicted, &st.BetaFiltered, &st.CovariancePredicted, &st.CovarianceFiltered,
			&st.Innovation, &st.InnovationVariance, &st.KalmanGain, &degenerate,
			&sg.ZScore, &ps, &bt.PositionDelta, &bt.GrossPnL, &bt.TransactionCost, &bt.NetPnL, &bt.CumulativeEquity,
		); err != nil {
			return domain.RunResult{}, fmt.Errorf("storage.GetRun %s: scan step: %w", id, err)
		}
		t, err := parseTime(ts)
		if err != nil {
			return domain.RunResult{}, fmt.Errorf("storage.GetRun %s: step %d: %w", id, st.Index, err)
		}

		pt.Time, st.Time, sg.Time, bt.Time = t, t, t, t
		st.Degenerate = degenerate == 1
		sg.Index, bt.Index = st.Index, st.Index
		sg.Position, bt.Position = domain.Position(ps), domain.Position(ps)
		sg.Degenerate = st.Degenerate

		run.Prices = append(run.Prices, pt)
		run.Steps = append(run.Steps, st)
		run.Signals = append(run.Signals, sg)
		run.Backtest = append(run.Backtest, bt)
	}
	if err := rows.Err(); err != nil {
		return domain.RunResult{}, fmt.Errorf("storage.GetRun %s: %w", id, err)
	}
	return run, nil
}

// ListRuns devuelve las últimas limit corridas sin sus pasos, más recientes primero.
func (s *SQLiteStorage) ListRuns(ctx context.Context, limit int) ([]domain.RunResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.ListRuns: query: %w", err)
	}
	defer rows.Close()

	var runs []domain.RunResult
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.ListRuns: scan row: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// SaveSweep persiste los resultados de un barrido en el orden recibido (rank 0 = mejor).
func (s *SQLiteStorage) SaveSweep(ctx context.Context, sweepID string, pair domain.Pair, results []domain.SweepResult) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveSweep: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sweeps
			(sweep_id, rank_idx, created_at, ticker_y, ticker_x,
			 process_noise, measurement_noise, entry_threshold, exit_threshold, cost_rate,
			 trades, total_pnl, sharpe, sharpe_defined, max_drawdown, err)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("storage.SaveSweep: prepare: %w", err)
	}
	defer stmt.Close()

	now := formatTime(time.Now())
	for i, r := range results {
		if _, err := stmt.ExecContext(ctx,
			sweepID, i, now, pair.TickerY, pair.TickerX,
			r.Params.ProcessNoise, r.Params.MeasurementNoise,
			r.Params.EntryThreshold, r.Params.ExitThreshold, r.Params.CostRate,
			r.Summary.Trades, r.Summary.TotalPnL, r.Summary.SharpeRatio,
			boolInt(r.Summary.SharpeDefined), r.Summary.MaxDrawdown, r.Err,
		); err != nil {
			return fmt.Errorf("storage.SaveSweep: insert rank %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveSweep: commit: %w", err)
	}
	return nil
}

// GetSweep devuelve los resultados de un barrido ordenados por rank.
func (s *SQLiteStorage) GetSweep(ctx context.Context, sweepID string) ([]domain.SweepResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT process_noise, measurement_noise, entry_threshold, exit_threshold, cost_rate,
		       trades, total_pnl, sharpe, sharpe_defined, max_drawdown, err
		FROM sweeps
		WHERE sweep_id = ?
		ORDER BY rank_idx`, sweepID)
	if err != nil {
		return nil, fmt.Errorf("storage.GetSweep: query: %w", err)
	}
	defer rows.Close()

	var out []domain.SweepResult
	for rows.Next() {
		var r domain.SweepResult
		var defined int
		if err := rows.Scan(
			&r.Params.ProcessNoise, &r.Params.MeasurementNoise,
			&r.Params.EntryThreshold, &r.Params.ExitThreshold, &r.Params.CostRate,
			&r.Summary.Trades, &r.Summary.TotalPnL, &r.Summary.SharpeRatio, &defined,
			&r.Summary.MaxDrawdown, &r.Err,
		); err != nil {
			return nil, fmt.Errorf("storage.GetSweep: scan row: %w", err)
		}
		r.Summary.SharpeDefined = defined == 1
		out = append(out, r)
	}
	return out, rows.Err()
}

// Prune borra las corridas creadas antes de before junto con sus pasos.
func (s *SQLiteStorage) Prune(ctx context.Context, before time.Time) (int64, error) {
	cutoff := formatTime(before)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("storage.Prune: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM run_steps WHERE run_id IN (SELECT id FROM runs WHERE created_at < ?)`, cutoff,
	); err != nil {
		return 0, fmt.Errorf("storage.Prune: delete steps: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("storage.Prune: delete runs: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sweeps WHERE created_at < ?`, cutoff); err != nil {
		return 0, fmt.Errorf("storage.Prune: delete sweeps: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("storage.Prune: commit: %w", err)
	}
	return res.RowsAffected()
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
