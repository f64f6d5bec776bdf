package storage

// sqlite.go: persistencia de corridas del backtest.
//
// Estrategia:
//   - `runs`: una fila por corrida (pair, hedge, ADF, errores por ventana).
//   - `window_results`: stats de cada ventana, en el orden en que se pidieron.
//   - `trades` y `equity` (ledger.go): trade log y equity curve completos,
//     para poder reconstruir y exportar una corrida sin recalcularla.
//   - Prune automático al arrancar: corridas más viejas que la retención.
//
// Las fechas se guardan como TEXT con ancho fijo en UTC, así que comparar
// strings equivale a comparar instantes.

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/alejandrodnm/statarb/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id            TEXT PRIMARY KEY,
    created_at    TEXT    NOT NULL,
    leg_a         TEXT    NOT NULL,
    leg_b         TEXT    NOT NULL,
    interval      TEXT    NOT NULL DEFAULT '',
    num_points    INTEGER NOT NULL DEFAULT 0,
    hedge_ratio   REAL    NOT NULL,
    intercept     REAL    NOT NULL,
    r_squared     REAL    NOT NULL DEFAULT 0,
    residual_std  REAL    NOT NULL DEFAULT 0,
    adf_statistic REAL    NOT NULL DEFAULT 0,
    adf_p_value   REAL    NOT NULL DEFAULT 1,
    adf_lags      INTEGER NOT NULL DEFAULT 0,
    adf_nobs      INTEGER NOT NULL DEFAULT 0,
    adf_critical  TEXT    NOT NULL DEFAULT '{}',
    half_life     REAL    NOT NULL DEFAULT 0,
    stationary    INTEGER NOT NULL DEFAULT 0,
    window_errors TEXT    NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS window_results (
    run_id       TEXT    NOT NULL,
    seq          INTEGER NOT NULL,
    window_size  INTEGER NOT NULL,
    num_std      REAL    NOT NULL,
    fee          REAL    NOT NULL,
    total_pnl    REAL    NOT NULL,
    total_fees   REAL    NOT NULL,
    num_trades   INTEGER NOT NULL,
    win_rate     REAL    NOT NULL,
    avg_win      REAL    NOT NULL,
    avg_loss     REAL    NOT NULL,
    sharpe       REAL    NOT NULL,
    max_drawdown REAL    NOT NULL,
    PRIMARY KEY (run_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at DESC);
`

// timeLayout tiene ancho fijo: ordena igual como string que como instante.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// DefaultRetention es la retención usada cuando no se configura otra.
const DefaultRetention = 90 * 24 * time.Hour

// SQLiteStorage implementa ports.Storage usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada, aplica el
// schema y borra las corridas más viejas que retention (0 = no borrar).
func NewSQLiteStorage(path string, retention time.Duration) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	for _, ddl := range []string{schema, ledgerSchema} {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
		}
	}

	s := &SQLiteStorage{db: db}
	if retention > 0 {
		if _, err := s.Prune(context.Background(), time.Now().UTC().Add(-retention)); err != nil {
			db.Close()
			return nil, fmt.Errorf("storage.NewSQLiteStorage: %w", err)
		}
	}
	return s, nil
}

type storedWindowError struct {
	Window int    `json:"window"`
	Error  string `json:"error"`
}

// SaveRun persiste la corrida completa en una sola transacción.
func (s *SQLiteStorage) SaveRun(ctx context.Context, run domain.Run) error {
	critical, err := json.Marshal(run.Stationarity.CriticalValues)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: encode critical values: %w", err)
	}
	werrs := make([]storedWindowError, len(run.WindowErrors))
	for i, we := range run.WindowErrors {
		werrs[i] = storedWindowError{Window: we.Window, Error: we.Err.Error()}
	}
	werrJSON, err := json.Marshal(werrs)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: encode window errors: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: begin tx: %w", err)
	}
	defer tx.Rollback()

	adf := run.Stationarity
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs
			(id, created_at, leg_a, leg_b, interval, num_points,
			 hedge_ratio, intercept, r_squared, residual_std,
			 adf_statistic, adf_p_value, adf_lags, adf_nobs, adf_critical,
			 half_life, stationary, window_errors)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, formatTime(run.CreatedAt), run.LegA, run.LegB, run.Interval, run.NumPoints,
		run.Hedge.Ratio, run.Hedge.Intercept, run.Hedge.RSquared, run.Hedge.ResidualStd,
		adf.Statistic, adf.PValue, adf.Lags, adf.NObs, string(critical),
		adf.HalfLife, boolToInt(adf.Stationary), string(werrJSON),
	); err != nil {
		return fmt.Errorf("storage.SaveRun: insert run %s: %w", run.ID, err)
	}

	for seq, res := range run.Results {
		st := res.Stats
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO window_results
				(run_id, seq, window_size, num_std, fee, total_pnl, total_fees, num_trades,
				 win_rate, avg_win, avg_loss, sharpe, max_drawdown)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, seq, res.Window, res.NumStd, res.Fee, st.TotalPnL, st.TotalFees, st.NumTrades,
			st.WinRate, st.AvgWin, st.AvgLoss, st.Sharpe, st.MaxDrawdown,
		); err != nil {
			return fmt.Errorf("storage.SaveRun: insert window %d: %w", res.Window, err)
		}
		if err := saveLedger(ctx, tx, run.ID, seq, res); err != nil {
			return fmt.Errorf("storage.SaveRun: window %d: %w", res.Window, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveRun: commit: %w", err)
	}
	return nil
}

// ListRuns devuelve las últimas corridas, más recientes primero, con la mejor
// ventana de cada una.
func (s *SQLiteStorage) ListRuns(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.created_at, r.leg_a, r.leg_b, r.interval, r.num_points,
		       r.hedge_ratio, r.intercept, r.adf_p_value, r.stationary,
		       (SELECT COUNT(*) FROM window_results w WHERE w.run_id = r.id),
		       COALESCE((SELECT w.window_size FROM window_results w WHERE w.run_id = r.id
		                 ORDER BY w.total_pnl DESC, w.seq ASC LIMIT 1), 0),
		       COALESCE((SELECT MAX(w.total_pnl) FROM window_results w WHERE w.run_id = r.id), 0)
		FROM runs r
		ORDER BY r.created_at DESC, r.id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.ListRuns: query: %w", err)
	}
	defer rows.Close()

	var out []domain.RunSummary
	for rows.Next() {
		var rs domain.RunSummary
		var created string
		var stationary int
		if err := rows.Scan(
			&rs.ID, &created, &rs.LegA, &rs.LegB, &rs.Interval, &rs.NumPoints,
			&rs.HedgeRatio, &rs.Intercept, &rs.ADFPValue, &stationary,
			&rs.Windows, &rs.BestWindow, &rs.BestTotalPnL,
		); err != nil {
			return nil, fmt.Errorf("storage.ListRuns: scan row: %w", err)
		}
		if rs.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("storage.ListRuns: run %s: %w", rs.ID, err)
		}
		rs.Stationary = stationary == 1
		out = append(out, rs)
	}
	return out, rows.Err()
}

// GetRun reconstruye una corrida guardada. Las bandas no se persisten: los
// resultados vuelven con Bands vacío.
func (s *SQLiteStorage) GetRun(ctx context.Context, id string) (domain.Run, error) {
	var run domain.Run
	var created, critical, werrJSON string
	var stationary int
	err := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, leg_a, leg_b, interval, num_points,
		       hedge_ratio, intercept, r_squared, residual_std,
		       adf_statistic, adf_p_value, adf_lags, adf_nobs, adf_critical,
		       half_life, stationary, window_errors
		FROM runs WHERE id = ?`, id).Scan(
		&run.ID, &created, &run.LegA, &run.LegB, &run.Interval, &run.NumPoints,
		&run.Hedge.Ratio, &run.Hedge.Intercept, &run.Hedge.RSquared, &run.Hedge.ResidualStd,
		&run.Stationarity.Statistic, &run.Stationarity.PValue, &run.Stationarity.Lags,
		&run.Stationarity.NObs, &critical,
		&run.Stationarity.HalfLife, &stationary, &werrJSON,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Run{}, fmt.Errorf("storage.GetRun %s: %w", id, domain.ErrRunNotFound)
	}
	if err != nil {
		return domain.Run{}, fmt.Errorf("storage.GetRun %s: %w", id, err)
	}

	if run.CreatedAt, err = parseTime(created); err != nil {
		return domain.Run{}, fmt.Errorf("storage.GetRun %s: %w", id, err)
	}
	run.Hedge.NObs = run.NumPoints
	run.Stationarity.Stationary = stationary == 1
	if err := json.Unmarshal([]byte(critical), &run.Stationarity.CriticalValues); err != nil {
		return domain.Run{}, fmt.Errorf("storage.GetRun %s: decode critical values: %w", id, err)
	}
	var werrs []storedWindowError
	if err := json.Unmarshal([]byte(werrJSON), &werrs); err != nil {
		return domain.Run{}, fmt.Errorf("storage.GetRun %s: decode window errors: %w", id, err)
	}
	for _, we := range werrs {
		run.WindowErrors = append(run.WindowErrors, domain.WindowError{Window: we.Window, Err: errors.New(we.Error)})
	}

	results, err := s.loadResults(ctx, id)
	if err != nil {
		return domain.Run{}, fmt.Errorf("storage.GetRun %s: %w", id, err)
	}
	run.Results = results
	return run, nil
}

func (s *SQLiteStorage) loadResults(ctx context.Context, runID string) ([]domain.BacktestResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, window_size, num_std, fee, total_pnl, total_fees, num_trades,
		       win_rate, avg_win, avg_loss, sharpe, max_drawdown
		FROM window_results WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query windows: %w", err)
	}

	var results []domain.BacktestResult
	var seqs []int
	for rows.Next() {
		var res domain.BacktestResult
		var seq int
		st := &res.Stats
		if err := rows.Scan(&seq, &res.Window, &res.NumStd, &res.Fee, &st.TotalPnL, &st.TotalFees,
			&st.NumTrades, &st.WinRate, &st.AvgWin, &st.AvgLoss, &st.Sharpe, &st.MaxDrawdown); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan window: %w", err)
		}
		results = append(results, res)
		seqs = append(seqs, seq)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// Una sola conexión: el ledger se lee después de cerrar el cursor anterior.
	for i, seq := range seqs {
		trades, equity, err := s.loadLedger(ctx, runID, seq)
		if err != nil {
			return nil, err
		}
		results[i].Trades = trades
		results[i].EquityCurve = equity
	}
	return results, nil
}

// Prune borra las corridas creadas antes de cutoff, con sus ventanas y ledger.
func (s *SQLiteStorage) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("storage.Prune: begin tx: %w", err)
	}
	defer tx.Rollback()

	c := formatTime(cutoff)
	for _, table := range []string{"window_results", "trades", "equity"} {
		q := `DELETE FROM ` + table + ` WHERE run_id IN (SELECT id FROM runs WHERE created_at < ?)`
		if _, err := tx.ExecContext(ctx, q, c); err != nil {
			return 0, fmt.Errorf("storage.Prune: %s: %w", table, err)
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE created_at < ?`, c)
	if err != nil {
		return 0, fmt.Errorf("storage.Prune: runs: %w", err)
	}
	n, _ := res.RowsAffected()
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("storage.Prune: commit: %w", err)
	}
	return n, nil
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", s, err)
	}
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
