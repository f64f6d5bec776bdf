package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/alejandrodnm/statarb/internal/domain"
)

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS trades (
    run_id       TEXT    NOT NULL,
    window_seq   INTEGER NOT NULL,
    seq          INTEGER NOT NULL,
    entry_time   TEXT    NOT NULL,
    exit_time    TEXT    NOT NULL,
    direction    TEXT    NOT NULL,
    entry_spread REAL    NOT NULL,
    exit_spread  REAL    NOT NULL,
    pnl          REAL    NOT NULL,
    fee_paid     REAL    NOT NULL,
    forced       INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (run_id, window_seq, seq)
);

CREATE TABLE IF NOT EXISTS equity (
    run_id     TEXT    NOT NULL,
    window_seq INTEGER NOT NULL,
    seq        INTEGER NOT NULL,
    ts         TEXT    NOT NULL,
    equity     REAL    NOT NULL,
    position   TEXT    NOT NULL,
    PRIMARY KEY (run_id, window_seq, seq)
);
`

// saveLedger inserta trade log y equity curve de una ventana dentro de tx.
func saveLedger(ctx context.Context, tx *sql.Tx, runID string, windowSeq int, res domain.BacktestResult) error {
	tradeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trades
			(run_id, window_seq, seq, entry_time, exit_time, direction,
			 entry_spread, exit_spread, pnl, fee_paid, forced)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare trades: %w", err)
	}
	defer tradeStmt.Close()

	for i, t := range res.Trades {
		if _, err := tradeStmt.ExecContext(ctx,
			runID, windowSeq, i, formatTime(t.EntryTime), formatTime(t.ExitTime), t.Direction.String(),
			t.EntrySpread, t.ExitSpread, t.PnL, t.FeePaid, boolToInt(t.Forced),
		); err != nil {
			return fmt.Errorf("insert trade %d: %w", i, err)
		}
	}

	eqStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO equity (run_id, window_seq, seq, ts, equity, position)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare equity: %w", err)
	}
	defer eqStmt.Close()

	for i, p := range res.EquityCurve {
		if _, err := eqStmt.ExecContext(ctx,
			runID, windowSeq, i, formatTime(p.Time), p.Equity, p.Position.String(),
		); err != nil {
			return fmt.Errorf("insert equity %d: %w", i, err)
		}
	}
	return nil
}

// loadLedger lee trade log y equity curve de una ventana.
func (s *SQLiteStorage) loadLedger(ctx context.Context, runID string, windowSeq int) ([]domain.Trade, []domain.EquityPoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entry_time, exit_time, direction, entry_spread, exit_spread, pnl, fee_paid, forced
		FROM trades WHERE run_id = ? AND window_seq = ? ORDER BY seq`, runID, windowSeq)
	if err != nil {
		return nil, nil, fmt.Errorf("query trades: %w", err)
	}
	var trades []domain.Trade
	for rows.Next() {
		var t domain.Trade
		var entry, exit, dir string
		var forced int
		if err := rows.Scan(&entry, &exit, &dir, &t.EntrySpread, &t.ExitSpread, &t.PnL, &t.FeePaid, &forced); err != nil {
			rows.Close()
			return nil, nil, fmt.Errorf("scan trade: %w", err)
		}
		if t.EntryTime, err = parseTime(entry); err != nil {
			rows.Close()
			return nil, nil, fmt.Errorf("trade entry: %w", err)
		}
		if t.ExitTime, err = parseTime(exit); err != nil {
			rows.Close()
			return nil, nil, fmt.Errorf("trade exit: %w", err)
		}
		t.Direction = domain.ParsePosition(dir)
		t.Forced = forced == 1
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, nil, err
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx, `
		SELECT ts, equity, position FROM equity
		WHERE run_id = ? AND window_seq = ? ORDER BY seq`, runID, windowSeq)
	if err != nil {
		return nil, nil, fmt.Errorf("query equity: %w", err)
	}
	defer rows.Close()
	var curve []domain.EquityPoint
	for rows.Next() {
		var p domain.EquityPoint
		var ts, pos string
		if err := rows.Scan(&ts, &p.Equity, &pos); err != nil {
			return nil, nil, fmt.Errorf("scan equity: %w", err)
		}
		if p.Time, err = parseTime(ts); err != nil {
			return nil, nil, fmt.Errorf("equity: %w", err)
		}
		p.Position = domain.ParsePosition(pos)
		curve = append(curve, p)
	}
	return trades, curve, rows.Err()
}
