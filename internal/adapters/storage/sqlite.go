package storage

// sqlite.go — ledger de trades y runs de backtest.
//
// Estrategia:
//   - `trades`: una fila por posición, insertada al abrir y completada al
//     cerrar. Append-only: un trade cerrado no se vuelve a tocar.
//   - `backtest_runs`: una fila por run con sus métricas agregadas, para
//     comparar configuraciones entre runs.
//   - Prune automático al arrancar: runs > 90d. Los trades en vivo no se
//     borran nunca — son el registro contable del bot.

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/alejandrodnm/wickbot/internal/backtest"
	"github.com/alejandrodnm/wickbot/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
-- Una fila por posición, desde la apertura
CREATE TABLE IF NOT EXISTS trades (
    ticket        TEXT PRIMARY KEY,
    symbol        TEXT    NOT NULL,
    tag           TEXT    NOT NULL,
    action        TEXT    NOT NULL,
    volume        REAL    NOT NULL,
    entry_price   REAL    NOT NULL,
    entry_time    DATETIME NOT NULL,
    exit_price    REAL,
    exit_time     DATETIME,
    exit_reason   TEXT,
    pnl           REAL,
    balance_after REAL,
    status        TEXT    NOT NULL DEFAULT 'open'
);

-- Una fila por run de backtest, con sus métricas agregadas
CREATE TABLE IF NOT EXISTS backtest_runs (
    run_id          TEXT PRIMARY KEY,
    symbols         TEXT    NOT NULL,
    from_date       DATETIME NOT NULL,
    to_date         DATETIME NOT NULL,
    mode            TEXT    NOT NULL,
    direction       TEXT    NOT NULL,
    initial_balance REAL    NOT NULL,
    final_balance   REAL    NOT NULL,
    total_trades    INTEGER NOT NULL,
    wins            INTEGER NOT NULL,
    win_rate        REAL    NOT NULL,
    total_pnl       REAL    NOT NULL,
    return_pct      REAL    NOT NULL,
    max_drawdown    REAL    NOT NULL,
    sharpe          REAL    NOT NULL,
    created_at      DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol);
CREATE INDEX IF NOT EXISTS idx_trades_entry  ON trades(entry_time DESC);
CREATE INDEX IF NOT EXISTS idx_runs_created  ON backtest_runs(created_at DESC);
`

// runs de backtest: 90 días
const retentionRuns = 90 * 24 * time.Hour

// SQLiteLedger implementa ports.TradeLedger usando SQLite (pure Go, sin CGo).
type SQLiteLedger struct {
	db *sql.DB
}

// NewSQLiteLedger abre (o crea) la base de datos en la ruta dada, aplica el
// schema y limpia runs antiguos.
func NewSQLiteLedger(path string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteLedger: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteLedger: apply schema: %w", err)
	}

	s := &SQLiteLedger{db: db}
	s.pruneOld(context.Background())
	return s, nil
}

// RecordOpen inserta la posición recién abierta.
func (s *SQLiteLedger) RecordOpen(ctx context.Context, p domain.Position) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO trades (ticket, symbol, tag, action, volume, entry_price, entry_time, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, 'open')
	`, p.Ticket, p.Symbol, p.Tag, string(p.Action), p.Volume, p.EntryPrice, p.EntryTime.UTC()); err != nil {
		return fmt.Errorf("storage.RecordOpen: %s: %w", p.Ticket, err)
	}
	return nil
}

// RecordClose completa la fila del trade con los datos del cierre.
func (s *SQLiteLedger) RecordClose(ctx context.Context, t domain.Trade) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE trades SET
			exit_price    = ?,
			exit_time     = ?,
			exit_reason   = ?,
			pnl           = ?,
			balance_after = ?,
			status        = 'closed'
		WHERE ticket = ?
	`, t.ExitPrice, t.ExitTime.UTC(), string(t.ExitReason), t.PnL, t.BalanceAfter, t.Ticket)
	if err != nil {
		return fmt.Errorf("storage.RecordClose: %s: %w", t.Ticket, err)
	}

	// Posición abierta fuera de este proceso (p.ej. recuperada del broker
	// tras un reinicio): se inserta completa.
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.db.ExecContext(ctx, `
			INSERT INTO trades
				(ticket, symbol, tag, action, volume, entry_price, entry_time,
				 exit_price, exit_time, exit_reason, pnl, balance_after, status)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'closed')
		`, t.Ticket, t.Symbol, t.Tag, string(t.Action), t.Volume, t.EntryPrice, t.EntryTime.UTC(),
			t.ExitPrice, t.ExitTime.UTC(), string(t.ExitReason), t.PnL, t.BalanceAfter); err != nil {
			return fmt.Errorf("storage.RecordClose: insert %s: %w", t.Ticket, err)
		}
	}
	return nil
}

// SaveBacktestRun persiste las métricas agregadas de un run.
func (s *SQLiteLedger) SaveBacktestRun(ctx context.Context, res *backtest.Result) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO backtest_runs
			(run_id, symbols, from_date, to_date, mode, direction,
			 initial_balance, final_balance, total_trades, wins, win_rate,
			 total_pnl, return_pct, max_drawdown, sharpe, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		res.RunID,
		strings.Join(res.Symbols, ","),
		res.From.UTC(),
		res.To.UTC(),
		string(res.Mode),
		string(res.Direction),
		res.InitialBalance,
		res.FinalBalance,
		res.Stats.TotalTrades,
		res.Stats.Wins,
		res.Stats.WinRate,
		res.Stats.TotalPnL,
		res.Stats.ReturnPct,
		res.Stats.MaxDrawdown,
		res.Stats.Sharpe,
		time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("storage.SaveBacktestRun: %s: %w", res.RunID, err)
	}
	return nil
}

// RecentTrades devuelve los últimos n trades cerrados, más reciente primero.
func (s *SQLiteLedger) RecentTrades(ctx context.Context, n int) ([]domain.Trade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ticket, symbol, tag, action, volume, entry_price, entry_time,
		       exit_price, exit_time, exit_reason, pnl, balance_after
		FROM trades
		WHERE status = 'closed'
		ORDER BY exit_time DESC
		LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("storage.RecentTrades: query: %w", err)
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		var t domain.Trade
		var action, reason string
		var entryTime, exitTime time.Time

		if err := rows.Scan(
			&t.Ticket, &t.Symbol, &t.Tag, &action, &t.Volume,
			&t.EntryPrice, &entryTime,
			&t.ExitPrice, &exitTime, &reason, &t.PnL, &t.BalanceAfter,
		); err != nil {
			return nil, fmt.Errorf("storage.RecentTrades: scan row: %w", err)
		}

		t.Action = domain.Action(action)
		t.EntryTime = entryTime
		t.ExitTime = exitTime
		t.ExitReason = domain.ExitReason(reason)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteLedger) Close() error {
	return s.db.Close()
}

// pruneOld elimina runs de backtest antiguos para mantener la DB ligera.
func (s *SQLiteLedger) pruneOld(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-retentionRuns)
	s.db.ExecContext(ctx, `DELETE FROM backtest_runs WHERE created_at < ?`, cutoff)
}
