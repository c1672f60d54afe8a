// Package journal provides the durable, append-only record of closed
// trades and capital snapshots. History is never updated or deleted;
// corrections are new records.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	apperrors "paper-trader/internal/errors"
	"paper-trader/internal/models"
)

// Journal persists closed trades and capital snapshots to SQLite. Appends
// are serialized so records can never interleave; reads need no locking
// because appended rows are immutable.
type Journal struct {
	db     *sql.DB
	mu     sync.Mutex
	closed bool
	logger zerolog.Logger
}

// Open opens (or creates) the journal database at dbPath.
func Open(dbPath string, logger zerolog.Logger) (*Journal, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening journal database: %w", err)
	}

	j := &Journal{
		db:     db,
		logger: logger.With().Str("component", "journal").Logger(),
	}

	if err := j.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing journal schema: %w", err)
	}
	return j, nil
}

// initSchema creates the append-only tables. The trades table is a flat
// tabular structure so external reporting tools can read it without
// replaying engine logic.
func (j *Journal) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS closed_trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		exchange TEXT NOT NULL,
		side TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		entry_price REAL NOT NULL,
		entry_time DATETIME NOT NULL,
		exit_price REAL NOT NULL,
		exit_time DATETIME NOT NULL,
		exit_reason TEXT NOT NULL,
		pnl REAL NOT NULL,
		pnl_pct REAL NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_closed_trades_symbol ON closed_trades(symbol);
	CREATE INDEX IF NOT EXISTS idx_closed_trades_exit_time ON closed_trades(exit_time);

	CREATE TABLE IF NOT EXISTS capital_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		cash REAL NOT NULL,
		used_margin REAL NOT NULL,
		realized_pnl REAL NOT NULL,
		open_positions INTEGER NOT NULL,
		taken_at DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := j.db.Exec(schema)
	return err
}

// AppendTrade appends a closed trade record.
func (j *Journal) AppendTrade(ctx context.Context, trade models.ClosedTrade) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return apperrors.ErrJournalClosed
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO closed_trades
			(symbol, exchange, side, quantity, entry_price, entry_time,
			 exit_price, exit_time, exit_reason, pnl, pnl_pct)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		trade.Symbol, string(trade.Exchange), string(trade.Side), trade.Quantity,
		trade.EntryPrice, trade.EntryTime,
		trade.ExitPrice, trade.ExitTime, string(trade.ExitReason),
		trade.PnL, trade.PnLPercent,
	)
	if err != nil {
		return fmt.Errorf("appending trade: %w", err)
	}

	j.logger.Debug().
		Str("symbol", trade.Symbol).
		Str("reason", string(trade.ExitReason)).
		Float64("pnl", trade.PnL).
		Msg("Trade journaled")
	return nil
}

// CapitalSnapshot is a point-in-time capital record.
type CapitalSnapshot struct {
	Cash          float64
	UsedMargin    float64
	RealizedPnL   float64
	OpenPositions int
	TakenAt       time.Time
}

// AppendCapitalSnapshot appends a point-in-time capital summary.
func (j *Journal) AppendCapitalSnapshot(ctx context.Context, snap CapitalSnapshot) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return apperrors.ErrJournalClosed
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO capital_snapshots (cash, used_margin, realized_pnl, open_positions, taken_at)
		VALUES (?, ?, ?, ?, ?)`,
		snap.Cash, snap.UsedMargin, snap.RealizedPnL, snap.OpenPositions, snap.TakenAt,
	)
	if err != nil {
		return fmt.Errorf("appending capital snapshot: %w", err)
	}
	return nil
}

// TradeFilter narrows a trade query. Zero values mean "no constraint".
type TradeFilter struct {
	Symbol string
	Reason models.ExitReason
	From   time.Time
	To     time.Time
	Limit  int
}

// Trades returns journaled trades matching the filter, in append order.
func (j *Journal) Trades(ctx context.Context, filter TradeFilter) ([]models.ClosedTrade, error) {
	query := `
		SELECT symbol, exchange, side, quantity, entry_price, entry_time,
		       exit_price, exit_time, exit_reason, pnl, pnl_pct
		FROM closed_trades WHERE 1=1`
	var args []interface{}

	if filter.Symbol != "" {
		query += " AND symbol = ?"
		args = append(args, filter.Symbol)
	}
	if filter.Reason != "" {
		query += " AND exit_reason = ?"
		args = append(args, string(filter.Reason))
	}
	if !filter.From.IsZero() {
		query += " AND exit_time >= ?"
		args = append(args, filter.From)
	}
	if !filter.To.IsZero() {
		query += " AND exit_time <= ?"
		args = append(args, filter.To)
	}
	query += " ORDER BY id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying trades: %w", err)
	}
	defer rows.Close()

	var trades []models.ClosedTrade
	for rows.Next() {
		var t models.ClosedTrade
		var exchange, side, reason string
		if err := rows.Scan(
			&t.Symbol, &exchange, &side, &t.Quantity, &t.EntryPrice, &t.EntryTime,
			&t.ExitPrice, &t.ExitTime, &reason, &t.PnL, &t.PnLPercent,
		); err != nil {
			return nil, fmt.Errorf("scanning trade: %w", err)
		}
		t.Exchange = models.Exchange(exchange)
		t.Side = models.Side(side)
		t.ExitReason = models.ExitReason(reason)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// Close closes the journal database. Further appends fail with
// ErrJournalClosed.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	j.closed = true
	return j.db.Close()
}
