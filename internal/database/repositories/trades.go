package repositories

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/arduino-trader/internal/domain"
)

// TradeRepository persists every order attempt, keyed by an idempotency
// key so a retried order never double-executes against the ledger.
type TradeRepository struct {
	*BaseRepository
}

func NewTradeRepository(db *sql.DB, log zerolog.Logger) *TradeRepository {
	return &TradeRepository{BaseRepository: NewBase(db, log, "trade_history")}
}

// Record inserts a trade. If idempotency_key already exists the insert is
// silently ignored (INSERT OR IGNORE), matching the broker-retry
// semantics: a duplicate submission must not produce a duplicate row.
func (r *TradeRepository) Record(trade domain.TradeRecord) error {
	_, err := r.db.Exec(`
		INSERT OR IGNORE INTO trade_history (idempotency_key, symbol, market, side, quantity, price, strategy_tag, result_message, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		trade.IdempotencyKey, trade.Symbol, trade.Market, trade.Side, trade.Quantity, trade.Price,
		trade.StrategyTag, trade.ResultMessage, trade.ExecutedAt)
	if err != nil {
		return fmt.Errorf("record trade %s: %w", trade.Symbol, err)
	}
	return nil
}

// Exists reports whether a trade with this idempotency key was already recorded.
func (r *TradeRepository) Exists(key string) (bool, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(1) FROM trade_history WHERE idempotency_key = ?`, key).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check trade idempotency %s: %w", key, err)
	}
	return n > 0, nil
}

// ListBySymbolSince returns trades for a symbol executed at or after since,
// most recent first — used for cooldown/sell-price lookups.
func (r *TradeRepository) ListBySymbolSince(symbol string, sinceUnixDay string) ([]domain.TradeRecord, error) {
	rows, err := r.db.Query(`
		SELECT id, idempotency_key, symbol, market, side, quantity, price, strategy_tag, result_message, executed_at
		FROM trade_history WHERE symbol = ? AND date(executed_at) >= date(?)
		ORDER BY executed_at DESC`, symbol, sinceUnixDay)
	if err != nil {
		return nil, fmt.Errorf("list trades for %s: %w", symbol, err)
	}
	defer rows.Close()

	var out []domain.TradeRecord
	for rows.Next() {
		var t domain.TradeRecord
		if err := rows.Scan(&t.ID, &t.IdempotencyKey, &t.Symbol, &t.Market, &t.Side, &t.Quantity, &t.Price, &t.StrategyTag, &t.ResultMessage, &t.ExecutedAt); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// LastSellPrice returns the price of the most recent sell for a symbol,
// used by the tick strategy's re-entry calculation. ok is false if the
// symbol has never been sold.
func (r *TradeRepository) LastSellPrice(symbol string) (price float64, ok bool, err error) {
	row := r.db.QueryRow(`
		SELECT price FROM trade_history WHERE symbol = ? AND side = ?
		ORDER BY executed_at DESC LIMIT 1`, symbol, domain.SideSell)
	if scanErr := row.Scan(&price); scanErr != nil {
		if scanErr == sql.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("last sell price for %s: %w", symbol, scanErr)
	}
	return price, true, nil
}
