package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/arduino-trader/internal/domain"
)

// HoldingRepository persists the last-synced portfolio snapshot.
type HoldingRepository struct {
	*BaseRepository
}

func NewHoldingRepository(db *sql.DB, log zerolog.Logger) *HoldingRepository {
	return &HoldingRepository{BaseRepository: NewBase(db, log, "portfolio_holdings")}
}

// ReplaceAll atomically replaces the entire holdings table with a fresh
// broker snapshot: delete-then-insert inside one transaction, per
// SPEC_FULL §4.7's sync contract.
func (r *HoldingRepository) ReplaceAll(holdings []domain.PortfolioHolding) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin holdings replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM portfolio_holdings`); err != nil {
		return fmt.Errorf("clear holdings: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO portfolio_holdings (symbol, market, quantity, average_buy, current_price, change_rate, sector, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare holdings insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, h := range holdings {
		if _, err := stmt.Exec(h.Symbol, h.Market, h.Quantity, h.AverageBuy, h.CurrentPrice, h.ChangeRate, h.Sector, now); err != nil {
			return fmt.Errorf("insert holding %s: %w", h.Symbol, err)
		}
	}

	return tx.Commit()
}

// GetAll returns the last-persisted holdings snapshot.
func (r *HoldingRepository) GetAll() ([]domain.PortfolioHolding, error) {
	rows, err := r.db.Query(`SELECT id, symbol, market, quantity, average_buy, current_price, change_rate, sector, last_updated FROM portfolio_holdings`)
	if err != nil {
		return nil, fmt.Errorf("query holdings: %w", err)
	}
	defer rows.Close()

	var out []domain.PortfolioHolding
	for rows.Next() {
		var h domain.PortfolioHolding
		if err := rows.Scan(&h.ID, &h.Symbol, &h.Market, &h.Quantity, &h.AverageBuy, &h.CurrentPrice, &h.ChangeRate, &h.Sector, &h.LastUpdated); err != nil {
			return nil, fmt.Errorf("scan holding: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
