package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/arduino-trader/internal/database"
	"github.com/aristath/arduino-trader/internal/domain"
)

// InstrumentRepository persists the tracked-universe table.
type InstrumentRepository struct {
	*BaseRepository
}

func NewInstrumentRepository(db *sql.DB, log zerolog.Logger) *InstrumentRepository {
	return &InstrumentRepository{BaseRepository: NewBase(db, log, "instruments")}
}

// Upsert inserts or updates an instrument, keyed on (symbol, market).
func (r *InstrumentRepository) Upsert(inst domain.Instrument) error {
	_, err := r.db.Exec(`
		INSERT INTO instruments (symbol, market, exchange, name, sector, routing_path, tr_id, market_code, active, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, market) DO UPDATE SET
			exchange = excluded.exchange, name = excluded.name, sector = excluded.sector,
			routing_path = excluded.routing_path, tr_id = excluded.tr_id,
			market_code = excluded.market_code, active = excluded.active, last_updated = excluded.last_updated`,
		inst.Symbol, inst.Market, inst.Exchange, inst.Name, inst.Sector,
		inst.RoutingPath, inst.TrID, inst.MarketCode, inst.Active, time.Now())
	if err != nil {
		return fmt.Errorf("upsert instrument %s: %w", inst.Symbol, err)
	}
	return nil
}

// GetBySymbol looks up an instrument by symbol and market, active or not.
func (r *InstrumentRepository) GetBySymbol(symbol string, market domain.Market) (domain.Instrument, error) {
	row := r.db.QueryRow(`
		SELECT id, symbol, market, exchange, name, sector, routing_path, tr_id, market_code, active, last_updated
		FROM instruments WHERE symbol = ? AND market = ?`, symbol, market)
	inst, err := scanInstrument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Instrument{}, database.ErrNotFound
	}
	if err != nil {
		return domain.Instrument{}, fmt.Errorf("get instrument %s: %w", symbol, err)
	}
	return inst, nil
}

// ListActive returns every active instrument, optionally filtered by market.
func (r *InstrumentRepository) ListActive(market domain.Market) ([]domain.Instrument, error) {
	var rows *sql.Rows
	var err error
	if market == "" {
		rows, err = r.db.Query(`SELECT id, symbol, market, exchange, name, sector, routing_path, tr_id, market_code, active, last_updated FROM instruments WHERE active = 1`)
	} else {
		rows, err = r.db.Query(`SELECT id, symbol, market, exchange, name, sector, routing_path, tr_id, market_code, active, last_updated FROM instruments WHERE active = 1 AND market = ?`, market)
	}
	if err != nil {
		return nil, fmt.Errorf("list active instruments: %w", err)
	}
	defer rows.Close()

	var out []domain.Instrument
	for rows.Next() {
		inst, err := scanInstrumentRows(rows)
		if err != nil {
			return nil, fmt.Errorf("scan instrument: %w", err)
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

// Deactivate marks an instrument inactive rather than deleting it, so
// historical financials and trades still resolve to a name.
func (r *InstrumentRepository) Deactivate(symbol string, market domain.Market) error {
	_, err := r.db.Exec(`UPDATE instruments SET active = 0, last_updated = ? WHERE symbol = ? AND market = ?`, time.Now(), symbol, market)
	if err != nil {
		return fmt.Errorf("deactivate instrument %s: %w", symbol, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInstrument(row rowScanner) (domain.Instrument, error) {
	var inst domain.Instrument
	var active int
	err := row.Scan(&inst.ID, &inst.Symbol, &inst.Market, &inst.Exchange, &inst.Name, &inst.Sector,
		&inst.RoutingPath, &inst.TrID, &inst.MarketCode, &active, &inst.LastUpdated)
	inst.Active = active != 0
	return inst, err
}

func scanInstrumentRows(rows *sql.Rows) (domain.Instrument, error) {
	return scanInstrument(rows)
}
