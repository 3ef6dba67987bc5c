package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/arduino-trader/internal/domain"
)

// FinancialRepository persists per-instrument daily fundamentals/technical
// snapshots.
type FinancialRepository struct {
	*BaseRepository
}

func NewFinancialRepository(db *sql.DB, log zerolog.Logger) *FinancialRepository {
	return &FinancialRepository{BaseRepository: NewBase(db, log, "financials")}
}

// Insert records one snapshot for an instrument on a given base date.
// Idempotent on (instrument_id, base_date) via upsert.
func (r *FinancialRepository) Insert(snap domain.FinancialSnapshot) error {
	emaJSON, err := marshalEMA(snap.EMA)
	if err != nil {
		return fmt.Errorf("marshal ema for %s: %w", snap.Symbol, err)
	}

	_, err = r.db.Exec(`
		INSERT INTO financials (instrument_id, base_date, current_price, market_cap, per, pbr, roe, eps, bps,
			dividend_yield, high_52w, low_52w, volume, amount, rsi, ema_json, dcf_value)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(instrument_id, base_date) DO UPDATE SET
			current_price = excluded.current_price, market_cap = excluded.market_cap,
			per = excluded.per, pbr = excluded.pbr, roe = excluded.roe, eps = excluded.eps, bps = excluded.bps,
			dividend_yield = excluded.dividend_yield, high_52w = excluded.high_52w, low_52w = excluded.low_52w,
			volume = excluded.volume, amount = excluded.amount, rsi = excluded.rsi,
			ema_json = excluded.ema_json, dcf_value = excluded.dcf_value`,
		snap.InstrumentID, snap.BaseDate.Format("2006-01-02"), snap.CurrentPrice, snap.MarketCap,
		snap.PER, snap.PBR, snap.ROE, snap.EPS, snap.BPS, snap.DividendYield, snap.High52w, snap.Low52w,
		snap.Volume, snap.Amount, snap.RSI, emaJSON, snap.DCFValue)
	if err != nil {
		return fmt.Errorf("insert financial snapshot for %s: %w", snap.Symbol, err)
	}
	return nil
}

// LatestForAll returns the most recent snapshot per active instrument in
// a single round trip: one instrument->MAX(base_date) subquery joined
// back to financials, so warm-up is O(1) regardless of universe size.
func (r *FinancialRepository) LatestForAll() (map[string]domain.FinancialSnapshot, error) {
	rows, err := r.db.Query(`
		SELECT i.symbol, f.id, f.instrument_id, f.base_date, f.current_price, f.market_cap, f.per, f.pbr,
			f.roe, f.eps, f.bps, f.dividend_yield, f.high_52w, f.low_52w, f.volume, f.amount, f.rsi,
			f.ema_json, f.dcf_value
		FROM instruments i
		JOIN financials f ON f.instrument_id = i.id
		JOIN (
			SELECT instrument_id, MAX(base_date) AS max_date FROM financials GROUP BY instrument_id
		) latest ON latest.instrument_id = f.instrument_id AND latest.max_date = f.base_date
		WHERE i.active = 1`)
	if err != nil {
		return nil, fmt.Errorf("query latest financials: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domain.FinancialSnapshot)
	for rows.Next() {
		var snap domain.FinancialSnapshot
		var baseDate string
		var emaJSON string
		if err := rows.Scan(&snap.Symbol, &snap.ID, &snap.InstrumentID, &baseDate, &snap.CurrentPrice,
			&snap.MarketCap, &snap.PER, &snap.PBR, &snap.ROE, &snap.EPS, &snap.BPS, &snap.DividendYield,
			&snap.High52w, &snap.Low52w, &snap.Volume, &snap.Amount, &snap.RSI, &emaJSON, &snap.DCFValue); err != nil {
			return nil, fmt.Errorf("scan latest financial: %w", err)
		}
		snap.BaseDate, _ = time.Parse("2006-01-02", baseDate)
		snap.EMA = unmarshalEMA(emaJSON)
		out[snap.Symbol] = snap
	}
	return out, rows.Err()
}

func marshalEMA(ema map[int]float64) (string, error) {
	strKeyed := make(map[string]float64, len(ema))
	for span, v := range ema {
		strKeyed[strconv.Itoa(span)] = v
	}
	data, err := json.Marshal(strKeyed)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalEMA(raw string) map[int]float64 {
	var strKeyed map[string]float64
	if err := json.Unmarshal([]byte(raw), &strKeyed); err != nil {
		return map[int]float64{}
	}
	out := make(map[int]float64, len(strKeyed))
	for k, v := range strKeyed {
		if n, err := strconv.Atoi(k); err == nil {
			out[n] = v
		}
	}
	return out
}
