package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/arduino-trader/internal/domain"
)

// MarketRegimeRepository persists C6's daily regime classification.
type MarketRegimeRepository struct {
	*BaseRepository
}

func NewMarketRegimeRepository(db *sql.DB, log zerolog.Logger) *MarketRegimeRepository {
	return &MarketRegimeRepository{BaseRepository: NewBase(db, log, "market_regime_history")}
}

func (r *MarketRegimeRepository) Upsert(snap domain.MarketRegimeSnapshot) error {
	components, err := json.Marshal(snap.Components)
	if err != nil {
		return fmt.Errorf("marshal regime components: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO market_regime_history (base_date, status, score, vix, fear_greed, yield_10y, sp500_price, sp500_ma200, percent_dev_ma200, components_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(base_date) DO UPDATE SET
			status = excluded.status, score = excluded.score, vix = excluded.vix, fear_greed = excluded.fear_greed,
			yield_10y = excluded.yield_10y, sp500_price = excluded.sp500_price, sp500_ma200 = excluded.sp500_ma200,
			percent_dev_ma200 = excluded.percent_dev_ma200, components_json = excluded.components_json`,
		snap.Date.Format("2006-01-02"), snap.Status, snap.Score, snap.VIX, snap.FearGreed, snap.Yield10Y,
		snap.SP500Price, snap.SP500MA200, snap.PercentDevMA200, string(components))
	if err != nil {
		return fmt.Errorf("upsert market regime snapshot: %w", err)
	}
	return nil
}

func (r *MarketRegimeRepository) Latest() (domain.MarketRegimeSnapshot, bool, error) {
	row := r.db.QueryRow(`
		SELECT base_date, status, score, vix, fear_greed, yield_10y, sp500_price, sp500_ma200, percent_dev_ma200, components_json
		FROM market_regime_history ORDER BY base_date DESC LIMIT 1`)

	var snap domain.MarketRegimeSnapshot
	var baseDate, componentsJSON string
	err := row.Scan(&baseDate, &snap.Status, &snap.Score, &snap.VIX, &snap.FearGreed, &snap.Yield10Y,
		&snap.SP500Price, &snap.SP500MA200, &snap.PercentDevMA200, &componentsJSON)
	if err == sql.ErrNoRows {
		return domain.MarketRegimeSnapshot{}, false, nil
	}
	if err != nil {
		return domain.MarketRegimeSnapshot{}, false, fmt.Errorf("latest market regime: %w", err)
	}

	snap.Date, _ = time.Parse("2006-01-02", baseDate)
	_ = json.Unmarshal([]byte(componentsJSON), &snap.Components)
	return snap, true, nil
}
