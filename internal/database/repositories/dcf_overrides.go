package repositories

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/arduino-trader/internal/domain"
)

// DCFOverrideRepository persists per-symbol manual overrides of the DCF
// inputs (or the fair value itself), so an operator can correct a bad
// fundamentals feed without redeploying code.
type DCFOverrideRepository struct {
	*BaseRepository
}

func NewDCFOverrideRepository(db *sql.DB, log zerolog.Logger) *DCFOverrideRepository {
	return &DCFOverrideRepository{BaseRepository: NewBase(db, log, "dcf_overrides")}
}

func (r *DCFOverrideRepository) Get(symbol string) (domain.DcfOverride, bool, error) {
	row := r.db.QueryRow(`SELECT symbol, fcf_per_share, beta, growth_rate, fair_value FROM dcf_overrides WHERE symbol = ?`, symbol)

	var out domain.DcfOverride
	var fcf, beta, growth, fair sql.NullFloat64
	err := row.Scan(&out.Symbol, &fcf, &beta, &growth, &fair)
	if err == sql.ErrNoRows {
		return domain.DcfOverride{}, false, nil
	}
	if err != nil {
		return domain.DcfOverride{}, false, fmt.Errorf("get dcf override for %s: %w", symbol, err)
	}

	out.FCFPerShare = nullableFloat(fcf)
	out.Beta = nullableFloat(beta)
	out.GrowthRate = nullableFloat(growth)
	out.FairValue = nullableFloat(fair)
	return out, true, nil
}

func (r *DCFOverrideRepository) Upsert(o domain.DcfOverride) error {
	_, err := r.db.Exec(`
		INSERT INTO dcf_overrides (symbol, fcf_per_share, beta, growth_rate, fair_value)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			fcf_per_share = excluded.fcf_per_share, beta = excluded.beta,
			growth_rate = excluded.growth_rate, fair_value = excluded.fair_value`,
		o.Symbol, floatPtrToNull(o.FCFPerShare), floatPtrToNull(o.Beta), floatPtrToNull(o.GrowthRate), floatPtrToNull(o.FairValue))
	if err != nil {
		return fmt.Errorf("upsert dcf override for %s: %w", o.Symbol, err)
	}
	return nil
}

func nullableFloat(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func floatPtrToNull(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}
