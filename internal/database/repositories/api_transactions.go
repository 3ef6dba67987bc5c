package repositories

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
)

// ApiTransactionRepository maps a logical operation name (plus whether
// the broker endpoint is the simulated or live one) to the broker's
// actual tr_id header value. KIS-style brokers use disjoint tr_id
// constants per environment, so the same logical "domestic_buy" needs
// two rows.
type ApiTransactionRepository struct {
	*BaseRepository
}

func NewApiTransactionRepository(db *sql.DB, log zerolog.Logger) *ApiTransactionRepository {
	return &ApiTransactionRepository{BaseRepository: NewBase(db, log, "api_transactions")}
}

// Get resolves a logical name for the given environment. ok is false when
// no mapping has been seeded or overridden, letting the caller fall back
// to a compiled-in default.
func (r *ApiTransactionRepository) Get(logicalName string, isSimulated bool) (string, bool, error) {
	row := r.db.QueryRow(`SELECT tr_id FROM api_transactions WHERE logical_name = ? AND is_simulated = ?`,
		logicalName, isSimulated)
	var trID string
	err := row.Scan(&trID)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get api transaction %s: %w", logicalName, err)
	}
	return trID, true, nil
}

// Upsert records (or overrides) one logical_name/is_simulated -> tr_id mapping.
func (r *ApiTransactionRepository) Upsert(logicalName string, isSimulated bool, trID string) error {
	_, err := r.db.Exec(`
		INSERT INTO api_transactions (logical_name, is_simulated, tr_id) VALUES (?, ?, ?)
		ON CONFLICT(logical_name, is_simulated) DO UPDATE SET tr_id = excluded.tr_id`,
		logicalName, isSimulated, trID)
	if err != nil {
		return fmt.Errorf("upsert api transaction %s: %w", logicalName, err)
	}
	return nil
}

// SeedDefaults inserts the compiled-in KIS tr_id pairs if the table is
// empty, so a fresh install works without operator configuration; an
// operator can still override any row with Upsert afterwards.
func (r *ApiTransactionRepository) SeedDefaults(defaults map[string][2]string) error {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM api_transactions`).Scan(&count); err != nil {
		return fmt.Errorf("count api transactions: %w", err)
	}
	if count > 0 {
		return nil
	}
	for name, pair := range defaults {
		if err := r.Upsert(name, false, pair[0]); err != nil {
			return err
		}
		if err := r.Upsert(name, true, pair[1]); err != nil {
			return err
		}
	}
	return nil
}
