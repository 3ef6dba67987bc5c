package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// StrategyState is the durable per-user state the strategy engine
// carries between loop iterations: per-symbol cooldowns, panic locks, and
// the single-symbol tick strategy's intraday state. Grounded on the
// original service's strategy_state.json blob, moved into the same
// database the rest of C2 already uses instead of a side file.
type StrategyState struct {
	SellCooldown    map[string]string `json:"sell_cooldown"`    // symbol -> date (YYYY-MM-DD)
	AddBuyCooldown  map[string]string `json:"add_buy_cooldown"` // symbol -> date
	PanicLocks      map[string]string `json:"panic_locks"`      // symbol -> date locked
	TickSecondDone  bool              `json:"tick_second_done"`
	TickLastSell    float64           `json:"tick_last_sell"`
	TickLastSellDay string            `json:"tick_last_sell_day"`
}

// NewStrategyState returns a zero-value state with initialized maps.
func NewStrategyState() StrategyState {
	return StrategyState{
		SellCooldown:   make(map[string]string),
		AddBuyCooldown: make(map[string]string),
		PanicLocks:     make(map[string]string),
	}
}

// StrategyStateRepository persists one StrategyState blob per user.
type StrategyStateRepository struct {
	*BaseRepository
}

func NewStrategyStateRepository(db *sql.DB, log zerolog.Logger) *StrategyStateRepository {
	return &StrategyStateRepository{BaseRepository: NewBase(db, log, "strategy_state")}
}

// Load returns the persisted state for a user, or a fresh zero-value state
// if none has been saved yet.
func (r *StrategyStateRepository) Load(userID string) (StrategyState, error) {
	var raw string
	err := r.db.QueryRow(`SELECT state_json FROM strategy_state WHERE user_id = ?`, userID).Scan(&raw)
	if err == sql.ErrNoRows {
		return NewStrategyState(), nil
	}
	if err != nil {
		return StrategyState{}, fmt.Errorf("load strategy state for %s: %w", userID, err)
	}

	state := NewStrategyState()
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return StrategyState{}, fmt.Errorf("unmarshal strategy state for %s: %w", userID, err)
	}
	if state.SellCooldown == nil {
		state.SellCooldown = make(map[string]string)
	}
	if state.AddBuyCooldown == nil {
		state.AddBuyCooldown = make(map[string]string)
	}
	if state.PanicLocks == nil {
		state.PanicLocks = make(map[string]string)
	}
	return state, nil
}

// Save upserts the state blob for a user.
func (r *StrategyStateRepository) Save(userID string, state StrategyState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal strategy state for %s: %w", userID, err)
	}
	_, err = r.db.Exec(`
		INSERT INTO strategy_state (user_id, state_json, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET state_json = excluded.state_json, updated_at = excluded.updated_at`,
		userID, string(raw), time.Now())
	if err != nil {
		return fmt.Errorf("save strategy state for %s: %w", userID, err)
	}
	return nil
}
