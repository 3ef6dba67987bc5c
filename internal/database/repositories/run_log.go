package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// RunLogRepository records one row per strategy-loop invocation so
// operators can see loop health without re-deriving it from the trade
// log, per SPEC_FULL's StrategyRunLog addition.
type RunLogRepository struct {
	*BaseRepository
}

func NewRunLogRepository(db *sql.DB, log zerolog.Logger) *RunLogRepository {
	return &RunLogRepository{BaseRepository: NewBase(db, log, "strategy_run_log")}
}

// Start inserts a started-but-unfinished run and returns its id.
func (r *RunLogRepository) Start(startedAt time.Time) (int64, error) {
	res, err := r.db.Exec(`INSERT INTO strategy_run_log (started_at, trades_executed, error) VALUES (?, 0, '')`, startedAt)
	if err != nil {
		return 0, fmt.Errorf("start run log: %w", err)
	}
	return res.LastInsertId()
}

// Finish records the outcome of a run. errMsg is empty on success.
func (r *RunLogRepository) Finish(id int64, finishedAt time.Time, tradesExecuted int, errMsg string) error {
	_, err := r.db.Exec(`UPDATE strategy_run_log SET finished_at = ?, trades_executed = ?, error = ? WHERE id = ?`,
		finishedAt, tradesExecuted, errMsg, id)
	if err != nil {
		return fmt.Errorf("finish run log %d: %w", id, err)
	}
	return nil
}

// RunLogEntry is one row of the strategy run log.
type RunLogEntry struct {
	ID             int64
	StartedAt      time.Time
	FinishedAt     sql.NullTime
	TradesExecuted int
	Error          string
}

// Latest returns the most recently started run, if any.
func (r *RunLogRepository) Latest() (RunLogEntry, bool, error) {
	row := r.db.QueryRow(`SELECT id, started_at, finished_at, trades_executed, error FROM strategy_run_log ORDER BY started_at DESC LIMIT 1`)
	var e RunLogEntry
	err := row.Scan(&e.ID, &e.StartedAt, &e.FinishedAt, &e.TradesExecuted, &e.Error)
	if err == sql.ErrNoRows {
		return RunLogEntry{}, false, nil
	}
	if err != nil {
		return RunLogEntry{}, false, fmt.Errorf("latest run log: %w", err)
	}
	return e, true, nil
}

// RecentFailures returns the error messages of the last n runs that failed.
func (r *RunLogRepository) RecentFailures(n int) ([]string, error) {
	rows, err := r.db.Query(`SELECT error FROM strategy_run_log WHERE error != '' ORDER BY started_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("recent failures: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var msg string
		if err := rows.Scan(&msg); err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}
