package scheduler

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/aristath/arduino-trader/internal/modules/strategy"
)

// SectorRebalanceJob fires daily; RebalanceSectors itself enforces the
// actual weekly cadence via a last-run-date setting, so a missed tick
// (restart, deploy) never skips more than one week.
type SectorRebalanceJob struct {
	log    zerolog.Logger
	engine *strategy.Engine
	userID string
}

func NewSectorRebalanceJob(engine *strategy.Engine, userID string, log zerolog.Logger) *SectorRebalanceJob {
	return &SectorRebalanceJob{
		log:    log.With().Str("job", "sector_rebalance").Logger(),
		engine: engine,
		userID: userID,
	}
}

func (j *SectorRebalanceJob) Name() string { return "sector_rebalance" }

func (j *SectorRebalanceJob) Run() error {
	return j.engine.RebalanceSectors(context.Background(), j.userID)
}
