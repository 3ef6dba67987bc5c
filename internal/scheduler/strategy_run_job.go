package scheduler

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/aristath/arduino-trader/internal/modules/strategy"
)

// StrategyRunJob drives C8's per-minute trading loop.
type StrategyRunJob struct {
	log    zerolog.Logger
	engine *strategy.Engine
	userID string
}

func NewStrategyRunJob(engine *strategy.Engine, userID string, log zerolog.Logger) *StrategyRunJob {
	return &StrategyRunJob{
		log:    log.With().Str("job", "strategy_run").Logger(),
		engine: engine,
		userID: userID,
	}
}

func (j *StrategyRunJob) Name() string { return "strategy_run" }

func (j *StrategyRunJob) Run() error {
	return j.engine.RunStrategy(context.Background(), j.userID)
}
