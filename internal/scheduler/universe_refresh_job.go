package scheduler

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/aristath/arduino-trader/internal/marketdata"
	"github.com/aristath/arduino-trader/internal/modules/strategy"
)

// UniverseRefreshJob forces the top-N universe and websocket
// subscription set to pick up overnight index/listing changes before
// the first bell, ahead of the per-minute loop's own implicit refresh.
type UniverseRefreshJob struct {
	log    zerolog.Logger
	engine *strategy.Engine
	feed   *marketdata.Feed
}

func NewUniverseRefreshJob(engine *strategy.Engine, feed *marketdata.Feed, log zerolog.Logger) *UniverseRefreshJob {
	return &UniverseRefreshJob{
		log:    log.With().Str("job", "universe_refresh").Logger(),
		engine: engine,
		feed:   feed,
	}
}

func (j *UniverseRefreshJob) Name() string { return "universe_refresh" }

func (j *UniverseRefreshJob) Run() error {
	ctx := context.Background()
	if err := j.engine.RefreshUniverse(ctx); err != nil {
		return err
	}
	if j.feed != nil {
		j.feed.Subscribe(j.engine.UniverseSymbols())
	}
	return nil
}
