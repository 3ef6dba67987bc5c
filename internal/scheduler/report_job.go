package scheduler

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/aristath/arduino-trader/internal/modules/strategy"
)

// HourlyReportJob sends an unconditional portfolio snapshot to the
// notifier once an hour, regardless of whether anything traded.
type HourlyReportJob struct {
	log    zerolog.Logger
	engine *strategy.Engine
}

func NewHourlyReportJob(engine *strategy.Engine, log zerolog.Logger) *HourlyReportJob {
	return &HourlyReportJob{
		log:    log.With().Str("job", "hourly_report").Logger(),
		engine: engine,
	}
}

func (j *HourlyReportJob) Name() string { return "hourly_report" }

func (j *HourlyReportJob) Run() error {
	return j.engine.EmitHourlyReport(context.Background())
}
