package scheduler

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/aristath/arduino-trader/internal/modules/portfolio"
)

// PortfolioSyncJob reconciles local holdings with the broker every 10
// minutes, independent of the per-minute strategy loop's own sync —
// keeps reported balances fresh even while the strategy is disabled.
type PortfolioSyncJob struct {
	log          zerolog.Logger
	portfolioSvc *portfolio.Service
}

func NewPortfolioSyncJob(portfolioSvc *portfolio.Service, log zerolog.Logger) *PortfolioSyncJob {
	return &PortfolioSyncJob{
		log:          log.With().Str("job", "portfolio_sync").Logger(),
		portfolioSvc: portfolioSvc,
	}
}

func (j *PortfolioSyncJob) Name() string { return "portfolio_sync" }

func (j *PortfolioSyncJob) Run() error {
	_, _, err := j.portfolioSvc.SyncWithBroker(context.Background())
	return err
}
