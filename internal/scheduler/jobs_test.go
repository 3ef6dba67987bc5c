package scheduler_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/arduino-trader/internal/database/repositories"
	"github.com/aristath/arduino-trader/internal/domain"
	"github.com/aristath/arduino-trader/internal/modules/macro"
	"github.com/aristath/arduino-trader/internal/modules/portfolio"
	"github.com/aristath/arduino-trader/internal/modules/settings"
	"github.com/aristath/arduino-trader/internal/modules/strategy"
	"github.com/aristath/arduino-trader/internal/scheduler"
)

type fakeNotifier struct{ messages []string }

func (f *fakeNotifier) Enqueue(message string) { f.messages = append(f.messages, message) }

type fakeStateStore struct{}

func (fakeStateStore) GetState(symbol string) (*domain.TickerState, bool) { return nil, false }
func (fakeStateStore) GetAllStates() map[string]*domain.TickerState      { return map[string]*domain.TickerState{} }
func (fakeStateStore) RegisterBatch(ctx context.Context, symbols []string, markets map[string]domain.Market, held map[string]struct{}) {
}
func (fakeStateStore) PruneStates(keep map[string]struct{})             {}
func (fakeStateStore) MarketFor(symbol string) (domain.Market, bool)    { return "", false }

type fakeCalendar struct{}

func (fakeCalendar) IsOpen(market domain.Market, at time.Time) bool         { return false }
func (fakeCalendar) IsOpenExtended(market domain.Market, at time.Time) bool { return false }

func newTestEngine(t *testing.T, broker domain.BrokerClient) (*strategy.Engine, *fakeNotifier) {
	t.Helper()
	db := newTestDB(t)
	log := zerolog.Nop()

	store := settings.New(db.Conn(), log)
	require.NoError(t, store.SeedDefaults())
	require.NoError(t, store.SetBool("strategy_enabled", true))

	portfolioSvc := portfolio.New(broker, repositories.NewHoldingRepository(db.Conn(), log), store, log)
	macroSvc := macro.New(broker, repositories.NewMarketRegimeRepository(db.Conn(), log), log)
	notifier := &fakeNotifier{}

	engine := strategy.New(
		broker, fakeStateStore{}, portfolioSvc, macroSvc, fakeCalendar{},
		repositories.NewInstrumentRepository(db.Conn(), log),
		repositories.NewHoldingRepository(db.Conn(), log),
		repositories.NewTradeRepository(db.Conn(), log),
		repositories.NewStrategyStateRepository(db.Conn(), log),
		repositories.NewRunLogRepository(db.Conn(), log),
		store, notifier, fixedClock{t: time.Now()}, log,
	)
	return engine, notifier
}

func TestStrategyRunJob_DelegatesToEngine(t *testing.T) {
	broker := &fakeBroker{quote: domain.Quote{CurrentPrice: 100}}
	engine, _ := newTestEngine(t, broker)

	job := scheduler.NewStrategyRunJob(engine, "default", zerolog.Nop())
	assert.Equal(t, "strategy_run", job.Name())
	assert.NoError(t, job.Run())
}

func TestHourlyReportJob_EnqueuesReportRegardlessOfChange(t *testing.T) {
	broker := &fakeBroker{quote: domain.Quote{CurrentPrice: 100}}
	engine, notifier := newTestEngine(t, broker)

	job := scheduler.NewHourlyReportJob(engine, zerolog.Nop())
	assert.Equal(t, "hourly_report", job.Name())
	require.NoError(t, job.Run())
	assert.Len(t, notifier.messages, 1)
}

func TestSectorRebalanceJob_Name(t *testing.T) {
	broker := &fakeBroker{quote: domain.Quote{CurrentPrice: 100}}
	engine, _ := newTestEngine(t, broker)

	job := scheduler.NewSectorRebalanceJob(engine, "default", zerolog.Nop())
	assert.Equal(t, "sector_rebalance", job.Name())
	assert.NoError(t, job.Run())
}

func TestUniverseRefreshJob_RunsWithoutFeed(t *testing.T) {
	broker := &fakeBroker{quote: domain.Quote{CurrentPrice: 100}}
	engine, _ := newTestEngine(t, broker)

	job := scheduler.NewUniverseRefreshJob(engine, nil, zerolog.Nop())
	assert.Equal(t, "universe_refresh", job.Name())
	assert.NoError(t, job.Run())
}

func TestPortfolioSyncJob_DelegatesToService(t *testing.T) {
	db := newTestDB(t)
	log := zerolog.Nop()
	store := settings.New(db.Conn(), log)
	require.NoError(t, store.SeedDefaults())
	broker := &fakeBroker{quote: domain.Quote{CurrentPrice: 100}}
	portfolioSvc := portfolio.New(broker, repositories.NewHoldingRepository(db.Conn(), log), store, log)

	job := scheduler.NewPortfolioSyncJob(portfolioSvc, log)
	assert.Equal(t, "portfolio_sync", job.Name())
	assert.NoError(t, job.Run())
}

func TestScheduler_AddJobAndRunNow(t *testing.T) {
	sched := scheduler.New(zerolog.Nop())
	broker := &fakeBroker{quote: domain.Quote{CurrentPrice: 100}}
	engine, _ := newTestEngine(t, broker)
	job := scheduler.NewStrategyRunJob(engine, "default", zerolog.Nop())

	require.NoError(t, sched.AddJob("@every 1m", job))
	assert.NoError(t, sched.RunNow(job))
}
