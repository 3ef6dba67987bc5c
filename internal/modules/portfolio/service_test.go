package portfolio_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/arduino-trader/internal/database"
	"github.com/aristath/arduino-trader/internal/database/repositories"
	"github.com/aristath/arduino-trader/internal/domain"
	"github.com/aristath/arduino-trader/internal/modules/portfolio"
	"github.com/aristath/arduino-trader/internal/modules/settings"
)

type fakeBroker struct {
	domain.BrokerClient
	krHoldings []domain.PortfolioHolding
	krCash     float64
	krErr      error
	usHoldings []domain.PortfolioHolding
	usErr      error
	usdCash    float64
	usdCashErr error
}

func (f *fakeBroker) GetDomesticBalance(ctx context.Context) ([]domain.PortfolioHolding, float64, error) {
	return f.krHoldings, f.krCash, f.krErr
}

func (f *fakeBroker) GetOverseasBalance(ctx context.Context) ([]domain.PortfolioHolding, error) {
	return f.usHoldings, f.usErr
}

func (f *fakeBroker) GetOverseasAvailableCash(ctx context.Context, probeSymbol string) (float64, error) {
	return f.usdCash, f.usdCashErr
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := database.New(path, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSyncWithBroker_MergesAndPersistsBothMarkets(t *testing.T) {
	db := newTestDB(t)
	holdings := repositories.NewHoldingRepository(db.Conn(), zerolog.Nop())
	store := settings.New(db.Conn(), zerolog.Nop())

	broker := &fakeBroker{
		krHoldings: []domain.PortfolioHolding{{Symbol: "005930", Market: domain.MarketKR, Quantity: 10, AverageBuy: 70000, CurrentPrice: 75000}},
		krCash:     1_000_000,
		usHoldings: []domain.PortfolioHolding{{Symbol: "AAPL", Market: domain.MarketUS, Quantity: 5, AverageBuy: 150, CurrentPrice: 160}},
		usdCash:    500,
	}

	svc := portfolio.New(broker, holdings, store, zerolog.Nop())
	all, cash, err := svc.SyncWithBroker(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, 1_000_000.0, cash.KRW)
	assert.Equal(t, 500.0, cash.USD)

	persisted, err := holdings.GetAll()
	require.NoError(t, err)
	assert.Len(t, persisted, 2)
}

func TestSyncWithBroker_FallsBackToPersistedOnTotalFailure(t *testing.T) {
	db := newTestDB(t)
	holdings := repositories.NewHoldingRepository(db.Conn(), zerolog.Nop())
	store := settings.New(db.Conn(), zerolog.Nop())

	seeded := []domain.PortfolioHolding{{Symbol: "005930", Market: domain.MarketKR, Quantity: 10, AverageBuy: 70000, CurrentPrice: 75000}}
	require.NoError(t, holdings.ReplaceAll(seeded))

	broker := &fakeBroker{krErr: assert.AnError, usErr: assert.AnError}
	svc := portfolio.New(broker, holdings, store, zerolog.Nop())

	all, _, err := svc.SyncWithBroker(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Equal(t, "005930", all[0].Symbol)
}

func TestGetUsdCash_FallsBackToCacheWithoutOverseasHoldings(t *testing.T) {
	db := newTestDB(t)
	holdings := repositories.NewHoldingRepository(db.Conn(), zerolog.Nop())
	store := settings.New(db.Conn(), zerolog.Nop())
	require.NoError(t, store.SetFloat("portfolio_usd_cash_cache", 42))

	broker := &fakeBroker{krCash: 0}
	svc := portfolio.New(broker, holdings, store, zerolog.Nop())

	_, cash, err := svc.SyncWithBroker(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42.0, cash.USD)
}

func TestMarketTotals_SplitsByMarket(t *testing.T) {
	holdings := []domain.PortfolioHolding{
		{Symbol: "005930", Market: domain.MarketKR, Quantity: 10, CurrentPrice: 70000},
		{Symbol: "AAPL", Market: domain.MarketUS, Quantity: 5, CurrentPrice: 160},
	}
	cash := domain.CashBalance{KRW: 1_000_000, USD: 500}

	krTotal, usTotal := portfolio.MarketTotals(holdings, cash)
	assert.Equal(t, 1_000_000.0+700_000.0, krTotal)
	assert.Equal(t, 500.0+800.0, usTotal)
}
