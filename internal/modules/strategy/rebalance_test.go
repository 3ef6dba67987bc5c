package strategy_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/arduino-trader/internal/database/repositories"
	"github.com/aristath/arduino-trader/internal/domain"
)

func TestRebalanceSectors_SellsMostProfitableHoldingInOverweightGroup(t *testing.T) {
	broker := &fakeBroker{
		krHoldings: []domain.PortfolioHolding{
			{Symbol: "A", Market: domain.MarketKR, Quantity: 10, AverageBuy: 10_000, CurrentPrice: 11_000, Sector: "금융"},
			{Symbol: "B", Market: domain.MarketKR, Quantity: 10, AverageBuy: 10_000, CurrentPrice: 12_000, Sector: "금융"},
		},
		krCash: 500_000,
	}
	states := &fakeStateStore{states: map[string]*domain.TickerState{}, markets: map[string]domain.Market{}}
	engine, _, _, _ := newTestEngine(t, broker, states)

	err := engine.RebalanceSectors(context.Background(), "default")
	require.NoError(t, err)
	require.Len(t, broker.orders, 1)
	assert.Equal(t, domain.SideSell, broker.orders[0].side)
	assert.Equal(t, "B", broker.orders[0].symbol)
}

func TestRebalanceSectors_Disabled_SkipsEntirely(t *testing.T) {
	broker := &fakeBroker{
		krHoldings: []domain.PortfolioHolding{
			{Symbol: "A", Market: domain.MarketKR, Quantity: 10, AverageBuy: 10_000, CurrentPrice: 11_000, Sector: "금융"},
		},
		krCash: 500_000,
	}
	states := &fakeStateStore{states: map[string]*domain.TickerState{}, markets: map[string]domain.Market{}}
	engine, store, _, _ := newTestEngine(t, broker, states)
	require.NoError(t, store.SetBool("strategy_enabled", false))

	err := engine.RebalanceSectors(context.Background(), "default")
	require.NoError(t, err)
	assert.Empty(t, broker.orders)
}

func TestRebalanceSectors_BuysStrongestCandidateInUnderweightGroup(t *testing.T) {
	broker := &fakeBroker{krCash: 10_000_000}
	states := &fakeStateStore{
		states: map[string]*domain.TickerState{
			"005930": readyState(70_000, 25), // deeply oversold -> lowest (most buy-leaning) score
			"000660": readyState(70_000, 60),
		},
		markets: map[string]domain.Market{"005930": domain.MarketKR, "000660": domain.MarketKR},
	}
	engine, _, db, _ := newTestEngine(t, broker, states)
	instruments := repositories.NewInstrumentRepository(db.Conn(), zerolog.Nop())
	require.NoError(t, instruments.Upsert(domain.Instrument{Symbol: "005930", Market: domain.MarketKR, Sector: "Technology", Active: true}))
	require.NoError(t, instruments.Upsert(domain.Instrument{Symbol: "000660", Market: domain.MarketKR, Sector: "Technology", Active: true}))

	err := engine.RebalanceSectors(context.Background(), "default")
	require.NoError(t, err)
	require.Len(t, broker.orders, 1)
	assert.Equal(t, domain.SideBuy, broker.orders[0].side)
	assert.Equal(t, "005930", broker.orders[0].symbol)
}
