package strategy_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/arduino-trader/internal/domain"
)

func TestRunStrategy_TickStrategyEntersOnDip(t *testing.T) {
	broker := &fakeBroker{
		krCash: 1_000_000,
	}
	states := &fakeStateStore{
		states:  map[string]*domain.TickerState{"005930": {CurrentPrice: 69_000, RSI: 50, LowPrice: 70_000, EMA: map[int]float64{200: 60_000}, UpdatedAt: time.Now()}},
		markets: map[string]domain.Market{"005930": domain.MarketKR},
	}
	engine, store, _, cal := newTestEngine(t, broker, states)
	require.NoError(t, store.SetBool("strategy_tick_enabled", true))
	require.NoError(t, store.SetString("strategy_tick_ticker", "005930"))
	cal.krOpen = true

	err := engine.RunStrategy(context.Background(), "default")
	require.NoError(t, err)
	require.Len(t, broker.orders, 1)
	assert.Equal(t, domain.SideBuy, broker.orders[0].side)
	assert.Equal(t, "005930", broker.orders[0].symbol)
}

func TestRunStrategy_TickStrategyDisabledByDefault(t *testing.T) {
	broker := &fakeBroker{krCash: 1_000_000}
	states := &fakeStateStore{
		states:  map[string]*domain.TickerState{"005930": {CurrentPrice: 69_000, RSI: 50, LowPrice: 70_000, EMA: map[int]float64{200: 60_000}, UpdatedAt: time.Now()}},
		markets: map[string]domain.Market{"005930": domain.MarketKR},
	}
	engine, _, _, _ := newTestEngine(t, broker, states)

	err := engine.RunStrategy(context.Background(), "default")
	require.NoError(t, err)
	assert.Empty(t, broker.orders)
}
