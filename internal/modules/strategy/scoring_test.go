package strategy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aristath/arduino-trader/internal/domain"
	"github.com/aristath/arduino-trader/internal/modules/strategy"
)

func defaultThresholds() strategy.Thresholds {
	return strategy.Thresholds{
		BaseScore:            50,
		OversoldRSI:          30,
		OverboughtRSI:        70,
		DipBuyPct:            -5.0,
		TakeProfitPct:        3.0,
		StopLossPct:          -8.0,
		Top10Bonus:           10,
		SectorRebalThreshold: 0.05,
	}
}

func TestScore_NoPriceDataReturnsZero(t *testing.T) {
	result := strategy.Score(strategy.Input{Symbol: "X", Thresholds: defaultThresholds()})
	assert.Equal(t, 0, result.Score)
}

func TestScore_DeepOversoldRSIPushesTowardBuy(t *testing.T) {
	st := &domain.TickerState{CurrentPrice: 1000, RSI: 20}
	result := strategy.Score(strategy.Input{Symbol: "X", State: st, VIX: 20, FearGreed: 50, Thresholds: defaultThresholds()})
	assert.Less(t, result.Score, 50)
}

func TestScore_OverboughtRSIPushesTowardSell(t *testing.T) {
	st := &domain.TickerState{CurrentPrice: 1000, RSI: 90}
	result := strategy.Score(strategy.Input{Symbol: "X", State: st, VIX: 20, FearGreed: 50, Thresholds: defaultThresholds()})
	assert.Greater(t, result.Score, 50)
}

func TestScore_StopLossForcesHundred(t *testing.T) {
	st := &domain.TickerState{CurrentPrice: 90, RSI: 50}
	holding := &domain.PortfolioHolding{AverageBuy: 100, CurrentPrice: 90}
	result := strategy.Score(strategy.Input{
		Symbol: "X", State: st, Holding: holding, Thresholds: defaultThresholds(),
	})
	assert.Equal(t, 100, result.Score)
	assert.True(t, result.ForcedSell)
}

func TestScore_ProfitTakingPushesTowardSell(t *testing.T) {
	st := &domain.TickerState{CurrentPrice: 110, RSI: 50}
	holding := &domain.PortfolioHolding{AverageBuy: 100, CurrentPrice: 110}
	result := strategy.Score(strategy.Input{
		Symbol: "X", State: st, Holding: holding, VIX: 20, FearGreed: 50, Thresholds: defaultThresholds(),
	})
	assert.Greater(t, result.Score, 50)
}

func TestScore_PanicMarketPushesTowardBuy(t *testing.T) {
	st := &domain.TickerState{CurrentPrice: 1000, RSI: 50}
	result := strategy.Score(strategy.Input{
		Symbol: "X", State: st, VIX: 30, Thresholds: defaultThresholds(),
	})
	assert.Less(t, result.Score, 50)
}

func TestScore_BullRegimePushesTowardBuy(t *testing.T) {
	st := &domain.TickerState{CurrentPrice: 1000, RSI: 50}
	result := strategy.Score(strategy.Input{
		Symbol: "X", State: st, Regime: domain.RegimeBull, VIX: 20, FearGreed: 50, Thresholds: defaultThresholds(),
	})
	assert.Less(t, result.Score, 50)
}

func TestScore_Top10BonusPushesTowardBuy(t *testing.T) {
	st := &domain.TickerState{CurrentPrice: 1000, RSI: 50}
	result := strategy.Score(strategy.Input{
		Symbol: "X", State: st, IsTop10: true, VIX: 20, FearGreed: 50, Thresholds: defaultThresholds(),
	})
	assert.Equal(t, 40, result.Score)
}

func TestScore_SectorOverweightPushesTowardSell(t *testing.T) {
	st := &domain.TickerState{CurrentPrice: 1000, RSI: 50}
	result := strategy.Score(strategy.Input{
		Symbol: "X", State: st, SectorDev: 0.10, VIX: 20, FearGreed: 50, Thresholds: defaultThresholds(),
	})
	assert.Equal(t, 60, result.Score)
}

func TestScore_CashShortagePenaltyOnlyAppliesAboveFifty(t *testing.T) {
	st := &domain.TickerState{CurrentPrice: 1000, RSI: 90}
	result := strategy.Score(strategy.Input{
		Symbol: "X", State: st, CashRatio: 0.1, TargetCashRatio: 0.4, VIX: 20, FearGreed: 50, Thresholds: defaultThresholds(),
	})
	// rsi 90 alone would be base 50 + int(10 + (90-70)/30*10) = 50+16=66, plus cash penalty 15 = 81
	assert.Equal(t, 81, result.Score)
}

func TestScore_PanicLockedReturnsFixedBands(t *testing.T) {
	th := defaultThresholds()
	stLowRSI := &domain.TickerState{CurrentPrice: 1000, RSI: 25}
	result := strategy.Score(strategy.Input{Symbol: "X", State: stLowRSI, PanicLocked: true, Thresholds: th})
	assert.Equal(t, 20, result.Score)

	stHighRSI := &domain.TickerState{CurrentPrice: 1000, RSI: 50}
	result2 := strategy.Score(strategy.Input{Symbol: "X", State: stHighRSI, PanicLocked: true, Thresholds: th})
	assert.Equal(t, 50, result2.Score)
}
