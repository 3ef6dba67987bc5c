package strategy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aristath/arduino-trader/internal/modules/strategy"
)

func defaultSizingParams() strategy.SizingParams {
	return strategy.SizingParams{PerTradeRatio: 0.05, SplitCount: 3, AggressiveBuyScoreThreshold: 85}
}

func TestBuyQuantity_NormalScoreUsesBaseMultiplier(t *testing.T) {
	// market total 100,000,000 KRW, per_trade_ratio 0.05, split 3 -> tranche ~1,666,667
	qty, cost := strategy.BuyQuantity(50, 100_000_000, 100_000_000, 10_000_000, 70_000, defaultSizingParams())
	assert.Equal(t, int64(23), qty) // floor(1,666,666.67 / 70,000)
	assert.Equal(t, float64(23)*70_000, cost)
}

func TestBuyQuantity_HighScoreDoublesMultiplier(t *testing.T) {
	qtyBase, _ := strategy.BuyQuantity(50, 100_000_000, 100_000_000, 10_000_000, 70_000, defaultSizingParams())
	qtyHigh, _ := strategy.BuyQuantity(95, 100_000_000, 100_000_000, 10_000_000, 70_000, defaultSizingParams())
	assert.Greater(t, qtyHigh, qtyBase)
}

func TestBuyQuantity_CappedByCashBalance(t *testing.T) {
	qty, cost := strategy.BuyQuantity(50, 100_000_000, 100_000_000, 1000, 70_000, defaultSizingParams())
	assert.Equal(t, int64(0), qty)
	assert.Equal(t, float64(0), cost)
}

func TestBuyQuantity_TinyAccountGuardRoundsUpToOneShare(t *testing.T) {
	qty, _ := strategy.BuyQuantity(90, 1_000_000, 1_000_000, 70_000, 70_000, defaultSizingParams())
	assert.Equal(t, int64(1), qty)
}

func TestBuyQuantity_TinyAccountGuardDoesNotFireBelowThreshold(t *testing.T) {
	qty, _ := strategy.BuyQuantity(50, 1_000_000, 1_000_000, 70_000, 70_000, defaultSizingParams())
	assert.Equal(t, int64(0), qty)
}

func TestBuyQuantity_ZeroMarketTotalFallsBackToTotalAssets(t *testing.T) {
	// A market with no sub-portfolio yet (market_total_KRW == 0) sizes off
	// total assets instead of collapsing to a zero-size buy.
	withFallback, _ := strategy.BuyQuantity(50, 0, 100_000_000, 10_000_000, 70_000, defaultSizingParams())
	directlySized, _ := strategy.BuyQuantity(50, 100_000_000, 100_000_000, 10_000_000, 70_000, defaultSizingParams())
	assert.Equal(t, directlySized, withFallback)
	assert.Greater(t, withFallback, int64(0))
}

func TestSellQuantity_StopLossSellsEntirePosition(t *testing.T) {
	assert.Equal(t, int64(10), strategy.SellQuantity(10, 3, true))
}

func TestSellQuantity_NormalSellUnwindsOneTranche(t *testing.T) {
	assert.Equal(t, int64(3), strategy.SellQuantity(10, 3, false))
}

func TestSellQuantity_NormalSellFloorsToAtLeastOneShare(t *testing.T) {
	assert.Equal(t, int64(1), strategy.SellQuantity(2, 3, false))
}
