package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/aristath/arduino-trader/internal/database/repositories"
	"github.com/aristath/arduino-trader/internal/domain"
)

type fakeCalendar struct {
	open         bool
	openExtended bool
}

func (f fakeCalendar) IsOpen(market domain.Market, at time.Time) bool         { return f.open }
func (f fakeCalendar) IsOpenExtended(market domain.Market, at time.Time) bool { return f.openExtended }

func TestMarketOpen_UsesExtendedWindowWhenAllowed(t *testing.T) {
	cal := fakeCalendar{open: false, openExtended: true}
	assert.False(t, MarketOpen(cal, domain.MarketKR, time.Now(), false))
	assert.True(t, MarketOpen(cal, domain.MarketKR, time.Now(), true))
}

func TestCashRatioAllowsBuy_PanicOverridesTarget(t *testing.T) {
	assert.True(t, CashRatioAllowsBuy(0.60, 0.40, true))
}

func TestCashRatioAllowsBuy_BlocksWhenAtOrAboveTarget(t *testing.T) {
	assert.False(t, CashRatioAllowsBuy(0.40, 0.40, false))
	assert.False(t, CashRatioAllowsBuy(0.50, 0.40, false))
	assert.True(t, CashRatioAllowsBuy(0.30, 0.40, false))
}

func TestCashNonNegative_PerMarketCurrency(t *testing.T) {
	assert.True(t, CashNonNegative(domain.MarketKR, 1000, 0))
	assert.False(t, CashNonNegative(domain.MarketKR, 0, 1000))
	assert.True(t, CashNonNegative(domain.MarketUS, 0, 1000))
	assert.False(t, CashNonNegative(domain.MarketUS, 1000, 0))
}

func TestSectorCapOK_BlocksWhenAddWouldExceedCap(t *testing.T) {
	assert.True(t, SectorCapOK(25_000_000, 2_000_000, 100_000_000, 0.30))
	assert.False(t, SectorCapOK(29_000_000, 2_000_000, 100_000_000, 0.30))
}

func TestSellCooldownActive_TracksPerSymbolPerDay(t *testing.T) {
	state := repositories.NewStrategyState()
	state.SellCooldown["005930"] = "2026-07-30"
	assert.True(t, SellCooldownActive(state, "005930", "2026-07-30"))
	assert.False(t, SellCooldownActive(state, "005930", "2026-07-31"))
	assert.False(t, SellCooldownActive(state, "000660", "2026-07-30"))
}

func TestAddBuyAllowed_RequiresBothRSIAndScoreUnderLimits(t *testing.T) {
	assert.True(t, AddBuyAllowed(55, 50, 60, 55))
	assert.False(t, AddBuyAllowed(65, 50, 60, 55))
	assert.False(t, AddBuyAllowed(55, 60, 60, 55))
}
