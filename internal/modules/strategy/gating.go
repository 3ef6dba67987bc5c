package strategy

import (
	"time"

	"github.com/aristath/arduino-trader/internal/database/repositories"
	"github.com/aristath/arduino-trader/internal/domain"
)

// MarketOpen reports whether orders may be routed to a market right now,
// gating rule 1 (spec.md §4.8.2): weekends and the US holiday calendar
// block trading, extended-hours windows are opt-in via settings.
func MarketOpen(calendar marketHoursChecker, market domain.Market, at time.Time, allowExtended bool) bool {
	if allowExtended {
		return calendar.IsOpenExtended(market, at)
	}
	return calendar.IsOpen(market, at)
}

// marketHoursChecker is the subset of markethours.Calendar the gating
// layer needs, narrowed so gating tests can supply a fake instead of
// depending on the real holiday calendar.
type marketHoursChecker interface {
	IsOpen(market domain.Market, at time.Time) bool
	IsOpenExtended(market domain.Market, at time.Time) bool
}

// CashRatioAllowsBuy implements gating rule 2: a buy proceeds only when
// the market's own cash ratio is below its regime target (a ratio at or
// above the target blocks the buy), or a panic signal overrides the
// check entirely.
func CashRatioAllowsBuy(cashRatio, targetCashRatio float64, panicMarket bool) bool {
	if panicMarket {
		return true
	}
	return cashRatio < targetCashRatio
}

// CashNonNegative implements gating rule 3: KRW buys require positive KRW
// cash, USD buys require positive USD cash.
func CashNonNegative(market domain.Market, krwCash, usdCash float64) bool {
	if market == domain.MarketKR {
		return krwCash > 0
	}
	return usdCash > 0
}

// SectorCapOK implements the hard per-sector allocation cap (gating rule
// 4): a buy is blocked if the sector's share of total assets, including
// the proposed add, would exceed maxSectorRatio.
func SectorCapOK(sectorValueKRW, addValueKRW, totalAssets, maxSectorRatio float64) bool {
	if totalAssets <= 0 || maxSectorRatio <= 0 {
		return true
	}
	ratio := (sectorValueKRW + addValueKRW) / totalAssets
	return ratio <= maxSectorRatio
}

// SellCooldownActive reports whether symbol already had a partial (split)
// sell today, blocking a second partial sell. Full stop-loss sells bypass
// this check entirely (the caller only consults it for non-forced sells).
func SellCooldownActive(state repositories.StrategyState, symbol, today string) bool {
	return state.SellCooldown[symbol] == today
}

// AddBuyCooldownActive reports whether symbol already had an
// averaging-down purchase today.
func AddBuyCooldownActive(state repositories.StrategyState, symbol, today string) bool {
	return state.AddBuyCooldown[symbol] == today
}

// AddBuyAllowed implements the additional averaging-down gate beyond the
// cooldown: RSI must stay below the ceiling and score at or below the limit.
func AddBuyAllowed(rsi float64, score int, rsiLimit float64, scoreLimit int) bool {
	return rsi < rsiLimit && score <= scoreLimit
}
