package strategy

import "math"

// SizingParams bundles the settings-tunable sizing inputs.
type SizingParams struct {
	PerTradeRatio              float64
	SplitCount                 int
	AggressiveBuyScoreThreshold int
}

// BuyQuantity computes the share count and KRW cost for a buy, per
// spec.md §4.8.3: base is the target market's own sub-portfolio total
// (never mixed across KR/US), scaled by a score-driven multiplier, split
// into tranches, and capped by available cash. unitPriceKRW is the
// instrument's price already converted to KRW (multiplied by the
// exchange rate for US symbols). marketTotalKRW==0 is an edge case the
// original leaves ambiguous (a brand-new market sub-portfolio with no
// holdings yet); it falls back to totalAssetsKRW rather than sizing
// every buy to zero.
func BuyQuantity(score int, marketTotalKRW, totalAssetsKRW, cashBalanceKRW, unitPriceKRW float64, params SizingParams) (quantity int64, costKRW float64) {
	if unitPriceKRW <= 0 {
		return 0, 0
	}

	multiplier := 1.0
	switch {
	case score >= 90:
		multiplier = 2.0
	case score >= 80:
		multiplier = 1.5
	}

	base := marketTotalKRW
	if base <= 0 {
		base = totalAssetsKRW
	}
	target := base * params.PerTradeRatio * multiplier
	oneTranche := target / float64(params.SplitCount)
	investKRW := math.Min(oneTranche, cashBalanceKRW)

	quantity = int64(investKRW / unitPriceKRW)
	if quantity == 0 && score >= params.AggressiveBuyScoreThreshold && cashBalanceKRW >= unitPriceKRW {
		quantity = 1
	}
	return quantity, float64(quantity) * unitPriceKRW
}

// SellQuantity returns the share count for a sell. A full stop-loss sell
// liquidates the entire position; otherwise one tranche is unwound.
func SellQuantity(heldQty int64, splitCount int, stopLoss bool) int64 {
	if stopLoss {
		return heldQty
	}
	qty := heldQty / int64(splitCount)
	if qty < 1 {
		qty = 1
	}
	if qty > heldQty {
		qty = heldQty
	}
	return qty
}
