// Package strategy implements C8: composite scoring, gating, sizing, the
// main per-minute trading loop, the single-symbol tick strategy, and
// weekly sector-group rebalancing. Grounded throughout on
// original_source/services/strategy/trading_strategy_service.py, whose
// WEIGHTS table, gating order, and sizing formula are confirmed
// byte-for-byte against spec.md §4.8.
package strategy

import "github.com/aristath/arduino-trader/internal/domain"

// sectorGroupMap buckets GICS-like sector strings into the three groups
// that carry a target portfolio weight, following the original's
// SECTOR_GROUP_MAP (Korean sector labels included since broker-supplied
// sector names on KR instruments use them).
var sectorGroupMap = map[string]domain.SectorGroup{
	"Technology":                domain.SectorGroupTech,
	"IT":                        domain.SectorGroupTech,
	"기술":                        domain.SectorGroupTech,
	"Information Technology":    domain.SectorGroupTech,
	"Communication Services":    domain.SectorGroupTech,
	"통신서비스":                     domain.SectorGroupTech,
	"통신":                        domain.SectorGroupTech,
	"Consumer Staples":          domain.SectorGroupValue,
	"Consumer Defensive":        domain.SectorGroupValue,
	"필수소비재":                     domain.SectorGroupValue,
	"Healthcare":                domain.SectorGroupValue,
	"Health Care":               domain.SectorGroupValue,
	"헬스케어":                      domain.SectorGroupValue,
	"의료":                        domain.SectorGroupValue,
	"Utilities":                 domain.SectorGroupValue,
	"유틸리티":                      domain.SectorGroupValue,
	"Financials":                domain.SectorGroupFinancial,
	"Financial":                 domain.SectorGroupFinancial,
	"Financial Services":        domain.SectorGroupFinancial,
	"금융":                        domain.SectorGroupFinancial,
	"은행":                        domain.SectorGroupFinancial,
}

// sectorTargetWeight is each group's target share of the equity book.
var sectorTargetWeight = map[domain.SectorGroup]float64{
	domain.SectorGroupTech:      0.50,
	domain.SectorGroupValue:     0.30,
	domain.SectorGroupFinancial: 0.20,
}

// sectorGroupOf maps a raw sector label to its group, defaulting to
// "other" for anything unrecognized (commodities, industrials, etc. —
// the original leaves these outside the weighted book entirely).
func sectorGroupOf(sector string) domain.SectorGroup {
	if grp, ok := sectorGroupMap[sector]; ok {
		return grp
	}
	return domain.SectorGroupOther
}

// groupWeight is one sector group's current standing against its target.
type groupWeight struct {
	ValueKRW float64
	Weight   float64 // share of total equity book
	Target   float64
	Dev      float64 // Weight - Target
}

// sectorGroupWeights computes current/target/deviation for each group
// from the equity book only (cash excluded), converting US holdings to
// KRW via exchangeRate so the three groups compare on one scale.
func sectorGroupWeights(holdings []domain.PortfolioHolding, exchangeRate float64) map[domain.SectorGroup]groupWeight {
	totals := map[domain.SectorGroup]float64{}
	var total float64
	for _, h := range holdings {
		if h.Quantity <= 0 {
			continue
		}
		value := h.Value()
		if h.Market == domain.MarketUS {
			value *= exchangeRate
		}
		grp := sectorGroupOf(h.Sector)
		totals[grp] += value
		total += value
	}

	out := make(map[domain.SectorGroup]groupWeight, len(sectorTargetWeight))
	for grp, target := range sectorTargetWeight {
		value := totals[grp]
		var weight float64
		if total > 0 {
			weight = value / total
		}
		out[grp] = groupWeight{ValueKRW: value, Weight: weight, Target: target, Dev: weight - target}
	}
	return out
}
