package strategy

import "github.com/aristath/arduino-trader/internal/domain"

// Weight deltas, hardcoded exactly as the original's WEIGHTS dict (sign
// convention: negative pushes toward BUY, positive toward SELL). Only the
// base-score, RSI bands and dip threshold are settings-tunable — these
// magnitudes are not, matching the original's class-level constant.
const (
	weightDipBuy5Pct       = -15
	weightSurgeSell5Pct    = 15
	weightSupportEMA       = -10
	weightAddPositionLoss  = -10
	weightPanicMarketBuy   = -30
	weightProfitTakeTarget = 30
	weightBullMarketSector = -15
	weightBearMarketRisk   = 10
	weightCashPenalty      = 15
	weightDCFUndervalueHi  = -25
	weightDCFUndervalueMid = -15
	weightDCFUndervalueLow = -10
	weightDCFFairValue     = -5
	weightDCFOvervalueLow  = 10
	weightDCFOvervalueHigh = 20
	weightTargetPriceHit   = 30
	weightSectorDeviation  = 10
)

// Thresholds bundles the settings-tunable scoring inputs so Score doesn't
// reach into the settings store directly — keeps the function pure and
// table-driven for tests.
type Thresholds struct {
	BaseScore     int
	OversoldRSI   float64
	OverboughtRSI float64
	DipBuyPct     float64
	TakeProfitPct float64
	StopLossPct   float64
	Top10Bonus    int
	SectorRebalThreshold float64
}

// Input is everything Score needs for one ticker, gathered by the engine
// from the state cache, the holding snapshot, and the macro/sector context.
type Input struct {
	Symbol          string
	State           *domain.TickerState
	Holding         *domain.PortfolioHolding
	Regime          domain.Regime
	VIX             float64
	FearGreed       float64
	CashRatio       float64
	TargetCashRatio float64
	IsTop10         bool
	UserOverride    int
	SectorDev       float64 // 0 when the ticker's sector maps to "other"
	PanicLocked     bool
	Thresholds      Thresholds
}

// Score computes the composite integer score for one ticker, following
// the original's calculate_score: base 50, additive signal deltas,
// clamped to [0,100], with an immediate forced-100 on stop-loss.
func Score(in Input) domain.ScoreResult {
	st := in.State
	if st == nil || st.CurrentPrice <= 0 {
		return domain.ScoreResult{Symbol: in.Symbol, Score: 0, Reasons: []string{"no price data"}}
	}

	profitPct := 0.0
	if in.Holding != nil && in.Holding.AverageBuy > 0 {
		ref := in.Holding.CurrentPrice
		if ref <= 0 {
			ref = st.CurrentPrice
		}
		profitPct = (ref - in.Holding.AverageBuy) / in.Holding.AverageBuy * 100
	}

	if in.PanicLocked {
		if st.RSI < in.Thresholds.OversoldRSI {
			return domain.ScoreResult{Symbol: in.Symbol, Score: 20, Reasons: []string{"panic lock: awaiting recovery"}}
		}
		return domain.ScoreResult{Symbol: in.Symbol, Score: 50, Reasons: []string{"panic lock active"}}
	}

	score := in.Thresholds.BaseScore
	var reasons []string

	d, r := scoreTechnical(st, in.Thresholds)
	score += d
	reasons = append(reasons, r...)

	d, r, forcedSell := scorePortfolio(profitPct, in.Holding != nil, in.Thresholds)
	if forcedSell {
		return domain.ScoreResult{Symbol: in.Symbol, Score: 100, ForcedSell: true, Reasons: r}
	}
	score += d
	reasons = append(reasons, r...)

	d, r = scoreMarketContext(in.VIX, in.FearGreed, in.Regime)
	score += d
	reasons = append(reasons, r...)

	d, r = scoreTargetPrices(st)
	score += d
	reasons = append(reasons, r...)

	d, r = scoreBonuses(in.IsTop10, in.UserOverride, in.SectorDev, in.Thresholds)
	score += d
	reasons = append(reasons, r...)

	if in.CashRatio < in.TargetCashRatio && score > 50 {
		score += weightCashPenalty
		reasons = append(reasons, "cash shortage")
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return domain.ScoreResult{Symbol: in.Symbol, Score: score, Reasons: reasons}
}

// scoreTechnical covers RSI bands, intraday dip/surge, DCF valuation, and
// EMA200 support.
func scoreTechnical(st *domain.TickerState, th Thresholds) (int, []string) {
	var delta int
	var reasons []string

	rsi := st.RSI
	switch {
	case rsi <= th.OversoldRSI:
		rsiScore := -(20 - (rsi/th.OversoldRSI)*10)
		delta += int(rsiScore)
		reasons = append(reasons, "rsi extreme oversold")
	case rsi < 50:
		rsiScore := -(10 - ((rsi - th.OversoldRSI) / (50 - th.OversoldRSI) * 10))
		if rsiScore <= -5 {
			delta += int(rsiScore)
			reasons = append(reasons, "rsi oversold")
		}
	case rsi <= th.OverboughtRSI:
		rsiScore := (rsi - 50) / (th.OverboughtRSI - 50) * 10
		if rsiScore >= 5 {
			delta += int(rsiScore)
			reasons = append(reasons, "rsi overbought")
		}
	default:
		rsiScore := 10 + (rsi-th.OverboughtRSI)/(100-th.OverboughtRSI)*10
		delta += int(rsiScore)
		reasons = append(reasons, "rsi extreme overbought")
	}

	switch {
	case st.ChangeRate <= th.DipBuyPct:
		delta += weightDipBuy5Pct
		reasons = append(reasons, "intraday dip")
	case st.ChangeRate >= 5.0:
		delta += weightSurgeSell5Pct
		reasons = append(reasons, "intraday surge")
	}

	if st.DCFValue > 0 && st.CurrentPrice > 0 {
		undervaluePct := (st.DCFValue - st.CurrentPrice) / st.CurrentPrice * 100
		switch {
		case undervaluePct >= 20:
			delta += weightDCFUndervalueHi
			reasons = append(reasons, "dcf deep undervalued")
		case undervaluePct >= 10:
			delta += weightDCFUndervalueMid
			reasons = append(reasons, "dcf undervalued")
		case undervaluePct >= 5:
			delta += weightDCFUndervalueLow
			reasons = append(reasons, "dcf mildly undervalued")
		case undervaluePct >= -5:
			delta += weightDCFFairValue
			reasons = append(reasons, "dcf fair value")
		case undervaluePct >= -15:
			delta += weightDCFOvervalueLow
			reasons = append(reasons, "dcf overvalued")
		default:
			delta += weightDCFOvervalueHigh
			reasons = append(reasons, "dcf deep overvalued")
		}
	}

	if ema200, ok := st.EMA[200]; ok && ema200 > 0 && st.CurrentPrice >= ema200 && st.CurrentPrice <= ema200*1.02 {
		delta += weightSupportEMA
		reasons = append(reasons, "ema200 support")
	}

	return delta, reasons
}

// scorePortfolio covers profit-taking, averaging-down, and the forced
// stop-loss sell. forcedSell short-circuits the rest of Score with
// score=100 when true, per spec.md's "must-sell" path.
func scorePortfolio(profitPct float64, holding bool, th Thresholds) (delta int, reasons []string, forcedSell bool) {
	if !holding {
		return 0, nil, false
	}
	switch {
	case profitPct >= th.TakeProfitPct:
		return weightProfitTakeTarget, []string{"profit-taking zone"}, false
	case profitPct <= -5.0 && profitPct > th.StopLossPct:
		return weightAddPositionLoss, []string{"averaging-down zone"}, false
	case profitPct <= th.StopLossPct:
		return 0, []string{"stop-loss reached"}, true
	}
	return 0, nil, false
}

// scoreMarketContext covers the VIX/fear-greed panic-vs-complacent bands
// and the bull/bear regime nudge.
func scoreMarketContext(vix, fearGreed float64, regime domain.Regime) (int, []string) {
	var delta int
	var reasons []string

	switch {
	case vix >= 25 || fearGreed <= 30:
		delta += weightPanicMarketBuy
		reasons = append(reasons, "panic market")
	case vix <= 15 || fearGreed >= 70:
		delta += weightProfitTakeTarget / 2
		reasons = append(reasons, "complacent market")
	}

	switch regime {
	case domain.RegimeBull:
		delta += weightBullMarketSector
		reasons = append(reasons, "bull regime")
	case domain.RegimeBear:
		delta += weightBearMarketRisk
		reasons = append(reasons, "bear regime")
	}
	return delta, reasons
}

// scoreTargetPrices covers the user-set target buy/sell price hits.
func scoreTargetPrices(st *domain.TickerState) (int, []string) {
	var delta int
	var reasons []string
	if st.TargetBuyPrice > 0 && st.CurrentPrice <= st.TargetBuyPrice {
		delta -= weightTargetPriceHit
		reasons = append(reasons, "target buy price hit")
	}
	if st.TargetSellPrice > 0 && st.CurrentPrice >= st.TargetSellPrice {
		delta += weightTargetPriceHit
		reasons = append(reasons, "target sell price hit")
	}
	return delta, reasons
}

// scoreBonuses covers the top-10-by-market-cap nudge, the per-symbol user
// override, and the sector-group deviation nudge.
func scoreBonuses(isTop10 bool, userOverride int, sectorDev float64, th Thresholds) (int, []string) {
	var delta int
	var reasons []string

	if th.Top10Bonus > 0 && isTop10 {
		delta -= th.Top10Bonus
		reasons = append(reasons, "top-10 market cap")
	}
	if userOverride != 0 {
		delta += userOverride
		reasons = append(reasons, "user override")
	}

	switch {
	case sectorDev < -th.SectorRebalThreshold:
		delta -= weightSectorDeviation
		reasons = append(reasons, "sector underweight")
	case sectorDev > th.SectorRebalThreshold:
		delta += weightSectorDeviation
		reasons = append(reasons, "sector overweight")
	}
	return delta, reasons
}
