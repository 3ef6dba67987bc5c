package strategy

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aristath/arduino-trader/internal/domain"
	"github.com/aristath/arduino-trader/internal/modules/portfolio"
)

// RebalanceSectors runs the weekly sector-group rebalancing pass (spec.md
// §4.8.5): groups more than the configured threshold over their target
// weight sell their most profitable non-losing holding; groups under
// target buy the strongest-scoring uncovered candidate in that group.
// Grounded on the original's weekly cron branch, generalized to run one
// sell and one buy per deviating group instead of liquidating in bulk.
func (e *Engine) RebalanceSectors(ctx context.Context, userID string) error {
	if !e.settingsSvc.GetBool("strategy_enabled", false) {
		return nil
	}

	today := e.clock.Now().Format("2006-01-02")
	lastRun := e.settingsSvc.GetString("strategy_last_rebalance_date", "")
	if lastRun != "" {
		if last, err := time.Parse("2006-01-02", lastRun); err == nil && e.clock.Now().Sub(last) < 7*24*time.Hour {
			return nil
		}
	}

	holdings, cash, err := e.portfolioSvc.SyncWithBroker(ctx)
	if err != nil {
		return fmt.Errorf("sync portfolio for rebalance: %w", err)
	}
	exchangeRate := e.exchangeRate()
	weights := sectorGroupWeights(holdings, exchangeRate)
	th := e.thresholds()

	holdingBySymbol := make(map[string]domain.PortfolioHolding, len(holdings))
	for _, h := range holdings {
		holdingBySymbol[h.Symbol] = h
	}

	regime, err := e.macroSvc.GetRegime(ctx)
	if err != nil {
		regime = domain.MarketRegimeSnapshot{Status: domain.RegimeNeutral, VIX: 20, FearGreed: 50}
	}

	for group, gw := range weights {
		switch {
		case gw.Dev > th.SectorRebalThreshold:
			if err := e.rebalanceSell(ctx, group, holdings); err != nil {
				e.log.Warn().Err(err).Str("group", string(group)).Msg("rebalance sell failed")
			}
		case gw.Dev < -th.SectorRebalThreshold:
			if err := e.rebalanceBuy(ctx, group, holdingBySymbol, cash, exchangeRate, regime, th); err != nil {
				e.log.Warn().Err(err).Str("group", string(group)).Msg("rebalance buy failed")
			}
		}
	}

	if err := e.settingsSvc.SetString("strategy_last_rebalance_date", today); err != nil {
		e.log.Warn().Err(err).Msg("failed to record rebalance date")
	}
	return nil
}

// rebalanceSell sells the most profitable non-losing holding in an
// over-target sector group, trimming exposure without realizing a loss.
func (e *Engine) rebalanceSell(ctx context.Context, group domain.SectorGroup, holdings []domain.PortfolioHolding) error {
	var best *domain.PortfolioHolding
	var bestProfitPct float64
	for i := range holdings {
		h := holdings[i]
		if h.Quantity <= 0 || sectorGroupOf(h.Sector) != group || h.AverageBuy <= 0 {
			continue
		}
		profitPct := (h.CurrentPrice - h.AverageBuy) / h.AverageBuy * 100
		if profitPct < 0 {
			continue
		}
		if best == nil || profitPct > bestProfitPct {
			best = &h
			bestProfitPct = profitPct
		}
	}
	if best == nil {
		return nil
	}

	splitCount := e.settingsSvc.GetInt("strategy_split_count", 3)
	qty := SellQuantity(best.Quantity, splitCount, false)
	result, err := e.sendOrder(ctx, best.Symbol, best.Market, qty, best.CurrentPrice, domain.SideSell)
	if err != nil || result.Status != "success" {
		return err
	}
	return e.recordTrade(best.Symbol, best.Market, domain.SideSell, qty, best.CurrentPrice, "sector rebalance trim")
}

// rebalanceBuy scores every uncovered (no current holding) ticker in the
// under-target group and buys the strongest candidate.
func (e *Engine) rebalanceBuy(ctx context.Context, group domain.SectorGroup, holdings map[string]domain.PortfolioHolding, cash domain.CashBalance, exchangeRate float64, regime domain.MarketRegimeSnapshot, th Thresholds) error {
	type candidate struct {
		symbol string
		market domain.Market
		score  domain.ScoreResult
		price  float64
	}
	var candidates []candidate

	for symbol, st := range e.states.GetAllStates() {
		if _, held := holdings[symbol]; held {
			continue
		}
		if !st.IsReady() {
			continue
		}
		market, ok := e.states.MarketFor(symbol)
		if !ok {
			continue
		}
		sector := e.sectorOf(symbol, market, nil)
		if sectorGroupOf(sector) != group {
			continue
		}
		result := Score(Input{
			Symbol: symbol, State: st, Regime: regime.Status, VIX: regime.VIX,
			FearGreed: regime.FearGreed, TargetCashRatio: 1, Thresholds: th,
		})
		candidates = append(candidates, candidate{symbol: symbol, market: market, score: result, price: st.CurrentPrice})
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score.Score < candidates[j].score.Score })
	pick := candidates[0]

	holdingsList := make([]domain.PortfolioHolding, 0, len(holdings))
	for _, h := range holdings {
		holdingsList = append(holdingsList, h)
	}
	krTotal, usTotal := portfolio.MarketTotals(holdingsList, cash)
	totalAssetsKRW := krTotal + usTotal*exchangeRate

	marketTotal, marketCash := cash.KRW, cash.KRW
	unitPriceKRW := pick.price
	if pick.market == domain.MarketUS {
		marketTotal, marketCash = cash.USD*exchangeRate, cash.USD*exchangeRate
		unitPriceKRW = pick.price * exchangeRate
	}

	params := SizingParams{
		PerTradeRatio:               e.settingsSvc.GetFloat("strategy_per_trade_ratio", 0.05),
		SplitCount:                  e.settingsSvc.GetInt("strategy_split_count", 3),
		AggressiveBuyScoreThreshold: e.settingsSvc.GetInt("strategy_aggressive_buy_score_threshold", 85),
	}
	quantity, _ := BuyQuantity(pick.score.Score, marketTotal, totalAssetsKRW, marketCash, unitPriceKRW, params)
	if quantity <= 0 {
		return nil
	}

	result, err := e.sendOrder(ctx, pick.symbol, pick.market, quantity, pick.price, domain.SideBuy)
	if err != nil || result.Status != "success" {
		return err
	}
	return e.recordTrade(pick.symbol, pick.market, domain.SideBuy, quantity, pick.price, "sector rebalance fill")
}
