package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/arduino-trader/internal/database/repositories"
	"github.com/aristath/arduino-trader/internal/domain"
)

// runTickStrategy runs the single-symbol intraday tick strategy (spec.md
// §4.8.4 step 7): a tighter, higher-frequency companion to the main loop
// that trades one configured KR symbol off its own entry/exit bands
// instead of composite scoring. Grounded on the original's tick-mode
// branch in run_strategy, simplified to use the cached intraday low in
// place of a dedicated 1-hour rolling window.
func (e *Engine) runTickStrategy(ctx context.Context, userID string, state *repositories.StrategyState, holdings map[string]domain.PortfolioHolding, cash domain.CashBalance, exchangeRate float64) (bool, error) {
	if !e.settingsSvc.GetBool("strategy_tick_enabled", false) {
		return false, nil
	}

	symbol := e.settingsSvc.GetString("strategy_tick_ticker", "005930")
	st, ok := e.states.GetState(symbol)
	if !ok || !st.IsReady() {
		return false, nil
	}

	now := e.clock.Now()
	today := now.Format("2006-01-02")
	closeMinutes := e.settingsSvc.GetInt("strategy_tick_close_minutes", 5)
	marketOpen := MarketOpen(e.calendar, domain.MarketKR, now, false)
	nearClose := marketOpen && !e.calendar.IsOpen(domain.MarketKR, now.Add(time.Duration(closeMinutes)*time.Minute))

	holding, held := holdings[symbol]

	if !marketOpen {
		return false, nil
	}

	if held && nearClose {
		return e.tickSell(ctx, symbol, holding, state, today, "tick force-close")
	}

	takeProfitPct := e.settingsSvc.GetFloat("strategy_tick_take_profit_pct", 1.0)
	stopLossPct := e.settingsSvc.GetFloat("strategy_tick_stop_loss_pct", -5.0)
	addPct := e.settingsSvc.GetFloat("strategy_tick_add_pct", -3.0)
	entryPct := e.settingsSvc.GetFloat("strategy_tick_entry_pct", -1.0)
	cashRatio := e.settingsSvc.GetFloat("strategy_tick_cash_ratio", 0.20)

	if held {
		profitPct := 0.0
		if holding.AverageBuy > 0 {
			profitPct = (st.CurrentPrice - holding.AverageBuy) / holding.AverageBuy * 100
		}

		switch {
		case profitPct >= takeProfitPct:
			return e.tickSell(ctx, symbol, holding, state, today, "tick take-profit")
		case profitPct <= stopLossPct:
			return e.tickSell(ctx, symbol, holding, state, today, "tick stop-loss")
		case profitPct <= addPct && !state.TickSecondDone:
			ok, err := e.tickBuy(ctx, symbol, st.CurrentPrice, cash.KRW, cashRatio, "tick add")
			if ok {
				state.TickSecondDone = true
			}
			return ok, err
		}
		return false, nil
	}

	// No position: enter on a trailing-low dip, or a markup re-entry over
	// the last sell price once one has been recorded today.
	entryCeiling := st.LowPrice * (1 + entryPct/100)
	reentryCeiling := entryCeiling
	if state.TickLastSellDay == today && state.TickLastSell > 0 {
		reentryCeiling = state.TickLastSell * (1 + entryPct/100)
	}
	if st.CurrentPrice > entryCeiling && st.CurrentPrice > reentryCeiling {
		return false, nil
	}

	return e.tickBuy(ctx, symbol, st.CurrentPrice, cash.KRW, cashRatio, "tick entry")
}

func (e *Engine) tickBuy(ctx context.Context, symbol string, price, krwCash, cashRatio float64, reason string) (bool, error) {
	if price <= 0 || krwCash <= 0 {
		return false, nil
	}
	investKRW := krwCash * cashRatio / 2
	quantity := int64(investKRW / price)
	if quantity <= 0 {
		return false, nil
	}

	result, err := e.broker.SendDomesticOrder(ctx, symbol, quantity, price, domain.SideBuy)
	if err != nil || result.Status != "success" {
		return false, err
	}
	if err := e.recordTickTrade(symbol, domain.SideBuy, quantity, price, reason); err != nil {
		e.log.Warn().Err(err).Str("symbol", symbol).Msg("failed to record tick trade")
	}
	return true, nil
}

func (e *Engine) tickSell(ctx context.Context, symbol string, holding domain.PortfolioHolding, state *repositories.StrategyState, today, reason string) (bool, error) {
	if holding.Quantity <= 0 {
		return false, nil
	}
	result, err := e.broker.SendDomesticOrder(ctx, symbol, holding.Quantity, holding.CurrentPrice, domain.SideSell)
	if err != nil || result.Status != "success" {
		return false, err
	}
	if err := e.recordTickTrade(symbol, domain.SideSell, holding.Quantity, holding.CurrentPrice, reason); err != nil {
		e.log.Warn().Err(err).Str("symbol", symbol).Msg("failed to record tick trade")
	}
	state.TickLastSell = holding.CurrentPrice
	state.TickLastSellDay = today
	state.TickSecondDone = false
	return true, nil
}

func (e *Engine) recordTickTrade(symbol string, side domain.Side, qty int64, price float64, reason string) error {
	now := e.clock.Now()
	key := fmt.Sprintf("tick-%s-%s-%s-%d", symbol, side, now.Format("2006-01-02T15:04:05"), qty)
	return e.trades.Record(domain.TradeRecord{
		IdempotencyKey: key, Symbol: symbol, Market: domain.MarketKR, Side: side, Quantity: qty,
		Price: price, StrategyTag: "tick_strategy", ResultMessage: reason, ExecutedAt: now,
	})
}
