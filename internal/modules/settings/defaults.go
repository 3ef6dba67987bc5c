package settings

// Defaults is the built-in defaults table seeded on first start. Keys
// mirror the settings named throughout SPEC_FULL §4.8 and §4.1.
var Defaults = map[string]string{
	// Scoring thresholds (§4.8.1)
	"strategy_buy_threshold_max":      "30",
	"strategy_sell_threshold_min":     "70",
	"strategy_take_profit_pct":        "3.0",
	"strategy_stop_loss_pct":          "-8.0",
	"strategy_add_buy_rsi_limit":      "60.0",
	"strategy_add_buy_score_limit":    "55",
	"strategy_max_sector_ratio":       "0.30",
	"strategy_top10_bonus":            "10",
	"strategy_allow_extended_hours":   "1",

	// Sizing (§4.8.3)
	"strategy_per_trade_ratio": "0.05",
	"strategy_split_count":     "3",

	// Target cash ratio per market x regime (§4.8.2 rule 2)
	"strategy_target_cash_ratio_kr_bull":    "0.50",
	"strategy_target_cash_ratio_kr_neutral": "0.40",
	"strategy_target_cash_ratio_kr_bear":    "0.20",
	"strategy_target_cash_ratio_us_bull":    "0.50",
	"strategy_target_cash_ratio_us_neutral": "0.40",
	"strategy_target_cash_ratio_us_bear":    "0.20",

	// Master enable flag for the strategy engine's main loop (§4.8.4 step 1).
	"strategy_enabled": "0",

	// Tick strategy (§4.8.4 step 7)
	"strategy_tick_enabled":       "0",
	"strategy_tick_ticker":        "005930",
	"strategy_tick_cash_ratio":    "0.20",
	"strategy_tick_take_profit_pct": "1.0",
	"strategy_tick_stop_loss_pct":   "-5.0",
	"strategy_tick_add_pct":         "-3.0",
	"strategy_tick_entry_pct":       "-1.0",
	"strategy_tick_close_minutes":   "5",

	// DCF constants (§4.3)
	"dcf_risk_free_rate":   "0.04",
	"dcf_terminal_growth":  "0.03",
	"dcf_equity_risk_premium": "0.055",

	// Broker (§4.1, §9 open question on ord_dvsn)
	"broker_after_hours_ord_dvsn":     "81",
	"broker_rate_limit_delay_ms":      "550",
	"broker_after_hours_enabled":      "0",

	// Weekly rebalancing (§4.8.5)
	"strategy_sector_rebal_threshold": "0.05",

	// Sizing tiny-account guard (§4.8.3)
	"strategy_aggressive_buy_score_threshold": "85",

	// Scoring base and RSI/dip thresholds (§4.8.1)
	"strategy_base_score":    "50",
	"strategy_oversold_rsi":  "30.0",
	"strategy_overbought_rsi": "70.0",
	"strategy_dip_buy_pct":   "-5.0",

	// Portfolio sync (§4.7) — last-known USD cash, reused when the
	// overseas available-funds endpoint is unreachable.
	"portfolio_usd_cash_cache": "0",

	// USD/KRW exchange rate used to convert overseas holdings and order
	// sizing into KRW (§4.6, macro_service.get_exchange_rate equivalent).
	"macro_exchange_rate_usd_krw": "1400.0",
}

// Descriptions gives each default a human-readable note, following the
// teacher's settings repository shape.
var Descriptions = map[string]string{
	"strategy_enabled":                "master switch for the strategy engine's main loop",
	"strategy_buy_threshold_max":      "score <= this and no position triggers a BUY",
	"strategy_sell_threshold_min":     "score >= this and holding triggers a SELL",
	"strategy_take_profit_pct":        "unrealized gain percent that enters the profit-taking zone",
	"strategy_stop_loss_pct":          "unrealized loss percent that forces a full sell",
	"strategy_add_buy_rsi_limit":      "averaging-down is blocked when RSI is at or above this",
	"strategy_add_buy_score_limit":    "averaging-down is blocked when score exceeds this",
	"strategy_max_sector_ratio":       "hard cap on a single sector's share of total assets",
	"strategy_top10_bonus":            "score nudge toward BUY for top-10-by-market-cap symbols",
	"strategy_allow_extended_hours":   "1 enables extended-hours market windows",
	"strategy_per_trade_ratio":        "fraction of market total used as the base trade size",
	"strategy_split_count":            "number of tranches a full position is built/unwound in",
	"strategy_tick_enabled":           "enables the single-symbol intraday tick strategy",
	"strategy_tick_ticker":            "symbol traded by the tick strategy",
	"strategy_tick_cash_ratio":        "fraction of cash allotted to the tick strategy tranche",
	"strategy_tick_take_profit_pct":   "tick strategy exit gain threshold",
	"strategy_tick_stop_loss_pct":     "tick strategy exit loss threshold",
	"strategy_tick_add_pct":           "tick strategy add-on drawdown threshold",
	"strategy_tick_entry_pct":         "tick strategy re-entry markup over last sell price",
	"strategy_tick_close_minutes":     "minutes before close the tick strategy force-exits",
	"dcf_risk_free_rate":              "CAPM risk-free rate for DCF (not read; the DCF uses its compiled-in default)",
	"dcf_terminal_growth":             "terminal growth rate for DCF (not read; the DCF uses its compiled-in default)",
	"dcf_equity_risk_premium":         "CAPM equity risk premium for DCF (not read; the DCF uses its compiled-in constant)",
	"broker_after_hours_ord_dvsn":     "order division code for Korean after-hours orders (not read; the broker uses its compiled-in code)",
	"broker_rate_limit_delay_ms":      "minimum milliseconds between broker REST calls (not read; the broker uses its compiled-in delay)",
	"broker_after_hours_enabled":      "flag for Korean after-hours orders (not read; main always enables them)",
	"strategy_sector_rebal_threshold": "deviation from target sector-group weight that triggers rebalancing",
	"strategy_aggressive_buy_score_threshold": "score at/above which a zero-quantity buy rounds up to 1 share",
	"strategy_base_score":                     "starting score before signal deltas are applied",
	"strategy_oversold_rsi":                   "RSI at/below which the extreme-oversold band starts",
	"strategy_overbought_rsi":                 "RSI at/above which the extreme-overbought band starts",
	"strategy_dip_buy_pct":                    "intraday change percent at/below which the dip-buy delta fires",
	"portfolio_usd_cash_cache":                "last-known USD cash balance, reused when the overseas funds endpoint fails",
	"macro_exchange_rate_usd_krw":             "USD/KRW rate used to convert overseas holdings and order sizing into KRW",
}
