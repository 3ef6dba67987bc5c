package scheduler

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/arduino-trader/internal/database/repositories"
	"github.com/aristath/arduino-trader/internal/domain"
	"github.com/aristath/arduino-trader/pkg/formulas"
)

// MarketDataJob refreshes the financials table for every active
// instrument once a day: a fresh daily-bar history and quote drive
// RSI/EMA/52-week-range recomputation, and any operator-supplied DCF
// override is re-priced into a fair value. Grounded on the
// bars-then-indicators pipeline C4's own warm-up runs
// (`tickerstate.Cache.warmUp`), now swept nightly across the whole
// universe instead of lazily per symbol on first sight.
type MarketDataJob struct {
	log          zerolog.Logger
	broker       domain.BrokerClient
	instruments  *repositories.InstrumentRepository
	financials   *repositories.FinancialRepository
	dcfOverrides *repositories.DCFOverrideRepository
	clock        domain.Clock
}

func NewMarketDataJob(
	broker domain.BrokerClient,
	instruments *repositories.InstrumentRepository,
	financials *repositories.FinancialRepository,
	dcfOverrides *repositories.DCFOverrideRepository,
	clock domain.Clock,
	log zerolog.Logger,
) *MarketDataJob {
	return &MarketDataJob{
		log:          log.With().Str("job", "market_data_sync").Logger(),
		broker:       broker,
		instruments:  instruments,
		financials:   financials,
		dcfOverrides: dcfOverrides,
		clock:        clock,
	}
}

func (j *MarketDataJob) Name() string { return "market_data_sync" }

func (j *MarketDataJob) Run() error {
	ctx := context.Background()
	instruments, err := j.instruments.ListActive("")
	if err != nil {
		return fmt.Errorf("list active instruments: %w", err)
	}

	var failures int
	for _, inst := range instruments {
		if err := j.syncOne(ctx, inst); err != nil {
			failures++
			j.log.Warn().Err(err).Str("symbol", inst.Symbol).Msg("market data sync failed for instrument")
		}
	}
	j.log.Info().Int("instruments", len(instruments)).Int("failures", failures).Msg("market data sync complete")
	return nil
}

func (j *MarketDataJob) syncOne(ctx context.Context, inst domain.Instrument) error {
	bars, err := j.broker.GetDailyBars(ctx, inst.Symbol, inst.Market, 300)
	if err != nil {
		return fmt.Errorf("daily bars: %w", err)
	}
	if len(bars) == 0 {
		return fmt.Errorf("no daily bars returned")
	}
	quote, err := j.broker.GetQuote(ctx, inst.Symbol, inst.Market)
	if err != nil {
		return fmt.Errorf("quote: %w", err)
	}

	closes := make([]float64, len(bars))
	high52w, low52w := bars[0].High, bars[0].Low
	for i, b := range bars {
		closes[i] = b.Close
		if b.High > high52w {
			high52w = b.High
		}
		if b.Low < low52w {
			low52w = b.Low
		}
	}

	ema := formulas.CalculateEMASet(closes)
	var rsi float64
	if v := formulas.CalculateRSI(closes, 14); v != nil {
		rsi = *v
	}

	snap := domain.FinancialSnapshot{
		InstrumentID: inst.ID,
		Symbol:       inst.Symbol,
		BaseDate:     j.clock.Now(),
		CurrentPrice: quote.CurrentPrice,
		High52w:      high52w,
		Low52w:       low52w,
		Volume:       quote.Volume,
		RSI:          rsi,
		EMA:          ema,
		DCFValue:     j.resolveDCFValue(inst.Symbol),
	}
	if err := j.financials.Insert(snap); err != nil {
		return fmt.Errorf("insert financial snapshot: %w", err)
	}
	return nil
}

// resolveDCFValue prices a symbol's DCF override, if one exists. The
// broker's quote/bars endpoints carry no fundamentals (FCF, beta,
// growth), so a fair value only materializes once an operator has
// recorded one via dcf_overrides; otherwise the snapshot's DCFValue
// stays 0 and scoring's DCF component is skipped (scoring.go treats
// DCFValue<=0 as "no opinion").
func (j *MarketDataJob) resolveDCFValue(symbol string) float64 {
	override, ok, err := j.dcfOverrides.Get(symbol)
	if err != nil || !ok {
		return 0
	}
	if override.FairValue != nil {
		return *override.FairValue
	}
	if override.FCFPerShare == nil || override.GrowthRate == nil {
		return 0
	}

	in := formulas.DCFInput{
		FCFPerShare: *override.FCFPerShare,
		GrowthRate:  *override.GrowthRate,
	}
	if override.Beta != nil {
		in.Beta = *override.Beta
	}
	result, err := formulas.CalculateFairValue(in)
	if err != nil {
		return 0
	}
	return result.Value
}
