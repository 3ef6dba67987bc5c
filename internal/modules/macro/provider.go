// Package macro implements C6: the market-regime classifier the
// strategy engine consults before sizing and gating trades. It pulls
// index levels through the broker's quote/daily-bar endpoints (the only
// data source left in this build — the teacher's secondary Yahoo
// vendor was dropped, see DESIGN.md), computes a bull/neutral/bear
// classification plus a numeric composite, and caches the result for
// about an hour.
//
// Grounded on original_source/stock_advisor/services/macro_service.py:
// the 200-day-MA bull/bear split, the VIX fear read, and the
// fear-greed-from-deviation proxy all carry over from there (that file
// also pulls FRED economic releases and sector-rotation ETFs; those are
// out of the trading hot loop per spec.md §4.6 and are not built here).
package macro

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/arduino-trader/internal/database/repositories"
	"github.com/aristath/arduino-trader/internal/domain"
)

const (
	cacheTTL = 1 * time.Hour

	// sp500Symbol/vixSymbol are the broker's quote codes for the index
	// and volatility feeds. The KIS-style quote endpoint treats major
	// indices as ordinary "symbols" under the US market code.
	sp500Symbol = "SPX"
	vixSymbol   = "VIX"

	// fallbackYield10Y is used when no live yield feed is wired; FRED
	// ingestion is a separate, non-hot-path sub-component per spec.md
	// §4.6 and isn't built here (see DESIGN.md).
	fallbackYield10Y = 4.5

	neutralBandPct = 2.0 // within +/-2% of MA200 counts as Neutral, not Bull/Bear
)

// Provider computes and caches the macro regime snapshot.
type Provider struct {
	broker domain.BrokerClient
	repo   *repositories.MarketRegimeRepository
	log    zerolog.Logger

	mu       sync.Mutex
	cached   domain.MarketRegimeSnapshot
	cachedAt time.Time
}

// New builds a macro provider.
func New(broker domain.BrokerClient, repo *repositories.MarketRegimeRepository, log zerolog.Logger) *Provider {
	return &Provider{
		broker: broker,
		repo:   repo,
		log:    log.With().Str("component", "macro").Logger(),
	}
}

// GetRegime returns the current regime snapshot, recomputing it only
// when the cached value is older than cacheTTL.
func (p *Provider) GetRegime(ctx context.Context) (domain.MarketRegimeSnapshot, error) {
	p.mu.Lock()
	if time.Since(p.cachedAt) < cacheTTL && p.cached.Date.Unix() > 0 {
		snap := p.cached
		p.mu.Unlock()
		return snap, nil
	}
	p.mu.Unlock()

	snap, err := p.compute(ctx)
	if err != nil {
		if last, ok, lerr := p.repo.Latest(); lerr == nil && ok {
			p.log.Warn().Err(err).Msg("macro compute failed, serving last persisted regime")
			return last, nil
		}
		return domain.MarketRegimeSnapshot{}, err
	}

	p.mu.Lock()
	p.cached = snap
	p.cachedAt = time.Now()
	p.mu.Unlock()

	if err := p.repo.Upsert(snap); err != nil {
		p.log.Warn().Err(err).Msg("failed to persist regime snapshot")
	}
	return snap, nil
}

func (p *Provider) compute(ctx context.Context) (domain.MarketRegimeSnapshot, error) {
	bars, err := p.broker.GetDailyBars(ctx, sp500Symbol, domain.MarketUS, 220)
	if err != nil || len(bars) < 200 {
		return domain.MarketRegimeSnapshot{}, fmt.Errorf("fetch S&P 500 bars: %w", err)
	}

	current := bars[len(bars)-1].Close
	ma200 := simpleMovingAverage(bars, 200)
	ma125 := simpleMovingAverage(bars, 125)
	devPct := (current - ma200) / ma200 * 100

	var vix float64
	if q, qerr := p.broker.GetQuote(ctx, vixSymbol, domain.MarketUS); qerr == nil {
		vix = q.CurrentPrice
	} else {
		p.log.Warn().Err(qerr).Msg("VIX quote fetch failed, using neutral fallback")
		vix = 20.0
	}

	fearGreed := fearGreedProxy(current, ma125)
	yield10Y := fallbackYield10Y

	components := map[string]float64{
		"deviation_ma200": devPct,
		"vix":             vixComponent(vix),
		"fear_greed":      (fearGreed - 50) / 5,
		"yield":           yieldComponent(yield10Y),
	}

	score := 50.0
	for _, v := range components {
		score += v
	}
	score = clamp(score, 0, 100)

	status := domain.RegimeNeutral
	switch {
	case devPct > neutralBandPct:
		status = domain.RegimeBull
	case devPct < -neutralBandPct:
		status = domain.RegimeBear
	}

	return domain.MarketRegimeSnapshot{
		Date:            time.Now(),
		Status:          status,
		Score:           score,
		VIX:             vix,
		FearGreed:       fearGreed,
		Yield10Y:        yield10Y,
		SP500Price:      current,
		SP500MA200:      ma200,
		PercentDevMA200: devPct,
		Components:      components,
	}, nil
}

func simpleMovingAverage(bars []domain.DailyBar, window int) float64 {
	if len(bars) < window {
		window = len(bars)
	}
	start := len(bars) - window
	var sum float64
	for _, b := range bars[start:] {
		sum += b.Close
	}
	return sum / float64(window)
}

// fearGreedProxy estimates sentiment (0-100) from price deviation off a
// 125-day average in lieu of a live sentiment feed — documented in
// DESIGN.md as a placeholder, same approximation the Python original
// falls back to when its external fear-greed API is unavailable.
func fearGreedProxy(price, ma125 float64) float64 {
	if ma125 == 0 {
		return 50
	}
	fg := 50 + (price-ma125)/ma125*500
	return clamp(fg, 0, 100)
}

func vixComponent(vix float64) float64 {
	switch {
	case vix < 15:
		return 10
	case vix < 20:
		return 5
	case vix < 25:
		return 0
	case vix < 30:
		return -10
	default:
		return -20
	}
}

func yieldComponent(yield10Y float64) float64 {
	switch {
	case yield10Y > 4.5:
		return -5
	case yield10Y < 3.5:
		return 5
	default:
		return 0
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
