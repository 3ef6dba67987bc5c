// Package tickerstate implements C4: the in-memory ticker-state cache
// that the websocket feed (C5) writes into and the strategy engine (C8)
// reads from. Warm-up, pruning, and the msgpack snapshot used for a
// fast warm restart all live here.
package tickerstate

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/arduino-trader/internal/database/repositories"
	"github.com/aristath/arduino-trader/internal/domain"
	"github.com/aristath/arduino-trader/pkg/formulas"
)

// MarketHours reports whether a market is currently open, used to skip
// warm-up for instruments that cannot currently be traded.
type MarketHours interface {
	IsOpen(market domain.Market, at time.Time) bool
}

// Cache is the C4 ticker-state store.
type Cache struct {
	mu     sync.RWMutex
	states map[string]*domain.TickerState
	market map[string]domain.Market

	broker  domain.BrokerClient
	fin     *repositories.FinancialRepository
	hours   MarketHours
	log     zerolog.Logger
	warmSem chan struct{} // width-1 semaphore, respects broker TPS

	tierHigh, tierLow []string
}

// New builds an empty cache.
func New(broker domain.BrokerClient, fin *repositories.FinancialRepository, hours MarketHours, log zerolog.Logger) *Cache {
	return &Cache{
		states:  make(map[string]*domain.TickerState),
		market:  make(map[string]domain.Market),
		broker:  broker,
		fin:     fin,
		hours:   hours,
		log:     log.With().Str("component", "tickerstate").Logger(),
		warmSem: make(chan struct{}, 1),
	}
}

// NormalizeSymbol zero-pads Korean tickers to 6 digits; US symbols pass
// through unchanged.
func NormalizeSymbol(symbol string, market domain.Market) string {
	if market != domain.MarketKR {
		return symbol
	}
	for len(symbol) < 6 {
		symbol = "0" + symbol
	}
	return symbol
}

// GetState returns the current state for a symbol, if tracked.
func (c *Cache) GetState(symbol string) (*domain.TickerState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.states[symbol]
	return s, ok
}

// GetAllStates returns a shallow copy of the state map.
func (c *Cache) GetAllStates() map[string]*domain.TickerState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]*domain.TickerState, len(c.states))
	for k, v := range c.states {
		out[k] = v
	}
	return out
}

// RegisterBatch warms up a set of symbols. Symbols belonging to a
// currently-closed market are skipped unless they are in held (held
// positions stay warm across sessions).
func (c *Cache) RegisterBatch(ctx context.Context, symbols []string, markets map[string]domain.Market, held map[string]struct{}) {
	latest, err := c.fin.LatestForAll()
	if err != nil {
		c.log.Warn().Err(err).Msg("failed to load latest financials for warm-up fast path")
		latest = map[string]domain.FinancialSnapshot{}
	}

	for _, raw := range symbols {
		market := markets[raw]
		symbol := NormalizeSymbol(raw, market)

		if c.hours != nil && !c.hours.IsOpen(market, time.Now()) {
			if _, isHeld := held[symbol]; !isHeld {
				continue
			}
		}

		c.mu.Lock()
		c.market[symbol] = market
		c.mu.Unlock()

		if snap, ok := latest[symbol]; ok && time.Since(snap.BaseDate) < 24*time.Hour {
			state := stateFromSnapshot(snap)
			if state.IsReady() {
				c.mu.Lock()
				c.states[symbol] = state
				c.mu.Unlock()
				continue
			}
		}

		go c.warmUp(ctx, symbol, market)
	}
}

func stateFromSnapshot(snap domain.FinancialSnapshot) *domain.TickerState {
	return &domain.TickerState{
		Symbol:          snap.Symbol,
		CurrentPrice:    snap.CurrentPrice,
		EMA:             snap.EMA,
		RSI:             snap.RSI,
		DCFValue:        snap.DCFValue,
		TargetBuyPrice:  snap.EMA[200] * 1.01,
		TargetSellPrice: snap.EMA[200] * 1.15,
		UpdatedAt:       snap.BaseDate,
	}
}

// warmUp performs a full REST-backed warm-up for one symbol, bounded by
// a width-1 semaphore so it never competes with the strategy loop for
// broker TPS budget.
func (c *Cache) warmUp(ctx context.Context, symbol string, market domain.Market) {
	select {
	case c.warmSem <- struct{}{}:
		defer func() { <-c.warmSem }()
	case <-ctx.Done():
		return
	}

	bars, err := c.broker.GetDailyBars(ctx, symbol, market, 300)
	if err != nil || len(bars) == 0 {
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("warm-up daily bars fetch failed")
		return
	}
	quote, err := c.broker.GetQuote(ctx, symbol, market)
	if err != nil {
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("warm-up quote fetch failed")
		return
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	ema := formulas.CalculateEMASet(closes)
	var rsi float64
	if v := formulas.CalculateRSI(closes, 14); v != nil {
		rsi = *v
	}
	bb := formulas.CalculateBollingerBands(closes, 20, 2)

	state := &domain.TickerState{
		Symbol:       symbol,
		Name:         symbol,
		CurrentPrice: quote.CurrentPrice,
		OpenPrice:    quote.Open,
		HighPrice:    quote.High,
		LowPrice:     quote.Low,
		ChangeRate:   quote.ChangeRate,
		CumulativeVol: quote.Volume,
		EMA:          ema,
		RSI:          rsi,
		UpdatedAt:    time.Now(),
	}
	if bb != nil {
		state.BollingerUpper = bb.Upper
		state.BollingerMiddle = bb.Middle
		state.BollingerLower = bb.Lower
	}
	if ema200, ok := ema[200]; ok {
		state.TargetBuyPrice = ema200 * 1.01
		state.TargetSellPrice = ema200 * 1.15
	}

	c.mu.Lock()
	c.states[symbol] = state
	c.mu.Unlock()

	c.persistSnapshot(symbol, state)
}

func (c *Cache) persistSnapshot(symbol string, state *domain.TickerState) {
	snap := domain.FinancialSnapshot{
		Symbol:       symbol,
		BaseDate:     time.Now(),
		CurrentPrice: state.CurrentPrice,
		RSI:          state.RSI,
		EMA:          state.EMA,
		DCFValue:     state.DCFValue,
	}
	if err := c.fin.Insert(snap); err != nil {
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("failed to persist warm-up snapshot")
	}
}

// OnRealtimeData applies a live tick from C5, updating price fields and
// incrementally repricing every EMA span with a single fast step rather
// than recomputing over history.
func (c *Cache) OnRealtimeData(symbol string, price, open, high, low, changeRate, cumulativeVol float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, ok := c.states[symbol]
	if !ok {
		state = &domain.TickerState{Symbol: symbol, EMA: map[int]float64{}}
		c.states[symbol] = state
	}

	state.CurrentPrice = price
	state.OpenPrice = open
	state.HighPrice = high
	state.LowPrice = low
	state.ChangeRate = changeRate
	state.CumulativeVol = cumulativeVol
	state.UpdatedAt = time.Now()

	for span, prev := range state.EMA {
		state.EMA[span] = formulas.NextEMA(prev, price, span)
	}
	if ema200, ok := state.EMA[200]; ok {
		state.TargetBuyPrice = ema200 * 1.01
		state.TargetSellPrice = ema200 * 1.15
	}
}

// UpdatePriceFromSync applies a price observed during a non-websocket
// sync (e.g. a broker balance poll) without touching EMAs.
func (c *Cache) UpdatePriceFromSync(symbol string, price float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if state, ok := c.states[symbol]; ok {
		state.CurrentPrice = price
		state.UpdatedAt = time.Now()
	}
}

// PruneStates removes states for symbols no longer in the universe and
// not currently held.
func (c *Cache) PruneStates(keep map[string]struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for symbol := range c.states {
		if _, ok := keep[symbol]; !ok {
			delete(c.states, symbol)
			delete(c.market, symbol)
		}
	}
}

// SetTiers records coarse subscribe-priority tiers. Reserved for when
// C5 needs to decide subscribe order under TPS pressure; the current
// single-connection feed subscribes everything, so this only tracks
// tier membership for a future prioritization pass.
func (c *Cache) SetTiers(high, low []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tierHigh = high
	c.tierLow = low
}

// MarketFor returns the market a tracked symbol belongs to.
func (c *Cache) MarketFor(symbol string) (domain.Market, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.market[symbol]
	return m, ok
}
