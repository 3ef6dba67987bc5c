// Package portfolio implements C7: syncing the two independent KR/US
// sub-portfolios with the broker and persisting the result so the
// strategy engine always has a last-known-good snapshot even when the
// broker is unreachable.
//
// Grounded on trader-go's portfolio.Service (constructor-injected
// repositories, zerolog.With().Str("service", ...), "failed to X: %w"
// error wrapping) — narrowed from that file's country/industry
// attribution reporting down to this spec's sync-and-persist contract,
// since SPEC_FULL's portfolio surface is feeding the strategy engine,
// not rendering a dashboard.
package portfolio

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/arduino-trader/internal/database/repositories"
	"github.com/aristath/arduino-trader/internal/domain"
	"github.com/aristath/arduino-trader/internal/modules/settings"
)

// Service syncs holdings and cash balances from the broker (C1) and
// persists them through HoldingRepository (C2).
type Service struct {
	broker   domain.BrokerClient
	holdings *repositories.HoldingRepository
	settings *settings.Store
	log      zerolog.Logger
}

// New builds the portfolio service.
func New(broker domain.BrokerClient, holdings *repositories.HoldingRepository, store *settings.Store, log zerolog.Logger) *Service {
	return &Service{
		broker:   broker,
		holdings: holdings,
		settings: store,
		log:      log.With().Str("service", "portfolio").Logger(),
	}
}

// SyncWithBroker fetches domestic and overseas balances, merges them
// into one holdings snapshot, and atomically replaces the persisted
// table. On total broker failure it returns the last persisted
// holdings instead of propagating the error, per spec.md §4.7.
func (s *Service) SyncWithBroker(ctx context.Context) ([]domain.PortfolioHolding, domain.CashBalance, error) {
	krHoldings, krCash, krErr := s.broker.GetDomesticBalance(ctx)
	usHoldings, usErr := s.broker.GetOverseasBalance(ctx)

	if krErr != nil && usErr != nil {
		s.log.Warn().Err(krErr).Err(usErr).Msg("broker balance fetch failed on both markets, serving last persisted holdings")
		last, err := s.holdings.GetAll()
		if err != nil {
			return nil, domain.CashBalance{}, fmt.Errorf("load last persisted holdings: %w", err)
		}
		return last, s.lastCashFromSettings(), nil
	}

	if krErr != nil {
		s.log.Warn().Err(krErr).Msg("domestic balance fetch failed, proceeding with overseas only")
	}
	if usErr != nil {
		s.log.Warn().Err(usErr).Msg("overseas balance fetch failed, proceeding with domestic only")
	}

	all := make([]domain.PortfolioHolding, 0, len(krHoldings)+len(usHoldings))
	all = append(all, krHoldings...)
	all = append(all, usHoldings...)

	if err := s.holdings.ReplaceAll(all); err != nil {
		return nil, domain.CashBalance{}, fmt.Errorf("persist synced holdings: %w", err)
	}

	usdCash, err := s.getUsdCash(ctx, usHoldings)
	if err != nil {
		s.log.Warn().Err(err).Msg("usd cash fetch failed, using last cached value")
	}

	return all, domain.CashBalance{KRW: krCash, USD: usdCash}, nil
}

// getUsdCash calls the overseas available-funds endpoint using any
// currently-held overseas symbol as the probe instrument (KIS exposes
// no market-wide free-cash endpoint). On success the result is cached
// to settings so a later outage can still serve a recent value.
func (s *Service) getUsdCash(ctx context.Context, usHoldings []domain.PortfolioHolding) (float64, error) {
	if len(usHoldings) == 0 {
		return s.settings.GetFloat("portfolio_usd_cash_cache", 0), nil
	}

	probeSymbol := usHoldings[0].Symbol
	cash, err := s.broker.GetOverseasAvailableCash(ctx, probeSymbol)
	if err != nil {
		return s.settings.GetFloat("portfolio_usd_cash_cache", 0), fmt.Errorf("overseas available cash: %w", err)
	}

	if err := s.settings.SetFloat("portfolio_usd_cash_cache", cash); err != nil {
		s.log.Warn().Err(err).Msg("failed to cache usd cash balance")
	}
	return cash, nil
}

func (s *Service) lastCashFromSettings() domain.CashBalance {
	return domain.CashBalance{USD: s.settings.GetFloat("portfolio_usd_cash_cache", 0)}
}

// MarketTotals splits holdings + cash into KR and US sub-portfolio
// totals in their own currency, since the two never mix (spec.md
// §4.8.3: "base = market_total_KRW ... KR portfolio or US portfolio,
// never mixed").
func MarketTotals(holdings []domain.PortfolioHolding, cash domain.CashBalance) (krTotal, usTotal float64) {
	krTotal = cash.KRW
	usTotal = cash.USD
	for _, h := range holdings {
		if h.Market == domain.MarketKR {
			krTotal += h.Value()
		} else {
			usTotal += h.Value()
		}
	}
	return krTotal, usTotal
}
