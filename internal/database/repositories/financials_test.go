package repositories_test

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/arduino-trader/internal/database/repositories"
	"github.com/aristath/arduino-trader/internal/domain"
)

func TestFinancialRepository_InsertAndLatestForAll(t *testing.T) {
	db := newTestDB(t)
	instruments := repositories.NewInstrumentRepository(db.Conn(), zerolog.Nop())
	financials := repositories.NewFinancialRepository(db.Conn(), zerolog.Nop())

	require.NoError(t, instruments.Upsert(domain.Instrument{Symbol: "005930", Market: domain.MarketKR, Active: true}))
	inst, err := instruments.GetBySymbol("005930", domain.MarketKR)
	require.NoError(t, err)

	older := domain.FinancialSnapshot{
		Symbol: "005930", InstrumentID: inst.ID,
		BaseDate: time.Now().AddDate(0, 0, -1),
		RSI:      55, EMA: map[int]float64{200: 70000},
	}
	newer := domain.FinancialSnapshot{
		Symbol: "005930", InstrumentID: inst.ID,
		BaseDate: time.Now(),
		RSI:      60, EMA: map[int]float64{200: 71500, 20: 71000},
	}
	require.NoError(t, financials.Insert(older))
	require.NoError(t, financials.Insert(newer))

	latest, err := financials.LatestForAll()
	require.NoError(t, err)
	require.Contains(t, latest, "005930")
	assert.Equal(t, 60.0, latest["005930"].RSI)
	assert.Equal(t, 71500.0, latest["005930"].EMA[200])
	assert.Equal(t, 71000.0, latest["005930"].EMA[20])
}

func TestFinancialRepository_LatestForAll_SkipsInactiveInstruments(t *testing.T) {
	db := newTestDB(t)
	instruments := repositories.NewInstrumentRepository(db.Conn(), zerolog.Nop())
	financials := repositories.NewFinancialRepository(db.Conn(), zerolog.Nop())

	require.NoError(t, instruments.Upsert(domain.Instrument{Symbol: "000660", Market: domain.MarketKR, Active: true}))
	inst, err := instruments.GetBySymbol("000660", domain.MarketKR)
	require.NoError(t, err)
	require.NoError(t, financials.Insert(domain.FinancialSnapshot{Symbol: "000660", InstrumentID: inst.ID, BaseDate: time.Now(), RSI: 40}))
	require.NoError(t, instruments.Deactivate("000660", domain.MarketKR))

	latest, err := financials.LatestForAll()
	require.NoError(t, err)
	assert.NotContains(t, latest, "000660")
}
