package repositories_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/arduino-trader/internal/database"
	"github.com/aristath/arduino-trader/internal/database/repositories"
	"github.com/aristath/arduino-trader/internal/domain"
)

func TestInstrumentRepository_UpsertAndGet(t *testing.T) {
	db := newTestDB(t)
	repo := repositories.NewInstrumentRepository(db.Conn(), zerolog.Nop())

	inst := domain.Instrument{Symbol: "005930", Market: domain.MarketKR, Name: "Samsung Electronics", Sector: "tech", Active: true}
	require.NoError(t, repo.Upsert(inst))

	got, err := repo.GetBySymbol("005930", domain.MarketKR)
	require.NoError(t, err)
	assert.Equal(t, "Samsung Electronics", got.Name)
	assert.True(t, got.Active)

	inst.Name = "Samsung Electronics Co"
	require.NoError(t, repo.Upsert(inst))
	got, err = repo.GetBySymbol("005930", domain.MarketKR)
	require.NoError(t, err)
	assert.Equal(t, "Samsung Electronics Co", got.Name)
}

func TestInstrumentRepository_GetBySymbol_NotFound(t *testing.T) {
	db := newTestDB(t)
	repo := repositories.NewInstrumentRepository(db.Conn(), zerolog.Nop())

	_, err := repo.GetBySymbol("NONE", domain.MarketUS)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestInstrumentRepository_ListActive_FiltersMarketAndDeactivated(t *testing.T) {
	db := newTestDB(t)
	repo := repositories.NewInstrumentRepository(db.Conn(), zerolog.Nop())

	require.NoError(t, repo.Upsert(domain.Instrument{Symbol: "005930", Market: domain.MarketKR, Active: true}))
	require.NoError(t, repo.Upsert(domain.Instrument{Symbol: "AAPL", Market: domain.MarketUS, Active: true}))
	require.NoError(t, repo.Upsert(domain.Instrument{Symbol: "000660", Market: domain.MarketKR, Active: true}))
	require.NoError(t, repo.Deactivate("000660", domain.MarketKR))

	kr, err := repo.ListActive(domain.MarketKR)
	require.NoError(t, err)
	assert.Len(t, kr, 1)
	assert.Equal(t, "005930", kr[0].Symbol)

	all, err := repo.ListActive("")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
