package repositories_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/arduino-trader/internal/database/repositories"
	"github.com/aristath/arduino-trader/internal/domain"
)

func TestHoldingRepository_ReplaceAllIsAtomic(t *testing.T) {
	db := newTestDB(t)
	repo := repositories.NewHoldingRepository(db.Conn(), zerolog.Nop())

	first := []domain.PortfolioHolding{
		{Symbol: "005930", Market: domain.MarketKR, Quantity: 10, CurrentPrice: 70000},
		{Symbol: "AAPL", Market: domain.MarketUS, Quantity: 5, CurrentPrice: 200},
	}
	require.NoError(t, repo.ReplaceAll(first))

	got, err := repo.GetAll()
	require.NoError(t, err)
	assert.Len(t, got, 2)

	second := []domain.PortfolioHolding{
		{Symbol: "005930", Market: domain.MarketKR, Quantity: 15, CurrentPrice: 71000},
	}
	require.NoError(t, repo.ReplaceAll(second))

	got, err = repo.GetAll()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(15), got[0].Quantity)
}

func TestHoldingRepository_ReplaceAllWithEmptyClearsTable(t *testing.T) {
	db := newTestDB(t)
	repo := repositories.NewHoldingRepository(db.Conn(), zerolog.Nop())

	require.NoError(t, repo.ReplaceAll([]domain.PortfolioHolding{{Symbol: "005930", Market: domain.MarketKR, Quantity: 1}}))
	require.NoError(t, repo.ReplaceAll(nil))

	got, err := repo.GetAll()
	require.NoError(t, err)
	assert.Empty(t, got)
}
