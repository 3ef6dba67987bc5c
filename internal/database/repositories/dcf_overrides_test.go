package repositories_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/arduino-trader/internal/database/repositories"
	"github.com/aristath/arduino-trader/internal/domain"
)

func TestDCFOverrideRepository_UpsertAndGet(t *testing.T) {
	db := newTestDB(t)
	repo := repositories.NewDCFOverrideRepository(db.Conn(), zerolog.Nop())

	_, ok, err := repo.Get("005930")
	require.NoError(t, err)
	assert.False(t, ok)

	growth := 0.08
	fair := 85000.0
	require.NoError(t, repo.Upsert(domain.DcfOverride{Symbol: "005930", GrowthRate: &growth, FairValue: &fair}))

	got, ok, err := repo.Get("005930")
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, got.GrowthRate)
	assert.Equal(t, 0.08, *got.GrowthRate)
	assert.Nil(t, got.Beta)

	newFair := 90000.0
	require.NoError(t, repo.Upsert(domain.DcfOverride{Symbol: "005930", FairValue: &newFair}))
	got, _, err = repo.Get("005930")
	require.NoError(t, err)
	assert.Equal(t, 90000.0, *got.FairValue)
	assert.Nil(t, got.GrowthRate)
}
