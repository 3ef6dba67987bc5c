package repositories_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/arduino-trader/internal/database/repositories"
)

func TestApiTransactionRepository_GetBeforeSeed(t *testing.T) {
	db := newTestDB(t)
	repo := repositories.NewApiTransactionRepository(db.Conn(), zerolog.Nop())

	_, ok, err := repo.Get("domestic_buy", false)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestApiTransactionRepository_SeedDefaultsThenGet(t *testing.T) {
	db := newTestDB(t)
	repo := repositories.NewApiTransactionRepository(db.Conn(), zerolog.Nop())

	defaults := map[string][2]string{
		"domestic_buy":  {"TTTC0802U", "VTTC0802U"},
		"overseas_sell": {"TTTT1006U", "VTTT1006U"},
	}
	require.NoError(t, repo.SeedDefaults(defaults))

	live, ok, err := repo.Get("domestic_buy", false)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "TTTC0802U", live)

	sim, ok, err := repo.Get("domestic_buy", true)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "VTTC0802U", sim)

	// A second seed call must not overwrite existing rows.
	require.NoError(t, repo.SeedDefaults(map[string][2]string{
		"domestic_buy": {"SHOULD_NOT_APPLY", "SHOULD_NOT_APPLY"},
	}))
	live, ok, err = repo.Get("domestic_buy", false)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "TTTC0802U", live)
}

func TestApiTransactionRepository_UpsertOverridesExisting(t *testing.T) {
	db := newTestDB(t)
	repo := repositories.NewApiTransactionRepository(db.Conn(), zerolog.Nop())

	require.NoError(t, repo.Upsert("domestic_buy", false, "TTTC0802U"))
	require.NoError(t, repo.Upsert("domestic_buy", false, "TTTC9999U"))

	trID, ok, err := repo.Get("domestic_buy", false)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "TTTC9999U", trID)
}
