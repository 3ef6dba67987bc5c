package repositories_test

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/arduino-trader/internal/database/repositories"
)

func TestRunLogRepository_StartFinishAndRecentFailures(t *testing.T) {
	db := newTestDB(t)
	repo := repositories.NewRunLogRepository(db.Conn(), zerolog.Nop())

	id, err := repo.Start(time.Now())
	require.NoError(t, err)
	require.NoError(t, repo.Finish(id, time.Now(), 3, ""))

	failingID, err := repo.Start(time.Now())
	require.NoError(t, err)
	require.NoError(t, repo.Finish(failingID, time.Now(), 0, "broker timeout"))

	failures, err := repo.RecentFailures(5)
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, "broker timeout", failures[0])
}
