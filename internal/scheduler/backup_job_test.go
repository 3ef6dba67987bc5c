package scheduler_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/arduino-trader/internal/scheduler"
)

func TestBackupJob_NoopWhenUploaderUnconfigured(t *testing.T) {
	job := scheduler.NewBackupJob(nil, "/tmp/does-not-matter.db", zerolog.Nop())
	assert.Equal(t, "backup", job.Name())
	require.NoError(t, job.Run())
}
