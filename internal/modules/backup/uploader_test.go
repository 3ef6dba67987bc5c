package backup_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/arduino-trader/internal/modules/backup"
)

func TestNew_NoBucketReturnsNilUploaderWithoutError(t *testing.T) {
	u, err := backup.New(context.Background(), backup.Config{}, nil, zerolog.Nop())
	require.NoError(t, err)
	assert.Nil(t, u)
}
