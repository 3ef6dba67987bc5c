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

func TestTradeRepository_RecordIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	repo := repositories.NewTradeRepository(db.Conn(), zerolog.Nop())

	trade := domain.TradeRecord{
		IdempotencyKey: "dup-key", Symbol: "005930", Market: domain.MarketKR,
		Side: domain.SideBuy, Quantity: 10, Price: 70000, ExecutedAt: time.Now(),
	}
	require.NoError(t, repo.Record(trade))
	require.NoError(t, repo.Record(trade)) // same key, must not duplicate

	exists, err := repo.Exists("dup-key")
	require.NoError(t, err)
	assert.True(t, exists)

	rows, err := repo.ListBySymbolSince("005930", time.Now().AddDate(0, 0, -1).Format("2006-01-02"))
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestTradeRepository_LastSellPrice(t *testing.T) {
	db := newTestDB(t)
	repo := repositories.NewTradeRepository(db.Conn(), zerolog.Nop())

	_, ok, err := repo.LastSellPrice("AAPL")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Record(domain.TradeRecord{
		IdempotencyKey: "s1", Symbol: "AAPL", Market: domain.MarketUS,
		Side: domain.SideSell, Quantity: 3, Price: 210, ExecutedAt: time.Now().Add(-time.Hour),
	}))
	require.NoError(t, repo.Record(domain.TradeRecord{
		IdempotencyKey: "s2", Symbol: "AAPL", Market: domain.MarketUS,
		Side: domain.SideSell, Quantity: 2, Price: 215, ExecutedAt: time.Now(),
	}))

	price, ok, err := repo.LastSellPrice("AAPL")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 215.0, price)
}
