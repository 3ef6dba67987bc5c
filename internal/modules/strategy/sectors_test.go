package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aristath/arduino-trader/internal/domain"
)

func TestSectorGroupOf_KnownAndUnknownSectors(t *testing.T) {
	assert.Equal(t, domain.SectorGroupTech, sectorGroupOf("Technology"))
	assert.Equal(t, domain.SectorGroupValue, sectorGroupOf("Healthcare"))
	assert.Equal(t, domain.SectorGroupFinancial, sectorGroupOf("금융"))
	assert.Equal(t, domain.SectorGroupOther, sectorGroupOf("Energy"))
}

func TestSectorGroupWeights_ComputesDeviationFromTarget(t *testing.T) {
	holdings := []domain.PortfolioHolding{
		{Symbol: "A", Market: domain.MarketKR, Quantity: 10, CurrentPrice: 100_000, Sector: "Technology"},
		{Symbol: "B", Market: domain.MarketKR, Quantity: 10, CurrentPrice: 100_000, Sector: "금융"},
	}
	weights := sectorGroupWeights(holdings, 1400)

	tech := weights[domain.SectorGroupTech]
	assert.InDelta(t, 0.50, tech.Weight, 0.001)
	assert.InDelta(t, 0.0, tech.Dev, 0.001)

	financial := weights[domain.SectorGroupFinancial]
	assert.InDelta(t, 0.50, financial.Weight, 0.001)
	assert.InDelta(t, 0.30, financial.Dev, 0.001)
}

func TestSectorGroupWeights_ConvertsUSHoldingsToKRW(t *testing.T) {
	holdings := []domain.PortfolioHolding{
		{Symbol: "AAPL", Market: domain.MarketUS, Quantity: 10, CurrentPrice: 100, Sector: "Technology"},
	}
	weights := sectorGroupWeights(holdings, 1400)
	assert.InDelta(t, 1_400_000, weights[domain.SectorGroupTech].ValueKRW, 0.01)
}
