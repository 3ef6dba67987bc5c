package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateEMA_NilWhenSeriesTooShort(t *testing.T) {
	closes := make([]float64, 50)
	for i := range closes {
		closes[i] = 100
	}
	assert.Nil(t, CalculateEMA(closes, 200))
	assert.NotNil(t, CalculateEMA(closes, 20))
}

func TestCalculateEMASet_OmitsSpansLongerThanSeries(t *testing.T) {
	closes := make([]float64, 70)
	for i := range closes {
		closes[i] = 50 + float64(i)
	}
	set := CalculateEMASet(closes)
	_, has60 := set[60]
	_, has100 := set[100]
	assert.True(t, has60)
	assert.False(t, has100)
}

// Indicator pureness (SPEC_FULL §8): identical input produces identical
// output across repeated calls.
func TestCalculateEMA_Pure(t *testing.T) {
	closes := []float64{10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20}
	a := CalculateEMA(closes, 5)
	b := CalculateEMA(closes, 5)
	require.NotNil(t, a)
	require.NotNil(t, b)
	assert.Equal(t, *a, *b)
}

func TestNextEMA_MatchesOneIncrementalStep(t *testing.T) {
	prev := 100.0
	next := NextEMA(prev, 110, 9) // alpha = 0.2
	assert.InDelta(t, 102.0, next, 1e-9)
}
