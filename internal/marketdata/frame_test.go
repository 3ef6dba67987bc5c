package marketdata

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFrame_Domestic(t *testing.T) {
	fields := make([]string, 14)
	fields[0] = "005930"
	fields[2] = "70000"
	fields[4] = "1.25"
	fields[5] = "69500"
	fields[6] = "70200"
	fields[7] = "69400"
	fields[13] = "1234567"
	raw := "0|H0STCNT0|001|" + strings.Join(fields, "^")

	tick, ok := ParseFrame([]byte(raw))
	require.True(t, ok)
	assert.Equal(t, "005930", tick.Symbol)
	assert.Equal(t, 70000.0, tick.Price)
	assert.Equal(t, 1.25, tick.ChangeRate)
	assert.Equal(t, float64(1234567), tick.CumulativeVolume)
}

func TestParseFrame_UnknownTRIgnored(t *testing.T) {
	_, ok := ParseFrame([]byte("0|SOMEOTHER|001|a^b^c"))
	assert.False(t, ok)
}

func TestParseFrame_ControlFrameIgnored(t *testing.T) {
	_, ok := ParseFrame([]byte("PINGPONG"))
	assert.False(t, ok)
}

func TestParseFrame_TooFewSegments(t *testing.T) {
	_, ok := ParseFrame([]byte("0|H0STCNT0"))
	assert.False(t, ok)
}
