package formulas

import (
	"github.com/markcheno/go-talib"
)

// CalculateRSI returns the most recent 14-period RSI for a close-price
// series, feeding both the ticker-state cache (internal/modules/
// tickerstate) and the technical scorer's oversold/overbought bands
// (internal/modules/strategy.scoreTechnical). nil means the series isn't
// long enough yet (a freshly-registered symbol with fewer than length+1
// closes), which callers treat as "not ready" rather than a zero score.
func CalculateRSI(closes []float64, length int) *float64 {
	if len(closes) < length+1 {
		return nil
	}

	rsi := talib.Rsi(closes, length)
	if len(rsi) > 0 && !isNaN(rsi[len(rsi)-1]) {
		result := rsi[len(rsi)-1]
		return &result
	}

	return nil
}

func isNaN(f float64) bool {
	return f != f
}
