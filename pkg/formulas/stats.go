// Package formulas holds the small set of price-series math the
// strategy engine's technical scorer and ticker-state cache need: RSI,
// EMA, Bollinger bands, and (here) the rolling mean/stddev Bollinger is
// built on. Trimmed to what CalculateBollingerBands actually calls —
// the teacher's own stats.go carries a wider risk-metrics surface
// (variance, correlation, annualized volatility, return series) for a
// portfolio-analytics module this engine has no equivalent of.
package formulas

import (
	"gonum.org/v1/gonum/stat"
)

// Mean is the rolling-window average CalculateBollingerBands centers its
// bands on.
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev is the rolling-window spread CalculateBollingerBands scales by
// k to get the upper/lower band offsets.
func StdDev(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.StdDev(data, nil)
}
