package formulas

// BollingerBands holds the upper/middle/lower band values for the most
// recent point in a series.
type BollingerBands struct {
	Upper  float64
	Middle float64
	Lower  float64
}

// CalculateBollingerBands computes the rolling mean ± k·rolling std over
// the trailing `window` closes. Returns nil if fewer than window points are
// available. Uses gonum/stat for mean and stddev, matching the style of
// pkg/formulas/stats.go rather than a hand-rolled accumulator.
func CalculateBollingerBands(closes []float64, window int, k float64) *BollingerBands {
	if window <= 0 || len(closes) < window {
		return nil
	}
	recent := closes[len(closes)-window:]
	mean := Mean(recent)
	std := StdDev(recent)
	return &BollingerBands{
		Upper:  mean + k*std,
		Middle: mean,
		Lower:  mean - k*std,
	}
}
