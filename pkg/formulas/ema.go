package formulas

// EMASpans are the spans the ticker-state cache keeps for every instrument.
var EMASpans = []int{5, 10, 20, 60, 100, 120, 200}

// CalculateEMA computes the exponential moving average of the given span
// over closes, seeded at the series start, one pass, α=2/(span+1). Returns
// nil if the series is shorter than span (SPEC_FULL: EMAs whose span
// exceeds the series length are null).
func CalculateEMA(closes []float64, span int) *float64 {
	if span <= 0 || len(closes) < span {
		return nil
	}
	alpha := 2.0 / (float64(span) + 1.0)
	ema := closes[0]
	for _, price := range closes[1:] {
		ema = price*alpha + ema*(1-alpha)
	}
	return &ema
}

// CalculateEMASet computes every configured span at once, omitting spans
// longer than the series.
func CalculateEMASet(closes []float64) map[int]float64 {
	out := make(map[int]float64, len(EMASpans))
	for _, span := range EMASpans {
		if v := CalculateEMA(closes, span); v != nil {
			out[span] = *v
		}
	}
	return out
}

// NextEMA applies one incremental step without recomputing the whole
// series: ema_new = price*alpha + ema_prev*(1-alpha). Used by the
// ticker-state cache's live-tick path (C4 onRealtimeData).
func NextEMA(prevEMA, price float64, span int) float64 {
	alpha := 2.0 / (float64(span) + 1.0)
	return price*alpha + prevEMA*(1-alpha)
}
