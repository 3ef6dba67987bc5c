package marketdata

import "strconv"

// Tick is a normalized realtime price update extracted from a raw frame.
type Tick struct {
	Symbol           string
	Price            float64
	ChangeRate       float64
	Open, High, Low  float64
	CumulativeVolume float64
}

// ParseFrame decodes one realtime frame. Frames are pipe-delimited with
// caret-separated payloads: "0|TR_ID|COUNT|field^field^field...". The KR
// (H0STCNT0) and US (HDFSUSP0) feeds share this outer shape but differ
// in field layout, so the TR segment selects the parser.
func ParseFrame(raw []byte) (Tick, bool) {
	segments := splitByte(raw, '|')
	if len(segments) < 4 {
		return Tick{}, false
	}
	trID := string(segments[1])
	fields := splitByte(segments[3], '^')

	switch trID {
	case "H0STCNT0":
		return parseDomesticTick(fields)
	case "HDFSUSP0":
		return parseOverseasTick(fields)
	default:
		return Tick{}, false
	}
}

// parseDomesticTick reads the KR real-time price fixed layout:
// [0]symbol [1]time [2]current-price ... [4]change-rate [5]open
// [6]high [7]low ... [13]cumulative-volume
func parseDomesticTick(fields [][]byte) (Tick, bool) {
	if len(fields) < 14 {
		return Tick{}, false
	}
	return Tick{
		Symbol:           string(fields[0]),
		Price:            parseF(fields[2]),
		ChangeRate:       parseF(fields[4]),
		Open:             parseF(fields[5]),
		High:             parseF(fields[6]),
		Low:              parseF(fields[7]),
		CumulativeVolume: parseF(fields[13]),
	}, true
}

// parseOverseasTick reads the US real-time price fixed layout:
// [0]exchange [1]symbol [2]decimal-places ... [11]current-price
// [12]change [13]change-rate [17]open [18]high [19]low [21]volume
func parseOverseasTick(fields [][]byte) (Tick, bool) {
	if len(fields) < 22 {
		return Tick{}, false
	}
	return Tick{
		Symbol:           string(fields[1]),
		Price:            parseF(fields[11]),
		ChangeRate:       parseF(fields[13]),
		Open:             parseF(fields[17]),
		High:             parseF(fields[18]),
		Low:              parseF(fields[19]),
		CumulativeVolume: parseF(fields[21]),
	}, true
}

func splitByte(data []byte, sep byte) [][]byte {
	var out [][]byte
	start := 0
	for i, b := range data {
		if b == sep {
			out = append(out, data[start:i])
			start = i + 1
		}
	}
	out = append(out, data[start:])
	return out
}

func parseF(b []byte) float64 {
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return 0
	}
	return f
}
