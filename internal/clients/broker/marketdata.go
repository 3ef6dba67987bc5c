package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aristath/arduino-trader/internal/domain"
)

const (
	trDomesticDailyBars = "FHKST03010100"
	trOverseasDailyBars = "HHDFS76240000"
	trDomesticQuote     = "FHKST01010100"
	trOverseasQuote     = "HHDFS00000300"
	trDomesticRanking   = "FHPST01740000"
)

// GetDailyBars returns up to count daily OHLCV bars, oldest first.
func (c *Client) GetDailyBars(ctx context.Context, symbol string, market domain.Market, count int) ([]domain.DailyBar, error) {
	if market == domain.MarketKR {
		return c.domesticDailyBars(ctx, symbol, count)
	}
	return c.overseasDailyBars(ctx, symbol, count)
}

func (c *Client) domesticDailyBars(ctx context.Context, symbol string, count int) ([]domain.DailyBar, error) {
	end := time.Now()
	start := end.AddDate(0, 0, -count*2-10) // pad for weekends/holidays

	query := map[string]string{
		"FID_COND_MRKT_DIV_CODE": "J",
		"FID_INPUT_ISCD":         symbol,
		"FID_INPUT_DATE_1":       start.Format("20060102"),
		"FID_INPUT_DATE_2":       end.Format("20060102"),
		"FID_PERIOD_DIV_CODE":    "D",
		"FID_ORG_ADJ_PRC":        "1",
	}

	data, err := c.enqueue(ctx, "GET", "/uapi/domestic-stock/v1/quotations/inquire-daily-itemchartprice", trDomesticDailyBars, query, nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		RtCd    string `json:"rt_cd"`
		Msg1    string `json:"msg1"`
		Output2 []struct {
			Date  string `json:"stck_bsop_date"`
			Open  string `json:"stck_oprc"`
			High  string `json:"stck_hgpr"`
			Low   string `json:"stck_lwpr"`
			Close string `json:"stck_clpr"`
			Vol   string `json:"acml_vol"`
		} `json:"output2"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode domestic daily bars: %w", err)
	}
	if resp.RtCd != "0" {
		return nil, fmt.Errorf("domestic daily bars business error: %s", resp.Msg1)
	}

	bars := make([]domain.DailyBar, 0, len(resp.Output2))
	for _, row := range resp.Output2 {
		t, _ := time.Parse("20060102", row.Date)
		bars = append(bars, domain.DailyBar{
			Date: t, Open: parseFloat(row.Open), High: parseFloat(row.High),
			Low: parseFloat(row.Low), Close: parseFloat(row.Close), Volume: parseFloat(row.Vol),
		})
	}
	reverseBars(bars)
	if count > 0 && len(bars) > count {
		bars = bars[len(bars)-count:]
	}
	return bars, nil
}

func (c *Client) overseasDailyBars(ctx context.Context, symbol string, count int) ([]domain.DailyBar, error) {
	query := map[string]string{
		"AUTH":   "",
		"EXCD":   "NAS",
		"SYMB":   symbol,
		"GUBN":   "0",
		"BYMD":   "",
		"MODP":   "1",
	}

	data, err := c.enqueue(ctx, "GET", "/uapi/overseas-price/v1/quotations/dailyprice", trOverseasDailyBars, query, nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		RtCd   string `json:"rt_cd"`
		Msg1   string `json:"msg1"`
		Output []struct {
			Date  string `json:"xymd"`
			Open  string `json:"open"`
			High  string `json:"high"`
			Low   string `json:"low"`
			Close string `json:"clos"`
			Vol   string `json:"tvol"`
		} `json:"output2"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode overseas daily bars: %w", err)
	}
	if resp.RtCd != "0" {
		return nil, fmt.Errorf("overseas daily bars business error: %s", resp.Msg1)
	}

	bars := make([]domain.DailyBar, 0, len(resp.Output))
	for _, row := range resp.Output {
		t, _ := time.Parse("20060102", row.Date)
		bars = append(bars, domain.DailyBar{
			Date: t, Open: parseFloat(row.Open), High: parseFloat(row.High),
			Low: parseFloat(row.Low), Close: parseFloat(row.Close), Volume: parseFloat(row.Vol),
		})
	}
	reverseBars(bars)
	if count > 0 && len(bars) > count {
		bars = bars[len(bars)-count:]
	}
	return bars, nil
}

func reverseBars(bars []domain.DailyBar) {
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
}

// GetQuote returns a current-price snapshot.
func (c *Client) GetQuote(ctx context.Context, symbol string, market domain.Market) (domain.Quote, error) {
	if market == domain.MarketKR {
		return c.domesticQuote(ctx, symbol)
	}
	return c.overseasQuote(ctx, symbol)
}

func (c *Client) domesticQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	query := map[string]string{"FID_COND_MRKT_DIV_CODE": "J", "FID_INPUT_ISCD": symbol}
	data, err := c.enqueue(ctx, "GET", "/uapi/domestic-stock/v1/quotations/inquire-price", trDomesticQuote, query, nil)
	if err != nil {
		return domain.Quote{}, err
	}

	var resp struct {
		RtCd   string `json:"rt_cd"`
		Msg1   string `json:"msg1"`
		Output struct {
			Prpr      string `json:"stck_prpr"`
			PrdyCtrt  string `json:"prdy_ctrt"`
			Open      string `json:"stck_oprc"`
			High      string `json:"stck_hgpr"`
			Low       string `json:"stck_lwpr"`
			Volume    string `json:"acml_vol"`
		} `json:"output"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return domain.Quote{}, fmt.Errorf("decode domestic quote: %w", err)
	}
	if resp.RtCd != "0" {
		return domain.Quote{}, fmt.Errorf("domestic quote business error: %s", resp.Msg1)
	}

	return domain.Quote{
		Symbol: symbol, CurrentPrice: parseFloat(resp.Output.Prpr), ChangeRate: parseFloat(resp.Output.PrdyCtrt),
		Open: parseFloat(resp.Output.Open), High: parseFloat(resp.Output.High), Low: parseFloat(resp.Output.Low),
		Volume: parseFloat(resp.Output.Volume),
	}, nil
}

func (c *Client) overseasQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	query := map[string]string{"AUTH": "", "EXCD": "NAS", "SYMB": symbol}
	data, err := c.enqueue(ctx, "GET", "/uapi/overseas-price/v1/quotations/price", trOverseasQuote, query, nil)
	if err != nil {
		return domain.Quote{}, err
	}

	var resp struct {
		RtCd   string `json:"rt_cd"`
		Msg1   string `json:"msg1"`
		Output struct {
			Last  string `json:"last"`
			Rate  string `json:"rate"`
			Open  string `json:"open"`
			High  string `json:"high"`
			Low   string `json:"low"`
			Tvol  string `json:"tvol"`
		} `json:"output"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return domain.Quote{}, fmt.Errorf("decode overseas quote: %w", err)
	}
	if resp.RtCd != "0" {
		return domain.Quote{}, fmt.Errorf("overseas quote business error: %s", resp.Msg1)
	}

	return domain.Quote{
		Symbol: symbol, CurrentPrice: parseFloat(resp.Output.Last), ChangeRate: parseFloat(resp.Output.Rate),
		Open: parseFloat(resp.Output.Open), High: parseFloat(resp.Output.High), Low: parseFloat(resp.Output.Low),
		Volume: parseFloat(resp.Output.Tvol),
	}, nil
}

// GetTopMarketCapKR returns the top-`limit` KOSPI symbols by market cap.
func (c *Client) GetTopMarketCapKR(ctx context.Context, limit int) ([]string, error) {
	query := map[string]string{
		"FID_COND_MRKT_DIV_CODE": "J",
		"FID_COND_SCR_DIV_CODE":  "20174",
		"FID_INPUT_ISCD":         "0000",
		"FID_DIV_CLS_CODE":       "0",
		"FID_TRGT_CLS_CODE":      "0",
		"FID_TRGT_EXLS_CLS_CODE": "0",
		"FID_INPUT_PRICE_1":      "",
		"FID_INPUT_PRICE_2":      "",
		"FID_VOL_CNT":            "",
	}
	data, err := c.enqueue(ctx, "GET", "/uapi/domestic-stock/v1/ranking/market-cap", trDomesticRanking, query, nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		RtCd   string `json:"rt_cd"`
		Msg1   string `json:"msg1"`
		Output []struct {
			Code string `json:"mksc_shrn_iscd"`
		} `json:"output"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode KR market-cap ranking: %w", err)
	}
	if resp.RtCd != "0" {
		return nil, fmt.Errorf("KR market-cap ranking business error: %s", resp.Msg1)
	}

	out := make([]string, 0, limit)
	for i, row := range resp.Output {
		if i >= limit {
			break
		}
		out = append(out, row.Code)
	}
	return out, nil
}

// GetTopMarketCapUS returns the top-`limit` US symbols by market cap.
// The brokerage has no single US-wide ranking endpoint, so this is
// seeded from a fixed mega-cap watchlist rather than a live ranking
// call; a future universe-refresh job can replace this with a real feed.
func (c *Client) GetTopMarketCapUS(ctx context.Context, limit int) ([]string, error) {
	watchlist := []string{"AAPL", "MSFT", "GOOGL", "AMZN", "NVDA", "META", "TSLA", "BRK.B", "AVGO", "LLY"}
	if limit < len(watchlist) {
		return watchlist[:limit], nil
	}
	return watchlist, nil
}
