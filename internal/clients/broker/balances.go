package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aristath/arduino-trader/internal/domain"
)

type domesticBalanceResponse struct {
	RtCd   string `json:"rt_cd"`
	MsgCd  string `json:"msg_cd"`
	Msg1   string `json:"msg1"`
	Output1 []struct {
		PdNo     string `json:"pdno"`
		PrdtName string `json:"prdt_name"`
		HldgQty  string `json:"hldg_qty"`
		PchsAvgPrice string `json:"pchs_avg_pric"`
		PrprPrice string `json:"prpr"`
		PrdyCtrt  string `json:"prdy_ctrt"`
	} `json:"output1"`
	Output2 []struct {
		DncaTotAmt string `json:"dnca_tot_amt"`
	} `json:"output2"`
}

// GetDomesticBalance returns KR holdings and the KRW cash balance.
func (c *Client) GetDomesticBalance(ctx context.Context) ([]domain.PortfolioHolding, float64, error) {
	query := map[string]string{
		"CANO":         c.CANO(),
		"ACNT_PRDT_CD": c.ProductCode(),
		"AFHR_FLPR_YN": "N",
		"OFL_YN":       "",
		"INQR_DVSN":    "02",
		"UNPR_DVSN":    "01",
		"FUND_STTL_ICLD_YN": "N",
		"FNCG_AMT_AUTO_RDPT_YN": "N",
		"PRCS_DVSN":    "01",
		"CTX_AREA_FK100": "",
		"CTX_AREA_NK100": "",
	}

	data, err := c.enqueue(ctx, "GET", "/uapi/domestic-stock/v1/trading/inquire-balance", c.resolveTrID("domestic_balance", "TTTC8434R"), query, nil)
	if err != nil {
		c.log.Warn().Err(err).Msg("domestic balance call failed, returning last-known")
		return c.cachedDomesticHoldings(), c.cachedDomesticCash(), nil
	}

	var resp domesticBalanceResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, 0, fmt.Errorf("decode domestic balance: %w", err)
	}
	if resp.RtCd != "0" {
		c.log.Warn().Str("msg", resp.Msg1).Msg("domestic balance business error, returning last-known")
		return c.cachedDomesticHoldings(), c.cachedDomesticCash(), nil
	}

	holdings := make([]domain.PortfolioHolding, 0, len(resp.Output1))
	for _, row := range resp.Output1 {
		holdings = append(holdings, domain.PortfolioHolding{
			Symbol:       row.PdNo,
			Market:       domain.MarketKR,
			Quantity:     parseInt64(row.HldgQty),
			AverageBuy:   parseFloat(row.PchsAvgPrice),
			CurrentPrice: parseFloat(row.PrprPrice),
			ChangeRate:   parseFloat(row.PrdyCtrt),
		})
	}

	var cash float64
	if len(resp.Output2) > 0 {
		cash = parseFloat(resp.Output2[0].DncaTotAmt)
	}

	c.storeDomesticSnapshot(holdings, cash)
	return holdings, cash, nil
}

type overseasBalanceResponse struct {
	RtCd    string `json:"rt_cd"`
	Msg1    string `json:"msg1"`
	Output1 []struct {
		OvrsPdno     string `json:"ovrs_pdno"`
		OvrsItemName string `json:"ovrs_item_name"`
		OvrsCblcQty  string `json:"ovrs_cblc_qty"`
		PchsAvgPric  string `json:"pchs_avg_pric"`
		NowPric2     string `json:"now_pric2"`
		EvluPflsRt   string `json:"evlu_pfls_rt"`
	} `json:"output1"`
}

// GetOverseasBalance returns US holdings.
func (c *Client) GetOverseasBalance(ctx context.Context) ([]domain.PortfolioHolding, error) {
	query := map[string]string{
		"CANO":         c.CANO(),
		"ACNT_PRDT_CD": c.ProductCode(),
		"OVRS_EXCG_CD": "NASD",
		"TR_CRCY_CD":   "USD",
		"CTX_AREA_FK200": "",
		"CTX_AREA_NK200": "",
	}

	data, err := c.enqueue(ctx, "GET", "/uapi/overseas-stock/v1/trading/inquire-balance", c.resolveTrID("overseas_balance", "TTTS3012R"), query, nil)
	if err != nil {
		c.log.Warn().Err(err).Msg("overseas balance call failed, returning last-known")
		return c.cachedOverseasHoldings(), nil
	}

	var resp overseasBalanceResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode overseas balance: %w", err)
	}
	if resp.RtCd != "0" {
		c.log.Warn().Str("msg", resp.Msg1).Msg("overseas balance business error, returning last-known")
		return c.cachedOverseasHoldings(), nil
	}

	holdings := make([]domain.PortfolioHolding, 0, len(resp.Output1))
	for _, row := range resp.Output1 {
		holdings = append(holdings, domain.PortfolioHolding{
			Symbol:       row.OvrsPdno,
			Market:       domain.MarketUS,
			Quantity:     parseInt64(row.OvrsCblcQty),
			AverageBuy:   parseFloat(row.PchsAvgPric),
			CurrentPrice: parseFloat(row.NowPric2),
			ChangeRate:   parseFloat(row.EvluPflsRt),
		})
	}

	c.storeOverseasSnapshot(holdings)
	return holdings, nil
}

// GetOverseasAvailableCash probes order-viability for a symbol to learn
// the currently available USD buying power, since the brokerage exposes
// no direct "free cash" endpoint for overseas accounts.
func (c *Client) GetOverseasAvailableCash(ctx context.Context, probeSymbol string) (float64, error) {
	query := map[string]string{
		"CANO":          c.CANO(),
		"ACNT_PRDT_CD":  c.ProductCode(),
		"OVRS_EXCG_CD":  "NASD",
		"ITEM_CD":       probeSymbol,
		"OVRS_ORD_UNPR": "0",
	}

	data, err := c.enqueue(ctx, "GET", "/uapi/overseas-stock/v1/trading/inquire-psamount", c.resolveTrID("overseas_cash", "TTTS3007R"), query, nil)
	if err != nil {
		return 0, err
	}

	var resp struct {
		RtCd   string `json:"rt_cd"`
		Msg1   string `json:"msg1"`
		Output struct {
			OvrsOrdPsblAmt string `json:"ovrs_ord_psbl_amt"`
		} `json:"output"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return 0, fmt.Errorf("decode overseas cash: %w", err)
	}
	if resp.RtCd != "0" {
		return 0, fmt.Errorf("overseas cash probe failed: %s", resp.Msg1)
	}
	return parseFloat(resp.Output.OvrsOrdPsblAmt), nil
}

func (c *Client) storeDomesticSnapshot(holdings []domain.PortfolioHolding, cash float64) {
	c.lastBalanceMu.Lock()
	defer c.lastBalanceMu.Unlock()
	c.lastDomesticHold = toInternalHoldings(holdings)
	c.lastDomesticCash = cash
}

func (c *Client) storeOverseasSnapshot(holdings []domain.PortfolioHolding) {
	c.lastBalanceMu.Lock()
	defer c.lastBalanceMu.Unlock()
	c.lastOverseasHold = toInternalHoldings(holdings)
}

func (c *Client) cachedDomesticHoldings() []domain.PortfolioHolding {
	c.lastBalanceMu.RLock()
	defer c.lastBalanceMu.RUnlock()
	return fromInternalHoldings(c.lastDomesticHold, domain.MarketKR)
}

func (c *Client) cachedDomesticCash() float64 {
	c.lastBalanceMu.RLock()
	defer c.lastBalanceMu.RUnlock()
	return c.lastDomesticCash
}

func (c *Client) cachedOverseasHoldings() []domain.PortfolioHolding {
	c.lastBalanceMu.RLock()
	defer c.lastBalanceMu.RUnlock()
	return fromInternalHoldings(c.lastOverseasHold, domain.MarketUS)
}

func toInternalHoldings(in []domain.PortfolioHolding) []domainHolding {
	out := make([]domainHolding, len(in))
	for i, h := range in {
		out[i] = domainHolding{Symbol: h.Symbol, Quantity: h.Quantity, AverageBuy: h.AverageBuy, CurrentPrice: h.CurrentPrice, Sector: h.Sector}
	}
	return out
}

func fromInternalHoldings(in []domainHolding, market domain.Market) []domain.PortfolioHolding {
	out := make([]domain.PortfolioHolding, len(in))
	for i, h := range in {
		out[i] = domain.PortfolioHolding{Symbol: h.Symbol, Market: market, Quantity: h.Quantity, AverageBuy: h.AverageBuy, CurrentPrice: h.CurrentPrice, Sector: h.Sector}
	}
	return out
}
