package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aristath/arduino-trader/internal/domain"
)

const (
	ordDvsnMarket = "01"
	ordDvsnLimit  = "00"
)

type orderResponse struct {
	RtCd  string `json:"rt_cd"`
	MsgCd string `json:"msg_cd"`
	Msg1  string `json:"msg1"`
	Output struct {
		OdNo string `json:"ODNO"`
	} `json:"output"`
}

// SendDomesticOrder places a KR order. price==0 means a market order
// (ORD_DVSN "01"); price>0 means a limit order ("00").
func (c *Client) SendDomesticOrder(ctx context.Context, symbol string, qty int64, price float64, side domain.Side) (domain.OrderResult, error) {
	if qty <= 0 {
		return domain.OrderResult{}, fmt.Errorf("quantity must be positive")
	}

	ordDvsn := ordDvsnLimit
	priceStr := fmt.Sprintf("%.0f", price)
	if price <= 0 {
		ordDvsn = ordDvsnMarket
		priceStr = "0"
	}

	trID := c.resolveTrID("domestic_buy", "TTTC0802U")
	if side == domain.SideSell {
		trID = c.resolveTrID("domestic_sell", "TTTC0801U")
	}

	body := map[string]string{
		"CANO":         c.CANO(),
		"ACNT_PRDT_CD": c.ProductCode(),
		"PDNO":         symbol,
		"ORD_DVSN":     ordDvsn,
		"ORD_QTY":      fmt.Sprintf("%d", qty),
		"ORD_UNPR":     priceStr,
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	data, err := c.enqueue(ctx, "POST", "/uapi/domestic-stock/v1/trading/order-cash", trID, nil, body)
	return c.decodeOrderResponse(data, err)
}

// SendDomesticAfterHoursOrder permits KR after-hours orders, gated on
// the live (not simulated) endpoint, a feature flag, and the KST
// 15:40-18:00 weekday window.
func (c *Client) SendDomesticAfterHoursOrder(ctx context.Context, symbol string, qty int64, price float64, side domain.Side) (domain.OrderResult, error) {
	if c.isSimulated {
		return domain.OrderResult{Status: "failed", Message: "after-hours orders require the live endpoint"}, nil
	}
	if !c.afterHoursOK {
		return domain.OrderResult{Status: "failed", Message: "after-hours orders are disabled"}, nil
	}
	if !inAfterHoursWindow(time.Now()) {
		return domain.OrderResult{Status: "failed", Message: "outside the after-hours order window"}, nil
	}
	if qty <= 0 || price <= 0 {
		return domain.OrderResult{}, fmt.Errorf("after-hours orders require a positive quantity and limit price")
	}

	trID := c.resolveTrID("domestic_buy", "TTTC0802U")
	if side == domain.SideSell {
		trID = c.resolveTrID("domestic_sell", "TTTC0801U")
	}

	body := map[string]string{
		"CANO":         c.CANO(),
		"ACNT_PRDT_CD": c.ProductCode(),
		"PDNO":         symbol,
		"ORD_DVSN":     afterHoursOrdDvsn,
		"ORD_QTY":      fmt.Sprintf("%d", qty),
		"ORD_UNPR":     fmt.Sprintf("%.0f", price),
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	data, err := c.enqueue(ctx, "POST", "/uapi/domestic-stock/v1/trading/order-cash", trID, nil, body)
	return c.decodeOrderResponse(data, err)
}

// inAfterHoursWindow reports whether now falls in the KR after-hours
// single-price session: 15:40-18:00 KST on a weekday.
func inAfterHoursWindow(now time.Time) bool {
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		loc = time.FixedZone("KST", 9*60*60)
	}
	t := now.In(loc)
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return false
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 15, 40, 0, 0, loc)
	end := time.Date(t.Year(), t.Month(), t.Day(), 18, 0, 0, 0, loc)
	return !t.Before(start) && !t.After(end)
}

// SendOverseasOrder places a US order. Overseas orders must be limit
// orders; a non-positive price is rejected before any network call.
func (c *Client) SendOverseasOrder(ctx context.Context, symbol string, qty int64, price float64, side domain.Side) (domain.OrderResult, error) {
	if qty <= 0 {
		return domain.OrderResult{}, fmt.Errorf("quantity must be positive")
	}
	if price <= 0 {
		return domain.OrderResult{}, fmt.Errorf("overseas orders must be limit orders with a positive price")
	}

	trID := c.resolveTrID("overseas_buy", "TTTT1002U")
	if side == domain.SideSell {
		trID = c.resolveTrID("overseas_sell", "TTTT1006U")
	}

	body := map[string]string{
		"CANO":         c.CANO(),
		"ACNT_PRDT_CD": c.ProductCode(),
		"OVRS_EXCG_CD": "NASD",
		"PDNO":         symbol,
		"ORD_QTY":      fmt.Sprintf("%d", qty),
		"OVRS_ORD_UNPR": fmt.Sprintf("%.2f", price),
		"ORD_SVR_DVSN": "0",
		"ORD_DVSN":     ordDvsnLimit,
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	data, err := c.enqueue(ctx, "POST", "/uapi/overseas-stock/v1/trading/order", trID, nil, body)
	return c.decodeOrderResponse(data, err)
}

func (c *Client) decodeOrderResponse(data []byte, err error) (domain.OrderResult, error) {
	if err != nil {
		return domain.OrderResult{Status: "failed", Message: err.Error()}, err
	}

	var resp orderResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return domain.OrderResult{}, fmt.Errorf("decode order response: %w", err)
	}
	if resp.RtCd != "0" {
		return domain.OrderResult{Status: "failed", Message: resp.Msg1}, nil
	}
	return domain.OrderResult{Status: "success", OrderID: resp.Output.OdNo, Message: resp.Msg1}, nil
}
