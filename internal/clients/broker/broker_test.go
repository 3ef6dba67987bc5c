package broker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/arduino-trader/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := Config{
		BaseURL:     srv.URL,
		AppKey:      "key",
		AppSecret:   "secret",
		AccountNo:   "1234567801",
		IsSimulated: true,
		TokenPath:   t.TempDir() + "/token.json",
		RateLimit:   time.Millisecond,
	}
	c := NewClient(cfg, zerolog.Nop())
	t.Cleanup(c.Close)
	return c, srv
}

func TestSendOverseasOrder_RejectsNonPositivePrice(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("wire should not be hit for an invalid overseas order")
	})

	_, err := c.SendOverseasOrder(context.Background(), "AAPL", 1, 0, domain.SideBuy)
	require.Error(t, err)
}

func TestSendDomesticOrder_MarketVsLimitDivision(t *testing.T) {
	var gotDvsn string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth2/tokenP" {
			w.Write([]byte(`{"access_token":"tok","expires_in":3600}`))
			return
		}
		var body map[string]string
		decodeJSONBody(t, r, &body)
		gotDvsn = body["ORD_DVSN"]
		w.Write([]byte(`{"rt_cd":"0","msg1":"ok","output":{"ODNO":"1"}}`))
	})

	_, err := c.SendDomesticOrder(context.Background(), "005930", 1, 0, domain.SideBuy)
	require.NoError(t, err)
	assert.Equal(t, ordDvsnMarket, gotDvsn)

	_, err = c.SendDomesticOrder(context.Background(), "005930", 1, 70000, domain.SideBuy)
	require.NoError(t, err)
	assert.Equal(t, ordDvsnLimit, gotDvsn)
}

// Rate-limit retry (SPEC_FULL §8 literal scenario): a business-code
// throttle response is retried and eventually succeeds.
func TestDoWithRetry_RetriesOnThrottleBusinessCode(t *testing.T) {
	var calls int64
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth2/tokenP" {
			w.Write([]byte(`{"access_token":"tok","expires_in":3600}`))
			return
		}
		n := atomic.AddInt64(&calls, 1)
		if n < 2 {
			w.Write([]byte(`{"rt_cd":"1","msg_cd":"EGW00201","msg1":"rate limited"}`))
			return
		}
		w.Write([]byte(`{"rt_cd":"0","msg1":"ok","output":{"ODNO":"7"}}`))
	})

	res, err := c.SendDomesticOrder(context.Background(), "005930", 1, 70000, domain.SideBuy)
	require.NoError(t, err)
	assert.Equal(t, "success", res.Status)
	assert.GreaterOrEqual(t, atomic.LoadInt64(&calls), int64(2))
}

func TestAccessToken_InvalidatesOn401(t *testing.T) {
	var tokenCalls int64
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth2/tokenP" {
			atomic.AddInt64(&tokenCalls, 1)
			w.Write([]byte(`{"access_token":"tok","expires_in":3600}`))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.SendDomesticOrder(context.Background(), "005930", 1, 70000, domain.SideBuy)
	require.Error(t, err)
	assert.GreaterOrEqual(t, atomic.LoadInt64(&tokenCalls), int64(2))
}

func TestInAfterHoursWindow(t *testing.T) {
	loc, _ := time.LoadLocation("Asia/Seoul")
	weekday := time.Date(2026, 7, 29, 16, 0, 0, 0, loc) // a Wednesday
	assert.True(t, inAfterHoursWindow(weekday))

	tooEarly := time.Date(2026, 7, 29, 10, 0, 0, 0, loc)
	assert.False(t, inAfterHoursWindow(tooEarly))

	saturday := time.Date(2026, 8, 1, 16, 0, 0, 0, loc)
	assert.False(t, inAfterHoursWindow(saturday))
}

func decodeJSONBody(t *testing.T, r *http.Request, out *map[string]string) {
	t.Helper()
	require.NoError(t, json.NewDecoder(r.Body).Decode(out))
}
