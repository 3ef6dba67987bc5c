// Package broker implements C1: a rate-limited REST adapter over a
// KIS-style brokerage API, with OAuth token caching, domestic/overseas
// order placement, and balance/quote/ranking queries.
//
// The request queue and its single background worker are grounded on
// aristath-sentinel's Tradernet SDK client: one goroutine drains a
// buffered channel of jobs, sleeping between them to enforce a minimum
// inter-request gap regardless of how many goroutines call in
// concurrently. That client signs requests with HMAC; this one instead
// attaches an OAuth bearer token sourced from the token cache.
package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/arduino-trader/internal/database/repositories"
)

const (
	defaultRateLimitDelay = 550 * time.Millisecond
	requestQueueSize      = 100
	maxRetries            = 4
	afterHoursOrdDvsn     = "81"
)

type requestJob struct {
	ctx      context.Context
	method   string
	path     string
	trID     string
	body     any
	query    map[string]string
	resultCh chan requestResult
}

type requestResult struct {
	data []byte
	err  error
}

// Client is the C1 broker adapter.
type Client struct {
	baseURL       string
	appKey        string
	appSecret     string
	accountNo     string
	isSimulated   bool
	afterHoursOK  bool
	rateLimit     time.Duration
	httpClient    *http.Client
	log           zerolog.Logger
	token         *tokenCache
	requestQueue  chan requestJob
	stopChan      chan struct{}
	workerDone    chan struct{}
	once          sync.Once
	trIDs         *repositories.ApiTransactionRepository

	lastBalanceMu     sync.RWMutex
	lastDomesticCash  float64
	lastDomesticHold  []domainHolding
	lastOverseasHold  []domainHolding
}

// Config bundles the adapter's connection parameters.
type Config struct {
	BaseURL       string
	AppKey        string
	AppSecret     string
	AccountNo     string // CANO(8) + product code(2)
	IsSimulated   bool
	AfterHoursOK  bool
	TokenPath     string
	RateLimit     time.Duration
}

// NewClient builds a broker adapter and starts its rate-limiting worker.
func NewClient(cfg Config, log zerolog.Logger) *Client {
	delay := cfg.RateLimit
	if delay <= 0 {
		delay = defaultRateLimitDelay
	}
	c := &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		appKey:       cfg.AppKey,
		appSecret:    cfg.AppSecret,
		accountNo:    cfg.AccountNo,
		isSimulated:  cfg.IsSimulated,
		afterHoursOK: cfg.AfterHoursOK,
		rateLimit:    delay,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		log:          log.With().Str("component", "broker").Logger(),
		token:        newTokenCache(cfg.TokenPath),
		requestQueue: make(chan requestJob, requestQueueSize),
		stopChan:     make(chan struct{}),
		workerDone:   make(chan struct{}),
	}
	go c.worker()
	return c
}

// Close drains the queue and stops the worker. Safe to call more than once.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.stopChan)
		close(c.requestQueue)
		<-c.workerDone
	})
}

// defaultTrIDs seeds the api_transactions table with the compiled-in
// KIS tr_id pairs (live, simulated) for the handful of logical
// operations whose tr_id actually differs between environments —
// order placement and balance inquiry. The simulated variant follows
// KIS's documented convention of swapping the leading "T" for "V".
var defaultTrIDs = map[string][2]string{
	"domestic_buy":     {"TTTC0802U", "VTTC0802U"},
	"domestic_sell":    {"TTTC0801U", "VTTC0801U"},
	"overseas_buy":     {"TTTT1002U", "VTTT1002U"},
	"overseas_sell":    {"TTTT1006U", "VTTT1006U"},
	"domestic_balance": {"TTTC8434R", "VTTC8434R"},
	"overseas_balance": {"TTTS3012R", "VTTS3012R"},
	"overseas_cash":    {"TTTS3007R", "VTTS3007R"},
}

// SetTransactionRepository wires a persisted logical-name -> tr_id table,
// letting an operator override any of defaultTrIDs without a rebuild. It
// seeds the table with defaultTrIDs on first use. Optional: a Client with
// no repository set falls back to the compiled-in defaults directly.
func (c *Client) SetTransactionRepository(repo *repositories.ApiTransactionRepository) error {
	if err := repo.SeedDefaults(defaultTrIDs); err != nil {
		return fmt.Errorf("seed api transactions: %w", err)
	}
	c.trIDs = repo
	return nil
}

// resolveTrID looks up logicalName for the current environment, falling
// back to defaultTrIDs (and then to fallback) when no repository is
// wired or no row is found.
func (c *Client) resolveTrID(logicalName, fallback string) string {
	if c.trIDs != nil {
		if trID, ok, err := c.trIDs.Get(logicalName, c.isSimulated); err == nil && ok {
			return trID
		}
	}
	if pair, ok := defaultTrIDs[logicalName]; ok {
		if c.isSimulated {
			return pair[1]
		}
		return pair[0]
	}
	return fallback
}

// CANO returns the 8-digit account number without the product code.
func (c *Client) CANO() string {
	if len(c.accountNo) < 8 {
		return c.accountNo
	}
	return c.accountNo[:8]
}

// ProductCode returns the 2-digit product code suffix.
func (c *Client) ProductCode() string {
	if len(c.accountNo) < 10 {
		return "01"
	}
	return c.accountNo[8:10]
}

func (c *Client) worker() {
	defer close(c.workerDone)

	var lastRequestTime time.Time
	first := true

	process := func(job requestJob) {
		if !first {
			elapsed := time.Since(lastRequestTime)
			if elapsed < c.rateLimit {
				time.Sleep(c.rateLimit - elapsed)
			}
		}
		first = false

		data, err := c.doWithRetry(job)
		lastRequestTime = time.Now()
		job.resultCh <- requestResult{data: data, err: err}
	}

	for {
		select {
		case <-c.stopChan:
			for {
				select {
				case job, ok := <-c.requestQueue:
					if !ok {
						return
					}
					process(job)
				default:
					return
				}
			}
		case job, ok := <-c.requestQueue:
			if !ok {
				return
			}
			process(job)
		}
	}
}

// enqueue submits a job to the worker and blocks for its result.
func (c *Client) enqueue(ctx context.Context, method, path, trID string, query map[string]string, body any) ([]byte, error) {
	resultCh := make(chan requestResult, 1)
	job := requestJob{ctx: ctx, method: method, path: path, trID: trID, query: query, body: body, resultCh: resultCh}

	select {
	case c.requestQueue <- job:
	case <-c.stopChan:
		return nil, fmt.Errorf("broker client is closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
		return nil, fmt.Errorf("broker request queue is full")
	}

	select {
	case result := <-resultCh:
		return result.data, result.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// doWithRetry issues the HTTP call, retrying on throttle signals (HTTP
// 429/500 or the EGW00201 business code) with a 1.2*attempt backoff, and
// on a single 401 by invalidating and refetching the token.
func (c *Client) doWithRetry(job requestJob) ([]byte, error) {
	deniedToken := false
	for attempt := 1; attempt <= maxRetries; attempt++ {
		data, status, err := c.doOnce(job)
		if err != nil {
			if attempt == maxRetries {
				return nil, err
			}
			time.Sleep(time.Duration(float64(attempt) * 1.2 * float64(time.Second)))
			continue
		}

		if status == http.StatusUnauthorized && !deniedToken {
			deniedToken = true
			c.token.invalidate()
			continue
		}

		if isThrottled(status, data) {
			if attempt == maxRetries {
				return nil, fmt.Errorf("broker rate limit exceeded after %d attempts", attempt)
			}
			time.Sleep(time.Duration(float64(attempt) * 1.2 * float64(time.Second)))
			continue
		}

		return data, nil
	}
	return nil, fmt.Errorf("broker request failed after %d attempts", maxRetries)
}

func isThrottled(status int, body []byte) bool {
	if status == http.StatusTooManyRequests || status >= 500 {
		return true
	}
	s := string(body)
	return strings.Contains(s, "EGW00201") || strings.Contains(s, "초당 거래건수")
}

func (c *Client) doOnce(job requestJob) ([]byte, int, error) {
	token, err := c.accessToken(job.ctx)
	if err != nil {
		return nil, 0, err
	}

	var bodyReader io.Reader
	if job.body != nil {
		payload, err := json.Marshal(job.body)
		if err != nil {
			return nil, 0, err
		}
		bodyReader = bytes.NewReader(payload)
	}

	url := c.baseURL + job.path
	if len(job.query) > 0 {
		q := make([]string, 0, len(job.query))
		for k, v := range job.query {
			q = append(q, k+"="+v)
		}
		url += "?" + strings.Join(q, "&")
	}

	req, err := http.NewRequestWithContext(job.ctx, job.method, url, bodyReader)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("appkey", c.appKey)
	req.Header.Set("appsecret", c.appSecret)
	if job.trID != "" {
		req.Header.Set("tr_id", job.trID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return data, resp.StatusCode, nil
}

// domainHolding is a minimal shape used only for the last-good-balance
// memoization; callers receive domain.PortfolioHolding via balances.go.
type domainHolding struct {
	Symbol       string
	Quantity     int64
	AverageBuy   float64
	CurrentPrice float64
	Sector       string
}
