// Package marketdata implements C5: a single persistent WebSocket
// connection to the brokerage's realtime tick feed, with
// resubscribe-on-reconnect and exponential backoff.
//
// Grounded on aristath-sentinel's MarketStatusWebSocket: one connection
// guarded by a mutex, a dedicated read loop per connection generation
// (so a stale reader exits cleanly on reconnect), and an
// attempt-indexed exponential backoff. That client subscribed to a
// fixed "markets" channel and emitted to an event bus; this one
// resubscribes a dynamic, growing symbol set on every reconnect and
// forwards parsed ticks directly to the ticker-state cache instead of
// publishing to a bus (SPEC_FULL carries no general-purpose event bus).
package marketdata

import (
	"context"
	"crypto/tls"
	"fmt"
	"math"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/aristath/arduino-trader/internal/domain"
)

const (
	dialTimeout        = 30 * time.Second
	writeWait          = 10 * time.Second
	baseReconnectDelay = 1 * time.Second
	maxReconnectDelay  = 60 * time.Second
	subscribeDelay     = 50 * time.Millisecond
)

// Sink receives parsed ticks. The ticker-state cache implements this.
type Sink interface {
	OnRealtimeData(symbol string, price, open, high, low, changeRate, cumulativeVol float64)
}

// ApprovalKeyFetcher obtains the session approval key used to open the
// realtime channel (spec.md §6 step 1).
type ApprovalKeyFetcher interface {
	ApprovalKey(ctx context.Context) (string, error)
}

// Feed is the C5 market-data websocket client.
type Feed struct {
	wsURL   string
	fetcher ApprovalKeyFetcher
	sink    Sink
	log     zerolog.Logger

	httpClient *http.Client

	mu          sync.RWMutex
	conn        *websocket.Conn
	connected   bool
	subscribed  map[string]domain.Market
	pendingSubs map[string]domain.Market
	approvalKey string

	stopOnce sync.Once
	stopChan chan struct{}
}

// New builds a feed client. Call Start to connect.
func New(wsURL string, fetcher ApprovalKeyFetcher, sink Sink, log zerolog.Logger) *Feed {
	return &Feed{
		wsURL:       wsURL,
		fetcher:     fetcher,
		sink:        sink,
		log:         log.With().Str("component", "marketdata").Logger(),
		httpClient:  http1Client(),
		subscribed:  make(map[string]domain.Market),
		pendingSubs: make(map[string]domain.Market),
		stopChan:    make(chan struct{}),
	}
}

// http1Client forces HTTP/1.1 since the WebSocket upgrade handshake
// needs it even when the broker's edge negotiates HTTP/2 by default.
func http1Client() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			TLSClientConfig: &tls.Config{
				NextProtos: []string{"http/1.1"},
			},
			ForceAttemptHTTP2: false,
		},
	}
}

// Start connects and begins the read loop, retrying with backoff on
// both the initial dial and any subsequent disconnect.
func (f *Feed) Start(ctx context.Context) {
	go f.runLoop(ctx)
}

// Stop closes the connection and halts reconnection attempts.
func (f *Feed) Stop() {
	f.stopOnce.Do(func() { close(f.stopChan) })
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn != nil {
		f.conn.Close(websocket.StatusNormalClosure, "shutdown")
	}
}

// Subscribe adds symbols to the feed. If connected, they are subscribed
// immediately; otherwise they are queued and flushed on reconnect.
func (f *Feed) Subscribe(symbols map[string]domain.Market) {
	f.mu.Lock()
	connected := f.connected
	conn := f.conn
	approvalKey := f.approvalKey
	for s, m := range symbols {
		if _, ok := f.subscribed[s]; ok {
			continue
		}
		if connected {
			f.subscribed[s] = m
		} else {
			f.pendingSubs[s] = m
		}
	}
	f.mu.Unlock()

	if connected && conn != nil {
		for s, m := range symbols {
			f.sendSubscribe(context.Background(), conn, approvalKey, s, m)
			time.Sleep(subscribeDelay)
		}
	}
}

func (f *Feed) runLoop(ctx context.Context) {
	attempt := 0
	for {
		select {
		case <-f.stopChan:
			return
		case <-ctx.Done():
			return
		default:
		}

		conn, generation, err := f.connect(ctx)
		if err != nil {
			f.log.Warn().Err(err).Int("attempt", attempt+1).Msg("market feed connect failed")
			attempt++
			f.sleepBackoff(attempt)
			continue
		}
		attempt = 0

		f.readLoop(ctx, conn, generation)

		select {
		case <-f.stopChan:
			return
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (f *Feed) sleepBackoff(attempt int) {
	delay := time.Duration(float64(baseReconnectDelay) * math.Pow(2, float64(attempt-1)))
	if delay > maxReconnectDelay {
		delay = maxReconnectDelay
	}
	select {
	case <-time.After(delay):
	case <-f.stopChan:
	}
}

func (f *Feed) connect(ctx context.Context) (*websocket.Conn, int64, error) {
	approvalKey, err := f.fetcher.ApprovalKey(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("approval key: %w", err)
	}

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, f.wsURL, &websocket.DialOptions{HTTPClient: f.httpClient})
	if err != nil {
		return nil, 0, fmt.Errorf("dial: %w", err)
	}

	f.mu.Lock()
	f.conn = conn
	f.connected = true
	f.approvalKey = approvalKey
	for s, m := range f.pendingSubs {
		f.subscribed[s] = m
	}
	toSubscribe := make(map[string]domain.Market, len(f.subscribed))
	for s, m := range f.subscribed {
		toSubscribe[s] = m
	}
	f.pendingSubs = make(map[string]domain.Market)
	f.mu.Unlock()

	for s, m := range toSubscribe {
		if err := f.sendSubscribe(ctx, conn, approvalKey, s, m); err != nil {
			f.log.Warn().Err(err).Str("symbol", s).Msg("subscribe failed")
		}
		time.Sleep(subscribeDelay)
	}

	return conn, time.Now().UnixNano(), nil
}

func (f *Feed) sendSubscribe(ctx context.Context, conn *websocket.Conn, approvalKey, symbol string, market domain.Market) error {
	trID := "H0STCNT0"
	if market == domain.MarketUS {
		trID = "HDFSUSP0"
	}
	envelope := fmt.Sprintf(`{"header":{"approval_key":"%s","custtype":"P","tr_type":"1","content-type":"utf-8"},"body":{"input":{"tr_id":"%s","tr_key":"%s"}}}`, approvalKey, trID, symbol)

	writeCtx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, []byte(envelope))
}

func (f *Feed) readLoop(ctx context.Context, conn *websocket.Conn, generation int64) {
	defer func() {
		f.mu.Lock()
		if f.conn == conn {
			f.connected = false
			f.conn = nil
		}
		f.mu.Unlock()
	}()

	for {
		select {
		case <-f.stopChan:
			return
		case <-ctx.Done():
			return
		default:
		}

		msgType, data, err := conn.Read(ctx)
		if err != nil {
			f.log.Info().Err(err).Msg("market feed read ended")
			return
		}
		if msgType != websocket.MessageText {
			continue
		}
		f.handleFrame(data)
	}
}

// handleFrame parses one realtime frame. Control/heartbeat frames whose
// first byte isn't '0' (unencrypted) or '1' (encrypted) are ignored.
func (f *Feed) handleFrame(data []byte) {
	if len(data) == 0 {
		return
	}
	if data[0] != '0' && data[0] != '1' {
		return
	}

	tick, ok := ParseFrame(data)
	if !ok {
		return
	}
	f.sink.OnRealtimeData(tick.Symbol, tick.Price, tick.Open, tick.High, tick.Low, tick.ChangeRate, tick.CumulativeVolume)
}
