// Package notifier implements C10: an append-only queue of
// human-readable report strings drained by a single background worker
// that POSTs each one to an external webhook. The queue/worker shape
// mirrors the broker client's own request queue (one goroutine draining
// a buffered channel, sleeping between retries); delivery itself is a
// bare JSON POST, since spec.md only requires the outbound side and no
// library in the pack wraps a single-webhook POST with anything
// net/http doesn't already give.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	queueSize     = 4096
	maxAttempts   = 3
	retryBaseWait = 2 * time.Second
)

// Notifier queues messages and delivers them to a webhook accepting
// JSON {"text": "..."}.
type Notifier struct {
	webhookURL string
	httpClient *http.Client
	log        zerolog.Logger

	queue      chan string
	stopChan   chan struct{}
	workerDone chan struct{}
	once       sync.Once
}

func New(webhookURL string, log zerolog.Logger) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log.With().Str("component", "notifier").Logger(),
		queue:      make(chan string, queueSize),
		stopChan:   make(chan struct{}),
		workerDone: make(chan struct{}),
	}
}

// Start launches the delivery worker. When webhookURL is empty the worker
// still drains the queue but discards each message without sending it,
// since the webhook is optional.
func (n *Notifier) Start() {
	go n.worker()
}

// Enqueue appends a message for delivery. Non-blocking: if the queue is
// saturated the message is dropped and logged rather than blocking the
// caller, since every caller here is on the strategy/scheduler hot path.
func (n *Notifier) Enqueue(message string) {
	select {
	case n.queue <- message:
	default:
		n.log.Warn().Msg("notifier queue full, dropping message")
	}
}

// Close stops accepting new deliveries and waits for the worker to drain
// whatever is already queued.
func (n *Notifier) Close() {
	n.once.Do(func() {
		close(n.stopChan)
		close(n.queue)
		<-n.workerDone
	})
}

func (n *Notifier) worker() {
	defer close(n.workerDone)
	for msg := range n.queue {
		if n.webhookURL == "" {
			continue
		}
		if err := n.deliverWithRetry(msg); err != nil {
			n.log.Error().Err(err).Msg("failed to deliver notification after retries")
		}
	}
}

func (n *Notifier) deliverWithRetry(message string) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := n.deliver(message); err != nil {
			lastErr = err
			time.Sleep(retryBaseWait * time.Duration(attempt))
			continue
		}
		return nil
	}
	return fmt.Errorf("deliver after %d attempts: %w", maxAttempts, lastErr)
}

func (n *Notifier) deliver(message string) error {
	payload, err := json.Marshal(map[string]string{"text": message})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
