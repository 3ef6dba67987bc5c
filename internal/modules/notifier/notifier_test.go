package notifier_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/arduino-trader/internal/modules/notifier"
)

func TestNotifier_DeliversEnqueuedMessage(t *testing.T) {
	var mu sync.Mutex
	var received []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		mu.Lock()
		received = append(received, body["text"])
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := notifier.New(srv.URL, zerolog.Nop())
	n.Start()
	defer n.Close()

	n.Enqueue("portfolio update: 3 positions")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "portfolio update: 3 positions", received[0])
}

func TestNotifier_RetriesOnFailureThenSucceeds(t *testing.T) {
	var mu sync.Mutex
	attempts := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		if n < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := notifier.New(srv.URL, zerolog.Nop())
	n.Start()
	defer n.Close()

	n.Enqueue("trade executed: BUY 005930 x1")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return attempts >= 2
	}, 5*time.Second, 10*time.Millisecond)
}

func TestNotifier_EnqueueDoesNotBlockWhenWebhookEmpty(t *testing.T) {
	n := notifier.New("", zerolog.Nop())
	n.Start()
	defer n.Close()

	done := make(chan struct{})
	go func() {
		n.Enqueue("no webhook configured")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked with no webhook configured")
	}
}
