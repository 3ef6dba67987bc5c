package broker

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

const tokenSafetyMargin = 60 * time.Second

// tokenCache holds the current access token and persists it to disk so a
// restart does not force a fresh OAuth round-trip.
type tokenCache struct {
	mu   sync.RWMutex
	path string

	Token  string    `json:"token"`
	Expiry time.Time `json:"expiry"`
}

func newTokenCache(path string) *tokenCache {
	tc := &tokenCache{path: path}
	tc.load()
	return tc
}

func (tc *tokenCache) load() {
	data, err := os.ReadFile(tc.path)
	if err != nil {
		return
	}
	var onDisk struct {
		Token  string    `json:"token"`
		Expiry time.Time `json:"expiry"`
	}
	if err := json.Unmarshal(data, &onDisk); err != nil {
		return
	}
	tc.mu.Lock()
	tc.Token = onDisk.Token
	tc.Expiry = onDisk.Expiry
	tc.mu.Unlock()
}

func (tc *tokenCache) save() error {
	tc.mu.RLock()
	onDisk := struct {
		Token  string    `json:"token"`
		Expiry time.Time `json:"expiry"`
	}{Token: tc.Token, Expiry: tc.Expiry}
	tc.mu.RUnlock()

	data, err := json.Marshal(onDisk)
	if err != nil {
		return err
	}
	return os.WriteFile(tc.path, data, 0o600)
}

// valid reports whether the cached token can still be used, leaving a
// safety margin before its real expiry.
func (tc *tokenCache) valid() (string, bool) {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	if tc.Token == "" {
		return "", false
	}
	if time.Now().Add(tokenSafetyMargin).After(tc.Expiry) {
		return "", false
	}
	return tc.Token, true
}

func (tc *tokenCache) set(token string, expiresIn time.Duration) error {
	tc.mu.Lock()
	tc.Token = token
	tc.Expiry = time.Now().Add(expiresIn)
	tc.mu.Unlock()
	return tc.save()
}

func (tc *tokenCache) invalidate() {
	tc.mu.Lock()
	tc.Token = ""
	tc.Expiry = time.Time{}
	tc.mu.Unlock()
}
