package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// accessToken returns a valid bearer token, refreshing it from the OAuth
// client-credentials endpoint when the cached one is missing or within
// its safety margin of expiry. Called from inside doOnce, outside of the
// rate-limit queue — token issuance is its own lightweight call.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	if token, ok := c.token.valid(); ok {
		return token, nil
	}
	return c.issueToken(ctx)
}

func (c *Client) issueToken(ctx context.Context) (string, error) {
	if c.appKey == "" || c.appSecret == "" {
		return "", fmt.Errorf("broker app key/secret not configured")
	}

	payload := map[string]string{
		"grant_type": "client_credentials",
		"appkey":     c.appKey,
		"appsecret":  c.appSecret,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth2/tokenP", strings.NewReader(string(body)))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned empty access_token")
	}

	expiresIn := time.Duration(tr.ExpiresIn) * time.Second
	if expiresIn <= 0 {
		expiresIn = 24 * time.Hour
	}
	if err := c.token.set(tr.AccessToken, expiresIn); err != nil {
		c.log.Warn().Err(err).Msg("failed to persist token cache")
	}
	return tr.AccessToken, nil
}

// approvalKey fetches the WebSocket session approval key (spec.md §6
// step 1), a separate OAuth-adjacent endpoint from the REST bearer
// token. It bypasses the rate-limit queue since C5 calls it once per
// connection, not per tick.
func (c *Client) approvalKey(ctx context.Context) (string, error) {
	payload := map[string]string{
		"grant_type": "client_credentials",
		"appkey":     c.appKey,
		"secretkey":  c.appSecret,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth2/Approval", strings.NewReader(string(body)))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out struct {
		ApprovalKey string `json:"approval_key"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode approval key response: %w", err)
	}
	if out.ApprovalKey == "" {
		return "", fmt.Errorf("approval endpoint returned empty key")
	}
	return out.ApprovalKey, nil
}

// ApprovalKey exposes approvalKey to C5's websocket client.
func (c *Client) ApprovalKey(ctx context.Context) (string, error) {
	return c.approvalKey(ctx)
}
