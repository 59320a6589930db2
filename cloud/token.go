package cloud

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// safetyMarginSeconds is subtracted from the upstream-reported token
// lifetime so a cached token is never served close to its expiry.
const safetyMarginSeconds = 3600

// TokenCache caches the registry bearer token until shortly before it
// expires. Concurrent cache misses coalesce into a single upstream fetch.
type TokenCache struct {
	tokenURL     string
	clientID     string
	clientSecret string
	httpClient   *http.Client

	mu        sync.Mutex
	token     string
	expiresAt time.Time

	group singleflight.Group
}

// NewTokenCache creates a token cache for the given auth endpoint
func NewTokenCache(tokenURL, clientID, clientSecret string, timeout time.Duration) *TokenCache {
	return &TokenCache{
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

// Token returns the cached token while it is still valid, otherwise
// fetches a fresh one. On fetch failure the cache stays empty and the
// error is returned to the caller.
func (tc *TokenCache) Token(ctx context.Context) (string, error) {
	tc.mu.Lock()
	if tc.token != "" && time.Now().Before(tc.expiresAt) {
		token := tc.token
		tc.mu.Unlock()
		return token, nil
	}
	tc.mu.Unlock()

	v, err, _ := tc.group.Do("token", func() (interface{}, error) {
		// Another caller may have refreshed while we waited
		tc.mu.Lock()
		if tc.token != "" && time.Now().Before(tc.expiresAt) {
			token := tc.token
			tc.mu.Unlock()
			return token, nil
		}
		tc.mu.Unlock()

		token, lifetime, err := tc.fetch(ctx)
		if err != nil {
			tc.mu.Lock()
			tc.token = ""
			tc.expiresAt = time.Time{}
			tc.mu.Unlock()
			return "", err
		}

		tc.mu.Lock()
		tc.token = token
		tc.expiresAt = time.Now().Add(time.Duration(lifetime-safetyMarginSeconds) * time.Second)
		tc.mu.Unlock()
		return token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// fetch performs the client-credentials exchange
func (tc *TokenCache) fetch(ctx context.Context) (string, int64, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", tc.clientID)
	form.Set("client_secret", tc.clientSecret)
	form.Set("audience", "https://api2.arduino.cc/iot")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tc.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := tc.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("token request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", 0, fmt.Errorf("failed to decode token response: %v", err)
	}
	if body.AccessToken == "" {
		return "", 0, fmt.Errorf("token endpoint returned an empty token")
	}

	return body.AccessToken, body.ExpiresIn, nil
}
