package reddit

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"
)

const defaultTokenURL = "https://www.reddit.com/api/v1/access_token"

// expiryMargin is subtracted from the issuer's stated expiry so a token
// is refreshed before it actually lapses mid-run.
const expiryMargin = 60 * time.Second

// tokenSource exchanges Reddit OAuth app credentials for a short-lived
// bearer token and caches it process-wide. One acquisition serves all
// sources in a run; the mutex is held across the exchange so concurrent
// first use refreshes at most once.
type tokenSource struct {
	clientID     string
	clientSecret string
	userAgent    string
	client       *http.Client
	tokenURL     string

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func newTokenSource(clientID, clientSecret, userAgent string, client *http.Client) *tokenSource {
	return &tokenSource{
		clientID:     clientID,
		clientSecret: clientSecret,
		userAgent:    userAgent,
		client:       client,
		tokenURL:     defaultTokenURL,
	}
}

// Configured reports whether OAuth credentials are available.
func (t *tokenSource) Configured() bool {
	return t.clientID != "" && t.clientSecret != ""
}

// Token returns a cached token, refreshing it via the credential
// exchange when absent or expired.
func (t *tokenSource) Token(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.token != "" && time.Now().Before(t.expiresAt) {
		return t.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, "POST", t.tokenURL,
		strings.NewReader("grant_type=client_credentials"))
	if err != nil {
		return "", fmt.Errorf("creating token request: %w", err)
	}
	credentials := base64.StdEncoding.EncodeToString([]byte(t.clientID + ":" + t.clientSecret))
	req.Header.Set("Authorization", "Basic "+credentials)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", t.userAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return "", fmt.Errorf("token exchange returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding token response: %w", err)
	}
	if result.AccessToken == "" {
		return "", fmt.Errorf("token exchange returned empty access_token")
	}

	t.token = result.AccessToken
	t.expiresAt = time.Now().Add(time.Duration(result.ExpiresIn)*time.Second - expiryMargin)
	log.Println("reddit: OAuth token acquired")
	return t.token, nil
}
