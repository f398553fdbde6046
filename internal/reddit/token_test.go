package reddit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestTokenExchangeAndCaching(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Method != "POST" {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if _, _, ok := r.BasicAuth(); !ok {
			t.Error("expected basic auth credentials")
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-123",
			"expires_in":   3600,
		})
	}))
	defer srv.Close()

	ts := newTokenSource("id", "secret", "test-agent", srv.Client())
	ts.tokenURL = srv.URL

	token, err := ts.Token(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "tok-123" {
		t.Errorf("expected tok-123, got %q", token)
	}

	// Second call must hit the cache
	if _, err := ts.Token(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 exchange, got %d", calls)
	}
}

func TestTokenExpiryMargin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-123",
			"expires_in":   3600,
		})
	}))
	defer srv.Close()

	ts := newTokenSource("id", "secret", "test-agent", srv.Client())
	ts.tokenURL = srv.URL

	before := time.Now()
	if _, err := ts.Token(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Cached expiry must be noticeably earlier than the issuer's 3600s
	latest := before.Add(3600*time.Second - expiryMargin + time.Second)
	if ts.expiresAt.After(latest) {
		t.Errorf("expected expiry margin applied, got %v", ts.expiresAt)
	}
}

func TestTokenExchangeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	ts := newTokenSource("id", "wrong", "test-agent", srv.Client())
	ts.tokenURL = srv.URL

	if _, err := ts.Token(context.Background()); err == nil {
		t.Fatal("expected error for 401 response")
	}
}

func TestTokenExchangeEmptyToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"expires_in": 3600})
	}))
	defer srv.Close()

	ts := newTokenSource("id", "secret", "test-agent", srv.Client())
	ts.tokenURL = srv.URL

	if _, err := ts.Token(context.Background()); err == nil {
		t.Fatal("expected error for empty access_token")
	}
}

func TestConfigured(t *testing.T) {
	if newTokenSource("", "", "ua", nil).Configured() {
		t.Error("expected not configured without credentials")
	}
	if newTokenSource("id", "", "ua", nil).Configured() {
		t.Error("expected not configured with missing secret")
	}
	if !newTokenSource("id", "secret", "ua", nil).Configured() {
		t.Error("expected configured with both credentials")
	}
}
