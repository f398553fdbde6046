package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/sdglab/trendwatcher/internal/config"
)

const defaultBrevoURL = "https://api.brevo.com/v3"

// Client sends transactional email through the Brevo API.
type Client struct {
	apiKey      string
	senderName  string
	senderEmail string
	client      *http.Client
	baseURL     string
}

// NewClient creates a Brevo client, reading the API key from the
// configured environment variable.
func NewClient(cfg config.Email) *Client {
	return &Client{
		apiKey:      os.Getenv(cfg.APIKeyEnv),
		senderName:  cfg.SenderName,
		senderEmail: cfg.SenderEmail,
		client:      &http.Client{Timeout: 30 * time.Second},
		baseURL:     defaultBrevoURL,
	}
}

// IsConfigured reports whether the channel credential is available.
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// Send delivers the rendered HTML digest to the recipients.
func (c *Client) Send(ctx context.Context, subject, html string, recipients []string) error {
	if c.apiKey == "" {
		return fmt.Errorf("Brevo API key not configured")
	}

	type recipient struct {
		Email string `json:"email"`
	}
	to := make([]recipient, len(recipients))
	for i, r := range recipients {
		to[i] = recipient{Email: r}
	}

	body := map[string]any{
		"sender": map[string]string{
			"name":  c.senderName,
			"email": c.senderEmail,
		},
		"to":          to,
		"subject":     subject,
		"htmlContent": html,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/smtp/email", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("Brevo API error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
		return fmt.Errorf("Brevo returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
