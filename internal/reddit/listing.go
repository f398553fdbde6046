package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// listingPost is the wire shape of one post in a Reddit JSON listing.
type listingPost struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	CreatedUTC  float64 `json:"created_utc"`
	Permalink   string  `json:"permalink"`
}

type listingEnvelope struct {
	Data struct {
		Children []struct {
			Data listingPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// fetchWithToken fetches a source's hot listing via the authenticated
// OAuth endpoint. Highest reliability, only attempted when credentials
// are configured.
func (f *Fetcher) fetchWithToken(ctx context.Context, source, token string) ([]Post, error) {
	url := fmt.Sprintf("%s/r/%s/hot.json?limit=%d&raw_json=1", f.oauthBaseURL, source, f.maxPosts)
	headers := map[string]string{
		"Authorization": "Bearer " + token,
		"Accept":        "application/json",
	}
	posts, err := f.fetchListing(ctx, url, source, headers)
	if err != nil {
		return nil, strategyErr(source, "authenticated fetch", err)
	}
	return posts, nil
}

// fetchDirect fetches the public hot listing with only a User-Agent.
// Works from developer machines; commonly blocked from data-center IPs.
func (f *Fetcher) fetchDirect(ctx context.Context, source string) ([]Post, error) {
	url := fmt.Sprintf("%s/r/%s/hot.json?limit=%d&raw_json=1", f.baseURL, source, f.maxPosts)
	headers := map[string]string{"Accept": "application/json"}
	posts, err := f.fetchListing(ctx, url, source, headers)
	if err != nil {
		return nil, strategyErr(source, "direct fetch", err)
	}
	return posts, nil
}

func (f *Fetcher) fetchListing(ctx context.Context, url, source string, headers map[string]string) ([]Post, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	var envelope listingEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decoding listing: %w", err)
	}

	now := time.Now()
	var posts []Post
	for _, child := range envelope.Data.Children {
		p := child.Data
		createdAt := time.Time{}
		if p.CreatedUTC > 0 {
			createdAt = time.Unix(int64(p.CreatedUTC), 0)
		}
		if !withinWindow(createdAt, now, f.lookbackHours) {
			continue
		}
		posts = append(posts, Post{
			ID:           p.ID,
			Title:        p.Title,
			Body:         p.Selftext,
			Score:        p.Score,
			CommentCount: p.NumComments,
			SourceName:   source,
			CreatedAt:    createdAt,
			Permalink:    p.Permalink,
		})
	}
	return posts, nil
}
