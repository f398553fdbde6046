package reddit

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/sdglab/trendwatcher/internal/config"
)

const (
	defaultBaseURL      = "https://www.reddit.com"
	defaultOAuthBaseURL = "https://oauth.reddit.com"
)

// Outcome aggregates one ingestion run across all configured sources:
// the posts from every source that succeeded plus one human-readable
// entry per source that failed all strategies.
type Outcome struct {
	Posts  []Post
	Errors []string
}

// Fetcher fetches subreddit posts through an ordered fallback chain:
// authenticated API (when credentials are configured), public JSON
// listing, Atom feed. First success wins; no retries within a strategy.
type Fetcher struct {
	client        *http.Client
	userAgent     string
	maxPosts      int
	lookbackHours int
	tokens        *tokenSource
	baseURL       string
	oauthBaseURL  string
}

// NewFetcher creates a Fetcher from config, reading OAuth credentials
// from the configured environment variables.
func NewFetcher(cfg config.Reddit) *Fetcher {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	client := &http.Client{Timeout: timeout}

	return &Fetcher{
		client:        client,
		userAgent:     cfg.UserAgent,
		maxPosts:      cfg.MaxPosts,
		lookbackHours: cfg.LookbackHours,
		tokens:        newTokenSource(os.Getenv(cfg.ClientIDEnv), os.Getenv(cfg.ClientSecretEnv), cfg.UserAgent, client),
		baseURL:       defaultBaseURL,
		oauthBaseURL:  defaultOAuthBaseURL,
	}
}

// FetchSource fetches one source's posts, trying each strategy in order.
// A failed strategy is logged and falls through; the feed strategy's
// outcome, success or failure, is final.
func (f *Fetcher) FetchSource(ctx context.Context, source string) ([]Post, error) {
	if f.tokens.Configured() {
		token, err := f.tokens.Token(ctx)
		if err != nil {
			log.Printf("r/%s: token acquisition failed: %v", source, err)
		} else {
			posts, err := f.fetchWithToken(ctx, source, token)
			if err == nil {
				log.Printf("r/%s: authenticated fetch OK, %d posts", source, len(posts))
				return posts, nil
			}
			log.Printf("r/%s: %v", source, err)
		}
	}

	posts, err := f.fetchDirect(ctx, source)
	if err == nil {
		log.Printf("r/%s: direct fetch OK, %d posts", source, len(posts))
		return posts, nil
	}
	log.Printf("r/%s: %v", source, err)

	posts, err = f.fetchFeed(ctx, source)
	if err != nil {
		return nil, err
	}
	log.Printf("r/%s: feed fetch OK, %d posts", source, len(posts))
	return posts, nil
}

// FetchAll runs FetchSource for every source concurrently. A source that
// fails all strategies contributes an error entry instead of aborting
// the run; posts are concatenated in configured-source order. When the
// aggregate post set is empty the whole run failed and ErrNoPosts is
// returned alongside the per-source errors.
func (f *Fetcher) FetchAll(ctx context.Context, sources []string) (*Outcome, error) {
	type result struct {
		posts []Post
		err   error
	}

	results := make([]result, len(sources))
	var wg sync.WaitGroup
	for i, source := range sources {
		wg.Add(1)
		go func(i int, source string) {
			defer wg.Done()
			posts, err := f.FetchSource(ctx, source)
			results[i] = result{posts: posts, err: err}
		}(i, source)
	}
	wg.Wait()

	out := &Outcome{}
	for i, r := range results {
		if r.err != nil {
			out.Errors = append(out.Errors, fmt.Sprintf("r/%s: %v", sources[i], r.err))
			continue
		}
		out.Posts = append(out.Posts, r.posts...)
	}

	if len(out.Posts) == 0 {
		return out, ErrNoPosts
	}
	return out, nil
}
