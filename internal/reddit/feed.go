package reddit

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"
)

// feedBodyLimit caps the HTML-stripped body text taken from a feed entry.
const feedBodyLimit = 500

// commentsID extracts the stable post id from a permalink-shaped URL.
var commentsID = regexp.MustCompile(`/comments/([a-z0-9]+)`)

// fetchFeed fetches a source's hot posts via the public Atom feed. This
// is the last-resort strategy: the feed carries no engagement numbers,
// so Score and CommentCount are always 0. An expected quality floor,
// not a bug.
func (f *Fetcher) fetchFeed(ctx context.Context, source string) ([]Post, error) {
	url := fmt.Sprintf("%s/r/%s/hot.rss", f.baseURL, source)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, strategyErr(source, "feed fetch", err)
	}
	req.Header.Set("User-Agent", f.userAgent+" RSS")
	req.Header.Set("Accept", "application/atom+xml,application/xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, strategyErr(source, "feed fetch", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, strategyErr(source, "feed fetch", fmt.Errorf("HTTP %d", resp.StatusCode))
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, strategyErr(source, "feed fetch", fmt.Errorf("parsing feed: %w", err))
	}

	now := time.Now()
	var posts []Post
	for _, item := range feed.Items {
		createdAt := time.Time{}
		if item.UpdatedParsed != nil {
			createdAt = *item.UpdatedParsed
		} else if item.PublishedParsed != nil {
			createdAt = *item.PublishedParsed
		}
		if !withinWindow(createdAt, now, f.lookbackHours) {
			continue
		}

		body := item.Content
		if body == "" {
			body = item.Description
		}
		body = truncate(stripHTML(body), feedBodyLimit)

		posts = append(posts, Post{
			ID:           feedEntryID(item),
			Title:        strings.TrimSpace(item.Title),
			Body:         body,
			Score:        0,
			CommentCount: 0,
			SourceName:   source,
			CreatedAt:    createdAt,
			Permalink:    strings.TrimPrefix(item.Link, "https://www.reddit.com"),
		})
	}
	return posts, nil
}

// feedEntryID extracts the post id from the entry's permalink-shaped
// link or GUID, falling back to a random id when neither matches.
func feedEntryID(item *gofeed.Item) string {
	for _, candidate := range []string{item.Link, item.GUID} {
		if m := commentsID.FindStringSubmatch(candidate); m != nil {
			return m[1]
		}
	}
	return uuid.NewString()
}

// stripHTML removes tags and decodes common entities from feed body HTML.
func stripHTML(text string) string {
	var result strings.Builder
	inTag := false
	for _, r := range text {
		if r == '<' {
			inTag = true
			result.WriteRune(' ')
			continue
		}
		if r == '>' {
			inTag = false
			continue
		}
		if !inTag {
			result.WriteRune(r)
		}
	}

	s := result.String()
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&quot;", `"`)
	s = strings.ReplaceAll(s, "&#39;", "'")

	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
