package reddit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestFetcher(srv *httptest.Server) *Fetcher {
	return &Fetcher{
		client:        srv.Client(),
		userAgent:     "test-agent",
		maxPosts:      100,
		lookbackHours: 48,
		tokens:        newTokenSource("", "", "test-agent", srv.Client()),
		baseURL:       srv.URL,
		oauthBaseURL:  srv.URL,
	}
}

func listingJSON(createdAt time.Time, titles ...string) string {
	var children []string
	for i, title := range titles {
		children = append(children, fmt.Sprintf(
			`{"data":{"id":"p%d","title":%q,"selftext":"body","score":10,"num_comments":3,"created_utc":%d,"permalink":"/r/test/comments/p%d/x/"}}`,
			i, title, createdAt.Unix(), i))
	}
	return fmt.Sprintf(`{"data":{"children":[%s]}}`, strings.Join(children, ","))
}

func atomFeed(updated time.Time, titles ...string) string {
	var entries strings.Builder
	for i, title := range titles {
		fmt.Fprintf(&entries, `<entry>
  <id>t3_f%d</id>
  <title>%s</title>
  <link href="https://www.reddit.com/r/test/comments/f%d/x/"/>
  <updated>%s</updated>
  <content type="html">&lt;p&gt;feed body&lt;/p&gt;</content>
</entry>`, i, title, i, updated.Format(time.RFC3339))
	}
	return `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>hot posts</title>
` + entries.String() + `
</feed>`
}

func TestFetchSourceDirectSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/hot.json") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, listingJSON(time.Now().Add(-time.Hour), "First", "Second"))
	}))
	defer srv.Close()

	f := newTestFetcher(srv)
	posts, err := f.FetchSource(context.Background(), "lonely")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("expected 2 posts, got %d", len(posts))
	}
	if posts[0].SourceName != "lonely" {
		t.Errorf("expected source name lonely, got %q", posts[0].SourceName)
	}
	if posts[0].Score != 10 || posts[0].CommentCount != 3 {
		t.Errorf("expected engagement numbers carried over, got %d/%d", posts[0].Score, posts[0].CommentCount)
	}
}

func TestFetchSourceAuthenticatedShortCircuits(t *testing.T) {
	directCalls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/token":
			fmt.Fprint(w, `{"access_token":"tok","expires_in":3600}`)
		case r.Header.Get("Authorization") == "Bearer tok":
			fmt.Fprint(w, listingJSON(time.Now().Add(-time.Hour), "Auth post"))
		default:
			directCalls++
			http.Error(w, "blocked", http.StatusForbidden)
		}
	}))
	defer srv.Close()

	f := newTestFetcher(srv)
	f.tokens = newTokenSource("id", "secret", "test-agent", srv.Client())
	f.tokens.tokenURL = srv.URL + "/api/token"

	posts, err := f.FetchSource(context.Background(), "lonely")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(posts) != 1 || posts[0].Title != "Auth post" {
		t.Fatalf("expected the authenticated listing, got %+v", posts)
	}
	if directCalls != 0 {
		t.Errorf("expected no direct fetch after authenticated success, got %d", directCalls)
	}
}

func TestFetchSourceFallsThroughToFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/hot.json") {
			http.Error(w, "blocked", http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "application/atom+xml")
		fmt.Fprint(w, atomFeed(time.Now().Add(-2*time.Hour), "Feed post"))
	}))
	defer srv.Close()

	f := newTestFetcher(srv)
	posts, err := f.FetchSource(context.Background(), "depression")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(posts) != 1 {
		t.Fatalf("expected 1 post, got %d", len(posts))
	}
	p := posts[0]
	if p.Title != "Feed post" {
		t.Errorf("expected title from feed, got %q", p.Title)
	}
	if p.Score != 0 || p.CommentCount != 0 {
		t.Errorf("expected zero engagement from feed, got %d/%d", p.Score, p.CommentCount)
	}
	if p.ID != "f0" {
		t.Errorf("expected id extracted from permalink, got %q", p.ID)
	}
	if p.Body != "feed body" {
		t.Errorf("expected stripped HTML body, got %q", p.Body)
	}
	if p.Permalink != "/r/test/comments/f0/x/" {
		t.Errorf("expected relative permalink, got %q", p.Permalink)
	}
}

func TestFetchSourceAllStrategiesFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := newTestFetcher(srv)
	_, err := f.FetchSource(context.Background(), "lonely")
	if err == nil {
		t.Fatal("expected error when all strategies fail")
	}
	var se *StrategyError
	if !errors.As(err, &se) {
		t.Fatalf("expected StrategyError, got %T", err)
	}
	if se.Strategy != "feed fetch" {
		t.Errorf("expected the final strategy's error, got %q", se.Strategy)
	}
}

func TestListingFiltersOldPosts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"data":{"children":[
  {"data":{"id":"a","title":"Fresh","created_utc":%d}},
  {"data":{"id":"b","title":"Stale","created_utc":%d}},
  {"data":{"id":"c","title":"Undated","created_utc":0}}
]}}`, time.Now().Add(-time.Hour).Unix(), time.Now().Add(-72*time.Hour).Unix())
	}))
	defer srv.Close()

	f := newTestFetcher(srv)
	posts, err := f.FetchSource(context.Background(), "lonely")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(posts) != 1 || posts[0].Title != "Fresh" {
		t.Fatalf("expected only the fresh post, got %+v", posts)
	}
}

func TestFetchAllPartialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/r/good/") {
			if strings.HasSuffix(r.URL.Path, "/hot.json") {
				fmt.Fprint(w, listingJSON(time.Now().Add(-time.Hour), "A", "B", "C"))
				return
			}
		}
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := newTestFetcher(srv)
	out, err := f.FetchAll(context.Background(), []string{"good", "bad"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Posts) != 3 {
		t.Errorf("expected 3 posts from the healthy source, got %d", len(out.Posts))
	}
	if len(out.Errors) != 1 {
		t.Fatalf("expected 1 source error, got %d: %v", len(out.Errors), out.Errors)
	}
	if !strings.HasPrefix(out.Errors[0], "r/bad: ") {
		t.Errorf("expected error prefixed with source, got %q", out.Errors[0])
	}
}

func TestFetchAllErrorOrderMatchesConfig(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := newTestFetcher(srv)
	sources := []string{"zeta", "alpha", "mid"}
	out, err := f.FetchAll(context.Background(), sources)
	if !errors.Is(err, ErrNoPosts) {
		t.Fatalf("expected ErrNoPosts when everything fails, got %v", err)
	}
	if len(out.Errors) != 3 {
		t.Fatalf("expected 3 errors, got %d", len(out.Errors))
	}
	for i, source := range sources {
		if !strings.HasPrefix(out.Errors[i], "r/"+source+": ") {
			t.Errorf("error %d: expected source %s, got %q", i, source, out.Errors[i])
		}
	}
}

func TestFetchAllOrderOnlyAffectsOutputOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(r.URL.Path, "/")
		source := parts[2]
		fmt.Fprint(w, listingJSON(time.Now().Add(-time.Hour), source+" post"))
	}))
	defer srv.Close()

	f := newTestFetcher(srv)
	first, err := f.FetchAll(context.Background(), []string{"alpha", "beta"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := f.FetchAll(context.Background(), []string{"beta", "alpha"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	membership := func(posts []Post) map[string]bool {
		m := make(map[string]bool)
		for _, p := range posts {
			m[p.SourceName+"/"+p.Title] = true
		}
		return m
	}
	a, b := membership(first.Posts), membership(second.Posts)
	if len(a) != len(b) {
		t.Fatalf("expected same membership, got %v vs %v", a, b)
	}
	for k := range a {
		if !b[k] {
			t.Errorf("post %s missing after permuting sources", k)
		}
	}

	// Concatenation follows configured order
	if first.Posts[0].SourceName != "alpha" || second.Posts[0].SourceName != "beta" {
		t.Error("expected output order to follow configured source order")
	}
}

func TestStripHTML(t *testing.T) {
	got := stripHTML(`<p>Hello &amp; <b>world</b>&nbsp;&quot;quoted&quot;</p>`)
	want := `Hello & world "quoted"`
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
