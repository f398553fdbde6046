package reddit

import "time"

// Post is one unit of raw content fetched from a subreddit, normalized
// across the three fetch strategies. IDs are source-local: the same id
// string under two different subreddits is a coincidence, not a duplicate.
type Post struct {
	ID           string
	Title        string
	Body         string
	Score        int
	CommentCount int
	SourceName   string
	CreatedAt    time.Time
	Permalink    string
}

// withinWindow reports whether createdAt falls inside the lookback window
// ending at now. The boundary itself is excluded, and a zero timestamp
// never passes: strategies disagree on timestamp precision, so stale or
// undated entries are dropped rather than given the benefit of the doubt.
func withinWindow(createdAt, now time.Time, lookbackHours int) bool {
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)
	return createdAt.After(cutoff)
}
