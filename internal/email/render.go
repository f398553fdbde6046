// Package email renders a report into an HTML digest and delivers it
// through the Brevo transactional API. Sending is best-effort: the
// caller treats a failed send as non-fatal.
package email

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/sdglab/trendwatcher/internal/reddit"
	"github.com/sdglab/trendwatcher/internal/report"
)

var md = goldmark.New()

// TopPostCount is how many top-discussed posts the digest links to.
const TopPostCount = 15

var categoryLabels = map[report.SignalCategory]string{
	report.CategoryEmergingTopic: "New Emerging Topics",
	report.CategoryGrowingTrend:  "Growing Trends",
	report.CategoryPainPoint:     "Pain Points",
	report.CategoryHypothesis:    "Product Hypotheses",
}

// RenderDigest builds the digest for a report as markdown and converts
// it to HTML.
func RenderDigest(r *report.Report, topPosts []reddit.Post) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(buildMarkdown(r, topPosts)), &buf); err != nil {
		return "", fmt.Errorf("rendering digest: %w", err)
	}
	return buf.String(), nil
}

// TopPosts returns the most-discussed posts, ranked by score plus
// comment count. Posts served by the feed strategy carry zeros for
// both, which deflates their ranking; a known accuracy limitation.
func TopPosts(posts []reddit.Post, n int) []reddit.Post {
	ranked := make([]reddit.Post, len(posts))
	copy(ranked, posts)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score+ranked[i].CommentCount > ranked[j].Score+ranked[j].CommentCount
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

func buildMarkdown(r *report.Report, topPosts []reddit.Post) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# TrendWatcher Report — %s\n\n", r.CreatedAt.Format("January 2, 2006"))
	b.WriteString("## Executive Summary\n\n")
	b.WriteString(r.Summary)
	b.WriteString("\n\n")

	var sourceTags []string
	for _, s := range r.SourceNames {
		sourceTags = append(sourceTags, "r/"+s)
	}
	fmt.Fprintf(&b, "*%d posts from %s*\n\n", r.TotalPostsAnalyzed, strings.Join(sourceTags, ", "))

	for _, cat := range report.Categories {
		var items []report.Signal
		for _, sig := range r.Signals {
			if sig.Category == cat {
				items = append(items, sig)
			}
		}
		if len(items) == 0 {
			continue
		}

		fmt.Fprintf(&b, "## %s\n\n", categoryLabels[cat])
		for _, sig := range items {
			fmt.Fprintf(&b, "- **%s** (%s)\n", sig.Title, sig.Strength)
			fmt.Fprintf(&b, "  %s\n", sig.Description)
			fmt.Fprintf(&b, "  %s\n", signalMeta(sig))
		}
		b.WriteString("\n")
	}

	if len(topPosts) > 0 {
		b.WriteString("## Top Discussed Posts\n\n")
		for _, p := range topPosts {
			fmt.Fprintf(&b, "- [%s](https://www.reddit.com%s)", p.Title, p.Permalink)
			meta := fmt.Sprintf(" — r/%s", p.SourceName)
			if p.Score > 0 {
				meta += fmt.Sprintf(" · %d pts", p.Score)
			}
			if p.CommentCount > 0 {
				meta += fmt.Sprintf(" · %d comments", p.CommentCount)
			}
			b.WriteString(meta + "\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("---\n\n*TrendWatcher by SDG Lab*\n")
	return b.String()
}

func signalMeta(sig report.Signal) string {
	var parts []string
	if sig.GrowthPercent != nil {
		parts = append(parts, fmt.Sprintf("%+d%%", *sig.GrowthPercent))
	}
	if sig.PostCount > 0 {
		parts = append(parts, fmt.Sprintf("%d posts", sig.PostCount))
	}
	parts = append(parts, string(sig.Sentiment))
	var sources []string
	for _, s := range sig.SourceNames {
		sources = append(sources, "r/"+s)
	}
	if len(sources) > 0 {
		parts = append(parts, strings.Join(sources, ", "))
	}
	return strings.Join(parts, " · ")
}
