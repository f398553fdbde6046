// Package analyze asks the LLM to extract structured trend signals from
// a batch of harvested posts. The model is an opaque collaborator:
// posts + source names in, summary + signal list out. A malformed
// response is a hard failure of the run; no synthetic fallback summary.
package analyze

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/sdglab/trendwatcher/internal/llm"
	"github.com/sdglab/trendwatcher/internal/reddit"
	"github.com/sdglab/trendwatcher/internal/report"
)

const analysisPrompt = `You are a trend analyst for SDG Lab, analyzing Reddit discussions about loneliness, depression, and communication.
Return JSON: { "summary": "...", "signals": [{ "category": "emerging_topic"|"growing_trend"|"pain_point"|"hypothesis", "title": "...", "description": "...", "strength": "high"|"medium"|"low", "sentiment": "positive"|"negative"|"mixed"|"neutral", "postCount": N, "sourceNames": [...], "growthPercent": N|null }] }
Focus on: loneliness, companionship, emotional support, peer communication, mental health tools. 3-5 signals per category.

Analyze %d posts from %s (last %dh):

%s`

// postBodyLimit caps how much of each post body goes into the prompt.
const postBodyLimit = 200

// Analysis is the parsed output of one analysis call. Signal ids are
// assigned later, by the report assembler.
type Analysis struct {
	Summary string          `json:"summary"`
	Signals []report.Signal `json:"signals"`
}

// Analyzer runs trend analysis over fetched posts.
type Analyzer struct {
	provider      llm.Provider
	maxPosts      int
	maxTokens     int
	lookbackHours int
}

// NewAnalyzer creates an analyzer. maxPosts bounds how many posts are
// sent to the model: larger batches are truncated, never an error.
func NewAnalyzer(provider llm.Provider, maxPosts, maxTokens, lookbackHours int) *Analyzer {
	if maxPosts <= 0 {
		maxPosts = 200
	}
	if maxTokens <= 0 {
		maxTokens = 4000
	}
	return &Analyzer{
		provider:      provider,
		maxPosts:      maxPosts,
		maxTokens:     maxTokens,
		lookbackHours: lookbackHours,
	}
}

// Analyze sends the post batch to the LLM and parses the response.
func (a *Analyzer) Analyze(ctx context.Context, posts []reddit.Post, sources []string) (*Analysis, error) {
	if a.provider == nil {
		return nil, fmt.Errorf("no LLM provider available")
	}

	batch := posts
	if len(batch) > a.maxPosts {
		log.Printf("Truncating analysis batch from %d to %d posts", len(batch), a.maxPosts)
		batch = batch[:a.maxPosts]
	}

	prompt := fmt.Sprintf(analysisPrompt, len(posts), strings.Join(sources, ", "), a.lookbackHours, formatPosts(batch))

	responseText, err := a.provider.Generate(ctx, prompt, a.maxTokens)
	if err != nil {
		return nil, fmt.Errorf("analysis call: %w", err)
	}

	var analysis Analysis
	if err := json.Unmarshal([]byte(llm.ExtractJSON(responseText)), &analysis); err != nil {
		return nil, fmt.Errorf("parsing analysis response: %w", err)
	}
	if analysis.Summary == "" {
		return nil, fmt.Errorf("analysis response missing summary")
	}

	log.Printf("Analysis complete: %d signals", len(analysis.Signals))
	return &analysis, nil
}

func formatPosts(posts []reddit.Post) string {
	var parts []string
	for _, p := range posts {
		body := p.Body
		if runes := []rune(body); len(runes) > postBodyLimit {
			body = string(runes[:postBodyLimit])
		}
		parts = append(parts, fmt.Sprintf("[r/%s] (score:%d, comments:%d) %s\n%s",
			p.SourceName, p.Score, p.CommentCount, p.Title, body))
	}
	return strings.Join(parts, "\n---\n")
}
