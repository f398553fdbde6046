// Package report holds the persisted domain types of an analysis run
// and the assembler that builds a report record at the boundary between
// ingestion+analysis and persistence.
package report

import (
	"time"

	"github.com/google/uuid"

	"github.com/sdglab/trendwatcher/internal/reddit"
)

// SignalCategory classifies what kind of insight a signal is.
type SignalCategory string

const (
	CategoryEmergingTopic SignalCategory = "emerging_topic"
	CategoryGrowingTrend  SignalCategory = "growing_trend"
	CategoryPainPoint     SignalCategory = "pain_point"
	CategoryHypothesis    SignalCategory = "hypothesis"
)

// Categories lists all signal categories in display order.
var Categories = []SignalCategory{
	CategoryEmergingTopic,
	CategoryGrowingTrend,
	CategoryPainPoint,
	CategoryHypothesis,
}

// SignalStrength is a totally ordered scale: low < medium < high.
type SignalStrength string

const (
	StrengthLow    SignalStrength = "low"
	StrengthMedium SignalStrength = "medium"
	StrengthHigh   SignalStrength = "high"
)

// Rank returns the position of the strength on the ordered scale.
// Unknown values rank below low.
func (s SignalStrength) Rank() int {
	switch s {
	case StrengthLow:
		return 1
	case StrengthMedium:
		return 2
	case StrengthHigh:
		return 3
	}
	return 0
}

// Sentiment is the overall tone of the discussion behind a signal.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentMixed    Sentiment = "mixed"
	SentimentNeutral  Sentiment = "neutral"
)

// Signal is one extracted insight. Signals carry no stable identity
// across reports: the same underlying trend re-extracted tomorrow gets
// a fresh id and possibly a reworded title. The diff engine matches on
// normalized titles instead.
type Signal struct {
	ID            string         `json:"id"`
	Category      SignalCategory `json:"category"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	Strength      SignalStrength `json:"strength"`
	Sentiment     Sentiment      `json:"sentiment"`
	PostCount     int            `json:"postCount"`
	SourceNames   []string       `json:"sourceNames"`
	GrowthPercent *int           `json:"growthPercent,omitempty"`
}

// Report is one completed analysis run. Never mutated after persistence;
// deleted only by explicit operator action.
type Report struct {
	ID                   string         `json:"id"`
	CreatedAt            time.Time      `json:"createdAt"`
	WindowStart          time.Time      `json:"windowStart"`
	WindowEnd            time.Time      `json:"windowEnd"`
	SourceNames          []string       `json:"sourceNames"`
	TotalPostsAnalyzed   int            `json:"totalPostsAnalyzed"`
	Summary              string         `json:"summary"`
	Signals              []Signal       `json:"signals"`
	RawPostCountBySource map[string]int `json:"rawPostCountBySource"`
}

// Assemble builds the report record from the aggregated post set and
// the analysis output. Report and signal ids are generated here, once,
// never earlier in the pipeline.
func Assemble(posts []reddit.Post, sources []string, summary string, signals []Signal, now time.Time, lookbackHours int) *Report {
	counts := make(map[string]int, len(sources))
	for _, s := range sources {
		counts[s] = 0
	}
	for _, p := range posts {
		counts[p.SourceName]++
	}

	withIDs := make([]Signal, len(signals))
	for i, sig := range signals {
		sig.ID = uuid.NewString()
		withIDs[i] = sig
	}

	return &Report{
		ID:                   uuid.NewString(),
		CreatedAt:            now,
		WindowStart:          now.Add(-time.Duration(lookbackHours) * time.Hour),
		WindowEnd:            now,
		SourceNames:          sources,
		TotalPostsAnalyzed:   len(posts),
		Summary:              summary,
		Signals:              withIDs,
		RawPostCountBySource: counts,
	}
}
