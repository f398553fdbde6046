// Package diff aligns signals between two independently generated
// reports and classifies what changed. Signals have no stable identity
// across runs, so the match is a computed relation over normalized
// titles, exact match only. Missing a reworded trend is acceptable;
// conflating two genuinely different trends is not.
package diff

import (
	"math"
	"regexp"
	"strings"

	"github.com/sdglab/trendwatcher/internal/report"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// normalizeTitle lowercases a title, collapses every run of
// non-alphanumeric characters to a single space, and trims. Idempotent.
func normalizeTitle(title string) string {
	return strings.TrimSpace(nonAlnum.ReplaceAllString(strings.ToLower(title), " "))
}

// findMatch returns the first candidate whose normalized title equals
// the signal's. When more than one candidate shares the title, a second
// pass additionally requires an equal category, guarding against
// cross-category title collisions.
func findMatch(sig report.Signal, candidates []report.Signal) *report.Signal {
	normalized := normalizeTitle(sig.Title)

	var first *report.Signal
	matches := 0
	for i := range candidates {
		if normalizeTitle(candidates[i].Title) == normalized {
			if first == nil {
				first = &candidates[i]
			}
			matches++
		}
	}
	if matches <= 1 {
		return first
	}

	for i := range candidates {
		if candidates[i].Category == sig.Category && normalizeTitle(candidates[i].Title) == normalized {
			return &candidates[i]
		}
	}
	return first
}

// StrengthChange pairs a current signal with the strength it had in the
// previous report.
type StrengthChange struct {
	Signal report.Signal         `json:"signal"`
	From   report.SignalStrength `json:"from"`
}

// Comparison is the result of diffing a report against its predecessor.
type Comparison struct {
	Current          *report.Report   `json:"current"`
	Previous         *report.Report   `json:"previous"`
	NewSignals       []report.Signal  `json:"newSignals"`
	GoneSignals      []report.Signal  `json:"goneSignals"`
	Strengthened     []StrengthChange `json:"strengthened"`
	Weakened         []StrengthChange `json:"weakened"`
	Unchanged        int              `json:"-"`
	PostCountDelta   int              `json:"postCountDelta"`
	PostCountPercent int              `json:"postCountPercent"`
}

// HasChanges reports whether the comparison contains any meaningful
// change worth surfacing. Unchanged matches alone do not count.
func (c *Comparison) HasChanges() bool {
	return len(c.NewSignals) > 0 || len(c.GoneSignals) > 0 ||
		len(c.Strengthened) > 0 || len(c.Weakened) > 0 ||
		c.PostCountDelta != 0
}

// Compare classifies every signal in current against previous as new,
// strengthened, weakened or unchanged, and every previous signal with
// no counterpart in current as gone. Pure; always succeeds on
// well-formed reports.
func Compare(current, previous *report.Report) *Comparison {
	c := &Comparison{Current: current, Previous: previous}

	for _, sig := range current.Signals {
		prev := findMatch(sig, previous.Signals)
		switch {
		case prev == nil:
			c.NewSignals = append(c.NewSignals, sig)
		case sig.Strength.Rank() > prev.Strength.Rank():
			c.Strengthened = append(c.Strengthened, StrengthChange{Signal: sig, From: prev.Strength})
		case sig.Strength.Rank() < prev.Strength.Rank():
			c.Weakened = append(c.Weakened, StrengthChange{Signal: sig, From: prev.Strength})
		default:
			c.Unchanged++
		}
	}

	for _, prev := range previous.Signals {
		if findMatch(prev, current.Signals) == nil {
			c.GoneSignals = append(c.GoneSignals, prev)
		}
	}

	c.PostCountDelta = current.TotalPostsAnalyzed - previous.TotalPostsAnalyzed
	if previous.TotalPostsAnalyzed > 0 {
		c.PostCountPercent = int(math.Round(float64(c.PostCountDelta) / float64(previous.TotalPostsAnalyzed) * 100))
	}

	return c
}
