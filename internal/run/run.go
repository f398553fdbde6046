// Package run orchestrates one full analysis run: ingest posts through
// the fallback chain, analyze them, assemble and persist a report, and
// deliver the digest. Ingestion, analysis and persistence failures are
// fatal to the run; a failed email send is not.
package run

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sdglab/trendwatcher/internal/analyze"
	"github.com/sdglab/trendwatcher/internal/config"
	"github.com/sdglab/trendwatcher/internal/database"
	"github.com/sdglab/trendwatcher/internal/email"
	"github.com/sdglab/trendwatcher/internal/reddit"
	"github.com/sdglab/trendwatcher/internal/report"
)

// ErrAnalysis marks a failed or unparseable analysis call. There is no
// report without a summary.
var ErrAnalysis = errors.New("analysis failed")

// ErrPersistence marks a failed report save. The report content is
// logged before this is returned, so no analysis work is silently lost.
var ErrPersistence = errors.New("saving report failed")

// Ingester fetches posts for the configured sources. Implementations
// should return a non-nil outcome even on error, so per-source failures
// stay reportable; the runner tolerates nil.
type Ingester interface {
	FetchAll(ctx context.Context, sources []string) (*reddit.Outcome, error)
}

// Analyzer extracts signals from a post batch.
type Analyzer interface {
	Analyze(ctx context.Context, posts []reddit.Post, sources []string) (*analyze.Analysis, error)
}

// Store persists reports and loads operator settings.
type Store interface {
	InsertReport(r *report.Report) error
	GetSettings() (*database.Settings, error)
}

// Mailer delivers the rendered digest.
type Mailer interface {
	IsConfigured() bool
	Send(ctx context.Context, subject, html string, recipients []string) error
}

// Options carries per-run overrides from the trigger request.
type Options struct {
	Sources    []string
	Recipients []string
}

// Result summarizes a completed run.
type Result struct {
	Report        *report.Report
	PostsAnalyzed int
	SignalsFound  int
	EmailSent     bool
	SourceErrors  []string
}

// Runner executes analysis runs.
type Runner struct {
	cfg      *config.Config
	store    Store
	ingester Ingester
	analyzer Analyzer
	mailer   Mailer
}

// NewRunner wires a runner from its collaborators.
func NewRunner(cfg *config.Config, store Store, ingester Ingester, analyzer Analyzer, mailer Mailer) *Runner {
	return &Runner{cfg: cfg, store: store, ingester: ingester, analyzer: analyzer, mailer: mailer}
}

// Execute performs one run. On failure the returned Result still
// carries whatever per-source errors were collected, so the trigger
// surface can tell "nothing fetched" apart from later failures.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	sources, recipients := r.resolveRunConfig(opts)
	log.Printf("Run started: sources=%v recipients=%d", sources, len(recipients))

	outcome, err := r.ingester.FetchAll(ctx, sources)
	if err != nil {
		result := &Result{}
		if outcome != nil {
			result.SourceErrors = outcome.Errors
		}
		return result, err
	}
	if len(outcome.Errors) > 0 {
		log.Printf("Partial ingestion: %d sources failed: %v", len(outcome.Errors), outcome.Errors)
	}
	log.Printf("Fetched %d posts from %d sources", len(outcome.Posts), len(sources))

	analysis, err := r.analyzer.Analyze(ctx, outcome.Posts, sources)
	if err != nil {
		return &Result{SourceErrors: outcome.Errors}, fmt.Errorf("%w: %v", ErrAnalysis, err)
	}

	rep := report.Assemble(outcome.Posts, sources, analysis.Summary, analysis.Signals,
		time.Now(), r.cfg.Reddit.LookbackHours)

	if err := r.store.InsertReport(rep); err != nil {
		// Log the fully-formed report before failing: the analysis
		// already cost money and must remain recoverable from logs.
		if data, jsonErr := json.Marshal(rep); jsonErr == nil {
			log.Printf("Report %s could not be saved; content: %s", rep.ID, data)
		}
		return &Result{SourceErrors: outcome.Errors}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	log.Printf("Report %s saved: %d posts, %d signals", rep.ID, rep.TotalPostsAnalyzed, len(rep.Signals))

	result := &Result{
		Report:        rep,
		PostsAnalyzed: rep.TotalPostsAnalyzed,
		SignalsFound:  len(rep.Signals),
		SourceErrors:  outcome.Errors,
	}

	if len(recipients) > 0 && r.mailer.IsConfigured() {
		if err := r.sendDigest(ctx, rep, outcome.Posts, recipients); err != nil {
			log.Printf("Email failed (non-blocking): %v", err)
		} else {
			result.EmailSent = true
			log.Printf("Email sent to %d recipients", len(recipients))
		}
	} else {
		log.Println("Skipping email (no credential or no recipients)")
	}

	return result, nil
}

func (r *Runner) sendDigest(ctx context.Context, rep *report.Report, posts []reddit.Post, recipients []string) error {
	html, err := email.RenderDigest(rep, email.TopPosts(posts, email.TopPostCount))
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("TrendWatcher Report — %s", rep.CreatedAt.Format("Jan 2, 2006"))
	return r.mailer.Send(ctx, subject, html, recipients)
}

// resolveRunConfig picks the effective sources and recipients: request
// override > persisted settings > config file defaults.
func (r *Runner) resolveRunConfig(opts Options) (sources, recipients []string) {
	sources = opts.Sources
	recipients = opts.Recipients

	var settings *database.Settings
	if sources == nil || recipients == nil {
		var err error
		settings, err = r.store.GetSettings()
		if err != nil {
			log.Printf("Loading settings failed, using config defaults: %v", err)
		}
	}

	if len(sources) == 0 {
		if settings != nil && len(settings.Sources) > 0 {
			sources = settings.Sources
		} else {
			sources = r.cfg.Sources
		}
	}
	if len(recipients) == 0 {
		if settings != nil && len(settings.Recipients) > 0 {
			recipients = settings.Recipients
		} else {
			recipients = r.cfg.Email.Recipients
		}
	}
	return sources, recipients
}
