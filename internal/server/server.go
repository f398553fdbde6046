// Package server exposes the trigger and report-inspection surface as a
// JSON API. Rendering and layout live elsewhere; this layer only
// decodes requests, invokes the runner or store, and encodes results.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sdglab/trendwatcher/internal/config"
	"github.com/sdglab/trendwatcher/internal/database"
	"github.com/sdglab/trendwatcher/internal/diff"
	"github.com/sdglab/trendwatcher/internal/reddit"
	"github.com/sdglab/trendwatcher/internal/report"
	"github.com/sdglab/trendwatcher/internal/run"
)

// RunTrigger abstracts the runner so tests can count invocations.
type RunTrigger interface {
	Execute(ctx context.Context, opts run.Options) (*run.Result, error)
}

// Server is the HTTP server for triggering runs and inspecting reports.
type Server struct {
	db     *database.DB
	runner RunTrigger
	cfg    *config.Config
	router chi.Router
}

// New creates a new Server.
func New(cfg *config.Config, db *database.DB, runner RunTrigger) *Server {
	s := &Server{db: db, runner: runner, cfg: cfg}
	s.routes()
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve starts the server on the given port.
func (s *Server) Serve(port int) error {
	return http.ListenAndServe(fmt.Sprintf(":%d", port), s.Handler())
}

func (s *Server) routes() {
	r := chi.NewRouter()

	r.Post("/api/run", s.handleRun)
	r.Get("/api/reports", s.handleListReports)
	r.Get("/api/reports/{id}", s.handleGetReport)
	r.Delete("/api/reports/{id}", s.handleDeleteReport)
	r.Get("/api/reports/{id}/diff", s.handleDiffReport)
	r.Get("/api/settings", s.handleGetSettings)
	r.Put("/api/settings", s.handlePutSettings)

	s.router = r
}

// runRequest is the optional trigger body. An absent or unparseable
// body falls back to persisted settings / config defaults.
type runRequest struct {
	SourceNames []string `json:"sourceNames"`
	Recipients  []string `json:"recipients"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if !errors.Is(err, io.EOF) {
			log.Printf("Trigger body unparseable, using defaults: %v", err)
		}
		req = runRequest{}
	}

	result, err := s.runner.Execute(r.Context(), run.Options{
		Sources:    req.SourceNames,
		Recipients: req.Recipients,
	})
	if err != nil {
		s.writeRunError(w, result, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"postsAnalyzed": result.PostsAnalyzed,
		"signalsFound":  result.SignalsFound,
		"emailSent":     result.EmailSent,
	})
}

// writeRunError maps the run error taxonomy onto distinguishable
// response bodies: an operator must be able to tell "nothing fetched"
// from "fetched but analysis/storage failed" from the body alone.
func (s *Server) writeRunError(w http.ResponseWriter, result *run.Result, err error) {
	body := map[string]any{"error": err.Error()}

	switch {
	case errors.Is(err, reddit.ErrNoPosts):
		body["stage"] = "ingestion"
		if result != nil && len(result.SourceErrors) > 0 {
			body["sourceErrors"] = result.SourceErrors
		}
	case errors.Is(err, run.ErrAnalysis):
		body["stage"] = "analysis"
	case errors.Is(err, run.ErrPersistence):
		body["stage"] = "persistence"
	}

	writeJSON(w, http.StatusInternalServerError, body)
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	reports, err := s.db.GetAllReports()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "listing reports: %v", err)
		return
	}
	if reports == nil {
		reports = []report.Report{} // never encode null for an empty list
	}
	writeJSON(w, http.StatusOK, reports)
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.db.GetReport(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "loading report: %v", err)
		return
	}
	if rep == nil {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleDeleteReport(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.db.DeleteReport(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "deleting report: %v", err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (s *Server) handleDiffReport(w http.ResponseWriter, r *http.Request) {
	current, err := s.db.GetReport(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "loading report: %v", err)
		return
	}
	if current == nil {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}

	previous, err := s.db.GetPreviousReport(current.CreatedAt)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "loading previous report: %v", err)
		return
	}
	if previous == nil {
		writeError(w, http.StatusNotFound, "no earlier report to compare against")
		return
	}

	comparison := diff.Compare(current, previous)
	if !comparison.HasChanges() {
		writeJSON(w, http.StatusOK, map[string]any{"noChanges": true})
		return
	}
	writeJSON(w, http.StatusOK, comparison)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.db.GetSettings()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "loading settings: %v", err)
		return
	}
	if settings == nil {
		settings = &database.Settings{
			Sources:    s.cfg.Sources,
			Recipients: s.cfg.Email.Recipients,
		}
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var settings database.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeError(w, http.StatusBadRequest, "invalid settings body: %v", err)
		return
	}
	if len(settings.Sources) == 0 {
		writeError(w, http.StatusBadRequest, "at least one source is required")
		return
	}

	if err := s.db.SaveSettings(settings); err != nil {
		writeError(w, http.StatusInternalServerError, "saving settings: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, map[string]string{"error": fmt.Sprintf(format, args...)})
}
