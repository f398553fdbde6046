package database

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sdglab/trendwatcher/internal/report"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testReport(id string, createdAt time.Time) *report.Report {
	return &report.Report{
		ID:                 id,
		CreatedAt:          createdAt,
		WindowStart:        createdAt.Add(-48 * time.Hour),
		WindowEnd:          createdAt,
		SourceNames:        []string{"lonely", "depression"},
		TotalPostsAnalyzed: 42,
		Summary:            "A quiet window.",
		Signals: []report.Signal{
			{ID: "s1", Category: report.CategoryPainPoint, Title: "Late night loneliness",
				Strength: report.StrengthHigh, Sentiment: report.SentimentNegative, PostCount: 12,
				SourceNames: []string{"lonely"}},
		},
		RawPostCountBySource: map[string]int{"lonely": 30, "depression": 12},
	}
}

func TestOpenCreatesDataDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "data", "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("expected missing parent directories to be created: %v", err)
	}
	defer db.Close()

	if db.Path() != path {
		t.Errorf("expected path %s, got %s", path, db.Path())
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected database file on disk: %v", err)
	}
}

func TestInsertAndGetReport(t *testing.T) {
	db := openTestDB(t)
	created := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	if err := db.InsertReport(testReport("r1", created)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r, err := db.GetReport("r1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r == nil {
		t.Fatal("expected report, got nil")
	}
	if !r.CreatedAt.Equal(created) {
		t.Errorf("expected created_at %v, got %v", created, r.CreatedAt)
	}
	if r.TotalPostsAnalyzed != 42 || r.Summary != "A quiet window." {
		t.Errorf("unexpected scalar fields: %+v", r)
	}
	if len(r.Signals) != 1 || r.Signals[0].Title != "Late night loneliness" {
		t.Errorf("unexpected signals: %+v", r.Signals)
	}
	if r.RawPostCountBySource["lonely"] != 30 {
		t.Errorf("unexpected post counts: %v", r.RawPostCountBySource)
	}
}

func TestInsertDuplicateIDFails(t *testing.T) {
	db := openTestDB(t)
	r := testReport("r1", time.Now())
	if err := db.InsertReport(r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := db.InsertReport(r); err == nil {
		t.Error("expected error inserting duplicate report id")
	}
}

func TestGetReportMissing(t *testing.T) {
	db := openTestDB(t)
	r, err := db.GetReport("nope")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r != nil {
		t.Error("expected nil for missing report")
	}
}

func TestGetAllReportsNewestFirst(t *testing.T) {
	db := openTestDB(t)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	db.InsertReport(testReport("old", base))
	db.InsertReport(testReport("new", base.Add(24*time.Hour)))
	db.InsertReport(testReport("mid", base.Add(12*time.Hour)))

	reports, err := db.GetAllReports()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reports) != 3 {
		t.Fatalf("expected 3 reports, got %d", len(reports))
	}
	want := []string{"new", "mid", "old"}
	for i, id := range want {
		if reports[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, reports[i].ID)
		}
	}
}

func TestGetPreviousReport(t *testing.T) {
	db := openTestDB(t)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	db.InsertReport(testReport("a", base))
	db.InsertReport(testReport("b", base.Add(24*time.Hour)))
	db.InsertReport(testReport("c", base.Add(48*time.Hour)))

	prev, err := db.GetPreviousReport(base.Add(48 * time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prev == nil || prev.ID != "b" {
		t.Fatalf("expected report b, got %+v", prev)
	}

	// Strictly older: a report is never its own predecessor
	prev, err = db.GetPreviousReport(base)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prev != nil {
		t.Errorf("expected nil before the oldest report, got %s", prev.ID)
	}
}

func TestDeleteReport(t *testing.T) {
	db := openTestDB(t)
	db.InsertReport(testReport("r1", time.Now()))

	deleted, err := db.DeleteReport("r1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !deleted {
		t.Error("expected deletion to be reported")
	}

	deleted, err = db.DeleteReport("r1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted {
		t.Error("expected no deletion on second attempt")
	}

	n, _ := db.CountReports()
	if n != 0 {
		t.Errorf("expected 0 reports, got %d", n)
	}
}

func TestSettingsRoundtrip(t *testing.T) {
	db := openTestDB(t)

	s, err := db.GetSettings()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s != nil {
		t.Fatal("expected nil settings before first save")
	}

	if err := db.SaveSettings(Settings{Sources: []string{"lonely"}, Recipients: []string{"a@b.c"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := db.SaveSettings(Settings{Sources: []string{"lonely", "depression"}, Recipients: nil}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s, err = db.GetSettings()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s == nil {
		t.Fatal("expected settings after save")
	}
	if len(s.Sources) != 2 || s.Sources[1] != "depression" {
		t.Errorf("expected latest sources, got %v", s.Sources)
	}
	if len(s.Recipients) != 0 {
		t.Errorf("expected recipients cleared, got %v", s.Recipients)
	}
}
