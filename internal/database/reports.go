package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sdglab/trendwatcher/internal/report"
)

// InsertReport persists a fully assembled report. Reports are
// append-only: an id collision is an error, not an upsert.
func (db *DB) InsertReport(r *report.Report) error {
	sources, err := json.Marshal(r.SourceNames)
	if err != nil {
		return fmt.Errorf("marshaling source names: %w", err)
	}
	signals, err := json.Marshal(r.Signals)
	if err != nil {
		return fmt.Errorf("marshaling signals: %w", err)
	}
	counts, err := json.Marshal(r.RawPostCountBySource)
	if err != nil {
		return fmt.Errorf("marshaling post counts: %w", err)
	}

	_, err = db.conn.Exec(
		`INSERT INTO reports
		(id, created_at, window_start, window_end, source_names, total_posts_analyzed, summary, signals, raw_post_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID,
		r.CreatedAt.UTC().Format(time.RFC3339Nano),
		r.WindowStart.UTC().Format(time.RFC3339Nano),
		r.WindowEnd.UTC().Format(time.RFC3339Nano),
		string(sources),
		r.TotalPostsAnalyzed,
		r.Summary,
		string(signals),
		string(counts),
	)
	return err
}

// GetAllReports returns all reports ordered newest-first.
func (db *DB) GetAllReports() ([]report.Report, error) {
	rows, err := db.conn.Query(
		`SELECT id, created_at, window_start, window_end, source_names, total_posts_analyzed, summary, signals, raw_post_count
		FROM reports ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []report.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *r)
	}
	return reports, rows.Err()
}

// GetReport returns the report with the given id, or nil when absent.
func (db *DB) GetReport(id string) (*report.Report, error) {
	row := db.conn.QueryRow(
		`SELECT id, created_at, window_start, window_end, source_names, total_posts_analyzed, summary, signals, raw_post_count
		FROM reports WHERE id = ?`, id,
	)
	r, err := scanReport(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

// GetPreviousReport returns the most recent report strictly older than
// the given time, or nil when none exists.
func (db *DB) GetPreviousReport(before time.Time) (*report.Report, error) {
	row := db.conn.QueryRow(
		`SELECT id, created_at, window_start, window_end, source_names, total_posts_analyzed, summary, signals, raw_post_count
		FROM reports WHERE created_at < ? ORDER BY created_at DESC LIMIT 1`,
		before.UTC().Format(time.RFC3339Nano),
	)
	r, err := scanReport(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

// DeleteReport removes a report. Returns whether a row was deleted.
func (db *DB) DeleteReport(id string) (bool, error) {
	result, err := db.conn.Exec("DELETE FROM reports WHERE id = ?", id)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

// CountReports returns the number of persisted reports.
func (db *DB) CountReports() (int, error) {
	var n int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM reports").Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*report.Report, error) {
	var r report.Report
	var createdAt, windowStart, windowEnd, sources, signals, counts string

	if err := row.Scan(&r.ID, &createdAt, &windowStart, &windowEnd, &sources,
		&r.TotalPostsAnalyzed, &r.Summary, &signals, &counts); err != nil {
		return nil, err
	}

	var err error
	if r.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if r.WindowStart, err = time.Parse(time.RFC3339Nano, windowStart); err != nil {
		return nil, fmt.Errorf("parsing window_start: %w", err)
	}
	if r.WindowEnd, err = time.Parse(time.RFC3339Nano, windowEnd); err != nil {
		return nil, fmt.Errorf("parsing window_end: %w", err)
	}
	if err = json.Unmarshal([]byte(sources), &r.SourceNames); err != nil {
		return nil, fmt.Errorf("unmarshaling source names: %w", err)
	}
	if err = json.Unmarshal([]byte(signals), &r.Signals); err != nil {
		return nil, fmt.Errorf("unmarshaling signals: %w", err)
	}
	if err = json.Unmarshal([]byte(counts), &r.RawPostCountBySource); err != nil {
		return nil, fmt.Errorf("unmarshaling post counts: %w", err)
	}
	return &r, nil
}
