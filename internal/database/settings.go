package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// Settings holds the operator-editable run configuration persisted
// alongside reports: which sources are enabled and who gets the digest.
// Config file values serve as defaults when no row exists yet.
type Settings struct {
	Sources    []string `json:"sources"`
	Recipients []string `json:"recipients"`
}

// GetSettings returns the persisted settings, or nil when none were
// saved yet.
func (db *DB) GetSettings() (*Settings, error) {
	row := db.conn.QueryRow("SELECT sources, recipients FROM settings WHERE id = 1")

	var sources, recipients string
	if err := row.Scan(&sources, &recipients); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	var s Settings
	if err := json.Unmarshal([]byte(sources), &s.Sources); err != nil {
		return nil, fmt.Errorf("unmarshaling sources: %w", err)
	}
	if err := json.Unmarshal([]byte(recipients), &s.Recipients); err != nil {
		return nil, fmt.Errorf("unmarshaling recipients: %w", err)
	}
	return &s, nil
}

// SaveSettings writes the settings back, replacing any previous row.
func (db *DB) SaveSettings(s Settings) error {
	sources, err := json.Marshal(s.Sources)
	if err != nil {
		return fmt.Errorf("marshaling sources: %w", err)
	}
	recipients, err := json.Marshal(s.Recipients)
	if err != nil {
		return fmt.Errorf("marshaling recipients: %w", err)
	}

	_, err = db.conn.Exec(
		`INSERT INTO settings (id, sources, recipients, updated_at)
		VALUES (1, ?, ?, datetime('now'))
		ON CONFLICT(id) DO UPDATE SET
			sources = excluded.sources,
			recipients = excluded.recipients,
			updated_at = excluded.updated_at`,
		string(sources), string(recipients),
	)
	return err
}
