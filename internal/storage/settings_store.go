package storage

import (
	"database/sql"
	"time"

	"github.com/quantumlife/nostrboard/internal/core"
)

// Setting keys
const (
	SettingTheme = "theme"
)

// SettingsStore handles key/value preferences
type SettingsStore struct {
	db *DB
}

// NewSettingsStore creates a new settings store
func NewSettingsStore(db *DB) *SettingsStore {
	return &SettingsStore{db: db}
}

// Get returns the value for key
func (s *SettingsStore) Get(key string) (string, error) {
	var value string
	err := s.db.conn.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", core.ErrRecordNotFound
	}
	return value, err
}

// GetOr returns the value for key, or fallback when unset
func (s *SettingsStore) GetOr(key, fallback string) (string, error) {
	value, err := s.Get(key)
	if err == core.ErrRecordNotFound {
		return fallback, nil
	}
	return value, err
}

// Set stores value under key
func (s *SettingsStore) Set(key, value string) error {
	_, err := s.db.conn.Exec(`
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().UTC())

	return err
}

// Delete removes key
func (s *SettingsStore) Delete(key string) error {
	_, err := s.db.conn.Exec(`DELETE FROM settings WHERE key = ?`, key)
	return err
}
