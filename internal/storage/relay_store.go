package storage

import (
	"time"

	"github.com/quantumlife/nostrboard/internal/core"
)

// RelayStore handles relay list persistence
type RelayStore struct {
	db *DB
}

// NewRelayStore creates a new relay store
func NewRelayStore(db *DB) *RelayStore {
	return &RelayStore{db: db}
}

// List returns configured relays in the order they were added
func (s *RelayStore) List() ([]*core.RelaySetting, error) {
	rows, err := s.db.conn.Query(`
		SELECT url, read, write, added_at
		FROM relays
		ORDER BY added_at ASC, url ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	relays := make([]*core.RelaySetting, 0)
	for rows.Next() {
		r := &core.RelaySetting{}
		if err := rows.Scan(&r.URL, &r.Read, &r.Write, &r.AddedAt); err != nil {
			return nil, err
		}
		relays = append(relays, r)
	}

	return relays, rows.Err()
}

// ReadURLs returns the URLs of relays marked for reading
func (s *RelayStore) ReadURLs() ([]string, error) {
	relays, err := s.List()
	if err != nil {
		return nil, err
	}

	urls := make([]string, 0, len(relays))
	for _, r := range relays {
		if r.Read {
			urls = append(urls, r.URL)
		}
	}
	return urls, nil
}

// Count returns the number of configured relays
func (s *RelayStore) Count() (int, error) {
	var n int
	err := s.db.conn.QueryRow(`SELECT COUNT(*) FROM relays`).Scan(&n)
	return n, err
}

// Put adds a relay or updates its read/write flags
func (s *RelayStore) Put(r *core.RelaySetting) error {
	if r.AddedAt.IsZero() {
		r.AddedAt = time.Now().UTC()
	}

	_, err := s.db.conn.Exec(`
		INSERT INTO relays (url, read, write, added_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET read = excluded.read, write = excluded.write
	`, r.URL, r.Read, r.Write, r.AddedAt)

	return err
}

// Delete removes a relay
func (s *RelayStore) Delete(url string) error {
	result, err := s.db.conn.Exec(`DELETE FROM relays WHERE url = ?`, url)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return core.ErrRecordNotFound
	}
	return nil
}

// Seed inserts urls as read/write relays when the table is empty
func (s *RelayStore) Seed(urls []string) error {
	n, err := s.Count()
	if err != nil || n > 0 {
		return err
	}

	// Stagger timestamps so the seed order is kept and later additions sort after.
	base := time.Now().UTC().Add(-time.Duration(len(urls)) * time.Millisecond)
	for i, u := range urls {
		r := &core.RelaySetting{URL: u, Read: true, Write: true, AddedAt: base.Add(time.Duration(i) * time.Millisecond)}
		if err := s.Put(r); err != nil {
			return err
		}
	}
	return nil
}
