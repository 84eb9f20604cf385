package storage

import (
	"database/sql"
	"time"

	"github.com/quantumlife/nostrboard/internal/core"
)

// AccountStore handles account persistence
type AccountStore struct {
	db *DB
}

// NewAccountStore creates a new account store
func NewAccountStore(db *DB) *AccountStore {
	return &AccountStore{db: db}
}

// List returns all accounts, oldest first
func (s *AccountStore) List() ([]*core.Account, error) {
	rows, err := s.db.conn.Query(`
		SELECT pubkey, display_name, is_current, added_at
		FROM accounts
		ORDER BY added_at ASC, pubkey ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := make([]*core.Account, 0)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}

	return accounts, rows.Err()
}

// Get returns an account by pubkey
func (s *AccountStore) Get(pubkey string) (*core.Account, error) {
	row := s.db.conn.QueryRow(`
		SELECT pubkey, display_name, is_current, added_at
		FROM accounts WHERE pubkey = ?
	`, pubkey)

	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, core.ErrAccountNotFound
	}
	return a, err
}

// Current returns the current account
func (s *AccountStore) Current() (*core.Account, error) {
	row := s.db.conn.QueryRow(`
		SELECT pubkey, display_name, is_current, added_at
		FROM accounts WHERE is_current = TRUE
	`)

	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotLoggedIn
	}
	return a, err
}

// Upsert adds an account or refreshes its display name. It does not change
// which account is current.
func (s *AccountStore) Upsert(a *core.Account) error {
	if a.AddedAt.IsZero() {
		a.AddedAt = time.Now().UTC()
	}

	_, err := s.db.conn.Exec(`
		INSERT INTO accounts (pubkey, display_name, is_current, added_at)
		VALUES (?, ?, FALSE, ?)
		ON CONFLICT(pubkey) DO UPDATE SET
		    display_name = COALESCE(NULLIF(excluded.display_name, ''), accounts.display_name)
	`, a.PubKey, a.DisplayName, a.AddedAt)

	return err
}

// SetCurrent marks pubkey as the only current account
func (s *AccountStore) SetCurrent(pubkey string) error {
	return s.db.Transaction(func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRow(`SELECT COUNT(*) FROM accounts WHERE pubkey = ?`, pubkey).Scan(&exists)
		if err != nil {
			return err
		}
		if exists == 0 {
			return core.ErrAccountNotFound
		}

		if _, err := tx.Exec(`UPDATE accounts SET is_current = FALSE WHERE is_current = TRUE`); err != nil {
			return err
		}
		_, err = tx.Exec(`UPDATE accounts SET is_current = TRUE WHERE pubkey = ?`, pubkey)
		return err
	})
}

// Delete removes an account
func (s *AccountStore) Delete(pubkey string) error {
	result, err := s.db.conn.Exec(`DELETE FROM accounts WHERE pubkey = ?`, pubkey)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return core.ErrAccountNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (*core.Account, error) {
	a := &core.Account{}
	var displayName sql.NullString

	if err := row.Scan(&a.PubKey, &displayName, &a.IsCurrent, &a.AddedAt); err != nil {
		return nil, err
	}

	a.DisplayName = displayName.String
	a.Npub, _ = core.EncodeNpub(a.PubKey)
	return a, nil
}
