// Package session tracks which accounts are logged in, which one is
// active, and the user's theme and relay list. State lives in storage and
// is handed to callers as an explicit Context value.
package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/quantumlife/nostrboard/internal/core"
	"github.com/quantumlife/nostrboard/internal/logging"
	"github.com/quantumlife/nostrboard/internal/storage"
)

// Context is a snapshot of the session.
type Context struct {
	Current  *core.Account        `json:"current"`
	Others   []*core.Account      `json:"others"`
	Theme    core.Theme           `json:"theme"`
	Relays   []*core.RelaySetting `json:"relays"`
	LoggedIn bool                 `json:"logged_in"`
}

// ReadRelays returns URLs of relays marked for reading.
func (c *Context) ReadRelays() []string {
	urls := make([]string, 0, len(c.Relays))
	for _, r := range c.Relays {
		if r.Read {
			urls = append(urls, r.URL)
		}
	}
	return urls
}

// RelayListener is notified after the relay list changes.
type RelayListener func(readURLs []string)

// Manager mutates session state. Methods are safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	accounts *storage.AccountStore
	relays   *storage.RelayStore
	settings *storage.SettingsStore
	onRelays []RelayListener
}

// NewManager creates a manager over db.
func NewManager(db *storage.DB) *Manager {
	return &Manager{
		accounts: storage.NewAccountStore(db),
		relays:   storage.NewRelayStore(db),
		settings: storage.NewSettingsStore(db),
	}
}

// OnRelaysChanged registers fn to run after AddRelay or RemoveRelay.
func (m *Manager) OnRelaysChanged(fn RelayListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onRelays = append(m.onRelays, fn)
}

// Current returns the session snapshot.
func (m *Manager) Current() (*Context, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot()
}

// Login adds the account for a hex or npub key and makes it current.
func (m *Manager) Login(key, displayName string) (*Context, error) {
	pk, err := core.NormalizePubKey(key)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.accounts.Upsert(&core.Account{PubKey: pk, DisplayName: displayName}); err != nil {
		return nil, fmt.Errorf("save account: %w", err)
	}
	if err := m.accounts.SetCurrent(pk); err != nil {
		return nil, fmt.Errorf("set current account: %w", err)
	}

	logging.WithField("account", core.ShortKey(pk)).Info("logged in")
	return m.snapshot()
}

// Switch makes an already logged-in account current.
func (m *Manager) Switch(key string) (*Context, error) {
	pk, err := core.NormalizePubKey(key)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.accounts.SetCurrent(pk); err != nil {
		return nil, err
	}
	return m.snapshot()
}

// Logout removes an account. If it was current, the oldest remaining
// account becomes current.
func (m *Manager) Logout(key string) (*Context, error) {
	pk, err := core.NormalizePubKey(key)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	acct, err := m.accounts.Get(pk)
	if err != nil {
		return nil, err
	}
	if err := m.accounts.Delete(pk); err != nil {
		return nil, err
	}

	if acct.IsCurrent {
		remaining, err := m.accounts.List()
		if err != nil {
			return nil, err
		}
		if len(remaining) > 0 {
			if err := m.accounts.SetCurrent(remaining[0].PubKey); err != nil {
				return nil, err
			}
		}
	}

	logging.WithField("account", core.ShortKey(pk)).Info("logged out")
	return m.snapshot()
}

// SetTheme stores the theme preference.
func (m *Manager) SetTheme(name string) (*Context, error) {
	theme, err := core.ParseTheme(name)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.settings.Set(storage.SettingTheme, string(theme)); err != nil {
		return nil, fmt.Errorf("save theme: %w", err)
	}
	return m.snapshot()
}

// AddRelay adds or updates a relay.
func (m *Manager) AddRelay(rawURL string, read, write bool) (*Context, error) {
	u, err := core.NormalizeRelayURL(rawURL)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.relays.Put(&core.RelaySetting{URL: u, Read: read, Write: write}); err != nil {
		return nil, fmt.Errorf("save relay: %w", err)
	}
	return m.relaysChanged()
}

// RemoveRelay deletes a relay.
func (m *Manager) RemoveRelay(rawURL string) (*Context, error) {
	u, err := core.NormalizeRelayURL(rawURL)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.relays.Delete(u); err != nil {
		return nil, err
	}
	return m.relaysChanged()
}

// SeedRelays stores urls when no relays are configured yet.
func (m *Manager) SeedRelays(urls []string) error {
	normalized := make([]string, 0, len(urls))
	for _, u := range urls {
		n, err := core.NormalizeRelayURL(u)
		if err != nil {
			return err
		}
		normalized = append(normalized, n)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.relays.Seed(normalized)
}

func (m *Manager) relaysChanged() (*Context, error) {
	ctx, err := m.snapshot()
	if err != nil {
		return nil, err
	}
	urls := ctx.ReadRelays()
	for _, fn := range m.onRelays {
		fn(urls)
	}
	return ctx, nil
}

// snapshot reads the full state; m.mu must be held.
func (m *Manager) snapshot() (*Context, error) {
	accounts, err := m.accounts.List()
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	ctx := &Context{Others: make([]*core.Account, 0)}
	for _, a := range accounts {
		if a.IsCurrent {
			ctx.Current = a
			ctx.LoggedIn = true
			continue
		}
		ctx.Others = append(ctx.Others, a)
	}

	theme, err := m.settings.GetOr(storage.SettingTheme, string(core.ThemeSystem))
	if err != nil {
		return nil, fmt.Errorf("read theme: %w", err)
	}
	ctx.Theme, err = core.ParseTheme(theme)
	if errors.Is(err, core.ErrInvalidTheme) {
		ctx.Theme = core.ThemeSystem
	}

	if ctx.Relays, err = m.relays.List(); err != nil {
		return nil, fmt.Errorf("list relays: %w", err)
	}
	return ctx, nil
}
