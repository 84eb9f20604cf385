package core

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Account is a pubkey the user has logged in with. Only public keys are
// kept; signing is out of scope.
type Account struct {
	PubKey      string    `json:"pubkey"`
	Npub        string    `json:"npub"`
	DisplayName string    `json:"display_name,omitempty"`
	IsCurrent   bool      `json:"is_current"`
	AddedAt     time.Time `json:"added_at"`
}

// Theme is the dashboard color scheme.
type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

// ParseTheme validates a theme name.
func ParseTheme(s string) (Theme, error) {
	switch t := Theme(strings.ToLower(strings.TrimSpace(s))); t {
	case ThemeLight, ThemeDark, ThemeSystem:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidTheme, s)
	}
}

// RelaySetting is a configured relay and how it is used.
type RelaySetting struct {
	URL     string    `json:"url"`
	Read    bool      `json:"read"`
	Write   bool      `json:"write"`
	AddedAt time.Time `json:"added_at"`
}

// NormalizeRelayURL checks for a ws or wss URL with a host and strips a
// trailing slash.
func NormalizeRelayURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: relay url %q: %v", ErrInvalidInput, raw, err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("%w: relay url %q must use ws or wss", ErrInvalidInput, raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: relay url %q has no host", ErrInvalidInput, raw)
	}
	u.Host = strings.ToLower(u.Host)
	return strings.TrimSuffix(u.String(), "/"), nil
}
