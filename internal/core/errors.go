// Package core defines the fundamental types and errors for Nostrboard.
package core

import "errors"

// Core errors that can occur across the system
var (
	// Query errors
	ErrQueryTimeout      = errors.New("relay query timed out")
	ErrSourceUnavailable = errors.New("relay unavailable")
	ErrRelayClosed       = errors.New("relay closed subscription")
	ErrNoRelays          = errors.New("no relays configured")

	// Lookup errors
	ErrRecordNotFound      = errors.New("record not found")
	ErrContactListNotFound = errors.New("contact list not found")

	// Session errors
	ErrAccountNotFound = errors.New("account not found")
	ErrNotLoggedIn     = errors.New("not logged in")
	ErrInvalidTheme    = errors.New("invalid theme")

	// Validation errors
	ErrInvalidInput  = errors.New("invalid input")
	ErrInvalidPubKey = errors.New("invalid public key")
	ErrInvalidConfig = errors.New("invalid configuration")
)
