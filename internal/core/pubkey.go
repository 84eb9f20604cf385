package core

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

const npubPrefix = "npub"

// NormalizePubKey accepts a 64-char hex key or an npub1… string and
// returns the lowercase hex form.
func NormalizePubKey(input string) (string, error) {
	s := strings.TrimSpace(input)
	if strings.HasPrefix(strings.ToLower(s), npubPrefix+"1") {
		return DecodeNpub(s)
	}
	if !IsHexPubKey(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPubKey, input)
	}
	return strings.ToLower(s), nil
}

// IsHexPubKey reports whether s is a 32-byte hex string.
func IsHexPubKey(s string) bool {
	if len(s) != 64 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// DecodeNpub decodes a NIP-19 npub into a hex public key.
func DecodeNpub(npub string) (string, error) {
	hrp, data, err := bech32.Decode(strings.ToLower(npub))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPubKey, err)
	}
	if hrp != npubPrefix {
		return "", fmt.Errorf("%w: unexpected prefix %q", ErrInvalidPubKey, hrp)
	}

	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPubKey, err)
	}
	if len(raw) != 32 {
		return "", fmt.Errorf("%w: decoded %d bytes", ErrInvalidPubKey, len(raw))
	}
	return hex.EncodeToString(raw), nil
}

// EncodeNpub encodes a hex public key as a NIP-19 npub.
func EncodeNpub(pubkey string) (string, error) {
	raw, err := hex.DecodeString(pubkey)
	if err != nil || len(raw) != 32 {
		return "", fmt.Errorf("%w: %q", ErrInvalidPubKey, pubkey)
	}

	data, err := bech32.ConvertBits(raw, 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.Encode(npubPrefix, data)
}

// ShortKey renders a key as "abcdefgh...stuvwxyz" for tables.
func ShortKey(pubkey string) string {
	if len(pubkey) <= 16 {
		return pubkey
	}
	return pubkey[:8] + "..." + pubkey[len(pubkey)-8:]
}
