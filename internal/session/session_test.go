package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumlife/nostrboard/internal/core"
	"github.com/quantumlife/nostrboard/internal/testutil"
)

const (
	alice = testutil.AlicePubKey
	bob   = testutil.BobPubKey
	carol = testutil.CarolPubKey
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(testutil.TestDB(t))
}

func TestManager_EmptySession(t *testing.T) {
	ctx, err := newManager(t).Current()

	require.NoError(t, err)
	assert.False(t, ctx.LoggedIn)
	assert.Nil(t, ctx.Current)
	assert.Empty(t, ctx.Others)
	assert.Equal(t, core.ThemeSystem, ctx.Theme)
	assert.Empty(t, ctx.Relays)
}

func TestManager_LoginWithNpub(t *testing.T) {
	npub, err := core.EncodeNpub(alice)
	require.NoError(t, err)

	ctx, err := newManager(t).Login(npub, "Alice")

	require.NoError(t, err)
	require.True(t, ctx.LoggedIn)
	assert.Equal(t, alice, ctx.Current.PubKey)
	assert.Equal(t, npub, ctx.Current.Npub)
	assert.Equal(t, "Alice", ctx.Current.DisplayName)
}

func TestManager_LoginRejectsBadKey(t *testing.T) {
	_, err := newManager(t).Login("nsec1notapubkey", "")

	assert.ErrorIs(t, err, core.ErrInvalidPubKey)
}

func TestManager_SwitchAndLogout(t *testing.T) {
	m := newManager(t)

	_, err := m.Login(alice, "")
	require.NoError(t, err)
	_, err = m.Login(bob, "")
	require.NoError(t, err)

	ctx, err := m.Switch(alice)
	require.NoError(t, err)
	assert.Equal(t, alice, ctx.Current.PubKey)
	require.Len(t, ctx.Others, 1)
	assert.Equal(t, bob, ctx.Others[0].PubKey)

	_, err = m.Switch(carol)
	assert.ErrorIs(t, err, core.ErrAccountNotFound)

	// Logging out the current account promotes the remaining one.
	ctx, err = m.Logout(alice)
	require.NoError(t, err)
	require.True(t, ctx.LoggedIn)
	assert.Equal(t, bob, ctx.Current.PubKey)
	assert.Empty(t, ctx.Others)

	ctx, err = m.Logout(bob)
	require.NoError(t, err)
	assert.False(t, ctx.LoggedIn)

	_, err = m.Logout(bob)
	assert.ErrorIs(t, err, core.ErrAccountNotFound)
}

func TestManager_LogoutOtherKeepsCurrent(t *testing.T) {
	m := newManager(t)
	m.Login(alice, "")
	m.Login(bob, "")

	ctx, err := m.Logout(alice)

	require.NoError(t, err)
	assert.Equal(t, bob, ctx.Current.PubKey)
}

func TestManager_SetTheme(t *testing.T) {
	m := newManager(t)

	ctx, err := m.SetTheme("Dark")
	require.NoError(t, err)
	assert.Equal(t, core.ThemeDark, ctx.Theme)

	_, err = m.SetTheme("sepia")
	assert.ErrorIs(t, err, core.ErrInvalidTheme)

	ctx, err = m.Current()
	require.NoError(t, err)
	assert.Equal(t, core.ThemeDark, ctx.Theme)
}

func TestManager_Relays(t *testing.T) {
	m := newManager(t)

	var notified [][]string
	m.OnRelaysChanged(func(urls []string) { notified = append(notified, urls) })

	require.NoError(t, m.SeedRelays([]string{"wss://relay.damus.io/", "wss://nos.lol"}))

	ctx, err := m.AddRelay("wss://relay.primal.net", false, true)
	require.NoError(t, err)
	require.Len(t, ctx.Relays, 3)
	assert.Equal(t, []string{"wss://relay.damus.io", "wss://nos.lol"}, ctx.ReadRelays())

	ctx, err = m.RemoveRelay("wss://nos.lol")
	require.NoError(t, err)
	assert.Equal(t, []string{"wss://relay.damus.io"}, ctx.ReadRelays())

	_, err = m.AddRelay("http://nope", true, true)
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = m.RemoveRelay("wss://missing.example")
	assert.ErrorIs(t, err, core.ErrRecordNotFound)

	require.Len(t, notified, 2)
	assert.Equal(t, []string{"wss://relay.damus.io"}, notified[1])
}
