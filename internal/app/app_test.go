package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumlife/nostrboard/internal/config"
	"github.com/quantumlife/nostrboard/internal/core"
	"github.com/quantumlife/nostrboard/internal/testutil"
)

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.Relays = []string{"wss://one.example", "wss://two.example"}
	return cfg
}

func TestOpen_SeedsRelaysIntoPool(t *testing.T) {
	a, err := Open(testConfig(t), Options{InMemory: true})
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, []string{"wss://one.example", "wss://two.example"}, a.Pool.Relays())
}

func TestOpen_PoolFollowsSessionRelays(t *testing.T) {
	a, err := Open(testConfig(t), Options{InMemory: true})
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Sessions.AddRelay("wss://three.example", true, false)
	require.NoError(t, err)
	_, err = a.Sessions.RemoveRelay("wss://one.example")
	require.NoError(t, err)

	assert.Equal(t, []string{"wss://two.example", "wss://three.example"}, a.Pool.Relays())

	// Write-only relays are not queried.
	_, err = a.Sessions.AddRelay("wss://three.example", false, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"wss://two.example"}, a.Pool.Relays())
}

func TestOpen_SourceOverride(t *testing.T) {
	src := &testutil.MockSource{Events: []core.Event{
		testutil.Note(testutil.AlicePubKey, "gm", time.Now().Add(-time.Minute)),
	}}

	a, err := Open(testConfig(t), Options{InMemory: true, Source: src})
	require.NoError(t, err)
	defer a.Close()

	us, err := a.Dashboard.UserStats(context.Background(), testutil.AlicePubKey)
	require.NoError(t, err)
	assert.Equal(t, 1, us.TotalPosts)
	assert.Equal(t, 3, src.CallCount())
}

func TestOpen_FileDatabase(t *testing.T) {
	cfg := testConfig(t)

	a, err := Open(cfg, Options{})
	require.NoError(t, err)
	_, err = a.Sessions.Login(testutil.AlicePubKey, "alice")
	require.NoError(t, err)
	require.NoError(t, a.Close())

	reopened, err := Open(cfg, Options{})
	require.NoError(t, err)
	defer reopened.Close()

	sess, err := reopened.Sessions.Current()
	require.NoError(t, err)
	assert.True(t, sess.LoggedIn)
	assert.Equal(t, testutil.AlicePubKey, sess.Current.PubKey)
}

func TestOpen_RelayChangePurgesCache(t *testing.T) {
	src := &testutil.MockSource{Events: []core.Event{
		testutil.Note(testutil.AlicePubKey, "gm", time.Now().Add(-time.Minute)),
	}}

	a, err := Open(testConfig(t), Options{InMemory: true, Source: src})
	require.NoError(t, err)
	defer a.Close()

	ctx := context.Background()
	_, err = a.Dashboard.RelayStats(ctx)
	require.NoError(t, err)
	_, err = a.Dashboard.RelayStats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, src.CallCount(), "second call should be served from cache")
	require.NotZero(t, a.Cache.Stats().Entries)

	_, err = a.Sessions.AddRelay("wss://three.example", true, true)
	require.NoError(t, err)
	assert.Zero(t, a.Cache.Stats().Entries)

	_, err = a.Dashboard.RelayStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, src.CallCount())
}
