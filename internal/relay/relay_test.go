package relay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumlife/nostrboard/internal/core"
	"github.com/quantumlife/nostrboard/internal/testutil"
	"github.com/quantumlife/nostrboard/internal/testutil/mockservers"
)

func testClientConfig() ClientConfig {
	cfg := DefaultClientConfig()
	cfg.DialTimeout = 2 * time.Second
	return cfg
}

func TestClient_QueryUntilEOSE(t *testing.T) {
	now := time.Now()
	note := testutil.Note(testutil.AlicePubKey, "hello", now)
	reaction := testutil.Reaction(testutil.BobPubKey, testutil.AlicePubKey, now)
	other := testutil.Note(testutil.CarolPubKey, "unrelated", now)

	relay := mockservers.NewRelayMockServer(t, note, reaction, other)
	client := NewClient(relay.URL, testClientConfig())

	events, err := client.Query(testutil.TestContext(t), []core.Filter{
		{Kinds: []int{core.KindTextNote}, Authors: []string{testutil.AlicePubKey}},
		{Kinds: []int{core.KindReaction}, Tags: map[string][]string{"p": {testutil.AlicePubKey}}},
	})

	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.ElementsMatch(t, []string{note.ID, reaction.ID}, []string{events[0].ID, events[1].ID})

	reqs := relay.Requests()
	require.Len(t, reqs, 1)
	require.Len(t, reqs[0], 2)
	assert.Equal(t, []string{testutil.AlicePubKey}, reqs[0][1].Tags["p"])

	assert.Eventually(t, func() bool { return relay.Closes() == 1 }, time.Second, 10*time.Millisecond)
}

func TestClient_EmptyResultIsNotAnError(t *testing.T) {
	relay := mockservers.NewRelayMockServer(t)
	client := NewClient(relay.URL, testClientConfig())

	events, err := client.Query(testutil.TestContext(t), []core.Filter{{Kinds: []int{1}}})

	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func TestClient_Closed(t *testing.T) {
	relay := mockservers.NewRelayMockServer(t, testutil.Note(testutil.AlicePubKey, "x", time.Now()))
	relay.RefuseWith("rate-limited: slow down")
	client := NewClient(relay.URL, testClientConfig())

	events, err := client.Query(testutil.TestContext(t), []core.Filter{{}})

	assert.Nil(t, events)
	require.ErrorIs(t, err, core.ErrRelayClosed)
	assert.Contains(t, err.Error(), "rate-limited")
}

func TestClient_SkipsMalformedFramesAndInvalidEvents(t *testing.T) {
	good := testutil.Note(testutil.AlicePubKey, "ok", time.Now())

	relay := mockservers.NewRelayMockServer(t, good)
	relay.SendNotice("welcome")
	relay.SendRaw(`not json`)
	relay.SendRaw(`["EVENT"]`)
	relay.SendRaw(`["OK","abc",true,""]`)
	client := NewClient(relay.URL, testClientConfig())

	events, err := client.Query(testutil.TestContext(t), []core.Filter{{}})

	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, good.ID, events[0].ID)
}

func TestClient_DropsInvalidEvents(t *testing.T) {
	good := testutil.Note(testutil.AlicePubKey, "ok", time.Now())
	bad := good
	bad.ID = testutil.RandomID()
	bad.PubKey = ""

	relay := mockservers.NewRelayMockServer(t, good, bad)
	client := NewClient(relay.URL, testClientConfig())

	events, err := client.Query(testutil.TestContext(t), []core.Filter{{}})

	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, good.ID, events[0].ID)
	assert.Equal(t, int64(1), client.Dropped())
}

func TestClient_MaxEvents(t *testing.T) {
	now := time.Now()
	relay := mockservers.NewRelayMockServer(t,
		testutil.Note(testutil.AlicePubKey, "1", now),
		testutil.Note(testutil.AlicePubKey, "2", now.Add(-time.Minute)),
		testutil.Note(testutil.AlicePubKey, "3", now.Add(-2*time.Minute)),
	)
	cfg := testClientConfig()
	cfg.MaxEvents = 2
	client := NewClient(relay.URL, cfg)

	events, err := client.Query(testutil.TestContext(t), []core.Filter{{}})

	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestClient_DialFailure(t *testing.T) {
	client := NewClient("ws://127.0.0.1:1", testClientConfig())

	_, err := client.Query(testutil.TestContext(t), []core.Filter{{}})

	assert.ErrorIs(t, err, core.ErrSourceUnavailable)
}

func TestWithTimeout_SlowRelay(t *testing.T) {
	relay := mockservers.NewRelayMockServer(t, testutil.Note(testutil.AlicePubKey, "late", time.Now()))
	relay.DelayEOSE(5 * time.Second)

	src := WithTimeout(NewClient(relay.URL, testClientConfig()), 100*time.Millisecond)

	start := time.Now()
	events, err := src.Query(testutil.TestContext(t), []core.Filter{{}})

	assert.Nil(t, events, "no partial result on timeout")
	assert.ErrorIs(t, err, core.ErrQueryTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestWithTimeout_CallerCancelWins(t *testing.T) {
	blocking := SourceFunc(func(ctx context.Context, _ []core.Filter) ([]core.Event, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	src := WithTimeout(blocking, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := src.Query(ctx, nil)

	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, core.ErrQueryTimeout)
}

func TestWithTimeout_PassesErrorsThrough(t *testing.T) {
	boom := errors.New("boom")
	src := WithTimeout(SourceFunc(func(context.Context, []core.Filter) ([]core.Event, error) {
		return []core.Event{{ID: "partial", PubKey: "x"}}, boom
	}), time.Second)

	events, err := src.Query(context.Background(), nil)

	assert.Nil(t, events)
	assert.ErrorIs(t, err, boom)
}

func TestWithTimeout_ZeroDisables(t *testing.T) {
	inner := SourceFunc(func(context.Context, []core.Filter) ([]core.Event, error) { return nil, nil })
	src := WithTimeout(inner, 0)

	_, isWrapped := src.(*timeoutSource)
	assert.False(t, isWrapped)
}
