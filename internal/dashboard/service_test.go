package dashboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumlife/nostrboard/internal/core"
	"github.com/quantumlife/nostrboard/internal/querycache"
	"github.com/quantumlife/nostrboard/internal/testutil"
)

var testNow = time.Date(2025, time.March, 15, 15, 30, 0, 0, time.UTC)

const (
	alice = testutil.AlicePubKey
	bob   = testutil.BobPubKey
	carol = testutil.CarolPubKey
)

func newTestService(src *testutil.MockSource) *Service {
	cfg := DefaultConfig()
	cfg.UserTimeout = time.Second
	cfg.RelayTimeout = time.Second
	return NewService(src, querycache.New(querycache.WithClock(func() time.Time { return testNow })), cfg,
		WithClock(func() time.Time { return testNow }))
}

func userFixture() []core.Event {
	return []core.Event{
		testutil.Note(alice, "gm", testNow.Add(-time.Hour)),
		testutil.Note(alice, "building", testNow.Add(-3*time.Hour)),
		testutil.Note(alice, "old news", testNow.AddDate(0, 0, -10)),
		testutil.Note(bob, "not alice", testNow),
		testutil.Reaction(bob, alice, testNow),
		testutil.Reaction(carol, alice, testNow),
		testutil.Reaction(alice, bob, testNow),
		testutil.Repost(bob, alice, testNow),
		func() core.Event {
			e := testutil.Repost(carol, alice, testNow)
			e.Kind = core.KindGenericRepost
			return e
		}(),
	}
}

func TestUserStats(t *testing.T) {
	src := &testutil.MockSource{Events: userFixture()}
	svc := newTestService(src)

	st, err := svc.UserStats(testutil.TestContext(t), alice)

	require.NoError(t, err)
	assert.Equal(t, alice, st.PubKey)
	assert.Equal(t, 3, st.TotalPosts)
	assert.Equal(t, 2, st.TotalReactions)
	assert.Equal(t, 2, st.TotalReposts)
	assert.Equal(t, 2, st.PostsThisWeek)
	assert.Equal(t, 3, st.PostsThisMonth)
	require.Len(t, st.DailyActivity, 30)
	assert.Equal(t, 2, st.DailyActivity[29].Count)
	require.NotNil(t, st.LastActivity)
	assert.Equal(t, testNow.Add(-time.Hour).Unix(), *st.LastActivity)

	calls := src.Calls()
	require.Len(t, calls, 3)
}

func TestUserStats_AcceptsNpub(t *testing.T) {
	npub, err := core.EncodeNpub(alice)
	require.NoError(t, err)

	svc := newTestService(&testutil.MockSource{Events: userFixture()})
	st, err := svc.UserStats(testutil.TestContext(t), npub)

	require.NoError(t, err)
	assert.Equal(t, alice, st.PubKey)
}

func TestUserStats_InvalidInput(t *testing.T) {
	src := &testutil.MockSource{}
	svc := newTestService(src)

	_, err := svc.UserStats(testutil.TestContext(t), "  ")
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = svc.UserStats(testutil.TestContext(t), "not-a-key")
	assert.ErrorIs(t, err, core.ErrInvalidPubKey)

	assert.Zero(t, src.CallCount(), "source must not be queried for invalid input")
}

func TestUserStats_Cached(t *testing.T) {
	src := &testutil.MockSource{Events: userFixture()}
	svc := newTestService(src)
	ctx := testutil.TestContext(t)

	first, err := svc.UserStats(ctx, alice)
	require.NoError(t, err)
	second, err := svc.UserStats(ctx, alice)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 3, src.CallCount())
}

func TestUserStats_CoalescesConcurrentCallers(t *testing.T) {
	src := &testutil.MockSource{}
	src.QueryFunc = func(ctx context.Context, filters []core.Filter) ([]core.Event, error) {
		time.Sleep(50 * time.Millisecond)
		return nil, nil
	}
	svc := newTestService(src)
	ctx := testutil.TestContext(t)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.UserStats(ctx, alice)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, src.CallCount())
}

func TestUserStats_SourceFailureIsNotCached(t *testing.T) {
	fail := true
	var mu sync.Mutex
	src := &testutil.MockSource{Events: userFixture()}
	src.QueryFunc = func(ctx context.Context, filters []core.Filter) ([]core.Event, error) {
		mu.Lock()
		defer mu.Unlock()
		if fail && len(filters[0].Tags) > 0 {
			return nil, errors.New("connection reset")
		}
		return nil, nil
	}
	svc := newTestService(src)
	ctx := testutil.TestContext(t)

	st, err := svc.UserStats(ctx, alice)
	assert.Nil(t, st, "no partial statistics on failure")
	require.ErrorIs(t, err, core.ErrSourceUnavailable)

	mu.Lock()
	fail = false
	mu.Unlock()

	st, err = svc.UserStats(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 0, st.TotalPosts)
}

func TestUserStats_Timeout(t *testing.T) {
	src := &testutil.MockSource{}
	src.QueryFunc = func(ctx context.Context, _ []core.Filter) ([]core.Event, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	cfg := DefaultConfig()
	cfg.UserTimeout = 50 * time.Millisecond
	svc := NewService(src, nil, cfg)

	_, err := svc.UserStats(testutil.TestContext(t), alice)

	assert.ErrorIs(t, err, core.ErrQueryTimeout)
}

func TestActivityStats(t *testing.T) {
	src := &testutil.MockSource{Events: userFixture()}
	svc := newTestService(src)

	act, err := svc.ActivityStats(testutil.TestContext(t), alice)

	require.NoError(t, err)
	assert.Equal(t, 4, act.Stats.TotalCount)
	assert.Equal(t, map[int]int{core.KindTextNote: 3, core.KindReaction: 1}, act.Stats.CountsByKind)
	require.Len(t, act.Events, 4)
	for i := 1; i < len(act.Events); i++ {
		assert.GreaterOrEqual(t, act.Events[i-1].CreatedAt, act.Events[i].CreatedAt)
	}

	calls := src.Calls()
	require.Len(t, calls, 1)
	assert.Empty(t, calls[0][0].Kinds, "activity covers every kind")
	assert.Equal(t, 1000, calls[0][0].Limit)
}

func TestActivityStats_EmptyIsValid(t *testing.T) {
	svc := newTestService(&testutil.MockSource{})

	act, err := svc.ActivityStats(testutil.TestContext(t), carol)

	require.NoError(t, err)
	assert.Equal(t, 0, act.Stats.TotalCount)
	assert.Nil(t, act.Stats.LastActivity)
	assert.Len(t, act.Stats.CountsByDay, 30)
	assert.NotNil(t, act.Events)
}

func TestUserEvents(t *testing.T) {
	src := &testutil.MockSource{Events: userFixture()}
	svc := newTestService(src)

	events, err := svc.UserEvents(testutil.TestContext(t), alice, 0)

	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "gm", events[0].Content)
	assert.Equal(t, "old news", events[2].Content)
	assert.Equal(t, 50, src.Calls()[0][0].Limit)

	_, err = svc.UserEvents(testutil.TestContext(t), alice, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, src.Calls()[1][0].Limit, "different limit is a different cache key")
}

func TestExploreEvents(t *testing.T) {
	src := &testutil.MockSource{Events: userFixture()}
	svc := newTestService(src)
	ctx := testutil.TestContext(t)

	page, err := svc.ExploreEvents(ctx, alice, "GM", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, page.TotalEvents)
	assert.Equal(t, "gm", page.Events[0].Content)

	page, err = svc.ExploreEvents(ctx, alice, "", 7)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 4, page.TotalEvents)
	assert.Equal(t, 1, src.CallCount(), "explorer reuses cached activity")
}

func TestRelayStats(t *testing.T) {
	src := &testutil.MockSource{Events: append(userFixture(),
		testutil.Note(carol, "ancient", testNow.AddDate(0, 0, -20)),
	)}
	svc := newTestService(src)

	rs, err := svc.RelayStats(testutil.TestContext(t))

	require.NoError(t, err)
	assert.Equal(t, 7, rs.WindowDays)
	assert.Equal(t, testNow.AddDate(0, 0, -7).Unix(), rs.Since)
	assert.Equal(t, 8, rs.Stats.TotalCount)
	assert.Len(t, rs.Stats.CountsByDay, 7)
	assert.Equal(t, 3, rs.Stats.UniqueAuthors)
	assert.InDelta(t, 8.0/7.0, rs.EventsPerDay, 0.0001)

	require.NotEmpty(t, rs.Stats.TopAuthors)
	assert.Equal(t, alice, rs.Stats.TopAuthors[0].Key)
}

func TestRefreshRelayStats_BypassesStaleness(t *testing.T) {
	src := &testutil.MockSource{}
	svc := newTestService(src)
	ctx := testutil.TestContext(t)

	_, err := svc.RelayStats(ctx)
	require.NoError(t, err)
	require.NoError(t, svc.RefreshRelayStats(ctx))
	_, err = svc.RelayStats(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, src.CallCount())
}

func TestExplore(t *testing.T) {
	src := &testutil.MockSource{Events: []core.Event{
		testutil.Note(alice, "first", testNow.Add(-2*time.Minute)),
		testutil.Note(bob, "second", testNow.Add(-time.Minute)),
		testutil.Profile(alice, "alice", "Alice", testNow.Add(-time.Hour)),
		testutil.Profile(alice, "alice-old", "", testNow.Add(-48*time.Hour)),
		func() core.Event {
			e := testutil.Profile(bob, "bob", "", testNow)
			e.Content = "{broken"
			return e
		}(),
		testutil.Reaction(carol, alice, testNow),
	}}
	svc := newTestService(src)

	feed, err := svc.Explore(testutil.TestContext(t))

	require.NoError(t, err)
	require.Len(t, feed.Notes, 2)
	assert.Equal(t, "second", feed.Notes[0].Content)
	require.Len(t, feed.Profiles, 1)
	assert.Equal(t, "Alice", feed.Profiles[0].Name)
	assert.Contains(t, feed.Profiles[0].Npub, "npub1")
	assert.Equal(t, []int{core.KindTextNote, core.KindMetadata}, src.Calls()[0][0].Kinds)
}

func TestFollowingExport(t *testing.T) {
	older := testutil.ContactList(alice, testNow.Add(-time.Hour), bob)
	newer := testutil.ContactList(alice, testNow, bob, carol)
	newer.Tags[0] = []string{"p", bob, "wss://relay.example", "bobby"}

	src := &testutil.MockSource{Events: []core.Event{older, newer}}
	svc := newTestService(src)
	ctx := testutil.TestContext(t)

	exp, err := svc.FollowingExport(ctx, alice)

	require.NoError(t, err)
	assert.Equal(t, newer.ID, exp.Event.ID)
	assert.Equal(t, 2, exp.Stats.TotalFollowing)
	assert.Equal(t, 1, exp.Stats.WithRelay)
	assert.Equal(t, 1, exp.Stats.WithPetname)
	assert.Equal(t, testNow, exp.ExportedAt)
	assert.Equal(t, "bobby", exp.Following[0].Petname)

	_, err = svc.FollowingExport(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 2, src.CallCount(), "export is never served from cache")
}

func TestFollowingExport_NotFound(t *testing.T) {
	svc := newTestService(&testutil.MockSource{})

	_, err := svc.FollowingExport(testutil.TestContext(t), alice)

	assert.ErrorIs(t, err, core.ErrContactListNotFound)
}
