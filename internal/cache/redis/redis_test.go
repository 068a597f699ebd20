package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/matchcast/internal/domain"
)

// setupTestRedis starts a miniredis server and returns a Client for it.
func setupTestRedis(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	s, err := miniredis.Run()
	require.NoError(t, err)
	c := Wrap(goredis.NewClient(&goredis.Options{Addr: s.Addr()}), "mc")
	t.Cleanup(func() {
		_ = c.Close()
		s.Close()
	})
	return c, s
}

func TestNew_PingsServer(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	c, err := New(context.Background(), ClientConfig{Addr: s.Addr()})
	require.NoError(t, err)
	defer c.Close()
	assert.NoError(t, c.Ping(context.Background()))

	s.Close()
	_, err = New(context.Background(), ClientConfig{Addr: s.Addr(), MaxRetries: -1})
	assert.Error(t, err)
}

func TestClient_KeyPrefix(t *testing.T) {
	assert.Equal(t, "mc:features:a:b", Wrap(nil, "mc").key("features", "a", "b"))
	assert.Equal(t, "mc:x", Wrap(nil, "mc:").key("x"))
	assert.Equal(t, "x", Wrap(nil, "").key("x"))
}

func TestFeatureCache_SetGetFlush(t *testing.T) {
	c, s := setupTestRedis(t)
	ctx := context.Background()
	fc := NewFeatureCache(c, time.Hour)

	date := time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)
	_, err := fc.Get(ctx, "Chelsea", "Arsenal", date)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	fv := domain.FeatureVector{
		MatchDate:  date,
		Team:       "Chelsea",
		Opponent:   "Arsenal",
		Venue:      domain.VenueHome,
		RatingDiff: -32,
		Windows:    []domain.WindowFeatures{{Window: 3, GoalDiffDiff: -2, WinRateDiff: -1}},
	}
	require.NoError(t, fc.Set(ctx, fv))
	assert.True(t, s.Exists("mc:features:Chelsea:Arsenal:2023-02-01"))

	got, err := fc.Get(ctx, "Chelsea", "Arsenal", date)
	require.NoError(t, err)
	assert.Equal(t, fv, got)

	// The reverse fixture is a different key.
	_, err = fc.Get(ctx, "Arsenal", "Chelsea", date)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	fv.Team, fv.Opponent = "Arsenal", "Chelsea"
	require.NoError(t, fc.Set(ctx, fv))
	require.NoError(t, c.rdb.Set(ctx, "mc:other", "keep", 0).Err())

	n, err := fc.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.True(t, s.Exists("mc:other"))
	_, err = fc.Get(ctx, "Chelsea", "Arsenal", date)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFeatureCache_Expires(t *testing.T) {
	c, s := setupTestRedis(t)
	ctx := context.Background()
	fc := NewFeatureCache(c, time.Minute)

	date := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, fc.Set(ctx, domain.FeatureVector{MatchDate: date, Team: "A", Opponent: "B"}))
	s.FastForward(2 * time.Minute)

	_, err := fc.Get(ctx, "A", "B", date)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLiveMatchCache(t *testing.T) {
	c, s := setupTestRedis(t)
	ctx := context.Background()
	lc := NewLiveMatchCache(c, 10*time.Minute)

	st := domain.LiveMatchState{
		MatchID:   "m1",
		HomeTeam:  "Arsenal",
		AwayTeam:  "Chelsea",
		HomeScore: 1,
		Minute:    23,
		Status:    domain.StatusLive,
		Events: domain.EventLog{
			domain.StatusChangeEvent{From: domain.StatusPreMatch, To: domain.StatusLive, Minute: 23},
			domain.GoalEvent{Side: domain.SideHome, Minute: 23, HomeScore: 1},
		},
		StartedAt: time.Date(2024, 5, 1, 15, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2024, 5, 1, 15, 23, 0, 0, time.UTC),
	}
	require.NoError(t, lc.Set(ctx, st))
	assert.Equal(t, 10*time.Minute, s.TTL("mc:live_match:m1"))

	got, err := lc.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, st, got)

	require.NoError(t, lc.Delete(ctx, "m1"))
	require.NoError(t, lc.Delete(ctx, "m1"))
	_, err = lc.Get(ctx, "m1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLockManager(t *testing.T) {
	c, s := setupTestRedis(t)
	ctx := context.Background()
	lm := NewLockManager(c)

	unlock, err := lm.Acquire(ctx, "rebuild", time.Minute)
	require.NoError(t, err)

	_, err = lm.Acquire(ctx, "rebuild", time.Minute)
	assert.ErrorIs(t, err, domain.ErrLockHeld)

	unlock()
	unlock()
	assert.False(t, s.Exists("mc:lock:rebuild"))

	unlock2, err := lm.Acquire(ctx, "rebuild", time.Minute)
	require.NoError(t, err)
	defer unlock2()

	// A stale holder must not release a lock it no longer owns.
	s.FastForward(2 * time.Minute)
	unlock3, err := lm.Acquire(ctx, "rebuild", time.Minute)
	require.NoError(t, err)
	unlock2()
	assert.True(t, s.Exists("mc:lock:rebuild"))
	unlock3()
}

func TestRateLimiter_SlidingWindow(t *testing.T) {
	c, _ := setupTestRedis(t)
	ctx := context.Background()
	rl := NewRateLimiter(c)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, "predict:1.2.3.4", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i)
		now = now.Add(time.Second)
	}
	ok, err := rl.Allow(ctx, "predict:1.2.3.4", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = rl.Allow(ctx, "predict:5.6.7.8", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(time.Minute)
	ok, err = rl.Allow(ctx, "predict:1.2.3.4", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSignalBus_PublishSubscribe(t *testing.T) {
	c, _ := setupTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus := NewSignalBus(c, 0)

	ch, err := bus.Subscribe(ctx, domain.TopicLiveMatches)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, domain.TopicLiveMatches, []byte(`{"type":"score_update","data":{"home_score":1}}`)))

	select {
	case payload := <-ch:
		assert.Contains(t, string(payload), `"type":"score_update"`)
		assert.Contains(t, string(payload), `"home_score":1`)
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}

	cancel()
	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond, "subscription channel not closed")
}

func TestSignalBus_Streams(t *testing.T) {
	c, _ := setupTestRedis(t)
	ctx := context.Background()
	bus := NewSignalBus(c, 100)

	msgs, err := bus.StreamRead(ctx, domain.StreamAudit, "0", 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	for _, p := range []string{"a", "b", "c"} {
		require.NoError(t, bus.StreamAppend(ctx, domain.StreamAudit, []byte(p)))
	}
	msgs, err = bus.StreamRead(ctx, domain.StreamAudit, "0", 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "a", string(msgs[0].Payload))

	rest, err := bus.StreamRead(ctx, domain.StreamAudit, msgs[1].ID, 10)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "c", string(rest[0].Payload))
}

func TestErrorsAreWrapped(t *testing.T) {
	c, s := setupTestRedis(t)
	s.Close()
	_, err := NewFeatureCache(c, 0).Get(context.Background(), "A", "B", time.Now())
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrNotFound))
	assert.Contains(t, err.Error(), "redis: get features")
}
