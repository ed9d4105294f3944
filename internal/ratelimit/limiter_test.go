package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/growth-engine/internal/models"
	"github.com/growth-engine/internal/types"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	t time.Time
}

func (c *testClock) Now() time.Time          { return c.t }
func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func setupTestStore(t *testing.T) (*RedisDailyCounterStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store, err := NewRedisDailyCounterStore(&RedisDailyCounterStoreConfig{Redis: client})
	require.NoError(t, err)
	return store, mr
}

func setupTestLimiter(t *testing.T, store DailyCounterStore) (*Limiter, *testClock) {
	t.Helper()
	clock := &testClock{t: time.Date(2026, 6, 2, 14, 0, 0, 0, time.Local)}
	l, err := NewLimiter(&Config{Store: store, Now: clock.Now, Seed: 1})
	require.NoError(t, err)
	return l, clock
}

func likeLimits() Limits {
	return Limits{
		Action:       types.ActionLike,
		MinDelay:     30 * time.Second,
		HourlyLimit:  30,
		SessionLimit: 40,
		DailyLimit:   100,
	}
}

func TestCheckRateLimits_DailyLimitFromStore(t *testing.T) {
	store, _ := setupTestStore(t)
	l, clock := setupTestLimiter(t, store)
	ctx := context.Background()

	_, err := store.Increment(ctx, models.DayKey(clock.Now()), models.CounterDelta{Likes: 100})
	require.NoError(t, err)

	d, err := l.CheckRateLimits(ctx, likeLimits())
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonDailyLimit, d.Reason)
	assert.Equal(t, 10*time.Hour, d.RetryAfter)
}

func TestCheckRateLimits_FreshDayAllowed(t *testing.T) {
	store, _ := setupTestStore(t)
	l, clock := setupTestLimiter(t, store)
	ctx := context.Background()

	yesterday := models.DayKey(clock.Now().AddDate(0, 0, -1))
	_, err := store.Increment(ctx, yesterday, models.CounterDelta{Likes: 100})
	require.NoError(t, err)

	d, err := l.CheckRateLimits(ctx, likeLimits())
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestCheckRateLimits_MinDelay(t *testing.T) {
	l, clock := setupTestLimiter(t, NewMemoryDailyCounterStore())
	ctx := context.Background()

	l.RecordAction()
	clock.Advance(10 * time.Second)

	d, err := l.CheckRateLimits(ctx, likeLimits())
	require.NoError(t, err)
	assert.Equal(t, Decision{Reason: ReasonMinDelay, RetryAfter: 20 * time.Second}, d)

	clock.Advance(20 * time.Second)
	d, err = l.CheckRateLimits(ctx, likeLimits())
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestCheckRateLimits_HourlyWindow(t *testing.T) {
	l, clock := setupTestLimiter(t, NewMemoryDailyCounterStore())
	ctx := context.Background()
	limits := likeLimits()
	limits.MinDelay = 0
	limits.HourlyLimit = 3

	for i := 0; i < 3; i++ {
		l.RecordAction()
		clock.Advance(time.Minute)
	}

	d, err := l.CheckRateLimits(ctx, limits)
	require.NoError(t, err)
	assert.Equal(t, ReasonHourlyLimit, d.Reason)
	assert.Equal(t, 57*time.Minute, d.RetryAfter)

	clock.Advance(58 * time.Minute)
	d, err = l.CheckRateLimits(ctx, limits)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Zero(t, l.Snapshot().HourlyActions)
}

func TestCheckRateLimits_SessionLimitForcesBreak(t *testing.T) {
	l, clock := setupTestLimiter(t, NewMemoryDailyCounterStore())
	ctx := context.Background()
	limits := likeLimits()
	limits.MinDelay = 0
	limits.HourlyLimit = 0
	limits.SessionLimit = 2

	l.RecordAction()
	l.RecordAction()

	d, err := l.CheckRateLimits(ctx, limits)
	require.NoError(t, err)
	assert.Equal(t, ReasonSessionBreak, d.Reason)
	assert.GreaterOrEqual(t, d.RetryAfter, 15*time.Minute)
	assert.LessOrEqual(t, d.RetryAfter, 30*time.Minute)
	assert.Zero(t, l.Snapshot().SessionActions)

	clock.Advance(5 * time.Minute)
	d, err = l.CheckRateLimits(ctx, limits)
	require.NoError(t, err)
	assert.Equal(t, ReasonSessionBreak, d.Reason)

	clock.Advance(30 * time.Minute)
	d, err = l.CheckRateLimits(ctx, limits)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestShouldTakeBreak(t *testing.T) {
	l, _ := setupTestLimiter(t, NewMemoryDailyCounterStore())

	for i := 0; i < 19; i++ {
		l.RecordAction()
	}
	assert.Zero(t, l.ShouldTakeBreak())

	for i := 0; i < 21; i++ {
		l.RecordAction()
	}
	pause := l.ShouldTakeBreak()
	assert.GreaterOrEqual(t, pause, 5*time.Minute)
	assert.LessOrEqual(t, pause, 15*time.Minute)

	l.RecordBreak()
	assert.Zero(t, l.ShouldTakeBreak())
	assert.Zero(t, l.Snapshot().ConsecutiveActions)
}

type countingPauses struct {
	seen []int
}

func (p *countingPauses) SuggestSessionPause(actions int) time.Duration {
	p.seen = append(p.seen, actions)
	if actions >= 3 {
		return 7 * time.Minute
	}
	return 0
}

func TestShouldTakeBreak_UsesPauseSuggester(t *testing.T) {
	pauses := &countingPauses{}
	l, err := NewLimiter(&Config{Store: NewMemoryDailyCounterStore(), Seed: 1, Pauses: pauses})
	require.NoError(t, err)

	l.RecordAction()
	l.RecordAction()
	assert.Zero(t, l.ShouldTakeBreak())
	l.RecordAction()
	assert.Equal(t, 7*time.Minute, l.ShouldTakeBreak())

	l.RecordBreak()
	assert.Zero(t, l.ShouldTakeBreak())
	assert.Equal(t, []int{2, 3, 0}, pauses.seen)
}

func TestResetSession(t *testing.T) {
	l, _ := setupTestLimiter(t, NewMemoryDailyCounterStore())
	l.RecordAction()
	l.RecordAction()

	l.ResetSession()
	s := l.Snapshot()
	assert.Zero(t, s.SessionActions)
	assert.Zero(t, s.HourlyActions)
	assert.Nil(t, s.LastActionAt)
}

func TestRedisDailyCounterStore(t *testing.T) {
	store, mr := setupTestStore(t)
	ctx := context.Background()

	got, err := store.Get(ctx, "2026-06-02")
	require.NoError(t, err)
	assert.Equal(t, &models.DailyCounters{Date: "2026-06-02"}, got)

	_, err = store.Increment(ctx, "2026-06-02", models.CounterDelta{Likes: 2, ProspectsAdded: 10})
	require.NoError(t, err)
	got, err = store.Increment(ctx, "2026-06-02", models.CounterDelta{Likes: 1, Follows: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, got.Likes)
	assert.Equal(t, 1, got.Follows)
	assert.Equal(t, 10, got.ProspectsAdded)

	assert.True(t, mr.Exists(KeyPrefixDaily+"2026-06-02"))
	assert.Equal(t, DefaultDailyKeyTTL, mr.TTL(KeyPrefixDaily+"2026-06-02"))

	require.NoError(t, store.Reset(ctx, "2026-06-02"))
	got, err = store.Get(ctx, "2026-06-02")
	require.NoError(t, err)
	assert.Zero(t, got.Likes)
}

func TestNewRedisDailyCounterStore_Validation(t *testing.T) {
	_, err := NewRedisDailyCounterStore(nil)
	assert.EqualError(t, err, "configuration is required")

	_, err = NewRedisDailyCounterStore(&RedisDailyCounterStoreConfig{})
	assert.ErrorContains(t, err, "redis client is required")
}
