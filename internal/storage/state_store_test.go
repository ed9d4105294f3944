package storage

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

func setupTestStateStore(t *testing.T) (*RedisStateStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store, err := NewRedisStateStore(client)
	require.NoError(t, err)
	return store, mr
}

func TestNewRedisStateStore_RequiresClient(t *testing.T) {
	_, err := NewRedisStateStore(nil)
	assert.Error(t, err)
}

func TestRedisStateStore_EngineStateRoundTrip(t *testing.T) {
	store, _ := setupTestStateStore(t)
	ctx := context.Background()

	got, err := store.GetEngineState(ctx)
	require.NoError(t, err)
	assert.Nil(t, got, "first run has no state")

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ends := now.Add(24 * time.Hour)
	state := models.NewEngineState(now)
	state.Status = types.EngineCooldown
	state.CooldownEndsAt = &ends
	state.Cursors["acct1"] = "abc123"
	state.Cursors["acct2"] = ""

	require.NoError(t, store.SaveEngineState(ctx, state))

	got, err = store.GetEngineState(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, types.EngineCooldown, got.Status)
	require.NotNil(t, got.CooldownEndsAt)
	assert.True(t, ends.Equal(*got.CooldownEndsAt))
	assert.Equal(t, map[string]string{"acct1": "abc123", "acct2": ""}, got.Cursors)
}

func TestRedisStateStore_HarvestProgressKeepsCursorSentinels(t *testing.T) {
	store, _ := setupTestStateStore(t)
	ctx := context.Background()
	now := time.Now()

	p := models.NewHarvestProgress("s1", []string{"acct1", "acct2", "acct3"}, nil, 10, now)
	p.Advance(types.HarvestFetching)
	p.SetCursor("acct1", "abc123")
	p.SetCursor("acct2", "")

	require.NoError(t, store.SaveHarvestProgress(ctx, p))

	got, err := store.GetHarvestProgress(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, types.HarvestFetching, got.Phase)

	c, started := got.Cursor("acct1")
	assert.True(t, started)
	assert.Equal(t, "abc123", c)
	assert.True(t, got.Exhausted("acct2"))
	_, started = got.Cursor("acct3")
	assert.False(t, started, "not-started must survive as distinct from exhausted")

	require.NoError(t, store.ClearHarvestProgress(ctx))
	got, err = store.GetHarvestProgress(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisStateStore_BlockState(t *testing.T) {
	store, mr := setupTestStateStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	b := &models.BlockState{
		ConsecutiveFailures: 2,
		RecentBlocks: []models.BlockEvent{{
			Signal:    types.SignalFeedbackRequired,
			Severity:  types.SeverityHigh,
			Cooldown:  24 * time.Hour,
			Timestamp: now,
		}},
		LastBlockAt:      &now,
		TotalBlocksToday: 1,
		Day:              models.DayKey(now),
	}
	require.NoError(t, store.SaveBlockState(ctx, b))
	assert.True(t, mr.Exists(KeyBlockState))

	got, err := store.GetBlockState(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 2, got.ConsecutiveFailures)
	require.Len(t, got.RecentBlocks, 1)
	assert.Equal(t, 24*time.Hour, got.RecentBlocks[0].Cooldown)
}

func TestRedisStateStore_CorruptValue(t *testing.T) {
	store, mr := setupTestStateStore(t)
	require.NoError(t, mr.Set(KeyEngineState, "{not json"))

	_, err := store.GetEngineState(context.Background())
	assert.Error(t, err)
}

func TestRedisStateStore_ServerDown(t *testing.T) {
	store, mr := setupTestStateStore(t)
	mr.Close()

	_, err := store.GetEngineState(context.Background())
	assert.Error(t, err)
}
