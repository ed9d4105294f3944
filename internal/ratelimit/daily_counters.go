package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/growth-engine/internal/models"
	"github.com/redis/go-redis/v9"
)

// Redis layout for daily counters: one hash per calendar day.
const (
	KeyPrefixDaily = "growth:daily:"

	fieldLikes          = "likes"
	fieldFollows        = "follows"
	fieldHarvests       = "harvests"
	fieldProspectsAdded = "prospects_added"

	DefaultDailyKeyTTL = 48 * time.Hour
)

// DailyCounterStore persists per-day action tallies. A day with no record
// reads as all zeros, so a new date starts from a fresh record.
type DailyCounterStore interface {
	Get(ctx context.Context, day string) (*models.DailyCounters, error)
	Increment(ctx context.Context, day string, delta models.CounterDelta) (*models.DailyCounters, error)
	Reset(ctx context.Context, day string) error
}

// RedisDailyCounterStore keeps DailyCounters in a Redis hash keyed by date
type RedisDailyCounterStore struct {
	redis  redis.Cmdable
	keyTTL time.Duration
}

// RedisDailyCounterStoreConfig holds configuration for the Redis store.
type RedisDailyCounterStoreConfig struct {
	// Redis is the client. Required.
	Redis redis.Cmdable

	// KeyTTL bounds how long a day's hash survives. Default: 48h.
	KeyTTL time.Duration
}

// Validate checks if the configuration is valid.
func (c *RedisDailyCounterStoreConfig) Validate() error {
	if c.Redis == nil {
		return errors.New("redis client is required")
	}
	if c.KeyTTL < 0 {
		return errors.New("key ttl cannot be negative")
	}
	return nil
}

// NewRedisDailyCounterStore creates a Redis-backed counter store.
func NewRedisDailyCounterStore(cfg *RedisDailyCounterStoreConfig) (*RedisDailyCounterStore, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	keyTTL := cfg.KeyTTL
	if keyTTL == 0 {
		keyTTL = DefaultDailyKeyTTL
	}

	return &RedisDailyCounterStore{redis: cfg.Redis, keyTTL: keyTTL}, nil
}

func dailyKey(day string) string {
	return KeyPrefixDaily + day
}

// Get returns the counters for day
func (s *RedisDailyCounterStore) Get(ctx context.Context, day string) (*models.DailyCounters, error) {
	values, err := s.redis.HGetAll(ctx, dailyKey(day)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read daily counters: %w", err)
	}
	return countersFromHash(day, values), nil
}

// Increment atomically adds delta to day's counters and returns the result
func (s *RedisDailyCounterStore) Increment(ctx context.Context, day string, delta models.CounterDelta) (*models.DailyCounters, error) {
	key := dailyKey(day)

	pipe := s.redis.TxPipeline()
	likes := pipe.HIncrBy(ctx, key, fieldLikes, int64(delta.Likes))
	follows := pipe.HIncrBy(ctx, key, fieldFollows, int64(delta.Follows))
	harvests := pipe.HIncrBy(ctx, key, fieldHarvests, int64(delta.Harvests))
	added := pipe.HIncrBy(ctx, key, fieldProspectsAdded, int64(delta.ProspectsAdded))
	pipe.Expire(ctx, key, s.keyTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to increment daily counters: %w", err)
	}

	return &models.DailyCounters{
		Date:           day,
		Likes:          int(likes.Val()),
		Follows:        int(follows.Val()),
		Harvests:       int(harvests.Val()),
		ProspectsAdded: int(added.Val()),
	}, nil
}

// Reset drops day's record
func (s *RedisDailyCounterStore) Reset(ctx context.Context, day string) error {
	if err := s.redis.Del(ctx, dailyKey(day)).Err(); err != nil {
		return fmt.Errorf("failed to reset daily counters: %w", err)
	}
	return nil
}

func countersFromHash(day string, values map[string]string) *models.DailyCounters {
	atoi := func(field string) int {
		n, err := strconv.Atoi(values[field])
		if err != nil {
			return 0
		}
		return n
	}
	return &models.DailyCounters{
		Date:           day,
		Likes:          atoi(fieldLikes),
		Follows:        atoi(fieldFollows),
		Harvests:       atoi(fieldHarvests),
		ProspectsAdded: atoi(fieldProspectsAdded),
	}
}

// MemoryDailyCounterStore is an in-process DailyCounterStore
type MemoryDailyCounterStore struct {
	mu   sync.Mutex
	days map[string]models.DailyCounters
}

// NewMemoryDailyCounterStore creates an empty in-memory store
func NewMemoryDailyCounterStore() *MemoryDailyCounterStore {
	return &MemoryDailyCounterStore{days: make(map[string]models.DailyCounters)}
}

// Get returns the counters for day
func (s *MemoryDailyCounterStore) Get(_ context.Context, day string) (*models.DailyCounters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.days[day]
	if !ok {
		c = models.DailyCounters{Date: day}
	}
	return &c, nil
}

// Increment adds delta to day's counters
func (s *MemoryDailyCounterStore) Increment(_ context.Context, day string, delta models.CounterDelta) (*models.DailyCounters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.days[day]
	c.Date = day
	c.Likes += delta.Likes
	c.Follows += delta.Follows
	c.Harvests += delta.Harvests
	c.ProspectsAdded += delta.ProspectsAdded
	s.days[day] = c
	return &c, nil
}

// Reset drops day's record
func (s *MemoryDailyCounterStore) Reset(_ context.Context, day string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.days, day)
	return nil
}
