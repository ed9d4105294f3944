package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	apperrors "github.com/growth-engine/internal/errors"
	"github.com/growth-engine/internal/models"
	"github.com/redis/go-redis/v9"
)

// Redis keys for the engine's single-record state
const (
	KeyPrefixState = "growth:state:"

	KeyEngineState     = KeyPrefixState + "engine"
	KeyHarvestProgress = KeyPrefixState + "harvest"
	KeyBlockState      = KeyPrefixState + "blocks"
)

// RedisStateStore keeps EngineState, HarvestProgress and BlockState as JSON
// values. Each record is one key so single reads and writes are atomic.
type RedisStateStore struct {
	redis redis.Cmdable
}

// NewRedisStateStore creates a state store over client
func NewRedisStateStore(client redis.Cmdable) (*RedisStateStore, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	return &RedisStateStore{redis: client}, nil
}

func (s *RedisStateStore) load(ctx context.Context, key string, dest interface{}) (bool, error) {
	raw, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, apperrors.NewCacheError("get "+key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

func (s *RedisStateStore) store(ctx context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := s.redis.Set(ctx, key, raw, 0).Err(); err != nil {
		return apperrors.NewCacheError("set "+key, err)
	}
	return nil
}

// GetEngineState returns the persisted engine state, or nil on first run
func (s *RedisStateStore) GetEngineState(ctx context.Context) (*models.EngineState, error) {
	var state models.EngineState
	found, err := s.load(ctx, KeyEngineState, &state)
	if err != nil || !found {
		return nil, err
	}
	if state.Cursors == nil {
		state.Cursors = make(map[string]string)
	}
	return &state, nil
}

// SaveEngineState persists the engine state
func (s *RedisStateStore) SaveEngineState(ctx context.Context, state *models.EngineState) error {
	return s.store(ctx, KeyEngineState, state)
}

// GetHarvestProgress returns the active harvest session, if any
func (s *RedisStateStore) GetHarvestProgress(ctx context.Context) (*models.HarvestProgress, error) {
	var p models.HarvestProgress
	found, err := s.load(ctx, KeyHarvestProgress, &p)
	if err != nil || !found {
		return nil, err
	}
	if p.ResolvedIDs == nil {
		p.ResolvedIDs = make(map[string]string)
	}
	if p.Cursors == nil {
		p.Cursors = make(map[string]*string)
	}
	if p.Harvested == nil {
		p.Harvested = make(map[string]int)
	}
	if p.Errored == nil {
		p.Errored = make(map[string]string)
	}
	return &p, nil
}

// SaveHarvestProgress checkpoints the harvest session
func (s *RedisStateStore) SaveHarvestProgress(ctx context.Context, p *models.HarvestProgress) error {
	return s.store(ctx, KeyHarvestProgress, p)
}

// ClearHarvestProgress discards the harvest session
func (s *RedisStateStore) ClearHarvestProgress(ctx context.Context) error {
	if err := s.redis.Del(ctx, KeyHarvestProgress).Err(); err != nil {
		return apperrors.NewCacheError("del "+KeyHarvestProgress, err)
	}
	return nil
}

// GetBlockState returns the persisted block detector state
func (s *RedisStateStore) GetBlockState(ctx context.Context) (*models.BlockState, error) {
	var b models.BlockState
	found, err := s.load(ctx, KeyBlockState, &b)
	if err != nil || !found {
		return nil, err
	}
	return &b, nil
}

// SaveBlockState persists the block detector state
func (s *RedisStateStore) SaveBlockState(ctx context.Context, b *models.BlockState) error {
	return s.store(ctx, KeyBlockState, b)
}

var _ StateStore = (*RedisStateStore)(nil)
