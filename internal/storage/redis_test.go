package storage

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/growth-engine/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := &config.RedisConfig{
		Host:           mr.Host(),
		Port:           mr.Port(),
		MaxConnections: 4,
	}

	client, err := NewRedisClient(cfg)
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, client.Close())
	}()

	assert.NoError(t, client.Ping(testContext(t)))
	assert.NotNil(t, client.Client())
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	host, port := mr.Host(), mr.Port()
	mr.Close()

	_, err := NewRedisClient(&config.RedisConfig{Host: host, Port: port, MaxConnections: 1})
	assert.Error(t, err)
}
