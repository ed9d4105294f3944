package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("POSTGRES_HOST", "testhost")
	t.Setenv("DAILY_LIKE_LIMIT", "80")
	t.Setenv("HARVEST_STALL_TIMEOUT", "10m")
	t.Setenv("SOURCE_ACCOUNTS", "acct1, acct2,,acct3")
	t.Setenv("SKIP_VERIFIED", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "testhost", cfg.Database.Postgres.Host)
	assert.Equal(t, 80, cfg.Engine.DailyLikeLimit)
	assert.Equal(t, 10*time.Minute, cfg.Engine.HarvestStallTimeout)
	assert.Equal(t, []string{"acct1", "acct2", "acct3"}, cfg.Engine.SourceAccounts)
	assert.True(t, cfg.Engine.SkipVerified)
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, DefaultEngineConfig().DailyLikeLimit, cfg.Engine.DailyLikeLimit)
	assert.Equal(t, 8, cfg.Engine.ActiveHoursStart)
	assert.Equal(t, 23, cfg.Engine.ActiveHoursEnd)
	assert.True(t, cfg.Engine.SkipPrivate)
	assert.Equal(t, 0.6, cfg.Engine.BotScoreThreshold)
	assert.Equal(t, 30*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, BackendPostgres, cfg.Storage.Backend)
}

func TestLoadConfig_YAMLOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.yaml")
	doc := `
engine:
  likes_per_prospect: 3
  active_hours_start: 22
  active_hours_end: 6
  source_accounts: [travel_mag, hiking_daily]
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	t.Setenv("GROWTH_CONFIG_FILE", path)
	t.Setenv("DAILY_LIKE_LIMIT", "70")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Engine.LikesPerProspect)
	assert.Equal(t, 22, cfg.Engine.ActiveHoursStart)
	assert.Equal(t, 6, cfg.Engine.ActiveHoursEnd)
	assert.Equal(t, []string{"travel_mag", "hiking_daily"}, cfg.Engine.SourceAccounts)
	// untouched keys keep env values
	assert.Equal(t, 70, cfg.Engine.DailyLikeLimit)
}

func TestLoadConfig_MissingOverlay(t *testing.T) {
	t.Setenv("GROWTH_CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestEngineConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*EngineConfig)
		wantErr bool
	}{
		{"defaults", func(*EngineConfig) {}, false},
		{"overnight window", func(e *EngineConfig) { e.ActiveHoursStart, e.ActiveHoursEnd = 22, 6 }, false},
		{"start out of range", func(e *EngineConfig) { e.ActiveHoursStart = 24 }, true},
		{"end out of range", func(e *EngineConfig) { e.ActiveHoursEnd = -1 }, true},
		{"min above max", func(e *EngineConfig) { e.MinDelaySeconds = 100 }, true},
		{"zero daily limit", func(e *EngineConfig) { e.DailyLikeLimit = 0 }, true},
		{"zero page size", func(e *EngineConfig) { e.FollowerPageSize = 0 }, true},
		{"threshold above one", func(e *EngineConfig) { e.BotScoreThreshold = 1.5 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := DefaultEngineConfig()
			tt.mutate(&e)
			err := e.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
	}{
		{
			name:         "returns environment variable when set",
			key:          "TEST_KEY",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
		},
		{
			name:         "returns default when environment variable not set",
			key:          "NONEXISTENT_KEY",
			defaultValue: "default",
			envValue:     "",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv(tt.key, tt.envValue)
			}
			assert.Equal(t, tt.want, getEnv(tt.key, tt.defaultValue))
		})
	}
}

func TestGetEnvAsBool(t *testing.T) {
	t.Setenv("TEST_BOOL", "false")
	assert.False(t, getEnvAsBool("TEST_BOOL", true))

	t.Setenv("TEST_BOOL", "garbage")
	assert.True(t, getEnvAsBool("TEST_BOOL", true))
}

func TestEngineConfig_Durations(t *testing.T) {
	e := DefaultEngineConfig()
	assert.Equal(t, 30*time.Second, e.MinDelay())
	assert.Equal(t, 90*time.Second, e.MaxDelay())
	assert.Equal(t, 24*time.Hour, e.Cooldown())
	assert.Equal(t, 30*24*time.Hour, e.ReEngagementCooldown())
}
