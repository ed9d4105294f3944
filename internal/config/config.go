// Package config provides configuration management for the growth engine.
// It loads configuration from environment variables and .env files, with an
// optional YAML overlay for the engine options.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage backends
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Storage  StorageConfig
	Engine   EngineConfig
	Remote   RemoteConfig
	Logging  LoggingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// ClickHouseConfig holds ClickHouse configuration.
// Analytics mirroring is disabled when Enabled is false.
type ClickHouseConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// StorageConfig selects the prospect/action-log record store
type StorageConfig struct {
	Backend string
}

// EngineConfig holds every option the orchestrator and its components recognize
type EngineConfig struct {
	DailyLikeLimit     int  `yaml:"daily_like_limit"`
	DailyFollowLimit   int  `yaml:"daily_follow_limit"`
	HourlyActionLimit  int  `yaml:"hourly_action_limit"`
	SessionActionLimit int  `yaml:"session_action_limit"`
	LikesPerProspect   int  `yaml:"likes_per_prospect"`
	FollowAfterLike    bool `yaml:"follow_after_like"`

	ActiveHoursStart int `yaml:"active_hours_start"`
	ActiveHoursEnd   int `yaml:"active_hours_end"`
	MinDelaySeconds  int `yaml:"min_delay_seconds"`
	MaxDelaySeconds  int `yaml:"max_delay_seconds"`
	CooldownHours    int `yaml:"cooldown_hours"`

	MinPostCount             int  `yaml:"min_post_count"`
	SkipPrivate              bool `yaml:"skip_private"`
	SkipVerified             bool `yaml:"skip_verified"`
	SkipPreviouslyEngaged    bool `yaml:"skip_previously_engaged"`
	ReEngagementCooldownDays int  `yaml:"re_engagement_cooldown_days"`

	SourceAccounts       []string      `yaml:"source_accounts"`
	HarvestPageCap       int           `yaml:"harvest_page_cap"`
	PerSourceProspectCap int           `yaml:"per_source_prospect_cap"`
	FollowerPageSize     int           `yaml:"follower_page_size"`
	HarvestStallTimeout  time.Duration `yaml:"harvest_stall_timeout"`

	BotFilterEnabled  bool    `yaml:"bot_filter_enabled"`
	BotScoreThreshold float64 `yaml:"bot_score_threshold"`

	HarvestInterval       time.Duration `yaml:"harvest_interval"`
	EngageInterval        time.Duration `yaml:"engage_interval"`
	CooldownCheckInterval time.Duration `yaml:"cooldown_check_interval"`
}

// RemoteConfig holds the session bridge configuration
type RemoteConfig struct {
	BridgeURL         string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "growth_engine"),
				User:           getEnv("POSTGRES_USER", "growth"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 20),
			},
			ClickHouse: ClickHouseConfig{
				Enabled:  getEnvAsBool("CLICKHOUSE_ENABLED", false),
				Host:     getEnv("CLICKHOUSE_HOST", "localhost"),
				Port:     getEnv("CLICKHOUSE_PORT", "9000"),
				Database: getEnv("CLICKHOUSE_DB", "growth_engine"),
				User:     getEnv("CLICKHOUSE_USER", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 10),
			},
		},
		Storage: StorageConfig{
			Backend: getEnv("STORAGE_BACKEND", BackendPostgres),
		},
		Engine: loadEngineConfig(),
		Remote: RemoteConfig{
			BridgeURL:         getEnv("BRIDGE_URL", "http://localhost:9222/bridge"),
			Timeout:           getEnvAsDuration("BRIDGE_TIMEOUT", 30*time.Second),
			RequestsPerSecond: getEnvAsFloat("BRIDGE_REQUESTS_PER_SECOND", 1),
			Burst:             getEnvAsInt("BRIDGE_BURST", 1),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if path := getEnv("GROWTH_CONFIG_FILE", ""); path != "" {
		if err := overlayEngineFile(&config.Engine, path); err != nil {
			return nil, err
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// DefaultEngineConfig returns the engine options with their documented defaults
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		DailyLikeLimit:           100,
		DailyFollowLimit:         50,
		HourlyActionLimit:        30,
		SessionActionLimit:       40,
		LikesPerProspect:         2,
		ActiveHoursStart:         8,
		ActiveHoursEnd:           23,
		MinDelaySeconds:          30,
		MaxDelaySeconds:          90,
		CooldownHours:            24,
		MinPostCount:             3,
		SkipPrivate:              true,
		SkipVerified:             false,
		SkipPreviouslyEngaged:    true,
		ReEngagementCooldownDays: 30,
		HarvestPageCap:           10,
		PerSourceProspectCap:     200,
		FollowerPageSize:         50,
		HarvestStallTimeout:      5 * time.Minute,
		BotFilterEnabled:         true,
		BotScoreThreshold:        0.6,
		HarvestInterval:          time.Minute,
		EngageInterval:           2 * time.Minute,
		CooldownCheckInterval:    time.Minute,
	}
}

func loadEngineConfig() EngineConfig {
	d := DefaultEngineConfig()
	return EngineConfig{
		DailyLikeLimit:           getEnvAsInt("DAILY_LIKE_LIMIT", d.DailyLikeLimit),
		DailyFollowLimit:         getEnvAsInt("DAILY_FOLLOW_LIMIT", d.DailyFollowLimit),
		HourlyActionLimit:        getEnvAsInt("HOURLY_ACTION_LIMIT", d.HourlyActionLimit),
		SessionActionLimit:       getEnvAsInt("SESSION_ACTION_LIMIT", d.SessionActionLimit),
		LikesPerProspect:         getEnvAsInt("LIKES_PER_PROSPECT", d.LikesPerProspect),
		FollowAfterLike:          getEnvAsBool("FOLLOW_AFTER_LIKE", d.FollowAfterLike),
		ActiveHoursStart:         getEnvAsInt("ACTIVE_HOURS_START", d.ActiveHoursStart),
		ActiveHoursEnd:           getEnvAsInt("ACTIVE_HOURS_END", d.ActiveHoursEnd),
		MinDelaySeconds:          getEnvAsInt("MIN_DELAY_SECONDS", d.MinDelaySeconds),
		MaxDelaySeconds:          getEnvAsInt("MAX_DELAY_SECONDS", d.MaxDelaySeconds),
		CooldownHours:            getEnvAsInt("COOLDOWN_HOURS", d.CooldownHours),
		MinPostCount:             getEnvAsInt("MIN_POST_COUNT", d.MinPostCount),
		SkipPrivate:              getEnvAsBool("SKIP_PRIVATE", d.SkipPrivate),
		SkipVerified:             getEnvAsBool("SKIP_VERIFIED", d.SkipVerified),
		SkipPreviouslyEngaged:    getEnvAsBool("SKIP_PREVIOUSLY_ENGAGED", d.SkipPreviouslyEngaged),
		ReEngagementCooldownDays: getEnvAsInt("RE_ENGAGEMENT_COOLDOWN_DAYS", d.ReEngagementCooldownDays),
		SourceAccounts:           getEnvAsList("SOURCE_ACCOUNTS", nil),
		HarvestPageCap:           getEnvAsInt("HARVEST_PAGE_CAP", d.HarvestPageCap),
		PerSourceProspectCap:     getEnvAsInt("PER_SOURCE_PROSPECT_CAP", d.PerSourceProspectCap),
		FollowerPageSize:         getEnvAsInt("FOLLOWER_PAGE_SIZE", d.FollowerPageSize),
		HarvestStallTimeout:      getEnvAsDuration("HARVEST_STALL_TIMEOUT", d.HarvestStallTimeout),
		BotFilterEnabled:         getEnvAsBool("BOT_FILTER_ENABLED", d.BotFilterEnabled),
		BotScoreThreshold:        getEnvAsFloat("BOT_SCORE_THRESHOLD", d.BotScoreThreshold),
		HarvestInterval:          getEnvAsDuration("HARVEST_INTERVAL", d.HarvestInterval),
		EngageInterval:           getEnvAsDuration("ENGAGE_INTERVAL", d.EngageInterval),
		CooldownCheckInterval:    getEnvAsDuration("COOLDOWN_CHECK_INTERVAL", d.CooldownCheckInterval),
	}
}

// overlayEngineFile decodes a YAML document over the already-loaded engine
// options; keys absent from the file keep their env/default values.
func overlayEngineFile(engine *EngineConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading config file %s: %w", path, err)
	}

	var doc struct {
		Engine *EngineConfig `yaml:"engine"`
	}
	doc.Engine = engine
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("error parsing config file %s: %w", path, err)
	}
	return nil
}

// Validate checks the configuration for values the engine cannot run with
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendPostgres, BackendMemory:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Remote.Timeout <= 0 {
		return fmt.Errorf("bridge timeout must be positive")
	}
	return c.Engine.Validate()
}

// Validate rejects engine options outside their usable range
func (e *EngineConfig) Validate() error {
	if e.ActiveHoursStart < 0 || e.ActiveHoursStart > 23 {
		return fmt.Errorf("active hours start must be in [0,23], got %d", e.ActiveHoursStart)
	}
	if e.ActiveHoursEnd < 0 || e.ActiveHoursEnd > 24 {
		return fmt.Errorf("active hours end must be in [0,24], got %d", e.ActiveHoursEnd)
	}
	if e.MinDelaySeconds < 0 || e.MaxDelaySeconds < 0 {
		return fmt.Errorf("delays must not be negative")
	}
	if e.MinDelaySeconds > e.MaxDelaySeconds {
		return fmt.Errorf("min delay %ds exceeds max delay %ds", e.MinDelaySeconds, e.MaxDelaySeconds)
	}

	limits := map[string]int{
		"daily like limit":        e.DailyLikeLimit,
		"daily follow limit":      e.DailyFollowLimit,
		"hourly action limit":     e.HourlyActionLimit,
		"session action limit":    e.SessionActionLimit,
		"likes per prospect":      e.LikesPerProspect,
		"harvest page cap":        e.HarvestPageCap,
		"per source prospect cap": e.PerSourceProspectCap,
		"follower page size":      e.FollowerPageSize,
		"cooldown hours":          e.CooldownHours,
	}
	for name, v := range limits {
		if v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, v)
		}
	}

	if e.BotScoreThreshold < 0 || e.BotScoreThreshold > 1 {
		return fmt.Errorf("bot score threshold must be in [0,1], got %v", e.BotScoreThreshold)
	}
	if e.HarvestStallTimeout <= 0 {
		return fmt.Errorf("harvest stall timeout must be positive")
	}
	return nil
}

// MinDelay returns the minimum inter-action delay
func (e *EngineConfig) MinDelay() time.Duration {
	return time.Duration(e.MinDelaySeconds) * time.Second
}

// MaxDelay returns the maximum inter-action delay
func (e *EngineConfig) MaxDelay() time.Duration {
	return time.Duration(e.MaxDelaySeconds) * time.Second
}

// Cooldown returns the block cooldown window
func (e *EngineConfig) Cooldown() time.Duration {
	return time.Duration(e.CooldownHours) * time.Hour
}

// ReEngagementCooldown returns the window during which a liked target is not re-engaged
func (e *EngineConfig) ReEngagementCooldown() time.Duration {
	return time.Duration(e.ReEngagementCooldownDays) * 24 * time.Hour
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat gets an environment variable as a float with a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool gets an environment variable as a bool with a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma separated environment variable, dropping blanks
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	var out []string
	for _, item := range strings.Split(valueStr, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
