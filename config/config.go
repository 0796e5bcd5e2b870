package config

import (
	"time"

	"github.com/devboard/devboard/utils"
)

type DatabaseConfig struct {
	URI             string
	DatabaseName    string
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
}

type RedisConfig struct {
	URL     string
	Enabled bool
}

type SessionConfig struct {
	// Duration a new session lives before the TTL reaper removes it.
	Duration time.Duration
	// InactivityTimeout forces deactivation when a session sits idle.
	InactivityTimeout time.Duration
	// CleanupInterval is how often the active sweep runs.
	CleanupInterval time.Duration
	// MaxActivePerUser bounds concurrent sessions per user.
	MaxActivePerUser int
}

type ServerConfig struct {
	Port string
}

type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Session  SessionConfig
	Server   ServerConfig
}

func Load() Config {
	return Config{
		Database: DatabaseConfig{
			URI:             utils.GetEnvAsString("MONGO_URI", "mongodb://localhost:27017"),
			DatabaseName:    utils.GetEnvAsString("MONGO_DB", "devboard"),
			MaxPoolSize:     utils.GetEnvAsUint64("MONGO_MAX_POOL_SIZE", 100),
			MinPoolSize:     utils.GetEnvAsUint64("MONGO_MIN_POOL_SIZE", 10),
			MaxConnIdleTime: time.Duration(utils.GetEnvAsInt("MONGO_MAX_CONN_IDLE_TIME", 60)) * time.Second,
		},
		Redis: RedisConfig{
			URL:     utils.GetEnvAsString("REDIS_URL", "redis://localhost:6379/0"),
			Enabled: utils.GetEnvAsBool("REDIS_ENABLED", true),
		},
		Session: SessionConfig{
			Duration:          utils.GetEnvAsDuration("SESSION_DURATION", 24*time.Hour),
			InactivityTimeout: utils.GetEnvAsDuration("SESSION_INACTIVITY_TIMEOUT", 48*time.Hour),
			CleanupInterval:   utils.GetEnvAsDuration("SESSION_CLEANUP_INTERVAL", 15*time.Minute),
			MaxActivePerUser:  utils.GetEnvAsInt("MAX_ACTIVE_SESSIONS", 5),
		},
		Server: ServerConfig{
			Port: utils.GetEnvAsString("PORT", "8080"),
		},
	}
}
