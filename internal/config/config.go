package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

type (
	// Config holds configuration settings for the property service
	Config struct {
		// API Server
		APIHost  string
		APIPort  int
		LogLevel string

		// Persistence
		Redis RedisConfig

		// Archiving
		ArchiveBucketURL string
		ArchivePrefix    string

		// Waits & Streaming
		WaitPollInterval time.Duration
		WaitRetention    time.Duration
		ShutdownTimeout  time.Duration
		WSBuffer         int
	}

	// RedisConfig identifies the Redis instance holding runs and waits
	RedisConfig struct {
		Addr     string
		Password string
		Prefix   string
		DB       int
	}
)

const (
	DefaultAPIPort = 8080
	DefaultAPIHost = "0.0.0.0"
	MaxTCPPort     = 65535

	DefaultRedisAddr   = "localhost:6379"
	DefaultRedisPrefix = "buildprops"
	DefaultRedisDB     = 0
	MaxRedisDB         = 15

	DefaultArchivePrefix    = "archive"
	DefaultWaitPollInterval = 10 * time.Minute
	DefaultWaitRetention    = time.Hour
	DefaultShutdownTimeout  = 10 * time.Second
	DefaultWSBuffer         = 256
	MaxWSBuffer             = 1 << 16
)

var (
	ErrInvalidAPIPort          = errors.New("invalid API port")
	ErrInvalidRedisAddr        = errors.New("redis address is required")
	ErrInvalidPollInterval     = errors.New("poll interval must be positive")
	ErrInvalidWaitRetention    = errors.New("wait retention must be positive")
	ErrInvalidShutdownTimeout  = errors.New("shutdown timeout must be positive")
	ErrInvalidWebSocketBuffer  = errors.New("websocket buffer must be positive")
	ErrInvalidLogLevel         = errors.New("invalid log level")
	ErrInvalidEnvironmentValue = errors.New("invalid environment value")
)

// NewDefaultConfig creates a configuration with sensible defaults for the
// API server, persistence, and wait handling
func NewDefaultConfig() *Config {
	return &Config{
		APIHost:  DefaultAPIHost,
		APIPort:  DefaultAPIPort,
		LogLevel: "info",
		Redis: RedisConfig{
			Addr:   DefaultRedisAddr,
			Prefix: DefaultRedisPrefix,
			DB:     DefaultRedisDB,
		},
		ArchivePrefix:    DefaultArchivePrefix,
		WaitPollInterval: DefaultWaitPollInterval,
		WaitRetention:    DefaultWaitRetention,
		ShutdownTimeout:  DefaultShutdownTimeout,
		WSBuffer:         DefaultWSBuffer,
	}
}

// LoadFromEnv populates configuration values from environment variables.
// Returns an error if any env var cannot be parsed
func (c *Config) LoadFromEnv() error {
	if apiHost := os.Getenv("API_HOST"); apiHost != "" {
		c.APIHost = apiHost
	}
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.LogLevel = logLevel
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		c.Redis.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		c.Redis.Password = password
	}
	if prefix := os.Getenv("REDIS_PREFIX"); prefix != "" {
		c.Redis.Prefix = prefix
	}
	if url := os.Getenv("ARCHIVE_BUCKET_URL"); url != "" {
		c.ArchiveBucketURL = url
	}
	if prefix := os.Getenv("ARCHIVE_PREFIX"); prefix != "" {
		c.ArchivePrefix = prefix
	}

	if err := loadEnvInt("API_PORT", &c.APIPort, 0, MaxTCPPort); err != nil {
		return err
	}
	if err := loadEnvInt("REDIS_DB", &c.Redis.DB, -1, MaxRedisDB); err != nil {
		return err
	}
	if err := loadEnvInt("WS_BUFFER", &c.WSBuffer, 0, MaxWSBuffer); err != nil {
		return err
	}
	if err := loadEnvDuration(
		"WAIT_POLL_INTERVAL", &c.WaitPollInterval,
	); err != nil {
		return err
	}
	if err := loadEnvDuration(
		"WAIT_RETENTION", &c.WaitRetention,
	); err != nil {
		return err
	}
	if err := loadEnvDuration(
		"SHUTDOWN_TIMEOUT", &c.ShutdownTimeout,
	); err != nil {
		return err
	}
	return nil
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.APIPort <= 0 || c.APIPort > MaxTCPPort {
		return fmt.Errorf("%w: %d", ErrInvalidAPIPort, c.APIPort)
	}

	if c.Redis.Addr == "" {
		return ErrInvalidRedisAddr
	}

	if c.WaitPollInterval <= 0 {
		return ErrInvalidPollInterval
	}

	if c.WaitRetention <= 0 {
		return ErrInvalidWaitRetention
	}

	if c.ShutdownTimeout <= 0 {
		return ErrInvalidShutdownTimeout
	}

	if c.WSBuffer <= 0 {
		return ErrInvalidWebSocketBuffer
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: %s", ErrInvalidLogLevel, c.LogLevel)
	}

	return nil
}

// ArchiveEnabled reports whether completed runs should be archived
func (c *Config) ArchiveEnabled() bool {
	return c.ArchiveBucketURL != ""
}

// loadEnvInt reads key from the environment, parses it as an integer, and
// sets *dst if the value is in the range (min, max]. Returns an error if
// the value cannot be parsed or falls outside the valid range
func loadEnvInt[T ~int | ~int64](key string, dst *T, min, max T) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %s %q", ErrInvalidEnvironmentValue, key, s)
	}
	tv := T(v)
	if tv <= min || tv > max {
		return fmt.Errorf("%w: %s %d out of range [%d, %d]",
			ErrInvalidEnvironmentValue, key, tv, min+1, max)
	}
	*dst = tv
	return nil
}

// loadEnvDuration reads key from the environment as a Go duration string.
// Non-positive durations are rejected
func loadEnvDuration(key string, dst *time.Duration) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("%w: %s %q", ErrInvalidEnvironmentValue, key, s)
	}
	if d <= 0 {
		return fmt.Errorf("%w: %s %s must be positive",
			ErrInvalidEnvironmentValue, key, d)
	}
	*dst = d
	return nil
}
