package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Run lock backends.
const (
	LockAdvisory = "advisory"
	LockRedis    = "redis"
	LockNone     = "none"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL       string
	PGDSN        string
	BatchSize    uint64
	MaxRetries   int
	RetryBackoff time.Duration
	RunRetention time.Duration
	Lock         string
	RedisAddr    string
	LockTTL      time.Duration
	Schedule     string
	MetricsAddr  string
	LogLevel     string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SYNCER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("batch-size", uint64(2000))
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("run-retention", 72*time.Hour)
	v.SetDefault("lock", LockAdvisory)
	v.SetDefault("lock-ttl", 10*time.Minute)
	v.SetDefault("schedule", "@every 5m")
	v.SetDefault("metrics-addr", ":9090")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:       v.GetString("rpc"),
		PGDSN:        v.GetString("pg-dsn"),
		BatchSize:    v.GetUint64("batch-size"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		RunRetention: v.GetDuration("run-retention"),
		Lock:         strings.ToLower(strings.TrimSpace(v.GetString("lock"))),
		RedisAddr:    v.GetString("redis-addr"),
		LockTTL:      v.GetDuration("lock-ttl"),
		Schedule:     v.GetString("schedule"),
		MetricsAddr:  v.GetString("metrics-addr"),
		LogLevel:     v.GetString("log-level"),
	}

	return cfg, nil
}

// ValidateSync checks the settings a sync run needs.
func (c Config) ValidateSync() error {
	if c.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if c.PGDSN == "" {
		return fmt.Errorf("pg dsn is required")
	}
	if c.BatchSize == 0 {
		return fmt.Errorf("batch size must be greater than zero")
	}
	switch c.Lock {
	case LockAdvisory, LockNone:
	case LockRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("redis addr is required for the redis lock")
		}
	default:
		return fmt.Errorf("unknown lock backend: %s", c.Lock)
	}
	return nil
}
