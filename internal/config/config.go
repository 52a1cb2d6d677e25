package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// StoreConfig selects and configures the ledger store.
type StoreConfig struct {
	Kind          string
	PGDSN         string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
	MaxRetries    int
	RetryBackoff  time.Duration
}

// Validate checks that the selected backend has what it needs.
func (c StoreConfig) Validate() error {
	switch c.Kind {
	case StoreMemory:
	case StorePostgres:
		if c.PGDSN == "" {
			return fmt.Errorf("pg-dsn is required for store %q", c.Kind)
		}
	case StoreRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("redis-addr is required for store %q", c.Kind)
		}
	default:
		return fmt.Errorf("unknown store %q", c.Kind)
	}
	return nil
}

// Persistent reports whether the ledger outlives the process.
func (c StoreConfig) Persistent() bool {
	return c.Kind == StorePostgres || c.Kind == StoreRedis
}

// newViper merges the config file, STAKESCOPE_* environment variables and
// flags. Defaults shared by every command are set here.
func newViper(cfgFile string, flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("STAKESCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("store", StoreMemory)
	v.SetDefault("redis-addr", "localhost:6379")
	v.SetDefault("redis-db", 0)
	v.SetDefault("redis-prefix", "stakescope:")
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func storeConfig(v *viper.Viper) StoreConfig {
	return StoreConfig{
		Kind:          strings.ToLower(strings.TrimSpace(v.GetString("store"))),
		PGDSN:         v.GetString("pg-dsn"),
		RedisAddr:     v.GetString("redis-addr"),
		RedisPassword: v.GetString("redis-password"),
		RedisDB:       v.GetInt("redis-db"),
		RedisPrefix:   v.GetString("redis-prefix"),
		MaxRetries:    v.GetInt("max-retries"),
		RetryBackoff:  v.GetDuration("retry-backoff"),
	}
}
