package config

import (
	"fmt"

	"github.com/spf13/pflag"
)

// QueryConfig holds configuration for the query and inspect commands.
type QueryConfig struct {
	Store    StoreConfig
	Pool     string
	User     string
	Block    uint64
	RPCURL   string
	LogLevel string
	LogFile  string
}

// LoadQuery merges config file, environment variables, and flags into QueryConfig.
func LoadQuery(cfgFile string, flags *pflag.FlagSet) (QueryConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return QueryConfig{}, err
	}

	cfg := QueryConfig{
		Store:    storeConfig(v),
		Pool:     v.GetString("pool"),
		User:     v.GetString("user"),
		Block:    v.GetUint64("block"),
		RPCURL:   v.GetString("rpc"),
		LogLevel: v.GetString("log-level"),
		LogFile:  v.GetString("log-file"),
	}
	if err := cfg.Store.Validate(); err != nil {
		return QueryConfig{}, err
	}
	if !cfg.Store.Persistent() {
		return QueryConfig{}, fmt.Errorf("store %q holds nothing between runs, use postgres or redis", cfg.Store.Kind)
	}
	return cfg, nil
}
