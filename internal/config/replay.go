package config

import (
	"fmt"

	"github.com/spf13/pflag"
)

// ReplayConfig holds configuration for the replay command.
type ReplayConfig struct {
	Input       string
	Store       StoreConfig
	BatchSize   int
	Workers     int
	StateFile   string
	StateName   string
	Snapshots   string
	MetricsAddr string
	LogLevel    string
	LogFile     string
}

// LoadReplay merges config file, environment variables, and flags into ReplayConfig.
func LoadReplay(cfgFile string, flags *pflag.FlagSet) (ReplayConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return ReplayConfig{}, err
	}
	v.SetDefault("batch-size", 1000)
	v.SetDefault("workers", 4)
	v.SetDefault("state-name", "replay")

	cfg := ReplayConfig{
		Input:       v.GetString("in"),
		Store:       storeConfig(v),
		BatchSize:   v.GetInt("batch-size"),
		Workers:     v.GetInt("workers"),
		StateFile:   v.GetString("state-file"),
		StateName:   v.GetString("state-name"),
		Snapshots:   v.GetString("snapshots"),
		MetricsAddr: v.GetString("metrics-addr"),
		LogLevel:    v.GetString("log-level"),
		LogFile:     v.GetString("log-file"),
	}

	if cfg.Input == "" {
		return ReplayConfig{}, fmt.Errorf("in is required")
	}
	if cfg.BatchSize <= 0 {
		return ReplayConfig{}, fmt.Errorf("batch-size must be > 0")
	}
	if cfg.Workers <= 0 {
		return ReplayConfig{}, fmt.Errorf("workers must be > 0")
	}
	if err := cfg.Store.Validate(); err != nil {
		return ReplayConfig{}, err
	}
	// A checkpoint without a persistent ledger would skip every event on
	// the next run and start from an empty store.
	if cfg.StateFile != "" && !cfg.Store.Persistent() {
		return ReplayConfig{}, fmt.Errorf("state-file requires a persistent store (postgres or redis), got %q", cfg.Store.Kind)
	}
	return cfg, nil
}
